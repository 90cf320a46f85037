package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ExecutionEnv selects where browser sessions run.
type ExecutionEnv string

const (
	// EnvLocal launches a browser on this machine
	EnvLocal ExecutionEnv = "local"
	// EnvBrowserStack connects to a BrowserStack playwright endpoint
	EnvBrowserStack ExecutionEnv = "browserstack"
	// EnvLambdaTest connects to a LambdaTest playwright endpoint
	EnvLambdaTest ExecutionEnv = "lambdatest"
)

// Config represents the configuration for a test run
type Config struct {
	// Execution environment selector
	Execution ExecutionEnv `yaml:"execution" json:"execution"`

	// Browser selector: chrome, chromium, firefox, edge, webkit
	Browser string `yaml:"browser" json:"browser"`

	// Headless runs local browsers without a window (CI)
	Headless bool `yaml:"headless" json:"headless"`

	// BaseURL is opened in every fresh session before the test body runs
	BaseURL string `yaml:"base_url" json:"base_url"`

	// Workers is the number of parallel test workers
	Workers int `yaml:"workers" json:"workers"`

	// Timeouts for waits and navigation
	Timeouts TimeoutConfig `yaml:"timeouts" json:"timeouts"`

	// Per-browser launch arguments for local sessions
	Browsers map[string]BrowserConfig `yaml:"browsers" json:"browsers"`

	// ProfileDir is the root for per-worker browser profiles
	ProfileDir string `yaml:"profile_dir" json:"profile_dir"`

	// Remote capability labels for cloud providers
	Remote RemoteConfig `yaml:"remote" json:"remote"`

	// Lifecycle event log
	Events EventsConfig `yaml:"events" json:"events"`

	// Failure artifacts and run summary
	Artifacts ArtifactConfig `yaml:"artifacts" json:"artifacts"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Metrics textfile export
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// Test selection (glob patterns over Class.method)
	Include []string `yaml:"include" json:"include"`
	Exclude []string `yaml:"exclude" json:"exclude"`

	// Properties is the secondary configuration source consulted after
	// environment variables (equivalent of -Dkey=value)
	Properties map[string]string `yaml:"properties" json:"properties"`
}

// TimeoutConfig bounds blocking browser operations
type TimeoutConfig struct {
	Interaction time.Duration `yaml:"interaction" json:"interaction"`
	PageLoad    time.Duration `yaml:"page_load" json:"page_load"`
}

// BrowserConfig holds launch arguments for one local browser kind
type BrowserConfig struct {
	Args         []string `yaml:"args" json:"args"`
	HeadlessArgs []string `yaml:"headless_args" json:"headless_args"`
}

// RemoteConfig holds the capability labels sent to cloud providers
type RemoteConfig struct {
	OS             string `yaml:"os" json:"os"`
	OSVersion      string `yaml:"os_version" json:"os_version"`
	Platform       string `yaml:"platform" json:"platform"`
	BrowserVersion string `yaml:"browser_version" json:"browser_version"`
	Project        string `yaml:"project" json:"project"`
	Build          string `yaml:"build" json:"build"`
	Debug          bool   `yaml:"debug" json:"debug"`
	NetworkLogs    bool   `yaml:"network_logs" json:"network_logs"`
	ConsoleLogs    string `yaml:"console_logs" json:"console_logs"`
	Video          bool   `yaml:"video" json:"video"`
}

// EventsConfig locates the lifecycle event log
type EventsConfig struct {
	Path        string `yaml:"path" json:"path"`
	Environment string `yaml:"environment" json:"environment"`
	Service     string `yaml:"service" json:"service"`
}

// ArtifactConfig defines failure artifact and summary output
type ArtifactConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	OutputDir string `yaml:"output_dir" json:"output_dir"`
}

// LoggingConfig defines diagnostic logging
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	Dir   string `yaml:"dir" json:"dir"`
}

// MetricsConfig defines the prometheus textfile written at the end of a run
type MetricsConfig struct {
	Textfile string `yaml:"textfile" json:"textfile"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Execution {
	case EnvLocal, EnvBrowserStack, EnvLambdaTest:
	default:
		return fmt.Errorf("invalid execution env: %s (must be 'local', 'browserstack', or 'lambdatest')", c.Execution)
	}

	if c.Browser == "" {
		return fmt.Errorf("browser is required")
	}

	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}

	if c.Timeouts.Interaction <= 0 {
		return fmt.Errorf("interaction timeout must be positive")
	}

	if c.Timeouts.PageLoad < 0 {
		return fmt.Errorf("page load timeout cannot be negative")
	}

	if c.Events.Path == "" {
		return fmt.Errorf("events.path is required")
	}

	if c.Artifacts.Enabled && c.Artifacts.OutputDir == "" {
		return fmt.Errorf("artifacts.output_dir is required when artifacts are enabled")
	}

	return nil
}

// DefaultConfig returns a configuration for a local chrome run
func DefaultConfig() *Config {
	return &Config{
		Execution: EnvLocal,
		Browser:   "chrome",
		BaseURL:   "https://practicetestautomation.com/practice-test-login/",
		Workers:   1,
		Timeouts: TimeoutConfig{
			Interaction: 10 * time.Second,
			PageLoad:    30 * time.Second,
		},
		Browsers: map[string]BrowserConfig{
			"chrome": {
				Args: []string{"--remote-allow-origins=*"},
				HeadlessArgs: []string{
					"--window-size=1920,1080",
					"--disable-gpu",
					"--no-sandbox",
					"--disable-dev-shm-usage",
				},
			},
			"firefox": {
				HeadlessArgs: []string{"--headless"},
			},
		},
		ProfileDir: os.TempDir(),
		Remote: RemoteConfig{
			OS:             "Windows",
			OSVersion:      "11",
			Platform:       "Windows 11",
			BrowserVersion: "latest",
			Project:        "Test Automation Framework",
			Debug:          true,
			NetworkLogs:    true,
			ConsoleLogs:    "info",
			Video:          true,
		},
		Events: EventsConfig{
			Path:        "target/analytics-logs/test-events.jsonl",
			Environment: "local",
			Service:     "uirun-ui-tests",
		},
		Artifacts: ArtifactConfig{
			Enabled:   true,
			OutputDir: "target/uirun-artifacts",
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   ".uirun/logs",
		},
		Properties: map[string]string{},
	}
}

// Load reads a YAML run file on top of DefaultConfig. An empty path returns
// the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.Properties == nil {
		cfg.Properties = map[string]string{}
	}

	return cfg, nil
}

// ApplyProperties overrides run settings from process properties. Keys
// follow the -D names: execution.env, browser, headless, base.url, workers,
// test.environment, test.service.
func (c *Config) ApplyProperties(props map[string]string) error {
	for key, value := range props {
		if c.Properties == nil {
			c.Properties = map[string]string{}
		}
		c.Properties[key] = value
	}

	if v, ok := props["execution.env"]; ok && v != "" {
		c.Execution = ExecutionEnv(strings.ToLower(v))
	}
	if v, ok := props["browser"]; ok && v != "" {
		c.Browser = strings.ToLower(v)
	}
	if v, ok := props["headless"]; ok && v != "" {
		headless, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid headless property %q: %w", v, err)
		}
		c.Headless = headless
	}
	if v, ok := props["base.url"]; ok && v != "" {
		c.BaseURL = v
	}
	if v, ok := props["workers"]; ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid workers property %q: %w", v, err)
		}
		c.Workers = n
	}
	if v, ok := props["test.environment"]; ok && v != "" {
		c.Events.Environment = v
	}
	if v, ok := props["test.service"]; ok && v != "" {
		c.Events.Service = v
	}
	return nil
}

// ParseProperties turns "key=value" pairs into a map.
func ParseProperties(pairs []string) (map[string]string, error) {
	props := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid property %q (expected key=value)", pair)
		}
		props[key] = value
	}
	return props, nil
}

// BuildName returns the CI build label ("<job> #<number>") or a local
// fallback stamped with the current time.
func BuildName(r *Resolver, now time.Time) string {
	job := r.Env("JOB_NAME")
	number := r.Env("BUILD_NUMBER")
	if job != "" && number != "" {
		return job + " #" + number
	}
	return fmt.Sprintf("Local Build - %d", now.UnixMilli())
}
