package session

import (
	"fmt"
	"strings"

	"github.com/entrhq/uirun/pkg/config"
)

// Kind selects where a session runs.
type Kind string

const (
	KindLocal        Kind = Kind(config.EnvLocal)
	KindBrowserStack Kind = Kind(config.EnvBrowserStack)
	KindLambdaTest   Kind = Kind(config.EnvLambdaTest)
)

// Browsers accepted for each execution env.
var supportedBrowsers = map[Kind][]string{
	KindLocal:        {"chrome", "chromium", "edge", "firefox", "webkit"},
	KindBrowserStack: {"chrome", "chromium", "edge", "firefox", "webkit"},
	KindLambdaTest:   {"chrome", "chromium", "edge", "firefox", "webkit"},
}

// Credentials authenticate against a remote provider.
type Credentials struct {
	Username  string
	AccessKey string
}

func (c Credentials) complete() bool {
	return c.Username != "" && c.AccessKey != ""
}

// Capabilities are the labels and diagnostic toggles sent to a remote
// provider. They are opaque to uirun and only shown on the dashboard.
type Capabilities struct {
	OS             string
	OSVersion      string
	Platform       string
	BrowserVersion string
	Project        string
	Build          string
	SessionName    string
	Debug          bool
	NetworkLogs    bool
	ConsoleLogs    string
	Video          bool
}

// Target describes the session to create.
type Target struct {
	Kind     Kind
	Browser  string
	Headless bool

	// Remote only. Empty credentials are resolved by the factory.
	Credentials  Credentials
	Capabilities Capabilities
}

func (t Target) String() string {
	if t.Kind == KindLocal {
		return fmt.Sprintf("local/%s", t.Browser)
	}
	return fmt.Sprintf("%s/%s", t.Kind, t.Browser)
}

// Remote reports whether the target runs on a cloud provider.
func (t Target) Remote() bool {
	return t.Kind == KindBrowserStack || t.Kind == KindLambdaTest
}

// Validate checks that the env and browser are supported.
func (t Target) Validate() error {
	browsers, ok := supportedBrowsers[t.Kind]
	if !ok {
		return fmt.Errorf("unsupported execution env %q", t.Kind)
	}
	for _, b := range browsers {
		if b == t.Browser {
			return nil
		}
	}
	return fmt.Errorf("unsupported browser %q for %s (supported: %s)", t.Browser, t.Kind, strings.Join(browsers, ", "))
}

// TargetFromConfig builds a target for one test. sessionName labels the
// remote session; build is the CI build label.
func TargetFromConfig(cfg *config.Config, sessionName, build string) Target {
	remote := cfg.Remote
	if remote.Build != "" {
		build = remote.Build
	}
	return Target{
		Kind:     Kind(cfg.Execution),
		Browser:  strings.ToLower(cfg.Browser),
		Headless: cfg.Headless,
		Capabilities: Capabilities{
			OS:             remote.OS,
			OSVersion:      remote.OSVersion,
			Platform:       remote.Platform,
			BrowserVersion: remote.BrowserVersion,
			Project:        remote.Project,
			Build:          build,
			SessionName:    sessionName,
			Debug:          remote.Debug,
			NetworkLogs:    remote.NetworkLogs,
			ConsoleLogs:    remote.ConsoleLogs,
			Video:          remote.Video,
		},
	}
}

// credentialKeys lists the env var and property names for a provider.
type credentialKeys struct {
	userEnv, userProp string
	keyEnv, keyProp   string
}

var providerCredentials = map[Kind]credentialKeys{
	KindBrowserStack: {
		userEnv: "BROWSERSTACK_USERNAME", userProp: "browserstack.username",
		keyEnv: "BROWSERSTACK_ACCESS_KEY", keyProp: "browserstack.accessKey",
	},
	KindLambdaTest: {
		userEnv: "LAMBDATEST_USERNAME", userProp: "lambdatest.username",
		keyEnv: "LAMBDATEST_ACCESS_KEY", keyProp: "lambdatest.accessKey",
	},
}

// ResolveCredentials looks up a provider's credential pair, environment
// first and properties second. Both fields must be non-empty.
func ResolveCredentials(r *config.Resolver, kind Kind) (Credentials, error) {
	keys, ok := providerCredentials[kind]
	if !ok {
		return Credentials{}, fmt.Errorf("no credentials defined for %q", kind)
	}
	creds := Credentials{
		Username:  r.Lookup(keys.userEnv, keys.userProp),
		AccessKey: r.Lookup(keys.keyEnv, keys.keyProp),
	}
	var missing []string
	if creds.Username == "" {
		missing = append(missing, keys.userEnv+" / "+keys.userProp)
	}
	if creds.AccessKey == "" {
		missing = append(missing, keys.keyEnv+" / "+keys.keyProp)
	}
	if len(missing) > 0 {
		return Credentials{}, fmt.Errorf("%s credentials not set: %s", kind, strings.Join(missing, ", "))
	}
	return creds, nil
}
