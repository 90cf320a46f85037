package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/entrhq/uirun/pkg/config"
	"github.com/entrhq/uirun/pkg/events"
	"github.com/entrhq/uirun/pkg/logging"
	"github.com/entrhq/uirun/pkg/metrics"
	"github.com/entrhq/uirun/pkg/runner"
	"github.com/entrhq/uirun/pkg/session"
	"github.com/entrhq/uirun/pkg/suites/login"
	"github.com/entrhq/uirun/pkg/telemetry"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the UI test suites",
	Long: `Run the registered UI suites on parallel workers.

Settings come from defaults, then the YAML run file, then -D properties,
then flags. Remote credentials are read from the environment first and
-D properties second.

Examples:
  uirun run                                        # local chrome, one worker
  uirun run --config uirun.yaml --workers 4        # run file, four workers
  uirun run -D execution.env=browserstack -D browser=edge
  uirun run --include 'LoginTest.testInvalid*'     # select tests by glob
  uirun run --trace traces.json --metrics-file uirun.prom`,
	RunE: runTests,
}

// Flags
var (
	runConfigFile  string
	runProperties  []string
	runWorkers     int
	runBrowser     string
	runExecution   string
	runHeadless    bool
	runInclude     []string
	runExclude     []string
	runOutput      string
	runTraceFile   string
	runMetricsFile string
	runSkipInstall bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigFile, "config", "c", "", "Path to YAML run file")
	runCmd.Flags().StringArrayVarP(&runProperties, "define", "D", nil, "Set a property (key=value), repeatable")
	runCmd.Flags().IntVarP(&runWorkers, "workers", "w", 0, "Number of parallel workers (overrides config)")
	runCmd.Flags().StringVar(&runBrowser, "browser", "", "Browser: chrome, chromium, edge, firefox or webkit")
	runCmd.Flags().StringVar(&runExecution, "env", "", "Execution environment: local, browserstack or lambdatest")
	runCmd.Flags().BoolVar(&runHeadless, "headless", false, "Run local browsers headless")
	runCmd.Flags().StringSliceVar(&runInclude, "include", nil, "Only run tests matching these Class.method globs")
	runCmd.Flags().StringSliceVar(&runExclude, "exclude", nil, "Skip tests matching these Class.method globs")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "normal", "Console verbosity: quiet, normal, verbose or debug")
	runCmd.Flags().StringVar(&runTraceFile, "trace", "", "Write OpenTelemetry spans as JSON to this file")
	runCmd.Flags().StringVar(&runMetricsFile, "metrics-file", "", "Write prometheus metrics to this textfile (overrides config)")
	runCmd.Flags().BoolVar(&runSkipInstall, "skip-install", false, "Do not download the playwright driver and browsers")
}

// loadRunConfig layers defaults, the run file, properties and flags.
func loadRunConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(runConfigFile)
	if err != nil {
		return nil, err
	}

	if err := cfg.ApplyProperties(cfg.Properties); err != nil {
		return nil, fmt.Errorf("run file properties: %w", err)
	}

	props, err := config.ParseProperties(runProperties)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyProperties(props); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("workers") {
		cfg.Workers = runWorkers
	}
	if flags.Changed("browser") {
		cfg.Browser = runBrowser
	}
	if flags.Changed("env") {
		cfg.Execution = config.ExecutionEnv(strings.ToLower(runExecution))
	}
	if flags.Changed("headless") {
		cfg.Headless = runHeadless
	}
	if flags.Changed("metrics-file") {
		cfg.Metrics.Textfile = runMetricsFile
	}
	cfg.Include = append(cfg.Include, runInclude...)
	cfg.Exclude = append(cfg.Exclude, runExclude...)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// selectTests returns the registered suites filtered by the run's globs.
func selectTests(cfg *config.Config) ([]runner.TestCase, error) {
	all := login.Tests()
	if demo, _ := strconv.ParseBool(cfg.Properties["demo.failure"]); demo {
		all = append(all, login.FailureDemo())
	}

	filter, err := runner.NewFilter(cfg.Include, cfg.Exclude)
	if err != nil {
		return nil, err
	}
	return filter.Apply(all), nil
}

func runTests(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadRunConfig(cmd)
	if err != nil {
		return err
	}

	logging.Configure(logging.Config{Dir: cfg.Logging.Dir, Level: cfg.Logging.Level})
	// On error the returned logger falls back to stderr and says so
	logger, _ := logging.NewLogger("runner")
	defer logger.Close()

	console := runner.NewConsole(cmd.OutOrStdout(), runner.ParseLogLevel(runOutput))

	cases, err := selectTests(cfg)
	if err != nil {
		return err
	}
	if len(cases) == 0 {
		console.Warningf("no tests match the include/exclude patterns")
		return nil
	}

	if runTraceFile != "" {
		tp, closeTrace, err := startTracing(cmd, cfg)
		if err != nil {
			return err
		}
		defer closeTrace()
		defer func() {
			if err := tp.Shutdown(context.WithoutCancel(ctx)); err != nil {
				logger.Warnf("failed to flush traces: %v", err)
			}
		}()
	}

	resolver := config.NewResolver(cfg.Properties)
	build := config.BuildName(resolver, time.Now())

	factory := session.NewFactory(session.FactoryOptions{
		Browsers:    cfg.Browsers,
		ProfileRoot: cfg.ProfileDir,
		Resolver:    resolver,
		Timeouts:    cfg.Timeouts,
		Logger:      logger.With("scope", "session"),
		SkipInstall: runSkipInstall,
	})
	defer func() {
		if err := factory.Shutdown(); err != nil {
			logger.Warnf("%v", err)
		}
	}()

	events.ConfigureDefault(events.DefaultConfig{
		Path: cfg.Events.Path,
		Options: events.Options{
			Environment: cfg.Events.Environment,
			Service:     cfg.Events.Service,
			Logger:      logger.With("scope", "events"),
		},
	})

	var artifacts *runner.ArtifactWriter
	if cfg.Artifacts.Enabled {
		artifacts = runner.NewArtifactWriter(filepath.Join(cfg.Artifacts.OutputDir, "failures"))
	}

	coordinator := runner.NewCoordinator(runner.Options{
		Provisioner: factory,
		Registry:    session.NewRegistry(),
		Emitter:     events.Default(),
		Target: func(tc runner.TestCase) session.Target {
			return session.TargetFromConfig(cfg, tc.Method, build)
		},
		BaseURL:            cfg.BaseURL,
		InteractionTimeout: cfg.Timeouts.Interaction,
		Artifacts:          artifacts,
		Logger:             logger,
		Console:            console,
	})

	console.Header(fmt.Sprintf("uirun v%s: %d test(s) on %d worker(s), %s/%s", version, len(cases), cfg.Workers, cfg.Execution, cfg.Browser))
	logger.Infof("Test suite started: %d test(s), build %q", len(cases), build)

	start := time.Now()
	results, runErr := runner.NewPool(coordinator, cfg.Workers).Run(ctx, cases)
	end := time.Now()

	summary := runner.NewSummary(logger.RunID(), results, start, end)
	summary.Environment = cfg.Events.Environment
	summary.EventLog = cfg.Events.Path
	summary.LogPath = logger.LogPath()
	logger.Infof("%s", summary.FinishLine())

	if cfg.Artifacts.Enabled {
		if err := summary.WriteAll(cfg.Artifacts.OutputDir); err != nil {
			console.Warningf("%v", err)
		}
	}
	if cfg.Metrics.Textfile != "" {
		if err := metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			console.Warningf("metrics textfile not written: %v", err)
		}
	}

	console.Summary(summary)

	if runErr != nil {
		return fmt.Errorf("run interrupted: %w", runErr)
	}
	if !summary.Success() {
		return errTestsFailed
	}
	return nil
}

// startTracing installs a tracer provider exporting to the --trace file.
func startTracing(cmd *cobra.Command, cfg *config.Config) (*telemetry.TracerProvider, func(), error) {
	if dir := filepath.Dir(runTraceFile); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create trace directory: %w", err)
		}
	}
	f, err := os.Create(runTraceFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create trace file: %w", err)
	}
	tp, err := telemetry.NewTracerProvider(cmd.Context(), cfg.Events.Service, cfg.Events.Environment, f)
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	return tp, func() { _ = f.Close() }, nil
}
