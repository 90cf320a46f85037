package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sync"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/uirun/pkg/config"
	"github.com/entrhq/uirun/pkg/driver"
	"github.com/entrhq/uirun/pkg/logging"
	"github.com/entrhq/uirun/pkg/metrics"
)

// playwrightVersion is the driver version bundled with playwright-go and
// reported to providers that pin a server version.
const playwrightVersion = "1.52.0"

const (
	defaultViewportWidth  = 1920
	defaultViewportHeight = 1080
)

var unsafeProfileChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// Provisioner creates sessions for workers.
type Provisioner interface {
	Create(ctx context.Context, workerID string, target Target) (*Session, error)
}

// ProvisionerFunc adapts a function to Provisioner.
type ProvisionerFunc func(ctx context.Context, workerID string, target Target) (*Session, error)

// Create calls f.
func (f ProvisionerFunc) Create(ctx context.Context, workerID string, target Target) (*Session, error) {
	return f(ctx, workerID, target)
}

// FactoryOptions configures a Factory.
type FactoryOptions struct {
	// Browsers holds launch arguments per local browser kind.
	Browsers map[string]config.BrowserConfig

	// ProfileRoot is where per-session profile directories are created.
	ProfileRoot string

	// Resolver supplies remote credentials when a target carries none.
	Resolver *config.Resolver

	Timeouts config.TimeoutConfig

	Logger *logging.Logger

	// SkipInstall skips the driver and browser download on Initialize.
	SkipInstall bool
}

// Factory creates local and remote playwright sessions. The playwright
// driver is started on first use and shared by every session.
type Factory struct {
	mu          sync.Mutex
	pw          *playwright.Playwright
	initialized bool
	opts        FactoryOptions
	logger      *logging.Logger

	// connect dials a remote endpoint; nil uses the playwright driver.
	connect func(browser, endpoint string) (playwright.Browser, error)
}

// NewFactory creates a session factory.
func NewFactory(opts FactoryOptions) *Factory {
	if opts.Resolver == nil {
		opts.Resolver = config.NewResolver(nil)
	}
	if opts.ProfileRoot == "" {
		opts.ProfileRoot = os.TempDir()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	return &Factory{opts: opts, logger: logger}
}

// Initialize installs and starts the playwright driver. Later calls are
// no-ops.
func (f *Factory) Initialize() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.initialized {
		return nil
	}

	// Driver output would interleave with test console output
	opts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}

	if !f.opts.SkipInstall {
		if err := playwright.Install(opts); err != nil {
			return fmt.Errorf("failed to install playwright: %w", err)
		}
	}

	pw, err := playwright.Run(opts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	f.pw = pw
	f.initialized = true
	return nil
}

// Shutdown stops the playwright driver. Sessions must be quit first.
func (f *Factory) Shutdown() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.initialized {
		return nil
	}
	f.initialized = false
	if err := f.pw.Stop(); err != nil {
		return fmt.Errorf("failed to stop playwright: %w", err)
	}
	return nil
}

// Create provisions a session for workerID. It never retries: every failure
// is returned as a *ProvisioningError.
func (f *Factory) Create(ctx context.Context, workerID string, target Target) (*Session, error) {
	fail := func(kind ProvisioningKind, err error) error {
		metrics.RecordProvisioningFailure(kind.String())
		perr := &ProvisioningError{Kind: kind, WorkerID: workerID, Target: target.String(), Err: err}
		f.logger.Warnf("%v", perr)
		return perr
	}

	if err := ctx.Err(); err != nil {
		return nil, fail(LaunchFailure, err)
	}
	if err := target.Validate(); err != nil {
		return nil, fail(UnsupportedTarget, err)
	}
	if target.Remote() && !target.Credentials.complete() {
		creds, err := ResolveCredentials(f.opts.Resolver, target.Kind)
		if err != nil {
			return nil, fail(MissingCredentials, err)
		}
		target.Credentials = creds
	}
	if err := f.Initialize(); err != nil {
		return nil, fail(LaunchFailure, err)
	}

	var (
		s   *Session
		err error
	)
	if target.Remote() {
		s, err = f.connectRemote(workerID, target)
	} else {
		s, err = f.launchLocal(workerID, target)
	}
	if err != nil {
		return nil, fail(LaunchFailure, err)
	}

	metrics.RecordSessionCreated(string(target.Kind), target.Browser)
	f.logger.Infof("Created %s session %s for %s", target, s.ID, workerID)
	return s, nil
}

// browserType maps a browser name to the playwright engine and channel.
func (f *Factory) browserType(browser string) (playwright.BrowserType, string) {
	switch browser {
	case "firefox":
		return f.pw.Firefox, ""
	case "webkit":
		return f.pw.WebKit, ""
	case "edge":
		return f.pw.Chromium, "msedge"
	default:
		return f.pw.Chromium, ""
	}
}

func (f *Factory) launchLocal(workerID string, target Target) (*Session, error) {
	dir, err := os.MkdirTemp(f.opts.ProfileRoot, profilePrefix(workerID))
	if err != nil {
		return nil, fmt.Errorf("failed to create profile directory: %w", err)
	}

	bt, channel := f.browserType(target.Browser)
	opts := playwright.BrowserTypeLaunchPersistentContextOptions{
		Args:     LaunchArgs(f.opts.Browsers, target.Browser, target.Headless),
		Headless: playwright.Bool(target.Headless),
		Viewport: &playwright.Size{Width: defaultViewportWidth, Height: defaultViewportHeight},
	}
	if channel != "" {
		opts.Channel = playwright.String(channel)
	}

	bctx, err := bt.LaunchPersistentContext(dir, opts)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to launch %s: %w", target.Browser, err)
	}

	page, err := firstPage(bctx)
	if err != nil {
		_ = bctx.Close()
		_ = os.RemoveAll(dir)
		return nil, err
	}
	page.SetDefaultTimeout(float64(f.opts.Timeouts.Interaction.Milliseconds()))

	quit := func() error {
		return errors.Join(bctx.Close(), os.RemoveAll(dir))
	}
	return New(uuid.NewString(), workerID, target, driver.NewPlaywrightPage(page, f.opts.Timeouts.PageLoad), quit), nil
}

func (f *Factory) connectRemote(workerID string, target Target) (*Session, error) {
	endpoint, err := Endpoint(target)
	if err != nil {
		return nil, err
	}
	// Credentials live in the endpoint only
	accessKey := target.Credentials.AccessKey
	target.Credentials = Credentials{}

	connect := f.connect
	if connect == nil {
		connect = func(name, endpoint string) (playwright.Browser, error) {
			bt, _ := f.browserType(name)
			return bt.Connect(endpoint)
		}
	}
	browser, err := connect(target.Browser, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", target.Kind, redactEndpoint(err, endpoint, accessKey))
	}

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{Width: defaultViewportWidth, Height: defaultViewportHeight},
	})
	if err != nil {
		_ = browser.Close()
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		_ = browser.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	page.SetDefaultTimeout(float64(f.opts.Timeouts.Interaction.Milliseconds()))

	quit := func() error {
		return errors.Join(bctx.Close(), browser.Close())
	}
	return New(uuid.NewString(), workerID, target, driver.NewPlaywrightPage(page, f.opts.Timeouts.PageLoad), quit), nil
}

// firstPage returns the tab a persistent context opens with, or a new one.
func firstPage(bctx playwright.BrowserContext) (playwright.Page, error) {
	if pages := bctx.Pages(); len(pages) > 0 {
		return pages[0], nil
	}
	page, err := bctx.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	return page, nil
}

// LaunchArgs returns the command-line arguments for a local browser.
// Headless arguments are appended only when headless is set.
func LaunchArgs(browsers map[string]config.BrowserConfig, browser string, headless bool) []string {
	bc, ok := browsers[browser]
	if !ok && (browser == "chromium" || browser == "edge") {
		bc = browsers["chrome"]
	}
	args := append([]string(nil), bc.Args...)
	if headless {
		args = append(args, bc.HeadlessArgs...)
	}
	return args
}

// profilePrefix names a profile directory after its worker.
func profilePrefix(workerID string) string {
	return "profile-" + unsafeProfileChars.ReplaceAllString(workerID, "_") + "-"
}
