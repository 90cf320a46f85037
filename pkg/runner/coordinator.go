// Package runner glues the session, actuator and event packages into a
// test run. A Coordinator runs one test on one worker: it emits STARTED,
// provisions and binds a session, runs the body, captures failure
// artifacts, emits the terminal event and releases the session on every
// exit path. A Pool fans a list of test cases out over N workers.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/entrhq/uirun/pkg/actuator"
	"github.com/entrhq/uirun/pkg/events"
	"github.com/entrhq/uirun/pkg/logging"
	"github.com/entrhq/uirun/pkg/metrics"
	"github.com/entrhq/uirun/pkg/session"
	"github.com/entrhq/uirun/pkg/telemetry"
)

const durationRounding = time.Millisecond

// Result is the outcome of one test run.
type Result struct {
	TestID     string         `json:"test_id"`
	Name       string         `json:"name"`
	WorkerID   string         `json:"worker_id"`
	Status     events.Status  `json:"status"`
	Duration   time.Duration  `json:"duration"`
	Message    string         `json:"message,omitempty"`
	Stacktrace string         `json:"-"`
	Artifacts  *Artifacts     `json:"artifacts,omitempty"`
	Err        error          `json:"-"`
	Target     session.Target `json:"-"`
}

// Options configures a Coordinator.
type Options struct {
	Provisioner session.Provisioner
	Registry    *session.Registry
	Emitter     *events.Emitter

	// Target returns the session target for a test case.
	Target func(tc TestCase) session.Target

	// BaseURL is opened in every fresh session before the body runs.
	// Empty skips navigation.
	BaseURL string

	// InteractionTimeout bounds each actuator precondition wait.
	InteractionTimeout time.Duration

	// Artifacts captures failure artifacts. Nil disables capture.
	Artifacts *ArtifactWriter

	Logger  *logging.Logger
	Console *Console

	// Clock returns the current time. Nil uses time.Now.
	Clock func() time.Time
}

// Coordinator runs single tests. It is safe for concurrent use as long as
// each goroutine uses its own worker id.
type Coordinator struct {
	opts   Options
	logger *logging.Logger
	now    func() time.Time
}

// NewCoordinator creates a coordinator.
func NewCoordinator(opts Options) *Coordinator {
	if opts.Registry == nil {
		opts.Registry = session.NewRegistry()
	}
	if opts.Target == nil {
		opts.Target = func(TestCase) session.Target {
			return session.Target{Kind: session.KindLocal, Browser: "chrome"}
		}
	}
	if opts.InteractionTimeout <= 0 {
		opts.InteractionTimeout = actuator.DefaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &Coordinator{opts: opts, logger: logger, now: now}
}

// Registry returns the session registry shared by the coordinator's
// workers.
func (c *Coordinator) Registry() *session.Registry {
	return c.opts.Registry
}

// Run executes tc on workerID and returns its result. Run never panics on
// test failures; every started test gets exactly one terminal event.
func (c *Coordinator) Run(ctx context.Context, workerID string, tc TestCase) Result {
	start := c.now()
	info := events.TestInfo{
		TestID:     events.NewTestID(tc.Class, tc.Method, start),
		TestName:   tc.Method,
		SuiteName:  tc.Suite,
		ClassName:  tc.Class,
		Attributes: tc.Attributes,
	}

	ctx, span := telemetry.StartTestSpan(ctx, info.TestID, tc.Class, tc.Method, workerID)
	logger := c.logger.With("worker_id", workerID).With("test_id", info.TestID)

	c.opts.Emitter.EmitStart(info)

	var res Result
	if tc.Skip != "" {
		ev := c.opts.Emitter.EmitSkipped(info, tc.Skip)
		res = Result{Status: events.StatusSkipped, Message: ev.Message()}
	} else {
		res = c.execute(ctx, workerID, tc, info, logger)
	}

	res.TestID = info.TestID
	res.Name = tc.Name()
	res.WorkerID = workerID
	res.Duration = c.now().Sub(start)

	metrics.RecordTest(string(res.Status), res.Duration)
	telemetry.EndTestSpan(span, string(res.Status), res.Err)
	c.opts.Console.TestResult(res)
	return res
}

func (c *Coordinator) execute(ctx context.Context, workerID string, tc TestCase, info events.TestInfo, logger *logging.Logger) Result {
	target := c.opts.Target(tc)

	s, err := c.opts.Provisioner.Create(ctx, workerID, target)
	if err != nil {
		logger.Warnf("session provisioning failed: %v", err)
		return c.fail(info, Result{Target: target}, err)
	}

	if err := c.opts.Registry.Bind(workerID, s); err != nil {
		if qerr := s.Quit(); qerr != nil {
			logger.Warnf("failed to quit unbound session: %v", qerr)
		}
		return c.fail(info, Result{Target: target}, err)
	}
	defer func() {
		if err := c.opts.Registry.Release(workerID); err != nil {
			logger.Warnf("session release: %v", err)
		}
	}()

	telemetry.AddEvent(ctx, "session.bound",
		telemetry.AttrSessionID.String(s.ID),
		telemetry.AttrTarget.String(s.Target.String()))

	t := &T{
		ctx:     ctx,
		testID:  info.TestID,
		session: s,
		actuator: actuator.New(s.Page(),
			actuator.WithTimeout(c.opts.InteractionTimeout),
			actuator.WithLogger(logger)),
		logger: logger,
	}

	err = c.open(t)
	if err == nil {
		err = runBody(t, tc.Body)
	}

	res := Result{Target: s.Target}
	if err != nil && c.opts.Artifacts != nil {
		arts, aerr := c.opts.Artifacts.Capture(t, info.TestID)
		if aerr != nil {
			logger.Warnf("artifact capture incomplete: %v", aerr)
		}
		if arts != nil {
			res.Artifacts = arts
			info.Attributes = mergeAttributes(info.Attributes, arts.Attributes())
		}
	}

	reason := "Test passed"
	if err != nil {
		reason = err.Error()
	}
	if serr := s.ReportStatus(err == nil, reason); serr != nil {
		var pse *session.ProviderStatusError
		if errors.As(serr, &pse) {
			metrics.RecordProviderStatusFailure(string(pse.Provider))
		}
		logger.Debugf("provider status not reported: %v", serr)
	}

	if err != nil {
		return c.fail(info, res, err)
	}

	c.opts.Emitter.EmitSuccess(info)
	res.Status = events.StatusPassed
	return res
}

// open navigates a fresh session to the base URL.
func (c *Coordinator) open(t *T) error {
	if c.opts.BaseURL == "" {
		return nil
	}
	if err := t.actuator.Open(c.opts.BaseURL); err != nil {
		return fmt.Errorf("failed to open %s: %w", c.opts.BaseURL, err)
	}
	return nil
}

func (c *Coordinator) fail(info events.TestInfo, res Result, err error) Result {
	stack := stacktraceOf(err)
	ev := c.opts.Emitter.EmitFailure(info, err.Error(), stack)
	res.Status = events.StatusFailed
	res.Message = ev.Message()
	res.Stacktrace = stack
	res.Err = err
	return res
}

// stacktraceOf returns the stack captured with err, or the current stack
// when err carries none.
func stacktraceOf(err error) string {
	var st stackTracer
	if errors.As(err, &st) && st.Stacktrace() != "" {
		return st.Stacktrace()
	}
	return captureStack(err)
}

func mergeAttributes(base, extra map[string]string) map[string]string {
	merged := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}
