package runner

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/uirun/pkg/actuator"
	"github.com/entrhq/uirun/pkg/driver/drivertest"
	"github.com/entrhq/uirun/pkg/events"
	"github.com/entrhq/uirun/pkg/metrics"
	"github.com/entrhq/uirun/pkg/session"
)

const baseURL = "https://example.test/login"

type fakeClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

type harness struct {
	sink      *events.MemorySink
	page      *drivertest.FakePage
	registry  *session.Registry
	target    session.Target
	quits     atomic.Int32
	creates   atomic.Int32
	createErr error
	artifacts *ArtifactWriter
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return &harness{
		sink:      events.NewMemorySink(),
		page:      drivertest.NewPage(),
		registry:  session.NewRegistry(),
		target:    session.Target{Kind: session.KindLocal, Browser: "chrome"},
		artifacts: NewArtifactWriter(t.TempDir()),
	}
}

func (h *harness) provisioner() session.Provisioner {
	return session.ProvisionerFunc(func(ctx context.Context, workerID string, target session.Target) (*session.Session, error) {
		h.creates.Add(1)
		if h.createErr != nil {
			return nil, h.createErr
		}
		return session.New(uuid.NewString(), workerID, target, h.page, func() error {
			h.quits.Add(1)
			return nil
		}), nil
	})
}

func (h *harness) coordinator() *Coordinator {
	clock := &fakeClock{now: time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC), step: 250 * time.Millisecond}
	emitter := events.NewEmitter(h.sink, events.Options{
		Environment: "ci",
		Service:     "uirun-ui-tests",
		Clock:       clock.Now,
	})
	return NewCoordinator(Options{
		Provisioner:        h.provisioner(),
		Registry:           h.registry,
		Emitter:            emitter,
		Target:             func(TestCase) session.Target { return h.target },
		BaseURL:            baseURL,
		InteractionTimeout: 50 * time.Millisecond,
		Artifacts:          h.artifacts,
	})
}

func (h *harness) records(t *testing.T) []events.Record {
	t.Helper()
	records, err := h.sink.Records()
	require.NoError(t, err)
	return records
}

func requireLifecycle(t *testing.T, records []events.Record, terminal events.Status) events.Record {
	t.Helper()
	require.Len(t, records, 2)
	assert.Equal(t, events.StatusStarted, records[0].Status)
	assert.Equal(t, terminal, records[1].Status)
	assert.Equal(t, records[0].TestID, records[1].TestID)
	return records[1]
}

func TestRunPassingTest(t *testing.T) {
	h := newHarness(t)
	button := h.page.Add("#go", drivertest.NewElement("Go"))

	res := h.coordinator().Run(context.Background(), "worker-1", TestCase{
		Class:  "SmokeTest",
		Method: "testClick",
		Suite:  "Smoke",
		Body: func(t *T) {
			t.NoError(t.Actuator().Click(actuator.Locate("#go")))
			t.Assert(t.Session().OwnerWorkerID == "worker-1", "session belongs to the worker")
		},
	})

	assert.Equal(t, events.StatusPassed, res.Status)
	assert.NoError(t, res.Err)
	assert.Equal(t, "SmokeTest.testClick", res.Name)
	assert.True(t, strings.HasPrefix(res.TestID, "SmokeTest.testClick_"))

	end := requireLifecycle(t, h.records(t), events.StatusPassed)
	require.NotNil(t, end.DurationMs)
	assert.Greater(t, *end.DurationMs, int64(0))
	assert.Equal(t, "Smoke", end.SuiteName)
	assert.Empty(t, end.Stacktrace)

	assert.Equal(t, 1, button.Clicks())
	assert.Equal(t, []string{baseURL}, h.page.Visited())
	assert.Equal(t, 0, h.registry.Len(), "session is released")
	assert.Equal(t, int32(1), h.quits.Load())
}

func TestFailureSignatureIsStableAcrossWorkers(t *testing.T) {
	h := newHarness(t)
	c := h.coordinator()
	tc := TestCase{
		Class:  "LoginTest",
		Method: "testValidLogin",
		Body:   func(t *T) { t.Assert(false, "should see dashboard") },
	}

	// Each run on its own goroutine, as pool workers do
	var wg sync.WaitGroup
	for _, worker := range []string{"worker-1", "worker-2"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Run(context.Background(), worker, tc)
		}()
		wg.Wait()
	}

	failures := events.Failures(h.records(t))
	require.Len(t, failures, 2)
	assert.True(t, strings.HasPrefix(failures[0].Stacktrace, "*runner.AssertionError: should see dashboard\n"), failures[0].Stacktrace)

	want := "Test: testValidLogin | Class: LoginTest | Error: should see dashboard | Exception: *runner.AssertionError: should see dashboard"
	assert.Equal(t, want, events.FailureSignature(failures[0]))
	assert.Equal(t, want, events.FailureSignature(failures[1]))
}

func TestRunAssertionFailure(t *testing.T) {
	h := newHarness(t)
	h.page.HTML = "<html><body>wrong page</body></html>"

	res := h.coordinator().Run(context.Background(), "worker-1", TestCase{
		Class:  "LoginTest",
		Method: "testValidLogin",
		Body: func(t *T) {
			t.Assert(false, "User should be redirected to dashboard after successful login")
			panic("not reached")
		},
	})

	assert.Equal(t, events.StatusFailed, res.Status)
	var aerr *AssertionError
	require.True(t, errors.As(res.Err, &aerr))

	end := requireLifecycle(t, h.records(t), events.StatusFailed)
	assert.Equal(t, "User should be redirected to dashboard after successful login", end.Message)
	assert.Contains(t, end.Stacktrace, "runner.TestRunAssertionFailure")

	require.NotNil(t, res.Artifacts)
	assert.Equal(t, res.Artifacts.Screenshot, end.Attributes["screenshot"])
	html, err := os.ReadFile(res.Artifacts.PageSource)
	require.NoError(t, err)
	assert.Equal(t, h.page.HTML, string(html))

	assert.Equal(t, 0, h.registry.Len())
	assert.Equal(t, int32(1), h.quits.Load())
}

func TestRunInteractionFailureKeepsItsStack(t *testing.T) {
	h := newHarness(t)

	res := h.coordinator().Run(context.Background(), "worker-1", TestCase{
		Class:  "LoginTest",
		Method: "testMissingButton",
		Body: func(t *T) {
			t.NoError(t.Actuator().Click(actuator.Locate("#missing")))
		},
	})

	var ierr *actuator.InteractionError
	require.True(t, errors.As(res.Err, &ierr))
	assert.Equal(t, actuator.Timeout, ierr.Kind)

	end := requireLifecycle(t, h.records(t), events.StatusFailed)
	assert.Contains(t, end.Message, "#missing")
	assert.Equal(t, ierr.Stacktrace(), end.Stacktrace)
}

func TestRunRecoversPanics(t *testing.T) {
	h := newHarness(t)

	res := h.coordinator().Run(context.Background(), "worker-1", TestCase{
		Class:  "SmokeTest",
		Method: "testPanics",
		Body:   func(*T) { panic("boom") },
	})

	var perr *PanicError
	require.True(t, errors.As(res.Err, &perr))
	end := requireLifecycle(t, h.records(t), events.StatusFailed)
	assert.Equal(t, "panic: boom", end.Message)
	assert.NotEmpty(t, end.Stacktrace)
	assert.Equal(t, int32(1), h.quits.Load(), "the session is released after a panic")
}

func TestRunProvisioningFailureStillEmitsFailed(t *testing.T) {
	h := newHarness(t)
	h.target = session.Target{Kind: session.KindBrowserStack, Browser: "chrome"}
	h.createErr = &session.ProvisioningError{
		Kind:     session.MissingCredentials,
		WorkerID: "worker-1",
		Target:   h.target.String(),
		Err:      errors.New("browserstack credentials not set: BROWSERSTACK_USERNAME / browserstack.username"),
	}

	res := h.coordinator().Run(context.Background(), "worker-1", TestCase{
		Class:  "LoginTest",
		Method: "testValidLogin",
		Body:   func(*T) { t.Fatal("body must not run without a session") },
	})

	assert.True(t, session.IsProvisioningKind(res.Err, session.MissingCredentials))
	end := requireLifecycle(t, h.records(t), events.StatusFailed)
	assert.Contains(t, end.Message, "BROWSERSTACK_USERNAME")
	assert.NotEmpty(t, end.Stacktrace)
	assert.Nil(t, res.Artifacts)
	assert.Equal(t, 0, h.registry.Len())
}

func TestRunSkipped(t *testing.T) {
	h := newHarness(t)

	res := h.coordinator().Run(context.Background(), "worker-1", TestCase{
		Class:  "LoginTest",
		Method: "testSso",
		Skip:   "SSO is not enabled on the practice site",
		Body:   func(*T) { t.Fatal("skipped body ran") },
	})

	assert.Equal(t, events.StatusSkipped, res.Status)
	end := requireLifecycle(t, h.records(t), events.StatusSkipped)
	assert.Equal(t, "SSO is not enabled on the practice site", end.Message)
	assert.Nil(t, end.DurationMs)
	assert.Equal(t, int32(0), h.creates.Load(), "no session for a skipped test")
}

func TestRunNavigationFailure(t *testing.T) {
	h := newHarness(t)
	h.page.NavigateErr = errors.New("net::ERR_NAME_NOT_RESOLVED")
	ran := false

	res := h.coordinator().Run(context.Background(), "worker-1", TestCase{
		Class:  "LoginTest",
		Method: "testValidLogin",
		Body:   func(*T) { ran = true },
	})

	assert.False(t, ran)
	end := requireLifecycle(t, h.records(t), events.StatusFailed)
	assert.Contains(t, end.Message, "ERR_NAME_NOT_RESOLVED")
	assert.Contains(t, end.Message, baseURL)
	assert.Equal(t, int32(1), h.quits.Load())
	assert.Equal(t, events.StatusFailed, res.Status)
}

func TestRunOnBusyWorkerQuitsTheNewSession(t *testing.T) {
	h := newHarness(t)
	held := session.New("held", "worker-1", h.target, drivertest.NewPage(), nil)
	require.NoError(t, h.registry.Bind("worker-1", held))

	res := h.coordinator().Run(context.Background(), "worker-1", TestCase{
		Class:  "SmokeTest",
		Method: "testBusy",
		Body:   func(*T) {},
	})

	assert.ErrorIs(t, res.Err, session.ErrWorkerBusy)
	assert.Equal(t, int32(1), h.quits.Load(), "the session that could not be bound is quit")
	got, ok := h.registry.Get("worker-1")
	require.True(t, ok)
	assert.Same(t, held, got, "the existing binding is untouched")
}

func TestProviderStatusFailureIsIgnored(t *testing.T) {
	h := newHarness(t)
	h.target = session.Target{Kind: session.KindLambdaTest, Browser: "chrome"}
	h.page.EvaluateErr = errors.New("target closed")
	before := testutil.ToFloat64(metrics.ProviderStatusFailuresTotal.WithLabelValues(string(session.KindLambdaTest)))

	res := h.coordinator().Run(context.Background(), "worker-1", TestCase{
		Class:  "SmokeTest",
		Method: "testRemote",
		Body:   func(*T) {},
	})

	assert.Equal(t, events.StatusPassed, res.Status)
	requireLifecycle(t, h.records(t), events.StatusPassed)
	assert.Len(t, h.page.Scripts(), 1, "status was attempted")
	after := testutil.ToFloat64(metrics.ProviderStatusFailuresTotal.WithLabelValues(string(session.KindLambdaTest)))
	assert.Equal(t, before+1, after)
}

func TestRunWithoutBody(t *testing.T) {
	h := newHarness(t)
	res := h.coordinator().Run(context.Background(), "worker-1", TestCase{Class: "Empty", Method: "testNothing"})
	assert.Equal(t, events.StatusFailed, res.Status)
	assert.Contains(t, res.Message, "no body")
}
