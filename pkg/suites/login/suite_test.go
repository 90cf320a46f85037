package login_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/uirun/pkg/actuator"
	"github.com/entrhq/uirun/pkg/events"
	"github.com/entrhq/uirun/pkg/runner"
	"github.com/entrhq/uirun/pkg/session"
	"github.com/entrhq/uirun/pkg/suites/login"
	"github.com/entrhq/uirun/pkg/suites/login/logintest"
)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(700 * time.Millisecond)
	return t
}

// runOnApp runs tc against a fresh simulated site.
func runOnApp(t *testing.T, tc runner.TestCase) (runner.Result, []events.Record, *logintest.App) {
	t.Helper()
	app := logintest.NewApp()
	sink := events.NewMemorySink()
	clock := &stepClock{now: time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC)}

	coord := runner.NewCoordinator(runner.Options{
		Provisioner: session.ProvisionerFunc(func(ctx context.Context, workerID string, target session.Target) (*session.Session, error) {
			return session.New("fake-session", workerID, target, app.Page, nil), nil
		}),
		Emitter:            events.NewEmitter(sink, events.Options{Environment: "ci", Clock: clock.Now}),
		BaseURL:            login.URL,
		InteractionTimeout: 20 * time.Millisecond,
		Artifacts:          runner.NewArtifactWriter(t.TempDir()),
	})

	res := coord.Run(context.Background(), "worker-1", tc)
	records, err := sink.Records()
	require.NoError(t, err)
	return res, records, app
}

func TestLoginSuitePasses(t *testing.T) {
	for _, tc := range login.Tests() {
		t.Run(tc.Method, func(t *testing.T) {
			res, records, _ := runOnApp(t, tc)
			require.NoError(t, res.Err)
			assert.Equal(t, events.StatusPassed, res.Status)

			require.Len(t, records, 2)
			assert.Equal(t, events.StatusStarted, records[0].Status)
			assert.Equal(t, events.StatusPassed, records[1].Status)
			assert.Equal(t, login.Class, records[1].ClassName)
			assert.Equal(t, login.Suite, records[1].SuiteName)
			require.NotNil(t, records[1].DurationMs)
			assert.Greater(t, *records[1].DurationMs, int64(0))
		})
	}
}

func TestValidLoginLogsInOnce(t *testing.T) {
	_, _, app := runOnApp(t, login.Tests()[0])
	assert.Equal(t, 1, app.Logins())
	assert.Equal(t, logintest.DashboardURL, app.Page.URL())
}

func TestIntentionalFailureIsReported(t *testing.T) {
	res, records, _ := runOnApp(t, login.FailureDemo())

	assert.Equal(t, events.StatusFailed, res.Status)
	require.Len(t, records, 2)
	end := records[1]
	assert.Equal(t, events.StatusFailed, end.Status)
	assert.Contains(t, end.Message, "INTENTIONAL FAILURE")
	assert.Contains(t, end.Message, logintest.DashboardURL)
	assert.NotEmpty(t, end.Stacktrace)
	assert.NotEmpty(t, end.Attributes["screenshot"], "failure artifacts are linked from the event")
	assert.Equal(t, "MINOR", end.Attributes["severity"])
}

func TestValidLoginFailsAgainstBrokenSite(t *testing.T) {
	tc := login.Tests()[0]

	app := logintest.NewApp()
	app.Page.Remove(login.SubmitButton)

	sink := events.NewMemorySink()
	coord := runner.NewCoordinator(runner.Options{
		Provisioner: session.ProvisionerFunc(func(ctx context.Context, workerID string, target session.Target) (*session.Session, error) {
			return session.New("fake-session", workerID, target, app.Page, nil), nil
		}),
		Emitter:            events.NewEmitter(sink, events.Options{}),
		InteractionTimeout: 20 * time.Millisecond,
	})

	res := coord.Run(context.Background(), "worker-1", tc)
	assert.Equal(t, events.StatusFailed, res.Status)

	var ierr *actuator.InteractionError
	require.ErrorAs(t, res.Err, &ierr)
	assert.Equal(t, "click", ierr.Action)
	assert.Equal(t, login.SubmitButton, ierr.Locator)
}

func TestPagesAgainstSimulatedSite(t *testing.T) {
	app := logintest.NewApp()
	act := actuator.New(app.Page, actuator.WithTimeout(20*time.Millisecond))
	page := login.NewLoginPage(act, nil)

	require.NoError(t, page.LoginWithInvalidCredentials(login.InvalidUsername, login.ValidPassword))
	assert.True(t, page.IsErrorMessageDisplayed())
	text, err := page.ErrorText()
	require.NoError(t, err)
	assert.Equal(t, "Your username is invalid!", text)

	dashboard, err := page.LoginAs(login.ValidUsername, login.ValidPassword)
	require.NoError(t, err)
	assert.True(t, dashboard.IsOnDashboardPage())
	assert.True(t, dashboard.IsSuccessMessageDisplayed())
	msg, err := dashboard.SuccessMessageText()
	require.NoError(t, err)
	assert.Equal(t, "Logged In Successfully", msg)
	welcome, err := dashboard.WelcomeText()
	require.NoError(t, err)
	assert.Contains(t, welcome, "Congratulations student")
	assert.False(t, page.IsErrorMessageDisplayed(), "the login form is gone")

	back, err := dashboard.Logout()
	require.NoError(t, err)
	assert.True(t, back.IsUsernameFieldDisplayed())
	assert.False(t, dashboard.IsOnDashboardPage())
}
