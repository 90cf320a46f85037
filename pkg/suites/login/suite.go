// Package login is the demo suite against the practice login site at
// practicetestautomation.com. Page objects sit on the resilient actuator;
// the tests are plain functions over *runner.T.
package login

import (
	"strings"

	"github.com/entrhq/uirun/pkg/runner"
)

const (
	// URL is the login form; configure it as the run's base URL.
	URL = "https://practicetestautomation.com/practice-test-login/"

	Suite = "Login Feature"
	Class = "LoginTest"
)

// Credentials for the practice site
const (
	ValidUsername   = "student"
	ValidPassword   = "Password123"
	InvalidUsername = "invalidUser"
	InvalidPassword = "invalidPass"
)

func testCase(method, story, severity string, body func(*runner.T)) runner.TestCase {
	return runner.TestCase{
		Class:  Class,
		Method: method,
		Suite:  Suite,
		Attributes: map[string]string{
			"feature":  "User Authentication",
			"story":    story,
			"severity": severity,
		},
		Body: body,
	}
}

// Tests returns the login suite in priority order.
func Tests() []runner.TestCase {
	return []runner.TestCase{
		testCase("testValidLogin", "Valid Login", "CRITICAL", ValidLogin),
		testCase("testInvalidUsername", "Invalid Login", "NORMAL", InvalidUsernameRejected),
		testCase("testInvalidPassword", "Invalid Login", "NORMAL", InvalidPasswordRejected),
		testCase("testLogout", "Logout", "CRITICAL", Logout),
	}
}

// FailureDemo is a test that always fails after logging in, to check that
// failure artifacts are captured.
func FailureDemo() runner.TestCase {
	return testCase("testIntentionalFailureForScreenshot", "Screenshot Test", "MINOR", IntentionalFailure)
}

// ValidLogin logs in and expects the dashboard.
func ValidLogin(t *runner.T) {
	t.Logf("Starting valid login test")

	dashboard, err := NewLoginPage(t.Actuator(), t.Logger()).LoginAs(ValidUsername, ValidPassword)
	t.NoError(err)

	t.Assert(dashboard.IsOnDashboardPage(), "User should be redirected to dashboard after successful login")
	t.Assert(dashboard.IsSuccessMessageDisplayed(), "Success message should be displayed after login")
	t.Assert(dashboard.IsLogoutButtonDisplayed(), "Logout button should be visible on dashboard")

	t.Logf("Valid login test completed successfully")
}

// InvalidUsernameRejected expects the username error banner.
func InvalidUsernameRejected(t *runner.T) {
	t.Logf("Starting invalid username test")

	page := NewLoginPage(t.Actuator(), t.Logger())
	t.NoError(page.LoginWithInvalidCredentials(InvalidUsername, ValidPassword))

	t.Assert(page.IsErrorMessageDisplayed(), "Error message should be displayed for invalid username")
	text, err := page.ErrorText()
	t.NoError(err)
	t.Assertf(strings.Contains(text, "Your username is invalid"),
		"Error message should indicate invalid username, got %q", text)
}

// InvalidPasswordRejected expects the password error banner.
func InvalidPasswordRejected(t *runner.T) {
	t.Logf("Starting invalid password test")

	page := NewLoginPage(t.Actuator(), t.Logger())
	t.NoError(page.LoginWithInvalidCredentials(ValidUsername, InvalidPassword))

	t.Assert(page.IsErrorMessageDisplayed(), "Error message should be displayed for invalid password")
	text, err := page.ErrorText()
	t.NoError(err)
	t.Assertf(strings.Contains(text, "Your password is invalid"),
		"Error message should indicate invalid password, got %q", text)
}

// Logout logs in, logs out and expects the login form again.
func Logout(t *runner.T) {
	t.Logf("Starting logout test")

	dashboard, err := NewLoginPage(t.Actuator(), t.Logger()).LoginAs(ValidUsername, ValidPassword)
	t.NoError(err)
	t.Assert(dashboard.IsOnDashboardPage(), "User should be on dashboard page")

	page, err := dashboard.Logout()
	t.NoError(err)
	t.Assert(page.IsUsernameFieldDisplayed(), "Username field should be displayed after logout")
}

// IntentionalFailure logs in and then fails an impossible assertion.
func IntentionalFailure(t *runner.T) {
	dashboard, err := NewLoginPage(t.Actuator(), t.Logger()).LoginAs(ValidUsername, ValidPassword)
	t.NoError(err)
	t.Assert(dashboard.IsOnDashboardPage(), "User should be on dashboard page")

	url := t.Actuator().CurrentURL()
	t.Assertf(url == "https://example.invalid/intentional-failure",
		"INTENTIONAL FAILURE: expected to land on a page that does not exist, got %s", url)
}
