// Package logintest simulates the practice login site on a drivertest page
// so the login suite can run without a browser.
package logintest

import (
	"sync"

	"github.com/entrhq/uirun/pkg/driver/drivertest"
	"github.com/entrhq/uirun/pkg/suites/login"
)

// DashboardURL is where a successful login lands.
const DashboardURL = "https://practicetestautomation.com/logged-in-successfully/"

// App drives a FakePage through the login and dashboard screens. Every
// screen change detaches the previous screen's elements.
type App struct {
	Page *drivertest.FakePage

	mu      sync.Mutex
	current []*drivertest.FakeElement
	logins  int
}

// NewApp returns the site showing the login form.
func NewApp() *App {
	a := &App{Page: drivertest.NewPage()}
	a.showLogin("")
	a.Page.SetURL(login.URL)
	return a
}

// Logins returns the number of successful logins.
func (a *App) Logins() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.logins
}

// replace detaches the current screen and registers els.
func (a *App) replace(els map[string]*drivertest.FakeElement) {
	a.mu.Lock()
	old := a.current
	a.current = nil
	for _, el := range els {
		a.current = append(a.current, el)
	}
	a.mu.Unlock()

	for _, el := range old {
		el.Detach()
	}
	for _, locator := range []string{
		login.UsernameField, login.PasswordField, login.SubmitButton, login.ErrorMessage,
		login.SuccessMessage, login.LogoutButton, login.WelcomeMessage,
	} {
		a.Page.Remove(locator)
	}
	for locator, el := range els {
		a.Page.Add(locator, el)
	}
}

func (a *App) showLogin(errText string) {
	username := drivertest.NewElement("")
	password := drivertest.NewElement("")
	submit := drivertest.NewElement("Submit")
	banner := drivertest.NewElement(errText)
	banner.SetHidden(errText == "")

	submit.OnClick = func() { a.submit(username.Value(), password.Value()) }

	a.replace(map[string]*drivertest.FakeElement{
		login.UsernameField: username,
		login.PasswordField: password,
		login.SubmitButton:  submit,
		login.ErrorMessage:  banner,
	})
}

func (a *App) showDashboard(username string) {
	logout := drivertest.NewElement("Log out")
	logout.OnClick = func() {
		a.showLogin("")
		a.Page.SetURL(login.URL)
	}

	a.replace(map[string]*drivertest.FakeElement{
		login.SuccessMessage: drivertest.NewElement("Logged In Successfully"),
		login.LogoutButton:   logout,
		login.WelcomeMessage: drivertest.NewElement("Congratulations " + username + ". You successfully logged in!"),
	})
	a.Page.SetURL(DashboardURL)
}

func (a *App) submit(username, password string) {
	switch {
	case username != login.ValidUsername:
		a.showLogin("Your username is invalid!")
	case password != login.ValidPassword:
		a.showLogin("Your password is invalid!")
	default:
		a.mu.Lock()
		a.logins++
		a.mu.Unlock()
		a.showDashboard(username)
	}
}
