package login

import (
	"strings"

	"github.com/entrhq/uirun/pkg/actuator"
	"github.com/entrhq/uirun/pkg/logging"
)

// Locators on the practice login site
const (
	UsernameField  = "#username"
	PasswordField  = "#password"
	SubmitButton   = "#submit"
	ErrorMessage   = "#error"
	SuccessMessage = ".post-title"
	LogoutButton   = "text=Log out"
	WelcomeMessage = ".has-text-align-center strong"

	// dashboardPath is part of the URL after a successful login
	dashboardPath = "logged-in-successfully"
)

// LoginPage is the login form.
type LoginPage struct {
	act    *actuator.Actuator
	logger *logging.Logger

	username *actuator.Target
	password *actuator.Target
	submit   *actuator.Target
	errorMsg *actuator.Target
}

// NewLoginPage binds the login form to an actuator. A nil logger discards.
func NewLoginPage(act *actuator.Actuator, logger *logging.Logger) *LoginPage {
	if logger == nil {
		logger = logging.Nop()
	}
	return &LoginPage{
		act:      act,
		logger:   logger,
		username: actuator.Locate(UsernameField),
		password: actuator.Locate(PasswordField),
		submit:   actuator.Locate(SubmitButton),
		errorMsg: actuator.Locate(ErrorMessage),
	}
}

// EnterUsername types into the username field.
func (p *LoginPage) EnterUsername(username string) error {
	p.logger.Infof("Entering username: %s", username)
	return p.act.Type(p.username, username)
}

// EnterPassword types into the password field.
func (p *LoginPage) EnterPassword(password string) error {
	p.logger.Infof("Entering password")
	return p.act.Type(p.password, password)
}

// Submit clicks the submit button. The form submission replaces the DOM.
func (p *LoginPage) Submit() error {
	p.logger.Infof("Clicking submit button")
	defer p.act.Invalidate()
	return p.act.Click(p.submit)
}

func (p *LoginPage) fillAndSubmit(username, password string) error {
	if err := p.EnterUsername(username); err != nil {
		return err
	}
	if err := p.EnterPassword(password); err != nil {
		return err
	}
	return p.Submit()
}

// LoginAs submits the form and returns the dashboard the site should land
// on.
func (p *LoginPage) LoginAs(username, password string) (*DashboardPage, error) {
	if err := p.fillAndSubmit(username, password); err != nil {
		return nil, err
	}
	p.logger.Infof("Login attempted with username: %s", username)
	return NewDashboardPage(p.act, p.logger), nil
}

// LoginWithInvalidCredentials submits the form and stays on the login page.
func (p *LoginPage) LoginWithInvalidCredentials(username, password string) error {
	if err := p.fillAndSubmit(username, password); err != nil {
		return err
	}
	p.logger.Infof("Login attempted with invalid credentials")
	return nil
}

// ErrorText returns the error banner text.
func (p *LoginPage) ErrorText() (string, error) {
	return p.act.ReadText(p.errorMsg)
}

// IsErrorMessageDisplayed reports whether the error banner is shown.
func (p *LoginPage) IsErrorMessageDisplayed() bool {
	return p.act.IsVisible(p.errorMsg)
}

// IsUsernameFieldDisplayed reports whether the form is shown.
func (p *LoginPage) IsUsernameFieldDisplayed() bool {
	return p.act.IsVisible(p.username)
}

// DashboardPage is the page shown after a successful login.
type DashboardPage struct {
	act    *actuator.Actuator
	logger *logging.Logger

	success *actuator.Target
	logout  *actuator.Target
	welcome *actuator.Target
}

// NewDashboardPage binds the dashboard to an actuator.
func NewDashboardPage(act *actuator.Actuator, logger *logging.Logger) *DashboardPage {
	if logger == nil {
		logger = logging.Nop()
	}
	return &DashboardPage{
		act:     act,
		logger:  logger,
		success: actuator.Locate(SuccessMessage),
		logout:  actuator.Locate(LogoutButton),
		welcome: actuator.Locate(WelcomeMessage),
	}
}

// IsOnDashboardPage checks the current URL.
func (p *DashboardPage) IsOnDashboardPage() bool {
	return strings.Contains(p.act.CurrentURL(), dashboardPath)
}

func (p *DashboardPage) IsSuccessMessageDisplayed() bool {
	return p.act.IsVisible(p.success)
}

func (p *DashboardPage) SuccessMessageText() (string, error) {
	return p.act.ReadText(p.success)
}

func (p *DashboardPage) IsLogoutButtonDisplayed() bool {
	return p.act.IsVisible(p.logout)
}

func (p *DashboardPage) WelcomeText() (string, error) {
	return p.act.ReadText(p.welcome)
}

// Logout clicks the logout link and returns the login form.
func (p *DashboardPage) Logout() (*LoginPage, error) {
	p.logger.Infof("Clicking logout button")
	defer p.act.Invalidate()
	if err := p.act.Click(p.logout); err != nil {
		return nil, err
	}
	return NewLoginPage(p.act, p.logger), nil
}
