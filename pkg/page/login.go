package page

import (
	"context"
	"time"

	"github.com/devicelab-dev/pageflow/pkg/action"
	"github.com/devicelab-dev/pageflow/pkg/core"
)

// LoginName is the registry name of LoginPage.
const LoginName = "login"

// Login screen locators
var (
	LoginUsername = core.ByID("user-name")
	LoginPassword = core.ByID("password")
	LoginButton   = core.ByID("login-button")
	LoginError    = core.ByCSS("[data-test='error']")
)

// errorGrace bounds how long the error banner may take to render.
const errorGrace = 2 * time.Second

// LoginPage models the login screen.
type LoginPage struct {
	Base
}

// NewLoginPage creates a LoginPage.
func NewLoginPage(e *action.Executor, baseURL string) *LoginPage {
	return &LoginPage{Base: NewBase(e, baseURL)}
}

func (p *LoginPage) Name() string { return LoginName }

// Load opens the login screen.
func (p *LoginPage) Load(ctx context.Context) error {
	return p.Open(ctx, "/")
}

// Login fills the form and submits it. It does not wait for the outcome.
func (p *LoginPage) Login(ctx context.Context, username, password string) error {
	if err := p.TypeText(ctx, LoginUsername, username); err != nil {
		return err
	}
	if err := p.TypeText(ctx, LoginPassword, password); err != nil {
		return err
	}
	return p.Click(ctx, LoginButton)
}

// IsErrorDisplayed reports whether the error banner shows up shortly.
func (p *LoginPage) IsErrorDisplayed(ctx context.Context) (bool, error) {
	return p.presentWithin(ctx, LoginError, errorGrace)
}

// ErrorMessage returns the banner text, or "" when there is none.
func (p *LoginPage) ErrorMessage(ctx context.Context) (string, error) {
	shown, err := p.IsErrorDisplayed(ctx)
	if err != nil || !shown {
		return "", err
	}
	return p.ReadText(ctx, LoginError)
}
