package scenario

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/devicelab-dev/pageflow/pkg/core"
	"github.com/devicelab-dev/pageflow/pkg/executor"
	"github.com/devicelab-dev/pageflow/pkg/page"
	"github.com/devicelab-dev/pageflow/pkg/wait"
)

// LoginName is the registry name of LoginScenario.
const LoginName = "login"

// Expected outcomes understood by LoginScenario.
const (
	ExpectSuccess = "success"
	ExpectLocked  = "locked"
	ExpectError   = "error"
)

// LoginScenario logs in with the record's username and password and checks
// the page against expected_result.
type LoginScenario struct{}

func (s *LoginScenario) Name() string { return LoginName }

func (s *LoginScenario) Run(ctx context.Context, env *executor.Env, rec core.TestRecord) error {
	login, err := page.Get[*page.LoginPage](env.Pages, page.LoginName, env.Exec, env.BaseURL)
	if err != nil {
		return err
	}
	if err := login.Load(ctx); err != nil {
		return err
	}
	user := rec.String("username")
	env.Logger.Debug("logging in", zap.String("username", user))
	if err := login.Login(ctx, user, rec.String("password")); err != nil {
		return err
	}

	switch expected := strings.ToLower(rec.Expected()); expected {
	case ExpectSuccess:
		inv, err := page.Get[*page.InventoryPage](env.Pages, page.InventoryName, env.Exec, env.BaseURL)
		if err != nil {
			return err
		}
		if err := env.Exec.Await(ctx, wait.URLContains("inventory.html")); err != nil {
			return err
		}
		loaded, err := inv.IsLoaded(ctx)
		if err != nil {
			return err
		}
		if !loaded {
			return core.Failf("inventory did not load for %s", user)
		}
		return nil

	case ExpectLocked:
		msg, err := login.ErrorMessage(ctx)
		if err != nil {
			return err
		}
		if !strings.Contains(strings.ToLower(msg), "locked out") {
			return core.Mismatch("lockout banner", "locked out", msg)
		}
		return nil

	case ExpectError:
		shown, err := login.IsErrorDisplayed(ctx)
		if err != nil {
			return err
		}
		if !shown {
			return core.Failf("no error banner for %s", user)
		}
		return nil

	default:
		return core.Failf("unknown expected_result %q", rec.Expected())
	}
}
