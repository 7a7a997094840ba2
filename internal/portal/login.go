package portal

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/osulel12/itc-parser/internal/form"
)

// login signs in through the portal's auth form. A timed-out wait on any
// step means the session cookie is still live and the form never appeared,
// which is not an error.
func (e *Engine) login(ctx context.Context) error {
	sel := e.cfg.Selectors
	steps := []func() error{
		func() error { return e.form.Click(ctx, sel.AuthLink, e.waits.Auth) },
		func() error { return e.form.SendKeys(ctx, sel.UsernameField, e.cfg.Username, e.waits.Auth) },
		func() error { return e.form.SendKeys(ctx, sel.PasswordField, e.cfg.Password, e.waits.Auth) },
		func() error { return e.form.Click(ctx, sel.LoginButton, e.waits.Auth) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			if errors.Is(err, form.ErrWaitTimeout) {
				zap.L().Info("auth form absent, session already authenticated")
				return nil
			}
			return err
		}
	}
	zap.L().Info("signed in", zap.String("user", e.cfg.Username))
	return nil
}
