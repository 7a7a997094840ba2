package portal

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/osulel12/itc-parser/internal/form"
	"github.com/osulel12/itc-parser/internal/model"
)

// recoverSession rebuilds a working data section after the portal threw the
// run out: news dialog, restricted popup, re-login, then either the captcha
// gate or a plain click-through, whichever the page calls for. The caller
// has already navigated back to the portal root.
func (e *Engine) recoverSession(ctx context.Context, flow model.Direction, reporter string) error {
	sel := e.cfg.Selectors

	if err := e.dismissNews(ctx, true); err != nil {
		return err
	}

	if err := e.form.Click(ctx, sel.RestrictedClose, e.waits.Nav); err != nil {
		if !errors.Is(err, form.ErrWaitTimeout) {
			return err
		}
		zap.L().Info("restricted popup absent")
	}

	if err := e.login(ctx); err != nil {
		return err
	}

	if _, err := e.form.Text(ctx, sel.CaptchaImage, e.waits.Nav); err != nil {
		if !errors.Is(err, form.ErrWaitTimeout) && !errors.Is(err, form.ErrNotFound) {
			return err
		}
		opened, err := e.openTimeSeries(ctx, flow, reporter)
		if err != nil {
			return err
		}
		if opened {
			zap.L().Info("recovered through time series click-through")
		} else {
			zap.L().Info("recovered with login only")
		}
		return nil
	}

	return e.captchaGate(ctx, flow, reporter, fmt.Sprintf("%s %s", reporter, flow))
}
