package portal

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/osulel12/itc-parser/internal/form"
	"github.com/osulel12/itc-parser/internal/model"
)

// openTimeSeries clicks through from the landing section into the yearly
// time series view. With a reporter given (recovery path) the product and
// reporter combo boxes are reset and re-picked first, since a logout wipes
// them. Returns false when the click-through failed and the data section is
// not reachable, which means the captcha answer was wrong.
func (e *Engine) openTimeSeries(ctx context.Context, flow model.Direction, reporter string) (bool, error) {
	sel := e.cfg.Selectors
	nav := e.waits.Nav

	err := func() error {
		if reporter != "" {
			if err := e.form.Click(ctx, sel.DeleteProduct, nav); err != nil {
				return err
			}
			if err := e.form.Click(ctx, sel.ProductBox, nav); err != nil {
				return err
			}
			if err := e.form.Click(ctx, sel.ProductFirstOption, nav); err != nil {
				return err
			}
			if err := e.form.Click(ctx, sel.DeleteCountry, nav); err != nil {
				return err
			}
			if err := e.form.SendKeys(ctx, sel.CountryInput, reporter, nav); err != nil {
				return err
			}
			if err := e.form.ClickByText(ctx, sel.CountryOptions, reporter, nav); err != nil {
				return err
			}
		}

		flowLabel := sel.ImportLabel
		if flow == model.DirectionExports {
			flowLabel = sel.ExportLabel
		}
		if err := e.form.Click(ctx, flowLabel, nav); err != nil {
			return err
		}
		return e.form.Click(ctx, sel.TimeSeriesButton, nav)
	}()

	if err == nil {
		zap.L().Info("captcha passed")
		return true, nil
	}
	if !form.IsUIFailure(err) {
		return false, err
	}

	// The click-through can fail because the portal dropped us straight into
	// the data section. The reporter dropdown being present settles it.
	if _, probeErr := e.form.Value(ctx, sel.Reporter, nav); probeErr == nil {
		zap.L().Info("entered bypassing home and search")
		return true, nil
	} else if !form.IsUIFailure(probeErr) {
		return false, probeErr
	}
	return false, nil
}

// dismissNews closes the recurring news dialog, looping because the portal
// sometimes re-raises it. handleStale pauses and alerts the operator on a
// stale dialog instead of failing; the recovery path wants that, the cold
// start does not.
func (e *Engine) dismissNews(ctx context.Context, handleStale bool) error {
	sel := e.cfg.Selectors
	for {
		err := e.form.Click(ctx, sel.NewsCheckbox, e.waits.Nav)
		if err == nil {
			err = e.form.Click(ctx, sel.NewsClose, e.waits.Nav)
		}
		switch {
		case err == nil:
			zap.L().Info("news dialog closed")
		case handleStale && errors.Is(err, form.ErrStale):
			e.sendText(ctx, "News dialog went stale", false)
			if err := sleep(ctx, e.waits.StalePause); err != nil {
				return err
			}
		case errors.Is(err, form.ErrWaitTimeout):
			zap.L().Info("news dialog absent")
			return nil
		default:
			return err
		}
	}
}
