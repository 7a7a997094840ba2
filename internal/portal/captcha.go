package portal

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/osulel12/itc-parser/internal/form"
	"github.com/osulel12/itc-parser/internal/model"
)

// captchaGate blocks until the captcha challenge, if present, has been
// solved by the operator and the data section is reachable. A rejected
// answer triggers a fresh relay of the new image and another round. reporter
// is non-empty during recovery, when the product and reporter picks have to
// be redone before re-entering the time series section. label names the job
// in the operator notifications.
func (e *Engine) captchaGate(ctx context.Context, flow model.Direction, reporter, label string) error {
	for {
		passed, err := e.checkCaptcha(ctx, flow, reporter)
		if err != nil {
			return err
		}
		if passed {
			e.sendText(ctx, fmt.Sprintf("✅ Captcha for <b>%s</b> passed", label), true)
			return nil
		}
		e.sendText(ctx,
			fmt.Sprintf("❌ Captcha for <b>%s</b> rejected. Enter it again once the updated picture arrives", label),
			true)
	}
}

// checkCaptcha relays the challenge image to the operator, polls the
// checkpoint store for the answer, submits it and verifies the data section
// opened. Returns true when no challenge is present or the answer was
// accepted, false when the portal rejected it.
func (e *Engine) checkCaptcha(ctx context.Context, flow model.Direction, reporter string) (bool, error) {
	sel := e.cfg.Selectors

	image, err := e.form.Screenshot(ctx, sel.CaptchaImage, e.waits.Captcha)
	if err != nil {
		if errors.Is(err, form.ErrWaitTimeout) || errors.Is(err, form.ErrNotFound) {
			zap.L().Info("no captcha challenge, entering without it")
			return true, nil
		}
		return false, err
	}

	messageID, err := e.notify.SendImage(ctx, image, "‼️ Enter the captcha text!")
	if err != nil {
		return false, err
	}
	if err := e.store.SetCaptchaMessageID(ctx, e.cfg.ChatID, messageID); err != nil {
		return false, err
	}
	if err := sleep(ctx, e.waits.CaptchaGrace); err != nil {
		return false, err
	}

	for {
		valid, text, err := e.store.CaptchaState(ctx, e.cfg.ChatID)
		if err != nil {
			return false, err
		}
		if !valid {
			zap.L().Info("waiting for captcha answer", zap.Duration("poll", e.waits.CaptchaPoll))
			if err := sleep(ctx, e.waits.CaptchaPoll); err != nil {
				return false, err
			}
			continue
		}

		if err := e.form.SendKeys(ctx, sel.CaptchaAnswer, text, e.waits.Captcha); err != nil {
			return false, err
		}
		if err := e.form.Click(ctx, sel.CaptchaSubmit, e.waits.Captcha); err != nil {
			return false, err
		}
		zap.L().Info("captcha answer submitted", zap.String("text", text))

		// The answer is single-use. Even a rejected one is consumed so the
		// next round waits for a fresh entry.
		if err := e.store.InvalidateCaptcha(ctx, e.cfg.ChatID); err != nil {
			return false, err
		}

		return e.openTimeSeries(ctx, flow, reporter)
	}
}

// sendText relays an operator notification, logging delivery failures
// instead of aborting the run over them.
func (e *Engine) sendText(ctx context.Context, text string, formatted bool) {
	if err := e.notify.SendText(ctx, text, formatted); err != nil {
		zap.L().Warn("operator notification failed", zap.Error(err))
	}
}
