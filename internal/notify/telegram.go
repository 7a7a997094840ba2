package notify

import (
	"context"
	"errors"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rotisserie/eris"

	"github.com/osulel12/itc-parser/internal/resilience"
)

// Telegram delivers operator messages through a Telegram bot chat.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	retry  resilience.RetryConfig
}

// NewTelegram authenticates the bot and binds it to the operator chat.
func NewTelegram(token, chatID string) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, eris.Wrap(err, "notify: telegram auth")
	}
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "notify: parse chat id %q", chatID)
	}

	cfg := resilience.DefaultRetryConfig()
	cfg.OnRetry = resilience.RetryLogger("telegram", "send")

	return &Telegram{bot: bot, chatID: id, retry: cfg}, nil
}

// SendImage posts the captcha picture and returns the Telegram message ID.
func (t *Telegram) SendImage(ctx context.Context, image []byte, caption string) (string, error) {
	photo := tgbotapi.NewPhoto(t.chatID, tgbotapi.FileBytes{
		Name:  "captcha_picture.png",
		Bytes: image,
	})
	photo.Caption = caption

	var messageID string
	err := resilience.Do(ctx, t.retry, func(ctx context.Context) error {
		sent, err := t.bot.Send(photo)
		if err != nil {
			return asTransient(err)
		}
		messageID = strconv.Itoa(sent.MessageID)
		return nil
	})
	if err != nil {
		return "", eris.Wrap(err, "notify: send photo")
	}
	return messageID, nil
}

// SendText posts a text message; formatted messages use HTML parse mode.
func (t *Telegram) SendText(ctx context.Context, text string, formatted bool) error {
	msg := tgbotapi.NewMessage(t.chatID, text)
	if formatted {
		msg.ParseMode = tgbotapi.ModeHTML
	}

	err := resilience.Do(ctx, t.retry, func(ctx context.Context) error {
		if _, err := t.bot.Send(msg); err != nil {
			return asTransient(err)
		}
		return nil
	})
	if err != nil {
		return eris.Wrap(err, "notify: send text")
	}
	return nil
}

// asTransient marks Telegram API throttling and server-side errors as
// retryable; everything else (bad token, blocked chat) fails fast.
func asTransient(err error) error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 429, apiErr.Code >= 500:
			return resilience.NewTransientError(err, apiErr.Code)
		default:
			return err
		}
	}
	// Plain network failures are classified by resilience.IsTransient.
	return err
}
