// Package store persists per-operator session checkpoints: the partner a
// bulk download is currently on, the resume flag, and captcha relay state.
// Every write is immediately durable; crash-resume correctness depends on it.
package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/osulel12/itc-parser/internal/model"
)

// ErrSessionNotFound is returned when no row exists for the chat ID.
var ErrSessionNotFound = errors.New("store: session not found")

// Store defines the checkpoint persistence interface. There is no local
// recovery for a failing store: connectivity errors are fatal to the run.
type Store interface {
	// RegisterSession creates the operator's row if it does not exist yet.
	RegisterSession(ctx context.Context, chatID string) error
	GetSession(ctx context.Context, chatID string) (*model.Session, error)

	// ResumePoint returns the stored current partner and whether the next
	// run should resume from it.
	ResumePoint(ctx context.Context, chatID string) (partner string, resume bool, err error)
	SetCurrentPartner(ctx context.Context, chatID, partner string) error
	MarkResume(ctx context.Context, chatID string) error
	ClearResumeFlag(ctx context.Context, chatID string) error

	// CaptchaState reports whether a fresh human answer is available.
	CaptchaState(ctx context.Context, chatID string) (valid bool, text string, err error)
	// SetCaptchaAnswer records the operator's answer and marks it valid.
	SetCaptchaAnswer(ctx context.Context, chatID, text string) error
	// InvalidateCaptcha clears the validity flag after a submission so the
	// same answer is never replayed.
	InvalidateCaptcha(ctx context.Context, chatID string) error
	SetCaptchaMessageID(ctx context.Context, chatID, messageID string) error

	Migrate(ctx context.Context) error
	Close() error
}

// Pool is the subset of pgxpool.Pool the Postgres store uses. pgxmock
// satisfies it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}
