// Package portal implements the resumable download-progression engine: it
// walks a reporter's partner list on the trade portal, survives captcha
// interruptions and UI breakage, and checkpoints progress so a crashed run
// resumes at the partner it was on.
package portal

import (
	"context"
	"time"

	"github.com/osulel12/itc-parser/internal/form"
	"github.com/osulel12/itc-parser/internal/ledger"
	"github.com/osulel12/itc-parser/internal/notify"
	"github.com/osulel12/itc-parser/internal/store"
)

// Config holds the engine's portal access and bookkeeping settings.
type Config struct {
	URL      string
	Username string
	Password string
	ChatID   string

	// DownloadRoot is the directory job folders are created under.
	DownloadRoot string
	// FilePattern names downloaded files; two %s slots take the sanitized
	// reporter and partner names.
	FilePattern string

	Selectors Selectors
}

// Waits groups every bounded wait and poll interval the engine uses. Tests
// shrink them; production values mirror the portal's observed latencies.
type Waits struct {
	Auth        time.Duration // login form elements
	Nav         time.Duration // click-through navigation steps
	Check       time.Duration // option audit reads
	Captcha     time.Duration // captcha image presence
	DownloadBtn time.Duration // download control clickable

	CaptchaGrace time.Duration // pause after relaying the image, before the first poll
	CaptchaPoll  time.Duration // between checkpoint-store polls for the answer

	DownloadWindow time.Duration // total bound on a file appearing on disk
	DownloadTick   time.Duration // between filesystem polls
	StalePause     time.Duration // after a stale news dialog
}

// DefaultWaits returns the production wait profile.
func DefaultWaits() Waits {
	return Waits{
		Auth:           10 * time.Second,
		Nav:            7 * time.Second,
		Check:          3 * time.Second,
		Captcha:        10 * time.Second,
		DownloadBtn:    15 * time.Second,
		CaptchaGrace:   45 * time.Second,
		CaptchaPoll:    30 * time.Second,
		DownloadWindow: 180 * time.Second,
		DownloadTick:   time.Second,
		StalePause:     60 * time.Second,
	}
}

// Engine drives one portal session for one operator. Strictly
// single-threaded: every wait blocks the one logical flow of control.
type Engine struct {
	form    form.Controller
	store   store.Store
	notify  notify.Notifier
	results *ledger.Ledger
	mirror  *ledger.Ledger
	cfg     Config
	waits   Waits
}

// Option tunes engine internals, mainly for tests.
type Option func(*Engine)

// WithWaits overrides the wait and poll profile.
func WithWaits(w Waits) Option {
	return func(e *Engine) {
		e.waits = w
	}
}

// New assembles an engine from its collaborators. results receives the
// per-direction success record, mirror the excluded-year flags.
func New(ctrl form.Controller, st store.Store, n notify.Notifier, results, mirror *ledger.Ledger, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		form:    ctrl,
		store:   st,
		notify:  n,
		results: results,
		mirror:  mirror,
		cfg:     cfg,
		waits:   DefaultWaits(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// sleep blocks for d or until the context is canceled.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
