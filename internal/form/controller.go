// Package form abstracts the remote portal form behind a small capability
// interface so the progression engine never touches the browser directly.
package form

import (
	"context"
	"errors"
	"time"
)

// Failure taxonomy for UI interactions. The progression loop routes every
// UIFailure through the recovery procedure; anything else propagates.
var (
	// ErrWaitTimeout means a bounded wait elapsed before the element met the
	// expected condition. Benign for optional elements, recoverable otherwise.
	ErrWaitTimeout = errors.New("form: bounded wait timed out")

	// ErrNotFound means the selector matched nothing, usually a violated
	// assumption about the current page state.
	ErrNotFound = errors.New("form: element not found")

	// ErrStale means the page identity changed underneath us.
	ErrStale = errors.New("form: stale element reference")

	// ErrClickIntercepted means an overlay swallowed the click.
	ErrClickIntercepted = errors.New("form: click intercepted")
)

// IsUIFailure reports whether err belongs to the recoverable UI failure
// class handled by the per-partner retry boundary.
func IsUIFailure(err error) bool {
	return errors.Is(err, ErrWaitTimeout) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrStale) ||
		errors.Is(err, ErrClickIntercepted)
}

// Controller drives the remote form. Every method takes a bound on how long
// to wait for its target element; an unmet bound fails with ErrWaitTimeout.
// Selectors are CSS.
type Controller interface {
	// Navigate loads the given URL and waits for the document to be ready.
	Navigate(ctx context.Context, url string) error

	// Click waits for the element to be visible and clicks it.
	Click(ctx context.Context, sel string, wait time.Duration) error

	// SendKeys waits for the element and types text into it.
	SendKeys(ctx context.Context, sel, text string, wait time.Duration) error

	// SelectByText picks the option with the given visible text on a select
	// element and fires its change event.
	SelectByText(ctx context.Context, sel, optionText string, wait time.Duration) error

	// ClickByText clicks the first element matching sel whose trimmed text
	// contains the given fragment. Used for list-style dropdowns rendered as
	// plain elements rather than a select.
	ClickByText(ctx context.Context, sel, text string, wait time.Duration) error

	// Value returns the current value property of an input or select.
	Value(ctx context.Context, sel string, wait time.Duration) (string, error)

	// Attribute returns the named attribute of the first matching element.
	// A missing attribute yields an empty string, not an error.
	Attribute(ctx context.Context, sel, name string, wait time.Duration) (string, error)

	// Text returns the trimmed text content of the first matching element.
	Text(ctx context.Context, sel string, wait time.Duration) (string, error)

	// TextAll returns the trimmed text content of every matching element.
	TextAll(ctx context.Context, sel string, wait time.Duration) ([]string, error)

	// AttributeAll returns the named attribute of every matching element,
	// empty string where absent.
	AttributeAll(ctx context.Context, sel, name string, wait time.Duration) ([]string, error)

	// Screenshot captures a PNG of the first matching element.
	Screenshot(ctx context.Context, sel string, wait time.Duration) ([]byte, error)

	// Close tears down the browser session.
	Close() error
}
