// Package notify relays captcha challenges and progress reports to the
// human operator.
package notify

import "context"

// Notifier is the outbound channel to the operator. SendImage returns the
// message identifier assigned by the channel so the engine can checkpoint
// which challenge the operator is answering.
type Notifier interface {
	SendImage(ctx context.Context, image []byte, caption string) (string, error)
	SendText(ctx context.Context, text string, formatted bool) error
}
