// Package sender talks to the WhatsApp transport.
package sender

import "context"

// Result is the transport's answer to a send. Accepted=false is a rejection
// with Error as the reason; transport failures are returned as errors instead.
type Result struct {
	Accepted          bool
	ProviderMessageID string
	Error             string
}

type MessageSender interface {
	Deliver(ctx context.Context, phone, text string) (Result, error)
	CheckExists(ctx context.Context, phone string) (bool, error)
	// MarkRead is opportunistic; callers do not depend on its outcome.
	MarkRead(ctx context.Context, phone string) error
}
