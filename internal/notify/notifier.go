package notify

import "context"

// Message is one notification to a set of family members. Data is an opaque
// JSON payload for the client.
type Message struct {
	Type    string
	Title   string
	Body    string
	Data    string
	Emails  []string
}

// Notifier delivers a notification out of band. Implementations must be
// fire-and-forget from the engine's point of view: a delivery failure is
// returned for logging but must never roll back the ledger operation that
// triggered it.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Noop is a Notifier that discards everything. Used in tests and when email
// is not configured.
type Noop struct{}

func (Noop) Notify(ctx context.Context, msg Message) error {
	return nil
}
