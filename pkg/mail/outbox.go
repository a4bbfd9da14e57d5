package mail

import (
	"context"
	"sync"
)

// Outbox is an in-memory Mailer that records every message it is asked to
// send. It backs tests and deployments that run without SMTP configured.
type Outbox struct {
	mu       sync.Mutex
	messages []Message
}

// NewOutbox returns an empty in-memory mailer.
func NewOutbox() *Outbox {
	return &Outbox{}
}

// Send records the message without performing any delivery.
func (o *Outbox) Send(_ context.Context, msg Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = append(o.messages, msg)
	return nil
}

// Messages returns a copy of everything sent so far.
func (o *Outbox) Messages() []Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Message, len(o.messages))
	copy(out, o.messages)
	return out
}

// Reset clears the recorded messages.
func (o *Outbox) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = nil
}
