package mailer

import (
	"context"
	"fmt"
	"net/mail"
)

// Message is one fully rendered email addressed to a single recipient.
type Message struct {
	From    From
	To      string
	Subject string
	HTML    string
	Text    string
	Headers map[string]string
}

// From is the sender identity attached to outgoing messages.
type From struct {
	Email string
	Name  string
}

// String formats the identity as an RFC 5322 address.
func (f From) String() string {
	if f.Name == "" {
		return f.Email
	}
	return (&mail.Address{Name: f.Name, Address: f.Email}).String()
}

// Transport delivers messages through one provider. A transport may hold a
// connection open between sends; Close releases it.
type Transport interface {
	Send(ctx context.Context, msg Message) error
	Close() error
}

// SendError wraps a provider failure for one recipient.
type SendError struct {
	Provider string
	To       string
	Err      error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("%s: send to %s: %v", e.Provider, e.To, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }
