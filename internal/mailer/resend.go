package mailer

import (
	"context"

	"github.com/resend/resend-go/v3"
)

type resendAPI interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// ResendTransport sends through the Resend HTTP API.
type ResendTransport struct {
	emails resendAPI
}

func NewResendTransport(apiKey string) *ResendTransport {
	return &ResendTransport{emails: resend.NewClient(apiKey).Emails}
}

func (t *ResendTransport) Send(ctx context.Context, msg Message) error {
	req := &resend.SendEmailRequest{
		From:    msg.From.String(),
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
		Headers: msg.Headers,
	}
	if _, err := t.emails.SendWithContext(ctx, req); err != nil {
		return &SendError{Provider: "resend", To: msg.To, Err: err}
	}
	return nil
}

func (t *ResendTransport) Close() error { return nil }

var _ Transport = (*ResendTransport)(nil)
