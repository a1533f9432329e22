package mailer

import (
	"context"
	"crypto/tls"
	"sync"

	"github.com/go-gomail/gomail"
)

// SMTPConfig describes one SMTP account.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	SSL      bool
}

// SMTPTransport keeps one authenticated SMTP session open across a send run
// and redials after a failed send.
type SMTPTransport struct {
	dialer *gomail.Dialer

	mu     sync.Mutex
	sender gomail.SendCloser
}

func NewSMTPTransport(cfg SMTPConfig) *SMTPTransport {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.SSL = cfg.SSL || cfg.Port == 465
	d.TLSConfig = &tls.Config{ServerName: cfg.Host}
	return &SMTPTransport{dialer: d}
}

func (t *SMTPTransport) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sender == nil {
		s, err := t.dialer.Dial()
		if err != nil {
			return &SendError{Provider: "smtp", To: msg.To, Err: err}
		}
		t.sender = s
	}

	if err := gomail.Send(t.sender, buildMessage(msg)); err != nil {
		// The session state is unknown after a failure.
		t.sender.Close()
		t.sender = nil
		return &SendError{Provider: "smtp", To: msg.To, Err: err}
	}
	return nil
}

func (t *SMTPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sender == nil {
		return nil
	}
	err := t.sender.Close()
	t.sender = nil
	return err
}

func buildMessage(msg Message) *gomail.Message {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", msg.From.Email, msg.From.Name)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	for k, v := range msg.Headers {
		m.SetHeader(k, v)
	}

	switch {
	case msg.Text != "" && msg.HTML != "":
		m.SetBody("text/plain", msg.Text)
		m.AddAlternative("text/html", msg.HTML)
	case msg.HTML != "":
		m.SetBody("text/html", msg.HTML)
	default:
		m.SetBody("text/plain", msg.Text)
	}
	return m
}

var _ Transport = (*SMTPTransport)(nil)
