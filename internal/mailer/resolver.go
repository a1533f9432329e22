package mailer

import (
	"context"
	"fmt"
	"strings"

	"github.com/ewynk/mail-backend/internal/config"
	appErrors "github.com/ewynk/mail-backend/internal/errors"
	"github.com/ewynk/mail-backend/internal/model"
)

// CredentialStore looks up the SMTP settings a user saved. A nil result with a
// nil error means the user has none.
type CredentialStore interface {
	GetSMTPCredentials(ctx context.Context, userID string) (*model.SMTPCredentials, error)
}

// Resolver picks the transport for a user's campaign. The provider configured
// for the environment wins; otherwise the user's own SMTP account is used.
type Resolver struct {
	cfg   config.MailConfig
	users CredentialStore
}

func NewResolver(cfg config.MailConfig, users CredentialStore) *Resolver {
	return &Resolver{cfg: cfg, users: users}
}

// Resolve returns a transport and sender identity, or ErrCredentialsMissing.
// Resolving never opens a network connection.
func (r *Resolver) Resolve(ctx context.Context, userID string) (Transport, From, error) {
	switch r.cfg.ActiveProvider() {
	case "smtp":
		if r.cfg.SMTP.Host != "" && r.cfg.SMTP.Username != "" && r.cfg.SMTP.Password != "" {
			t := NewSMTPTransport(SMTPConfig{
				Host:     r.cfg.SMTP.Host,
				Port:     r.cfg.SMTP.Port,
				Username: r.cfg.SMTP.Username,
				Password: r.cfg.SMTP.Password,
				SSL:      r.cfg.SMTP.SSL,
			})
			return t, r.envFrom(r.cfg.SMTP.Username), nil
		}
	case "ses":
		if r.cfg.FromEmail != "" {
			t, err := NewSESTransport(ctx, r.cfg.SES.Region, r.cfg.SES.AccessKey, r.cfg.SES.SecretKey)
			if err != nil {
				return nil, From{}, err
			}
			return t, r.envFrom(""), nil
		}
	case "resend":
		if r.cfg.Resend.APIKey != "" && r.cfg.FromEmail != "" {
			return NewResendTransport(r.cfg.Resend.APIKey), r.envFrom(""), nil
		}
	}

	if r.users == nil {
		return nil, From{}, appErrors.ErrCredentialsMissing
	}
	creds, err := r.users.GetSMTPCredentials(ctx, userID)
	if err != nil {
		return nil, From{}, fmt.Errorf("load smtp credentials: %w", err)
	}
	if !creds.Present() {
		return nil, From{}, appErrors.ErrCredentialsMissing
	}

	from := From{Email: creds.FromEmail, Name: creds.FromName}
	if from.Email == "" && strings.Contains(creds.Username, "@") {
		from.Email = creds.Username
	}
	if from.Email == "" {
		return nil, From{}, appErrors.ErrCredentialsMissing
	}

	t := NewSMTPTransport(SMTPConfig{
		Host:     creds.Host,
		Port:     creds.Port,
		Username: creds.Username,
		Password: creds.Password,
		SSL:      creds.SSL,
	})
	return t, from, nil
}

func (r *Resolver) envFrom(username string) From {
	from := From{Email: r.cfg.FromEmail, Name: r.cfg.FromName}
	if from.Email == "" {
		from.Email = username
	}
	return from
}
