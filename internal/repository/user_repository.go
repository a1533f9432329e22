package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ewynk/mail-backend/internal/model"
)

type UserRepositoryInterface interface {
	GetSMTPCredentials(ctx context.Context, userID string) (*model.SMTPCredentials, error)
}

type UserRepository struct {
	DB *sql.DB
}

// GetSMTPCredentials returns the SMTP settings a user saved, or nil when the
// user has none.
func (r *UserRepository) GetSMTPCredentials(ctx context.Context, userID string) (*model.SMTPCredentials, error) {
	var (
		creds model.SMTPCredentials
		port  sql.NullInt64
	)
	err := r.DB.QueryRowContext(ctx, `
		SELECT COALESCE(smtp_host, ''), smtp_port, COALESCE(smtp_user, ''), COALESCE(smtp_password, ''),
		       COALESCE(from_email, email), COALESCE(from_name, name, ''), COALESCE(smtp_ssl, false)
		FROM users WHERE id = $1
	`, userID).Scan(&creds.Host, &port, &creds.Username, &creds.Password, &creds.FromEmail, &creds.FromName, &creds.SSL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get smtp credentials: %w", err)
	}
	if !creds.Present() {
		return nil, nil
	}
	creds.Port = 587
	if port.Valid {
		creds.Port = int(port.Int64)
	}
	return &creds, nil
}

var _ UserRepositoryInterface = (*UserRepository)(nil)
