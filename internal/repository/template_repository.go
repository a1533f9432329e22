package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	appErrors "github.com/ewynk/mail-backend/internal/errors"
	"github.com/ewynk/mail-backend/internal/model"
)

type TemplateRepositoryInterface interface {
	GetByID(ctx context.Context, id string) (*model.Template, error)
	Create(ctx context.Context, t *model.Template) error
}

type TemplateRepository struct {
	DB *sql.DB
}

func (r *TemplateRepository) GetByID(ctx context.Context, id string) (*model.Template, error) {
	var t model.Template
	err := r.DB.QueryRowContext(ctx, `
		SELECT id, user_id, name, subject, html_content, COALESCE(text_content, ''), COALESCE(preview_text, ''), created_at
		FROM templates WHERE id = $1
	`, id).Scan(&t.ID, &t.UserID, &t.Name, &t.Subject, &t.HTML, &t.Text, &t.PreviewText, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.ErrTemplateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	return &t, nil
}

func (r *TemplateRepository) Create(ctx context.Context, t *model.Template) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	t.CreatedAt = time.Now()
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO templates (id, user_id, name, subject, html_content, text_content, preview_text, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8)
	`, t.ID, t.UserID, t.Name, t.Subject, t.HTML, t.Text, t.PreviewText, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("create template: %w", err)
	}
	return nil
}

var _ TemplateRepositoryInterface = (*TemplateRepository)(nil)
