package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ewynk/mail-backend/internal/model"
)

type EmailLogRepositoryInterface interface {
	Create(ctx context.Context, l *model.EmailLog) error
	ListByCampaign(ctx context.Context, campaignID string, offset, limit int) ([]model.EmailLog, error)
	CountByStatus(ctx context.Context, campaignID string) (map[string]int, error)
}

type EmailLogRepository struct {
	DB *sql.DB
}

// Create inserts one send outcome.
func (r *EmailLogRepository) Create(ctx context.Context, l *model.EmailLog) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	l.CreatedAt = time.Now()

	var errMsg sql.NullString
	if l.Error != "" {
		errMsg = sql.NullString{String: l.Error, Valid: true}
	}

	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO email_logs (id, campaign_id, contact_id, email, status, error_message, sent_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, l.ID, l.CampaignID, l.ContactID, l.Email, l.Status, errMsg, l.SentAt, l.CreatedAt)
	if err != nil {
		return fmt.Errorf("create email log: %w", err)
	}
	return nil
}

func (r *EmailLogRepository) ListByCampaign(ctx context.Context, campaignID string, offset, limit int) ([]model.EmailLog, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, campaign_id, contact_id, email, status, COALESCE(error_message, ''), sent_at, created_at
		FROM email_logs
		WHERE campaign_id = $1
		ORDER BY created_at
		LIMIT $2 OFFSET $3
	`, campaignID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list email logs: %w", err)
	}
	defer rows.Close()

	logs := []model.EmailLog{}
	for rows.Next() {
		var l model.EmailLog
		if err := rows.Scan(&l.ID, &l.CampaignID, &l.ContactID, &l.Email, &l.Status, &l.Error, &l.SentAt, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan email log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// CountByStatus groups a campaign's logs by status. SENT and FAILED are always present.
func (r *EmailLogRepository) CountByStatus(ctx context.Context, campaignID string) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM email_logs WHERE campaign_id = $1 GROUP BY status`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("count email logs: %w", err)
	}
	defer rows.Close()

	stats := map[string]int{string(model.EmailSent): 0, string(model.EmailFailed): 0}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan email log count: %w", err)
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

var _ EmailLogRepositoryInterface = (*EmailLogRepository)(nil)
