package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	appErrors "github.com/ewynk/mail-backend/internal/errors"
	"github.com/ewynk/mail-backend/internal/model"
)

type CampaignRepositoryInterface interface {
	// Campaign CRUD
	Create(ctx context.Context, c *model.Campaign) error
	GetByID(ctx context.Context, id string) (*model.Campaign, error)
	ListCampaigns(ctx context.Context, userID string, offset, limit int, status string) ([]*model.Campaign, int, error)

	// Status and send progress
	GetStatus(ctx context.Context, id string) (model.CampaignStatus, error)
	UpdateStatus(ctx context.Context, id string, from, to model.CampaignStatus) error
	StartSending(ctx context.Context, id string, from model.CampaignStatus, total int, reset bool) error
	SaveProgress(ctx context.Context, id, cursor string, sent, failed int) error
	Complete(ctx context.Context, id string, sent, failed int) error
	Schedule(ctx context.Context, id string, at time.Time) error
	Rerun(ctx context.Context, id string) error
	ListDue(ctx context.Context, now time.Time) ([]*model.Campaign, error)
}

type CampaignRepository struct {
	DB *sql.DB
}

const campaignColumns = `id, user_id, template_id, name, status, target_tags,
	total_recipients, sent_count, failed_count, opened_count, clicked_count,
	COALESCE(send_cursor, ''), scheduled_at, sent_at, completed_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row rowScanner) (*model.Campaign, error) {
	var c model.Campaign
	err := row.Scan(
		&c.ID, &c.UserID, &c.TemplateID, &c.Name, &c.Status, pq.Array(&c.TargetTags),
		&c.TotalRecipients, &c.SentCount, &c.FailedCount, &c.OpenedCount, &c.ClickedCount,
		&c.Cursor, &c.ScheduledAt, &c.SentAt, &c.CompletedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ====================== Campaign CRUD ======================

func (r *CampaignRepository) Create(ctx context.Context, c *model.Campaign) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Status == "" {
		c.Status = model.CampaignDraft
	}
	c.CreatedAt = time.Now()
	if c.TargetTags == nil {
		c.TargetTags = []string{}
	}

	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO campaigns (id, user_id, template_id, name, status, target_tags, scheduled_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, c.ID, c.UserID, c.TemplateID, c.Name, c.Status, pq.Array(c.TargetTags), c.ScheduledAt, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("create campaign: %w", err)
	}
	return nil
}

func (r *CampaignRepository) GetByID(ctx context.Context, id string) (*model.Campaign, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id = $1`, id)
	c, err := scanCampaign(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

func (r *CampaignRepository) ListCampaigns(ctx context.Context, userID string, offset, limit int, status string) ([]*model.Campaign, int, error) {
	where := ` WHERE user_id = $1`
	args := []any{userID}
	argPos := 2

	if status != "" {
		where += fmt.Sprintf(" AND status = $%d", argPos)
		args = append(args, status)
		argPos++
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM campaigns`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count campaigns: %w", err)
	}

	query := `SELECT ` + campaignColumns + ` FROM campaigns` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	campaigns := []*model.Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan campaign: %w", err)
		}
		campaigns = append(campaigns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list campaigns: %w", err)
	}
	return campaigns, total, nil
}

// ====================== Status and progress ======================

func (r *CampaignRepository) GetStatus(ctx context.Context, id string) (model.CampaignStatus, error) {
	var status model.CampaignStatus
	err := r.DB.QueryRowContext(ctx, `SELECT status FROM campaigns WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", appErrors.NewCampaignNotFound(id)
	}
	if err != nil {
		return "", fmt.Errorf("get campaign status: %w", err)
	}
	return status, nil
}

// UpdateStatus moves a campaign from one status to another. The update only
// applies while the stored status still equals from.
func (r *CampaignRepository) UpdateStatus(ctx context.Context, id string, from, to model.CampaignStatus) error {
	if !model.CanTransition(from, to) {
		return fmt.Errorf("%s -> %s: %w", from, to, appErrors.ErrInvalidTransition)
	}
	res, err := r.DB.ExecContext(ctx, `
		UPDATE campaigns SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`, to, id, from)
	if err != nil {
		return fmt.Errorf("update campaign status: %w", err)
	}
	return expectOneRow(res, from, to)
}

// StartSending moves a campaign into SENDING and records the recipient count.
// reset clears counters and the cursor for a fresh run.
func (r *CampaignRepository) StartSending(ctx context.Context, id string, from model.CampaignStatus, total int, reset bool) error {
	if !model.CanStartSending(from) {
		return fmt.Errorf("%s -> %s: %w", from, model.CampaignSending, appErrors.ErrInvalidTransition)
	}

	query := `
		UPDATE campaigns
		SET status = 'SENDING', total_recipients = $1, sent_at = COALESCE(sent_at, NOW()), updated_at = NOW()
		WHERE id = $2 AND status = $3`
	if reset {
		query = `
		UPDATE campaigns
		SET status = 'SENDING', total_recipients = $1, sent_count = 0, failed_count = 0,
		    send_cursor = NULL, completed_at = NULL, sent_at = NOW(), updated_at = NOW()
		WHERE id = $2 AND status = $3`
	}

	res, err := r.DB.ExecContext(ctx, query, total, id, from)
	if err != nil {
		return fmt.Errorf("start sending: %w", err)
	}
	return expectOneRow(res, from, model.CampaignSending)
}

func (r *CampaignRepository) SaveProgress(ctx context.Context, id, cursor string, sent, failed int) error {
	_, err := r.DB.ExecContext(ctx, `
		UPDATE campaigns SET send_cursor = $1, sent_count = $2, failed_count = $3, updated_at = NOW()
		WHERE id = $4
	`, cursor, sent, failed, id)
	if err != nil {
		return fmt.Errorf("save send progress: %w", err)
	}
	return nil
}

func (r *CampaignRepository) Complete(ctx context.Context, id string, sent, failed int) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE campaigns
		SET status = 'COMPLETED', sent_count = $1, failed_count = $2, completed_at = NOW(), updated_at = NOW()
		WHERE id = $3 AND status = 'SENDING'
	`, sent, failed, id)
	if err != nil {
		return fmt.Errorf("complete campaign: %w", err)
	}
	return expectOneRow(res, model.CampaignSending, model.CampaignCompleted)
}

func (r *CampaignRepository) Schedule(ctx context.Context, id string, at time.Time) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE campaigns SET status = 'SCHEDULED', scheduled_at = $1, updated_at = NOW()
		WHERE id = $2 AND status IN ('DRAFT', 'SCHEDULED')
	`, at, id)
	if err != nil {
		return fmt.Errorf("schedule campaign: %w", err)
	}
	return expectOneRow(res, model.CampaignDraft, model.CampaignScheduled)
}

// Rerun resets a finished or paused campaign back to DRAFT.
func (r *CampaignRepository) Rerun(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE campaigns
		SET status = 'DRAFT', total_recipients = 0, sent_count = 0, failed_count = 0,
		    send_cursor = NULL, sent_at = NULL, completed_at = NULL, updated_at = NOW()
		WHERE id = $1 AND status IN ('COMPLETED', 'FAILED', 'PAUSED')
	`, id)
	if err != nil {
		return fmt.Errorf("rerun campaign: %w", err)
	}
	return expectOneRow(res, "", model.CampaignDraft)
}

// ListDue returns SCHEDULED campaigns whose time has come.
func (r *CampaignRepository) ListDue(ctx context.Context, now time.Time) ([]*model.Campaign, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+campaignColumns+` FROM campaigns
		WHERE status = 'SCHEDULED' AND scheduled_at <= $1
		ORDER BY scheduled_at`, now)
	if err != nil {
		return nil, fmt.Errorf("list due campaigns: %w", err)
	}
	defer rows.Close()

	var due []*model.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		due = append(due, c)
	}
	return due, rows.Err()
}

func expectOneRow(res sql.Result, from, to model.CampaignStatus) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s -> %s: %w", from, to, appErrors.ErrInvalidTransition)
	}
	return nil
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
