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

type DuplicateRepositoryInterface interface {
	Exists(ctx context.Context, contactA, contactB string) (bool, error)
	Create(ctx context.Context, d *model.ContactDuplicate) error
	GetByID(ctx context.Context, id string) (*model.ContactDuplicate, error)
	List(ctx context.Context, userID string, status model.DuplicateStatus) ([]model.ContactDuplicate, error)
	UpdateStatus(ctx context.Context, id string, status model.DuplicateStatus) error
}

type DuplicateRepository struct {
	DB *sql.DB
}

const duplicateColumns = `id, user_id, contact_id_1, contact_id_2, score, matched_fields, status, created_at`

func scanDuplicate(row rowScanner) (model.ContactDuplicate, error) {
	var d model.ContactDuplicate
	err := row.Scan(&d.ID, &d.UserID, &d.ContactID1, &d.ContactID2, &d.Score, pq.Array(&d.MatchedFields), &d.Status, &d.CreatedAt)
	return d, err
}

// Exists reports whether the unordered pair was already recorded.
func (r *DuplicateRepository) Exists(ctx context.Context, contactA, contactB string) (bool, error) {
	a, b := model.OrderedPair(contactA, contactB)
	var count int
	err := r.DB.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM contact_duplicates
		WHERE contact_id_1 = $1 AND contact_id_2 = $2
	`, a, b).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check duplicate: %w", err)
	}
	return count > 0, nil
}

func (r *DuplicateRepository) Create(ctx context.Context, d *model.ContactDuplicate) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.Status == "" {
		d.Status = model.DuplicatePending
	}
	d.ContactID1, d.ContactID2 = model.OrderedPair(d.ContactID1, d.ContactID2)
	d.CreatedAt = time.Now()

	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO contact_duplicates (id, user_id, contact_id_1, contact_id_2, score, matched_fields, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, d.ID, d.UserID, d.ContactID1, d.ContactID2, d.Score, pq.Array(d.MatchedFields), d.Status, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("create duplicate: %w", err)
	}
	return nil
}

func (r *DuplicateRepository) GetByID(ctx context.Context, id string) (*model.ContactDuplicate, error) {
	d, err := scanDuplicate(r.DB.QueryRowContext(ctx, `SELECT `+duplicateColumns+` FROM contact_duplicates WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.ErrDuplicateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get duplicate: %w", err)
	}
	return &d, nil
}

// List returns a user's duplicate pairs, highest score first. An empty status
// returns every pair.
func (r *DuplicateRepository) List(ctx context.Context, userID string, status model.DuplicateStatus) ([]model.ContactDuplicate, error) {
	query := `SELECT ` + duplicateColumns + ` FROM contact_duplicates WHERE user_id = $1`
	args := []any{userID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY score DESC, created_at`

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list duplicates: %w", err)
	}
	defer rows.Close()

	out := []model.ContactDuplicate{}
	for rows.Next() {
		d, err := scanDuplicate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan duplicate: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *DuplicateRepository) UpdateStatus(ctx context.Context, id string, status model.DuplicateStatus) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE contact_duplicates SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("update duplicate status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return appErrors.ErrDuplicateNotFound
	}
	return nil
}

var _ DuplicateRepositoryInterface = (*DuplicateRepository)(nil)
