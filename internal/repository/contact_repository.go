package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	appErrors "github.com/ewynk/mail-backend/internal/errors"
	"github.com/ewynk/mail-backend/internal/model"
)

// ContactRepositoryInterface defines methods used by services
type ContactRepositoryInterface interface {
	GetByID(ctx context.Context, id string) (*model.Contact, error)
	ListByUser(ctx context.Context, userID string) ([]model.Contact, error)
	ListRecipients(ctx context.Context, userID string, tags []string, afterID string) ([]model.Contact, error)
	Update(ctx context.Context, c *model.Contact) error
	Delete(ctx context.Context, id string) error
	SetStatus(ctx context.Context, id string, status model.ContactStatus) error
}

// ContactRepository is the concrete implementation
type ContactRepository struct {
	DB *sql.DB
}

const contactColumns = `id, user_id, email, COALESCE(name, ''), COALESCE(first_name, ''), COALESCE(last_name, ''),
	COALESCE(company, ''), COALESCE(job_title, ''), COALESCE(phone, ''), COALESCE(website, ''),
	COALESCE(address, ''), COALESCE(city, ''), COALESCE(state, ''), COALESCE(country, ''),
	COALESCE(postal_code, ''), tags, status, created_at`

func scanContact(row rowScanner) (model.Contact, error) {
	var c model.Contact
	err := row.Scan(
		&c.ID, &c.UserID, &c.Email, &c.Name, &c.FirstName, &c.LastName,
		&c.Company, &c.JobTitle, &c.Phone, &c.Website,
		&c.Address, &c.City, &c.State, &c.Country,
		&c.PostalCode, pq.Array(&c.Tags), &c.Status, &c.CreatedAt,
	)
	return c, err
}

// GetByID fetches a contact by ID
func (r *ContactRepository) GetByID(ctx context.Context, id string) (*model.Contact, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+contactColumns+` FROM contacts WHERE id = $1`, id)
	c, err := scanContact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.ErrContactNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get contact: %w", err)
	}
	return &c, nil
}

// ListByUser fetches every contact owned by a user regardless of status.
func (r *ContactRepository) ListByUser(ctx context.Context, userID string) ([]model.Contact, error) {
	return r.query(ctx, `SELECT `+contactColumns+` FROM contacts WHERE user_id = $1 ORDER BY id`, userID)
}

// ListRecipients returns the ACTIVE contacts of a user that carry at least one
// of tags (all of them when tags is empty), ordered by id and restricted to
// ids after afterID.
func (r *ContactRepository) ListRecipients(ctx context.Context, userID string, tags []string, afterID string) ([]model.Contact, error) {
	if tags == nil {
		tags = []string{}
	}
	return r.query(ctx, `
		SELECT `+contactColumns+` FROM contacts
		WHERE user_id = $1 AND status = 'ACTIVE'
		  AND (cardinality($2::text[]) = 0 OR tags && $2::text[])
		  AND id > $3
		ORDER BY id`, userID, pq.Array(tags), afterID)
}

func (r *ContactRepository) query(ctx context.Context, query string, args ...any) ([]model.Contact, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	contacts := []model.Contact{}
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	return contacts, nil
}

func (r *ContactRepository) Update(ctx context.Context, c *model.Contact) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE contacts
		SET email = $1, name = $2, first_name = $3, last_name = $4, company = $5, job_title = $6,
		    phone = $7, website = $8, address = $9, city = $10, state = $11, country = $12,
		    postal_code = $13, tags = $14, status = $15, updated_at = NOW()
		WHERE id = $16
	`, c.Email, c.Name, c.FirstName, c.LastName, c.Company, c.JobTitle,
		c.Phone, c.Website, c.Address, c.City, c.State, c.Country,
		c.PostalCode, pq.Array(c.Tags), c.Status, c.ID)
	if err != nil {
		return fmt.Errorf("update contact: %w", err)
	}
	return contactAffected(res)
}

func (r *ContactRepository) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM contacts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete contact: %w", err)
	}
	return contactAffected(res)
}

func (r *ContactRepository) SetStatus(ctx context.Context, id string, status model.ContactStatus) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE contacts SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("set contact status: %w", err)
	}
	return contactAffected(res)
}

func contactAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return appErrors.ErrContactNotFound
	}
	return nil
}

var _ ContactRepositoryInterface = (*ContactRepository)(nil)
