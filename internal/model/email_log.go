// internal/model/email_log.go
package model

import "time"

type EmailLogStatus string

const (
	EmailSent   EmailLogStatus = "SENT"
	EmailFailed EmailLogStatus = "FAILED"
)

// EmailLog records the outcome of one send attempt for a (campaign, contact).
type EmailLog struct {
	ID         string         `db:"id" json:"id"`
	CampaignID string         `db:"campaign_id" json:"campaign_id"`
	ContactID  string         `db:"contact_id" json:"contact_id"`
	Email      string         `db:"email" json:"email"`
	Status     EmailLogStatus `db:"status" json:"status"`
	Error      string         `db:"error_message" json:"error,omitempty"`
	SentAt     *time.Time     `db:"sent_at" json:"sent_at,omitempty"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
}

type DuplicateStatus string

const (
	DuplicatePending DuplicateStatus = "PENDING"
	DuplicateIgnored DuplicateStatus = "IGNORED"
	DuplicateMerged  DuplicateStatus = "MERGED"
)

// ContactDuplicate is a candidate pair found by the duplicate scan. The pair
// is stored with ContactID1 < ContactID2.
type ContactDuplicate struct {
	ID            string          `db:"id" json:"id"`
	UserID        string          `db:"user_id" json:"user_id"`
	ContactID1    string          `db:"contact_id_1" json:"contact_id_1"`
	ContactID2    string          `db:"contact_id_2" json:"contact_id_2"`
	Score         int             `db:"score" json:"score"`
	MatchedFields []string        `db:"matched_fields" json:"matched_fields"`
	Status        DuplicateStatus `db:"status" json:"status"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// OrderedPair returns a and b sorted so that an unordered pair has one key.
func OrderedPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}
