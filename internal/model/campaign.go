// internal/model/campaign.go
package model

import "time"

// CampaignStatus is the lifecycle state of a campaign.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "DRAFT"
	CampaignScheduled CampaignStatus = "SCHEDULED"
	CampaignSending   CampaignStatus = "SENDING"
	CampaignPaused    CampaignStatus = "PAUSED"
	CampaignCompleted CampaignStatus = "COMPLETED"
	CampaignFailed    CampaignStatus = "FAILED"
)

// campaignTransitions lists every legal forward move. Rerun back to DRAFT is
// handled separately by CanRerun.
var campaignTransitions = map[CampaignStatus][]CampaignStatus{
	CampaignDraft:     {CampaignScheduled, CampaignSending},
	CampaignScheduled: {CampaignSending, CampaignDraft},
	CampaignSending:   {CampaignCompleted, CampaignFailed, CampaignPaused},
	CampaignPaused:    {CampaignSending},
}

// Valid reports whether s is one of the known statuses.
func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignDraft, CampaignScheduled, CampaignSending, CampaignPaused, CampaignCompleted, CampaignFailed:
		return true
	}
	return false
}

// CanTransition reports whether a campaign may move from one status to another.
func CanTransition(from, to CampaignStatus) bool {
	for _, next := range campaignTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CanStartSending reports whether a send run may begin from status s.
func CanStartSending(s CampaignStatus) bool {
	return CanTransition(s, CampaignSending)
}

// CanRerun reports whether a campaign in status s may be reset to DRAFT.
func CanRerun(s CampaignStatus) bool {
	return s == CampaignCompleted || s == CampaignFailed || s == CampaignPaused
}

type Campaign struct {
	ID              string         `db:"id" json:"id"`
	UserID          string         `db:"user_id" json:"user_id"`
	TemplateID      string         `db:"template_id" json:"template_id"`
	Name            string         `db:"name" json:"name"`
	Status          CampaignStatus `db:"status" json:"status"`
	TargetTags      []string       `db:"target_tags" json:"target_tags"`
	TotalRecipients int            `db:"total_recipients" json:"total_recipients"`
	SentCount       int            `db:"sent_count" json:"sent_count"`
	FailedCount     int            `db:"failed_count" json:"failed_count"`
	OpenedCount     int            `db:"opened_count" json:"opened_count"`
	ClickedCount    int            `db:"clicked_count" json:"clicked_count"`
	// Cursor is the id of the last contact processed by a send run.
	Cursor      string     `db:"cursor" json:"cursor,omitempty"`
	ScheduledAt *time.Time `db:"scheduled_at" json:"scheduled_at,omitempty"`
	SentAt      *time.Time `db:"sent_at" json:"sent_at,omitempty"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// IsTerminal returns true if no further send run can happen without a rerun.
func (c *Campaign) IsTerminal() bool {
	return c.Status == CampaignCompleted || c.Status == CampaignFailed
}

// Template is the subject/HTML/text triple a campaign renders per recipient.
type Template struct {
	ID          string    `db:"id" json:"id"`
	UserID      string    `db:"user_id" json:"user_id"`
	Name        string    `db:"name" json:"name"`
	Subject     string    `db:"subject" json:"subject"`
	HTML        string    `db:"html_content" json:"html_content"`
	Text        string    `db:"text_content" json:"text_content,omitempty"`
	PreviewText string    `db:"preview_text" json:"preview_text,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
