// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
)

// ErrCampaignNotFound is returned when a campaign id does not resolve.
type ErrCampaignNotFound struct {
	CampaignID string
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %s not found", e.CampaignID)
}

// Helper constructor
func NewCampaignNotFound(id string) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

var (
	ErrNoRecipients       = errors.New("no contacts match the campaign targets")
	ErrCredentialsMissing = errors.New("no outbound mail credentials configured")
	ErrInvalidTransition  = errors.New("invalid campaign status transition")
	ErrAlreadySending     = errors.New("campaign is already being sent")
	ErrTemplateNotFound   = errors.New("template not found")
	ErrContactNotFound    = errors.New("contact not found")
	ErrDuplicateNotFound  = errors.New("duplicate pair not found")
	ErrValidation         = errors.New("invalid input")
)

// IsNotFound reports whether err means the requested record does not exist.
func IsNotFound(err error) bool {
	var nf *ErrCampaignNotFound
	return errors.As(err, &nf) ||
		errors.Is(err, ErrTemplateNotFound) ||
		errors.Is(err, ErrContactNotFound) ||
		errors.Is(err, ErrDuplicateNotFound)
}

// IsPermanent reports whether retrying the same send job cannot succeed.
// ErrAlreadySending is not permanent: the other run releases the lock.
func IsPermanent(err error) bool {
	return IsNotFound(err) ||
		errors.Is(err, ErrNoRecipients) ||
		errors.Is(err, ErrCredentialsMissing) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrValidation)
}
