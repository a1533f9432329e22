package service

import (
	"context"

	"github.com/ewynk/mail-backend/internal/model"
	"github.com/ewynk/mail-backend/internal/repository"
)

// RecipientSelector resolves the contacts a campaign is sent to.
type RecipientSelector struct {
	ContactRepo repository.ContactRepositoryInterface
}

// Select returns every ACTIVE contact of the user carrying at least one of
// tags, or all ACTIVE contacts when tags is empty. Results are ordered by id.
func (s *RecipientSelector) Select(ctx context.Context, userID string, tags []string) ([]model.Contact, error) {
	return s.SelectAfter(ctx, userID, tags, "")
}

// SelectAfter is Select restricted to contacts whose id sorts after afterID.
func (s *RecipientSelector) SelectAfter(ctx context.Context, userID string, tags []string, afterID string) ([]model.Contact, error) {
	return s.ContactRepo.ListRecipients(ctx, userID, tags, afterID)
}
