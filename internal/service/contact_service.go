package service

import (
	"context"

	"go.uber.org/zap"

	appErrors "github.com/ewynk/mail-backend/internal/errors"
	"github.com/ewynk/mail-backend/internal/model"
	"github.com/ewynk/mail-backend/internal/repository"
)

type ContactService struct {
	ContactRepo  repository.ContactRepositoryInterface
	CampaignRepo repository.CampaignRepositoryInterface
	Recipients   *RecipientSelector
	Log          *zap.SugaredLogger
}

// ListRecipients previews who a campaign targeting tags would reach.
func (s *ContactService) ListRecipients(ctx context.Context, userID string, tags []string) ([]model.Contact, error) {
	return s.Recipients.Select(ctx, userID, normalizeTags(tags))
}

// Unsubscribe opts a contact out after following a campaign's unsubscribe
// link. The campaign must belong to the contact's owner.
func (s *ContactService) Unsubscribe(ctx context.Context, campaignID, contactID string) error {
	contact, err := s.ContactRepo.GetByID(ctx, contactID)
	if err != nil {
		return err
	}
	campaign, err := s.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return err
	}
	if campaign.UserID != contact.UserID {
		return appErrors.ErrContactNotFound
	}
	if contact.Status == model.ContactUnsubscribed {
		return nil
	}

	if err := s.ContactRepo.SetStatus(ctx, contactID, model.ContactUnsubscribed); err != nil {
		return err
	}
	s.Log.Infow("contact unsubscribed", "contact_id", contactID, "campaign_id", campaignID)
	return nil
}
