package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/ewynk/mail-backend/internal/errors"
	"github.com/ewynk/mail-backend/internal/lock"
	"github.com/ewynk/mail-backend/internal/logger"
	"github.com/ewynk/mail-backend/internal/mailer"
	"github.com/ewynk/mail-backend/internal/model"
	"github.com/ewynk/mail-backend/internal/ratelimit"
	"github.com/ewynk/mail-backend/internal/repository"
)

// TransportResolver yields the mail transport and sender identity for a user.
type TransportResolver interface {
	Resolve(ctx context.Context, userID string) (mailer.Transport, mailer.From, error)
}

// SendResult counts the outcomes of one Send call.
type SendResult struct {
	Sent   int  `json:"sent"`
	Failed int  `json:"failed"`
	Paused bool `json:"paused,omitempty"`
}

// BatchSender runs the sequential send loop of a campaign.
type BatchSender struct {
	CampaignRepo repository.CampaignRepositoryInterface
	TemplateRepo repository.TemplateRepositoryInterface
	EmailLogRepo repository.EmailLogRepositoryInterface
	Recipients   *RecipientSelector
	Transports   TransportResolver
	Limiter      ratelimit.Limiter
	Locker       lock.Locker
	Context      CampaignContext
	Log          *zap.SugaredLogger
	Now          func() time.Time
}

func (s *BatchSender) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Send delivers a campaign to its recipients one at a time. A PAUSED campaign
// continues after its stored cursor. Every check that can reject the run
// happens before the first write, so a rejected run leaves the campaign and its
// logs untouched.
func (s *BatchSender) Send(ctx context.Context, campaignID, ctaURL string) (*SendResult, error) {
	handle, ok, err := s.Locker.TryAcquire(ctx, lock.CampaignKey(campaignID))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, appErrors.ErrAlreadySending
	}
	defer func() {
		if err := handle.Release(context.WithoutCancel(ctx)); err != nil {
			s.Log.Warnw("failed to release campaign lock", "campaign_id", campaignID, "error", err)
		}
	}()

	campaign, err := s.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if !model.CanStartSending(campaign.Status) {
		return nil, fmt.Errorf("campaign %s is %s: %w", campaignID, campaign.Status, appErrors.ErrInvalidTransition)
	}

	tpl, err := s.TemplateRepo.GetByID(ctx, campaign.TemplateID)
	if err != nil {
		return nil, err
	}

	resume := campaign.Status == model.CampaignPaused
	after := ""
	if resume {
		after = campaign.Cursor
	}
	recipients, err := s.Recipients.SelectAfter(ctx, campaign.UserID, campaign.TargetTags, after)
	if err != nil {
		return nil, fmt.Errorf("select recipients: %w", err)
	}
	if len(recipients) == 0 && !resume {
		return nil, appErrors.ErrNoRecipients
	}

	transport, from, err := s.Transports.Resolve(ctx, campaign.UserID)
	if err != nil {
		return nil, err
	}
	defer transport.Close()

	sent, failed := 0, 0
	if resume {
		sent, failed = campaign.SentCount, campaign.FailedCount
	}
	total := sent + failed + len(recipients)
	if err := s.CampaignRepo.StartSending(ctx, campaignID, campaign.Status, total, !resume); err != nil {
		return nil, err
	}

	log := s.Log.With("campaign_id", campaignID)
	log.Infow("campaign send started", "recipients", len(recipients), "resume", resume)

	cc := s.Context
	cc.CampaignID = campaignID
	cc.CTAURL = ctaURL

	// Writes after a dispatch must land even when ctx is cancelled mid-iteration.
	store := context.WithoutCancel(ctx)
	result := &SendResult{}

	for _, contact := range recipients {
		if err := s.Limiter.Wait(ctx); err != nil {
			return s.pause(store, campaignID, result, log)
		}

		status, err := s.CampaignRepo.GetStatus(store, campaignID)
		if err != nil {
			return s.fail(store, campaignID, result, err, log)
		}
		if status != model.CampaignSending {
			log.Infow("campaign send stopped", "status", status, "sent", result.Sent, "failed", result.Failed)
			result.Paused = status == model.CampaignPaused
			return result, nil
		}

		rendered := RenderEmail(*tpl, contact, cc)
		msg := mailer.Message{
			From:    from,
			To:      contact.Email,
			Subject: rendered.Subject,
			HTML:    rendered.HTML,
			Text:    rendered.Text,
			Headers: map[string]string{"List-Unsubscribe": "<" + rendered.UnsubscribeURL + ">"},
		}

		entry := &model.EmailLog{CampaignID: campaignID, ContactID: contact.ID, Email: contact.Email}
		if err := transport.Send(ctx, msg); err != nil {
			entry.Status = model.EmailFailed
			entry.Error = err.Error()
			result.Failed++
			failed++
			log.Warnw("send failed", "to", logger.RedactEmail(contact.Email), "error", err)
		} else {
			at := s.now()
			entry.Status = model.EmailSent
			entry.SentAt = &at
			result.Sent++
			sent++
		}

		if err := s.EmailLogRepo.Create(store, entry); err != nil {
			return s.fail(store, campaignID, result, err, log)
		}
		if err := s.CampaignRepo.SaveProgress(store, campaignID, contact.ID, sent, failed); err != nil {
			return s.fail(store, campaignID, result, err, log)
		}
		if err := handle.Extend(store); err != nil {
			if errors.Is(err, lock.ErrLost) {
				log.Warnw("campaign lock lost", "error", err)
				return s.pause(store, campaignID, result, log)
			}
			log.Warnw("failed to extend campaign lock", "error", err)
		}
	}

	if err := s.CampaignRepo.Complete(store, campaignID, sent, failed); err != nil {
		if !errors.Is(err, appErrors.ErrInvalidTransition) {
			return s.fail(store, campaignID, result, err, log)
		}
		// Paused or cancelled after the last dispatch.
		status, serr := s.CampaignRepo.GetStatus(store, campaignID)
		if serr != nil {
			return s.fail(store, campaignID, result, serr, log)
		}
		log.Infow("campaign send stopped", "status", status, "sent", result.Sent, "failed", result.Failed)
		result.Paused = status == model.CampaignPaused
		return result, nil
	}
	log.Infow("campaign send completed", "sent", result.Sent, "failed", result.Failed, "total_sent", sent, "total_failed", failed)
	return result, nil
}

// pause parks an interrupted run so that a resume continues it.
func (s *BatchSender) pause(ctx context.Context, campaignID string, result *SendResult, log *zap.SugaredLogger) (*SendResult, error) {
	result.Paused = true
	if err := s.CampaignRepo.UpdateStatus(ctx, campaignID, model.CampaignSending, model.CampaignPaused); err != nil {
		log.Warnw("failed to pause interrupted campaign", "error", err)
	}
	log.Infow("campaign send interrupted", "sent", result.Sent, "failed", result.Failed)
	return result, nil
}

func (s *BatchSender) fail(ctx context.Context, campaignID string, result *SendResult, cause error, log *zap.SugaredLogger) (*SendResult, error) {
	log.Errorw("campaign send failed", "error", cause)
	if err := s.CampaignRepo.UpdateStatus(ctx, campaignID, model.CampaignSending, model.CampaignFailed); err != nil {
		log.Warnw("failed to mark campaign failed", "error", err)
	}
	return result, fmt.Errorf("send campaign %s: %w", campaignID, cause)
}
