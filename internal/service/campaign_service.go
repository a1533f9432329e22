// internal/service/campaign_service.go
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/ewynk/mail-backend/internal/errors"
	"github.com/ewynk/mail-backend/internal/model"
	"github.com/ewynk/mail-backend/internal/queue"
	"github.com/ewynk/mail-backend/internal/repository"
)

type CampaignService struct {
	CampaignRepo repository.CampaignRepositoryInterface
	TemplateRepo repository.TemplateRepositoryInterface
	ContactRepo  repository.ContactRepositoryInterface
	EmailLogRepo repository.EmailLogRepositoryInterface
	Sender       *BatchSender
	Queue        queue.Queue
	Log          *zap.SugaredLogger
	Now          func() time.Time
}

type CreateCampaignInput struct {
	Name        string     `json:"name"`
	TemplateID  string     `json:"templateId"`
	TargetTags  []string   `json:"targetTags"`
	ScheduledAt *time.Time `json:"scheduledAt,omitempty"`
}

type CampaignDetails struct {
	*model.Campaign
	Stats map[string]int `json:"stats"`
}

func (s *CampaignService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *CampaignService) CreateCampaign(ctx context.Context, userID string, in CreateCampaignInput) (*model.Campaign, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("name is required: %w", appErrors.ErrValidation)
	}
	if in.TemplateID == "" {
		return nil, fmt.Errorf("templateId is required: %w", appErrors.ErrValidation)
	}
	tpl, err := s.TemplateRepo.GetByID(ctx, in.TemplateID)
	if err != nil {
		return nil, err
	}
	if tpl.UserID != userID {
		return nil, appErrors.ErrTemplateNotFound
	}

	c := &model.Campaign{
		UserID:     userID,
		TemplateID: in.TemplateID,
		Name:       name,
		Status:     model.CampaignDraft,
		TargetTags: normalizeTags(in.TargetTags),
	}
	if in.ScheduledAt != nil {
		if !in.ScheduledAt.After(s.now()) {
			return nil, fmt.Errorf("scheduledAt must be in the future: %w", appErrors.ErrValidation)
		}
		c.Status = model.CampaignScheduled
		c.ScheduledAt = in.ScheduledAt
	}

	if err := s.CampaignRepo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ListCampaigns fetches campaigns with pagination
func (s *CampaignService) ListCampaigns(ctx context.Context, userID string, page, pageSize int, status string) ([]model.Campaign, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	if status != "" && !model.CampaignStatus(status).Valid() {
		return nil, nil, fmt.Errorf("unknown status %q: %w", status, appErrors.ErrValidation)
	}

	ptrs, total, err := s.CampaignRepo.ListCampaigns(ctx, userID, offset, pageSize, status)
	if err != nil {
		return nil, nil, err
	}

	campaigns := make([]model.Campaign, len(ptrs))
	for i, c := range ptrs {
		campaigns[i] = *c
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}

	return campaigns, pagination, nil
}

// AuthorizeCampaign reports a campaign userID does not own as not found.
func (s *CampaignService) AuthorizeCampaign(ctx context.Context, userID, campaignID string) error {
	campaign, err := s.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return err
	}
	if campaign.UserID != userID {
		return appErrors.NewCampaignNotFound(campaignID)
	}
	return nil
}

// GetCampaignDetailsWithStats returns a campaign with its email log counts.
func (s *CampaignService) GetCampaignDetailsWithStats(ctx context.Context, campaignID string) (*CampaignDetails, error) {
	campaign, err := s.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	stats, err := s.EmailLogRepo.CountByStatus(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	total := 0
	for _, n := range stats {
		total += n
	}
	stats["total"] = total
	stats["pending"] = max(campaign.TotalRecipients-total, 0)

	return &CampaignDetails{Campaign: campaign, Stats: stats}, nil
}

func (s *CampaignService) ListLogs(ctx context.Context, campaignID string, page, pageSize int) ([]model.EmailLog, error) {
	if _, err := s.CampaignRepo.GetByID(ctx, campaignID); err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 500 {
		pageSize = 100
	}
	return s.EmailLogRepo.ListByCampaign(ctx, campaignID, (page-1)*pageSize, pageSize)
}

// SendCampaign runs the send loop synchronously and returns its counts.
func (s *CampaignService) SendCampaign(ctx context.Context, campaignID, ctaURL string) (*SendResult, error) {
	return s.Sender.Send(ctx, campaignID, ctaURL)
}

// DispatchCampaign queues a send job for a campaign that may start sending.
func (s *CampaignService) DispatchCampaign(ctx context.Context, campaignID, ctaURL string) error {
	campaign, err := s.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return err
	}
	if !model.CanStartSending(campaign.Status) {
		return fmt.Errorf("campaign %s is %s: %w", campaignID, campaign.Status, appErrors.ErrInvalidTransition)
	}
	return s.enqueue(ctx, campaignID, ctaURL)
}

func (s *CampaignService) enqueue(ctx context.Context, campaignID, ctaURL string) error {
	if err := s.Queue.Publish(ctx, queue.SendJob{CampaignID: campaignID, CTAURL: ctaURL}); err != nil {
		return fmt.Errorf("enqueue campaign %s: %w", campaignID, err)
	}
	s.Log.Infow("campaign send queued", "campaign_id", campaignID)
	return nil
}

// PauseCampaign stops a running send before its next recipient.
func (s *CampaignService) PauseCampaign(ctx context.Context, campaignID string) error {
	if _, err := s.CampaignRepo.GetByID(ctx, campaignID); err != nil {
		return err
	}
	return s.CampaignRepo.UpdateStatus(ctx, campaignID, model.CampaignSending, model.CampaignPaused)
}

// ResumeCampaign queues a PAUSED campaign; the worker continues after its cursor.
func (s *CampaignService) ResumeCampaign(ctx context.Context, campaignID, ctaURL string) error {
	campaign, err := s.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return err
	}
	if campaign.Status != model.CampaignPaused {
		return fmt.Errorf("campaign %s is %s: %w", campaignID, campaign.Status, appErrors.ErrInvalidTransition)
	}
	return s.enqueue(ctx, campaignID, ctaURL)
}

// RerunCampaign resets a finished or paused campaign to DRAFT.
func (s *CampaignService) RerunCampaign(ctx context.Context, campaignID string) (*model.Campaign, error) {
	campaign, err := s.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if !model.CanRerun(campaign.Status) {
		return nil, fmt.Errorf("campaign %s is %s: %w", campaignID, campaign.Status, appErrors.ErrInvalidTransition)
	}
	if err := s.CampaignRepo.Rerun(ctx, campaignID); err != nil {
		return nil, err
	}
	return s.CampaignRepo.GetByID(ctx, campaignID)
}

func (s *CampaignService) ScheduleCampaign(ctx context.Context, campaignID string, at time.Time) error {
	if !at.After(s.now()) {
		return fmt.Errorf("scheduledAt must be in the future: %w", appErrors.ErrValidation)
	}
	campaign, err := s.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return err
	}
	if campaign.Status != model.CampaignDraft && campaign.Status != model.CampaignScheduled {
		return fmt.Errorf("campaign %s is %s: %w", campaignID, campaign.Status, appErrors.ErrInvalidTransition)
	}
	return s.CampaignRepo.Schedule(ctx, campaignID, at)
}

func (s *CampaignService) UnscheduleCampaign(ctx context.Context, campaignID string) error {
	if _, err := s.CampaignRepo.GetByID(ctx, campaignID); err != nil {
		return err
	}
	return s.CampaignRepo.UpdateStatus(ctx, campaignID, model.CampaignScheduled, model.CampaignDraft)
}

// DispatchDue queues every scheduled campaign whose time has come. A due
// campaign that targets nobody goes back to DRAFT instead of being queued on
// every tick.
func (s *CampaignService) DispatchDue(ctx context.Context) (int, error) {
	due, err := s.CampaignRepo.ListDue(ctx, s.now())
	if err != nil {
		return 0, err
	}
	selector := &RecipientSelector{ContactRepo: s.ContactRepo}
	queued := 0
	for _, c := range due {
		recipients, err := selector.Select(ctx, c.UserID, c.TargetTags)
		if err != nil {
			s.Log.Errorw("failed to select recipients for scheduled campaign", "campaign_id", c.ID, "error", err)
			continue
		}
		if len(recipients) == 0 {
			s.Log.Warnw("unscheduling campaign without recipients", "campaign_id", c.ID)
			if err := s.CampaignRepo.UpdateStatus(ctx, c.ID, model.CampaignScheduled, model.CampaignDraft); err != nil {
				s.Log.Errorw("failed to unschedule campaign", "campaign_id", c.ID, "error", err)
			}
			continue
		}
		if err := s.enqueue(ctx, c.ID, ""); err != nil {
			s.Log.Errorw("failed to queue scheduled campaign", "campaign_id", c.ID, "error", err)
			continue
		}
		queued++
	}
	return queued, nil
}

// RenderPreview renders the campaign template for one contact without sending.
func (s *CampaignService) RenderPreview(ctx context.Context, campaignID, contactID, ctaURL string) (*Rendered, error) {
	campaign, err := s.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	tpl, err := s.TemplateRepo.GetByID(ctx, campaign.TemplateID)
	if err != nil {
		return nil, err
	}
	contact, err := s.ContactRepo.GetByID(ctx, contactID)
	if err != nil {
		return nil, err
	}
	if contact.UserID != campaign.UserID {
		return nil, appErrors.ErrContactNotFound
	}

	cc := s.Sender.Context
	cc.CampaignID = campaignID
	cc.CTAURL = ctaURL
	rendered := RenderEmail(*tpl, *contact, cc)
	return &rendered, nil
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
