// internal/controller/campaign_controller.go
package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ewynk/mail-backend/internal/model"
	"github.com/ewynk/mail-backend/internal/service"
)

// CampaignAPI is the campaign surface the HTTP layer needs.
type CampaignAPI interface {
	CreateCampaign(ctx context.Context, userID string, in service.CreateCampaignInput) (*model.Campaign, error)
	ListCampaigns(ctx context.Context, userID string, page, pageSize int, status string) ([]model.Campaign, map[string]int, error)
	AuthorizeCampaign(ctx context.Context, userID, campaignID string) error
	GetCampaignDetailsWithStats(ctx context.Context, campaignID string) (*service.CampaignDetails, error)
	ListLogs(ctx context.Context, campaignID string, page, pageSize int) ([]model.EmailLog, error)
	SendCampaign(ctx context.Context, campaignID, ctaURL string) (*service.SendResult, error)
	DispatchCampaign(ctx context.Context, campaignID, ctaURL string) error
	PauseCampaign(ctx context.Context, campaignID string) error
	ResumeCampaign(ctx context.Context, campaignID, ctaURL string) error
	RerunCampaign(ctx context.Context, campaignID string) (*model.Campaign, error)
	ScheduleCampaign(ctx context.Context, campaignID string, at time.Time) error
	UnscheduleCampaign(ctx context.Context, campaignID string) error
	RenderPreview(ctx context.Context, campaignID, contactID, ctaURL string) (*service.Rendered, error)
}

var _ CampaignAPI = (*service.CampaignService)(nil)

type CampaignController struct {
	CampaignService CampaignAPI
	Log             *zap.SugaredLogger
}

// Routes mounts the campaign endpoints on r.
func (c *CampaignController) Routes(r chi.Router) {
	r.Post("/send", c.SendCampaign)
	r.Post("/", c.CreateCampaign)
	r.Get("/", c.ListCampaigns)
	r.Route("/{id}", func(r chi.Router) {
		r.Use(c.owned)
		r.Get("/", c.GetCampaignDetails)
		r.Get("/logs", c.ListLogs)
		r.Post("/dispatch", c.DispatchCampaign)
		r.Post("/pause", c.PauseCampaign)
		r.Post("/resume", c.ResumeCampaign)
		r.Post("/rerun", c.RerunCampaign)
		r.Post("/schedule", c.ScheduleCampaign)
		r.Delete("/schedule", c.UnscheduleCampaign)
		r.Post("/preview", c.PersonalizedPreview)
	})
}

// owned lets a request through only when the caller owns the campaign in the path.
func (c *CampaignController) owned(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserID(w, r)
		if !ok {
			return
		}
		if err := c.CampaignService.AuthorizeCampaign(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
			Error(w, c.Log, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type ctaBody struct {
	CTAURL string `json:"ctaUrl"`
}

// SendCampaign runs a campaign send synchronously and reports its counts.
func (c *CampaignController) SendCampaign(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(w, r)
	if !ok {
		return
	}
	var body struct {
		CampaignID string `json:"campaignId"`
		CTAURL     string `json:"ctaUrl"`
	}
	if !Decode(w, r, &body) {
		return
	}
	if body.CampaignID == "" {
		BadRequest(w, "campaignId is required")
		return
	}
	if err := c.CampaignService.AuthorizeCampaign(r.Context(), userID, body.CampaignID); err != nil {
		Error(w, c.Log, err)
		return
	}

	// A client disconnect must not pause the run.
	result, err := c.CampaignService.SendCampaign(context.WithoutCancel(r.Context()), body.CampaignID, body.CTAURL)
	if err != nil {
		Error(w, c.Log, err)
		return
	}
	JSON(w, http.StatusOK, result)
}

func (c *CampaignController) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(w, r)
	if !ok {
		return
	}
	var body service.CreateCampaignInput
	if !Decode(w, r, &body) {
		return
	}

	campaign, err := c.CampaignService.CreateCampaign(r.Context(), userID, body)
	if err != nil {
		Error(w, c.Log, err)
		return
	}
	JSON(w, http.StatusCreated, campaign)
}

func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(w, r)
	if !ok {
		return
	}
	page := QueryInt(r, "page", 1)
	pageSize := QueryInt(r, "page_size", 20)
	status := r.URL.Query().Get("status")

	campaigns, pagination, err := c.CampaignService.ListCampaigns(r.Context(), userID, page, pageSize, status)
	if err != nil {
		Error(w, c.Log, err)
		return
	}

	JSON(w, http.StatusOK, map[string]any{
		"data":       campaigns,
		"pagination": pagination,
	})
}

func (c *CampaignController) GetCampaignDetails(w http.ResponseWriter, r *http.Request) {
	details, err := c.CampaignService.GetCampaignDetailsWithStats(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		Error(w, c.Log, err)
		return
	}
	JSON(w, http.StatusOK, details)
}

func (c *CampaignController) ListLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := c.CampaignService.ListLogs(r.Context(), chi.URLParam(r, "id"), QueryInt(r, "page", 1), QueryInt(r, "page_size", 100))
	if err != nil {
		Error(w, c.Log, err)
		return
	}
	JSON(w, http.StatusOK, map[string]any{"data": logs})
}

// DispatchCampaign queues the campaign for the background worker.
func (c *CampaignController) DispatchCampaign(w http.ResponseWriter, r *http.Request) {
	var body ctaBody
	if r.ContentLength != 0 && !Decode(w, r, &body) {
		return
	}
	id := chi.URLParam(r, "id")
	if err := c.CampaignService.DispatchCampaign(r.Context(), id, body.CTAURL); err != nil {
		Error(w, c.Log, err)
		return
	}
	JSON(w, http.StatusAccepted, map[string]string{"campaign_id": id, "status": "queued"})
}

func (c *CampaignController) PauseCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := c.CampaignService.PauseCampaign(r.Context(), id); err != nil {
		Error(w, c.Log, err)
		return
	}
	JSON(w, http.StatusOK, map[string]string{"campaign_id": id, "status": string(model.CampaignPaused)})
}

func (c *CampaignController) ResumeCampaign(w http.ResponseWriter, r *http.Request) {
	var body ctaBody
	if r.ContentLength != 0 && !Decode(w, r, &body) {
		return
	}
	id := chi.URLParam(r, "id")
	if err := c.CampaignService.ResumeCampaign(r.Context(), id, body.CTAURL); err != nil {
		Error(w, c.Log, err)
		return
	}
	JSON(w, http.StatusAccepted, map[string]string{"campaign_id": id, "status": "queued"})
}

func (c *CampaignController) RerunCampaign(w http.ResponseWriter, r *http.Request) {
	campaign, err := c.CampaignService.RerunCampaign(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		Error(w, c.Log, err)
		return
	}
	JSON(w, http.StatusOK, campaign)
}

func (c *CampaignController) ScheduleCampaign(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ScheduledAt *time.Time `json:"scheduledAt"`
	}
	if !Decode(w, r, &body) {
		return
	}
	if body.ScheduledAt == nil {
		BadRequest(w, "scheduledAt is required")
		return
	}

	id := chi.URLParam(r, "id")
	if err := c.CampaignService.ScheduleCampaign(r.Context(), id, *body.ScheduledAt); err != nil {
		Error(w, c.Log, err)
		return
	}
	JSON(w, http.StatusOK, map[string]any{"campaign_id": id, "status": model.CampaignScheduled, "scheduled_at": body.ScheduledAt})
}

func (c *CampaignController) UnscheduleCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := c.CampaignService.UnscheduleCampaign(r.Context(), id); err != nil {
		Error(w, c.Log, err)
		return
	}
	JSON(w, http.StatusOK, map[string]string{"campaign_id": id, "status": string(model.CampaignDraft)})
}

// PersonalizedPreview renders the campaign for one contact without sending.
func (c *CampaignController) PersonalizedPreview(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ContactID string `json:"contactId"`
		CTAURL    string `json:"ctaUrl"`
	}
	if !Decode(w, r, &body) {
		return
	}
	if body.ContactID == "" {
		BadRequest(w, "contactId is required")
		return
	}

	rendered, err := c.CampaignService.RenderPreview(r.Context(), chi.URLParam(r, "id"), body.ContactID, body.CTAURL)
	if err != nil {
		Error(w, c.Log, err)
		return
	}
	JSON(w, http.StatusOK, rendered)
}
