// internal/handler/contact_handler.go
package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ewynk/mail-backend/internal/controller"
	"github.com/ewynk/mail-backend/internal/model"
	"github.com/ewynk/mail-backend/internal/service"
)

type ContactAPI interface {
	ListRecipients(ctx context.Context, userID string, tags []string) ([]model.Contact, error)
	Unsubscribe(ctx context.Context, campaignID, contactID string) error
}

type DuplicateAPI interface {
	Scan(ctx context.Context, userID string) (int, error)
	List(ctx context.Context, userID string, status model.DuplicateStatus) ([]model.ContactDuplicate, error)
	Ignore(ctx context.Context, userID, id string) error
	Merge(ctx context.Context, userID, id string) (*model.Contact, error)
}

var (
	_ ContactAPI   = (*service.ContactService)(nil)
	_ DuplicateAPI = (*service.DuplicateService)(nil)
)

// ContactHandler holds the dependencies for contact-related HTTP handlers
type ContactHandler struct {
	Contacts   ContactAPI
	Duplicates DuplicateAPI
	Log        *zap.SugaredLogger
}

// Routes mounts the contact endpoints on r.
func (h *ContactHandler) Routes(r chi.Router) {
	r.Get("/", h.ListRecipients)
	r.Route("/duplicates", func(r chi.Router) {
		r.Post("/scan", h.ScanDuplicates)
		r.Get("/", h.ListDuplicates)
		r.Post("/{id}/ignore", h.IgnoreDuplicate)
		r.Post("/{id}/merge", h.MergeDuplicate)
	})
}

// ListRecipients previews the contacts a campaign with ?tags=a,b would reach.
func (h *ContactHandler) ListRecipients(w http.ResponseWriter, r *http.Request) {
	userID, ok := controller.UserID(w, r)
	if !ok {
		return
	}
	var tags []string
	if raw := r.URL.Query().Get("tags"); raw != "" {
		tags = strings.Split(raw, ",")
	}

	contacts, err := h.Contacts.ListRecipients(r.Context(), userID, tags)
	if err != nil {
		controller.Error(w, h.Log, err)
		return
	}
	controller.JSON(w, http.StatusOK, map[string]any{"data": contacts, "count": len(contacts)})
}

func (h *ContactHandler) ScanDuplicates(w http.ResponseWriter, r *http.Request) {
	userID, ok := controller.UserID(w, r)
	if !ok {
		return
	}
	created, err := h.Duplicates.Scan(r.Context(), userID)
	if err != nil {
		controller.Error(w, h.Log, err)
		return
	}
	controller.JSON(w, http.StatusOK, map[string]int{"created": created})
}

func (h *ContactHandler) ListDuplicates(w http.ResponseWriter, r *http.Request) {
	userID, ok := controller.UserID(w, r)
	if !ok {
		return
	}
	status := model.DuplicateStatus(strings.ToUpper(r.URL.Query().Get("status")))

	pairs, err := h.Duplicates.List(r.Context(), userID, status)
	if err != nil {
		controller.Error(w, h.Log, err)
		return
	}
	controller.JSON(w, http.StatusOK, map[string]any{"data": pairs})
}

func (h *ContactHandler) IgnoreDuplicate(w http.ResponseWriter, r *http.Request) {
	userID, ok := controller.UserID(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.Duplicates.Ignore(r.Context(), userID, id); err != nil {
		controller.Error(w, h.Log, err)
		return
	}
	controller.JSON(w, http.StatusOK, map[string]string{"id": id, "status": string(model.DuplicateIgnored)})
}

func (h *ContactHandler) MergeDuplicate(w http.ResponseWriter, r *http.Request) {
	userID, ok := controller.UserID(w, r)
	if !ok {
		return
	}
	kept, err := h.Duplicates.Merge(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		controller.Error(w, h.Log, err)
		return
	}
	controller.JSON(w, http.StatusOK, kept)
}

const unsubscribedPage = `<!DOCTYPE html><html><body><p>You have been unsubscribed.</p></body></html>`

// Unsubscribe serves the link embedded in every sent email.
func (h *ContactHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	campaignID := r.URL.Query().Get("campaign")
	contactID := r.URL.Query().Get("contact")
	if campaignID == "" || contactID == "" {
		controller.BadRequest(w, "campaign and contact are required")
		return
	}

	if err := h.Contacts.Unsubscribe(r.Context(), campaignID, contactID); err != nil {
		controller.Error(w, h.Log, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(unsubscribedPage))
}
