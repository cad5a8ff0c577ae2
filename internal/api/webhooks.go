package api

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/papermark/webhook-engine/internal/domain"
	"github.com/papermark/webhook-engine/internal/store"
)

type WebhookHandler struct {
	store *store.PostgresStore
}

func NewWebhookHandler(s *store.PostgresStore) *WebhookHandler {
	return &WebhookHandler{store: s}
}

func (h *WebhookHandler) Create(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "teamID")

	var req domain.CreateWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	if !validDestinationURL(req.URL) {
		respondError(w, http.StatusBadRequest, "url must be a valid http or https URL")
		return
	}
	if len(req.Triggers) == 0 {
		respondError(w, http.StatusBadRequest, "at least one trigger is required")
		return
	}
	for _, trigger := range req.Triggers {
		if !domain.Trigger(trigger).IsValid() {
			respondError(w, http.StatusBadRequest, "unknown trigger: "+trigger)
			return
		}
	}

	webhook, err := h.store.CreateWebhook(r.Context(), teamID, req)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create webhook")
		return
	}

	// The secret is exposed here and nowhere else.
	respondJSON(w, http.StatusCreated, domain.CreateWebhookResponse{
		ID:       webhook.ID,
		Name:     webhook.Name,
		URL:      webhook.URL,
		Secret:   webhook.Secret,
		Triggers: webhook.Triggers,
	})
}

func (h *WebhookHandler) List(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "teamID")

	webhooks, err := h.store.ListWebhooks(r.Context(), teamID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list webhooks")
		return
	}

	respondJSON(w, http.StatusOK, webhooks)
}

func (h *WebhookHandler) Get(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "teamID")
	id := chi.URLParam(r, "id")

	webhook, err := h.store.GetWebhook(r.Context(), teamID, id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get webhook")
		return
	}
	if webhook == nil {
		respondError(w, http.StatusNotFound, "webhook not found")
		return
	}

	respondJSON(w, http.StatusOK, webhook)
}

func (h *WebhookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "teamID")
	id := chi.URLParam(r, "id")

	if err := h.store.DeleteWebhook(r.Context(), teamID, id); err != nil {
		respondError(w, http.StatusNotFound, "webhook not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func validDestinationURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
