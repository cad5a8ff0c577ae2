package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/papermark/webhook-engine/internal/store"
)

type DeliveryHandler struct {
	store *store.PostgresStore
}

func NewDeliveryHandler(s *store.PostgresStore) *DeliveryHandler {
	return &DeliveryHandler{store: s}
}

func (h *DeliveryHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 100
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 1000 {
			respondError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	records, err := h.store.ListDeliveries(r.Context(), q.Get("eventId"), q.Get("webhookId"), q.Get("status"), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list deliveries")
		return
	}

	respondJSON(w, http.StatusOK, records)
}

func (h *DeliveryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	record, err := h.store.GetDelivery(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get delivery")
		return
	}
	if record == nil {
		respondError(w, http.StatusNotFound, "delivery not found")
		return
	}

	respondJSON(w, http.StatusOK, record)
}
