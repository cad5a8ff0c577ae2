package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/papermark/webhook-engine/internal/dispatch"
	"github.com/papermark/webhook-engine/internal/payload"
	"github.com/papermark/webhook-engine/internal/store"
)

// emitTimeout bounds a single event fan-out. The fan-out runs detached from
// the triggering request so a slow queue cannot delay the API response.
const emitTimeout = 30 * time.Second

// EventHandler records domain activity and fires the matching webhook event.
// The webhook fan-out is fire-and-forget: the recorded view, link, document,
// or dataroom is durable regardless of what happens downstream.
type EventHandler struct {
	store   *store.PostgresStore
	emitter *dispatch.Emitter
}

func NewEventHandler(s *store.PostgresStore, emitter *dispatch.Emitter) *EventHandler {
	return &EventHandler{store: s, emitter: emitter}
}

type recordViewRequest struct {
	TeamID      string  `json:"teamId"`
	LinkID      string  `json:"linkId"`
	ViewerEmail *string `json:"viewerEmail"`
	Verified    bool    `json:"verified"`
	DocumentID  string  `json:"documentId"`
	DataroomID  string  `json:"dataroomId"`
	Country     string  `json:"country"`
	City        string  `json:"city"`
	Device      string  `json:"device"`
	Browser     string  `json:"browser"`
	OS          string  `json:"os"`
	UA          string  `json:"ua"`
	Referer     string  `json:"referer"`
}

// RecordView persists a view and fires link.viewed.
func (h *EventHandler) RecordView(w http.ResponseWriter, r *http.Request) {
	var req recordViewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TeamID == "" || req.LinkID == "" {
		respondError(w, http.StatusBadRequest, "teamId and linkId are required")
		return
	}

	link, err := h.store.GetLink(r.Context(), req.LinkID, req.TeamID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to look up link")
		return
	}
	if link == nil {
		respondError(w, http.StatusNotFound, "link not found")
		return
	}

	view, err := h.store.CreateView(r.Context(), req.LinkID, req.ViewerEmail, req.Verified)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to record view")
		return
	}

	click := payload.ClickData{
		ViewID:     view.ID,
		LinkID:     link.ID,
		DocumentID: req.DocumentID,
		DataroomID: req.DataroomID,
		Country:    req.Country,
		City:       req.City,
		Device:     req.Device,
		Browser:    req.Browser,
		OS:         req.OS,
		UA:         req.UA,
		Referer:    req.Referer,
	}
	h.emit(func(ctx context.Context) {
		h.emitter.LinkViewed(ctx, link.TeamID, click)
	})

	respondJSON(w, http.StatusCreated, view)
}

// CreateLink persists a link and fires link.created.
func (h *EventHandler) CreateLink(w http.ResponseWriter, r *http.Request) {
	var params store.CreateLinkParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if params.TeamID == "" {
		respondError(w, http.StatusBadRequest, "team_id is required")
		return
	}

	link, err := h.store.CreateLink(r.Context(), params)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create link")
		return
	}

	h.emit(func(ctx context.Context) {
		h.emitter.LinkCreated(ctx, link.TeamID, link.ID)
	})

	respondJSON(w, http.StatusCreated, link)
}

type createDocumentRequest struct {
	TeamID      string  `json:"team_id"`
	Name        string  `json:"name"`
	ContentType *string `json:"content_type"`
}

// CreateDocument persists a document and fires document.created.
func (h *EventHandler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	var req createDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TeamID == "" || req.Name == "" {
		respondError(w, http.StatusBadRequest, "team_id and name are required")
		return
	}

	document, err := h.store.CreateDocument(r.Context(), req.TeamID, req.Name, req.ContentType)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create document")
		return
	}

	h.emit(func(ctx context.Context) {
		h.emitter.DocumentCreated(ctx, document.TeamID, document.ID)
	})

	respondJSON(w, http.StatusCreated, document)
}

type createDataroomRequest struct {
	TeamID string `json:"team_id"`
	Name   string `json:"name"`
}

// CreateDataroom persists a dataroom and fires dataroom.created.
func (h *EventHandler) CreateDataroom(w http.ResponseWriter, r *http.Request) {
	var req createDataroomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TeamID == "" || req.Name == "" {
		respondError(w, http.StatusBadRequest, "team_id and name are required")
		return
	}

	dataroom, err := h.store.CreateDataroom(r.Context(), req.TeamID, req.Name)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create dataroom")
		return
	}

	h.emit(func(ctx context.Context) {
		h.emitter.DataroomCreated(ctx, dataroom.TeamID, dataroom.ID)
	})

	respondJSON(w, http.StatusCreated, dataroom)
}

// emit runs the fan-out on a fresh context so it survives the request.
func (h *EventHandler) emit(fn func(ctx context.Context)) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), emitTimeout)
		defer cancel()
		fn(ctx)
	}()
}
