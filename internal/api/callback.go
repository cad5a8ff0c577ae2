package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/papermark/webhook-engine/internal/domain"
	"github.com/papermark/webhook-engine/internal/metrics"
	"github.com/papermark/webhook-engine/internal/queue"
	"github.com/papermark/webhook-engine/internal/store"
	ws "github.com/papermark/webhook-engine/internal/websocket"
)

// DeliveryRecorder persists terminal delivery outcomes.
type DeliveryRecorder interface {
	RecordDelivery(ctx context.Context, params store.DeliveryRecordParams) error
}

// OutcomeBroadcaster pushes outcomes to live observers.
type OutcomeBroadcaster interface {
	Broadcast(event ws.OutcomeEvent)
}

// CallbackHandler receives the queue's terminal outcome reports. The webhook
// id, event id, and event name travel in the query string, placed there at
// publish time; the body is the queue's callback payload.
type CallbackHandler struct {
	recorder DeliveryRecorder
	hub      OutcomeBroadcaster
	logger   *slog.Logger
}

func NewCallbackHandler(recorder DeliveryRecorder, hub OutcomeBroadcaster, logger *slog.Logger) *CallbackHandler {
	return &CallbackHandler{recorder: recorder, hub: hub, logger: logger}
}

func (h *CallbackHandler) Handle(w http.ResponseWriter, r *http.Request) {
	webhookID := r.URL.Query().Get("webhookId")
	eventID := r.URL.Query().Get("eventId")
	event := r.URL.Query().Get("event")

	if webhookID == "" || eventID == "" {
		respondError(w, http.StatusBadRequest, "missing correlation parameters")
		return
	}

	var payload queue.CallbackPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid callback body")
		return
	}

	status := domain.DeliveryStatusFailed
	if payload.Status >= 200 && payload.Status < 300 {
		status = domain.DeliveryStatusSucceeded
	}

	responseBody := ""
	if payload.ResponseBody != "" {
		decoded, err := base64.StdEncoding.DecodeString(payload.ResponseBody)
		if err != nil {
			// Keep the raw value rather than losing the outcome.
			responseBody = payload.ResponseBody
		} else {
			responseBody = string(decoded)
		}
	}

	var httpStatus *int
	if payload.Status != 0 {
		httpStatus = &payload.Status
	}

	err := h.recorder.RecordDelivery(r.Context(), store.DeliveryRecordParams{
		MessageID:    payload.SourceMessageID,
		WebhookID:    webhookID,
		EventID:      eventID,
		Event:        event,
		Status:       status,
		HTTPStatus:   httpStatus,
		ResponseBody: responseBody,
	})
	if err != nil {
		h.logger.Error("failed to record delivery outcome",
			"webhook_id", webhookID,
			"event_id", eventID,
			"message_id", payload.SourceMessageID,
			"error", err,
		)
		respondError(w, http.StatusInternalServerError, "failed to record delivery")
		return
	}

	metrics.TerminalOutcomes.WithLabelValues(event, status).Inc()

	h.logger.Info("delivery outcome recorded",
		"webhook_id", webhookID,
		"event_id", eventID,
		"event", event,
		"message_id", payload.SourceMessageID,
		"status", status,
		"http_status", payload.Status,
		"retried", payload.Retried,
	)

	outcomeType := "delivery_failed"
	if status == domain.DeliveryStatusSucceeded {
		outcomeType = "delivery_succeeded"
	}
	h.hub.Broadcast(ws.OutcomeEvent{
		Type:       outcomeType,
		EventID:    eventID,
		WebhookID:  webhookID,
		Event:      event,
		MessageID:  payload.SourceMessageID,
		StatusCode: httpStatus,
		Timestamp:  time.Now().UTC(),
	})

	w.WriteHeader(http.StatusOK)
}
