package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/papermark/webhook-engine/internal/domain"
	"github.com/papermark/webhook-engine/internal/queue"
	"github.com/papermark/webhook-engine/internal/store"
	ws "github.com/papermark/webhook-engine/internal/websocket"
)

type fakeRecorder struct {
	records []store.DeliveryRecordParams
	err     error
}

func (f *fakeRecorder) RecordDelivery(ctx context.Context, params store.DeliveryRecordParams) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, params)
	return nil
}

type fakeBroadcaster struct {
	events []ws.OutcomeEvent
}

func (f *fakeBroadcaster) Broadcast(event ws.OutcomeEvent) {
	f.events = append(f.events, event)
}

func newCallbackRequest(t *testing.T, query string, payload queue.CallbackPayload) *http.Request {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshaling payload: %v", err)
	}
	return httptest.NewRequest(http.MethodPost, "/api/webhooks/callback"+query, bytes.NewReader(body))
}

func testCallbackLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestCallbackHandler_RecordsSuccess(t *testing.T) {
	recorder := &fakeRecorder{}
	broadcaster := &fakeBroadcaster{}
	handler := NewCallbackHandler(recorder, broadcaster, testCallbackLogger())

	req := newCallbackRequest(t, "?webhookId=wh_1&eventId=evt_1&event=link.viewed", queue.CallbackPayload{
		SourceMessageID: "msg_1",
		URL:             "https://example.com/hook",
		Status:          200,
		ResponseBody:    base64.StdEncoding.EncodeToString([]byte("ok")),
		Retried:         0,
		MaxRetries:      5,
	})
	rec := httptest.NewRecorder()

	handler.Handle(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(recorder.records) != 1 {
		t.Fatalf("expected 1 recorded delivery, got %d", len(recorder.records))
	}

	got := recorder.records[0]
	if got.MessageID != "msg_1" || got.WebhookID != "wh_1" || got.EventID != "evt_1" {
		t.Errorf("unexpected correlation: %+v", got)
	}
	if got.Status != domain.DeliveryStatusSucceeded {
		t.Errorf("status = %q, want %q", got.Status, domain.DeliveryStatusSucceeded)
	}
	if got.ResponseBody != "ok" {
		t.Errorf("response body = %q, want decoded %q", got.ResponseBody, "ok")
	}
	if got.HTTPStatus == nil || *got.HTTPStatus != 200 {
		t.Errorf("http status = %v, want 200", got.HTTPStatus)
	}

	if len(broadcaster.events) != 1 {
		t.Fatalf("expected 1 broadcast, got %d", len(broadcaster.events))
	}
	if broadcaster.events[0].Type != "delivery_succeeded" {
		t.Errorf("broadcast type = %q", broadcaster.events[0].Type)
	}
}

func TestCallbackHandler_RecordsFailure(t *testing.T) {
	recorder := &fakeRecorder{}
	broadcaster := &fakeBroadcaster{}
	handler := NewCallbackHandler(recorder, broadcaster, testCallbackLogger())

	req := newCallbackRequest(t, "?webhookId=wh_1&eventId=evt_2&event=document.created", queue.CallbackPayload{
		SourceMessageID: "msg_2",
		Status:          500,
		Retried:         4,
		MaxRetries:      5,
	})
	rec := httptest.NewRecorder()

	handler.Handle(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if recorder.records[0].Status != domain.DeliveryStatusFailed {
		t.Errorf("status = %q, want %q", recorder.records[0].Status, domain.DeliveryStatusFailed)
	}
	if broadcaster.events[0].Type != "delivery_failed" {
		t.Errorf("broadcast type = %q", broadcaster.events[0].Type)
	}
}

func TestCallbackHandler_MissingCorrelation(t *testing.T) {
	recorder := &fakeRecorder{}
	handler := NewCallbackHandler(recorder, &fakeBroadcaster{}, testCallbackLogger())

	req := newCallbackRequest(t, "", queue.CallbackPayload{SourceMessageID: "msg_3", Status: 200})
	rec := httptest.NewRecorder()

	handler.Handle(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if len(recorder.records) != 0 {
		t.Error("delivery recorded despite missing correlation parameters")
	}
}

func TestCallbackHandler_RecorderError(t *testing.T) {
	recorder := &fakeRecorder{err: context.DeadlineExceeded}
	broadcaster := &fakeBroadcaster{}
	handler := NewCallbackHandler(recorder, broadcaster, testCallbackLogger())

	req := newCallbackRequest(t, "?webhookId=wh_1&eventId=evt_4&event=link.created", queue.CallbackPayload{
		SourceMessageID: "msg_4",
		Status:          200,
	})
	rec := httptest.NewRecorder()

	handler.Handle(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if len(broadcaster.events) != 0 {
		t.Error("broadcast fired even though the outcome was not recorded")
	}
}
