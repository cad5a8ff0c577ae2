package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/papermark/webhook-engine/internal/domain"
)

func postWebhook(t *testing.T, handler *WebhookHandler, req domain.CreateWebhookRequest) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshaling request: %v", err)
	}
	r := httptest.NewRequest(http.MethodPost, "/api/v1/teams/team_1/webhooks", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.Create(rec, r)
	return rec
}

func TestWebhookHandler_CreateValidation(t *testing.T) {
	// Requests below must be rejected before any store access.
	handler := NewWebhookHandler(nil)

	tests := []struct {
		name string
		req  domain.CreateWebhookRequest
	}{
		{
			name: "missing name",
			req:  domain.CreateWebhookRequest{URL: "https://example.com/hook", Triggers: []string{"link.viewed"}},
		},
		{
			name: "missing url",
			req:  domain.CreateWebhookRequest{Name: "hook", Triggers: []string{"link.viewed"}},
		},
		{
			name: "non-http url",
			req:  domain.CreateWebhookRequest{Name: "hook", URL: "ftp://example.com", Triggers: []string{"link.viewed"}},
		},
		{
			name: "relative url",
			req:  domain.CreateWebhookRequest{Name: "hook", URL: "/hooks/in", Triggers: []string{"link.viewed"}},
		},
		{
			name: "no triggers",
			req:  domain.CreateWebhookRequest{Name: "hook", URL: "https://example.com/hook"},
		},
		{
			name: "unknown trigger",
			req:  domain.CreateWebhookRequest{Name: "hook", URL: "https://example.com/hook", Triggers: []string{"link.deleted"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postWebhook(t, handler, tt.req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestValidDestinationURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://example.com/hook", true},
		{"http://localhost:9100/hook", true},
		{"https://hooks.slack.com/services/T/B/x", true},
		{"ftp://example.com", false},
		{"example.com/hook", false},
		{"", false},
		{"://bad", false},
	}

	for _, tt := range tests {
		if got := validDestinationURL(tt.url); got != tt.want {
			t.Errorf("validDestinationURL(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}
