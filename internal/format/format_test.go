package format

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/papermark/webhook-engine/internal/domain"
)

func strptr(s string) *string { return &s }

func viewedEnvelope(t *testing.T) (*domain.Envelope, []byte) {
	t.Helper()

	env, err := domain.NewEnvelope(domain.TriggerLinkViewed, domain.EventData{
		View: &domain.ViewData{
			ViewedAt: "2024-06-01T12:30:00Z",
			ViewID:   "view_1",
			Email:    strptr("viewer@example.com"),
		},
		Link: &domain.LinkData{
			ID:   "link_1",
			URL:  "https://docs.example.com/abc",
			Name: strptr("Q2 Pitch Deck"),
		},
	})
	if err != nil {
		t.Fatalf("building envelope: %v", err)
	}
	canonical, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshaling envelope: %v", err)
	}
	return env, canonical
}

func TestBody_GenericEndpointUnmodified(t *testing.T) {
	env, canonical := viewedEnvelope(t)

	body := Body("https://example.com/hooks/in", env, canonical)
	if string(body) != string(canonical) {
		t.Error("non-chat destinations must receive the canonical envelope unchanged")
	}
}

func TestBody_SlackEndpointGetsText(t *testing.T) {
	env, canonical := viewedEnvelope(t)

	body := Body("https://hooks.slack.com/services/T00/B00/xyz", env, canonical)

	var msg struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(body, &msg); err != nil {
		t.Fatalf("slack body is not valid JSON: %v", err)
	}
	if !strings.Contains(msg.Text, "viewer@example.com") {
		t.Errorf("slack text should contain viewer email, got %q", msg.Text)
	}
	if !strings.Contains(msg.Text, "https://docs.example.com/abc") {
		t.Errorf("slack text should contain the link URL, got %q", msg.Text)
	}
	if !strings.Contains(msg.Text, "Q2 Pitch Deck") {
		t.Errorf("slack text should contain the document name, got %q", msg.Text)
	}
}

func TestBody_SlackTemplatesPerEvent(t *testing.T) {
	tests := []struct {
		name    string
		event   domain.Trigger
		data    domain.EventData
		substrs []string
	}{
		{
			name:    "link created",
			event:   domain.TriggerLinkCreated,
			data:    domain.EventData{Link: &domain.LinkData{URL: "https://docs.example.com/new", Name: strptr("NDA")}},
			substrs: []string{"New link created", "NDA", "https://docs.example.com/new"},
		},
		{
			name:    "document created",
			event:   domain.TriggerDocumentCreated,
			data:    domain.EventData{Document: &domain.DocumentData{ID: "doc_1", Name: "Board Minutes"}},
			substrs: []string{"New document uploaded", "Board Minutes"},
		},
		{
			name:    "dataroom created",
			event:   domain.TriggerDataroomCreated,
			data:    domain.EventData{Dataroom: &domain.DataroomData{ID: "dr_1", Name: "Series A"}},
			substrs: []string{"New dataroom created", "Series A"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := domain.NewEnvelope(tt.event, tt.data)
			if err != nil {
				t.Fatalf("building envelope: %v", err)
			}
			canonical, _ := json.Marshal(env)

			body := Body("https://hooks.slack.com/services/T00/B00/xyz", env, canonical)

			var msg struct {
				Text string `json:"text"`
			}
			if err := json.Unmarshal(body, &msg); err != nil {
				t.Fatalf("slack body is not valid JSON: %v", err)
			}
			for _, want := range tt.substrs {
				if !strings.Contains(msg.Text, want) {
					t.Errorf("slack text missing %q, got %q", want, msg.Text)
				}
			}
		})
	}
}

func TestBody_UnknownEventFallsBack(t *testing.T) {
	// An envelope with an event no template knows about still formats.
	env := &domain.Envelope{
		ID:        "evt_x",
		Event:     domain.Trigger("link.archived"),
		Timestamp: "2024-06-01T12:30:00Z",
	}
	canonical, _ := json.Marshal(env)

	body := Body("https://hooks.slack.com/services/T00/B00/xyz", env, canonical)

	var msg struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(body, &msg); err != nil {
		t.Fatalf("slack body is not valid JSON: %v", err)
	}
	if msg.Text != "Event: link.archived" {
		t.Errorf("fallback text = %q, want %q", msg.Text, "Event: link.archived")
	}
}

func TestBody_HostMatching(t *testing.T) {
	env, canonical := viewedEnvelope(t)

	tests := []struct {
		url       string
		wantSlack bool
	}{
		{"https://hooks.slack.com/services/T00/B00/xyz", true},
		{"https://slack.com/api/incoming", true},
		{"https://example.com/hooks.slack.com", false},
		{"https://notslack.com/webhook", false},
		{"https://evil.com/?redirect=hooks.slack.com", false},
		{"://bad-url", false},
	}

	for _, tt := range tests {
		body := Body(tt.url, env, canonical)
		gotSlack := string(body) != string(canonical)
		if gotSlack != tt.wantSlack {
			t.Errorf("Body(%q): slack-formatted = %v, want %v", tt.url, gotSlack, tt.wantSlack)
		}
	}
}
