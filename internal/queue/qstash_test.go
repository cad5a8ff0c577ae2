package queue

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestQStashClient_Publish(t *testing.T) {
	var gotPath, gotAuth, gotCallback, gotFailure, gotForwarded string
	var gotBody []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotCallback = r.Header.Get("Upstash-Callback")
		gotFailure = r.Header.Get("Upstash-Failure-Callback")
		gotForwarded = r.Header.Get("Upstash-Forward-X-Papermark-Signature")
		gotBody, _ = io.ReadAll(r.Body)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"messageId":"msg_abc123"}`))
	}))
	defer server.Close()

	client := NewQStashClient(server.URL, "test-token", testLogger())

	resp, err := client.Publish(context.Background(), PublishRequest{
		URL:             "https://example.com/hook",
		Body:            []byte(`{"event":"link.viewed"}`),
		Headers:         map[string]string{"X-Papermark-Signature": "sig456"},
		Callback:        "https://engine/api/webhooks/callback?eventId=evt_1",
		FailureCallback: "https://engine/api/webhooks/callback?eventId=evt_1&fail=1",
	})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if resp.MessageID != "msg_abc123" {
		t.Errorf("message id = %q, want %q", resp.MessageID, "msg_abc123")
	}
	if gotPath != "/v2/publish/https://example.com/hook" {
		t.Errorf("publish path = %q", gotPath)
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("authorization = %q", gotAuth)
	}
	if gotCallback != "https://engine/api/webhooks/callback?eventId=evt_1" {
		t.Errorf("callback header = %q", gotCallback)
	}
	if gotFailure != "https://engine/api/webhooks/callback?eventId=evt_1&fail=1" {
		t.Errorf("failure callback header = %q", gotFailure)
	}
	if gotForwarded != "sig456" {
		t.Errorf("forwarded signature header = %q", gotForwarded)
	}
	if string(gotBody) != `{"event":"link.viewed"}` {
		t.Errorf("published body = %q", gotBody)
	}
}

func TestQStashClient_PublishRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewQStashClient(server.URL, "bad-token", testLogger())

	_, err := client.Publish(context.Background(), PublishRequest{
		URL:  "https://example.com/hook",
		Body: []byte("{}"),
	})
	if err == nil {
		t.Fatal("expected error for rejected publish")
	}
}

func TestQStashClient_EmptyMessageID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewQStashClient(server.URL, "test-token", testLogger())

	_, err := client.Publish(context.Background(), PublishRequest{
		URL:  "https://example.com/hook",
		Body: []byte("{}"),
	})
	if err == nil {
		t.Fatal("expected error when no message id is returned")
	}
}
