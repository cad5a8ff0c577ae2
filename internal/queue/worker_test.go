package queue

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func startTestWorker(t *testing.T, client *redis.Client) context.CancelFunc {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	w := NewWorker(client, WorkerConfig{
		NumWorkers:   2,
		PollInterval: 10 * time.Millisecond,
		Timeout:      2 * time.Second,
	}, testLogger())

	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("worker did not stop")
		}
	})

	return cancel
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestWorker_DeliversAndFiresSuccessCallback(t *testing.T) {
	_, client := setupTestRedis(t)
	ctx := context.Background()

	var delivered atomic.Int32
	var gotSignature atomic.Value
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		delivered.Add(1)
		gotSignature.Store(r.Header.Get("X-Papermark-Signature"))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	defer target.Close()

	callbacks := make(chan CallbackPayload, 1)
	callbackSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var payload CallbackPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Errorf("unmarshaling callback: %v", err)
		}
		callbacks <- payload
		w.WriteHeader(http.StatusOK)
	}))
	defer callbackSrv.Close()

	q := NewRedisQueue(client, testLogger())
	resp, err := q.Publish(ctx, PublishRequest{
		URL:             target.URL,
		Body:            []byte(`{"event":"link.viewed"}`),
		Headers:         map[string]string{"X-Papermark-Signature": "sig123"},
		Callback:        callbackSrv.URL,
		FailureCallback: callbackSrv.URL + "/failure",
	})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	startTestWorker(t, client)

	var payload CallbackPayload
	select {
	case payload = <-callbacks:
	case <-time.After(3 * time.Second):
		t.Fatal("success callback never fired")
	}

	if delivered.Load() != 1 {
		t.Errorf("expected exactly 1 delivery attempt, got %d", delivered.Load())
	}
	if sig, _ := gotSignature.Load().(string); sig != "sig123" {
		t.Errorf("forwarded signature = %q, want %q", sig, "sig123")
	}
	if payload.SourceMessageID != resp.MessageID {
		t.Errorf("callback message id = %q, want %q", payload.SourceMessageID, resp.MessageID)
	}
	if payload.Status != http.StatusOK {
		t.Errorf("callback status = %d, want 200", payload.Status)
	}
	if payload.Retried != 0 {
		t.Errorf("callback retried = %d, want 0", payload.Retried)
	}

	decoded, err := base64.StdEncoding.DecodeString(payload.ResponseBody)
	if err != nil {
		t.Fatalf("decoding response body: %v", err)
	}
	if string(decoded) != "ok" {
		t.Errorf("callback response body = %q, want %q", decoded, "ok")
	}

	waitFor(t, time.Second, func() bool {
		depth, _ := q.Depth(ctx)
		return depth == 0
	})
}

func TestWorker_ExhaustedRetriesFireFailureCallback(t *testing.T) {
	_, client := setupTestRedis(t)
	ctx := context.Background()

	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer target.Close()

	var successFired atomic.Int32
	failures := make(chan CallbackPayload, 1)
	callbackSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/failure" {
			body, _ := io.ReadAll(r.Body)
			var payload CallbackPayload
			json.Unmarshal(body, &payload)
			failures <- payload
		} else {
			successFired.Add(1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer callbackSrv.Close()

	// Enqueue a job already on its last permitted attempt so the first
	// failure is terminal.
	job := deliveryJob{
		MessageID:       "msg_last",
		URL:             target.URL,
		Body:            []byte("{}"),
		Callback:        callbackSrv.URL,
		FailureCallback: callbackSrv.URL + "/failure",
		Attempt:         defaultMaxRetries,
		MaxRetries:      defaultMaxRetries,
	}
	data, _ := json.Marshal(job)
	if err := client.ZAdd(ctx, deliveryQueueKey, redis.Z{
		Score:  float64(time.Now().UnixMicro()),
		Member: string(data),
	}).Err(); err != nil {
		t.Fatalf("seeding job: %v", err)
	}

	startTestWorker(t, client)

	var payload CallbackPayload
	select {
	case payload = <-failures:
	case <-time.After(3 * time.Second):
		t.Fatal("failure callback never fired")
	}

	if payload.SourceMessageID != "msg_last" {
		t.Errorf("callback message id = %q, want %q", payload.SourceMessageID, "msg_last")
	}
	if payload.Status != http.StatusInternalServerError {
		t.Errorf("callback status = %d, want 500", payload.Status)
	}
	if payload.Retried != defaultMaxRetries-1 {
		t.Errorf("callback retried = %d, want %d", payload.Retried, defaultMaxRetries-1)
	}
	if successFired.Load() != 0 {
		t.Error("success callback fired for a failed job")
	}
}

func TestWorker_FailedAttemptRequeuesWithBackoff(t *testing.T) {
	_, client := setupTestRedis(t)
	ctx := context.Background()

	var attempts atomic.Int32
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer target.Close()

	q := NewRedisQueue(client, testLogger())
	if _, err := q.Publish(ctx, PublishRequest{
		URL:             target.URL,
		Body:            []byte("{}"),
		Callback:        "http://127.0.0.1:0/unused",
		FailureCallback: "http://127.0.0.1:0/unused",
	}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	startTestWorker(t, client)

	waitFor(t, 3*time.Second, func() bool { return attempts.Load() >= 1 })

	// The retry is scheduled in the future, so it stays queued instead of
	// being attempted again immediately.
	waitFor(t, time.Second, func() bool {
		depth, _ := q.Depth(ctx)
		return depth == 1
	})

	members, err := client.ZRange(ctx, deliveryQueueKey, 0, -1).Result()
	if err != nil {
		t.Fatalf("reading queue: %v", err)
	}
	var job deliveryJob
	if err := json.Unmarshal([]byte(members[0]), &job); err != nil {
		t.Fatalf("unmarshaling requeued job: %v", err)
	}
	if job.Attempt != 2 {
		t.Errorf("requeued attempt = %d, want 2", job.Attempt)
	}
}

func TestNextBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 0, want: time.Second},
		{attempt: 1, want: time.Second},
		{attempt: 2, want: 2 * time.Second},
		{attempt: 3, want: 4 * time.Second},
		{attempt: 6, want: 32 * time.Second},
		{attempt: 12, want: time.Hour},
		{attempt: 50, want: time.Hour},
	}

	for _, tt := range tests {
		if got := nextBackoff(tt.attempt); got != tt.want {
			t.Errorf("nextBackoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}
