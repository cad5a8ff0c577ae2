package queue

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/papermark/webhook-engine/internal/metrics"
	"github.com/redis/go-redis/v9"
)

// Worker drains the Redis delivery queue. Each job gets at-least-once
// delivery attempts with exponential backoff between retries; the terminal
// outcome fires exactly one callback (success or failure), after which the
// job is gone. Retries of one job are never reordered relative to each other
// because a job holds a single queue slot at a time.
type Worker struct {
	client       *redis.Client
	httpClient   *http.Client
	logger       *slog.Logger
	pollInterval time.Duration
	batchSize    int64
	numWorkers   int

	jobs chan deliveryJob
	wg   sync.WaitGroup
}

// WorkerConfig tunes the worker; zero values fall back to defaults.
type WorkerConfig struct {
	NumWorkers   int
	PollInterval time.Duration
	Timeout      time.Duration
}

func NewWorker(client *redis.Client, cfg WorkerConfig, logger *slog.Logger) *Worker {
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = 10
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Worker{
		client:       client,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		logger:       logger,
		pollInterval: cfg.PollInterval,
		batchSize:    10,
		numWorkers:   cfg.NumWorkers,
		jobs:         make(chan deliveryJob, cfg.NumWorkers*2),
	}
}

// Start launches the delivery goroutines and the polling loop. It returns
// once the context is cancelled and all in-flight deliveries have finished.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.numWorkers; i++ {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			for job := range w.jobs {
				w.deliver(ctx, job)
			}
		}()
	}
	w.logger.Info("delivery worker started", "num_workers", w.numWorkers)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			close(w.jobs)
			w.wg.Wait()
			w.logger.Info("delivery worker stopped")
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

// poll claims due jobs from the sorted set. ZRem is the claim: if another
// worker instance already removed the member, we skip it.
func (w *Worker) poll(ctx context.Context) {
	now := strconv.FormatInt(time.Now().UnixMicro(), 10)

	members, err := w.client.ZRangeByScore(ctx, deliveryQueueKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   now,
		Count: w.batchSize,
	}).Result()
	if err != nil {
		w.logger.Error("failed to poll delivery queue", "error", err)
		return
	}

	for _, member := range members {
		removed, err := w.client.ZRem(ctx, deliveryQueueKey, member).Result()
		if err != nil {
			w.logger.Error("failed to claim delivery job", "error", err)
			continue
		}
		if removed == 0 {
			continue
		}

		var job deliveryJob
		if err := json.Unmarshal([]byte(member), &job); err != nil {
			w.logger.Error("failed to unmarshal delivery job", "error", err)
			continue
		}

		w.jobs <- job
	}
}

// deliver performs one HTTP attempt and either finishes the job with a
// terminal callback or re-enqueues it with backoff.
func (w *Worker) deliver(ctx context.Context, job deliveryJob) {
	start := time.Now()
	status, respBody, err := w.attempt(ctx, job)
	elapsed := time.Since(start)

	success := err == nil && status >= 200 && status < 300

	outcome := "failed"
	if success {
		outcome = "succeeded"
	}
	metrics.DeliveryAttempts.WithLabelValues(outcome).Inc()
	metrics.DeliveryLatency.WithLabelValues(outcome).Observe(elapsed.Seconds())

	if success {
		w.logger.Info("delivery succeeded",
			"message_id", job.MessageID,
			"url", job.URL,
			"attempt", job.Attempt,
			"status", status,
		)
		w.fireCallback(ctx, job.Callback, job, status, respBody)
		return
	}

	w.logger.Warn("delivery attempt failed",
		"message_id", job.MessageID,
		"url", job.URL,
		"attempt", job.Attempt,
		"status", status,
		"error", err,
	)

	if job.Attempt >= job.MaxRetries {
		w.fireCallback(ctx, job.FailureCallback, job, status, respBody)
		return
	}

	w.requeue(ctx, job)
}

// attempt POSTs the job body with its forwarded headers.
func (w *Worker) attempt(ctx context.Context, job deliveryJob) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, job.URL, bytes.NewReader(job.Body))
	if err != nil {
		return 0, nil, err
	}
	if _, ok := job.Headers["Content-Type"]; !ok {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range job.Headers {
		req.Header.Set(k, v)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	// Cap the stored response body at 1KB.
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return resp.StatusCode, body, nil
}

// requeue schedules the next attempt with exponential backoff.
func (w *Worker) requeue(ctx context.Context, job deliveryJob) {
	job.Attempt++

	data, err := json.Marshal(job)
	if err != nil {
		w.logger.Error("failed to marshal retry job", "error", err, "message_id", job.MessageID)
		return
	}

	due := time.Now().Add(nextBackoff(job.Attempt))
	err = w.client.ZAdd(ctx, deliveryQueueKey, redis.Z{
		Score:  float64(due.UnixMicro()),
		Member: string(data),
	}).Err()
	if err != nil {
		w.logger.Error("failed to requeue delivery job", "error", err, "message_id", job.MessageID)
	}
}

// fireCallback reports the terminal outcome. Callback failures are logged
// only: the callback target treats these as idempotent notifications.
func (w *Worker) fireCallback(ctx context.Context, callbackURL string, job deliveryJob, status int, respBody []byte) {
	payload := CallbackPayload{
		SourceMessageID: job.MessageID,
		URL:             job.URL,
		Status:          status,
		ResponseBody:    base64.StdEncoding.EncodeToString(respBody),
		Retried:         job.Attempt - 1,
		MaxRetries:      job.MaxRetries,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		w.logger.Error("failed to marshal callback payload", "error", err, "message_id", job.MessageID)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, callbackURL, bytes.NewReader(data))
	if err != nil {
		w.logger.Error("failed to create callback request", "error", err, "message_id", job.MessageID)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		w.logger.Error("failed to invoke callback", "error", err, "message_id", job.MessageID)
		return
	}
	resp.Body.Close()
}

// nextBackoff doubles per attempt starting at one second, capped at an hour.
func nextBackoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 12 {
		attempt = 12
	}
	backoff := time.Second << (attempt - 1)
	if backoff > time.Hour {
		backoff = time.Hour
	}
	return backoff
}
