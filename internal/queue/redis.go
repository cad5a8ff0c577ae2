package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// deliveryQueueKey is the sorted set holding pending jobs, scored by the
// microsecond timestamp at which they become due.
const deliveryQueueKey = "webhook_delivery_queue"

const defaultMaxRetries = 5

// deliveryJob is one queued delivery as stored in Redis.
type deliveryJob struct {
	MessageID       string            `json:"message_id"`
	URL             string            `json:"url"`
	Body            []byte            `json:"body"`
	Headers         map[string]string `json:"headers"`
	Callback        string            `json:"callback"`
	FailureCallback string            `json:"failure_callback"`
	Attempt         int               `json:"attempt"`
	MaxRetries      int               `json:"max_retries"`
}

// RedisQueue is the self-hosted queue backend: Publish enqueues a job into a
// Redis sorted set, and a Worker drains it, delivers, retries, and fires the
// terminal callbacks.
type RedisQueue struct {
	client *redis.Client
	logger *slog.Logger
}

func NewRedisQueue(client *redis.Client, logger *slog.Logger) *RedisQueue {
	return &RedisQueue{client: client, logger: logger}
}

// Publish enqueues the job due immediately and returns its message id. From
// this point the worker owns the job.
func (q *RedisQueue) Publish(ctx context.Context, pub PublishRequest) (*PublishResponse, error) {
	job := deliveryJob{
		MessageID:       "msg_" + uuid.NewString(),
		URL:             pub.URL,
		Body:            pub.Body,
		Headers:         pub.Headers,
		Callback:        pub.Callback,
		FailureCallback: pub.FailureCallback,
		Attempt:         1,
		MaxRetries:      defaultMaxRetries,
	}

	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshaling delivery job: %w", err)
	}

	err = q.client.ZAdd(ctx, deliveryQueueKey, redis.Z{
		Score:  float64(time.Now().UnixMicro()),
		Member: string(data),
	}).Err()
	if err != nil {
		return nil, fmt.Errorf("enqueuing delivery job: %w", err)
	}

	return &PublishResponse{MessageID: job.MessageID}, nil
}

// Depth returns the number of jobs waiting in the queue.
func (q *RedisQueue) Depth(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, deliveryQueueKey).Result()
}
