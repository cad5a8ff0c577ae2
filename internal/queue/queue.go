// Package queue is the durable delivery queue boundary. The dispatcher hands
// each delivery job to a Publisher and is done; the queue owns the HTTP call,
// retries with backoff, and reports the terminal outcome exactly once via the
// success or failure callback URL.
//
// Two backends are provided: a client for a hosted QStash-compatible queue,
// and a self-hosted Redis-backed queue with its own delivery worker.
package queue

import (
	"context"
)

// PublishRequest describes one delivery job.
type PublishRequest struct {
	// URL is the subscriber endpoint to POST to.
	URL string
	// Body is the formatted payload to transmit as-is.
	Body []byte
	// Headers are forwarded verbatim on the delivery request.
	Headers map[string]string
	// Callback is invoked once on delivered; FailureCallback once on
	// exhausted. Both carry the correlation ids in their query string.
	Callback        string
	FailureCallback string
}

// PublishResponse acknowledges queue acceptance. Once a message id is
// returned, the queue owns the job.
type PublishResponse struct {
	MessageID string `json:"messageId"`
}

// Publisher submits delivery jobs to a durable queue.
type Publisher interface {
	Publish(ctx context.Context, req PublishRequest) (*PublishResponse, error)
}

// CallbackPayload is the body the queue POSTs to a callback URL when a job
// reaches a terminal state. ResponseBody is base64-encoded.
type CallbackPayload struct {
	SourceMessageID string `json:"sourceMessageId"`
	URL             string `json:"url"`
	Status          int    `json:"status"`
	ResponseBody    string `json:"body,omitempty"`
	Retried         int    `json:"retried"`
	MaxRetries      int    `json:"maxRetries"`
}
