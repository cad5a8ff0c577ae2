package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// QStashClient publishes delivery jobs to a hosted QStash-compatible queue
// over its v2 publish API. The queue performs the delivery attempts, retries
// with exponential backoff, and invokes the callback URLs.
type QStashClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewQStashClient(baseURL, token string, logger *slog.Logger) *QStashClient {
	return &QStashClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Publish submits one job: POST {base}/v2/publish/{destination} with the body
// to deliver, custom headers as Upstash-Forward-* so they reach the
// subscriber verbatim, and the callback URLs in Upstash headers.
func (c *QStashClient) Publish(ctx context.Context, pub PublishRequest) (*PublishResponse, error) {
	endpoint := c.baseURL + "/v2/publish/" + pub.URL

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(pub.Body))
	if err != nil {
		return nil, fmt.Errorf("creating publish request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Upstash-Callback", pub.Callback)
	req.Header.Set("Upstash-Failure-Callback", pub.FailureCallback)
	req.Header.Set("Upstash-Hide-Headers", "true")
	for k, v := range pub.Headers {
		req.Header.Set("Upstash-Forward-"+k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("publishing to queue: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("queue rejected publish: status %d: %s", resp.StatusCode, body)
	}

	var out PublishResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding publish response: %w", err)
	}
	if out.MessageID == "" {
		return nil, fmt.Errorf("queue accepted publish but returned no message id")
	}

	return &out, nil
}
