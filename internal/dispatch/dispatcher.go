// Package dispatch fans event envelopes out to registered webhooks via the
// durable delivery queue.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/papermark/webhook-engine/internal/domain"
	"github.com/papermark/webhook-engine/internal/format"
	"github.com/papermark/webhook-engine/internal/metrics"
	"github.com/papermark/webhook-engine/internal/queue"
	"github.com/papermark/webhook-engine/internal/signature"
)

// callbackPath is where the queue reports terminal delivery outcomes.
const callbackPath = "/api/webhooks/callback"

// Result is one webhook's submission outcome. Err is set when the queue
// rejected the job; the delivery itself is reported later via callback.
type Result struct {
	WebhookID string
	MessageID string
	Err       error
}

// Dispatcher submits one delivery job per qualifying webhook. The queue is an
// injected dependency so tests can substitute a fake.
type Dispatcher struct {
	publisher       queue.Publisher
	callbackBaseURL string
	logger          *slog.Logger
}

func NewDispatcher(publisher queue.Publisher, callbackBaseURL string, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		publisher:       publisher,
		callbackBaseURL: callbackBaseURL,
		logger:          logger,
	}
}

// Send fans env out to every webhook, submitting all jobs concurrently and
// collecting every result. Webhooks are independent: a rejected submission is
// logged and recorded in that webhook's result only, never propagated. An
// empty webhook list returns immediately with no queue calls.
func (d *Dispatcher) Send(ctx context.Context, webhooks []domain.Webhook, env *domain.Envelope) ([]Result, error) {
	if len(webhooks) == 0 {
		return nil, nil
	}

	// The canonical bytes are marshaled once: they are both the signing
	// input for every webhook and the body generic endpoints receive.
	canonical, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshaling envelope: %w", err)
	}

	results := make([]Result, len(webhooks))
	var wg sync.WaitGroup

	for i, webhook := range webhooks {
		wg.Add(1)
		go func(i int, webhook domain.Webhook) {
			defer wg.Done()
			results[i] = d.submit(ctx, webhook, env, canonical)
		}(i, webhook)
	}
	wg.Wait()

	return results, nil
}

func (d *Dispatcher) submit(ctx context.Context, webhook domain.Webhook, env *domain.Envelope, canonical []byte) Result {
	callbackURL := d.callbackURL(webhook.ID, env)

	sig := signature.Sign(webhook.Secret, canonical)
	body := format.Body(webhook.URL, env, canonical)

	resp, err := d.publisher.Publish(ctx, queue.PublishRequest{
		URL:  webhook.URL,
		Body: body,
		Headers: map[string]string{
			signature.Header: sig,
		},
		Callback:        callbackURL,
		FailureCallback: callbackURL,
	})
	if err != nil {
		metrics.Submissions.WithLabelValues("rejected").Inc()
		d.logger.Error("queue rejected delivery job",
			"webhook_id", webhook.ID,
			"team_id", webhook.TeamID,
			"event_id", env.ID,
			"event", env.Event,
			"error", err,
		)
		return Result{WebhookID: webhook.ID, Err: err}
	}

	metrics.Submissions.WithLabelValues("accepted").Inc()
	d.logger.Info("delivery job submitted",
		"webhook_id", webhook.ID,
		"event_id", env.ID,
		"event", env.Event,
		"message_id", resp.MessageID,
	)
	return Result{WebhookID: webhook.ID, MessageID: resp.MessageID}
}

// callbackURL embeds the correlation ids so the async outcome maps back to
// its webhook and event without any in-memory state.
func (d *Dispatcher) callbackURL(webhookID string, env *domain.Envelope) string {
	u, err := url.Parse(d.callbackBaseURL + callbackPath)
	if err != nil {
		// callbackBaseURL is validated at startup; fall back to the raw join.
		return d.callbackBaseURL + callbackPath
	}
	q := u.Query()
	q.Set("webhookId", webhookID)
	q.Set("eventId", env.ID)
	q.Set("event", env.Event.String())
	u.RawQuery = q.Encode()
	return u.String()
}
