package dispatch

import (
	"context"
	"log/slog"

	"github.com/papermark/webhook-engine/internal/domain"
	"github.com/papermark/webhook-engine/internal/payload"
)

// WebhookFinder looks up the webhooks registered for one team and trigger.
type WebhookFinder interface {
	FindWebhooksByTrigger(ctx context.Context, teamID string, trigger domain.Trigger) ([]domain.Webhook, error)
}

// Emitter ties a domain event to its fan-out: build the envelope, find the
// subscribed webhooks, dispatch. It never returns an error — the triggering
// action must succeed independently of webhook outcomes, so every failure is
// logged and swallowed here.
type Emitter struct {
	finder     WebhookFinder
	builder    *payload.Builder
	dispatcher *Dispatcher
	logger     *slog.Logger
}

func NewEmitter(finder WebhookFinder, builder *payload.Builder, dispatcher *Dispatcher, logger *slog.Logger) *Emitter {
	return &Emitter{
		finder:     finder,
		builder:    builder,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// LinkViewed fires the link.viewed fan-out for one recorded view.
func (e *Emitter) LinkViewed(ctx context.Context, teamID string, click payload.ClickData) {
	webhooks, ok := e.findWebhooks(ctx, teamID, domain.TriggerLinkViewed)
	if !ok {
		return
	}

	env, err := e.builder.LinkViewed(ctx, teamID, click)
	e.dispatch(ctx, teamID, domain.TriggerLinkViewed, webhooks, env, err)
}

// LinkCreated fires the link.created fan-out.
func (e *Emitter) LinkCreated(ctx context.Context, teamID, linkID string) {
	webhooks, ok := e.findWebhooks(ctx, teamID, domain.TriggerLinkCreated)
	if !ok {
		return
	}

	env, err := e.builder.LinkCreated(ctx, teamID, linkID)
	e.dispatch(ctx, teamID, domain.TriggerLinkCreated, webhooks, env, err)
}

// DocumentCreated fires the document.created fan-out.
func (e *Emitter) DocumentCreated(ctx context.Context, teamID, documentID string) {
	webhooks, ok := e.findWebhooks(ctx, teamID, domain.TriggerDocumentCreated)
	if !ok {
		return
	}

	env, err := e.builder.DocumentCreated(ctx, teamID, documentID)
	e.dispatch(ctx, teamID, domain.TriggerDocumentCreated, webhooks, env, err)
}

// DataroomCreated fires the dataroom.created fan-out.
func (e *Emitter) DataroomCreated(ctx context.Context, teamID, dataroomID string) {
	webhooks, ok := e.findWebhooks(ctx, teamID, domain.TriggerDataroomCreated)
	if !ok {
		return
	}

	env, err := e.builder.DataroomCreated(ctx, teamID, dataroomID)
	e.dispatch(ctx, teamID, domain.TriggerDataroomCreated, webhooks, env, err)
}

// findWebhooks returns (webhooks, true) when there is work to do. Querying
// webhooks first avoids building envelopes nobody will receive.
func (e *Emitter) findWebhooks(ctx context.Context, teamID string, trigger domain.Trigger) ([]domain.Webhook, bool) {
	webhooks, err := e.finder.FindWebhooksByTrigger(ctx, teamID, trigger)
	if err != nil {
		e.logger.Error("failed to find webhooks",
			"team_id", teamID,
			"event", trigger,
			"error", err,
		)
		return nil, false
	}
	if len(webhooks) == 0 {
		return nil, false
	}
	return webhooks, true
}

func (e *Emitter) dispatch(ctx context.Context, teamID string, trigger domain.Trigger, webhooks []domain.Webhook, env *domain.Envelope, buildErr error) {
	if buildErr != nil {
		e.logger.Error("failed to build envelope",
			"team_id", teamID,
			"event", trigger,
			"error", buildErr,
		)
		return
	}
	if env == nil {
		// Referenced record was deleted between the trigger and the build;
		// abort this event's fan-out quietly.
		return
	}

	if _, err := e.dispatcher.Send(ctx, webhooks, env); err != nil {
		e.logger.Error("failed to dispatch event",
			"team_id", teamID,
			"event_id", env.ID,
			"event", trigger,
			"error", err,
		)
	}
}
