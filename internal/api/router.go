package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/papermark/webhook-engine/internal/dispatch"
	"github.com/papermark/webhook-engine/internal/metrics"
	"github.com/papermark/webhook-engine/internal/store"
	ws "github.com/papermark/webhook-engine/internal/websocket"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(pgStore *store.PostgresStore, emitter *dispatch.Emitter, hub *ws.Hub, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// Handlers
	webhookHandler := NewWebhookHandler(pgStore)
	eventHandler := NewEventHandler(pgStore, emitter)
	deliveryHandler := NewDeliveryHandler(pgStore)
	callbackHandler := NewCallbackHandler(pgStore, hub, logger)

	// Queue callback endpoint. Its path is baked into every published job,
	// so it lives outside the versioned API.
	r.Post("/api/webhooks/callback", callbackHandler.Handle)

	// WebSocket endpoint for the live outcome feed.
	r.Get("/ws", hub.HandleWebSocket)

	// Prometheus metrics.
	r.Handle("/metrics", metrics.Handler())

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", HealthHandler())

		r.Route("/teams/{teamID}/webhooks", func(r chi.Router) {
			r.Post("/", webhookHandler.Create)
			r.Get("/", webhookHandler.List)
			r.Get("/{id}", webhookHandler.Get)
			r.Delete("/{id}", webhookHandler.Delete)
		})

		r.Post("/views", eventHandler.RecordView)
		r.Post("/links", eventHandler.CreateLink)
		r.Post("/documents", eventHandler.CreateDocument)
		r.Post("/datarooms", eventHandler.CreateDataroom)

		r.Route("/deliveries", func(r chi.Router) {
			r.Get("/", deliveryHandler.List)
			r.Get("/{id}", deliveryHandler.Get)
		})
	})

	return r
}
