package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/papermark/webhook-engine/internal/domain"
)

// CreateWebhook registers a delivery target for a team. The generated secret
// is part of the returned record; callers must only ever expose it once.
func (s *PostgresStore) CreateWebhook(ctx context.Context, teamID string, req domain.CreateWebhookRequest) (*domain.Webhook, error) {
	secret, err := generateSecret()
	if err != nil {
		return nil, fmt.Errorf("generating webhook secret: %w", err)
	}

	id := "wh_" + uuid.NewString()

	var webhook domain.Webhook
	err = s.pool.QueryRow(ctx, `
		INSERT INTO webhooks (id, team_id, name, url, secret, triggers)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, team_id, name, url, secret, triggers, created_at, updated_at
	`, id, teamID, req.Name, req.URL, secret, req.Triggers).Scan(
		&webhook.ID, &webhook.TeamID, &webhook.Name, &webhook.URL,
		&webhook.Secret, &webhook.Triggers, &webhook.CreatedAt, &webhook.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting webhook: %w", err)
	}

	return &webhook, nil
}

// GetWebhook returns one webhook without its secret, or (nil, nil) when it
// does not exist.
func (s *PostgresStore) GetWebhook(ctx context.Context, teamID, id string) (*domain.Webhook, error) {
	var webhook domain.Webhook
	err := s.pool.QueryRow(ctx, `
		SELECT id, team_id, name, url, triggers, created_at, updated_at
		FROM webhooks WHERE id = $1 AND team_id = $2
	`, id, teamID).Scan(
		&webhook.ID, &webhook.TeamID, &webhook.Name, &webhook.URL,
		&webhook.Triggers, &webhook.CreatedAt, &webhook.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("querying webhook: %w", err)
	}
	return &webhook, nil
}

// ListWebhooks returns a team's webhooks without secrets.
func (s *PostgresStore) ListWebhooks(ctx context.Context, teamID string) ([]domain.Webhook, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, team_id, name, url, triggers, created_at, updated_at
		FROM webhooks
		WHERE team_id = $1
		ORDER BY created_at DESC
	`, teamID)
	if err != nil {
		return nil, fmt.Errorf("querying webhooks: %w", err)
	}
	defer rows.Close()

	var webhooks []domain.Webhook
	for rows.Next() {
		var webhook domain.Webhook
		err := rows.Scan(
			&webhook.ID, &webhook.TeamID, &webhook.Name, &webhook.URL,
			&webhook.Triggers, &webhook.CreatedAt, &webhook.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning webhook: %w", err)
		}
		webhooks = append(webhooks, webhook)
	}

	if webhooks == nil {
		webhooks = []domain.Webhook{}
	}

	return webhooks, nil
}

// DeleteWebhook removes a webhook registration.
func (s *PostgresStore) DeleteWebhook(ctx context.Context, teamID, id string) error {
	result, err := s.pool.Exec(ctx, `
		DELETE FROM webhooks WHERE id = $1 AND team_id = $2
	`, id, teamID)
	if err != nil {
		return fmt.Errorf("deleting webhook: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("webhook not found")
	}
	return nil
}

// FindWebhooksByTrigger returns the webhooks that opted into the trigger for
// one team, including secrets — this is the dispatch read path.
func (s *PostgresStore) FindWebhooksByTrigger(ctx context.Context, teamID string, trigger domain.Trigger) ([]domain.Webhook, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, team_id, name, url, secret, triggers, created_at, updated_at
		FROM webhooks
		WHERE team_id = $1 AND $2 = ANY(triggers)
	`, teamID, trigger.String())
	if err != nil {
		return nil, fmt.Errorf("finding webhooks for trigger: %w", err)
	}
	defer rows.Close()

	var webhooks []domain.Webhook
	for rows.Next() {
		var webhook domain.Webhook
		err := rows.Scan(
			&webhook.ID, &webhook.TeamID, &webhook.Name, &webhook.URL,
			&webhook.Secret, &webhook.Triggers, &webhook.CreatedAt, &webhook.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning webhook: %w", err)
		}
		webhooks = append(webhooks, webhook)
	}

	if webhooks == nil {
		webhooks = []domain.Webhook{}
	}

	return webhooks, nil
}

func generateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "whsec_" + hex.EncodeToString(buf), nil
}
