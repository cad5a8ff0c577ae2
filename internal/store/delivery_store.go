package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/papermark/webhook-engine/internal/domain"
)

// DeliveryRecordParams holds one terminal outcome reported by the queue.
type DeliveryRecordParams struct {
	MessageID    string
	WebhookID    string
	EventID      string
	Event        string
	Status       string
	HTTPStatus   *int
	ResponseBody string
}

// RecordDelivery appends a delivery outcome. The log is append-only; repeated
// callbacks for the same message simply produce additional rows.
func (s *PostgresStore) RecordDelivery(ctx context.Context, params DeliveryRecordParams) error {
	var respBody *string
	if params.ResponseBody != "" {
		respBody = &params.ResponseBody
	}

	id := "del_" + uuid.NewString()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO delivery_records (id, message_id, webhook_id, event_id, event, status, http_status, response_body)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, id, params.MessageID, params.WebhookID, params.EventID, params.Event,
		params.Status, params.HTTPStatus, respBody)
	if err != nil {
		return fmt.Errorf("inserting delivery record: %w", err)
	}
	return nil
}

// ListDeliveries returns delivery records, newest first, with optional filters.
func (s *PostgresStore) ListDeliveries(ctx context.Context, eventID, webhookID, status string, limit int) ([]domain.DeliveryRecord, error) {
	query := `SELECT id, message_id, webhook_id, event_id, event, status, http_status, response_body, created_at FROM delivery_records`
	args := []any{}
	argIdx := 1
	conditions := []string{}

	if eventID != "" {
		conditions = append(conditions, fmt.Sprintf("event_id = $%d", argIdx))
		args = append(args, eventID)
		argIdx++
	}
	if webhookID != "" {
		conditions = append(conditions, fmt.Sprintf("webhook_id = $%d", argIdx))
		args = append(args, webhookID)
		argIdx++
	}
	if status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, status)
		argIdx++
	}

	if len(conditions) > 0 {
		query += " WHERE "
		for i, c := range conditions {
			if i > 0 {
				query += " AND "
			}
			query += c
		}
	}

	query += " ORDER BY created_at DESC"

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying delivery records: %w", err)
	}
	defer rows.Close()

	var records []domain.DeliveryRecord
	for rows.Next() {
		var rec domain.DeliveryRecord
		err := rows.Scan(
			&rec.ID, &rec.MessageID, &rec.WebhookID, &rec.EventID,
			&rec.Event, &rec.Status, &rec.HTTPStatus, &rec.ResponseBody,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning delivery record: %w", err)
		}
		records = append(records, rec)
	}

	if records == nil {
		records = []domain.DeliveryRecord{}
	}

	return records, nil
}

// GetDelivery returns one delivery record, or (nil, nil) when absent.
func (s *PostgresStore) GetDelivery(ctx context.Context, id string) (*domain.DeliveryRecord, error) {
	var rec domain.DeliveryRecord
	err := s.pool.QueryRow(ctx, `
		SELECT id, message_id, webhook_id, event_id, event, status, http_status, response_body, created_at
		FROM delivery_records WHERE id = $1
	`, id).Scan(
		&rec.ID, &rec.MessageID, &rec.WebhookID, &rec.EventID,
		&rec.Event, &rec.Status, &rec.HTTPStatus, &rec.ResponseBody,
		&rec.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("querying delivery record: %w", err)
	}
	return &rec, nil
}
