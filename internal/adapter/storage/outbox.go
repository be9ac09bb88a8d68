package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/rl1809/storefront-ledger/internal/core/domain"
)

// FetchUnpublished returns the oldest events not yet handed to the broker.
func (m *MySQLAdapter) FetchUnpublished(ctx context.Context, limit int) ([]domain.OutboxEvent, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, topic, event_key, event_type, payload, created_at
		FROM outbox_events
		WHERE published_at IS NULL
		ORDER BY created_at, id
		LIMIT ?`, limit)
	if err != nil {
		return nil, classify(ctx, fmt.Errorf("query outbox: %w", err))
	}
	defer rows.Close()

	var events []domain.OutboxEvent
	for rows.Next() {
		var e domain.OutboxEvent
		if err := rows.Scan(&e.ID, &e.Topic, &e.Key, &e.Type, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (m *MySQLAdapter) MarkPublished(ctx context.Context, eventID string, at time.Time) error {
	_, err := m.db.ExecContext(ctx,
		`UPDATE outbox_events SET published_at = ? WHERE id = ? AND published_at IS NULL`, at, eventID)
	if err != nil {
		return classify(ctx, fmt.Errorf("mark published: %w", err))
	}
	return nil
}
