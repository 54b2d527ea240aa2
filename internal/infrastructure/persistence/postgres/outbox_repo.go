package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pulsehub/pulse-engagement-hub/internal/domain/notification"
)

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION OUTBOX REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// OutboxRepository implements notification.OutboxRepository for PostgreSQL.
type OutboxRepository struct {
	conn *Connection
}

// NewOutboxRepository creates a new OutboxRepository.
func NewOutboxRepository(conn *Connection) *OutboxRepository {
	return &OutboxRepository{conn: conn}
}

// Enqueue adds a record to the outbox.
func (r *OutboxRepository) Enqueue(ctx context.Context, rec *notification.OutboxRecord) error {
	query := `
		INSERT INTO notification_outbox (id, user_id, kind, payload, status, attempts, last_error, created_at, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	payloadJSON, err := json.Marshal(rec.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal outbox payload: %w", err)
	}

	_, err = r.conn.Exec(ctx, query,
		rec.ID,
		rec.UserID,
		string(rec.Kind),
		payloadJSON,
		string(rec.Status),
		rec.Attempts,
		rec.LastError,
		rec.CreatedAt,
		rec.SentAt,
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue notification: %w", err)
	}

	return nil
}

// ListPending returns undelivered records (pending and failed) in creation
// order. Exhausted records stay behind for manual review.
func (r *OutboxRepository) ListPending(ctx context.Context, limit int) ([]*notification.OutboxRecord, error) {
	query := `
		SELECT id, user_id, kind, payload, status, attempts, last_error, created_at, sent_at
		FROM notification_outbox
		WHERE status IN ('pending', 'failed')
		ORDER BY created_at ASC
		LIMIT $1
	`

	rows, err := r.conn.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending notifications: %w", err)
	}
	defer rows.Close()

	var records []*notification.OutboxRecord
	for rows.Next() {
		var rec notification.OutboxRecord
		var kind, status string
		var payloadJSON []byte

		err := rows.Scan(
			&rec.ID,
			&rec.UserID,
			&kind,
			&payloadJSON,
			&status,
			&rec.Attempts,
			&rec.LastError,
			&rec.CreatedAt,
			&rec.SentAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outbox record: %w", err)
		}

		rec.Kind = notification.Kind(kind)
		rec.Status = notification.OutboxStatus(status)
		rec.Payload = map[string]any{}
		if len(payloadJSON) > 0 {
			_ = json.Unmarshal(payloadJSON, &rec.Payload)
		}

		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return records, nil
}

// Update persists a status change of an outbox record.
func (r *OutboxRepository) Update(ctx context.Context, rec *notification.OutboxRecord) error {
	query := `
		UPDATE notification_outbox
		SET status = $1, attempts = $2, last_error = $3, sent_at = $4
		WHERE id = $5
	`

	result, err := r.conn.Exec(ctx, query,
		string(rec.Status),
		rec.Attempts,
		rec.LastError,
		rec.SentAt,
		rec.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update outbox record: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("outbox record %s not found", rec.ID)
	}

	return nil
}

// PurgeSent removes delivered records older than the given time.
func (r *OutboxRepository) PurgeSent(ctx context.Context, olderThan time.Time) (int, error) {
	result, err := r.conn.Exec(ctx,
		"DELETE FROM notification_outbox WHERE status = 'sent' AND sent_at < $1",
		olderThan,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to purge sent notifications: %w", err)
	}

	return int(result.RowsAffected()), nil
}
