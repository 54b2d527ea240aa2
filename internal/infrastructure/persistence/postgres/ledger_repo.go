package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/pulsehub/pulse-engagement-hub/internal/domain/ledger"
	"github.com/pulsehub/pulse-engagement-hub/internal/domain/shared"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// LedgerRepository implements ledger.Repository for PostgreSQL.
type LedgerRepository struct {
	conn *Connection
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(conn *Connection) *LedgerRepository {
	return &LedgerRepository{conn: conn}
}

const entryColumns = `id, seq, user_id, amount, type, reference_type, reference_id,
	   description, balance_after, processed_by, created_at`

const aggregateColumns = `user_id, balance, lifetime_points, level, tier,
	   events_attended, comments_authored, recognitions_sent,
	   streak_days, best_streak, last_activity_date,
	   processing_halted, version, created_at, updated_at`

// ─────────────────────────────────────────────────────────────────────────────
// Ledger (append-only)
// ─────────────────────────────────────────────────────────────────────────────

// AppendEntry inserts a ledger entry and persists the updated aggregate in a
// single transaction. The aggregate update is guarded by a version check: if
// another writer got there first, no rows match and shared.ErrAggregateConflict
// is returned, leaving the ledger untouched.
func (r *LedgerRepository) AppendEntry(ctx context.Context, entry *ledger.Entry, agg *ledger.Aggregate) error {
	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		updateQuery := `
			UPDATE user_aggregates SET
				balance = $1,
				lifetime_points = $2,
				level = $3,
				tier = $4,
				events_attended = $5,
				comments_authored = $6,
				recognitions_sent = $7,
				streak_days = $8,
				best_streak = $9,
				last_activity_date = $10,
				version = version + 1,
				updated_at = $11
			WHERE user_id = $12 AND version = $13
		`

		now := time.Now().UTC()
		result, err := tx.Exec(ctx, updateQuery,
			agg.Balance,
			agg.LifetimePoints,
			agg.Level,
			agg.Tier,
			agg.EventsAttended,
			agg.CommentsAuthored,
			agg.RecognitionsSent,
			agg.StreakDays,
			agg.BestStreak,
			agg.LastActivityDate,
			now,
			agg.UserID,
			agg.Version,
		)
		if err != nil {
			return fmt.Errorf("failed to update aggregate: %w", err)
		}
		if result.RowsAffected() == 0 {
			return shared.ErrAggregateConflict
		}

		insertQuery := `
			INSERT INTO ledger_entries (
				id, user_id, amount, type, reference_type, reference_id,
				description, balance_after, processed_by, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING seq
		`

		err = tx.QueryRow(ctx, insertQuery,
			entry.ID,
			entry.UserID,
			entry.Amount,
			string(entry.Type),
			entry.ReferenceType,
			entry.ReferenceID,
			entry.Description,
			entry.BalanceAfter,
			entry.ProcessedBy,
			entry.CreatedAt,
		).Scan(&entry.Seq)
		if err != nil {
			if IsUniqueViolation(err) {
				return shared.WrapError("ledger", "AppendEntry", shared.ErrAlreadyExists, "duplicate ledger entry", err)
			}
			return fmt.Errorf("failed to insert ledger entry: %w", err)
		}

		agg.Version++
		agg.UpdatedAt = now
		return nil
	})
}

// ListEntries returns a user's entries in insertion order.
func (r *LedgerRepository) ListEntries(ctx context.Context, userID string, opts ledger.ListOptions) ([]*ledger.Entry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM ledger_entries
		WHERE user_id = $1
	`
	args := []interface{}{userID}

	if opts.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", len(args)+1)
		args = append(args, *opts.Since)
	}

	query += fmt.Sprintf(" ORDER BY seq ASC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, opts.Limit, opts.Offset)

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// ListAllEntries returns every entry of a user in insertion order. Used for
// ledger replay, so it must not paginate.
func (r *LedgerRepository) ListAllEntries(ctx context.Context, userID string) ([]*ledger.Entry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM ledger_entries
		WHERE user_id = $1
		ORDER BY seq ASC
	`

	rows, err := r.conn.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list all ledger entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// CountEntries returns the number of entries for a user.
func (r *LedgerRepository) CountEntries(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx,
		"SELECT COUNT(*) FROM ledger_entries WHERE user_id = $1",
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count ledger entries: %w", err)
	}
	return count, nil
}

// FindEntryByReference finds an entry by its originating domain event.
func (r *LedgerRepository) FindEntryByReference(ctx context.Context, userID, referenceType, referenceID string) (*ledger.Entry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM ledger_entries
		WHERE user_id = $1 AND reference_type = $2 AND reference_id = $3
		ORDER BY seq ASC
		LIMIT 1
	`

	row := r.conn.QueryRow(ctx, query, userID, referenceType, referenceID)
	entry, err := scanEntry(row)
	if IsNoRows(err) {
		return nil, shared.ErrEntryNotFound
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Aggregates
// ─────────────────────────────────────────────────────────────────────────────

// GetOrCreateAggregate returns a user's aggregate, lazily creating an empty
// one on first contact.
func (r *LedgerRepository) GetOrCreateAggregate(ctx context.Context, userID string) (*ledger.Aggregate, error) {
	fresh := ledger.NewAggregate(userID)

	insertQuery := `
		INSERT INTO user_aggregates (user_id, level, tier, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO NOTHING
	`
	_, err := r.conn.Exec(ctx, insertQuery,
		fresh.UserID,
		fresh.Level,
		fresh.Tier,
		fresh.Version,
		fresh.CreatedAt,
		fresh.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create aggregate: %w", err)
	}

	return r.GetAggregate(ctx, userID)
}

// GetAggregate returns a user's aggregate.
func (r *LedgerRepository) GetAggregate(ctx context.Context, userID string) (*ledger.Aggregate, error) {
	query := `
		SELECT ` + aggregateColumns + `
		FROM user_aggregates
		WHERE user_id = $1
	`

	row := r.conn.QueryRow(ctx, query, userID)
	agg, err := scanAggregate(row)
	if IsNoRows(err) {
		return nil, shared.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return agg, nil
}

// UpdateAggregate persists aggregate state with a version check.
func (r *LedgerRepository) UpdateAggregate(ctx context.Context, agg *ledger.Aggregate) error {
	query := `
		UPDATE user_aggregates SET
			balance = $1,
			lifetime_points = $2,
			level = $3,
			tier = $4,
			events_attended = $5,
			comments_authored = $6,
			recognitions_sent = $7,
			streak_days = $8,
			best_streak = $9,
			last_activity_date = $10,
			processing_halted = $11,
			version = version + 1,
			updated_at = $12
		WHERE user_id = $13 AND version = $14
	`

	now := time.Now().UTC()
	result, err := r.conn.Exec(ctx, query,
		agg.Balance,
		agg.LifetimePoints,
		agg.Level,
		agg.Tier,
		agg.EventsAttended,
		agg.CommentsAuthored,
		agg.RecognitionsSent,
		agg.StreakDays,
		agg.BestStreak,
		agg.LastActivityDate,
		agg.ProcessingHalted,
		now,
		agg.UserID,
		agg.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update aggregate: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrAggregateConflict
	}

	agg.Version++
	agg.UpdatedAt = now
	return nil
}

// HaltProcessing freezes automatic processing for a user. Bypasses the
// version check: halting must win any race.
func (r *LedgerRepository) HaltProcessing(ctx context.Context, userID string) error {
	query := `
		UPDATE user_aggregates
		SET processing_halted = TRUE, version = version + 1, updated_at = $1
		WHERE user_id = $2
	`

	result, err := r.conn.Exec(ctx, query, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("failed to halt processing: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrUserNotFound
	}
	return nil
}

// ListAggregates returns aggregates page by page in a stable order.
func (r *LedgerRepository) ListAggregates(ctx context.Context, opts ledger.ListOptions) ([]*ledger.Aggregate, error) {
	query := `
		SELECT ` + aggregateColumns + `
		FROM user_aggregates
		ORDER BY user_id ASC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.conn.Query(ctx, query, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list aggregates: %w", err)
	}
	defer rows.Close()

	return scanAggregates(rows)
}

// TopByLifetimePoints returns the best users by lifetime points.
func (r *LedgerRepository) TopByLifetimePoints(ctx context.Context, limit int) ([]*ledger.Aggregate, error) {
	query := `
		SELECT ` + aggregateColumns + `
		FROM user_aggregates
		WHERE lifetime_points > 0
		ORDER BY lifetime_points DESC, user_id ASC
		LIMIT $1
	`

	rows, err := r.conn.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top aggregates: %w", err)
	}
	defer rows.Close()

	return scanAggregates(rows)
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPER METHODS
// ══════════════════════════════════════════════════════════════════════════════

// scanEntry scans a single ledger entry from a row.
func scanEntry(row pgx.Row) (*ledger.Entry, error) {
	var e ledger.Entry
	var txType string

	err := row.Scan(
		&e.ID,
		&e.Seq,
		&e.UserID,
		&e.Amount,
		&txType,
		&e.ReferenceType,
		&e.ReferenceID,
		&e.Description,
		&e.BalanceAfter,
		&e.ProcessedBy,
		&e.CreatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
	}

	e.Type = ledger.TransactionType(txType)
	return &e, nil
}

// scanEntries scans multiple ledger entries from rows.
func scanEntries(rows pgx.Rows) ([]*ledger.Entry, error) {
	var entries []*ledger.Entry

	for rows.Next() {
		var e ledger.Entry
		var txType string

		err := rows.Scan(
			&e.ID,
			&e.Seq,
			&e.UserID,
			&e.Amount,
			&txType,
			&e.ReferenceType,
			&e.ReferenceID,
			&e.Description,
			&e.BalanceAfter,
			&e.ProcessedBy,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}

		e.Type = ledger.TransactionType(txType)
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return entries, nil
}

// scanAggregate scans a single aggregate from a row.
func scanAggregate(row pgx.Row) (*ledger.Aggregate, error) {
	var a ledger.Aggregate

	err := row.Scan(
		&a.UserID,
		&a.Balance,
		&a.LifetimePoints,
		&a.Level,
		&a.Tier,
		&a.EventsAttended,
		&a.CommentsAuthored,
		&a.RecognitionsSent,
		&a.StreakDays,
		&a.BestStreak,
		&a.LastActivityDate,
		&a.ProcessingHalted,
		&a.Version,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan aggregate: %w", err)
	}

	return &a, nil
}

// scanAggregates scans multiple aggregates from rows.
func scanAggregates(rows pgx.Rows) ([]*ledger.Aggregate, error) {
	var aggs []*ledger.Aggregate

	for rows.Next() {
		var a ledger.Aggregate

		err := rows.Scan(
			&a.UserID,
			&a.Balance,
			&a.LifetimePoints,
			&a.Level,
			&a.Tier,
			&a.EventsAttended,
			&a.CommentsAuthored,
			&a.RecognitionsSent,
			&a.StreakDays,
			&a.BestStreak,
			&a.LastActivityDate,
			&a.ProcessingHalted,
			&a.Version,
			&a.CreatedAt,
			&a.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan aggregate: %w", err)
		}

		aggs = append(aggs, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return aggs, nil
}
