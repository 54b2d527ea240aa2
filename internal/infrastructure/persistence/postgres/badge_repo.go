package postgres

import (
	"context"
	"fmt"

	"github.com/pulsehub/pulse-engagement-hub/internal/domain/badge"
	"github.com/pulsehub/pulse-engagement-hub/internal/domain/shared"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// BADGE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// BadgeRepository implements badge.Repository for PostgreSQL.
type BadgeRepository struct {
	conn *Connection
}

// NewBadgeRepository creates a new BadgeRepository.
func NewBadgeRepository(conn *Connection) *BadgeRepository {
	return &BadgeRepository{conn: conn}
}

// CreateIfAbsent inserts an award. The UNIQUE (user_id, badge_id) constraint
// makes a second concurrent insert lose cleanly with shared.ErrAwardExists.
func (r *BadgeRepository) CreateIfAbsent(ctx context.Context, award *badge.Award) error {
	query := `
		INSERT INTO badge_awards (id, user_id, badge_id, tier, earned_date, context, bonus_entry_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	var bonusEntryID *string
	if award.BonusEntryID != "" {
		bonusEntryID = &award.BonusEntryID
	}

	_, err := r.conn.Exec(ctx, query,
		award.ID,
		award.UserID,
		award.BadgeID,
		string(award.Tier),
		award.EarnedDate,
		award.Context,
		bonusEntryID,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrAwardExists
		}
		return fmt.Errorf("failed to create badge award: %w", err)
	}

	return nil
}

// GetByUser returns all awards of a user, newest first.
func (r *BadgeRepository) GetByUser(ctx context.Context, userID string) ([]*badge.Award, error) {
	query := `
		SELECT id, user_id, badge_id, tier, earned_date, context, COALESCE(bonus_entry_id, '')
		FROM badge_awards
		WHERE user_id = $1
		ORDER BY earned_date DESC
	`

	rows, err := r.conn.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get badge awards: %w", err)
	}
	defer rows.Close()

	return scanAwards(rows)
}

// OwnedSet returns the set of badge IDs a user already holds.
func (r *BadgeRepository) OwnedSet(ctx context.Context, userID string) (map[string]bool, error) {
	rows, err := r.conn.Query(ctx,
		"SELECT badge_id FROM badge_awards WHERE user_id = $1",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get owned badges: %w", err)
	}
	defer rows.Close()

	owned := make(map[string]bool)
	for rows.Next() {
		var badgeID string
		if err := rows.Scan(&badgeID); err != nil {
			return nil, fmt.Errorf("failed to scan badge id: %w", err)
		}
		owned[badgeID] = true
	}

	return owned, rows.Err()
}

// SetBonusEntry links the bonus ledger entry to an award. Idempotent: an
// already-linked award with the same entry is not an error.
func (r *BadgeRepository) SetBonusEntry(ctx context.Context, awardID, entryID string) error {
	query := `
		UPDATE badge_awards
		SET bonus_entry_id = $1
		WHERE id = $2 AND (bonus_entry_id IS NULL OR bonus_entry_id = $1)
	`

	result, err := r.conn.Exec(ctx, query, entryID, awardID)
	if err != nil {
		return fmt.Errorf("failed to set bonus entry: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.NewDomainError("badge", "SetBonusEntry", shared.ErrInvalidState,
			"award not found or already linked to a different entry")
	}

	return nil
}

// ListWithoutBonus returns awards whose bonus was never recorded, oldest
// first, for the background reconciler.
func (r *BadgeRepository) ListWithoutBonus(ctx context.Context, limit int) ([]*badge.Award, error) {
	query := `
		SELECT id, user_id, badge_id, tier, earned_date, context, COALESCE(bonus_entry_id, '')
		FROM badge_awards
		WHERE bonus_entry_id IS NULL
		ORDER BY earned_date ASC
		LIMIT $1
	`

	rows, err := r.conn.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list awards without bonus: %w", err)
	}
	defer rows.Close()

	return scanAwards(rows)
}

// CountByUser returns the number of badges a user holds.
func (r *BadgeRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx,
		"SELECT COUNT(*) FROM badge_awards WHERE user_id = $1",
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count badge awards: %w", err)
	}
	return count, nil
}

// scanAwards scans badge awards from rows.
func scanAwards(rows pgx.Rows) ([]*badge.Award, error) {
	var awards []*badge.Award

	for rows.Next() {
		var a badge.Award
		var tier string

		err := rows.Scan(
			&a.ID,
			&a.UserID,
			&a.BadgeID,
			&tier,
			&a.EarnedDate,
			&a.Context,
			&a.BonusEntryID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan badge award: %w", err)
		}

		a.Tier = badge.Tier(tier)
		awards = append(awards, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return awards, nil
}
