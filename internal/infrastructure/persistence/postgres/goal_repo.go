package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/pulsehub/pulse-engagement-hub/internal/domain/goal"
	"github.com/pulsehub/pulse-engagement-hub/internal/domain/shared"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// GOAL REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// GoalRepository implements goal.Repository for PostgreSQL.
type GoalRepository struct {
	conn *Connection
}

// NewGoalRepository creates a new GoalRepository.
func NewGoalRepository(conn *Connection) *GoalRepository {
	return &GoalRepository{conn: conn}
}

const goalColumns = `id, user_id, title, target_value, current_value, progress_percentage,
	   start_date, end_date, difficulty, points_reward, status,
	   last_adjusted_at, version, created_at, updated_at`

// Create creates a new goal.
func (r *GoalRepository) Create(ctx context.Context, g *goal.Goal) error {
	query := `
		INSERT INTO goals (
			id, user_id, title, target_value, current_value, progress_percentage,
			start_date, end_date, difficulty, points_reward, status,
			last_adjusted_at, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := r.conn.Exec(ctx, query,
		g.ID,
		g.UserID,
		g.Title,
		g.TargetValue,
		g.CurrentValue,
		g.ProgressPercentage,
		g.StartDate,
		g.EndDate,
		string(g.Difficulty),
		g.PointsReward,
		string(g.Status),
		g.LastAdjustedAt,
		g.Version,
		g.CreatedAt,
		g.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.NewDomainError("goal", "Create", shared.ErrAlreadyExists, "goal already exists")
		}
		return fmt.Errorf("failed to create goal: %w", err)
	}

	return nil
}

// GetByID returns a goal by ID.
func (r *GoalRepository) GetByID(ctx context.Context, id string) (*goal.Goal, error) {
	query := `
		SELECT ` + goalColumns + `
		FROM goals
		WHERE id = $1
	`

	row := r.conn.QueryRow(ctx, query, id)
	g, err := scanGoal(row)
	if IsNoRows(err) {
		return nil, shared.ErrGoalNotFound
	}
	if err != nil {
		return nil, err
	}
	return g, nil
}

// GetByUser returns a user's goals, newest first.
func (r *GoalRepository) GetByUser(ctx context.Context, userID string) ([]*goal.Goal, error) {
	query := `
		SELECT ` + goalColumns + `
		FROM goals
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.conn.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get goals by user: %w", err)
	}
	defer rows.Close()

	return scanGoals(rows)
}

// ListActive returns active goals page by page in a stable order, so a
// batch pass over all goals sees each one exactly once.
func (r *GoalRepository) ListActive(ctx context.Context, offset, limit int) ([]*goal.Goal, error) {
	query := `
		SELECT ` + goalColumns + `
		FROM goals
		WHERE status = 'active'
		ORDER BY id ASC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.conn.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list active goals: %w", err)
	}
	defer rows.Close()

	return scanGoals(rows)
}

// ApplyAdjustment persists an adjusted goal and its audit record in one
// transaction. The goal update is version-guarded: losing the race means an
// overlapping run already adjusted this goal, and shared.ErrGoalConflict
// tells the caller to skip it.
func (r *GoalRepository) ApplyAdjustment(ctx context.Context, g *goal.Goal, adj *goal.Adjustment) error {
	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		updateQuery := `
			UPDATE goals SET
				target_value = $1,
				progress_percentage = $2,
				end_date = $3,
				difficulty = $4,
				points_reward = $5,
				last_adjusted_at = $6,
				version = version + 1,
				updated_at = $7
			WHERE id = $8 AND version = $9
		`

		now := time.Now().UTC()
		result, err := tx.Exec(ctx, updateQuery,
			g.TargetValue,
			g.ProgressPercentage,
			g.EndDate,
			string(g.Difficulty),
			g.PointsReward,
			g.LastAdjustedAt,
			now,
			g.ID,
			g.Version,
		)
		if err != nil {
			return fmt.Errorf("failed to update goal: %w", err)
		}
		if result.RowsAffected() == 0 {
			return shared.ErrGoalConflict
		}

		insertQuery := `
			INSERT INTO goal_adjustments (
				id, goal_id, kind, reason,
				old_target_value, new_target_value,
				old_difficulty, new_difficulty,
				old_points_reward, new_points_reward,
				old_end_date, new_end_date,
				delta, adjusted_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		`

		_, err = tx.Exec(ctx, insertQuery,
			adj.ID,
			adj.GoalID,
			string(adj.Kind),
			adj.Reason,
			adj.OldTargetValue,
			adj.NewTargetValue,
			string(adj.OldDifficulty),
			string(adj.NewDifficulty),
			adj.OldPointsReward,
			adj.NewPointsReward,
			adj.OldEndDate,
			adj.NewEndDate,
			adj.Delta,
			adj.AdjustedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert goal adjustment: %w", err)
		}

		g.Version++
		g.UpdatedAt = now
		return nil
	})
}

// UpdateProgress persists progress fields with a version check.
func (r *GoalRepository) UpdateProgress(ctx context.Context, g *goal.Goal) error {
	query := `
		UPDATE goals SET
			current_value = $1,
			progress_percentage = $2,
			status = $3,
			version = version + 1,
			updated_at = $4
		WHERE id = $5 AND version = $6
	`

	now := time.Now().UTC()
	result, err := r.conn.Exec(ctx, query,
		g.CurrentValue,
		g.ProgressPercentage,
		string(g.Status),
		now,
		g.ID,
		g.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update goal progress: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrGoalConflict
	}

	g.Version++
	g.UpdatedAt = now
	return nil
}

// ListAdjustments returns the adjustment history of a goal, oldest first.
func (r *GoalRepository) ListAdjustments(ctx context.Context, goalID string) ([]*goal.Adjustment, error) {
	query := `
		SELECT id, goal_id, kind, reason,
			   old_target_value, new_target_value,
			   old_difficulty, new_difficulty,
			   old_points_reward, new_points_reward,
			   old_end_date, new_end_date,
			   delta, adjusted_at
		FROM goal_adjustments
		WHERE goal_id = $1
		ORDER BY adjusted_at ASC
	`

	rows, err := r.conn.Query(ctx, query, goalID)
	if err != nil {
		return nil, fmt.Errorf("failed to list goal adjustments: %w", err)
	}
	defer rows.Close()

	var adjustments []*goal.Adjustment
	for rows.Next() {
		var adj goal.Adjustment
		var kind, oldDiff, newDiff string

		err := rows.Scan(
			&adj.ID,
			&adj.GoalID,
			&kind,
			&adj.Reason,
			&adj.OldTargetValue,
			&adj.NewTargetValue,
			&oldDiff,
			&newDiff,
			&adj.OldPointsReward,
			&adj.NewPointsReward,
			&adj.OldEndDate,
			&adj.NewEndDate,
			&adj.Delta,
			&adj.AdjustedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan goal adjustment: %w", err)
		}

		adj.Kind = goal.AdjustmentKind(kind)
		adj.OldDifficulty = goal.Difficulty(oldDiff)
		adj.NewDifficulty = goal.Difficulty(newDiff)
		adjustments = append(adjustments, &adj)
	}

	return adjustments, rows.Err()
}

// scanGoal scans a single goal from a row.
func scanGoal(row pgx.Row) (*goal.Goal, error) {
	var g goal.Goal
	var difficulty, status string

	err := row.Scan(
		&g.ID,
		&g.UserID,
		&g.Title,
		&g.TargetValue,
		&g.CurrentValue,
		&g.ProgressPercentage,
		&g.StartDate,
		&g.EndDate,
		&difficulty,
		&g.PointsReward,
		&status,
		&g.LastAdjustedAt,
		&g.Version,
		&g.CreatedAt,
		&g.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan goal: %w", err)
	}

	g.Difficulty = goal.Difficulty(difficulty)
	g.Status = goal.Status(status)
	return &g, nil
}

// scanGoals scans multiple goals from rows.
func scanGoals(rows pgx.Rows) ([]*goal.Goal, error) {
	var goals []*goal.Goal

	for rows.Next() {
		var g goal.Goal
		var difficulty, status string

		err := rows.Scan(
			&g.ID,
			&g.UserID,
			&g.Title,
			&g.TargetValue,
			&g.CurrentValue,
			&g.ProgressPercentage,
			&g.StartDate,
			&g.EndDate,
			&difficulty,
			&g.PointsReward,
			&status,
			&g.LastAdjustedAt,
			&g.Version,
			&g.CreatedAt,
			&g.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan goal: %w", err)
		}

		g.Difficulty = goal.Difficulty(difficulty)
		g.Status = goal.Status(status)
		goals = append(goals, &g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return goals, nil
}
