package postgres

// ══════════════════════════════════════════════════════════════════════════════
// EMBEDDED MIGRATIONS
// Схема ядра геймификации. Ключевые ограничения живут в хранилище:
//   - ledger_entries append-only, порядок воспроизведения задаёт seq;
//   - badge_awards с UNIQUE (user_id, badge_id) - защита от двойной выдачи;
//   - частичный уникальный индекс на бонусную ссылку - идемпотентность
//     фоновой сверки бонусов;
//   - user_aggregates.version - оптимистическая блокировка.
// ══════════════════════════════════════════════════════════════════════════════

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_ledger",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_badges",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
		{
			Version: 3,
			Name:    "create_goals",
			UpSQL:   migration003Up,
			DownSQL: migration003Down,
		},
		{
			Version: 4,
			Name:    "create_notification_outbox",
			UpSQL:   migration004Up,
			DownSQL: migration004Down,
		},
	}
}

const migration001Up = `
CREATE TABLE user_aggregates (
    user_id           TEXT PRIMARY KEY,
    balance           INTEGER NOT NULL DEFAULT 0 CHECK (balance >= 0),
    lifetime_points   INTEGER NOT NULL DEFAULT 0 CHECK (lifetime_points >= 0),
    level             INTEGER NOT NULL DEFAULT 1,
    tier              TEXT NOT NULL DEFAULT 'bronze',
    events_attended   INTEGER NOT NULL DEFAULT 0,
    comments_authored INTEGER NOT NULL DEFAULT 0,
    recognitions_sent INTEGER NOT NULL DEFAULT 0,
    streak_days       INTEGER NOT NULL DEFAULT 0,
    best_streak       INTEGER NOT NULL DEFAULT 0,
    last_activity_date DATE,
    processing_halted BOOLEAN NOT NULL DEFAULT FALSE,
    version           INTEGER NOT NULL DEFAULT 1,
    created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE ledger_entries (
    id             TEXT PRIMARY KEY,
    seq            BIGSERIAL UNIQUE,
    user_id        TEXT NOT NULL,
    amount         INTEGER NOT NULL CHECK (amount <> 0),
    type           TEXT NOT NULL CHECK (type IN ('earn', 'redeem', 'bonus', 'adjustment')),
    reference_type TEXT NOT NULL DEFAULT '',
    reference_id   TEXT NOT NULL DEFAULT '',
    description    TEXT NOT NULL DEFAULT '',
    balance_after  INTEGER NOT NULL CHECK (balance_after >= 0),
    processed_by   TEXT NOT NULL DEFAULT '',
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX idx_ledger_entries_user_seq ON ledger_entries (user_id, seq);
CREATE INDEX idx_ledger_entries_reference ON ledger_entries (user_id, reference_type, reference_id);

-- Идемпотентность бонусной сверки: не более одной бонусной записи
-- на одну выдачу бейджа.
CREATE UNIQUE INDEX idx_ledger_entries_bonus_ref
    ON ledger_entries (user_id, reference_id)
    WHERE type = 'bonus' AND reference_type = 'badge_award';

CREATE INDEX idx_user_aggregates_lifetime ON user_aggregates (lifetime_points DESC);
`

const migration001Down = `
DROP TABLE IF EXISTS ledger_entries;
DROP TABLE IF EXISTS user_aggregates;
`

const migration002Up = `
CREATE TABLE badge_awards (
    id             TEXT PRIMARY KEY,
    user_id        TEXT NOT NULL,
    badge_id       TEXT NOT NULL,
    tier           TEXT NOT NULL CHECK (tier IN ('bronze', 'silver', 'gold', 'platinum')),
    earned_date    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    context        TEXT NOT NULL DEFAULT '',
    bonus_entry_id TEXT,
    CONSTRAINT badge_awards_user_badge_unique UNIQUE (user_id, badge_id)
);

CREATE INDEX idx_badge_awards_user ON badge_awards (user_id);
CREATE INDEX idx_badge_awards_missing_bonus ON badge_awards (earned_date)
    WHERE bonus_entry_id IS NULL;
`

const migration002Down = `
DROP TABLE IF EXISTS badge_awards;
`

const migration003Up = `
CREATE TABLE goals (
    id                  TEXT PRIMARY KEY,
    user_id             TEXT NOT NULL,
    title               TEXT NOT NULL DEFAULT '',
    target_value        DOUBLE PRECISION NOT NULL CHECK (target_value > 0),
    current_value       DOUBLE PRECISION NOT NULL DEFAULT 0,
    progress_percentage DOUBLE PRECISION NOT NULL DEFAULT 0,
    start_date          TIMESTAMPTZ NOT NULL,
    end_date            TIMESTAMPTZ NOT NULL,
    difficulty          TEXT NOT NULL CHECK (difficulty IN ('easy', 'medium', 'hard', 'extreme')),
    points_reward       INTEGER NOT NULL DEFAULT 0 CHECK (points_reward >= 0),
    status              TEXT NOT NULL DEFAULT 'active',
    last_adjusted_at    TIMESTAMPTZ,
    version             INTEGER NOT NULL DEFAULT 1,
    created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX idx_goals_user ON goals (user_id);
CREATE INDEX idx_goals_active ON goals (end_date) WHERE status = 'active';

CREATE TABLE goal_adjustments (
    id                TEXT PRIMARY KEY,
    goal_id           TEXT NOT NULL REFERENCES goals (id),
    kind              TEXT NOT NULL CHECK (kind IN ('escalation', 'extension')),
    reason            TEXT NOT NULL,
    old_target_value  DOUBLE PRECISION NOT NULL,
    new_target_value  DOUBLE PRECISION NOT NULL,
    old_difficulty    TEXT NOT NULL,
    new_difficulty    TEXT NOT NULL,
    old_points_reward INTEGER NOT NULL,
    new_points_reward INTEGER NOT NULL,
    old_end_date      TIMESTAMPTZ NOT NULL,
    new_end_date      TIMESTAMPTZ NOT NULL,
    delta             DOUBLE PRECISION NOT NULL,
    adjusted_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX idx_goal_adjustments_goal ON goal_adjustments (goal_id, adjusted_at);
`

const migration003Down = `
DROP TABLE IF EXISTS goal_adjustments;
DROP TABLE IF EXISTS goals;
`

const migration004Up = `
CREATE TABLE notification_outbox (
    id         TEXT PRIMARY KEY,
    user_id    TEXT NOT NULL,
    kind       TEXT NOT NULL,
    payload    JSONB NOT NULL DEFAULT '{}',
    status     TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'sent', 'failed', 'exhausted')),
    attempts   INTEGER NOT NULL DEFAULT 0,
    last_error TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    sent_at    TIMESTAMPTZ
);

CREATE INDEX idx_notification_outbox_pending ON notification_outbox (created_at)
    WHERE status IN ('pending', 'failed');
`

const migration004Down = `
DROP TABLE IF EXISTS notification_outbox;
`
