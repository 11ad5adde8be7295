// Package postgres provides a PostgreSQL-backed session store.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mystira/storyplay/internal/sessionstore/storage"
)

var _ storage.SessionStore = (*Store)(nil)

// Store provides a PostgreSQL-backed store implementing storage.SessionStore.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to PostgreSQL and ensures the session schema exists.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	store := &Store{pool: pool}
	if err := store.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the connection pool. Nil-safe so callers can defer it.
func (s *Store) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

// ensureSchema applies the idempotent session DDL. All statements use IF NOT
// EXISTS, so repeat startups are safe.
func (s *Store) ensureSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS sessions (
    id               TEXT PRIMARY KEY,
    scenario_id      TEXT NOT NULL,
    account_id       TEXT NOT NULL,
    profile_id       TEXT NOT NULL DEFAULT '',
    status           TEXT NOT NULL,
    target_age_group TEXT NOT NULL DEFAULT '',
    player_names     TEXT[] NOT NULL DEFAULT '{}',
    completed_scenes TEXT[] NOT NULL DEFAULT '{}',
    current_scene_id TEXT NOT NULL DEFAULT '',
    started_at       TIMESTAMPTZ NOT NULL,
    updated_at       TIMESTAMPTZ NOT NULL,
    ended_at         TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_sessions_account ON sessions(account_id);
CREATE INDEX IF NOT EXISTS idx_sessions_scenario ON sessions(scenario_id);

CREATE TABLE IF NOT EXISTS session_assignments (
    session_id     TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
    slot           INTEGER NOT NULL,
    character_id   TEXT NOT NULL,
    character_name TEXT NOT NULL DEFAULT '',
    player_type    TEXT NOT NULL DEFAULT '',
    player_name    TEXT NOT NULL DEFAULT '',
    is_unused      BOOLEAN NOT NULL DEFAULT FALSE,
    PRIMARY KEY (session_id, slot)
);

CREATE TABLE IF NOT EXISTS session_choices (
    id                TEXT PRIMARY KEY,
    session_id        TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
    scene_id          TEXT NOT NULL,
    choice_text       TEXT NOT NULL,
    next_scene_id     TEXT NOT NULL DEFAULT '',
    player_id         TEXT NOT NULL DEFAULT '',
    compass_axis      TEXT NOT NULL DEFAULT '',
    compass_direction TEXT NOT NULL DEFAULT '',
    compass_delta     INTEGER NOT NULL DEFAULT 0,
    created_at        TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_session_choices_session ON session_choices(session_id);

CREATE TABLE IF NOT EXISTS scenario_completions (
    account_id   TEXT NOT NULL,
    scenario_id  TEXT NOT NULL,
    completed_at TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (account_id, scenario_id)
);
`
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure session schema: %w", err)
	}
	return nil
}

// CreateSession persists a new session record.
func (s *Store) CreateSession(ctx context.Context, record storage.SessionRecord) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO sessions (id, scenario_id, account_id, profile_id, status, target_age_group,
    player_names, completed_scenes, current_scene_id, started_at, updated_at, ended_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		record.ID, record.ScenarioID, record.AccountID, record.ProfileID,
		string(record.Status), record.TargetAgeGroup,
		record.PlayerNames, record.CompletedScenes, record.CurrentSceneID,
		record.StartedAt.UTC(), record.UpdatedAt.UTC(), record.EndedAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetSession loads one session by id, returning storage.ErrNotFound when the
// id is unknown.
func (s *Store) GetSession(ctx context.Context, id string) (storage.SessionRecord, error) {
	row := s.pool.QueryRow(ctx, `
SELECT id, scenario_id, account_id, profile_id, status, target_age_group,
    player_names, completed_scenes, current_scene_id, started_at, updated_at, ended_at
FROM sessions WHERE id = $1`, id)

	var record storage.SessionRecord
	var status string
	err := row.Scan(&record.ID, &record.ScenarioID, &record.AccountID, &record.ProfileID,
		&status, &record.TargetAgeGroup, &record.PlayerNames, &record.CompletedScenes,
		&record.CurrentSceneID, &record.StartedAt, &record.UpdatedAt, &record.EndedAt)
	if err == pgx.ErrNoRows {
		return storage.SessionRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.SessionRecord{}, fmt.Errorf("scan session: %w", err)
	}
	record.Status = storage.SessionStatus(status)
	return record, nil
}

// UpdateSession overwrites the mutable columns of an existing session.
func (s *Store) UpdateSession(ctx context.Context, record storage.SessionRecord) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE sessions SET status = $1, completed_scenes = $2, current_scene_id = $3,
    updated_at = $4, ended_at = $5
WHERE id = $6`,
		string(record.Status), record.CompletedScenes, record.CurrentSceneID,
		record.UpdatedAt.UTC(), record.EndedAt, record.ID)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ReplaceAssignments swaps the full roster for a session in one transaction.
func (s *Store) ReplaceAssignments(ctx context.Context, sessionID string, assignments []storage.AssignmentRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin assignments tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM session_assignments WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("clear assignments: %w", err)
	}
	for _, assignment := range assignments {
		_, err := tx.Exec(ctx, `
INSERT INTO session_assignments (session_id, slot, character_id, character_name, player_type, player_name, is_unused)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			sessionID, assignment.Slot, assignment.CharacterID, assignment.CharacterName,
			assignment.PlayerType, assignment.PlayerName, assignment.IsUnused)
		if err != nil {
			return fmt.Errorf("insert assignment slot %d: %w", assignment.Slot, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit assignments: %w", err)
	}
	return nil
}

// ListAssignments returns the roster for a session ordered by slot.
func (s *Store) ListAssignments(ctx context.Context, sessionID string) ([]storage.AssignmentRecord, error) {
	rows, err := s.pool.Query(ctx, `
SELECT session_id, slot, character_id, character_name, player_type, player_name, is_unused
FROM session_assignments WHERE session_id = $1 ORDER BY slot`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query assignments: %w", err)
	}
	defer rows.Close()

	var assignments []storage.AssignmentRecord
	for rows.Next() {
		var record storage.AssignmentRecord
		if err := rows.Scan(&record.SessionID, &record.Slot, &record.CharacterID,
			&record.CharacterName, &record.PlayerType, &record.PlayerName, &record.IsUnused); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		assignments = append(assignments, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read assignments: %w", err)
	}
	return assignments, nil
}

// AppendChoice records one player choice.
func (s *Store) AppendChoice(ctx context.Context, record storage.ChoiceRecord) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO session_choices (id, session_id, scene_id, choice_text, next_scene_id,
    player_id, compass_axis, compass_direction, compass_delta, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		record.ID, record.SessionID, record.SceneID, record.ChoiceText, record.NextSceneID,
		record.PlayerID, record.CompassAxis, record.CompassDirection, record.CompassDelta,
		record.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert choice: %w", err)
	}
	return nil
}

// ListChoices returns a session's choices in insertion order.
func (s *Store) ListChoices(ctx context.Context, sessionID string) ([]storage.ChoiceRecord, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, session_id, scene_id, choice_text, next_scene_id, player_id,
    compass_axis, compass_direction, compass_delta, created_at
FROM session_choices WHERE session_id = $1 ORDER BY created_at, id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query choices: %w", err)
	}
	defer rows.Close()

	var choices []storage.ChoiceRecord
	for rows.Next() {
		var record storage.ChoiceRecord
		if err := rows.Scan(&record.ID, &record.SessionID, &record.SceneID, &record.ChoiceText,
			&record.NextSceneID, &record.PlayerID, &record.CompassAxis,
			&record.CompassDirection, &record.CompassDelta, &record.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan choice: %w", err)
		}
		choices = append(choices, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read choices: %w", err)
	}
	return choices, nil
}

// UpsertCompletion marks a scenario completed for an account. Repeat
// completions keep the earliest timestamp.
func (s *Store) UpsertCompletion(ctx context.Context, accountID, scenarioID string, completedAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO scenario_completions (account_id, scenario_id, completed_at)
VALUES ($1, $2, $3)
ON CONFLICT (account_id, scenario_id) DO NOTHING`,
		accountID, scenarioID, completedAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert completion: %w", err)
	}
	return nil
}

// HasCompletion reports whether an account has completed a scenario.
func (s *Store) HasCompletion(ctx context.Context, accountID, scenarioID string) (bool, error) {
	var found int
	row := s.pool.QueryRow(ctx, `
SELECT 1 FROM scenario_completions WHERE account_id = $1 AND scenario_id = $2`,
		accountID, scenarioID)
	err := row.Scan(&found)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("scan completion: %w", err)
	}
	return true, nil
}
