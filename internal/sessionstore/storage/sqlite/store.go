// Package sqlite provides a SQLite-backed session store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mystira/storyplay/internal/platform/storage/sqlitemigrate"
	"github.com/mystira/storyplay/internal/sessionstore/storage"
	"github.com/mystira/storyplay/internal/sessionstore/storage/sqlite/migrations"
)

var _ storage.SessionStore = (*Store)(nil)

// Store provides a SQLite-backed store implementing storage.SessionStore.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a SQLite session store at the provided path and applies
// embedded migrations before the store is handed to higher layers.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.SessionsFS, "sessions"); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the underlying SQLite database.
//
// Close is intentionally nil-safe so callers can defer it in all startup paths.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func toNullMillis(value *time.Time) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*value), Valid: true}
}

func fromNullMillis(value sql.NullInt64) *time.Time {
	if !value.Valid {
		return nil
	}
	t := fromMillis(value.Int64)
	return &t
}

// encodeList persists string slices as JSON text so empty and nil round-trip
// to empty.
func encodeList(values []string) string {
	if len(values) == 0 {
		return ""
	}
	data, err := json.Marshal(values)
	if err != nil {
		return ""
	}
	return string(data)
}

func decodeList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil
	}
	return values
}

// CreateSession persists a new session record.
func (s *Store) CreateSession(ctx context.Context, record storage.SessionRecord) error {
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO sessions (id, scenario_id, account_id, profile_id, status, target_age_group,
    player_names, completed_scenes, current_scene_id, started_at, updated_at, ended_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.ScenarioID, record.AccountID, record.ProfileID,
		string(record.Status), record.TargetAgeGroup,
		encodeList(record.PlayerNames), encodeList(record.CompletedScenes),
		record.CurrentSceneID, toMillis(record.StartedAt), toMillis(record.UpdatedAt),
		toNullMillis(record.EndedAt))
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetSession loads one session by id, returning storage.ErrNotFound when the
// id is unknown.
func (s *Store) GetSession(ctx context.Context, id string) (storage.SessionRecord, error) {
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, scenario_id, account_id, profile_id, status, target_age_group,
    player_names, completed_scenes, current_scene_id, started_at, updated_at, ended_at
FROM sessions WHERE id = ?`, id)

	var record storage.SessionRecord
	var status, playerNames, completedScenes string
	var startedAt, updatedAt int64
	var endedAt sql.NullInt64
	err := row.Scan(&record.ID, &record.ScenarioID, &record.AccountID, &record.ProfileID,
		&status, &record.TargetAgeGroup, &playerNames, &completedScenes,
		&record.CurrentSceneID, &startedAt, &updatedAt, &endedAt)
	if err == sql.ErrNoRows {
		return storage.SessionRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.SessionRecord{}, fmt.Errorf("scan session: %w", err)
	}

	record.Status = storage.SessionStatus(status)
	record.PlayerNames = decodeList(playerNames)
	record.CompletedScenes = decodeList(completedScenes)
	record.StartedAt = fromMillis(startedAt)
	record.UpdatedAt = fromMillis(updatedAt)
	record.EndedAt = fromNullMillis(endedAt)
	return record, nil
}

// UpdateSession overwrites the mutable columns of an existing session.
func (s *Store) UpdateSession(ctx context.Context, record storage.SessionRecord) error {
	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE sessions SET status = ?, completed_scenes = ?, current_scene_id = ?,
    updated_at = ?, ended_at = ?
WHERE id = ?`,
		string(record.Status), encodeList(record.CompletedScenes), record.CurrentSceneID,
		toMillis(record.UpdatedAt), toNullMillis(record.EndedAt), record.ID)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session rows: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ReplaceAssignments swaps the full roster for a session in one transaction.
func (s *Store) ReplaceAssignments(ctx context.Context, sessionID string, assignments []storage.AssignmentRecord) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin assignments tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM session_assignments WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("clear assignments: %w", err)
	}
	for _, assignment := range assignments {
		_, err := tx.ExecContext(ctx, `
INSERT INTO session_assignments (session_id, slot, character_id, character_name, player_type, player_name, is_unused)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
			sessionID, assignment.Slot, assignment.CharacterID, assignment.CharacterName,
			assignment.PlayerType, assignment.PlayerName, boolToInt(assignment.IsUnused))
		if err != nil {
			return fmt.Errorf("insert assignment slot %d: %w", assignment.Slot, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit assignments: %w", err)
	}
	return nil
}

// ListAssignments returns the roster for a session ordered by slot.
func (s *Store) ListAssignments(ctx context.Context, sessionID string) ([]storage.AssignmentRecord, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT session_id, slot, character_id, character_name, player_type, player_name, is_unused
FROM session_assignments WHERE session_id = ? ORDER BY slot`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query assignments: %w", err)
	}
	defer rows.Close()

	var assignments []storage.AssignmentRecord
	for rows.Next() {
		var record storage.AssignmentRecord
		var isUnused int
		if err := rows.Scan(&record.SessionID, &record.Slot, &record.CharacterID,
			&record.CharacterName, &record.PlayerType, &record.PlayerName, &isUnused); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		record.IsUnused = isUnused != 0
		assignments = append(assignments, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read assignments: %w", err)
	}
	return assignments, nil
}

// AppendChoice records one player choice.
func (s *Store) AppendChoice(ctx context.Context, record storage.ChoiceRecord) error {
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO session_choices (id, session_id, scene_id, choice_text, next_scene_id,
    player_id, compass_axis, compass_direction, compass_delta, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.SessionID, record.SceneID, record.ChoiceText, record.NextSceneID,
		record.PlayerID, record.CompassAxis, record.CompassDirection, record.CompassDelta,
		toMillis(record.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert choice: %w", err)
	}
	return nil
}

// ListChoices returns a session's choices in insertion order.
func (s *Store) ListChoices(ctx context.Context, sessionID string) ([]storage.ChoiceRecord, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, session_id, scene_id, choice_text, next_scene_id, player_id,
    compass_axis, compass_direction, compass_delta, created_at
FROM session_choices WHERE session_id = ? ORDER BY created_at, id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query choices: %w", err)
	}
	defer rows.Close()

	var choices []storage.ChoiceRecord
	for rows.Next() {
		var record storage.ChoiceRecord
		var createdAt int64
		if err := rows.Scan(&record.ID, &record.SessionID, &record.SceneID, &record.ChoiceText,
			&record.NextSceneID, &record.PlayerID, &record.CompassAxis,
			&record.CompassDirection, &record.CompassDelta, &createdAt); err != nil {
			return nil, fmt.Errorf("scan choice: %w", err)
		}
		record.CreatedAt = fromMillis(createdAt)
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
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO scenario_completions (account_id, scenario_id, completed_at)
VALUES (?, ?, ?)
ON CONFLICT (account_id, scenario_id) DO NOTHING`,
		accountID, scenarioID, toMillis(completedAt))
	if err != nil {
		return fmt.Errorf("upsert completion: %w", err)
	}
	return nil
}

// HasCompletion reports whether an account has completed a scenario.
func (s *Store) HasCompletion(ctx context.Context, accountID, scenarioID string) (bool, error) {
	var found int
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT 1 FROM scenario_completions WHERE account_id = ? AND scenario_id = ?`,
		accountID, scenarioID)
	err := row.Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("scan completion: %w", err)
	}
	return true, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
