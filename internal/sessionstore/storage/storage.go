// Package storage defines the persistence contracts for the session store.
package storage

import (
	"context"
	"time"

	apperrors "github.com/mystira/storyplay/internal/platform/errors"
)

// ErrNotFound indicates a requested persistence record is missing.
// Callers use this to differentiate between legitimate "no such session"
// states and transport or data corruption failures.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")

// SessionStatus is the persisted lifecycle state of a session.
type SessionStatus string

const (
	SessionStatusActive SessionStatus = "active"
	SessionStatusPaused SessionStatus = "paused"
	SessionStatusEnded  SessionStatus = "ended"
)

// SessionRecord captures the session state persisted by the store.
type SessionRecord struct {
	ID              string
	ScenarioID      string
	AccountID       string
	ProfileID       string
	Status          SessionStatus
	TargetAgeGroup  string
	PlayerNames     []string
	CompletedScenes []string
	CurrentSceneID  string
	StartedAt       time.Time
	UpdatedAt       time.Time
	EndedAt         *time.Time
}

// AssignmentRecord captures one character-roster slot attached to a session.
type AssignmentRecord struct {
	SessionID     string
	Slot          int
	CharacterID   string
	CharacterName string
	PlayerType    string
	PlayerName    string
	IsUnused      bool
}

// ChoiceRecord captures one player choice, including its compass effect.
type ChoiceRecord struct {
	ID               string
	SessionID        string
	SceneID          string
	ChoiceText       string
	NextSceneID      string
	PlayerID         string
	CompassAxis      string
	CompassDirection string
	CompassDelta     int
	CreatedAt        time.Time
}

// SessionStore is the persistence surface the session service depends on.
type SessionStore interface {
	CreateSession(ctx context.Context, record SessionRecord) error
	GetSession(ctx context.Context, id string) (SessionRecord, error)
	UpdateSession(ctx context.Context, record SessionRecord) error

	ReplaceAssignments(ctx context.Context, sessionID string, assignments []AssignmentRecord) error
	ListAssignments(ctx context.Context, sessionID string) ([]AssignmentRecord, error)

	AppendChoice(ctx context.Context, record ChoiceRecord) error
	ListChoices(ctx context.Context, sessionID string) ([]ChoiceRecord, error)

	UpsertCompletion(ctx context.Context, accountID, scenarioID string, completedAt time.Time) error
	HasCompletion(ctx context.Context, accountID, scenarioID string) (bool, error)

	Close() error
}
