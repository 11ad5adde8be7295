package session

import (
	"time"

	"github.com/mystira/storyplay/internal/story/domain"
)

// Status describes the lifecycle state of the machine.
type Status int

const (
	// StatusNotStarted indicates no session exists.
	StatusNotStarted Status = iota
	// StatusActive indicates a session is in progress.
	StatusActive
	// StatusPaused indicates the session is locally paused.
	StatusPaused
	// StatusCompleted indicates the session reached a terminal scene or was
	// completed explicitly.
	StatusCompleted
)

func (s Status) String() string {
	switch s {
	case StatusNotStarted:
		return "NotStarted"
	case StatusActive:
		return "Active"
	case StatusPaused:
		return "Paused"
	case StatusCompleted:
		return "Completed"
	default:
		return "Unknown"
	}
}

// GameSession is the local play state for one run through a scenario.
//
// It is owned exclusively by the Machine: created on Start, mutated only
// through transitions, discarded on Clear or replaced by a new Start or
// SetCurrentGameSession.
type GameSession struct {
	ID         string
	ScenarioID string
	AccountID  string
	ProfileID  string
	Scenario   domain.Scenario

	CurrentScene   *domain.Scene
	CurrentSceneID string
	// CompletedScenes holds visited scene ids, deduplicated, in insertion
	// order.
	CompletedScenes []string

	CharacterAssignments []domain.CharacterAssignment

	IsCompleted bool
	// IsPaused is transient, client-only state; the server keeps its own
	// pause flag.
	IsPaused  bool
	StartedAt time.Time

	// Resolved media URLs for the current scene.
	SceneImageURL string
	SceneAudioURL string
	SceneVideoURL string
}

// markSceneCompleted appends a scene id unless it is already recorded.
func (s *GameSession) markSceneCompleted(sceneID string) {
	if sceneID == "" {
		return
	}
	for _, id := range s.CompletedScenes {
		if id == sceneID {
			return
		}
	}
	s.CompletedScenes = append(s.CompletedScenes, sceneID)
}
