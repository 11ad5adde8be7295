package session

import (
	"context"
	"time"

	"github.com/mystira/storyplay/internal/story/domain"
)

// RemoteSession is the session-store's view of a session, as returned by
// SessionAPI calls. A nil *RemoteSession from a call means the store has no
// usable answer; callers decide whether that is fatal.
type RemoteSession struct {
	ID                   string
	ScenarioID           string
	AccountID            string
	ProfileID            string
	IsCompleted          bool
	IsPaused             bool
	StartedAt            time.Time
	CompletedSceneIDs    []string
	CharacterAssignments []domain.CharacterAssignment
}

// ChoiceInput carries one recorded player choice, including any compass-axis
// effect. Compass bookkeeping is server-side; the client only forwards it.
type ChoiceInput struct {
	SessionID        string
	SceneID          string
	ChoiceText       string
	NextSceneID      string
	PlayerID         string
	CompassAxis      string
	CompassDirection domain.CompassDirection
	CompassDelta     int
}

// SessionAPI is the remote session-store collaborator. Implementations own
// transport, retries, and persistence format.
type SessionAPI interface {
	StartSession(ctx context.Context, scenarioID, accountID, profileID string, playerNames []string, targetAgeGroup string) (*RemoteSession, error)
	EndSession(ctx context.Context, sessionID string) (*RemoteSession, error)
	PauseSession(ctx context.Context, sessionID string) (*RemoteSession, error)
	ResumeSession(ctx context.Context, sessionID string) (*RemoteSession, error)
	ProgressSessionScene(ctx context.Context, sessionID, sceneID string) (*RemoteSession, error)
	MakeChoice(ctx context.Context, choice ChoiceInput) (*RemoteSession, error)
	CompleteScenarioForAccount(ctx context.Context, accountID, scenarioID string) (bool, error)
}

// Account identifies the signed-in account and active profile.
type Account struct {
	ID          string
	ProfileID   string
	ProfileName string
}

// AccountProvider resolves the current account. A nil account with a nil
// error means nobody is signed in; the machine falls back to default ids.
type AccountProvider interface {
	CurrentAccount(ctx context.Context) (*Account, error)
}

// MediaResolver turns a media id into a playable URL. An empty id resolves
// to an empty URL.
type MediaResolver interface {
	ResolveMediaURL(ctx context.Context, mediaID string) (string, error)
}

// CharacterLookup fetches the full character record for roster enrichment.
// Lookups are best-effort: a failed call must not abort roster construction.
type CharacterLookup interface {
	Character(ctx context.Context, characterID string) (*domain.ScenarioCharacter, error)
}
