package session

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/mystira/storyplay/internal/platform/errors"
	"github.com/mystira/storyplay/internal/story/domain"
)

// Fallback identifiers used when no account can be resolved.
const (
	defaultAccountID = "default-account"
	defaultProfileID = "default-profile"
)

// Deps groups the collaborators a Machine needs. API is required; the rest
// are optional and degrade to fallbacks when nil.
type Deps struct {
	API        SessionAPI
	Accounts   AccountProvider
	Media      MediaResolver
	Characters CharacterLookup
	Logger     *log.Logger
	Clock      func() time.Time
}

// Machine orchestrates one play session at a time.
//
// Mutating transitions are serialized through an internal mutex; callers may
// invoke them from any goroutine. Observers are notified synchronously after
// each successful mutation, outside the session lock.
type Machine struct {
	api        SessionAPI
	accounts   AccountProvider
	media      MediaResolver
	characters CharacterLookup
	logger     *log.Logger
	clock      func() time.Time

	mu      sync.Mutex
	session *GameSession
	staged  []domain.CharacterAssignment

	obsMu        sync.Mutex
	observers    map[int]func(*GameSession)
	nextObserver int
}

// NewMachine creates a Machine with default logger and clock.
func NewMachine(deps Deps) *Machine {
	logger := deps.Logger
	if logger == nil {
		logger = log.Default()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Machine{
		api:        deps.API,
		accounts:   deps.Accounts,
		media:      deps.Media,
		characters: deps.Characters,
		logger:     logger,
		clock:      clock,
		observers:  make(map[int]func(*GameSession)),
	}
}

// Subscribe registers a change handler and returns its unsubscribe function.
// Handlers receive the new session, or nil when the session is cleared.
func (m *Machine) Subscribe(handler func(*GameSession)) (unsubscribe func()) {
	m.obsMu.Lock()
	defer m.obsMu.Unlock()
	id := m.nextObserver
	m.nextObserver++
	m.observers[id] = handler
	return func() {
		m.obsMu.Lock()
		defer m.obsMu.Unlock()
		delete(m.observers, id)
	}
}

// Status derives the machine's lifecycle state from the current session.
func (m *Machine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.session == nil:
		return StatusNotStarted
	case m.session.IsCompleted:
		return StatusCompleted
	case m.session.IsPaused:
		return StatusPaused
	default:
		return StatusActive
	}
}

// CurrentSession returns the session the machine currently owns, or nil.
func (m *Machine) CurrentSession() *GameSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// Start creates a remote session for scenario and begins play on its
// starting scene.
//
// Session creation is the one remote call that must succeed: a failed or
// null result fails the transition and the machine stays NotStarted. The
// roster staged via SetCharacterAssignments or PrepareCharacterAssignments
// becomes the new session's roster.
func (m *Machine) Start(ctx context.Context, scenario domain.Scenario) error {
	return m.transition(ctx, "start session", func(ctx context.Context) error {
		return m.startLocked(ctx, scenario)
	})
}

// NavigateToScene moves play to the scene with the given id.
//
// The remote progress call is best-effort: a failure is logged and local
// state still advances, trading strict consistency for responsiveness. An
// unknown scene id fails the transition with no local mutation.
func (m *Machine) NavigateToScene(ctx context.Context, sceneID string) error {
	return m.transition(ctx, "navigate to scene", func(ctx context.Context) error {
		return m.navigateLocked(ctx, sceneID)
	})
}

// NavigateFromRoll branches out of a roll scene on the roll outcome:
// the first branch on success, the second on failure. Missing branches or
// empty targets complete the session.
func (m *Machine) NavigateFromRoll(ctx context.Context, success bool) error {
	return m.transition(ctx, "navigate from roll", func(ctx context.Context) error {
		return m.navigateFromRollLocked(ctx, success)
	})
}

// GoToNextScene follows the current scene's NextSceneID, completing the
// session when there is none.
func (m *Machine) GoToNextScene(ctx context.Context) error {
	return m.transition(ctx, "go to next scene", func(ctx context.Context) error {
		return m.goToNextLocked(ctx)
	})
}

// MakeChoice records a player choice with the session store and navigates to
// the chosen scene. The target id is resolved case-insensitively against the
// scenario; the recording call is best-effort.
func (m *Machine) MakeChoice(ctx context.Context, choice ChoiceInput) error {
	return m.transition(ctx, "make choice", func(ctx context.Context) error {
		return m.makeChoiceLocked(ctx, choice)
	})
}

// Pause pauses the session. Pausing an already paused session fails, which
// keeps pause telemetry from double-counting.
func (m *Machine) Pause(ctx context.Context) error {
	return m.transition(ctx, "pause session", func(ctx context.Context) error {
		return m.pauseLocked(ctx)
	})
}

// Resume resumes the session.
//
// Resume is deliberately callable when the local pause flag is unset: a page
// reload can lose the flag while the server still considers the session
// paused, so the remote resume is always attempted to reconcile the two.
func (m *Machine) Resume(ctx context.Context) error {
	return m.transition(ctx, "resume session", func(ctx context.Context) error {
		return m.resumeLocked(ctx)
	})
}

// Complete ends the session. The remote end-session and scenario-completion
// calls are best-effort: the player already reached a terminal scene, and
// local completion must never be blocked by a transient network failure.
func (m *Machine) Complete(ctx context.Context) error {
	return m.transition(ctx, "complete session", func(ctx context.Context) error {
		if m.session == nil || m.session.IsCompleted {
			return errors.New(errors.CodeSessionNotActive, "no active session to complete")
		}
		return m.completeLocked(ctx)
	})
}

// Clear drops the current session and the staged roster, returning the
// machine to NotStarted. It always succeeds.
func (m *Machine) Clear() {
	m.mu.Lock()
	m.session = nil
	m.staged = nil
	m.mu.Unlock()
	m.broadcast(nil)
}

// SetCurrentGameSession hydrates the machine with a session constructed by a
// sibling flow, bypassing the Start protocol.
func (m *Machine) SetCurrentGameSession(session *GameSession) {
	m.mu.Lock()
	m.session = session
	if session != nil {
		m.staged = session.CharacterAssignments
	}
	m.mu.Unlock()
	m.broadcast(session)
}

// SetCharacterAssignments stages a roster for the next Start and applies it
// to the current session when one exists.
func (m *Machine) SetCharacterAssignments(roster []domain.CharacterAssignment) {
	m.mu.Lock()
	m.staged = roster
	var changed *GameSession
	if m.session != nil {
		m.session.CharacterAssignments = roster
		changed = m.session
	}
	m.mu.Unlock()
	if changed != nil {
		m.broadcast(changed)
	}
}

// PrepareCharacterAssignments builds the 4-slot roster for scenario, merges
// in any previously chosen assignments, enriches non-unused slots through
// the character lookup, and stages the result.
//
// Enrichment is best-effort per slot: a failed lookup logs and leaves the
// slot as built.
func (m *Machine) PrepareCharacterAssignments(ctx context.Context, scenario domain.Scenario) []domain.CharacterAssignment {
	fresh := domain.BuildAssignments(scenario)

	m.mu.Lock()
	existing := m.staged
	if m.session != nil && len(m.session.CharacterAssignments) > 0 {
		existing = m.session.CharacterAssignments
	}
	m.mu.Unlock()

	roster := domain.MergeExisting(fresh, existing)

	if m.characters != nil {
		for i := range roster {
			if roster[i].IsUnused {
				continue
			}
			record, err := m.characters.Character(ctx, roster[i].CharacterID)
			if err != nil || record == nil {
				m.logf("enrich character %s: %v", roster[i].CharacterID, err)
				continue
			}
			if record.ImageID != "" {
				roster[i].ImageID = record.ImageID
			}
			if record.AudioID != "" {
				roster[i].AudioID = record.AudioID
			}
		}
	}

	m.SetCharacterAssignments(roster)
	return roster
}

// ReplaceCharacterPlaceholders rewrites [c:...] tokens in text using the
// current roster and the active scene's declared character. It is a pure
// query and never mutates session state.
func (m *Machine) ReplaceCharacterPlaceholders(text string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	roster := m.staged
	active := ""
	if m.session != nil {
		roster = m.session.CharacterAssignments
		if m.session.CurrentScene != nil {
			active = m.session.CurrentScene.ActiveCharacter
		}
	}
	return domain.ReplacePlaceholders(text, roster, active)
}

// transition runs fn under the session lock, logs failures, and broadcasts
// the mutated session on success. No error crosses this boundary without a
// code from the error taxonomy.
func (m *Machine) transition(ctx context.Context, name string, fn func(context.Context) error) error {
	m.mu.Lock()
	err := fn(ctx)
	session := m.session
	m.mu.Unlock()

	if err != nil {
		m.logf("%s: %v", name, err)
		return err
	}
	m.broadcast(session)
	return nil
}

func (m *Machine) startLocked(ctx context.Context, scenario domain.Scenario) error {
	if err := cancelled(ctx, "start"); err != nil {
		return err
	}
	if m.session != nil && !m.session.IsCompleted {
		return errors.New(errors.CodeSessionAlreadyStarted, "a session is already in progress")
	}

	accountID, profileID := m.resolveAccount(ctx)

	remote, err := m.api.StartSession(ctx, scenario.ID, accountID, profileID, playerNames(m.staged), scenario.AgeGroup)
	if err != nil {
		return errors.Wrap(errors.CodeRemoteStartFailed, "create remote session", err)
	}
	if remote == nil {
		return errors.New(errors.CodeRemoteStartFailed, "session store returned no session")
	}

	scene, err := domain.StartingScene(scenario)
	if err != nil {
		return err
	}

	if remote.AccountID != "" {
		accountID = remote.AccountID
	}
	if remote.ProfileID != "" {
		profileID = remote.ProfileID
	}
	startedAt := remote.StartedAt
	if startedAt.IsZero() {
		startedAt = m.clock().UTC()
	}

	session := &GameSession{
		ID:                   remote.ID,
		ScenarioID:           scenario.ID,
		AccountID:            accountID,
		ProfileID:            profileID,
		Scenario:             scenario,
		CharacterAssignments: m.staged,
		StartedAt:            startedAt,
	}
	m.applyScene(ctx, session, scene)
	m.session = session
	return nil
}

func (m *Machine) navigateLocked(ctx context.Context, sceneID string) error {
	if err := cancelled(ctx, "navigate"); err != nil {
		return err
	}
	session := m.session
	if session == nil || session.IsCompleted {
		return errors.New(errors.CodeSessionNotActive, "no active session")
	}
	if session.IsPaused {
		if err := m.resumeLocked(ctx); err != nil {
			m.logf("resume before navigate: %v", err)
		}
	}

	// Look up the target before touching local state so a bad id mutates
	// nothing.
	scene, err := domain.FindScene(session.Scenario, sceneID)
	if err != nil {
		return err
	}

	if session.CurrentSceneID != "" {
		session.markSceneCompleted(session.CurrentSceneID)
	}

	if _, err := m.api.ProgressSessionScene(ctx, session.ID, scene.ID); err != nil {
		m.logf("progress scene %s: %v", scene.ID, err)
	}

	m.applyScene(ctx, session, scene)
	if scene.Type == domain.SceneTypeSpecial && scene.NextSceneID == "" {
		session.IsCompleted = true
	}
	return nil
}

func (m *Machine) navigateFromRollLocked(ctx context.Context, success bool) error {
	session := m.session
	if session == nil || session.IsCompleted || session.IsPaused {
		return errors.New(errors.CodeSessionNotActive, "no active session")
	}
	if session.CurrentScene == nil || session.CurrentScene.Type != domain.SceneTypeRoll {
		return errors.New(errors.CodeSceneNotRoll, "current scene is not a roll scene")
	}

	branches := session.CurrentScene.Branches
	if len(branches) == 0 {
		if session.CurrentScene.NextSceneID != "" {
			return m.navigateLocked(ctx, session.CurrentScene.NextSceneID)
		}
		return m.completeLocked(ctx)
	}

	index := 0
	if !success {
		index = 1
	}
	if index >= len(branches) || branches[index].NextSceneID == "" {
		return m.completeLocked(ctx)
	}
	return m.navigateLocked(ctx, branches[index].NextSceneID)
}

func (m *Machine) goToNextLocked(ctx context.Context) error {
	session := m.session
	if session == nil || session.IsCompleted || session.IsPaused {
		return errors.New(errors.CodeSessionNotActive, "no active session")
	}
	if session.CurrentScene == nil {
		return errors.New(errors.CodeNoCurrentScene, "session has no current scene")
	}
	if session.CurrentScene.NextSceneID == "" {
		return m.completeLocked(ctx)
	}
	return m.navigateLocked(ctx, session.CurrentScene.NextSceneID)
}

func (m *Machine) makeChoiceLocked(ctx context.Context, choice ChoiceInput) error {
	if err := cancelled(ctx, "make choice"); err != nil {
		return err
	}
	session := m.session
	if session == nil || session.IsCompleted {
		return errors.New(errors.CodeSessionNotActive, "no active session")
	}

	resolved, ok := findSceneFold(session.Scenario, choice.NextSceneID)
	if !ok {
		return errors.WithMetadata(errors.CodeSceneNotFound,
			"choice target not found in scenario", map[string]string{
				"ScenarioID": session.ScenarioID,
				"SceneID":    choice.NextSceneID,
			})
	}

	if choice.SessionID == "" {
		choice.SessionID = session.ID
	}
	if choice.SceneID == "" {
		choice.SceneID = session.CurrentSceneID
	}
	choice.NextSceneID = resolved.ID
	if choice.CompassAxis != "" && choice.CompassDirection == "" {
		choice.CompassDirection = domain.Branch{CompassDelta: choice.CompassDelta}.Direction()
	}

	if _, err := m.api.MakeChoice(ctx, choice); err != nil {
		m.logf("record choice %q: %v", choice.ChoiceText, err)
	}

	return m.navigateLocked(ctx, resolved.ID)
}

func (m *Machine) pauseLocked(ctx context.Context) error {
	if err := cancelled(ctx, "pause"); err != nil {
		return err
	}
	session := m.session
	if session == nil || session.IsCompleted {
		return errors.New(errors.CodeSessionNotActive, "no active session")
	}
	if session.IsPaused {
		return errors.New(errors.CodeSessionAlreadyPaused, "session is already paused")
	}

	if _, err := m.api.PauseSession(ctx, session.ID); err != nil {
		m.logf("pause session %s: %v", session.ID, err)
	}
	session.IsPaused = true
	return nil
}

func (m *Machine) resumeLocked(ctx context.Context) error {
	if err := cancelled(ctx, "resume"); err != nil {
		return err
	}
	session := m.session
	if session == nil {
		return errors.New(errors.CodeSessionNotActive, "no session to resume")
	}

	remote, err := m.api.ResumeSession(ctx, session.ID)
	if err != nil {
		m.logf("resume session %s: %v", session.ID, err)
	} else if remote != nil {
		session.IsCompleted = remote.IsCompleted
		if !remote.StartedAt.IsZero() {
			session.StartedAt = remote.StartedAt
		}
		// Resume payloads may omit assignments without meaning "clear
		// them": only a nonempty roster replaces the local cache.
		if len(remote.CharacterAssignments) > 0 {
			session.CharacterAssignments = remote.CharacterAssignments
			m.staged = remote.CharacterAssignments
		}
	}

	session.IsPaused = false
	return nil
}

func (m *Machine) completeLocked(ctx context.Context) error {
	if err := cancelled(ctx, "complete"); err != nil {
		return err
	}
	session := m.session
	if session == nil {
		return errors.New(errors.CodeSessionNotActive, "no session to complete")
	}

	if _, err := m.api.EndSession(ctx, session.ID); err != nil {
		m.logf("end session %s: %v", session.ID, err)
	}
	if session.AccountID != "" {
		if _, err := m.api.CompleteScenarioForAccount(ctx, session.AccountID, session.ScenarioID); err != nil {
			m.logf("mark scenario %s complete: %v", session.ScenarioID, err)
		}
	}

	session.IsCompleted = true
	session.IsPaused = false
	return nil
}

// applyScene sets the current scene and resolves its media URLs. Media
// resolution is best-effort; a failed lookup leaves an empty URL.
func (m *Machine) applyScene(ctx context.Context, session *GameSession, scene domain.Scene) {
	session.SceneImageURL = m.resolveMedia(ctx, scene.ImageID)
	session.SceneAudioURL = m.resolveMedia(ctx, scene.AudioID)
	session.SceneVideoURL = m.resolveMedia(ctx, scene.VideoID)

	current := scene
	session.CurrentScene = &current
	session.CurrentSceneID = scene.ID
}

func (m *Machine) resolveMedia(ctx context.Context, mediaID string) string {
	if m.media == nil || mediaID == "" {
		return ""
	}
	url, err := m.media.ResolveMediaURL(ctx, mediaID)
	if err != nil {
		m.logf("resolve media %s: %v", mediaID, err)
		return ""
	}
	return url
}

func (m *Machine) resolveAccount(ctx context.Context) (accountID, profileID string) {
	accountID, profileID = defaultAccountID, defaultProfileID
	if m.accounts == nil {
		return accountID, profileID
	}
	account, err := m.accounts.CurrentAccount(ctx)
	if err != nil {
		m.logf("resolve account: %v", err)
		return accountID, profileID
	}
	if account == nil {
		return accountID, profileID
	}
	if account.ID != "" {
		accountID = account.ID
	}
	if account.ProfileID != "" {
		profileID = account.ProfileID
	}
	return accountID, profileID
}

func (m *Machine) broadcast(session *GameSession) {
	m.obsMu.Lock()
	handlers := make([]func(*GameSession), 0, len(m.observers))
	for _, handler := range m.observers {
		handlers = append(handlers, handler)
	}
	m.obsMu.Unlock()

	for _, handler := range handlers {
		handler(session)
	}
}

func (m *Machine) logf(format string, args ...any) {
	m.logger.Printf(format, args...)
}

// playerNames lists the display names of every assigned roster slot, in
// slot order.
func playerNames(roster []domain.CharacterAssignment) []string {
	var names []string
	for _, assignment := range roster {
		if assignment.Player == nil {
			continue
		}
		names = append(names, domain.ResolvePlayerName(assignment))
	}
	return names
}

// findSceneFold resolves a scene id case-insensitively, for choice targets
// authored with inconsistent casing.
func findSceneFold(scenario domain.Scenario, sceneID string) (domain.Scene, bool) {
	for _, scene := range scenario.Scenes {
		if strings.EqualFold(scene.ID, sceneID) {
			return scene, true
		}
	}
	return domain.Scene{}, false
}

func cancelled(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(errors.CodeCancelled, op+" cancelled before applying", err)
	}
	return nil
}
