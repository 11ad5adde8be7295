// Package service implements the session-store business rules on top of a
// storage.SessionStore.
package service

import (
	"context"
	"strings"
	"time"

	"github.com/mystira/storyplay/internal/platform/errors"
	"github.com/mystira/storyplay/internal/platform/id"
	"github.com/mystira/storyplay/internal/sessionstore/storage"
)

// Service owns session lifecycle rules. Ids are issued server-side so two
// clients can never collide on a session id.
type Service struct {
	store storage.SessionStore
	clock func() time.Time
	newID func() (string, error)
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source, for tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// WithIDGenerator overrides id issuance, for tests.
func WithIDGenerator(generate func() (string, error)) Option {
	return func(s *Service) { s.newID = generate }
}

// New creates a Service backed by store.
func New(store storage.SessionStore, opts ...Option) *Service {
	s := &Service{
		store: store,
		clock: time.Now,
		newID: id.NewID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartInput carries everything needed to open a session.
type StartInput struct {
	ScenarioID     string
	AccountID      string
	ProfileID      string
	PlayerNames    []string
	TargetAgeGroup string
	Assignments    []storage.AssignmentRecord
}

// StartSession validates input, issues a session id, and persists the new
// session along with its roster.
func (s *Service) StartSession(ctx context.Context, input StartInput) (storage.SessionRecord, error) {
	if strings.TrimSpace(input.ScenarioID) == "" {
		return storage.SessionRecord{}, errors.New(errors.CodeSessionEmptyScenarioID, "scenario id is required")
	}
	if strings.TrimSpace(input.AccountID) == "" {
		return storage.SessionRecord{}, errors.New(errors.CodeSessionEmptyAccountID, "account id is required")
	}

	sessionID, err := s.newID()
	if err != nil {
		return storage.SessionRecord{}, errors.Wrap(errors.CodeUnknown, "issue session id", err)
	}

	now := s.clock().UTC()
	record := storage.SessionRecord{
		ID:             sessionID,
		ScenarioID:     input.ScenarioID,
		AccountID:      input.AccountID,
		ProfileID:      input.ProfileID,
		Status:         storage.SessionStatusActive,
		TargetAgeGroup: input.TargetAgeGroup,
		PlayerNames:    input.PlayerNames,
		StartedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateSession(ctx, record); err != nil {
		return storage.SessionRecord{}, errors.Wrap(errors.CodeUnknown, "persist session", err)
	}

	if len(input.Assignments) > 0 {
		assignments := make([]storage.AssignmentRecord, len(input.Assignments))
		copy(assignments, input.Assignments)
		for i := range assignments {
			assignments[i].SessionID = record.ID
			assignments[i].Slot = i
		}
		if err := s.store.ReplaceAssignments(ctx, record.ID, assignments); err != nil {
			return storage.SessionRecord{}, errors.Wrap(errors.CodeUnknown, "persist roster", err)
		}
	}

	return record, nil
}

// GetSession loads a session by id.
func (s *Service) GetSession(ctx context.Context, sessionID string) (storage.SessionRecord, error) {
	record, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return storage.SessionRecord{}, err
	}
	return record, nil
}

// GetAssignments loads a session's roster.
func (s *Service) GetAssignments(ctx context.Context, sessionID string) ([]storage.AssignmentRecord, error) {
	return s.store.ListAssignments(ctx, sessionID)
}

// EndSession marks a session ended. Ending an already ended session is
// idempotent and returns the stored record unchanged.
func (s *Service) EndSession(ctx context.Context, sessionID string) (storage.SessionRecord, error) {
	record, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return storage.SessionRecord{}, err
	}
	if record.Status == storage.SessionStatusEnded {
		return record, nil
	}

	now := s.clock().UTC()
	record.Status = storage.SessionStatusEnded
	record.UpdatedAt = now
	record.EndedAt = &now
	if err := s.store.UpdateSession(ctx, record); err != nil {
		return storage.SessionRecord{}, errors.Wrap(errors.CodeUnknown, "persist end", err)
	}
	return record, nil
}

// PauseSession marks an active session paused.
func (s *Service) PauseSession(ctx context.Context, sessionID string) (storage.SessionRecord, error) {
	record, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return storage.SessionRecord{}, err
	}
	if record.Status == storage.SessionStatusEnded {
		return storage.SessionRecord{}, errors.New(errors.CodeSessionEnded, "session has ended")
	}

	record.Status = storage.SessionStatusPaused
	record.UpdatedAt = s.clock().UTC()
	if err := s.store.UpdateSession(ctx, record); err != nil {
		return storage.SessionRecord{}, errors.Wrap(errors.CodeUnknown, "persist pause", err)
	}
	return record, nil
}

// ResumeSession returns a paused session to active. Resuming an active
// session is a no-op so reconnecting clients can always call it.
func (s *Service) ResumeSession(ctx context.Context, sessionID string) (storage.SessionRecord, error) {
	record, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return storage.SessionRecord{}, err
	}
	if record.Status == storage.SessionStatusEnded {
		return storage.SessionRecord{}, errors.New(errors.CodeSessionEnded, "session has ended")
	}

	record.Status = storage.SessionStatusActive
	record.UpdatedAt = s.clock().UTC()
	if err := s.store.UpdateSession(ctx, record); err != nil {
		return storage.SessionRecord{}, errors.Wrap(errors.CodeUnknown, "persist resume", err)
	}
	return record, nil
}

// ProgressScene records that play moved to sceneID. The previous current
// scene joins the completed list, deduplicated.
func (s *Service) ProgressScene(ctx context.Context, sessionID, sceneID string) (storage.SessionRecord, error) {
	record, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return storage.SessionRecord{}, err
	}
	if record.Status == storage.SessionStatusEnded {
		return storage.SessionRecord{}, errors.New(errors.CodeSessionEnded, "session has ended")
	}

	if record.CurrentSceneID != "" && record.CurrentSceneID != sceneID {
		record.CompletedScenes = appendUnique(record.CompletedScenes, record.CurrentSceneID)
	}
	record.CurrentSceneID = sceneID
	record.UpdatedAt = s.clock().UTC()
	if err := s.store.UpdateSession(ctx, record); err != nil {
		return storage.SessionRecord{}, errors.Wrap(errors.CodeUnknown, "persist progress", err)
	}
	return record, nil
}

// ChoiceInput carries one player choice to record.
type ChoiceInput struct {
	SessionID        string
	SceneID          string
	ChoiceText       string
	NextSceneID      string
	PlayerID         string
	CompassAxis      string
	CompassDirection string
	CompassDelta     int
}

// RecordChoice validates and persists a choice against an unended session.
func (s *Service) RecordChoice(ctx context.Context, input ChoiceInput) (storage.SessionRecord, error) {
	if strings.TrimSpace(input.ChoiceText) == "" {
		return storage.SessionRecord{}, errors.New(errors.CodeChoiceEmptyText, "choice text is required")
	}

	record, err := s.store.GetSession(ctx, input.SessionID)
	if err != nil {
		return storage.SessionRecord{}, err
	}
	if record.Status == storage.SessionStatusEnded {
		return storage.SessionRecord{}, errors.New(errors.CodeSessionEnded, "session has ended")
	}

	choiceID, err := s.newID()
	if err != nil {
		return storage.SessionRecord{}, errors.Wrap(errors.CodeUnknown, "issue choice id", err)
	}

	choice := storage.ChoiceRecord{
		ID:               choiceID,
		SessionID:        record.ID,
		SceneID:          input.SceneID,
		ChoiceText:       input.ChoiceText,
		NextSceneID:      input.NextSceneID,
		PlayerID:         input.PlayerID,
		CompassAxis:      input.CompassAxis,
		CompassDirection: input.CompassDirection,
		CompassDelta:     input.CompassDelta,
		CreatedAt:        s.clock().UTC(),
	}
	if err := s.store.AppendChoice(ctx, choice); err != nil {
		return storage.SessionRecord{}, errors.Wrap(errors.CodeUnknown, "persist choice", err)
	}
	return record, nil
}

// SessionChoices lists the choices recorded against a session, oldest first.
// Unknown sessions fail with the store's not-found error.
func (s *Service) SessionChoices(ctx context.Context, sessionID string) ([]storage.ChoiceRecord, error) {
	if _, err := s.store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.store.ListChoices(ctx, sessionID)
}

// CompleteScenario records a scenario completion for an account.
func (s *Service) CompleteScenario(ctx context.Context, accountID, scenarioID string) (bool, error) {
	if strings.TrimSpace(accountID) == "" {
		return false, errors.New(errors.CodeSessionEmptyAccountID, "account id is required")
	}
	if strings.TrimSpace(scenarioID) == "" {
		return false, errors.New(errors.CodeSessionEmptyScenarioID, "scenario id is required")
	}
	if err := s.store.UpsertCompletion(ctx, accountID, scenarioID, s.clock().UTC()); err != nil {
		return false, errors.Wrap(errors.CodeUnknown, "persist completion", err)
	}
	return true, nil
}

// HasCompleted reports whether the account has a completion recorded for the
// scenario.
func (s *Service) HasCompleted(ctx context.Context, accountID, scenarioID string) (bool, error) {
	if strings.TrimSpace(accountID) == "" {
		return false, errors.New(errors.CodeSessionEmptyAccountID, "account id is required")
	}
	if strings.TrimSpace(scenarioID) == "" {
		return false, errors.New(errors.CodeSessionEmptyScenarioID, "scenario id is required")
	}
	return s.store.HasCompletion(ctx, accountID, scenarioID)
}

func appendUnique(values []string, value string) []string {
	for _, existing := range values {
		if existing == value {
			return values
		}
	}
	return append(values, value)
}
