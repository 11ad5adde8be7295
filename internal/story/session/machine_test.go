package session

import (
	"context"
	stderrors "errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/mystira/storyplay/internal/platform/errors"
	"github.com/mystira/storyplay/internal/story/domain"
)

type fakeSessionAPI struct {
	startResult *RemoteSession
	startErr    error
	startCalls  int
	lastNames   []string
	lastAge     string

	progressErr    error
	progressScenes []string

	pauseErr   error
	pauseCalls int

	resumeResult *RemoteSession
	resumeErr    error
	resumeCalls  int

	endErr   error
	endCalls int

	completeCalls [][2]string
	completeErr   error

	choices   []ChoiceInput
	choiceErr error
}

func (f *fakeSessionAPI) StartSession(ctx context.Context, scenarioID, accountID, profileID string, playerNames []string, targetAgeGroup string) (*RemoteSession, error) {
	f.startCalls++
	f.lastNames = playerNames
	f.lastAge = targetAgeGroup
	return f.startResult, f.startErr
}

func (f *fakeSessionAPI) EndSession(ctx context.Context, sessionID string) (*RemoteSession, error) {
	f.endCalls++
	return nil, f.endErr
}

func (f *fakeSessionAPI) PauseSession(ctx context.Context, sessionID string) (*RemoteSession, error) {
	f.pauseCalls++
	return nil, f.pauseErr
}

func (f *fakeSessionAPI) ResumeSession(ctx context.Context, sessionID string) (*RemoteSession, error) {
	f.resumeCalls++
	return f.resumeResult, f.resumeErr
}

func (f *fakeSessionAPI) ProgressSessionScene(ctx context.Context, sessionID, sceneID string) (*RemoteSession, error) {
	f.progressScenes = append(f.progressScenes, sceneID)
	return nil, f.progressErr
}

func (f *fakeSessionAPI) MakeChoice(ctx context.Context, choice ChoiceInput) (*RemoteSession, error) {
	f.choices = append(f.choices, choice)
	return nil, f.choiceErr
}

func (f *fakeSessionAPI) CompleteScenarioForAccount(ctx context.Context, accountID, scenarioID string) (bool, error) {
	f.completeCalls = append(f.completeCalls, [2]string{accountID, scenarioID})
	return f.completeErr == nil, f.completeErr
}

type fakeAccountProvider struct {
	account *Account
	err     error
}

func (f *fakeAccountProvider) CurrentAccount(ctx context.Context) (*Account, error) {
	return f.account, f.err
}

type fakeMediaResolver struct {
	err   error
	calls []string
}

func (f *fakeMediaResolver) ResolveMediaURL(ctx context.Context, mediaID string) (string, error) {
	f.calls = append(f.calls, mediaID)
	if f.err != nil {
		return "", f.err
	}
	return "https://media.test/" + mediaID, nil
}

type fakeCharacterLookup struct {
	records map[string]*domain.ScenarioCharacter
	err     error
}

func (f *fakeCharacterLookup) Character(ctx context.Context, characterID string) (*domain.ScenarioCharacter, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.records[characterID], nil
}

func chainScenario() domain.Scenario {
	return domain.Scenario{
		ID:       "scn-1",
		Title:    "The Silver Road",
		AgeGroup: "8-10",
		Scenes: []domain.Scene{
			{ID: "a", Type: domain.SceneTypeStandard, NextSceneID: "b", ImageID: "img-a"},
			{ID: "b", Type: domain.SceneTypeStandard, NextSceneID: "c"},
			{ID: "c", Type: domain.SceneTypeSpecial},
		},
		Characters: []domain.ScenarioCharacter{
			{ID: "char-1", Name: "Aria"},
		},
	}
}

func rollScenario() domain.Scenario {
	return domain.Scenario{
		ID: "scn-roll",
		Scenes: []domain.Scene{
			{ID: "gate", Type: domain.SceneTypeRoll, Branches: []domain.Branch{
				{Choice: "A", NextSceneID: "x"},
				{Choice: "B", NextSceneID: "y"},
			}},
			{ID: "x"},
			{ID: "y"},
		},
	}
}

func newTestMachine(api *fakeSessionAPI) *Machine {
	return NewMachine(Deps{
		API:    api,
		Logger: log.New(io.Discard, "", 0),
	})
}

func mustStart(t *testing.T, m *Machine, scenario domain.Scenario) {
	t.Helper()
	if err := m.Start(context.Background(), scenario); err != nil {
		t.Fatalf("start: %v", err)
	}
}

func TestStartBeginsOnStartingScene(t *testing.T) {
	api := &fakeSessionAPI{startResult: &RemoteSession{ID: "sess-1"}}
	m := newTestMachine(api)

	mustStart(t, m, chainScenario())

	session := m.CurrentSession()
	if session == nil {
		t.Fatal("expected a session")
	}
	if session.ID != "sess-1" {
		t.Fatalf("expected server-issued id, got %s", session.ID)
	}
	if session.CurrentSceneID != "a" {
		t.Fatalf("expected starting scene a, got %s", session.CurrentSceneID)
	}
	if m.Status() != StatusActive {
		t.Fatalf("expected Active, got %s", m.Status())
	}
	if api.lastAge != "8-10" {
		t.Fatalf("expected target age group forwarded, got %q", api.lastAge)
	}
}

func TestStartFallsBackToDefaultAccount(t *testing.T) {
	api := &fakeSessionAPI{startResult: &RemoteSession{ID: "sess-1"}}
	m := newTestMachine(api)

	mustStart(t, m, chainScenario())

	session := m.CurrentSession()
	if session.AccountID != "default-account" || session.ProfileID != "default-profile" {
		t.Fatalf("expected fallback identifiers, got %s/%s", session.AccountID, session.ProfileID)
	}
}

func TestStartPrefersRemoteAccountIDs(t *testing.T) {
	api := &fakeSessionAPI{startResult: &RemoteSession{
		ID:        "sess-1",
		AccountID: "acct-remote",
		ProfileID: "prof-remote",
		StartedAt: time.Date(2026, 2, 14, 10, 0, 0, 0, time.UTC),
	}}
	m := NewMachine(Deps{
		API:      api,
		Accounts: &fakeAccountProvider{account: &Account{ID: "acct-local", ProfileID: "prof-local"}},
		Logger:   log.New(io.Discard, "", 0),
	})

	mustStart(t, m, chainScenario())

	session := m.CurrentSession()
	if session.AccountID != "acct-remote" || session.ProfileID != "prof-remote" {
		t.Fatalf("expected remote ids to win, got %s/%s", session.AccountID, session.ProfileID)
	}
	if !session.StartedAt.Equal(time.Date(2026, 2, 14, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected remote start time, got %v", session.StartedAt)
	}
}

func TestStartFailsWhenRemoteReturnsNil(t *testing.T) {
	api := &fakeSessionAPI{startResult: nil}
	m := newTestMachine(api)

	err := m.Start(context.Background(), chainScenario())
	if err == nil {
		t.Fatal("expected start to fail")
	}
	if !errors.IsCode(err, errors.CodeRemoteStartFailed) {
		t.Fatalf("expected %s, got %s", errors.CodeRemoteStartFailed, errors.GetCode(err))
	}
	if m.Status() != StatusNotStarted {
		t.Fatalf("expected NotStarted, got %s", m.Status())
	}
}

func TestStartFailsWhenRemoteErrors(t *testing.T) {
	api := &fakeSessionAPI{startErr: stderrors.New("network down")}
	m := newTestMachine(api)

	err := m.Start(context.Background(), chainScenario())
	if !errors.IsCode(err, errors.CodeRemoteStartFailed) {
		t.Fatalf("expected %s, got %v", errors.CodeRemoteStartFailed, err)
	}
	if m.CurrentSession() != nil {
		t.Fatal("expected no session after failed start")
	}
}

func TestStartFailsOnEmptyScenario(t *testing.T) {
	api := &fakeSessionAPI{startResult: &RemoteSession{ID: "sess-1"}}
	m := newTestMachine(api)

	err := m.Start(context.Background(), domain.Scenario{ID: "scn-empty"})
	if !errors.IsCode(err, errors.CodeScenarioNoScenes) {
		t.Fatalf("expected %s, got %v", errors.CodeScenarioNoScenes, err)
	}
	if m.Status() != StatusNotStarted {
		t.Fatalf("expected NotStarted, got %s", m.Status())
	}
}

func TestStartRejectedWhileActive(t *testing.T) {
	api := &fakeSessionAPI{startResult: &RemoteSession{ID: "sess-1"}}
	m := newTestMachine(api)
	mustStart(t, m, chainScenario())

	err := m.Start(context.Background(), chainScenario())
	if !errors.IsCode(err, errors.CodeSessionAlreadyStarted) {
		t.Fatalf("expected %s, got %v", errors.CodeSessionAlreadyStarted, err)
	}
}

func TestStartUsesStagedRoster(t *testing.T) {
	api := &fakeSessionAPI{startResult: &RemoteSession{ID: "sess-1"}}
	m := newTestMachine(api)

	roster := domain.BuildAssignments(chainScenario())
	roster[0].Player = &domain.PlayerAssignment{Type: domain.PlayerAssignmentTypeProfile, ProfileName: "Sam"}
	m.SetCharacterAssignments(roster)

	mustStart(t, m, chainScenario())

	session := m.CurrentSession()
	if len(session.CharacterAssignments) != domain.RosterSize {
		t.Fatalf("expected staged roster on session, got %d slots", len(session.CharacterAssignments))
	}
	if len(api.lastNames) != 1 || api.lastNames[0] != "Sam" {
		t.Fatalf("expected player names [Sam], got %v", api.lastNames)
	}
}

func TestNavigateToSceneUnknownIDMutatesNothing(t *testing.T) {
	api := &fakeSessionAPI{startResult: &RemoteSession{ID: "sess-1"}}
	m := newTestMachine(api)
	mustStart(t, m, chainScenario())

	err := m.NavigateToScene(context.Background(), "missing")
	if !errors.IsCode(err, errors.CodeSceneNotFound) {
		t.Fatalf("expected %s, got %v", errors.CodeSceneNotFound, err)
	}

	session := m.CurrentSession()
	if session.CurrentSceneID != "a" {
		t.Fatalf("expected current scene unchanged, got %s", session.CurrentSceneID)
	}
	if len(session.CompletedScenes) != 0 {
		t.Fatalf("expected no completed scenes, got %v", session.CompletedScenes)
	}
}

func TestNavigateToSceneRecordsCompletedScenes(t *testing.T) {
	api := &fakeSessionAPI{startResult: &RemoteSession{ID: "sess-1"}}
	m := newTestMachine(api)
	mustStart(t, m, chainScenario())

	if err := m.NavigateToScene(context.Background(), "b"); err != nil {
		t.Fatalf("navigate: %v", err)
	}
	if err := m.NavigateToScene(context.Background(), "a"); err != nil {
		t.Fatalf("navigate back: %v", err)
	}
	if err := m.NavigateToScene(context.Background(), "b"); err != nil {
		t.Fatalf("navigate again: %v", err)
	}

	session := m.CurrentSession()
	want := []string{"a", "b"}
	if len(session.CompletedScenes) != len(want) {
		t.Fatalf("expected completed scenes %v, got %v", want, session.CompletedScenes)
	}
	for i, id := range want {
		if session.CompletedScenes[i] != id {
			t.Fatalf("expected completed scenes %v, got %v", want, session.CompletedScenes)
		}
	}
}

func TestNavigateToSceneSurvivesRemoteFailure(t *testing.T) {
	api := &fakeSessionAPI{
		startResult: &RemoteSession{ID: "sess-1"},
		progressErr: stderrors.New("store offline"),
	}
	m := newTestMachine(api)
	mustStart(t, m, chainScenario())

	if err := m.NavigateToScene(context.Background(), "b"); err != nil {
		t.Fatalf("navigate must not block on remote failure: %v", err)
	}
	if m.CurrentSession().CurrentSceneID != "b" {
		t.Fatal("expected local state to advance")
	}
}

func TestNavigateToSpecialTerminalCompletes(t *testing.T) {
	api := &fakeSessionAPI{startResult: &RemoteSession{ID: "sess-1"}}
	m := newTestMachine(api)
	mustStart(t, m, chainScenario())

	if err := m.NavigateToScene(context.Background(), "c"); err != nil {
		t.Fatalf("navigate: %v", err)
	}

	session := m.CurrentSession()
	if !session.IsCompleted {
		t.Fatal("expected terminal special scene to complete the session")
	}
	if m.Status() != StatusCompleted {
		t.Fatalf("expected Completed, got %s", m.Status())
	}
}

func TestNavigateWhilePausedResumesFirst(t *testing.T) {
	api := &fakeSessionAPI{startResult: &RemoteSession{ID: "sess-1"}}
	m := newTestMachine(api)
	mustStart(t, m, chainScenario())

	if err := m.Pause(context.Background()); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := m.NavigateToScene(context.Background(), "b"); err != nil {
		t.Fatalf("navigate: %v", err)
	}

	if api.resumeCalls != 1 {
		t.Fatalf("expected one remote resume, got %d", api.resumeCalls)
	}
	session := m.CurrentSession()
	if session.IsPaused {
		t.Fatal("expected pause flag cleared")
	}
	if session.CurrentSceneID != "b" {
		t.Fatalf("expected navigation to proceed, got %s", session.CurrentSceneID)
	}
}

func TestNavigateFromRollBranches(t *testing.T) {
	tests := []struct {
		name    string
		success bool
		want    string
	}{
		{name: "success takes first branch", success: true, want: "x"},
		{name: "failure takes second branch", success: false, want: "y"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			api := &fakeSessionAPI{startResult: &RemoteSession{ID: "sess-1"}}
			m := newTestMachine(api)
			mustStart(t, m, rollScenario())

			if err := m.NavigateFromRoll(context.Background(), tc.success); err != nil {
				t.Fatalf("navigate from roll: %v", err)
			}
			if got := m.CurrentSession().CurrentSceneID; got != tc.want {
				t.Fatalf("expected scene %s, got %s", tc.want, got)
			}
		})
	}
}

func TestNavigateFromRollMissingFailureBranchCompletes(t *testing.T) {
	scenario := domain.Scenario{
		ID: "scn-one-branch",
		Scenes: []domain.Scene{
			{ID: "gate", Type: domain.SceneTypeRoll, Branches: []domain.Branch{
				{Choice: "A", NextSceneID: "x"},
			}},
			{ID: "x"},
		},
	}
	api := &fakeSessionAPI{startResult: &RemoteSession{ID: "sess-1"}}
	m := newTestMachine(api)
	mustStart(t, m, scenario)

	if err := m.NavigateFromRoll(context.Background(), false); err != nil {
		t.Fatalf("navigate from roll: %v", err)
	}
	if !m.CurrentSession().IsCompleted {
		t.Fatal("expected session completed when failure branch is absent")
	}
	if api.endCalls != 1 {
		t.Fatalf("expected end-session call, got %d", api.endCalls)
	}
}

func TestNavigateFromRollNoBranchesFallsBackToNext(t *testing.T) {
	scenario := domain.Scenario{
		ID: "scn-no-branches",
		Scenes: []domain.Scene{
			{ID: "gate", Type: domain.SceneTypeRoll, NextSceneID: "after"},
			{ID: "after"},
		},
	}
	api := &fakeSessionAPI{startResult: &RemoteSession{ID: "sess-1"}}
	m := newTestMachine(api)
	mustStart(t, m, scenario)

	if err := m.NavigateFromRoll(context.Background(), true); err != nil {
		t.Fatalf("navigate from roll: %v", err)
	}
	if got := m.CurrentSession().CurrentSceneID; got != "after" {
		t.Fatalf("expected fallback to next scene, got %s", got)
	}
}

func TestNavigateFromRollNoBranchesNoNextCompletes(t *testing.T) {
	scenario := domain.Scenario{
		ID:     "scn-dead-end",
		Scenes: []domain.Scene{{ID: "gate", Type: domain.SceneTypeRoll}},
	}
	api := &fakeSessionAPI{startResult: &RemoteSession{ID: "sess-1"}}
	m := newTestMachine(api)
	mustStart(t, m, scenario)

	if err := m.NavigateFromRoll(context.Background(), true); err != nil {
		t.Fatalf("navigate from roll: %v", err)
	}
	if !m.CurrentSession().IsCompleted {
		t.Fatal("expected session completed")
	}
}

func TestNavigateFromRollRequiresRollScene(t *testing.T) {
	api := &fakeSessionAPI{startResult: &RemoteSession{ID: "sess-1"}}
	m := newTestMachine(api)
	mustStart(t, m, chainScenario())

	err := m.NavigateFromRoll(context.Background(), true)
	if !errors.IsCode(err, errors.CodeSceneNotRoll) {
		t.Fatalf("expected %s, got %v", errors.CodeSceneNotRoll, err)
	}
	if m.CurrentSession().CurrentSceneID != "a" {
		t.Fatal("expected no mutation")
	}
}

func TestGoToNextSceneEndToEnd(t *testing.T) {
	api := &fakeSessionAPI{startResult: &RemoteSession{ID: "sess-1"}}
	m := newTestMachine(api)
	mustStart(t, m, chainScenario())

	if err := m.GoToNextScene(context.Background()); err != nil {
		t.Fatalf("go to next: %v", err)
	}
	if got := m.CurrentSession().CurrentSceneID; got != "b" {
		t.Fatalf("expected b, got %s", got)
	}

	if err := m.GoToNextScene(context.Background()); err != nil {
		t.Fatalf("go to next: %v", err)
	}
	session := m.CurrentSession()
	if session.CurrentSceneID != "c" {
		t.Fatalf("expected c, got %s", session.CurrentSceneID)
	}
	if !session.IsCompleted {
		t.Fatal("expected completion on terminal special scene")
	}
}

func TestGoToNextSceneCompletesWhenNoNext(t *testing.T) {
	scenario := domain.Scenario{
		ID:     "scn-single",
		Scenes: []domain.Scene{{ID: "only", Type: domain.SceneTypeStandard}},
	}
	api := &fakeSessionAPI{startResult: &RemoteSession{ID: "sess-1"}}
	m := newTestMachine(api)
	mustStart(t, m, scenario)

	if err := m.GoToNextScene(context.Background()); err != nil {
		t.Fatalf("go to next: %v", err)
	}
	if !m.CurrentSession().IsCompleted {
		t.Fatal("expected session completed")
	}
	if api.endCalls != 1 {
		t.Fatalf("expected end-session call, got %d", api.endCalls)
	}
}

func TestMakeChoiceResolvesCaseInsensitively(t *testing.T) {
	api := &fakeSessionAPI{startResult: &RemoteSession{ID: "sess-1"}}
	m := newTestMachine(api)
	mustStart(t, m, chainScenario())

	err := m.MakeChoice(context.Background(), ChoiceInput{
		ChoiceText:   "Take the road",
		NextSceneID:  "B",
		CompassAxis:  "courage",
		CompassDelta: -1,
	})
	if err != nil {
		t.Fatalf("make choice: %v", err)
	}

	if got := m.CurrentSession().CurrentSceneID; got != "b" {
		t.Fatalf("expected navigation to b, got %s", got)
	}
	if len(api.choices) != 1 {
		t.Fatalf("expected one recorded choice, got %d", len(api.choices))
	}
	recorded := api.choices[0]
	if recorded.SessionID != "sess-1" || recorded.SceneID != "a" {
		t.Fatalf("expected session/scene defaults filled, got %+v", recorded)
	}
	if recorded.NextSceneID != "b" {
		t.Fatalf("expected resolved scene id, got %s", recorded.NextSceneID)
	}
	if recorded.CompassDirection != domain.CompassDirectionNegative {
		t.Fatalf("expected derived negative direction, got %s", recorded.CompassDirection)
	}
}

func TestMakeChoiceUnknownTargetIsNoOp(t *testing.T) {
	api := &fakeSessionAPI{startResult: &RemoteSession{ID: "sess-1"}}
	m := newTestMachine(api)
	mustStart(t, m, chainScenario())

	err := m.MakeChoice(context.Background(), ChoiceInput{ChoiceText: "Jump", NextSceneID: "nowhere"})
	if !errors.IsCode(err, errors.CodeSceneNotFound) {
		t.Fatalf("expected %s, got %v", errors.CodeSceneNotFound, err)
	}
	if len(api.choices) != 0 {
		t.Fatal("expected no remote choice call for unknown target")
	}
	if m.CurrentSession().CurrentSceneID != "a" {
		t.Fatal("expected no mutation")
	}
}

func TestMakeChoiceRemoteFailureStillNavigates(t *testing.T) {
	api := &fakeSessionAPI{
		startResult: &RemoteSession{ID: "sess-1"},
		choiceErr:   stderrors.New("store offline"),
	}
	m := newTestMachine(api)
	mustStart(t, m, chainScenario())

	if err := m.MakeChoice(context.Background(), ChoiceInput{ChoiceText: "Go", NextSceneID: "b"}); err != nil {
		t.Fatalf("make choice: %v", err)
	}
	if m.CurrentSession().CurrentSceneID != "b" {
		t.Fatal("expected local navigation despite remote failure")
	}
}

func TestPauseAsymmetry(t *testing.T) {
	api := &fakeSessionAPI{startResult: &RemoteSession{ID: "sess-1"}}
	m := newTestMachine(api)
	mustStart(t, m, chainScenario())

	if err := m.Pause(context.Background()); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if m.Status() != StatusPaused {
		t.Fatalf("expected Paused, got %s", m.Status())
	}

	err := m.Pause(context.Background())
	if !errors.IsCode(err, errors.CodeSessionAlreadyPaused) {
		t.Fatalf("expected %s, got %v", errors.CodeSessionAlreadyPaused, err)
	}
	if !m.CurrentSession().IsPaused {
		t.Fatal("expected pause flag unchanged")
	}
	if api.pauseCalls != 1 {
		t.Fatalf("expected one remote pause call, got %d", api.pauseCalls)
	}
}

func TestPauseSetsFlagDespiteRemoteFailure(t *testing.T) {
	api := &fakeSessionAPI{
		startResult: &RemoteSession{ID: "sess-1"},
		pauseErr:    stderrors.New("store offline"),
	}
	m := newTestMachine(api)
	mustStart(t, m, chainScenario())

	if err := m.Pause(context.Background()); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if !m.CurrentSession().IsPaused {
		t.Fatal("expected pause flag set after failed remote call")
	}
}

func TestResumeWithoutPause(t *testing.T) {
	api := &fakeSessionAPI{startResult: &RemoteSession{ID: "sess-1"}}
	m := newTestMachine(api)
	mustStart(t, m, chainScenario())

	if err := m.Resume(context.Background()); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if api.resumeCalls != 1 {
		t.Fatalf("expected remote resume attempted, got %d calls", api.resumeCalls)
	}
	if m.CurrentSession().IsPaused {
		t.Fatal("expected pause flag false")
	}
}

func TestResumeMergesRemotePayload(t *testing.T) {
	startedAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	remoteRoster := []domain.CharacterAssignment{
		{CharacterID: "char-1", CharacterName: "Aria", Player: &domain.PlayerAssignment{
			Type:        domain.PlayerAssignmentTypeProfile,
			ProfileName: "Sam",
		}},
	}
	api := &fakeSessionAPI{
		startResult: &RemoteSession{ID: "sess-1"},
		resumeResult: &RemoteSession{
			ID:                   "sess-1",
			StartedAt:            startedAt,
			CharacterAssignments: remoteRoster,
		},
	}
	m := newTestMachine(api)
	mustStart(t, m, chainScenario())

	if err := m.Resume(context.Background()); err != nil {
		t.Fatalf("resume: %v", err)
	}

	session := m.CurrentSession()
	if !session.StartedAt.Equal(startedAt) {
		t.Fatalf("expected merged start time, got %v", session.StartedAt)
	}
	if len(session.CharacterAssignments) != 1 || session.CharacterAssignments[0].Player == nil {
		t.Fatalf("expected remote roster adopted, got %+v", session.CharacterAssignments)
	}
}

func TestResumeEmptyRosterKeepsLocalCache(t *testing.T) {
	api := &fakeSessionAPI{
		startResult:  &RemoteSession{ID: "sess-1"},
		resumeResult: &RemoteSession{ID: "sess-1"},
	}
	m := newTestMachine(api)

	roster := domain.BuildAssignments(chainScenario())
	m.SetCharacterAssignments(roster)
	mustStart(t, m, chainScenario())

	if err := m.Resume(context.Background()); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if len(m.CurrentSession().CharacterAssignments) != domain.RosterSize {
		t.Fatal("expected local roster retained when resume payload omits assignments")
	}
}

func TestCompleteSurvivesRemoteFailures(t *testing.T) {
	api := &fakeSessionAPI{
		startResult: &RemoteSession{ID: "sess-1"},
		endErr:      stderrors.New("store offline"),
		completeErr: stderrors.New("store offline"),
	}
	m := newTestMachine(api)
	mustStart(t, m, chainScenario())

	if err := m.Complete(context.Background()); err != nil {
		t.Fatalf("complete must not block on remote failure: %v", err)
	}
	if m.Status() != StatusCompleted {
		t.Fatalf("expected Completed, got %s", m.Status())
	}
}

func TestCompleteMarksScenarioForAccount(t *testing.T) {
	api := &fakeSessionAPI{startResult: &RemoteSession{ID: "sess-1", AccountID: "acct-9"}}
	m := newTestMachine(api)
	mustStart(t, m, chainScenario())

	if err := m.Complete(context.Background()); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if len(api.completeCalls) != 1 {
		t.Fatalf("expected one completion call, got %d", len(api.completeCalls))
	}
	if api.completeCalls[0] != [2]string{"acct-9", "scn-1"} {
		t.Fatalf("unexpected completion call %v", api.completeCalls[0])
	}
}

func TestCompleteFromPaused(t *testing.T) {
	api := &fakeSessionAPI{startResult: &RemoteSession{ID: "sess-1"}}
	m := newTestMachine(api)
	mustStart(t, m, chainScenario())

	if err := m.Pause(context.Background()); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := m.Complete(context.Background()); err != nil {
		t.Fatalf("complete: %v", err)
	}
	session := m.CurrentSession()
	if !session.IsCompleted || session.IsPaused {
		t.Fatalf("expected completed and unpaused, got %+v", session)
	}
}

func TestClearResetsEverything(t *testing.T) {
	api := &fakeSessionAPI{startResult: &RemoteSession{ID: "sess-1"}}
	m := newTestMachine(api)
	m.SetCharacterAssignments(domain.BuildAssignments(chainScenario()))
	mustStart(t, m, chainScenario())

	m.Clear()

	if m.CurrentSession() != nil {
		t.Fatal("expected session dropped")
	}
	if m.Status() != StatusNotStarted {
		t.Fatalf("expected NotStarted, got %s", m.Status())
	}
	// A fresh start after Clear must not reuse the cleared roster.
	mustStart(t, m, chainScenario())
	if len(m.CurrentSession().CharacterAssignments) != 0 {
		t.Fatal("expected empty roster after clear")
	}
}

func TestSetCurrentGameSessionHydrates(t *testing.T) {
	m := newTestMachine(&fakeSessionAPI{})

	roster := domain.BuildAssignments(chainScenario())
	session := &GameSession{
		ID:                   "sess-ext",
		ScenarioID:           "scn-1",
		Scenario:             chainScenario(),
		CharacterAssignments: roster,
	}
	m.SetCurrentGameSession(session)

	if m.CurrentSession() != session {
		t.Fatal("expected supplied session adopted")
	}
	if m.Status() != StatusActive {
		t.Fatalf("expected Active, got %s", m.Status())
	}
}

func TestObserverNotifications(t *testing.T) {
	api := &fakeSessionAPI{startResult: &RemoteSession{ID: "sess-1"}}
	m := newTestMachine(api)

	var notifications []*GameSession
	unsubscribe := m.Subscribe(func(s *GameSession) {
		notifications = append(notifications, s)
	})

	mustStart(t, m, chainScenario())
	if len(notifications) != 1 || notifications[0] == nil {
		t.Fatalf("expected start notification, got %d", len(notifications))
	}

	if err := m.NavigateToScene(context.Background(), "b"); err != nil {
		t.Fatalf("navigate: %v", err)
	}
	if len(notifications) != 2 {
		t.Fatalf("expected navigation notification, got %d", len(notifications))
	}

	// Failed transitions do not notify.
	_ = m.NavigateToScene(context.Background(), "missing")
	if len(notifications) != 2 {
		t.Fatalf("expected no notification on failure, got %d", len(notifications))
	}

	m.Clear()
	if len(notifications) != 3 || notifications[2] != nil {
		t.Fatal("expected nil notification on clear")
	}

	unsubscribe()
	mustStart(t, m, chainScenario())
	if len(notifications) != 3 {
		t.Fatal("expected no notification after unsubscribe")
	}
}

func TestCancelledContextAbortsBeforeMutation(t *testing.T) {
	api := &fakeSessionAPI{startResult: &RemoteSession{ID: "sess-1"}}
	m := newTestMachine(api)
	mustStart(t, m, chainScenario())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.NavigateToScene(ctx, "b")
	if !errors.IsCode(err, errors.CodeCancelled) {
		t.Fatalf("expected %s, got %v", errors.CodeCancelled, err)
	}
	if m.CurrentSession().CurrentSceneID != "a" {
		t.Fatal("expected no mutation after cancellation")
	}
}

func TestCompleteCancelledContextMutatesNothing(t *testing.T) {
	api := &fakeSessionAPI{startResult: &RemoteSession{ID: "sess-1"}}
	m := newTestMachine(api)
	mustStart(t, m, chainScenario())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.Complete(ctx)
	if !errors.IsCode(err, errors.CodeCancelled) {
		t.Fatalf("expected %s, got %v", errors.CodeCancelled, err)
	}
	if m.CurrentSession().IsCompleted {
		t.Fatal("expected session to stay incomplete after cancellation")
	}
	if api.endCalls != 0 {
		t.Fatalf("expected no end-session call, got %d", api.endCalls)
	}
}

func TestGoToNextSceneCancelledFallbackStaysActive(t *testing.T) {
	api := &fakeSessionAPI{startResult: &RemoteSession{ID: "sess-1"}}
	m := newTestMachine(api)
	mustStart(t, m, rollScenario())

	if err := m.NavigateFromRoll(context.Background(), true); err != nil {
		t.Fatalf("roll: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Scene x has no successor, so GoToNextScene falls back to completion.
	if err := m.GoToNextScene(ctx); !errors.IsCode(err, errors.CodeCancelled) {
		t.Fatalf("expected %s, got %v", errors.CodeCancelled, err)
	}
	if m.CurrentSession().IsCompleted {
		t.Fatal("expected fallback completion to be aborted")
	}
}

func TestReplaceCharacterPlaceholdersUsesActiveScene(t *testing.T) {
	scenario := chainScenario()
	scenario.Scenes[0].ActiveCharacter = "char-1"

	api := &fakeSessionAPI{startResult: &RemoteSession{ID: "sess-1"}}
	m := newTestMachine(api)

	roster := domain.BuildAssignments(scenario)
	roster[0].Player = &domain.PlayerAssignment{Type: domain.PlayerAssignmentTypeProfile, ProfileName: "Sam"}
	m.SetCharacterAssignments(roster)
	mustStart(t, m, scenario)

	if got := m.ReplaceCharacterPlaceholders("[c:*] looks around."); got != "Sam looks around." {
		t.Fatalf("unexpected substitution %q", got)
	}
	if got := m.ReplaceCharacterPlaceholders("[c:Ghost]"); got != "Player" {
		t.Fatalf("unexpected fallback %q", got)
	}
}

func TestMediaResolutionOnSceneChange(t *testing.T) {
	api := &fakeSessionAPI{startResult: &RemoteSession{ID: "sess-1"}}
	media := &fakeMediaResolver{}
	m := NewMachine(Deps{API: api, Media: media, Logger: log.New(io.Discard, "", 0)})

	mustStart(t, m, chainScenario())

	session := m.CurrentSession()
	if session.SceneImageURL != "https://media.test/img-a" {
		t.Fatalf("expected resolved image URL, got %q", session.SceneImageURL)
	}
}

func TestMediaFailureDoesNotBlockNavigation(t *testing.T) {
	api := &fakeSessionAPI{startResult: &RemoteSession{ID: "sess-1"}}
	media := &fakeMediaResolver{err: stderrors.New("cdn down")}
	m := NewMachine(Deps{API: api, Media: media, Logger: log.New(io.Discard, "", 0)})

	mustStart(t, m, chainScenario())
	if m.CurrentSession().SceneImageURL != "" {
		t.Fatal("expected empty URL on resolver failure")
	}
}

func TestPrepareCharacterAssignmentsEnriches(t *testing.T) {
	scenario := chainScenario()
	api := &fakeSessionAPI{startResult: &RemoteSession{ID: "sess-1"}}
	lookup := &fakeCharacterLookup{records: map[string]*domain.ScenarioCharacter{
		"char-1": {ID: "char-1", Name: "Aria", ImageID: "full-img", AudioID: "full-audio"},
	}}
	m := NewMachine(Deps{API: api, Characters: lookup, Logger: log.New(io.Discard, "", 0)})

	roster := m.PrepareCharacterAssignments(context.Background(), scenario)

	if len(roster) != domain.RosterSize {
		t.Fatalf("expected %d slots, got %d", domain.RosterSize, len(roster))
	}
	if roster[0].ImageID != "full-img" || roster[0].AudioID != "full-audio" {
		t.Fatalf("expected enriched media ids, got %+v", roster[0])
	}
}

func TestPrepareCharacterAssignmentsSurvivesLookupFailure(t *testing.T) {
	api := &fakeSessionAPI{startResult: &RemoteSession{ID: "sess-1"}}
	lookup := &fakeCharacterLookup{err: stderrors.New("catalog down")}
	m := NewMachine(Deps{API: api, Characters: lookup, Logger: log.New(io.Discard, "", 0)})

	roster := m.PrepareCharacterAssignments(context.Background(), chainScenario())
	if len(roster) != domain.RosterSize {
		t.Fatalf("expected full roster despite lookup failure, got %d", len(roster))
	}
}

func TestPrepareCharacterAssignmentsMergesStaged(t *testing.T) {
	api := &fakeSessionAPI{startResult: &RemoteSession{ID: "sess-1"}}
	m := newTestMachine(api)

	staged := domain.BuildAssignments(chainScenario())
	staged[0].Player = &domain.PlayerAssignment{Type: domain.PlayerAssignmentTypeGuest, GuestName: "Vi"}
	m.SetCharacterAssignments(staged)

	roster := m.PrepareCharacterAssignments(context.Background(), chainScenario())
	if roster[0].Player == nil || roster[0].Player.GuestName != "Vi" {
		t.Fatalf("expected staged assignment carried over, got %+v", roster[0].Player)
	}
}
