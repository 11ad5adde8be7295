package api

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/mystira/storyplay/internal/platform/errors"
	"github.com/mystira/storyplay/internal/sessionstore/service"
	"github.com/mystira/storyplay/internal/sessionstore/storage/sqlite"
	storysession "github.com/mystira/storyplay/internal/story/session"
)

func newTestServer(t *testing.T) (*httptest.Server, *Client) {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	svc := service.New(store)
	server := httptest.NewServer(NewServer(svc, log.New(io.Discard, "", 0)).Handler())
	t.Cleanup(server.Close)

	return server, NewClient(server.URL, server.Client())
}

func TestClientStartAndGet(t *testing.T) {
	_, client := newTestServer(t)
	ctx := context.Background()

	remote, err := client.StartSession(ctx, "scn-1", "acct-1", "prof-1", []string{"Sam"}, "8-10")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if remote == nil || remote.ID == "" {
		t.Fatal("expected a session with a server-issued id")
	}
	if remote.AccountID != "acct-1" || remote.ScenarioID != "scn-1" {
		t.Fatalf("unexpected session %+v", remote)
	}
	if remote.IsCompleted || remote.IsPaused {
		t.Fatalf("expected fresh active session, got %+v", remote)
	}

	got, err := client.GetSession(ctx, remote.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.ID != remote.ID {
		t.Fatalf("expected session round-trip, got %+v", got)
	}
}

func TestClientNullOnMiss(t *testing.T) {
	_, client := newTestServer(t)
	ctx := context.Background()

	got, err := client.GetSession(ctx, "missing")
	if err != nil {
		t.Fatalf("expected nil error on miss, got %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil session on miss, got %+v", got)
	}

	got, err = client.PauseSession(ctx, "missing")
	if err != nil || got != nil {
		t.Fatalf("expected nil, nil on pause miss, got %+v, %v", got, err)
	}
}

func TestClientLifecycle(t *testing.T) {
	_, client := newTestServer(t)
	ctx := context.Background()

	remote, err := client.StartSession(ctx, "scn-1", "acct-1", "", nil, "")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	paused, err := client.PauseSession(ctx, remote.ID)
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	if !paused.IsPaused {
		t.Fatalf("expected paused, got %+v", paused)
	}

	resumed, err := client.ResumeSession(ctx, remote.ID)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resumed.IsPaused {
		t.Fatalf("expected resumed, got %+v", resumed)
	}

	progressed, err := client.ProgressSessionScene(ctx, remote.ID, "scene-b")
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if progressed == nil {
		t.Fatal("expected progressed session")
	}

	ended, err := client.EndSession(ctx, remote.ID)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if !ended.IsCompleted {
		t.Fatalf("expected completed, got %+v", ended)
	}
}

func TestClientChoiceValidation(t *testing.T) {
	_, client := newTestServer(t)
	ctx := context.Background()

	remote, err := client.StartSession(ctx, "scn-1", "acct-1", "", nil, "")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	_, err = client.MakeChoice(ctx, storysession.ChoiceInput{SessionID: remote.ID, SceneID: "a"})
	if !errors.IsCode(err, errors.CodeChoiceEmptyText) {
		t.Fatalf("expected %s over the wire, got %v", errors.CodeChoiceEmptyText, err)
	}

	got, err := client.MakeChoice(ctx, storysession.ChoiceInput{
		SessionID:    remote.ID,
		SceneID:      "a",
		ChoiceText:   "Go left",
		NextSceneID:  "b",
		CompassAxis:  "courage",
		CompassDelta: 1,
	})
	if err != nil {
		t.Fatalf("make choice: %v", err)
	}
	if got == nil || got.ID != remote.ID {
		t.Fatalf("expected session echo, got %+v", got)
	}
}

func TestClientStartValidationError(t *testing.T) {
	_, client := newTestServer(t)

	_, err := client.StartSession(context.Background(), "", "acct-1", "", nil, "")
	if !errors.IsCode(err, errors.CodeSessionEmptyScenarioID) {
		t.Fatalf("expected %s, got %v", errors.CodeSessionEmptyScenarioID, err)
	}
}

func TestClientCompletion(t *testing.T) {
	_, client := newTestServer(t)
	ctx := context.Background()

	ok, err := client.CompleteScenarioForAccount(ctx, "acct-1", "scn-1")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !ok {
		t.Fatal("expected completion acknowledged")
	}
}

func TestClientSessionChoices(t *testing.T) {
	_, client := newTestServer(t)
	ctx := context.Background()

	remote, err := client.StartSession(ctx, "scn-1", "acct-1", "", nil, "")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := client.MakeChoice(ctx, storysession.ChoiceInput{
		SessionID:   remote.ID,
		SceneID:     "a",
		ChoiceText:  "Go left",
		NextSceneID: "b",
		CompassAxis: "courage",
	}); err != nil {
		t.Fatalf("make choice: %v", err)
	}

	choices, err := client.SessionChoices(ctx, remote.ID)
	if err != nil {
		t.Fatalf("list choices: %v", err)
	}
	if len(choices) != 1 {
		t.Fatalf("expected one choice, got %d", len(choices))
	}
	if choices[0].ChoiceText != "Go left" || choices[0].CompassAxis != "courage" {
		t.Fatalf("unexpected choice %+v", choices[0])
	}

	missing, err := client.SessionChoices(ctx, "missing")
	if err != nil || missing != nil {
		t.Fatalf("expected nil, nil for unknown session, got %+v, %v", missing, err)
	}
}

func TestClientHasScenarioCompletion(t *testing.T) {
	_, client := newTestServer(t)
	ctx := context.Background()

	done, err := client.HasScenarioCompletion(ctx, "acct-1", "scn-1")
	if err != nil || done {
		t.Fatalf("expected no completion yet, done=%v err=%v", done, err)
	}

	if _, err := client.CompleteScenarioForAccount(ctx, "acct-1", "scn-1"); err != nil {
		t.Fatalf("complete: %v", err)
	}

	done, err = client.HasScenarioCompletion(ctx, "acct-1", "scn-1")
	if err != nil || !done {
		t.Fatalf("expected completion, done=%v err=%v", done, err)
	}
}

func TestServerHealth(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/healthz")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestStartSessionRoundTripsRoster(t *testing.T) {
	_, client := newTestServer(t)
	ctx := context.Background()

	remote, err := client.StartSession(ctx, "scn-1", "acct-1", "", []string{"Sam"}, "")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	// The start request path carries no roster; the get path must still
	// return a consistent, empty assignment list.
	got, err := client.GetSession(ctx, remote.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.CharacterAssignments) != 0 {
		t.Fatalf("expected no assignments, got %d", len(got.CharacterAssignments))
	}
}
