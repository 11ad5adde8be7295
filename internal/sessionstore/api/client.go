package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/mystira/storyplay/internal/platform/errors"
	"github.com/mystira/storyplay/internal/story/domain"
	"github.com/mystira/storyplay/internal/story/session"
)

var _ session.SessionAPI = (*Client)(nil)

// Client talks to a session-store server and implements the play core's
// remote collaborator contract.
//
// Lookup misses return a nil session and a nil error so callers can treat
// "unknown session" as a state rather than a failure.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Client for baseURL. A nil httpClient falls back to a
// client with a 10 second timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

// StartSession opens a remote session.
func (c *Client) StartSession(ctx context.Context, scenarioID, accountID, profileID string, playerNames []string, targetAgeGroup string) (*session.RemoteSession, error) {
	req := startRequest{
		ScenarioID:     scenarioID,
		AccountID:      accountID,
		ProfileID:      profileID,
		PlayerNames:    playerNames,
		TargetAgeGroup: targetAgeGroup,
	}
	return c.postSession(ctx, "/v1/sessions", req)
}

// EndSession ends a remote session.
func (c *Client) EndSession(ctx context.Context, sessionID string) (*session.RemoteSession, error) {
	return c.postSession(ctx, "/v1/sessions/"+sessionID+"/end", struct{}{})
}

// PauseSession pauses a remote session.
func (c *Client) PauseSession(ctx context.Context, sessionID string) (*session.RemoteSession, error) {
	return c.postSession(ctx, "/v1/sessions/"+sessionID+"/pause", struct{}{})
}

// ResumeSession resumes a remote session.
func (c *Client) ResumeSession(ctx context.Context, sessionID string) (*session.RemoteSession, error) {
	return c.postSession(ctx, "/v1/sessions/"+sessionID+"/resume", struct{}{})
}

// ProgressSessionScene records scene progress on the remote session.
func (c *Client) ProgressSessionScene(ctx context.Context, sessionID, sceneID string) (*session.RemoteSession, error) {
	return c.postSession(ctx, "/v1/sessions/"+sessionID+"/progress", progressRequest{SceneID: sceneID})
}

// MakeChoice records a choice on the remote session.
func (c *Client) MakeChoice(ctx context.Context, choice session.ChoiceInput) (*session.RemoteSession, error) {
	req := choiceRequest{
		SceneID:          choice.SceneID,
		ChoiceText:       choice.ChoiceText,
		NextSceneID:      choice.NextSceneID,
		PlayerID:         choice.PlayerID,
		CompassAxis:      choice.CompassAxis,
		CompassDirection: string(choice.CompassDirection),
		CompassDelta:     choice.CompassDelta,
	}
	return c.postSession(ctx, "/v1/sessions/"+choice.SessionID+"/choices", req)
}

// CompleteScenarioForAccount records a scenario completion.
func (c *Client) CompleteScenarioForAccount(ctx context.Context, accountID, scenarioID string) (bool, error) {
	body, status, err := c.do(ctx, http.MethodPost, "/v1/accounts/"+accountID+"/completions", completionRequest{ScenarioID: scenarioID})
	if err != nil {
		return false, err
	}
	if status == http.StatusNotFound {
		return false, nil
	}
	if status >= http.StatusBadRequest {
		return false, decodeError(body, status)
	}
	var resp completionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return false, apperrors.Wrap(apperrors.CodeRemoteCallFailed, "decode completion response", err)
	}
	return resp.Completed, nil
}

// Choice is one recorded choice as the session store returns it.
type Choice struct {
	ID               string
	SceneID          string
	ChoiceText       string
	NextSceneID      string
	PlayerID         string
	CompassAxis      string
	CompassDirection string
	CompassDelta     int
	CreatedAt        time.Time
}

// SessionChoices lists the choices recorded against a session, oldest first.
// Unknown sessions return nil, nil.
func (c *Client) SessionChoices(ctx context.Context, sessionID string) ([]Choice, error) {
	body, status, err := c.do(ctx, http.MethodGet, "/v1/sessions/"+sessionID+"/choices", nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status >= http.StatusBadRequest {
		return nil, decodeError(body, status)
	}

	var resp choicesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeRemoteCallFailed, "decode choices response", err)
	}
	choices := make([]Choice, 0, len(resp.Choices))
	for _, p := range resp.Choices {
		choices = append(choices, Choice{
			ID:               p.ID,
			SceneID:          p.SceneID,
			ChoiceText:       p.ChoiceText,
			NextSceneID:      p.NextSceneID,
			PlayerID:         p.PlayerID,
			CompassAxis:      p.CompassAxis,
			CompassDirection: p.CompassDirection,
			CompassDelta:     p.CompassDelta,
			CreatedAt:        p.CreatedAt,
		})
	}
	return choices, nil
}

// HasScenarioCompletion reports whether the account has completed the
// scenario.
func (c *Client) HasScenarioCompletion(ctx context.Context, accountID, scenarioID string) (bool, error) {
	body, status, err := c.do(ctx, http.MethodGet, "/v1/accounts/"+accountID+"/completions/"+scenarioID, nil)
	if err != nil {
		return false, err
	}
	if status >= http.StatusBadRequest {
		return false, decodeError(body, status)
	}
	var resp completionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return false, apperrors.Wrap(apperrors.CodeRemoteCallFailed, "decode completion response", err)
	}
	return resp.Completed, nil
}

// GetSession fetches a remote session. Unknown ids return nil, nil.
func (c *Client) GetSession(ctx context.Context, sessionID string) (*session.RemoteSession, error) {
	body, status, err := c.do(ctx, http.MethodGet, "/v1/sessions/"+sessionID, nil)
	if err != nil {
		return nil, err
	}
	return decodeSession(body, status)
}

func (c *Client) postSession(ctx context.Context, path string, payload any) (*session.RemoteSession, error) {
	body, status, err := c.do(ctx, http.MethodPost, path, payload)
	if err != nil {
		return nil, err
	}
	return decodeSession(body, status)
}

func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, int, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, apperrors.Wrap(apperrors.CodeRemoteCallFailed, "encode request", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, 0, apperrors.Wrap(apperrors.CodeRemoteCallFailed, "build request", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, apperrors.Wrap(apperrors.CodeRemoteCallFailed, fmt.Sprintf("%s %s", method, path), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, apperrors.Wrap(apperrors.CodeRemoteCallFailed, "read response", err)
	}
	return body, resp.StatusCode, nil
}

func decodeSession(body []byte, status int) (*session.RemoteSession, error) {
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status >= http.StatusBadRequest {
		return nil, decodeError(body, status)
	}

	var payload sessionPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeRemoteCallFailed, "decode session response", err)
	}

	remote := &session.RemoteSession{
		ID:                payload.ID,
		ScenarioID:        payload.ScenarioID,
		AccountID:         payload.AccountID,
		ProfileID:         payload.ProfileID,
		IsCompleted:       payload.Status == "ended",
		IsPaused:          payload.Status == "paused",
		StartedAt:         payload.StartedAt,
		CompletedSceneIDs: payload.CompletedScenes,
	}
	for _, a := range payload.Assignments {
		assignment := domain.CharacterAssignment{
			CharacterID:   a.CharacterID,
			CharacterName: a.CharacterName,
			IsUnused:      a.IsUnused,
		}
		if a.PlayerType != "" {
			player := &domain.PlayerAssignment{
				Type: domain.PlayerAssignmentType(a.PlayerType),
			}
			switch player.Type {
			case domain.PlayerAssignmentTypeGuest:
				player.GuestName = a.PlayerName
			default:
				player.ProfileName = a.PlayerName
			}
			assignment.Player = player
		}
		remote.CharacterAssignments = append(remote.CharacterAssignments, assignment)
	}
	return remote, nil
}

func decodeError(body []byte, status int) error {
	var payload errorPayload
	if err := json.Unmarshal(body, &payload); err == nil && payload.Code != "" {
		return apperrors.New(apperrors.Code(payload.Code), payload.Message)
	}
	return apperrors.New(apperrors.CodeRemoteCallFailed, fmt.Sprintf("session store returned status %d", status))
}
