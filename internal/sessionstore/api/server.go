// Package api exposes the session store over HTTP JSON and provides the
// matching client used by the play core.
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/mystira/storyplay/internal/platform/errors"
	"github.com/mystira/storyplay/internal/sessionstore/service"
	"github.com/mystira/storyplay/internal/sessionstore/storage"
)

// Server handles the session-store HTTP surface.
type Server struct {
	svc    *service.Service
	logger *log.Logger
}

// NewServer creates a Server over svc. A nil logger falls back to the
// default logger.
func NewServer(svc *service.Service, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{svc: svc, logger: logger}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/sessions", s.handleStart)
	mux.HandleFunc("GET /v1/sessions/{id}", s.handleGet)
	mux.HandleFunc("POST /v1/sessions/{id}/end", s.handleEnd)
	mux.HandleFunc("POST /v1/sessions/{id}/pause", s.handlePause)
	mux.HandleFunc("POST /v1/sessions/{id}/resume", s.handleResume)
	mux.HandleFunc("POST /v1/sessions/{id}/progress", s.handleProgress)
	mux.HandleFunc("POST /v1/sessions/{id}/choices", s.handleChoice)
	mux.HandleFunc("GET /v1/sessions/{id}/choices", s.handleChoices)
	mux.HandleFunc("POST /v1/accounts/{id}/completions", s.handleCompletion)
	mux.HandleFunc("GET /v1/accounts/{id}/completions/{scenarioId}", s.handleHasCompletion)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return traced(mux)
}

// traced opens a span per request against the globally registered tracer
// provider. Without a provider the spans are no-ops.
func traced(next http.Handler) http.Handler {
	tracer := otel.Tracer("sessionstore/api")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), r.Method+" "+r.URL.Path)
		defer span.End()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Wire payloads. Field names are the contract with the play client.

type assignmentPayload struct {
	Slot          int    `json:"slot"`
	CharacterID   string `json:"characterId"`
	CharacterName string `json:"characterName"`
	PlayerType    string `json:"playerType,omitempty"`
	PlayerName    string `json:"playerName,omitempty"`
	IsUnused      bool   `json:"isUnused,omitempty"`
}

type sessionPayload struct {
	ID              string              `json:"id"`
	ScenarioID      string              `json:"scenarioId"`
	AccountID       string              `json:"accountId"`
	ProfileID       string              `json:"profileId,omitempty"`
	Status          string              `json:"status"`
	CompletedScenes []string            `json:"completedScenes,omitempty"`
	CurrentSceneID  string              `json:"currentSceneId,omitempty"`
	StartedAt       time.Time           `json:"startedAt"`
	EndedAt         *time.Time          `json:"endedAt,omitempty"`
	Assignments     []assignmentPayload `json:"assignments,omitempty"`
}

type startRequest struct {
	ScenarioID     string              `json:"scenarioId"`
	AccountID      string              `json:"accountId"`
	ProfileID      string              `json:"profileId,omitempty"`
	PlayerNames    []string            `json:"playerNames,omitempty"`
	TargetAgeGroup string              `json:"targetAgeGroup,omitempty"`
	Assignments    []assignmentPayload `json:"assignments,omitempty"`
}

type progressRequest struct {
	SceneID string `json:"sceneId"`
}

type choiceRequest struct {
	SceneID          string `json:"sceneId"`
	ChoiceText       string `json:"choiceText"`
	NextSceneID      string `json:"nextSceneId,omitempty"`
	PlayerID         string `json:"playerId,omitempty"`
	CompassAxis      string `json:"compassAxis,omitempty"`
	CompassDirection string `json:"compassDirection,omitempty"`
	CompassDelta     int    `json:"compassDelta,omitempty"`
}

type completionRequest struct {
	ScenarioID string `json:"scenarioId"`
}

type choicePayload struct {
	ID               string    `json:"id"`
	SceneID          string    `json:"sceneId"`
	ChoiceText       string    `json:"choiceText"`
	NextSceneID      string    `json:"nextSceneId,omitempty"`
	PlayerID         string    `json:"playerId,omitempty"`
	CompassAxis      string    `json:"compassAxis,omitempty"`
	CompassDirection string    `json:"compassDirection,omitempty"`
	CompassDelta     int       `json:"compassDelta,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

type choicesResponse struct {
	Choices []choicePayload `json:"choices"`
}

type completionResponse struct {
	Completed bool `json:"completed"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, apperrors.Wrap(apperrors.CodeContentInvalid, "decode start request", err))
		return
	}

	assignments := make([]storage.AssignmentRecord, 0, len(req.Assignments))
	for _, a := range req.Assignments {
		assignments = append(assignments, storage.AssignmentRecord{
			CharacterID:   a.CharacterID,
			CharacterName: a.CharacterName,
			PlayerType:    a.PlayerType,
			PlayerName:    a.PlayerName,
			IsUnused:      a.IsUnused,
		})
	}

	record, err := s.svc.StartSession(r.Context(), service.StartInput{
		ScenarioID:     req.ScenarioID,
		AccountID:      req.AccountID,
		ProfileID:      req.ProfileID,
		PlayerNames:    req.PlayerNames,
		TargetAgeGroup: req.TargetAgeGroup,
		Assignments:    assignments,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeSession(w, r, http.StatusCreated, record)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	record, err := s.svc.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeSession(w, r, http.StatusOK, record)
}

func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	record, err := s.svc.EndSession(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeSession(w, r, http.StatusOK, record)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	record, err := s.svc.PauseSession(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeSession(w, r, http.StatusOK, record)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	record, err := s.svc.ResumeSession(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeSession(w, r, http.StatusOK, record)
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	var req progressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, apperrors.Wrap(apperrors.CodeContentInvalid, "decode progress request", err))
		return
	}
	record, err := s.svc.ProgressScene(r.Context(), r.PathValue("id"), req.SceneID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeSession(w, r, http.StatusOK, record)
}

func (s *Server) handleChoice(w http.ResponseWriter, r *http.Request) {
	var req choiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, apperrors.Wrap(apperrors.CodeContentInvalid, "decode choice request", err))
		return
	}
	record, err := s.svc.RecordChoice(r.Context(), service.ChoiceInput{
		SessionID:        r.PathValue("id"),
		SceneID:          req.SceneID,
		ChoiceText:       req.ChoiceText,
		NextSceneID:      req.NextSceneID,
		PlayerID:         req.PlayerID,
		CompassAxis:      req.CompassAxis,
		CompassDirection: req.CompassDirection,
		CompassDelta:     req.CompassDelta,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeSession(w, r, http.StatusOK, record)
}

func (s *Server) handleChoices(w http.ResponseWriter, r *http.Request) {
	choices, err := s.svc.SessionChoices(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := choicesResponse{Choices: make([]choicePayload, 0, len(choices))}
	for _, c := range choices {
		resp.Choices = append(resp.Choices, choicePayload{
			ID:               c.ID,
			SceneID:          c.SceneID,
			ChoiceText:       c.ChoiceText,
			NextSceneID:      c.NextSceneID,
			PlayerID:         c.PlayerID,
			CompassAxis:      c.CompassAxis,
			CompassDirection: c.CompassDirection,
			CompassDelta:     c.CompassDelta,
			CreatedAt:        c.CreatedAt,
		})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCompletion(w http.ResponseWriter, r *http.Request) {
	var req completionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, apperrors.Wrap(apperrors.CodeContentInvalid, "decode completion request", err))
		return
	}
	ok, err := s.svc.CompleteScenario(r.Context(), r.PathValue("id"), req.ScenarioID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, completionResponse{Completed: ok})
}

func (s *Server) handleHasCompletion(w http.ResponseWriter, r *http.Request) {
	done, err := s.svc.HasCompleted(r.Context(), r.PathValue("id"), r.PathValue("scenarioId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, completionResponse{Completed: done})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeSession attaches the roster before replying so clients always see the
// full session view.
func (s *Server) writeSession(w http.ResponseWriter, r *http.Request, status int, record storage.SessionRecord) {
	payload := toPayload(record)
	assignments, err := s.svc.GetAssignments(r.Context(), record.ID)
	if err != nil {
		s.logger.Printf("load assignments for %s: %v", record.ID, err)
	}
	for _, a := range assignments {
		payload.Assignments = append(payload.Assignments, assignmentPayload{
			Slot:          a.Slot,
			CharacterID:   a.CharacterID,
			CharacterName: a.CharacterName,
			PlayerType:    a.PlayerType,
			PlayerName:    a.PlayerName,
			IsUnused:      a.IsUnused,
		})
	}
	s.writeJSON(w, status, payload)
}

func toPayload(record storage.SessionRecord) sessionPayload {
	return sessionPayload{
		ID:              record.ID,
		ScenarioID:      record.ScenarioID,
		AccountID:       record.AccountID,
		ProfileID:       record.ProfileID,
		Status:          string(record.Status),
		CompletedScenes: record.CompletedScenes,
		CurrentSceneID:  record.CurrentSceneID,
		StartedAt:       record.StartedAt,
		EndedAt:         record.EndedAt,
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Printf("encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	trace.SpanFromContext(r.Context()).RecordError(err)

	code := apperrors.GetCode(err)
	status := code.HTTPStatus()
	if status >= http.StatusInternalServerError {
		s.logger.Printf("request failed: %v", err)
	}
	s.writeJSON(w, status, errorPayload{Code: string(code), Message: err.Error()})
}
