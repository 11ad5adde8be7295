package mcp

import (
	"context"
	"fmt"
	"sort"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mystira/storyplay/internal/story/dice"
	"github.com/mystira/storyplay/internal/story/domain"
	"github.com/mystira/storyplay/internal/story/session"
)

type ListScenariosInput struct{}

type StartSessionInput struct {
	ScenarioID string `json:"scenarioId" jsonschema:"id of the scenario to play"`
}

type CurrentSceneInput struct{}

type ChooseInput struct {
	ChoiceText  string `json:"choiceText" jsonschema:"text of the chosen option"`
	NextSceneID string `json:"nextSceneId" jsonschema:"scene id the choice leads to"`
}

type RollInput struct {
	Seed int64 `json:"seed,omitempty" jsonschema:"optional seed for a reproducible roll"`
}

type NextInput struct{}

type PauseInput struct{}

type ResumeInput struct{}

type EndInput struct{}

type ScenarioSummaryOutput struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	AgeGroup    string `json:"ageGroup,omitempty"`
	SceneCount  int    `json:"sceneCount"`
}

type ListScenariosOutput struct {
	Scenarios []ScenarioSummaryOutput `json:"scenarios"`
}

type BranchOutput struct {
	Choice      string `json:"choice"`
	NextSceneID string `json:"nextSceneId"`
}

type SceneOutput struct {
	SessionID   string         `json:"sessionId"`
	SceneID     string         `json:"sceneId"`
	Title       string         `json:"title,omitempty"`
	Text        string         `json:"text,omitempty"`
	Type        string         `json:"type"`
	Branches    []BranchOutput `json:"branches,omitempty"`
	IsCompleted bool           `json:"isCompleted"`
	IsPaused    bool           `json:"isPaused"`
}

type RollOutput struct {
	Roll       int         `json:"roll"`
	Difficulty int         `json:"difficulty"`
	Success    bool        `json:"success"`
	Scene      SceneOutput `json:"scene"`
}

func (s *Server) registerTools() {
	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "list_scenarios",
		Description: "List the scenarios available for play",
	}, s.handleListScenarios)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "start_session",
		Description: "Start a play session for a scenario",
	}, s.handleStartSession)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "current_scene",
		Description: "Return the current scene with player names substituted",
	}, s.handleCurrentScene)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "choose",
		Description: "Make a choice and move to the scene it leads to",
	}, s.handleChoose)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "roll",
		Description: "Roll a skill check on a roll scene and follow the outcome branch",
	}, s.handleRoll)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "next",
		Description: "Advance to the current scene's successor",
	}, s.handleNext)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "pause_session",
		Description: "Pause the session",
	}, s.handlePause)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "resume_session",
		Description: "Resume the session",
	}, s.handleResume)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "end_session",
		Description: "End the session",
	}, s.handleEnd)
}

func (s *Server) handleListScenarios(ctx context.Context, req *sdk.CallToolRequest, input ListScenariosInput) (*sdk.CallToolResult, ListScenariosOutput, error) {
	ids := make([]string, 0, len(s.scenarios))
	for id := range s.scenarios {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out ListScenariosOutput
	for _, id := range ids {
		scenario := s.scenarios[id]
		out.Scenarios = append(out.Scenarios, ScenarioSummaryOutput{
			ID:          scenario.ID,
			Title:       scenario.Title,
			Description: scenario.Description,
			AgeGroup:    scenario.AgeGroup,
			SceneCount:  len(scenario.Scenes),
		})
	}
	return nil, out, nil
}

func (s *Server) handleStartSession(ctx context.Context, req *sdk.CallToolRequest, input StartSessionInput) (*sdk.CallToolResult, SceneOutput, error) {
	scenario, ok := s.scenarios[input.ScenarioID]
	if !ok {
		return nil, SceneOutput{}, fmt.Errorf("unknown scenario %q", input.ScenarioID)
	}
	s.machine.PrepareCharacterAssignments(ctx, scenario)
	if err := s.machine.Start(ctx, scenario); err != nil {
		return nil, SceneOutput{}, err
	}
	return nil, s.sceneOutput(), nil
}

func (s *Server) handleCurrentScene(ctx context.Context, req *sdk.CallToolRequest, input CurrentSceneInput) (*sdk.CallToolResult, SceneOutput, error) {
	if s.machine.CurrentSession() == nil {
		return nil, SceneOutput{}, fmt.Errorf("no session in progress")
	}
	return nil, s.sceneOutput(), nil
}

func (s *Server) handleChoose(ctx context.Context, req *sdk.CallToolRequest, input ChooseInput) (*sdk.CallToolResult, SceneOutput, error) {
	err := s.machine.MakeChoice(ctx, session.ChoiceInput{
		ChoiceText:  input.ChoiceText,
		NextSceneID: input.NextSceneID,
	})
	if err != nil {
		return nil, SceneOutput{}, err
	}
	return nil, s.sceneOutput(), nil
}

func (s *Server) handleRoll(ctx context.Context, req *sdk.CallToolRequest, input RollInput) (*sdk.CallToolResult, RollOutput, error) {
	current := s.machine.CurrentSession()
	if current == nil || current.CurrentScene == nil {
		return nil, RollOutput{}, fmt.Errorf("no session in progress")
	}
	if current.CurrentScene.Type != domain.SceneTypeRoll {
		return nil, RollOutput{}, fmt.Errorf("scene %s is not a roll scene", current.CurrentSceneID)
	}

	seed := input.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	result := dice.CheckSeeded(seed, current.CurrentScene.RollDifficulty)

	if err := s.machine.NavigateFromRoll(ctx, result.Success); err != nil {
		return nil, RollOutput{}, err
	}
	return nil, RollOutput{
		Roll:       result.Value,
		Difficulty: result.Difficulty,
		Success:    result.Success,
		Scene:      s.sceneOutput(),
	}, nil
}

func (s *Server) handleNext(ctx context.Context, req *sdk.CallToolRequest, input NextInput) (*sdk.CallToolResult, SceneOutput, error) {
	if err := s.machine.GoToNextScene(ctx); err != nil {
		return nil, SceneOutput{}, err
	}
	return nil, s.sceneOutput(), nil
}

func (s *Server) handlePause(ctx context.Context, req *sdk.CallToolRequest, input PauseInput) (*sdk.CallToolResult, SceneOutput, error) {
	if err := s.machine.Pause(ctx); err != nil {
		return nil, SceneOutput{}, err
	}
	return nil, s.sceneOutput(), nil
}

func (s *Server) handleResume(ctx context.Context, req *sdk.CallToolRequest, input ResumeInput) (*sdk.CallToolResult, SceneOutput, error) {
	if err := s.machine.Resume(ctx); err != nil {
		return nil, SceneOutput{}, err
	}
	return nil, s.sceneOutput(), nil
}

func (s *Server) handleEnd(ctx context.Context, req *sdk.CallToolRequest, input EndInput) (*sdk.CallToolResult, SceneOutput, error) {
	if err := s.machine.Complete(ctx); err != nil {
		return nil, SceneOutput{}, err
	}
	out := s.sceneOutput()
	s.machine.Clear()
	return nil, out, nil
}

// sceneOutput snapshots the machine's current scene, with character
// placeholders replaced by player names.
func (s *Server) sceneOutput() SceneOutput {
	current := s.machine.CurrentSession()
	if current == nil {
		return SceneOutput{}
	}

	out := SceneOutput{
		SessionID:   current.ID,
		SceneID:     current.CurrentSceneID,
		IsCompleted: current.IsCompleted,
		IsPaused:    current.IsPaused,
	}
	if current.CurrentScene != nil {
		out.Title = s.machine.ReplaceCharacterPlaceholders(current.CurrentScene.Title)
		out.Text = s.machine.ReplaceCharacterPlaceholders(current.CurrentScene.Text)
		out.Type = string(current.CurrentScene.Type)
		for _, branch := range current.CurrentScene.Branches {
			out.Branches = append(out.Branches, BranchOutput{
				Choice:      branch.Choice,
				NextSceneID: branch.NextSceneID,
			})
		}
	}
	return out
}
