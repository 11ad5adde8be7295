package content

import (
	"fmt"

	"github.com/mystira/storyplay/internal/platform/errors"
	"github.com/mystira/storyplay/internal/story/domain"
)

// Issue is one scene-graph integrity finding.
type Issue struct {
	Code    errors.Code
	SceneID string
	Message string
}

func (i Issue) String() string {
	if i.SceneID == "" {
		return fmt.Sprintf("%s: %s", i.Code, i.Message)
	}
	return fmt.Sprintf("%s: scene %s: %s", i.Code, i.SceneID, i.Message)
}

// Validate checks the scenario's scene graph and returns every finding. An
// empty slice means the scenario is playable.
//
// Checks: at least one scene, unique scene ids, every nextSceneId and branch
// target resolving to a declared scene, and roll scenes carrying at least
// one branch or a fallback successor.
func Validate(scenario domain.Scenario) []Issue {
	var issues []Issue

	if len(scenario.Scenes) == 0 {
		return []Issue{{
			Code:    errors.CodeScenarioNoScenes,
			Message: "scenario declares no scenes",
		}}
	}

	seen := make(map[string]bool, len(scenario.Scenes))
	for _, scene := range scenario.Scenes {
		if seen[scene.ID] {
			issues = append(issues, Issue{
				Code:    errors.CodeGraphDuplicateID,
				SceneID: scene.ID,
				Message: "scene id declared more than once",
			})
		}
		seen[scene.ID] = true
	}

	for _, scene := range scenario.Scenes {
		if scene.NextSceneID != "" && !seen[scene.NextSceneID] {
			issues = append(issues, Issue{
				Code:    errors.CodeGraphDanglingScene,
				SceneID: scene.ID,
				Message: fmt.Sprintf("nextSceneId %q does not resolve", scene.NextSceneID),
			})
		}
		for _, branch := range scene.Branches {
			if branch.NextSceneID == "" || seen[branch.NextSceneID] {
				continue
			}
			issues = append(issues, Issue{
				Code:    errors.CodeGraphDanglingScene,
				SceneID: scene.ID,
				Message: fmt.Sprintf("branch %q target %q does not resolve", branch.Choice, branch.NextSceneID),
			})
		}
		if scene.Type == domain.SceneTypeRoll && len(scene.Branches) == 0 && scene.NextSceneID == "" {
			issues = append(issues, Issue{
				Code:    errors.CodeGraphRollNoBranch,
				SceneID: scene.ID,
				Message: "roll scene has no branches and no fallback successor",
			})
		}
	}

	return issues
}

// ValidateStrict wraps Validate into a single error for callers that only
// need pass or fail.
func ValidateStrict(scenario domain.Scenario) error {
	issues := Validate(scenario)
	if len(issues) == 0 {
		return nil
	}
	return errors.New(issues[0].Code, issues[0].String())
}
