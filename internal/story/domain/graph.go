package domain

import (
	"github.com/mystira/storyplay/internal/platform/errors"
)

// StartingScene determines where play begins for a scenario.
//
// A well-formed scenario has exactly one scene that no other scene references
// through NextSceneID or a branch target. When the graph is fully referenced
// (cyclic content) the first scene in list order is the deterministic
// fallback. An empty scene list is a graph integrity failure: no session can
// be created from it.
func StartingScene(scenario Scenario) (Scene, error) {
	if len(scenario.Scenes) == 0 {
		return Scene{}, errors.WithMetadata(errors.CodeScenarioNoScenes,
			"scenario has no scenes", map[string]string{
				"ScenarioID": scenario.ID,
			})
	}

	referenced := referencedSceneIDs(scenario)
	for _, scene := range scenario.Scenes {
		if !referenced[scene.ID] {
			return scene, nil
		}
	}

	// Fully referenced graph: fall back to list order.
	return scenario.Scenes[0], nil
}

// FindScene looks up a scene by exact id. A miss is recoverable: the caller
// fails the navigation and mutates nothing.
func FindScene(scenario Scenario, sceneID string) (Scene, error) {
	for _, scene := range scenario.Scenes {
		if scene.ID == sceneID {
			return scene, nil
		}
	}
	return Scene{}, errors.WithMetadata(errors.CodeSceneNotFound,
		"scene not found in scenario", map[string]string{
			"ScenarioID": scenario.ID,
			"SceneID":    sceneID,
		})
}

// referencedSceneIDs collects every scene id that appears as a successor,
// either through NextSceneID or a branch target. Empty ids are ignored.
func referencedSceneIDs(scenario Scenario) map[string]bool {
	referenced := make(map[string]bool)
	for _, scene := range scenario.Scenes {
		if scene.NextSceneID != "" {
			referenced[scene.NextSceneID] = true
		}
		for _, branch := range scene.Branches {
			if branch.NextSceneID != "" {
				referenced[branch.NextSceneID] = true
			}
		}
	}
	return referenced
}
