package i18n

import "golang.org/x/text/language"

// Error codes must match the codes defined in internal/platform/errors/codes.go.
// These are duplicated as strings to avoid an import cycle.
const (
	CodeSessionAlreadyStarted  = "SESSION_ALREADY_STARTED"
	CodeSessionNotActive       = "SESSION_NOT_ACTIVE"
	CodeSessionAlreadyPaused   = "SESSION_ALREADY_PAUSED"
	CodeSceneNotRoll           = "SCENE_NOT_ROLL"
	CodeNoCurrentScene         = "NO_CURRENT_SCENE"
	CodeSceneNotFound          = "SCENE_NOT_FOUND"
	CodeScenarioNoScenes       = "SCENARIO_NO_SCENES"
	CodeScenarioNotFound       = "SCENARIO_NOT_FOUND"
	CodeGraphDuplicateID       = "GRAPH_DUPLICATE_SCENE_ID"
	CodeGraphDanglingScene     = "GRAPH_DANGLING_SCENE_TARGET"
	CodeGraphRollNoBranch      = "GRAPH_ROLL_WITHOUT_BRANCHES"
	CodeRemoteStartFailed      = "REMOTE_START_FAILED"
	CodeRemoteCallFailed       = "REMOTE_CALL_FAILED"
	CodeSessionEmptyScenarioID = "SESSION_EMPTY_SCENARIO_ID"
	CodeSessionEmptyAccountID  = "SESSION_EMPTY_ACCOUNT_ID"
	CodeSessionEnded           = "SESSION_ENDED"
	CodeChoiceEmptyText        = "CHOICE_EMPTY_TEXT"
	CodeContentInvalid         = "CONTENT_INVALID"
	CodeNotFound               = "NOT_FOUND"
	CodeCancelled              = "CANCELLED"

	fallbackCode = "UNKNOWN"
)

var enUSCatalog = &Catalog{
	tag: language.AmericanEnglish,
	messages: map[string]string{
		// Session transition errors
		CodeSessionAlreadyStarted: "A game is already in progress",
		CodeSessionNotActive:      "No game is in progress",
		CodeSessionAlreadyPaused:  "The game is already paused",
		CodeSceneNotRoll:          "The current scene does not call for a roll",
		CodeNoCurrentScene:        "The game has no current scene",

		// Scene graph errors
		CodeSceneNotFound:      "Scene {{.SceneID}} was not found in this scenario",
		CodeScenarioNoScenes:   "This scenario has no scenes",
		CodeScenarioNotFound:   "The scenario was not found",
		CodeGraphDuplicateID:   "Scene id {{.SceneID}} appears more than once",
		CodeGraphDanglingScene: "Scene {{.SceneID}} points at missing scene {{.TargetID}}",
		CodeGraphRollNoBranch:  "Roll scene {{.SceneID}} has no outcome branches",

		// Remote session-store errors
		CodeRemoteStartFailed: "Could not start the game",
		CodeRemoteCallFailed:  "The session store is unavailable",

		// Session-store validation errors
		CodeSessionEmptyScenarioID: "Scenario ID is required for session",
		CodeSessionEmptyAccountID:  "Account ID is required for session",
		CodeSessionEnded:           "The session has already ended",
		CodeChoiceEmptyText:        "Choice text cannot be empty",

		// Content errors
		CodeContentInvalid: "The scenario content is invalid",

		// Storage errors
		CodeNotFound: "The requested resource was not found",

		CodeCancelled: "The operation was cancelled",

		fallbackCode: "An unexpected error occurred",
	},
}
