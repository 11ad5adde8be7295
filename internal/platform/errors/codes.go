package errors

import (
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"
)

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Session transition errors
	CodeSessionAlreadyStarted Code = "SESSION_ALREADY_STARTED"
	CodeSessionNotActive      Code = "SESSION_NOT_ACTIVE"
	CodeSessionAlreadyPaused  Code = "SESSION_ALREADY_PAUSED"
	CodeSceneNotRoll          Code = "SCENE_NOT_ROLL"
	CodeNoCurrentScene        Code = "NO_CURRENT_SCENE"

	// Scene graph errors
	CodeSceneNotFound      Code = "SCENE_NOT_FOUND"
	CodeScenarioNoScenes   Code = "SCENARIO_NO_SCENES"
	CodeScenarioNotFound   Code = "SCENARIO_NOT_FOUND"
	CodeGraphDuplicateID   Code = "GRAPH_DUPLICATE_SCENE_ID"
	CodeGraphDanglingScene Code = "GRAPH_DANGLING_SCENE_TARGET"
	CodeGraphRollNoBranch  Code = "GRAPH_ROLL_WITHOUT_BRANCHES"

	// Remote session-store errors
	CodeRemoteStartFailed Code = "REMOTE_START_FAILED"
	CodeRemoteCallFailed  Code = "REMOTE_CALL_FAILED"

	// Session-store validation errors
	CodeSessionEmptyScenarioID Code = "SESSION_EMPTY_SCENARIO_ID"
	CodeSessionEmptyAccountID  Code = "SESSION_EMPTY_ACCOUNT_ID"
	CodeSessionEnded           Code = "SESSION_ENDED"
	CodeChoiceEmptyText        Code = "CHOICE_EMPTY_TEXT"

	// Content errors
	CodeContentInvalid Code = "CONTENT_INVALID"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"

	// CodeCancelled indicates the caller abandoned the operation before any
	// local mutation was applied.
	CodeCancelled Code = "CANCELLED"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeSessionEmptyScenarioID,
		CodeSessionEmptyAccountID,
		CodeChoiceEmptyText,
		CodeContentInvalid:
		return codes.InvalidArgument

	// FailedPrecondition - state doesn't allow operation
	case CodeSessionAlreadyStarted,
		CodeSessionNotActive,
		CodeSessionAlreadyPaused,
		CodeSceneNotRoll,
		CodeNoCurrentScene,
		CodeSessionEnded,
		CodeScenarioNoScenes,
		CodeGraphDuplicateID,
		CodeGraphDanglingScene,
		CodeGraphRollNoBranch:
		return codes.FailedPrecondition

	// NotFound - resource doesn't exist
	case CodeNotFound,
		CodeSceneNotFound,
		CodeScenarioNotFound:
		return codes.NotFound

	// Unavailable - remote collaborator failed
	case CodeRemoteStartFailed,
		CodeRemoteCallFailed:
		return codes.Unavailable

	case CodeCancelled:
		return codes.Canceled

	default:
		return codes.Internal
	}
}

// HTTPStatus maps domain codes to HTTP status codes for the JSON API.
func (c Code) HTTPStatus() int {
	switch c.GRPCCode() {
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.FailedPrecondition:
		return http.StatusConflict
	case codes.NotFound:
		return http.StatusNotFound
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// GetCode extracts the error code from any error.
// Returns CodeUnknown if the error is not a domain error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// IsCode checks if the error has the specified code.
func IsCode(err error, code Code) bool {
	return GetCode(err) == code
}
