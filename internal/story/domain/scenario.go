package domain

import "strings"

// SceneType describes how play leaves a scene.
type SceneType string

const (
	// SceneTypeStandard is a scene with a single successor.
	SceneTypeStandard SceneType = "standard"
	// SceneTypeRoll is a scene whose successor is gated by a roll outcome.
	SceneTypeRoll SceneType = "roll"
	// SceneTypeSpecial is a scene that may terminate the scenario.
	SceneTypeSpecial SceneType = "special"
)

// NormalizeSceneType maps free-form content values onto a known SceneType.
// Unknown values normalize to SceneTypeStandard.
func NormalizeSceneType(value string) SceneType {
	switch SceneType(strings.ToLower(strings.TrimSpace(value))) {
	case SceneTypeRoll:
		return SceneTypeRoll
	case SceneTypeSpecial:
		return SceneTypeSpecial
	default:
		return SceneTypeStandard
	}
}

// CompassDirection is the sign of a compass-axis effect.
type CompassDirection string

const (
	CompassDirectionPositive CompassDirection = "positive"
	CompassDirectionNegative CompassDirection = "negative"
)

// Branch is a labeled edge from a scene to a successor, optionally carrying
// a compass-axis score effect. Compass bookkeeping is server-side; the
// client only forwards the delta.
type Branch struct {
	Choice       string
	NextSceneID  string
	CompassAxis  string
	CompassDelta int
}

// Direction derives the compass direction from the delta sign.
func (b Branch) Direction() CompassDirection {
	if b.CompassDelta < 0 {
		return CompassDirectionNegative
	}
	return CompassDirectionPositive
}

// Scene is one narrative beat in a scenario.
type Scene struct {
	ID              string
	Type            SceneType
	Title           string
	Text            string
	NextSceneID     string
	Branches        []Branch
	ImageID         string
	AudioID         string
	VideoID         string
	ActiveCharacter string
	// RollDifficulty is the check target for roll scenes. Zero means the
	// default difficulty.
	RollDifficulty int
}

// CharacterMetadata carries the descriptive fields attached to a scenario
// character in content.
type CharacterMetadata struct {
	Roles      []string
	Archetypes []string
	Species    string
	Traits     []string
	Age        int
}

// ScenarioCharacter is an in-story character declared by a scenario.
type ScenarioCharacter struct {
	ID       string
	Name     string
	ImageID  string
	AudioID  string
	Metadata CharacterMetadata
}

// Scenario is an immutable branching narrative. Once fetched for a session
// it does not change for the session's lifetime.
type Scenario struct {
	ID          string
	Title       string
	Description string
	AgeGroup    string
	Scenes      []Scene
	Characters  []ScenarioCharacter
}

// PlayerAssignmentType describes who is playing a character.
type PlayerAssignmentType string

const (
	PlayerAssignmentTypePlayer  PlayerAssignmentType = "player"
	PlayerAssignmentTypeProfile PlayerAssignmentType = "profile"
	PlayerAssignmentTypeGuest   PlayerAssignmentType = "guest"
)

// PlayerAssignment records the human playing a character slot.
type PlayerAssignment struct {
	Type        PlayerAssignmentType
	ProfileName string
	GuestName   string
}

// CharacterAssignment is one slot of the 4-entry character roster.
type CharacterAssignment struct {
	CharacterID   string
	CharacterName string
	ImageID       string
	AudioID       string
	Role          string
	Archetype     string
	IsUnused      bool
	Player        *PlayerAssignment // nil when the slot is unassigned
}
