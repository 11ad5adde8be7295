package domain

import (
	"regexp"
	"strings"
)

// Fallback display names used when no player name can be resolved.
const (
	fallbackPlayerName = "Player"
	fallbackGuestName  = "Guest"
)

// placeholderPattern matches [c:<key>] tokens in narrative text. The key is
// any run of non-] characters; matching is case-insensitive.
var placeholderPattern = regexp.MustCompile(`(?i)\[c:([^\]]*)\]`)

// ResolvePlayerName returns the display name of the player holding a roster
// slot.
//
// A profile or guest name that matches the slot's own character name is
// suppressed in favor of the generic fallback: a character must never echo
// its own name as the person playing it.
func ResolvePlayerName(assignment CharacterAssignment) string {
	player := assignment.Player
	if player == nil {
		return fallbackPlayerName
	}

	switch player.Type {
	case PlayerAssignmentTypePlayer, PlayerAssignmentTypeProfile:
		name := player.ProfileName
		if name == "" || strings.EqualFold(name, assignment.CharacterName) {
			return fallbackPlayerName
		}
		return name
	case PlayerAssignmentTypeGuest:
		name := player.GuestName
		if name == "" || strings.EqualFold(name, assignment.CharacterName) {
			return fallbackGuestName
		}
		return name
	default:
		return fallbackPlayerName
	}
}

// ReplacePlaceholders rewrites every [c:<key>] token in text into a player
// display name.
//
// Resolution order for each token:
//  1. key matches a roster entry's character name (case-insensitive)
//  2. key is "*": resolve against the scene's active character id or name
//  3. key matches a roster entry's character id (case-insensitive)
//  4. literal "Player"
//
// The output never contains an unresolved token.
func ReplacePlaceholders(text string, roster []CharacterAssignment, activeCharacterID string) string {
	return placeholderPattern.ReplaceAllStringFunc(text, func(token string) string {
		key := token[len("[c:") : len(token)-1]

		if assignment, ok := findByName(roster, key); ok {
			return ResolvePlayerName(assignment)
		}

		if key == "*" {
			if assignment, ok := findActive(roster, activeCharacterID); ok {
				return ResolvePlayerName(assignment)
			}
			return fallbackPlayerName
		}

		if assignment, ok := findByID(roster, key); ok {
			return ResolvePlayerName(assignment)
		}

		return fallbackPlayerName
	})
}

func findByName(roster []CharacterAssignment, name string) (CharacterAssignment, bool) {
	for _, assignment := range roster {
		if strings.EqualFold(assignment.CharacterName, name) {
			return assignment, true
		}
	}
	return CharacterAssignment{}, false
}

func findByID(roster []CharacterAssignment, id string) (CharacterAssignment, bool) {
	for _, assignment := range roster {
		if strings.EqualFold(assignment.CharacterID, id) {
			return assignment, true
		}
	}
	return CharacterAssignment{}, false
}

// findActive resolves the wildcard token against the scene's declared
// character, matching either the character id or name.
func findActive(roster []CharacterAssignment, activeCharacterID string) (CharacterAssignment, bool) {
	if activeCharacterID == "" {
		return CharacterAssignment{}, false
	}
	for _, assignment := range roster {
		if strings.EqualFold(assignment.CharacterID, activeCharacterID) ||
			strings.EqualFold(assignment.CharacterName, activeCharacterID) {
			return assignment, true
		}
	}
	return CharacterAssignment{}, false
}
