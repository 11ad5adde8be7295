package domain

import "fmt"

// RosterSize is the fixed number of character slots in every roster.
const RosterSize = 4

const (
	unusedCharacterName = "Unused Character"
	unusedRole          = "Empty Slot"
	unusedArchetype     = "No Assignment"
)

// BuildAssignments builds a fresh roster from a scenario's characters.
//
// The first RosterSize characters are taken in declaration order. Role and
// archetype come from the first element of the corresponding metadata list.
// Remaining slots are padded with synthetic unused entries so the roster
// always has exactly RosterSize entries.
func BuildAssignments(scenario Scenario) []CharacterAssignment {
	roster := make([]CharacterAssignment, 0, RosterSize)

	count := len(scenario.Characters)
	if count > RosterSize {
		count = RosterSize
	}
	for i := 0; i < count; i++ {
		character := scenario.Characters[i]
		roster = append(roster, CharacterAssignment{
			CharacterID:   character.ID,
			CharacterName: character.Name,
			ImageID:       character.ImageID,
			AudioID:       character.AudioID,
			Role:          firstOrEmpty(character.Metadata.Roles),
			Archetype:     firstOrEmpty(character.Metadata.Archetypes),
		})
	}

	for i := len(roster); i < RosterSize; i++ {
		roster = append(roster, CharacterAssignment{
			CharacterID:   fmt.Sprintf("unused-%d", i),
			CharacterName: unusedCharacterName,
			Role:          unusedRole,
			Archetype:     unusedArchetype,
			IsUnused:      true,
		})
	}

	return roster
}

// MergeExisting folds previously chosen player assignments into a freshly
// built roster.
//
// Only PlayerAssignment and IsUnused are carried over, and only for existing
// entries that actually have a player assigned; identity and media fields
// always come from the fresh build. Existing entries without a player are
// still-unassigned slots and are ignored.
func MergeExisting(fresh, existing []CharacterAssignment) []CharacterAssignment {
	merged := make([]CharacterAssignment, len(fresh))
	copy(merged, fresh)

	for _, previous := range existing {
		if previous.Player == nil {
			continue
		}
		for i := range merged {
			if merged[i].CharacterID == previous.CharacterID {
				merged[i].Player = previous.Player
				merged[i].IsUnused = previous.IsUnused
				break
			}
		}
	}

	return merged
}

func firstOrEmpty(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
