// Package content loads authored scenario documents from YAML and checks
// their scene-graph integrity before play.
package content

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mystira/storyplay/internal/platform/errors"
	"github.com/mystira/storyplay/internal/story/domain"
)

// Document schema for authored scenarios. Field names follow the content
// pipeline's camelCase convention.
type scenarioDoc struct {
	ID          string         `yaml:"id"`
	Title       string         `yaml:"title"`
	Description string         `yaml:"description"`
	AgeGroup    string         `yaml:"ageGroup"`
	Scenes      []sceneDoc     `yaml:"scenes"`
	Characters  []characterDoc `yaml:"characters"`
}

type sceneDoc struct {
	ID              string      `yaml:"id"`
	Type            string      `yaml:"type"`
	Title           string      `yaml:"title"`
	Text            string      `yaml:"text"`
	NextSceneID     string      `yaml:"nextSceneId"`
	Branches        []branchDoc `yaml:"branches"`
	ImageID         string      `yaml:"imageId"`
	AudioID         string      `yaml:"audioId"`
	VideoID         string      `yaml:"videoId"`
	ActiveCharacter string      `yaml:"activeCharacter"`
	RollDifficulty  int         `yaml:"rollDifficulty"`
}

type branchDoc struct {
	Choice       string `yaml:"choice"`
	NextSceneID  string `yaml:"nextSceneId"`
	CompassAxis  string `yaml:"compassAxis"`
	CompassDelta int    `yaml:"compassDelta"`
}

type characterDoc struct {
	ID         string   `yaml:"id"`
	Name       string   `yaml:"name"`
	ImageID    string   `yaml:"imageId"`
	AudioID    string   `yaml:"audioId"`
	Roles      []string `yaml:"roles"`
	Archetypes []string `yaml:"archetypes"`
	Species    string   `yaml:"species"`
	Traits     []string `yaml:"traits"`
	Age        int      `yaml:"age"`
}

// Parse decodes one scenario document. Unknown fields are rejected so typos
// in authored content surface early.
func Parse(data []byte) (domain.Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc scenarioDoc
	if err := dec.Decode(&doc); err != nil {
		return domain.Scenario{}, errors.Wrap(errors.CodeContentInvalid, "decode scenario document", err)
	}
	if strings.TrimSpace(doc.ID) == "" {
		return domain.Scenario{}, errors.New(errors.CodeContentInvalid, "scenario document has no id")
	}
	return doc.toDomain(), nil
}

// LoadFile reads and parses a single scenario file.
func LoadFile(path string) (domain.Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Scenario{}, errors.Wrap(errors.CodeContentInvalid, "read scenario file "+path, err)
	}
	scenario, err := Parse(data)
	if err != nil {
		return domain.Scenario{}, errors.Wrap(errors.CodeContentInvalid, "parse scenario file "+path, err)
	}
	return scenario, nil
}

// LoadDir parses every .yaml/.yml file directly under dir, sorted by file
// name. It stops on the first file that fails to parse.
func LoadDir(dir string) ([]domain.Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(errors.CodeContentInvalid, "read scenario directory "+dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch filepath.Ext(entry.Name()) {
		case ".yaml", ".yml":
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)

	scenarios := make([]domain.Scenario, 0, len(paths))
	for _, path := range paths {
		scenario, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, scenario)
	}
	return scenarios, nil
}

func (d scenarioDoc) toDomain() domain.Scenario {
	scenario := domain.Scenario{
		ID:          d.ID,
		Title:       d.Title,
		Description: d.Description,
		AgeGroup:    d.AgeGroup,
	}
	for _, s := range d.Scenes {
		scene := domain.Scene{
			ID:              s.ID,
			Type:            domain.NormalizeSceneType(s.Type),
			Title:           s.Title,
			Text:            s.Text,
			NextSceneID:     s.NextSceneID,
			ImageID:         s.ImageID,
			AudioID:         s.AudioID,
			VideoID:         s.VideoID,
			ActiveCharacter: s.ActiveCharacter,
			RollDifficulty:  s.RollDifficulty,
		}
		for _, b := range s.Branches {
			scene.Branches = append(scene.Branches, domain.Branch{
				Choice:       b.Choice,
				NextSceneID:  b.NextSceneID,
				CompassAxis:  b.CompassAxis,
				CompassDelta: b.CompassDelta,
			})
		}
		scenario.Scenes = append(scenario.Scenes, scene)
	}
	for _, c := range d.Characters {
		scenario.Characters = append(scenario.Characters, domain.ScenarioCharacter{
			ID:      c.ID,
			Name:    c.Name,
			ImageID: c.ImageID,
			AudioID: c.AudioID,
			Metadata: domain.CharacterMetadata{
				Roles:      c.Roles,
				Archetypes: c.Archetypes,
				Species:    c.Species,
				Traits:     c.Traits,
				Age:        c.Age,
			},
		})
	}
	return scenario
}
