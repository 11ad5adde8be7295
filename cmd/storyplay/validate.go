package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mystira/storyplay/internal/story/content"
	"github.com/mystira/storyplay/internal/story/domain"
)

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <scenario.yaml|dir> ...",
		Short: "Check scenario files for scene-graph problems",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runValidate,
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	var total int
	for _, arg := range args {
		scenarios, err := loadScenarioArg(arg)
		if err != nil {
			return err
		}
		for _, scenario := range scenarios {
			issues := content.Validate(scenario)
			if len(issues) == 0 {
				cmd.Printf("%s: ok\n", scenario.ID)
				continue
			}
			total += len(issues)
			for _, issue := range issues {
				cmd.Printf("%s: %s\n", scenario.ID, issue)
			}
		}
	}
	if total > 0 {
		return fmt.Errorf("%d issue(s) found", total)
	}
	return nil
}

// loadScenarioArg accepts either a single YAML file or a directory of them.
func loadScenarioArg(path string) ([]domain.Scenario, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return content.LoadDir(path)
	}
	scenario, err := content.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return []domain.Scenario{scenario}, nil
}
