package main

import (
	"bufio"
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mystira/storyplay/internal/auth"
	"github.com/mystira/storyplay/internal/media"
	"github.com/mystira/storyplay/internal/platform/config"
	apperrors "github.com/mystira/storyplay/internal/platform/errors"
	"github.com/mystira/storyplay/internal/sessionstore/api"
	"github.com/mystira/storyplay/internal/story/content"
	"github.com/mystira/storyplay/internal/story/dice"
	"github.com/mystira/storyplay/internal/story/domain"
	"github.com/mystira/storyplay/internal/story/session"
)

type playEnv struct {
	SessionURL string `env:"MYSTIRA_SESSION_URL" envDefault:"http://localhost:8080"`
	TokenPath  string `env:"MYSTIRA_TOKEN_PATH"`
	MediaURL   string `env:"MYSTIRA_MEDIA_URL"`
}

func playCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "play <scenario.yaml>",
		Short: "Play a scenario interactively against a session store",
		Args:  cobra.ExactArgs(1),
		RunE:  runPlay,
	}
}

func runPlay(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var cfg playEnv
	if err := config.ParseEnv(&cfg); err != nil {
		return err
	}

	scenario, err := content.LoadFile(args[0])
	if err != nil {
		return err
	}
	if err := content.ValidateStrict(scenario); err != nil {
		return err
	}

	machine := session.NewMachine(session.Deps{
		API:      api.NewClient(cfg.SessionURL, nil),
		Accounts: accountProvider(cfg),
		Media:    media.NewResolver(cfg.MediaURL),
	})

	machine.PrepareCharacterAssignments(ctx, scenario)
	if err := machine.Start(ctx, scenario); err != nil {
		return err
	}
	cmd.Printf("Playing %s\n\n", scenario.Title)

	input := bufio.NewScanner(cmd.InOrStdin())
	for {
		current := machine.CurrentSession()
		if current == nil {
			return nil
		}
		if current.IsCompleted {
			cmd.Println("The story is complete. Thanks for playing!")
			return nil
		}
		printScene(cmd, machine, current)

		cmd.Print("> ")
		if !input.Scan() {
			return machine.Complete(ctx)
		}
		if err := handleCommand(ctx, cmd, machine, strings.TrimSpace(input.Text())); err != nil {
			cmd.Printf("%s\n\n", apperrors.UserMessage(err, ""))
		}
	}
}

func accountProvider(cfg playEnv) session.AccountProvider {
	if cfg.TokenPath == "" {
		return nil
	}
	return auth.NewTokenProvider(cfg.TokenPath)
}

func printScene(cmd *cobra.Command, machine *session.Machine, current *session.GameSession) {
	scene := current.CurrentScene
	if scene == nil {
		return
	}
	if scene.Title != "" {
		cmd.Printf("== %s ==\n", machine.ReplaceCharacterPlaceholders(scene.Title))
	}
	if scene.Text != "" {
		cmd.Println(machine.ReplaceCharacterPlaceholders(scene.Text))
	}
	switch {
	case scene.Type == domain.SceneTypeRoll:
		cmd.Println("\nThis calls for a roll. Type 'roll' to try your luck.")
	case len(scene.Branches) > 0:
		cmd.Println()
		for i, branch := range scene.Branches {
			cmd.Printf("  %d) %s\n", i+1, machine.ReplaceCharacterPlaceholders(branch.Choice))
		}
	default:
		cmd.Println("\nPress enter to continue.")
	}
}

func handleCommand(ctx context.Context, cmd *cobra.Command, machine *session.Machine, line string) error {
	current := machine.CurrentSession()
	if current == nil || current.CurrentScene == nil {
		return nil
	}
	scene := current.CurrentScene

	switch strings.ToLower(line) {
	case "quit", "exit":
		return machine.Complete(ctx)
	case "pause":
		return machine.Pause(ctx)
	case "resume":
		return machine.Resume(ctx)
	case "roll":
		result := dice.CheckSeeded(time.Now().UnixNano(), scene.RollDifficulty)
		outcome := "failure"
		if result.Success {
			outcome = "success"
		}
		cmd.Printf("You rolled %d against %d: %s!\n\n", result.Value, result.Difficulty, outcome)
		return machine.NavigateFromRoll(ctx, result.Success)
	case "":
		return machine.GoToNextScene(ctx)
	}

	index, err := strconv.Atoi(line)
	if err != nil || index < 1 || index > len(scene.Branches) {
		cmd.Printf("Unknown command %q\n\n", line)
		return nil
	}
	branch := scene.Branches[index-1]
	return machine.MakeChoice(ctx, session.ChoiceInput{
		ChoiceText:   branch.Choice,
		NextSceneID:  branch.NextSceneID,
		CompassAxis:  branch.CompassAxis,
		CompassDelta: branch.CompassDelta,
	})
}
