package main

import (
	"context"
	"fmt"
	"io"
	"log"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/mystira/storyplay/internal/media"
	"github.com/mystira/storyplay/internal/mcp"
	"github.com/mystira/storyplay/internal/platform/config"
	"github.com/mystira/storyplay/internal/sessionstore/api"
	"github.com/mystira/storyplay/internal/story/content"
	"github.com/mystira/storyplay/internal/story/session"
)

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp <scenario-dir>",
		Short: "Serve scenario play as MCP tools over stdio",
		Args:  cobra.ExactArgs(1),
		RunE:  runMCP,
	}
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var cfg playEnv
	if err := config.ParseEnv(&cfg); err != nil {
		return err
	}

	scenarios, err := content.LoadDir(args[0])
	if err != nil {
		return err
	}
	if len(scenarios) == 0 {
		return fmt.Errorf("no scenarios found in %s", args[0])
	}
	for _, scenario := range scenarios {
		if err := content.ValidateStrict(scenario); err != nil {
			return err
		}
	}

	// Stdout carries the MCP transport, so the machine logs to discard.
	machine := session.NewMachine(session.Deps{
		API:      api.NewClient(cfg.SessionURL, nil),
		Accounts: accountProvider(cfg),
		Media:    media.NewResolver(cfg.MediaURL),
		Logger:   log.New(io.Discard, "", 0),
	})

	server := mcp.NewServer(machine, scenarios, version)
	return server.Run(ctx, &sdk.StdioTransport{})
}
