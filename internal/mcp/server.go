// Package mcp exposes scenario play as MCP tools over a session machine.
package mcp

import (
	"context"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mystira/storyplay/internal/story/domain"
	"github.com/mystira/storyplay/internal/story/session"
)

// Server wires play tools onto an MCP server.
type Server struct {
	machine   *session.Machine
	scenarios map[string]domain.Scenario
	mcp       *sdk.Server
}

// NewServer creates a Server over machine, offering the provided scenarios
// for play.
func NewServer(machine *session.Machine, scenarios []domain.Scenario, version string) *Server {
	byID := make(map[string]domain.Scenario, len(scenarios))
	for _, scenario := range scenarios {
		byID[scenario.ID] = scenario
	}
	s := &Server{
		machine:   machine,
		scenarios: byID,
		mcp: sdk.NewServer(&sdk.Implementation{
			Name:    "storyplay",
			Version: version,
		}, nil),
	}
	s.registerTools()
	return s
}

// Run serves MCP requests until ctx is cancelled or the transport closes.
func (s *Server) Run(ctx context.Context, transport sdk.Transport) error {
	return s.mcp.Run(ctx, transport)
}
