// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes DraftForge tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rowanvale/draftforge/internal/canvas"
	"github.com/rowanvale/draftforge/internal/notebook"
)

// Server wraps the MCP server with DraftForge tools.
type Server struct {
	mcp *server.MCPServer
	svc *notebook.Service
}

// New creates a new MCP server with all DraftForge tools registered.
func New(svc *notebook.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"DraftForge",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("get_workspace",
		mcp.WithDescription("Get the full workspace snapshot: notebooks, projects, extracted ideas, and any active run."),
		mcp.WithString("workspace_id", mcp.Required(), mcp.Description("Workspace identity")),
	), s.getWorkspace)

	s.mcp.AddTool(mcp.NewTool("list_areas",
		mcp.WithDescription("List the latest note's areas with previews and run status."),
		mcp.WithString("workspace_id", mcp.Required(), mcp.Description("Workspace identity")),
	), s.listAreas)

	s.mcp.AddTool(mcp.NewTool("upsert_block",
		mcp.WithDescription("Create or update a canvas block on a note. Areas are recomputed after the change."),
		mcp.WithString("workspace_id", mcp.Required(), mcp.Description("Workspace identity")),
		mcp.WithString("note_id", mcp.Description("Target note (defaults to the most recent note)")),
		mcp.WithString("block_id", mcp.Description("Block identity (omit to create a new block)")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Block text content")),
		mcp.WithNumber("x", mcp.Description("Block x position")),
		mcp.WithNumber("y", mcp.Description("Block y position")),
		mcp.WithNumber("w", mcp.Description("Block width")),
		mcp.WithNumber("h", mcp.Description("Block height")),
	), s.upsertBlock)

	s.mcp.AddTool(mcp.NewTool("enqueue_run",
		mcp.WithDescription("Schedule a generation run for an area. Returns the run plus alreadyActive/skipped flags."),
		mcp.WithString("workspace_id", mcp.Required(), mcp.Description("Workspace identity")),
		mcp.WithString("note_id", mcp.Required(), mcp.Description("Note owning the area")),
		mcp.WithString("area_id", mcp.Required(), mcp.Description("Area to refine")),
	), s.enqueueRun)

	s.mcp.AddTool(mcp.NewTool("get_run",
		mcp.WithDescription("Get a run's current status, error, and linked project identity."),
		mcp.WithString("workspace_id", mcp.Required(), mcp.Description("Workspace identity")),
		mcp.WithString("run_id", mcp.Required(), mcp.Description("Run identity")),
	), s.getRun)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) getWorkspace(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workspaceID, err := req.RequireString("workspace_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	snap, err := s.svc.Latest(workspaceID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(snap, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listAreas(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workspaceID, err := req.RequireString("workspace_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	summaries, err := s.svc.AreaSummaries(workspaceID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(summaries, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) upsertBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workspaceID, err := req.RequireString("workspace_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	block := canvas.Block{
		ID:      req.GetString("block_id", ""),
		X:       req.GetFloat("x", 0),
		Y:       req.GetFloat("y", 0),
		W:       req.GetFloat("w", 0),
		H:       req.GetFloat("h", 0),
		Content: content,
	}
	result, err := s.svc.SavePatches(workspaceID, req.GetString("note_id", ""), []canvas.Patch{
		{Op: canvas.OpUpsertBlock, Block: &block},
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(result.Note, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) enqueueRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workspaceID, err := req.RequireString("workspace_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	noteID, err := req.RequireString("note_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	areaID, err := req.RequireString("area_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.svc.EnqueueRun(workspaceID, noteID, areaID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(result, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workspaceID, err := req.RequireString("workspace_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	runID, err := req.RequireString("run_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	run, _, err := s.svc.Run(workspaceID, runID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if run == nil {
		return mcp.NewToolResultError(fmt.Sprintf("run not found: %s", runID)), nil
	}
	out, _ := json.MarshalIndent(run, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}
