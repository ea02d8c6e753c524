package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/davoli/bussola/internal/agent"
	"github.com/davoli/bussola/internal/search"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Agent      *agent.Agent
	Recommends Recommender // optional; if nil, search_programs reports unavailability
	Version    string
}

// NewMCPServer creates an MCP server exposing the orientation agent as a
// set of tools, so MCP clients can drive the same conversation loop the
// HTTP API does.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"bussola",
		deps.Version,
		server.WithToolCapabilities(true),
		server.WithInstructions("bussola — conversational study-orientation agent for Italian students."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("start_conversation",
			mcp.WithDescription("Start a new orientation conversation and return the welcome message with its session id."),
		),
		mcpStartConversation(deps),
	)

	s.AddTool(
		mcp.NewTool("send_message",
			mcp.WithDescription("Send a student message to the orientation agent. Omit session_id to start fresh."),
			mcp.WithString("message", mcp.Description("The student's message"), mcp.Required()),
			mcp.WithString("session_id", mcp.Description("Existing session id, if any")),
		),
		mcpSendMessage(deps),
	)

	s.AddTool(
		mcp.NewTool("get_profile",
			mcp.WithDescription("Return the current profile snapshot for a session: known fields, completeness, and what is still missing."),
			mcp.WithString("session_id", mcp.Description("Session id"), mcp.Required()),
		),
		mcpGetProfile(deps),
	)

	s.AddTool(
		mcp.NewTool("search_programs",
			mcp.WithDescription("Search the web for university and ITS programs matching a set of interests and a location."),
			mcp.WithArray("interests", mcp.Description("Subjects of interest"), mcp.Required()),
			mcp.WithString("location", mcp.Description("City or region")),
		),
		mcpSearchPrograms(deps),
	)

	return s
}

func mcpStartConversation(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		welcome, p, err := deps.Agent.StartNewConversation(ctx)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to start conversation: %v", err)), nil
		}

		b, err := json.Marshal(map[string]string{
			"session_id": p.SessionID,
			"message":    welcome,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpSendMessage(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		message, err := req.RequireString("message")
		if err != nil {
			return mcpError("message is required"), nil
		}
		sessionID := req.GetString("session_id", "")

		response, p, err := deps.Agent.ProcessMessage(ctx, sessionID, message)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to process message: %v", err)), nil
		}

		result := map[string]any{"response": response}
		if p != nil {
			result["session_id"] = p.SessionID
			result["completeness"] = p.Completeness
			result["ready_for_search"] = p.SufficientForRecommendation()
		}
		b, err := json.Marshal(result)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpGetProfile(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID, err := req.RequireString("session_id")
		if err != nil {
			return mcpError("session_id is required"), nil
		}

		snap, err := deps.Agent.Snapshot(sessionID)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to load profile: %v", err)), nil
		}

		b, err := json.Marshal(snap)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal profile: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpSearchPrograms(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Recommends == nil {
			return mcpError("web search not available: search is disabled"), nil
		}

		interests := req.GetStringSlice("interests", nil)
		if len(interests) == 0 {
			return mcpError("interests is required"), nil
		}
		location := req.GetString("location", "")

		results, err := deps.Recommends.ForProfile(ctx, search.Query{
			FavoriteSubjects: interests,
			Location:         location,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}

		b, err := json.Marshal(results)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
