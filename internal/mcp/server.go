package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ldi/tt/internal/db"
	"github.com/ldi/tt/internal/reconcile"
)

// NewServer creates a new MCP server exposing the task registry and the
// PR inbox. Scan sessions are scoped by the session_id tool argument.
func NewServer(database *db.DB, sessions *reconcile.SessionManager) *server.MCPServer {
	s := server.NewMCPServer("tt", "0.1.0")

	// Task Registry
	s.AddTool(mcp.NewTool("allocate_task",
		mcp.WithDescription("Allocate the next task ID. The returned code is permanent and never reused; reference it in your branch name or PR description."),
	), allocateTaskHandler(database))

	s.AddTool(mcp.NewTool("list_tasks",
		mcp.WithDescription("List all tasks, newest first, with any linked pull request."),
	), listTasksHandler(database))

	s.AddTool(mcp.NewTool("get_task",
		mcp.WithDescription("Get a single task by code."),
		mcp.WithString("code", mcp.Description("Task code (e.g. tt-42)"), mcp.Required()),
	), getTaskHandler(database))

	s.AddTool(mcp.NewTool("delete_task",
		mcp.WithDescription("Delete a task and its PR link. The task's number is never reused."),
		mcp.WithString("code", mcp.Description("Task code"), mcp.Required()),
	), deleteTaskHandler(database))

	// PR Inbox
	s.AddTool(mcp.NewTool("scan_prs",
		mcp.WithDescription("Scan open pull requests for task references and classify each one. Results are computed fresh on every call."),
		mcp.WithString("session_id", mcp.Description("Session ID scoping ignore decisions (defaults to 'default').")),
		mcp.WithString("cwd", mcp.Description("Directory used to detect the repository (defaults to the server's working directory).")),
	), scanPRsHandler(sessions))

	s.AddTool(mcp.NewTool("apply_link",
		mcp.WithDescription("Attach a scanned pull request to the task it references. Call 'scan_prs' first; keys come from its items."),
		mcp.WithString("session_id", mcp.Description("Session ID (defaults to 'default').")),
		mcp.WithString("key", mcp.Description("Candidate key from scan_prs (owner/name#number)"), mcp.Required()),
	), applyLinkHandler(sessions))

	s.AddTool(mcp.NewTool("ignore_candidate",
		mcp.WithDescription("Hide a candidate from scans for the rest of this session. The decision is never persisted."),
		mcp.WithString("session_id", mcp.Description("Session ID (defaults to 'default').")),
		mcp.WithString("key", mcp.Description("PR key (owner/name#number) or a task code to mute every reference to it"), mcp.Required()),
	), ignoreCandidateHandler(sessions))

	return s
}

// Serve starts the MCP server on stdio.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func allocateTaskHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		task, err := database.AllocateTask(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		data, err := json.Marshal(task)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		return mcp.NewToolResultText(string(data)), nil
	}
}

func listTasksHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tasks, err := database.ListTasks(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		data, err := json.Marshal(map[string]interface{}{"tasks": tasks})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		return mcp.NewToolResultText(string(data)), nil
	}
}

func getTaskHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		code := mcp.ParseString(request, "code", "")

		task, err := database.GetTask(ctx, code)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		data, err := json.Marshal(task)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		return mcp.NewToolResultText(string(data)), nil
	}
}

func deleteTaskHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		code := mcp.ParseString(request, "code", "")

		if err := database.DeleteTask(ctx, code); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf("Task %s deleted. Its number will not be reused.", code)), nil
	}
}

func scanPRsHandler(sessions *reconcile.SessionManager) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID := mcp.ParseString(request, "session_id", "default")
		cwd := mcp.ParseString(request, "cwd", "")

		result, err := sessions.Get(sessionID).Scan(ctx, cwd)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		data, err := json.Marshal(result)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		return mcp.NewToolResultText(string(data)), nil
	}
}

func applyLinkHandler(sessions *reconcile.SessionManager) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID := mcp.ParseString(request, "session_id", "default")
		key := mcp.ParseString(request, "key", "")

		session := sessions.Get(sessionID)
		item, ok := session.Find(key)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("No candidate with key '%s' in the last scan. Call 'scan_prs' first.", key)), nil
		}

		task, err := session.Apply(ctx, item)
		if err != nil {
			if errors.Is(err, db.ErrInvalidTransition) {
				return mcp.NewToolResultError(fmt.Sprintf("%s. Call 'scan_prs' again for a fresh view.", err)), nil
			}
			return mcp.NewToolResultError(err.Error()), nil
		}

		if item.Action == reconcile.ActionImport {
			return mcp.NewToolResultText(fmt.Sprintf("Imported %s and attached PR #%d", task.Code, item.Candidate.Number)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Attached PR #%d to %s", item.Candidate.Number, task.Code)), nil
	}
}

func ignoreCandidateHandler(sessions *reconcile.SessionManager) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID := mcp.ParseString(request, "session_id", "default")
		key := mcp.ParseString(request, "key", "")

		sessions.Get(sessionID).Ignore(key)
		return mcp.NewToolResultText(fmt.Sprintf("Ignored '%s' for session '%s'", key, sessionID)), nil
	}
}
