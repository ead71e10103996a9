// Package mcp exposes redline skills and review tasks as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"

	"github.com/aretw0/redline"
	"github.com/aretw0/redline/internal/logging"
	"github.com/aretw0/redline/pkg/domain"
	"github.com/aretw0/redline/pkg/review"
	"github.com/aretw0/redline/pkg/skill"
)

// Tool names of the task tools. Skill tools use the skill id.
const (
	ToolDescribeSkills = "describe_skills"
	ToolGetTask        = "get_task"
	ToolSubmitDecision = "submit_decision"
	ToolResumeTask     = "resume_task"
	ToolListTasks      = "list_tasks"
)

// Server wraps the review service and the skill dispatcher as an MCP server.
type Server struct {
	service    *review.Service
	dispatcher *skill.Dispatcher
	domainID   string
	mcpServer  *server.MCPServer
	logger     *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithDomain restricts exported skill tools to generic skills plus those of domainID.
func WithDomain(domainID string) Option {
	return func(s *Server) {
		s.domainID = domainID
	}
}

// NewServer creates an MCP server. Active skills are registered as tools at construction time.
func NewServer(service *review.Service, dispatcher *skill.Dispatcher, opts ...Option) *Server {
	s := &Server{
		service:    service,
		dispatcher: dispatcher,
		logger:     logging.NewNop(),
		mcpServer: server.NewMCPServer("redline-mcp", strings.TrimSpace(redline.Version),
			server.WithToolCapabilities(false),
		),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerSkillTools()
	s.registerTaskTools()
	return s
}

// MCPServer returns the underlying server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the SSE transport on port until ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(fmt.Sprintf("http://localhost:%d", port)))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))
	httpServer := &http.Server{Addr: addr, Handler: mux}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// registerSkillTools exports each active skill with its public parameter schema.
func (s *Server) registerSkillTools() {
	for _, desc := range s.dispatcher.Registry().DescribeTools(s.domainID, "") {
		schema, err := json.Marshal(desc.Parameters)
		if err != nil {
			s.logger.Warn("Skipping skill with unencodable schema", "skill_id", desc.Name, "err", err)
			continue
		}
		id := desc.Name
		tool := mcp.NewToolWithRawSchema(id, desc.Description, schema)
		s.mcpServer.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			res := s.dispatcher.Invoke(ctx, id, req.GetArguments())
			if !res.Success {
				return mcp.NewToolResultError(fmt.Sprintf("skill %s failed: %s", id, res.Error)), nil
			}
			return jsonResult(res.Output)
		})
	}
}

func (s *Server) registerTaskTools() {
	s.mcpServer.AddTool(mcp.NewTool(ToolDescribeSkills,
		mcp.WithDescription("List the contracts of the active skills."),
		mcp.WithString("domain", mcp.Description("Domain id; generic skills are always included")),
		mcp.WithString("category", mcp.Description("Optional category filter")),
		mcp.WithReadOnlyHintAnnotation(true),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tools := s.dispatcher.Registry().DescribeTools(req.GetString("domain", ""), req.GetString("category", ""))
		return jsonResult(tools)
	})

	s.mcpServer.AddTool(mcp.NewTool(ToolListTasks,
		mcp.WithDescription("List review tasks with their status and progress."),
		mcp.WithReadOnlyHintAnnotation(true),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tasks, err := s.service.List(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(tasks)
	})

	s.mcpServer.AddTool(mcp.NewTool(ToolGetTask,
		mcp.WithDescription("Get the status and pending diffs of a review task."),
		mcp.WithString("task_id", mcp.Required(), mcp.Description("Task id")),
		mcp.WithReadOnlyHintAnnotation(true),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		taskID, err := req.RequireString("task_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		st, err := s.service.Get(ctx, taskID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(taskView{TaskInfo: review.Info(st), PendingDiffs: st.PendingDiffs, Summary: st.Summary})
	})

	s.mcpServer.AddTool(mcp.NewTool(ToolSubmitDecision,
		mcp.WithDescription("Record a human decision on a pending diff."),
		mcp.WithString("task_id", mcp.Required(), mcp.Description("Task id")),
		mcp.WithString("diff_id", mcp.Required(), mcp.Description("Pending diff id")),
		mcp.WithString("decision", mcp.Required(), mcp.Enum("approve", "reject", "edit")),
		mcp.WithString("revised_text", mcp.Description("Replacement text when the decision is edit")),
		mcp.WithString("comment", mcp.Description("Reviewer feedback carried into regeneration")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		taskID, err := req.RequireString("task_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		diffID, err := req.RequireString("diff_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		st, err := s.service.SubmitDecision(ctx, taskID, diffID, domain.Decision{
			Outcome:     domain.Outcome(req.GetString("decision", "")),
			RevisedText: req.GetString("revised_text", ""),
			Comment:     req.GetString("comment", ""),
		})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		missing, _ := s.service.Missing(ctx, taskID)
		return jsonResult(map[string]any{"status": st.Status, "missing": missing})
	})

	s.mcpServer.AddTool(mcp.NewTool(ToolResumeTask,
		mcp.WithDescription("Resume a suspended task once every pending diff has a decision."),
		mcp.WithString("task_id", mcp.Required(), mcp.Description("Task id")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		taskID, err := req.RequireString("task_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		res, err := s.service.Resume(ctx, taskID)
		var incomplete *domain.IncompleteDecisionsError
		if errors.As(err, &incomplete) {
			return mcp.NewToolResultError(fmt.Sprintf("missing decisions for: %s", strings.Join(incomplete.Missing, ", "))), nil
		}
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		view := map[string]any{"resumed": res.Resumed, "status": res.Status}
		if res.State != nil {
			view["pending_diffs"] = res.State.PendingDiffs
		}
		return jsonResult(view)
	})
}

type taskView struct {
	review.TaskInfo
	PendingDiffs []domain.ProposedDiff `json:"pending_diffs,omitempty"`
	Summary      *domain.Summary       `json:"summary,omitempty"`
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
