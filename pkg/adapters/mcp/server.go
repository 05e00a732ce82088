// Package mcp exposes constellations and runs to MCP clients, so editor
// assistants can validate graphs, launch runs and answer confirmation gates.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rishimeka/astro"
	"github.com/rishimeka/astro/internal/logging"
	"github.com/rishimeka/astro/pkg/domain"
	"github.com/rishimeka/astro/pkg/ports"
	"github.com/rishimeka/astro/pkg/runs"
	"github.com/rishimeka/astro/pkg/validator"
)

// Engine defines the execution surface exposed over MCP. It matches the
// HTTP adapter's view of the engine.
type Engine interface {
	Run(ctx context.Context, constellationID, input string) (string, error)
	Confirm(ctx context.Context, runID string, decision domain.ConfirmationDecision) (domain.ConfirmationAck, error)
	Pending(runID string) (domain.Confirmation, bool)
}

// ValidationOutcome is the structured result of validate_constellation.
type ValidationOutcome struct {
	Valid    bool                `json:"valid" jsonschema_description:"True when the graph has no error-severity findings"`
	Findings []validator.Finding `json:"findings" jsonschema_description:"Structural findings, errors and warnings"`
}

// SaveOutcome is the structured result of save_constellation. Saved is false
// when the validator gate rejected the graph; the findings say why.
type SaveOutcome struct {
	Saved    bool                `json:"saved" jsonschema_description:"True when the constellation was persisted"`
	Findings []validator.Finding `json:"findings" jsonschema_description:"Structural findings, errors and warnings"`
}

// RunStarted is the structured result of start_run.
type RunStarted struct {
	RunID string `json:"run_id" jsonschema_description:"Identifier of the accepted run"`
}

// RunStatus is the structured result of get_run_status.
type RunStatus struct {
	Run     domain.RunRecord     `json:"run" jsonschema_description:"Run summary"`
	Nodes   []domain.NodeRecord  `json:"nodes" jsonschema_description:"Per-node outcomes recorded so far"`
	Pending *domain.Confirmation `json:"pending_confirmation,omitempty" jsonschema_description:"Set while the run waits on a confirmation gate"`
}

// Server wraps the engine and stores and exposes them as an MCP server.
type Server struct {
	engine         Engine
	runs           *runs.Manager
	constellations ports.ConstellationStore
	mcpServer      *server.MCPServer
	logger         *slog.Logger
}

// Option configures the server.
type Option func(*Server)

// WithLogger sets the diagnostics logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a new MCP server instance.
func NewServer(engine Engine, runMgr *runs.Manager, constellations ports.ConstellationStore, opts ...Option) *Server {
	s := &Server{
		engine:         engine,
		runs:           runMgr,
		constellations: constellations,
		mcpServer:      server.NewMCPServer("astro-mcp", strings.TrimSpace(astro.Version)),
		logger:         logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE and blocks until
// the context ends or the listener fails.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("shutdown signal received, stopping MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	// TOOL: validate_constellation
	validateTool := mcp.NewTool("validate_constellation",
		mcp.WithDescription("Check a constellation graph for structural problems. The graph is not saved."),
		mcp.WithString("constellation", mcp.Required(), mcp.Description("Constellation definition as a JSON object string")),
		mcp.WithOutputSchema[ValidationOutcome](),
	)
	s.mcpServer.AddTool(validateTool, mcp.NewStructuredToolHandler(s.handleValidate))

	// TOOL: save_constellation
	saveTool := mcp.NewTool("save_constellation",
		mcp.WithDescription("Validate and persist a constellation graph. A graph with error findings is not saved."),
		mcp.WithString("constellation", mcp.Required(), mcp.Description("Constellation definition as a JSON object string")),
		mcp.WithOutputSchema[SaveOutcome](),
	)
	s.mcpServer.AddTool(saveTool, mcp.NewStructuredToolHandler(s.handleSave))

	// TOOL: start_run
	startTool := mcp.NewTool("start_run",
		mcp.WithDescription("Execute a stored constellation. Returns immediately with the run id."),
		mcp.WithString("constellation_id", mcp.Required(), mcp.Description("Id of a stored constellation")),
		mcp.WithString("input", mcp.Description("Input text handed to the first star")),
		mcp.WithOutputSchema[RunStarted](),
	)
	s.mcpServer.AddTool(startTool, mcp.NewStructuredToolHandler(s.handleStartRun))

	// TOOL: get_run_status
	statusTool := mcp.NewTool("get_run_status",
		mcp.WithDescription("Get the current status, node outcomes and pending confirmation of a run."),
		mcp.WithString("run_id", mcp.Required(), mcp.Description("Run identifier")),
		mcp.WithOutputSchema[RunStatus](),
	)
	s.mcpServer.AddTool(statusTool, mcp.NewStructuredToolHandler(s.handleRunStatus))

	// TOOL: confirm_run
	confirmTool := mcp.NewTool("confirm_run",
		mcp.WithDescription("Answer the confirmation gate of a paused run."),
		mcp.WithString("run_id", mcp.Required(), mcp.Description("Run identifier")),
		mcp.WithBoolean("proceed", mcp.Required(), mcp.Description("True to resume the run, false to cancel it")),
		mcp.WithString("additional_context", mcp.Description("Extra context appended to the carried payload on proceed")),
		mcp.WithOutputSchema[domain.ConfirmationAck](),
	)
	s.mcpServer.AddTool(confirmTool, mcp.NewStructuredToolHandler(s.handleConfirm))

	// TOOL: list_constellations
	s.mcpServer.AddTool(mcp.NewTool("list_constellations",
		mcp.WithDescription("List every stored constellation."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		list, err := s.constellations.List(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
		}
		jsonBytes, _ := json.Marshal(list)
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})
}

// Handler methods for structured tools

func (s *Server) handleValidate(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (ValidationOutcome, error) {
	c, err := decodeConstellation(args)
	if err != nil {
		return ValidationOutcome{}, err
	}
	findings := validator.ValidateConstellation(c)
	if findings == nil {
		findings = []validator.Finding{}
	}
	return ValidationOutcome{
		Valid:    !validator.HasErrors(findings),
		Findings: findings,
	}, nil
}

func (s *Server) handleSave(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (SaveOutcome, error) {
	c, err := decodeConstellation(args)
	if err != nil {
		return SaveOutcome{}, err
	}
	if strings.TrimSpace(c.ID) == "" {
		return SaveOutcome{}, fmt.Errorf("constellation id is required")
	}

	findings := validator.ValidateConstellation(c)
	if findings == nil {
		findings = []validator.Finding{}
	}
	if validator.HasErrors(findings) {
		return SaveOutcome{Saved: false, Findings: findings}, nil
	}

	if err := s.constellations.Save(ctx, c); err != nil {
		return SaveOutcome{}, fmt.Errorf("save failed: %w", err)
	}
	s.logger.Info("constellation saved", "constellation_id", c.ID)
	return SaveOutcome{Saved: true, Findings: findings}, nil
}

func (s *Server) handleStartRun(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (RunStarted, error) {
	id, _ := args["constellation_id"].(string)
	input, _ := args["input"].(string)
	if strings.TrimSpace(id) == "" {
		return RunStarted{}, fmt.Errorf("constellation_id is required")
	}

	runID, err := s.engine.Run(ctx, id, input)
	if err != nil {
		return RunStarted{}, fmt.Errorf("start run: %w", err)
	}
	return RunStarted{RunID: runID}, nil
}

func (s *Server) handleRunStatus(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (RunStatus, error) {
	runID, _ := args["run_id"].(string)
	if strings.TrimSpace(runID) == "" {
		return RunStatus{}, fmt.Errorf("run_id is required")
	}

	rec, err := s.runs.Load(ctx, runID)
	if err != nil {
		return RunStatus{}, fmt.Errorf("load run: %w", err)
	}
	nodes, err := s.runs.NodeRecords(ctx, runID)
	if err != nil {
		return RunStatus{}, fmt.Errorf("load node records: %w", err)
	}
	if nodes == nil {
		nodes = []domain.NodeRecord{}
	}

	status := RunStatus{Run: rec, Nodes: nodes}
	if pending, ok := s.engine.Pending(runID); ok {
		status.Pending = &pending
	}
	return status, nil
}

func (s *Server) handleConfirm(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (domain.ConfirmationAck, error) {
	runID, _ := args["run_id"].(string)
	proceed, _ := args["proceed"].(bool)
	extra, _ := args["additional_context"].(string)
	if strings.TrimSpace(runID) == "" {
		return domain.ConfirmationAck{}, fmt.Errorf("run_id is required")
	}

	ack, err := s.engine.Confirm(ctx, runID, domain.ConfirmationDecision{
		Proceed:           proceed,
		AdditionalContext: extra,
	})
	if err != nil {
		return domain.ConfirmationAck{}, fmt.Errorf("confirm run: %w", err)
	}
	return ack, nil
}

func decodeConstellation(args map[string]interface{}) (*domain.Constellation, error) {
	raw, _ := args["constellation"].(string)
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("constellation is required")
	}
	var c domain.Constellation
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, fmt.Errorf("constellation is not valid JSON: %w", err)
	}
	return &c, nil
}

func (s *Server) registerResources() {
	// EXPOSE: astro://constellations
	s.mcpServer.AddResource(mcp.NewResource("astro://constellations", "Stored Constellations",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		list, err := s.constellations.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list constellations: %w", err)
		}
		jsonBytes, _ := json.Marshal(list)

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "astro://constellations",
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})

	// EXPOSE: astro://constellations/{id}
	s.mcpServer.AddResourceTemplate(mcp.NewResourceTemplate("astro://constellations/{id}", "Stored Constellation",
		mcp.WithTemplateMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		id := strings.TrimPrefix(request.Params.URI, "astro://constellations/")
		c, err := s.constellations.Load(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load constellation %s: %w", id, err)
		}
		jsonBytes, _ := json.Marshal(c)

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      request.Params.URI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
