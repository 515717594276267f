// Package mcp exposes the evaluation pipeline as an MCP server. The judge is
// an MCP client: it receives session prompts as notifications and answers
// through the do/notify/complete/fail tools.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/arborlabs/arbor/internal/logging"
	"github.com/arborlabs/arbor/pkg/domain"
	"github.com/arborlabs/arbor/pkg/ports"
	"github.com/arborlabs/arbor/pkg/schema"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Evaluator runs a tree against the oracle. Satisfied by the engine.
type Evaluator interface {
	Evaluate(ctx context.Context, node domain.Node) (string, error)
}

// DoResponse is the structured result of the "do" tool.
type DoResponse struct {
	Text string `json:"text" jsonschema_description:"Accumulated output of the evaluated branch"`
}

// EvaluateResponse is the structured result of the "evaluate" tool.
type EvaluateResponse struct {
	ID     string `json:"id" jsonschema_description:"Evaluation identifier for the result tool"`
	Status string `json:"status" jsonschema_description:"running, done or failed"`
	Result string `json:"result,omitempty" jsonschema_description:"Final output once done"`
	Error  string `json:"error,omitempty" jsonschema_description:"Failure reason once failed"`
}

// Oracle implements ports.Oracle over MCP: prompts go out as server
// notifications, judge responses arrive as tool calls.
type Oracle struct {
	srv    *server.MCPServer
	logger *slog.Logger
	events chan domain.SessionEvent

	mu sync.Mutex
	do ports.DoFunc

	closeOnce sync.Once
}

var _ ports.Oracle = (*Oracle)(nil)
var _ ports.ToolBinder = (*Oracle)(nil)

// BindTool wires in the tool-bridge callback serviced by the "do" tool.
func (o *Oracle) BindTool(do ports.DoFunc) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.do = do
}

// OpenSession announces a new session to the connected judge.
func (o *Oracle) OpenSession(ctx context.Context) (string, error) {
	sessionID := uuid.NewString()
	o.srv.SendNotificationToAllClients("arbor/session_open", map[string]any{
		"session_id": sessionID,
	})
	return sessionID, nil
}

// SendPrompt pushes the decision prompt to the judge.
func (o *Oracle) SendPrompt(ctx context.Context, sessionID, prompt string) error {
	o.srv.SendNotificationToAllClients("arbor/prompt", map[string]any{
		"session_id": sessionID,
		"prompt":     prompt,
	})
	return nil
}

// Events returns the inbound session event stream.
func (o *Oracle) Events() <-chan domain.SessionEvent {
	return o.events
}

// Close shuts the inbound stream down.
func (o *Oracle) Close() {
	o.closeOnce.Do(func() {
		close(o.events)
	})
}

// Server wraps an MCP server exposing the judge-facing tool surface.
type Server struct {
	oracle    *Oracle
	mcpServer *server.MCPServer
	logger    *slog.Logger

	mu        sync.RWMutex
	evaluator Evaluator
	results   map[string]*EvaluateResponse
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
			s.oracle.logger = logger
		}
	}
}

// NewServer creates an MCP server instance. The engine is attached afterwards
// with Attach, once it has been built around Oracle().
func NewServer(version string, opts ...Option) *Server {
	mcpServer := server.NewMCPServer("arbor-mcp", version)
	s := &Server{
		oracle: &Oracle{
			srv:    mcpServer,
			logger: logging.NewNop(),
			events: make(chan domain.SessionEvent, 16),
		},
		mcpServer: mcpServer,
		logger:    logging.NewNop(),
		results:   make(map[string]*EvaluateResponse),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// Oracle returns the oracle adapter to build the engine around.
func (s *Server) Oracle() *Oracle {
	return s.oracle
}

// Attach connects the evaluator serving the "evaluate" tool.
func (s *Server) Attach(evaluator Evaluator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evaluator = evaluator
}

// ServeStdio starts the server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE.
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
		s.logger.Info("mcp server listening (sse)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
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

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	// TOOL: evaluate
	evaluateTool := mcp.NewTool("evaluate",
		mcp.WithDescription("Submit a tree document (JSON or YAML) for evaluation. Returns an evaluation ID; the judge then drives the run through prompts and the do tool."),
		mcp.WithString("tree", mcp.Required(), mcp.Description("The tree document to evaluate")),
		mcp.WithOutputSchema[EvaluateResponse](),
	)
	s.mcpServer.AddTool(evaluateTool, mcp.NewStructuredToolHandler(s.handleEvaluate))

	// TOOL: result
	resultTool := mcp.NewTool("result",
		mcp.WithDescription("Fetch the status and final output of a submitted evaluation."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Evaluation identifier")),
		mcp.WithOutputSchema[EvaluateResponse](),
	)
	s.mcpServer.AddTool(resultTool, mcp.NewStructuredToolHandler(s.handleResult))

	// TOOL: do
	doTool := mcp.NewTool("do",
		mcp.WithDescription("Evaluate the indexed child branch of the currently active decision and return its output."),
		mcp.WithNumber("option_index", mcp.Required(), mcp.Description("Zero-based child index")),
		mcp.WithOutputSchema[DoResponse](),
	)
	s.mcpServer.AddTool(doTool, mcp.NewStructuredToolHandler(s.handleDo))

	// TOOL: notify
	s.mcpServer.AddTool(mcp.NewTool("notify",
		mcp.WithDescription("Emit a free-form progress note for the active decision session."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Note text")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		s.oracle.events <- domain.Notification{Text: request.GetString("text", "")}
		return mcp.NewToolResultText("ok"), nil
	})

	// TOOL: complete
	s.mcpServer.AddTool(mcp.NewTool("complete",
		mcp.WithDescription("Finish the active decision session with a terminal message."),
		mcp.WithString("message", mcp.Required(), mcp.Description("Terminal message")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		s.oracle.events <- domain.TurnComplete{Message: request.GetString("message", "")}
		return mcp.NewToolResultText("ok"), nil
	})

	// TOOL: fail
	s.mcpServer.AddTool(mcp.NewTool("fail",
		mcp.WithDescription("Abort the active decision session with an error."),
		mcp.WithString("error", mcp.Required(), mcp.Description("Failure reason")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		s.oracle.events <- domain.SessionError{Err: fmt.Errorf("judge failure: %s", request.GetString("error", ""))}
		return mcp.NewToolResultText("ok"), nil
	})
}

func (s *Server) handleEvaluate(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (EvaluateResponse, error) {
	s.mu.RLock()
	evaluator := s.evaluator
	s.mu.RUnlock()
	if evaluator == nil {
		return EvaluateResponse{}, fmt.Errorf("no evaluator attached")
	}

	treeDoc, _ := args["tree"].(string)
	doc, err := schema.Unmarshal([]byte(treeDoc))
	if err == nil {
		err = schema.Validate(doc)
	}
	if err != nil {
		return EvaluateResponse{}, fmt.Errorf("invalid tree: %w", err)
	}

	ev := &EvaluateResponse{ID: uuid.NewString(), Status: "running"}
	s.mu.Lock()
	s.results[ev.ID] = ev
	s.mu.Unlock()

	// Detached from the tool call: the judge answers the resulting prompts
	// over this same connection, so the call must return first.
	go func() {
		text, err := evaluator.Evaluate(context.Background(), doc.Tree)
		s.mu.Lock()
		defer s.mu.Unlock()
		if err != nil {
			ev.Status = "failed"
			ev.Error = err.Error()
			s.logger.Warn("evaluation failed", "id", ev.ID, "err", err)
			return
		}
		ev.Status = "done"
		ev.Result = text
	}()

	return *ev, nil
}

func (s *Server) handleResult(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (EvaluateResponse, error) {
	id, _ := args["id"].(string)
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.results[id]
	if !ok {
		return EvaluateResponse{}, fmt.Errorf("unknown evaluation: %s", id)
	}
	return *ev, nil
}

func (s *Server) handleDo(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (DoResponse, error) {
	s.oracle.mu.Lock()
	do := s.oracle.do
	s.oracle.mu.Unlock()
	if do == nil {
		return DoResponse{}, fmt.Errorf("no tool bridge bound")
	}

	index, ok := args["option_index"].(float64)
	if !ok {
		return DoResponse{}, fmt.Errorf("option_index must be a number")
	}

	text, err := do(ctx, int(index))
	if err != nil {
		return DoResponse{}, err
	}
	return DoResponse{Text: text}, nil
}

func (s *Server) registerResources() {
	// EXPOSE: arbor://evaluations
	s.mcpServer.AddResource(mcp.NewResource("arbor://evaluations", "Submitted Evaluations",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		s.mu.RLock()
		all := make([]EvaluateResponse, 0, len(s.results))
		for _, ev := range s.results {
			all = append(all, *ev)
		}
		s.mu.RUnlock()

		jsonBytes, err := json.Marshal(all)
		if err != nil {
			return nil, fmt.Errorf("failed to encode evaluations: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "arbor://evaluations",
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
