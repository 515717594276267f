// Package http exposes the evaluation pipeline to a remote judge. The judge
// subscribes to GET /events for outbound session traffic (session opens and
// prompts) and answers through POST /notify, /do, /complete and /fail. Trees
// are submitted with POST /evaluate and collected from GET /result/{id}.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/arborlabs/arbor/internal/logging"
	"github.com/arborlabs/arbor/pkg/domain"
	"github.com/arborlabs/arbor/pkg/ports"
	"github.com/arborlabs/arbor/pkg/schema"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Evaluator runs a tree against the oracle. Satisfied by the engine.
type Evaluator interface {
	Evaluate(ctx context.Context, node domain.Node) (string, error)
}

// Oracle implements ports.Oracle over HTTP: prompts go out on the SSE stream,
// judge responses come back in as POSTed events.
type Oracle struct {
	logger  *slog.Logger
	streams *StreamManager
	events  chan domain.SessionEvent

	mu sync.Mutex
	do ports.DoFunc

	closeOnce sync.Once
}

var _ ports.Oracle = (*Oracle)(nil)
var _ ports.ToolBinder = (*Oracle)(nil)

// OracleOption configures the HTTP oracle.
type OracleOption func(*Oracle)

// WithOracleLogger sets a structured logger.
func WithOracleLogger(logger *slog.Logger) OracleOption {
	return func(o *Oracle) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewOracle creates an HTTP-backed oracle.
func NewOracle(opts ...OracleOption) *Oracle {
	o := &Oracle{
		logger:  logging.NewNop(),
		streams: NewStreamManager(),
		events:  make(chan domain.SessionEvent, 16),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// outboundMessage is one SSE payload sent to the judge.
type outboundMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Prompt    string `json:"prompt,omitempty"`
}

// BindTool wires in the tool-bridge callback serviced on POST /do.
func (o *Oracle) BindTool(do ports.DoFunc) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.do = do
}

// OpenSession announces a new session on the event stream.
func (o *Oracle) OpenSession(ctx context.Context) (string, error) {
	if o.streams.Count() == 0 {
		return "", fmt.Errorf("no judge connected to the event stream")
	}
	sessionID := uuid.NewString()
	o.broadcast(outboundMessage{Type: "open", SessionID: sessionID})
	return sessionID, nil
}

// SendPrompt pushes the decision prompt to every connected judge.
func (o *Oracle) SendPrompt(ctx context.Context, sessionID, prompt string) error {
	o.broadcast(outboundMessage{Type: "prompt", SessionID: sessionID, Prompt: prompt})
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

func (o *Oracle) broadcast(msg outboundMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		o.logger.Error("failed to encode outbound message", "err", err)
		return
	}
	o.streams.Broadcast(string(data))
}

// evaluation tracks one submitted tree run.
type evaluation struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

const (
	statusRunning = "running"
	statusDone    = "done"
	statusFailed  = "failed"
)

// Server is the HTTP surface over one oracle and one evaluator.
type Server struct {
	oracle    *Oracle
	evaluator Evaluator
	logger    *slog.Logger
	gatherer  prometheus.Gatherer

	mu      sync.RWMutex
	results map[string]*evaluation
}

// ServerOption configures the HTTP server.
type ServerOption func(*Server)

// WithServerLogger sets a structured logger.
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetricsGatherer mounts GET /metrics for the given registry.
func WithMetricsGatherer(g prometheus.Gatherer) ServerOption {
	return func(s *Server) {
		s.gatherer = g
	}
}

// NewHandler builds the chi router for the judge-facing API.
func NewHandler(oracle *Oracle, evaluator Evaluator, opts ...ServerOption) http.Handler {
	s := &Server{
		oracle:    oracle,
		evaluator: evaluator,
		logger:    logging.NewNop(),
		results:   make(map[string]*evaluation),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Get("/health", s.health)
	r.Get("/events", s.subscribeEvents)
	r.Post("/evaluate", s.evaluate)
	r.Get("/result/{id}", s.result)
	r.Post("/notify", s.notify)
	r.Post("/do", s.do)
	r.Post("/complete", s.complete)
	r.Post("/fail", s.fail)
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// evaluate accepts a tree document (JSON or YAML) and starts a run. The judge
// is expected to be subscribed to /events before submitting.
func (s *Server) evaluate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}
	doc, err := schema.Unmarshal(body)
	if err == nil {
		err = schema.Validate(doc)
	}
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid tree: %v", err), http.StatusBadRequest)
		s.logger.Warn("evaluate: invalid tree", "err", err)
		return
	}

	ev := &evaluation{ID: uuid.NewString(), Status: statusRunning}
	s.mu.Lock()
	s.results[ev.ID] = ev
	s.mu.Unlock()

	// Detached from the request context: the submitting POST returns
	// immediately while the judge drives the run over its own connections.
	go func() {
		text, err := s.evaluator.Evaluate(context.Background(), doc.Tree)
		s.mu.Lock()
		defer s.mu.Unlock()
		if err != nil {
			ev.Status = statusFailed
			ev.Error = err.Error()
			s.logger.Warn("evaluation failed", "id", ev.ID, "err", err)
			return
		}
		ev.Status = statusDone
		ev.Result = text
	}()

	writeJSON(w, http.StatusAccepted, ev)
}

func (s *Server) result(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.RLock()
	ev, ok := s.results[id]
	var snapshot evaluation
	if ok {
		snapshot = *ev
	}
	s.mu.RUnlock()

	if !ok {
		http.Error(w, "unknown evaluation", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) notify(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	s.oracle.events <- domain.Notification{Text: body.Text}
	w.WriteHeader(http.StatusAccepted)
}

// do blocks until the requested sub-evaluation finishes and returns its text.
func (s *Server) do(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OptionIndex int `json:"option_index"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	s.oracle.mu.Lock()
	do := s.oracle.do
	s.oracle.mu.Unlock()
	if do == nil {
		http.Error(w, "no tool bridge bound", http.StatusServiceUnavailable)
		return
	}

	text, err := do(r.Context(), body.OptionIndex)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

func (s *Server) complete(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	s.oracle.events <- domain.TurnComplete{Message: body.Message}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	s.oracle.events <- domain.SessionError{Err: fmt.Errorf("judge failure: %s", body.Error)}
	w.WriteHeader(http.StatusAccepted)
}

// subscribeEvents streams outbound judge traffic as SSE.
func (s *Server) subscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.oracle.streams.Subscribe()
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()
	s.logger.Info("judge connected to event stream")

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("judge disconnected from event stream")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("response encode failed", "err", err)
	}
}

// StreamManager tracks active SSE subscribers.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[chan<- string]struct{}
}

// NewStreamManager creates an empty manager.
func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[chan<- string]struct{}),
	}
}

// Subscribe registers a new stream and returns its channel with a cancel
// function releasing it.
func (sm *StreamManager) Subscribe() (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	sm.subscribers[ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if _, ok := sm.subscribers[ch]; ok {
			delete(sm.subscribers, ch)
			close(ch)
		}
	}
}

// Count returns the number of live subscribers.
func (sm *StreamManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers)
}

// Broadcast fans msg out to every subscriber, dropping it for slow clients
// rather than blocking the caller.
func (sm *StreamManager) Broadcast(msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	for ch := range sm.subscribers {
		select {
		case ch <- msg:
		default:
			slog.Warn("sse: client buffer full, dropping message")
		}
	}
}
