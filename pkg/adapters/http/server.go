package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/aretw0/mnb/internal/logging"
	"github.com/aretw0/mnb/pkg/codec"
	"github.com/aretw0/mnb/pkg/domain"
	"github.com/getkin/kin-openapi/routers"
	"github.com/go-chi/chi/v5"
)

// DefaultMaxBodySize caps request bodies.
const DefaultMaxBodySize = 32 << 20

// Engine is the notebook service exposed over HTTP.
type Engine interface {
	List(ctx context.Context) ([]string, error)
	Get(ctx context.Context, name string) (domain.Notebook, error)
	Put(ctx context.Context, name string, nb domain.Notebook) error
	Delete(ctx context.Context, name string) error
	Execute(ctx context.Context, name string, cells []int) ([]domain.CellExecution, error)
	Export(ctx context.Context, name string, w io.Writer) error
	History(ctx context.Context, name string, limit int) ([]domain.JournalEntry, error)
}

// Server serves the notebook API.
type Server struct {
	Engine  Engine
	Streams *StreamManager

	router  routers.Router
	metrics http.Handler
	version string
	maxBody int64
	logger  *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger configures the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithStreams shares a StreamManager whose Hooks feed the engine's kernel.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) {
		s.Streams = sm
	}
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithVersion sets the version reported by /health.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// WithMaxBodySize caps request bodies at n bytes. Larger bodies get 413.
func WithMaxBodySize(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBody = n
		}
	}
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) (http.Handler, error) {
	_, router, err := loadRouter()
	if err != nil {
		return nil, err
	}

	s := &Server{
		Engine:  engine,
		router:  router,
		version: "dev",
		maxBody: DefaultMaxBodySize,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.Streams == nil {
		s.Streams = NewStreamManager(s.logger)
	}

	r := chi.NewRouter()
	r.Use(enableCORS)
	r.Use(s.limitBody)
	r.Use(s.validateRequests)

	r.Get("/health", s.GetHealth)
	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		_, _ = w.Write(rawSpec)
	})
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Route("/notebooks", func(r chi.Router) {
		r.Get("/", s.ListNotebooks)
		r.Route("/{name}", func(r chi.Router) {
			r.Get("/", s.GetNotebook)
			r.Put("/", s.PutNotebook)
			r.Delete("/", s.DeleteNotebook)
			r.Post("/execute", s.ExecuteNotebook)
			r.Get("/export", s.ExportNotebook)
			r.Get("/history", s.NotebookHistory)
			r.Get("/events", s.SubscribeEvents)
		})
	})

	return r, nil
}

func (s *Server) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
		}
		next.ServeHTTP(w, r)
	})
}

// tooLarge reports whether err comes from a body over the size limit.
func tooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotebookNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrCellIndexOutOfRange),
		errors.Is(err, domain.ErrNotCodeCell),
		errors.Is(err, domain.ErrMalformedNotebook),
		errors.Is(err, domain.ErrUnknownCellKind):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	if status >= 500 {
		s.logger.Error(op+" failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": s.version})
}

// ListNotebooks handles GET /notebooks.
func (s *Server) ListNotebooks(w http.ResponseWriter, r *http.Request) {
	names, err := s.Engine.List(r.Context())
	if err != nil {
		s.fail(w, r, "List", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"notebooks": names})
}

// GetNotebook handles GET /notebooks/{name}.
func (s *Server) GetNotebook(w http.ResponseWriter, r *http.Request) {
	nb, err := s.Engine.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.fail(w, r, "Get", err)
		return
	}
	data, err := codec.Serialize(nb)
	if err != nil {
		s.fail(w, r, "Get", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

// PutNotebook handles PUT /notebooks/{name}. The body is the persisted notebook format.
func (s *Server) PutNotebook(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		if tooLarge(err) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: fmt.Sprintf("notebook exceeds %d bytes", s.maxBody)})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "failed to read body"})
		return
	}
	nb, err := codec.Decode(data)
	if err != nil {
		s.fail(w, r, "Put", err)
		return
	}
	if err := s.Engine.Put(r.Context(), chi.URLParam(r, "name"), nb); err != nil {
		s.fail(w, r, "Put", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteNotebook handles DELETE /notebooks/{name}.
func (s *Server) DeleteNotebook(w http.ResponseWriter, r *http.Request) {
	if err := s.Engine.Delete(r.Context(), chi.URLParam(r, "name")); err != nil {
		s.fail(w, r, "Delete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExecuteRequest is the body of POST /notebooks/{name}/execute.
// An empty cell list runs every Code cell.
type ExecuteRequest struct {
	Cells []int `json:"cells,omitempty"`
}

// ExecuteResponse is returned by POST /notebooks/{name}/execute.
type ExecuteResponse struct {
	Executions []domain.CellExecution `json:"executions"`
}

// ExecuteNotebook handles POST /notebooks/{name}/execute.
func (s *Server) ExecuteNotebook(w http.ResponseWriter, r *http.Request) {
	var body ExecuteRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
			return
		}
	}

	execs, err := s.Engine.Execute(r.Context(), chi.URLParam(r, "name"), body.Cells)
	if err != nil {
		s.fail(w, r, "Execute", err)
		return
	}
	if execs == nil {
		execs = []domain.CellExecution{}
	}
	writeJSON(w, http.StatusOK, ExecuteResponse{Executions: execs})
}

// ExportNotebook handles GET /notebooks/{name}/export.
func (s *Server) ExportNotebook(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var buf bytes.Buffer
	if err := s.Engine.Export(r.Context(), name, &buf); err != nil {
		s.fail(w, r, "Export", err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".synth"))
	_, _ = w.Write(buf.Bytes())
}

// NotebookHistory handles GET /notebooks/{name}/history.
func (s *Server) NotebookHistory(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	entries, err := s.Engine.History(r.Context(), chi.URLParam(r, "name"), limit)
	if err != nil {
		s.fail(w, r, "History", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]domain.JournalEntry{"entries": entries})
}

// SubscribeEvents handles GET /notebooks/{name}/events (SSE).
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	name := chi.URLParam(r, "name")
	ch, cancel := s.Streams.Subscribe(name)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()
	s.logger.Info("SSE: Subscribed", "notebook", name)

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE: Client disconnected", "notebook", name)
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
