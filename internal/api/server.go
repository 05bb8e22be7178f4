// Package api provides a read-only REST API over the expression archive.
package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"passthru_parser/internal/passthru"
	"passthru_parser/internal/patterns"
	"passthru_parser/internal/ptexp"
	"passthru_parser/internal/review"
	"passthru_parser/internal/state"
	"passthru_parser/internal/storage"
)

// Store is the archive the server reads from. *storage.SQLiteDB implements it.
type Store interface {
	ListSets(ctx context.Context, limit, offset int) ([]storage.SetRecord, error)
	LoadSet(ctx context.Context, id uuid.UUID) (*passthru.ExpressionSet, error)
	Query(ctx context.Context, p storage.QueryParams) ([]storage.ExpressionRecord, error)
	GetStats(ctx context.Context) (*storage.ArchiveStats, error)
}

// Config holds configuration for the API server.
type Config struct {
	Port        int
	AuthEnabled bool
	APIKeys     []string // List of valid API keys.
}

// maxTraceBody bounds the segment text accepted by the trace endpoint.
const maxTraceBody = 1 << 20

// Server serves the archive and the pattern trace endpoint.
type Server struct {
	store       Store
	patterns    *patterns.Registry
	port        int
	authEnabled bool
	apiKeys     map[string]bool // Simple API key auth (when enabled).
}

// NewServer creates a new API server. reg may be nil, which disables the
// trace endpoint.
func NewServer(store Store, reg *patterns.Registry, cfg Config) *Server {
	keys := make(map[string]bool)
	for _, k := range cfg.APIKeys {
		if k != "" {
			keys[k] = true
		}
	}

	return &Server{
		store:       store,
		patterns:    reg,
		port:        cfg.Port,
		authEnabled: cfg.AuthEnabled,
		apiKeys:     keys,
	}
}

// Run starts the HTTP server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	r := chi.NewRouter()

	// Standard middleware.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))

	// CORS for browser access.
	r.Use(corsMiddleware)

	r.Mount("/api/v1", s.Router())

	// Review UI.
	ui, err := review.Handler()
	if err != nil {
		return err
	}
	r.Handle("/*", ui)

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(s.port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("ptexp API starting", "addr", "http://localhost"+srv.Addr, "auth", s.authEnabled)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Router returns the configured chi router for embedding in other servers.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	// Optional authentication.
	if s.authEnabled {
		r.Use(s.authMiddleware)
	}

	r.Get("/health", s.handleHealth)
	r.Get("/stats", s.handleStats)
	r.Get("/schema", s.handleSchema)
	r.Get("/sets", s.handleListSets)
	r.Get("/sets/{id}", s.handleGetSet)
	r.Get("/sets/{id}/ptexp", s.handleGetSetDocument)
	r.Get("/sets/{id}/lifecycle", s.handleGetSetLifecycle)
	r.Get("/expressions", s.handleQueryExpressions)
	r.Post("/trace", s.handleTrace)

	return r
}

// corsMiddleware adds CORS headers for browser access.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-API-Key")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// authMiddleware validates API key authentication.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Check X-API-Key header first.
		apiKey := r.Header.Get("X-API-Key")

		// Fall back to Authorization: Bearer <key>.
		if apiKey == "" {
			auth := r.Header.Get("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				apiKey = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		if apiKey == "" {
			writeError(w, http.StatusUnauthorized, "API key required")
			return
		}

		if !s.apiKeys[apiKey] {
			writeError(w, http.StatusForbidden, "Invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleListSets(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	sets, err := s.store.ListSets(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if sets == nil {
		sets = []storage.SetRecord{}
	}
	writeJSON(w, http.StatusOK, sets)
}

// loadSet resolves the {id} parameter. It writes the error response itself
// and returns nil when the set cannot be served.
func (s *Server) loadSet(w http.ResponseWriter, r *http.Request) *passthru.ExpressionSet {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid set id")
		return nil
	}

	set, err := s.store.LoadSet(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil
	}
	if set == nil {
		writeError(w, http.StatusNotFound, "Expression set not found")
		return nil
	}
	return set
}

func (s *Server) handleGetSet(w http.ResponseWriter, r *http.Request) {
	if set := s.loadSet(w, r); set != nil {
		writeJSON(w, http.StatusOK, set)
	}
}

func (s *Server) handleGetSetDocument(w http.ResponseWriter, r *http.Request) {
	set := s.loadSet(w, r)
	if set == nil {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(ptexp.Render(set.Expressions))
}

func (s *Server) handleGetSetLifecycle(w http.ResponseWriter, r *http.Request) {
	set := s.loadSet(w, r)
	if set == nil {
		return
	}
	issues := state.Check(set)
	if issues == nil {
		issues = []state.Issue{}
	}
	writeJSON(w, http.StatusOK, issues)
}

func (s *Server) handleQueryExpressions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p := storage.QueryParams{
		SetID:        q.Get("set"),
		MissingField: q.Get("missing"),
		FullText:     q.Get("q"),
		HasMissing:   q.Get("has_missing") == "true",
		InvalidOnly:  q.Get("invalid") == "true",
	}
	p.Limit, p.Offset = pagination(r)

	if k := q.Get("kind"); k != "" {
		kind, ok := passthru.ParseKind(k)
		if !ok {
			writeError(w, http.StatusBadRequest, "Unknown kind: "+k)
			return
		}
		p.Kind = kind.String()
	}

	records, err := s.store.Query(r.Context(), p)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []storage.ExpressionRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleTrace(w http.ResponseWriter, r *http.Request) {
	if s.patterns == nil {
		writeError(w, http.StatusNotImplemented, "Trace is not enabled")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxTraceBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Read body: "+err.Error())
		return
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		writeError(w, http.StatusBadRequest, "Segment text required")
		return
	}
	writeJSON(w, http.StatusOK, s.patterns.Trace(string(body)))
}

func pagination(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// Helper functions.

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
