// Package httpapi is the HTTP boundary in front of the scheduler: routing,
// shared-secret enforcement, body validation, outcome-to-status mapping,
// and translation to/from a vendor-compatible request shape. None of this
// is core per spec §1 — it is a thin collaborator that calls into
// scheduler.Scheduler.
package httpapi

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/dazedpro/claude-cli-proxy/log"
	"github.com/dazedpro/claude-cli-proxy/scheduler"
	"github.com/dazedpro/claude-cli-proxy/types"
)

// Server is the gateway's HTTP front-end.
type Server struct {
	sched       *scheduler.Scheduler
	logger      *log.Logger
	proxyAPIKey string
	cache       ResponseCache

	mux *http.ServeMux
}

// ResponseCache is the optional admission-time fast path described in
// SPEC_FULL.md §3: a cache hit resolves the caller without touching the
// scheduler at all. A nil ResponseCache (the default NoopCache) always
// misses.
type ResponseCache interface {
	Get(ctx context.Context, key string) (types.Response, bool)
	Set(ctx context.Context, key string, resp types.Response)
}

// NewServer builds the HTTP boundary around a Scheduler.
func NewServer(sched *scheduler.Scheduler, logger *log.Logger, proxyAPIKey string, cache ResponseCache) *Server {
	if cache == nil {
		cache = NoopCache{}
	}
	s := &Server{sched: sched, logger: logger, proxyAPIKey: proxyAPIKey, cache: cache}
	s.mux = http.NewServeMux()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.HandleFunc("POST /v1/complete", s.authenticated(s.handleComplete))
	s.mux.HandleFunc("POST /v1/messages", s.authenticated(s.handleVendorMessages))
	s.mux.HandleFunc("GET /metrics", s.handleMetrics)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// authenticated enforces the optional shared-secret check described in
// spec §4.5/§7. When proxyAPIKey is unset, authentication is skipped
// entirely — matching spec §6's "(unset)" default.
func (s *Server) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.proxyAPIKey == "" {
			next(w, r)
			return
		}
		key := r.Header.Get("X-API-Key")
		if key == "" {
			if auth := r.Header.Get("Authorization"); len(auth) > 7 && auth[:7] == "Bearer " {
				key = auth[7:]
			}
		}
		if key != s.proxyAPIKey {
			writeError(w, http.StatusUnauthorized, "unauthenticated")
			return
		}
		next(w, r)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	snap := s.sched.SnapshotMetrics()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(snap)
}

// wireRequest is the gateway's own native wire shape — effectively
// types.Request with a string priority tag instead of the internal rank.
type wireRequest struct {
	Prompt       string `json:"prompt"`
	Model        string `json:"model,omitempty"`
	SystemPrompt string `json:"systemPrompt,omitempty"`
	MaxTurns     int    `json:"maxTurns,omitempty"`
	TimeoutMs    int    `json:"timeoutMs,omitempty"`
	Priority     string `json:"priority,omitempty"`
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	var wire wireRequest
	if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
		writeError(w, http.StatusBadRequest, "invalid-request: "+err.Error())
		return
	}

	req := types.Request{
		Prompt:       wire.Prompt,
		Model:        wire.Model,
		SystemPrompt: wire.SystemPrompt,
		MaxTurns:     wire.MaxTurns,
		TimeoutMs:    wire.TimeoutMs,
		Priority:     types.ParsePriority(wire.Priority),
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid-request: "+err.Error())
		return
	}

	s.submitAndRespond(w, r.Context(), req)
}

func (s *Server) submitAndRespond(w http.ResponseWriter, ctx context.Context, req types.Request) {
	key := cacheKey(req)
	if cached, ok := s.cache.Get(ctx, key); ok {
		writeResponse(w, cached)
		return
	}

	resp := s.sched.Submit(req)
	if resp.Kind == types.KindSuccess {
		s.cache.Set(ctx, key, resp)
	}
	writeResponse(w, resp)
}

func writeResponse(w http.ResponseWriter, resp types.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Kind.HTTPStatus())
	_ = json.NewEncoder(w).Encode(resp)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.Response{Error: msg})
}

// NoopCache always misses. It is the default ResponseCache when no Redis
// URL is configured, keeping the gateway runnable standalone.
type NoopCache struct{}

func (NoopCache) Get(context.Context, string) (types.Response, bool) { return types.Response{}, false }
func (NoopCache) Set(context.Context, string, types.Response)        {}

var _ ResponseCache = NoopCache{}

// cacheKey hashes the fields that make two requests interchangeable for
// caching purposes: prompt, model, and system prompt.
func cacheKey(req types.Request) string {
	sum := sha256.Sum256([]byte(req.Model + "\x00" + req.SystemPrompt + "\x00" + req.Prompt))
	return hex.EncodeToString(sum[:])
}

// StartServer is a small convenience wrapper mirroring the teacher's
// cmd-level wiring: build an *http.Server with sane timeouts and run it
// until ctx is canceled.
func StartServer(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
