// Package inspect serves a router's state over HTTP.
//
// Routes:
//
//	GET  /state                current snapshot
//	GET  /matches/{routeID}    one committed match
//	POST /navigate             navigate and return the committed snapshot
//	POST /invalidate           rerun every loader
//	GET  /resolve?to=&from=    build a location and match it without navigating
//	GET  /ws                   websocket stream of snapshots and navigations
//	GET  /metrics              Prometheus metrics
package inspect

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/pathway/internal/errors"
	"github.com/vango-dev/pathway/pkg/router"
)

// Server exposes a router over HTTP.
type Server struct {
	router   *router.Router
	logger   *slog.Logger
	stream   *Stream
	gatherer prometheus.Gatherer
	timeout  time.Duration

	handler     chi.Router
	unsubscribe func()
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithStream serves st at /ws and feeds it every published state.
func WithStream(st *Stream) Option {
	return func(s *Server) { s.stream = st }
}

// WithMetrics serves g at /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithNavigateTimeout bounds how long POST /navigate waits for a commit.
func WithNavigateTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

// New creates a server for r.
func New(r *router.Router, opts ...Option) *Server {
	s := &Server{
		router:  r,
		logger:  slog.Default(),
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.stream != nil {
		s.stream.current = func() Snapshot { return SnapshotOf(r.State()) }
		s.unsubscribe = r.Subscribe(s.stream.PublishState)
	}

	mux := chi.NewRouter()
	mux.Use(middleware.Recoverer)
	mux.Use(s.logRequests)

	mux.Get("/state", s.handleState)
	mux.Get("/matches/*", s.handleMatch)
	mux.Post("/navigate", s.handleNavigate)
	mux.Post("/invalidate", s.handleInvalidate)
	mux.Get("/resolve", s.handleResolve)
	if s.stream != nil {
		mux.Get("/ws", s.stream.HandleWebSocket)
	}
	if s.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	s.handler = mux
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("inspect server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if s.stream != nil {
		s.stream.Close()
	}
	return srv.Shutdown(shutdownCtx)
}

// Close stops feeding the stream.
func (s *Server) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	if s.stream != nil {
		s.stream.Close()
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("inspect request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start))
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, SnapshotOf(s.router.State()))
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "*")
	if unescaped, err := url.PathUnescape(id); err == nil {
		id = unescaped
	}
	if id != router.RootRouteID && !strings.HasPrefix(id, "/") {
		id = "/" + id
	}

	m := s.router.State().MatchByRoute(id)
	if m == nil {
		writeError(w, http.StatusNotFound, errors.New(errors.ENotFound).WithRoute(id).WithDetail("no committed match"))
		return
	}
	views := matchViews([]*router.Match{m})
	writeJSON(w, http.StatusOK, views[0])
}

// NavigateRequest is the body of POST /navigate.
type NavigateRequest struct {
	To      string            `json:"to"`
	From    string            `json:"from,omitempty"`
	Params  map[string]string `json:"params,omitempty"`
	Search  url.Values        `json:"search,omitempty"`
	Hash    string            `json:"hash,omitempty"`
	Replace bool              `json:"replace,omitempty"`
	Reload  bool              `json:"reload,omitempty"`
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	var req NavigateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	err := s.router.NavigateTo(ctx, router.To{
		To:      req.To,
		From:    req.From,
		Params:  req.Params,
		Search:  req.Search,
		Hash:    req.Hash,
		Replace: req.Replace,
		Reload:  req.Reload,
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, SnapshotOf(s.router.State()))
}

func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	if err := s.router.Invalidate(ctx); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, SnapshotOf(s.router.State()))
}

// Resolution is the body of a GET /resolve response.
type Resolution struct {
	Location LocationView    `json:"location"`
	Matches  []ResolvedRoute `json:"matches"`
	NotFound bool            `json:"notFound,omitempty"`
	Error    *ErrorView      `json:"error,omitempty"`
}

// ResolvedRoute is one route matched by GET /resolve.
type ResolvedRoute struct {
	RouteID  string            `json:"routeId"`
	Pathname string            `json:"pathname"`
	Params   map[string]string `json:"params,omitempty"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	to := router.To{To: q.Get("to"), From: q.Get("from"), Hash: q.Get("hash")}
	for key, values := range q {
		if name, ok := strings.CutPrefix(key, "param."); ok && len(values) > 0 {
			if to.Params == nil {
				to.Params = make(map[string]string)
			}
			to.Params[name] = values[0]
		}
	}

	loc, err := s.router.BuildLocation(to)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	res := Resolution{Location: locationView(loc)}
	matches, err := s.router.Tree().Match(loc.Pathname)
	for _, m := range matches {
		res.Matches = append(res.Matches, ResolvedRoute{
			RouteID:  m.Route.ID(),
			Pathname: m.Pathname,
			Params:   m.Params,
		})
	}
	if err != nil {
		res.NotFound = router.IsNotFound(err)
		res.Error = errorView(err)
	}
	writeJSON(w, http.StatusOK, res)
}

// statusFor maps router errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.HasCode(err, errors.EInvalidPath),
		errors.HasCode(err, errors.EMissingParam),
		errors.HasCode(err, errors.EInvalidSearch):
		return http.StatusBadRequest
	case errors.Is(err, router.ErrSuperseded), errors.Is(err, router.ErrAborted):
		return http.StatusConflict
	case errors.Is(err, router.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, router.ErrTooManyRedirects):
		return http.StatusLoopDetected
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, struct {
		Error *ErrorView `json:"error"`
	}{errorView(err)})
}
