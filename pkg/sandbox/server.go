package sandbox

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Ratio1/dropbox_sdk_go/pkg/dropbox"
)

// DefaultPageSize is the number of entries per list_folder page.
const DefaultPageSize = 100

// Option configures a Server.
type Option func(*Server)

// WithStore serves an existing store.
func WithStore(store *Store) Option {
	return func(s *Server) {
		if store != nil {
			s.store = store
		}
	}
}

// WithLogger sets the logger; the server names it "sandbox".
func WithLogger(logger hclog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPageSize bounds list_folder pages. Values below one disable paging.
func WithPageSize(n int) Option {
	return func(s *Server) {
		s.pageSize = n
	}
}

// WithToken makes the server accept only this bearer token. By default any
// non-empty token is accepted, and oauth2/token hands out random ones.
func WithToken(token string) Option {
	return func(s *Server) {
		s.token = token
	}
}

// WithFailure enables fault injection.
func WithFailure(cfg FailureConfig) Option {
	return func(s *Server) {
		s.failure = cfg
	}
}

// WithLatency delays every API request.
func WithLatency(d time.Duration) Option {
	return func(s *Server) {
		s.latency = d
	}
}

// WithRegistry registers metrics with reg and serves it at /metrics.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		if reg != nil {
			s.registry = reg
		}
	}
}

// Server is a local stand-in for the Dropbox API. The api, content and notify
// routes live under /2/, the token endpoint under /oauth2/.
type Server struct {
	store    *Store
	cursors  *cursorTable
	logger   hclog.Logger
	registry *prometheus.Registry
	metrics  *Metrics
	pageSize int
	token    string
	failure  FailureConfig
	latency  time.Duration
	router   chi.Router
}

// New constructs a Server with an empty store unless WithStore is given.
func New(opts ...Option) *Server {
	s := &Server{
		cursors:  newCursorTable(),
		logger:   hclog.NewNullLogger(),
		pageSize: DefaultPageSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = NewStore(nil)
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}
	s.logger = s.logger.Named("sandbox")
	s.metrics = NewMetrics(s.registry)
	s.router = s.routes()
	if s.failure.Enabled() {
		s.logger.Warn("failure injection enabled", "rate", s.failure.Rate, "code", s.failure.status(), "cut", s.failure.Cut)
	}
	return s
}

// Store returns the namespace being served.
func (s *Server) Store() *Store {
	return s.store
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.instrument)

	r.Get("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}).ServeHTTP)

	r.Group(func(api chi.Router) {
		api.Use(s.inject)
		api.Post("/oauth2/token", s.handleToken)
		api.Post("/2/files/list_folder/longpoll", s.handleListFolderLongpoll)

		api.Group(func(user chi.Router) {
			user.Use(s.requireAuth)
			user.Post("/2/files/list_folder", s.handleListFolder)
			user.Post("/2/files/list_folder/continue", s.handleListFolderContinue)
			user.Post("/2/files/get_metadata", s.handleGetMetadata)
			user.Post("/2/files/download", s.handleDownload)
			user.Post("/2/files/upload", s.handleUpload)
			user.Post("/2/files/create_folder_v2", s.handleCreateFolder)
			user.Post("/2/files/delete_v2", s.handleDelete)
		})
	})
	return r
}

// instrument records metrics and logs every request, including aborted ones.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			s.metrics.observeRequest(route, status)
			s.logger.Debug("request",
				"method", r.Method,
				"route", route,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}

// inject applies artificial latency and random failures.
func (s *Server) inject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.latency > 0 {
			select {
			case <-time.After(s.latency):
			case <-r.Context().Done():
				return
			}
		}
		if s.failure.shouldFail() {
			s.metrics.injected("status")
			http.Error(w, "failure injected", s.failure.status())
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(token) == "" || (s.token != "" && token != s.token) {
			writeJSONStatus(w, http.StatusUnauthorized, map[string]any{
				"error_summary": "invalid_access_token/..",
				"error":         map[string]string{".tag": "invalid_access_token"},
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Running is a Server bound to a local listener.
type Running struct {
	// URL is the server root, without a trailing slash.
	URL    string
	server *http.Server
	done   chan error
}

// Listen serves s on addr in the background. Use "127.0.0.1:0" for an
// ephemeral port.
func (s *Server) Listen(addr string) (*Running, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("sandbox: listen %s: %w", addr, err)
	}
	run := &Running{
		URL:    "http://" + ln.Addr().String(),
		server: &http.Server{Handler: s, ReadHeaderTimeout: 10 * time.Second},
		done:   make(chan error, 1),
	}
	go func() {
		err := run.server.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		run.done <- err
	}()
	s.logger.Info("listening", "url", run.URL)
	return run, nil
}

// EndpointOptions points every endpoint of a client at this server.
func (r *Running) EndpointOptions() []dropbox.Option {
	return EndpointOptions(r.URL)
}

// Shutdown stops the server, waiting for in-flight requests until ctx ends.
func (r *Running) Shutdown(ctx context.Context) error {
	if err := r.server.Shutdown(ctx); err != nil {
		return err
	}
	return <-r.done
}

// Close stops the server immediately.
func (r *Running) Close() error {
	if err := r.server.Close(); err != nil {
		return err
	}
	return <-r.done
}

// EndpointOptions returns client options that route all endpoints to a
// sandbox at baseURL.
func EndpointOptions(baseURL string) []dropbox.Option {
	base := strings.TrimSuffix(baseURL, "/")
	return []dropbox.Option{
		dropbox.WithEndpointURL(dropbox.EndpointAPI, base+"/2/"),
		dropbox.WithEndpointURL(dropbox.EndpointContent, base+"/2/"),
		dropbox.WithEndpointURL(dropbox.EndpointNotify, base+"/2/"),
		dropbox.WithEndpointURL(dropbox.EndpointOAuth2, base+"/"),
	}
}
