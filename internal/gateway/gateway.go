// Package gateway is the HTTP front end: login, the chat page, and the JSON
// API that drives per-session agents and direct node commands.
package gateway

import (
	"errors"
	"html/template"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/efebarandurmaz/minichat/internal/agent"
	"github.com/efebarandurmaz/minichat/internal/llm"
	"github.com/efebarandurmaz/minichat/internal/observability"
	"github.com/efebarandurmaz/minichat/internal/server"
	"github.com/efebarandurmaz/minichat/internal/session"
)

const (
	DefaultMaxInputLength = 2000
	DefaultMaxBodyBytes   = 64 << 10
	DefaultFrameAncestors = "'self'"
)

// Config holds the gateway policies.
type Config struct {
	// PasswordHash is the bcrypt hash of the shared login password.
	PasswordHash []byte
	// SessionSecret keys the cookie signature.
	SessionSecret []byte
	SecureCookie  bool

	// MaxInputLength bounds message and command length in runes. 0 disables it.
	MaxInputLength int
	MaxBodyBytes   int64

	// RateLimit requests per RateWindow per client IP. 0 disables limiting.
	RateLimit  int
	RateWindow time.Duration

	FrameAncestors string
}

// Server serves the chat UI and API.
type Server struct {
	cfg      Config
	sessions *session.Store
	executor agent.CommandExecutor
	info     llm.Info

	limiter *RateLimiter
	health  *server.HealthServer
	metrics *observability.Metrics
	audit   *observability.AuditLogger
	logger  *zap.Logger
	page    *template.Template

	handler http.Handler
}

// Option configures a Server.
type Option func(*Server)

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetrics records gateway counters in m and serves them on /metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

func WithAudit(a *observability.AuditLogger) Option {
	return func(s *Server) { s.audit = a }
}

// WithHealth mounts the probe endpoints of h.
func WithHealth(h *server.HealthServer) Option {
	return func(s *Server) { s.health = h }
}

// WithRateLimiter replaces the limiter built from Config.
func WithRateLimiter(l *RateLimiter) Option {
	return func(s *Server) { s.limiter = l }
}

// New builds the gateway. executor runs direct commands; sessions own the
// agents used for chat; info is reported by /api/provider.
func New(cfg Config, sessions *session.Store, executor agent.CommandExecutor, info llm.Info, opts ...Option) (*Server, error) {
	if len(cfg.PasswordHash) == 0 {
		return nil, errors.New("gateway: password hash required")
	}
	if len(cfg.SessionSecret) == 0 {
		return nil, errors.New("gateway: session secret required")
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.FrameAncestors == "" {
		cfg.FrameAncestors = DefaultFrameAncestors
	}

	page, err := template.ParseFS(staticFS, "static/chat.html")
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:      cfg,
		sessions: sessions,
		executor: executor,
		info:     info,
		logger:   zap.NewNop(),
		page:     page,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.limiter == nil {
		s.limiter = NewRateLimiter(cfg.RateLimit, cfg.RateWindow)
	}

	s.handler = s.routes()
	return s, nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.Handle("POST /login", s.limited(http.HandlerFunc(s.handleLogin)))
	mux.HandleFunc("POST /logout", s.handleLogout)

	mux.Handle("POST /api/chat", s.api(s.handleChat))
	mux.Handle("POST /api/reset", s.api(s.handleReset))
	mux.Handle("POST /api/command", s.api(s.handleCommand))
	mux.Handle("GET /api/provider", s.api(s.handleProvider))

	if s.health != nil {
		s.health.Mount(mux)
	}
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	var h http.Handler = mux
	h = securityHeaders(s.cfg.FrameAncestors, h)
	h = s.recoverer(h)
	h = s.requestLogger(h)
	return otelhttp.NewHandler(h, "minichat",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

// api wraps an authenticated JSON endpoint.
func (s *Server) api(h sessionHandler) http.Handler {
	return s.limited(s.authenticated(h))
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// HTTPServer returns a server for addr with timeouts suited to long LLM
// turns. There is no write timeout; chat turns are bounded by the LLM and
// executor timeouts.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
		ErrorLog:          zap.NewStdLog(s.logger),
	}
}
