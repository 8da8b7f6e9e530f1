package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// ShutdownHandler waits for a termination signal and runs registered hooks
// in priority order.
type ShutdownHandler struct {
	mu          sync.Mutex
	hooks       []ShutdownHook
	timeout     time.Duration
	signals     []os.Signal
	logger      *zap.Logger
	trigger     chan struct{}
	triggerOnce sync.Once
	done        chan struct{}
}

// ShutdownHook is a function called during shutdown.
type ShutdownHook struct {
	Name     string
	Priority int // Lower priority runs first
	Fn       func(ctx context.Context) error
}

// ShutdownConfig configures the shutdown handler.
type ShutdownConfig struct {
	// Timeout for graceful shutdown (default: 30s)
	Timeout time.Duration
	// Signals to listen for (default: SIGTERM, SIGINT)
	Signals []os.Signal
	Logger  *zap.Logger
}

// DefaultShutdownConfig returns default configuration.
func DefaultShutdownConfig() *ShutdownConfig {
	return &ShutdownConfig{
		Timeout: 30 * time.Second,
		Signals: []os.Signal{syscall.SIGTERM, syscall.SIGINT},
	}
}

// NewShutdownHandler creates a new shutdown handler.
func NewShutdownHandler(config *ShutdownConfig) *ShutdownHandler {
	def := DefaultShutdownConfig()
	if config == nil {
		config = def
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = def.Timeout
	}
	signals := config.Signals
	if len(signals) == 0 {
		signals = def.Signals
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ShutdownHandler{
		timeout: timeout,
		signals: signals,
		logger:  logger,
		trigger: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// RegisterHook adds a shutdown hook.
func (s *ShutdownHandler) RegisterHook(name string, priority int, fn func(ctx context.Context) error) {
	s.Add(ShutdownHook{Name: name, Priority: priority, Fn: fn})
}

// Add registers a prebuilt hook.
func (s *ShutdownHandler) Add(hook ShutdownHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, hook)
	sort.SliceStable(s.hooks, func(i, j int) bool {
		return s.hooks[i].Priority < s.hooks[j].Priority
	})
}

// Shutdown triggers shutdown without a signal.
func (s *ShutdownHandler) Shutdown() {
	s.triggerOnce.Do(func() { close(s.trigger) })
}

// Done is closed once every hook has run.
func (s *ShutdownHandler) Done() <-chan struct{} {
	return s.done
}

// Run blocks until a signal arrives, Shutdown is called, or ctx ends, then
// runs the hooks. Hook failures are logged and returned joined.
func (s *ShutdownHandler) Run(ctx context.Context) error {
	sigCtx, stop := signal.NotifyContext(ctx, s.signals...)
	defer stop()

	select {
	case <-sigCtx.Done():
		if ctx.Err() == nil {
			s.logger.Info("shutdown signal received")
		}
	case <-s.trigger:
		s.logger.Info("shutdown requested")
	}
	return s.runHooks(ctx)
}

func (s *ShutdownHandler) runHooks(parent context.Context) error {
	defer close(s.done)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), s.timeout)
	defer cancel()

	s.mu.Lock()
	hooks := make([]ShutdownHook, len(s.hooks))
	copy(hooks, s.hooks)
	s.mu.Unlock()

	var errs []error
	for _, hook := range hooks {
		start := time.Now()
		if err := hook.Fn(ctx); err != nil {
			s.logger.Error("shutdown hook failed", zap.String("hook", hook.Name), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", hook.Name, err))
			continue
		}
		s.logger.Debug("shutdown hook done",
			zap.String("hook", hook.Name),
			zap.Duration("duration", time.Since(start)),
		)
	}
	return errors.Join(errs...)
}

// Common shutdown hooks

// ReadinessShutdownHook flips readiness off before anything else stops.
func ReadinessShutdownHook(health *HealthServer) ShutdownHook {
	return ShutdownHook{
		Name:     "readiness",
		Priority: 0,
		Fn: func(context.Context) error {
			health.SetReady(false)
			return nil
		},
	}
}

// HTTPServerShutdownHook creates a hook for HTTP server shutdown.
func HTTPServerShutdownHook(name string, shutdownFn func(ctx context.Context) error) ShutdownHook {
	return ShutdownHook{
		Name:     name,
		Priority: 10, // Run early to stop accepting new connections
		Fn:       shutdownFn,
	}
}

// TracingShutdownHook creates a hook for tracing provider shutdown.
func TracingShutdownHook(shutdownFn func(ctx context.Context) error) ShutdownHook {
	return ShutdownHook{
		Name:     "tracing",
		Priority: 80,
		Fn:       shutdownFn,
	}
}

// AuditLoggerShutdownHook creates a hook for audit logger shutdown.
func AuditLoggerShutdownHook(closeFn func() error) ShutdownHook {
	return ShutdownHook{
		Name:     "audit-logger",
		Priority: 95, // Run very late, to capture shutdown events
		Fn: func(context.Context) error {
			return closeFn()
		},
	}
}

// LoggerSyncShutdownHook flushes buffered log entries last.
func LoggerSyncShutdownHook(logger *zap.Logger) ShutdownHook {
	return ShutdownHook{
		Name:     "logger",
		Priority: 100,
		Fn: func(context.Context) error {
			// Sync on stderr/stdout fails with EINVAL on some platforms.
			_ = logger.Sync()
			return nil
		},
	}
}
