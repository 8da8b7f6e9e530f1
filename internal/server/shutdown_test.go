package server

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewShutdownHandler_Defaults(t *testing.T) {
	s := NewShutdownHandler(nil)
	if s.timeout != 30*time.Second {
		t.Fatalf("expected 30s timeout, got %v", s.timeout)
	}
	if len(s.signals) != 2 {
		t.Fatalf("expected 2 signals, got %d", len(s.signals))
	}

	s = NewShutdownHandler(&ShutdownConfig{Timeout: 5 * time.Second})
	if s.timeout != 5*time.Second {
		t.Fatalf("expected 5s timeout, got %v", s.timeout)
	}
	if len(s.signals) != 2 {
		t.Fatal("expected default signals when none configured")
	}
}

func runInBackground(t *testing.T, s *ShutdownHandler, ctx context.Context) <-chan error {
	t.Helper()
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()
	return errCh
}

func waitErr(t *testing.T, errCh <-chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown did not complete")
		return nil
	}
}

func TestShutdownHandler_HookOrder(t *testing.T) {
	s := NewShutdownHandler(nil)

	var mu sync.Mutex
	var order []string
	record := func(name string) func(context.Context) error {
		return func(context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}
	}

	s.RegisterHook("audit", 95, record("audit"))
	s.RegisterHook("http", 10, record("http"))
	s.RegisterHook("tracing", 80, record("tracing"))
	s.RegisterHook("http-2", 10, record("http-2"))

	errCh := runInBackground(t, s, context.Background())
	s.Shutdown()
	if err := waitErr(t, errCh); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "http,http-2,tracing,audit"
	if got := strings.Join(order, ","); got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}

	select {
	case <-s.Done():
	default:
		t.Fatal("expected Done to be closed")
	}
}

func TestShutdownHandler_ContextCancel(t *testing.T) {
	s := NewShutdownHandler(nil)
	ran := make(chan struct{}, 1)
	s.RegisterHook("hook", 1, func(ctx context.Context) error {
		if ctx.Err() != nil {
			t.Error("hooks must get a live context after parent cancellation")
		}
		ran <- struct{}{}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := runInBackground(t, s, ctx)
	cancel()

	if err := waitErr(t, errCh); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	select {
	case <-ran:
	default:
		t.Fatal("expected hook to run")
	}
}

func TestShutdownHandler_HookErrorsJoined(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	s := NewShutdownHandler(&ShutdownConfig{Logger: zap.New(core)})

	boom := errors.New("boom")
	after := false
	s.RegisterHook("failing", 1, func(context.Context) error { return boom })
	s.RegisterHook("after", 2, func(context.Context) error {
		after = true
		return nil
	})

	errCh := runInBackground(t, s, context.Background())
	s.Shutdown()
	err := waitErr(t, errCh)

	if !errors.Is(err, boom) {
		t.Fatalf("expected boom in joined error, got %v", err)
	}
	if !strings.Contains(err.Error(), "failing: boom") {
		t.Fatalf("expected hook name in error, got %v", err)
	}
	if !after {
		t.Fatal("later hooks must still run")
	}
	if logs.FilterMessage("shutdown hook failed").Len() != 1 {
		t.Fatal("expected failure to be logged")
	}
}

func TestShutdownHandler_HookDeadline(t *testing.T) {
	s := NewShutdownHandler(&ShutdownConfig{Timeout: 50 * time.Millisecond})
	s.RegisterHook("slow", 1, func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); !ok {
			t.Error("expected hook context to carry a deadline")
		}
		<-ctx.Done()
		return ctx.Err()
	})

	errCh := runInBackground(t, s, context.Background())
	s.Shutdown()
	if err := waitErr(t, errCh); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestShutdownHandler_ShutdownIdempotent(t *testing.T) {
	s := NewShutdownHandler(nil)
	s.Shutdown()
	s.Shutdown()
	if err := waitErr(t, runInBackground(t, s, context.Background())); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCommonHooks(t *testing.T) {
	health := NewHealthServer(nil)
	health.SetReady(true)

	readiness := ReadinessShutdownHook(health)
	if err := readiness.Fn(context.Background()); err != nil {
		t.Fatal(err)
	}
	if health.ready {
		t.Fatal("expected readiness hook to clear ready")
	}

	called := false
	httpHook := HTTPServerShutdownHook("gateway", func(context.Context) error {
		called = true
		return nil
	})
	if httpHook.Name != "gateway" || httpHook.Priority != 10 {
		t.Fatalf("unexpected hook %+v", httpHook)
	}
	httpHook.Fn(context.Background())
	if !called {
		t.Fatal("expected http shutdown fn to be called")
	}

	closeErr := errors.New("close failed")
	audit := AuditLoggerShutdownHook(func() error { return closeErr })
	if audit.Priority <= TracingShutdownHook(nil).Priority {
		t.Fatal("audit log must close after tracing")
	}
	if err := audit.Fn(context.Background()); !errors.Is(err, closeErr) {
		t.Fatalf("expected close error, got %v", err)
	}

	if LoggerSyncShutdownHook(zap.NewNop()).Priority <= audit.Priority {
		t.Fatal("logger sync must run last")
	}
}
