// Package node runs Minima node commands through the node's command-line
// scripts and normalises their output into a Result.
package node

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/efebarandurmaz/minichat/internal/observability"
)

// Script names inside the script directory.
const (
	CLIScript       = "cli.sh"
	MxIDInfoScript  = "mxid_info.sh"
	GetMaximaScript = "get_maxima.sh"
)

const (
	// DefaultTimeout bounds every node command.
	DefaultTimeout = 30 * time.Second

	// waitDelay bounds how long Wait keeps draining output after the process
	// group was killed.
	waitDelay = 2 * time.Second
)

// Fixed failure messages.
const (
	ErrMsgTimeout         = "Command timed out"
	ErrMsgMxIDClaim       = "mxid_claim is interactive and cannot be run via chat. Use the terminal."
	ErrMsgCommandRequired = "command required"
)

// Config configures an Executor.
type Config struct {
	ScriptDir string        // directory holding cli.sh, mxid_info.sh and get_maxima.sh
	WorkDir   string        // defaults to the parent of ScriptDir
	Timeout   time.Duration // defaults to DefaultTimeout
}

// runFunc runs script with args in dir. A non-zero exit is reported through
// exitCode with a nil error; err is reserved for start failures and ctx
// expiry.
type runFunc func(ctx context.Context, dir, script string, args ...string) (stdout, stderr []byte, exitCode int, err error)

// Executor runs node commands. It is safe for concurrent use.
type Executor struct {
	scriptDir string
	workDir   string
	timeout   time.Duration
	run       runFunc

	logger  *zap.Logger
	metrics *observability.Metrics
	audit   *observability.AuditLogger
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger used for per-command log lines.
func WithLogger(l *zap.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// WithMetrics records command counts and durations in m.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// WithAudit appends every execution to the audit log.
func WithAudit(a *observability.AuditLogger) Option {
	return func(e *Executor) { e.audit = a }
}

// New creates an Executor. A relative ScriptDir is resolved against the
// current working directory.
func New(cfg Config, opts ...Option) *Executor {
	scriptDir := cfg.ScriptDir
	if scriptDir == "" {
		scriptDir = "minima"
	}
	if abs, err := filepath.Abs(scriptDir); err == nil {
		scriptDir = abs
	}
	workDir := cfg.WorkDir
	if workDir == "" {
		workDir = filepath.Dir(scriptDir)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	e := &Executor{
		scriptDir: scriptDir,
		workDir:   workDir,
		timeout:   timeout,
		run:       runScript,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ScriptDir returns the resolved script directory.
func (e *Executor) ScriptDir() string { return e.scriptDir }

// CheckScripts verifies that the node CLI entry point exists and is
// executable.
func (e *Executor) CheckScripts() error {
	path := filepath.Join(e.scriptDir, CLIScript)
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("node cli: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("node cli: %s is a directory", path)
	}
	if info.Mode().Perm()&0o111 == 0 {
		return fmt.Errorf("node cli: %s is not executable", path)
	}
	return nil
}

// Execute runs one node command and never fails: every fault is reported as
// a Result with Status false.
//
//   - "mxid_claim" is refused without running anything.
//   - "mxid_info" runs mxid_info.sh and parses its stdout as JSON.
//   - "get_maxima" runs get_maxima.sh and returns {"address": <stdout>}.
//   - Anything else runs cli.sh with the whitespace-split command as
//     arguments.
func (e *Executor) Execute(ctx context.Context, command string) Result {
	start := time.Now()
	name := commandName(command)

	ctx, span := observability.StartCommandSpan(ctx, name)
	defer span.End()

	res, timedOut := e.execute(ctx, command)
	elapsed := time.Since(start)

	observability.RecordCommandResult(span, res.Status, res.Error)
	e.metrics.RecordCommand(elapsed, res.Status, timedOut)
	e.audit.LogCommand(ctx, command, res.Status, elapsed, res.Error)

	fields := []zap.Field{
		zap.String("command", name),
		zap.Duration("duration", elapsed),
		zap.Bool("status", res.Status),
	}
	if res.Status {
		e.logger.Info("node command", fields...)
	} else {
		e.logger.Warn("node command failed", append(fields, zap.String("error", res.Error))...)
	}
	return res
}

func (e *Executor) execute(ctx context.Context, command string) (Result, bool) {
	switch command {
	case "mxid_claim":
		return Fail(ErrMsgMxIDClaim), false

	case "mxid_info":
		stdout, stderr, code, err := e.runWithTimeout(ctx, MxIDInfoScript)
		if err != nil {
			return runFailure(err)
		}
		if code != 0 {
			return Fail(firstNonEmpty(stderr, stdout)), false
		}
		var v any
		if err := json.Unmarshal(stdout, &v); err != nil {
			return Fail(fmt.Sprintf("parse mxid_info output: %v", err)), false
		}
		return OK(v), false

	case "get_maxima":
		stdout, stderr, code, err := e.runWithTimeout(ctx, GetMaximaScript)
		if err != nil {
			return runFailure(err)
		}
		if code != 0 {
			return Fail(firstNonEmpty(stderr, stdout)), false
		}
		return OK(map[string]any{"address": strings.TrimSpace(string(stdout))}), false
	}

	args := strings.Fields(command)
	if len(args) == 0 {
		return Fail(ErrMsgCommandRequired), false
	}

	stdout, stderr, code, err := e.runWithTimeout(ctx, CLIScript, args...)
	if err != nil {
		return runFailure(err)
	}
	if isJSONObject(stdout) {
		if res, perr := parseObject(stdout); perr == nil {
			return res, false
		}
	}
	if code == 0 {
		return OK(string(stdout)), false
	}
	return Fail(firstNonEmpty(stderr, stdout)), false
}

func (e *Executor) runWithTimeout(ctx context.Context, script string, args ...string) ([]byte, []byte, int, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.run(ctx, e.workDir, filepath.Join(e.scriptDir, script), args...)
}

// runFailure maps a start or timeout error to a Result. The bool reports a
// timeout.
func runFailure(err error) (Result, bool) {
	if errors.Is(err, context.DeadlineExceeded) {
		return Fail(ErrMsgTimeout), true
	}
	return Fail(err.Error()), false
}

func runScript(ctx context.Context, dir, script string, args ...string) ([]byte, []byte, int, error) {
	cmd := exec.CommandContext(ctx, script, args...)
	cmd.Dir = dir
	setProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessGroup(cmd) }
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil && ctx.Err() != nil {
		return stdout.Bytes(), stderr.Bytes(), -1, ctx.Err()
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return stdout.Bytes(), stderr.Bytes(), exitErr.ExitCode(), nil
	}
	if err != nil {
		return stdout.Bytes(), stderr.Bytes(), -1, err
	}
	return stdout.Bytes(), stderr.Bytes(), 0, nil
}

// commandName returns the first word of command, which is safe to log
// without leaking addresses or amounts.
func commandName(command string) string {
	if f := strings.Fields(command); len(f) > 0 {
		return f[0]
	}
	return ""
}

func firstNonEmpty(a, b []byte) string {
	if len(a) > 0 {
		return string(a)
	}
	return string(b)
}
