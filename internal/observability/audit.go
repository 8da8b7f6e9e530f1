package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// AuditEventType categorizes audit events.
type AuditEventType string

const (
	AuditEventLoginSuccess AuditEventType = "login.success"
	AuditEventLoginFailure AuditEventType = "login.failure"
	AuditEventLogout       AuditEventType = "logout"
	AuditEventCommand      AuditEventType = "command.execute"
	AuditEventCommandDeny  AuditEventType = "command.denied"
	AuditEventChatReset    AuditEventType = "chat.reset"
	AuditEventChatError    AuditEventType = "chat.error"
)

// AuditEvent represents a single audit log entry.
type AuditEvent struct {
	Timestamp   time.Time      `json:"timestamp"`
	EventType   AuditEventType `json:"event_type"`
	Instance    string         `json:"instance"`
	SessionID   string         `json:"session_id,omitempty"`
	ClientIP    string         `json:"client_ip,omitempty"`
	Success     bool           `json:"success"`
	DurationMS  int64          `json:"duration_ms,omitempty"`
	Message     string         `json:"message,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
	ErrorDetail string         `json:"error_detail,omitempty"`
}

// AuditLogger writes audit events as JSON lines. A nil *AuditLogger is a
// valid no-op logger.
type AuditLogger struct {
	mu       sync.Mutex
	writer   io.Writer
	instance string
	enabled  bool
}

// AuditConfig configures the audit logger.
type AuditConfig struct {
	Enabled    bool
	OutputPath string // File path or "stdout"/"stderr"
	Instance   string // identifies this process in the log; generated when empty
}

// DefaultAuditConfig returns default audit configuration.
func DefaultAuditConfig() *AuditConfig {
	return &AuditConfig{
		Enabled:    true,
		OutputPath: "stdout",
	}
}

// NewAuditLogger creates a new audit logger.
func NewAuditLogger(config *AuditConfig) (*AuditLogger, error) {
	if config == nil {
		config = DefaultAuditConfig()
	}

	var writer io.Writer
	switch config.OutputPath {
	case "stdout", "":
		writer = os.Stdout
	case "stderr":
		writer = os.Stderr
	default:
		f, err := os.OpenFile(config.OutputPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			return nil, fmt.Errorf("open audit log: %w", err)
		}
		writer = f
	}

	instance := config.Instance
	if instance == "" {
		instance = fmt.Sprintf("minichat-%d", time.Now().UnixNano())
	}

	return &AuditLogger{
		writer:   writer,
		instance: instance,
		enabled:  config.Enabled,
	}, nil
}

// Log writes an audit event.
func (l *AuditLogger) Log(event *AuditEvent) error {
	if l == nil || !l.enabled {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Instance == "" {
		event.Instance = l.instance
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	_, err = fmt.Fprintf(l.writer, "%s\n", data)
	return err
}

// LogLogin logs a login attempt.
func (l *AuditLogger) LogLogin(ctx context.Context, sessionID, clientIP string, success bool) {
	event := &AuditEvent{
		EventType: AuditEventLoginSuccess,
		SessionID: sessionID,
		ClientIP:  clientIP,
		Success:   success,
		Message:   "login",
	}
	if !success {
		event.EventType = AuditEventLoginFailure
		event.Message = "invalid password"
	}
	l.Log(event)
}

// LogLogout logs a session being closed by the user.
func (l *AuditLogger) LogLogout(ctx context.Context, sessionID, clientIP string) {
	l.Log(&AuditEvent{
		EventType: AuditEventLogout,
		SessionID: sessionID,
		ClientIP:  clientIP,
		Success:   true,
	})
}

// LogCommand logs one node command execution. The session id is taken from
// ctx when the caller attached one with WithSessionID.
func (l *AuditLogger) LogCommand(ctx context.Context, command string, success bool, duration time.Duration, errMsg string) {
	l.Log(&AuditEvent{
		EventType:   AuditEventCommand,
		SessionID:   SessionIDFrom(ctx),
		Success:     success,
		DurationMS:  duration.Milliseconds(),
		Message:     command,
		ErrorDetail: errMsg,
	})
}

// LogCommandDenied logs a direct command rejected by the allow-list.
func (l *AuditLogger) LogCommandDenied(ctx context.Context, command, clientIP string) {
	l.Log(&AuditEvent{
		EventType: AuditEventCommandDeny,
		SessionID: SessionIDFrom(ctx),
		ClientIP:  clientIP,
		Success:   false,
		Message:   command,
	})
}

// LogReset logs a conversation reset.
func (l *AuditLogger) LogReset(ctx context.Context) {
	l.Log(&AuditEvent{
		EventType: AuditEventChatReset,
		SessionID: SessionIDFrom(ctx),
		Success:   true,
	})
}

// LogChatError logs a chat turn that failed at the LLM.
func (l *AuditLogger) LogChatError(ctx context.Context, provider, model string, err error) {
	l.Log(&AuditEvent{
		EventType:   AuditEventChatError,
		SessionID:   SessionIDFrom(ctx),
		Success:     false,
		ErrorDetail: err.Error(),
		Details: map[string]any{
			"provider": provider,
			"model":    model,
		},
	})
}

// Close closes the audit logger (if using a file).
func (l *AuditLogger) Close() error {
	if l == nil {
		return nil
	}
	if closer, ok := l.writer.(io.Closer); ok {
		if closer != os.Stdout && closer != os.Stderr {
			return closer.Close()
		}
	}
	return nil
}

type sessionKey struct{}

// WithSessionID attaches a session id to ctx for audit and log correlation.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionKey{}, id)
}

// SessionIDFrom returns the session id stored in ctx, or "".
func SessionIDFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}
