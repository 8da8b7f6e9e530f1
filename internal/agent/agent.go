// Package agent holds the per-session conversation with the LLM and turns
// command mentions in its replies into node command executions.
package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/efebarandurmaz/minichat/internal/llm"
	"github.com/efebarandurmaz/minichat/internal/node"
	"github.com/efebarandurmaz/minichat/internal/observability"
)

// MaxHistory is the number of turns kept after each completed chat.
const MaxHistory = 20

// CommandExecutor runs a node command. *node.Executor implements it.
type CommandExecutor interface {
	Execute(ctx context.Context, command string) node.Result
}

// Agent owns one conversation. Chat calls on the same Agent are serialised.
type Agent struct {
	mu      sync.Mutex
	history []llm.Message

	provider llm.Provider
	executor CommandExecutor
	reqOpts  *llm.RequestOptions
	logger   *zap.Logger
	metrics  *observability.Metrics
}

// Option configures an Agent.
type Option func(*Agent)

func WithLogger(l *zap.Logger) Option {
	return func(a *Agent) { a.logger = l }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(a *Agent) { a.metrics = m }
}

// WithRequestOptions sets the sampling options sent on every LLM call.
func WithRequestOptions(o *llm.RequestOptions) Option {
	return func(a *Agent) { a.reqOpts = o }
}

// New creates an Agent with an empty history.
func New(provider llm.Provider, executor CommandExecutor, opts ...Option) *Agent {
	a := &Agent{
		provider: provider,
		executor: executor,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Chat runs one conversation turn and returns the reply shown to the user.
//
// When the first reply quotes node commands, they are executed in order and
// their results are sent back to the LLM, whose second reply is returned.
// If the first LLM call fails the history is restored to its state before
// the turn. If the second one fails, the user message, the reply that named
// the commands and their results stay in the history. Either way the error
// is returned.
func (a *Agent) Chat(ctx context.Context, message string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	start := time.Now()
	ctx, span := observability.StartChatSpan(ctx, observability.SessionIDFrom(ctx))
	defer span.End()

	reply, commands, err := a.turn(ctx, message)
	a.metrics.RecordChatTurn(time.Since(start), err)
	if err != nil {
		observability.RecordError(span, err)
		a.logger.Warn("chat turn failed", zap.Error(err), zap.Int("commands", commands))
		return "", err
	}

	a.logger.Info("chat turn",
		zap.String("session", observability.SessionIDFrom(ctx)),
		zap.Int("commands", commands),
		zap.Int("history", len(a.history)),
		zap.Duration("duration", time.Since(start)),
	)
	return reply, nil
}

func (a *Agent) turn(ctx context.Context, message string) (string, int, error) {
	checkpoint := len(a.history)
	a.history = append(a.history, llm.Message{Role: llm.RoleUser, Content: message})

	reply, err := a.complete(ctx)
	if err != nil {
		a.history = a.history[:checkpoint]
		return "", 0, fmt.Errorf("llm chat: %w", err)
	}

	var executed []Executed
	if LooksLikeCommand(reply) {
		for _, cmd := range ExtractCommands(reply) {
			executed = append(executed, Executed{Command: cmd, Result: a.executor.Execute(ctx, cmd)})
		}
	}

	final := reply
	if len(executed) > 0 {
		a.history = append(a.history,
			llm.Message{Role: llm.RoleAssistant, Content: reply},
			llm.Message{Role: llm.RoleUser, Content: RelayMessage(executed)},
		)
		final, err = a.complete(ctx)
		if err != nil {
			// The commands already ran; keep the record of them.
			a.trim()
			return "", len(executed), fmt.Errorf("llm chat: %w", err)
		}
	}

	a.history = append(a.history, llm.Message{Role: llm.RoleAssistant, Content: final})
	a.trim()
	return final, len(executed), nil
}

func (a *Agent) trim() {
	if len(a.history) > MaxHistory {
		a.history = append([]llm.Message(nil), a.history[len(a.history)-MaxHistory:]...)
	}
}

func (a *Agent) complete(ctx context.Context) (string, error) {
	info := a.provider.Info()
	ctx, span := observability.StartLLMSpan(ctx, info.Provider, info.Model)
	defer span.End()

	start := time.Now()
	resp, err := a.provider.Complete(ctx, &llm.Prompt{
		SystemPrompt: SystemPrompt,
		Messages:     a.snapshot(),
	}, a.reqOpts)
	if err != nil {
		a.metrics.RecordLLMRequest(time.Since(start), 0, err)
		observability.RecordError(span, err)
		return "", err
	}

	a.metrics.RecordLLMRequest(time.Since(start), resp.InputTokens+resp.OutputTokens, nil)
	observability.RecordLLMUsage(span, resp.InputTokens, resp.OutputTokens)
	return resp.Content, nil
}

// Reset clears the conversation. It is safe to call on an empty history.
func (a *Agent) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = nil
}

// History returns a copy of the conversation, oldest turn first.
func (a *Agent) History() []llm.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshot()
}

// Info describes the LLM backing this agent.
func (a *Agent) Info() llm.Info {
	return a.provider.Info()
}

func (a *Agent) snapshot() []llm.Message {
	out := make([]llm.Message, len(a.history))
	copy(out, a.history)
	return out
}
