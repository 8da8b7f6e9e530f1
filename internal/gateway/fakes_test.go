package gateway

import (
	"context"
	"errors"
	"sync"

	"github.com/efebarandurmaz/minichat/internal/llm"
	"github.com/efebarandurmaz/minichat/internal/node"
)

type stubProvider struct {
	mu       sync.Mutex
	reply    string
	err      error
	messages []string
}

func (p *stubProvider) Complete(_ context.Context, prompt *llm.Prompt, _ *llm.RequestOptions) (*llm.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n := len(prompt.Messages); n > 0 {
		p.messages = append(p.messages, prompt.Messages[n-1].Content)
	}
	if p.err != nil {
		return nil, p.err
	}
	return &llm.Response{Content: p.reply}, nil
}

func (p *stubProvider) Name() string   { return "stub" }
func (p *stubProvider) Info() llm.Info { return llm.Info{Provider: "stub", Model: "stub-1"} }

func (p *stubProvider) fail(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

func (p *stubProvider) lastMessage() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.messages) == 0 {
		return ""
	}
	return p.messages[len(p.messages)-1]
}

type stubExecutor struct {
	mu       sync.Mutex
	commands []string
	result   node.Result
}

func (e *stubExecutor) Execute(_ context.Context, command string) node.Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.commands = append(e.commands, command)
	return e.result
}

func (e *stubExecutor) ran() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.commands...)
}

var errUpstream = errors.New("upstream unavailable")
