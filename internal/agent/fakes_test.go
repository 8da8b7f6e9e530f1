package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/efebarandurmaz/minichat/internal/llm"
	"github.com/efebarandurmaz/minichat/internal/node"
)

// reply is one scripted provider outcome.
type reply struct {
	content string
	err     error
}

type fakeProvider struct {
	mu      sync.Mutex
	replies []reply
	prompts []llm.Prompt
}

func (p *fakeProvider) Complete(ctx context.Context, prompt *llm.Prompt, opts *llm.RequestOptions) (*llm.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	msgs := make([]llm.Message, len(prompt.Messages))
	copy(msgs, prompt.Messages)
	p.prompts = append(p.prompts, llm.Prompt{SystemPrompt: prompt.SystemPrompt, Messages: msgs})

	if len(p.replies) == 0 {
		return nil, fmt.Errorf("no scripted reply")
	}
	r := p.replies[0]
	p.replies = p.replies[1:]
	if r.err != nil {
		return nil, r.err
	}
	return &llm.Response{Content: r.content, InputTokens: 10, OutputTokens: 5}, nil
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Info() llm.Info { return llm.Info{Provider: "fake", Model: "fake-1"} }

func (p *fakeProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.prompts)
}

type fakeExecutor struct {
	mu       sync.Mutex
	commands []string
	results  map[string]node.Result
}

func (e *fakeExecutor) Execute(ctx context.Context, command string) node.Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.commands = append(e.commands, command)
	if r, ok := e.results[command]; ok {
		return r
	}
	return node.OK(map[string]any{"ran": command})
}
