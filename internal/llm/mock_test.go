package llm

import (
	"context"
	"fmt"
	"sync"
)

// scriptedProvider returns queued errors first, then queued responses.
type scriptedProvider struct {
	name string

	mu        sync.Mutex
	responses []*Response
	errors    []error
	calls     int
}

func (m *scriptedProvider) Name() string { return m.name }

func (m *scriptedProvider) Info() Info { return Info{Provider: m.name, Model: "mock-model"} }

func (m *scriptedProvider) Complete(ctx context.Context, prompt *Prompt, opts *RequestOptions) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	if len(m.errors) > 0 {
		err := m.errors[0]
		m.errors = m.errors[1:]
		return nil, err
	}
	if len(m.responses) > 0 {
		resp := m.responses[0]
		m.responses = m.responses[1:]
		return resp, nil
	}
	return &Response{Content: fmt.Sprintf("reply %d", m.calls)}, nil
}

func (m *scriptedProvider) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
