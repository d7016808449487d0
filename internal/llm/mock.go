package llm

import (
	"context"
	"fmt"
	"sync"
)

// MockProvider is a scriptable Provider for tests. CompleteFunc wins over
// Responses; Responses are returned in order and the last one repeats.
type MockProvider struct {
	CompleteFunc func(ctx context.Context, req Request) (string, error)
	Responses    []string

	// Track calls for testing
	Calls []Request

	err error
	mu  sync.Mutex // protects all fields above
}

func NewMockProvider(responses ...string) *MockProvider {
	return &MockProvider{
		Responses: responses,
		Calls:     make([]Request, 0),
	}
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) Complete(ctx context.Context, req Request) (string, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	n := len(m.Calls)
	fn := m.CompleteFunc
	err := m.err
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Responses) == 0 {
		return "", fmt.Errorf("mock provider has no scripted response")
	}
	i := n - 1
	if i >= len(m.Responses) {
		i = len(m.Responses) - 1
	}
	return m.Responses[i], nil
}

// SetError makes every call fail with err.
func (m *MockProvider) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// CallCount returns the number of Complete calls.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// LastCall returns the most recent request.
func (m *MockProvider) LastCall() Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Calls) == 0 {
		return Request{}
	}
	return m.Calls[len(m.Calls)-1]
}

// Reset clears calls, responses and errors.
func (m *MockProvider) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = make([]Request, 0)
	m.Responses = nil
	m.CompleteFunc = nil
	m.err = nil
}
