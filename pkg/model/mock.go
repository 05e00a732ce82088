package model

import (
	"context"
	"sync"
)

// MockClient implements Client with a caller-supplied function. Tests and
// dry runs use it to script completions without touching a provider.
type MockClient struct {
	fn func(Request) (Response, error)

	mu    sync.Mutex
	calls []Request
}

// NewMock creates a mock whose completions come from fn.
func NewMock(fn func(Request) (Response, error)) *MockClient {
	return &MockClient{fn: fn}
}

// NewStaticMock creates a mock that answers every request with text.
func NewStaticMock(text string) *MockClient {
	return NewMock(func(Request) (Response, error) {
		return Response{Text: text, Tokens: len(text)}, nil
	})
}

// Name returns "mock".
func (m *MockClient) Name() string {
	return "mock"
}

// Complete records the request and delegates to the scripted function.
func (m *MockClient) Complete(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()

	return m.fn(req)
}

// Calls returns a copy of every request seen so far.
func (m *MockClient) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.calls))
	copy(out, m.calls)
	return out
}
