package model

import (
	"context"
	"sync"
)

// MockModel is a lightweight in-memory Model useful for tests. Responses are
// consumed from a scripted queue in order; once the queue is exhausted every
// call returns the fallback text response.
type MockModel struct {
	mu       sync.Mutex
	info     Info
	queue    []mockTurn
	fallback string
	calls    []Request
}

type mockTurn struct {
	resp *Response
	err  error
}

// NewMockModel constructs a MockModel with tool support enabled.
func NewMockModel(name string) *MockModel {
	return &MockModel{
		info:     Info{Name: name, Provider: "mock", SupportsTools: true},
		fallback: "ok",
	}
}

// Enqueue appends a scripted response to the queue.
func (m *MockModel) Enqueue(resp Response) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, mockTurn{resp: &resp})
	return m
}

// EnqueueError appends a scripted failure to the queue.
func (m *MockModel) EnqueueError(err error) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, mockTurn{err: err})
	return m
}

// SetFallback sets the text returned once the scripted queue is exhausted.
func (m *MockModel) SetFallback(text string) { m.mu.Lock(); m.fallback = text; m.mu.Unlock() }

// Calls returns a copy of every request the mock has seen, in order.
func (m *MockModel) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]Request, len(m.calls))
	copy(calls, m.calls)
	return calls
}

// CallCount returns the number of Complete invocations.
func (m *MockModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Complete implements Model.
func (m *MockModel) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, req)

	if len(m.queue) > 0 {
		turn := m.queue[0]
		m.queue = m.queue[1:]
		if turn.err != nil {
			return nil, turn.err
		}
		return turn.resp, nil
	}

	return &Response{Content: m.fallback, FinishReason: "stop"}, nil
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }
