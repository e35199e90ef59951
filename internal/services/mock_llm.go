package services

import (
	"context"
	"sync"
)

// MockLLM is a mock implementation of LLMService for testing
type MockLLM struct {
	InitModelFunc func(ctx context.Context, modelName string) error
	CompleteFunc  func(ctx context.Context, req CompletionRequest) (string, error)

	// Track calls for testing
	InitModelCalls []string
	CompleteCalls  []CompletionRequest

	modelErrors map[string]error
	mu          sync.Mutex // protects all fields above
}

// NewMockLLM creates a new mock LLM service
func NewMockLLM() *MockLLM {
	return &MockLLM{
		InitModelCalls: make([]string, 0),
		CompleteCalls:  make([]CompletionRequest, 0),
		modelErrors:    make(map[string]error),
	}
}

// InitModel mocks model initialization
func (m *MockLLM) InitModel(ctx context.Context, modelName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.InitModelCalls = append(m.InitModelCalls, modelName)
	if m.InitModelFunc != nil {
		return m.InitModelFunc(ctx, modelName)
	}
	return nil
}

// Complete mocks a completion. Per-model errors win over CompleteFunc.
func (m *MockLLM) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	m.mu.Lock()
	m.CompleteCalls = append(m.CompleteCalls, req)
	err := m.modelErrors[req.Model]
	fn := m.CompleteFunc
	m.mu.Unlock()

	if err != nil {
		return "", err
	}
	if fn != nil {
		return fn(ctx, req)
	}
	return "Mock response", nil
}

// Reset clears all call tracking
func (m *MockLLM) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InitModelCalls = make([]string, 0)
	m.CompleteCalls = make([]CompletionRequest, 0)
}

// SetInitModelError sets up the mock to return an error on InitModel
func (m *MockLLM) SetInitModelError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InitModelFunc = func(ctx context.Context, modelName string) error {
		return err
	}
}

// SetCompleteError makes every Complete call fail
func (m *MockLLM) SetCompleteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CompleteFunc = func(ctx context.Context, req CompletionRequest) (string, error) {
		return "", err
	}
}

// SetModelError makes Complete fail only for the named model
func (m *MockLLM) SetModelError(model string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modelErrors[model] = err
}

// SetResponse makes every successful Complete call return text
func (m *MockLLM) SetResponse(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CompleteFunc = func(ctx context.Context, req CompletionRequest) (string, error) {
		return text, nil
	}
}

// GetCalls returns a copy of the call tracking data in a thread-safe way
func (m *MockLLM) GetCalls() ([]string, []CompletionRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()

	initCalls := make([]string, len(m.InitModelCalls))
	copy(initCalls, m.InitModelCalls)

	completeCalls := make([]CompletionRequest, len(m.CompleteCalls))
	copy(completeCalls, m.CompleteCalls)

	return initCalls, completeCalls
}

// CompleteCallCount returns how many completions were attempted
func (m *MockLLM) CompleteCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.CompleteCalls)
}
