package llm

import (
	"context"
	"fmt"
	"sync"
)

// MockGenerator is a deterministic Generator for tests and keyless setups.
// It records every call and replies with Response, or describes the request
// when Response is empty.
type MockGenerator struct {
	Response string
	Err      error

	mu           sync.Mutex
	calls        int
	lastQuestion string
	lastContexts []string
}

// GenerateAnswer records the call and returns the configured response or
// error.
func (m *MockGenerator) GenerateAnswer(ctx context.Context, question string, contexts []string) (string, error) {
	m.mu.Lock()
	m.calls++
	m.lastQuestion = question
	m.lastContexts = append([]string(nil), contexts...)
	m.mu.Unlock()

	if m.Err != nil {
		return "", m.Err
	}
	if m.Response != "" {
		return m.Response, nil
	}
	return fmt.Sprintf("mock answer to %q from %d context chunks", question, len(contexts)), nil
}

// Calls returns how many times GenerateAnswer ran.
func (m *MockGenerator) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastQuestion returns the question of the most recent call.
func (m *MockGenerator) LastQuestion() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastQuestion
}

// LastContexts returns the context chunks of the most recent call.
func (m *MockGenerator) LastContexts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.lastContexts...)
}
