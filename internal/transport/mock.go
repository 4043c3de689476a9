package transport

import (
	"context"
	"fmt"
	"os"
	"sync"
)

// MockTransport simulates a transport layer for testing.
type MockTransport struct {
	mu        sync.Mutex
	Responses map[string]string // Command -> Output
	Errors    map[string]error  // Command -> Error
	Files     map[string][]byte // Remote path -> Content
	Uploads   map[string]string // Local path -> Remote path
}

func NewMockTransport() *MockTransport {
	return &MockTransport{
		Responses: make(map[string]string),
		Errors:    make(map[string]error),
		Files:     make(map[string][]byte),
		Uploads:   make(map[string]string),
	}
}

// AddResponse registers a canned response for a command.
func (m *MockTransport) AddResponse(cmd, output string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses[cmd] = output
}

// AddError registers a canned error for a command.
func (m *MockTransport) AddError(cmd string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Errors[cmd] = err
}

func (m *MockTransport) Execute(ctx context.Context, cmd string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.Errors[cmd]; ok {
		return "", err
	}
	if output, ok := m.Responses[cmd]; ok {
		return output, nil
	}
	return "", fmt.Errorf("mock: command not mocked: %s", cmd)
}

func (m *MockTransport) Upload(ctx context.Context, localPath, remotePath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Uploads[localPath] = remotePath
	return nil
}

func (m *MockTransport) ReadFile(ctx context.Context, path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if data, ok := m.Files[path]; ok {
		return data, nil
	}
	return nil, os.ErrNotExist
}

func (m *MockTransport) Close() error {
	return nil
}
