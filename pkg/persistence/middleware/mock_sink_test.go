package middleware_test

import (
	"context"
	"sync"
)

type stored struct {
	body        []byte
	contentType string
}

// MockSink keeps blobs in memory.
type MockSink struct {
	mu    sync.Mutex
	blobs map[string]stored
}

func NewMockSink() *MockSink {
	return &MockSink{blobs: make(map[string]stored)}
}

func (m *MockSink) Put(ctx context.Context, key string, body []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = stored{body: append([]byte(nil), body...), contentType: contentType}
	return nil
}

func (m *MockSink) Get(key string) ([]byte, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blobs[key]
	return b.body, b.contentType, ok
}
