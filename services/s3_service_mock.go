package services

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// MockObjectStorage is an in-memory ObjectStorage for testing
type MockObjectStorage struct {
	objects map[string][]byte
	mu      sync.RWMutex
}

// NewMockObjectStorage creates an empty mock storage
func NewMockObjectStorage() *MockObjectStorage {
	return &MockObjectStorage{
		objects: make(map[string][]byte),
	}
}

// PutObject stores the body in memory
func (m *MockObjectStorage) PutObject(ctx context.Context, key string, body io.Reader, contentType string) error {
	content, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("failed to read body: %w", err)
	}

	m.mu.Lock()
	m.objects[key] = content
	m.mu.Unlock()
	return nil
}

// PresignGet returns a fake presigned URL for an existing object
func (m *MockObjectStorage) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if !m.Exists(key) {
		return "", fmt.Errorf("object not found in mock storage: %s", key)
	}
	return fmt.Sprintf("https://test-bucket.s3.us-east-1.amazonaws.com/%s?expires=%d", key, int(ttl.Seconds())), nil
}

// DeleteObject removes the object
func (m *MockObjectStorage) DeleteObject(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

// Exists reports whether key is stored
func (m *MockObjectStorage) Exists(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[key]
	return ok
}

// Keys returns every stored key
func (m *MockObjectStorage) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	return keys
}
