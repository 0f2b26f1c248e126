package types

import (
	"context"
	"testing"
)

// TestInterfaces verifies that our interfaces are properly structured
func TestInterfaces(t *testing.T) {
	var _ Backend = (*mockBackend)(nil)
}

// Mock implementation for testing interface compliance

type mockBackend struct{}

func (m *mockBackend) GetObject(ctx context.Context, key string, offset, size int64) ([]byte, error) {
	return nil, nil
}

func (m *mockBackend) PutObject(ctx context.Context, key string, data []byte) error {
	return nil
}

func (m *mockBackend) DeleteObject(ctx context.Context, key string) error {
	return nil
}

func (m *mockBackend) HeadObject(ctx context.Context, key string) (*ObjectInfo, error) {
	return nil, nil
}

func (m *mockBackend) GetObjects(ctx context.Context, keys []string) (map[string][]byte, error) {
	return nil, nil
}

func (m *mockBackend) PutObjects(ctx context.Context, objects map[string][]byte) error {
	return nil
}

func (m *mockBackend) ListObjects(ctx context.Context, prefix string, limit int) ([]ObjectInfo, error) {
	return nil, nil
}

func (m *mockBackend) HealthCheck(ctx context.Context) error {
	return nil
}
