package storage

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockBackend is a mock implementation of the Backend interface for testing.
type MockBackend struct {
	mock.Mock
}

// Read is the mock implementation of the Read method.
func (m *MockBackend) Read(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1) //nolint:wrapcheck
}

// Write is the mock implementation of the Write method.
func (m *MockBackend) Write(ctx context.Context, data []byte) error {
	args := m.Called(ctx, data)
	return args.Error(0) //nolint:wrapcheck
}

// Location is the mock implementation of the Location method.
func (m *MockBackend) Location() string {
	return "mock://state"
}
