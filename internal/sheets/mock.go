package sheets

import (
	"context"
	"sync"

	"github.com/facturaflow/facturaflow/internal/model"
	"github.com/facturaflow/facturaflow/internal/service"
)

// MockWriter is a mock implementation of ReportWriter for testing.
type MockWriter struct {
	WriteFunc           func(ctx context.Context, classifications []model.Classification, summary *service.ReportSummary) error
	LastSummary         *service.ReportSummary
	LastClassifications []model.Classification
	WriteCallCount      int
	mu                  sync.Mutex
}

// NewMockWriter creates a new mock writer.
func NewMockWriter() *MockWriter {
	return &MockWriter{}
}

// Write implements the ReportWriter interface.
func (m *MockWriter) Write(ctx context.Context, classifications []model.Classification, summary *service.ReportSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.WriteCallCount++
	m.LastClassifications = classifications
	m.LastSummary = summary

	if m.WriteFunc != nil {
		return m.WriteFunc(ctx, classifications, summary)
	}
	return nil
}

// Reset clears all recorded calls.
func (m *MockWriter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.WriteCallCount = 0
	m.LastClassifications = nil
	m.LastSummary = nil
}

// SetWriteError configures the mock to return an error on Write calls.
func (m *MockWriter) SetWriteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.WriteFunc = func(_ context.Context, _ []model.Classification, _ *service.ReportSummary) error {
		return err
	}
}
