// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/facturaflow/facturaflow/internal/model"
)

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Approved SKU operations
	GetApprovedSKU(ctx context.Context, skuKey string) (*model.ApprovedSKU, error)
	SaveApprovedSKU(ctx context.Context, sku *model.ApprovedSKU) error
	IncrementSKUUsage(ctx context.Context, skuKey string) error
	GetAllApprovedSKUs(ctx context.Context) ([]model.ApprovedSKU, error)

	// Classification operations
	SaveClassification(ctx context.Context, item *model.LineItem, classification *model.Classification) error
	GetClassificationsByDateRange(ctx context.Context, start, end time.Time) ([]model.Classification, error)
	GetPendingClassifications(ctx context.Context) ([]model.Classification, error)

	// Sales reconciliation operations
	UpsertSalesOrder(ctx context.Context, order *model.SalesOrder) (int64, bool, error)
	SaveSalesItems(ctx context.Context, orderID int64, items []model.SalesItem) (int, int, error)
	SaveQualityIssue(ctx context.Context, issue *model.QualityIssue) error
	GetQualityIssues(ctx context.Context, processingDate time.Time) ([]model.QualityIssue, error)
	GetSalesOrder(ctx context.Context, folioCuenta string, processingDate time.Time) (*model.SalesOrder, error)

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// Classifier produces a classification for a single line item. It must not
// fail on model errors; irrecoverable failures resolve to a fallback record.
type Classifier interface {
	ClassifyItem(ctx context.Context, item model.LineItem) model.Classification
}

// ReportWriter exports classification results to an external destination.
type ReportWriter interface {
	Write(ctx context.Context, classifications []model.Classification, summary *ReportSummary) error
}

// ReportSummary contains aggregate information for the export.
type ReportSummary struct {
	DateRange  DateRange
	ByCategory map[string]CategorySummary
	BySource   map[model.ClassificationSource]int
	TotalItems int
}

// DateRange represents a time period with start and end dates.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// CategorySummary contains aggregated statistics for a category.
type CategorySummary struct {
	Count              int
	TotalStandardized  float64
	PendingApprovalPct float64
}

// RetryOptions configures retry behavior for operations that may fail
// transiently. Injected so tests can run the retry path with zero delay.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
