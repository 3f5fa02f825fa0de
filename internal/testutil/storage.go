// Package testutil provides shared test doubles for the application.
package testutil

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/facturaflow/facturaflow/internal/model"
)

// MemoryStorage is an in-memory service.Storage implementation for tests.
type MemoryStorage struct {
	mu              sync.Mutex
	ApprovedSKUs    map[string]*model.ApprovedSKU
	Classifications []model.Classification
	Orders          map[string]*model.SalesOrder // keyed by folio|date
	Items           []model.SalesItem
	Issues          []model.QualityIssue
	nextOrderID     int64
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		ApprovedSKUs: make(map[string]*model.ApprovedSKU),
		Orders:       make(map[string]*model.SalesOrder),
		nextOrderID:  1,
	}
}

func orderKey(folio string, date time.Time) string {
	return folio + "|" + date.Format("2006-01-02")
}

// GetApprovedSKU returns a stored SKU or sql.ErrNoRows.
func (m *MemoryStorage) GetApprovedSKU(_ context.Context, skuKey string) (*model.ApprovedSKU, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sku, ok := m.ApprovedSKUs[skuKey]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *sku
	return &copied, nil
}

// SaveApprovedSKU stores a SKU record.
func (m *MemoryStorage) SaveApprovedSKU(_ context.Context, sku *model.ApprovedSKU) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *sku
	m.ApprovedSKUs[sku.SKUKey] = &copied
	return nil
}

// IncrementSKUUsage bumps the usage counters of a stored SKU.
func (m *MemoryStorage) IncrementSKUUsage(_ context.Context, skuKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sku, ok := m.ApprovedSKUs[skuKey]
	if !ok {
		return sql.ErrNoRows
	}
	sku.UsageCount++
	sku.LastUsed = time.Now()
	return nil
}

// GetAllApprovedSKUs lists all stored SKUs.
func (m *MemoryStorage) GetAllApprovedSKUs(_ context.Context) ([]model.ApprovedSKU, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	skus := make([]model.ApprovedSKU, 0, len(m.ApprovedSKUs))
	for _, sku := range m.ApprovedSKUs {
		skus = append(skus, *sku)
	}
	return skus, nil
}

// SaveClassification records a classification.
func (m *MemoryStorage) SaveClassification(_ context.Context, _ *model.LineItem, classification *model.Classification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Classifications = append(m.Classifications, *classification)
	return nil
}

// GetClassificationsByDateRange returns recorded classifications.
func (m *MemoryStorage) GetClassificationsByDateRange(_ context.Context, start, end time.Time) ([]model.Classification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Classification
	for _, c := range m.Classifications {
		if !c.ClassifiedAt.Before(start) && !c.ClassifiedAt.After(end) {
			out = append(out, c)
		}
	}
	return out, nil
}

// GetPendingClassifications returns classifications awaiting approval.
func (m *MemoryStorage) GetPendingClassifications(_ context.Context) ([]model.Classification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Classification
	for _, c := range m.Classifications {
		if c.ApprovalStatus == model.StatusPending {
			out = append(out, c)
		}
	}
	return out, nil
}

// UpsertSalesOrder inserts or updates an order keyed by (folio, date).
func (m *MemoryStorage) UpsertSalesOrder(_ context.Context, order *model.SalesOrder) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := orderKey(order.FolioCuenta, order.ProcessingDate)
	if existing, ok := m.Orders[key]; ok {
		existing.DuplicateCount++
		if existing.VentasTotal == nil && order.VentasTotal != nil {
			existing.VentasTotal = order.VentasTotal
			existing.NetSales = order.NetSales
			existing.Taxes = order.Taxes
			existing.Discounts = order.Discounts
		}
		existing.LastProcessed = time.Now()
		return existing.ID, true, nil
	}

	copied := *order
	copied.ID = m.nextOrderID
	copied.DuplicateCount = 1
	m.nextOrderID++
	m.Orders[key] = &copied
	return copied.ID, false, nil
}

// SaveSalesItems appends items for an order.
func (m *MemoryStorage) SaveSalesItems(_ context.Context, orderID int64, items []model.SalesItem) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range items {
		items[i].OrderID = orderID
		m.Items = append(m.Items, items[i])
	}
	return len(items), 0, nil
}

// SaveQualityIssue appends an issue to the log.
func (m *MemoryStorage) SaveQualityIssue(_ context.Context, issue *model.QualityIssue) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Issues = append(m.Issues, *issue)
	return nil
}

// GetQualityIssues returns issues for a processing date.
func (m *MemoryStorage) GetQualityIssues(_ context.Context, processingDate time.Time) ([]model.QualityIssue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.QualityIssue
	for _, issue := range m.Issues {
		if issue.ProcessingDate.Equal(processingDate) {
			out = append(out, issue)
		}
	}
	return out, nil
}

// GetSalesOrder returns an order by its natural key, or sql.ErrNoRows.
func (m *MemoryStorage) GetSalesOrder(_ context.Context, folioCuenta string, processingDate time.Time) (*model.SalesOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.Orders[orderKey(folioCuenta, processingDate)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *order
	return &copied, nil
}

// Migrate is a no-op for the in-memory store.
func (m *MemoryStorage) Migrate(_ context.Context) error { return nil }

// Close is a no-op for the in-memory store.
func (m *MemoryStorage) Close() error { return nil }
