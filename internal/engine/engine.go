// Package engine implements the classification orchestrator: the
// memo -> approved-SKU -> AI model lookup chain that keeps model calls to
// a minimum.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/facturaflow/facturaflow/internal/common"
	"github.com/facturaflow/facturaflow/internal/model"
	"github.com/facturaflow/facturaflow/internal/service"
)

// Engine classifies line items, consulting a per-run memo and the
// approved-SKU store before falling back to the AI classifier.
// The memo is scoped to one Engine instance; construct a fresh Engine per
// batch run so stale entries cannot leak across runs.
type Engine struct {
	storage    service.Storage
	classifier service.Classifier
	memo       map[string]model.Classification
	memoMu     sync.Mutex
	stats      RunStats
}

// RunStats counts where classifications came from during one run.
type RunStats struct {
	MemoHits     int
	ApprovedHits int
	ModelCalls   int
	Fallbacks    int
	Items        int
}

// New creates a classification engine with the given dependencies.
func New(storage service.Storage, classifier service.Classifier) *Engine {
	return &Engine{
		storage:    storage,
		classifier: classifier,
		memo:       make(map[string]model.Classification),
	}
}

// ClassifyItem resolves one line item to a classification. Lookup order:
// in-process memo, approved-SKU store (bumping its usage counters), then
// the AI classifier. The result is always tagged with the item's SKU key.
func (e *Engine) ClassifyItem(ctx context.Context, item model.LineItem) model.Classification {
	skuKey := model.SKUKey(item.Description, item.ProductCode)

	e.memoMu.Lock()
	if cached, ok := e.memo[skuKey]; ok {
		e.stats.MemoHits++
		e.stats.Items++
		e.memoMu.Unlock()
		slog.Debug("memo hit", "sku_key", skuKey)
		return cached
	}
	e.memoMu.Unlock()

	if classification, ok := e.lookupApproved(ctx, skuKey); ok {
		e.memoize(skuKey, classification, &e.stats.ApprovedHits)
		return classification
	}

	slog.Info("classifying new item", "sku_key", skuKey, "description", item.Description)
	classification := e.classifier.ClassifyItem(ctx, item)
	classification.SKUKey = skuKey

	counter := &e.stats.ModelCalls
	if classification.Source == model.SourceFallback {
		counter = &e.stats.Fallbacks
	}
	e.memoize(skuKey, classification, counter)
	return classification
}

// ClassifyInvoice classifies each line item of an invoice in document
// order. Per-item failures degrade to fallback records inside the
// classifier; nothing here aborts the remaining items.
func (e *Engine) ClassifyInvoice(ctx context.Context, invoice *model.Invoice) ([]model.Classification, error) {
	if invoice == nil || len(invoice.LineItems) == 0 {
		return nil, common.ErrNoLineItems
	}

	classifications := make([]model.Classification, 0, len(invoice.LineItems))
	for i := range invoice.LineItems {
		select {
		case <-ctx.Done():
			return classifications, ctx.Err()
		default:
		}

		item := invoice.LineItems[i]
		classification := e.ClassifyItem(ctx, item)
		classifications = append(classifications, classification)

		if err := e.storage.SaveClassification(ctx, &item, &classification); err != nil {
			slog.Error("failed to persist classification",
				"sku_key", classification.SKUKey,
				"error", err)
		}
	}

	return classifications, nil
}

// Stats returns the source counters accumulated so far in this run.
func (e *Engine) Stats() RunStats {
	e.memoMu.Lock()
	defer e.memoMu.Unlock()
	return e.stats
}

// lookupApproved checks the approved-SKU store and, on hit, increments
// its usage counters as a side effect.
func (e *Engine) lookupApproved(ctx context.Context, skuKey string) (model.Classification, bool) {
	sku, err := e.storage.GetApprovedSKU(ctx, skuKey)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			slog.Error("approved SKU lookup failed", "sku_key", skuKey, "error", err)
		}
		return model.Classification{}, false
	}

	if err := e.storage.IncrementSKUUsage(ctx, skuKey); err != nil {
		slog.Warn("failed to increment SKU usage", "sku_key", skuKey, "error", err)
	}

	classification := sku.Classification()
	classification.ClassifiedAt = time.Now()
	slog.Info("using approved SKU",
		"sku_key", skuKey,
		"category", classification.Category)
	return classification, true
}

func (e *Engine) memoize(skuKey string, classification model.Classification, counter *int) {
	e.memoMu.Lock()
	defer e.memoMu.Unlock()
	e.memo[skuKey] = classification
	*counter++
	e.stats.Items++
}
