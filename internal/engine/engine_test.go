package engine

import (
	"context"
	"testing"

	"github.com/facturaflow/facturaflow/internal/model"
	"github.com/facturaflow/facturaflow/internal/testutil"
)

// countingClassifier records how many times the AI path was taken.
type countingClassifier struct {
	calls  int
	result model.Classification
}

func (c *countingClassifier) ClassifyItem(_ context.Context, item model.LineItem) model.Classification {
	c.calls++
	result := c.result
	if result.Category == "" {
		result = model.Classification{
			Category:         "Abarrotes",
			Subcategory:      "Aceites y Grasas",
			SubSubCategory:   "Aceite Vegetal",
			StandardizedUnit: model.UnitLitros,
			UnitsPerPackage:  1.0,
			ConversionFactor: 1.0,
			Confidence:       0.9,
			Source:           model.SourceAIModel,
			ApprovalStatus:   model.StatusPending,
		}
	}
	return result
}

func TestClassifyItemCallsModelOncePerSKU(t *testing.T) {
	storage := testutil.NewMemoryStorage()
	classifier := &countingClassifier{}
	engine := New(storage, classifier)

	item := model.LineItem{Description: "Aceite vegetal 1L", Quantity: 2}

	first := engine.ClassifyItem(context.Background(), item)
	second := engine.ClassifyItem(context.Background(), item)

	if classifier.calls != 1 {
		t.Errorf("classifier called %d times, want 1", classifier.calls)
	}
	if first.SKUKey == "" {
		t.Error("classification missing SKU key")
	}
	if second.SKUKey != first.SKUKey {
		t.Errorf("memo returned different SKU key: %q vs %q", second.SKUKey, first.SKUKey)
	}

	stats := engine.Stats()
	if stats.ModelCalls != 1 || stats.MemoHits != 1 || stats.Items != 2 {
		t.Errorf("stats = %+v, want 1 model call, 1 memo hit, 2 items", stats)
	}
}

func TestClassifyItemPrefersApprovedSKU(t *testing.T) {
	storage := testutil.NewMemoryStorage()
	classifier := &countingClassifier{}
	engine := New(storage, classifier)

	item := model.LineItem{Description: "Coca Cola 600ml", ProductCode: "50202306"}
	skuKey := model.SKUKey(item.Description, item.ProductCode)

	if err := storage.SaveApprovedSKU(context.Background(), &model.ApprovedSKU{
		SKUKey:           skuKey,
		Category:         "Bebidas",
		Subcategory:      "Refrescos",
		SubSubCategory:   "Cola",
		StandardizedUnit: model.UnitLitros,
		UnitsPerPackage:  1.0,
	}); err != nil {
		t.Fatalf("SaveApprovedSKU: %v", err)
	}

	classification := engine.ClassifyItem(context.Background(), item)

	if classifier.calls != 0 {
		t.Errorf("classifier called %d times, want 0 for approved SKU", classifier.calls)
	}
	if classification.Source != model.SourceApprovedSKU {
		t.Errorf("Source = %q, want %q", classification.Source, model.SourceApprovedSKU)
	}
	if classification.ApprovalStatus != model.StatusApproved {
		t.Errorf("ApprovalStatus = %q, want %q", classification.ApprovalStatus, model.StatusApproved)
	}
	if classification.Confidence != 1.0 {
		t.Errorf("Confidence = %v, want 1.0 for approved SKU", classification.Confidence)
	}

	sku, err := storage.GetApprovedSKU(context.Background(), skuKey)
	if err != nil {
		t.Fatalf("GetApprovedSKU: %v", err)
	}
	if sku.UsageCount != 1 {
		t.Errorf("UsageCount = %d, want 1 after lookup", sku.UsageCount)
	}
}

func TestClassifyItemApprovedHitNeverReachesModel(t *testing.T) {
	storage := testutil.NewMemoryStorage()
	classifier := &countingClassifier{}
	engine := New(storage, classifier)

	item := model.LineItem{Description: "Tortillas de maiz"}
	skuKey := model.SKUKey(item.Description, "")

	if err := storage.SaveApprovedSKU(context.Background(), &model.ApprovedSKU{
		SKUKey:           skuKey,
		Category:         "Abarrotes",
		Subcategory:      "Tortilleria",
		SubSubCategory:   "Tortillas",
		StandardizedUnit: model.UnitKilogramos,
		UnitsPerPackage:  1.0,
	}); err != nil {
		t.Fatalf("SaveApprovedSKU: %v", err)
	}

	// First call hits the store, second hits the memo. Neither should
	// reach the model.
	engine.ClassifyItem(context.Background(), item)
	engine.ClassifyItem(context.Background(), item)

	if classifier.calls != 0 {
		t.Errorf("classifier called %d times, want 0", classifier.calls)
	}

	stats := engine.Stats()
	if stats.ApprovedHits != 1 || stats.MemoHits != 1 {
		t.Errorf("stats = %+v, want 1 approved hit and 1 memo hit", stats)
	}

	sku, err := storage.GetApprovedSKU(context.Background(), skuKey)
	if err != nil {
		t.Fatalf("GetApprovedSKU: %v", err)
	}
	if sku.UsageCount != 1 {
		t.Errorf("UsageCount = %d, want 1; memo hits must not bump usage", sku.UsageCount)
	}
}

func TestMemoScopedToEngine(t *testing.T) {
	storage := testutil.NewMemoryStorage()
	classifier := &countingClassifier{}

	item := model.LineItem{Description: "Queso oaxaca 400g"}

	New(storage, classifier).ClassifyItem(context.Background(), item)
	New(storage, classifier).ClassifyItem(context.Background(), item)

	if classifier.calls != 2 {
		t.Errorf("classifier called %d times, want 2: memo must not survive the engine", classifier.calls)
	}
}

func TestClassifyInvoicePersistsInDocumentOrder(t *testing.T) {
	storage := testutil.NewMemoryStorage()
	classifier := &countingClassifier{}
	engine := New(storage, classifier)

	invoice := &model.Invoice{
		LineItems: []model.LineItem{
			{Description: "Aceite vegetal 1L"},
			{Description: "Frijol negro 900g"},
			{Description: "Aceite vegetal 1L"}, // repeat, should memo-hit
		},
	}

	classifications, err := engine.ClassifyInvoice(context.Background(), invoice)
	if err != nil {
		t.Fatalf("ClassifyInvoice: %v", err)
	}

	if len(classifications) != 3 {
		t.Fatalf("got %d classifications, want 3", len(classifications))
	}
	if classifier.calls != 2 {
		t.Errorf("classifier called %d times, want 2 for 2 distinct items", classifier.calls)
	}
	if classifications[0].SKUKey != classifications[2].SKUKey {
		t.Error("duplicate items resolved to different SKU keys")
	}
	if len(storage.Classifications) != 3 {
		t.Errorf("persisted %d classifications, want 3", len(storage.Classifications))
	}
	for i, want := range []string{
		model.SKUKey("Aceite vegetal 1L", ""),
		model.SKUKey("Frijol negro 900g", ""),
		model.SKUKey("Aceite vegetal 1L", ""),
	} {
		if storage.Classifications[i].SKUKey != want {
			t.Errorf("persisted[%d].SKUKey = %q, want %q", i, storage.Classifications[i].SKUKey, want)
		}
	}
}

func TestClassifyInvoiceRejectsEmptyInvoice(t *testing.T) {
	engine := New(testutil.NewMemoryStorage(), &countingClassifier{})

	if _, err := engine.ClassifyInvoice(context.Background(), &model.Invoice{}); err == nil {
		t.Error("expected error for invoice with no line items")
	}
	if _, err := engine.ClassifyInvoice(context.Background(), nil); err == nil {
		t.Error("expected error for nil invoice")
	}
}

func TestClassifyInvoiceStopsOnCancelledContext(t *testing.T) {
	engine := New(testutil.NewMemoryStorage(), &countingClassifier{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	invoice := &model.Invoice{
		LineItems: []model.LineItem{{Description: "Azucar estandar 1kg"}},
	}
	if _, err := engine.ClassifyInvoice(ctx, invoice); err == nil {
		t.Error("expected context error after cancellation")
	}
}

func TestStatsCountsFallbacks(t *testing.T) {
	storage := testutil.NewMemoryStorage()
	classifier := &countingClassifier{result: model.Classification{
		Category:         "Abarrotes",
		Subcategory:      "Otros-a",
		SubSubCategory:   "Otros",
		StandardizedUnit: model.UnitPiezas,
		UnitsPerPackage:  1.0,
		ConversionFactor: 1.0,
		Source:           model.SourceFallback,
		ApprovalStatus:   model.StatusPending,
	}}
	engine := New(storage, classifier)

	engine.ClassifyItem(context.Background(), model.LineItem{Description: "???"})

	stats := engine.Stats()
	if stats.Fallbacks != 1 || stats.ModelCalls != 0 {
		t.Errorf("stats = %+v, want 1 fallback and 0 model calls", stats)
	}
}
