package storage

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/facturaflow/facturaflow/internal/model"
)

// Helper function to create test storage.
func createTestStorage(t *testing.T) (*SQLiteStorage, func()) {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		t.Fatalf("Failed to migrate: %v", err)
	}

	return store, func() { _ = store.Close() }
}

func testApprovedSKU(key string) *model.ApprovedSKU {
	return &model.ApprovedSKU{
		SKUKey:           key,
		Description:      "Aceite vegetal 1L",
		Category:         "Abarrotes",
		Subcategory:      "Aceites y Grasas",
		SubSubCategory:   "Aceite Vegetal",
		StandardizedUnit: model.UnitLitros,
		UnitsPerPackage:  1.0,
		Confidence:       1.0,
	}
}

func TestSaveAndGetApprovedSKU(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	sku := testApprovedSKU("sku_abc12345_aceite_vegetal_1l")
	if err := store.SaveApprovedSKU(ctx, sku); err != nil {
		t.Fatalf("SaveApprovedSKU: %v", err)
	}

	got, err := store.GetApprovedSKU(ctx, sku.SKUKey)
	if err != nil {
		t.Fatalf("GetApprovedSKU: %v", err)
	}
	if got.Category != sku.Category || got.SubSubCategory != sku.SubSubCategory {
		t.Errorf("got (%s, %s), want (%s, %s)",
			got.Category, got.SubSubCategory, sku.Category, sku.SubSubCategory)
	}
	if got.StandardizedUnit != model.UnitLitros {
		t.Errorf("StandardizedUnit = %q, want %q", got.StandardizedUnit, model.UnitLitros)
	}

	// Second read should come from cache
	if cached := store.getCachedSKU(sku.SKUKey); cached == nil {
		t.Error("SKU not cached after retrieval")
	}
}

func TestGetApprovedSKUNotFound(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	_, err := store.GetApprovedSKU(context.Background(), "sku_missing")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("err = %v, want sql.ErrNoRows", err)
	}
}

func TestIncrementSKUUsage(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	sku := testApprovedSKU("sku_def67890_tortillas")
	if err := store.SaveApprovedSKU(ctx, sku); err != nil {
		t.Fatalf("SaveApprovedSKU: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := store.IncrementSKUUsage(ctx, sku.SKUKey); err != nil {
			t.Fatalf("IncrementSKUUsage: %v", err)
		}
	}

	got, err := store.GetApprovedSKU(ctx, sku.SKUKey)
	if err != nil {
		t.Fatalf("GetApprovedSKU: %v", err)
	}
	if got.UsageCount != 3 {
		t.Errorf("UsageCount = %d, want 3", got.UsageCount)
	}
	if got.LastUsed.IsZero() {
		t.Error("LastUsed not set after increment")
	}
}

func TestIncrementSKUUsageMissing(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	err := store.IncrementSKUUsage(context.Background(), "sku_missing")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("err = %v, want sql.ErrNoRows", err)
	}
}

func TestSaveApprovedSKUValidation(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	tests := []struct {
		mutate func(*model.ApprovedSKU)
		name   string
	}{
		{func(s *model.ApprovedSKU) { s.SKUKey = "" }, "missing key"},
		{func(s *model.ApprovedSKU) { s.Category = "" }, "missing category"},
		{func(s *model.ApprovedSKU) { s.StandardizedUnit = "" }, "missing unit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sku := testApprovedSKU("sku_valid_key")
			tt.mutate(sku)
			if err := store.SaveApprovedSKU(ctx, sku); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestSaveClassificationAndQuery(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	item := &model.LineItem{Description: "Cerveza clara 355ml", ProductCode: "50202201"}
	classification := &model.Classification{
		SKUKey:           model.SKUKey(item.Description, item.ProductCode),
		Category:         "Bebidas",
		Subcategory:      "Cervezas",
		SubSubCategory:   "Cerveza Clara",
		StandardizedUnit: model.UnitLitros,
		UnitsPerPackage:  24,
		ConversionFactor: 24,
		Confidence:       0.92,
		Source:           model.SourceAIModel,
		ApprovalStatus:   model.StatusPending,
		Reasoning:        "caja de 24 piezas",
	}

	if err := store.SaveClassification(ctx, item, classification); err != nil {
		t.Fatalf("SaveClassification: %v", err)
	}

	pending, err := store.GetPendingClassifications(ctx)
	if err != nil {
		t.Fatalf("GetPendingClassifications: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("got %d pending, want 1", len(pending))
	}
	if pending[0].SKUKey != classification.SKUKey {
		t.Errorf("SKUKey = %q, want %q", pending[0].SKUKey, classification.SKUKey)
	}
	if pending[0].UnitsPerPackage != 24 {
		t.Errorf("UnitsPerPackage = %v, want 24", pending[0].UnitsPerPackage)
	}

	start := time.Now().Add(-time.Hour)
	end := time.Now().Add(time.Hour)
	inRange, err := store.GetClassificationsByDateRange(ctx, start, end)
	if err != nil {
		t.Fatalf("GetClassificationsByDateRange: %v", err)
	}
	if len(inRange) != 1 {
		t.Errorf("got %d in range, want 1", len(inRange))
	}

	if _, err := store.GetClassificationsByDateRange(ctx, end, start); err == nil {
		t.Error("expected error for inverted date range")
	}
}

func TestMigrateIdempotent(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	// Second migration run must be a no-op
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}

	var version int
	if err := store.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("reading schema version: %v", err)
	}
	if version != ExpectedSchemaVersion {
		t.Errorf("schema version = %d, want %d", version, ExpectedSchemaVersion)
	}
}

func TestUpsertSalesOrderDuplicate(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	processingDate := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	order := &model.SalesOrder{
		FolioCuenta:    "P10",
		ComandasTotal:  decimal.NewFromFloat(150.00),
		Status:         model.StatusMatched,
		ProcessingDate: processingDate,
	}

	id1, dup1, err := store.UpsertSalesOrder(ctx, order)
	if err != nil {
		t.Fatalf("first UpsertSalesOrder: %v", err)
	}
	if dup1 {
		t.Error("first insert flagged as duplicate")
	}

	id2, dup2, err := store.UpsertSalesOrder(ctx, order)
	if err != nil {
		t.Fatalf("second UpsertSalesOrder: %v", err)
	}
	if !dup2 {
		t.Error("second insert not flagged as duplicate")
	}
	if id1 != id2 {
		t.Errorf("duplicate produced a new row: id %d vs %d", id1, id2)
	}

	stored, err := store.GetSalesOrder(ctx, "P10", processingDate)
	if err != nil {
		t.Fatalf("GetSalesOrder: %v", err)
	}
	if stored.DuplicateCount != 2 {
		t.Errorf("DuplicateCount = %d, want 2", stored.DuplicateCount)
	}
}

func TestUpsertSalesOrderBackfillsFinancials(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	processingDate := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	orphan := &model.SalesOrder{
		FolioCuenta:    "P20",
		ComandasTotal:  decimal.NewFromFloat(80.00),
		Status:         model.StatusOrphanedComanda,
		ProcessingDate: processingDate,
	}
	if _, _, err := store.UpsertSalesOrder(ctx, orphan); err != nil {
		t.Fatalf("UpsertSalesOrder(orphan): %v", err)
	}

	ventasTotal := decimal.NewFromFloat(80.00)
	netSales := decimal.NewFromFloat(68.97)
	complete := &model.SalesOrder{
		FolioCuenta:    "P20",
		ComandasTotal:  decimal.NewFromFloat(80.00),
		VentasTotal:    &ventasTotal,
		NetSales:       &netSales,
		Status:         model.StatusMatched,
		ProcessingDate: processingDate,
	}
	if _, _, err := store.UpsertSalesOrder(ctx, complete); err != nil {
		t.Fatalf("UpsertSalesOrder(complete): %v", err)
	}

	stored, err := store.GetSalesOrder(ctx, "P20", processingDate)
	if err != nil {
		t.Fatalf("GetSalesOrder: %v", err)
	}
	if stored.VentasTotal == nil || !stored.VentasTotal.Equal(ventasTotal) {
		t.Errorf("VentasTotal = %v, want backfilled 80.00", stored.VentasTotal)
	}
	if stored.NetSales == nil || !stored.NetSales.Equal(netSales) {
		t.Errorf("NetSales = %v, want backfilled 68.97", stored.NetSales)
	}
	if stored.DuplicateCount != 2 {
		t.Errorf("DuplicateCount = %d, want 2", stored.DuplicateCount)
	}
}

func TestSaveSalesItemsDuplicateDetection(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	processingDate := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	order := &model.SalesOrder{
		FolioCuenta:    "P30",
		ComandasTotal:  decimal.NewFromFloat(50.00),
		Status:         model.StatusMatched,
		ProcessingDate: processingDate,
	}
	orderID, _, err := store.UpsertSalesOrder(ctx, order)
	if err != nil {
		t.Fatalf("UpsertSalesOrder: %v", err)
	}

	items := []model.SalesItem{
		{
			FolioCuenta:    "P30",
			ClaveProducto:  "A1",
			Descripcion:    "Tacos",
			Cantidad:       decimal.NewFromInt(2),
			Importe:        decimal.NewFromFloat(50.00),
			ProcessingDate: processingDate,
		},
	}

	saved, duplicated, err := store.SaveSalesItems(ctx, orderID, items)
	if err != nil {
		t.Fatalf("first SaveSalesItems: %v", err)
	}
	if saved != 1 || duplicated != 0 {
		t.Errorf("first run: saved=%d duplicated=%d, want 1/0", saved, duplicated)
	}

	saved, duplicated, err = store.SaveSalesItems(ctx, orderID, items)
	if err != nil {
		t.Fatalf("second SaveSalesItems: %v", err)
	}
	if saved != 0 || duplicated != 1 {
		t.Errorf("second run: saved=%d duplicated=%d, want 0/1", saved, duplicated)
	}
}

func TestSaveAndGetQualityIssues(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	processingDate := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	expected := decimal.NewFromFloat(150.00)
	actual := decimal.NewFromFloat(150.02)
	difference := decimal.NewFromFloat(0.02)

	issue := &model.QualityIssue{
		ID:             "issue-1",
		Type:           model.IssueMismatch,
		Severity:       model.SeverityWarning,
		Description:    "amount mismatch for folio P10",
		SourceFile:     "both",
		Folio:          "P10",
		ExpectedValue:  &expected,
		ActualValue:    &actual,
		Difference:     &difference,
		ProcessingDate: processingDate,
	}
	if err := store.SaveQualityIssue(ctx, issue); err != nil {
		t.Fatalf("SaveQualityIssue: %v", err)
	}

	issues, err := store.GetQualityIssues(ctx, processingDate)
	if err != nil {
		t.Fatalf("GetQualityIssues: %v", err)
	}
	if len(issues) != 1 {
		t.Fatalf("got %d issues, want 1", len(issues))
	}
	got := issues[0]
	if got.Type != model.IssueMismatch || got.Severity != model.SeverityWarning {
		t.Errorf("issue = (%s, %s), want (MISMATCH, WARNING)", got.Type, got.Severity)
	}
	if got.Difference == nil || !got.Difference.Equal(difference) {
		t.Errorf("Difference = %v, want 0.02", got.Difference)
	}

	// Issues on a different date stay invisible
	other, err := store.GetQualityIssues(ctx, processingDate.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("GetQualityIssues(other date): %v", err)
	}
	if len(other) != 0 {
		t.Errorf("got %d issues on other date, want 0", len(other))
	}
}
