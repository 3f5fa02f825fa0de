package reconcile

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/facturaflow/facturaflow/internal/model"
)

var testDate = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

func newTestMatcher() *Matcher {
	return NewMatcher(DefaultMatcherConfig(), testDate)
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestMatchCollapsesZeroPaddedFolios(t *testing.T) {
	lines := []ComandaLine{
		{FolioCuenta: "P077", Importe: dec("100.00")},
		{FolioCuenta: "P077", Importe: dec("50.00")},
	}
	ventas := []VentaSummary{
		{Folio: "P77", Total: dec("150.00")},
	}

	orders, issues := newTestMatcher().Match(lines, ventas)

	if len(orders) != 1 {
		t.Fatalf("got %d orders, want 1", len(orders))
	}
	order := orders[0]
	if order.FolioCuenta != "P77" {
		t.Errorf("FolioCuenta = %q, want normalized P77", order.FolioCuenta)
	}
	if !order.ComandasTotal.Equal(dec("150.00")) {
		t.Errorf("ComandasTotal = %s, want 150.00", order.ComandasTotal)
	}
	if order.VentasTotal == nil || !order.VentasTotal.Equal(dec("150.00")) {
		t.Errorf("VentasTotal = %v, want 150.00", order.VentasTotal)
	}
	if order.Status != model.StatusMatched {
		t.Errorf("Status = %q, want %q", order.Status, model.StatusMatched)
	}
	if len(issues) != 0 {
		t.Errorf("got %d issues, want 0: %+v", len(issues), issues)
	}
}

func TestMatchMismatchBeyondTolerance(t *testing.T) {
	lines := []ComandaLine{
		{FolioCuenta: "P10", Importe: dec("100.02")},
	}
	ventas := []VentaSummary{
		{Folio: "P10", Total: dec("100.00")},
	}

	orders, issues := newTestMatcher().Match(lines, ventas)

	if len(orders) != 1 {
		t.Fatalf("got %d orders, want 1", len(orders))
	}
	// A mismatch is a quality flag, not a rejection.
	if orders[0].Status != model.StatusMatched {
		t.Errorf("Status = %q, want %q", orders[0].Status, model.StatusMatched)
	}

	if len(issues) != 1 {
		t.Fatalf("got %d issues, want 1", len(issues))
	}
	issue := issues[0]
	if issue.Type != model.IssueMismatch {
		t.Errorf("Type = %q, want %q", issue.Type, model.IssueMismatch)
	}
	if issue.Difference == nil || !issue.Difference.Equal(dec("0.02")) {
		t.Errorf("Difference = %v, want 0.02", issue.Difference)
	}
	if issue.ExpectedValue == nil || !issue.ExpectedValue.Equal(dec("100.00")) {
		t.Errorf("ExpectedValue = %v, want 100.00", issue.ExpectedValue)
	}
	if issue.ActualValue == nil || !issue.ActualValue.Equal(dec("100.02")) {
		t.Errorf("ActualValue = %v, want 100.02", issue.ActualValue)
	}
}

func TestMatchDifferenceWithinToleranceIsClean(t *testing.T) {
	lines := []ComandaLine{
		{FolioCuenta: "P10", Importe: dec("100.005")},
	}
	ventas := []VentaSummary{
		{Folio: "P10", Total: dec("100.00")},
	}

	_, issues := newTestMatcher().Match(lines, ventas)

	if len(issues) != 0 {
		t.Errorf("got %d issues, want 0 for difference inside tolerance", len(issues))
	}
}

func TestMatchOrphanedComandaPreserved(t *testing.T) {
	lines := []ComandaLine{
		{FolioCuenta: "P20", Importe: dec("75.00"), Mesero: "Juan"},
	}

	orders, issues := newTestMatcher().Match(lines, nil)

	if len(orders) != 1 {
		t.Fatalf("got %d orders, want 1: orphans must not be dropped", len(orders))
	}
	order := orders[0]
	if order.Status != model.StatusOrphanedComanda {
		t.Errorf("Status = %q, want %q", order.Status, model.StatusOrphanedComanda)
	}
	if order.VentasTotal != nil {
		t.Errorf("VentasTotal = %v, want nil for orphaned comanda", order.VentasTotal)
	}
	if !order.ComandasTotal.Equal(dec("75.00")) {
		t.Errorf("ComandasTotal = %s, want 75.00", order.ComandasTotal)
	}

	if len(issues) != 1 {
		t.Fatalf("got %d issues, want 1", len(issues))
	}
	if issues[0].Type != model.IssueOrphanedComanda {
		t.Errorf("issue type = %q, want %q", issues[0].Type, model.IssueOrphanedComanda)
	}
	if issues[0].Severity != model.SeverityWarning {
		t.Errorf("severity = %q, want %q", issues[0].Severity, model.SeverityWarning)
	}
}

func TestMatchOrphanedVentaIssuesOnly(t *testing.T) {
	ventas := []VentaSummary{
		{Folio: "P30", Total: dec("42.00")},
		{Folio: "", Total: dec("9.99")},
	}

	orders, issues := newTestMatcher().Match(nil, ventas)

	if len(orders) != 0 {
		t.Errorf("got %d orders, want 0: ventas have no line items to build from", len(orders))
	}
	if len(issues) != 2 {
		t.Fatalf("got %d issues, want 2", len(issues))
	}
	for _, issue := range issues {
		if issue.Type != model.IssueOrphanedVenta {
			t.Errorf("issue type = %q, want %q", issue.Type, model.IssueOrphanedVenta)
		}
	}
}

func TestMatchNoDataLoss(t *testing.T) {
	lines := []ComandaLine{
		{FolioCuenta: "P1", Importe: dec("10.00")},
		{FolioCuenta: "P2", Importe: dec("20.00")},
		{FolioCuenta: "P2", Importe: dec("5.00")},
		{FolioCuenta: "P3", Importe: dec("30.00")},
	}
	ventas := []VentaSummary{
		{Folio: "P2", Total: dec("25.00")},
		{Folio: "P3", Total: dec("99.00")}, // mismatch
		{Folio: "P4", Total: dec("40.00")}, // orphaned venta
	}

	orders, issues := newTestMatcher().Match(lines, ventas)

	// Every comanda bill yields exactly one order, matched or not.
	if len(orders) != 3 {
		t.Fatalf("got %d orders, want 3", len(orders))
	}
	seen := make(map[string]model.ValidationStatus)
	for _, order := range orders {
		seen[order.FolioCuenta] = order.Status
	}
	if seen["P1"] != model.StatusOrphanedComanda {
		t.Errorf("P1 status = %q, want orphaned_comanda", seen["P1"])
	}
	if seen["P2"] != model.StatusMatched {
		t.Errorf("P2 status = %q, want matched", seen["P2"])
	}
	if seen["P3"] != model.StatusMatched {
		t.Errorf("P3 status = %q, want matched (mismatch is a flag)", seen["P3"])
	}

	var mismatches, orphanVentas, orphanComandas int
	for _, issue := range issues {
		switch issue.Type {
		case model.IssueMismatch:
			mismatches++
		case model.IssueOrphanedVenta:
			orphanVentas++
		case model.IssueOrphanedComanda:
			orphanComandas++
		}
	}
	if mismatches != 1 || orphanVentas != 1 || orphanComandas != 1 {
		t.Errorf("issues = %d mismatch, %d orphaned venta, %d orphaned comanda; want 1 each",
			mismatches, orphanVentas, orphanComandas)
	}
}

func TestMatchAggregatesFirstNonEmptyMetadata(t *testing.T) {
	open1 := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	open2 := time.Date(2024, 1, 15, 13, 0, 0, 0, time.UTC)
	lines := []ComandaLine{
		{FolioCuenta: "P5", Importe: dec("1.00")},
		{FolioCuenta: "P5", Importe: dec("2.00"), FechaApertura: &open1, Mesero: "Ana"},
		{FolioCuenta: "P5", Importe: dec("3.00"), FechaApertura: &open2, Mesero: "Luis"},
	}
	ventas := []VentaSummary{{Folio: "P5", Total: dec("6.00")}}

	orders, _ := newTestMatcher().Match(lines, ventas)

	if len(orders) != 1 {
		t.Fatalf("got %d orders, want 1", len(orders))
	}
	order := orders[0]
	if order.Mesero != "Ana" {
		t.Errorf("Mesero = %q, want first non-empty Ana", order.Mesero)
	}
	if order.FechaApertura == nil || !order.FechaApertura.Equal(open1) {
		t.Errorf("FechaApertura = %v, want first non-nil %v", order.FechaApertura, open1)
	}
}

func TestMatchCustomTolerance(t *testing.T) {
	config := MatcherConfig{
		Tolerance:      dec("1.00"),
		OrphanSeverity: model.SeverityError,
	}
	matcher := NewMatcher(config, testDate)

	lines := []ComandaLine{{FolioCuenta: "P9", Importe: dec("100.50")}}
	ventas := []VentaSummary{{Folio: "P9", Total: dec("100.00")}}

	_, issues := matcher.Match(lines, ventas)
	if len(issues) != 0 {
		t.Errorf("got %d issues, want 0 under 1.00 tolerance", len(issues))
	}

	orphanLines := []ComandaLine{{FolioCuenta: "P8", Importe: dec("5.00")}}
	_, issues = matcher.Match(orphanLines, nil)
	if len(issues) != 1 || issues[0].Severity != model.SeverityError {
		t.Errorf("orphan severity = %v, want configured ERROR", issues)
	}
}

func TestItemsForOrderFiltersByBillFolio(t *testing.T) {
	matcher := newTestMatcher()
	lines := []ComandaLine{
		{FolioCuenta: "P077", Importe: dec("10.00"), Descripcion: "Tacos"},
		{FolioCuenta: "P077", Importe: dec("20.00"), Descripcion: "Agua"},
		{FolioCuenta: "P88", Importe: dec("30.00"), Descripcion: "Cerveza"},
	}
	order := &model.SalesOrder{FolioCuenta: "P77", ProcessingDate: testDate}

	items := matcher.ItemsForOrder(order, lines)

	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	for _, item := range items {
		if item.FolioCuenta != "P77" {
			t.Errorf("item folio = %q, want normalized P77", item.FolioCuenta)
		}
		if !item.ProcessingDate.Equal(testDate) {
			t.Errorf("item processing date = %v, want %v", item.ProcessingDate, testDate)
		}
	}
}
