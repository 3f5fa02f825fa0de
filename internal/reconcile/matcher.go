package reconcile

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/facturaflow/facturaflow/internal/model"
)

// ComandaLine is one row of the comandas export: a single line item on a
// bill. FolioCuenta is the bill identifier used for matching; FolioComanda
// is frequently empty in real exports and is carried through untouched.
type ComandaLine struct {
	FechaApertura *time.Time
	FechaCierre   *time.Time
	FechaCaptura  *time.Time
	FolioComanda  string
	FolioCuenta   string
	Mesero        string
	ClaveProducto string
	Descripcion   string
	Cantidad      decimal.Decimal
	Descuento     decimal.Decimal
	Importe       decimal.Decimal
	Orden         int
}

// VentaSummary is one row of the ventas export: the bill-level totals.
type VentaSummary struct {
	Cierre     *time.Time
	Folio      string
	Total      decimal.Decimal
	Neto       decimal.Decimal
	Impuestos  decimal.Decimal
	Descuentos decimal.Decimal
}

// MatcherConfig tunes mismatch detection. The zero value is not usable;
// call DefaultMatcherConfig.
type MatcherConfig struct {
	// Tolerance is the absolute amount difference beyond which a matched
	// bill gains a MISMATCH quality issue.
	Tolerance decimal.Decimal
	// OrphanSeverity grades orphan and mismatch issues.
	OrphanSeverity model.IssueSeverity
}

// DefaultMatcherConfig returns the standard tolerance of one centavo and
// WARNING severity.
func DefaultMatcherConfig() MatcherConfig {
	return MatcherConfig{
		Tolerance:      decimal.NewFromFloat(0.01),
		OrphanSeverity: model.SeverityWarning,
	}
}

// Matcher reconciles comanda line items against venta bill summaries.
type Matcher struct {
	config         MatcherConfig
	processingDate time.Time
}

// NewMatcher creates a matcher for one processing date.
func NewMatcher(config MatcherConfig, processingDate time.Time) *Matcher {
	if config.Tolerance.IsZero() {
		config.Tolerance = decimal.NewFromFloat(0.01)
	}
	if config.OrphanSeverity == "" {
		config.OrphanSeverity = model.SeverityWarning
	}
	return &Matcher{config: config, processingDate: processingDate}
}

// billGroup aggregates the comanda lines of one bill.
type billGroup struct {
	fechaApertura *time.Time
	fechaCierre   *time.Time
	folioCuenta   string
	folioComanda  string
	mesero        string
	total         decimal.Decimal
	lines         []ComandaLine
}

// Match reconciles the two exports. Every distinct bill on either side
// produces exactly one order: matched bills carry both totals, orphaned
// comandas carry a nil ventas total, and orphaned ventas surface only as
// quality issues since they have no line items to build an order from.
// Amount mismatches beyond the tolerance are quality flags on an otherwise
// matched order, never rejections.
func (m *Matcher) Match(lines []ComandaLine, ventas []VentaSummary) ([]model.SalesOrder, []model.QualityIssue) {
	groups, groupOrder := m.groupByBill(lines)
	slog.Info("grouped comandas into bills",
		"lines", len(lines),
		"bills", len(groups),
		"ventas", len(ventas))

	var orders []model.SalesOrder
	var issues []model.QualityIssue
	matchedFolios := make(map[string]bool)

	for i := range ventas {
		venta := &ventas[i]
		folio := NormalizeFolio(venta.Folio)

		if folio == "" {
			issues = append(issues, m.newIssue(model.IssueOrphanedVenta,
				"venta record has empty folio", "ventas", "", nil, nil))
			continue
		}

		group, ok := groups[folio]
		if !ok {
			total := venta.Total
			issues = append(issues, m.newIssue(model.IssueOrphanedVenta,
				fmt.Sprintf("no matching comandas for venta folio %s", folio),
				"ventas", folio, &total, nil))
			continue
		}
		matchedFolios[folio] = true

		difference := group.total.Sub(venta.Total).Abs()
		if difference.GreaterThan(m.config.Tolerance) {
			expected := venta.Total
			actual := group.total
			issue := m.newIssue(model.IssueMismatch,
				fmt.Sprintf("amount mismatch for folio %s: comandas=%s ventas=%s",
					folio, group.total, venta.Total),
				"both", folio, &expected, &actual)
			diff := difference
			issue.Difference = &diff
			issues = append(issues, issue)
		}

		ventasTotal := venta.Total
		neto := venta.Neto
		impuestos := venta.Impuestos
		descuentos := venta.Descuentos
		orders = append(orders, model.SalesOrder{
			FolioCuenta:    folio,
			FolioComanda:   group.folioComanda,
			FechaApertura:  group.fechaApertura,
			FechaCierre:    group.fechaCierre,
			Mesero:         group.mesero,
			ComandasTotal:  group.total,
			VentasTotal:    &ventasTotal,
			NetSales:       &neto,
			Taxes:          &impuestos,
			Discounts:      &descuentos,
			Status:         model.StatusMatched,
			ProcessingDate: m.processingDate,
		})
	}

	// Comanda bills the ventas file never mentioned. Orphaned data is
	// preserved as an order with nil financials, never dropped.
	for _, folio := range groupOrder {
		if matchedFolios[folio] {
			continue
		}
		group := groups[folio]

		actual := group.total
		issues = append(issues, m.newIssue(model.IssueOrphanedComanda,
			fmt.Sprintf("comandas bill has no matching venta: %s", folio),
			"comandas", folio, nil, &actual))

		orders = append(orders, model.SalesOrder{
			FolioCuenta:    folio,
			FolioComanda:   group.folioComanda,
			FechaApertura:  group.fechaApertura,
			FechaCierre:    group.fechaCierre,
			Mesero:         group.mesero,
			ComandasTotal:  group.total,
			Status:         model.StatusOrphanedComanda,
			ProcessingDate: m.processingDate,
		})
	}

	slog.Info("matching completed",
		"orders", len(orders),
		"issues", len(issues))
	return orders, issues
}

// ItemsForOrder returns the comanda lines belonging to an order, filtered
// by normalized bill folio, converted into persistable sales items.
func (m *Matcher) ItemsForOrder(order *model.SalesOrder, lines []ComandaLine) []model.SalesItem {
	var items []model.SalesItem
	for i := range lines {
		line := &lines[i]
		if NormalizeFolio(line.FolioCuenta) != order.FolioCuenta {
			continue
		}
		items = append(items, model.SalesItem{
			FolioComanda:   line.FolioComanda,
			FolioCuenta:    order.FolioCuenta,
			Orden:          line.Orden,
			ClaveProducto:  line.ClaveProducto,
			Descripcion:    line.Descripcion,
			Mesero:         line.Mesero,
			Cantidad:       line.Cantidad,
			Importe:        line.Importe,
			Descuento:      line.Descuento,
			FechaApertura:  line.FechaApertura,
			FechaCierre:    line.FechaCierre,
			FechaCaptura:   line.FechaCaptura,
			ProcessingDate: m.processingDate,
			DuplicateCount: 1,
		})
	}
	return items
}

// groupByBill groups comanda lines by normalized folio, summing amounts
// and keeping the first non-empty timestamps and staff name. Lines with an
// empty folio are skipped; they cannot be attributed to any bill. The
// returned slice preserves first-seen folio order for deterministic output.
func (m *Matcher) groupByBill(lines []ComandaLine) (map[string]*billGroup, []string) {
	groups := make(map[string]*billGroup)
	var order []string

	for i := range lines {
		line := &lines[i]
		folio := NormalizeFolio(line.FolioCuenta)
		if folio == "" {
			slog.Warn("skipping comanda line with empty folio",
				"descripcion", line.Descripcion)
			continue
		}

		group, ok := groups[folio]
		if !ok {
			group = &billGroup{folioCuenta: folio}
			groups[folio] = group
			order = append(order, folio)
		}

		group.total = group.total.Add(line.Importe)
		group.lines = append(group.lines, *line)
		if group.folioComanda == "" && line.FolioComanda != "" {
			group.folioComanda = line.FolioComanda
		}
		if group.fechaApertura == nil && line.FechaApertura != nil {
			group.fechaApertura = line.FechaApertura
		}
		if group.fechaCierre == nil && line.FechaCierre != nil {
			group.fechaCierre = line.FechaCierre
		}
		if group.mesero == "" && line.Mesero != "" {
			group.mesero = line.Mesero
		}
	}

	// A bill with no comanda folio at all falls back to the bill folio.
	for _, group := range groups {
		if group.folioComanda == "" {
			group.folioComanda = group.folioCuenta
		}
	}

	return groups, order
}

func (m *Matcher) newIssue(issueType model.IssueType, description, sourceFile, folio string, expected, actual *decimal.Decimal) model.QualityIssue {
	return model.QualityIssue{
		ID:             uuid.NewString(),
		Type:           issueType,
		Severity:       m.config.OrphanSeverity,
		Description:    description,
		SourceFile:     sourceFile,
		Folio:          folio,
		ExpectedValue:  expected,
		ActualValue:    actual,
		ProcessingDate: m.processingDate,
		CreatedAt:      time.Now(),
	}
}
