package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/facturaflow/facturaflow/internal/model"
	"github.com/facturaflow/facturaflow/internal/service"
)

// Summary reports the outcome of one reconciliation run.
type Summary struct {
	OrdersCreated    int
	OrdersDuplicated int
	ItemsCreated     int
	ItemsDuplicated  int
	QualityIssues    int
}

// Processor runs the full reconciliation pipeline: parse both exports,
// match them, and persist orders, items, and quality issues.
type Processor struct {
	storage service.Storage
	config  MatcherConfig
}

// NewProcessor creates a reconciliation processor backed by the given
// storage.
func NewProcessor(storage service.Storage, config MatcherConfig) *Processor {
	return &Processor{storage: storage, config: config}
}

// ProcessFiles reconciles a comandas file against a ventas file for the
// given processing date. Re-encountered orders bump their duplicate count
// instead of inserting new rows; quality issues are always appended.
func (p *Processor) ProcessFiles(ctx context.Context, comandasPath, ventasPath string, processingDate time.Time) (*Summary, error) {
	lines, err := ParseComandasFile(comandasPath)
	if err != nil {
		return nil, fmt.Errorf("parsing comandas: %w", err)
	}
	ventas, err := ParseVentasFile(ventasPath)
	if err != nil {
		return nil, fmt.Errorf("parsing ventas: %w", err)
	}

	matcher := NewMatcher(p.config, processingDate)
	orders, issues := matcher.Match(lines, ventas)

	return p.persist(ctx, matcher, orders, issues, lines)
}

func (p *Processor) persist(ctx context.Context, matcher *Matcher, orders []model.SalesOrder, issues []model.QualityIssue, lines []ComandaLine) (*Summary, error) {
	summary := &Summary{QualityIssues: len(issues)}

	for i := range orders {
		order := &orders[i]

		orderID, isDuplicate, err := p.storage.UpsertSalesOrder(ctx, order)
		if err != nil {
			return summary, fmt.Errorf("saving order %s: %w", order.FolioCuenta, err)
		}
		if isDuplicate {
			summary.OrdersDuplicated++
			slog.Warn("duplicate order re-encountered",
				"folio_cuenta", order.FolioCuenta,
				"processing_date", order.ProcessingDate.Format("2006-01-02"))
		} else {
			summary.OrdersCreated++
		}

		items := matcher.ItemsForOrder(order, lines)
		if len(items) == 0 {
			continue
		}
		saved, duplicated, err := p.storage.SaveSalesItems(ctx, orderID, items)
		if err != nil {
			return summary, fmt.Errorf("saving items for order %s: %w", order.FolioCuenta, err)
		}
		summary.ItemsCreated += saved
		summary.ItemsDuplicated += duplicated
	}

	for i := range issues {
		if err := p.storage.SaveQualityIssue(ctx, &issues[i]); err != nil {
			return summary, fmt.Errorf("saving quality issue: %w", err)
		}
	}

	slog.Info("reconciliation run complete",
		"orders_created", summary.OrdersCreated,
		"orders_duplicated", summary.OrdersDuplicated,
		"items_created", summary.ItemsCreated,
		"items_duplicated", summary.ItemsDuplicated,
		"quality_issues", summary.QualityIssues)
	return summary, nil
}
