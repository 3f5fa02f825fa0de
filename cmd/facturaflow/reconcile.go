package main

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/facturaflow/facturaflow/internal/cli"
	"github.com/facturaflow/facturaflow/internal/reconcile"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func reconcileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcile point-of-sale exports into sales orders",
		Long: `Match a comandas export (line items) against a ventas export (bill
summaries), producing one sales order per bill plus a quality log of
orphans and amount mismatches.

Reprocessing the same files for the same date is safe: existing orders
gain a duplicate count instead of duplicate rows.

Examples:
  facturaflow reconcile --comandas comandas.csv --ventas ventas.csv
  facturaflow reconcile --comandas c.csv --ventas v.csv --date 2024-01-15`,
		RunE: runReconcile,
	}

	cmd.Flags().String("comandas", "", "path to the comandas (line item) export")
	cmd.Flags().String("ventas", "", "path to the ventas (bill summary) export")
	cmd.Flags().String("date", "", "processing date (format: 2006-01-02, default today)")
	cmd.Flags().Float64("tolerance", 0, "amount mismatch tolerance (default 0.01)")

	_ = cmd.MarkFlagRequired("comandas")
	_ = cmd.MarkFlagRequired("ventas")

	_ = viper.BindPFlag("reconcile.tolerance", cmd.Flags().Lookup("tolerance"))

	return cmd
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	comandasPath, _ := cmd.Flags().GetString("comandas")
	ventasPath, _ := cmd.Flags().GetString("ventas")
	dateArg, _ := cmd.Flags().GetString("date")

	processingDate := time.Now()
	if dateArg != "" {
		parsed, err := time.Parse("2006-01-02", dateArg)
		if err != nil {
			return fmt.Errorf("invalid date format (use YYYY-MM-DD): %w", err)
		}
		processingDate = parsed
	}

	matcherConfig := reconcile.DefaultMatcherConfig()
	if tolerance := viper.GetFloat64("reconcile.tolerance"); tolerance > 0 {
		matcherConfig.Tolerance = decimal.NewFromFloat(tolerance)
	}

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			slog.Error("Failed to close database", "error", closeErr)
		}
	}()

	slog.Info("Starting sales reconciliation",
		"comandas", comandasPath,
		"ventas", ventasPath,
		"processing_date", processingDate.Format("2006-01-02"))

	processor := reconcile.NewProcessor(store, matcherConfig)
	summary, err := processor.ProcessFiles(ctx, comandasPath, ventasPath, processingDate)
	if err != nil {
		return fmt.Errorf("reconciliation failed: %w", err)
	}

	printReconcileSummary(summary, processingDate)

	return nil
}

func printReconcileSummary(summary *reconcile.Summary, processingDate time.Time) {
	var b strings.Builder
	b.WriteString(cli.TitleStyle.Render(cli.ChartIcon+" Reconciliation complete") + "\n\n")
	b.WriteString(cli.SubtleStyle.Render("Processing date: "+processingDate.Format("2006-01-02")) + "\n")
	b.WriteString(fmt.Sprintf("%s orders created:    %d\n",
		cli.SuccessStyle.Render(cli.SuccessIcon), summary.OrdersCreated))
	b.WriteString(fmt.Sprintf("  orders duplicated: %d\n", summary.OrdersDuplicated))
	b.WriteString(fmt.Sprintf("  items created:     %d\n", summary.ItemsCreated))
	b.WriteString(fmt.Sprintf("  items duplicated:  %d\n", summary.ItemsDuplicated))
	if summary.QualityIssues > 0 {
		b.WriteString(cli.WarningStyle.Render(fmt.Sprintf("%s quality issues:    %d",
			cli.WarningIcon, summary.QualityIssues)) + "\n")
	} else {
		b.WriteString(fmt.Sprintf("  quality issues:    %d\n", summary.QualityIssues))
	}
	fmt.Println(cli.BoxStyle.Render(b.String()))
}
