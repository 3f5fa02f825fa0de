package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/facturaflow/facturaflow/internal/cli"
	"github.com/facturaflow/facturaflow/internal/config"
	"github.com/facturaflow/facturaflow/internal/model"
	"github.com/facturaflow/facturaflow/internal/service"
	"github.com/facturaflow/facturaflow/internal/sheets"
	"github.com/spf13/cobra"
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export classifications to Google Sheets",
		Long: `Write classified purchase details and a category summary to a Google
Sheets spreadsheet.

Authentication uses either a service account (sheets.service_account_path)
or an OAuth2 refresh token (sheets.client_id / client_secret /
refresh_token); see the config file documentation.

Examples:
  facturaflow export                                  # last 30 days
  facturaflow export --start 2024-01-01 --end 2024-01-31`,
		RunE: runExport,
	}

	cmd.Flags().String("start", "", "start date (format: 2006-01-02, default 30 days ago)")
	cmd.Flags().String("end", "", "end date (format: 2006-01-02, default today)")

	return cmd
}

func runExport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	start, end, err := exportDateRange(cmd)
	if err != nil {
		return err
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

	classifications, err := store.GetClassificationsByDateRange(ctx, start, end)
	if err != nil {
		return fmt.Errorf("failed to load classifications: %w", err)
	}
	if len(classifications) == 0 {
		fmt.Println(cli.SubtleStyle.Render("No classifications in the selected range."))
		return nil
	}

	sheetsConfig, err := config.LoadSheetsConfig()
	if err != nil {
		return fmt.Errorf("failed to load sheets configuration: %w", err)
	}

	writer, err := sheets.NewWriter(ctx, *sheetsConfig, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to create sheets writer: %w", err)
	}

	summary := buildReportSummary(classifications, start, end)

	slog.Info("Exporting classifications",
		"count", len(classifications),
		"start", start.Format("2006-01-02"),
		"end", end.Format("2006-01-02"))

	if err := writer.Write(ctx, classifications, summary); err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("%s Exported %d classifications",
		cli.SuccessIcon, len(classifications))))

	return nil
}

func exportDateRange(cmd *cobra.Command) (time.Time, time.Time, error) {
	startArg, _ := cmd.Flags().GetString("start")
	endArg, _ := cmd.Flags().GetString("end")

	end := time.Now()
	if endArg != "" {
		parsed, err := time.Parse("2006-01-02", endArg)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end date (use YYYY-MM-DD): %w", err)
		}
		// Include the whole end day
		end = parsed.AddDate(0, 0, 1).Add(-time.Second)
	}

	start := end.AddDate(0, 0, -30)
	if startArg != "" {
		parsed, err := time.Parse("2006-01-02", startArg)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start date (use YYYY-MM-DD): %w", err)
		}
		start = parsed
	}

	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end date %s is before start date %s",
			end.Format("2006-01-02"), start.Format("2006-01-02"))
	}

	return start, end, nil
}

// buildReportSummary aggregates per-category and per-source counts for the
// report header sections.
func buildReportSummary(classifications []model.Classification, start, end time.Time) *service.ReportSummary {
	byCategory := make(map[string]service.CategorySummary)
	bySource := make(map[model.ClassificationSource]int)
	pendingByCategory := make(map[string]int)

	for i := range classifications {
		c := &classifications[i]
		bySource[c.Source]++
		if c.ApprovalStatus == model.StatusPending {
			pendingByCategory[c.Category]++
		}

		catSummary := byCategory[c.Category]
		catSummary.Count++
		catSummary.TotalStandardized += c.UnitsPerPackage
		byCategory[c.Category] = catSummary
	}

	for category, catSummary := range byCategory {
		if catSummary.Count > 0 {
			catSummary.PendingApprovalPct = 100 * float64(pendingByCategory[category]) / float64(catSummary.Count)
			byCategory[category] = catSummary
		}
	}

	return &service.ReportSummary{
		DateRange:  service.DateRange{Start: start, End: end},
		ByCategory: byCategory,
		BySource:   bySource,
		TotalItems: len(classifications),
	}
}
