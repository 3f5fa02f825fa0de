package main

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/facturaflow/facturaflow/internal/cfdi"
	"github.com/facturaflow/facturaflow/internal/cli"
	"github.com/facturaflow/facturaflow/internal/engine"
	"github.com/facturaflow/facturaflow/internal/model"
	"github.com/spf13/cobra"
)

func classifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify <file.xml|directory>",
		Short: "Classify CFDI invoice line items",
		Long: `Parse CFDI invoice XML files and classify every line item into the
product taxonomy.

Each distinct SKU is resolved at most once per run: previously approved
SKUs are served from the local store without calling the AI model, and
repeated items within the run reuse the first result.

Examples:
  facturaflow classify factura.xml      # Classify one invoice
  facturaflow classify ./facturas/      # Classify every XML file in a directory`,
		Args: cobra.ExactArgs(1),
		RunE: runClassify,
	}

	return cmd
}

func runClassify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	paths, err := collectXMLFiles(args[0])
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no XML files found in %s", args[0])
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

	tax, err := loadTaxonomy()
	if err != nil {
		return err
	}

	classifier, err := createClassifier(tax)
	if err != nil {
		return err
	}

	// Parse everything up front so the progress bar knows the item count
	// and a malformed file fails the run before any model calls.
	invoices := make([]*model.Invoice, 0, len(paths))
	totalItems := 0
	for _, path := range paths {
		invoice, parseErr := cfdi.ParseFile(path)
		if parseErr != nil {
			return fmt.Errorf("failed to parse %s: %w", path, parseErr)
		}
		invoices = append(invoices, invoice)
		totalItems += len(invoice.LineItems)
	}

	slog.Info("Starting classification",
		"invoices", len(invoices),
		"line_items", totalItems)

	eng := engine.New(store, classifier)
	bar := cli.NewProgressBar(totalItems, "Classifying line items...", os.Stderr)

	for _, invoice := range invoices {
		if _, classifyErr := eng.ClassifyInvoice(ctx, invoice); classifyErr != nil {
			return fmt.Errorf("failed to classify invoice %s: %w", invoice.UUID, classifyErr)
		}
		_ = bar.Add(len(invoice.LineItems))
	}
	_ = bar.Finish()

	printClassifySummary(eng.Stats(), len(invoices))

	return nil
}

func printClassifySummary(stats engine.RunStats, invoiceCount int) {
	var b strings.Builder
	b.WriteString(cli.TitleStyle.Render(cli.InvoiceIcon+" Classification complete") + "\n\n")
	b.WriteString(fmt.Sprintf("%s %d invoices, %d line items\n",
		cli.SuccessStyle.Render(cli.SuccessIcon), invoiceCount, stats.Items))
	b.WriteString(fmt.Sprintf("  %s approved SKU hits: %d\n", cli.ChartIcon, stats.ApprovedHits))
	b.WriteString(fmt.Sprintf("  %s repeated this run:  %d\n", cli.ChartIcon, stats.MemoHits))
	b.WriteString(fmt.Sprintf("  %s AI model calls:     %d\n", cli.RobotIcon, stats.ModelCalls))
	if stats.Fallbacks > 0 {
		b.WriteString(cli.WarningStyle.Render(fmt.Sprintf("  %s fallbacks:          %d",
			cli.WarningIcon, stats.Fallbacks)) + "\n")
	}
	fmt.Println(cli.BoxStyle.Render(b.String()))
}

func collectXMLFiles(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", root, err)
	}

	if !info.IsDir() {
		return []string{root}, nil
	}

	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".xml") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	return paths, nil
}
