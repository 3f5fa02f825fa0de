package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/facturaflow/facturaflow/internal/cli"
	"github.com/facturaflow/facturaflow/internal/model"
	"github.com/facturaflow/facturaflow/internal/service"
	"github.com/spf13/cobra"
)

func skusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "skus",
		Short: "Manage the approved SKU store",
		Long: `View approved SKUs and promote pending classifications to approved.

Approved SKUs are served without calling the AI model, so approving the
high-volume items directly reduces classification cost.`,
	}

	// Subcommands
	cmd.AddCommand(skusListCmd())
	cmd.AddCommand(skusPendingCmd())
	cmd.AddCommand(skusApproveCmd())

	return cmd
}

func skusListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List approved SKUs by usage",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer func() { _ = store.Close() }()

			skus, err := store.GetAllApprovedSKUs(ctx)
			if err != nil {
				return fmt.Errorf("failed to load approved SKUs: %w", err)
			}

			if len(skus) == 0 {
				fmt.Println(cli.SubtleStyle.Render("No approved SKUs yet."))
				return nil
			}

			fmt.Println(cli.TitleStyle.Render(fmt.Sprintf("Approved SKUs (%d)", len(skus))))
			fmt.Println(cli.TableHeaderStyle.Render(
				fmt.Sprintf("%-40s %-20s %-20s %6s", "Description", "Category", "Subcategory", "Used")))
			for _, sku := range skus {
				fmt.Println(cli.TableCellStyle.Render(
					fmt.Sprintf("%-40s %-20s %-20s %6d",
						truncate(sku.Description, 40),
						truncate(sku.Category, 20),
						truncate(sku.Subcategory, 20),
						sku.UsageCount)))
			}

			return nil
		},
	}
}

func skusPendingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List classifications awaiting approval",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer func() { _ = store.Close() }()

			pending, err := store.GetPendingClassifications(ctx)
			if err != nil {
				return fmt.Errorf("failed to load pending classifications: %w", err)
			}

			if len(pending) == 0 {
				fmt.Println(cli.SuccessStyle.Render(cli.SuccessIcon + " Nothing pending approval."))
				return nil
			}

			fmt.Println(cli.TitleStyle.Render(fmt.Sprintf("Pending classifications (%d)", len(pending))))
			fmt.Println(cli.TableHeaderStyle.Render(
				fmt.Sprintf("%-34s %-18s %-18s %-18s %5s", "SKU key", "Category", "Subcategory", "Product", "Conf")))
			for i := range pending {
				c := &pending[i]
				fmt.Println(cli.TableCellStyle.Render(
					fmt.Sprintf("%-34s %-18s %-18s %-18s %5.2f",
						truncate(c.SKUKey, 34),
						truncate(c.Category, 18),
						truncate(c.Subcategory, 18),
						truncate(c.SubSubCategory, 18),
						c.Confidence)))
			}

			return nil
		},
	}
}

func skusApproveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approve <sku-key>",
		Short: "Promote a pending classification to approved",
		Long: `Ratify the most recent pending classification for the given SKU key.
Future encounters of the SKU are then served from the approved store
without calling the AI model.`,
		Args: cobra.ExactArgs(1),
		RunE: runSkusApprove,
	}

	cmd.Flags().String("description", "", "human-readable description stored with the SKU")

	return cmd
}

func runSkusApprove(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	skuKey := args[0]
	description, _ := cmd.Flags().GetString("description")

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = store.Close() }()

	classification, err := findPendingBySKU(ctx, store, skuKey)
	if err != nil {
		return err
	}

	sku := &model.ApprovedSKU{
		ApprovedAt:       time.Now(),
		SKUKey:           classification.SKUKey,
		Description:      description,
		Category:         classification.Category,
		Subcategory:      classification.Subcategory,
		SubSubCategory:   classification.SubSubCategory,
		StandardizedUnit: classification.StandardizedUnit,
		PackageType:      classification.PackageType,
		UnitsPerPackage:  classification.UnitsPerPackage,
		Confidence:       classification.Confidence,
	}

	if err := store.SaveApprovedSKU(ctx, sku); err != nil {
		return fmt.Errorf("failed to save approved SKU: %w", err)
	}

	slog.Info("SKU approved",
		"sku_key", sku.SKUKey,
		"category", sku.Category,
		"subcategory", sku.Subcategory,
		"product", sku.SubSubCategory)
	fmt.Println(cli.SuccessStyle.Render(cli.SuccessIcon + " Approved " + sku.SKUKey))

	return nil
}

// findPendingBySKU returns the newest pending classification for the key.
func findPendingBySKU(ctx context.Context, store service.Storage, skuKey string) (*model.Classification, error) {
	pending, err := store.GetPendingClassifications(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending classifications: %w", err)
	}

	for i := range pending {
		if pending[i].SKUKey == skuKey {
			return &pending[i], nil
		}
	}

	return nil, fmt.Errorf("no pending classification found for SKU key %q", skuKey)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 1 {
		return string(runes[:n])
	}
	return string(runes[:n-1]) + "…"
}
