package main

import (
	"fmt"
	"strings"

	"github.com/facturaflow/facturaflow/internal/cli"
	"github.com/facturaflow/facturaflow/internal/config"
	"github.com/facturaflow/facturaflow/internal/taxonomy"
	"github.com/spf13/cobra"
)

func taxonomyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "taxonomy",
		Short: "Inspect the classification taxonomy",
		Long: `Validate the taxonomy file and show its shape. The classifier only
ever emits category paths that exist in this tree, so a broken taxonomy
file stops every classification run.`,
	}

	cmd.AddCommand(taxonomyValidateCmd())
	cmd.AddCommand(taxonomyStatsCmd())

	return cmd
}

func taxonomyValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a taxonomy file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			tax, path, err := loadTaxonomyArg(args)
			if err != nil {
				fmt.Println(cli.ErrorStyle.Render(cli.ErrorIcon + " Taxonomy is invalid"))
				return err
			}

			fmt.Println(cli.SuccessStyle.Render(cli.SuccessIcon + " Taxonomy is valid"))
			fmt.Println(cli.SubtleStyle.Render(fmt.Sprintf("%s: %d categories, %d products",
				path, len(tax.CategoryNames()), tax.LeafCount())))
			return nil
		},
	}
}

func taxonomyStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats [file]",
		Short: "Show taxonomy tier counts",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			tax, path, err := loadTaxonomyArg(args)
			if err != nil {
				return err
			}

			subcategories := 0
			for _, category := range tax.CategoryNames() {
				subcategories += len(tax.Subcategories(category))
			}

			var b strings.Builder
			b.WriteString(cli.TitleStyle.Render("Taxonomy "+path) + "\n\n")
			b.WriteString(fmt.Sprintf("Categories:     %d\n", len(tax.CategoryNames())))
			b.WriteString(fmt.Sprintf("Subcategories:  %d\n", subcategories))
			b.WriteString(fmt.Sprintf("Products:       %d\n", tax.LeafCount()))
			b.WriteString(fmt.Sprintf("Units:          %s\n", strings.Join(tax.StandardizedUnits(), ", ")))
			fmt.Println(cli.BoxStyle.Render(b.String()))

			for _, category := range tax.CategoryNames() {
				leaves := 0
				for _, sub := range tax.Subcategories(category) {
					leaves += len(tax.Leaves(category, sub))
				}
				fmt.Printf("  %-30s %3d subcategories, %4d products\n",
					category, len(tax.Subcategories(category)), leaves)
			}

			return nil
		},
	}
}

// loadTaxonomyArg loads the taxonomy from an explicit path argument or from
// config when no argument was given.
func loadTaxonomyArg(args []string) (*taxonomy.Taxonomy, string, error) {
	if len(args) == 0 {
		tax, err := loadTaxonomy()
		return tax, "(configured taxonomy)", err
	}

	path := config.ExpandPath(args[0])
	tax, err := taxonomy.LoadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("failed to load taxonomy from %s: %w", path, err)
	}
	return tax, path, nil
}
