// Package taxonomy loads and validates the static 3-tier category tree
// used to constrain every classification result.
package taxonomy

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/facturaflow/facturaflow/internal/common"
	"github.com/facturaflow/facturaflow/internal/model"
)

// Defaults used when model output falls outside the tree.
const (
	DefaultCategory    = "Abarrotes"
	DefaultSubcategory = "Otros-a"
	DefaultLeaf        = "Otros"
	DefaultUnit        = model.UnitPiezas
)

// Taxonomy is the immutable 3-tier category tree plus the closed unit
// enumeration. Load it once at startup and pass it by value reference;
// it is never mutated after construction.
type Taxonomy struct {
	categories        map[string]map[string][]string
	unitMappings      map[string][]string
	standardizedUnits []string
	categoryNames     []string
}

// fileSchema mirrors the on-disk JSON layout.
type fileSchema struct {
	Categories        map[string]map[string][]string `json:"categories"`
	StandardizedUnits []string                       `json:"standardized_units"`
	UnitMappings      map[string][]string            `json:"unit_mappings"`
}

// LoadFile reads and validates a taxonomy JSON file. A missing or
// malformed file is a fatal configuration error: the classifier cannot
// operate against an empty or partial tree.
func LoadFile(path string) (*Taxonomy, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from config
	if err != nil {
		return nil, fmt.Errorf("failed to read taxonomy file: %w", err)
	}

	var schema fileSchema
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("failed to parse taxonomy file: %w", err)
	}

	return New(schema.Categories, schema.StandardizedUnits, schema.UnitMappings)
}

// New builds a taxonomy from already-parsed configuration. Exported so
// tests can construct synthetic trees without touching the filesystem.
func New(categories map[string]map[string][]string, units []string, unitMappings map[string][]string) (*Taxonomy, error) {
	if len(categories) == 0 {
		return nil, fmt.Errorf("%w: no categories", common.ErrInvalidTaxonomy)
	}
	if len(units) == 0 {
		units = []string{model.UnitLitros, model.UnitKilogramos, model.UnitPiezas}
	}

	for category, subcategories := range categories {
		if len(subcategories) == 0 {
			return nil, fmt.Errorf("%w: category %q has no subcategories", common.ErrInvalidTaxonomy, category)
		}
		for subcategory, leaves := range subcategories {
			if len(leaves) == 0 {
				return nil, fmt.Errorf("%w: subcategory %q in %q has no sub-subcategories", common.ErrInvalidTaxonomy, subcategory, category)
			}
		}
	}

	names := make([]string, 0, len(categories))
	for name := range categories {
		names = append(names, name)
	}
	// Sorted so prompt construction and tests are deterministic.
	sort.Strings(names)

	return &Taxonomy{
		categories:        categories,
		standardizedUnits: units,
		unitMappings:      unitMappings,
		categoryNames:     names,
	}, nil
}

// CategoryNames returns the top-level category names in sorted order.
func (t *Taxonomy) CategoryNames() []string {
	return t.categoryNames
}

// Subcategories returns the sorted subcategory names of a category.
func (t *Taxonomy) Subcategories(category string) []string {
	subcategories, ok := t.categories[category]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(subcategories))
	for name := range subcategories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Leaves returns the sub-subcategory leaves of a subcategory.
func (t *Taxonomy) Leaves(category, subcategory string) []string {
	subcategories, ok := t.categories[category]
	if !ok {
		return nil
	}
	return subcategories[subcategory]
}

// StandardizedUnits returns the closed unit enumeration.
func (t *Taxonomy) StandardizedUnits() []string {
	return t.standardizedUnits
}

// UnitMappings returns the raw-unit-code groupings from configuration.
func (t *Taxonomy) UnitMappings() map[string][]string {
	return t.unitMappings
}

// LeafCount returns the total number of sub-subcategory leaves.
func (t *Taxonomy) LeafCount() int {
	count := 0
	for _, subcategories := range t.categories {
		for _, leaves := range subcategories {
			count += len(leaves)
		}
	}
	return count
}

// ValidPath reports whether the triple resolves in the tree.
func (t *Taxonomy) ValidPath(category, subcategory, leaf string) bool {
	subcategories, ok := t.categories[category]
	if !ok {
		return false
	}
	leaves, ok := subcategories[subcategory]
	if !ok {
		return false
	}
	for _, l := range leaves {
		if l == leaf {
			return true
		}
	}
	return false
}

// ValidUnit reports whether the unit is in the closed enumeration.
func (t *Taxonomy) ValidUnit(unit string) bool {
	for _, u := range t.standardizedUnits {
		if u == unit {
			return true
		}
	}
	return false
}

// Normalize coerces a possibly-invalid (category, subcategory, leaf, unit)
// tuple onto the tree using cascading fallback: an unknown category resets
// the whole triple to the defaults; an unknown subcategory substitutes the
// first child of the category; an unknown leaf substitutes the first leaf
// of the subcategory. The returned triple always resolves in the tree.
func (t *Taxonomy) Normalize(category, subcategory, leaf, unit string) (string, string, string, string) {
	if !t.ValidUnit(unit) {
		slog.Warn("invalid standardized unit, defaulting", "unit", unit, "default", DefaultUnit)
		unit = DefaultUnit
	}

	subcategories, ok := t.categories[category]
	if !ok {
		slog.Warn("invalid category, defaulting",
			"category", category,
			"default", DefaultCategory)
		return t.defaultTriple(unit)
	}

	if _, ok := subcategories[subcategory]; !ok {
		slog.Warn("invalid subcategory, substituting first child",
			"category", category,
			"subcategory", subcategory)
		children := t.Subcategories(category)
		subcategory = children[0]
	}

	leaves := subcategories[subcategory]
	found := false
	for _, l := range leaves {
		if l == leaf {
			found = true
			break
		}
	}
	if !found {
		slog.Warn("invalid sub-subcategory, substituting first leaf",
			"category", category,
			"subcategory", subcategory,
			"sub_sub_category", leaf)
		leaf = leaves[0]
	}

	return category, subcategory, leaf, unit
}

// defaultTriple returns the default bucket, falling back to the first
// available nodes when the configured defaults are absent from the tree.
func (t *Taxonomy) defaultTriple(unit string) (string, string, string, string) {
	category := DefaultCategory
	if _, ok := t.categories[category]; !ok {
		category = t.categoryNames[0]
	}

	subcategory := DefaultSubcategory
	if _, ok := t.categories[category][subcategory]; !ok {
		subcategory = t.Subcategories(category)[0]
	}

	leaf := DefaultLeaf
	leaves := t.categories[category][subcategory]
	found := false
	for _, l := range leaves {
		if l == leaf {
			found = true
			break
		}
	}
	if !found {
		leaf = leaves[0]
	}

	return category, subcategory, leaf, unit
}

// Fallback returns the default classification triple with the default unit.
func (t *Taxonomy) Fallback() (string, string, string, string) {
	return t.defaultTriple(DefaultUnit)
}
