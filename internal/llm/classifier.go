package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/facturaflow/facturaflow/internal/common"
	"github.com/facturaflow/facturaflow/internal/model"
	"github.com/facturaflow/facturaflow/internal/service"
	"github.com/facturaflow/facturaflow/internal/taxonomy"
)

// Classifier turns line items into taxonomy-validated classifications.
// It never surfaces model or network failures to the caller: exhausted
// retries resolve to the fallback record so one bad item cannot stall a
// batch run.
type Classifier struct {
	client    Client
	taxonomy  *taxonomy.Taxonomy
	logger    *slog.Logger
	retryOpts service.RetryOptions
	timeout   time.Duration
}

// NewClassifier creates a new AI-backed classifier.
func NewClassifier(cfg Config, tax *taxonomy.Taxonomy, logger *slog.Logger) (*Classifier, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	return NewClassifierWithClient(cfg, client, tax, logger), nil
}

// NewClassifierWithClient wires an existing client; tests inject mocks here.
func NewClassifierWithClient(cfg Config, client Client, tax *taxonomy.Taxonomy, logger *slog.Logger) *Classifier {
	retryOpts := service.RetryOptions{
		MaxAttempts:  cfg.MaxRetries,
		InitialDelay: cfg.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
	if retryOpts.MaxAttempts == 0 {
		retryOpts.MaxAttempts = 3
	}
	if retryOpts.InitialDelay == 0 {
		retryOpts.InitialDelay = time.Second
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Classifier{
		client:    client,
		taxonomy:  tax,
		logger:    logger,
		retryOpts: retryOpts,
		timeout:   timeout,
	}
}

// ClassifyItem classifies a single line item. The returned record's triple
// always resolves in the taxonomy, its confidence is in [0,1], and its
// units per package is positive — even under adversarial model output.
func (c *Classifier) ClassifyItem(ctx context.Context, item model.LineItem) model.Classification {
	prompt := c.buildPrompt(item)

	var raw *rawClassification

	err := common.WithRetry(ctx, func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		content, err := c.client.Generate(attemptCtx, prompt)
		if err != nil {
			c.logger.Warn("model attempt failed",
				"error", err,
				"description", item.Description)
			return &common.RetryableError{
				Err:       &ClassifyError{Kind: FailureTimeout, Err: err},
				Retryable: true,
			}
		}

		parsed, err := parseClassification(content)
		if err != nil {
			c.logger.Warn("unparseable model response",
				"error", err,
				"description", item.Description)
			return &common.RetryableError{Err: err, Retryable: true}
		}

		raw = parsed
		return nil
	}, c.retryOpts)

	if err != nil {
		return c.fallback(item, err)
	}

	// Cascading taxonomy validation; never trust model output blindly.
	category, subcategory, leaf, unit := c.taxonomy.Normalize(
		raw.Category, raw.Subcategory, raw.SubSubCategory, raw.StandardizedUnit)

	classification := model.Classification{
		ClassifiedAt:     time.Now(),
		Category:         category,
		Subcategory:      subcategory,
		SubSubCategory:   leaf,
		StandardizedUnit: unit,
		PackageType:      raw.PackageType,
		Reasoning:        raw.Reasoning,
		Source:           model.SourceAIModel,
		ApprovalStatus:   model.StatusPending,
		UnitsPerPackage:  raw.UnitsPerPackage,
		ConversionFactor: raw.ConversionFactor,
		Confidence:       raw.Confidence,
	}

	c.logger.Info("item classified",
		"description", item.Description,
		"category", classification.Category,
		"subcategory", classification.Subcategory,
		"units_per_package", classification.UnitsPerPackage,
		"confidence", classification.Confidence)

	return classification
}

// fallback builds the default-bucket record used when all attempts fail.
// A bad classification is acceptable; a crashed pipeline is not.
func (c *Classifier) fallback(item model.LineItem, cause error) model.Classification {
	c.logger.Error("classification failed, using fallback",
		"description", item.Description,
		"error", cause)

	category, subcategory, leaf, unit := c.taxonomy.Fallback()

	return model.Classification{
		ClassifiedAt:     time.Now(),
		Category:         category,
		Subcategory:      subcategory,
		SubSubCategory:   leaf,
		StandardizedUnit: unit,
		Source:           model.SourceFallback,
		ApprovalStatus:   model.StatusPending,
		UnitsPerPackage:  1.0,
		ConversionFactor: 1.0,
		Confidence:       0.0,
		Notes:            cause.Error(),
	}
}

// buildPrompt embeds the entire 3-tier hierarchy so the model chooses only
// from enumerated options.
func (c *Classifier) buildPrompt(item model.LineItem) string {
	var hierarchy strings.Builder
	for _, category := range c.taxonomy.CategoryNames() {
		fmt.Fprintf(&hierarchy, "%s:\n", category)
		for _, subcategory := range c.taxonomy.Subcategories(category) {
			fmt.Fprintf(&hierarchy, "  %s:\n", subcategory)
			for _, leaf := range c.taxonomy.Leaves(category, subcategory) {
				fmt.Fprintf(&hierarchy, "    - %s\n", leaf)
			}
		}
		hierarchy.WriteString("\n")
	}

	units := strings.Join(c.taxonomy.StandardizedUnits(), "|")

	return fmt.Sprintf(`You are a Mexican invoice item classifier. Classify this item into the EXACT 3-tier category system below.

ITEM TO CLASSIFY:
Description: %q
Product Code: %q
Unit: %q
Quantity: %g

COMPLETE TAXONOMY (3-TIER HIERARCHY):

%s
CLASSIFICATION STEPS:

1. CATEGORY: choose EXACTLY ONE top-level category from the hierarchy above.
2. SUBCATEGORY: choose EXACTLY ONE subcategory listed under your chosen category.
3. SUB_SUB_CATEGORY: choose EXACTLY ONE of the leaf options listed under your chosen subcategory. Do NOT invent new names; if no perfect match exists, choose the closest listed option.
4. STANDARDIZED UNIT: choose EXACTLY ONE of: Litros (liquids, beverages, oils), Kilogramos (weight-based items, meat, vegetables, dry goods), Piezas (countable items, services, packages).
5. UNITS PER PACKAGE: determine how many individual units each package contains.

Package examples:
- "Cebolla" with unit "KG" -> units_per_package: 1 (sold by individual kg)
- "Caja cerveza tecate 24 piezas" with unit "Caja" -> units_per_package: 24
- "Aceite vegetal 1 litro" with unit "PZA" -> units_per_package: 1
- "Huevos blancos paquete 12 piezas" -> units_per_package: 12
Look for numbers and package keywords (caja, paquete, docena). Default to 1 when no package info is present.

RESPONSE RULES:
1. Use EXACT names from the hierarchy above, including accents.
2. Return ONLY valid JSON, no additional text and no markdown.

REQUIRED JSON RESPONSE FORMAT:
{
  "category": "EXACT_TIER_1_NAME",
  "subcategory": "EXACT_TIER_2_NAME",
  "sub_sub_category": "EXACT_TIER_3_NAME",
  "standardized_unit": "%s",
  "units_per_package": numeric_value,
  "package_type": "package_description_or_null",
  "conversion_factor": numeric_value,
  "confidence": 0.95,
  "reasoning": "Brief explanation of classification and package determination"
}`,
		item.Description,
		item.ProductCode,
		item.UnitCode,
		item.Quantity,
		hierarchy.String(),
		units)
}
