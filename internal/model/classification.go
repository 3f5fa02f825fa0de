package model

import "time"

// ClassificationSource indicates where a classification came from.
type ClassificationSource string

const (
	// SourceApprovedSKU indicates the classification was served from the
	// human-approved SKU store without calling the model.
	SourceApprovedSKU ClassificationSource = "approved_sku"
	// SourceAIModel indicates the classification was produced by the AI model.
	SourceAIModel ClassificationSource = "ai_model"
	// SourceFallback indicates all model attempts failed and the default
	// bucket was used.
	SourceFallback ClassificationSource = "fallback"
)

// ApprovalStatus indicates whether a human has ratified a classification.
type ApprovalStatus string

const (
	// StatusApproved means a reviewer confirmed the classification.
	StatusApproved ApprovalStatus = "approved"
	// StatusPending means the classification awaits human review.
	StatusPending ApprovalStatus = "pending"
)

// Standardized measurement units. Every classification carries exactly one.
const (
	UnitLitros     = "Litros"
	UnitKilogramos = "Kilogramos"
	UnitPiezas     = "Piezas"
)

// Classification is the result of classifying one line item into the
// 3-tier taxonomy. Immutable once created; persistence is the caller's job.
type Classification struct {
	ClassifiedAt     time.Time
	Category         string
	Subcategory      string
	SubSubCategory   string
	StandardizedUnit string
	PackageType      string
	SKUKey           string
	Reasoning        string
	Notes            string // diagnostics, e.g. the error that triggered a fallback
	Source           ClassificationSource
	ApprovalStatus   ApprovalStatus
	UnitsPerPackage  float64
	ConversionFactor float64
	Confidence       float64
}

// StandardizedQuantity converts an invoice quantity into standardized units
// using the classification's conversion factor.
func (c *Classification) StandardizedQuantity(quantity float64) float64 {
	return quantity * c.ConversionFactor
}
