package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// FailureKind distinguishes why a classification attempt failed, so the
// retry loop and the fallback path can be tested without mocking errors.
type FailureKind string

const (
	// FailureTimeout covers network errors and per-attempt deadline hits.
	FailureTimeout FailureKind = "timeout"
	// FailureInvalidResponse covers unparseable or incomplete model output.
	FailureInvalidResponse FailureKind = "invalid_response"
	// FailureValidation covers structurally valid output that failed checks.
	FailureValidation FailureKind = "validation_failed"
)

// ClassifyError wraps a failed attempt with its kind.
type ClassifyError struct {
	Err  error
	Kind FailureKind
}

func (e *ClassifyError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *ClassifyError) Unwrap() error {
	return e.Err
}

// rawClassification is the parsed, coerced model response before taxonomy
// validation.
type rawClassification struct {
	Category         string
	Subcategory      string
	SubSubCategory   string
	StandardizedUnit string
	PackageType      string
	Reasoning        string
	UnitsPerPackage  float64
	ConversionFactor float64
	Confidence       float64
}

// requiredFields must all appear in the model's JSON response; a missing
// field makes the attempt a retryable failure.
var requiredFields = []string{
	"category", "subcategory", "sub_sub_category",
	"standardized_unit", "units_per_package", "confidence",
}

// stripMarkdownFences removes ```json ... ``` wrappers that models add
// despite instructions not to.
func stripMarkdownFences(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	}
	return strings.TrimSpace(content)
}

// parseClassification parses model output into a rawClassification.
// It tolerates numeric fields arriving as strings and clamps values into
// their valid ranges; unrecoverable problems return a ClassifyError of
// kind FailureInvalidResponse.
func parseClassification(content string) (*rawClassification, error) {
	content = stripMarkdownFences(content)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &fields); err != nil {
		return nil, &ClassifyError{Kind: FailureInvalidResponse, Err: fmt.Errorf("failed to parse JSON response: %w", err)}
	}

	for _, field := range requiredFields {
		if _, ok := fields[field]; !ok {
			return nil, &ClassifyError{Kind: FailureInvalidResponse, Err: fmt.Errorf("missing required field: %s", field)}
		}
	}

	raw := &rawClassification{
		Category:         asString(fields["category"]),
		Subcategory:      asString(fields["subcategory"]),
		SubSubCategory:   asString(fields["sub_sub_category"]),
		StandardizedUnit: asString(fields["standardized_unit"]),
		PackageType:      asString(fields["package_type"]),
		Reasoning:        asString(fields["reasoning"]),
	}

	if raw.Category == "" {
		return nil, &ClassifyError{Kind: FailureInvalidResponse, Err: errors.New("empty category in response")}
	}

	// Non-numeric or non-positive package counts collapse to 1.
	unitsPerPackage, ok := asFloat(fields["units_per_package"])
	if !ok || unitsPerPackage <= 0 {
		unitsPerPackage = 1.0
	}
	raw.UnitsPerPackage = unitsPerPackage

	conversionFactor, ok := asFloat(fields["conversion_factor"])
	if !ok || conversionFactor <= 0 {
		conversionFactor = unitsPerPackage
	}
	raw.ConversionFactor = conversionFactor

	confidence, ok := asFloat(fields["confidence"])
	if !ok {
		confidence = 0.5
	}
	raw.Confidence = clamp(confidence, 0.0, 1.0)

	return raw, nil
}

// asString extracts a string value, tolerating null and non-string JSON.
func asString(raw json.RawMessage) string {
	if raw == nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return ""
}

// asFloat extracts a numeric value, tolerating quoted numbers.
func asFloat(raw json.RawMessage) (float64, bool) {
	if raw == nil {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
