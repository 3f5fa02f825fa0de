package llm

import (
	"errors"
	"testing"
)

func TestStripMarkdownFences(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "no fences", input: `{"a": 1}`, want: `{"a": 1}`},
		{name: "json fence", input: "```json\n{\"a\": 1}\n```", want: `{"a": 1}`},
		{name: "bare fence", input: "```\n{\"a\": 1}\n```", want: `{"a": 1}`},
		{name: "surrounding whitespace", input: "  \n```json\n{\"a\": 1}\n```\n  ", want: `{"a": 1}`},
		{name: "empty", input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripMarkdownFences(tt.input); got != tt.want {
				t.Errorf("stripMarkdownFences(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseClassificationValid(t *testing.T) {
	content := `{
		"category": "Bebidas",
		"subcategory": "Cervezas",
		"sub_sub_category": "Cerveza clara",
		"standardized_unit": "Litros",
		"units_per_package": 24,
		"package_type": "Caja",
		"conversion_factor": 24,
		"confidence": 0.95,
		"reasoning": "Box of 24 beers"
	}`

	raw, err := parseClassification(content)
	if err != nil {
		t.Fatalf("parseClassification failed: %v", err)
	}
	if raw.Category != "Bebidas" || raw.Subcategory != "Cervezas" || raw.SubSubCategory != "Cerveza clara" {
		t.Errorf("unexpected triple: %+v", raw)
	}
	if raw.UnitsPerPackage != 24 || raw.ConversionFactor != 24 {
		t.Errorf("units = %v, factor = %v, want 24/24", raw.UnitsPerPackage, raw.ConversionFactor)
	}
	if raw.Confidence != 0.95 {
		t.Errorf("confidence = %v, want 0.95", raw.Confidence)
	}
}

func TestParseClassificationFenced(t *testing.T) {
	content := "```json\n{\"category\":\"Bebidas\",\"subcategory\":\"Cervezas\",\"sub_sub_category\":\"Cerveza clara\",\"standardized_unit\":\"Litros\",\"units_per_package\":6,\"confidence\":0.9}\n```"
	raw, err := parseClassification(content)
	if err != nil {
		t.Fatalf("parseClassification failed: %v", err)
	}
	if raw.UnitsPerPackage != 6 {
		t.Errorf("units_per_package = %v, want 6", raw.UnitsPerPackage)
	}
	// conversion_factor omitted: defaults to units_per_package.
	if raw.ConversionFactor != 6 {
		t.Errorf("conversion_factor = %v, want 6", raw.ConversionFactor)
	}
}

func TestParseClassificationInvalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "not json", input: "I think this is a beverage"},
		{name: "empty", input: ""},
		{name: "missing category", input: `{"subcategory":"x","sub_sub_category":"y","standardized_unit":"Piezas","units_per_package":1,"confidence":0.5}`},
		{name: "missing confidence", input: `{"category":"a","subcategory":"x","sub_sub_category":"y","standardized_unit":"Piezas","units_per_package":1}`},
		{name: "null category", input: `{"category":null,"subcategory":"x","sub_sub_category":"y","standardized_unit":"Piezas","units_per_package":1,"confidence":0.5}`},
		{name: "truncated json", input: `{"category":"Bebidas","subcategory":"Cer`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseClassification(tt.input)
			if err == nil {
				t.Fatal("expected error")
			}
			var classifyErr *ClassifyError
			if !errors.As(err, &classifyErr) {
				t.Fatalf("error is not a ClassifyError: %v", err)
			}
			if classifyErr.Kind != FailureInvalidResponse {
				t.Errorf("kind = %v, want %v", classifyErr.Kind, FailureInvalidResponse)
			}
		})
	}
}

func TestParseClassificationCoercions(t *testing.T) {
	tests := []struct {
		name           string
		unitsJSON      string
		confidenceJSON string
		wantUnits      float64
		wantConfidence float64
	}{
		{name: "negative units", unitsJSON: "-5", confidenceJSON: "0.8", wantUnits: 1.0, wantConfidence: 0.8},
		{name: "zero units", unitsJSON: "0", confidenceJSON: "0.8", wantUnits: 1.0, wantConfidence: 0.8},
		{name: "string units", unitsJSON: `"12"`, confidenceJSON: "0.8", wantUnits: 12, wantConfidence: 0.8},
		{name: "garbage units", unitsJSON: `"doce"`, confidenceJSON: "0.8", wantUnits: 1.0, wantConfidence: 0.8},
		{name: "null units", unitsJSON: "null", confidenceJSON: "0.8", wantUnits: 1.0, wantConfidence: 0.8},
		{name: "confidence above one", unitsJSON: "1", confidenceJSON: "3.5", wantUnits: 1.0, wantConfidence: 1.0},
		{name: "negative confidence", unitsJSON: "1", confidenceJSON: "-0.2", wantUnits: 1.0, wantConfidence: 0.0},
		{name: "string confidence", unitsJSON: "1", confidenceJSON: `"0.75"`, wantUnits: 1.0, wantConfidence: 0.75},
		{name: "garbage confidence", unitsJSON: "1", confidenceJSON: `"high"`, wantUnits: 1.0, wantConfidence: 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := `{"category":"a","subcategory":"b","sub_sub_category":"c","standardized_unit":"Piezas","units_per_package":` +
				tt.unitsJSON + `,"confidence":` + tt.confidenceJSON + `}`
			raw, err := parseClassification(content)
			if err != nil {
				t.Fatalf("parseClassification failed: %v", err)
			}
			if raw.UnitsPerPackage != tt.wantUnits {
				t.Errorf("units_per_package = %v, want %v", raw.UnitsPerPackage, tt.wantUnits)
			}
			if raw.Confidence != tt.wantConfidence {
				t.Errorf("confidence = %v, want %v", raw.Confidence, tt.wantConfidence)
			}
		})
	}
}
