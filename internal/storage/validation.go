package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/facturaflow/facturaflow/internal/model"
)

// Validation errors.
var (
	ErrNilContext            = errors.New("context cannot be nil")
	ErrEmptyString           = errors.New("string parameter cannot be empty")
	ErrNilParameter          = errors.New("parameter cannot be nil")
	ErrInvalidDateRange      = errors.New("start date must be before end date")
	ErrInvalidClassification = errors.New("invalid classification")
	ErrInvalidSKU            = errors.New("invalid approved SKU")
	ErrInvalidOrder          = errors.New("invalid sales order")
	ErrInvalidIssue          = errors.New("invalid quality issue")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateSKU validates an approved SKU record.
func validateSKU(sku *model.ApprovedSKU) error {
	if sku == nil {
		return fmt.Errorf("%w: sku", ErrNilParameter)
	}
	if sku.SKUKey == "" {
		return fmt.Errorf("%w: missing SKU key", ErrInvalidSKU)
	}
	if sku.Category == "" || sku.Subcategory == "" || sku.SubSubCategory == "" {
		return fmt.Errorf("%w: incomplete taxonomy path", ErrInvalidSKU)
	}
	if sku.StandardizedUnit == "" {
		return fmt.Errorf("%w: missing standardized unit", ErrInvalidSKU)
	}
	return nil
}

// validateClassification validates a classification record.
func validateClassification(c *model.Classification) error {
	if c == nil {
		return fmt.Errorf("%w: classification", ErrNilParameter)
	}
	if c.SKUKey == "" {
		return fmt.Errorf("%w: missing SKU key", ErrInvalidClassification)
	}
	if c.Category == "" || c.Subcategory == "" || c.SubSubCategory == "" {
		return fmt.Errorf("%w: incomplete taxonomy path", ErrInvalidClassification)
	}
	if c.Confidence < 0 || c.Confidence > 1 {
		return fmt.Errorf("%w: confidence out of range", ErrInvalidClassification)
	}
	return nil
}

// validateOrder validates a sales order.
func validateOrder(order *model.SalesOrder) error {
	if order == nil {
		return fmt.Errorf("%w: order", ErrNilParameter)
	}
	if order.FolioCuenta == "" {
		return fmt.Errorf("%w: missing folio_cuenta", ErrInvalidOrder)
	}
	if order.ProcessingDate.IsZero() {
		return fmt.Errorf("%w: missing processing date", ErrInvalidOrder)
	}
	if order.Status == "" {
		return fmt.Errorf("%w: missing validation status", ErrInvalidOrder)
	}
	return nil
}

// validateIssue validates a quality issue.
func validateIssue(issue *model.QualityIssue) error {
	if issue == nil {
		return fmt.Errorf("%w: issue", ErrNilParameter)
	}
	if issue.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidIssue)
	}
	if issue.Type == "" {
		return fmt.Errorf("%w: missing issue type", ErrInvalidIssue)
	}
	if issue.Severity == "" {
		return fmt.Errorf("%w: missing severity", ErrInvalidIssue)
	}
	return nil
}
