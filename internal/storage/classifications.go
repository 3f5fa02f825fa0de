package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/facturaflow/facturaflow/internal/model"
)

// SaveClassification persists one classification result alongside the line
// item it was produced for.
func (s *SQLiteStorage) SaveClassification(ctx context.Context, item *model.LineItem, classification *model.Classification) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if item == nil {
		return fmt.Errorf("%w: item", ErrNilParameter)
	}
	if err := validateClassification(classification); err != nil {
		return err
	}

	if classification.ClassifiedAt.IsZero() {
		classification.ClassifiedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO classifications (sku_key, description, product_code,
			category, subcategory, sub_sub_category, standardized_unit,
			package_type, units_per_package, conversion_factor, confidence,
			source, approval_status, reasoning, notes, classified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, classification.SKUKey, item.Description, item.ProductCode,
		classification.Category, classification.Subcategory,
		classification.SubSubCategory, classification.StandardizedUnit,
		classification.PackageType, classification.UnitsPerPackage,
		classification.ConversionFactor, classification.Confidence,
		string(classification.Source), string(classification.ApprovalStatus),
		classification.Reasoning, classification.Notes,
		classification.ClassifiedAt)

	if err != nil {
		return fmt.Errorf("failed to save classification: %w", err)
	}
	return nil
}

// GetClassificationsByDateRange retrieves classifications made within the
// given period, oldest first.
func (s *SQLiteStorage) GetClassificationsByDateRange(ctx context.Context, start, end time.Time) ([]model.Classification, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if start.After(end) {
		return nil, ErrInvalidDateRange
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT sku_key, category, subcategory, sub_sub_category,
		       standardized_unit, package_type, units_per_package,
		       conversion_factor, confidence, source, approval_status,
		       reasoning, notes, classified_at
		FROM classifications
		WHERE classified_at BETWEEN ? AND ?
		ORDER BY classified_at
	`, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query classifications: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanClassifications(rows)
}

// GetPendingClassifications retrieves classifications awaiting human
// review, most recent first.
func (s *SQLiteStorage) GetPendingClassifications(ctx context.Context) ([]model.Classification, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT sku_key, category, subcategory, sub_sub_category,
		       standardized_unit, package_type, units_per_package,
		       conversion_factor, confidence, source, approval_status,
		       reasoning, notes, classified_at
		FROM classifications
		WHERE approval_status = ?
		ORDER BY classified_at DESC
	`, string(model.StatusPending))
	if err != nil {
		return nil, fmt.Errorf("failed to query pending classifications: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanClassifications(rows)
}

func scanClassifications(rows *sql.Rows) ([]model.Classification, error) {
	var classifications []model.Classification
	for rows.Next() {
		var c model.Classification
		var source, status string
		if err := rows.Scan(
			&c.SKUKey,
			&c.Category,
			&c.Subcategory,
			&c.SubSubCategory,
			&c.StandardizedUnit,
			&c.PackageType,
			&c.UnitsPerPackage,
			&c.ConversionFactor,
			&c.Confidence,
			&source,
			&status,
			&c.Reasoning,
			&c.Notes,
			&c.ClassifiedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan classification: %w", err)
		}
		c.Source = model.ClassificationSource(source)
		c.ApprovalStatus = model.ApprovalStatus(status)
		classifications = append(classifications, c)
	}
	return classifications, rows.Err()
}
