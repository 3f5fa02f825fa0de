package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/facturaflow/facturaflow/internal/model"
)

// GetApprovedSKU retrieves an approved SKU by its key.
func (s *SQLiteStorage) GetApprovedSKU(ctx context.Context, skuKey string) (*model.ApprovedSKU, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(skuKey, "skuKey"); err != nil {
		return nil, err
	}

	// Check cache first
	if sku := s.getCachedSKU(skuKey); sku != nil {
		return sku, nil
	}

	return s.getApprovedSKUTx(ctx, s.db, skuKey)
}

func (s *SQLiteStorage) getApprovedSKUTx(ctx context.Context, q queryable, skuKey string) (*model.ApprovedSKU, error) {
	var sku model.ApprovedSKU
	var lastUsed sql.NullTime

	err := q.QueryRowContext(ctx, `
		SELECT sku_key, description, category, subcategory, sub_sub_category,
		       standardized_unit, package_type, units_per_package, confidence,
		       usage_count, approved_at, last_used
		FROM approved_skus
		WHERE sku_key = ?
	`, skuKey).Scan(
		&sku.SKUKey,
		&sku.Description,
		&sku.Category,
		&sku.Subcategory,
		&sku.SubSubCategory,
		&sku.StandardizedUnit,
		&sku.PackageType,
		&sku.UnitsPerPackage,
		&sku.Confidence,
		&sku.UsageCount,
		&sku.ApprovedAt,
		&lastUsed,
	)

	if err == sql.ErrNoRows {
		return nil, sql.ErrNoRows // Not an error, just not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get approved SKU: %w", err)
	}

	if lastUsed.Valid {
		sku.LastUsed = lastUsed.Time
	}

	s.cacheSKU(&sku)
	return &sku, nil
}

// SaveApprovedSKU saves or updates an approved SKU record.
func (s *SQLiteStorage) SaveApprovedSKU(ctx context.Context, sku *model.ApprovedSKU) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateSKU(sku); err != nil {
		return err
	}

	if sku.ApprovedAt.IsZero() {
		sku.ApprovedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO approved_skus (sku_key, description, category, subcategory,
			sub_sub_category, standardized_unit, package_type, units_per_package,
			confidence, usage_count, approved_at, last_used)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(sku_key) DO UPDATE SET
			description = excluded.description,
			category = excluded.category,
			subcategory = excluded.subcategory,
			sub_sub_category = excluded.sub_sub_category,
			standardized_unit = excluded.standardized_unit,
			package_type = excluded.package_type,
			units_per_package = excluded.units_per_package,
			confidence = excluded.confidence
	`, sku.SKUKey, sku.Description, sku.Category, sku.Subcategory,
		sku.SubSubCategory, sku.StandardizedUnit, sku.PackageType,
		sku.UnitsPerPackage, sku.Confidence, sku.UsageCount,
		sku.ApprovedAt, nullableTime(sku.LastUsed))

	if err != nil {
		return fmt.Errorf("failed to save approved SKU: %w", err)
	}

	s.cacheSKU(sku)
	return nil
}

// IncrementSKUUsage bumps the usage counter and last-used timestamp for a
// SKU. Runs as a single UPDATE so concurrent increments never lose updates.
func (s *SQLiteStorage) IncrementSKUUsage(ctx context.Context, skuKey string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(skuKey, "skuKey"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE approved_skus
		SET usage_count = usage_count + 1, last_used = CURRENT_TIMESTAMP
		WHERE sku_key = ?
	`, skuKey)
	if err != nil {
		return fmt.Errorf("failed to increment SKU usage: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check SKU update: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}

	// Counters changed under the cache; drop the stale entry
	s.invalidateCachedSKU(skuKey)
	return nil
}

// GetAllApprovedSKUs retrieves every approved SKU, most used first.
func (s *SQLiteStorage) GetAllApprovedSKUs(ctx context.Context) ([]model.ApprovedSKU, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT sku_key, description, category, subcategory, sub_sub_category,
		       standardized_unit, package_type, units_per_package, confidence,
		       usage_count, approved_at, last_used
		FROM approved_skus
		ORDER BY usage_count DESC, sku_key
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query approved SKUs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var skus []model.ApprovedSKU
	for rows.Next() {
		var sku model.ApprovedSKU
		var lastUsed sql.NullTime
		if err := rows.Scan(
			&sku.SKUKey,
			&sku.Description,
			&sku.Category,
			&sku.Subcategory,
			&sku.SubSubCategory,
			&sku.StandardizedUnit,
			&sku.PackageType,
			&sku.UnitsPerPackage,
			&sku.Confidence,
			&sku.UsageCount,
			&sku.ApprovedAt,
			&lastUsed,
		); err != nil {
			return nil, fmt.Errorf("failed to scan approved SKU: %w", err)
		}
		if lastUsed.Valid {
			sku.LastUsed = lastUsed.Time
		}
		skus = append(skus, sku)
	}

	return skus, rows.Err()
}

// nullableTime converts a zero time to NULL.
func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
