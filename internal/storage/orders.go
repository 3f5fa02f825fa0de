package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/facturaflow/facturaflow/internal/model"
)

// UpsertSalesOrder inserts a sales order or, if one already exists for the
// same (folio_cuenta, processing_date), bumps its duplicate count and
// backfills any null financial fields from the new data. Returns the order
// row ID and whether this was a duplicate.
func (s *SQLiteStorage) UpsertSalesOrder(ctx context.Context, order *model.SalesOrder) (int64, bool, error) {
	if err := validateContext(ctx); err != nil {
		return 0, false, err
	}
	if err := validateOrder(order); err != nil {
		return 0, false, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	processingDate := order.ProcessingDate.Format("2006-01-02")

	var existingID int64
	var existingVentas decimal.NullDecimal
	err = tx.QueryRowContext(ctx, `
		SELECT id, ventas_total FROM sales_orders
		WHERE folio_cuenta = ? AND processing_date = ?
	`, order.FolioCuenta, processingDate).Scan(&existingID, &existingVentas)

	switch {
	case err == sql.ErrNoRows:
		result, insErr := tx.ExecContext(ctx, `
			INSERT INTO sales_orders (folio_cuenta, folio_comanda,
				fecha_apertura, fecha_cierre, processing_date,
				comandas_total, ventas_total, net_sales, taxes, discounts,
				mesero, validation_status, duplicate_count, last_processed)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?)
		`, order.FolioCuenta, order.FolioComanda,
			nullableTimePtr(order.FechaApertura), nullableTimePtr(order.FechaCierre),
			processingDate, order.ComandasTotal.String(),
			nullableDecimal(order.VentasTotal), nullableDecimal(order.NetSales),
			nullableDecimal(order.Taxes), nullableDecimal(order.Discounts),
			order.Mesero, string(order.Status), time.Now())
		if insErr != nil {
			return 0, false, fmt.Errorf("failed to insert sales order: %w", insErr)
		}
		id, idErr := result.LastInsertId()
		if idErr != nil {
			return 0, false, fmt.Errorf("failed to get order ID: %w", idErr)
		}
		if commitErr := tx.Commit(); commitErr != nil {
			return 0, false, fmt.Errorf("failed to commit order insert: %w", commitErr)
		}
		return id, false, nil

	case err != nil:
		return 0, false, fmt.Errorf("failed to check existing order: %w", err)
	}

	// Duplicate: bump counter, backfill financials only if absent
	if !existingVentas.Valid && order.VentasTotal != nil {
		_, err = tx.ExecContext(ctx, `
			UPDATE sales_orders
			SET duplicate_count = duplicate_count + 1,
			    ventas_total = ?, net_sales = ?, taxes = ?, discounts = ?,
			    last_processed = ?
			WHERE id = ?
		`, nullableDecimal(order.VentasTotal), nullableDecimal(order.NetSales),
			nullableDecimal(order.Taxes), nullableDecimal(order.Discounts),
			time.Now(), existingID)
	} else {
		_, err = tx.ExecContext(ctx, `
			UPDATE sales_orders
			SET duplicate_count = duplicate_count + 1, last_processed = ?
			WHERE id = ?
		`, time.Now(), existingID)
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to update duplicate order: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("failed to commit order update: %w", err)
	}
	return existingID, true, nil
}

// SaveSalesItems persists the line items of one order. An item matching an
// existing row on (order, product, description, quantity, amount) bumps
// that row's duplicate count instead of inserting. Returns (saved,
// duplicated).
func (s *SQLiteStorage) SaveSalesItems(ctx context.Context, orderID int64, items []model.SalesItem) (int, int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, 0, err
	}
	if orderID <= 0 {
		return 0, 0, fmt.Errorf("%w: orderID", ErrNilParameter)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var saved, duplicated int
	for i := range items {
		item := &items[i]

		var existingID int64
		err := tx.QueryRowContext(ctx, `
			SELECT id FROM sales_items
			WHERE order_id = ? AND clave_producto = ? AND descripcion = ?
			  AND cantidad = ? AND importe = ?
		`, orderID, item.ClaveProducto, item.Descripcion,
			item.Cantidad.String(), item.Importe.String()).Scan(&existingID)

		switch {
		case err == sql.ErrNoRows:
			_, insErr := tx.ExecContext(ctx, `
				INSERT INTO sales_items (order_id, folio_comanda, folio_cuenta,
					orden, clave_producto, descripcion, cantidad, importe,
					descuento, fecha_apertura, fecha_cierre, fecha_captura,
					mesero, processing_date, duplicate_count)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
			`, orderID, item.FolioComanda, item.FolioCuenta, item.Orden,
				item.ClaveProducto, item.Descripcion,
				item.Cantidad.String(), item.Importe.String(), item.Descuento.String(),
				nullableTimePtr(item.FechaApertura), nullableTimePtr(item.FechaCierre),
				nullableTimePtr(item.FechaCaptura), item.Mesero,
				item.ProcessingDate.Format("2006-01-02"))
			if insErr != nil {
				return saved, duplicated, fmt.Errorf("failed to insert sales item: %w", insErr)
			}
			saved++
		case err != nil:
			return saved, duplicated, fmt.Errorf("failed to check existing item: %w", err)
		default:
			if _, updErr := tx.ExecContext(ctx, `
				UPDATE sales_items SET duplicate_count = duplicate_count + 1
				WHERE id = ?
			`, existingID); updErr != nil {
				return saved, duplicated, fmt.Errorf("failed to update duplicate item: %w", updErr)
			}
			duplicated++
		}
	}

	if err := tx.Commit(); err != nil {
		return saved, duplicated, fmt.Errorf("failed to commit sales items: %w", err)
	}
	return saved, duplicated, nil
}

// SaveQualityIssue appends one issue to the quality log.
func (s *SQLiteStorage) SaveQualityIssue(ctx context.Context, issue *model.QualityIssue) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateIssue(issue); err != nil {
		return err
	}

	if issue.CreatedAt.IsZero() {
		issue.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sales_quality_log (id, issue_type, severity, description,
			source_file, folio, expected_value, actual_value, difference,
			processing_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, issue.ID, string(issue.Type), string(issue.Severity),
		issue.Description, issue.SourceFile, issue.Folio,
		nullableDecimal(issue.ExpectedValue), nullableDecimal(issue.ActualValue),
		nullableDecimal(issue.Difference),
		issue.ProcessingDate.Format("2006-01-02"), issue.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to save quality issue: %w", err)
	}
	return nil
}

// GetQualityIssues retrieves the quality log for one processing date.
func (s *SQLiteStorage) GetQualityIssues(ctx context.Context, processingDate time.Time) ([]model.QualityIssue, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, issue_type, severity, description, source_file, folio,
		       expected_value, actual_value, difference, processing_date,
		       created_at
		FROM sales_quality_log
		WHERE processing_date = ?
		ORDER BY created_at
	`, processingDate.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("failed to query quality issues: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var issues []model.QualityIssue
	for rows.Next() {
		var issue model.QualityIssue
		var issueType, severity, dateStr string
		var expected, actual, difference decimal.NullDecimal
		if err := rows.Scan(
			&issue.ID,
			&issueType,
			&severity,
			&issue.Description,
			&issue.SourceFile,
			&issue.Folio,
			&expected,
			&actual,
			&difference,
			&dateStr,
			&issue.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan quality issue: %w", err)
		}
		issue.Type = model.IssueType(issueType)
		issue.Severity = model.IssueSeverity(severity)
		issue.ExpectedValue = fromNullDecimal(expected)
		issue.ActualValue = fromNullDecimal(actual)
		issue.Difference = fromNullDecimal(difference)
		if date, parseErr := time.Parse("2006-01-02", dateStr); parseErr == nil {
			issue.ProcessingDate = date
		}
		issues = append(issues, issue)
	}
	return issues, rows.Err()
}

// GetSalesOrder retrieves an order by its natural key.
func (s *SQLiteStorage) GetSalesOrder(ctx context.Context, folioCuenta string, processingDate time.Time) (*model.SalesOrder, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(folioCuenta, "folioCuenta"); err != nil {
		return nil, err
	}

	var order model.SalesOrder
	var status, dateStr string
	var comandasTotal string
	var ventas, net, taxes, discounts decimal.NullDecimal
	var apertura, cierre sql.NullTime

	err := s.db.QueryRowContext(ctx, `
		SELECT id, folio_cuenta, folio_comanda, fecha_apertura, fecha_cierre,
		       processing_date, comandas_total, ventas_total, net_sales,
		       taxes, discounts, mesero, validation_status, duplicate_count,
		       last_processed
		FROM sales_orders
		WHERE folio_cuenta = ? AND processing_date = ?
	`, folioCuenta, processingDate.Format("2006-01-02")).Scan(
		&order.ID,
		&order.FolioCuenta,
		&order.FolioComanda,
		&apertura,
		&cierre,
		&dateStr,
		&comandasTotal,
		&ventas,
		&net,
		&taxes,
		&discounts,
		&order.Mesero,
		&status,
		&order.DuplicateCount,
		&order.LastProcessed,
	)

	if err == sql.ErrNoRows {
		return nil, sql.ErrNoRows // Not an error, just not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sales order: %w", err)
	}

	order.Status = model.ValidationStatus(status)
	if total, parseErr := decimal.NewFromString(comandasTotal); parseErr == nil {
		order.ComandasTotal = total
	}
	order.VentasTotal = fromNullDecimal(ventas)
	order.NetSales = fromNullDecimal(net)
	order.Taxes = fromNullDecimal(taxes)
	order.Discounts = fromNullDecimal(discounts)
	if apertura.Valid {
		order.FechaApertura = &apertura.Time
	}
	if cierre.Valid {
		order.FechaCierre = &cierre.Time
	}
	if date, parseErr := time.Parse("2006-01-02", dateStr); parseErr == nil {
		order.ProcessingDate = date
	}
	return &order, nil
}

func nullableDecimal(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func fromNullDecimal(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	value := d.Decimal
	return &value
}

func nullableTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
