package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application
// expects. If the database cannot be migrated to this version, it's a fatal
// error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS approved_skus (
					sku_key TEXT PRIMARY KEY,
					description TEXT,
					category TEXT NOT NULL,
					subcategory TEXT NOT NULL,
					sub_sub_category TEXT NOT NULL,
					standardized_unit TEXT NOT NULL,
					package_type TEXT,
					units_per_package REAL DEFAULT 1,
					confidence REAL DEFAULT 1,
					usage_count INTEGER DEFAULT 0,
					approved_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					last_used DATETIME
				)`,
				`CREATE INDEX idx_approved_skus_category ON approved_skus(category)`,

				`CREATE TABLE IF NOT EXISTS classifications (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					sku_key TEXT NOT NULL,
					description TEXT,
					product_code TEXT,
					category TEXT NOT NULL,
					subcategory TEXT NOT NULL,
					sub_sub_category TEXT NOT NULL,
					standardized_unit TEXT NOT NULL,
					package_type TEXT,
					units_per_package REAL DEFAULT 1,
					conversion_factor REAL DEFAULT 1,
					confidence REAL DEFAULT 0,
					source TEXT NOT NULL,
					approval_status TEXT NOT NULL,
					reasoning TEXT,
					notes TEXT,
					classified_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_classifications_sku_key ON classifications(sku_key)`,
				`CREATE INDEX idx_classifications_classified_at ON classifications(classified_at)`,
				`CREATE INDEX idx_classifications_status ON classifications(approval_status)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Sales reconciliation tables",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS sales_orders (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					folio_cuenta TEXT NOT NULL,
					folio_comanda TEXT,
					fecha_apertura DATETIME,
					fecha_cierre DATETIME,
					processing_date DATE NOT NULL,
					comandas_total TEXT NOT NULL,
					ventas_total TEXT,
					net_sales TEXT,
					taxes TEXT,
					discounts TEXT,
					mesero TEXT,
					validation_status TEXT NOT NULL,
					duplicate_count INTEGER DEFAULT 1,
					last_processed DATETIME DEFAULT CURRENT_TIMESTAMP,
					UNIQUE(folio_cuenta, processing_date)
				)`,
				`CREATE INDEX idx_sales_orders_status ON sales_orders(validation_status)`,

				`CREATE TABLE IF NOT EXISTS sales_items (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					order_id INTEGER NOT NULL,
					folio_comanda TEXT,
					folio_cuenta TEXT,
					orden INTEGER,
					clave_producto TEXT,
					descripcion TEXT,
					cantidad TEXT,
					importe TEXT,
					descuento TEXT,
					fecha_apertura DATETIME,
					fecha_cierre DATETIME,
					fecha_captura DATETIME,
					mesero TEXT,
					processing_date DATE,
					duplicate_count INTEGER DEFAULT 1,
					FOREIGN KEY (order_id) REFERENCES sales_orders(id)
				)`,
				`CREATE INDEX idx_sales_items_order ON sales_items(order_id)`,

				`CREATE TABLE IF NOT EXISTS sales_quality_log (
					id TEXT PRIMARY KEY,
					issue_type TEXT NOT NULL,
					severity TEXT NOT NULL,
					description TEXT,
					source_file TEXT,
					folio TEXT,
					expected_value TEXT,
					actual_value TEXT,
					difference TEXT,
					processing_date DATE,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_quality_log_date ON sales_quality_log(processing_date)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Index quality log by issue type",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_quality_log_type ON sales_quality_log(issue_type)`)
			return err
		},
	},
}

// Migrate applies any pending schema migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	return nil
}
