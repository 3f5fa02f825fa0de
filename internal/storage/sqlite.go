// Package storage provides the SQLite persistence layer for the
// facturaflow application.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/facturaflow/facturaflow/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// skuCacheTTL bounds how long approved SKUs are served from memory before
// re-reading the database.
const skuCacheTTL = 5 * time.Minute

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	cacheExpiry time.Time
	db          *sql.DB
	skuCache    map[string]*model.ApprovedSKU
	dbPath      string
	cacheMutex  sync.RWMutex
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{
		db:       db,
		dbPath:   dbPath,
		skuCache: make(map[string]*model.ApprovedSKU),
	}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// getCachedSKU retrieves an approved SKU from the in-memory cache.
func (s *SQLiteStorage) getCachedSKU(skuKey string) *model.ApprovedSKU {
	s.cacheMutex.RLock()

	if time.Now().After(s.cacheExpiry) {
		// Cache expired; upgrade to write lock and clear
		s.cacheMutex.RUnlock()
		s.cacheMutex.Lock()
		defer s.cacheMutex.Unlock()

		// Double-check after acquiring write lock
		if time.Now().After(s.cacheExpiry) {
			s.skuCache = make(map[string]*model.ApprovedSKU)
			s.cacheExpiry = time.Now().Add(skuCacheTTL)
			return nil
		}
		if sku, ok := s.skuCache[skuKey]; ok {
			copied := *sku
			return &copied
		}
		return nil
	}

	defer s.cacheMutex.RUnlock()
	if sku, ok := s.skuCache[skuKey]; ok {
		copied := *sku
		return &copied
	}
	return nil
}

// cacheSKU stores an approved SKU in the in-memory cache.
func (s *SQLiteStorage) cacheSKU(sku *model.ApprovedSKU) {
	s.cacheMutex.Lock()
	defer s.cacheMutex.Unlock()

	if time.Now().After(s.cacheExpiry) {
		s.skuCache = make(map[string]*model.ApprovedSKU)
		s.cacheExpiry = time.Now().Add(skuCacheTTL)
	}
	copied := *sku
	s.skuCache[sku.SKUKey] = &copied
}

// invalidateCachedSKU drops one entry from the in-memory cache.
func (s *SQLiteStorage) invalidateCachedSKU(skuKey string) {
	s.cacheMutex.Lock()
	defer s.cacheMutex.Unlock()
	delete(s.skuCache, skuKey)
}

// queryable is an interface satisfied by both *sql.DB and *sql.Tx.
type queryable interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}
