// Package store persists the marketplace state in SQLite.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/scooply/scooply/internal/logging"
)

// Store wraps the SQLite database holding products, images, carts, orders,
// profiles and merchants. A single writer connection is used; callers share
// the Store across goroutines.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// New initializes the SQLite database at the given path.
func New(path string) (*Store, error) {
	timer := logging.StartTimer(logging.CategoryStore, "store.New")
	defer timer.Stop()

	logging.Store("Initializing store at path: %s", path)

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			logging.Get(logging.CategoryStore).Error("Failed to create directory %s: %v", dir, err)
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to open database at %s: %v", path, err)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}
	// synchronous=NORMAL is safe with WAL and much faster than FULL.
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite synchronous=NORMAL: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		logging.StoreDebug("Failed to enable foreign keys: %v", err)
	}

	s := &Store{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to initialize schema: %v", err)
		db.Close()
		return nil, err
	}
	logging.StoreDebug("Database schema initialized")

	return s, nil
}

// initialize creates the required tables.
func (s *Store) initialize() error {
	productsTable := `
	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		merchant_id TEXT NOT NULL,
		title TEXT NOT NULL,
		category TEXT NOT NULL,
		price_inr INTEGER NOT NULL DEFAULT 0,
		description TEXT DEFAULT '',
		ai_description TEXT DEFAULT '',
		stock_qty INTEGER NOT NULL DEFAULT 0,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_products_merchant ON products(merchant_id);
	CREATE INDEX IF NOT EXISTS idx_products_category ON products(category);
	CREATE INDEX IF NOT EXISTS idx_products_active ON products(active);
	`

	imagesTable := `
	CREATE TABLE IF NOT EXISTS product_images (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL,
		thumbnail_url TEXT DEFAULT '',
		primary_image_url TEXT DEFAULT '',
		image_urls TEXT DEFAULT '[]',
		ai_metadata TEXT DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_images_product ON product_images(product_id);
	`

	cartsTable := `
	CREATE TABLE IF NOT EXISTS carts (
		id TEXT PRIMARY KEY,
		owner_key TEXT NOT NULL,
		owner_kind TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(owner_key, owner_kind)
	);
	CREATE INDEX IF NOT EXISTS idx_carts_owner ON carts(owner_key);
	`

	cartItemsTable := `
	CREATE TABLE IF NOT EXISTS cart_items (
		cart_id TEXT NOT NULL,
		product_id TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		unit_price_inr INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY(cart_id, product_id)
	);
	CREATE INDEX IF NOT EXISTS idx_cart_items_cart ON cart_items(cart_id);
	`

	ordersTable := `
	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		status TEXT NOT NULL,
		total_inr INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_orders_user ON orders(user_id);
	CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);
	`

	orderLinesTable := `
	CREATE TABLE IF NOT EXISTS order_lines (
		order_id TEXT NOT NULL,
		product_id TEXT NOT NULL,
		merchant_id TEXT NOT NULL,
		title TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		unit_price_inr INTEGER NOT NULL,
		line_total_inr INTEGER NOT NULL,
		PRIMARY KEY(order_id, product_id)
	);
	CREATE INDEX IF NOT EXISTS idx_order_lines_order ON order_lines(order_id);
	CREATE INDEX IF NOT EXISTS idx_order_lines_merchant ON order_lines(merchant_id);
	`

	profilesTable := `
	CREATE TABLE IF NOT EXISTS profiles (
		user_id TEXT PRIMARY KEY,
		display_name TEXT DEFAULT '',
		phone TEXT DEFAULT '',
		address_line TEXT DEFAULT '',
		city TEXT DEFAULT '',
		pincode TEXT DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`

	merchantsTable := `
	CREATE TABLE IF NOT EXISTS merchants (
		user_id TEXT PRIMARY KEY,
		shop_name TEXT DEFAULT '',
		description TEXT DEFAULT '',
		city TEXT DEFAULT '',
		verified BOOLEAN NOT NULL DEFAULT FALSE,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`

	embeddingsTable := `
	CREATE TABLE IF NOT EXISTS product_embeddings (
		product_id TEXT PRIMARY KEY,
		embedding TEXT NOT NULL,
		model TEXT DEFAULT '',
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`

	for _, table := range []string{
		productsTable,
		imagesTable,
		cartsTable,
		cartItemsTable,
		ordersTable,
		orderLinesTable,
		profilesTable,
		merchantsTable,
		embeddingsTable,
	} {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	// Run schema migrations for existing databases (adds missing columns)
	if err := RunMigrations(s.db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	logging.Store("Closing store database connection")
	return s.db.Close()
}

// DB returns the underlying SQL database connection.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Stats returns row counts per table.
func (s *Store) Stats() (map[string]int64, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Stats")
	defer timer.Stop()

	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]int64)
	tables := []string{"products", "product_images", "carts", "cart_items", "orders", "order_lines", "profiles", "merchants", "product_embeddings"}

	for _, table := range tables {
		var count int64
		err := s.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count)
		if err != nil {
			logging.StoreDebug("Table %s count failed (may not exist): %v", table, err)
			continue
		}
		stats[table] = count
	}

	return stats, nil
}
