package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/scooply/scooply/internal/logging"
	"github.com/scooply/scooply/internal/types"
)

// ProductFilter narrows ListProducts results. Zero values mean "no filter".
type ProductFilter struct {
	Category   string
	MerchantID string
	Query      string
	ActiveOnly bool
	Limit      int
	Offset     int
}

const productColumns = `id, merchant_id, title, category, price_inr, description, ai_description, stock_qty, active, created_at, updated_at`

func scanProduct(row interface{ Scan(...interface{}) error }) (*types.Product, error) {
	var p types.Product
	err := row.Scan(&p.ID, &p.MerchantID, &p.Title, &p.Category, &p.PriceINR,
		&p.Description, &p.AIDescription, &p.StockQty, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateProduct inserts a new product.
func (s *Store) CreateProduct(p *types.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	logging.StoreDebug("Creating product: id=%s merchant=%s title=%q", p.ID, p.MerchantID, p.Title)

	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := s.db.Exec(
		`INSERT INTO products (id, merchant_id, title, category, price_inr, description, ai_description, stock_qty, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.MerchantID, p.Title, p.Category, p.PriceINR, p.Description, p.AIDescription, p.StockQty, p.Active, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to create product %s: %v", p.ID, err)
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

// GetProduct loads a single product by ID.
func (s *Store) GetProduct(id string) (*types.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	p, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// UpdateProduct updates mutable product fields. The caller owns merchant
// authorization checks.
func (s *Store) UpdateProduct(p *types.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	logging.StoreDebug("Updating product: id=%s", p.ID)

	p.UpdatedAt = time.Now().UTC()
	res, err := s.db.Exec(
		`UPDATE products SET title = ?, category = ?, price_inr = ?, description = ?, ai_description = ?, stock_qty = ?, active = ?, updated_at = ?
		 WHERE id = ?`,
		p.Title, p.Category, p.PriceINR, p.Description, p.AIDescription, p.StockQty, p.Active, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeactivateProduct soft-deletes a product. Inactive products never show up
// in customer listings but survive for order history.
func (s *Store) DeactivateProduct(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`UPDATE products SET active = FALSE, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("deactivate product: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetAIDescription copies an analyzer-generated description onto the product.
func (s *Store) SetAIDescription(id, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`UPDATE products SET ai_description = ?, updated_at = ? WHERE id = ?`,
		description, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("set ai description: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListProducts returns products matching the filter, newest first.
func (s *Store) ListProducts(f ProductFilter) ([]*types.Product, error) {
	timer := logging.StartTimer(logging.CategoryStore, "ListProducts")
	defer timer.Stop()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var conds []string
	var args []interface{}

	if f.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, f.Category)
	}
	if f.MerchantID != "" {
		conds = append(conds, "merchant_id = ?")
		args = append(args, f.MerchantID)
	}
	if f.Query != "" {
		conds = append(conds, "(title LIKE ? OR description LIKE ? OR ai_description LIKE ?)")
		like := "%" + f.Query + "%"
		args = append(args, like, like, like)
	}
	if f.ActiveOnly {
		conds = append(conds, "active = TRUE")
	}

	query := `SELECT ` + productColumns + ` FROM products`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, f.Offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []*types.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// =============================================================================
// PRODUCT EMBEDDINGS (semantic search support)
// =============================================================================

// StoreProductEmbedding upserts an embedding vector for a product.
func (s *Store) StoreProductEmbedding(productID string, embedding []float32, model string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("marshal embedding: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO product_embeddings (product_id, embedding, model, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(product_id) DO UPDATE SET embedding = excluded.embedding, model = excluded.model, updated_at = excluded.updated_at`,
		productID, string(data), model, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("store embedding: %w", err)
	}
	return nil
}

// DeleteProductEmbedding removes the embedding for a product.
func (s *Store) DeleteProductEmbedding(productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`DELETE FROM product_embeddings WHERE product_id = ?`, productID)
	if err != nil {
		return fmt.Errorf("delete embedding: %w", err)
	}
	return nil
}

// ProductEmbedding pairs a product ID with its stored vector.
type ProductEmbedding struct {
	ProductID string
	Embedding []float32
}

// AllProductEmbeddings loads every stored product embedding. The catalog is
// small enough (single shop inventory scale) that a full scan per search is
// fine.
func (s *Store) AllProductEmbeddings() ([]ProductEmbedding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT product_id, embedding FROM product_embeddings`)
	if err != nil {
		return nil, fmt.Errorf("load embeddings: %w", err)
	}
	defer rows.Close()

	var out []ProductEmbedding
	for rows.Next() {
		var pe ProductEmbedding
		var raw string
		if err := rows.Scan(&pe.ProductID, &raw); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &pe.Embedding); err != nil {
			logging.StoreDebug("Skipping malformed embedding for %s: %v", pe.ProductID, err)
			continue
		}
		out = append(out, pe)
	}
	return out, rows.Err()
}

// ProductIDsMissingEmbeddings returns active products without a stored
// embedding, used by the re-embed sweep.
func (s *Store) ProductIDsMissingEmbeddings() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT p.id FROM products p
		 LEFT JOIN product_embeddings e ON e.product_id = p.id
		 WHERE p.active = TRUE AND e.product_id IS NULL`,
	)
	if err != nil {
		return nil, fmt.Errorf("missing embeddings: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
