package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/scooply/scooply/internal/logging"
	"github.com/scooply/scooply/internal/types"
)

// CreateProductImage inserts a product_images row.
func (s *Store) CreateProductImage(img *types.ProductImage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	logging.StoreDebug("Creating product image: id=%s product=%s", img.ID, img.ProductID)

	urls, err := json.Marshal(img.ImageURLs)
	if err != nil {
		return fmt.Errorf("marshal image urls: %w", err)
	}

	now := time.Now().UTC()
	img.CreatedAt = now
	img.UpdatedAt = now

	_, err = s.db.Exec(
		`INSERT INTO product_images (id, product_id, thumbnail_url, primary_image_url, image_urls, ai_metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		img.ID, img.ProductID, img.ThumbnailURL, img.PrimaryImageURL, string(urls), img.AIMetadata, img.CreatedAt, img.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create product image: %w", err)
	}
	return nil
}

func scanProductImage(row interface{ Scan(...interface{}) error }) (*types.ProductImage, error) {
	var img types.ProductImage
	var urls string
	err := row.Scan(&img.ID, &img.ProductID, &img.ThumbnailURL, &img.PrimaryImageURL,
		&urls, &img.AIMetadata, &img.CreatedAt, &img.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if urls != "" {
		if err := json.Unmarshal([]byte(urls), &img.ImageURLs); err != nil {
			logging.StoreDebug("Malformed image_urls for %s: %v", img.ID, err)
		}
	}
	return &img, nil
}

const imageColumns = `id, product_id, thumbnail_url, primary_image_url, image_urls, ai_metadata, created_at, updated_at`

// GetProductImage loads a single product_images row by ID.
func (s *Store) GetProductImage(id string) (*types.ProductImage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`SELECT `+imageColumns+` FROM product_images WHERE id = ?`, id)
	img, err := scanProductImage(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get product image: %w", err)
	}
	return img, nil
}

// ListProductImages returns all image rows for a product, oldest first.
func (s *Store) ListProductImages(productID string) ([]*types.ProductImage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT `+imageColumns+` FROM product_images WHERE product_id = ? ORDER BY created_at ASC, id ASC`,
		productID,
	)
	if err != nil {
		return nil, fmt.Errorf("list product images: %w", err)
	}
	defer rows.Close()

	var images []*types.ProductImage
	for rows.Next() {
		img, err := scanProductImage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product image: %w", err)
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

// UpdateAIMetadata persists analyzer output onto an image row and bumps
// updated_at, mirroring the original analyzer's write path.
func (s *Store) UpdateAIMetadata(imageID, metadata string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	logging.StoreDebug("Updating ai_metadata for image %s (%d bytes)", imageID, len(metadata))

	res, err := s.db.Exec(
		`UPDATE product_images SET ai_metadata = ?, updated_at = ? WHERE id = ?`,
		metadata, time.Now().UTC(), imageID,
	)
	if err != nil {
		return fmt.Errorf("update ai_metadata: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteProductImage removes an image row.
func (s *Store) DeleteProductImage(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM product_images WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete product image: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
