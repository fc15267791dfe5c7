package store

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/scooply/scooply/internal/types"
)

func TestProductImageCRUD(t *testing.T) {
	s := newTestStore(t)
	p := seedProduct(t, s, "m1", 100, 5)

	img := &types.ProductImage{
		ID:              uuid.NewString(),
		ProductID:       p.ID,
		ThumbnailURL:    "http://cdn.example/thumb.jpg",
		PrimaryImageURL: "http://cdn.example/main.jpg",
		ImageURLs:       []string{"http://cdn.example/a.jpg", "http://cdn.example/b.jpg"},
	}
	if err := s.CreateProductImage(img); err != nil {
		t.Fatalf("CreateProductImage failed: %v", err)
	}

	got, err := s.GetProductImage(img.ID)
	if err != nil {
		t.Fatalf("GetProductImage failed: %v", err)
	}
	if got.ThumbnailURL != img.ThumbnailURL {
		t.Errorf("Expected thumbnail %q, got %q", img.ThumbnailURL, got.ThumbnailURL)
	}
	if diff := cmp.Diff(img.ImageURLs, got.ImageURLs); diff != "" {
		t.Errorf("Image URLs mismatch (-want +got):\n%s", diff)
	}

	images, err := s.ListProductImages(p.ID)
	if err != nil {
		t.Fatalf("ListProductImages failed: %v", err)
	}
	if len(images) != 1 {
		t.Errorf("Expected 1 image, got %d", len(images))
	}

	if err := s.DeleteProductImage(img.ID); err != nil {
		t.Fatalf("DeleteProductImage failed: %v", err)
	}
	if _, err := s.GetProductImage(img.ID); err != ErrNotFound {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}

func TestUpdateAIMetadata(t *testing.T) {
	s := newTestStore(t)
	p := seedProduct(t, s, "m1", 100, 5)

	img := &types.ProductImage{ID: uuid.NewString(), ProductID: p.ID, PrimaryImageURL: "http://cdn.example/main.jpg"}
	if err := s.CreateProductImage(img); err != nil {
		t.Fatalf("CreateProductImage failed: %v", err)
	}

	meta := `{"title":"Mango Kulfi Bar","category":"popsicle","price_inr":45,"description":"Dense saffron-kissed kulfi."}`
	if err := s.UpdateAIMetadata(img.ID, meta); err != nil {
		t.Fatalf("UpdateAIMetadata failed: %v", err)
	}

	got, _ := s.GetProductImage(img.ID)
	if got.AIMetadata != meta {
		t.Errorf("Expected metadata persisted, got %q", got.AIMetadata)
	}
	if !got.UpdatedAt.After(got.CreatedAt) && !got.UpdatedAt.Equal(got.CreatedAt) {
		t.Error("Expected updated_at bumped")
	}

	if err := s.UpdateAIMetadata(uuid.NewString(), meta); err != ErrNotFound {
		t.Errorf("Expected ErrNotFound for unknown image, got %v", err)
	}
}
