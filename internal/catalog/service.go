// Package catalog serves the customer-facing product surface: listings,
// detail pages with images, and search.
package catalog

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/scooply/scooply/internal/logging"
	"github.com/scooply/scooply/internal/store"
	"github.com/scooply/scooply/internal/types"
)

// Embedder turns text into vectors for semantic search. Satisfied by
// ai.GenAIClient; nil disables the semantic path.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Name() string
}

// minSimilarity filters out semantic matches that are barely related to the
// query. Cosine similarity below this is noise.
const minSimilarity = 0.55

// reindexConcurrency bounds parallel embedding calls during a bulk reindex.
const reindexConcurrency = 4

// Service is the read-side catalog. Writes live in the merchant service.
type Service struct {
	store    *store.Store
	embedder Embedder
}

// New creates a catalog service. embedder may be nil; search then falls back
// to keyword matching only.
func New(st *store.Store, embedder Embedder) *Service {
	return &Service{store: st, embedder: embedder}
}

// Browse lists active products for customers. The filter's ActiveOnly flag
// is forced on; inactive products never reach a customer listing.
func (s *Service) Browse(f store.ProductFilter) ([]*types.Product, error) {
	if f.Category != "" && !types.ValidCategory(f.Category) {
		return nil, fmt.Errorf("unknown category %q", f.Category)
	}
	f.ActiveOnly = true
	return s.store.ListProducts(f)
}

// GetProduct returns a product with its image rows. Inactive products are
// still fetchable by ID (direct links keep working for order history).
func (s *Service) GetProduct(id string) (*types.Product, []*types.ProductImage, error) {
	p, err := s.store.GetProduct(id)
	if err != nil {
		return nil, nil, err
	}
	images, err := s.store.ListProductImages(id)
	if err != nil {
		return nil, nil, err
	}
	return p, images, nil
}

// Search finds active products for a query. When an embedder is configured,
// semantic hits over stored product embeddings rank ahead of keyword hits;
// keyword-only otherwise. Results are deduplicated, semantic order first.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]*types.Product, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty search query")
	}
	if limit <= 0 {
		limit = 20
	}

	keyword, err := s.store.ListProducts(store.ProductFilter{Query: query, ActiveOnly: true, Limit: limit})
	if err != nil {
		return nil, err
	}

	if s.embedder == nil {
		return keyword, nil
	}

	semantic, err := s.semanticSearch(ctx, query, limit)
	if err != nil {
		// Semantic search is best-effort; a flaky embedding backend must
		// not break the storefront search box.
		logging.Get(logging.CategoryCatalog).Warn("semantic search failed, keyword only: %v", err)
		return keyword, nil
	}

	seen := make(map[string]bool, len(semantic)+len(keyword))
	merged := make([]*types.Product, 0, limit)
	for _, p := range append(semantic, keyword...) {
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		merged = append(merged, p)
		if len(merged) == limit {
			break
		}
	}
	return merged, nil
}

// semanticSearch embeds the query and ranks stored product vectors by cosine
// similarity. The inventory is small enough for a full scan per query.
func (s *Service) semanticSearch(ctx context.Context, query string, limit int) ([]*types.Product, error) {
	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	stored, err := s.store.AllProductEmbeddings()
	if err != nil {
		return nil, err
	}

	type scored struct {
		productID string
		score     float64
	}
	ranked := make([]scored, 0, len(stored))
	for _, e := range stored {
		score := cosineSimilarity(queryVec, e.Embedding)
		if score >= minSimilarity {
			ranked = append(ranked, scored{productID: e.ProductID, score: score})
		}
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	products := make([]*types.Product, 0, limit)
	for _, r := range ranked {
		p, err := s.store.GetProduct(r.productID)
		if err == store.ErrNotFound {
			continue // embedding outlived its product
		}
		if err != nil {
			return nil, err
		}
		if !p.Active {
			continue
		}
		products = append(products, p)
		if len(products) == limit {
			break
		}
	}
	return products, nil
}

// ReindexProduct embeds a product's searchable text and stores the vector.
// Inactive products get their embedding dropped instead.
func (s *Service) ReindexProduct(ctx context.Context, productID string) error {
	if s.embedder == nil {
		return nil
	}

	p, err := s.store.GetProduct(productID)
	if err != nil {
		return err
	}
	if !p.Active {
		return s.store.DeleteProductEmbedding(productID)
	}

	vec, err := s.embedder.Embed(ctx, embeddingText(p))
	if err != nil {
		return fmt.Errorf("embed product %s: %w", productID, err)
	}
	if err := s.store.StoreProductEmbedding(productID, vec, s.embedder.Name()); err != nil {
		return err
	}
	logging.Get(logging.CategoryCatalog).Debug("reindexed product %s", productID)
	return nil
}

// ReindexMissing embeds every product that has no stored vector yet.
// Used at startup and by the seed command.
func (s *Service) ReindexMissing(ctx context.Context) (int, error) {
	if s.embedder == nil {
		return 0, nil
	}

	ids, err := s.store.ProductIDsMissingEmbeddings()
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(reindexConcurrency)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			return s.ReindexProduct(ctx, id)
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	logging.Get(logging.CategoryCatalog).Info("reindexed %d products", len(ids))
	return len(ids), nil
}

// embeddingText is the searchable description of a product. The AI
// description wins over the merchant's copy when present.
func embeddingText(p *types.Product) string {
	desc := p.Description
	if p.AIDescription != "" {
		desc = p.AIDescription
	}
	return strings.TrimSpace(p.Title + " " + p.Category + " " + desc)
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched or zero vectors score 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
