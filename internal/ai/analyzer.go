package ai

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/scooply/scooply/internal/logging"
	"github.com/scooply/scooply/internal/store"
	"github.com/scooply/scooply/internal/types"
)

// maxImageBytes caps how much of a remote image the analyzer will read.
const maxImageBytes = 16 << 20

// ContentGenerator produces the structured analysis payload for an image.
// Satisfied by GenAIClient; tests inject fakes.
type ContentGenerator interface {
	GenerateAnalysis(ctx context.Context, imageBytes []byte, mimeType string) (*types.Analysis, string, error)
}

// Analyzer runs Gemini image analysis over product photos. It can be pointed
// at a stored product image (persisting the result) or a raw URL (read-only).
type Analyzer struct {
	store  *store.Store
	gen    ContentGenerator
	client *http.Client
}

// NewAnalyzer creates an analyzer. downloadTimeout bounds the image fetch.
func NewAnalyzer(st *store.Store, gen ContentGenerator, downloadTimeout time.Duration) *Analyzer {
	if downloadTimeout <= 0 {
		downloadTimeout = 20 * time.Second
	}
	return &Analyzer{
		store: st,
		gen:   gen,
		client: &http.Client{
			Timeout: downloadTimeout,
		},
	}
}

// Result is the analyzer's output payload.
type Result struct {
	SourceImageURL string          `json:"source_image_url"`
	Analysis       *types.Analysis `json:"analysis"`
}

// SelectImageURL derives the preferred URL from a product image record,
// following thumbnail, then primary, then the first gallery image.
func SelectImageURL(img *types.ProductImage) (string, error) {
	if img.ThumbnailURL != "" {
		return img.ThumbnailURL, nil
	}
	if img.PrimaryImageURL != "" {
		return img.PrimaryImageURL, nil
	}
	if len(img.ImageURLs) > 0 {
		return img.ImageURLs[0], nil
	}
	return "", fmt.Errorf("no usable image URL found in product image record")
}

// Analyze runs the analysis pipeline. Exactly one of imageID and imageURL is
// required; when both are set the stored record's URL wins. Results for a
// stored image are written back to its ai_metadata column.
func (a *Analyzer) Analyze(ctx context.Context, imageID, imageURL string) (*Result, error) {
	derivedURL := imageURL

	if imageID != "" {
		record, err := a.store.GetProductImage(imageID)
		if err != nil {
			return nil, fmt.Errorf("lookup product image %s: %w", imageID, err)
		}
		derivedURL, err = SelectImageURL(record)
		if err != nil {
			return nil, err
		}
	}

	if derivedURL == "" {
		return nil, fmt.Errorf("no image URL provided or found")
	}

	logging.AIDebug("analyzing image url=%s image_id=%s", derivedURL, imageID)

	imageBytes, mimeType, err := a.download(ctx, derivedURL)
	if err != nil {
		logging.AuditFailure(logging.AuditAnalysisRun, "", imageID, err)
		return nil, err
	}

	analysis, raw, err := a.gen.GenerateAnalysis(ctx, imageBytes, mimeType)
	if err != nil {
		logging.AuditFailure(logging.AuditAnalysisRun, "", imageID, err)
		return nil, err
	}

	if imageID != "" {
		if err := a.store.UpdateAIMetadata(imageID, raw); err != nil {
			return nil, fmt.Errorf("persist ai metadata: %w", err)
		}
	}

	logging.AI("analysis complete image_id=%s title=%q category=%s", imageID, analysis.Title, analysis.Category)
	logging.AuditSuccess(logging.AuditAnalysisRun, "", imageID, derivedURL)

	return &Result{
		SourceImageURL: derivedURL,
		Analysis:       analysis,
	}, nil
}

// ApplyAnalysis copies a generated description onto the product. Nothing
// else on the product is touched.
func (a *Analyzer) ApplyAnalysis(productID string, analysis *types.Analysis) error {
	if analysis == nil || analysis.Description == "" {
		return fmt.Errorf("analysis has no description to apply")
	}
	if err := a.store.SetAIDescription(productID, analysis.Description); err != nil {
		return err
	}
	logging.AuditSuccess(logging.AuditAnalysisApplied, "", productID, "")
	return nil
}

// download fetches the image bytes and reports the served content type.
func (a *Analyzer) download(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build image request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download image: unexpected status %d from %s", resp.StatusCode, url)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, "", fmt.Errorf("read image body: %w", err)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("download image: empty body from %s", url)
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return data, mimeType, nil
}
