package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/scooply/scooply/internal/types"
)

// =============================================================================
// GOOGLE GENAI CLIENT
// =============================================================================

// analysisPrompt asks Gemini for the structured storefront payload. The
// response schema is pinned by the JSON response MIME type below.
const analysisPrompt = "You are assisting an ice-cream marketplace. Analyze this product photo " +
	"and provide: \n" +
	"1. A concise product title (<= 12 words).\n" +
	"2. Likely product category (ice cream, sorbet, frozen dessert, gelato, " +
	"popsicle, other).\n" +
	"3. Estimated price in INR (integer).\n" +
	"4. Tasting description (40-60 words).\n" +
	"Return JSON with keys: title, category, price_inr, description."

// GenAIClient talks to the Gemini API for both image analysis and text
// embeddings. A single client serves the analyzer and the catalog's
// semantic search.
type GenAIClient struct {
	client     *genai.Client
	model      string
	embedModel string
}

// NewGenAIClient creates a Gemini client.
func NewGenAIClient(ctx context.Context, apiKey, model, embedModel string) (*GenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	if embedModel == "" {
		embedModel = "gemini-embedding-001"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GenAIClient{
		client:     client,
		model:      model,
		embedModel: embedModel,
	}, nil
}

// GenerateAnalysis sends the image to Gemini and parses the structured JSON
// output. Returns the parsed payload plus the raw JSON for persistence.
func (c *GenAIClient) GenerateAnalysis(ctx context.Context, imageBytes []byte, mimeType string) (*types.Analysis, string, error) {
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(analysisPrompt),
			genai.NewPartFromBytes(imageBytes, mimeType),
		}, genai.RoleUser),
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.35),
		TopP:             genai.Ptr[float32](0.8),
		TopK:             genai.Ptr[float32](32),
	})
	if err != nil {
		return nil, "", fmt.Errorf("gemini generate failed: %w", err)
	}

	if len(resp.Candidates) == 0 {
		return nil, "", fmt.Errorf("gemini returned no candidates")
	}

	// Gemini returns zero or more parts; use the first text part that
	// parses as the expected payload.
	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return nil, "", fmt.Errorf("gemini candidate had no content")
	}
	for _, part := range candidate.Content.Parts {
		if part.Text == "" {
			continue
		}
		analysis, err := ParseAnalysis(part.Text)
		if err != nil {
			return nil, "", err
		}
		return analysis, part.Text, nil
	}

	return nil, "", fmt.Errorf("gemini candidate had no textual JSON content")
}

// ParseAnalysis decodes and normalizes a raw analysis payload. The category
// is lowercased and falls back to "other" when outside the storefront
// vocabulary.
func ParseAnalysis(raw string) (*types.Analysis, error) {
	var analysis types.Analysis
	if err := json.Unmarshal([]byte(raw), &analysis); err != nil {
		return nil, fmt.Errorf("gemini response is not valid JSON: %s", raw)
	}
	analysis.Category = strings.ToLower(strings.TrimSpace(analysis.Category))
	if !types.ValidCategory(analysis.Category) {
		analysis.Category = types.CategoryOther
	}
	return &analysis, nil
}

// Embed generates an embedding for a single text.
func (c *GenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	return embeddings[0], nil
}

// EmbedBatch generates embeddings for multiple texts in one call.
func (c *GenAIClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	result, err := c.client.Models.EmbedContent(ctx,
		c.embedModel,
		contents,
		&genai.EmbedContentConfig{
			TaskType: "SEMANTIC_SIMILARITY",
		},
	)
	if err != nil {
		return nil, fmt.Errorf("GenAI embed failed: %w", err)
	}

	embeddings := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		embeddings[i] = emb.Values
	}
	return embeddings, nil
}

// Name identifies the embedding model for storage alongside vectors.
func (c *GenAIClient) Name() string {
	return fmt.Sprintf("genai:%s", c.embedModel)
}

// Close closes the underlying GenAI client. The genai SDK client holds no
// resources that require explicit release, so this is a no-op.
func (c *GenAIClient) Close() error {
	return nil
}
