package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/scooply/scooply/internal/ai"
	"github.com/scooply/scooply/internal/config"
	"github.com/scooply/scooply/internal/store"
)

// runAnalyzeImage analyzes a single image and prints the structured result.
func runAnalyzeImage(cmd *cobra.Command, args []string) error {
	imageID, _ := cmd.Flags().GetString("image-id")
	imageURL, _ := cmd.Flags().GetString("url")
	if imageID == "" && imageURL == "" {
		return fmt.Errorf("either --image-id or --url is required")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.AI.APIKey == "" {
		return fmt.Errorf("no Gemini API key configured (set GEMINI_API_KEY or ai.api_key)")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0755); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	st, err := store.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	client, err := ai.NewGenAIClient(ctx, cfg.AI.APIKey, cfg.AI.Model, cfg.AI.EmbeddingModel)
	if err != nil {
		return err
	}
	defer client.Close()

	analyzer := ai.NewAnalyzer(st, client, cfg.GetDownloadTimeout())

	logger.Info("Analyzing image",
		zap.String("image_id", imageID),
		zap.String("url", imageURL))
	result, err := analyzer.Analyze(ctx, imageID, imageURL)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	if imageID != "" {
		fmt.Println("Analysis persisted to the product image record.")
	}
	return nil
}
