package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose    bool
	configPath string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "scooply",
	Short: "scooply - ice-cream marketplace backend",
	Long: `scooply is the backend for an ice-cream marketplace.

It serves the customer storefront (catalog browsing, search, carts, orders),
the merchant dashboard (product CRUD, order fulfilment, stats) and the
Gemini-backed product image analyzer over a single REST API.

Authentication is delegated to the hosted platform; scooply only verifies
bearer tokens against it.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd, args)
	},
}

// serveCmd runs the HTTP API server
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the marketplace API server",
	Long: `Starts the REST API server.

On startup it opens the SQLite store, runs schema migrations, connects the
token verifier to the auth platform, and (when an API key is configured)
wires the Gemini analyzer and semantic search embedder. Products without a
stored embedding are reindexed in the background.`,
	RunE: runServe,
}

// migrateCmd applies schema migrations and exits
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database schema migrations and exit",
	RunE:  runMigrate,
}

// seedCmd loads demo data
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with a demo merchant and products",
	Long: `Inserts a verified demo merchant and a small ice-cream catalog.
Safe to run against an existing database; seeded rows use fixed IDs and
are upserted.`,
	RunE: runSeed,
}

// analyzeImageCmd runs the Gemini analyzer once from the command line
var analyzeImageCmd = &cobra.Command{
	Use:   "analyze-image",
	Short: "Analyze a product image with Gemini and print the result",
	Long: `Runs the product image analyzer outside the API server.

Exactly one of --image-id or --url is required. With --image-id the raw
analyzer output is also persisted onto the product image row, the same as
the POST /api/analyze endpoint does.

Example:
  scooply analyze-image --url https://example.com/kulfi.jpg
  scooply analyze-image --image-id 1b4e28ba-2fa1-11d2-883f-0016d3cca427`,
	RunE: runAnalyzeImage,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "scooply.yaml", "Path to the YAML config file")

	// Analyze-image flags
	analyzeImageCmd.Flags().String("image-id", "", "Product image ID to analyze (persists the result)")
	analyzeImageCmd.Flags().String("url", "", "Raw image URL to analyze (result is not persisted)")

	// Add commands to root
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(analyzeImageCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
