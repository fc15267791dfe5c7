package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/scooply/scooply/internal/config"
	"github.com/scooply/scooply/internal/store"
	"github.com/scooply/scooply/internal/types"
)

// seedMerchantID is the fixed user ID of the demo merchant. Fixed IDs keep
// the seed idempotent.
const seedMerchantID = "00000000-0000-4000-8000-00000000c001"

var seedProducts = []types.Product{
	{
		ID:          "00000000-0000-4000-8000-0000000000a1",
		Title:       "Alphonso Mango Scoop",
		Category:    types.CategoryIceCream,
		PriceINR:    120,
		Description: "Single-origin Ratnagiri alphonso, churned daily.",
		StockQty:    40,
	},
	{
		ID:          "00000000-0000-4000-8000-0000000000a2",
		Title:       "Saffron Pista Kulfi",
		Category:    types.CategoryFrozenDessert,
		PriceINR:    90,
		Description: "Slow-reduced milk kulfi with Kashmiri saffron and toasted pistachio.",
		StockQty:    60,
	},
	{
		ID:          "00000000-0000-4000-8000-0000000000a3",
		Title:       "Dark Chocolate Sorbet",
		Category:    types.CategorySorbet,
		PriceINR:    150,
		Description: "70% dark chocolate sorbet, dairy free.",
		StockQty:    25,
	},
	{
		ID:          "00000000-0000-4000-8000-0000000000a4",
		Title:       "Filter Coffee Gelato",
		Category:    types.CategoryGelato,
		PriceINR:    140,
		Description: "Madras filter coffee decoction folded into a silky gelato base.",
		StockQty:    30,
	},
	{
		ID:          "00000000-0000-4000-8000-0000000000a5",
		Title:       "Tender Coconut Ice Cream",
		Category:    types.CategoryIceCream,
		PriceINR:    110,
		Description: "Fresh tender coconut pulp, no artificial flavour.",
		StockQty:    3,
	},
}

// runSeed inserts the demo merchant and catalog. Existing rows are updated
// in place so the command can run repeatedly.
func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0755); err != nil {
		return err
	}

	st, err := store.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	merchant := &types.Merchant{
		UserID:      seedMerchantID,
		ShopName:    "Polar Peak Creamery",
		Description: "Small-batch ice cream from a family dairy.",
		City:        "Pune",
	}
	if err := st.UpsertMerchant(merchant); err != nil {
		return fmt.Errorf("seed merchant: %w", err)
	}
	if err := st.SetMerchantVerified(seedMerchantID, true); err != nil {
		return fmt.Errorf("verify seed merchant: %w", err)
	}

	created, updated := 0, 0
	for i := range seedProducts {
		p := seedProducts[i]
		p.MerchantID = seedMerchantID
		p.Active = true

		_, err := st.GetProduct(p.ID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			if err := st.CreateProduct(&p); err != nil {
				return fmt.Errorf("seed product %q: %w", p.Title, err)
			}
			created++
		case err != nil:
			return err
		default:
			if err := st.UpdateProduct(&p); err != nil {
				return fmt.Errorf("reseed product %q: %w", p.Title, err)
			}
			updated++
		}
	}

	logger.Info("Seed complete",
		zap.String("merchant", merchant.ShopName),
		zap.Int("created", created),
		zap.Int("updated", updated))
	fmt.Printf("Seeded %s with %d new and %d updated products\n", merchant.ShopName, created, updated)
	return nil
}
