// ledger-rebuild recomputes stock summaries and product stock levels from
// the inventory movement ledger. Run it after manual data repairs or when
// summaries are suspected to have drifted from the ledger.
//
// Usage:
//
//	go run ./cmd/ledger-rebuild -business-id=a195a02a-ee0c-4047-a6f4-443633d0aca4
//
// Without -business-id it rebuilds every business in the database.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"bitbucket.org/mmdatafocus/resto_backend/config"
	"bitbucket.org/mmdatafocus/resto_backend/models"
	"bitbucket.org/mmdatafocus/resto_backend/utils"
)

func main() {
	businessID := flag.String("business-id", "", "Optional: rebuild only one business (uuid string). If empty, rebuilds all businesses.")
	continueOnError := flag.Bool("continue-on-error", false, "Continue with the next business when one fails")
	flag.Parse()

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}

	ctx = utils.SetUserIdInContext(ctx, 0)
	ctx = utils.SetUserNameInContext(ctx, "LedgerRebuild")
	ctx = context.WithValue(ctx, utils.ContextKeySkipTenantScope, true)

	var businesses []models.Business
	bizQuery := db.WithContext(ctx).Model(&models.Business{}).Select("id")
	if strings.TrimSpace(*businessID) != "" {
		bizQuery = bizQuery.Where("id = ?", strings.TrimSpace(*businessID))
	}
	if err := bizQuery.Find(&businesses).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to list businesses: %v\n", err)
		os.Exit(1)
	}
	if len(businesses) == 0 {
		fmt.Fprintln(os.Stderr, "no businesses found to rebuild")
		return
	}

	failed := 0
	for _, b := range businesses {
		bid := b.ID.String()
		bizCtx := utils.SetBusinessIdInContext(ctx, bid)

		count, err := models.RebuildStockSummaries(bizCtx, bid)
		if err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "business %s: rebuild failed: %v\n", bid, err)
			if !*continueOnError {
				os.Exit(1)
			}
			continue
		}
		fmt.Printf("business %s: rebuilt summaries for %d products\n", bid, count)
	}

	if failed > 0 {
		os.Exit(1)
	}
}
