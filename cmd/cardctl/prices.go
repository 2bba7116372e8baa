package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/padraicbc/mtgvault/cache"
	"github.com/padraicbc/mtgvault/cardmarket"
	"github.com/padraicbc/mtgvault/catalog"
	"github.com/padraicbc/mtgvault/models"
)

var (
	flagPriceLimit int
	flagCardID     int64
)

var pricesCmd = &cobra.Command{
	Use:   "prices",
	Short: "Sync Cardmarket prices",
	Long: `Prices refreshes stored prices from the Cardmarket price guide for every card
that has a Cardmarket product id, or for a single card with --card-id.

Example:
  cardctl prices --limit 1000
  cardctl prices --card-id 42`,
	RunE: runPrices,
}

func init() {
	pricesCmd.Flags().IntVar(&flagPriceLimit, "limit", 0, "maximum number of cards to sync (0 = all)")
	pricesCmd.Flags().Int64Var(&flagCardID, "card-id", 0, "sync a single card")
}

func runPrices(cmd *cobra.Command, args []string) error {
	if !cfg.CardmarketConfigured() {
		return cardmarket.ErrAuthNotConfigured
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	cat := catalog.NewDB(bdb)
	cacheStore := cache.NewDB(bdb)
	if n, err := cacheStore.Purge(ctx); err != nil {
		logger.Warn("cache purge failed", zap.Error(err))
	} else if n > 0 {
		logger.Debug("expired cache entries purged", zap.Int64("count", n))
	}

	gate := cardmarket.NewGate(cacheStore, cfg.Cardmarket.DailyLimit, logger.Named("cardmarket"))
	client := cardmarket.NewClient(cfg.Cardmarket, gate, nil, logger.Named("cardmarket"))
	syncer := cardmarket.NewSyncer(client, cat, cfg.Cardmarket.RequestDelay, logger.Named("cardmarket"))

	var cards []models.Card
	if flagCardID > 0 {
		card, err := cat.Get(ctx, flagCardID)
		if err != nil {
			return fmt.Errorf("load card %d: %w", flagCardID, err)
		}
		cards = []models.Card{*card}
	} else {
		var err error
		if cards, err = cat.WithMarketplaceID(ctx, flagPriceLimit); err != nil {
			return err
		}
	}

	updated := syncer.SyncPricesBulk(ctx, cards)
	fmt.Fprintf(cmd.OutOrStdout(), "Updated prices for %d of %d cards.\n", updated, len(cards))
	return nil
}
