package cardmarket

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/padraicbc/mtgvault/logger"
	"github.com/padraicbc/mtgvault/models"
)

// PriceStore replaces a card's prices atomically.
type PriceStore interface {
	ReplacePrices(ctx context.Context, cardID int64, prices []models.CardPrice) error
}

// Syncer refreshes stored prices from the marketplace price guide.
type Syncer struct {
	client  *Client
	store   PriceStore
	limiter *rate.Limiter
	log     *zap.Logger
	now     func() time.Time
}

// NewSyncer returns a syncer that waits delay between marketplace requests
// during bulk sync.
func NewSyncer(client *Client, store PriceStore, delay time.Duration, log *zap.Logger) *Syncer {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &Syncer{
		client:  client,
		store:   store,
		limiter: rate.NewLimiter(limit, 1),
		log:     logger.OrNop(log),
		now:     time.Now,
	}
}

// SyncPrices replaces the stored prices of card with the current price guide.
// It returns false without a request when the card has no marketplace id,
// and false after logging on any fetch, parse or store failure.
func (s *Syncer) SyncPrices(ctx context.Context, card *models.Card) bool {
	if card == nil || card.CardmarketID == nil {
		return false
	}
	productID := *card.CardmarketID
	log := s.log.With(zap.Int64("card_id", card.ID), zap.Int64("cardmarket_id", productID))

	if !s.client.Configured() {
		log.Error("price sync skipped", zap.Error(ErrAuthNotConfigured))
		return false
	}

	body, err := s.client.PriceGuide(ctx, productID)
	if err != nil {
		if !errors.Is(err, ErrRateLimitExceeded) {
			log.Error("cardmarket price fetch failed", zap.Error(err))
		}
		return false
	}

	prices, err := Normalize(body)
	if err != nil {
		log.Error("cardmarket price guide unusable", zap.Error(err))
		return false
	}
	at := s.now().UTC()
	for i := range prices {
		prices[i].CardID = card.ID
		prices[i].CardmarketID = productID
		prices[i].PriceUpdatedAt = at
	}

	if err := s.store.ReplacePrices(ctx, card.ID, prices); err != nil {
		log.Error("storing prices failed", zap.Error(err))
		return false
	}
	log.Debug("prices synced", zap.Int("records", len(prices)))
	return true
}

// SyncPricesBulk syncs each card in turn, pacing marketplace requests, and
// returns how many cards were updated. It stops early when ctx is done.
func (s *Syncer) SyncPricesBulk(ctx context.Context, cards []models.Card) int {
	updated := 0
	for i := range cards {
		if cards[i].CardmarketID == nil {
			continue
		}
		if err := s.limiter.Wait(ctx); err != nil {
			s.log.Warn("bulk price sync stopped", zap.Int("updated", updated), zap.Error(err))
			break
		}
		if s.SyncPrices(ctx, &cards[i]) {
			updated++
		}
	}
	s.log.Info("bulk price sync finished", zap.Int("cards", len(cards)), zap.Int("updated", updated))
	return updated
}
