package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Price types emitted by the marketplace price guide.
const (
	PriceLow    = "low"
	PriceAvg    = "avg"
	PriceHigh   = "high"
	PriceMarket = "market"
)

// Card conditions, best to worst.
const (
	ConditionNM = "NM"
	ConditionLP = "LP"
	ConditionMP = "MP"
	ConditionHP = "HP"
	ConditionPO = "PO"
)

// CardPrice is one price observation. At most one row exists per
// (card_id, price_type, condition, foil).
type CardPrice struct {
	bun.BaseModel `bun:"table:card_prices,alias:cp"`

	ID                int64     `bun:"id,pk,autoincrement" json:"id"`
	CardID            int64     `bun:"card_id,notnull,unique:card_prices_no_dupes" json:"cardId"`
	CardmarketID      int64     `bun:"cardmarket_id,notnull" json:"cardmarketId"`
	PriceType         string    `bun:"price_type,notnull,unique:card_prices_no_dupes" json:"priceType"`
	Condition         string    `bun:"condition,notnull,unique:card_prices_no_dupes" json:"condition"`
	Foil              bool      `bun:"foil,notnull,unique:card_prices_no_dupes" json:"foil"`
	Price             float64   `bun:"price,notnull,type:numeric(10,2)" json:"price"`
	Currency          string    `bun:"currency,notnull" json:"currency"`
	AvailableQuantity *int      `bun:"available_quantity" json:"availableQuantity,omitempty"`
	PriceUpdatedAt    time.Time `bun:"price_updated_at,notnull" json:"priceUpdatedAt"`
}
