package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Rarities accepted by the catalog. Unrecognized source values are stored as given.
const (
	RarityCommon   = "common"
	RarityUncommon = "uncommon"
	RarityRare     = "rare"
	RarityMythic   = "mythic"
)

// Card is one physical printing. (name, set_code, collector_number) is the natural identity.
type Card struct {
	bun.BaseModel `bun:"table:cards,alias:cd"`

	ID              int64    `bun:"id,pk,autoincrement" json:"id"`
	Name            string   `bun:"name,notnull,unique:cards_identity" json:"name"`
	SetCode         string   `bun:"set_code,notnull,unique:cards_identity" json:"setCode"`
	CollectorNumber string   `bun:"collector_number,notnull,unique:cards_identity" json:"collectorNumber"`
	CardmarketID    *int64   `bun:"cardmarket_id,unique" json:"cardmarketId,omitempty"`
	SetName         *string  `bun:"set_name" json:"setName,omitempty"`
	TypeLine        *string  `bun:"type_line" json:"typeLine,omitempty"`
	OracleText      *string  `bun:"oracle_text" json:"oracleText,omitempty"`
	ManaCost        *string  `bun:"mana_cost" json:"manaCost,omitempty"`
	CMC             *float64 `bun:"cmc" json:"cmc,omitempty"`
	Power           *string  `bun:"power" json:"power,omitempty"`
	Toughness       *string  `bun:"toughness" json:"toughness,omitempty"`
	Loyalty         *string  `bun:"loyalty" json:"loyalty,omitempty"`
	Colors          []string `bun:"colors,type:jsonb" json:"colors"`
	ColorIdentity   []string `bun:"color_identity,type:jsonb" json:"colorIdentity"`
	Keywords        []string `bun:"keywords,type:jsonb" json:"keywords"`
	Rarity          string   `bun:"rarity,notnull" json:"rarity"`
	Layout          string   `bun:"layout,notnull" json:"layout"`
	Artist          *string  `bun:"artist" json:"artist,omitempty"`
	FlavorText      *string  `bun:"flavor_text" json:"flavorText,omitempty"`
	Frame           *string  `bun:"frame" json:"frame,omitempty"`
	BorderColor     *string  `bun:"border_color" json:"borderColor,omitempty"`

	Reserved       bool `bun:"reserved,notnull" json:"reserved"`
	Foil           bool `bun:"foil,notnull" json:"foil"`
	NonFoil        bool `bun:"nonfoil,notnull" json:"nonfoil"`
	FullArt        bool `bun:"full_art,notnull" json:"fullArt"`
	Textless       bool `bun:"textless,notnull" json:"textless"`
	Oversized      bool `bun:"oversized,notnull" json:"oversized"`
	Promo          bool `bun:"promo,notnull" json:"promo"`
	Reprint        bool `bun:"reprint,notnull" json:"reprint"`
	Variation      bool `bun:"variation,notnull" json:"variation"`
	Booster        bool `bun:"booster,notnull" json:"booster"`
	StorySpotlight bool `bun:"story_spotlight,notnull" json:"storySpotlight"`

	Legalities   map[string]any `bun:"legalities,type:jsonb" json:"legalities"`
	Identifiers  map[string]any `bun:"identifiers,type:jsonb" json:"identifiers"`
	ImageURIs    map[string]any `bun:"image_uris,type:jsonb" json:"imageUris,omitempty"`
	CardFaces    []any          `bun:"card_faces,type:jsonb" json:"cardFaces,omitempty"`
	RelatedURIs  map[string]any `bun:"related_uris,type:jsonb" json:"relatedUris,omitempty"`
	PurchaseURIs map[string]any `bun:"purchase_uris,type:jsonb" json:"purchaseUris,omitempty"`
	RawData      map[string]any `bun:"raw_data,type:jsonb" json:"-"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`

	Prices []*CardPrice `bun:"rel:has-many,join:id=card_id" json:"prices,omitempty"`
}

// HasImages reports whether the printing carries at least one image URI.
func (c *Card) HasImages() bool {
	return len(c.ImageURIs) > 0
}
