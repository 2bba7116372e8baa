package importer

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/padraicbc/mtgvault/models"
)

// Fallbacks for identity fields the source does not provide.
const (
	UnknownName    = "Unknown"
	UnknownSetCode = "UNK"
	DefaultLayout  = "normal"
)

// Raw is one decoded source record. Numbers are json.Number.
type Raw map[string]any

// Record is a raw printing queued for import. Name, when set, is the logical
// card name the source grouped the printing under and wins over the payload.
// Err marks a source entry that is not a printing object; the coordinator
// counts it as a failed record.
type Record struct {
	Name string
	Raw  Raw
	Err  error
}

// Map converts a raw record into catalog attributes. It never fails: every
// field falls back to a documented default or nil. Keys are tried in order,
// Scryfall-style first, then MTGJSON-style.
func Map(rec Record) *models.Card {
	raw := rec.Raw
	if raw == nil {
		raw = Raw{}
	}

	name := rec.Name
	if name == "" {
		name = deref(raw.str("name"))
	}
	if strings.TrimSpace(name) == "" {
		name = UnknownName
	}

	rarity := models.RarityCommon
	if r := raw.str("rarity"); r != nil && *r != "" {
		rarity = strings.ToLower(*r)
	}
	layout := DefaultLayout
	if l := raw.str("layout"); l != nil && *l != "" {
		layout = *l
	}

	return &models.Card{
		Name:            name,
		SetCode:         setCode(raw, UnknownSetCode),
		CollectorNumber: deref(raw.str("collector_number", "number")),
		CardmarketID:    cardmarketID(raw),
		SetName:         raw.str("set_name", "setName"),
		TypeLine:        raw.str("type_line", "type"),
		OracleText:      raw.str("oracle_text", "text"),
		ManaCost:        raw.str("mana_cost", "manaCost"),
		CMC:             raw.num("cmc", "convertedManaCost", "converted_mana_cost", "manaValue"),
		Power:           raw.str("power"),
		Toughness:       raw.str("toughness"),
		Loyalty:         raw.str("loyalty"),
		Colors:          raw.strs("colors"),
		ColorIdentity:   raw.strs("color_identity", "colorIdentity"),
		Keywords:        raw.strs("keywords"),
		Rarity:          rarity,
		Layout:          layout,
		Artist:          raw.str("artist"),
		FlavorText:      raw.str("flavor_text", "flavorText"),
		Frame:           raw.str("frame", "frameVersion"),
		BorderColor:     raw.str("border_color", "borderColor"),

		Reserved:       raw.flag(false, "reserved", "isReserved"),
		Foil:           raw.flag(false, "foil", "hasFoil"),
		NonFoil:        raw.flag(true, "nonfoil", "hasNonFoil"),
		FullArt:        raw.flag(false, "full_art", "isFullArt"),
		Textless:       raw.flag(false, "textless", "isTextless"),
		Oversized:      raw.flag(false, "oversized", "isOversized"),
		Promo:          raw.flag(false, "promo", "isPromo"),
		Reprint:        raw.flag(false, "reprint", "isReprint"),
		Variation:      raw.flag(false, "variation", "isVariation"),
		Booster:        booster(raw),
		StorySpotlight: raw.flag(false, "story_spotlight", "isStorySpotlight"),

		Legalities:   orEmpty(raw.obj("legalities")),
		Identifiers:  identifiers(raw),
		ImageURIs:    imageURIs(raw),
		CardFaces:    raw.list("card_faces", "cardFaces"),
		RelatedURIs:  raw.obj("related_uris", "relatedUris"),
		PurchaseURIs: raw.obj("purchase_uris", "purchaseUris"),
		RawData:      map[string]any(raw),
	}
}

func setCode(raw Raw, fallback string) string {
	if s := raw.str("set", "set_code", "setCode"); s != nil && *s != "" {
		return *s
	}
	return fallback
}

func cardmarketID(raw Raw) *int64 {
	return raw.id("cardmarket_id", "identifiers.cardmarketId", "identifiers.cardmarket_id")
}

// flatIdentifiers are Scryfall top-level keys folded into the identifier map.
var flatIdentifiers = map[string]string{
	"id":             "scryfallId",
	"oracle_id":      "scryfallOracleId",
	"uuid":           "mtgjsonId",
	"cardmarket_id":  "cardmarketId",
	"tcgplayer_id":   "tcgplayerProductId",
	"mtgo_id":        "mtgoId",
	"arena_id":       "mtgArenaId",
	"multiverse_ids": "multiverseIds",
}

func identifiers(raw Raw) map[string]any {
	out := map[string]any{}
	for k, v := range raw.obj("identifiers") {
		out[k] = v
	}
	for src, dst := range flatIdentifiers {
		if v, ok := raw.lookup(src); ok {
			if _, exists := out[dst]; !exists {
				out[dst] = v
			}
		}
	}
	return out
}

// imageURIs prefers the card-level image map and falls back to per-face
// images of double-faced cards, keyed face_<name>.
func imageURIs(raw Raw) map[string]any {
	if m := raw.obj("image_uris", "imageUris"); len(m) > 0 {
		return m
	}
	out := map[string]any{}
	for _, f := range raw.list("card_faces", "cardFaces") {
		face, ok := f.(map[string]any)
		if !ok {
			continue
		}
		uris := Raw(face).obj("image_uris", "imageUris")
		if len(uris) == 0 {
			continue
		}
		fname := deref(Raw(face).str("name"))
		if fname == "" {
			fname = "unknown"
		}
		out["face_"+fname] = uris
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func booster(raw Raw) bool {
	if v, ok := raw.lookup("booster"); ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	if v, ok := raw.lookup("boosterTypes"); ok {
		if l, ok := v.([]any); ok {
			return len(l) > 0
		}
	}
	return true
}

// lookup resolves a key; a dotted key walks nested objects. Explicit JSON
// nulls count as absent.
func (r Raw) lookup(key string) (any, bool) {
	var cur any = map[string]any(r)
	for _, part := range strings.Split(key, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}
	if cur == nil {
		return nil, false
	}
	return cur, true
}

func (r Raw) str(keys ...string) *string {
	for _, k := range keys {
		v, ok := r.lookup(k)
		if !ok {
			continue
		}
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case json.Number:
			s = t.String()
		case float64:
			s = strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			s = strconv.FormatBool(t)
		default:
			continue
		}
		return &s
	}
	return nil
}

func (r Raw) num(keys ...string) *float64 {
	for _, k := range keys {
		v, ok := r.lookup(k)
		if !ok {
			continue
		}
		var (
			f   float64
			err error
		)
		switch t := v.(type) {
		case json.Number:
			f, err = t.Float64()
		case float64:
			f = t
		case string:
			f, err = strconv.ParseFloat(strings.TrimSpace(t), 64)
		default:
			continue
		}
		if err != nil {
			continue
		}
		return &f
	}
	return nil
}

func (r Raw) id(keys ...string) *int64 {
	for _, k := range keys {
		v, ok := r.lookup(k)
		if !ok {
			continue
		}
		var s string
		switch t := v.(type) {
		case json.Number:
			s = t.String()
		case float64:
			s = strconv.FormatFloat(t, 'f', -1, 64)
		case string:
			s = strings.TrimSpace(t)
		default:
			continue
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n <= 0 {
			continue
		}
		return &n
	}
	return nil
}

func (r Raw) flag(def bool, keys ...string) bool {
	for _, k := range keys {
		v, ok := r.lookup(k)
		if !ok {
			continue
		}
		switch t := v.(type) {
		case bool:
			return t
		case string:
			if b, err := strconv.ParseBool(t); err == nil {
				return b
			}
		case json.Number:
			// tinyint columns of legacy rows
			if b, err := strconv.ParseBool(t.String()); err == nil {
				return b
			}
		}
	}
	return def
}

// strs returns a non-nil list of the string elements found under the first present key.
func (r Raw) strs(keys ...string) []string {
	for _, k := range keys {
		v, ok := r.lookup(k)
		if !ok {
			continue
		}
		switch t := v.(type) {
		case []any:
			out := make([]string, 0, len(t))
			for _, e := range t {
				if s, ok := e.(string); ok && s != "" {
					out = append(out, s)
				}
			}
			return out
		case string:
			// legacy rows store colors as "W,U"
			return splitList(t)
		}
	}
	return []string{}
}

func (r Raw) obj(keys ...string) map[string]any {
	for _, k := range keys {
		if v, ok := r.lookup(k); ok {
			if m, ok := v.(map[string]any); ok {
				return m
			}
		}
	}
	return nil
}

func (r Raw) list(keys ...string) []any {
	for _, k := range keys {
		if v, ok := r.lookup(k); ok {
			if l, ok := v.([]any); ok {
				return l
			}
		}
	}
	return nil
}

func splitList(s string) []string {
	out := []string{}
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
