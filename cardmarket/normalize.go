package cardmarket

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/padraicbc/mtgvault/models"
)

// Currency of every marketplace price.
const Currency = "EUR"

// priceTypes in emission order: guide key and stored price type.
var priceTypes = []struct{ key, name string }{
	{"LOW", models.PriceLow},
	{"AVG", models.PriceAvg},
	{"HIGH", models.PriceHigh},
	{"MARKET", models.PriceMarket},
}

// Normalize flattens product.priceGuide.{LOW,AVG,HIGH,MARKET}.{SELL,SELLFOIL}
// into price records: SELL gives a non-foil record and SELLFOIL a foil one,
// both in NM condition. Missing, null or non-numeric entries are skipped
// rather than zeroed, each on its own. A present but empty priceGuide yields
// no records and no error. A non-empty priceGuide without any of the four
// price types, or any other shape, yields ErrNoPriceGuide.
//
// The returned records carry type, condition, foil, price and currency only.
func Normalize(body []byte) ([]models.CardPrice, error) {
	var resp struct {
		Product *struct {
			PriceGuide map[string]json.RawMessage `json:"priceGuide"`
		} `json:"product"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoPriceGuide, err)
	}
	if resp.Product == nil || resp.Product.PriceGuide == nil {
		return nil, ErrNoPriceGuide
	}

	guide := resp.Product.PriceGuide
	prices := []models.CardPrice{}
	recognized := false
	for _, pt := range priceTypes {
		raw, ok := guide[pt.key]
		if !ok {
			continue
		}
		recognized = true
		var sides map[string]json.RawMessage
		if err := json.Unmarshal(raw, &sides); err != nil {
			continue
		}
		for _, side := range []struct {
			key  string
			foil bool
		}{{"SELL", false}, {"SELLFOIL", true}} {
			v, ok := price(sides[side.key])
			if !ok {
				continue
			}
			prices = append(prices, models.CardPrice{
				PriceType: pt.name,
				Condition: models.ConditionNM,
				Foil:      side.foil,
				Price:     math.Round(v*100) / 100,
				Currency:  Currency,
			})
		}
	}
	if len(guide) > 0 && !recognized {
		return nil, fmt.Errorf("%w: no LOW, AVG, HIGH or MARKET entry", ErrNoPriceGuide)
	}
	return prices, nil
}

// price decodes one SELL/SELLFOIL value. Absent, null and non-numeric values
// report false.
func price(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var v *float64
	if err := json.Unmarshal(raw, &v); err != nil || v == nil {
		return 0, false
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0, false
	}
	return *v, true
}
