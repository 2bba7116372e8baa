package catalog_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/padraicbc/mtgvault/catalog"
	"github.com/padraicbc/mtgvault/db"
	"github.com/padraicbc/mtgvault/models"
)

func newCatalog(t *testing.T) *catalog.DB {
	t.Helper()
	bdb, err := db.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = bdb.Close() })
	require.NoError(t, db.CreateTables(context.Background(), bdb))
	return catalog.NewDB(bdb)
}

func card(name, set, num string, cmID int64, colors ...string) *models.Card {
	c := &models.Card{
		Name:            name,
		SetCode:         set,
		CollectorNumber: num,
		Colors:          append([]string{}, colors...),
		ColorIdentity:   []string{},
		Keywords:        []string{},
		Rarity:          models.RarityCommon,
		Layout:          "normal",
		NonFoil:         true,
		Booster:         true,
		Legalities:      map[string]any{},
		Identifiers:     map[string]any{},
	}
	if cmID > 0 {
		c.CardmarketID = &cmID
	}
	return c
}

func price(typ string, foil bool, v float64) models.CardPrice {
	return models.CardPrice{
		PriceType:      typ,
		Condition:      models.ConditionNM,
		Foil:           foil,
		Price:          v,
		Currency:       "EUR",
		PriceUpdatedAt: time.Now().UTC(),
	}
}

func TestInsertAndFind(t *testing.T) {
	cat := newCatalog(t)
	ctx := context.Background()

	id, err := cat.Insert(ctx, card("Lightning Bolt", "lea", "161", 7218, "R"))
	require.NoError(t, err)
	assert.Positive(t, id)

	got, err := cat.FindByIdentity(ctx, "Lightning Bolt", "lea", "161")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, []string{"R"}, got.Colors)

	none, err := cat.FindByIdentity(ctx, "Lightning Bolt", "leb", "161")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestIdentityIsUnique(t *testing.T) {
	cat := newCatalog(t)
	ctx := context.Background()

	_, err := cat.Insert(ctx, card("Island", "lea", "288", 0))
	require.NoError(t, err)
	_, err = cat.Insert(ctx, card("Island", "lea", "288", 0))
	assert.Error(t, err)
}

func TestUpdateMissingCard(t *testing.T) {
	cat := newCatalog(t)
	err := cat.Update(context.Background(), 404, card("Ghost", "tst", "1", 0))
	assert.Error(t, err)
}

func TestReplacePricesRemovesOrphans(t *testing.T) {
	cat := newCatalog(t)
	ctx := context.Background()
	id, err := cat.Insert(ctx, card("Lightning Bolt", "lea", "161", 7218))
	require.NoError(t, err)

	require.NoError(t, cat.ReplacePrices(ctx, id, []models.CardPrice{
		price(models.PriceLow, false, 1),
		price(models.PriceAvg, false, 2),
		price(models.PriceLow, true, 3),
	}))
	prices, err := cat.Prices(ctx, id)
	require.NoError(t, err)
	require.Len(t, prices, 3)

	require.NoError(t, cat.ReplacePrices(ctx, id, []models.CardPrice{
		price(models.PriceAvg, false, 2.5),
	}))
	prices, err = cat.Prices(ctx, id)
	require.NoError(t, err)
	require.Len(t, prices, 1)
	assert.Equal(t, models.PriceAvg, prices[0].PriceType)
	assert.Equal(t, 2.5, prices[0].Price)
	assert.Equal(t, id, prices[0].CardID)

	require.NoError(t, cat.ReplacePrices(ctx, id, nil))
	prices, err = cat.Prices(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, prices)
}

func TestReplacePricesRejectsDuplicates(t *testing.T) {
	cat := newCatalog(t)
	ctx := context.Background()
	id, err := cat.Insert(ctx, card("Lightning Bolt", "lea", "161", 7218))
	require.NoError(t, err)
	require.NoError(t, cat.ReplacePrices(ctx, id, []models.CardPrice{price(models.PriceLow, false, 1)}))

	err = cat.ReplacePrices(ctx, id, []models.CardPrice{
		price(models.PriceLow, false, 1),
		price(models.PriceLow, false, 2),
	})
	require.Error(t, err)

	// the failed replacement left the old set in place
	prices, err := cat.Prices(ctx, id)
	require.NoError(t, err)
	require.Len(t, prices, 1)
	assert.Equal(t, 1.0, prices[0].Price)
}

func TestGetLoadsPrices(t *testing.T) {
	cat := newCatalog(t)
	ctx := context.Background()
	id, err := cat.Insert(ctx, card("Lightning Bolt", "lea", "161", 7218))
	require.NoError(t, err)
	require.NoError(t, cat.ReplacePrices(ctx, id, []models.CardPrice{
		price(models.PriceHigh, false, 9),
		price(models.PriceLow, false, 1),
	}))

	got, err := cat.Get(ctx, id)
	require.NoError(t, err)
	require.Len(t, got.Prices, 2)
	assert.Equal(t, models.PriceHigh, got.Prices[0].PriceType)
}

func TestSearch(t *testing.T) {
	cat := newCatalog(t)
	ctx := context.Background()
	for _, c := range []*models.Card{
		card("Lightning Bolt", "lea", "161", 1, "R"),
		card("Lightning Helix", "rav", "213", 2, "R", "W"),
		card("Counterspell", "lea", "54", 3, "U"),
	} {
		_, err := cat.Insert(ctx, c)
		require.NoError(t, err)
	}

	tests := []struct {
		name string
		f    catalog.Filter
		want []string
	}{
		{"by name", catalog.Filter{Name: "lightning"}, []string{"Lightning Bolt", "Lightning Helix"}},
		{"by set", catalog.Filter{SetCode: "LEA"}, []string{"Counterspell", "Lightning Bolt"}},
		{"by color", catalog.Filter{Color: "w"}, []string{"Lightning Helix"}},
		{"paged", catalog.Filter{Limit: 1, Offset: 1}, []string{"Lightning Bolt"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cards, total, err := cat.Search(ctx, tt.f)
			require.NoError(t, err)
			var names []string
			for _, c := range cards {
				names = append(names, c.Name)
			}
			assert.Equal(t, tt.want, names)
			if tt.f.Limit == 0 {
				assert.Equal(t, len(tt.want), total)
			} else {
				assert.Equal(t, 3, total)
			}
		})
	}
}

func TestWithMarketplaceID(t *testing.T) {
	cat := newCatalog(t)
	ctx := context.Background()
	_, err := cat.Insert(ctx, card("A", "tst", "1", 10))
	require.NoError(t, err)
	_, err = cat.Insert(ctx, card("B", "tst", "2", 0))
	require.NoError(t, err)
	_, err = cat.Insert(ctx, card("C", "tst", "3", 30))
	require.NoError(t, err)

	cards, err := cat.WithMarketplaceID(ctx, 0)
	require.NoError(t, err)
	require.Len(t, cards, 2)
	assert.Equal(t, "A", cards[0].Name)
	assert.Equal(t, "C", cards[1].Name)

	cards, err = cat.WithMarketplaceID(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, cards, 1)
}

func TestIsolateRollsBackOnlyFailingWork(t *testing.T) {
	cat := newCatalog(t)
	ctx := context.Background()

	tx, err := cat.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Isolate(ctx, func(ctx context.Context) error {
		_, err := tx.Insert(ctx, card("Kept", "tst", "1", 0))
		return err
	}))
	err = tx.Isolate(ctx, func(ctx context.Context) error {
		if _, err := tx.Insert(ctx, card("Dropped", "tst", "2", 0)); err != nil {
			return err
		}
		_, err := tx.Insert(ctx, card("Kept", "tst", "1", 0))
		return err
	})
	require.Error(t, err)
	require.NoError(t, tx.Commit())

	n, err := cat.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	dropped, err := cat.FindByIdentity(ctx, "Dropped", "tst", "2")
	require.NoError(t, err)
	assert.Nil(t, dropped)
}

func TestCatalogFacets(t *testing.T) {
	cat := newCatalog(t)
	ctx := context.Background()

	alpha, beta := "Limited Edition Alpha", "Modern Horizons 2"
	cards := []*models.Card{
		card("Lightning Bolt", "lea", "161", 7218, "R"),
		card("Counterspell", "lea", "54", 0, "U"),
		card("Fire // Ice", "mh2", "290", 555, "U", "R"),
		card("Sol Ring", "mh2", "267", 0),
	}
	cards[0].SetName, cards[1].SetName = &alpha, &alpha
	cards[2].SetName, cards[3].SetName = &beta, &beta
	cards[0].Rarity = models.RarityUncommon
	cards[3].Rarity = models.RarityRare
	for _, c := range cards {
		_, err := cat.Insert(ctx, c)
		require.NoError(t, err)
	}

	sets, err := cat.Sets(ctx)
	require.NoError(t, err)
	require.Len(t, sets, 2)
	assert.Equal(t, "lea", sets[0].Code)
	require.NotNil(t, sets[0].Name)
	assert.Equal(t, alpha, *sets[0].Name)
	assert.Equal(t, "mh2", sets[1].Code)

	rarities, err := cat.Rarities(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"common", "rare", "uncommon"}, rarities)

	colors, err := cat.Colors(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"R", "U"}, colors)
}

func TestByCardmarketID(t *testing.T) {
	cat := newCatalog(t)
	ctx := context.Background()

	id, err := cat.Insert(ctx, card("Lightning Bolt", "lea", "161", 7218))
	require.NoError(t, err)
	require.NoError(t, cat.ReplacePrices(ctx, id, []models.CardPrice{price(models.PriceLow, false, 1)}))

	got, err := cat.ByCardmarketID(ctx, 7218)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Len(t, got.Prices, 1)

	_, err = cat.ByCardmarketID(ctx, 1)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
