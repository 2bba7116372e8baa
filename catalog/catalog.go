// Package catalog is the persistent card store. It works on any bun.IDB, so the
// same queries run on the pooled database or inside a chunk transaction.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/uptrace/bun"

	"github.com/padraicbc/mtgvault/models"
)

// Repo reads and writes cards and prices.
type Repo struct {
	db bun.IDB
}

// New wraps db, which may be a *bun.DB or a bun.Tx.
func New(db bun.IDB) *Repo {
	return &Repo{db: db}
}

// FindByIdentity returns the stored card for the identity triple, or nil when none exists.
func (r *Repo) FindByIdentity(ctx context.Context, name, setCode, collectorNumber string) (*models.Card, error) {
	card := new(models.Card)
	err := r.db.NewSelect().Model(card).
		Where("cd.name = ?", name).
		Where("cd.set_code = ?", setCode).
		Where("cd.collector_number = ?", collectorNumber).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find card %s/%s/%s: %w", name, setCode, collectorNumber, err)
	}
	return card, nil
}

// Insert stores a new card and returns its id.
func (r *Repo) Insert(ctx context.Context, card *models.Card) (int64, error) {
	now := time.Now().UTC()
	card.ID = 0
	card.CreatedAt = now
	card.UpdatedAt = now
	if _, err := r.db.NewInsert().Model(card).Returning("id").Exec(ctx); err != nil {
		return 0, fmt.Errorf("insert card %s/%s: %w", card.Name, card.SetCode, err)
	}
	return card.ID, nil
}

// Update overwrites every mapped column of card id with card. Columns absent
// from card (nil pointers, empty maps) are written as such, so nothing from
// the previous import survives.
func (r *Repo) Update(ctx context.Context, id int64, card *models.Card) error {
	card.ID = id
	card.UpdatedAt = time.Now().UTC()
	res, err := r.db.NewUpdate().Model(card).
		ExcludeColumn("created_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update card %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update card %d: %w", id, sql.ErrNoRows)
	}
	return nil
}

// Get returns a card with its prices.
func (r *Repo) Get(ctx context.Context, id int64) (*models.Card, error) {
	card := new(models.Card)
	err := r.db.NewSelect().Model(card).
		Relation("Prices", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.OrderExpr("cp.price_type ASC, cp.foil ASC, cp.condition ASC")
		}).
		Where("cd.id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return card, nil
}

// Prices returns the stored prices of a card.
func (r *Repo) Prices(ctx context.Context, cardID int64) ([]models.CardPrice, error) {
	var prices []models.CardPrice
	err := r.db.NewSelect().Model(&prices).
		Where("cp.card_id = ?", cardID).
		OrderExpr("cp.price_type ASC, cp.foil ASC, cp.condition ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("prices for card %d: %w", cardID, err)
	}
	return prices, nil
}

// ReplacePrices deletes every price of cardID and inserts prices in one
// transaction. When r already wraps a transaction the caller owns commit.
func (r *Repo) ReplacePrices(ctx context.Context, cardID int64, prices []models.CardPrice) error {
	replace := func(ctx context.Context, db bun.IDB) error {
		if _, err := db.NewDelete().Model((*models.CardPrice)(nil)).
			Where("card_id = ?", cardID).
			Exec(ctx); err != nil {
			return fmt.Errorf("delete prices for card %d: %w", cardID, err)
		}
		if len(prices) == 0 {
			return nil
		}
		for i := range prices {
			prices[i].ID = 0
			prices[i].CardID = cardID
		}
		if _, err := db.NewInsert().Model(&prices).Exec(ctx); err != nil {
			return fmt.Errorf("insert prices for card %d: %w", cardID, err)
		}
		return nil
	}

	if db, ok := r.db.(*bun.DB); ok {
		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			return replace(ctx, tx)
		})
	}
	return replace(ctx, r.db)
}

// Filter narrows Search. Zero values are ignored.
type Filter struct {
	Name    string
	SetCode string
	Rarity  string
	Color   string
	Limit   int
	Offset  int
}

// Search lists cards matching f ordered by name, set and collector number.
func (r *Repo) Search(ctx context.Context, f Filter) ([]models.Card, int, error) {
	var cards []models.Card
	q := r.db.NewSelect().Model(&cards).
		ExcludeColumn("raw_data").
		OrderExpr("cd.name ASC, cd.set_code ASC, cd.collector_number ASC")

	if f.Name != "" {
		q = q.Where("LOWER(cd.name) LIKE ?", "%"+strings.ToLower(f.Name)+"%")
	}
	if f.SetCode != "" {
		q = q.Where("LOWER(cd.set_code) = ?", strings.ToLower(f.SetCode))
	}
	if f.Rarity != "" {
		q = q.Where("cd.rarity = ?", strings.ToLower(f.Rarity))
	}
	if f.Color != "" {
		// colors is a JSON array of single letters, e.g. ["W","U"].
		q = q.Where("CAST(cd.colors AS TEXT) LIKE ?", `%"`+strings.ToUpper(f.Color)+`"%`)
	}
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	q = q.Limit(f.Limit).Offset(f.Offset)

	total, err := q.ScanAndCount(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("search cards: %w", err)
	}
	return cards, total, nil
}

// WithMarketplaceID lists cards that carry a marketplace product id, oldest id first.
func (r *Repo) WithMarketplaceID(ctx context.Context, limit int) ([]models.Card, error) {
	var cards []models.Card
	q := r.db.NewSelect().Model(&cards).
		Column("cd.id", "cd.name", "cd.set_code", "cd.collector_number", "cd.cardmarket_id").
		Where("cd.cardmarket_id IS NOT NULL").
		OrderExpr("cd.id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("cards with marketplace id: %w", err)
	}
	return cards, nil
}

// ByCardmarketID returns the card carrying a marketplace product id, with its prices.
func (r *Repo) ByCardmarketID(ctx context.Context, cardmarketID int64) (*models.Card, error) {
	card := new(models.Card)
	err := r.db.NewSelect().Model(card).
		Relation("Prices", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.OrderExpr("cp.price_type ASC, cp.foil ASC, cp.condition ASC")
		}).
		Where("cd.cardmarket_id = ?", cardmarketID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return card, nil
}

// Set is one distinct set present in the catalog.
type Set struct {
	Code string  `bun:"set_code" json:"setCode"`
	Name *string `bun:"set_name" json:"setName,omitempty"`
}

// Sets lists the distinct sets, ordered by name then code.
func (r *Repo) Sets(ctx context.Context) ([]Set, error) {
	sets := []Set{}
	err := r.db.NewSelect().Model((*models.Card)(nil)).
		ColumnExpr("DISTINCT cd.set_code, cd.set_name").
		OrderExpr("cd.set_name ASC, cd.set_code ASC").
		Scan(ctx, &sets)
	if err != nil {
		return nil, fmt.Errorf("list sets: %w", err)
	}
	return sets, nil
}

// Rarities lists the distinct rarities in alphabetical order.
func (r *Repo) Rarities(ctx context.Context) ([]string, error) {
	rarities := []string{}
	err := r.db.NewSelect().Model((*models.Card)(nil)).
		ColumnExpr("DISTINCT cd.rarity").
		OrderExpr("cd.rarity ASC").
		Scan(ctx, &rarities)
	if err != nil {
		return nil, fmt.Errorf("list rarities: %w", err)
	}
	return rarities, nil
}

// Colors lists every color code used by at least one card, sorted.
func (r *Repo) Colors(ctx context.Context) ([]string, error) {
	var cards []models.Card
	if err := r.db.NewSelect().Model(&cards).Column("cd.colors").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list colors: %w", err)
	}
	seen := map[string]struct{}{}
	for _, c := range cards {
		for _, col := range c.Colors {
			seen[col] = struct{}{}
		}
	}
	colors := make([]string, 0, len(seen))
	for col := range seen {
		colors = append(colors, col)
	}
	slices.Sort(colors)
	return colors, nil
}

// Count returns the number of stored cards.
func (r *Repo) Count(ctx context.Context) (int, error) {
	return r.db.NewSelect().Model((*models.Card)(nil)).Count(ctx)
}

// DB is the transactional catalog used by the import coordinator.
type DB struct {
	*Repo
	db *bun.DB
}

// NewDB returns a catalog bound to the connection pool.
func NewDB(db *bun.DB) *DB {
	return &DB{Repo: New(db), db: db}
}

// Begin opens a chunk transaction.
func (d *DB) Begin(ctx context.Context) (*Tx, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin chunk: %w", err)
	}
	return &Tx{Repo: New(tx), tx: tx}, nil
}

// Tx is a catalog scoped to one chunk transaction.
type Tx struct {
	*Repo
	tx  bun.Tx
	seq atomic.Int64
}

// Isolate runs fn inside a savepoint. A failing fn rolls back only its own
// writes and leaves the chunk transaction usable for the next record.
func (t *Tx) Isolate(ctx context.Context, fn func(ctx context.Context) error) error {
	sp := fmt.Sprintf("rec_%d", t.seq.Add(1))
	if _, err := t.tx.ExecContext(ctx, "SAVEPOINT "+sp); err != nil {
		return fmt.Errorf("savepoint: %w", err)
	}
	if err := fn(ctx); err != nil {
		if _, rbErr := t.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+sp); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback to savepoint: %w", rbErr))
		}
		return err
	}
	if _, err := t.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+sp); err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	return nil
}

// Commit commits the chunk.
func (t *Tx) Commit() error {
	return t.tx.Commit()
}

// Rollback aborts the chunk.
func (t *Tx) Rollback() error {
	return t.tx.Rollback()
}
