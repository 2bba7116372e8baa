package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
	_ "modernc.org/sqlite"

	"github.com/padraicbc/mtgvault/config"
	"github.com/padraicbc/mtgvault/models"
)

// Setup opens the catalog database selected by cfg.DBDriver.
func Setup(cfg *config.Config) *bun.DB {
	var (
		db  *bun.DB
		err error
	)
	switch cfg.DBDriver {
	case config.DriverSQLite:
		db, err = OpenSQLite(cfg.SQLitePath)
		if err != nil {
			log.Fatal("failed to open sqlite database:", err)
		}
	default:
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.PostgresDSN())))
		db = bun.NewDB(sqldb, pgdialect.New())
	}

	if cfg.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	if err := db.PingContext(context.Background()); err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	return db
}

// OpenSQLite opens an embedded SQLite catalog. ":memory:" gives a private
// in-memory database. SQLite allows a single writer, so the pool is pinned
// to one connection and chunk transactions serialize on it.
func OpenSQLite(path string) (*bun.DB, error) {
	dsn := path
	if path == ":memory:" {
		dsn = "file::memory:"
	}
	sqldb, err := sql.Open("sqlite", dsn+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	sqldb.SetMaxOpenConns(1)
	sqldb.SetMaxIdleConns(1)
	sqldb.SetConnMaxLifetime(0)

	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// CreateTables creates all tables in dependency order.
func CreateTables(ctx context.Context, db *bun.DB) error {
	tables := []interface{}{
		(*models.User)(nil),
		(*models.Card)(nil),
		(*models.CardPrice)(nil),
		(*models.CacheEntry)(nil),
	}

	for _, model := range tables {
		q := db.NewCreateTable().Model(model).IfNotExists()
		if _, ok := model.(*models.CardPrice); ok {
			q = q.ForeignKey(`("card_id") REFERENCES "cards" ("id") ON DELETE CASCADE`)
		}
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("creating table for %T: %w", model, err)
		}
	}

	indexes := []struct {
		model   interface{}
		name    string
		columns []string
	}{
		{(*models.Card)(nil), "cards_name_idx", []string{"name"}},
		{(*models.Card)(nil), "cards_rarity_idx", []string{"rarity"}},
		{(*models.CardPrice)(nil), "card_prices_cardmarket_id_idx", []string{"cardmarket_id"}},
		{(*models.CardPrice)(nil), "card_prices_updated_idx", []string{"price_updated_at"}},
		{(*models.CacheEntry)(nil), "cache_entries_expires_idx", []string{"expires_at"}},
	}
	for _, idx := range indexes {
		if _, err := db.NewCreateIndex().Model(idx.model).Index(idx.name).
			Column(idx.columns...).IfNotExists().Exec(ctx); err != nil {
			log.Printf("index %s: %v", idx.name, err)
		}
	}

	return nil
}
