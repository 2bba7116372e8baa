package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/padraicbc/mtgvault/catalog"
	"github.com/padraicbc/mtgvault/importer"
	"github.com/padraicbc/mtgvault/models"
)

const migrateBatchSize = 500

var (
	flagLegacyTable string
	flagSkipUsers   bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copy a legacy MySQL catalog into this database",
	Long: `Migrate reads users and cards from the legacy MySQL database named by MYSQL_DSN.
Card rows go through the regular import mapping and upsert, so re-running is safe.

Example:
  MYSQL_DSN="user:pass@tcp(host:3306)/mtg?parseTime=true" cardctl migrate`,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().StringVar(&flagLegacyTable, "table", "cards", "legacy card table")
	migrateCmd.Flags().BoolVar(&flagSkipUsers, "skip-users", false, "do not copy users")
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if cfg.MySQLDSN == "" {
		return errors.New("MYSQL_DSN required, e.g.: user:pass@tcp(host:3306)/mtg?parseTime=true")
	}
	if !identRe.MatchString(flagLegacyTable) {
		return fmt.Errorf("invalid table name %q", flagLegacyTable)
	}

	myDB, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		return fmt.Errorf("open mysql: %w", err)
	}
	defer myDB.Close()
	myDB.SetMaxOpenConns(4)
	if err := myDB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping mysql: %w", err)
	}
	logger.Info("connected to MySQL")

	if !flagSkipUsers {
		n, err := migrateUsers(ctx, myDB, bdb)
		if err != nil {
			return fmt.Errorf("migrate users: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-15s  %d rows migrated\n", "users", n)
	}

	coord := importer.NewCoordinator(importer.CatalogStore(catalog.NewDB(bdb)), logger.Named("migrate"))
	rep, err := migrateCards(ctx, myDB, flagLegacyTable, coord)
	if err != nil {
		return fmt.Errorf("migrate cards: %w", err)
	}
	printReport(cmd.OutOrStdout(), rep)
	if rep.Errors > 0 {
		return fmt.Errorf("migration finished with %d card errors", rep.Errors)
	}
	return nil
}

// bulkInsert inserts a batch, skipping rows that already exist (idempotent re-runs).
func bulkInsert[T any](ctx context.Context, db *bun.DB, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	_, err := db.NewInsert().Model(&rows).On("CONFLICT DO NOTHING").Exec(ctx)
	return err
}

func migrateUsers(ctx context.Context, myDB *sql.DB, db *bun.DB) (int, error) {
	rows, err := myDB.QueryContext(ctx, "SELECT username, password FROM users")
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var batch []models.User
	total := 0
	for rows.Next() {
		var r models.User
		if err := rows.Scan(&r.Username, &r.Password); err != nil {
			return total, err
		}
		batch = append(batch, r)
		if len(batch) >= migrateBatchSize {
			if err := bulkInsert(ctx, db, batch); err != nil {
				return total, err
			}
			total += len(batch)
			batch = batch[:0]
		}
	}
	if err := bulkInsert(ctx, db, batch); err != nil {
		return total, err
	}
	return total + len(batch), rows.Err()
}

// migrateCards streams legacy rows as raw records, column name to value, and
// imports them in batches.
func migrateCards(ctx context.Context, myDB *sql.DB, table string, coord *importer.Coordinator) (importer.Report, error) {
	var rep importer.Report
	start := time.Now()

	rows, err := myDB.QueryContext(ctx, "SELECT * FROM `"+table+"`")
	if err != nil {
		return rep, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return rep, err
	}

	flush := func(batch []importer.Record) {
		st := coord.Run(ctx, batch, migrateBatchSize)
		rep.TotalProcessed += st.TotalProcessed
		rep.Imported += st.Imported
		rep.Updated += st.Updated
		rep.Errors += st.Errors
		rep.Cancelled = rep.Cancelled || st.Cancelled
		logger.Info("legacy batch imported", zap.Int("total_processed", rep.TotalProcessed))
	}

	batch := make([]importer.Record, 0, migrateBatchSize)
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return rep, err
		}
		batch = append(batch, importer.Record{Raw: legacyRecord(cols, vals)})
		if len(batch) >= migrateBatchSize {
			flush(batch)
			batch = make([]importer.Record, 0, migrateBatchSize)
		}
	}
	if err := rows.Err(); err != nil {
		return rep, err
	}
	if len(batch) > 0 {
		flush(batch)
	}
	rep.Duration = time.Since(start)
	return rep, nil
}

// legacyRecord converts one scanned row into the raw shape the mapper reads.
// Row ids and timestamps are dropped; JSON columns are decoded.
func legacyRecord(cols []string, vals []any) importer.Raw {
	raw := importer.Raw{}
	for i, col := range cols {
		switch col {
		case "id", "created_at", "updated_at":
			continue
		}
		switch v := vals[i].(type) {
		case nil:
		case []byte:
			raw[col] = legacyValue(v)
		case int64:
			raw[col] = json.Number(fmt.Sprint(v))
		case float64:
			raw[col] = json.Number(fmt.Sprint(v))
		case time.Time:
		default:
			raw[col] = fmt.Sprint(v)
		}
	}
	return raw
}

func legacyValue(b []byte) any {
	t := bytes.TrimSpace(b)
	if len(t) > 0 && (t[0] == '[' || t[0] == '{') {
		dec := json.NewDecoder(bytes.NewReader(t))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err == nil {
			return v
		}
	}
	return string(b)
}
