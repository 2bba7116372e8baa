package importer

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/padraicbc/mtgvault/catalog"
	"github.com/padraicbc/mtgvault/db"
)

func newTestCatalog(t *testing.T) (*catalog.DB, *bun.DB) {
	t.Helper()
	bdb, err := db.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = bdb.Close() })
	require.NoError(t, db.CreateTables(context.Background(), bdb))
	return catalog.NewDB(bdb), bdb
}

// raw decodes a JSON object the same way the pipeline does.
func raw(t *testing.T, s string) Raw {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var r Raw
	require.NoError(t, dec.Decode(&r))
	return r
}

func records(t *testing.T, objs ...string) []Record {
	t.Helper()
	out := make([]Record, len(objs))
	for i, o := range objs {
		out[i] = Record{Raw: raw(t, o)}
	}
	return out
}

func countCards(t *testing.T, cat *catalog.DB) int {
	t.Helper()
	n, err := cat.Count(context.Background())
	require.NoError(t, err)
	return n
}
