package importer

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"go.uber.org/zap/zapcore"

	"github.com/padraicbc/mtgvault/models"
)

func TestCoordinatorImportsTwoCards(t *testing.T) {
	cat, _ := newTestCatalog(t)
	coord := NewCoordinator(CatalogStore(cat), nil)

	rep := coord.Run(context.Background(), records(t,
		`{"name": "Lightning Bolt", "set": "lea", "collector_number": "161", "rarity": "common"}`,
		`{"name": "Black Lotus", "set": "lea", "collector_number": "232", "rarity": "rare"}`,
	), 1)

	assert.Equal(t, 2, rep.TotalProcessed)
	assert.Equal(t, 2, rep.Imported)
	assert.Equal(t, 0, rep.Updated)
	assert.Equal(t, 0, rep.Errors)
	assert.False(t, rep.Cancelled)
	assert.Equal(t, 2, countCards(t, cat))
}

func TestCoordinatorSecondRunUpdates(t *testing.T) {
	cat, _ := newTestCatalog(t)
	coord := NewCoordinator(CatalogStore(cat), nil)
	ctx := context.Background()

	first := coord.Run(ctx, records(t,
		`{"name": "Lightning Bolt", "set": "lea", "collector_number": "161",
		  "oracle_text": "Deal 3.", "artist": "Christopher Rush", "cmc": 1,
		  "legalities": {"vintage": "legal"}, "colors": ["R"]}`,
	), 0)
	require.Equal(t, 1, first.Imported)

	found, err := cat.FindByIdentity(ctx, "Lightning Bolt", "lea", "161")
	require.NoError(t, err)
	require.NotNil(t, found)
	require.NotNil(t, found.Artist)

	second := coord.Run(ctx, records(t,
		`{"name": "Lightning Bolt", "set": "lea", "collector_number": "161", "rarity": "Uncommon"}`,
	), 0)
	assert.Equal(t, 0, second.Imported)
	assert.Equal(t, 1, second.Updated)
	assert.Equal(t, 1, countCards(t, cat))

	got, err := cat.Get(ctx, found.ID)
	require.NoError(t, err)
	assert.Equal(t, found.ID, got.ID)
	assert.Nil(t, got.OracleText)
	assert.Nil(t, got.Artist)
	assert.Nil(t, got.CMC)
	assert.Empty(t, got.Legalities)
	assert.Empty(t, got.Colors)
	assert.Equal(t, models.RarityUncommon, got.Rarity)
	assert.Equal(t, found.CreatedAt.Unix(), got.CreatedAt.Unix())
}

func TestCoordinatorIsolatesFailingRecord(t *testing.T) {
	cat, _ := newTestCatalog(t)
	core, logs := observer.New(zapcore.ErrorLevel)
	coord := NewCoordinator(CatalogStore(cat), zap.New(core))

	// Two identities sharing a marketplace id: the second violates its uniqueness.
	rep := coord.Run(context.Background(), records(t,
		`{"name": "A", "set": "tst", "collector_number": "1"}`,
		`{"name": "B", "set": "tst", "collector_number": "2", "cardmarket_id": 99}`,
		`{"name": "C", "set": "tst", "collector_number": "3", "cardmarket_id": 99}`,
		`{"name": "D", "set": "tst", "collector_number": "4"}`,
		`{"name": "E", "set": "tst", "collector_number": "5"}`,
	), 10)

	assert.Equal(t, 5, rep.TotalProcessed)
	assert.Equal(t, 4, rep.Imported)
	assert.Equal(t, 1, rep.Errors)
	assert.Equal(t, 4, countCards(t, cat))

	missing, err := cat.FindByIdentity(context.Background(), "C", "tst", "3")
	require.NoError(t, err)
	assert.Nil(t, missing)

	entries := logs.FilterMessage("error processing card").All()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].ContextMap()["error"], "card C/tst/3")
}

type failingCommit struct {
	ChunkTx
}

func (f failingCommit) Commit() error {
	_ = f.ChunkTx.Rollback()
	return errors.New("disk full")
}

// hookStore wraps the chunk transaction opened for chunk index at.
type hookStore struct {
	Store
	at   int
	n    int
	wrap func(ChunkTx) ChunkTx
}

func (s *hookStore) Begin(ctx context.Context) (ChunkTx, error) {
	tx, err := s.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	idx := s.n
	s.n++
	if idx == s.at {
		return s.wrap(tx), nil
	}
	return tx, nil
}

func TestCoordinatorCommitFailureCountsChunk(t *testing.T) {
	cat, _ := newTestCatalog(t)
	store := &hookStore{Store: CatalogStore(cat), at: 1, wrap: func(tx ChunkTx) ChunkTx { return failingCommit{tx} }}
	coord := NewCoordinator(store, nil)

	var objs []string
	for i := range 6 {
		objs = append(objs, fmt.Sprintf(`{"name": "Card %d", "set": "tst", "collector_number": "%d"}`, i, i))
	}
	rep := coord.Run(context.Background(), records(t, objs...), 2)

	assert.Equal(t, 6, rep.TotalProcessed)
	assert.Equal(t, 4, rep.Imported)
	assert.Equal(t, 2, rep.Errors)
	assert.Equal(t, 4, countCards(t, cat))

	gone, err := cat.FindByIdentity(context.Background(), "Card 2", "tst", "2")
	require.NoError(t, err)
	assert.Nil(t, gone)
}

type cancelOnCommit struct {
	ChunkTx
	cancel context.CancelFunc
}

func (c cancelOnCommit) Commit() error {
	err := c.ChunkTx.Commit()
	c.cancel()
	return err
}

func TestCoordinatorStopsBetweenChunksOnCancel(t *testing.T) {
	cat, _ := newTestCatalog(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := &hookStore{Store: CatalogStore(cat), at: 0, wrap: func(tx ChunkTx) ChunkTx {
		return cancelOnCommit{ChunkTx: tx, cancel: cancel}
	}}
	coord := NewCoordinator(store, nil)

	rep := coord.Run(ctx, records(t,
		`{"name": "A", "set": "tst", "collector_number": "1"}`,
		`{"name": "B", "set": "tst", "collector_number": "2"}`,
		`{"name": "C", "set": "tst", "collector_number": "3"}`,
	), 2)

	assert.True(t, rep.Cancelled)
	assert.Equal(t, 2, rep.TotalProcessed)
	assert.Equal(t, 2, rep.Imported)
	assert.Equal(t, 2, countCards(t, cat))
}

func TestCoordinatorCancelledBeforeStart(t *testing.T) {
	cat, _ := newTestCatalog(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep := NewCoordinator(CatalogStore(cat), nil).Run(ctx, records(t,
		`{"name": "A", "set": "tst", "collector_number": "1"}`,
	), 1)

	assert.True(t, rep.Cancelled)
	assert.Equal(t, 0, rep.TotalProcessed)
	assert.Equal(t, 0, countCards(t, cat))
}

func TestCoordinatorReleasesProcessedRecords(t *testing.T) {
	cat, _ := newTestCatalog(t)
	recs := records(t,
		`{"name": "A", "set": "tst", "collector_number": "1"}`,
		`{"name": "B", "set": "tst", "collector_number": "2"}`,
	)
	NewCoordinator(CatalogStore(cat), nil).Run(context.Background(), recs, 1)

	for _, r := range recs {
		assert.Nil(t, r.Raw)
	}
}

func TestCoordinatorParallelWorkers(t *testing.T) {
	cat, _ := newTestCatalog(t)
	coord := NewCoordinator(CatalogStore(cat), nil, WithWorkers(3))

	var objs []string
	for i := range 20 {
		objs = append(objs, fmt.Sprintf(`{"name": "Card %d", "set": "tst", "collector_number": "%d"}`, i, i))
	}
	// The first five identities appear twice.
	for i := range 5 {
		objs = append(objs, fmt.Sprintf(`{"name": "Card %d", "set": "tst", "collector_number": "%d", "artist": "again"}`, i, i))
	}
	rep := coord.Run(context.Background(), records(t, objs...), 4)

	assert.Equal(t, 25, rep.TotalProcessed)
	assert.Equal(t, 20, rep.Imported)
	assert.Equal(t, 5, rep.Updated)
	assert.Equal(t, 0, rep.Errors)
	assert.Equal(t, 20, countCards(t, cat))

	card, err := cat.FindByIdentity(context.Background(), "Card 3", "tst", "3")
	require.NoError(t, err)
	require.NotNil(t, card.Artist)
	assert.Equal(t, "again", *card.Artist)
}

func TestLaneOfIsStable(t *testing.T) {
	a := laneOf("Lightning Bolt", "lea", "161", 4)
	for range 10 {
		assert.Equal(t, a, laneOf("Lightning Bolt", "lea", "161", 4))
	}
	assert.Less(t, a, 4)
}
