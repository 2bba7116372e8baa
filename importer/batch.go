package importer

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/padraicbc/mtgvault/catalog"
	"github.com/padraicbc/mtgvault/logger"
)

// DefaultBatchSize is the chunk size used when a caller passes zero.
const DefaultBatchSize = 500

// Report summarizes one import run. It is never persisted.
type Report struct {
	RunID          string        `json:"runId"`
	TotalProcessed int           `json:"total_processed"`
	Imported       int           `json:"imported"`
	Updated        int           `json:"updated"`
	Errors         int           `json:"errors"`
	Cancelled      bool          `json:"cancelled,omitempty"`
	Duration       time.Duration `json:"duration"`
}

func (r *Report) add(o Report) {
	r.TotalProcessed += o.TotalProcessed
	r.Imported += o.Imported
	r.Updated += o.Updated
	r.Errors += o.Errors
}

// ChunkTx is a catalog bound to one chunk transaction.
type ChunkTx interface {
	Catalog
	// Isolate runs fn so that its failure discards only its own writes.
	Isolate(ctx context.Context, fn func(ctx context.Context) error) error
	Commit() error
	Rollback() error
}

// Store opens chunk transactions.
type Store interface {
	Begin(ctx context.Context) (ChunkTx, error)
}

type catalogStore struct {
	db *catalog.DB
}

// CatalogStore adapts the bun catalog to Store.
func CatalogStore(db *catalog.DB) Store {
	return catalogStore{db: db}
}

func (s catalogStore) Begin(ctx context.Context) (ChunkTx, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// Coordinator commits records in fixed-size chunks, one transaction per chunk.
type Coordinator struct {
	store   Store
	log     *zap.Logger
	workers int
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithWorkers processes chunks on n workers. Records sharing an identity
// always land on the same worker.
func WithWorkers(n int) CoordinatorOption {
	return func(c *Coordinator) {
		if n > 0 {
			c.workers = n
		}
	}
}

// NewCoordinator returns a sequential coordinator unless WithWorkers says otherwise.
func NewCoordinator(store Store, log *zap.Logger, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{store: store, log: logger.OrNop(log), workers: 1}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run imports records in chunks of batchSize, preserving order. Processed
// entries of records are cleared as each chunk finishes so the raw payloads
// can be collected. Cancellation of ctx is honored between chunks only.
func (c *Coordinator) Run(ctx context.Context, records []Record, batchSize int) Report {
	start := time.Now()
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	var rep Report
	if c.workers > 1 {
		rep = c.runParallel(ctx, records, batchSize)
	} else {
		rep = c.runLane(ctx, 0, records, batchSize)
	}
	rep.Duration = time.Since(start)
	return rep
}

func (c *Coordinator) runLane(ctx context.Context, lane int, records []Record, batchSize int) Report {
	var rep Report
	for idx, start := 0, 0; start < len(records); idx, start = idx+1, start+batchSize {
		if err := ctx.Err(); err != nil {
			c.log.Warn("import cancelled",
				zap.Int("lane", lane),
				zap.Int("chunk", idx),
				zap.Int("remaining", len(records)-start),
				zap.Error(err))
			rep.Cancelled = true
			break
		}
		end := min(start+batchSize, len(records))
		chunk := records[start:end]

		// A started chunk runs to commit or rollback even if ctx is cancelled meanwhile.
		rep.add(c.runChunk(context.WithoutCancel(ctx), idx, chunk))

		clear(chunk)
	}
	return rep
}

func (c *Coordinator) runChunk(ctx context.Context, idx int, chunk []Record) Report {
	st := Report{TotalProcessed: len(chunk)}

	tx, err := c.store.Begin(ctx)
	if err != nil {
		c.chunkFailed(&ChunkError{Index: idx, Size: len(chunk), Err: err})
		st.Errors = len(chunk)
		return st
	}

	for _, rec := range chunk {
		if rec.Err != nil {
			c.log.Error("error processing card", zap.Int("chunk", idx),
				zap.Error(&RecordError{Name: rec.Name, Err: rec.Err}))
			st.Errors++
			continue
		}
		card := Map(rec)
		var outcome Outcome
		err := tx.Isolate(ctx, func(ctx context.Context) error {
			var err error
			outcome, err = Upsert(ctx, tx, card)
			return err
		})
		if err != nil {
			recErr := &RecordError{
				Name:            card.Name,
				SetCode:         card.SetCode,
				CollectorNumber: card.CollectorNumber,
				Err:             err,
			}
			c.log.Error("error processing card", zap.Int("chunk", idx), zap.Error(recErr))
			st.Errors++
			continue
		}
		switch outcome {
		case Created:
			st.Imported++
		case Updated:
			st.Updated++
		}
	}

	if err := tx.Commit(); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			c.log.Debug("rollback after failed commit", zap.Error(rbErr))
		}
		c.chunkFailed(&ChunkError{Index: idx, Size: len(chunk), Err: err})
		return Report{TotalProcessed: len(chunk), Errors: len(chunk)}
	}

	c.log.Debug("chunk committed",
		zap.Int("chunk", idx),
		zap.Int("imported", st.Imported),
		zap.Int("updated", st.Updated),
		zap.Int("errors", st.Errors))
	return st
}

func (c *Coordinator) chunkFailed(err *ChunkError) {
	c.log.Error("batch processing failed", zap.Int("chunk", err.Index), zap.Int("size", err.Size), zap.Error(err))
}

// runParallel routes each record to a lane by its identity, so two workers
// never race to insert the same card, then runs every lane sequentially on
// its own worker.
func (c *Coordinator) runParallel(ctx context.Context, records []Record, batchSize int) Report {
	lanes := make([][]Record, c.workers)
	for i := range records {
		card := Map(records[i])
		lane := laneOf(card.Name, card.SetCode, card.CollectorNumber, c.workers)
		lanes[lane] = append(lanes[lane], records[i])
		records[i] = Record{}
	}

	var (
		mu  sync.Mutex
		rep Report
		g   errgroup.Group
	)
	g.SetLimit(c.workers)
	for lane, recs := range lanes {
		if len(recs) == 0 {
			continue
		}
		g.Go(func() error {
			st := c.runLane(ctx, lane, recs, batchSize)
			mu.Lock()
			defer mu.Unlock()
			rep.add(st)
			rep.Cancelled = rep.Cancelled || st.Cancelled
			return nil
		})
	}
	_ = g.Wait()
	return rep
}

func laneOf(name, setCode, collectorNumber string, lanes int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(setCode))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(collectorNumber))
	return int(h.Sum32() % uint32(lanes))
}
