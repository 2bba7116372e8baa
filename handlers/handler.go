package handlers

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/padraicbc/mtgvault/cardmarket"
	"github.com/padraicbc/mtgvault/catalog"
	"github.com/padraicbc/mtgvault/importer"
	"github.com/padraicbc/mtgvault/logger"
)

// Deps are the collaborators shared by all route handlers.
type Deps struct {
	DB         *bun.DB
	JWTKey     []byte
	AdminUsers []string
	Pipeline   *importer.Pipeline
	Syncer     *cardmarket.Syncer
	Cardmarket *cardmarket.Client

	// Import defaults for admin-triggered runs.
	ImportURL string
	BatchSize int
	// ImportDeadline bounds a whole background run; zero means none. The
	// download timeout belongs on the pipeline's HTTP client.
	ImportDeadline time.Duration

	Log *zap.Logger
}

// Handler holds shared dependencies used by all route handlers.
type Handler struct {
	db     *bun.DB
	cards  *catalog.Repo
	JWTKey []byte
	admins map[string]bool

	pipeline   *importer.Pipeline
	syncer     *cardmarket.Syncer
	cardmarket *cardmarket.Client

	importURL      string
	batchSize      int
	importDeadline time.Duration

	importing atomic.Bool
	jobs      sync.WaitGroup
	log       *zap.Logger
}

// New creates a Handler from d.
func New(d Deps) *Handler {
	admins := make(map[string]bool, len(d.AdminUsers))
	for _, u := range d.AdminUsers {
		admins[normalizeUsername(u)] = true
	}
	return &Handler{
		db:             d.DB,
		cards:          catalog.New(d.DB),
		JWTKey:         d.JWTKey,
		admins:         admins,
		pipeline:       d.Pipeline,
		syncer:         d.Syncer,
		cardmarket:     d.Cardmarket,
		importURL:      d.ImportURL,
		batchSize:      d.BatchSize,
		importDeadline: d.ImportDeadline,
		log:            logger.OrNop(d.Log),
	}
}

// Wait blocks until background jobs started by the handler have finished.
func (h *Handler) Wait() {
	h.jobs.Wait()
}

func (h *Handler) isAdmin(username string) bool {
	return h.admins[normalizeUsername(username)]
}

func normalizeUsername(u string) string {
	return strings.ToLower(strings.TrimSpace(u))
}
