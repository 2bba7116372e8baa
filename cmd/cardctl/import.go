package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/padraicbc/mtgvault/catalog"
	"github.com/padraicbc/mtgvault/importer"
)

var (
	flagImportURL string
	flagBatchSize int
	flagWorkers   int
	flagForce     bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import card data from a JSON dump",
	Long: `Import fetches a card dump (Scryfall bulk data or MTGJSON) and upserts every
card into the catalog in chunked transactions.

Example:
  cardctl import --url https://mtgjson.com/api/v5/AllCards.json --batch-size 500 --force`,
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVar(&flagImportURL, "url", "", "source URL (default: MTG_CARDS_JSON_URL)")
	importCmd.Flags().IntVar(&flagBatchSize, "batch-size", 0, "records per transaction (default: MTG_IMPORT_BATCH_SIZE)")
	importCmd.Flags().IntVar(&flagWorkers, "workers", 0, "parallel chunk workers (default: MTG_IMPORT_WORKERS)")
	importCmd.Flags().BoolVar(&flagForce, "force", false, "import without confirmation")
}

func runImport(cmd *cobra.Command, args []string) error {
	source := flagImportURL
	if source == "" {
		source = cfg.Import.SourceURL
	}
	batchSize := flagBatchSize
	if batchSize <= 0 {
		batchSize = cfg.Import.BatchSize
	}
	workers := flagWorkers
	if workers <= 0 {
		workers = cfg.Import.Workers
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Source:     %s\nBatch size: %d\nWorkers:    %d\n", source, batchSize, workers)
	if !flagForce && !confirm(cmd.InOrStdin(), out, "This will import/update card data. Continue?") {
		fmt.Fprintln(out, "Import cancelled.")
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	coord := importer.NewCoordinator(importer.CatalogStore(catalog.NewDB(bdb)), logger.Named("import"),
		importer.WithWorkers(workers))
	pipeline := importer.NewPipeline(&http.Client{Timeout: cfg.Import.Timeout}, coord, logger.Named("import"))

	rep, err := pipeline.ImportFrom(ctx, source, batchSize)
	printReport(out, rep)
	if err != nil {
		return err
	}
	if rep.Cancelled {
		return errors.New("import interrupted")
	}
	if rep.Errors > 0 {
		return fmt.Errorf("import finished with %d errors", rep.Errors)
	}
	return nil
}

func printReport(w io.Writer, rep importer.Report) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Metric\tValue")
	fmt.Fprintf(tw, "Run\t%s\n", rep.RunID)
	fmt.Fprintf(tw, "Total processed\t%d\n", rep.TotalProcessed)
	fmt.Fprintf(tw, "Imported\t%d\n", rep.Imported)
	fmt.Fprintf(tw, "Updated\t%d\n", rep.Updated)
	fmt.Fprintf(tw, "Errors\t%d\n", rep.Errors)
	fmt.Fprintf(tw, "Duration\t%s\n", rep.Duration.Round(time.Millisecond))
	_ = tw.Flush()
}

func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N] ", question)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

