package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/padraicbc/mtgvault/logger"
)

// Doer issues HTTP requests; *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Pipeline fetches a card dump, resolves grouped printings and hands the
// records to the Coordinator.
type Pipeline struct {
	client Doer
	coord  *Coordinator
	log    *zap.Logger
}

// NewPipeline wires a pipeline. The client's timeout bounds the whole
// download, so it should allow for multi-megabyte dumps (minutes, not seconds).
func NewPipeline(client Doer, coord *Coordinator, log *zap.Logger) *Pipeline {
	if client == nil {
		client = &http.Client{Timeout: 300 * time.Second}
	}
	return &Pipeline{client: client, coord: coord, log: logger.OrNop(log)}
}

// ImportFrom imports every card found at sourceURL. The report is always
// well formed: when the fetch or the payload shape fails, it carries
// Errors=1 and the cause is returned as a *FetchError or *FormatError.
func (p *Pipeline) ImportFrom(ctx context.Context, sourceURL string, batchSize int) (Report, error) {
	start := time.Now()
	runID := uuid.NewString()
	log := p.log.With(zap.String("run_id", runID), zap.String("url", sourceURL))
	log.Info("starting card import", zap.Int("batch_size", batchSize))

	records, err := p.fetch(ctx, sourceURL)
	if err != nil {
		rep := Report{RunID: runID, Errors: 1, Duration: time.Since(start)}
		log.Error("card import failed", zap.Error(err))
		return rep, err
	}
	log.Info("processing cards", zap.Int("total", len(records)))

	rep := p.coord.Run(ctx, records, batchSize)
	rep.RunID = runID
	rep.Duration = time.Since(start)

	log.Info("card import completed",
		zap.Int("total_processed", rep.TotalProcessed),
		zap.Int("imported", rep.Imported),
		zap.Int("updated", rep.Updated),
		zap.Int("errors", rep.Errors),
		zap.Bool("cancelled", rep.Cancelled),
		zap.Duration("duration", rep.Duration))
	return rep, nil
}

func (p *Pipeline) fetch(ctx context.Context, sourceURL string) ([]Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, &FetchError{URL: sourceURL, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: sourceURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
		return nil, &FetchError{URL: sourceURL, Status: resp.StatusCode}
	}

	records, err := Decode(resp.Body)
	if err != nil {
		var fe *FormatError
		if errors.As(err, &fe) {
			return nil, err
		}
		// The body stream broke mid-download.
		return nil, &FetchError{URL: sourceURL, Status: resp.StatusCode, Err: err}
	}
	return records, nil
}

// Decode reads a card dump in one of the accepted shapes:
//
//   - an array of records;
//   - an object whose "data" field is an array of records;
//   - an object whose "data" field maps card names to one printing or an
//     array of printings (MTGJSON AllCards). Each group is reduced to one
//     printing by ResolvePrinting and named after its key.
//
// Records are returned in document order. Entries that are not objects (null,
// numbers, strings) come back as records carrying Err.
func Decode(r io.Reader) ([]Record, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, syntaxOr(err, "empty or unreadable payload")
	}
	switch tok {
	case json.Delim('['):
		return decodeArray(dec)
	case json.Delim('{'):
	default:
		return nil, &FormatError{Reason: fmt.Sprintf("expected array or object, got %v", tok)}
	}

	var (
		records []Record
		found   bool
	)
	for dec.More() {
		key, err := dec.Token()
		if err != nil {
			return nil, syntaxOr(err, "reading object key")
		}
		if key != "data" {
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, syntaxOr(err, fmt.Sprintf("reading field %v", key))
			}
			continue
		}
		found = true
		tok, err := dec.Token()
		if err != nil {
			return nil, syntaxOr(err, "reading data field")
		}
		switch tok {
		case json.Delim('['):
			records, err = decodeArray(dec)
		case json.Delim('{'):
			records, err = decodeGroups(dec)
		default:
			return nil, &FormatError{Reason: "data field is neither an array nor an object"}
		}
		if err != nil {
			return nil, err
		}
	}
	if !found {
		return nil, &FormatError{Reason: "missing data field"}
	}
	return records, nil
}

// decodeArray consumes array elements after the opening bracket.
func decodeArray(dec *json.Decoder) ([]Record, error) {
	var records []Record
	for dec.More() {
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, syntaxOr(err, fmt.Sprintf("reading record %d", len(records)))
		}
		if m, ok := v.(map[string]any); ok {
			records = append(records, Record{Raw: m})
			continue
		}
		records = append(records, Record{Err: fmt.Errorf("element %d is %s, not an object", len(records), kindOf(v))})
	}
	if _, err := dec.Token(); err != nil {
		return nil, syntaxOr(err, "unterminated array")
	}
	return records, nil
}

// decodeGroups consumes name -> printing(s) pairs after the opening brace.
func decodeGroups(dec *json.Decoder) ([]Record, error) {
	var records []Record
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, syntaxOr(err, "reading card name")
		}
		name, _ := tok.(string)

		var value any
		if err := dec.Decode(&value); err != nil {
			return nil, syntaxOr(err, fmt.Sprintf("reading card %q", name))
		}

		var chosen Raw
		switch v := value.(type) {
		case map[string]any:
			chosen = v
		case []any:
			printings := make([]Raw, 0, len(v))
			for _, p := range v {
				if m, ok := p.(map[string]any); ok {
					printings = append(printings, m)
				}
			}
			chosen = ResolvePrinting(printings)
		}
		if chosen == nil {
			records = append(records, Record{Name: name, Err: fmt.Errorf("%s has no printing object", kindOf(value))})
			continue
		}
		records = append(records, Record{Name: name, Raw: chosen})
	}
	if _, err := dec.Token(); err != nil {
		return nil, syntaxOr(err, "unterminated data object")
	}
	return records, nil
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "an array"
	case string:
		return "a string"
	case bool:
		return "a boolean"
	case json.Number, float64:
		return "a number"
	}
	return fmt.Sprintf("%T", v)
}

// syntaxOr classifies decoder errors: malformed JSON and type mismatches are
// format problems; anything else is a read failure on the underlying stream.
func syntaxOr(err error, reason string) error {
	var (
		se *json.SyntaxError
		te *json.UnmarshalTypeError
	)
	if errors.As(err, &se) || errors.As(err, &te) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &FormatError{Reason: reason, Err: err}
	}
	return err
}
