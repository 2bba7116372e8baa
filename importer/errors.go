package importer

import "fmt"

// FetchError means the source could not be fetched or answered with a non-2xx status.
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.Status)
}

func (e *FetchError) Unwrap() error { return e.Err }

// FormatError means the payload is not an array of records or an object whose
// data field holds one.
type FormatError struct {
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid payload: %s: %v", e.Reason, e.Err)
	}
	return "invalid payload: " + e.Reason
}

func (e *FormatError) Unwrap() error { return e.Err }

// RecordError is a single failed upsert. It is counted, logged and skipped.
type RecordError struct {
	Name            string
	SetCode         string
	CollectorNumber string
	Err             error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("card %s/%s/%s: %v", e.Name, e.SetCode, e.CollectorNumber, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// ChunkError is a chunk transaction that could not be opened or committed.
// Every record of the chunk counts as an error.
type ChunkError struct {
	Index int
	Size  int
	Err   error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("chunk %d (%d records): %v", e.Index, e.Size, e.Err)
}

func (e *ChunkError) Unwrap() error { return e.Err }
