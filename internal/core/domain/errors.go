package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested journey, version or task does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedFormat indicates the text extractor cannot process a document.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrJourneyExists indicates a journey with the same name (case-insensitive) exists.
	ErrJourneyExists = errors.New("journey already exists")

	// ErrDefaultJourney indicates an attempt to delete a default journey.
	ErrDefaultJourney = errors.New("default journeys cannot be deleted")

	// ErrDimensionMismatch indicates a vector whose size differs from the
	// dimension recorded for its namespace.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrVersionIDExhausted indicates no unique version id could be generated
	// within the disambiguator range.
	ErrVersionIDExhausted = errors.New("version id disambiguators exhausted")

	// ErrVersionExists indicates a version id is already present in the journey.
	ErrVersionExists = errors.New("version already exists")

	// ErrCorruptChunk indicates a stored chunk whose span does not match its text.
	ErrCorruptChunk = errors.New("corrupt chunk")

	// ErrNotIndexed indicates a version exists but has not finished indexing.
	ErrNotIndexed = errors.New("version not indexed")

	// ErrLLMUnavailable indicates no completion provider is configured.
	ErrLLMUnavailable = errors.New("completion provider unavailable")

	// ErrEmbeddingUnavailable indicates no embedding provider is configured.
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")

	// ErrVectorIndexUnavailable indicates the remote vector index cannot be reached.
	ErrVectorIndexUnavailable = errors.New("vector index unavailable")

	// ErrTaskFinished indicates a cancel request for a task that already ended.
	ErrTaskFinished = errors.New("task already finished")

	// ErrInvalidTransition indicates an analysis state machine step out of order.
	ErrInvalidTransition = errors.New("invalid state transition")
)

// RetrievableError marks a transient failure at a provider or remote index
// boundary (timeout, rate limit, 5xx). Callers may retry with backoff.
type RetrievableError struct {
	// Op names the operation that failed, e.g. "openai.embed".
	Op string

	// Err is the underlying cause.
	Err error
}

func (e *RetrievableError) Error() string {
	return fmt.Sprintf("%s: retrievable: %v", e.Op, e.Err)
}

func (e *RetrievableError) Unwrap() error { return e.Err }

// FatalError marks a data invariant violation or a permanent provider
// condition. It is never retried.
type FatalError struct {
	// Op names the operation that failed.
	Op string

	// Err is the underlying cause.
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s: fatal: %v", e.Op, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// Retrievable wraps err as a RetrievableError. Nil stays nil.
func Retrievable(op string, err error) error {
	if err == nil {
		return nil
	}
	return &RetrievableError{Op: op, Err: err}
}

// Fatal wraps err as a FatalError. Nil stays nil.
func Fatal(op string, err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Op: op, Err: err}
}

// IsRetrievable reports whether err carries a RetrievableError.
func IsRetrievable(err error) bool {
	var re *RetrievableError
	return errors.As(err, &re)
}

// IsFatal reports whether err carries a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// ClassifyHTTPStatus converts a non-2xx provider response into the error
// taxonomy. 408, 429 and 5xx are retrievable; everything else is fatal.
// A 404 also wraps ErrNotFound.
func ClassifyHTTPStatus(op string, status int, body string) error {
	err := fmt.Errorf("status %d: %s", status, body)
	if status == 404 {
		err = fmt.Errorf("%w: status %d: %s", ErrNotFound, status, body)
	}
	switch {
	case status == 408, status == 429, status >= 500:
		return Retrievable(op, err)
	default:
		return Fatal(op, err)
	}
}
