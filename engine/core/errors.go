package core

import (
	"errors"
	"fmt"
)

// Sentinel errors for the fatal failure classes. Callers match with errors.Is.
var (
	// ErrEmptyDocument signals that ingestion produced no usable text; no
	// index artifacts are written when this is returned.
	ErrEmptyDocument = errors.New("document has no extractable text")

	// ErrIndexNotFound signals that the requested index was never built or
	// its on-disk artifacts are missing.
	ErrIndexNotFound = errors.New("index not found")

	// ErrRunNotFound signals that the requested run id has no ledger entry.
	ErrRunNotFound = errors.New("run not found")
)

// RetrievalProviderError wraps failures from the dense search provider.
// In hybrid mode it aborts the query; the dense-only path may fall back to
// a plain similarity call instead.
type RetrievalProviderError struct {
	Op  string
	Err error
}

func (e *RetrievalProviderError) Error() string {
	return fmt.Sprintf("retrieval provider: %s: %v", e.Op, e.Err)
}

func (e *RetrievalProviderError) Unwrap() error {
	return e.Err
}

// NewRetrievalProviderError wraps err with the failed operation name.
func NewRetrievalProviderError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &RetrievalProviderError{Op: op, Err: err}
}

// GenerationProviderError wraps failures from the text-generation
// collaborator. Section tasks catch it and record a warned artifact instead
// of aborting the run.
type GenerationProviderError struct {
	Section string
	Err     error
}

func (e *GenerationProviderError) Error() string {
	if e.Section == "" {
		return fmt.Sprintf("generation provider: %v", e.Err)
	}
	return fmt.Sprintf("generation provider: section %s: %v", e.Section, e.Err)
}

func (e *GenerationProviderError) Unwrap() error {
	return e.Err
}

// NewGenerationProviderError wraps err with the section being generated.
func NewGenerationProviderError(section string, err error) error {
	if err == nil {
		return nil
	}
	return &GenerationProviderError{Section: section, Err: err}
}
