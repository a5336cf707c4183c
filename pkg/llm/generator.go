// Package llm defines the text generation interface used for answering
// questions over retrieved context, with provider implementations in
// subpackages.
package llm

import (
	"context"
	"errors"
)

// ErrGeneration indicates the language model backend failed to produce a
// completion.
var ErrGeneration = errors.New("llm generation failed")

// Request is a single grounded generation request. Context holds the
// retrieved passages, most relevant first.
type Request struct {
	System      string
	Question    string
	Context     []string
	Temperature float64
	MaxTokens   int
}

// Generator produces a completion for a grounded request.
//
// Implementations retry transient failures (transport errors and 5xx
// responses) exactly once; client errors fail immediately.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
	Close() error
}

type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient marks err as worth a single retry.
func Transient(err error) error {
	return &transientError{err}
}

// IsTransient reports whether err was marked by Transient.
func IsTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}
