package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing collection, document or image.
	ErrNotFound = errors.New("not found")
	// ErrInvalidQuery signals a search query rejected by the engine validator.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrMalformedInput signals a request body or parameter that cannot be used.
	ErrMalformedInput = errors.New("malformed input")
	// ErrStorage signals a document store or search engine failure.
	ErrStorage = errors.New("storage error")
)

// Kind is the discriminator of the closed error set.
type Kind int

const (
	// KindUnknown is any error outside the closed set.
	KindUnknown Kind = iota
	// KindInvalidQuery is a client error, never retried.
	KindInvalidQuery
	// KindIO is a store or engine failure.
	KindIO
	// KindNotFound is an explicit "not found" outcome.
	KindNotFound
	// KindMalformedInput is a request that failed validation.
	KindMalformedInput
)

func (k Kind) String() string {
	switch k {
	case KindInvalidQuery:
		return "invalid_query"
	case KindIO:
		return "io_error"
	case KindNotFound:
		return "not_found"
	case KindMalformedInput:
		return "malformed_input"
	default:
		return "unknown"
	}
}

// InvalidQueryError carries the rejected query and the engine's explanation.
type InvalidQueryError struct {
	Query       string
	Explanation string
}

func (e *InvalidQueryError) Error() string {
	return fmt.Sprintf("%s %q: %s", ErrInvalidQuery.Error(), e.Query, e.Explanation)
}

func (e *InvalidQueryError) Unwrap() error { return ErrInvalidQuery }

// NewInvalidQuery creates an invalid query error.
func NewInvalidQuery(query, explanation string) error {
	return &InvalidQueryError{Query: query, Explanation: explanation}
}

// KindOf classifies err. Deadline errors count as I/O.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrInvalidQuery):
		return KindInvalidQuery
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrMalformedInput):
		return KindMalformedInput
	case errors.Is(err, ErrStorage), errors.Is(err, context.DeadlineExceeded):
		return KindIO
	default:
		return KindUnknown
	}
}

// IsRetryable reports whether err is a timeout worth retrying.
func IsRetryable(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
