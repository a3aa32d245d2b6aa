package search

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidQuery matches requests rejected before any work is done.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrServiceUnavailable is returned when the query could not be embedded.
	ErrServiceUnavailable = errors.New("search service unavailable")
)

type InvalidQueryError struct {
	Reason string
}

func (e *InvalidQueryError) Error() string { return "invalid query: " + e.Reason }

func (e *InvalidQueryError) Unwrap() error { return ErrInvalidQuery }

func invalid(format string, args ...any) error {
	return &InvalidQueryError{Reason: fmt.Sprintf(format, args...)}
}
