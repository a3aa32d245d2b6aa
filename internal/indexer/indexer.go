package indexer

import (
	"context"
	"errors"
	"fmt"

	"github.com/0x5457/fs-index/internal/models"
)

// ErrEnumeration matches failures to list the files under the root.
var ErrEnumeration = errors.New("enumeration failed")

type EnumerationError struct {
	Root string
	Err  error
}

func (e *EnumerationError) Error() string {
	return fmt.Sprintf("enumerate %s: %v", e.Root, e.Err)
}

func (e *EnumerationError) Unwrap() []error { return []error{ErrEnumeration, e.Err} }

type Indexer interface {
	// Run performs a pass, or joins the one in flight, and waits for it.
	Run(ctx context.Context) (models.PassResult, error)
	// Trigger starts or joins a pass in the background. It reports whether
	// a pass was already running.
	Trigger() bool
	Stats() models.IndexStats
}
