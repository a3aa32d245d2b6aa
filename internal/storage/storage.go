package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/0x5457/fs-index/internal/models"
)

// ErrCorruptRecord matches persisted rows that fail validation on load.
var ErrCorruptRecord = errors.New("corrupt record")

type CorruptRecordError struct {
	Path   string
	Reason string
}

func (e *CorruptRecordError) Error() string {
	return fmt.Sprintf("record %s: %s", e.Path, e.Reason)
}

func (e *CorruptRecordError) Unwrap() error { return ErrCorruptRecord }

// State is everything a persister holds. Corrupt lists the rows that were
// dropped while loading.
type State struct {
	Version  uint64
	Model    string
	Records  []models.FileRecord
	Failures []models.Failure
	Corrupt  []*CorruptRecordError
}

// Changes is one committed batch. Version is the index version after the batch.
type Changes struct {
	Version       uint64
	Model         string
	SetModel      bool
	Upserts       []models.FileRecord
	Removes       []string
	Failures      []models.Failure
	ClearFailures []string
}

// Empty reports whether the batch carries nothing to write.
func (c Changes) Empty() bool {
	return !c.SetModel && len(c.Upserts) == 0 && len(c.Removes) == 0 &&
		len(c.Failures) == 0 && len(c.ClearFailures) == 0
}

// Mutates reports whether the batch changes searchable content.
func (c Changes) Mutates() bool {
	return len(c.Upserts) > 0 || len(c.Removes) > 0
}

// Persister is the durable side of the record store. Apply must be atomic:
// either every change in the batch is written or none is.
type Persister interface {
	Load(ctx context.Context) (State, error)
	Apply(ctx context.Context, changes Changes) error
	Close() error
}
