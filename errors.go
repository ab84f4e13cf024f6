package vecraft

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/vecraft/catalog"
	"github.com/hupe1980/vecraft/engine"
	"github.com/hupe1980/vecraft/index"
	"github.com/hupe1980/vecraft/metadata"
	"github.com/hupe1980/vecraft/model"
	"github.com/hupe1980/vecraft/wal"
)

var (
	// ErrInvalidArgument is returned for any request that fails
	// validation. No state was changed.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = fmt.Errorf("%w: k must be positive", ErrInvalidArgument)

	// ErrNotFound is returned for an unknown collection.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when creating a collection whose name
	// is taken.
	ErrAlreadyExists = errors.New("already exists")

	// ErrCorruptEntry is returned by Open when the durability log holds an
	// invalid entry.
	ErrCorruptEntry = errors.New("corrupt log entry")

	// ErrDeadlineExceeded is returned when a query scan ran out of time.
	ErrDeadlineExceeded = errors.New("deadline exceeded")

	// ErrResourceExhausted is returned when a query was refused by
	// admission control.
	ErrResourceExhausted = errors.New("resource exhausted")

	// ErrIOFailure is returned when the durability log rejected a
	// mutation. The mutation was not applied.
	ErrIOFailure = engine.ErrIOFailure

	// ErrDegraded accompanies ErrIOFailure while repeated or permanent log
	// failures keep the database from accepting writes reliably.
	ErrDegraded = engine.ErrDegraded

	// ErrClosed is returned after Close.
	ErrClosed = engine.ErrClosed
)

// ErrDimensionMismatch reports a vector whose length differs from the
// collection's dimension. errors.Unwrap yields the internal error.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }

// Is makes every dimension mismatch match ErrInvalidArgument.
func (e *ErrDimensionMismatch) Is(target error) bool { return target == ErrInvalidArgument }

// errorClasses maps internal sentinels to the public ones, in priority
// order. Replay failures come first since they may wrap an apply error.
var errorClasses = []struct {
	public   error
	internal []error
}{
	{ErrCorruptEntry, []error{wal.ErrCorruptEntry}},
	{ErrInvalidK, []error{index.ErrInvalidK}},
	{ErrInvalidArgument, []error{index.ErrInvalidVector, index.ErrInvalidMetric, metadata.ErrInvalidFilter, model.ErrInvalidOperation}},
	{ErrNotFound, []error{catalog.ErrCollectionNotFound}},
	{ErrAlreadyExists, []error{catalog.ErrCollectionExists}},
	{ErrDeadlineExceeded, []error{context.DeadlineExceeded}},
	{ErrResourceExhausted, []error{engine.ErrOverloaded}},
	{ErrClosed, []error{wal.ErrClosed}},
}

// translateError tags err with the public sentinel for its class and
// keeps the internal chain reachable through errors.Is and errors.As.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var dm *index.ErrDimensionMismatch
	if errors.As(err, &dm) && !errors.Is(err, wal.ErrCorruptEntry) {
		return &ErrDimensionMismatch{Expected: dm.Expected, Actual: dm.Actual, cause: err}
	}

	for _, class := range errorClasses {
		if errors.Is(err, class.public) {
			return err
		}
		for _, target := range class.internal {
			if errors.Is(err, target) {
				return fmt.Errorf("%w: %w", class.public, err)
			}
		}
	}
	return err
}
