package engine

import (
	"errors"
	"fmt"

	"github.com/hupe1980/vecraft/catalog"
	"github.com/hupe1980/vecraft/model"
)

type applyMode int

const (
	applyLive applyMode = iota
	applyReplay
)

type applyResult struct {
	Inserted bool
	Deleted  bool
}

// apply is the only writer of registry state. Live mutations and recovery
// both go through it.
//
// In replay mode re-creating an existing collection and dropping a missing
// one succeed, so that re-applying an entry is a no-op. Upsert and delete
// are idempotent in both modes.
func apply(reg *catalog.Registry, op model.Operation, mode applyMode) (applyResult, error) {
	switch op := op.(type) {
	case model.CreateCollection:
		_, err := reg.Create(op.Name, op.Dimension, op.Metric)
		if mode == applyReplay && errors.Is(err, catalog.ErrCollectionExists) {
			return applyResult{}, nil
		}
		return applyResult{}, err

	case model.DropCollection:
		_, err := reg.Drop(op.Name)
		if mode == applyReplay && errors.Is(err, catalog.ErrCollectionNotFound) {
			return applyResult{}, nil
		}
		return applyResult{}, err

	case model.Upsert:
		c, err := reg.Get(op.CollectionName)
		if err != nil {
			return applyResult{}, err
		}
		inserted, err := c.Index.Upsert(op.Record.ID, op.Record.Vector, op.Record.Metadata)
		if err != nil {
			return applyResult{}, err
		}
		return applyResult{Inserted: inserted}, nil

	case model.Delete:
		c, err := reg.Get(op.CollectionName)
		if err != nil {
			return applyResult{}, err
		}
		return applyResult{Deleted: c.Index.Delete(op.ID)}, nil
	}

	return applyResult{}, fmt.Errorf("%w: unsupported operation %T", model.ErrInvalidOperation, op)
}
