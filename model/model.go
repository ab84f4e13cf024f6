package model

import (
	"errors"
	"fmt"
	"slices"
	"unicode"
	"unicode/utf8"

	"github.com/hupe1980/vecraft/distance"
	"github.com/hupe1980/vecraft/metadata"
)

// MaxNameLength is the longest accepted collection name in bytes.
const MaxNameLength = 255

// ErrInvalidOperation is returned for operations that are malformed on
// their own, independent of engine state.
var ErrInvalidOperation = errors.New("invalid operation")

// Record is a single vector with its id and optional metadata.
type Record struct {
	ID       string
	Vector   []float32
	Metadata metadata.Document
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	return Record{
		ID:       r.ID,
		Vector:   slices.Clone(r.Vector),
		Metadata: metadata.CloneIfNeeded(r.Metadata),
	}
}

// OpKind is the tag persisted for each operation.
type OpKind string

const (
	OpCreateCollection OpKind = "create_collection"
	OpUpsert           OpKind = "upsert"
	OpDelete           OpKind = "delete"
	OpDropCollection   OpKind = "drop_collection"
)

// ParseOpKind validates a persisted operation tag.
func ParseOpKind(s string) (OpKind, error) {
	switch k := OpKind(s); k {
	case OpCreateCollection, OpUpsert, OpDelete, OpDropCollection:
		return k, nil
	default:
		return "", fmt.Errorf("%w: unknown op %q", ErrInvalidOperation, s)
	}
}

// Operation is a mutating request.
type Operation interface {
	Kind() OpKind
	// Collection returns the name of the addressed collection.
	Collection() string
	// Validate checks the operation in isolation.
	Validate() error

	operation()
}

// CreateCollection creates an empty collection.
type CreateCollection struct {
	Name      string
	Dimension int
	Metric    distance.Metric
}

// Upsert inserts or replaces a record.
type Upsert struct {
	CollectionName string
	Record         Record
}

// Delete removes a record by id.
type Delete struct {
	CollectionName string
	ID             string
}

// DropCollection removes a collection and all its records.
type DropCollection struct {
	Name string
}

func (CreateCollection) Kind() OpKind { return OpCreateCollection }
func (Upsert) Kind() OpKind           { return OpUpsert }
func (Delete) Kind() OpKind           { return OpDelete }
func (DropCollection) Kind() OpKind   { return OpDropCollection }

func (o CreateCollection) Collection() string { return o.Name }
func (o Upsert) Collection() string           { return o.CollectionName }
func (o Delete) Collection() string           { return o.CollectionName }
func (o DropCollection) Collection() string   { return o.Name }

func (CreateCollection) operation() {}
func (Upsert) operation()           {}
func (Delete) operation()           {}
func (DropCollection) operation()   {}

func (o CreateCollection) Validate() error {
	if err := ValidateName(o.Name); err != nil {
		return err
	}
	if o.Dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive, got %d", ErrInvalidOperation, o.Dimension)
	}
	if !o.Metric.Valid() {
		return fmt.Errorf("%w: unsupported metric %d", ErrInvalidOperation, int(o.Metric))
	}
	return nil
}

// Validate checks the name and id. Vector shape is checked against the
// collection by the engine.
func (o Upsert) Validate() error {
	if err := ValidateName(o.CollectionName); err != nil {
		return err
	}
	if o.Record.ID == "" {
		return fmt.Errorf("%w: empty record id", ErrInvalidOperation)
	}
	if len(o.Record.Vector) == 0 {
		return fmt.Errorf("%w: empty vector", ErrInvalidOperation)
	}
	if err := o.Record.Metadata.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOperation, err)
	}
	return nil
}

func (o Delete) Validate() error {
	if err := ValidateName(o.CollectionName); err != nil {
		return err
	}
	if o.ID == "" {
		return fmt.Errorf("%w: empty record id", ErrInvalidOperation)
	}
	return nil
}

func (o DropCollection) Validate() error {
	return ValidateName(o.Name)
}

// ValidateName checks a collection name: non-empty, valid UTF-8, at most
// MaxNameLength bytes and free of control characters.
func ValidateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty collection name", ErrInvalidOperation)
	case len(name) > MaxNameLength:
		return fmt.Errorf("%w: collection name longer than %d bytes", ErrInvalidOperation, MaxNameLength)
	case !utf8.ValidString(name):
		return fmt.Errorf("%w: collection name is not valid UTF-8", ErrInvalidOperation)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: collection name contains control characters", ErrInvalidOperation)
		}
	}
	return nil
}
