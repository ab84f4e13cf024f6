package server

import (
	"fmt"

	"github.com/hupe1980/vecraft"
	"github.com/hupe1980/vecraft/metadata"
)

type PingRequest struct {
	Message string `json:"message,omitempty"`
}

type PingResponse struct {
	Message string `json:"message"`
}

type CreateCollectionRequest struct {
	Name   string `json:"name"`
	Dims   int    `json:"dims"`
	Metric string `json:"metric"`
}

type CreateCollectionResponse struct {
	Seq     uint64 `json:"seq"`
	Durable bool   `json:"durable"`
}

type DropCollectionRequest struct {
	Name string `json:"name"`
}

type DropCollectionResponse struct {
	Seq     uint64 `json:"seq"`
	Durable bool   `json:"durable"`
}

type ListCollectionsRequest struct{}

type CollectionInfo struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
	Metric    string `json:"metric"`
	Records   int    `json:"records"`
}

type ListCollectionsResponse struct {
	Collections []CollectionInfo `json:"collections"`
}

// Point is a record on the wire. An empty ID is replaced by a generated
// one.
type Point struct {
	ID      string         `json:"id,omitempty"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload,omitempty"`
}

type UpsertRequest struct {
	Collection string  `json:"collection"`
	Points     []Point `json:"points"`
}

// UpsertResponse reports the points applied. Upserted counts points that
// created a new record.
type UpsertResponse struct {
	Upserted int      `json:"upserted"`
	IDs      []string `json:"ids"`
	LastSeq  uint64   `json:"last_seq"`
	Durable  bool     `json:"durable"`
}

type DeleteRequest struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
}

type DeleteResponse struct {
	Deleted bool   `json:"deleted"`
	Seq     uint64 `json:"seq"`
	Durable bool   `json:"durable"`
}

// Filter is a metadata predicate. Op defaults to equality.
type Filter struct {
	Key   string `json:"key"`
	Op    string `json:"op,omitempty"`
	Value any    `json:"value"`
}

type QueryRequest struct {
	Collection     string    `json:"collection"`
	Vector         []float32 `json:"vector"`
	TopK           int       `json:"top_k"`
	MetricOverride string    `json:"metric_override,omitempty"`
	Filters        []Filter  `json:"filters,omitempty"`
	WithPayloads   bool      `json:"with_payloads,omitempty"`
	WithVectors    bool      `json:"with_vectors,omitempty"`
	TimeoutMillis  int64     `json:"timeout_ms,omitempty"`
}

type ScoredPoint struct {
	ID       string         `json:"id"`
	Score    float32        `json:"score"`
	Distance float32        `json:"distance"`
	Payload  map[string]any `json:"payload,omitempty"`
	Vector   []float32      `json:"vector,omitempty"`
}

type QueryResponse struct {
	Hits []ScoredPoint `json:"hits"`
}

func (p Point) record() (vecraft.Record, error) {
	doc, err := metadata.DocumentFromAny(p.Payload)
	if err != nil {
		return vecraft.Record{}, fmt.Errorf("%w: point %q: %w", vecraft.ErrInvalidArgument, p.ID, err)
	}
	return vecraft.Record{ID: p.ID, Vector: p.Vector, Metadata: doc}, nil
}

func (r *QueryRequest) filterSet() (*metadata.FilterSet, error) {
	if len(r.Filters) == 0 {
		return nil, nil
	}
	filters := make([]metadata.Filter, 0, len(r.Filters))
	for _, f := range r.Filters {
		op := metadata.OpEqual
		if f.Op != "" {
			parsed, err := metadata.ParseOperator(f.Op)
			if err != nil {
				return nil, err
			}
			op = parsed
		}
		v, err := metadata.FromAny(f.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: key %q: %w", metadata.ErrInvalidFilter, f.Key, err)
		}
		filters = append(filters, metadata.Filter{Key: f.Key, Operator: op, Value: v})
	}
	return metadata.NewFilterSet(filters...), nil
}

func scoredPoint(r vecraft.SearchResult) ScoredPoint {
	return ScoredPoint{
		ID:       r.ID,
		Score:    r.Score,
		Distance: r.Distance,
		Payload:  r.Metadata.ToMap(),
		Vector:   r.Vector,
	}
}
