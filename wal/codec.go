package wal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/hupe1980/vecraft/distance"
	"github.com/hupe1980/vecraft/internal/hash"
	"github.com/hupe1980/vecraft/metadata"
	"github.com/hupe1980/vecraft/model"
)

// wireEntry is the on-disk line. Pointer fields detect missing keys.
type wireEntry struct {
	Seq        *uint64         `json:"seq"`
	Op         *string         `json:"op"`
	Collection *string         `json:"collection"`
	TsMs       int64           `json:"ts_ms"`
	Payload    json.RawMessage `json:"payload"`
	CRC        *uint32         `json:"crc"`
}

type createPayload struct {
	Dimension int              `json:"dimension"`
	Metric    *distance.Metric `json:"metric"`
}

type upsertPayload struct {
	ID       string            `json:"id"`
	Vector   []float32         `json:"vector"`
	Metadata metadata.Document `json:"metadata,omitempty"`
}

type deletePayload struct {
	ID string `json:"id"`
}

type dropPayload struct{}

func checksum(seq uint64, op, collection string, payload []byte) uint32 {
	var num [20]byte
	return hash.JoinedCRC32C('|', strconv.AppendUint(num[:0], seq, 10), []byte(op), []byte(collection), payload)
}

// encodeEntry renders e as a single newline-terminated line.
func encodeEntry(e Entry) ([]byte, error) {
	if e.Op == nil {
		return nil, errors.New("wal: entry without operation")
	}

	var payload any
	switch op := e.Op.(type) {
	case model.CreateCollection:
		m := op.Metric
		payload = createPayload{Dimension: op.Dimension, Metric: &m}
	case model.Upsert:
		payload = upsertPayload{ID: op.Record.ID, Vector: op.Record.Vector, Metadata: op.Record.Metadata}
	case model.Delete:
		payload = deletePayload{ID: op.ID}
	case model.DropCollection:
		payload = dropPayload{}
	default:
		return nil, fmt.Errorf("wal: unsupported operation %T", e.Op)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("wal: encode payload: %w", err)
	}

	seq := e.Seq
	op := string(e.Op.Kind())
	collection := e.Op.Collection()
	crc := checksum(seq, op, collection, raw)

	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	line, err := json.Marshal(wireEntry{
		Seq:        &seq,
		Op:         &op,
		Collection: &collection,
		TsMs:       ts.UnixMilli(),
		Payload:    raw,
		CRC:        &crc,
	})
	if err != nil {
		return nil, fmt.Errorf("wal: encode entry: %w", err)
	}
	return append(line, '\n'), nil
}

// decodeError carries what could be learned about a bad line.
type decodeError struct {
	seq    uint64
	reason string
	err    error
}

func (e *decodeError) Error() string { return e.reason }

// decodeEntry parses one line without its trailing newline.
func decodeEntry(line []byte) (Entry, error) {
	var w wireEntry
	if err := json.Unmarshal(line, &w); err != nil {
		return Entry{}, &decodeError{reason: "malformed json", err: err}
	}

	if w.Seq == nil {
		return Entry{}, &decodeError{reason: "missing seq"}
	}
	seq := *w.Seq
	fail := func(reason string, err error) (Entry, error) {
		return Entry{}, &decodeError{seq: seq, reason: reason, err: err}
	}

	switch {
	case w.Op == nil:
		return fail("missing op", nil)
	case w.Collection == nil:
		return fail("missing collection", nil)
	case len(w.Payload) == 0:
		return fail("missing payload", nil)
	case w.CRC == nil:
		return fail("missing crc", nil)
	}

	kind, err := model.ParseOpKind(*w.Op)
	if err != nil {
		return fail("unknown op", err)
	}

	if got := checksum(seq, *w.Op, *w.Collection, w.Payload); got != *w.CRC {
		return fail(fmt.Sprintf("checksum mismatch: stored %d, computed %d", *w.CRC, got), nil)
	}

	var op model.Operation
	switch kind {
	case model.OpCreateCollection:
		var p createPayload
		if err := strictUnmarshal(w.Payload, &p); err != nil {
			return fail("malformed create_collection payload", err)
		}
		if p.Metric == nil {
			return fail("create_collection payload without metric", nil)
		}
		op = model.CreateCollection{Name: *w.Collection, Dimension: p.Dimension, Metric: *p.Metric}
	case model.OpUpsert:
		var p upsertPayload
		if err := strictUnmarshal(w.Payload, &p); err != nil {
			return fail("malformed upsert payload", err)
		}
		op = model.Upsert{
			CollectionName: *w.Collection,
			Record:         model.Record{ID: p.ID, Vector: p.Vector, Metadata: p.Metadata},
		}
	case model.OpDelete:
		var p deletePayload
		if err := strictUnmarshal(w.Payload, &p); err != nil {
			return fail("malformed delete payload", err)
		}
		op = model.Delete{CollectionName: *w.Collection, ID: p.ID}
	case model.OpDropCollection:
		var p dropPayload
		if err := strictUnmarshal(w.Payload, &p); err != nil {
			return fail("malformed drop_collection payload", err)
		}
		op = model.DropCollection{Name: *w.Collection}
	}

	if err := op.Validate(); err != nil {
		return fail("invalid operation", err)
	}

	return Entry{
		Seq:       seq,
		Timestamp: time.UnixMilli(w.TsMs),
		Op:        op,
	}, nil
}

func strictUnmarshal(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
