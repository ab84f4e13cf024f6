// Package flat provides an exact brute-force vector index for one collection.
package flat

import (
	"context"
	"fmt"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/vecraft/distance"
	"github.com/hupe1980/vecraft/index"
	"github.com/hupe1980/vecraft/internal/queue"
	"github.com/hupe1980/vecraft/metadata"
	"github.com/hupe1980/vecraft/model"
)

// Options contains configuration options for the flat index.
type Options struct {
	// ParallelThreshold is the candidate count from which a search is split
	// into partitions scanned concurrently.
	ParallelThreshold int

	// Partitions bounds the number of concurrent scan partitions.
	// Defaults to GOMAXPROCS.
	Partitions int

	// CheckInterval is how many candidates are scanned between context checks.
	CheckInterval int
}

// DefaultOptions contains the default configuration options for the flat index.
var DefaultOptions = Options{
	ParallelThreshold: 8192,
	Partitions:        0,
	CheckInterval:     256,
}

// Index is an exact k-nearest-neighbor index over a fixed-dimension set of
// records.
//
// Vectors live in one contiguous slice addressed by slot. Deleted slots go
// to a free list and are reused by later inserts. A read-write mutex gives
// concurrent searches shared access while Upsert and Delete are exclusive.
type Index struct {
	mu sync.RWMutex

	dimension int
	metric    distance.Metric
	opts      Options

	vectors []float32           // slot*dimension .. (slot+1)*dimension
	norms   []float32           // L2 norm per slot, used by cosine
	ids     []string            // "" marks a free slot
	meta    []metadata.Document // per slot, nil when absent
	slots   map[string]uint32
	free    []uint32

	// postings maps key -> Value.Key() -> slots for string and bool values.
	postings map[string]map[string]*roaring.Bitmap
}

// New creates an empty index. Dimension and metric are fixed for the
// lifetime of the index.
func New(dimension int, metric distance.Metric, optFns ...func(o *Options)) (*Index, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("flat: dimension must be positive, got %d", dimension)
	}
	if !metric.Valid() {
		return nil, fmt.Errorf("%w: %d", index.ErrInvalidMetric, int(metric))
	}

	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Partitions <= 0 {
		opts.Partitions = runtime.GOMAXPROCS(0)
	}
	if opts.CheckInterval <= 0 {
		opts.CheckInterval = DefaultOptions.CheckInterval
	}

	return &Index{
		dimension: dimension,
		metric:    metric,
		opts:      opts,
		slots:     make(map[string]uint32),
		postings:  make(map[string]map[string]*roaring.Bitmap),
	}, nil
}

// Dimension returns the fixed vector dimension.
func (f *Index) Dimension() int { return f.dimension }

// Metric returns the index distance metric.
func (f *Index) Metric() distance.Metric { return f.metric }

// Len returns the number of live records.
func (f *Index) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.slots)
}

// Upsert inserts a record or replaces the vector and metadata of an
// existing one. It reports whether the record was newly inserted.
// Vector and metadata are copied.
func (f *Index) Upsert(id string, vec []float32, meta metadata.Document) (bool, error) {
	if id == "" {
		return false, fmt.Errorf("flat: empty id")
	}
	if err := index.CheckVector(vec, f.dimension); err != nil {
		return false, err
	}
	meta = metadata.CloneIfNeeded(meta)
	norm := distance.Norm(vec)

	f.mu.Lock()
	defer f.mu.Unlock()

	slot, exists := f.slots[id]
	if exists {
		f.unindexLocked(slot, f.meta[slot])
	} else {
		slot = f.allocateLocked()
		f.slots[id] = slot
		f.ids[slot] = id
	}

	copy(f.vectorLocked(slot), vec)
	f.norms[slot] = norm
	f.meta[slot] = meta
	f.indexLocked(slot, meta)

	return !exists, nil
}

// Delete removes a record. It reports whether the id was present; deleting
// an absent id is a no-op.
func (f *Index) Delete(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	slot, ok := f.slots[id]
	if !ok {
		return false
	}

	f.unindexLocked(slot, f.meta[slot])
	delete(f.slots, id)
	f.ids[slot] = ""
	f.meta[slot] = nil
	f.norms[slot] = 0
	f.free = append(f.free, slot)

	return true
}

// Get returns a copy of the record stored under id.
func (f *Index) Get(id string) (model.Record, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	slot, ok := f.slots[id]
	if !ok {
		return model.Record{}, false
	}
	return f.recordLocked(slot), true
}

// Records returns a copy of every live record ordered by id.
func (f *Index) Records() []model.Record {
	f.mu.RLock()
	out := make([]model.Record, 0, len(f.slots))
	for _, slot := range f.slots {
		out = append(out, f.recordLocked(slot))
	}
	f.mu.RUnlock()

	slices.SortFunc(out, func(a, b model.Record) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// Search returns the k records closest to opts.Vector among those matching
// opts.Filter, ordered by ascending distance and then ascending id.
//
// Context cancellation or deadline expiry aborts the scan and returns the
// context error. The index is never modified.
func (f *Index) Search(ctx context.Context, opts index.SearchOptions) ([]index.Result, error) {
	if err := contextErr(ctx); err != nil {
		return nil, err
	}
	if opts.K <= 0 {
		return nil, index.ErrInvalidK
	}
	if err := index.CheckVector(opts.Vector, f.dimension); err != nil {
		return nil, err
	}
	if err := opts.Filter.Validate(); err != nil {
		return nil, err
	}

	m := f.metric
	if opts.Metric != nil {
		if !opts.Metric.Valid() {
			return nil, fmt.Errorf("%w: %d", index.ErrInvalidMetric, int(*opts.Metric))
		}
		m = *opts.Metric
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	candidates := f.candidatesLocked(opts.Filter)
	if len(candidates) == 0 {
		return []index.Result{}, nil
	}

	kernel := f.kernelLocked(m, opts.Vector)

	var items []queue.Item
	if len(candidates) >= f.opts.ParallelThreshold && f.opts.Partitions > 1 {
		var err error
		items, err = f.scanParallelLocked(ctx, candidates, opts.K, opts.Filter, kernel)
		if err != nil {
			return nil, err
		}
	} else {
		top := queue.NewTopK(opts.K)
		if err := f.scanLocked(ctx, candidates, top, opts.Filter, kernel); err != nil {
			return nil, err
		}
		items = top.Drain()
	}

	results := make([]index.Result, len(items))
	for i, it := range items {
		r := index.Result{
			ID:       it.ID,
			Distance: it.Distance,
			Score:    m.Score(it.Distance),
		}
		if opts.WithMetadata {
			r.Metadata = metadata.CloneIfNeeded(f.meta[it.Slot])
		}
		if opts.WithVector {
			r.Vector = slices.Clone(f.vectorLocked(it.Slot))
		}
		results[i] = r
	}
	return results, nil
}

// Stats holds index statistics.
type Stats struct {
	Records   int
	FreeSlots int
	Dimension int
	Metric    distance.Metric
	// IndexedKeys is the number of metadata keys with equality postings.
	IndexedKeys int
}

// Stats returns a snapshot of index statistics.
func (f *Index) Stats() Stats {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return Stats{
		Records:     len(f.slots),
		FreeSlots:   len(f.free),
		Dimension:   f.dimension,
		Metric:      f.metric,
		IndexedKeys: len(f.postings),
	}
}

func (f *Index) allocateLocked() uint32 {
	if n := len(f.free); n > 0 {
		slot := f.free[n-1]
		f.free = f.free[:n-1]
		return slot
	}
	slot := uint32(len(f.ids))
	f.ids = append(f.ids, "")
	f.meta = append(f.meta, nil)
	f.norms = append(f.norms, 0)
	f.vectors = append(f.vectors, make([]float32, f.dimension)...)
	return slot
}

func (f *Index) vectorLocked(slot uint32) []float32 {
	off := int(slot) * f.dimension
	return f.vectors[off : off+f.dimension : off+f.dimension]
}

func (f *Index) recordLocked(slot uint32) model.Record {
	return model.Record{
		ID:       f.ids[slot],
		Vector:   slices.Clone(f.vectorLocked(slot)),
		Metadata: metadata.CloneIfNeeded(f.meta[slot]),
	}
}

func postable(v metadata.Value) bool {
	return v.Kind == metadata.KindString || v.Kind == metadata.KindBool
}

func (f *Index) indexLocked(slot uint32, doc metadata.Document) {
	for key, value := range doc {
		if !postable(value) {
			continue
		}
		values, ok := f.postings[key]
		if !ok {
			values = make(map[string]*roaring.Bitmap)
			f.postings[key] = values
		}
		vk := value.Key()
		bm, ok := values[vk]
		if !ok {
			bm = roaring.New()
			values[vk] = bm
		}
		bm.Add(slot)
	}
}

func (f *Index) unindexLocked(slot uint32, doc metadata.Document) {
	for key, value := range doc {
		if !postable(value) {
			continue
		}
		values, ok := f.postings[key]
		if !ok {
			continue
		}
		vk := value.Key()
		bm, ok := values[vk]
		if !ok {
			continue
		}
		bm.Remove(slot)
		if bm.IsEmpty() {
			delete(values, vk)
			if len(values) == 0 {
				delete(f.postings, key)
			}
		}
	}
}

// candidatesLocked returns the slots that may match fs. Equality and in
// predicates over string or bool values are answered from postings; the
// result is a superset of the matches and every candidate is still
// checked against the full filter during the scan.
func (f *Index) candidatesLocked(fs *metadata.FilterSet) []uint32 {
	var narrowed *roaring.Bitmap
	if !fs.IsEmpty() {
		for _, flt := range fs.Filters {
			bm, ok := f.postingFor(flt)
			if !ok {
				continue
			}
			if narrowed == nil {
				narrowed = bm
			} else {
				narrowed = roaring.And(narrowed, bm)
			}
			if narrowed.IsEmpty() {
				return nil
			}
		}
	}

	if narrowed != nil {
		return narrowed.ToArray()
	}

	out := make([]uint32, 0, len(f.slots))
	for slot, id := range f.ids {
		if id != "" {
			out = append(out, uint32(slot))
		}
	}
	return out
}

// postingFor returns a fresh bitmap of slots that can satisfy flt, or false
// when flt cannot be answered from postings.
func (f *Index) postingFor(flt metadata.Filter) (*roaring.Bitmap, bool) {
	switch flt.Operator {
	case metadata.OpEqual:
		if !postable(flt.Value) {
			return nil, false
		}
		if bm := f.postings[flt.Key][flt.Value.Key()]; bm != nil {
			return bm.Clone(), true
		}
		return roaring.New(), true
	case metadata.OpIn:
		arr, _ := flt.Value.AsArray()
		for _, v := range arr {
			if !postable(v) {
				return nil, false
			}
		}
		out := roaring.New()
		for _, v := range arr {
			if bm := f.postings[flt.Key][v.Key()]; bm != nil {
				out.Or(bm)
			}
		}
		return out, true
	default:
		return nil, false
	}
}

// kernelLocked returns the distance from q to the vector in slot.
func (f *Index) kernelLocked(m distance.Metric, q []float32) func(slot uint32) float32 {
	switch m {
	case distance.MetricCosine:
		qn := distance.Norm(q)
		return func(slot uint32) float32 {
			n := f.norms[slot]
			if qn == 0 || n == 0 {
				return 1
			}
			return 1 - distance.Dot(q, f.vectorLocked(slot))/(qn*n)
		}
	default:
		return func(slot uint32) float32 {
			return m.Distance(q, f.vectorLocked(slot))
		}
	}
}

// contextErr is ctx.Err that also reports a passed deadline whose timer
// has not fired yet.
func contextErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d, ok := ctx.Deadline(); ok && !time.Now().Before(d) {
		return context.DeadlineExceeded
	}
	return nil
}

func (f *Index) scanLocked(ctx context.Context, candidates []uint32, top *queue.TopK, fs *metadata.FilterSet, kernel func(uint32) float32) error {
	for i, slot := range candidates {
		if i%f.opts.CheckInterval == 0 {
			if err := contextErr(ctx); err != nil {
				return err
			}
		}
		if !fs.Matches(f.meta[slot]) {
			continue
		}
		top.Offer(queue.Item{Slot: slot, ID: f.ids[slot], Distance: kernel(slot)})
	}
	return nil
}

func (f *Index) scanParallelLocked(ctx context.Context, candidates []uint32, k int, fs *metadata.FilterSet, kernel func(uint32) float32) ([]queue.Item, error) {
	parts := min(f.opts.Partitions, len(candidates))
	size := (len(candidates) + parts - 1) / parts
	partial := make([][]queue.Item, parts)

	g, gctx := errgroup.WithContext(ctx)
	for p := 0; p < parts; p++ {
		lo := p * size
		hi := min(lo+size, len(candidates))
		if lo >= hi {
			continue
		}
		g.Go(func() error {
			top := queue.NewTopK(k)
			if err := f.scanLocked(gctx, candidates[lo:hi], top, fs, kernel); err != nil {
				return err
			}
			partial[p] = top.Drain()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}

	return queue.Merge(k, partial...), nil
}
