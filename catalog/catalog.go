package catalog

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/hupe1980/vecraft/distance"
	"github.com/hupe1980/vecraft/index/flat"
)

var (
	// ErrCollectionExists is returned by Create for a taken name.
	ErrCollectionExists = errors.New("collection already exists")

	// ErrCollectionNotFound is returned for an unknown name.
	ErrCollectionNotFound = errors.New("collection not found")
)

// Collection is a named index with a fixed schema.
type Collection struct {
	Name      string
	Dimension int
	Metric    distance.Metric
	Index     *flat.Index

	// Apply tickets keep record mutations in sequence order once the
	// coordinator has released its global lock.
	applyMu   sync.Mutex
	applyCond *sync.Cond
	nextTurn  uint64 // next ticket to hand out
	turn      uint64 // ticket allowed to apply
}

func newCollection(name string, dimension int, metric distance.Metric, idx *flat.Index) *Collection {
	c := &Collection{
		Name:      name,
		Dimension: dimension,
		Metric:    metric,
		Index:     idx,
	}
	c.applyCond = sync.NewCond(&c.applyMu)
	return c
}

// ReserveApply hands out the next apply ticket. Tickets must be reserved
// in sequence order and every ticket must be finished with FinishApply.
func (c *Collection) ReserveApply() uint64 {
	c.applyMu.Lock()
	defer c.applyMu.Unlock()
	t := c.nextTurn
	c.nextTurn++
	return t
}

// AwaitApply blocks until every earlier ticket has finished.
func (c *Collection) AwaitApply(ticket uint64) {
	c.applyMu.Lock()
	defer c.applyMu.Unlock()
	for c.turn != ticket {
		c.applyCond.Wait()
	}
}

// FinishApply passes the turn to the next ticket.
func (c *Collection) FinishApply() {
	c.applyMu.Lock()
	c.turn++
	c.applyMu.Unlock()
	c.applyCond.Broadcast()
}

// Len returns the number of records.
func (c *Collection) Len() int { return c.Index.Len() }

// Info is a point-in-time description of a collection.
type Info struct {
	Name      string
	Dimension int
	Metric    distance.Metric
	Records   int
}

// Info returns a snapshot of the collection schema and size.
func (c *Collection) Info() Info {
	return Info{
		Name:      c.Name,
		Dimension: c.Dimension,
		Metric:    c.Metric,
		Records:   c.Index.Len(),
	}
}

// Registry is a concurrency-safe set of collections.
type Registry struct {
	mu          sync.RWMutex
	collections map[string]*Collection
	indexOpts   []func(o *flat.Options)
}

// New creates an empty registry. indexOpts are applied to every index it
// creates.
func New(indexOpts ...func(o *flat.Options)) *Registry {
	return &Registry{
		collections: make(map[string]*Collection),
		indexOpts:   indexOpts,
	}
}

// Create adds an empty collection.
func (r *Registry) Create(name string, dimension int, metric distance.Metric) (*Collection, error) {
	idx, err := flat.New(dimension, metric, r.indexOpts...)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.collections[name]; ok {
		return nil, fmt.Errorf("%w: %q", ErrCollectionExists, name)
	}

	c := newCollection(name, dimension, metric, idx)
	r.collections[name] = c
	return c, nil
}

// Get returns the named collection.
func (r *Registry) Get(name string) (*Collection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrCollectionNotFound, name)
	}
	return c, nil
}

// Drop removes the named collection and returns it.
func (r *Registry) Drop(name string) (*Collection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrCollectionNotFound, name)
	}
	delete(r.collections, name)
	return c, nil
}

// Contains reports whether name is registered.
func (r *Registry) Contains(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.collections[name]
	return ok
}

// Names returns the collection names in ascending order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.collections))
	for name := range r.collections {
		names = append(names, name)
	}
	r.mu.RUnlock()

	slices.Sort(names)
	return names
}

// List returns a snapshot of every collection, ordered by name.
func (r *Registry) List() []Info {
	r.mu.RLock()
	cols := make([]*Collection, 0, len(r.collections))
	for _, c := range r.collections {
		cols = append(cols, c)
	}
	r.mu.RUnlock()

	infos := make([]Info, len(cols))
	for i, c := range cols {
		infos[i] = c.Info()
	}
	slices.SortFunc(infos, func(a, b Info) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
	return infos
}

// Len returns the number of collections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.collections)
}

// TotalRecords returns the record count summed over all collections.
func (r *Registry) TotalRecords() int {
	total := 0
	for _, info := range r.List() {
		total += info.Records
	}
	return total
}
