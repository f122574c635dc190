package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ChangeFunc observes a committed mutation. before is nil for a create and
// after is nil for a delete.
type ChangeFunc func(ctx context.Context, collection, id string, before, after *Document)

// Memory is an in-process Store. Change hooks run after the write is committed
// and the store lock is released, so a hook may write back into the store.
type Memory struct {
	mu          sync.Mutex
	collections map[string]map[string]*Document
	hooks       []ChangeFunc
	maxBatchOps int
	last        time.Time
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithMaxBatchOps overrides the per-batch operation limit (default 500).
func WithMaxBatchOps(n int) MemoryOption {
	return func(m *Memory) {
		m.maxBatchOps = n
	}
}

// NewMemory creates an empty in-memory store.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		collections: make(map[string]map[string]*Document),
		maxBatchOps: 500,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// OnChange registers a hook invoked after every committed mutation.
func (m *Memory) OnChange(fn ChangeFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, fn)
}

type change struct {
	collection, id string
	before, after  *Document
}

func (m *Memory) notify(ctx context.Context, changes []change) {
	m.mu.Lock()
	hooks := append([]ChangeFunc(nil), m.hooks...)
	m.mu.Unlock()
	for _, ch := range changes {
		for _, h := range hooks {
			h(ctx, ch.collection, ch.id, ch.before.Clone(), ch.after.Clone())
		}
	}
}

// tick returns a strictly increasing write timestamp. Caller holds m.mu.
func (m *Memory) tick() time.Time {
	now := time.Now().UTC()
	if !now.After(m.last) {
		now = m.last.Add(time.Nanosecond)
	}
	m.last = now
	return now
}

func (m *Memory) coll(name string) map[string]*Document {
	c, ok := m.collections[name]
	if !ok {
		c = make(map[string]*Document)
		m.collections[name] = c
	}
	return c
}

func (m *Memory) Get(_ context.Context, collection, id string) (*Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.coll(collection)[id]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	return doc.Clone(), nil
}

func (m *Memory) Query(_ context.Context, collection string, q Query) ([]*Document, error) {
	m.mu.Lock()
	var out []*Document
	for _, doc := range m.coll(collection) {
		if matches(doc, q.Filters) {
			out = append(out, doc.Clone())
		}
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if q.OrderBy != "" {
			c := compare(out[i].Data[q.OrderBy], out[j].Data[q.OrderBy])
			if c != 0 {
				if q.Descending {
					return c > 0
				}
				return c < 0
			}
		}
		return out[i].ID < out[j].ID
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *Memory) Create(ctx context.Context, collection string, fields Fields) (string, error) {
	id := uuid.NewString()
	m.mu.Lock()
	doc := &Document{ID: id, Data: fields.Merge(), UpdateTime: m.tick()}
	m.coll(collection)[id] = doc
	after := doc.Clone()
	m.mu.Unlock()

	m.notify(ctx, []change{{collection: collection, id: id, after: after}})
	return id, nil
}

func (m *Memory) Set(ctx context.Context, collection, id string, fields Fields) error {
	m.mu.Lock()
	before := m.coll(collection)[id].Clone()
	doc := &Document{ID: id, Data: fields.Merge(), UpdateTime: m.tick()}
	m.coll(collection)[id] = doc
	after := doc.Clone()
	m.mu.Unlock()

	m.notify(ctx, []change{{collection: collection, id: id, before: before, after: after}})
	return nil
}

func (m *Memory) Update(ctx context.Context, collection, id string, fields Fields) error {
	m.mu.Lock()
	ch, err := m.updateLocked(collection, id, fields)
	m.mu.Unlock()
	if err != nil {
		return err
	}
	m.notify(ctx, []change{ch})
	return nil
}

func (m *Memory) updateLocked(collection, id string, fields Fields) (change, error) {
	doc, ok := m.coll(collection)[id]
	if !ok {
		return change{}, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	before := doc.Clone()
	doc.Data = doc.Data.Merge(fields)
	doc.UpdateTime = m.tick()
	return change{collection: collection, id: id, before: before, after: doc.Clone()}, nil
}

func (m *Memory) Delete(ctx context.Context, collection, id string) error {
	m.mu.Lock()
	doc, ok := m.coll(collection)[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	delete(m.coll(collection), id)
	m.mu.Unlock()

	m.notify(ctx, []change{{collection: collection, id: id, before: doc}})
	return nil
}

func (m *Memory) Increment(ctx context.Context, collection, id, field string, delta int64, stamp Fields) (int64, bool, error) {
	m.mu.Lock()
	doc, ok := m.coll(collection)[id]
	if !ok {
		m.mu.Unlock()
		return 0, false, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	next := ToInt64(doc.Data[field]) + delta
	clamped := next < 0
	if clamped {
		next = 0
	}
	ch, _ := m.updateLocked(collection, id, Fields{field: next}.Merge(stamp))
	m.mu.Unlock()

	m.notify(ctx, []change{ch})
	return next, clamped, nil
}

func (m *Memory) MaxBatchOps() int {
	return m.maxBatchOps
}

func (m *Memory) Batch() Batch {
	return &memoryBatch{m: m}
}

type memoryBatch struct {
	m      *Memory
	writes []Write
}

func (b *memoryBatch) Update(collection, id string, fields Fields) {
	b.writes = append(b.writes, Write{Collection: collection, ID: id, Fields: fields})
}

func (b *memoryBatch) Delete(collection, id string) {
	b.writes = append(b.writes, Write{Collection: collection, ID: id, Delete: true})
}

func (b *memoryBatch) Len() int {
	return len(b.writes)
}

// Commit applies every write or none of them.
func (b *memoryBatch) Commit(ctx context.Context) error {
	if len(b.writes) > b.m.maxBatchOps {
		return fmt.Errorf("batch of %d writes exceeds limit %d", len(b.writes), b.m.maxBatchOps)
	}

	b.m.mu.Lock()
	for _, w := range b.writes {
		if w.Delete {
			continue
		}
		if _, ok := b.m.coll(w.Collection)[w.ID]; !ok {
			b.m.mu.Unlock()
			return fmt.Errorf("batch update %s/%s: %w", w.Collection, w.ID, ErrNotFound)
		}
	}

	var changes []change
	for _, w := range b.writes {
		if w.Delete {
			doc, ok := b.m.coll(w.Collection)[w.ID]
			if !ok {
				continue
			}
			delete(b.m.coll(w.Collection), w.ID)
			changes = append(changes, change{collection: w.Collection, id: w.ID, before: doc})
			continue
		}
		ch, err := b.m.updateLocked(w.Collection, w.ID, w.Fields)
		if err != nil {
			// deleted earlier in this same batch
			continue
		}
		changes = append(changes, ch)
	}
	b.m.mu.Unlock()

	b.m.notify(ctx, changes)
	return nil
}

func matches(doc *Document, filters []Filter) bool {
	for _, f := range filters {
		v, ok := doc.Data[f.Field]
		if !ok {
			return false
		}
		c := compare(v, f.Value)
		switch f.Op {
		case OpEq:
			if c != 0 {
				return false
			}
		case OpLt:
			if c >= 0 {
				return false
			}
		case OpLte:
			if c > 0 {
				return false
			}
		case OpGt:
			if c <= 0 {
				return false
			}
		case OpGte:
			if c < 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// compare orders two field values. Mismatched kinds compare as unequal with a
// stable order by kind name.
func compare(a, b any) int {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return kindOrder(a, b)
		}
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return kindOrder(a, b)
		}
		switch {
		case av == bv:
			return 0
		case !av:
			return -1
		}
		return 1
	case nil:
		if b == nil {
			return 0
		}
		return -1
	default:
		if !isNumber(a) || !isNumber(b) {
			return kindOrder(a, b)
		}
		af, bf := toFloat(a), toFloat(b)
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	}
}

func kindOrder(a, b any) int {
	ak, bk := fmt.Sprintf("%T", a), fmt.Sprintf("%T", b)
	if ak < bk {
		return -1
	}
	if ak > bk {
		return 1
	}
	return 0
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int32, int64, uint, uint32, uint64, float32, float64:
		return true
	}
	return false
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float32:
		return float64(n)
	case float64:
		return n
	default:
		return float64(ToInt64(v))
	}
}
