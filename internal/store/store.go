// Package store defines the document Record Store contract used by every
// component, plus its Firestore, MongoDB and in-memory backends.
//
// The store addresses documents by collection name and document id. It offers
// equality and range filters, ordering and limits on reads, an atomic numeric
// increment on a single document, and bounded batches of update/delete
// operations that commit together. It offers no multi-document transactions.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned (wrapped) when a referenced document does not exist.
var ErrNotFound = errors.New("document not found")

// FieldWriter is the reserved provenance field stamped on every write. It holds
// "client" for request-driven writes or the name of the reactor that issued it.
const FieldWriter = "_writer"

// WriterClient marks writes issued on behalf of an end user.
const WriterClient = "client"

// Fields is a partial or complete set of document fields.
type Fields map[string]any

// Stamp returns the provenance fields for a write issued by writer.
func Stamp(writer string) Fields {
	return Fields{FieldWriter: writer}
}

// Merge returns a new Fields holding f overlaid with every other set in order.
func (f Fields) Merge(others ...Fields) Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	for _, o := range others {
		for k, v := range o {
			out[k] = v
		}
	}
	return out
}

// Document is a snapshot of one stored document.
type Document struct {
	ID         string    `json:"id"`
	Data       Fields    `json:"data"`
	UpdateTime time.Time `json:"updateTime"`
}

// String returns the string value of field, or "" when absent or not a string.
func (d *Document) String(field string) string {
	if d == nil {
		return ""
	}
	s, _ := d.Data[field].(string)
	return s
}

// Int returns the integer value of field, or 0 when absent.
func (d *Document) Int(field string) int64 {
	if d == nil {
		return 0
	}
	return ToInt64(d.Data[field])
}

// Bool returns the boolean value of field.
func (d *Document) Bool(field string) bool {
	if d == nil {
		return false
	}
	b, _ := d.Data[field].(bool)
	return b
}

// Writer returns the provenance stamp of the last write to the document.
func (d *Document) Writer() string {
	return d.String(FieldWriter)
}

// Clone returns a deep-enough copy of the document; field values are copied
// shallowly, which is sufficient for the scalar fields the models use.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	return &Document{ID: d.ID, Data: d.Data.Merge(), UpdateTime: d.UpdateTime}
}

// ToInt64 converts the numeric representations the backends decode into an int64.
func ToInt64(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case uint:
		return int64(n)
	case uint32:
		return int64(n)
	case uint64:
		return int64(n)
	case float32:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

// Op is a filter comparison operator.
type Op string

const (
	OpEq  Op = "=="
	OpLt  Op = "<"
	OpLte Op = "<="
	OpGt  Op = ">"
	OpGte Op = ">="
)

// Filter restricts a query to documents whose Field compares to Value by Op.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Where builds a Filter.
func Where(field string, op Op, value any) Filter {
	return Filter{Field: field, Op: op, Value: value}
}

// Query describes a read over one collection. A zero Limit means no limit.
type Query struct {
	Filters    []Filter
	OrderBy    string
	Descending bool
	Limit      int
}

// Store is the Record Store contract.
type Store interface {
	// Get returns the document or an error wrapping ErrNotFound.
	Get(ctx context.Context, collection, id string) (*Document, error)
	// Query returns the matching documents in the requested order.
	Query(ctx context.Context, collection string, q Query) ([]*Document, error)
	// Create stores a new document under a generated id and returns the id.
	Create(ctx context.Context, collection string, fields Fields) (string, error)
	// Set creates or replaces the document with the given id.
	Set(ctx context.Context, collection, id string, fields Fields) error
	// Update merges fields into an existing document.
	Update(ctx context.Context, collection, id string, fields Fields) error
	// Delete removes an existing document.
	Delete(ctx context.Context, collection, id string) error
	// Increment atomically adds delta to a numeric field, clamping the result
	// at zero. It reports the new value and whether the clamp was applied.
	// stamp is merged into the same write.
	Increment(ctx context.Context, collection, id, field string, delta int64, stamp Fields) (int64, bool, error)
	// Batch starts a new batch of writes.
	Batch() Batch
	// MaxBatchOps is the largest number of operations one batch may hold.
	MaxBatchOps() int
}

// Batch is a scoped sequence of update/delete operations committed together.
// An update of a missing document fails the whole batch; a delete of a
// missing document is a no-op.
type Batch interface {
	Update(collection, id string, fields Fields)
	Delete(collection, id string)
	Len() int
	Commit(ctx context.Context) error
}

// Write is one queued batch operation.
type Write struct {
	Collection string
	ID         string
	Fields     Fields
	Delete     bool
}

// ApplyInBatches commits writes in as few batches as the store's operation
// limit allows, one batch after another. It stops at the first failed batch and
// returns the number of writes committed before it.
func ApplyInBatches(ctx context.Context, s Store, writes []Write) (int, error) {
	limit := s.MaxBatchOps()
	if limit <= 0 {
		limit = len(writes)
	}
	committed := 0
	for start := 0; start < len(writes); start += limit {
		end := min(start+limit, len(writes))
		b := s.Batch()
		for _, w := range writes[start:end] {
			if w.Delete {
				b.Delete(w.Collection, w.ID)
			} else {
				b.Update(w.Collection, w.ID, w.Fields)
			}
		}
		if err := b.Commit(ctx); err != nil {
			return committed, fmt.Errorf("commit batch %d-%d of %d: %w", start, end, len(writes), err)
		}
		committed = end
	}
	return committed, nil
}
