// Package events delivers document change events to registered reactors.
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/anonto42/nano-midea/socialsync/internal/store"
)

// Kind is the type of document change.
type Kind string

const (
	Created Kind = "created"
	Updated Kind = "updated"
	Deleted Kind = "deleted"
)

// Event is one document change. Before is nil for Created and After is nil for
// Deleted.
type Event struct {
	ID         string          `json:"id"`
	Collection string          `json:"collection"`
	DocumentID string          `json:"documentId"`
	Kind       Kind            `json:"kind"`
	Before     *store.Document `json:"before,omitempty"`
	After      *store.Document `json:"after,omitempty"`
	OccurredAt time.Time       `json:"occurredAt"`
}

// NewEvent builds an event from the before and after images of a document and
// reports false when both are nil.
func NewEvent(collection, id string, before, after *store.Document, at time.Time) (Event, bool) {
	var kind Kind
	switch {
	case before == nil && after == nil:
		return Event{}, false
	case before == nil:
		kind = Created
	case after == nil:
		kind = Deleted
	default:
		kind = Updated
		if !after.UpdateTime.IsZero() {
			at = after.UpdateTime
		}
	}
	return Event{
		ID:         EventID(collection, id, kind, at),
		Collection: collection,
		DocumentID: id,
		Kind:       kind,
		Before:     before,
		After:      after,
		OccurredAt: at,
	}, true
}

// EventID derives a delivery-stable id. A document is created and deleted at
// most once, so those ids need no timestamp; updates are told apart by the
// write time.
func EventID(collection, id string, kind Kind, at time.Time) string {
	if kind == Updated {
		return fmt.Sprintf("%s/%s/%s/%d", collection, id, kind, at.UnixNano())
	}
	return fmt.Sprintf("%s/%s/%s", collection, id, kind)
}

// RecordKey identifies the document an event is about.
func (e Event) RecordKey() string {
	return e.Collection + "/" + e.DocumentID
}

// Current returns After, or Before for a delete.
func (e Event) Current() *store.Document {
	if e.After != nil {
		return e.After
	}
	return e.Before
}

// ClaimKey is the ledger key for reactor having handled eventID.
func ClaimKey(reactor, eventID string) string {
	return reactor + ":" + eventID
}

// Reactor reacts to one kind of document change.
type Reactor interface {
	Name() string
	Handle(ctx context.Context, e Event) error
}

type reactorFunc struct {
	name string
	fn   func(ctx context.Context, e Event) error
}

func (r reactorFunc) Name() string                              { return r.name }
func (r reactorFunc) Handle(ctx context.Context, e Event) error { return r.fn(ctx, e) }

// NewReactor adapts a function into a Reactor.
func NewReactor(name string, fn func(ctx context.Context, e Event) error) Reactor {
	return reactorFunc{name: name, fn: fn}
}
