// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/anonto42/nano-midea/socialsync/internal/events"
	"github.com/anonto42/nano-midea/socialsync/internal/ledger"
	"github.com/anonto42/nano-midea/socialsync/internal/models"
	"github.com/anonto42/nano-midea/socialsync/internal/observability"
	"github.com/anonto42/nano-midea/socialsync/internal/store"
)

// Harness is an in-memory store, a miniredis-backed ledger and a dispatcher.
// Events only flow automatically after AttachLocal; otherwise tests feed the
// dispatcher by hand, in whatever order they need.
type Harness struct {
	Store      *store.Memory
	Ledger     ledger.Ledger
	Dispatcher *events.Dispatcher
	Logger     *slog.Logger
	Redis      *miniredis.Miniredis
}

func NewHarness(t testing.TB, opts ...store.MemoryOption) *Harness {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	logger := observability.Discard()
	l := ledger.NewRedis(rdb, time.Hour)
	return &Harness{
		Store:      store.NewMemory(opts...),
		Ledger:     l,
		Dispatcher: events.NewDispatcher(l, logger),
		Logger:     logger,
		Redis:      mr,
	}
}

// AttachLocal delivers every committed write on collections to the dispatcher.
func (h *Harness) AttachLocal(collections ...string) {
	events.NewLocal(events.NewRedeliverer(h.Dispatcher, h.Logger, 3, time.Millisecond), collections...).Attach(h.Store)
}

// Created builds the created event of a document.
func Created(collection, id string, fields store.Fields) events.Event {
	e, _ := events.NewEvent(collection, id, nil, &store.Document{ID: id, Data: fields}, time.Now())
	return e
}

// Deleted builds the deleted event of a document.
func Deleted(collection, id string, fields store.Fields) events.Event {
	e, _ := events.NewEvent(collection, id, &store.Document{ID: id, Data: fields}, nil, time.Now())
	return e
}

// Updated builds an update event; at distinguishes successive updates.
func Updated(collection, id string, before, after store.Fields, at time.Time) events.Event {
	e, _ := events.NewEvent(collection, id,
		&store.Document{ID: id, Data: before},
		&store.Document{ID: id, Data: after, UpdateTime: at}, at)
	return e
}

func SeedUser(t testing.TB, s store.Store, handle string, fields store.Fields) {
	t.Helper()
	u := models.User{Handle: handle, Email: handle + "@example.com", CreatedAt: models.Now()}
	require.NoError(t, s.Set(context.Background(), models.CollectionUsers, handle,
		u.Fields().Merge(fields, store.Stamp(store.WriterClient))))
}

func SeedPost(t testing.TB, s store.Store, id, author string, fields store.Fields) {
	t.Helper()
	p := models.Post{UserHandle: author, Body: "hello", Location: models.LocationExplore, CreatedAt: models.Now()}
	require.NoError(t, s.Set(context.Background(), models.CollectionPosts, id,
		p.Fields().Merge(fields, store.Stamp(store.WriterClient))))
}

// Count returns how many documents in collection have field == value.
func Count(t testing.TB, s store.Store, collection, field string, value any) int {
	t.Helper()
	docs, err := s.Query(context.Background(), collection, store.Query{
		Filters: []store.Filter{store.Where(field, store.OpEq, value)},
	})
	require.NoError(t, err)
	return len(docs)
}

// Field reads one field of a document, failing the test if it is missing.
func Field(t testing.TB, s store.Store, collection, id, field string) any {
	t.Helper()
	doc, err := s.Get(context.Background(), collection, id)
	require.NoError(t, err)
	return doc.Data[field]
}
