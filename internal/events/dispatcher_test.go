package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anonto42/nano-midea/socialsync/internal/ledger"
	"github.com/anonto42/nano-midea/socialsync/internal/observability"
	"github.com/anonto42/nano-midea/socialsync/internal/store"
)

func newTestLedger(t *testing.T) ledger.Ledger {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return ledger.NewRedis(rdb, time.Hour)
}

func likeCreated(id string) Event {
	e, _ := NewEvent("likes", id, nil, &store.Document{ID: id, Data: store.Fields{"postId": "p1"}}, time.Now())
	return e
}

func TestNewEventKinds(t *testing.T) {
	doc := &store.Document{ID: "d", Data: store.Fields{}, UpdateTime: time.Unix(0, 42)}

	e, ok := NewEvent("posts", "d", nil, doc, time.Unix(1, 0))
	require.True(t, ok)
	assert.Equal(t, Created, e.Kind)
	assert.Equal(t, "posts/d/created", e.ID)

	e, ok = NewEvent("posts", "d", doc, nil, time.Unix(1, 0))
	require.True(t, ok)
	assert.Equal(t, Deleted, e.Kind)
	assert.Equal(t, "posts/d/deleted", e.ID)

	e, ok = NewEvent("posts", "d", doc, doc, time.Unix(1, 0))
	require.True(t, ok)
	assert.Equal(t, Updated, e.Kind)
	assert.Equal(t, "posts/d/updated/42", e.ID)

	_, ok = NewEvent("posts", "d", nil, nil, time.Now())
	assert.False(t, ok)
}

func TestDispatchRunsEveryMatchingReactor(t *testing.T) {
	d := NewDispatcher(newTestLedger(t), observability.Discard())
	var a, b, other atomic.Int32
	d.Register("likes", Created, NewReactor("a", func(context.Context, Event) error { a.Add(1); return nil }))
	d.Register("likes", Created, NewReactor("b", func(context.Context, Event) error { b.Add(1); return nil }))
	d.Register("likes", Deleted, NewReactor("c", func(context.Context, Event) error { other.Add(1); return nil }))

	require.NoError(t, d.Dispatch(context.Background(), likeCreated("l1")))
	assert.Equal(t, int32(1), a.Load())
	assert.Equal(t, int32(1), b.Load())
	assert.Equal(t, int32(0), other.Load())
	assert.Equal(t, []string{"a", "b"}, d.Reactors("likes", Created))
	assert.Equal(t, []string{"likes"}, d.Collections())
}

func TestDispatchDeduplicatesRedelivery(t *testing.T) {
	d := NewDispatcher(newTestLedger(t), observability.Discard())
	var calls atomic.Int32
	d.Register("likes", Created, NewReactor("count", func(context.Context, Event) error { calls.Add(1); return nil }))

	e := likeCreated("l1")
	require.NoError(t, d.Dispatch(context.Background(), e))
	require.NoError(t, d.Dispatch(context.Background(), e))
	assert.Equal(t, int32(1), calls.Load())
}

func TestDispatchIsolatesFailures(t *testing.T) {
	d := NewDispatcher(newTestLedger(t), observability.Discard())
	var okCalls, failCalls atomic.Int32
	d.Register("likes", Created, NewReactor("ok", func(context.Context, Event) error { okCalls.Add(1); return nil }))
	d.Register("likes", Created, NewReactor("flaky", func(context.Context, Event) error {
		if failCalls.Add(1) == 1 {
			return errors.New("store unavailable")
		}
		return nil
	}))

	e := likeCreated("l1")
	err := d.Dispatch(context.Background(), e)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flaky")

	require.NoError(t, d.Dispatch(context.Background(), e))
	assert.Equal(t, int32(1), okCalls.Load(), "completed reactor must not re-run")
	assert.Equal(t, int32(2), failCalls.Load(), "failed reactor re-runs on redelivery")
}

func TestDispatchSwallowsNotFound(t *testing.T) {
	d := NewDispatcher(newTestLedger(t), observability.Discard())
	var calls atomic.Int32
	d.Register("likes", Created, NewReactor("gone", func(context.Context, Event) error {
		calls.Add(1)
		return fmt.Errorf("posts/p1: %w", store.ErrNotFound)
	}))

	e := likeCreated("l1")
	require.NoError(t, d.Dispatch(context.Background(), e))
	require.NoError(t, d.Dispatch(context.Background(), e))
	assert.Equal(t, int32(1), calls.Load())
}

func TestDispatchSkipsIgnoredWriters(t *testing.T) {
	d := NewDispatcher(newTestLedger(t), observability.Discard())
	var calls atomic.Int32
	d.Register("users", Updated, NewReactor("profile", func(context.Context, Event) error { calls.Add(1); return nil }), "counters")

	before := &store.Document{ID: "alice", Data: store.Fields{"followersCount": 0}}
	byCounters := &store.Document{ID: "alice", Data: store.Fields{"followersCount": 1, store.FieldWriter: "counters"}, UpdateTime: time.Unix(0, 1)}
	byClient := &store.Document{ID: "alice", Data: store.Fields{"imageUrl": "x", store.FieldWriter: store.WriterClient}, UpdateTime: time.Unix(0, 2)}

	e, _ := NewEvent("users", "alice", before, byCounters, time.Now())
	require.NoError(t, d.Dispatch(context.Background(), e))
	assert.Equal(t, int32(0), calls.Load())

	e, _ = NewEvent("users", "alice", byCounters, byClient, time.Now())
	require.NoError(t, d.Dispatch(context.Background(), e))
	assert.Equal(t, int32(1), calls.Load())
}

func TestDispatchAppliesTimeout(t *testing.T) {
	d := NewDispatcher(newTestLedger(t), observability.Discard(), WithReactorTimeout(20*time.Millisecond))
	d.Register("likes", Created, NewReactor("slow", func(ctx context.Context, _ Event) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	err := d.Dispatch(context.Background(), likeCreated("l1"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRedelivererRetriesUntilSuccess(t *testing.T) {
	d := NewDispatcher(newTestLedger(t), observability.Discard())
	var calls atomic.Int32
	d.Register("likes", Created, NewReactor("flaky", func(context.Context, Event) error {
		if calls.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	}))

	r := NewRedeliverer(d, observability.Discard(), 3, time.Millisecond)
	require.NoError(t, r.Deliver(context.Background(), likeCreated("l1")))
	assert.Equal(t, int32(3), calls.Load())
}

func TestRedelivererGivesUp(t *testing.T) {
	d := NewDispatcher(newTestLedger(t), observability.Discard())
	var calls atomic.Int32
	d.Register("likes", Created, NewReactor("broken", func(context.Context, Event) error {
		calls.Add(1)
		return errors.New("permanent")
	}))

	abandoned := observability.EventsAbandoned.WithLabelValues("likes", string(Created))
	before := promtestutil.ToFloat64(abandoned)

	r := NewRedeliverer(d, observability.Discard(), 2, time.Millisecond)
	assert.Error(t, r.Deliver(context.Background(), likeCreated("l1")))
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, before+1, promtestutil.ToFloat64(abandoned))
}

func TestLocalSourceDeliversWatchedCollections(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	d := NewDispatcher(newTestLedger(t), observability.Discard())

	var mu sync.Mutex
	var got []string
	record := NewReactor("record", func(_ context.Context, e Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e.Collection+":"+string(e.Kind))
		return nil
	})
	d.Register("likes", Created, record)
	d.Register("likes", Updated, record)
	d.Register("likes", Deleted, record)

	NewLocal(NewRedeliverer(d, observability.Discard(), 1, 0), "likes").Attach(m)

	require.NoError(t, m.Set(ctx, "likes", "l1", store.Fields{"postId": "p1"}))
	require.NoError(t, m.Update(ctx, "likes", "l1", store.Fields{"postId": "p2"}))
	require.NoError(t, m.Delete(ctx, "likes", "l1"))
	require.NoError(t, m.Set(ctx, "posts", "p1", store.Fields{}))

	assert.Equal(t, []string{"likes:created", "likes:updated", "likes:deleted"}, got)
}

func TestDecodeEnvelope(t *testing.T) {
	e, err := DecodeEnvelope([]byte(`{
		"collection": "likes",
		"documentId": "l1",
		"after": {"data": {"postId": "p1", "userHandle": "bob"}}
	}`))
	require.NoError(t, err)
	assert.Equal(t, Created, e.Kind)
	assert.Equal(t, "likes/l1/created", e.ID)
	assert.Equal(t, "l1", e.After.ID)
	assert.Equal(t, "p1", e.After.String("postId"))

	_, err = DecodeEnvelope([]byte(`{"collection": "likes", "documentId": "l1", "kind": "deleted",
		"after": {"data": {}}}`))
	assert.Error(t, err)

	_, err = DecodeEnvelope([]byte(`{"collection": "likes"}`))
	assert.Error(t, err)
}
