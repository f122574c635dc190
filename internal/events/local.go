package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/anonto42/nano-midea/socialsync/internal/observability"
	"github.com/anonto42/nano-midea/socialsync/internal/store"
)

// Handler consumes events. *Dispatcher satisfies it.
type Handler interface {
	Dispatch(ctx context.Context, e Event) error
}

// Redeliverer retries a failed dispatch, standing in for the platform's
// at-least-once redelivery.
type Redeliverer struct {
	handler     Handler
	logger      *slog.Logger
	maxAttempts int
	backoff     time.Duration
}

// NewRedeliverer wraps h. maxAttempts below one means a single attempt.
func NewRedeliverer(h Handler, logger *slog.Logger, maxAttempts int, backoff time.Duration) *Redeliverer {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Redeliverer{handler: h, logger: logger, maxAttempts: maxAttempts, backoff: backoff}
}

// Deliver dispatches e until it succeeds, the attempts run out, or ctx ends.
// It returns the last error.
func (r *Redeliverer) Deliver(ctx context.Context, e Event) error {
	var err error
	wait := r.backoff
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if err = r.handler.Dispatch(ctx, e); err == nil {
			return nil
		}
		if attempt == r.maxAttempts {
			break
		}
		r.logger.Warn("redelivering event",
			slog.String("event_id", e.ID),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
	observability.EventsAbandoned.WithLabelValues(e.Collection, string(e.Kind)).Inc()
	r.logger.Error("event delivery abandoned",
		slog.String("event_id", e.ID),
		slog.String("collection", e.Collection),
		slog.String("document_id", e.DocumentID),
		slog.Int("attempts", r.maxAttempts),
		slog.String("error", err.Error()))
	return err
}

// Local feeds a Memory store's committed writes to a handler, synchronously,
// before the write call returns.
type Local struct {
	delivery *Redeliverer
	watched  map[string]bool
}

// NewLocal returns a source delivering changes on the given collections.
func NewLocal(delivery *Redeliverer, collections ...string) *Local {
	watched := make(map[string]bool, len(collections))
	for _, c := range collections {
		watched[c] = true
	}
	return &Local{delivery: delivery, watched: watched}
}

// Attach starts observing m.
func (l *Local) Attach(m *store.Memory) {
	m.OnChange(l.onChange)
}

func (l *Local) onChange(ctx context.Context, collection, id string, before, after *store.Document) {
	if !l.watched[collection] {
		return
	}
	e, ok := NewEvent(collection, id, before, after, time.Now().UTC())
	if !ok {
		return
	}
	observability.EventsReceived.WithLabelValues("local", string(e.Kind)).Inc()
	// The write has already committed; a delivery failure is logged by Deliver.
	_ = l.delivery.Deliver(context.WithoutCancel(ctx), e)
}
