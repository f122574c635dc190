package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"
	"golang.org/x/sync/errgroup"

	"github.com/anonto42/nano-midea/socialsync/internal/observability"
	"github.com/anonto42/nano-midea/socialsync/internal/store"
)

// FirestoreListener turns collection snapshot listeners into events. The first
// snapshot of each collection is taken as the baseline and emits nothing; the
// Before image of an update comes from the previous snapshot of the document.
type FirestoreListener struct {
	client      *firestore.Client
	delivery    *Redeliverer
	logger      *slog.Logger
	collections []string
}

// NewFirestoreListener watches the given collections.
func NewFirestoreListener(client *firestore.Client, delivery *Redeliverer, logger *slog.Logger, collections ...string) *FirestoreListener {
	return &FirestoreListener{client: client, delivery: delivery, logger: logger, collections: collections}
}

// Run blocks until ctx is cancelled or a listener fails.
func (l *FirestoreListener) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, c := range l.collections {
		g.Go(func() error {
			return l.listen(ctx, c)
		})
	}
	err := g.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (l *FirestoreListener) listen(ctx context.Context, collection string) error {
	it := l.client.Collection(collection).Snapshots(ctx)
	defer it.Stop()

	cache := make(map[string]*store.Document)
	baseline := true
	for {
		snap, err := it.Next()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("listen %s: %w", collection, err)
		}

		for _, ch := range snap.Changes {
			id := ch.Doc.Ref.ID
			before := cache[id]
			var after *store.Document
			switch ch.Kind {
			case firestore.DocumentAdded, firestore.DocumentModified:
				after = store.FromSnapshot(ch.Doc)
				cache[id] = after
			case firestore.DocumentRemoved:
				if before == nil {
					before = store.FromSnapshot(ch.Doc)
				}
				delete(cache, id)
			}
			if baseline {
				continue
			}

			at := snap.ReadTime
			if after != nil && !after.UpdateTime.IsZero() {
				at = after.UpdateTime
			}
			e, ok := NewEvent(collection, id, before.Clone(), after.Clone(), at.UTC())
			if !ok {
				continue
			}
			observability.EventsReceived.WithLabelValues("firestore", string(e.Kind)).Inc()
			if err := l.delivery.Deliver(ctx, e); err != nil && ctx.Err() != nil {
				return nil
			}
		}
		if baseline {
			l.logger.Info("listener ready",
				slog.String("collection", collection),
				slog.Int("documents", len(cache)),
				slog.Time("read_time", snap.ReadTime.In(time.UTC)))
			baseline = false
		}
	}
}
