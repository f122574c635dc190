package counters

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/anonto42/nano-midea/socialsync/internal/models"
	"github.com/anonto42/nano-midea/socialsync/internal/observability"
	"github.com/anonto42/nano-midea/socialsync/internal/store"
)

// Report summarizes a reconciliation pass.
type Report struct {
	Checked  int64 `json:"checked"`
	Repaired int64 `json:"repaired"`
}

func (r Report) Add(o Report) Report {
	return Report{Checked: r.Checked + o.Checked, Repaired: r.Repaired + o.Repaired}
}

// Reconciler recomputes counters from the records they count and overwrites
// the ones that drifted. It scans whole collections and is meant for
// maintenance runs, not the request path.
type Reconciler struct {
	store       store.Store
	logger      *slog.Logger
	concurrency int
}

func NewReconciler(s store.Store, logger *slog.Logger) *Reconciler {
	return &Reconciler{store: s, logger: logger, concurrency: 8}
}

type recount struct {
	field      string
	collection string
	by         string
}

// Posts repairs likeCount and commentCount on every post.
func (r *Reconciler) Posts(ctx context.Context) (Report, error) {
	return r.run(ctx, models.CollectionPosts, []recount{
		{field: models.FieldLikeCount, collection: models.CollectionLikes, by: models.FieldPostID},
		{field: models.FieldCommentCount, collection: models.CollectionComments, by: models.FieldPostID},
	})
}

// Users repairs followersCount and followingCount on every user.
func (r *Reconciler) Users(ctx context.Context) (Report, error) {
	return r.run(ctx, models.CollectionUsers, []recount{
		{field: models.FieldFollowersCount, collection: models.CollectionFollows, by: models.FieldReceiverHandle},
		{field: models.FieldFollowingCount, collection: models.CollectionFollows, by: models.FieldSenderHandle},
	})
}

func (r *Reconciler) run(ctx context.Context, collection string, counts []recount) (Report, error) {
	docs, err := r.store.Query(ctx, collection, store.Query{})
	if err != nil {
		return Report{}, fmt.Errorf("list %s: %w", collection, err)
	}

	var repaired atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for _, doc := range docs {
		g.Go(func() error {
			fix := store.Fields{}
			for _, c := range counts {
				live, err := r.store.Query(ctx, c.collection, store.Query{
					Filters: []store.Filter{store.Where(c.by, store.OpEq, doc.ID)},
				})
				if err != nil {
					return fmt.Errorf("count %s for %s/%s: %w", c.collection, collection, doc.ID, err)
				}
				if want := int64(len(live)); doc.Int(c.field) != want {
					fix[c.field] = want
					observability.CounterRepairs.WithLabelValues(collection, c.field).Inc()
					r.logger.InfoContext(ctx, "repairing counter",
						slog.String("document", collection+"/"+doc.ID),
						slog.String("field", c.field),
						slog.Int64("stored", doc.Int(c.field)),
						slog.Int64("actual", want))
				}
			}
			if len(fix) == 0 {
				return nil
			}
			if err := r.store.Update(ctx, collection, doc.ID, fix.Merge(store.Stamp(Writer))); err != nil {
				return fmt.Errorf("repair %s/%s: %w", collection, doc.ID, err)
			}
			repaired.Add(1)
			return nil
		})
	}
	err = g.Wait()
	return Report{Checked: int64(len(docs)), Repaired: repaired.Load()}, err
}
