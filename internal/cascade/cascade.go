// Package cascade removes the comments, likes and notifications of a deleted
// post.
package cascade

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/anonto42/nano-midea/socialsync/internal/events"
	"github.com/anonto42/nano-midea/socialsync/internal/models"
	"github.com/anonto42/nano-midea/socialsync/internal/observability"
	"github.com/anonto42/nano-midea/socialsync/internal/store"
)

var dependents = []string{
	models.CollectionComments,
	models.CollectionLikes,
	models.CollectionNotifications,
}

type Cascade struct {
	store  store.Store
	logger *slog.Logger
}

func New(s store.Store, logger *slog.Logger) *Cascade {
	return &Cascade{store: s, logger: logger}
}

// Register subscribes the post-deleted reactor to d.
func (c *Cascade) Register(d *events.Dispatcher) {
	d.Register(models.CollectionPosts, events.Deleted, events.NewReactor("cascade.post", c.onPostDeleted))
}

func (c *Cascade) onPostDeleted(ctx context.Context, e events.Event) error {
	_, err := c.DeletePostDependents(ctx, e.DocumentID)
	return err
}

// DeletePostDependents deletes every record that references postID and
// returns how many were deleted. Nothing is deleted unless all lookups
// succeed. Running it again after success deletes nothing.
func (c *Cascade) DeletePostDependents(ctx context.Context, postID string) (int, error) {
	found := make([][]*store.Document, len(dependents))
	g, gctx := errgroup.WithContext(ctx)
	for i, collection := range dependents {
		g.Go(func() error {
			docs, err := c.store.Query(gctx, collection, store.Query{
				Filters: []store.Filter{store.Where(models.FieldPostID, store.OpEq, postID)},
			})
			if err != nil {
				return fmt.Errorf("find %s of post %s: %w", collection, postID, err)
			}
			found[i] = docs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	var writes []store.Write
	for i, docs := range found {
		for _, doc := range docs {
			writes = append(writes, store.Write{Collection: dependents[i], ID: doc.ID, Delete: true})
		}
	}
	if len(writes) == 0 {
		return 0, nil
	}

	n, err := store.ApplyInBatches(ctx, c.store, writes)
	for _, w := range writes[:n] {
		observability.CascadeDeletes.WithLabelValues(w.Collection).Inc()
	}
	if err != nil {
		return n, fmt.Errorf("cascade post %s: %w", postID, err)
	}
	c.logger.InfoContext(ctx, "post dependents deleted",
		slog.String("post_id", postID),
		slog.Int("comments", len(found[0])),
		slog.Int("likes", len(found[1])),
		slog.Int("notifications", len(found[2])))
	return n, nil
}
