// Package profile propagates avatar changes to the posts and comments that
// embed them and removes superseded image blobs.
package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/anonto42/nano-midea/socialsync/internal/blob"
	"github.com/anonto42/nano-midea/socialsync/internal/counters"
	"github.com/anonto42/nano-midea/socialsync/internal/events"
	"github.com/anonto42/nano-midea/socialsync/internal/models"
	"github.com/anonto42/nano-midea/socialsync/internal/observability"
	"github.com/anonto42/nano-midea/socialsync/internal/store"
)

// Writer is the provenance stamp on propagated userImage writes.
const Writer = "profile"

type Propagator struct {
	store        store.Store
	blobs        blob.Store
	defaultImage string
	logger       *slog.Logger
}

// New returns a propagator. defaultImageRef names the shared default avatar
// object, which is never deleted.
func New(s store.Store, blobs blob.Store, defaultImageRef string, logger *slog.Logger) *Propagator {
	return &Propagator{store: s, blobs: blobs, defaultImage: defaultImageRef, logger: logger}
}

// Register subscribes the user-updated reactor to d. Counter writes on users
// do not reach it.
func (p *Propagator) Register(d *events.Dispatcher) {
	d.Register(models.CollectionUsers, events.Updated, events.NewReactor("profile.images", p.onUserUpdated), counters.Writer)
}

func (p *Propagator) onUserUpdated(ctx context.Context, e events.Event) error {
	return p.OnUserUpdated(ctx, e.DocumentID, e.Before, e.After)
}

// OnUserUpdated handles the avatar and header branches independently, so one
// update that changes both runs both.
func (p *Propagator) OnUserUpdated(ctx context.Context, handle string, before, after *store.Document) error {
	if before == nil || after == nil {
		return nil
	}
	if before.String(models.FieldImageURL) != after.String(models.FieldImageURL) {
		if err := p.propagateImage(ctx, handle, before.String(models.FieldImageURLRef)); err != nil {
			return err
		}
	}
	oldHeader := before.String(models.FieldHeaderURL)
	if oldHeader != "" && oldHeader != after.String(models.FieldHeaderURL) {
		p.deleteBlob(ctx, handle, before.String(models.FieldHeaderURLRef), after.String(models.FieldHeaderURLRef))
	}
	return nil
}

// propagateAttempts bounds how often propagation re-reads the user's posts and
// comments after some of them were deleted under it.
const propagateAttempts = 3

// propagateImage writes the user's current imageUrl into every post and
// comment they authored. Reading the current value rather than the event's
// After image keeps the end state right when updates arrive out of order.
func (p *Propagator) propagateImage(ctx context.Context, handle, oldRef string) error {
	for attempt := 1; ; attempt++ {
		current, err := p.rewrite(ctx, handle)
		if err == nil {
			p.deleteBlob(ctx, handle, oldRef, current.ImageURLRef)
			return nil
		}
		var vanished *vanishedError
		if !errors.As(err, &vanished) {
			return err
		}
		if attempt == propagateAttempts {
			// must not read as not-found, or the event would be dropped
			return models.NewStoreError(fmt.Errorf("propagate image of %s: %v", handle, vanished.err))
		}
		p.logger.WarnContext(ctx, "record deleted during image propagation, retrying",
			slog.String("handle", handle),
			slog.Int("attempt", attempt),
			slog.String("error", vanished.err.Error()))
	}
}

// vanishedError marks a batch that failed because one of its documents was
// deleted after the query that found it.
type vanishedError struct{ err error }

func (e *vanishedError) Error() string { return e.err.Error() }

func (p *Propagator) rewrite(ctx context.Context, handle string) (models.User, error) {
	doc, err := p.store.Get(ctx, models.CollectionUsers, handle)
	if err != nil {
		return models.User{}, fmt.Errorf("load user %s: %w", handle, err)
	}
	current := models.UserFromDocument(doc)

	collections := []string{models.CollectionPosts, models.CollectionComments}
	found := make([][]*store.Document, len(collections))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range collections {
		g.Go(func() error {
			docs, err := p.store.Query(gctx, c, store.Query{
				Filters: []store.Filter{store.Where(models.FieldUserHandle, store.OpEq, handle)},
			})
			if err != nil {
				return fmt.Errorf("find %s by %s: %w", c, handle, err)
			}
			found[i] = docs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return models.User{}, err
	}

	update := store.Fields{models.FieldUserImage: current.ImageURL}.Merge(store.Stamp(Writer))
	var writes []store.Write
	for i, docs := range found {
		for _, d := range docs {
			if d.String(models.FieldUserImage) == current.ImageURL {
				continue
			}
			writes = append(writes, store.Write{Collection: collections[i], ID: d.ID, Fields: update})
		}
	}
	n, err := store.ApplyInBatches(ctx, p.store, writes)
	observability.PropagatedImages.Add(float64(n))
	if errors.Is(err, store.ErrNotFound) {
		return models.User{}, &vanishedError{err: err}
	}
	if err != nil {
		return models.User{}, fmt.Errorf("propagate image of %s: %w", handle, err)
	}
	p.logger.InfoContext(ctx, "profile image propagated",
		slog.String("handle", handle),
		slog.Int("posts", len(found[0])),
		slog.Int("comments", len(found[1])),
		slog.Int("rewritten", n))
	return current, nil
}

// deleteBlob removes a superseded image. Failures are logged and counted;
// the records are already consistent at this point.
func (p *Propagator) deleteBlob(ctx context.Context, handle, ref, currentRef string) {
	if ref == "" || ref == p.defaultImage || ref == currentRef {
		return
	}
	if err := p.blobs.Delete(ctx, ref); err != nil {
		observability.BlobDeleteFailures.Inc()
		p.logger.ErrorContext(ctx, "failed to delete superseded image",
			slog.String("handle", handle),
			slog.String("ref", ref),
			slog.String("error", err.Error()))
	}
}
