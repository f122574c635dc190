package counters

import (
	"context"
	"errors"
	"log/slog"

	"github.com/anonto42/nano-midea/socialsync/internal/events"
	"github.com/anonto42/nano-midea/socialsync/internal/ledger"
	"github.com/anonto42/nano-midea/socialsync/internal/models"
	"github.com/anonto42/nano-midea/socialsync/internal/store"
)

const (
	likeReactor   = "counters.likes"
	followReactor = "counters.follows"
)

// reactor keeps likeCount, followersCount and followingCount in step with the
// like and follow records.
//
// The created and deleted events of one record may arrive in either order. The
// first of the two to run claims the record's pair token: a created event that
// wins applies its increments, a deleted event that wins skips its decrements
// (there is nothing to undo) and makes the late created event skip as well.
type reactor struct {
	m      *Maintainer
	ledger ledger.Ledger
	logger *slog.Logger
}

// Register subscribes the counter reactors to d.
func Register(d *events.Dispatcher, m *Maintainer, l ledger.Ledger, logger *slog.Logger) {
	r := &reactor{m: m, ledger: l, logger: logger}
	d.Register(models.CollectionLikes, events.Created, events.NewReactor(likeReactor, r.handler(likeReactor, likeTargets, 1)))
	d.Register(models.CollectionLikes, events.Deleted, events.NewReactor(likeReactor, r.handler(likeReactor, likeTargets, -1)))
	d.Register(models.CollectionFollows, events.Created, events.NewReactor(followReactor, r.handler(followReactor, followTargets, 1)))
	d.Register(models.CollectionFollows, events.Deleted, events.NewReactor(followReactor, r.handler(followReactor, followTargets, -1)))
}

func likeTargets(doc *store.Document) []Target {
	if postID := doc.String(models.FieldPostID); postID != "" {
		return []Target{LikeCount(postID)}
	}
	return nil
}

func followTargets(doc *store.Document) []Target {
	var out []Target
	if receiver := doc.String(models.FieldReceiverHandle); receiver != "" {
		out = append(out, FollowersCount(receiver))
	}
	if sender := doc.String(models.FieldSenderHandle); sender != "" {
		out = append(out, FollowingCount(sender))
	}
	return out
}

func pairKey(name string, e events.Event) string {
	return name + ":pair:" + e.RecordKey()
}

// ownsPair reports whether this side of the record's created/deleted pair
// holds the pair token, claiming it if neither side does yet.
func (r *reactor) ownsPair(ctx context.Context, name string, e events.Event) (bool, error) {
	pair := pairKey(name, e)
	marker := pair + "|" + string(e.Kind)
	held, err := r.ledger.Seen(ctx, marker)
	if err != nil {
		return false, err
	}
	if held {
		return true, nil
	}
	first, err := r.ledger.Claim(ctx, pair)
	if err != nil || !first {
		return false, err
	}
	if _, err := r.ledger.Claim(ctx, marker); err != nil {
		return false, err
	}
	return true, nil
}

func (r *reactor) handler(name string, targetsOf func(*store.Document) []Target, delta int64) func(context.Context, events.Event) error {
	return func(ctx context.Context, e events.Event) error {
		owns, err := r.ownsPair(ctx, name, e)
		if err != nil {
			return err
		}
		if (delta > 0) != owns {
			r.logger.DebugContext(ctx, "counterpart event already settled this record",
				slog.String("event_id", e.ID))
			return nil
		}

		base := events.ClaimKey(name, e.ID)
		for _, t := range targetsOf(e.Current()) {
			key := base + "|" + t.String()
			first, err := r.ledger.Claim(ctx, key)
			if err != nil {
				return err
			}
			if !first {
				continue
			}
			if _, err := r.m.Adjust(ctx, t, delta); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					r.logger.DebugContext(ctx, "counter target is gone", slog.String("target", t.String()))
					continue
				}
				if rerr := r.ledger.Release(context.WithoutCancel(ctx), key); rerr != nil {
					return errors.Join(err, rerr)
				}
				return err
			}
		}
		return nil
	}
}
