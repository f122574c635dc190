// Package counters owns every mutation of the denormalized counters on posts
// and users.
package counters

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/anonto42/nano-midea/socialsync/internal/models"
	"github.com/anonto42/nano-midea/socialsync/internal/observability"
	"github.com/anonto42/nano-midea/socialsync/internal/store"
)

// Writer is the provenance stamp on counter writes.
const Writer = "counters"

// Target names one counter field on one document.
type Target struct {
	Collection string
	ID         string
	Field      string
}

func (t Target) String() string {
	return t.Collection + "/" + t.ID + "." + t.Field
}

func LikeCount(postID string) Target {
	return Target{Collection: models.CollectionPosts, ID: postID, Field: models.FieldLikeCount}
}

func CommentCount(postID string) Target {
	return Target{Collection: models.CollectionPosts, ID: postID, Field: models.FieldCommentCount}
}

func FollowersCount(handle string) Target {
	return Target{Collection: models.CollectionUsers, ID: handle, Field: models.FieldFollowersCount}
}

func FollowingCount(handle string) Target {
	return Target{Collection: models.CollectionUsers, ID: handle, Field: models.FieldFollowingCount}
}

// Maintainer applies counter deltas through the store's atomic increment.
type Maintainer struct {
	store  store.Store
	logger *slog.Logger
}

func NewMaintainer(s store.Store, logger *slog.Logger) *Maintainer {
	return &Maintainer{store: s, logger: logger}
}

// Adjust adds delta to the target counter and returns its new value. A result
// below zero is clamped to zero and logged as an inconsistency.
func (m *Maintainer) Adjust(ctx context.Context, t Target, delta int64) (int64, error) {
	v, clamped, err := m.store.Increment(ctx, t.Collection, t.ID, t.Field, delta, store.Stamp(Writer))
	if err != nil {
		return 0, fmt.Errorf("adjust %s by %d: %w", t, delta, err)
	}
	if clamped {
		observability.CounterClamps.WithLabelValues(t.Collection, t.Field).Inc()
		m.logger.WarnContext(ctx, "counter clamped at zero",
			slog.String("target", t.String()),
			slog.Int64("delta", delta))
	}
	return v, nil
}
