// Package fanout writes notifications for likes, comments and profile posts,
// and removes them again when their cause goes away.
package fanout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/anonto42/nano-midea/socialsync/internal/events"
	"github.com/anonto42/nano-midea/socialsync/internal/ledger"
	"github.com/anonto42/nano-midea/socialsync/internal/models"
	"github.com/anonto42/nano-midea/socialsync/internal/store"
)

// Writer is the provenance stamp on notification writes.
const Writer = "fanout"

// NotificationIDFor maps the id of the like, comment or post that caused a
// notification to the notification's id. Both creation and removal go through
// it.
func NotificationIDFor(causeID string) string {
	return causeID
}

func goneKey(notificationID string) string {
	return "fanout:gone:" + notificationID
}

// Fanout resolves recipients and writes notifications.
//
// The created and deleted events of a cause may arrive in either order.
// Remove leaves a tombstone in the ledger before deleting, and notify checks
// it both before and after its write, so a late created event never leaves a
// notification behind for a cause that is already gone.
type Fanout struct {
	store  store.Store
	ledger ledger.Ledger
	logger *slog.Logger
	now    func() string
}

func New(s store.Store, l ledger.Ledger, logger *slog.Logger) *Fanout {
	return &Fanout{store: s, ledger: l, logger: logger, now: models.Now}
}

// Register subscribes the fan-out reactors to d.
func (f *Fanout) Register(d *events.Dispatcher) {
	d.Register(models.CollectionLikes, events.Created, events.NewReactor("fanout.like", f.onLikeCreated))
	d.Register(models.CollectionComments, events.Created, events.NewReactor("fanout.comment", f.onCommentCreated))
	d.Register(models.CollectionPosts, events.Created, events.NewReactor("fanout.post", f.onPostCreated))
	d.Register(models.CollectionLikes, events.Deleted, events.NewReactor("fanout.unlike", f.onCauseDeleted))
	d.Register(models.CollectionComments, events.Deleted, events.NewReactor("fanout.uncomment", f.onCauseDeleted))
}

func (f *Fanout) onLikeCreated(ctx context.Context, e events.Event) error {
	return f.OnLike(ctx, e.DocumentID, e.After.String(models.FieldPostID), e.After.String(models.FieldUserHandle))
}

func (f *Fanout) onCommentCreated(ctx context.Context, e events.Event) error {
	return f.OnComment(ctx, e.DocumentID, e.After.String(models.FieldPostID), e.After.String(models.FieldUserHandle))
}

func (f *Fanout) onPostCreated(ctx context.Context, e events.Event) error {
	return f.OnPostCreated(ctx, e.DocumentID)
}

func (f *Fanout) onCauseDeleted(ctx context.Context, e events.Event) error {
	return f.Remove(ctx, e.DocumentID)
}

// OnLike notifies the post author that sender liked postID.
func (f *Fanout) OnLike(ctx context.Context, likeID, postID, sender string) error {
	post, ok, err := f.parent(ctx, postID)
	if err != nil || !ok {
		return err
	}
	return f.notify(ctx, likeID, post.UserHandle, sender, models.NotificationLike, post.PostID)
}

// OnComment notifies the post author that sender commented on postID.
func (f *Fanout) OnComment(ctx context.Context, commentID, postID, sender string) error {
	post, ok, err := f.parent(ctx, postID)
	if err != nil || !ok {
		return err
	}
	return f.notify(ctx, commentID, post.UserHandle, sender, models.NotificationComment, post.PostID)
}

// OnPostCreated notifies the profile owner of a post written on their profile.
// Posts to the explore feed notify nobody.
func (f *Fanout) OnPostCreated(ctx context.Context, postID string) error {
	post, ok, err := f.parent(ctx, postID)
	if err != nil || !ok || !post.IsProfilePost() {
		return err
	}
	return f.notify(ctx, postID, post.Location, post.UserHandle, models.NotificationPost, post.PostID)
}

func (f *Fanout) parent(ctx context.Context, postID string) (models.Post, bool, error) {
	if postID == "" {
		return models.Post{}, false, nil
	}
	doc, err := f.store.Get(ctx, models.CollectionPosts, postID)
	if errors.Is(err, store.ErrNotFound) {
		f.logger.DebugContext(ctx, "parent post is gone", slog.String("post_id", postID))
		return models.Post{}, false, nil
	}
	if err != nil {
		return models.Post{}, false, fmt.Errorf("load post %s: %w", postID, err)
	}
	return models.PostFromDocument(doc), true, nil
}

func (f *Fanout) notify(ctx context.Context, causeID, recipient, sender, kind, postID string) error {
	if recipient == "" || recipient == sender {
		return nil
	}
	n := models.Notification{
		Recipient: recipient,
		Sender:    sender,
		Type:      kind,
		PostID:    postID,
		Read:      false,
		CreatedAt: f.now(),
	}
	id := NotificationIDFor(causeID)
	gone, err := f.ledger.Seen(ctx, goneKey(id))
	if err != nil {
		return fmt.Errorf("check tombstone of %s: %w", id, err)
	}
	if gone {
		f.logger.DebugContext(ctx, "cause already deleted", slog.String("notification_id", id))
		return nil
	}
	if err := f.store.Set(ctx, models.CollectionNotifications, id, n.Fields().Merge(store.Stamp(Writer))); err != nil {
		return fmt.Errorf("write notification %s: %w", id, err)
	}
	// a Remove that ran while we were writing found nothing to delete
	if gone, err = f.ledger.Seen(ctx, goneKey(id)); err != nil {
		return fmt.Errorf("check tombstone of %s: %w", id, err)
	}
	if gone {
		return f.deleteNotification(ctx, id)
	}
	return nil
}

// Remove deletes the notification caused by causeID, if there is one, and
// keeps a later notify for the same cause from writing it again.
func (f *Fanout) Remove(ctx context.Context, causeID string) error {
	id := NotificationIDFor(causeID)
	if _, err := f.ledger.Claim(ctx, goneKey(id)); err != nil {
		return fmt.Errorf("tombstone %s: %w", id, err)
	}
	return f.deleteNotification(ctx, id)
}

func (f *Fanout) deleteNotification(ctx context.Context, id string) error {
	err := f.store.Delete(ctx, models.CollectionNotifications, id)
	if err == nil || errors.Is(err, store.ErrNotFound) {
		return nil
	}
	return fmt.Errorf("remove notification %s: %w", id, err)
}
