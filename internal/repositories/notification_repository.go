package repositories

import (
	"context"
	"errors"

	"github.com/anonto42/nano-midea/socialsync/internal/models"
	"github.com/anonto42/nano-midea/socialsync/internal/store"
)

// NotificationRepository defines the interface for notification data operations
type NotificationRepository interface {
	GetNotificationsByRecipient(ctx context.Context, handle string, limit int) ([]models.Notification, error)
	MarkAsRead(ctx context.Context, recipient string, ids []string) (int, error)
}

// StoreNotificationRepository implements NotificationRepository on the Record Store
type StoreNotificationRepository struct {
	store store.Store
}

// NewStoreNotificationRepository creates a new StoreNotificationRepository
func NewStoreNotificationRepository(s store.Store) *StoreNotificationRepository {
	return &StoreNotificationRepository{store: s}
}

// GetNotificationsByRecipient retrieves the newest notifications of a user
func (r *StoreNotificationRepository) GetNotificationsByRecipient(ctx context.Context, handle string, limit int) ([]models.Notification, error) {
	docs, err := r.store.Query(ctx, models.CollectionNotifications, store.Query{
		Filters:    []store.Filter{store.Where(models.FieldRecipient, store.OpEq, handle)},
		OrderBy:    models.FieldCreatedAt,
		Descending: true,
		Limit:      limit,
	})
	if err != nil {
		return nil, err
	}
	notifications := make([]models.Notification, 0, len(docs))
	for _, d := range docs {
		notifications = append(notifications, models.NotificationFromDocument(d))
	}
	return notifications, nil
}

// MarkAsRead marks the listed notifications read in batches. Ids that are
// missing, already read, or addressed to someone else are skipped. It returns
// the number of notifications updated.
func (r *StoreNotificationRepository) MarkAsRead(ctx context.Context, recipient string, ids []string) (int, error) {
	var writes []store.Write
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		doc, err := r.store.Get(ctx, models.CollectionNotifications, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return 0, err
		}
		n := models.NotificationFromDocument(doc)
		if n.Recipient != recipient || n.Read {
			continue
		}
		writes = append(writes, store.Write{
			Collection: models.CollectionNotifications,
			ID:         id,
			Fields:     store.Fields{models.FieldRead: true}.Merge(store.Stamp(store.WriterClient)),
		})
	}
	return store.ApplyInBatches(ctx, r.store, writes)
}
