package repositories

import (
	"context"
	"fmt"

	"github.com/anonto42/nano-midea/socialsync/internal/models"
	"github.com/anonto42/nano-midea/socialsync/internal/store"
)

// FollowRepository defines the interface for follow operations
type FollowRepository interface {
	CreateFollow(ctx context.Context, follow *models.Follow) error
	DeleteFollow(ctx context.Context, followID string) error
	GetFollow(ctx context.Context, sender, receiver string) (*models.Follow, error)
	GetFollowers(ctx context.Context, handle string) ([]models.Follow, error)
	GetFollowing(ctx context.Context, handle string) ([]models.Follow, error)
}

// StoreFollowRepository implements FollowRepository on the Record Store
type StoreFollowRepository struct {
	store store.Store
}

// NewStoreFollowRepository creates a new StoreFollowRepository
func NewStoreFollowRepository(s store.Store) *StoreFollowRepository {
	return &StoreFollowRepository{store: s}
}

func (r *StoreFollowRepository) CreateFollow(ctx context.Context, follow *models.Follow) error {
	if follow.CreatedAt == "" {
		follow.CreatedAt = models.Now()
	}
	id, err := r.store.Create(ctx, models.CollectionFollows, follow.Fields().Merge(store.Stamp(store.WriterClient)))
	if err != nil {
		return err
	}
	follow.FollowID = id
	return nil
}

func (r *StoreFollowRepository) DeleteFollow(ctx context.Context, followID string) error {
	return r.store.Delete(ctx, models.CollectionFollows, followID)
}

// GetFollow returns the follow of the ordered pair, wrapping store.ErrNotFound
// when there is none
func (r *StoreFollowRepository) GetFollow(ctx context.Context, sender, receiver string) (*models.Follow, error) {
	docs, err := r.store.Query(ctx, models.CollectionFollows, store.Query{
		Filters: []store.Filter{
			store.Where(models.FieldSenderHandle, store.OpEq, sender),
			store.Where(models.FieldReceiverHandle, store.OpEq, receiver),
		},
		Limit: 1,
	})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("follow %s -> %s: %w", sender, receiver, store.ErrNotFound)
	}
	f := models.FollowFromDocument(docs[0])
	return &f, nil
}

// GetFollowers lists the follows whose receiver is handle
func (r *StoreFollowRepository) GetFollowers(ctx context.Context, handle string) ([]models.Follow, error) {
	return r.list(ctx, models.FieldReceiverHandle, handle)
}

// GetFollowing lists the follows whose sender is handle
func (r *StoreFollowRepository) GetFollowing(ctx context.Context, handle string) ([]models.Follow, error) {
	return r.list(ctx, models.FieldSenderHandle, handle)
}

func (r *StoreFollowRepository) list(ctx context.Context, field, handle string) ([]models.Follow, error) {
	docs, err := r.store.Query(ctx, models.CollectionFollows, store.Query{
		Filters:    []store.Filter{store.Where(field, store.OpEq, handle)},
		OrderBy:    models.FieldCreatedAt,
		Descending: true,
	})
	if err != nil {
		return nil, err
	}
	follows := make([]models.Follow, 0, len(docs))
	for _, d := range docs {
		follows = append(follows, models.FollowFromDocument(d))
	}
	return follows, nil
}
