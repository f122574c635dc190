package repositories

import (
	"context"
	"fmt"

	"github.com/anonto42/nano-midea/socialsync/internal/models"
	"github.com/anonto42/nano-midea/socialsync/internal/store"
)

// LikeRepository defines the interface for like data operations
type LikeRepository interface {
	CreateLike(ctx context.Context, like *models.Like) error
	DeleteLike(ctx context.Context, likeID string) error
	GetLike(ctx context.Context, postID, handle string) (*models.Like, error)
	GetLikesByUser(ctx context.Context, handle string) ([]models.Like, error)
}

// StoreLikeRepository implements LikeRepository on the Record Store
type StoreLikeRepository struct {
	store store.Store
}

// NewStoreLikeRepository creates a new StoreLikeRepository
func NewStoreLikeRepository(s store.Store) *StoreLikeRepository {
	return &StoreLikeRepository{store: s}
}

// CreateLike creates a new like and fills in its id
func (r *StoreLikeRepository) CreateLike(ctx context.Context, like *models.Like) error {
	if like.CreatedAt == "" {
		like.CreatedAt = models.Now()
	}
	id, err := r.store.Create(ctx, models.CollectionLikes, like.Fields().Merge(store.Stamp(store.WriterClient)))
	if err != nil {
		return err
	}
	like.LikeID = id
	return nil
}

// DeleteLike deletes a like by its id
func (r *StoreLikeRepository) DeleteLike(ctx context.Context, likeID string) error {
	return r.store.Delete(ctx, models.CollectionLikes, likeID)
}

// GetLike retrieves the like of handle on postID, wrapping store.ErrNotFound
// when there is none
func (r *StoreLikeRepository) GetLike(ctx context.Context, postID, handle string) (*models.Like, error) {
	docs, err := r.store.Query(ctx, models.CollectionLikes, store.Query{
		Filters: []store.Filter{
			store.Where(models.FieldPostID, store.OpEq, postID),
			store.Where(models.FieldUserHandle, store.OpEq, handle),
		},
		Limit: 1,
	})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("like of %s on %s: %w", handle, postID, store.ErrNotFound)
	}
	like := models.LikeFromDocument(docs[0])
	return &like, nil
}

// GetLikesByUser lists every like the user has given
func (r *StoreLikeRepository) GetLikesByUser(ctx context.Context, handle string) ([]models.Like, error) {
	docs, err := r.store.Query(ctx, models.CollectionLikes, store.Query{
		Filters: []store.Filter{store.Where(models.FieldUserHandle, store.OpEq, handle)},
	})
	if err != nil {
		return nil, err
	}
	likes := make([]models.Like, 0, len(docs))
	for _, d := range docs {
		likes = append(likes, models.LikeFromDocument(d))
	}
	return likes, nil
}
