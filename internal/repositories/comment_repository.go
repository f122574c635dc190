package repositories

import (
	"context"

	"github.com/anonto42/nano-midea/socialsync/internal/models"
	"github.com/anonto42/nano-midea/socialsync/internal/store"
)

// CommentRepository defines the interface for comment data operations
type CommentRepository interface {
	CreateComment(ctx context.Context, comment *models.Comment) error
	GetCommentByID(ctx context.Context, id string) (*models.Comment, error)
	GetCommentsByPostID(ctx context.Context, postID string) ([]models.Comment, error)
	DeleteComment(ctx context.Context, id string) error
}

// StoreCommentRepository implements CommentRepository on the Record Store
type StoreCommentRepository struct {
	store store.Store
}

// NewStoreCommentRepository creates a new StoreCommentRepository
func NewStoreCommentRepository(s store.Store) *StoreCommentRepository {
	return &StoreCommentRepository{store: s}
}

// CreateComment stores a comment and fills in its id
func (r *StoreCommentRepository) CreateComment(ctx context.Context, comment *models.Comment) error {
	if comment.CreatedAt == "" {
		comment.CreatedAt = models.Now()
	}
	id, err := r.store.Create(ctx, models.CollectionComments, comment.Fields().Merge(store.Stamp(store.WriterClient)))
	if err != nil {
		return err
	}
	comment.CommentID = id
	return nil
}

// GetCommentByID retrieves a comment by its id
func (r *StoreCommentRepository) GetCommentByID(ctx context.Context, id string) (*models.Comment, error) {
	doc, err := r.store.Get(ctx, models.CollectionComments, id)
	if err != nil {
		return nil, err
	}
	comment := models.CommentFromDocument(doc)
	return &comment, nil
}

// DeleteComment removes a comment
func (r *StoreCommentRepository) DeleteComment(ctx context.Context, id string) error {
	return r.store.Delete(ctx, models.CollectionComments, id)
}

// GetCommentsByPostID returns the comments of a post, newest first
func (r *StoreCommentRepository) GetCommentsByPostID(ctx context.Context, postID string) ([]models.Comment, error) {
	docs, err := r.store.Query(ctx, models.CollectionComments, store.Query{
		Filters:    []store.Filter{store.Where(models.FieldPostID, store.OpEq, postID)},
		OrderBy:    models.FieldCreatedAt,
		Descending: true,
	})
	if err != nil {
		return nil, err
	}
	comments := make([]models.Comment, 0, len(docs))
	for _, d := range docs {
		comments = append(comments, models.CommentFromDocument(d))
	}
	return comments, nil
}
