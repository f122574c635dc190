package repositories

import (
	"context"

	"github.com/anonto42/nano-midea/socialsync/internal/models"
	"github.com/anonto42/nano-midea/socialsync/internal/store"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	CreatePost(ctx context.Context, post *models.Post) error
	GetPostByID(ctx context.Context, id string) (*models.Post, error)
	GetAllPosts(ctx context.Context, limit int) ([]models.Post, error)
	GetPostsByUserHandle(ctx context.Context, handle string, limit int) ([]models.Post, error)
	DeletePost(ctx context.Context, id string) error
}

// StorePostRepository implements PostRepository on the Record Store
type StorePostRepository struct {
	store store.Store
}

// NewStorePostRepository creates a new StorePostRepository
func NewStorePostRepository(s store.Store) *StorePostRepository {
	return &StorePostRepository{store: s}
}

// CreatePost stores a new post with zeroed counters and fills in its id
func (r *StorePostRepository) CreatePost(ctx context.Context, post *models.Post) error {
	post.LikeCount, post.CommentCount = 0, 0
	if post.CreatedAt == "" {
		post.CreatedAt = models.Now()
	}
	if post.Location == "" {
		post.Location = models.LocationExplore
	}
	id, err := r.store.Create(ctx, models.CollectionPosts, post.Fields().Merge(store.Stamp(store.WriterClient)))
	if err != nil {
		return err
	}
	post.PostID = id
	return nil
}

// GetPostByID retrieves a post by ID
func (r *StorePostRepository) GetPostByID(ctx context.Context, id string) (*models.Post, error) {
	doc, err := r.store.Get(ctx, models.CollectionPosts, id)
	if err != nil {
		return nil, err
	}
	post := models.PostFromDocument(doc)
	return &post, nil
}

// GetAllPosts retrieves the newest posts
func (r *StorePostRepository) GetAllPosts(ctx context.Context, limit int) ([]models.Post, error) {
	return r.list(ctx, store.Query{OrderBy: models.FieldCreatedAt, Descending: true, Limit: limit})
}

// GetPostsByUserHandle retrieves the newest posts written by a user
func (r *StorePostRepository) GetPostsByUserHandle(ctx context.Context, handle string, limit int) ([]models.Post, error) {
	return r.list(ctx, store.Query{
		Filters:    []store.Filter{store.Where(models.FieldUserHandle, store.OpEq, handle)},
		OrderBy:    models.FieldCreatedAt,
		Descending: true,
		Limit:      limit,
	})
}

// DeletePost deletes the post document; its dependents go with the cascade
func (r *StorePostRepository) DeletePost(ctx context.Context, id string) error {
	return r.store.Delete(ctx, models.CollectionPosts, id)
}

func (r *StorePostRepository) list(ctx context.Context, q store.Query) ([]models.Post, error) {
	docs, err := r.store.Query(ctx, models.CollectionPosts, q)
	if err != nil {
		return nil, err
	}
	posts := make([]models.Post, 0, len(docs))
	for _, d := range docs {
		posts = append(posts, models.PostFromDocument(d))
	}
	return posts, nil
}
