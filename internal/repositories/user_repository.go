package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/anonto42/nano-midea/socialsync/internal/models"
	"github.com/anonto42/nano-midea/socialsync/internal/store"
)

// UserRepository defines the interface for user data operations
type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByHandle(ctx context.Context, handle string) (*models.User, error)
	GetUserByUID(ctx context.Context, uid string) (*models.User, error)
	HandleExists(ctx context.Context, handle string) (bool, error)
	UpdateUser(ctx context.Context, handle string, fields store.Fields) error
	GetNewestUsers(ctx context.Context, limit int) ([]models.User, error)
}

// StoreUserRepository implements UserRepository on the Record Store
type StoreUserRepository struct {
	store store.Store
}

// NewStoreUserRepository creates a new StoreUserRepository
func NewStoreUserRepository(s store.Store) *StoreUserRepository {
	return &StoreUserRepository{store: s}
}

// CreateUser writes users/{handle}. Set replaces an existing document, so
// callers check HandleExists first.
func (r *StoreUserRepository) CreateUser(ctx context.Context, user *models.User) error {
	if user.CreatedAt == "" {
		user.CreatedAt = models.Now()
	}
	return r.store.Set(ctx, models.CollectionUsers, user.Handle, user.Fields().Merge(store.Stamp(store.WriterClient)))
}

// GetUserByHandle retrieves a user by handle
func (r *StoreUserRepository) GetUserByHandle(ctx context.Context, handle string) (*models.User, error) {
	doc, err := r.store.Get(ctx, models.CollectionUsers, handle)
	if err != nil {
		return nil, err
	}
	user := models.UserFromDocument(doc)
	return &user, nil
}

// GetUserByUID retrieves the user owning an auth identity
func (r *StoreUserRepository) GetUserByUID(ctx context.Context, uid string) (*models.User, error) {
	docs, err := r.store.Query(ctx, models.CollectionUsers, store.Query{
		Filters: []store.Filter{store.Where(models.FieldUserID, store.OpEq, uid)},
		Limit:   1,
	})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("user with uid %s: %w", uid, store.ErrNotFound)
	}
	user := models.UserFromDocument(docs[0])
	return &user, nil
}

func (r *StoreUserRepository) HandleExists(ctx context.Context, handle string) (bool, error) {
	_, err := r.store.Get(ctx, models.CollectionUsers, handle)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// UpdateUser merges profile fields into the user document
func (r *StoreUserRepository) UpdateUser(ctx context.Context, handle string, fields store.Fields) error {
	return r.store.Update(ctx, models.CollectionUsers, handle, fields.Merge(store.Stamp(store.WriterClient)))
}

// GetNewestUsers lists the most recently created users
func (r *StoreUserRepository) GetNewestUsers(ctx context.Context, limit int) ([]models.User, error) {
	docs, err := r.store.Query(ctx, models.CollectionUsers, store.Query{
		OrderBy:    models.FieldCreatedAt,
		Descending: true,
		Limit:      limit,
	})
	if err != nil {
		return nil, err
	}
	users := make([]models.User, 0, len(docs))
	for _, d := range docs {
		users = append(users, models.UserFromDocument(d))
	}
	return users, nil
}
