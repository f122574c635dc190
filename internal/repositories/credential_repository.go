package repositories

import (
	"context"
	"fmt"

	"github.com/anonto42/nano-midea/socialsync/internal/models"
	"github.com/anonto42/nano-midea/socialsync/internal/store"
)

// CredentialRepository stores password hashes for locally issued tokens.
type CredentialRepository interface {
	CreateCredential(ctx context.Context, c *models.Credential) error
	GetCredentialByEmail(ctx context.Context, email string) (*models.Credential, error)
}

type StoreCredentialRepository struct {
	store store.Store
}

func NewStoreCredentialRepository(s store.Store) *StoreCredentialRepository {
	return &StoreCredentialRepository{store: s}
}

func (r *StoreCredentialRepository) CreateCredential(ctx context.Context, c *models.Credential) error {
	return r.store.Set(ctx, models.CollectionCredentials, c.Handle, c.Fields())
}

func (r *StoreCredentialRepository) GetCredentialByEmail(ctx context.Context, email string) (*models.Credential, error) {
	docs, err := r.store.Query(ctx, models.CollectionCredentials, store.Query{
		Filters: []store.Filter{store.Where(models.FieldEmail, store.OpEq, email)},
		Limit:   1,
	})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("credential for %s: %w", email, store.ErrNotFound)
	}
	c := models.CredentialFromDocument(docs[0])
	return &c, nil
}
