package identity

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/auth"

	"github.com/anonto42/nano-midea/socialsync/internal/models"
)

// FirebaseClient is the part of *auth.Client the provider uses.
type FirebaseClient interface {
	CreateUser(ctx context.Context, user *auth.UserToCreate) (*auth.UserRecord, error)
	CustomToken(ctx context.Context, uid string) (string, error)
	DeleteUser(ctx context.Context, uid string) error
}

// Firebase stores identities in Firebase Authentication. Clients exchange the
// returned custom token for an ID token with the Firebase client SDK.
type Firebase struct {
	client FirebaseClient
}

func NewFirebase(client FirebaseClient) *Firebase {
	return &Firebase{client: client}
}

func (f *Firebase) Create(ctx context.Context, email, password, handle string) (string, string, error) {
	params := (&auth.UserToCreate{}).
		Email(email).
		Password(password).
		DisplayName(handle)
	rec, err := f.client.CreateUser(ctx, params)
	if err != nil {
		if auth.IsEmailAlreadyExists(err) {
			return "", "", models.NewConflictError("email is already in use")
		}
		return "", "", fmt.Errorf("create firebase user: %w", err)
	}
	token, err := f.client.CustomToken(ctx, rec.UID)
	if err != nil {
		return "", "", fmt.Errorf("mint custom token: %w", err)
	}
	return rec.UID, token, nil
}

// Authenticate is done by the Firebase client SDK, never by this server.
func (f *Firebase) Authenticate(context.Context, string, string) (string, error) {
	return "", ErrUnsupported
}

func (f *Firebase) Remove(ctx context.Context, uid string) error {
	return f.client.DeleteUser(ctx, uid)
}
