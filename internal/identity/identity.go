// Package identity creates sign-in identities and issues tokens for them,
// either through Firebase Authentication or locally with bcrypt and JWT.
package identity

import (
	"context"
	"errors"
)

// ErrUnsupported is returned by providers that cannot perform an operation,
// such as password sign-in against Firebase from the server side.
var ErrUnsupported = errors.New("operation not supported by identity provider")

// Provider creates identities and authenticates them.
type Provider interface {
	// Create registers email/password for handle and returns the identity's
	// uid and a token the client can use to sign in.
	Create(ctx context.Context, email, password, handle string) (uid, token string, err error)
	// Authenticate checks email/password and returns a bearer token.
	Authenticate(ctx context.Context, email, password string) (string, error)
	// Remove deletes an identity, undoing Create.
	Remove(ctx context.Context, uid string) error
}
