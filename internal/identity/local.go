package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/anonto42/nano-midea/socialsync/internal/models"
	"github.com/anonto42/nano-midea/socialsync/internal/repositories"
	"github.com/anonto42/nano-midea/socialsync/internal/store"
)

// TokenTTL is the lifetime of locally issued tokens.
const TokenTTL = 72 * time.Hour

// Local keeps bcrypt password hashes in the credentials collection and signs
// HS256 tokens. The uid of a local identity is its handle.
type Local struct {
	credentials repositories.CredentialRepository
	secret      []byte
	now         func() time.Time
}

func NewLocal(credentials repositories.CredentialRepository, secret string) *Local {
	return &Local{credentials: credentials, secret: []byte(secret), now: time.Now}
}

func (l *Local) Create(ctx context.Context, email, password, handle string) (string, string, error) {
	_, err := l.credentials.GetCredentialByEmail(ctx, email)
	if err == nil {
		return "", "", models.NewConflictError("email is already in use")
	}
	if !errors.Is(err, store.ErrNotFound) {
		return "", "", models.NewStoreError(err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", "", fmt.Errorf("hash password: %w", err)
	}
	cred := &models.Credential{Handle: handle, Email: email, PasswordHash: string(hash)}
	if err := l.credentials.CreateCredential(ctx, cred); err != nil {
		return "", "", models.NewStoreError(err)
	}
	token, err := IssueToken(l.secret, handle, email, l.now())
	if err != nil {
		return "", "", err
	}
	return handle, token, nil
}

func (l *Local) Authenticate(ctx context.Context, email, password string) (string, error) {
	cred, err := l.credentials.GetCredentialByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return "", models.NewUnauthorizedError("wrong credentials, please try again")
	}
	if err != nil {
		return "", models.NewStoreError(err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		return "", models.NewUnauthorizedError("wrong credentials, please try again")
	}
	return IssueToken(l.secret, cred.Handle, cred.Email, l.now())
}

// Remove is a no-op; the credential is keyed by handle and is overwritten by
// the next signup for it.
func (l *Local) Remove(context.Context, string) error {
	return nil
}

// IssueToken signs claims for handle valid for TokenTTL from now.
func IssueToken(secret []byte, handle, email string, now time.Time) (string, error) {
	claims := &models.JwtCustomClaims{
		Handle: handle,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   handle,
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	t, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return t, nil
}

// ParseToken verifies an HS256 token and returns its claims.
func ParseToken(secret []byte, tokenString string) (*models.JwtCustomClaims, error) {
	claims := &models.JwtCustomClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.Handle == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
