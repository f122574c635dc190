package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anonto42/nano-midea/socialsync/internal/models"
	"github.com/anonto42/nano-midea/socialsync/internal/repositories"
	"github.com/anonto42/nano-midea/socialsync/internal/store"
)

func TestLocalCreateAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	l := NewLocal(repositories.NewStoreCredentialRepository(store.NewMemory()), "secret")

	uid, token, err := l.Create(ctx, "alice@example.com", "hunter22", "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", uid)

	claims, err := ParseToken([]byte("secret"), token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Handle)

	_, _, err = l.Create(ctx, "alice@example.com", "other1", "alice2")
	assert.Equal(t, models.CodeConflict, models.ErrorCode(err))

	token, err = l.Authenticate(ctx, "alice@example.com", "hunter22")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	_, err = l.Authenticate(ctx, "alice@example.com", "wrong")
	assert.Equal(t, models.CodeUnauthorized, models.ErrorCode(err))
	_, err = l.Authenticate(ctx, "nobody@example.com", "hunter22")
	assert.Equal(t, models.CodeUnauthorized, models.ErrorCode(err))
}

func TestParseTokenRejectsExpiredAndForeign(t *testing.T) {
	old, err := IssueToken([]byte("secret"), "alice", "a@example.com", time.Now().Add(-2*TokenTTL))
	require.NoError(t, err)
	_, err = ParseToken([]byte("secret"), old)
	assert.Error(t, err)

	fresh, err := IssueToken([]byte("other"), "alice", "a@example.com", time.Now())
	require.NoError(t, err)
	_, err = ParseToken([]byte("secret"), fresh)
	assert.Error(t, err)
}

type fakeFirebase struct {
	created []string
	deleted []string
	fail    error
}

func (f *fakeFirebase) CreateUser(_ context.Context, _ *auth.UserToCreate) (*auth.UserRecord, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	uid := "uid-" + string(rune('a'+len(f.created)))
	f.created = append(f.created, uid)
	return &auth.UserRecord{UserInfo: &auth.UserInfo{UID: uid}}, nil
}

func (f *fakeFirebase) CustomToken(_ context.Context, uid string) (string, error) {
	return "custom-" + uid, nil
}

func (f *fakeFirebase) DeleteUser(_ context.Context, uid string) error {
	f.deleted = append(f.deleted, uid)
	return nil
}

func TestFirebaseProvider(t *testing.T) {
	ctx := context.Background()
	fake := &fakeFirebase{}
	p := NewFirebase(fake)

	uid, token, err := p.Create(ctx, "a@example.com", "hunter22", "alice")
	require.NoError(t, err)
	assert.Equal(t, "uid-a", uid)
	assert.Equal(t, "custom-uid-a", token)

	_, err = p.Authenticate(ctx, "a@example.com", "hunter22")
	assert.ErrorIs(t, err, ErrUnsupported)

	require.NoError(t, p.Remove(ctx, uid))
	assert.Equal(t, []string{"uid-a"}, fake.deleted)

	fake.fail = errors.New("quota")
	_, _, err = p.Create(ctx, "b@example.com", "hunter22", "bob")
	assert.Error(t, err)
}
