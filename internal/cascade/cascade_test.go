package cascade

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anonto42/nano-midea/socialsync/internal/models"
	"github.com/anonto42/nano-midea/socialsync/internal/store"
	"github.com/anonto42/nano-midea/socialsync/internal/testutil"
)

func seedDependents(t *testing.T, s store.Store, postID string, comments, likes, notifications int) {
	ctx := context.Background()
	for i := 0; i < comments; i++ {
		require.NoError(t, s.Set(ctx, models.CollectionComments, fmt.Sprintf("%s-c%d", postID, i),
			models.Comment{PostID: postID, UserHandle: "bob", Body: "hi"}.Fields()))
	}
	for i := 0; i < likes; i++ {
		require.NoError(t, s.Set(ctx, models.CollectionLikes, fmt.Sprintf("%s-l%d", postID, i),
			models.Like{PostID: postID, UserHandle: fmt.Sprintf("u%d", i)}.Fields()))
	}
	for i := 0; i < notifications; i++ {
		require.NoError(t, s.Set(ctx, models.CollectionNotifications, fmt.Sprintf("%s-n%d", postID, i),
			models.Notification{PostID: postID, Recipient: "alice", Sender: "bob", Type: models.NotificationLike}.Fields()))
	}
}

func remaining(t *testing.T, s store.Store, postID string) [3]int {
	return [3]int{
		testutil.Count(t, s, models.CollectionComments, models.FieldPostID, postID),
		testutil.Count(t, s, models.CollectionLikes, models.FieldPostID, postID),
		testutil.Count(t, s, models.CollectionNotifications, models.FieldPostID, postID),
	}
}

func TestPostDeletionRemovesDependents(t *testing.T) {
	h := testutil.NewHarness(t)
	New(h.Store, h.Logger).Register(h.Dispatcher)
	ctx := context.Background()
	seedDependents(t, h.Store, "p1", 3, 4, 2)
	seedDependents(t, h.Store, "p2", 1, 1, 1)

	require.NoError(t, h.Dispatcher.Dispatch(ctx, testutil.Deleted(models.CollectionPosts, "p1", nil)))

	assert.Equal(t, [3]int{0, 0, 0}, remaining(t, h.Store, "p1"))
	assert.Equal(t, [3]int{1, 1, 1}, remaining(t, h.Store, "p2"), "other posts are untouched")
}

func TestRedeliveryIsIdempotent(t *testing.T) {
	h := testutil.NewHarness(t)
	c := New(h.Store, h.Logger)
	ctx := context.Background()
	seedDependents(t, h.Store, "p1", 2, 2, 2)

	n, err := c.DeletePostDependents(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	n, err = c.DeletePostDependents(ctx, "p1")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, [3]int{0, 0, 0}, remaining(t, h.Store, "p1"))
}

func TestLargeCascadeIsChunked(t *testing.T) {
	h := testutil.NewHarness(t, store.WithMaxBatchOps(10))
	c := New(h.Store, h.Logger)
	seedDependents(t, h.Store, "p1", 15, 12, 7)

	n, err := c.DeletePostDependents(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 34, n)
	assert.Equal(t, [3]int{0, 0, 0}, remaining(t, h.Store, "p1"))
}

type failingQueryStore struct {
	*store.Memory
	failOn string
}

func (f *failingQueryStore) Query(ctx context.Context, collection string, q store.Query) ([]*store.Document, error) {
	if collection == f.failOn {
		return nil, errors.New("query unavailable")
	}
	return f.Memory.Query(ctx, collection, q)
}

func TestQueryFailureDeletesNothing(t *testing.T) {
	h := testutil.NewHarness(t)
	c := New(&failingQueryStore{Memory: h.Store, failOn: models.CollectionNotifications}, h.Logger)
	seedDependents(t, h.Store, "p1", 2, 2, 2)

	_, err := c.DeletePostDependents(context.Background(), "p1")
	require.Error(t, err)
	assert.Equal(t, [3]int{2, 2, 2}, remaining(t, h.Store, "p1"))
}
