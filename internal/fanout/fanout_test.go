package fanout

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anonto42/nano-midea/socialsync/internal/models"
	"github.com/anonto42/nano-midea/socialsync/internal/store"
	"github.com/anonto42/nano-midea/socialsync/internal/testutil"
)

func setup(t *testing.T) (*testutil.Harness, *Fanout) {
	h := testutil.NewHarness(t)
	f := New(h.Store, h.Ledger, h.Logger)
	f.now = func() string { return "2024-01-01T00:00:00.000000000Z" }
	f.Register(h.Dispatcher)
	return h, f
}

func getNotification(t *testing.T, s store.Store, id string) (models.Notification, bool) {
	doc, err := s.Get(context.Background(), models.CollectionNotifications, id)
	if err != nil {
		require.ErrorIs(t, err, store.ErrNotFound)
		return models.Notification{}, false
	}
	return models.NotificationFromDocument(doc), true
}

func TestLikeNotifiesPostAuthor(t *testing.T) {
	h, _ := setup(t)
	ctx := context.Background()
	testutil.SeedPost(t, h.Store, "p1", "alice", nil)

	like := models.Like{PostID: "p1", UserHandle: "bob"}.Fields()
	require.NoError(t, h.Dispatcher.Dispatch(ctx, testutil.Created(models.CollectionLikes, "l1", like)))

	n, ok := getNotification(t, h.Store, "l1")
	require.True(t, ok)
	assert.Equal(t, models.Notification{
		NotificationID: "l1",
		Recipient:      "alice",
		Sender:         "bob",
		Type:           models.NotificationLike,
		PostID:         "p1",
		CreatedAt:      "2024-01-01T00:00:00.000000000Z",
	}, n)

	require.NoError(t, h.Dispatcher.Dispatch(ctx, testutil.Deleted(models.CollectionLikes, "l1", like)))
	_, ok = getNotification(t, h.Store, "l1")
	assert.False(t, ok)
}

func TestSelfActionsAreSuppressed(t *testing.T) {
	h, _ := setup(t)
	ctx := context.Background()
	testutil.SeedPost(t, h.Store, "p1", "alice", nil)
	testutil.SeedPost(t, h.Store, "p2", "alice", store.Fields{models.FieldLocation: "alice"})

	require.NoError(t, h.Dispatcher.Dispatch(ctx, testutil.Created(models.CollectionLikes, "l1",
		models.Like{PostID: "p1", UserHandle: "alice"}.Fields())))
	require.NoError(t, h.Dispatcher.Dispatch(ctx, testutil.Created(models.CollectionComments, "c1",
		models.Comment{PostID: "p1", UserHandle: "alice", Body: "me"}.Fields())))
	require.NoError(t, h.Dispatcher.Dispatch(ctx, testutil.Created(models.CollectionPosts, "p2", nil)))

	assert.Zero(t, testutil.Count(t, h.Store, models.CollectionNotifications, models.FieldRecipient, "alice"))
}

func TestCommentNotifiesPostAuthor(t *testing.T) {
	h, _ := setup(t)
	ctx := context.Background()
	testutil.SeedPost(t, h.Store, "p1", "alice", nil)

	comment := models.Comment{PostID: "p1", UserHandle: "carol", Body: "nice"}.Fields()
	require.NoError(t, h.Dispatcher.Dispatch(ctx, testutil.Created(models.CollectionComments, "c1", comment)))

	n, ok := getNotification(t, h.Store, "c1")
	require.True(t, ok)
	assert.Equal(t, models.NotificationComment, n.Type)
	assert.Equal(t, "alice", n.Recipient)
	assert.False(t, n.Read)

	require.NoError(t, h.Dispatcher.Dispatch(ctx, testutil.Deleted(models.CollectionComments, "c1", comment)))
	_, ok = getNotification(t, h.Store, "c1")
	assert.False(t, ok)
}

func TestProfilePostNotifiesProfileOwner(t *testing.T) {
	h, _ := setup(t)
	ctx := context.Background()
	testutil.SeedPost(t, h.Store, "p1", "bob", store.Fields{models.FieldLocation: "alice"})
	testutil.SeedPost(t, h.Store, "p2", "bob", nil)

	require.NoError(t, h.Dispatcher.Dispatch(ctx, testutil.Created(models.CollectionPosts, "p1", nil)))
	require.NoError(t, h.Dispatcher.Dispatch(ctx, testutil.Created(models.CollectionPosts, "p2", nil)))

	n, ok := getNotification(t, h.Store, "p1")
	require.True(t, ok)
	assert.Equal(t, "alice", n.Recipient)
	assert.Equal(t, "bob", n.Sender)
	assert.Equal(t, models.NotificationPost, n.Type)

	_, ok = getNotification(t, h.Store, "p2")
	assert.False(t, ok, "explore posts notify nobody")
}

func TestMissingParentIsNoop(t *testing.T) {
	h, _ := setup(t)
	require.NoError(t, h.Dispatcher.Dispatch(context.Background(), testutil.Created(models.CollectionLikes, "l1",
		models.Like{PostID: "gone", UserHandle: "bob"}.Fields())))
	_, ok := getNotification(t, h.Store, "l1")
	assert.False(t, ok)
}

func TestRedeliveredLikeWritesOneNotification(t *testing.T) {
	h, f := setup(t)
	ctx := context.Background()
	testutil.SeedPost(t, h.Store, "p1", "alice", nil)

	require.NoError(t, f.OnLike(ctx, "l1", "p1", "bob"))
	require.NoError(t, f.OnLike(ctx, "l1", "p1", "bob"))
	assert.Equal(t, 1, testutil.Count(t, h.Store, models.CollectionNotifications, models.FieldRecipient, "alice"))
}

func TestRemoveMissingNotification(t *testing.T) {
	_, f := setup(t)
	assert.NoError(t, f.Remove(context.Background(), "never-existed"))
}

func TestLikeDeletedBeforeCreatedLeavesNoNotification(t *testing.T) {
	h, _ := setup(t)
	ctx := context.Background()
	testutil.SeedPost(t, h.Store, "p1", "alice", nil)
	like := models.Like{PostID: "p1", UserHandle: "bob"}.Fields()

	require.NoError(t, h.Dispatcher.Dispatch(ctx, testutil.Deleted(models.CollectionLikes, "l1", like)))
	require.NoError(t, h.Dispatcher.Dispatch(ctx, testutil.Created(models.CollectionLikes, "l1", like)))

	_, ok := getNotification(t, h.Store, "l1")
	assert.False(t, ok)
	assert.Zero(t, testutil.Count(t, h.Store, models.CollectionNotifications, models.FieldPostID, "p1"))
}

func TestCommentDeletedBeforeCreatedLeavesNoNotification(t *testing.T) {
	h, _ := setup(t)
	ctx := context.Background()
	testutil.SeedPost(t, h.Store, "p1", "alice", nil)
	comment := models.Comment{PostID: "p1", UserHandle: "bob", Body: "hi"}.Fields()

	require.NoError(t, h.Dispatcher.Dispatch(ctx, testutil.Deleted(models.CollectionComments, "c1", comment)))
	require.NoError(t, h.Dispatcher.Dispatch(ctx, testutil.Created(models.CollectionComments, "c1", comment)))

	_, ok := getNotification(t, h.Store, "c1")
	assert.False(t, ok)
}

// removingStore runs a Remove for the same cause just before each Set lands.
type removingStore struct {
	*store.Memory
	remove func()
}

func (s *removingStore) Set(ctx context.Context, collection, id string, fields store.Fields) error {
	s.remove()
	return s.Memory.Set(ctx, collection, id, fields)
}

func TestRemoveDuringNotifyWinsOverTheWrite(t *testing.T) {
	h := testutil.NewHarness(t)
	ctx := context.Background()
	testutil.SeedPost(t, h.Store, "p1", "alice", nil)

	racing := &removingStore{Memory: h.Store}
	f := New(racing, h.Ledger, h.Logger)
	racing.remove = func() { require.NoError(t, f.Remove(ctx, "l1")) }

	require.NoError(t, f.OnLike(ctx, "l1", "p1", "bob"))
	_, ok := getNotification(t, h.Store, "l1")
	assert.False(t, ok)
}
