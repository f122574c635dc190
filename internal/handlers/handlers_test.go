package handlers

import (
	"bytes"
	"encoding/json"
	"image"
	"image/jpeg"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anonto42/nano-midea/socialsync/internal/blob"
	"github.com/anonto42/nano-midea/socialsync/internal/cascade"
	"github.com/anonto42/nano-midea/socialsync/internal/counters"
	"github.com/anonto42/nano-midea/socialsync/internal/fanout"
	"github.com/anonto42/nano-midea/socialsync/internal/graph"
	"github.com/anonto42/nano-midea/socialsync/internal/identity"
	"github.com/anonto42/nano-midea/socialsync/internal/media"
	"github.com/anonto42/nano-midea/socialsync/internal/middleware"
	"github.com/anonto42/nano-midea/socialsync/internal/models"
	"github.com/anonto42/nano-midea/socialsync/internal/profile"
	"github.com/anonto42/nano-midea/socialsync/internal/repositories"
	"github.com/anonto42/nano-midea/socialsync/internal/testutil"
	"github.com/anonto42/nano-midea/socialsync/validators"
)

const (
	secret     = "test-secret"
	defaultRef = "no-img.jpg"
)

type testServer struct {
	*testutil.Harness
	echo  *echo.Echo
	blobs *blob.Memory
}

func newTestServer(t *testing.T) *testServer {
	h := testutil.NewHarness(t)
	blobs := blob.NewMemory("bucket")
	blobs.Put(defaultRef, []byte("default"))

	m := counters.NewMaintainer(h.Store, h.Logger)
	counters.Register(h.Dispatcher, m, h.Ledger, h.Logger)
	fanout.New(h.Store, h.Ledger, h.Logger).Register(h.Dispatcher)
	cascade.New(h.Store, h.Logger).Register(h.Dispatcher)
	profile.New(h.Store, blobs, defaultRef, h.Logger).Register(h.Dispatcher)
	h.AttachLocal(h.Dispatcher.Collections()...)

	users := repositories.NewStoreUserRepository(h.Store)
	posts := repositories.NewStorePostRepository(h.Store)
	comments := repositories.NewStoreCommentRepository(h.Store)
	likes := repositories.NewStoreLikeRepository(h.Store)
	notifications := repositories.NewStoreNotificationRepository(h.Store)
	ids := identity.NewLocal(repositories.NewStoreCredentialRepository(h.Store), secret)

	e := echo.New()
	e.Validator = validators.NewValidator()
	public := e.Group("/api/v1")
	NewAuthHandler(users, ids, blob.PublicURL("bucket", defaultRef), defaultRef, h.Logger).RegisterAuthRoutes(public)
	userHandler := NewUserHandler(users, posts, likes, notifications, media.NewUploader(blobs, h.Logger), h.Logger)
	userHandler.RegisterPublicRoutes(public)
	postHandler := NewPostHandler(posts, comments, users, h.Logger)
	postHandler.RegisterPublicRoutes(public)

	api := e.Group("/api/v1", middleware.JWTAuthMiddleware(secret))
	userHandler.RegisterProfileRoutes(api)
	postHandler.RegisterPostRoutes(api)
	NewLikeHandler(likes, posts).RegisterLikeRoutes(api)
	NewCommentHandler(comments, posts, users, m, h.Logger).RegisterCommentRoutes(api)
	NewFollowHandler(graph.NewService(users, repositories.NewStoreFollowRepository(h.Store), h.Logger)).RegisterFollowRoutes(api)
	NewNotificationHandler(notifications).RegisterNotificationRoutes(api)
	NewEventsHandler(h.Dispatcher, "push-token", h.Logger).RegisterEventRoutes(e.Group("/internal"))

	return &testServer{Harness: h, echo: e, blobs: blobs}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) signup(t *testing.T, handle string) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/v1/signup", "", models.SignupRequest{
		Email:           handle + "@example.com",
		Password:        "hunter22",
		ConfirmPassword: "hunter22",
		Handle:          handle,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var out map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out["token"]
}

func (s *testServer) post(t *testing.T, token, body string) models.Post {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/v1/post", token, models.CreatePostRequest{Body: body})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var p models.Post
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	return p
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestSignupAndLogin(t *testing.T) {
	s := newTestServer(t)
	s.signup(t, "alice")

	rec := s.do(t, http.MethodPost, "/api/v1/signup", "", models.SignupRequest{
		Email: "other@example.com", Password: "hunter22", ConfirmPassword: "hunter22", Handle: "alice",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/signup", "", models.SignupRequest{
		Email: "x@example.com", Password: "hunter22", ConfirmPassword: "nope", Handle: "xavier",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/login", "", models.LoginRequest{Email: "alice@example.com", Password: "hunter22"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodPost, "/api/v1/login", "", models.LoginRequest{Email: "alice@example.com", Password: "bad"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	u := decode[models.UserProfile](t, s.do(t, http.MethodGet, "/api/v1/user/alice", "", nil))
	assert.Equal(t, defaultRef, s.userRef(t, "alice"))
	assert.Equal(t, blob.PublicURL("bucket", defaultRef), u.User.ImageURL)
}

func (s *testServer) userRef(t *testing.T, handle string) string {
	return testutil.Field(t, s.Store, models.CollectionUsers, handle, models.FieldImageURLRef).(string)
}

func TestLikeFlow(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup(t, "alice")
	bob := s.signup(t, "bob")
	p := s.post(t, alice, "hello")

	rec := s.do(t, http.MethodGet, "/api/v1/post/"+p.PostID+"/like", bob, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(1), decode[models.Post](t, rec).LikeCount)

	rec = s.do(t, http.MethodGet, "/api/v1/post/"+p.PostID+"/like", bob, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	assert.Equal(t, int64(1), testutil.Field(t, s.Store, models.CollectionPosts, p.PostID, models.FieldLikeCount))
	assert.Equal(t, 1, testutil.Count(t, s.Store, models.CollectionNotifications, models.FieldRecipient, "alice"))

	rec = s.do(t, http.MethodGet, "/api/v1/post/"+p.PostID+"/unlike", bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(0), testutil.Field(t, s.Store, models.CollectionPosts, p.PostID, models.FieldLikeCount))
	assert.Equal(t, 0, testutil.Count(t, s.Store, models.CollectionNotifications, models.FieldRecipient, "alice"))

	rec = s.do(t, http.MethodGet, "/api/v1/post/"+p.PostID+"/unlike", bob, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/post/missing/like", bob, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSelfLikeDoesNotNotify(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup(t, "alice")
	p := s.post(t, alice, "hello")

	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/v1/post/"+p.PostID+"/like", alice, nil).Code)
	assert.Equal(t, 0, testutil.Count(t, s.Store, models.CollectionNotifications, models.FieldRecipient, "alice"))
}

func TestCommentAndDeleteCascade(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup(t, "alice")
	bob := s.signup(t, "bob")
	p := s.post(t, alice, "hello")

	rec := s.do(t, http.MethodPost, "/api/v1/post/"+p.PostID+"/comment", bob, models.CreateCommentRequest{Body: "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/post/"+p.PostID+"/comment", bob, models.CreateCommentRequest{Body: "nice"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[commentResponse](t, rec)
	assert.Equal(t, int64(1), created.CommentCount)
	assert.Equal(t, "nice", created.Body)
	assert.NotEmpty(t, created.CommentID)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/v1/post/"+p.PostID+"/like", bob, nil).Code)

	got := decode[models.PostWithComments](t, s.do(t, http.MethodGet, "/api/v1/post/"+p.PostID, "", nil))
	assert.Equal(t, int64(1), got.CommentCount)
	assert.Equal(t, int64(1), got.LikeCount)
	require.Len(t, got.Comments, 1)
	assert.Equal(t, "nice", got.Comments[0].Body)

	rec = s.do(t, http.MethodDelete, "/api/v1/post/"+p.PostID, bob, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/v1/post/"+p.PostID, alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, testutil.Count(t, s.Store, models.CollectionLikes, models.FieldPostID, p.PostID))
	assert.Zero(t, testutil.Count(t, s.Store, models.CollectionComments, models.FieldPostID, p.PostID))
	assert.Zero(t, testutil.Count(t, s.Store, models.CollectionNotifications, models.FieldPostID, p.PostID))
}

func TestDeleteCommentDropsCountAndNotification(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup(t, "alice")
	bob := s.signup(t, "bob")
	p := s.post(t, alice, "hello")

	rec := s.do(t, http.MethodPost, "/api/v1/post/"+p.PostID+"/comment", bob, models.CreateCommentRequest{Body: "nice"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	comment := decode[models.Comment](t, rec)
	assert.Equal(t, 1, testutil.Count(t, s.Store, models.CollectionNotifications, models.FieldPostID, p.PostID))

	path := "/api/v1/post/" + p.PostID + "/comment/" + comment.CommentID
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodDelete, path, alice, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, "/api/v1/post/other/comment/"+comment.CommentID, bob, nil).Code)

	require.Equal(t, http.StatusOK, s.do(t, http.MethodDelete, path, bob, nil).Code)
	got := decode[models.PostWithComments](t, s.do(t, http.MethodGet, "/api/v1/post/"+p.PostID, "", nil))
	assert.Zero(t, got.CommentCount)
	assert.Empty(t, got.Comments)
	assert.Zero(t, testutil.Count(t, s.Store, models.CollectionNotifications, models.FieldPostID, p.PostID))

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, path, bob, nil).Code)
}

func TestProfilePostNotifiesOwner(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup(t, "alice")
	s.signup(t, "bob")

	rec := s.do(t, http.MethodPost, "/api/v1/post", alice, models.CreatePostRequest{Body: "hi bob", Location: "bob"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, testutil.Count(t, s.Store, models.CollectionNotifications, models.FieldRecipient, "bob"))

	rec = s.do(t, http.MethodPost, "/api/v1/post", alice, models.CreatePostRequest{Body: "hi", Location: "nobody"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFollowEndpoints(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup(t, "alice")
	s.signup(t, "bob")

	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/v1/user/bob/follow", alice, nil).Code)
	assert.Equal(t, http.StatusConflict, s.do(t, http.MethodPost, "/api/v1/user/bob/follow", alice, nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/v1/user/alice/follow", alice, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPost, "/api/v1/user/carol/follow", alice, nil).Code)

	followers := decode[[]models.Follow](t, s.do(t, http.MethodGet, "/api/v1/user/bob/followers", alice, nil))
	require.Len(t, followers, 1)
	assert.Equal(t, int64(1), testutil.Field(t, s.Store, models.CollectionUsers, "bob", models.FieldFollowersCount))

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/v1/user/bob/unfollow", alice, nil).Code)
	assert.Equal(t, http.StatusConflict, s.do(t, http.MethodPost, "/api/v1/user/bob/unfollow", alice, nil).Code)
	assert.Equal(t, int64(0), testutil.Field(t, s.Store, models.CollectionUsers, "bob", models.FieldFollowersCount))
}

func jpegUpload(t *testing.T) (*bytes.Buffer, string) {
	var img bytes.Buffer
	require.NoError(t, jpeg.Encode(&img, image.NewRGBA(image.Rect(0, 0, 600, 600)), nil))
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("image", "me.jpg")
	require.NoError(t, err)
	_, err = part.Write(img.Bytes())
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &body, w.FormDataContentType()
}

func TestUploadImagePropagates(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup(t, "alice")
	p := s.post(t, alice, "hello")

	body, contentType := jpegUpload(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/user/image", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+alice)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	ref := s.userRef(t, "alice")
	assert.NotEqual(t, defaultRef, ref)
	want := blob.PublicURL("bucket", ref)
	assert.Equal(t, want, testutil.Field(t, s.Store, models.CollectionPosts, p.PostID, models.FieldUserImage))

	_, ok := s.blobs.Get(defaultRef)
	assert.True(t, ok, "default image must survive")
}

func TestAuthenticatedUserAndMarkRead(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup(t, "alice")
	bob := s.signup(t, "bob")
	p := s.post(t, alice, "hello")
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/v1/post/"+p.PostID+"/like", bob, nil).Code)

	me := decode[models.AuthenticatedUser](t, s.do(t, http.MethodGet, "/api/v1/user", alice, nil))
	assert.Equal(t, "alice", me.Credentials.Handle)
	require.Len(t, me.Notifications, 1)
	assert.False(t, me.Notifications[0].Read)

	ids := []string{me.Notifications[0].NotificationID}
	rec := s.do(t, http.MethodPost, "/api/v1/notifications", bob, models.MarkNotificationsReadRequest{NotificationIDs: ids})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), decode[map[string]interface{}](t, rec)["updated"])

	rec = s.do(t, http.MethodPost, "/api/v1/notifications", alice, models.MarkNotificationsReadRequest{NotificationIDs: ids})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decode[map[string]interface{}](t, rec)["updated"])

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/api/v1/user", "", nil).Code)
}

func TestPushedEvents(t *testing.T) {
	s := newTestServer(t)
	s.signup(t, "alice")
	testutil.SeedPost(t, s.Store, "p1", "alice", nil)

	envelope := `{"collection":"likes","documentId":"l1","after":{"data":{"postId":"p1","userHandle":"bob"}},"occurredAt":"` +
		time.Unix(10, 0).UTC().Format(time.RFC3339Nano) + `"}`
	push := func(token string) int {
		req := httptest.NewRequest(http.MethodPost, "/internal/events", strings.NewReader(envelope))
		req.Header.Set(EventTokenHeader, token)
		rec := httptest.NewRecorder()
		s.echo.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, push("wrong"))
	assert.Equal(t, http.StatusOK, push("push-token"))
	assert.Equal(t, http.StatusOK, push("push-token"))
	assert.Equal(t, int64(1), testutil.Field(t, s.Store, models.CollectionPosts, "p1", models.FieldLikeCount))

	req := httptest.NewRequest(http.MethodPost, "/internal/events", strings.NewReader(`{"collection":"likes"}`))
	req.Header.Set(EventTokenHeader, "push-token")
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
