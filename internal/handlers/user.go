package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/nano-midea/socialsync/internal/media"
	"github.com/anonto42/nano-midea/socialsync/internal/models"
	"github.com/anonto42/nano-midea/socialsync/internal/repositories"
	"github.com/anonto42/nano-midea/socialsync/internal/store"
)

const recentNotifications = 10

// UserHandler handles profile reads and updates
type UserHandler struct {
	userRepository         repositories.UserRepository
	postRepository         repositories.PostRepository
	likeRepository         repositories.LikeRepository
	notificationRepository repositories.NotificationRepository
	uploader               *media.Uploader
	logger                 *slog.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(
	userRepo repositories.UserRepository,
	postRepo repositories.PostRepository,
	likeRepo repositories.LikeRepository,
	notificationRepo repositories.NotificationRepository,
	uploader *media.Uploader,
	logger *slog.Logger,
) *UserHandler {
	return &UserHandler{
		userRepository:         userRepo,
		postRepository:         postRepo,
		likeRepository:         likeRepo,
		notificationRepository: notificationRepo,
		uploader:               uploader,
		logger:                 logger,
	}
}

// RegisterProfileRoutes registers user-related routes on the protected group
func (h *UserHandler) RegisterProfileRoutes(g *echo.Group) {
	g.GET("/user", h.GetAuthenticatedUser)
	g.POST("/user", h.AddUserDetails)
	g.POST("/user/image", h.UploadImage)
	g.POST("/user/header", h.UploadHeader)
}

// RegisterPublicRoutes registers the user reads that need no authentication
func (h *UserHandler) RegisterPublicRoutes(g *echo.Group) {
	g.GET("/user/:handle", h.GetUserDetails)
	g.GET("/users/newest", h.GetNewestUsers)
}

// GetAuthenticatedUser returns the caller's record, likes and latest notifications
func (h *UserHandler) GetAuthenticatedUser(c echo.Context) error {
	handle, err := currentHandle(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	user, err := h.userRepository.GetUserByHandle(ctx, handle)
	if err != nil {
		return toHTTPError(err)
	}
	likes, err := h.likeRepository.GetLikesByUser(ctx, handle)
	if err != nil {
		return toHTTPError(err)
	}
	notifications, err := h.notificationRepository.GetNotificationsByRecipient(ctx, handle, recentNotifications)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, models.AuthenticatedUser{
		Credentials:   *user,
		Likes:         likes,
		Notifications: notifications,
	})
}

// AddUserDetails sets bio, website and location
func (h *UserHandler) AddUserDetails(c echo.Context) error {
	handle, err := currentHandle(c)
	if err != nil {
		return err
	}
	var req models.UserDetailsRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	fields := req.Fields()
	if len(fields) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "No details supplied")
	}
	if err := h.userRepository.UpdateUser(c.Request().Context(), handle, fields); err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Details added successfully"})
}

// UploadImage replaces the caller's avatar. Posts, comments and the old blob
// are updated by the profile reactor.
func (h *UserHandler) UploadImage(c echo.Context) error {
	return h.upload(c, media.Avatar)
}

// UploadHeader replaces the caller's header image
func (h *UserHandler) UploadHeader(c echo.Context) error {
	return h.upload(c, media.Header)
}

func (h *UserHandler) upload(c echo.Context, kind media.Kind) error {
	handle, err := currentHandle(c)
	if err != nil {
		return err
	}
	file, err := c.FormFile("image")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "No file uploaded")
	}
	src, err := file.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Failed to read upload")
	}
	defer src.Close()
	data, err := io.ReadAll(io.LimitReader(src, media.MaxUploadBytes+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Failed to read upload")
	}

	ctx := c.Request().Context()
	fields, err := h.uploader.Upload(ctx, kind, data)
	if err != nil {
		return toHTTPError(err)
	}
	if err := h.userRepository.UpdateUser(ctx, handle, fields); err != nil {
		h.uploader.Discard(ctx, fields, kind)
		return toHTTPError(err)
	}
	h.logger.InfoContext(ctx, "user image uploaded",
		slog.String("handle", handle),
		slog.String("kind", kind.Name))
	return c.JSON(http.StatusOK, echo.Map{"message": "Image uploaded successfully", "url": fields[kind.URLField]})
}

// GetUserDetails returns a public profile with the user's posts
func (h *UserHandler) GetUserDetails(c echo.Context) error {
	ctx := c.Request().Context()
	handle := c.Param("handle")

	user, err := h.userRepository.GetUserByHandle(ctx, handle)
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "User not found")
	}
	if err != nil {
		return toHTTPError(err)
	}
	posts, err := h.postRepository.GetPostsByUserHandle(ctx, handle, 0)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, models.UserProfile{User: *user, Posts: posts})
}

// GetNewestUsers lists recently joined users
func (h *UserHandler) GetNewestUsers(c echo.Context) error {
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit <= 0 || limit > 50 {
		limit = 10
	}
	users, err := h.userRepository.GetNewestUsers(c.Request().Context(), limit)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, users)
}
