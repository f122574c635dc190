package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/nano-midea/socialsync/internal/models"
	"github.com/anonto42/nano-midea/socialsync/internal/repositories"
	"github.com/anonto42/nano-midea/socialsync/internal/store"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// PostHandler handles HTTP requests related to posts
type PostHandler struct {
	postRepository    repositories.PostRepository
	commentRepository repositories.CommentRepository
	userRepository    repositories.UserRepository
	logger            *slog.Logger
}

// NewPostHandler creates a new PostHandler
func NewPostHandler(postRepo repositories.PostRepository, commentRepo repositories.CommentRepository, userRepo repositories.UserRepository, logger *slog.Logger) *PostHandler {
	return &PostHandler{
		postRepository:    postRepo,
		commentRepository: commentRepo,
		userRepository:    userRepo,
		logger:            logger,
	}
}

// RegisterPostRoutes registers post-related routes
func (h *PostHandler) RegisterPostRoutes(g *echo.Group) {
	g.POST("/post", h.CreatePost)
	g.DELETE("/post/:postId", h.DeletePost)
}

// RegisterPublicRoutes registers the post reads that need no authentication
func (h *PostHandler) RegisterPublicRoutes(g *echo.Group) {
	g.GET("/posts", h.GetPosts)
	g.GET("/post/:postId", h.GetPost)
}

// CreatePost creates a new post on the explore feed or on a user's profile
func (h *PostHandler) CreatePost(c echo.Context) error {
	handle, err := currentHandle(c)
	if err != nil {
		return err
	}
	var req models.CreatePostRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	req.Body = strings.TrimSpace(req.Body)
	if req.Body == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Body must not be empty")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	author, err := h.userRepository.GetUserByHandle(ctx, handle)
	if err != nil {
		return toHTTPError(err)
	}

	location := strings.TrimSpace(req.Location)
	if location != "" && location != models.LocationExplore {
		exists, err := h.userRepository.HandleExists(ctx, location)
		if err != nil {
			return toHTTPError(models.NewStoreError(err))
		}
		if !exists {
			return toHTTPError(models.NewNotFoundError("user", location))
		}
	}

	post := &models.Post{
		UserHandle: handle,
		Body:       req.Body,
		UserImage:  author.ImageURL,
		Location:   location,
	}
	if err := h.postRepository.CreatePost(ctx, post); err != nil {
		return toHTTPError(models.NewStoreError(err))
	}
	return c.JSON(http.StatusCreated, post)
}

// GetPost retrieves a post with its comments
func (h *PostHandler) GetPost(c echo.Context) error {
	ctx := c.Request().Context()
	postID := c.Param("postId")

	post, err := h.postRepository.GetPostByID(ctx, postID)
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Post not found")
	}
	if err != nil {
		return toHTTPError(err)
	}
	comments, err := h.commentRepository.GetCommentsByPostID(ctx, postID)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, models.PostWithComments{Post: *post, Comments: comments})
}

// GetPosts lists the newest posts, optionally only those of ?handle=
func (h *PostHandler) GetPosts(c echo.Context) error {
	ctx := c.Request().Context()
	limit := pageSize(c)

	var (
		posts []models.Post
		err   error
	)
	if handle := c.QueryParam("handle"); handle != "" {
		posts, err = h.postRepository.GetPostsByUserHandle(ctx, handle, limit)
	} else {
		posts, err = h.postRepository.GetAllPosts(ctx, limit)
	}
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, posts)
}

// DeletePost deletes a post owned by the caller. Its likes, comments and
// notifications are removed by the cascade reactor.
func (h *PostHandler) DeletePost(c echo.Context) error {
	handle, err := currentHandle(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	postID := c.Param("postId")

	post, err := h.postRepository.GetPostByID(ctx, postID)
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Post not found")
	}
	if err != nil {
		return toHTTPError(err)
	}
	if post.UserHandle != handle {
		return echo.NewHTTPError(http.StatusForbidden, "Unauthorized")
	}
	if err := h.postRepository.DeletePost(ctx, postID); err != nil {
		return toHTTPError(err)
	}
	h.logger.InfoContext(ctx, "post deleted", slog.String("post_id", postID), slog.String("handle", handle))
	return c.JSON(http.StatusOK, echo.Map{"message": "Post deleted successfully"})
}

func pageSize(c echo.Context) int {
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit <= 0 {
		return defaultPageSize
	}
	return min(limit, maxPageSize)
}
