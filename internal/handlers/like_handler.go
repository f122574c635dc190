package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/nano-midea/socialsync/internal/models"
	"github.com/anonto42/nano-midea/socialsync/internal/repositories"
	"github.com/anonto42/nano-midea/socialsync/internal/store"
)

// LikeHandler handles like and unlike requests. likeCount itself is kept by
// the counters reactor.
type LikeHandler struct {
	likeRepository repositories.LikeRepository
	postRepository repositories.PostRepository
}

// NewLikeHandler creates a new LikeHandler
func NewLikeHandler(likeRepo repositories.LikeRepository, postRepo repositories.PostRepository) *LikeHandler {
	return &LikeHandler{likeRepository: likeRepo, postRepository: postRepo}
}

// RegisterLikeRoutes registers like-related routes
func (h *LikeHandler) RegisterLikeRoutes(g *echo.Group) {
	g.GET("/post/:postId/like", h.LikePost)
	g.GET("/post/:postId/unlike", h.UnlikePost)
}

// LikePost likes a post once per user
func (h *LikeHandler) LikePost(c echo.Context) error {
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

	_, err = h.likeRepository.GetLike(ctx, postID, handle)
	if err == nil {
		return echo.NewHTTPError(http.StatusConflict, "Post already liked")
	}
	if !errors.Is(err, store.ErrNotFound) {
		return toHTTPError(err)
	}

	if err := h.likeRepository.CreateLike(ctx, &models.Like{PostID: postID, UserHandle: handle}); err != nil {
		return toHTTPError(err)
	}
	post.LikeCount++
	return c.JSON(http.StatusOK, post)
}

// UnlikePost removes the caller's like
func (h *LikeHandler) UnlikePost(c echo.Context) error {
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

	like, err := h.likeRepository.GetLike(ctx, postID, handle)
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusConflict, "Post not liked")
	}
	if err != nil {
		return toHTTPError(err)
	}
	if err := h.likeRepository.DeleteLike(ctx, like.LikeID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return toHTTPError(err)
	}
	post.LikeCount = max(post.LikeCount-1, 0)
	return c.JSON(http.StatusOK, post)
}
