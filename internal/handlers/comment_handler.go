package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/nano-midea/socialsync/internal/counters"
	"github.com/anonto42/nano-midea/socialsync/internal/models"
	"github.com/anonto42/nano-midea/socialsync/internal/repositories"
	"github.com/anonto42/nano-midea/socialsync/internal/store"
)

// CommentHandler handles HTTP requests related to comments
type CommentHandler struct {
	commentRepository repositories.CommentRepository
	postRepository    repositories.PostRepository
	userRepository    repositories.UserRepository
	counters          *counters.Maintainer
	logger            *slog.Logger
}

// commentResponse is the created comment along with the post's comment count
// after it was added.
type commentResponse struct {
	models.Comment
	CommentCount int64 `json:"commentCount"`
}

// NewCommentHandler creates a new CommentHandler
func NewCommentHandler(commentRepo repositories.CommentRepository, postRepo repositories.PostRepository, userRepo repositories.UserRepository, m *counters.Maintainer, logger *slog.Logger) *CommentHandler {
	return &CommentHandler{
		commentRepository: commentRepo,
		postRepository:    postRepo,
		userRepository:    userRepo,
		counters:          m,
		logger:            logger,
	}
}

// RegisterCommentRoutes registers comment-related routes
func (h *CommentHandler) RegisterCommentRoutes(g *echo.Group) {
	g.POST("/post/:postId/comment", h.CommentOnPost)
	g.DELETE("/post/:postId/comment/:commentId", h.DeleteComment)
}

// CommentOnPost adds a comment and bumps the post's commentCount in the same
// request.
func (h *CommentHandler) CommentOnPost(c echo.Context) error {
	handle, err := currentHandle(c)
	if err != nil {
		return err
	}
	var req models.CreateCommentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	req.Body = strings.TrimSpace(req.Body)
	if req.Body == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Must not be empty")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	postID := c.Param("postId")
	post, err := h.postRepository.GetPostByID(ctx, postID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Post not found")
		}
		return toHTTPError(err)
	}
	author, err := h.userRepository.GetUserByHandle(ctx, handle)
	if err != nil {
		return toHTTPError(err)
	}

	comment := &models.Comment{
		PostID:     postID,
		UserHandle: handle,
		UserImage:  author.ImageURL,
		Body:       req.Body,
	}
	if err := h.commentRepository.CreateComment(ctx, comment); err != nil {
		return toHTTPError(err)
	}
	count, err := h.counters.Adjust(ctx, counters.CommentCount(postID), 1)
	if err != nil {
		// the reconciler repairs the count
		h.logger.ErrorContext(ctx, "failed to bump comment count",
			slog.String("post_id", postID),
			slog.String("error", err.Error()))
		count = post.CommentCount + 1
	}
	return c.JSON(http.StatusCreated, commentResponse{Comment: *comment, CommentCount: count})
}

// DeleteComment removes the caller's own comment and decrements the count.
func (h *CommentHandler) DeleteComment(c echo.Context) error {
	handle, err := currentHandle(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	postID := c.Param("postId")

	comment, err := h.commentRepository.GetCommentByID(ctx, c.Param("commentId"))
	if errors.Is(err, store.ErrNotFound) || (err == nil && comment.PostID != postID) {
		return echo.NewHTTPError(http.StatusNotFound, "Comment not found")
	}
	if err != nil {
		return toHTTPError(err)
	}
	if comment.UserHandle != handle {
		return echo.NewHTTPError(http.StatusForbidden, "Unauthorized")
	}
	if err := h.commentRepository.DeleteComment(ctx, comment.CommentID); err != nil {
		return toHTTPError(err)
	}
	if _, err := h.counters.Adjust(ctx, counters.CommentCount(postID), -1); err != nil {
		h.logger.ErrorContext(ctx, "failed to drop comment count",
			slog.String("post_id", postID),
			slog.String("error", err.Error()))
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Comment deleted successfully"})
}
