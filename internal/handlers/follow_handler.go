package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/nano-midea/socialsync/internal/graph"
)

// FollowHandler handles follow/unfollow HTTP requests
type FollowHandler struct {
	graph *graph.Service
}

// NewFollowHandler creates a new FollowHandler
func NewFollowHandler(svc *graph.Service) *FollowHandler {
	return &FollowHandler{graph: svc}
}

// RegisterFollowRoutes registers follow-related routes
func (h *FollowHandler) RegisterFollowRoutes(g *echo.Group) {
	g.POST("/user/:handle/follow", h.FollowUser)
	g.POST("/user/:handle/unfollow", h.UnfollowUser)
	g.GET("/user/:handle/followers", h.GetFollowers)
	g.GET("/user/:handle/following", h.GetFollowing)
}

// FollowUser follows the user named in the path
func (h *FollowHandler) FollowUser(c echo.Context) error {
	sender, err := currentHandle(c)
	if err != nil {
		return err
	}
	follow, err := h.graph.Follow(c.Request().Context(), sender, c.Param("handle"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, follow)
}

// UnfollowUser removes the caller's follow of the user named in the path
func (h *FollowHandler) UnfollowUser(c echo.Context) error {
	sender, err := currentHandle(c)
	if err != nil {
		return err
	}
	if err := h.graph.Unfollow(c.Request().Context(), sender, c.Param("handle")); err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Unfollowed successfully"})
}

func (h *FollowHandler) GetFollowers(c echo.Context) error {
	follows, err := h.graph.Followers(c.Request().Context(), c.Param("handle"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, follows)
}

func (h *FollowHandler) GetFollowing(c echo.Context) error {
	follows, err := h.graph.Following(c.Request().Context(), c.Param("handle"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, follows)
}
