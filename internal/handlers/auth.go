package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/nano-midea/socialsync/internal/identity"
	"github.com/anonto42/nano-midea/socialsync/internal/models"
	"github.com/anonto42/nano-midea/socialsync/internal/repositories"
)

// AuthHandler handles signup and login
type AuthHandler struct {
	userRepository repositories.UserRepository
	identities     identity.Provider
	defaultImage   string
	defaultRef     string
	logger         *slog.Logger
}

// NewAuthHandler creates a new AuthHandler. New users start with the default
// avatar at defaultImageURL, stored as object defaultImageRef.
func NewAuthHandler(userRepo repositories.UserRepository, identities identity.Provider, defaultImageURL, defaultImageRef string, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		userRepository: userRepo,
		identities:     identities,
		defaultImage:   defaultImageURL,
		defaultRef:     defaultImageRef,
		logger:         logger,
	}
}

// RegisterAuthRoutes registers authentication-related routes
func (h *AuthHandler) RegisterAuthRoutes(g *echo.Group) {
	g.POST("/signup", h.Signup)
	g.POST("/login", h.Login)
}

// Signup creates the identity and the users/{handle} record
func (h *AuthHandler) Signup(c echo.Context) error {
	var req models.SignupRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	email := strings.ToLower(strings.TrimSpace(req.Email))

	exists, err := h.userRepository.HandleExists(ctx, req.Handle)
	if err != nil {
		return toHTTPError(models.NewStoreError(err))
	}
	if exists {
		return echo.NewHTTPError(http.StatusConflict, "This handle is already taken")
	}

	uid, token, err := h.identities.Create(ctx, email, req.Password, req.Handle)
	if err != nil {
		return toHTTPError(err)
	}

	user := &models.User{
		Handle:      req.Handle,
		Email:       email,
		UserID:      uid,
		ImageURL:    h.defaultImage,
		ImageURLRef: h.defaultRef,
	}
	if err := h.userRepository.CreateUser(ctx, user); err != nil {
		if rmErr := h.identities.Remove(ctx, uid); rmErr != nil {
			h.logger.ErrorContext(ctx, "failed to roll back identity",
				slog.String("uid", uid),
				slog.String("error", rmErr.Error()))
		}
		return toHTTPError(models.NewStoreError(err))
	}

	h.logger.InfoContext(ctx, "user signed up", slog.String("handle", user.Handle))
	return c.JSON(http.StatusCreated, echo.Map{"token": token})
}

// Login exchanges email and password for a token
func (h *AuthHandler) Login(c echo.Context) error {
	var req models.LoginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	token, err := h.identities.Authenticate(c.Request().Context(), email, req.Password)
	if errors.Is(err, identity.ErrUnsupported) {
		return echo.NewHTTPError(http.StatusNotImplemented, "Sign in with the Firebase client SDK")
	}
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"token": token})
}
