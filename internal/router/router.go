package router

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	eMiddleware "github.com/labstack/echo/v4/middleware"

	"github.com/anonto42/nano-midea/socialsync/internal/counters"
	"github.com/anonto42/nano-midea/socialsync/internal/events"
	"github.com/anonto42/nano-midea/socialsync/internal/graph"
	"github.com/anonto42/nano-midea/socialsync/internal/handlers"
	"github.com/anonto42/nano-midea/socialsync/internal/identity"
	"github.com/anonto42/nano-midea/socialsync/internal/media"
	"github.com/anonto42/nano-midea/socialsync/internal/observability"
	"github.com/anonto42/nano-midea/socialsync/internal/repositories"
	"github.com/anonto42/nano-midea/socialsync/internal/store"
	"github.com/anonto42/nano-midea/socialsync/validators"
)

// Dependencies are the collaborators the HTTP layer is built from.
type Dependencies struct {
	Store           store.Store
	Counters        *counters.Maintainer
	Identities      identity.Provider
	Uploader        *media.Uploader
	Auth            echo.MiddlewareFunc
	DefaultImageURL string
	DefaultImageRef string
	// Events receives pushed change events. Nil leaves /internal/events
	// unregistered.
	Events     events.Handler
	EventToken string
	Logger     *slog.Logger
}

// SetupMiddleware configures global Echo middleware
func SetupMiddleware(e *echo.Echo, logger *slog.Logger) {
	e.Validator = validators.NewValidator()
	e.Use(eMiddleware.Recover())
	e.Use(eMiddleware.RequestID())
	e.Use(observability.RequestLogger(logger))
	e.Use(eMiddleware.CORS())
	logger.Debug("global middleware configured")
}

// SetupRoutes configures all application routes and injects dependencies
func SetupRoutes(e *echo.Echo, deps Dependencies) {
	logger := deps.Logger

	// Health check - always accessible
	e.GET("/health", handlers.HealthCheck)

	// --- Initialize Repositories ---
	userRepo := repositories.NewStoreUserRepository(deps.Store)
	postRepo := repositories.NewStorePostRepository(deps.Store)
	commentRepo := repositories.NewStoreCommentRepository(deps.Store)
	likeRepo := repositories.NewStoreLikeRepository(deps.Store)
	followRepo := repositories.NewStoreFollowRepository(deps.Store)
	notificationRepo := repositories.NewStoreNotificationRepository(deps.Store)

	// --- Unprotected routes ---
	public := e.Group("/api/v1")
	authHandler := handlers.NewAuthHandler(userRepo, deps.Identities, deps.DefaultImageURL, deps.DefaultImageRef, logger)
	authHandler.RegisterAuthRoutes(public)

	userHandler := handlers.NewUserHandler(userRepo, postRepo, likeRepo, notificationRepo, deps.Uploader, logger)
	userHandler.RegisterPublicRoutes(public)

	postHandler := handlers.NewPostHandler(postRepo, commentRepo, userRepo, logger)
	postHandler.RegisterPublicRoutes(public)

	// --- Protected routes ---
	api := e.Group("/api/v1", deps.Auth)
	userHandler.RegisterProfileRoutes(api)
	postHandler.RegisterPostRoutes(api)

	likeHandler := handlers.NewLikeHandler(likeRepo, postRepo)
	likeHandler.RegisterLikeRoutes(api)

	commentHandler := handlers.NewCommentHandler(commentRepo, postRepo, userRepo, deps.Counters, logger)
	commentHandler.RegisterCommentRoutes(api)

	followHandler := handlers.NewFollowHandler(graph.NewService(userRepo, followRepo, logger))
	followHandler.RegisterFollowRoutes(api)

	notificationHandler := handlers.NewNotificationHandler(notificationRepo)
	notificationHandler.RegisterNotificationRoutes(api)

	if deps.Events != nil {
		eventsHandler := handlers.NewEventsHandler(deps.Events, deps.EventToken, logger)
		eventsHandler.RegisterEventRoutes(e.Group("/internal"))
		logger.Info("event push endpoint enabled")
	}

	logger.Info("all routes configured")
}
