// Package bootstrap assembles the store, ledger, blob store, reactors and
// event source selected by the configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/nano-midea/socialsync/internal/blob"
	"github.com/anonto42/nano-midea/socialsync/internal/cascade"
	"github.com/anonto42/nano-midea/socialsync/internal/counters"
	"github.com/anonto42/nano-midea/socialsync/internal/events"
	"github.com/anonto42/nano-midea/socialsync/internal/fanout"
	"github.com/anonto42/nano-midea/socialsync/internal/identity"
	"github.com/anonto42/nano-midea/socialsync/internal/ledger"
	"github.com/anonto42/nano-midea/socialsync/internal/media"
	"github.com/anonto42/nano-midea/socialsync/internal/middleware"
	"github.com/anonto42/nano-midea/socialsync/internal/profile"
	"github.com/anonto42/nano-midea/socialsync/internal/repositories"
	"github.com/anonto42/nano-midea/socialsync/internal/router"
	"github.com/anonto42/nano-midea/socialsync/internal/store"
	"github.com/anonto42/nano-midea/socialsync/pkg/config"
	"github.com/anonto42/nano-midea/socialsync/pkg/firebase"
)

const redeliveryBackoff = 500 * time.Millisecond

// Runtime owns every long-lived component of the service.
type Runtime struct {
	Config     *config.Config
	Logger     *slog.Logger
	Store      store.Store
	Ledger     ledger.Ledger
	Blobs      blob.Store
	Dispatcher *events.Dispatcher
	Counters   *counters.Maintainer
	Reconciler *counters.Reconciler
	Identities identity.Provider
	Auth       echo.MiddlewareFunc

	source  func(ctx context.Context) error
	closers []func() error
}

// New connects to the configured backends and registers all reactors.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	rt := &Runtime{Config: cfg, Logger: logger}
	if err := rt.init(ctx); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

func (rt *Runtime) init(ctx context.Context) error {
	cfg := rt.Config

	var app *firebase.App
	if cfg.NeedsFirebase() {
		var err error
		app, err = firebase.InitFirebase(ctx, firebase.Options{
			CredentialsPath: cfg.FirebaseCredentialsPath,
			ProjectID:       cfg.FirebaseProjectID,
			StorageBucket:   cfg.StorageBucket,
			Auth:            cfg.AuthMode == config.AuthFirebase,
			Firestore:       cfg.StoreBackend == config.StoreFirestore,
		})
		if err != nil {
			return err
		}
		rt.closers = append(rt.closers, app.Close)
	}

	db, err := config.InitDB(ctx, cfg, rt.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize databases: %w", err)
	}
	rt.closers = append(rt.closers, db.CloseDB)

	var memory *store.Memory
	switch cfg.StoreBackend {
	case config.StoreFirestore:
		rt.Store = store.NewFirestore(app.Firestore)
	case config.StoreMongo:
		rt.Store = store.NewMongo(db.Mongo.Database(cfg.MongoDatabase))
	default:
		memory = store.NewMemory()
		rt.Store = memory
	}

	switch cfg.LedgerBackend {
	case config.LedgerPostgres:
		l, err := ledger.NewGorm(db.Postgres)
		if err != nil {
			return fmt.Errorf("failed to prepare ledger table: %w", err)
		}
		rt.Ledger = l
	default:
		l, err := ledger.NewRedisFromURL(ctx, cfg.RedisURL, cfg.LedgerTTL)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		rt.Ledger = l
		rt.closers = append(rt.closers, l.Close)
	}

	if app != nil && app.Bucket != nil {
		rt.Blobs = blob.NewGCS(app.Bucket, app.BucketName)
	} else {
		rt.Blobs = blob.NewMemory("local")
	}

	rt.Dispatcher = events.NewDispatcher(rt.Ledger, rt.Logger, events.WithReactorTimeout(cfg.ReactorTimeout))
	rt.Counters = counters.NewMaintainer(rt.Store, rt.Logger)
	rt.Reconciler = counters.NewReconciler(rt.Store, rt.Logger)
	counters.Register(rt.Dispatcher, rt.Counters, rt.Ledger, rt.Logger)
	fanout.New(rt.Store, rt.Ledger, rt.Logger).Register(rt.Dispatcher)
	cascade.New(rt.Store, rt.Logger).Register(rt.Dispatcher)
	profile.New(rt.Store, rt.Blobs, cfg.DefaultImageObject, rt.Logger).Register(rt.Dispatcher)

	delivery := events.NewRedeliverer(rt.Dispatcher, rt.Logger, cfg.EventMaxAttempts, redeliveryBackoff)
	collections := rt.Dispatcher.Collections()
	switch cfg.EventSource {
	case config.SourceLocal:
		events.NewLocal(delivery, collections...).Attach(memory)
	case config.SourceListener:
		rt.source = events.NewFirestoreListener(app.Firestore, delivery, rt.Logger, collections...).Run
	case config.SourceChangeStream:
		rt.source = events.NewChangeStream(db.Mongo.Database(cfg.MongoDatabase), delivery, rt.Logger, collections...).Run
	}

	users := repositories.NewStoreUserRepository(rt.Store)
	if cfg.AuthMode == config.AuthFirebase {
		rt.Identities = identity.NewFirebase(app.AuthClient)
		rt.Auth = middleware.FirebaseAuthMiddleware(app.AuthClient, users)
	} else {
		rt.Identities = identity.NewLocal(repositories.NewStoreCredentialRepository(rt.Store), cfg.JWTSecret)
		rt.Auth = middleware.JWTAuthMiddleware(cfg.JWTSecret)
	}

	rt.Logger.Info("runtime ready",
		slog.String("store", cfg.StoreBackend),
		slog.String("events", cfg.EventSource),
		slog.String("ledger", cfg.LedgerBackend),
		slog.String("auth", cfg.AuthMode),
		slog.Any("collections", collections))
	return nil
}

// Routes returns the HTTP dependencies backed by this runtime.
func (rt *Runtime) Routes() router.Dependencies {
	deps := router.Dependencies{
		Store:           rt.Store,
		Counters:        rt.Counters,
		Identities:      rt.Identities,
		Uploader:        media.NewUploader(rt.Blobs, rt.Logger),
		Auth:            rt.Auth,
		DefaultImageURL: blob.PublicURL(rt.bucketName(), rt.Config.DefaultImageObject),
		DefaultImageRef: rt.Config.DefaultImageObject,
		EventToken:      rt.Config.EventToken,
		Logger:          rt.Logger,
	}
	if rt.Config.EventSource == config.SourcePush {
		deps.Events = rt.Dispatcher
	}
	return deps
}

func (rt *Runtime) bucketName() string {
	if rt.Config.StorageBucket != "" {
		return rt.Config.StorageBucket
	}
	return "local"
}

// Run blocks consuming the configured event source until ctx ends. Sources
// driven by writes or by HTTP pushes have nothing to run.
func (rt *Runtime) Run(ctx context.Context) error {
	if rt.source == nil {
		<-ctx.Done()
		return nil
	}
	err := rt.source(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close releases connections in reverse order of opening.
func (rt *Runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		errs = append(errs, rt.closers[i]())
	}
	rt.closers = nil
	return errors.Join(errs...)
}
