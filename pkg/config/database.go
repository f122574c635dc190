package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB holds the database connections. Either field is nil when the
// configuration does not use that backend.
type DB struct {
	Postgres *gorm.DB
	Mongo    *mongo.Client
	logger   *slog.Logger
}

// InitDB opens the connections the configuration asks for: Postgres for the
// dedupe ledger and MongoDB for the record store.
func InitDB(ctx context.Context, cfg *Config, log *slog.Logger) (*DB, error) {
	db := &DB{logger: log}
	if cfg.LedgerBackend == LedgerPostgres {
		pg, err := initPostgres(ctx, cfg.PostgresUrl)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		db.Postgres = pg
		log.InfoContext(ctx, "connected to postgres")
	}
	if cfg.StoreBackend == StoreMongo {
		client, err := initMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("failed to connect to MongoDB: %w", err), db.CloseDB())
		}
		db.Mongo = client
		log.InfoContext(ctx, "connected to mongodb")
	}
	return db, nil
}

func initPostgres(ctx context.Context, connStr string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(connStr), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

func initMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	// Ping the primary; Connect alone does not dial
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

// CloseDB closes whichever connections are open.
func (db *DB) CloseDB() error {
	var errs []error
	if db.Postgres != nil {
		sqlDB, err := db.Postgres.DB()
		if err == nil {
			err = sqlDB.Close()
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("close postgres: %w", err))
		} else {
			db.logger.Info("postgres connection closed")
		}
		db.Postgres = nil
	}
	if db.Mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.Mongo.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close mongodb: %w", err))
		} else {
			db.logger.Info("mongodb connection closed")
		}
		db.Mongo = nil
	}
	return errors.Join(errs...)
}
