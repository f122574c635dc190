package config

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("REACTOR_TIMEOUT", "")
	t.Setenv("STORE_BACKEND", "")
	cfg := Load()
	assert.Equal(t, StoreMemory, cfg.StoreBackend)
	assert.Equal(t, SourceLocal, cfg.EventSource)
	assert.Equal(t, 60*time.Second, cfg.ReactorTimeout)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("STORE_BACKEND", StoreMongo)
	t.Setenv("EVENT_SOURCE", SourceChangeStream)
	t.Setenv("REACTOR_TIMEOUT", "5s")
	t.Setenv("EVENT_MAX_ATTEMPTS", "9")
	cfg := Load()
	assert.Equal(t, StoreMongo, cfg.StoreBackend)
	assert.Equal(t, 5*time.Second, cfg.ReactorTimeout)
	assert.Equal(t, 9, cfg.EventMaxAttempts)
}

func valid() *Config {
	return &Config{
		StoreBackend:   StoreMemory,
		EventSource:    SourceLocal,
		LedgerBackend:  LedgerRedis,
		RedisURL:       "localhost:6379",
		AuthMode:       AuthJWT,
		JWTSecret:      "s",
		ReactorTimeout: time.Second,
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, valid().Validate())

	cfg := valid()
	cfg.EventSource = SourceListener
	assert.ErrorContains(t, cfg.Validate(), "STORE_BACKEND=firestore")

	cfg = valid()
	cfg.StoreBackend = StoreMongo
	cfg.EventSource = SourceChangeStream
	assert.ErrorContains(t, cfg.Validate(), "MONGO_URI")

	cfg = valid()
	cfg.JWTSecret = ""
	cfg.LedgerBackend = LedgerPostgres
	err := cfg.Validate()
	assert.ErrorContains(t, err, "JWT_SECRET")
	assert.ErrorContains(t, err, "POSTGRES_URL")

	cfg = valid()
	cfg.EventSource = SourcePush
	assert.NoError(t, cfg.Validate())
}

func TestInitDBOpensNothingForLocalBackends(t *testing.T) {
	cfg := &Config{StoreBackend: StoreMemory, LedgerBackend: LedgerRedis}
	db, err := InitDB(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	assert.Nil(t, db.Postgres)
	assert.Nil(t, db.Mongo)
	assert.NoError(t, db.CloseDB())
}
