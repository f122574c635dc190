package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anonto42/nano-midea/socialsync/internal/bootstrap"
	"github.com/anonto42/nano-midea/socialsync/internal/counters"
	"github.com/anonto42/nano-midea/socialsync/internal/models"
	"github.com/anonto42/nano-midea/socialsync/internal/observability"
	"github.com/anonto42/nano-midea/socialsync/internal/store"
	"github.com/anonto42/nano-midea/socialsync/pkg/config"
)

func runtimeOpener(t *testing.T) (*RootOptions, *bootstrap.Runtime) {
	mr := miniredis.RunT(t)
	rt, err := bootstrap.New(context.Background(), &config.Config{
		StoreBackend:     config.StoreMemory,
		EventSource:      config.SourceLocal,
		LedgerBackend:    config.LedgerRedis,
		RedisURL:         mr.Addr(),
		AuthMode:         config.AuthJWT,
		JWTSecret:        "s",
		ReactorTimeout:   time.Second,
		EventMaxAttempts: 1,
		LedgerTTL:        time.Hour,
	}, observability.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { rt.Close() })
	return &RootOptions{Open: func(context.Context) (*bootstrap.Runtime, error) { return rt, nil }}, rt
}

func execute(opts *RootOptions, args ...string) (string, error) {
	root := newRootCommand(opts)
	root.SetArgs(args)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	err := root.Execute()
	return out.String(), err
}

func TestReconcileRepairsDrift(t *testing.T) {
	opts, rt := runtimeOpener(t)
	ctx := context.Background()
	require.NoError(t, rt.Store.Set(ctx, models.CollectionPosts, "p1",
		models.Post{UserHandle: "alice", LikeCount: 5}.Fields().Merge(store.Stamp(store.WriterClient))))

	out, err := execute(opts, "--json", "reconcile", "posts")
	require.NoError(t, err)

	var report counters.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, int64(1), report.Checked)
	assert.Equal(t, int64(1), report.Repaired)

	doc, err := rt.Store.Get(ctx, models.CollectionPosts, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), doc.Int(models.FieldLikeCount))
}

func TestReconcileRejectsUnknownTarget(t *testing.T) {
	opts, _ := runtimeOpener(t)
	_, err := execute(opts, "reconcile", "comments")
	assert.Error(t, err)
}

func TestLedgerPurgeNeedsPurgeableLedger(t *testing.T) {
	opts, _ := runtimeOpener(t)
	_, err := execute(opts, "ledger", "purge")
	assert.ErrorContains(t, err, "nothing to purge")
}
