package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/chalk/internal/config"
	"github.com/dyluth/chalk/pkg/board"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func configFor(t *testing.T, backend string) *config.ChalkConfig {
	t.Helper()
	cfg := config.Default()
	cfg.Persistence.Backend = backend
	return cfg
}

func TestOpenRedis(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	cfg := configFor(t, config.BackendRedis)
	cfg.Persistence.RedisURL = "redis://" + mr.Addr() + "/0"
	cfg.Persistence.Namespace = "backend-test"

	b, err := Open(ctx, cfg)
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, config.BackendRedis, b.Name)
	require.NoError(t, b.Adapter.AddDataToBoard(ctx, "b", "l1", &board.Element{}))
	assert.True(t, mr.Exists(board.DataKey("backend-test", "b")))

	bus, err := b.Bus()
	require.NoError(t, err)
	assert.NotNil(t, bus)

	_, ok := b.Lister()
	assert.True(t, ok)
}

func TestOpenRedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := configFor(t, config.BackendRedis)
	cfg.Persistence.RedisURL = "redis://" + addr + "/0"

	_, err := Open(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis not accessible")
}

func TestOpenSQLite(t *testing.T) {
	ctx := context.Background()
	cfg := configFor(t, config.BackendSQLite)
	cfg.Persistence.SQLitePath = filepath.Join(t.TempDir(), "chalk.db")

	b, err := Open(ctx, cfg)
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.Adapter.AddDataToBoard(ctx, "b", "l1", &board.Element{}))
	_, err = b.Adapter.GetBoard(ctx, "b")
	assert.NoError(t, err)

	_, err = b.Bus()
	assert.ErrorIs(t, err, ErrNoOperationBus)
}

func TestOpenMemory(t *testing.T) {
	b, err := Open(context.Background(), configFor(t, config.BackendMemory))
	require.NoError(t, err)
	assert.IsType(t, &board.MemoryAdapter{}, b.Adapter)
	assert.NoError(t, b.Close())

	_, err = b.Bus()
	assert.ErrorIs(t, err, ErrNoOperationBus)
}

func TestOpenUnknownBackend(t *testing.T) {
	cfg := configFor(t, config.BackendMemory)
	cfg.Persistence.Backend = "etcd"

	_, err := Open(context.Background(), cfg)
	assert.Error(t, err)
}
