package board

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestAdapter creates an adapter connected to a miniredis instance.
func setupTestAdapter(t *testing.T, opts ...RedisOption) (*RedisAdapter, *miniredis.Miniredis) {
	mr := miniredis.NewMiniRedis()
	err := mr.Start()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	adapter, err := NewRedisAdapter(&redis.Options{Addr: mr.Addr()}, "test-ns", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { adapter.Close() })

	return adapter, mr
}

func TestNewRedisAdapter(t *testing.T) {
	t.Run("creates adapter successfully", func(t *testing.T) {
		adapter, _ := setupTestAdapter(t)
		assert.Equal(t, "test-ns", adapter.Namespace())
		assert.NoError(t, adapter.Ping(context.Background()))
	})

	t.Run("rejects empty namespace", func(t *testing.T) {
		_, err := NewRedisAdapter(&redis.Options{Addr: "localhost:6379"}, "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "namespace cannot be empty")
	})
}

func TestRedisAdapterKeys(t *testing.T) {
	ctx := context.Background()
	adapter, mr := setupTestAdapter(t)

	require.NoError(t, adapter.AddDataToBoard(ctx, "sketch", "l1", &Element{Size: Int(2)}))

	assert.True(t, mr.Exists("chalk:test-ns:board:sketch"))
	assert.True(t, mr.Exists("chalk:test-ns:board:sketch:data"))
	assert.False(t, mr.Exists("chalk:test-ns:board:sketch:snapshot"))
	members, err := mr.Members("chalk:test-ns:boards")
	require.NoError(t, err)
	assert.Equal(t, []string{"sketch"}, members)

	assert.Equal(t, `{"size":2}`, mr.HGet("chalk:test-ns:board:sketch:data", "l1"))
	assert.Equal(t, "sketch", mr.HGet("chalk:test-ns:board:sketch", "name"))

	require.NoError(t, adapter.UpdateBoard(ctx, "sketch", map[string]*Element{"l1": {Size: Int(2)}}))
	assert.False(t, mr.Exists("chalk:test-ns:board:sketch:data"))
	assert.True(t, mr.Exists("chalk:test-ns:board:sketch:snapshot"))
	assert.NotEmpty(t, mr.HGet("chalk:test-ns:board:sketch", "saved_at_ms"))
}

func TestRedisAdapterKeyTTL(t *testing.T) {
	ctx := context.Background()
	adapter, mr := setupTestAdapter(t, WithKeyTTL(time.Hour))

	require.NoError(t, adapter.AddDataToBoard(ctx, "b", "l1", &Element{}))
	assert.Equal(t, time.Hour, mr.TTL("chalk:test-ns:board:b"))
	assert.Equal(t, time.Hour, mr.TTL("chalk:test-ns:board:b:data"))

	mr.FastForward(30 * time.Minute)
	require.NoError(t, adapter.UpdateBoardData(ctx, "b", "l1", &Element{}))
	assert.Equal(t, time.Hour, mr.TTL("chalk:test-ns:board:b"), "writes refresh retention")

	mr.FastForward(2 * time.Hour)
	_, err := adapter.GetBoard(ctx, "b")
	assert.True(t, IsNotFound(err))

	names, err := adapter.ListBoards(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)
	members, _ := mr.Members("chalk:test-ns:boards")
	assert.Empty(t, members, "expired boards are pruned from the index")
}

func TestRedisAdapterNamespaceIsolation(t *testing.T) {
	ctx := context.Background()
	a, mr := setupTestAdapter(t)
	b, err := NewRedisAdapter(&redis.Options{Addr: mr.Addr()}, "other-ns")
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, a.AddDataToBoard(ctx, "shared", "l1", &Element{}))

	_, err = b.GetBoard(ctx, "shared")
	assert.True(t, IsNotFound(err))
	names, err := b.ListBoards(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestRedisAdapterCorruptRow(t *testing.T) {
	ctx := context.Background()
	adapter, mr := setupTestAdapter(t)
	mr.HSet("chalk:test-ns:board:b:data", "bad", "[1,2,3]")

	_, err := adapter.GetBoardData(ctx, "b", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to deserialize element log")
}

func TestOperationsPubSub(t *testing.T) {
	adapter, mr := setupTestAdapter(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub, err := adapter.SubscribeOperations(ctx)
	require.NoError(t, err)
	defer sub.Close()

	op := json.RawMessage(`{"type":"line","id":"l1","size":3}`)
	require.NoError(t, adapter.PublishOperation(ctx, "sketch", op))

	select {
	case env := <-sub.Events():
		require.NotNil(t, env)
		assert.Equal(t, "sketch", env.Board)
		assert.JSONEq(t, string(op), string(env.Op))
	case <-ctx.Done():
		t.Fatal("timed out waiting for operation")
	}

	t.Run("malformed messages are reported and skipped", func(t *testing.T) {
		mr.Publish(OperationsChannel("test-ns"), "not json")
		mr.Publish(OperationsChannel("test-ns"), `{"op":{}}`)

		for i := 0; i < 2; i++ {
			select {
			case err := <-sub.Errors():
				assert.Contains(t, err.Error(), "failed to unmarshal operation")
			case <-ctx.Done():
				t.Fatal("timed out waiting for error")
			}
		}

		require.NoError(t, adapter.PublishOperation(ctx, "next", json.RawMessage(`{}`)))
		select {
		case env := <-sub.Events():
			assert.Equal(t, "next", env.Board)
		case <-ctx.Done():
			t.Fatal("timed out waiting for operation")
		}
	})

	t.Run("rejects empty board", func(t *testing.T) {
		assert.Error(t, adapter.PublishOperation(ctx, "", json.RawMessage(`{}`)))
	})

	t.Run("close is idempotent and closes channels", func(t *testing.T) {
		require.NoError(t, sub.Close())
		require.NoError(t, sub.Close())
		for range sub.Events() {
		}
	})
}
