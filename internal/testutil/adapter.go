package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/chalk/pkg/board"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AdapterFactory returns a fresh, empty adapter for one test.
type AdapterFactory func(t *testing.T) board.Adapter

// NewRedisAdapter returns a RedisAdapter backed by a miniredis server that is
// stopped when the test ends.
func NewRedisAdapter(t *testing.T, opts ...board.RedisOption) (*board.RedisAdapter, *miniredis.Miniredis) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	adapter, err := board.NewRedisAdapter(&redis.Options{Addr: mr.Addr()}, "test-namespace", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { adapter.Close() })

	return adapter, mr
}

// Line returns a simple line element for adapter tests.
func Line(id string, t int64) *board.Element {
	e := &board.Element{ID: id, Time: t, Size: board.Int(4)}
	_ = e.SetPayload(board.FieldType, "line")
	_ = e.SetPayload("color", "#123456")
	return e
}

// RunAdapterTests checks the persistence contract every adapter must honour.
func RunAdapterTests(t *testing.T, newAdapter AdapterFactory) {
	ctx := context.Background()

	t.Run("unknown board is not found", func(t *testing.T) {
		a := newAdapter(t)
		_, err := a.GetBoard(ctx, "missing")
		require.Error(t, err)
		assert.True(t, board.IsNotFound(err))

		records, err := a.GetBoardData(ctx, "missing", "")
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("data write creates the board record", func(t *testing.T) {
		a := newAdapter(t)
		require.NoError(t, a.AddDataToBoard(ctx, "b", "l1", Line("l1", 10)))

		snap, err := a.GetBoard(ctx, "b")
		require.NoError(t, err)
		assert.Equal(t, "b", snap.Name)
		assert.Empty(t, snap.Elements)
		assert.True(t, snap.SavedAt.IsZero())

		records, err := a.GetBoardData(ctx, "b", "")
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "l1", records[0].ID)
		assert.Equal(t, 4, *records[0].Data.Size)
		assert.Equal(t, "#123456", records[0].Data.PayloadString("color"))
	})

	t.Run("update upserts the log row", func(t *testing.T) {
		a := newAdapter(t)
		require.NoError(t, a.AddDataToBoard(ctx, "b", "l1", Line("l1", 10)))

		changed := Line("l1", 20)
		changed.Size = board.Int(9)
		require.NoError(t, a.UpdateBoardData(ctx, "b", "l1", changed))

		records, err := a.GetBoardData(ctx, "b", "")
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, 9, *records[0].Data.Size)
		assert.Equal(t, int64(20), records[0].Data.Time)
	})

	t.Run("type filter", func(t *testing.T) {
		a := newAdapter(t)
		require.NoError(t, a.AddDataToBoard(ctx, "b", "l1", Line("l1", 1)))
		doc := &board.Element{ID: "d1", Time: 2}
		require.NoError(t, doc.SetPayload(board.FieldType, "doc"))
		require.NoError(t, a.AddDataToBoard(ctx, "b", "d1", doc))

		docs, err := a.GetBoardData(ctx, "b", "doc")
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "d1", docs[0].ID)

		all, err := a.GetBoardData(ctx, "b", "")
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("snapshot replaces and compacts the log", func(t *testing.T) {
		a := newAdapter(t)
		require.NoError(t, a.AddDataToBoard(ctx, "b", "old", Line("old", 1)))
		require.NoError(t, a.UpdateBoard(ctx, "b", map[string]*board.Element{
			"l1": Line("l1", 5),
			"l2": Line("l2", 6),
		}))

		snap, err := a.GetBoard(ctx, "b")
		require.NoError(t, err)
		assert.Len(t, snap.Elements, 2)
		assert.Contains(t, snap.Elements, "l1")
		assert.False(t, snap.SavedAt.IsZero())

		records, err := a.GetBoardData(ctx, "b", "")
		require.NoError(t, err)
		assert.Empty(t, records)

		require.NoError(t, a.UpdateBoard(ctx, "b", map[string]*board.Element{"l3": Line("l3", 7)}))
		snap, err = a.GetBoard(ctx, "b")
		require.NoError(t, err)
		assert.Len(t, snap.Elements, 1)
		assert.Contains(t, snap.Elements, "l3")
	})

	t.Run("delete removes log and snapshot rows", func(t *testing.T) {
		a := newAdapter(t)
		require.NoError(t, a.UpdateBoard(ctx, "b", map[string]*board.Element{"l1": Line("l1", 1)}))
		require.NoError(t, a.AddDataToBoard(ctx, "b", "l1", Line("l1", 2)))

		require.NoError(t, a.DeleteBoardData(ctx, "b", "l1"))
		require.NoError(t, a.DeleteBoardData(ctx, "b", "l1"))

		snap, err := a.GetBoard(ctx, "b")
		require.NoError(t, err)
		assert.Empty(t, snap.Elements)
		records, err := a.GetBoardData(ctx, "b", "")
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("delete all removes the board", func(t *testing.T) {
		a := newAdapter(t)
		require.NoError(t, a.AddDataToBoard(ctx, "b", "l1", Line("l1", 1)))
		require.NoError(t, a.UpdateBoard(ctx, "other", map[string]*board.Element{"x": Line("x", 1)}))

		require.NoError(t, a.DeleteAllBoardData(ctx, "b"))

		_, err := a.GetBoard(ctx, "b")
		assert.True(t, board.IsNotFound(err))
		records, err := a.GetBoardData(ctx, "b", "")
		require.NoError(t, err)
		assert.Empty(t, records)

		snap, err := a.GetBoard(ctx, "other")
		require.NoError(t, err)
		assert.Len(t, snap.Elements, 1)
	})

	t.Run("lists boards", func(t *testing.T) {
		a := newAdapter(t)
		lister, ok := a.(board.BoardLister)
		if !ok {
			t.Skip("adapter does not list boards")
		}
		require.NoError(t, a.AddDataToBoard(ctx, "zeta", "l1", Line("l1", 1)))
		require.NoError(t, a.UpdateBoard(ctx, "alpha", nil))

		names, err := lister.ListBoards(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"alpha", "zeta"}, names)
	})

	t.Run("elements survive a round trip", func(t *testing.T) {
		a := newAdapter(t)
		e := &board.Element{
			ID:       "l1",
			Time:     time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC).UnixMilli(),
			Size:     board.Int(3),
			X:        board.Float(10.5),
			Y:        board.Float(20),
			Opacity:  board.Float(0.4),
			Children: []*board.Element{{X: board.Float(1), Y: board.Float(2)}},
		}
		require.NoError(t, e.SetPayload("color", "#ff0000"))
		require.NoError(t, a.UpdateBoard(ctx, "b", map[string]*board.Element{"l1": e}))

		snap, err := a.GetBoard(ctx, "b")
		require.NoError(t, err)
		assert.Equal(t, e, snap.Elements["l1"])
	})
}
