package sqlstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/dyluth/chalk/internal/testutil"
	"github.com/dyluth/chalk/pkg/board"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	a, err := Open(context.Background(), filepath.Join(t.TempDir(), "chalk.db"))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestAdapterContract(t *testing.T) {
	testutil.RunAdapterTests(t, func(t *testing.T) board.Adapter {
		return setupTestAdapter(t)
	})
}

func TestInMemoryDatabase(t *testing.T) {
	ctx := context.Background()
	a, err := Open(ctx, ":memory:")
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.AddDataToBoard(ctx, "b", "l1", testutil.Line("l1", 1)))
	records, err := a.GetBoardData(ctx, "b", "line")
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.NoError(t, a.Ping(ctx))
}

func TestPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "chalk.db")

	a, err := Open(ctx, path)
	require.NoError(t, err)
	s := board.New("sketch", a, board.WithPersistMode(board.PersistSync))
	require.NoError(t, s.Set(ctx, "l1", &board.Element{Size: board.Int(3)}))
	_, err = s.AddChild(ctx, "l1", &board.Element{X: board.Float(1), Y: board.Float(2)})
	require.NoError(t, err)
	require.NoError(t, s.Close(ctx))
	require.NoError(t, a.Close())

	reopened, err := Open(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := board.Load(ctx, "sketch", reopened)
	require.NoError(t, err)
	defer loaded.Close(ctx)

	got, ok := loaded.Get("l1")
	require.True(t, ok)
	assert.Equal(t, 3, *got.Size)
	require.Len(t, got.Children, 1)
	assert.Equal(t, 2.0, *got.Children[0].Y)
}

func TestTypeColumnFollowsUpdates(t *testing.T) {
	ctx := context.Background()
	a := setupTestAdapter(t)

	require.NoError(t, a.AddDataToBoard(ctx, "b", "x", testutil.Line("x", 1)))
	doc := &board.Element{}
	require.NoError(t, doc.SetPayload(board.FieldType, "doc"))
	require.NoError(t, a.UpdateBoardData(ctx, "b", "x", doc))

	lines, err := a.GetBoardData(ctx, "b", "line")
	require.NoError(t, err)
	assert.Empty(t, lines)
	docs, err := a.GetBoardData(ctx, "b", "doc")
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}
