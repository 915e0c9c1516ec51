package board

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryAdapterFailNext(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryAdapter()
	boom := errors.New("boom")

	m.FailNext(boom, 2)
	assert.ErrorIs(t, m.AddDataToBoard(ctx, "b", "a", &Element{}), boom)
	assert.ErrorIs(t, m.AddDataToBoard(ctx, "b", "a", &Element{}), boom)
	assert.NoError(t, m.AddDataToBoard(ctx, "b", "a", &Element{}))
	assert.Equal(t, 3, m.Calls("AddDataToBoard"))

	m.FailNext(boom, -1)
	for i := 0; i < 5; i++ {
		assert.Error(t, m.DeleteBoardData(ctx, "b", "a"))
	}
	m.FailNext(nil, 0)
	assert.NoError(t, m.DeleteBoardData(ctx, "b", "a"))
}

func TestMemoryAdapterIsolation(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryAdapter()

	e := &Element{Size: Int(3)}
	require.NoError(t, m.AddDataToBoard(ctx, "b", "a", e))
	*e.Size = 40

	records, err := m.GetBoardData(ctx, "b", "")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 3, *records[0].Data.Size)

	*records[0].Data.Size = 12
	records, err = m.GetBoardData(ctx, "b", "")
	require.NoError(t, err)
	assert.Equal(t, 3, *records[0].Data.Size)
}

func TestMemoryAdapterCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := NewMemoryAdapter()
	assert.ErrorIs(t, m.AddDataToBoard(ctx, "b", "a", &Element{}), context.Canceled)
	assert.ErrorIs(t, m.Ping(ctx), context.Canceled)
}
