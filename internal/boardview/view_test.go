package boardview

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/dyluth/chalk/internal/filter"
	"github.com/dyluth/chalk/internal/resolver"
	"github.com/dyluth/chalk/pkg/board"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededAdapter(t *testing.T) *board.MemoryAdapter {
	t.Helper()
	ctx := context.Background()
	m := board.NewMemoryAdapter()

	for i, id := range []string{"a", "b", "c"} {
		e := &board.Element{Time: int64(1000 * (i + 1))}
		typ := "line"
		if id == "b" {
			typ = "doc"
		}
		require.NoError(t, e.SetPayload(board.FieldType, typ))
		require.NoError(t, m.AddDataToBoard(ctx, "sketch", id, e))
	}
	return m
}

func TestListElements(t *testing.T) {
	ctx := context.Background()
	m := seededAdapter(t)

	t.Run("jsonl in draw order", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, ListElements(ctx, m, "sketch", ListOptions{Format: OutputFormatJSONL}, &buf))
		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 3)
		assert.Contains(t, lines[0], `"id":"a"`)
		assert.Contains(t, lines[2], `"id":"c"`)
	})

	t.Run("filters and cursor", func(t *testing.T) {
		var buf bytes.Buffer
		opts := ListOptions{
			Format:  OutputFormatJSONL,
			Filters: &filter.Criteria{TypeGlob: "line"},
			AfterID: "a",
		}
		require.NoError(t, ListElements(ctx, m, "sketch", opts, &buf))
		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 1)
		assert.Contains(t, lines[0], `"id":"c"`)
	})

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, ListElements(ctx, m, "sketch", ListOptions{}, &buf))
		assert.Contains(t, buf.String(), "3 elements found")
	})

	t.Run("unknown format", func(t *testing.T) {
		err := ListElements(ctx, m, "sketch", ListOptions{Format: "xml"}, &bytes.Buffer{})
		assert.Error(t, err)
	})

	t.Run("listing never writes", func(t *testing.T) {
		assert.Equal(t, 0, m.Calls("UpdateBoard"))
		assert.Equal(t, 0, m.Calls("UpdateBoardData"))
	})
}

func TestGetElement(t *testing.T) {
	ctx := context.Background()
	m := seededAdapter(t)

	var buf bytes.Buffer
	require.NoError(t, GetElement(ctx, m, "sketch", "b", &buf))
	assert.Contains(t, buf.String(), `"type": "doc"`)

	err := GetElement(ctx, m, "sketch", "zzz", &buf)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "element 'zzz' not found on board 'sketch'")
}

func TestGetElementByPrefix(t *testing.T) {
	ctx := context.Background()
	m := board.NewMemoryAdapter()
	for _, id := range []string{"line-0001", "line-0002", "rect-0001"} {
		require.NoError(t, m.AddDataToBoard(ctx, "sketch", id, &board.Element{Time: 1}))
	}

	var buf bytes.Buffer
	require.NoError(t, GetElement(ctx, m, "sketch", "rect", &buf))
	assert.Contains(t, buf.String(), `"id": "rect-0001"`)

	err := GetElement(ctx, m, "sketch", "line", &buf)
	require.Error(t, err)
	assert.True(t, resolver.IsAmbiguousError(err))
	assert.False(t, IsNotFound(err))
}
