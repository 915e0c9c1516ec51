package board

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadUnknownBoard(t *testing.T) {
	ctx := context.Background()
	s, err := Load(ctx, "fresh", NewMemoryAdapter())
	require.NoError(t, err)
	defer s.Close(ctx)

	assert.Equal(t, "fresh", s.Name())
	assert.Equal(t, 0, s.Len())
}

func TestLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryAdapter()
	clock := newTestClock()

	s := New("b", m, WithClock(clock.Now), WithPersistMode(PersistSync))
	line := &Element{Size: Int(3), X: Float(10.5), Y: Float(20), Opacity: Float(0.5)}
	require.NoError(t, line.SetPayload(FieldType, "line"))
	require.NoError(t, line.SetPayload("color", "#00ff00"))
	require.NoError(t, s.Set(ctx, "l1", line))
	_, err := s.AddChild(ctx, "l1", &Element{X: Float(1), Y: Float(2)})
	require.NoError(t, err)
	clock.Advance(time.Millisecond)
	require.NoError(t, s.Set(ctx, "r1", &Element{X: Float(5), Y: Float(5)}))
	require.NoError(t, s.Save(ctx))

	// Post-snapshot writes live only in the log.
	clock.Advance(time.Millisecond)
	require.NoError(t, s.Update(ctx, "r1", &Element{X: Float(6)}, false))
	clock.Advance(time.Millisecond)
	require.NoError(t, s.Set(ctx, "t1", &Element{Size: Int(9)}))
	require.NoError(t, s.Close(ctx))

	loaded, err := Load(ctx, "b", m)
	require.NoError(t, err)
	defer loaded.Close(ctx)

	want := s.GetAll("")
	got := loaded.GetAll("")
	require.Len(t, got, 3)
	assert.Equal(t, want, got)
	assert.Equal(t, 2, loaded.Changes(), "unsaved log rows count as changes")
}

func TestLoadOrdersByTime(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryAdapter()
	require.NoError(t, m.UpdateBoard(ctx, "b", map[string]*Element{
		"late":  {Time: 30},
		"early": {Time: 10},
	}))
	require.NoError(t, m.AddDataToBoard(ctx, "b", "mid", &Element{Time: 20}))
	require.NoError(t, m.AddDataToBoard(ctx, "b", "also-mid", &Element{Time: 20}))

	s, err := Load(ctx, "b", m)
	require.NoError(t, err)
	defer s.Close(ctx)

	var ids []string
	for _, e := range s.GetAll("") {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"early", "also-mid", "mid", "late"}, ids)
}

func TestLoadLogOverridesSnapshot(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryAdapter()
	require.NoError(t, m.UpdateBoard(ctx, "b", map[string]*Element{"a": {Size: Int(2)}}))
	require.NoError(t, m.UpdateBoardData(ctx, "b", "a", &Element{Size: Int(500)}))

	s, err := Load(ctx, "b", m)
	require.NoError(t, err)
	defer s.Close(ctx)

	got, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, MaxSize, *got.Size, "loaded elements are validated")
}

func TestLoadKeepsSaveDate(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryAdapter()
	savedAt := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return savedAt }
	require.NoError(t, m.UpdateBoard(ctx, "b", nil))

	s, err := Load(ctx, "b", m)
	require.NoError(t, err)
	defer s.Close(ctx)
	assert.True(t, savedAt.Equal(s.LastSaveDate()))
}

func TestLoadAdapterError(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryAdapter()
	boom := errors.New("unreachable")
	m.FailNext(boom, 1)

	_, err := Load(ctx, "b", m)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.False(t, IsNotFound(err))
}
