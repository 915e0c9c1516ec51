package board

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSize(t *testing.T) {
	l := DefaultLimits()
	tests := []struct {
		in, want int
	}{
		{0, 1},
		{-4, 1},
		{1, 1},
		{25, 25},
		{50, 50},
		{200, 50},
	}
	for _, tt := range tests {
		e := &Element{Size: Int(tt.in)}
		l.Validate(e)
		assert.Equal(t, tt.want, *e.Size, "size %d", tt.in)
	}

	e := &Element{}
	l.Validate(e)
	assert.Nil(t, e.Size, "absent size stays absent")
}

func TestValidateCoordinates(t *testing.T) {
	l := Limits{MaxBoardSizeX: 1000, MaxBoardSizeY: 500}

	t.Run("clamp and round", func(t *testing.T) {
		e := &Element{X: Float(-5), Y: Float(99999)}
		l.Validate(e)
		assert.Equal(t, 0.0, *e.X)
		assert.Equal(t, 500.0, *e.Y)

		e = &Element{X: Float(12.345), Y: Float(12.35)}
		l.Validate(e)
		assert.Equal(t, 12.3, *e.X)
		assert.Equal(t, 12.4, *e.Y)
	})

	t.Run("one present implies both", func(t *testing.T) {
		e := &Element{X: Float(10)}
		l.Validate(e)
		require.NotNil(t, e.Y)
		assert.Equal(t, 0.0, *e.Y)
	})

	t.Run("neither present stays absent", func(t *testing.T) {
		e := &Element{}
		l.Validate(e)
		assert.Nil(t, e.X)
		assert.Nil(t, e.Y)
	})

	t.Run("unparseable becomes zero", func(t *testing.T) {
		e := &Element{X: Float(math.NaN()), Y: Float(math.Inf(1))}
		l.Validate(e)
		assert.Equal(t, 0.0, *e.X)
		assert.Equal(t, 500.0, *e.Y)
	})

	t.Run("rounding never exceeds a fractional max", func(t *testing.T) {
		fl := Limits{MaxBoardSizeX: 10.06, MaxBoardSizeY: 10}
		e := &Element{X: Float(10.06), Y: Float(1)}
		fl.Validate(e)
		assert.LessOrEqual(t, *e.X, 10.06)
		assert.Equal(t, 10.0, *e.X)
	})
}

func TestValidateOpacity(t *testing.T) {
	l := DefaultLimits()
	tests := []struct {
		name string
		in   float64
		want *float64
	}{
		{"in range", 0.5, Float(0.5)},
		{"below min", 0.01, Float(0.1)},
		{"negative", -3, Float(0.1)},
		{"exactly one removed", 1, nil},
		{"above one removed", 7, nil},
		{"NaN removed", math.NaN(), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &Element{Opacity: Float(tt.in)}
			l.Validate(e)
			assert.Equal(t, tt.want, e.Opacity)
		})
	}
}

func TestValidateChildren(t *testing.T) {
	l := Limits{MaxChildren: 3, MaxBoardSizeX: 100, MaxBoardSizeY: 100}

	t.Run("truncates keeping the prefix", func(t *testing.T) {
		e := &Element{}
		for i := 0; i < 5; i++ {
			e.Children = append(e.Children, &Element{X: Float(float64(i)), Y: Float(0)})
		}
		l.Validate(e)
		require.Len(t, e.Children, 3)
		assert.Equal(t, 0.0, *e.Children[0].X)
		assert.Equal(t, 2.0, *e.Children[2].X)
	})

	t.Run("validates children recursively", func(t *testing.T) {
		e := &Element{Children: []*Element{{X: Float(500), Size: Int(0)}, nil}}
		l.Validate(e)
		require.Len(t, e.Children, 1)
		assert.Equal(t, 100.0, *e.Children[0].X)
		assert.Equal(t, 0.0, *e.Children[0].Y)
		assert.Equal(t, 1, *e.Children[0].Size)
	})

	t.Run("present empty stays present", func(t *testing.T) {
		e := &Element{Children: []*Element{}}
		l.Validate(e)
		assert.NotNil(t, e.Children)
	})
}

func TestValidateExampleLine(t *testing.T) {
	e := &Element{}
	require.NoError(t, json.Unmarshal([]byte(`{"id":"l1","size":200,"x":-5,"y":99999}`), e))

	DefaultLimits().Validate(e)

	assert.Equal(t, 50, *e.Size)
	assert.Equal(t, 0.0, *e.X)
	assert.Equal(t, float64(DefaultMaxBoardSize), *e.Y)
}

func TestValidateIdempotent(t *testing.T) {
	l := Limits{MaxChildren: 2, MaxBoardSizeX: 300.25, MaxBoardSizeY: 300}
	inputs := []string{
		`{"size":"0","x":"12.35","opacity":"1"}`,
		`{"size":99,"x":1e9,"y":-1,"opacity":0.05}`,
		`{"x":"junk","_children":[{"x":301},{"size":-1},{"y":7}]}`,
		`{"opacity":"abc","_children":"nope"}`,
		`{"x":300.25,"y":150.05,"opacity":0.35}`,
	}

	for _, raw := range inputs {
		e := &Element{}
		require.NoError(t, json.Unmarshal([]byte(raw), e))

		l.Validate(e)
		once, err := json.Marshal(e)
		require.NoError(t, err)

		l.Validate(e)
		twice, err := json.Marshal(e)
		require.NoError(t, err)

		assert.Equal(t, string(once), string(twice), raw)
	}
}

func TestLimitsWithDefaults(t *testing.T) {
	l := Limits{MaxChildren: 7}.withDefaults()
	assert.Equal(t, 7, l.MaxChildren)
	assert.Equal(t, DefaultMaxItemCount, l.MaxItemCount)
	assert.Equal(t, float64(DefaultMaxBoardSize), l.MaxBoardSizeX)
	assert.Equal(t, float64(DefaultMaxBoardSize), l.MaxBoardSizeY)
}
