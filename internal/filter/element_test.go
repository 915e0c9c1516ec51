package filter

import (
	"testing"

	"github.com/dyluth/chalk/pkg/board"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func element(t *testing.T, id, typ string, ms int64, children int) *board.Element {
	t.Helper()
	e := &board.Element{ID: id, Time: ms}
	if typ != "" {
		require.NoError(t, e.SetPayload(board.FieldType, typ))
	}
	for i := 0; i < children; i++ {
		e.Children = append(e.Children, &board.Element{})
	}
	return e
}

func TestCriteriaMatches(t *testing.T) {
	line := element(t, "l1", "line", 1000, 3)
	doc := element(t, "d1", "doc", 2000, 0)

	tests := []struct {
		name     string
		criteria Criteria
		line     bool
		doc      bool
	}{
		{"empty matches all", Criteria{}, true, true},
		{"since", Criteria{SinceTimestampMs: 1500}, false, true},
		{"until", Criteria{UntilTimestampMs: 1500}, true, false},
		{"exact type", Criteria{TypeGlob: "doc"}, false, true},
		{"glob type", Criteria{TypeGlob: "l*"}, true, false},
		{"min children", Criteria{MinChildren: 2}, true, false},
		{"combined", Criteria{SinceTimestampMs: 500, TypeGlob: "line", MinChildren: 3}, true, false},
		{"bad glob matches nothing", Criteria{TypeGlob: "["}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.line, tt.criteria.Matches(line))
			assert.Equal(t, tt.doc, tt.criteria.Matches(doc))
		})
	}
}

func TestCriteriaApply(t *testing.T) {
	elements := []*board.Element{
		element(t, "a", "line", 1, 0),
		element(t, "b", "doc", 2, 0),
		element(t, "c", "line", 3, 0),
	}

	c := Criteria{TypeGlob: "line"}
	got := c.Apply(elements)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "c", got[1].ID)

	none := Criteria{}
	assert.False(t, none.HasFilters())
	assert.Len(t, none.Apply(elements), 3)
}
