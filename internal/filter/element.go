package filter

import (
	"path/filepath"

	"github.com/dyluth/chalk/pkg/board"
)

// Criteria defines filtering criteria for board elements.
// All filters are ANDed together - an element must match ALL criteria to pass.
type Criteria struct {
	SinceTimestampMs int64  // element time lower bound, 0 = no filter
	UntilTimestampMs int64  // element time upper bound, 0 = no filter
	TypeGlob         string // glob pattern for the element type, empty = no filter
	MinChildren      int    // minimum number of children, 0 = no filter
}

// Matches returns true if the element matches all filter criteria.
// Empty/zero criteria values are treated as "match all" for that criterion.
func (c *Criteria) Matches(e *board.Element) bool {
	if c.SinceTimestampMs > 0 && e.Time < c.SinceTimestampMs {
		return false
	}
	if c.UntilTimestampMs > 0 && e.Time > c.UntilTimestampMs {
		return false
	}

	if c.TypeGlob != "" {
		matched, err := filepath.Match(c.TypeGlob, e.Type())
		if err != nil || !matched {
			return false
		}
	}

	if c.MinChildren > 0 && len(e.Children) < c.MinChildren {
		return false
	}

	return true
}

// HasFilters returns true if any filters are active.
func (c *Criteria) HasFilters() bool {
	return c.SinceTimestampMs > 0 ||
		c.UntilTimestampMs > 0 ||
		c.TypeGlob != "" ||
		c.MinChildren > 0
}

// Apply returns the elements that match, preserving order.
func (c *Criteria) Apply(elements []*board.Element) []*board.Element {
	if !c.HasFilters() {
		return elements
	}
	out := make([]*board.Element, 0, len(elements))
	for _, e := range elements {
		if c.Matches(e) {
			out = append(out, e)
		}
	}
	return out
}
