package board

import "math"

// Policy bounds for structural fields.
const (
	MinSize    = 1
	MaxSize    = 50
	MinOpacity = 0.1
	MaxOpacity = 1.0
)

// Defaults for Limits and the document budget.
const (
	DefaultMaxItemCount    = 32768
	DefaultMaxChildren     = 192
	DefaultMaxBoardSize    = 65536
	DefaultMaxDocumentSize = 1048576
)

// Limits bounds what a single board may hold.
type Limits struct {
	MaxItemCount  int     // live elements per board, enforced by Store.Clean
	MaxChildren   int     // children per element
	MaxBoardSizeX float64 // upper bound for x
	MaxBoardSizeY float64 // upper bound for y
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		MaxItemCount:  DefaultMaxItemCount,
		MaxChildren:   DefaultMaxChildren,
		MaxBoardSizeX: DefaultMaxBoardSize,
		MaxBoardSizeY: DefaultMaxBoardSize,
	}
}

// withDefaults fills zero fields from DefaultLimits.
func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.MaxItemCount == 0 {
		l.MaxItemCount = d.MaxItemCount
	}
	if l.MaxChildren == 0 {
		l.MaxChildren = d.MaxChildren
	}
	if l.MaxBoardSizeX == 0 {
		l.MaxBoardSizeX = d.MaxBoardSizeX
	}
	if l.MaxBoardSizeY == 0 {
		l.MaxBoardSizeY = d.MaxBoardSizeY
	}
	return l
}

// Validate coerces e in place so that it follows the board policy. It never
// fails and is idempotent: validating a valid element changes nothing.
func (l Limits) Validate(e *Element) {
	if e == nil {
		return
	}

	if e.Size != nil {
		size := *e.Size
		if size == 0 {
			size = MinSize
		}
		e.Size = Int(clampInt(size, MinSize, MaxSize))
	}

	if e.X != nil || e.Y != nil {
		e.X = Float(coordinate(e.X, l.MaxBoardSizeX))
		e.Y = Float(coordinate(e.Y, l.MaxBoardSizeY))
	}

	if e.Opacity != nil {
		opacity := math.Min(math.Max(*e.Opacity, MinOpacity), MaxOpacity)
		if math.IsNaN(opacity) || opacity == MaxOpacity {
			e.Opacity = nil
		} else {
			e.Opacity = Float(opacity)
		}
	}

	if e.Children != nil {
		children := e.Children[:0]
		for _, child := range e.Children {
			if child != nil {
				children = append(children, child)
			}
		}
		if l.MaxChildren >= 0 && len(children) > l.MaxChildren {
			children = children[:l.MaxChildren]
		}
		e.Children = children
		for _, child := range e.Children {
			l.Validate(child)
		}
	}
}

// coordinate parses, clamps to [0, max] and rounds to one decimal.
func coordinate(v *float64, max float64) float64 {
	if v == nil || math.IsNaN(*v) {
		return 0
	}
	c := math.Min(math.Max(*v, 0), max)
	c = math.Floor(c*10+0.5) / 10
	if c > max {
		c = math.Floor(max*10) / 10
	}
	return c
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
