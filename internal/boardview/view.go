package boardview

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dyluth/chalk/internal/filter"
	"github.com/dyluth/chalk/internal/resolver"
	"github.com/dyluth/chalk/pkg/board"
)

// OutputFormat specifies how to format the element list output.
type OutputFormat string

const (
	// OutputFormatDefault uses a table format
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSONL outputs complete elements as line-delimited JSON
	OutputFormatJSONL OutputFormat = "jsonl"
)

// ListOptions controls ListElements.
type ListOptions struct {
	Format  OutputFormat
	Filters *filter.Criteria // nil = no filtering
	AfterID string           // only ids sorting after this one
}

// ListElements loads a board through the adapter and writes its elements in
// draw order. Loading is read-only: nothing is written back.
func ListElements(ctx context.Context, adapter board.Adapter, boardName string, opts ListOptions, w io.Writer) error {
	elements, err := loadElements(ctx, adapter, boardName, opts.AfterID)
	if err != nil {
		return err
	}

	if opts.Filters != nil {
		elements = opts.Filters.Apply(elements)
	}

	switch opts.Format {
	case OutputFormatJSONL:
		return FormatJSONL(w, elements)
	case OutputFormatDefault, "":
		FormatTable(w, elements, boardName, time.Now())
		return nil
	default:
		return fmt.Errorf("unknown output format '%s' (must be 'default' or 'jsonl')", opts.Format)
	}
}

// GetElement writes a single element as pretty-printed JSON. id may be a
// unique prefix of the element id.
func GetElement(ctx context.Context, adapter board.Adapter, boardName, id string, w io.Writer) error {
	elements, err := loadElements(ctx, adapter, boardName, "")
	if err != nil {
		return err
	}

	ids := make([]string, len(elements))
	byID := make(map[string]*board.Element, len(elements))
	for i, e := range elements {
		ids[i] = e.ID
		byID[e.ID] = e
	}

	fullID, err := resolver.ResolveElementID(ids, id)
	if err != nil {
		if resolver.IsNotFoundError(err) {
			return &ElementNotFoundError{Board: boardName, ElementID: id}
		}
		return err
	}

	if err := FormatSingleJSON(w, byID[fullID]); err != nil {
		return fmt.Errorf("failed to format element: %w", err)
	}
	return nil
}

func loadElements(ctx context.Context, adapter board.Adapter, boardName, afterID string) ([]*board.Element, error) {
	store, err := board.Load(ctx, boardName, adapter)
	if err != nil {
		return nil, fmt.Errorf("failed to load board: %w", err)
	}
	defer store.Close(ctx)

	return store.GetAll(afterID), nil
}

// ElementNotFoundError represents a specific "element not found" error.
// This allows callers to distinguish not-found errors from other failures.
type ElementNotFoundError struct {
	Board     string
	ElementID string
}

func (e *ElementNotFoundError) Error() string {
	return fmt.Sprintf("element '%s' not found on board '%s'", e.ElementID, e.Board)
}

// IsNotFound returns true if the error is an ElementNotFoundError.
func IsNotFound(err error) bool {
	_, ok := err.(*ElementNotFoundError)
	return ok
}
