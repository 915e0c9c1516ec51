package boardview

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dyluth/chalk/pkg/board"
)

// FormatTable writes elements as a formatted table to the provided writer.
// The table includes columns: ID, TYPE, SIZE, POSITION, CHILDREN, AGE and
// COLOR. Returns the number of elements formatted.
func FormatTable(w io.Writer, elements []*board.Element, boardName string, now time.Time) int {
	if len(elements) == 0 {
		fmt.Fprintf(w, "No elements found on board '%s'\n", boardName)
		return 0
	}

	fmt.Fprintf(w, "Elements on board '%s':\n\n", boardName)

	fmt.Fprintf(w, "%-12s %-8s %-4s %-18s %-8s %-8s %s\n",
		"ID", "TYPE", "SIZE", "POSITION", "CHILDREN", "AGE", "COLOR")
	fmt.Fprintf(w, "%-12s %-8s %-4s %-18s %-8s %-8s %s\n",
		"------------", "--------", "----", "------------------", "--------", "--------", "-------")

	for _, e := range elements {
		fmt.Fprintf(w, "%-12s %-8s %-4s %-18s %-8s %-8s %s\n",
			formatID(e.ID),
			formatType(e.Type()),
			formatSize(e.Size),
			formatPosition(e.X, e.Y),
			formatChildren(e.Children),
			formatAge(e.Time, now),
			orDash(e.PayloadString("color")),
		)
	}

	countMsg := "element"
	if len(elements) != 1 {
		countMsg = "elements"
	}
	fmt.Fprintf(w, "\n%d %s found\n", len(elements), countMsg)

	return len(elements)
}

// FormatJSONL writes elements as line-delimited JSON (JSONL) to the provided writer.
// Each element is written as a single JSON object on its own line, ready for jq
// or for replaying through chalk send.
func FormatJSONL(w io.Writer, elements []*board.Element) error {
	for _, e := range elements {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to marshal element to JSON: %w", err)
		}

		if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}

	return nil
}

// FormatSingleJSON writes a single element as pretty-printed JSON.
func FormatSingleJSON(w io.Writer, e *board.Element) error {
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal element to JSON: %w", err)
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}
	fmt.Fprintln(w)

	return nil
}

// formatID truncates long ids for compact display.
func formatID(id string) string {
	if len(id) > 12 {
		return id[:9] + "..."
	}
	return id
}

func formatType(typeName string) string {
	if typeName == "" {
		return "-"
	}
	if len(typeName) > 8 {
		return typeName[:5] + "..."
	}
	return typeName
}

func formatSize(size *int) string {
	if size == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *size)
}

func formatPosition(x, y *float64) string {
	if x == nil || y == nil {
		return "-"
	}
	return fmt.Sprintf("(%g, %g)", *x, *y)
}

func formatChildren(children []*board.Element) string {
	if children == nil {
		return "-"
	}
	return fmt.Sprintf("%d", len(children))
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// formatAge formats an element time (Unix milliseconds) relative to now,
// like "2m ago".
func formatAge(timestampMs int64, now time.Time) string {
	if timestampMs == 0 {
		return "-"
	}

	diff := now.Sub(time.UnixMilli(timestampMs))
	if diff < 0 {
		diff = 0
	}

	switch {
	case diff < time.Minute:
		return fmt.Sprintf("%ds ago", int(diff.Seconds()))
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	}
}
