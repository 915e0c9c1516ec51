// Package watch follows board activity: it streams client operations as they
// are published and polls the backend for elements to become durable.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dyluth/chalk/pkg/board"
)

// OutputFormat specifies how streamed operations are written.
type OutputFormat string

const (
	// OutputFormatDefault writes one human-readable line per operation
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSON writes each envelope as line-delimited JSON
	OutputFormatJSON OutputFormat = "json"
)

// StreamOperations writes every operation delivered on sub to w until ctx is
// cancelled or the subscription ends. When boardName is not empty, operations
// for other boards are skipped. Malformed messages are reported inline.
func StreamOperations(ctx context.Context, sub *board.OperationSubscription, boardName string, format OutputFormat, w io.Writer) error {
	events := sub.Events()
	errs := sub.Errors()

	for {
		select {
		case <-ctx.Done():
			return nil

		case env, ok := <-events:
			if !ok {
				return nil
			}
			if boardName != "" && env.Board != boardName {
				continue
			}
			if err := writeEnvelope(w, env, format, time.Now()); err != nil {
				return err
			}

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if format == OutputFormatDefault {
				fmt.Fprintf(w, "⚠️  %v\n", err)
			}
		}
	}
}

func writeEnvelope(w io.Writer, env *board.Envelope, format OutputFormat, now time.Time) error {
	if format == OutputFormatJSON {
		data, err := json.Marshal(env)
		if err != nil {
			return fmt.Errorf("failed to marshal operation: %w", err)
		}
		if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
			return fmt.Errorf("failed to write operation: %w", err)
		}
		return nil
	}

	_, err := fmt.Fprintf(w, "[%s] %s\n", now.Format("15:04:05"), FormatOperation(env))
	return err
}

// FormatOperation renders an envelope as a single human-readable line.
func FormatOperation(env *board.Envelope) string {
	op, err := board.ParseOperation(env.Op)
	if err != nil {
		return fmt.Sprintf("⚠️  %s: unreadable operation", env.Board)
	}

	switch op.Kind() {
	case board.KindClear:
		return fmt.Sprintf("🧹 %s: cleared", env.Board)
	case board.KindDelete:
		return fmt.Sprintf("🗑️  %s: deleted %s", env.Board, op.ID)
	case board.KindUpdate:
		return fmt.Sprintf("✏️  %s: updated %s", env.Board, op.ID)
	case board.KindChild:
		return fmt.Sprintf("➕ %s: extended %s", env.Board, op.Parent)
	default:
		return fmt.Sprintf("🖍️  %s: created %s %s", env.Board, op.Type, op.ID)
	}
}

// PollForElement polls the adapter until the element id of boardName is
// persisted, in the element log or in the snapshot. Returns the element or an
// error if timeout occurs. Polls every 200ms for the specified timeout duration.
func PollForElement(ctx context.Context, adapter board.Adapter, boardName, id string, timeout time.Duration) (*board.Element, error) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	timeoutCh := time.After(timeout)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case <-timeoutCh:
			return nil, fmt.Errorf("timeout waiting for element '%s' after %v", id, timeout)

		case <-ticker.C:
			e, err := findElement(ctx, adapter, boardName, id)
			if err != nil {
				return nil, fmt.Errorf("failed to query for element: %w", err)
			}
			if e != nil {
				return e, nil
			}
		}
	}
}

func findElement(ctx context.Context, adapter board.Adapter, boardName, id string) (*board.Element, error) {
	records, err := adapter.GetBoardData(ctx, boardName, "")
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if r.ID == id {
			return r.Data, nil
		}
	}

	snapshot, err := adapter.GetBoard(ctx, boardName)
	if err != nil {
		if board.IsNotFound(err) {
			// Not written yet, continue polling
			return nil, nil
		}
		return nil, err
	}
	return snapshot.Elements[id], nil
}
