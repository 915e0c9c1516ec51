package watch

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dyluth/chalk/internal/testutil"
	"github.com/dyluth/chalk/pkg/board"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer is a bytes.Buffer safe for one writer and one reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestFormatOperation(t *testing.T) {
	tests := []struct {
		name     string
		op       string
		expected string
	}{
		{"create", `{"type":"line","id":"l1"}`, "🖍️  lobby: created line l1"},
		{"update", `{"type":"update","id":"l1","size":3}`, "✏️  lobby: updated l1"},
		{"child", `{"type":"child","parent":"l1","x":1}`, "➕ lobby: extended l1"},
		{"delete", `{"type":"delete","id":"l1"}`, "🗑️  lobby: deleted l1"},
		{"clear", `{"type":"clear"}`, "🧹 lobby: cleared"},
		{"unreadable", `[1]`, "⚠️  lobby: unreadable operation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := &board.Envelope{Board: "lobby", Op: json.RawMessage(tt.op)}
			assert.Equal(t, tt.expected, FormatOperation(env))
		})
	}
}

func TestStreamOperations(t *testing.T) {
	for _, format := range []OutputFormat{OutputFormatDefault, OutputFormatJSON} {
		t.Run(string(format), func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			adapter, _ := testutil.NewRedisAdapter(t)
			sub, err := adapter.SubscribeOperations(ctx)
			require.NoError(t, err)
			defer sub.Close()

			out := &syncBuffer{}
			done := make(chan error, 1)
			go func() { done <- StreamOperations(ctx, sub, "lobby", format, out) }()

			require.NoError(t, adapter.PublishOperation(ctx, "other", json.RawMessage(`{"type":"line","id":"x1"}`)))
			require.NoError(t, adapter.PublishOperation(ctx, "lobby", json.RawMessage(`{"type":"line","id":"l1"}`)))

			require.Eventually(t, func() bool {
				return strings.Contains(out.String(), "l1")
			}, 2*time.Second, 10*time.Millisecond)

			cancel()
			require.NoError(t, <-done)

			assert.NotContains(t, out.String(), "x1")
			if format == OutputFormatJSON {
				var env board.Envelope
				require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out.String())), &env))
				assert.Equal(t, "lobby", env.Board)
			} else {
				assert.Contains(t, out.String(), "lobby: created line l1")
			}
		})
	}
}

func TestPollForElement(t *testing.T) {
	ctx := context.Background()
	adapter, _ := testutil.NewRedisAdapter(t)

	t.Run("returns element when found immediately", func(t *testing.T) {
		require.NoError(t, adapter.AddDataToBoard(ctx, "b1", "l1", testutil.Line("l1", 10)))

		e, err := PollForElement(ctx, adapter, "b1", "l1", 2*time.Second)
		require.NoError(t, err)
		assert.Equal(t, "line", e.Type())
	})

	t.Run("returns element when found after delay", func(t *testing.T) {
		go func() {
			time.Sleep(300 * time.Millisecond)
			adapter.AddDataToBoard(ctx, "b2", "l1", testutil.Line("l1", 10))
		}()

		e, err := PollForElement(ctx, adapter, "b2", "l1", 2*time.Second)
		require.NoError(t, err)
		require.NotNil(t, e)
	})

	t.Run("finds snapshotted elements", func(t *testing.T) {
		require.NoError(t, adapter.UpdateBoard(ctx, "b3", map[string]*board.Element{"l1": testutil.Line("l1", 10)}))

		e, err := PollForElement(ctx, adapter, "b3", "l1", 2*time.Second)
		require.NoError(t, err)
		require.NotNil(t, e)
	})

	t.Run("times out if element never appears", func(t *testing.T) {
		_, err := PollForElement(ctx, adapter, "b4", "l1", 500*time.Millisecond)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "timeout waiting for element")
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		go func() {
			time.Sleep(100 * time.Millisecond)
			cancel()
		}()

		_, err := PollForElement(cctx, adapter, "b5", "l1", 5*time.Second)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
