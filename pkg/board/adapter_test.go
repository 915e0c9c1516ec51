package board_test

import (
	"testing"

	"github.com/dyluth/chalk/internal/testutil"
	"github.com/dyluth/chalk/pkg/board"
)

func TestMemoryAdapterContract(t *testing.T) {
	testutil.RunAdapterTests(t, func(t *testing.T) board.Adapter {
		return board.NewMemoryAdapter()
	})
}

func TestRedisAdapterContract(t *testing.T) {
	testutil.RunAdapterTests(t, func(t *testing.T) board.Adapter {
		adapter, _ := testutil.NewRedisAdapter(t)
		return adapter
	})
}
