package board

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Adapter.GetBoard when no board record exists.
var ErrNotFound = errors.New("board not found")

// IsNotFound reports whether err is, or wraps, ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Snapshot is the last full copy of a board written with UpdateBoard.
// A board that has only ever been written incrementally has a snapshot with
// no elements.
type Snapshot struct {
	Name      string
	Elements  map[string]*Element
	CreatedAt time.Time
	SavedAt   time.Time // zero when UpdateBoard was never called
}

// Record is one row of a board's incremental element log.
type Record struct {
	ID   string
	Data *Element
}

// Adapter is the durable storage boundary of a board.
//
// Implementations must be safe for concurrent use. Every data write creates
// the board record if it does not exist yet, so GetBoard finds any board that
// has been written to. Returned elements must not alias adapter state.
type Adapter interface {
	// GetBoard returns the board snapshot, or ErrNotFound.
	GetBoard(ctx context.Context, name string) (*Snapshot, error)

	// GetBoardData returns the incremental log, optionally restricted to
	// elements whose payload "type" equals typeFilter. Empty means all.
	GetBoardData(ctx context.Context, name, typeFilter string) ([]Record, error)

	// AddDataToBoard upserts a newly created element into the log.
	AddDataToBoard(ctx context.Context, name, id string, data *Element) error

	// UpdateBoardData upserts a modified element into the log.
	UpdateBoardData(ctx context.Context, name, id string, data *Element) error

	// UpdateBoard replaces the snapshot with elements and discards the log.
	UpdateBoard(ctx context.Context, name string, elements map[string]*Element) error

	// DeleteBoardData removes an element from both the log and the snapshot.
	DeleteBoardData(ctx context.Context, name, id string) error

	// DeleteAllBoardData removes every row stored for the board.
	DeleteAllBoardData(ctx context.Context, name string) error
}

// BoardLister is implemented by adapters that can enumerate stored boards.
type BoardLister interface {
	ListBoards(ctx context.Context) ([]string, error)
}

// Pinger is implemented by adapters with a reachable backend.
type Pinger interface {
	Ping(ctx context.Context) error
}
