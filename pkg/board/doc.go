// Package board provides the authoritative state store for shared drawing
// boards and the persistence adapters that back it.
//
// # Overview
//
// A board is a named drawing surface holding elements: lines, images and other
// shapes. Many clients mutate the same board concurrently. Some elements are
// built incrementally, so a line is created once and then extended point by
// point with child elements instead of being re-sent in full.
//
// The Store is the single owner of one board's in-memory element mapping. It
// sanitizes every write through Limits.Validate, applies it to memory, and
// hands a copy to a per-board background persister that writes through an
// Adapter. The in-memory mapping is the source of truth for the live session;
// the adapter is the source of truth across restarts.
//
// # Sanitization
//
// Incoming values are never rejected. Out-of-range or malformed structural
// fields are coerced to the nearest valid value:
//
//   - size is an integer in [1, 50]
//   - x and y are clamped to the board extents and rounded to one decimal
//   - opacity is clamped to [0.1, 1] and removed when it equals 1
//   - _children is truncated to MaxChildren and each child is validated
//
// # Persistence
//
// Adapters store a snapshot of the board plus an incremental per-element log.
// Load rebuilds a Store by overlaying the log on the snapshot. Save writes a
// fresh snapshot and discards the log.
//
// Three adapters are provided: MemoryAdapter (tests and single-process use),
// RedisAdapter (this package) and the SQLite adapter in internal/sqlstore.
//
// # Redis Schema
//
// All Redis keys and channels are namespaced so that several deployments can
// share one Redis server:
//
//	Board names:   chalk:{namespace}:boards
//	Board record:  chalk:{namespace}:board:{name}
//	Snapshot:      chalk:{namespace}:board:{name}:snapshot
//	Element log:   chalk:{namespace}:board:{name}:data
//	Operations:    chalk:{namespace}:ops
//
// # Usage Example
//
//	adapter, err := board.NewRedisAdapter(&redis.Options{Addr: "localhost:6379"}, "default")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer adapter.Close()
//
//	store, err := board.Load(ctx, "team-sketch", adapter)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer store.Close(ctx)
//
//	line := &board.Element{Size: board.Int(4)}
//	store.Set(ctx, "l1", line)
//	store.AddChild(ctx, "l1", &board.Element{X: board.Float(10), Y: board.Float(12)})
package board
