// Package sqlstore persists boards in a SQLite database file using the pure
// Go modernc.org/sqlite driver.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dyluth/chalk/pkg/board"
	_ "modernc.org/sqlite"
)

// Adapter implements board.Adapter on SQLite. Snapshot rows and log rows live
// in separate tables; the log carries the element type so that type filters
// run in SQL.
type Adapter struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path and initialises the
// schema. Use ":memory:" for a private in-memory database.
func Open(ctx context.Context, path string) (*Adapter, error) {
	dsn := "file:" + path
	if path == ":memory:" {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// SQLite serialises writers; one connection also keeps ":memory:" shared.
	db.SetMaxOpenConns(1)

	a := &Adapter{db: db, now: time.Now}
	if err := a.init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

func (a *Adapter) init(ctx context.Context) error {
	stmts := []string{
		`PRAGMA foreign_keys=ON;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS boards (
			name TEXT PRIMARY KEY,
			created_at_ms INTEGER NOT NULL,
			saved_at_ms INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS snapshot_elements (
			board TEXT NOT NULL REFERENCES boards(name) ON DELETE CASCADE,
			id TEXT NOT NULL,
			data_json TEXT NOT NULL,
			PRIMARY KEY (board, id)
		);`,
		`CREATE TABLE IF NOT EXISTS board_data (
			board TEXT NOT NULL REFERENCES boards(name) ON DELETE CASCADE,
			id TEXT NOT NULL,
			type TEXT NOT NULL DEFAULT '',
			data_json TEXT NOT NULL,
			PRIMARY KEY (board, id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_board_data_type ON board_data(board, type);`,
	}
	for _, s := range stmts {
		if _, err := a.db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("failed to initialise sqlite schema: %w", err)
		}
	}
	return nil
}

// Close closes the database. Implements io.Closer.
func (a *Adapter) Close() error {
	return a.db.Close()
}

// Ping implements board.Pinger.
func (a *Adapter) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

// GetBoard implements board.Adapter.
func (a *Adapter) GetBoard(ctx context.Context, name string) (*board.Snapshot, error) {
	var createdMs, savedMs int64
	err := a.db.QueryRowContext(ctx,
		`SELECT created_at_ms, saved_at_ms FROM boards WHERE name=?`, name).
		Scan(&createdMs, &savedMs)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("board %q: %w", name, board.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read board: %w", err)
	}

	rows, err := a.db.QueryContext(ctx,
		`SELECT id, data_json FROM snapshot_elements WHERE board=?`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	defer rows.Close()

	elements := make(map[string]*board.Element)
	for rows.Next() {
		id, e, err := scanElement(rows)
		if err != nil {
			return nil, err
		}
		elements[id] = e
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	snap := &board.Snapshot{
		Name:      name,
		Elements:  elements,
		CreatedAt: time.UnixMilli(createdMs),
	}
	if savedMs > 0 {
		snap.SavedAt = time.UnixMilli(savedMs)
	}
	return snap, nil
}

// GetBoardData implements board.Adapter. Records are ordered by id.
func (a *Adapter) GetBoardData(ctx context.Context, name, typeFilter string) ([]board.Record, error) {
	query := `SELECT id, data_json FROM board_data WHERE board=? ORDER BY id`
	args := []any{name}
	if typeFilter != "" {
		query = `SELECT id, data_json FROM board_data WHERE board=? AND type=? ORDER BY id`
		args = append(args, typeFilter)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read element log: %w", err)
	}
	defer rows.Close()

	records := []board.Record{}
	for rows.Next() {
		id, e, err := scanElement(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, board.Record{ID: id, Data: e})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read element log: %w", err)
	}
	return records, nil
}

// AddDataToBoard implements board.Adapter.
func (a *Adapter) AddDataToBoard(ctx context.Context, name, id string, data *board.Element) error {
	return a.upsertData(ctx, name, id, data)
}

// UpdateBoardData implements board.Adapter.
func (a *Adapter) UpdateBoardData(ctx context.Context, name, id string, data *board.Element) error {
	return a.upsertData(ctx, name, id, data)
}

func (a *Adapter) upsertData(ctx context.Context, name, id string, data *board.Element) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to serialize element: %w", err)
	}

	return a.inTx(ctx, func(tx *sql.Tx) error {
		if err := a.ensureBoard(ctx, tx, name); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO board_data(board, id, type, data_json) VALUES(?,?,?,?)
			 ON CONFLICT(board, id) DO UPDATE SET type=excluded.type, data_json=excluded.data_json`,
			name, id, data.Type(), string(raw))
		if err != nil {
			return fmt.Errorf("failed to write element: %w", err)
		}
		return nil
	})
}

// UpdateBoard implements board.Adapter. The snapshot replacement and log
// removal happen in one transaction.
func (a *Adapter) UpdateBoard(ctx context.Context, name string, elements map[string]*board.Element) error {
	encoded := make(map[string]string, len(elements))
	for id, e := range elements {
		if e == nil {
			continue
		}
		raw, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to serialize element %q: %w", id, err)
		}
		encoded[id] = string(raw)
	}

	return a.inTx(ctx, func(tx *sql.Tx) error {
		if err := a.ensureBoard(ctx, tx, name); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE boards SET saved_at_ms=? WHERE name=?`, a.now().UnixMilli(), name); err != nil {
			return fmt.Errorf("failed to stamp board: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM snapshot_elements WHERE board=?`, name); err != nil {
			return fmt.Errorf("failed to clear snapshot: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM board_data WHERE board=?`, name); err != nil {
			return fmt.Errorf("failed to clear element log: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `INSERT INTO snapshot_elements(board, id, data_json) VALUES(?,?,?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare snapshot insert: %w", err)
		}
		defer stmt.Close()
		for id, raw := range encoded {
			if _, err := stmt.ExecContext(ctx, name, id, raw); err != nil {
				return fmt.Errorf("failed to write snapshot element %q: %w", id, err)
			}
		}
		return nil
	})
}

// DeleteBoardData implements board.Adapter.
func (a *Adapter) DeleteBoardData(ctx context.Context, name, id string) error {
	return a.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM board_data WHERE board=? AND id=?`, name, id); err != nil {
			return fmt.Errorf("failed to delete element: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM snapshot_elements WHERE board=? AND id=?`, name, id); err != nil {
			return fmt.Errorf("failed to delete snapshot element: %w", err)
		}
		return nil
	})
}

// DeleteAllBoardData implements board.Adapter.
func (a *Adapter) DeleteAllBoardData(ctx context.Context, name string) error {
	return a.inTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range []string{
			`DELETE FROM board_data WHERE board=?`,
			`DELETE FROM snapshot_elements WHERE board=?`,
			`DELETE FROM boards WHERE name=?`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, name); err != nil {
				return fmt.Errorf("failed to delete board: %w", err)
			}
		}
		return nil
	})
}

// ListBoards implements board.BoardLister.
func (a *Adapter) ListBoards(ctx context.Context) ([]string, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT name FROM boards ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list boards: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to list boards: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (a *Adapter) ensureBoard(ctx context.Context, tx *sql.Tx, name string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO boards(name, created_at_ms) VALUES(?,?) ON CONFLICT(name) DO NOTHING`,
		name, a.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to create board record: %w", err)
	}
	return nil
}

func (a *Adapter) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func scanElement(rows *sql.Rows) (string, *board.Element, error) {
	var id, raw string
	if err := rows.Scan(&id, &raw); err != nil {
		return "", nil, fmt.Errorf("failed to scan element: %w", err)
	}
	e := &board.Element{}
	if err := json.Unmarshal([]byte(raw), e); err != nil {
		return "", nil, fmt.Errorf("failed to deserialize element %q: %w", id, err)
	}
	e.ID = id
	return id, e, nil
}
