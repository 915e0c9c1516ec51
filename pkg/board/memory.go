package board

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryAdapter is an in-process Adapter. Elements are stored JSON-encoded so
// that callers never share memory with the adapter. It also records call
// counts and can inject failures, which makes it the test double for Store.
type MemoryAdapter struct {
	mu       sync.Mutex
	boards   map[string]*memoryBoard
	calls    map[string]int
	failErr  error
	failLeft int
	now      func() time.Time
}

type memoryBoard struct {
	createdAt time.Time
	savedAt   time.Time
	snapshot  map[string][]byte
	data      map[string][]byte
}

// NewMemoryAdapter creates an empty in-memory adapter.
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		boards: make(map[string]*memoryBoard),
		calls:  make(map[string]int),
		now:    time.Now,
	}
}

// FailNext makes the next times adapter calls return err. A negative times
// fails every call until FailNext(nil, 0) is called.
func (m *MemoryAdapter) FailNext(err error, times int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
	m.failLeft = times
}

// Calls returns how many times the named method has been called, failed
// calls included.
func (m *MemoryAdapter) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

// Close implements io.Closer. It is a no-op.
func (m *MemoryAdapter) Close() error {
	return nil
}

// Ping implements Pinger.
func (m *MemoryAdapter) Ping(ctx context.Context) error {
	return ctx.Err()
}

// enter records a call and returns any injected failure. Caller holds m.mu.
func (m *MemoryAdapter) enter(ctx context.Context, method string) error {
	m.calls[method]++
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.failErr != nil && m.failLeft != 0 {
		if m.failLeft > 0 {
			m.failLeft--
		}
		return fmt.Errorf("%s: %w", method, m.failErr)
	}
	return nil
}

// ensure returns the board record, creating it. Caller holds m.mu.
func (m *MemoryAdapter) ensure(name string) *memoryBoard {
	b, ok := m.boards[name]
	if !ok {
		b = &memoryBoard{
			createdAt: m.now(),
			snapshot:  make(map[string][]byte),
			data:      make(map[string][]byte),
		}
		m.boards[name] = b
	}
	return b
}

// GetBoard implements Adapter.
func (m *MemoryAdapter) GetBoard(ctx context.Context, name string) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, "GetBoard"); err != nil {
		return nil, err
	}

	b, ok := m.boards[name]
	if !ok {
		return nil, fmt.Errorf("board %q: %w", name, ErrNotFound)
	}

	elements := make(map[string]*Element, len(b.snapshot))
	for id, raw := range b.snapshot {
		e, err := decodeStored(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decode snapshot element %q: %w", id, err)
		}
		elements[id] = e
	}

	return &Snapshot{
		Name:      name,
		Elements:  elements,
		CreatedAt: b.createdAt,
		SavedAt:   b.savedAt,
	}, nil
}

// GetBoardData implements Adapter. Records are ordered by id.
func (m *MemoryAdapter) GetBoardData(ctx context.Context, name, typeFilter string) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, "GetBoardData"); err != nil {
		return nil, err
	}

	b, ok := m.boards[name]
	if !ok {
		return []Record{}, nil
	}

	records := make([]Record, 0, len(b.data))
	for id, raw := range b.data {
		e, err := decodeStored(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decode element %q: %w", id, err)
		}
		if typeFilter != "" && e.Type() != typeFilter {
			continue
		}
		records = append(records, Record{ID: id, Data: e})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

// AddDataToBoard implements Adapter.
func (m *MemoryAdapter) AddDataToBoard(ctx context.Context, name, id string, data *Element) error {
	return m.putData(ctx, "AddDataToBoard", name, id, data)
}

// UpdateBoardData implements Adapter.
func (m *MemoryAdapter) UpdateBoardData(ctx context.Context, name, id string, data *Element) error {
	return m.putData(ctx, "UpdateBoardData", name, id, data)
}

func (m *MemoryAdapter) putData(ctx context.Context, method, name, id string, data *Element) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode element %q: %w", id, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, method); err != nil {
		return err
	}

	m.ensure(name).data[id] = raw
	return nil
}

// UpdateBoard implements Adapter.
func (m *MemoryAdapter) UpdateBoard(ctx context.Context, name string, elements map[string]*Element) error {
	encoded := make(map[string][]byte, len(elements))
	for id, e := range elements {
		raw, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to encode element %q: %w", id, err)
		}
		encoded[id] = raw
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, "UpdateBoard"); err != nil {
		return err
	}

	b := m.ensure(name)
	b.snapshot = encoded
	b.data = make(map[string][]byte)
	b.savedAt = m.now()
	return nil
}

// DeleteBoardData implements Adapter.
func (m *MemoryAdapter) DeleteBoardData(ctx context.Context, name, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, "DeleteBoardData"); err != nil {
		return err
	}

	if b, ok := m.boards[name]; ok {
		delete(b.data, id)
		delete(b.snapshot, id)
	}
	return nil
}

// DeleteAllBoardData implements Adapter.
func (m *MemoryAdapter) DeleteAllBoardData(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, "DeleteAllBoardData"); err != nil {
		return err
	}

	delete(m.boards, name)
	return nil
}

// ListBoards implements BoardLister.
func (m *MemoryAdapter) ListBoards(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, "ListBoards"); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(m.boards))
	for name := range m.boards {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func decodeStored(raw []byte) (*Element, error) {
	e := &Element{}
	if err := json.Unmarshal(raw, e); err != nil {
		return nil, err
	}
	return e, nil
}
