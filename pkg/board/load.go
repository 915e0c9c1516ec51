package board

import (
	"context"
	"fmt"
	"sort"
)

// Load rebuilds a Store from the adapter. The snapshot is read first and the
// incremental log is overlaid on it, so log rows win over snapshot rows with the
// same id. Every element is validated and the draw order is seeded by (time,
// id). A board the adapter has never seen loads empty.
func Load(ctx context.Context, name string, adapter Adapter, opts ...Option) (*Store, error) {
	snapshot, err := adapter.GetBoard(ctx, name)
	if err != nil {
		if IsNotFound(err) {
			return New(name, adapter, opts...), nil
		}
		return nil, fmt.Errorf("failed to read board '%s': %w", name, err)
	}

	records, err := adapter.GetBoardData(ctx, name, "")
	if err != nil {
		return nil, fmt.Errorf("failed to read element log of board '%s': %w", name, err)
	}

	elements := make(map[string]*Element, len(snapshot.Elements)+len(records))
	for id, e := range snapshot.Elements {
		if e != nil {
			elements[id] = e
		}
	}
	for _, r := range records {
		if r.Data != nil {
			elements[r.ID] = r.Data
		}
	}

	s := New(name, adapter, opts...)
	s.restore(elements)
	if !snapshot.SavedAt.IsZero() {
		s.lastSaveDate = snapshot.SavedAt
	}
	// Unsaved log rows count as changes so the registry snapshots them.
	s.changes = len(records)
	return s, nil
}

// restore seeds a fresh store without stamping times or dispatching writes.
func (s *Store) restore(elements map[string]*Element) {
	ids := make([]string, 0, len(elements))
	for id, e := range elements {
		e.ID = id
		s.cfg.limits.Validate(e)
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		ti, tj := elements[ids[i]].Time, elements[ids[j]].Time
		if ti != tj {
			return ti < tj
		}
		return ids[i] < ids[j]
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.nextSeq++
		s.elements[id] = &entry{el: elements[id], seq: s.nextSeq}
	}
}
