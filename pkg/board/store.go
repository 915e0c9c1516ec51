package board

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Store is the in-memory state of one board. All methods are safe for
// concurrent use; mutations are applied one at a time in the order they
// acquire the store, and their durable writes are queued in that same order.
type Store struct {
	name    string
	adapter Adapter
	cfg     storeConfig
	persist *persister

	mu           sync.Mutex
	elements     map[string]*entry
	nextSeq      uint64
	users        map[string]struct{}
	lastSaveDate time.Time
	changes      int
	closed       bool
}

// entry keeps an element with its draw position. seq is assigned on first
// insertion and survives replacement.
type entry struct {
	el  *Element
	seq uint64
}

type storeConfig struct {
	limits         Limits
	now            func() time.Time
	mode           PersistMode
	queueSize      int
	retry          RetryPolicy
	evictPersisted bool
	onError        ErrorHandler
}

// Option configures a Store.
type Option func(*storeConfig)

// WithLimits sets the board limits. Zero fields keep their defaults.
func WithLimits(l Limits) Option {
	return func(c *storeConfig) { c.limits = l.withDefaults() }
}

// WithClock replaces time.Now for element timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *storeConfig) { c.now = now }
}

// WithPersistMode selects async (default) or sync durable writes.
func WithPersistMode(mode PersistMode) Option {
	return func(c *storeConfig) { c.mode = mode }
}

// WithQueueSize sets the capacity of the board's persistence queue.
func WithQueueSize(n int) Option {
	return func(c *storeConfig) { c.queueSize = n }
}

// WithRetryPolicy sets the backoff applied to failed adapter calls.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *storeConfig) { c.retry = p }
}

// WithEvictPersisted makes Clean delete evicted elements from the adapter as
// well. By default eviction only affects memory and the rows disappear at the
// next snapshot (or through adapter-side retention).
func WithEvictPersisted(enabled bool) Option {
	return func(c *storeConfig) { c.evictPersisted = enabled }
}

// WithErrorHandler receives durable write failures. The default logs them.
func WithErrorHandler(h ErrorHandler) Option {
	return func(c *storeConfig) { c.onError = h }
}

// New creates an empty store for the named board and starts its persister.
// Call Close to stop it.
func New(name string, adapter Adapter, opts ...Option) *Store {
	cfg := storeConfig{
		limits:    DefaultLimits(),
		now:       time.Now,
		mode:      PersistAsync,
		queueSize: DefaultQueueSize,
		retry:     DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Store{
		name:         name,
		adapter:      adapter,
		cfg:          cfg,
		persist:      newPersister(name, adapter, cfg.queueSize, cfg.retry, cfg.onError),
		elements:     make(map[string]*entry),
		users:        make(map[string]struct{}),
		lastSaveDate: cfg.now(),
	}
}

// Name returns the board name.
func (s *Store) Name() string {
	return s.name
}

// Limits returns the limits applied by this store.
func (s *Store) Limits() Limits {
	return s.cfg.limits
}

// Set creates or replaces the element at id. The element is copied, stamped
// with the current time and validated before it is stored.
func (s *Store) Set(ctx context.Context, id string, data *Element) error {
	el := data.Clone()
	if el == nil {
		el = &Element{}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.put(id, el)
	done, err := s.dispatch(ctx, job{kind: jobAdd, id: id, data: el.Clone()})
	s.mu.Unlock()

	if err != nil {
		return err
	}
	return await(ctx, done)
}

// Update merges patch into the element at id. The control fields "type" and
// "tool" are never stored. When no element exists at id the patch is stored as
// a new element, whatever create says; create is kept for protocol
// compatibility.
func (s *Store) Update(ctx context.Context, id string, patch *Element, create bool) error {
	p := patch.Clone()
	if p == nil {
		p = &Element{}
	}
	p.DeletePayload(FieldType, FieldTool)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}

	var j job
	if existing, ok := s.elements[id]; ok {
		existing.el.Merge(p)
		s.touch(existing.el)
		j = job{kind: jobUpdate, id: id, data: existing.el.Clone()}
	} else {
		s.put(id, p)
		j = job{kind: jobAdd, id: id, data: p.Clone()}
	}
	done, err := s.dispatch(ctx, j)
	s.mu.Unlock()

	if err != nil {
		return err
	}
	return await(ctx, done)
}

// AddChild appends child to the _children of the element at parentID and
// re-validates the parent, so children beyond MaxChildren are dropped. It
// returns false without changing anything when the parent does not exist.
func (s *Store) AddChild(ctx context.Context, parentID string, child *Element) (bool, error) {
	c := child.Clone()
	if c == nil {
		c = &Element{}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false, ErrClosed
	}

	parent, ok := s.elements[parentID]
	if !ok {
		s.mu.Unlock()
		return false, nil
	}

	// touch truncates to MaxChildren, so a full parent keeps its children.
	parent.el.Children = append(parent.el.Children, c)
	s.touch(parent.el)
	done, err := s.dispatch(ctx, job{kind: jobUpdate, id: parentID, data: parent.el.Clone()})
	s.mu.Unlock()

	if err != nil {
		return true, err
	}
	return true, await(ctx, done)
}

// Get returns a copy of the element at id.
func (s *Store) Get(id string) (*Element, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.elements[id]
	if !ok {
		return nil, false
	}
	return e.el.Clone(), true
}

// GetAll returns copies of all elements in draw order. When sinceID is not
// empty only elements whose id sorts strictly after it are returned.
func (s *Store) GetAll(sinceID string) []*Element {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]*entry, 0, len(s.elements))
	for id, e := range s.elements {
		if sinceID == "" || id > sinceID {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	out := make([]*Element, len(entries))
	for i, e := range entries {
		out[i] = e.el.Clone()
	}
	return out
}

// Len returns the number of live elements.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.elements)
}

// Delete removes the element at id. Deleting a missing id is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if _, ok := s.elements[id]; ok {
		delete(s.elements, id)
		s.changes++
	}
	done, err := s.dispatch(ctx, job{kind: jobDelete, id: id})
	s.mu.Unlock()

	if err != nil {
		return err
	}
	return await(ctx, done)
}

// Clean evicts the oldest elements (by time, then id) so that at most
// MaxItemCount remain, and returns how many were evicted. Evicted elements
// are deleted from the adapter only when WithEvictPersisted is enabled.
func (s *Store) Clean(ctx context.Context) (int, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ErrClosed
	}

	max := s.cfg.limits.MaxItemCount
	if max <= 0 || len(s.elements) <= max {
		s.mu.Unlock()
		return 0, nil
	}

	ids := make([]string, 0, len(s.elements))
	for id := range s.elements {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		ti, tj := s.elements[ids[i]].el.Time, s.elements[ids[j]].el.Time
		if ti != tj {
			return ti < tj
		}
		return ids[i] < ids[j]
	})

	evicted := ids[:len(ids)-max]
	var pending []<-chan error
	var firstErr error
	for _, id := range evicted {
		delete(s.elements, id)
		if !s.cfg.evictPersisted {
			continue
		}
		done, err := s.dispatch(ctx, job{kind: jobDelete, id: id})
		if err != nil && firstErr == nil {
			firstErr = err
		}
		if done != nil {
			pending = append(pending, done)
		}
	}
	s.changes++
	s.mu.Unlock()

	for _, done := range pending {
		if err := await(ctx, done); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return len(evicted), firstErr
}

// ClearAll removes every element from the board and from the adapter.
func (s *Store) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.elements = make(map[string]*entry)
	s.changes++
	done, err := s.dispatch(ctx, job{kind: jobDeleteAll})
	s.mu.Unlock()

	if err != nil {
		return err
	}
	return await(ctx, done)
}

// Save writes a full snapshot of the board through UpdateBoard, which also
// compacts the adapter's element log. It waits for the write in every
// persistence mode. A successful save clears the dirty marker.
func (s *Store) Save(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	elements := make(map[string]*Element, len(s.elements))
	for id, e := range s.elements {
		elements[id] = e.el.Clone()
	}
	saved := s.changes
	done, err := s.persist.enqueue(ctx, job{kind: jobSnapshot, elements: elements}, true)
	s.mu.Unlock()

	if err != nil {
		return err
	}
	if err := await(ctx, done); err != nil {
		return err
	}

	s.mu.Lock()
	s.lastSaveDate = s.cfg.now()
	s.changes -= saved
	if s.changes < 0 {
		s.changes = 0
	}
	s.mu.Unlock()
	return nil
}

// SetLimited is Set for element types with a per-board quota, such as
// images. A new id is rejected with ErrTypeLimit when the board already holds
// max elements of data's type, counting live elements and persisted rows
// alike. Replacing an existing element is always allowed. The count and the
// insertion happen under the store lock, so concurrent callers cannot both
// take the last slot. A max of zero or less disables the quota.
func (s *Store) SetLimited(ctx context.Context, id string, data *Element, max int) error {
	if max <= 0 {
		return s.Set(ctx, id, data)
	}
	el := data.Clone()
	if el == nil {
		el = &Element{}
	}
	typ := el.Type()

	persisted, err := s.persistedIDs(ctx, typ)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if _, exists := s.elements[id]; !exists {
		if count := s.countLocked(typ, persisted); count >= max {
			s.mu.Unlock()
			return fmt.Errorf("%w: board '%s' holds %d '%s' elements", ErrTypeLimit, s.name, count, typ)
		}
	}
	s.put(id, el)
	done, err := s.dispatch(ctx, job{kind: jobAdd, id: id, data: el.Clone()})
	s.mu.Unlock()

	if err != nil {
		return err
	}
	return await(ctx, done)
}

// CountType returns how many elements have the given payload type, e.g. "doc"
// for images. Live elements, including writes still in the queue, and rows in
// the adapter's snapshot and element log are counted once per id.
func (s *Store) CountType(ctx context.Context, typ string) (int, error) {
	persisted, err := s.persistedIDs(ctx, typ)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countLocked(typ, persisted), nil
}

// countLocked counts the union of persisted and live ids of type typ. Caller
// holds s.mu.
func (s *Store) countLocked(typ string, persisted map[string]struct{}) int {
	count := len(persisted)
	for id, e := range s.elements {
		if e.el.Type() != typ {
			continue
		}
		if _, ok := persisted[id]; !ok {
			count++
		}
	}
	return count
}

// persistedIDs returns the ids of elements of type typ in the adapter's
// snapshot and element log.
func (s *Store) persistedIDs(ctx context.Context, typ string) (map[string]struct{}, error) {
	ids := make(map[string]struct{})

	snapshot, err := s.adapter.GetBoard(ctx, s.name)
	if err != nil && !IsNotFound(err) {
		return nil, fmt.Errorf("failed to count '%s' elements on board '%s': %w", typ, s.name, err)
	}
	if snapshot != nil {
		for id, e := range snapshot.Elements {
			if e != nil && e.Type() == typ {
				ids[id] = struct{}{}
			}
		}
	}

	records, err := s.adapter.GetBoardData(ctx, s.name, typ)
	if err != nil {
		return nil, fmt.Errorf("failed to count '%s' elements on board '%s': %w", typ, s.name, err)
	}
	for _, r := range records {
		ids[r.ID] = struct{}{}
	}
	return ids, nil
}

// AddUser records a connected user. Users are tracked, not enforced.
func (s *Store) AddUser(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = struct{}{}
}

// RemoveUser forgets a connected user.
func (s *Store) RemoveUser(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, userID)
}

// Users returns the connected users, sorted.
func (s *Store) Users() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]string, 0, len(s.users))
	for u := range s.users {
		users = append(users, u)
	}
	sort.Strings(users)
	return users
}

// LastSaveDate returns when the last snapshot was written, or when the store
// was created if it never was.
func (s *Store) LastSaveDate() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSaveDate
}

// Changes returns the number of mutations since the last snapshot.
func (s *Store) Changes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changes
}

// Status reports the durable state of the board.
func (s *Store) Status() PersistStatus {
	return s.persist.snapshotStatus()
}

// Close stops accepting mutations and waits for queued writes, or for ctx.
// Close is idempotent.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.persist.close(ctx)
}

// put stamps, validates and stores el. Caller holds s.mu.
func (s *Store) put(id string, el *Element) {
	el.ID = id
	s.touch(el)
	if existing, ok := s.elements[id]; ok {
		existing.el = el
		return
	}
	s.nextSeq++
	s.elements[id] = &entry{el: el, seq: s.nextSeq}
}

// touch stamps and validates a stored element. Caller holds s.mu.
func (s *Store) touch(el *Element) {
	el.Time = s.cfg.now().UnixMilli()
	s.cfg.limits.Validate(el)
	s.changes++
}

// dispatch queues a durable write. Caller holds s.mu so that queue order
// matches mutation order.
func (s *Store) dispatch(ctx context.Context, j job) (<-chan error, error) {
	return s.persist.enqueue(ctx, j, s.cfg.mode == PersistSync)
}
