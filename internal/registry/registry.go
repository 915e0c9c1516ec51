// Package registry owns the live board stores of a daemon: it loads boards on
// first reference, dispatches client operations to them, and runs the
// periodic clean/save/evict maintenance.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/dyluth/chalk/pkg/board"
)

var (
	// ErrOrphanChild is returned when a child operation names a parent that
	// does not exist. The child is dropped.
	ErrOrphanChild = errors.New("parent element not found")

	// ErrDocumentTooLarge is returned when an image element's encoded data
	// exceeds the configured maximum document size.
	ErrDocumentTooLarge = errors.New("document exceeds maximum size")

	// ErrImageLimit is returned when a board already holds the maximum number
	// of images.
	ErrImageLimit = errors.New("board image limit reached")

	// ErrInvalidOperation is returned for operations missing a required id.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrClosed is returned by a registry after Close.
	ErrClosed = errors.New("registry is closed")
)

// docType is the element type of images. Their encoded data lives in the
// "data" payload field.
const docType = "doc"

// cleanSlack is how far past MaxItemCount a board may grow before Apply
// cleans it; the maintenance pass cleans the rest.
const cleanSlack = 0.1

// DefaultLoadTimeout bounds a board load when Config.LoadTimeout is zero.
const DefaultLoadTimeout = 30 * time.Second

// Config tunes a Registry. Zero durations disable the matching behaviour,
// except LoadTimeout.
type Config struct {
	IdleTimeout     time.Duration  // evict boards without users idle this long
	SaveInterval    time.Duration  // minimum age of the last snapshot before saving again
	MaxDocumentSize int            // bytes of an image's data field, 0 = unlimited
	MaxImages       int            // images per board, 0 = unlimited
	LoadTimeout     time.Duration  // bound on loading one board, 0 = DefaultLoadTimeout
	StoreOptions    []board.Option // applied to every loaded store
}

// Registry maps board names to loaded stores. It is safe for concurrent use.
type Registry struct {
	adapter  board.Adapter
	cfg      Config
	instance string
	now      func() time.Time

	mu       sync.Mutex
	boards   map[string]*slot
	evicting map[string]chan struct{}
	closed   bool
}

// slot is a board being loaded or loaded. ready is closed once store or err
// is set.
type slot struct {
	ready    chan struct{}
	store    *board.Store
	err      error
	lastUsed time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock replaces time.Now for idle and save bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithInstance sets the instance id reported in log events.
func WithInstance(id string) Option {
	return func(r *Registry) { r.instance = id }
}

// New creates an empty registry backed by adapter.
func New(adapter board.Adapter, cfg Config, opts ...Option) *Registry {
	r := &Registry{
		adapter:  adapter,
		cfg:      cfg,
		now:      time.Now,
		boards:   make(map[string]*slot),
		evicting: make(map[string]chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Adapter returns the adapter boards are persisted through.
func (r *Registry) Adapter() board.Adapter {
	return r.adapter
}

// Get returns the store for name, loading it on first reference. Concurrent
// first references share a single load.
func (r *Registry) Get(ctx context.Context, name string) (*board.Store, error) {
	for {
		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			return nil, ErrClosed
		}

		// Wait out an eviction so the reload sees its final snapshot.
		if done, ok := r.evicting[name]; ok {
			r.mu.Unlock()
			select {
			case <-done:
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		if s, ok := r.boards[name]; ok {
			s.lastUsed = r.now()
			r.mu.Unlock()
			return s.wait(ctx)
		}

		s := &slot{ready: make(chan struct{}), lastUsed: r.now()}
		r.boards[name] = s
		r.mu.Unlock()

		go r.load(ctx, name, s)
		return s.wait(ctx)
	}
}

// load fills s. Other callers may be waiting on the same slot, so the load
// runs detached from the first caller's cancellation, bounded by LoadTimeout.
func (r *Registry) load(ctx context.Context, name string, s *slot) {
	timeout := r.cfg.LoadTimeout
	if timeout <= 0 {
		timeout = DefaultLoadTimeout
	}
	loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	store, err := board.Load(loadCtx, name, r.adapter, r.cfg.StoreOptions...)

	r.mu.Lock()
	closed := r.closed
	switch {
	case err != nil:
		s.err = fmt.Errorf("failed to load board '%s': %w", name, err)
	case closed:
		s.err = ErrClosed
	default:
		s.store = store
	}
	if s.err != nil && r.boards[name] == s {
		delete(r.boards, name)
	}
	r.mu.Unlock()
	close(s.ready)

	if err == nil && closed {
		if cerr := store.Close(loadCtx); cerr != nil {
			log.Printf("[Registry] Failed to close board '%s' loaded after shutdown: %v", name, cerr)
		}
		return
	}

	if err != nil {
		log.Printf("[Registry] %v", s.err)
		return
	}
	r.logEvent("board_loaded", map[string]interface{}{
		"board":    name,
		"elements": store.Len(),
	})
}

func (s *slot) wait(ctx context.Context) (*board.Store, error) {
	select {
	case <-s.ready:
		return s.store, s.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Apply dispatches one client operation to the named board.
func (r *Registry) Apply(ctx context.Context, name string, op *board.Operation) error {
	store, err := r.Get(ctx, name)
	if err != nil {
		return err
	}

	switch op.Kind() {
	case board.KindClear:
		return store.ClearAll(ctx)

	case board.KindDelete:
		if op.ID == "" {
			return fmt.Errorf("%w: delete without id", ErrInvalidOperation)
		}
		return store.Delete(ctx, op.ID)

	case board.KindUpdate:
		if op.ID == "" {
			return fmt.Errorf("%w: update without id", ErrInvalidOperation)
		}
		return store.Update(ctx, op.ID, op.Data, false)

	case board.KindChild:
		if op.Parent == "" {
			return fmt.Errorf("%w: child without parent", ErrInvalidOperation)
		}
		added, err := store.AddChild(ctx, op.Parent, op.Data)
		if err != nil {
			return err
		}
		if !added {
			return fmt.Errorf("%w: board '%s' element '%s'", ErrOrphanChild, name, op.Parent)
		}
		return nil

	default:
		if op.ID == "" {
			return fmt.Errorf("%w: %s without id", ErrInvalidOperation, op.Type)
		}
		if op.Data != nil && op.Data.Type() == docType {
			if err := r.setDocument(ctx, store, op); err != nil {
				return err
			}
		} else if err := store.Set(ctx, op.ID, op.Data); err != nil {
			return err
		}
		r.maybeClean(ctx, store)
		return nil
	}
}

// setDocument stores an image, enforcing the document size and the per-board
// image quota.
func (r *Registry) setDocument(ctx context.Context, store *board.Store, op *board.Operation) error {
	if r.cfg.MaxDocumentSize > 0 {
		if size := len(op.Data.PayloadString("data")); size > r.cfg.MaxDocumentSize {
			return fmt.Errorf("%w: %d > %d bytes", ErrDocumentTooLarge, size, r.cfg.MaxDocumentSize)
		}
	}
	err := store.SetLimited(ctx, op.ID, op.Data, r.cfg.MaxImages)
	if errors.Is(err, board.ErrTypeLimit) {
		return fmt.Errorf("%w: board '%s' has %d images", ErrImageLimit, store.Name(), r.cfg.MaxImages)
	}
	return err
}

// maybeClean cleans a board that has grown well past its item limit.
func (r *Registry) maybeClean(ctx context.Context, store *board.Store) {
	max := store.Limits().MaxItemCount
	if max <= 0 || float64(store.Len()) <= float64(max)*(1+cleanSlack) {
		return
	}
	n, err := store.Clean(ctx)
	if err != nil {
		log.Printf("[Registry] Clean of board '%s' failed: %v", store.Name(), err)
	}
	r.logEvent("board_cleaned", map[string]interface{}{
		"board":   store.Name(),
		"evicted": n,
	})
}

// Join records a user on the named board, loading it if needed.
func (r *Registry) Join(ctx context.Context, name, userID string) error {
	store, err := r.Get(ctx, name)
	if err != nil {
		return err
	}
	store.AddUser(userID)
	return nil
}

// Leave removes a user from the named board. Boards that are not loaded are
// left alone.
func (r *Registry) Leave(name, userID string) {
	r.mu.Lock()
	s, ok := r.boards[name]
	r.mu.Unlock()
	if !ok {
		return
	}
	select {
	case <-s.ready:
		if s.store != nil {
			s.store.RemoveUser(userID)
		}
	default:
	}
}

// Boards returns the names of the loaded boards, sorted.
func (r *Registry) Boards() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.boards))
	for name, s := range r.boards {
		if s.store != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// BoardStatus summarises one loaded board.
type BoardStatus struct {
	Name         string    `json:"name"`
	Elements     int       `json:"elements"`
	Users        int       `json:"users"`
	Changes      int       `json:"changes"`
	Dirty        bool      `json:"dirty"`
	Pending      int       `json:"pending"`
	LastSaveDate time.Time `json:"last_save_date"`
	LastError    string    `json:"last_error,omitempty"`
}

// Status reports every loaded board, sorted by name.
func (r *Registry) Status() []BoardStatus {
	loaded := r.loaded()
	out := make([]BoardStatus, 0, len(loaded))
	for _, l := range loaded {
		st := l.store.Status()
		bs := BoardStatus{
			Name:         l.name,
			Elements:     l.store.Len(),
			Users:        len(l.store.Users()),
			Changes:      l.store.Changes(),
			Dirty:        st.Dirty,
			Pending:      st.Pending,
			LastSaveDate: l.store.LastSaveDate(),
		}
		if st.LastError != nil {
			bs.LastError = st.LastError.Error()
		}
		out = append(out, bs)
	}
	return out
}

type loadedBoard struct {
	name     string
	store    *board.Store
	lastUsed time.Time
}

// loaded snapshots the loaded boards, sorted by name.
func (r *Registry) loaded() []loadedBoard {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]loadedBoard, 0, len(r.boards))
	for name, s := range r.boards {
		if s.store != nil {
			out = append(out, loadedBoard{name: name, store: s.store, lastUsed: s.lastUsed})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// Maintain runs one maintenance pass over every loaded board: clean, save
// when there are unsaved changes older than SaveInterval, and evict boards
// without users that have been idle longer than IdleTimeout.
func (r *Registry) Maintain(ctx context.Context) error {
	var errs []error
	for _, l := range r.loaded() {
		if err := r.maintainBoard(ctx, l); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) maintainBoard(ctx context.Context, l loadedBoard) error {
	now := r.now()

	if n, err := l.store.Clean(ctx); err != nil {
		return fmt.Errorf("failed to clean board '%s': %w", l.name, err)
	} else if n > 0 {
		r.logEvent("board_cleaned", map[string]interface{}{"board": l.name, "evicted": n})
	}

	if needsSave(l.store) && now.Sub(l.store.LastSaveDate()) >= r.cfg.SaveInterval {
		if err := l.store.Save(ctx); err != nil {
			return fmt.Errorf("failed to save board '%s': %w", l.name, err)
		}
		r.logEvent("board_saved", map[string]interface{}{"board": l.name, "elements": l.store.Len()})
	}

	if r.cfg.IdleTimeout > 0 && len(l.store.Users()) == 0 && now.Sub(l.lastUsed) >= r.cfg.IdleTimeout {
		return r.evict(ctx, l)
	}
	return nil
}

// evict saves, closes and forgets an idle board. Gets for the same name wait
// until the board is durable again.
func (r *Registry) evict(ctx context.Context, l loadedBoard) error {
	r.mu.Lock()
	s, ok := r.boards[l.name]
	if !ok || s.store != l.store || !s.lastUsed.Equal(l.lastUsed) || len(l.store.Users()) > 0 {
		// Touched since the snapshot was taken.
		r.mu.Unlock()
		return nil
	}
	delete(r.boards, l.name)
	done := make(chan struct{})
	r.evicting[l.name] = done
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.evicting, l.name)
		r.mu.Unlock()
		close(done)
	}()

	var errs []error
	if needsSave(l.store) {
		if err := l.store.Save(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to save board '%s': %w", l.name, err))
		}
	}
	if err := l.store.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to close board '%s': %w", l.name, err))
	}

	r.logEvent("board_evicted", map[string]interface{}{"board": l.name})
	return errors.Join(errs...)
}

func needsSave(s *board.Store) bool {
	return s.Changes() > 0 || s.Status().Dirty
}

// Run calls Maintain every interval until ctx is cancelled.
func (r *Registry) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("maintenance interval must be > 0, got %s", interval)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := r.Maintain(ctx); err != nil {
				log.Printf("[Registry] Maintenance failed: %v", err)
			}
		}
	}
}

// Close saves and closes every loaded board. The registry rejects further
// use.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	var errs []error
	for _, l := range r.loaded() {
		if needsSave(l.store) {
			if err := l.store.Save(ctx); err != nil {
				errs = append(errs, fmt.Errorf("failed to save board '%s': %w", l.name, err))
			}
		}
		if err := l.store.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to close board '%s': %w", l.name, err))
		}
	}

	r.mu.Lock()
	r.boards = make(map[string]*slot)
	r.mu.Unlock()
	return errors.Join(errs...)
}

// logEvent emits a structured JSON log line.
func (r *Registry) logEvent(eventType string, data map[string]interface{}) {
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	data["level"] = "info"
	data["component"] = "registry"
	data["event_type"] = eventType
	data["instance"] = r.instance

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("[Registry] Failed to marshal log event: %v", err)
		return
	}

	log.Println(string(jsonData))
}
