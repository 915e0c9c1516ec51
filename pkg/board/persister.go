package board

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// PersistMode selects how mutating Store calls relate to durable writes.
type PersistMode string

const (
	// PersistAsync returns as soon as the in-memory mutation is applied and the
	// durable write is queued. Failures surface through the ErrorHandler and
	// Store.Status.
	PersistAsync PersistMode = "async"

	// PersistSync waits for the durable write and returns its error. The
	// in-memory mutation is kept either way.
	PersistSync PersistMode = "sync"
)

// DefaultQueueSize is the per-board persistence queue capacity.
const DefaultQueueSize = 1024

// ErrQueueFull is reported when an async write is dropped because the board's
// persistence queue is full. The board is marked dirty.
var ErrQueueFull = errors.New("persistence queue full")

// ErrClosed is returned by operations on a closed Store.
var ErrClosed = errors.New("board store is closed")

// ErrTypeLimit is returned by SetLimited when a board is at its quota for an
// element type.
var ErrTypeLimit = errors.New("element type limit reached")

// RetryPolicy bounds the exponential backoff applied to failed adapter calls.
type RetryPolicy struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:      5,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, p.MaxRetries), ctx)
}

// ErrorHandler receives durable write failures after retries are exhausted.
// op is the adapter method name.
type ErrorHandler func(board, op, id string, err error)

func logPersistError(board, op, id string, err error) {
	log.Printf("[Board] %s failed for board '%s' element '%s': %v", op, board, id, err)
}

// PersistStatus describes the durable state of one board.
type PersistStatus struct {
	Dirty       bool      // durable state may differ from memory
	LastError   error     // most recent failure, nil if none
	LastErrorAt time.Time // when LastError happened
	Failures    int       // writes that failed after retries
	Dropped     int       // writes dropped on a full queue
	Pending     int       // writes waiting in the queue
}

type jobKind int

const (
	jobAdd jobKind = iota
	jobUpdate
	jobDelete
	jobDeleteAll
	jobSnapshot
)

// String returns the adapter method a job maps to.
func (k jobKind) String() string {
	switch k {
	case jobAdd:
		return "AddDataToBoard"
	case jobUpdate:
		return "UpdateBoardData"
	case jobDelete:
		return "DeleteBoardData"
	case jobDeleteAll:
		return "DeleteAllBoardData"
	case jobSnapshot:
		return "UpdateBoard"
	default:
		return fmt.Sprintf("job(%d)", int(k))
	}
}

type job struct {
	kind     jobKind
	id       string
	data     *Element
	elements map[string]*Element
	done     chan error
}

// persister owns one board's write queue and the goroutine draining it. Jobs
// run one at a time in submission order.
type persister struct {
	board   string
	adapter Adapter
	policy  RetryPolicy
	onError ErrorHandler

	queue    chan job
	ctx      context.Context
	cancel   context.CancelFunc
	finished chan struct{}
	once     sync.Once

	mu     sync.Mutex
	status PersistStatus
}

func newPersister(board string, adapter Adapter, queueSize int, policy RetryPolicy, onError ErrorHandler) *persister {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if onError == nil {
		onError = logPersistError
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &persister{
		board:    board,
		adapter:  adapter,
		policy:   policy,
		onError:  onError,
		queue:    make(chan job, queueSize),
		ctx:      ctx,
		cancel:   cancel,
		finished: make(chan struct{}),
	}
	go p.run()
	return p
}

// enqueue queues j. With wait=false it never blocks: a full queue drops the
// job and marks the board dirty. With wait=true it blocks until there is room
// and returns a channel carrying the job's result.
func (p *persister) enqueue(ctx context.Context, j job, wait bool) (<-chan error, error) {
	if !wait {
		select {
		case p.queue <- j:
		default:
			p.recordDrop(j)
		}
		return nil, nil
	}

	j.done = make(chan error, 1)
	select {
	case p.queue <- j:
		return j.done, nil
	case <-ctx.Done():
		p.recordFailure(j, ctx.Err())
		return nil, ctx.Err()
	}
}

// await waits for a result channel returned by enqueue.
func await(ctx context.Context, done <-chan error) error {
	if done == nil {
		return nil
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *persister) run() {
	defer close(p.finished)
	for j := range p.queue {
		err := p.execute(j)
		if j.done != nil {
			j.done <- err
		}
	}
}

func (p *persister) execute(j job) error {
	err := backoff.Retry(func() error {
		return p.apply(j)
	}, p.policy.backOff(p.ctx))
	if err != nil {
		p.recordFailure(j, err)
		return fmt.Errorf("%s for board '%s': %w", j.kind, p.board, err)
	}

	if j.kind == jobSnapshot {
		p.mu.Lock()
		p.status.Dirty = false
		p.mu.Unlock()
	}
	return nil
}

func (p *persister) apply(j job) error {
	switch j.kind {
	case jobAdd:
		return p.adapter.AddDataToBoard(p.ctx, p.board, j.id, j.data)
	case jobUpdate:
		return p.adapter.UpdateBoardData(p.ctx, p.board, j.id, j.data)
	case jobDelete:
		return p.adapter.DeleteBoardData(p.ctx, p.board, j.id)
	case jobDeleteAll:
		return p.adapter.DeleteAllBoardData(p.ctx, p.board)
	case jobSnapshot:
		return p.adapter.UpdateBoard(p.ctx, p.board, j.elements)
	default:
		return backoff.Permanent(fmt.Errorf("unknown persistence job %v", j.kind))
	}
}

func (p *persister) recordFailure(j job, err error) {
	p.mu.Lock()
	p.status.Dirty = true
	p.status.LastError = err
	p.status.LastErrorAt = time.Now()
	p.status.Failures++
	p.mu.Unlock()

	p.onError(p.board, j.kind.String(), j.id, err)
}

func (p *persister) recordDrop(j job) {
	p.mu.Lock()
	p.status.Dirty = true
	p.status.LastError = ErrQueueFull
	p.status.LastErrorAt = time.Now()
	p.status.Dropped++
	p.mu.Unlock()

	p.onError(p.board, j.kind.String(), j.id, ErrQueueFull)
}

func (p *persister) snapshotStatus() PersistStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := p.status
	st.Pending = len(p.queue)
	return st
}

// close stops accepting jobs and drains the queue. If ctx expires first, the
// remaining jobs are abandoned and the board stays dirty.
func (p *persister) close(ctx context.Context) error {
	var err error
	p.once.Do(func() {
		close(p.queue)
		select {
		case <-p.finished:
		case <-ctx.Done():
			p.cancel()
			<-p.finished
			err = ctx.Err()
		}
		p.cancel()
	})
	return err
}
