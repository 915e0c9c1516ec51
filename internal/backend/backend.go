// Package backend builds the persistence adapter described by the
// configuration.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/dyluth/chalk/internal/config"
	"github.com/dyluth/chalk/internal/sqlstore"
	"github.com/dyluth/chalk/pkg/board"
	"github.com/redis/go-redis/v9"
)

// ErrNoOperationBus is returned by Backend.Bus for backends that cannot carry
// client operations between processes.
var ErrNoOperationBus = errors.New("operation bus requires the redis backend")

// OperationBus carries client operations between processes.
type OperationBus interface {
	PublishOperation(ctx context.Context, board string, op json.RawMessage) error
	SubscribeOperations(ctx context.Context) (*board.OperationSubscription, error)
}

// Backend is an opened persistence adapter.
type Backend struct {
	Name    string
	Adapter board.Adapter
	bus     OperationBus
	closer  io.Closer
}

// Open connects the adapter selected by cfg.Persistence.Backend. Redis is
// pinged before Open returns.
func Open(ctx context.Context, cfg *config.ChalkConfig) (*Backend, error) {
	p := cfg.Persistence

	switch p.Backend {
	case config.BackendRedis:
		redisOpts, err := redis.ParseURL(p.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis URL: %w", err)
		}
		adapter, err := board.NewRedisAdapter(redisOpts, p.Namespace, board.WithKeyTTL(p.KeyTTL))
		if err != nil {
			return nil, fmt.Errorf("failed to create redis adapter: %w", err)
		}
		if err := adapter.Ping(ctx); err != nil {
			adapter.Close()
			return nil, fmt.Errorf("redis not accessible at %s: %w", redisOpts.Addr, err)
		}
		return &Backend{Name: p.Backend, Adapter: adapter, bus: adapter, closer: adapter}, nil

	case config.BackendSQLite:
		adapter, err := sqlstore.Open(ctx, p.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &Backend{Name: p.Backend, Adapter: adapter, closer: adapter}, nil

	case config.BackendMemory:
		adapter := board.NewMemoryAdapter()
		return &Backend{Name: p.Backend, Adapter: adapter, closer: adapter}, nil

	default:
		return nil, fmt.Errorf("unknown backend: %s", p.Backend)
	}
}

// Bus returns the operation bus, or ErrNoOperationBus.
func (b *Backend) Bus() (OperationBus, error) {
	if b.bus == nil {
		return nil, fmt.Errorf("%w (backend is %s)", ErrNoOperationBus, b.Name)
	}
	return b.bus, nil
}

// Lister returns the adapter's board listing, if it has one.
func (b *Backend) Lister() (board.BoardLister, bool) {
	l, ok := b.Adapter.(board.BoardLister)
	return l, ok
}

// Close releases the adapter's connections.
func (b *Backend) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer.Close()
}
