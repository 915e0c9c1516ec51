package board

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisAdapter persists boards in Redis. All keys and channels are namespaced
// with the adapter's namespace. The adapter is thread-safe and can be used
// concurrently from multiple goroutines.
type RedisAdapter struct {
	rdb       *redis.Client
	namespace string
	keyTTL    time.Duration
	now       func() time.Time
}

// RedisOption configures a RedisAdapter.
type RedisOption func(*RedisAdapter)

// WithKeyTTL expires a board's keys ttl after its last write. Zero keeps them
// forever.
func WithKeyTTL(ttl time.Duration) RedisOption {
	return func(a *RedisAdapter) { a.keyTTL = ttl }
}

// NewRedisAdapter creates a Redis-backed adapter for the given namespace.
//
// Returns an error if namespace is empty.
func NewRedisAdapter(redisOpts *redis.Options, namespace string, opts ...RedisOption) (*RedisAdapter, error) {
	if namespace == "" {
		return nil, fmt.Errorf("namespace cannot be empty")
	}

	a := &RedisAdapter{
		rdb:       redis.NewClient(redisOpts),
		namespace: namespace,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Namespace returns the key namespace.
func (a *RedisAdapter) Namespace() string {
	return a.namespace
}

// Close closes the Redis connection. Implements io.Closer.
func (a *RedisAdapter) Close() error {
	return a.rdb.Close()
}

// Ping verifies Redis connectivity. Implements Pinger.
func (a *RedisAdapter) Ping(ctx context.Context) error {
	return a.rdb.Ping(ctx).Err()
}

// GetBoard implements Adapter. A board exists once its record hash exists.
func (a *RedisAdapter) GetBoard(ctx context.Context, name string) (*Snapshot, error) {
	record, err := a.rdb.HGetAll(ctx, BoardKey(a.namespace, name)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read board from Redis: %w", err)
	}
	if len(record) == 0 {
		return nil, fmt.Errorf("board %q: %w", name, ErrNotFound)
	}

	hash, err := a.rdb.HGetAll(ctx, SnapshotKey(a.namespace, name)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot from Redis: %w", err)
	}
	elements, err := HashToElements(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize snapshot: %w", err)
	}

	createdAt, savedAt := HashToSnapshotTimes(record)
	return &Snapshot{
		Name:      name,
		Elements:  elements,
		CreatedAt: createdAt,
		SavedAt:   savedAt,
	}, nil
}

// GetBoardData implements Adapter. Type filtering happens client-side.
func (a *RedisAdapter) GetBoardData(ctx context.Context, name, typeFilter string) ([]Record, error) {
	hash, err := a.rdb.HGetAll(ctx, DataKey(a.namespace, name)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read element log from Redis: %w", err)
	}
	records, err := HashToRecords(hash, typeFilter)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize element log: %w", err)
	}
	return records, nil
}

// AddDataToBoard implements Adapter.
func (a *RedisAdapter) AddDataToBoard(ctx context.Context, name, id string, data *Element) error {
	return a.writeData(ctx, name, id, data)
}

// UpdateBoardData implements Adapter.
func (a *RedisAdapter) UpdateBoardData(ctx context.Context, name, id string, data *Element) error {
	return a.writeData(ctx, name, id, data)
}

func (a *RedisAdapter) writeData(ctx context.Context, name, id string, data *Element) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to serialize element: %w", err)
	}

	_, err = a.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		a.touchBoard(ctx, pipe, name)
		pipe.HSet(ctx, DataKey(a.namespace, name), id, string(raw))
		a.expire(ctx, pipe, name)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write element to Redis: %w", err)
	}
	return nil
}

// UpdateBoard implements Adapter. The snapshot replacement and log removal
// happen in one MULTI/EXEC transaction.
func (a *RedisAdapter) UpdateBoard(ctx context.Context, name string, elements map[string]*Element) error {
	hash, err := ElementsToHash(elements)
	if err != nil {
		return fmt.Errorf("failed to serialize snapshot: %w", err)
	}

	_, err = a.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		a.touchBoard(ctx, pipe, name)
		pipe.HSet(ctx, BoardKey(a.namespace, name), "saved_at_ms", strconv.FormatInt(a.now().UnixMilli(), 10))
		pipe.Del(ctx, SnapshotKey(a.namespace, name), DataKey(a.namespace, name))
		if len(hash) > 0 {
			pipe.HSet(ctx, SnapshotKey(a.namespace, name), hash)
		}
		a.expire(ctx, pipe, name)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write snapshot to Redis: %w", err)
	}
	return nil
}

// DeleteBoardData implements Adapter.
func (a *RedisAdapter) DeleteBoardData(ctx context.Context, name, id string) error {
	_, err := a.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, DataKey(a.namespace, name), id)
		pipe.HDel(ctx, SnapshotKey(a.namespace, name), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete element from Redis: %w", err)
	}
	return nil
}

// DeleteAllBoardData implements Adapter.
func (a *RedisAdapter) DeleteAllBoardData(ctx context.Context, name string) error {
	_, err := a.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx,
			BoardKey(a.namespace, name),
			SnapshotKey(a.namespace, name),
			DataKey(a.namespace, name),
		)
		pipe.SRem(ctx, BoardsKey(a.namespace), name)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete board from Redis: %w", err)
	}
	return nil
}

// ListBoards implements BoardLister. Names whose board record has expired are
// pruned from the index as a side effect.
func (a *RedisAdapter) ListBoards(ctx context.Context) ([]string, error) {
	members, err := a.rdb.SMembers(ctx, BoardsKey(a.namespace)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read board index from Redis: %w", err)
	}

	names := make([]string, 0, len(members))
	for _, name := range members {
		exists, err := a.rdb.Exists(ctx, BoardKey(a.namespace, name)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to check board existence: %w", err)
		}
		if exists == 0 {
			if err := a.rdb.SRem(ctx, BoardsKey(a.namespace), name).Err(); err != nil {
				return nil, fmt.Errorf("failed to prune board index: %w", err)
			}
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// touchBoard creates the board record if needed.
func (a *RedisAdapter) touchBoard(ctx context.Context, pipe redis.Pipeliner, name string) {
	key := BoardKey(a.namespace, name)
	pipe.SAdd(ctx, BoardsKey(a.namespace), name)
	pipe.HSetNX(ctx, key, "name", name)
	pipe.HSetNX(ctx, key, "created_at_ms", strconv.FormatInt(a.now().UnixMilli(), 10))
}

// expire refreshes the retention of a board's keys when a TTL is configured.
func (a *RedisAdapter) expire(ctx context.Context, pipe redis.Pipeliner, name string) {
	if a.keyTTL <= 0 {
		return
	}
	pipe.Expire(ctx, BoardKey(a.namespace, name), a.keyTTL)
	pipe.Expire(ctx, SnapshotKey(a.namespace, name), a.keyTTL)
	pipe.Expire(ctx, DataKey(a.namespace, name), a.keyTTL)
}

// Envelope is an operation addressed to a board, as carried on the
// operations channel.
type Envelope struct {
	Board string          `json:"board"`
	Op    json.RawMessage `json:"op"`
}

// PublishOperation publishes a raw client operation for board on the
// namespace's operations channel.
func (a *RedisAdapter) PublishOperation(ctx context.Context, board string, op json.RawMessage) error {
	if board == "" {
		return fmt.Errorf("board name cannot be empty")
	}
	payload, err := json.Marshal(Envelope{Board: board, Op: op})
	if err != nil {
		return fmt.Errorf("failed to marshal operation: %w", err)
	}
	if err := a.rdb.Publish(ctx, OperationsChannel(a.namespace), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish operation: %w", err)
	}
	return nil
}

// OperationSubscription represents an active Pub/Sub subscription to client
// operations. Caller must call Close() when done to clean up resources.
type OperationSubscription struct {
	events <-chan *Envelope
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of operations. The channel is closed when the
// subscription is closed or the context is cancelled.
func (s *OperationSubscription) Events() <-chan *Envelope {
	return s.events
}

// Errors returns the channel of subscription errors. Malformed messages are
// reported here and skipped.
func (s *OperationSubscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription. Implements io.Closer. Safe to call multiple
// times.
func (s *OperationSubscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeOperations subscribes to the namespace's operations channel. The
// subscription is confirmed before SubscribeOperations returns, so operations
// published afterwards are delivered.
//
// Delivery is at-most-once: Redis Pub/Sub drops messages for slow subscribers.
func (a *RedisAdapter) SubscribeOperations(ctx context.Context) (*OperationSubscription, error) {
	pubsub := a.rdb.Subscribe(ctx, OperationsChannel(a.namespace))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to operations: %w", err)
	}

	eventsChan := make(chan *Envelope, 64)
	errorsChan := make(chan error, 10)
	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var env Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil || env.Board == "" {
					if err == nil {
						err = fmt.Errorf("missing board name")
					}
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal operation: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &env:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &OperationSubscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}
