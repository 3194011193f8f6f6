package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/csvpass/internal/pipeline/entity"
	"github.com/shandysiswandi/csvpass/internal/pkg/pkgerror"
)

// DefaultKeyPrefix namespaces task keys in a shared Redis.
const DefaultKeyPrefix = "csvpass:task:"

// ErrExpired is returned when a task reaches Save after its ExpiresAt.
var ErrExpired = errors.New("task expired before it was saved")

// RedisStore keeps task records as JSON values in Redis. Records with an
// ExpiresAt are written with a matching TTL so Redis evicts them.
type RedisStore struct {
	client redis.Cmdable
	prefix string
	now    func() time.Time
}

// RedisOptions configures NewRedisStore.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// NewRedisStore connects to Redis and checks the connection.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, func(context.Context) error, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}

	closer := func(context.Context) error {
		return client.Close()
	}

	return NewRedisStoreWithClient(client, opts.Prefix), closer, nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client redis.Cmdable, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}

	return &RedisStore{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

func (s *RedisStore) Save(ctx context.Context, task entity.Task) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return err
	}

	var ttl time.Duration
	if !task.ExpiresAt.IsZero() {
		ttl = task.ExpiresAt.Sub(s.now())
		if ttl <= 0 {
			return fmt.Errorf("%w: %s", ErrExpired, task.ID)
		}
	}

	ok, err := s.client.SetNX(ctx, s.key(task.ID), payload, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return pkgerror.NewBusiness("task already exists", pkgerror.CodeConflict)
	}

	return nil
}

func (s *RedisStore) Find(ctx context.Context, id string) (entity.Task, error) {
	val, err := s.client.Get(ctx, s.key(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return entity.Task{}, pkgerror.ErrNotFound
		}
		return entity.Task{}, err
	}

	var task entity.Task
	if err := json.Unmarshal([]byte(val), &task); err != nil {
		return entity.Task{}, fmt.Errorf("decode task %s: %w", id, err)
	}

	if task.Expired(s.now()) {
		return entity.Task{}, pkgerror.ErrNotFound
	}

	return task, nil
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}
