package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aretw0/strata/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// Store implements ports.Repository using Redis.
// Every record is a JSON string; each bucket keeps a ZSET index with a
// constant score so members are returned in lexicographic order.
type Store struct {
	client *backend.Client
	prefix string
}

type Option func(*Store)

// WithPrefix sets the key prefix for all records.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: "strata:",
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Client exposes the underlying client so a Locker can share it.
func (s *Store) Client() *backend.Client {
	return s.client
}

func (s *Store) key(bucket, id string) string {
	return s.prefix + bucket + ":" + id
}

func (s *Store) indexKey(bucket string) string {
	return s.prefix + "index:" + bucket
}

func (s *Store) put(ctx context.Context, bucket, id string, v any, indexes ...string) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", bucket, err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(bucket, id), data, 0)
	for _, idx := range append([]string{bucket}, indexes...) {
		pipe.ZAdd(ctx, s.indexKey(idx), backend.Z{Score: 0, Member: id})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// get returns false when the key does not exist.
func (s *Store) get(ctx context.Context, bucket, id string, v any) (bool, error) {
	val, err := s.client.Get(ctx, s.key(bucket, id)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get from redis: %w", err)
	}
	if err := json.Unmarshal(val, v); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s %s: %w", bucket, id, err)
	}
	return true, nil
}

// members returns the ids of an index, sorted.
func (s *Store) members(ctx context.Context, index string) ([]string, error) {
	ids, err := s.client.ZRange(ctx, s.indexKey(index), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read index %s: %w", index, err)
	}
	return ids, nil
}

// values loads the raw JSON of every id in bucket. Missing keys are skipped.
func (s *Store) values(ctx context.Context, bucket string, ids []string) ([][]byte, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(bucket, id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to mget %s: %w", bucket, err)
	}
	out := make([][]byte, 0, len(vals))
	for _, v := range vals {
		if str, ok := v.(string); ok {
			out = append(out, []byte(str))
		}
	}
	return out, nil
}

func (s *Store) SaveItem(ctx context.Context, item *domain.Item) error {
	return s.put(ctx, "item", item.ID, item, "item:"+string(item.Kind))
}

func (s *Store) GetItem(ctx context.Context, id string) (*domain.Item, error) {
	var item domain.Item
	ok, err := s.get(ctx, "item", id, &item)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: item %s", domain.ErrNotFound, id)
	}
	return &item, nil
}

func (s *Store) DeleteItem(ctx context.Context, id string) error {
	item, err := s.GetItem(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key("item", id))
	pipe.ZRem(ctx, s.indexKey("item"), id)
	pipe.ZRem(ctx, s.indexKey("item:"+string(item.Kind)), id)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Store) ListItems(ctx context.Context, kind domain.Kind) ([]*domain.Item, error) {
	index := "item"
	if kind != "" {
		index = "item:" + string(kind)
	}
	ids, err := s.members(ctx, index)
	if err != nil {
		return nil, err
	}
	raw, err := s.values(ctx, "item", ids)
	if err != nil {
		return nil, err
	}
	items := make([]*domain.Item, 0, len(raw))
	for _, data := range raw {
		var item domain.Item
		if err := json.Unmarshal(data, &item); err != nil {
			return nil, fmt.Errorf("failed to unmarshal item: %w", err)
		}
		items = append(items, &item)
	}
	return items, nil
}

func (s *Store) SaveSample(ctx context.Context, sample *domain.Sample) error {
	return s.put(ctx, "sample", sample.ID, sample)
}

func (s *Store) GetSample(ctx context.Context, id string) (*domain.Sample, error) {
	var sample domain.Sample
	ok, err := s.get(ctx, "sample", id, &sample)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: sample %s", domain.ErrNotFound, id)
	}
	return &sample, nil
}

func (s *Store) ListSamples(ctx context.Context) ([]*domain.Sample, error) {
	ids, err := s.members(ctx, "sample")
	if err != nil {
		return nil, err
	}
	raw, err := s.values(ctx, "sample", ids)
	if err != nil {
		return nil, err
	}
	samples := make([]*domain.Sample, 0, len(raw))
	for _, data := range raw {
		var sample domain.Sample
		if err := json.Unmarshal(data, &sample); err != nil {
			return nil, fmt.Errorf("failed to unmarshal sample: %w", err)
		}
		samples = append(samples, &sample)
	}
	return samples, nil
}

func (s *Store) SaveWorkflow(ctx context.Context, def *domain.Definition) error {
	return s.put(ctx, "workflow", def.ID, def)
}

func (s *Store) GetWorkflow(ctx context.Context, id string) (*domain.Definition, error) {
	var def domain.Definition
	ok, err := s.get(ctx, "workflow", id, &def)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrWorkflowNotFound, id)
	}
	return &def, nil
}

func (s *Store) ListWorkflows(ctx context.Context) ([]string, error) {
	return s.members(ctx, "workflow")
}

func (s *Store) GetSetting(ctx context.Context, key string) ([]string, error) {
	var values []string
	if _, err := s.get(ctx, "setting", key, &values); err != nil {
		return nil, err
	}
	return values, nil
}

func (s *Store) SetSetting(ctx context.Context, key string, values []string) error {
	return s.put(ctx, "setting", key, values)
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
