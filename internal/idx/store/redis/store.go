package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"selfid/internal/idx"
	"selfid/pkg/domain"
	"selfid/pkg/platform/sentinel"
)

const defaultKeyPrefix = "idx:doc:"

// RedisStore keeps each document as a JSON value under prefix+did+":"+key.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// RedisStoreOption configures a RedisStore.
type RedisStoreOption func(*RedisStore)

// WithKeyPrefix overrides the key namespace.
func WithKeyPrefix(prefix string) RedisStoreOption {
	return func(s *RedisStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

func New(client *redis.Client, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{client: client, prefix: defaultKeyPrefix}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

type record struct {
	Content   json.RawMessage `json:"content"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func (s *RedisStore) key(id domain.DID, key domain.DocumentKey) string {
	return s.prefix + id.String() + ":" + key.String()
}

func (s *RedisStore) Get(ctx context.Context, id domain.DID, key domain.DocumentKey) (*idx.Document, error) {
	raw, err := s.client.Get(ctx, s.key(id, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("document %s/%s: %w", id, key, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w: %w", sentinel.ErrUnavailable, err)
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return &idx.Document{DID: id, Key: key, Content: rec.Content, UpdatedAt: rec.UpdatedAt}, nil
}

func (s *RedisStore) Put(ctx context.Context, doc idx.Document) error {
	raw, err := json.Marshal(record{Content: doc.Content, UpdatedAt: doc.UpdatedAt})
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if err := s.client.Set(ctx, s.key(doc.DID, doc.Key), raw, 0).Err(); err != nil {
		return fmt.Errorf("put document: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}
