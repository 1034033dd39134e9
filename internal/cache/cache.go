package cache

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"modelnormalizer/internal/ordered"
	"modelnormalizer/internal/serializer"
)

// Client wraps redis.Client but fails safe by swallowing connectivity errors.
type Client struct {
	client  *redis.Client
	prefix  string
	logger  *zap.Logger
	encoder serializer.JSONEncoder
}

// Option configures a Client.
type Option func(c *Client)

// WithPrefix namespaces every key, e.g. "modelnormalizer:".
func WithPrefix(prefix string) Option {
	return func(c *Client) { c.prefix = prefix }
}

// WithLogger logs swallowed redis errors at warn level.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a new Redis client.
func New(addr, password string, db int, opts ...Option) *Client {
	c := &Client{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ping reports whether redis is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

// Close closes the underlying connection pool.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Get returns value or nil if missing or redis unavailable.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	if c == nil || c.client == nil {
		return nil, nil
	}
	res, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		// fail safe: behave like cache miss
		c.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return nil, nil
	}
	return res, nil
}

// Set stores value with TTL, ignoring redis errors.
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if c == nil || c.client == nil {
		return nil
	}
	if err := c.client.Set(ctx, c.key(key), value, ttl).Err(); err != nil {
		// fail safe: ignore redis errors
		c.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
		return nil
	}
	return nil
}

// Delete removes keys, ignoring redis errors.
func (c *Client) Delete(ctx context.Context, keys ...string) error {
	if c == nil || c.client == nil || len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}
	if err := c.client.Del(ctx, full...).Err(); err != nil {
		c.logger.Warn("cache delete failed", zap.Strings("keys", keys), zap.Error(err))
		return nil
	}
	return nil
}

// GetRepresentation returns a cached representation with its key order intact.
func (c *Client) GetRepresentation(ctx context.Context, key string) (*ordered.Map[any], bool) {
	data, _ := c.Get(ctx, key)
	if data == nil {
		return nil, false
	}
	decoded, err := c.encoder.Decode(data)
	if err != nil {
		c.logger.Warn("cache entry is not valid json", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	rep, ok := decoded.(*ordered.Map[any])
	return rep, ok
}

// SetRepresentation stores a normalized representation as JSON.
func (c *Client) SetRepresentation(ctx context.Context, key string, rep any, ttl time.Duration) error {
	if c == nil || c.client == nil {
		return nil
	}
	data, err := c.encoder.Encode(rep)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, data, ttl)
}

// RecordKey builds the cache key of a record loaded with the given relations.
func RecordKey(resource, id string, with []string) string {
	key := "record:" + resource + ":" + id
	if len(with) > 0 {
		key += ":" + strings.Join(with, ",")
	}
	return key
}

func (c *Client) key(k string) string {
	return c.prefix + k
}
