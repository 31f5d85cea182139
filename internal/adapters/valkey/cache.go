package valkey

import (
	"context"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"
)

// keyPrefix namespaces every key this service writes.
const keyPrefix = "parkfinder:"

// Cache implements ports.CacheService using Valkey (Redis-compatible).
type Cache struct {
	client valkey.Client
}

// New creates a new Valkey cache client.
func New(addr string) (*Cache, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("valkey connect: %w", err)
	}
	return &Cache{client: client}, nil
}

// Get retrieves a value by key. A missing key is reported as an error so
// callers fall through to the source.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := c.client.Do(ctx, c.client.B().Get().Key(keyPrefix+key).Build()).AsBytes()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, fmt.Errorf("cache miss: %s", key)
		}
		return nil, err
	}
	return b, nil
}

// Set stores a value with a TTL in seconds.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	cmd := c.client.B().Set().Key(keyPrefix + key).Value(valkey.BinaryString(value)).
		Ex(time.Duration(ttlSeconds) * time.Second).Build()
	return c.client.Do(ctx, cmd).Error()
}

// Delete removes a key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.client.Do(ctx, c.client.B().Del().Key(keyPrefix+key).Build()).Error()
}

// DeletePrefix removes every key starting with prefix. It is used to drop
// cached searches after the dataset was refreshed.
func (c *Cache) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	var (
		cursor  uint64
		deleted int
	)
	for {
		entry, err := c.client.Do(ctx,
			c.client.B().Scan().Cursor(cursor).Match(keyPrefix+prefix+"*").Count(500).Build(),
		).AsScanEntry()
		if err != nil {
			return deleted, fmt.Errorf("scan %s: %w", prefix, err)
		}
		if len(entry.Elements) > 0 {
			n, err := c.client.Do(ctx, c.client.B().Del().Key(entry.Elements...).Build()).AsInt64()
			if err != nil {
				return deleted, fmt.Errorf("delete %s: %w", prefix, err)
			}
			deleted += int(n)
		}
		if entry.Cursor == 0 {
			return deleted, nil
		}
		cursor = entry.Cursor
	}
}

// Ping checks the connection.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Do(ctx, c.client.B().Ping().Build()).Error()
}

// Close releases the client.
func (c *Cache) Close() {
	c.client.Close()
}
