package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"catalog-service/internal/models"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb *redis.Client
	ttl time.Duration
}

// setIfNewer writes the entry only when the cached version is older. Without
// the guard a slow read-through fill can overwrite the copy a concurrent
// mutation just wrote, and the stale copy would then be served until the TTL
// expires.
var setIfNewer = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur then
	local decoded = cjson.decode(cur)
	if decoded['version'] and tonumber(decoded['version']) >= tonumber(ARGV[2]) then
		return 0
	end
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return 1
`)

// cacheEntry is the stored shape. Active is carried explicitly because the
// product's JSON form omits it; a soft-deleted product is cached as a
// tombstone entry so stale fills of earlier versions cannot resurrect it.
type cacheEntry struct {
	Version int64           `json:"version"`
	Active  bool            `json:"active"`
	Product *models.Product `json:"product"`
}

// NewClient creates a new Redis client used as a read-through product
// cache on the catalog side.
func NewClient(addr, password string, db int, ttl time.Duration) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb, ttl: ttl}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func productKey(id string) string {
	return fmt.Sprintf("product:%s", id)
}

// GetProduct returns the cached product, or a miss via the second return
// when the key is absent. Tombstone entries are returned with Active=false;
// the caller decides how to surface them.
func (c *Client) GetProduct(ctx context.Context, id string) (*models.Product, bool, error) {
	raw, err := c.rdb.Get(ctx, productKey(id)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var entry cacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil || entry.Product == nil {
		return nil, false, fmt.Errorf("failed to decode cached product: %w", err)
	}
	entry.Product.Active = entry.Active
	return entry.Product, true, nil
}

// SetProduct caches a product with the configured TTL unless a newer
// version is already cached.
func (c *Client) SetProduct(ctx context.Context, product *models.Product) error {
	raw, err := json.Marshal(cacheEntry{
		Version: product.Version,
		Active:  product.Active,
		Product: product,
	})
	if err != nil {
		return fmt.Errorf("failed to encode product for cache: %w", err)
	}
	return setIfNewer.Run(ctx, c.rdb,
		[]string{productKey(product.ID)},
		raw, product.Version, c.ttl.Milliseconds()).Err()
}

// InvalidateProduct evicts a product outright. Mutations prefer SetProduct
// with the post-mutation state; this is the fallback when that write fails.
func (c *Client) InvalidateProduct(ctx context.Context, id string) error {
	return c.rdb.Del(ctx, productKey(id)).Err()
}
