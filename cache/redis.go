package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const productTTL = 5 * time.Minute

func InitRedis(logger *zap.Logger) (*redis.Client, error) {
	host := getEnv("REDIS_HOST", "localhost")
	port := getEnv("REDIS_PORT", "6379")
	password := getEnv("REDIS_PASSWORD", "")

	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", host, port),
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis connection established")
	return rdb, nil
}

// ProductCache is a read-through cache over the product catalog. The
// finalizer invalidates entries after a committed stock decrement so reads
// never serve a long-stale count.
type ProductCache struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewProductCache(rdb *redis.Client, logger *zap.Logger) *ProductCache {
	return &ProductCache{rdb: rdb, logger: logger}
}

func productKey(id int64) string {
	return "product:" + strconv.FormatInt(id, 10)
}

func (c *ProductCache) Get(ctx context.Context, id int64, dest any) bool {
	data, err := c.rdb.Get(ctx, productKey(id)).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, dest) == nil
}

func (c *ProductCache) Set(ctx context.Context, id int64, product any) {
	data, err := json.Marshal(product)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, productKey(id), data, productTTL).Err(); err != nil {
		c.logger.Warn("Failed to cache product", zap.Int64("product_id", id), zap.Error(err))
	}
}

// InvalidateProducts satisfies the finalizer's Invalidator contract.
func (c *ProductCache) InvalidateProducts(ctx context.Context, productIDs []int64) {
	if len(productIDs) == 0 {
		return
	}
	keys := make([]string, len(productIDs))
	for i, id := range productIDs {
		keys[i] = productKey(id)
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("Failed to invalidate product cache", zap.Error(err))
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
