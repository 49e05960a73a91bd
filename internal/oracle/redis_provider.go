package oracle

import (
	"context"
	"time"

	"github.com/blues/launchpad/internal/logger"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// RedisProvider 从 redis 哈希表读取价格，字段为资产ID，值为十进制字符串
type RedisProvider struct {
	client  *redis.Client
	key     string
	timeout time.Duration
}

// NewRedisProvider 创建 redis 价格来源
func NewRedisProvider(client *redis.Client, key string) *RedisProvider {
	return &RedisProvider{client: client, key: key, timeout: 2 * time.Second}
}

// GetPrice 获取价格
func (p *RedisProvider) GetPrice(asset string) (decimal.Decimal, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	raw, err := p.client.HGet(ctx, p.key, asset).Result()
	if err != nil {
		if err != redis.Nil {
			logger.Warn("Failed to read price of %s from redis: %v", asset, err)
		}
		return decimal.Zero, false
	}

	price, err := decimal.NewFromString(raw)
	if err != nil {
		logger.Warn("Invalid price %q for %s in redis: %v", raw, asset, err)
		return decimal.Zero, false
	}
	return price, true
}

// SetPrice 写入价格，供喂价程序使用
func (p *RedisProvider) SetPrice(ctx context.Context, asset string, price decimal.Decimal) error {
	return p.client.HSet(ctx, p.key, asset, price.String()).Err()
}
