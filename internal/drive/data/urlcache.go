package data

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lk2023060901/cloud-drive-backend/internal/drive/biz"
)

const urlCachePrefix = "drive:presigned:"

// URLCache 基于 Redis 的预签名 URL 缓存
type URLCache struct {
	client *redis.Client
}

// NewURLCache 创建预签名 URL 缓存
func NewURLCache(client *redis.Client) biz.URLCache {
	return &URLCache{client: client}
}

// Get 读取缓存的 URL，未命中返回空串
func (c *URLCache) Get(ctx context.Context, key string) (string, error) {
	val, err := c.client.Get(ctx, urlCachePrefix+key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

// Set 写入缓存，ttl 必须短于签名本身的有效期
func (c *URLCache) Set(ctx context.Context, key, url string, ttl time.Duration) error {
	return c.client.Set(ctx, urlCachePrefix+key, url, ttl).Err()
}
