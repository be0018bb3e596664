package geocode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/localbite/internal/location"
	"github.com/hitoshi/localbite/internal/metrics"
	"github.com/hitoshi/localbite/internal/model"
)

// Cache はジオコーディング結果のキャッシュ。
// 見つからない場合は (zero, false, nil) を返す。
type Cache interface {
	Get(ctx context.Context, key string) (model.Point, bool, error)
	Set(ctx context.Context, key string, p model.Point, ttl time.Duration) error
}

// RedisCache はRedisを使用したCacheの実装。
type RedisCache struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisCache はRedisCacheを生成する。
func NewRedisCache(rdb *redis.Client) *RedisCache {
	return &RedisCache{rdb: rdb, prefix: "localbite:geocode:"}
}

// NewRedisClient はredis://形式のURLからクライアントを生成する。
func NewRedisClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("REDIS_URLのパースに失敗しました: %w", err)
	}
	return redis.NewClient(opts), nil
}

type cachedPoint struct {
	Lng float64 `json:"lng"`
	Lat float64 `json:"lat"`
}

// Get はキャッシュから座標を取得する。
func (c *RedisCache) Get(ctx context.Context, key string) (model.Point, bool, error) {
	val, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Point{}, false, nil
	}
	if err != nil {
		return model.Point{}, false, fmt.Errorf("キャッシュの取得に失敗しました: %w", err)
	}

	var cp cachedPoint
	if err := json.Unmarshal(val, &cp); err != nil {
		return model.Point{}, false, fmt.Errorf("キャッシュ値のデコードに失敗しました: %w", err)
	}
	return model.Point{Lng: cp.Lng, Lat: cp.Lat}, true, nil
}

// Set は座標をTTL付きでキャッシュに保存する。
func (c *RedisCache) Set(ctx context.Context, key string, p model.Point, ttl time.Duration) error {
	val, err := json.Marshal(cachedPoint{Lng: p.Lng, Lat: p.Lat})
	if err != nil {
		return fmt.Errorf("キャッシュ値のエンコードに失敗しました: %w", err)
	}
	if err := c.rdb.Set(ctx, c.prefix+key, val, ttl).Err(); err != nil {
		return fmt.Errorf("キャッシュの保存に失敗しました: %w", err)
	}
	return nil
}

// CachedGeocoder は問い合わせ文字列ごとに結果をキャッシュする。
// キャッシュの障害は呼び出しを失敗させず、プロバイダへの問い合わせにフォールバックする。
type CachedGeocoder struct {
	next    Geocoder
	cache   Cache
	ttl     time.Duration
	metrics metrics.MetricsCollector
	logger  *slog.Logger
}

// NewCachedGeocoder はCachedGeocoderを生成する。
func NewCachedGeocoder(next Geocoder, cache Cache, ttl time.Duration, logger *slog.Logger, mc metrics.MetricsCollector) *CachedGeocoder {
	if mc == nil {
		mc = metrics.NopCollector{}
	}
	return &CachedGeocoder{next: next, cache: cache, ttl: ttl, metrics: mc, logger: logger}
}

// Geocode はキャッシュを参照し、なければ下位のGeocoderに問い合わせて結果を保存する。
// 一致なしの結果はキャッシュしない。
func (g *CachedGeocoder) Geocode(ctx context.Context, query string) (model.Point, error) {
	key := location.Normalize(query)

	p, ok, err := g.cache.Get(ctx, key)
	if err != nil {
		g.logger.Warn("ジオコーディングキャッシュの参照に失敗しました", slog.String("error", err.Error()))
	} else if ok {
		g.metrics.RecordGeocode(metrics.GeocodeOutcomeCached, 0)
		return p, nil
	}

	p, err = g.next.Geocode(ctx, query)
	if err != nil {
		return model.Point{}, err
	}

	if err := g.cache.Set(ctx, key, p, g.ttl); err != nil {
		g.logger.Warn("ジオコーディングキャッシュの保存に失敗しました", slog.String("error", err.Error()))
	}
	return p, nil
}

// compile-time interface check
var _ Geocoder = (*CachedGeocoder)(nil)
var _ Cache = (*RedisCache)(nil)
