package redis

import (
	"context"
	"time"

	"github.com/wyfcoding/swaptrading/internal/referencedata/domain"
	"github.com/wyfcoding/swaptrading/pkg/logger"
)

const keyPrefix = "refdata:"

// JSONCache 缓存读写，由 cache.RedisCache 实现
type JSONCache interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, expiration time.Duration) error
}

// CachedGateway 参考数据读缓存，只缓存命中结果，缓存故障时回源
type CachedGateway struct {
	next  domain.Gateway
	cache JSONCache
	ttl   time.Duration
}

// NewCachedGateway 创建带缓存的参考数据查询
func NewCachedGateway(next domain.Gateway, cache JSONCache, ttl time.Duration) *CachedGateway {
	return &CachedGateway{next: next, cache: cache, ttl: ttl}
}

func (g *CachedGateway) FindBook(ctx context.Context, ref domain.Ref) (*domain.Book, error) {
	return cached(ctx, g, "book:"+ref.Key(), ref, func() (*domain.Book, error) {
		return g.next.FindBook(ctx, ref)
	})
}

func (g *CachedGateway) FindCounterparty(ctx context.Context, ref domain.Ref) (*domain.Counterparty, error) {
	return cached(ctx, g, "counterparty:"+ref.Key(), ref, func() (*domain.Counterparty, error) {
		return g.next.FindCounterparty(ctx, ref)
	})
}

func (g *CachedGateway) FindCode(ctx context.Context, kind domain.Kind, ref domain.Ref) (*domain.Code, error) {
	return cached(ctx, g, "code:"+string(kind)+":"+ref.Key(), ref, func() (*domain.Code, error) {
		return g.next.FindCode(ctx, kind, ref)
	})
}

func cached[T any](ctx context.Context, g *CachedGateway, key string, ref domain.Ref, load func() (*T, error)) (*T, error) {
	if ref.IsZero() {
		return nil, nil
	}
	key = keyPrefix + key

	var hit T
	ok, err := g.cache.GetJSON(ctx, key, &hit)
	if err != nil {
		logger.Warn(ctx, "reference data cache read failed", "key", key, "error", err)
	} else if ok {
		return &hit, nil
	}

	v, err := load()
	if err != nil || v == nil {
		return v, err
	}
	if err := g.cache.SetJSON(ctx, key, v, g.ttl); err != nil {
		logger.Warn(ctx, "reference data cache write failed", "key", key, "error", err)
	}
	return v, nil
}
