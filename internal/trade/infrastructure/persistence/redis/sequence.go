package redis

import (
	"context"
	"fmt"
	"time"
)

// Counter 原子计数，由 cache.RedisCache 实现
type Counter interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) (bool, error)
	Incr(ctx context.Context, key string) (int64, error)
}

// Sequence 基于 Redis INCR 的交易编号序列，key 不存在时从 start 开始
type Sequence struct {
	counter Counter
	key     string
	start   int64
}

// NewSequence 创建序列
func NewSequence(counter Counter, key string, start int64) *Sequence {
	return &Sequence{counter: counter, key: key, start: start}
}

func (s *Sequence) Next(ctx context.Context) (int64, error) {
	if _, err := s.counter.SetNX(ctx, s.key, s.start-1, 0); err != nil {
		return 0, fmt.Errorf("failed to seed sequence %s: %w", s.key, err)
	}
	id, err := s.counter.Incr(ctx, s.key)
	if err != nil {
		return 0, fmt.Errorf("failed to advance sequence %s: %w", s.key, err)
	}
	return id, nil
}
