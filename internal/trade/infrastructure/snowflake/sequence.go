// Package snowflake 基于分布式 ID 生成器的交易编号序列，不依赖数据库与 Redis
package snowflake

import (
	"context"
	"errors"
	"fmt"

	"github.com/wyfcoding/pkg/config"
	"github.com/wyfcoding/pkg/idgen"
)

// ErrGeneratorExhausted 生成器未能产出有效编号（如时钟回拨重试失败）
var ErrGeneratorExhausted = errors.New("id generator returned no id")

// Sequence 交易编号序列，编号全局唯一且随时间递增，但不连续
type Sequence struct {
	gen idgen.Generator
}

// NewSequence 按配置创建 snowflake 或 sonyflake 序列
func NewSequence(cfg config.SnowflakeConfig) (*Sequence, error) {
	gen, err := idgen.NewGenerator(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s id generator: %w", cfg.Type, err)
	}
	return NewSequenceWith(gen), nil
}

// NewSequenceWith 使用已有生成器
func NewSequenceWith(gen idgen.Generator) *Sequence {
	return &Sequence{gen: gen}
}

func (s *Sequence) Next(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	id := s.gen.Generate()
	if id <= 0 {
		return 0, ErrGeneratorExhausted
	}
	return id, nil
}
