package snowflake

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/pkg/config"
)

type fixedGenerator int64

func (g fixedGenerator) Generate() int64 { return int64(g) }

func TestSequence_NextIsUniqueAndIncreasing(t *testing.T) {
	for _, typ := range []string{"snowflake", "sonyflake"} {
		t.Run(typ, func(t *testing.T) {
			seq, err := NewSequence(config.SnowflakeConfig{Type: typ, MachineID: 7})
			require.NoError(t, err)

			ctx := context.Background()
			seen := make(map[int64]bool)
			var last int64
			for range 50 {
				id, err := seq.Next(ctx)
				require.NoError(t, err)
				assert.Greater(t, id, last)
				assert.False(t, seen[id])
				seen[id] = true
				last = id
			}
		})
	}
}

func TestSequence_UnsupportedType(t *testing.T) {
	_, err := NewSequence(config.SnowflakeConfig{Type: "uuid"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported id generator type")
}

func TestSequence_GeneratorFailure(t *testing.T) {
	_, err := NewSequenceWith(fixedGenerator(0)).Next(context.Background())
	assert.ErrorIs(t, err, ErrGeneratorExhausted)

	id, err := NewSequenceWith(fixedGenerator(42)).Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestSequence_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSequenceWith(fixedGenerator(42)).Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
