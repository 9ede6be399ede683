package cache

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryHook 在进程内应答 GET/SET/SETNX/INCR，不建立网络连接
type memoryHook struct {
	mu     sync.Mutex
	values map[string]string
	err    error
}

func (h *memoryHook) DialHook(redis.DialHook) redis.DialHook {
	return func(context.Context, string, string) (net.Conn, error) {
		return nil, errors.New("dial disabled")
	}
}

func (h *memoryHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func (h *memoryHook) ProcessHook(redis.ProcessHook) redis.ProcessHook {
	return func(_ context.Context, cmd redis.Cmder) error {
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.err != nil {
			cmd.SetErr(h.err)
			return h.err
		}
		args := cmd.Args()
		key := fmt.Sprint(args[1])
		switch c := cmd.(type) {
		case *redis.StringCmd:
			v, ok := h.values[key]
			if !ok {
				c.SetErr(redis.Nil)
				return redis.Nil
			}
			c.SetVal(v)
		case *redis.StatusCmd:
			h.values[key] = toString(args[2])
			c.SetVal("OK")
		case *redis.BoolCmd:
			if _, ok := h.values[key]; ok {
				c.SetVal(false)
				return nil
			}
			h.values[key] = toString(args[2])
			c.SetVal(true)
		case *redis.IntCmd:
			n, _ := strconv.ParseInt(h.values[key], 10, 64)
			n++
			h.values[key] = strconv.FormatInt(n, 10)
			c.SetVal(n)
		default:
			return fmt.Errorf("unexpected command %s", cmd.Name())
		}
		return nil
	}
}

func toString(v any) string {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return fmt.Sprint(v)
}

func newTestCache(t *testing.T) (*RedisCache, *memoryHook) {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	hook := &memoryHook{values: make(map[string]string)}
	client.AddHook(hook)
	t.Cleanup(func() { _ = client.Close() })
	return &RedisCache{client: client}, hook
}

type quote struct {
	Book string `json:"book"`
	Rate string `json:"rate"`
}

func TestRedisCache_JSONRoundTrip(t *testing.T) {
	rc, _ := newTestCache(t)
	ctx := context.Background()

	var got quote
	hit, err := rc.GetJSON(ctx, "book:1", &got)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, rc.SetJSON(ctx, "book:1", quote{Book: "FX-BOOK-1", Rate: "0.0425"}, time.Minute))
	hit, err = rc.GetJSON(ctx, "book:1", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, quote{Book: "FX-BOOK-1", Rate: "0.0425"}, got)
}

func TestRedisCache_GetJSONErrors(t *testing.T) {
	rc, hook := newTestCache(t)
	ctx := context.Background()

	hook.values["bad"] = "{not json"
	var got quote
	hit, err := rc.GetJSON(ctx, "bad", &got)
	assert.False(t, hit)
	assert.ErrorContains(t, err, "failed to decode cached value")

	hook.err = errors.New("connection reset")
	_, err = rc.GetJSON(ctx, "book:1", &got)
	assert.EqualError(t, err, "connection reset")
	assert.EqualError(t, rc.SetJSON(ctx, "book:1", quote{}, 0), "connection reset")
}

func TestRedisCache_SetNXAndIncr(t *testing.T) {
	rc, _ := newTestCache(t)
	ctx := context.Background()

	ok, err := rc.SetNX(ctx, "trade:id", 9999, 0)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = rc.SetNX(ctx, "trade:id", 1, 0)
	require.NoError(t, err)
	assert.False(t, ok)

	id, err := rc.Incr(ctx, "trade:id")
	require.NoError(t, err)
	assert.Equal(t, int64(10000), id)
}
