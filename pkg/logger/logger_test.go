package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_WritesContextFieldsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trade.log")
	l := Init(Config{Service: "trade-service", Module: "test", Level: "debug", Output: "file", FilePath: path, MaxSize: 1})
	require.NotNil(t, l)
	assert.Same(t, l, Default())

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-1")
	ctx = context.WithValue(ctx, UserIDKey, "simon")
	Info(ctx, "trade created", "trade_id", 10000)
	Debug(context.Background(), "cache miss")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := splitLines(data)
	require.Len(t, lines, 2)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "trade created", entry["msg"])
	assert.Equal(t, "trade-service", entry["service"])
	assert.Equal(t, "test", entry["module"])
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "simon", entry["user_id"])
	assert.EqualValues(t, 10000, entry["trade_id"])
	assert.Contains(t, entry, "timestamp")
}

func TestInit_LevelFiltersDebug(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trade.log")
	Init(Config{Service: "trade-service", Level: "warn", Output: "file", FilePath: path, MaxSize: 1})

	Info(context.Background(), "dropped")
	Warn(context.Background(), "kept")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := splitLines(data)
	require.Len(t, lines, 1)
	assert.Contains(t, string(lines[0]), `"msg":"kept"`)
}

func splitLines(data []byte) [][]byte {
	return bytes.Split(bytes.TrimSpace(data), []byte("\n"))
}
