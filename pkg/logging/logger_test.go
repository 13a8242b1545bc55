package logging

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONFileOutputCarriesContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	l := New(Config{Level: "debug", Format: "json", Output: path, Component: "lifecycle"})

	ctx := ContextWithUserID(ContextWithRequestID(context.Background(), "http-1"), "3")
	l.WithContext(ctx).WithRequestID("req-1").WithDuration(1500*time.Millisecond).Info("advanced")
	l.StatusChangeLog("req-1", "Pending", "Under review", "auto", "")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := splitLines(data)
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &first))
	assert.Equal(t, "lifecycle", first["component"])
	assert.Equal(t, "http-1", first["request_id"])
	assert.Equal(t, "3", first["user_id"])
	assert.Equal(t, "req-1", first["access_request_id"])
	assert.Equal(t, float64(1500), first["duration_ms"])

	var second map[string]any
	require.NoError(t, json.Unmarshal(lines[1], &second))
	assert.Equal(t, "Under review", second["to"])
	assert.Equal(t, "auto", second["source"])
}

func TestWithErrorNil(t *testing.T) {
	l := Nop()
	assert.Same(t, l, l.WithError(nil))
	assert.Same(t, l, l.WithContext(context.Background()))
	assert.Equal(t, "server", l.Named("server").Component())
}

func splitLines(data []byte) [][]byte {
	var out [][]byte
	start := 0
	for i, b := range data {
		if b == '\n' {
			if i > start {
				out = append(out, data[start:i])
			}
			start = i + 1
		}
	}
	return out
}
