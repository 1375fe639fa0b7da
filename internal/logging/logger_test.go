package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFiltering(t *testing.T) {
	tests := []struct {
		level LogLevel
		want  int
	}{
		{LevelDebug, 4},
		{LevelInfo, 3},
		{LevelWarn, 2},
		{LevelError, 1},
		{"bogus", 4},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			var buf bytes.Buffer
			l := NewWithWriter(&buf, tt.level)

			l.Debug("test", "d", nil)
			l.Info("test", "i", nil)
			l.Warn("test", "w", nil)
			l.Error("test", "e", errors.New("boom"), nil)

			lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
			assert.Len(t, lines, tt.want)
			assert.Len(t, l.GetHistory(0), tt.want)
		})
	}
}

func TestJSONFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, LevelDebug)

	l.Warn("framebuffer", "size mismatch", map[string]interface{}{"width": 64})

	var rec map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "warn", rec["level"])
	assert.Equal(t, "framebuffer", rec["component"])
	assert.Equal(t, "physicam", rec["app"])
	assert.Equal(t, float64(64), rec["width"])
}

func TestHistoryBounded(t *testing.T) {
	l := newLogger(&bytes.Buffer{}, LevelDebug, 3)
	for i := 0; i < 10; i++ {
		l.Info("test", "msg", map[string]interface{}{"i": i})
	}

	h := l.GetHistory(0)
	require.Len(t, h, 3)
	assert.Equal(t, "i=9", h[2].Data)

	last := l.GetHistory(1)
	require.Len(t, last, 1)
	assert.Equal(t, "i=9", last[0].Data)
}

func TestErrorDataAndCount(t *testing.T) {
	l := NewNop()
	l.Error("pipeline", "attach failed", errors.New("incomplete"), map[string]interface{}{"b": 2, "a": 1})
	l.Warn("pipeline", "w", nil)

	h := l.GetHistory(0)
	require.Len(t, h, 2)
	if h[0].Data != "a=1, b=2, error=incomplete" {
		t.Errorf("unexpected data %q", h[0].Data)
	}
	assert.Equal(t, 1, l.CountLevel(LevelError))
	assert.Equal(t, 1, l.CountLevel(LevelWarn))
	assert.Equal(t, 0, l.CountLevel(LevelInfo))
}

func TestNewWritesFile(t *testing.T) {
	dir := t.TempDir()
	l, err := New(&Config{LogDir: dir, Level: LevelDebug, MaxHistory: 10})
	require.NoError(t, err)

	l.Info("test", "hello", nil)
	require.NoError(t, l.Close())

	data, err := os.ReadFile(l.GetLogPath())
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
}
