package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug":  slog.LevelDebug,
		"INFO":   slog.LevelInfo,
		"warn":   slog.LevelWarn,
		"error":  slog.LevelError,
		"info+2": slog.LevelInfo + 2,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

type fourcc [4]byte

func (f fourcc) String() string { return string(f[:]) }

func TestJSONHandler(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&buf, Options{Format: FormatJSON, Level: slog.LevelInfo})
	require.NoError(t, err)

	log.Debug("dropped")
	log.With("file", "init.mp4").Warn("placeholder row",
		"box", fourcc{'s', 'e', 'n', 'c'}, "offset", 1024, "err", errors.New("unknown IV size"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &got))
	assert.Equal(t, "WARN", got["level"])
	assert.Equal(t, "placeholder row", got["message"])
	assert.Contains(t, got, "timestamp")
	assert.Contains(t, got, "err")

	extra, ok := got["extra"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "senc", extra["box"])
	assert.Equal(t, float64(1024), extra["offset"])
	assert.Equal(t, "init.mp4", extra["file"])
	assert.NotContains(t, extra, "err")
}

func TestJSONHandlerGroup(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewJSONHandler(&buf, slog.LevelDebug)).WithGroup("walk")
	log.Debug("row", "depth", 2)

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	extra := got["extra"].(map[string]any)
	assert.Equal(t, map[string]any{"depth": float64(2)}, extra["walk"])
}

func TestConsoleHandler(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&buf, Options{Level: slog.LevelDebug, NoColor: true})
	require.NoError(t, err)
	log.Info("walk done", "rows", 12)
	assert.Contains(t, buf.String(), "walk done")
	assert.Contains(t, buf.String(), "rows=12")
}

func TestUnknownFormat(t *testing.T) {
	_, err := New(&bytes.Buffer{}, Options{Format: "xml"})
	assert.Error(t, err)
}
