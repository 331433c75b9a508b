// Package logging builds the slog handlers used by the command line tools.
package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	console "github.com/phsym/console-slog"
	slogcommon "github.com/samber/slog-common"
)

// Formats accepted by New.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

const timeFormat = "2006-01-02 15:04:05.000"

// Options configures New.
type Options struct {
	Format  string
	Level   slog.Level
	NoColor bool
}

// ParseLevel parses debug, info, warn or error (any case, with optional
// +N/-N offsets) into a level.
func ParseLevel(s string) (slog.Level, error) {
	var lv slog.LevelVar
	if err := lv.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("logging: %w", err)
	}
	return lv.Level(), nil
}

// New returns a logger writing to w.
func New(w io.Writer, opts Options) (*slog.Logger, error) {
	var h slog.Handler
	switch strings.ToLower(opts.Format) {
	case "", FormatConsole:
		h = console.NewHandler(w, &console.HandlerOptions{
			Level:      opts.Level,
			NoColor:    opts.NoColor,
			TimeFormat: timeFormat,
		})
	case FormatJSON:
		h = NewJSONHandler(w, opts.Level)
	default:
		return nil, fmt.Errorf("logging: unknown format %q", opts.Format)
	}
	return slog.New(h), nil
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// JSONHandler writes one flat JSON object per record: timestamp, level,
// message, error (if any) and the remaining attributes under "extra".
type JSONHandler struct {
	mu     *sync.Mutex
	w      io.Writer
	level  slog.Leveler
	attrs  []slog.Attr
	groups []string
}

// NewJSONHandler returns a JSONHandler writing to w.
func NewJSONHandler(w io.Writer, level slog.Leveler) *JSONHandler {
	return &JSONHandler{mu: new(sync.Mutex), w: w, level: level}
}

var errorKeys = []string{"error", "err"}

func (h *JSONHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

func (h *JSONHandler) Handle(_ context.Context, r slog.Record) error {
	b, err := json.Marshal(h.payload(&r))
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.w.Write(append(b, '\n'))
	return err
}

func (h *JSONHandler) payload(r *slog.Record) map[string]any {
	attrs := slogcommon.AppendRecordAttrsToAttrs(h.attrs, h.groups, r)
	attrs = slogcommon.ReplaceAttrs(stringers, []string{}, attrs...)
	attrs = slogcommon.RemoveEmptyAttrs(attrs)
	extra := slogcommon.AttrsToMap(attrs...)

	payload := map[string]any{
		"timestamp": r.Time.UTC(),
		"level":     r.Level.String(),
		"message":   r.Message,
	}
	for _, k := range errorKeys {
		if err, ok := extra[k].(error); ok {
			payload[k] = slogcommon.FormatError(err)
			delete(extra, k)
			break
		}
	}
	if len(extra) > 0 {
		payload["extra"] = extra
	}
	return payload
}

// stringers renders values with a String method, such as box types, as
// text instead of their underlying JSON form.
func stringers(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindAny {
		return a
	}
	if _, ok := a.Value.Any().(error); ok {
		return a
	}
	if s, ok := a.Value.Any().(fmt.Stringer); ok {
		return slog.String(a.Key, s.String())
	}
	return a
}

func (h *JSONHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.attrs = slogcommon.AppendAttrsToGroup(h.groups, h.attrs, attrs...)
	return &c
}

func (h *JSONHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.groups = append(append([]string{}, h.groups...), name)
	return &c
}
