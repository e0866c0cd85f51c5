package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

type Config struct {
	Level  string
	Format string // "text", "json", "console"
	Output io.Writer
	// File, when set, receives a copy of every record alongside Output.
	File string
}

var (
	once sync.Once
	lg   *slog.Logger
	file *os.File
)

func Init(cfg Config) error {
	var initErr error
	once.Do(func() {
		out := cfg.Output
		if out == nil {
			out = os.Stdout
		}
		if cfg.File != "" {
			f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				initErr = fmt.Errorf("open log file: %w", err)
			} else {
				file = f
				out = io.MultiWriter(out, f)
			}
		}
		lg = slog.New(newHandler(cfg.Format, out, parseLevel(cfg.Level)))
		slog.SetDefault(lg)
	})
	return initErr
}

func L() *slog.Logger {
	if lg == nil {
		_ = Init(Config{Level: "debug", Format: "console"})
	}
	return lg
}

// Component returns the default logger tagged with a component name; the
// console handler renders it as a bracketed prefix.
func Component(name string) *slog.Logger {
	return L().With(componentKey, name)
}

func Close() error {
	if file == nil {
		return nil
	}
	return file.Close()
}

func newHandler(format string, out io.Writer, level slog.Level) slog.Handler {
	switch format {
	case "json":
		return slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	case "text":
		return slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})
	default:
		return &consoleHandler{mu: &sync.Mutex{}, w: out, level: level}
	}
}

func parseLevel(levelStr string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

const componentKey = "component"

// consoleHandler outputs human-friendly log lines:
//
//	12:00:00 INFO  [grab] session started  actor=3f0c... target=entity:7
type consoleHandler struct {
	mu        *sync.Mutex
	w         io.Writer
	level     slog.Level
	attrs     []slog.Attr
	group     string
	component string
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(r.Time.Format(time.TimeOnly))
	b.WriteByte(' ')
	b.WriteString(levelTag(r.Level))
	b.WriteByte(' ')

	component := h.component
	var rest []slog.Attr
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == componentKey && h.group == "" {
			component = a.Value.String()
			return true
		}
		rest = append(rest, a)
		return true
	})
	if component != "" {
		b.WriteString("[" + component + "] ")
	}
	b.WriteString(r.Message)

	for _, a := range h.attrs {
		b.WriteString(formatAttr(h.group, a))
	}
	for _, a := range rest {
		b.WriteString(formatAttr(h.group, a))
	}
	b.WriteByte('\n')

	if h.mu != nil {
		h.mu.Lock()
		defer h.mu.Unlock()
	}
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := h.clone()
	for _, a := range attrs {
		if a.Key == componentKey && h.group == "" {
			next.component = a.Value.String()
			continue
		}
		next.attrs = append(next.attrs, a)
	}
	return next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	next := h.clone()
	if h.group != "" {
		next.group = h.group + "." + name
	} else {
		next.group = name
	}
	return next
}

func (h *consoleHandler) clone() *consoleHandler {
	return &consoleHandler{
		mu:        h.mu,
		w:         h.w,
		level:     h.level,
		attrs:     append([]slog.Attr{}, h.attrs...),
		group:     h.group,
		component: h.component,
	}
}

func levelTag(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "ERROR"
	case l >= slog.LevelWarn:
		return "WARN "
	case l >= slog.LevelInfo:
		return "INFO "
	default:
		return "DEBUG"
	}
}

func formatAttr(group string, a slog.Attr) string {
	key := a.Key
	if group != "" {
		key = group + "." + key
	}
	return fmt.Sprintf("  %s=%v", key, a.Value)
}
