// Package logutil builds the slog loggers gpusieve writes its diagnostics with.
package logutil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// LevelTrace sits below debug and carries per-launch lane detail.
const LevelTrace = slog.LevelDebug - 4

type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

type Options struct {
	Level  slog.Level
	Format Format
	// Source adds caller locations at any level. They are always added at
	// debug and below.
	Source bool
}

func New(w io.Writer, opts Options) *slog.Logger {
	hopts := &slog.HandlerOptions{
		Level:       opts.Level,
		AddSource:   opts.Source || opts.Level <= slog.LevelDebug,
		ReplaceAttr: replaceAttr,
	}
	if opts.Format == FormatJSON {
		return slog.New(slog.NewJSONHandler(w, hopts))
	}
	return slog.New(slog.NewTextHandler(w, hopts))
}

// replaceAttr names the trace level and shortens sources to file:line.
func replaceAttr(groups []string, a slog.Attr) slog.Attr {
	if len(groups) > 0 {
		return a
	}
	switch a.Key {
	case slog.LevelKey:
		if lvl, ok := a.Value.Any().(slog.Level); ok && lvl <= LevelTrace {
			a.Value = slog.StringValue("TRACE")
		}
	case slog.SourceKey:
		if src, ok := a.Value.Any().(*slog.Source); ok && src != nil {
			a.Value = slog.StringValue(fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
		}
	}
	return a
}

// ParseLevel accepts trace, debug, info, warn and error.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return FormatText, fmt.Errorf("unknown log format %q", s)
	}
}

// Trace logs msg at LevelTrace, attributed to the caller. A nil logger
// means slog.Default.
func Trace(l *slog.Logger, msg string, args ...any) {
	if l == nil {
		l = slog.Default()
	}
	ctx := context.Background()
	if !l.Enabled(ctx, LevelTrace) {
		return
	}
	var pcs [1]uintptr
	runtime.Callers(2, pcs[:])
	r := slog.NewRecord(time.Now(), LevelTrace, msg, pcs[0])
	r.Add(args...)
	_ = l.Handler().Handle(ctx, r)
}
