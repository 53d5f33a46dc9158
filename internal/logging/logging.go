// Package logging configures the slog logger shared by hgtload components.
//
// Components take their logger from Component unless one is injected:
//
//	log := logging.Component("import")
//	log.Info("importing file", "current", 3, "total", 12)
//
// Until InitWithWriter runs, records go to stderr as text at info level.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
)

// Output formats accepted by InitWithWriter.
const (
	FormatAuto = "auto"
	FormatText = "text"
	FormatJSON = "json"
)

// Logger is the global logger instance.
var Logger *slog.Logger

// Init writes to stderr with the given level, as JSON when jsonFormat is set.
func Init(level slog.Level, jsonFormat bool) {
	format := FormatText
	if jsonFormat {
		format = FormatJSON
	}
	InitWithWriter(os.Stderr, level, format)
}

// InitWithWriter makes w the destination of the global logger.
// FormatAuto writes text to a terminal and JSON to anything else.
// Debug records carry their source position.
func InitWithWriter(w io.Writer, level slog.Level, format string) {
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
	}

	if format == FormatAuto {
		format = FormatJSON
		if isTerminal(w) {
			format = FormatText
		}
	}

	var handler slog.Handler
	if format == FormatJSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	Logger = slog.New(handler)
	slog.SetDefault(Logger)
}

// ParseLevel converts a level name (debug, info, warn, error) into a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Component returns the global logger tagged with component=name.
func Component(name string) *slog.Logger {
	if Logger == nil {
		Init(slog.LevelInfo, false)
	}
	return Logger.With("component", name)
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
