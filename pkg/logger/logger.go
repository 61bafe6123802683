// Package logger provides the process-wide structured logger used by every
// other package. Call sites pass a flat field map rather than building
// zerolog event chains themselves, matching the shape used throughout the
// rest of the codebase.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Level mirrors zerolog's levels under names used at call sites.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var base zerolog.Logger

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
	base = zerolog.New(defaultWriter()).With().Timestamp().Logger()
}

func defaultWriter() io.Writer {
	if os.Getenv("CLUSTERCORE_LOG_JSON") == "1" {
		return os.Stderr
	}
	return zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
}

// SetOutput redirects all subsequent log output to w as JSON lines.
func SetOutput(w io.Writer) {
	base = zerolog.New(w).With().Timestamp().Logger()
}

// SetLevel adjusts the minimum level emitted process-wide.
func SetLevel(l Level) {
	zerolog.SetGlobalLevel(toZerolog(l))
}

func toZerolog(l Level) zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelInfo:
		return zerolog.InfoLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Log emits one structured log line. fields and err may be nil.
func Log(level Level, fields map[string]string, err error, msg string) {
	var ev *zerolog.Event
	switch level {
	case LevelDebug:
		ev = base.Debug()
	case LevelWarn:
		ev = base.Warn()
	case LevelError:
		ev = base.Error()
	default:
		ev = base.Info()
	}

	for k, v := range fields {
		ev = ev.Str(k, v)
	}
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Msg(msg)
}
