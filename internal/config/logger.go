package config

import (
    "io"
    "os"
    "strings"
    "time"

    "github.com/rs/zerolog"
)

// NewLogger builds the process logger.  Pretty output is meant for a terminal;
// production keeps one JSON object per line.
func NewLogger(level string, pretty bool) zerolog.Logger {
    var w io.Writer = os.Stderr
    if pretty {
        w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
    }
    lvl, err := zerolog.ParseLevel(strings.ToLower(level))
    if err != nil || lvl == zerolog.NoLevel {
        lvl = zerolog.InfoLevel
    }
    return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}
