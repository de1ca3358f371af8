package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

var Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

func Init(level, format string) {
	InitWithWriter(os.Stdout, level, format)
}

// InitWithWriter builds the process logger and installs it as the global
// zerolog logger. Unknown levels fall back to info, unknown formats to console.
func InitWithWriter(w io.Writer, level, format string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	if strings.EqualFold(format, "json") {
		Logger = zerolog.New(w).With().Timestamp().Logger().Level(lvl)
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger().Level(lvl)
	}

	zlog.Logger = Logger
}

// Component returns a child logger tagged like "[auth][eds]" log lines used to be.
func Component(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}
