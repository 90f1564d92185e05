package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds the process logger. Console output is for local development,
// the default is JSON lines on stderr.
func New(level string, console bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)

	if err != nil {
		lvl = zerolog.InfoLevel
	}

	var logger zerolog.Logger

	if console {
		logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		})
	} else {
		logger = zerolog.New(os.Stderr)
	}

	return logger.Level(lvl).With().Timestamp().Logger()
}
