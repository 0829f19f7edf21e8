package logutil

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// New builds the process logger at the given level, falling back to info
// when the level string is unknown.
func New(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger().Level(lvl)
}
