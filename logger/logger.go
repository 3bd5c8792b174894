package logx

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Production is the APP_ENV value that switches to JSON output at info level.
const Production = "production"

// Init configures the global logger for the given environment.
func Init(environment string) {
	InitWithWriter(environment, os.Stderr)
}

// InitWithWriter is Init with an explicit sink.
func InitWithWriter(environment string, w io.Writer) {
	if environment == Production {
		log.Logger = zerolog.New(w).With().Timestamp().Logger().Level(zerolog.InfoLevel)
		return
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: w}).
		With().Timestamp().Caller().Logger().
		Level(zerolog.DebugLevel)
}

func Debug() *zerolog.Event {
	return log.Debug()
}

func Info() *zerolog.Event {
	return log.Info()
}

func Error() *zerolog.Event {
	return log.Error()
}
