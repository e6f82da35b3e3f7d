// Package logger provides process wide printf style logging helpers.
package logger

import (
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// Log is the underlying logger. It writes human readable lines to stderr.
var Log = zerolog.New(zerolog.ConsoleWriter{
	Out:        os.Stderr,
	TimeFormat: time.RFC3339,
}).With().Timestamp().Logger().Level(zerolog.InfoLevel)

func init() {
	// Levels are set per logger.
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
}

// Init tags every record with app and sets the minimum level.
// An empty level keeps the current one.
func Init(app, level string) error {
	l := Log.With().Str("app", app).Logger()

	if level != "" {
		lvl, err := zerolog.ParseLevel(strings.ToLower(level))
		if err != nil {
			return errors.Wrapf(err, "bad log level %q", level)
		}
		l = l.Level(lvl)
	}

	Log = l
	return nil
}

func Info(format string, args ...interface{}) {
	Log.Info().Msgf(format, args...)
}

func Err(format string, args ...interface{}) {
	Log.Error().Msgf(format, args...)
}

func Trace(format string, args ...interface{}) {
	Log.Trace().Msgf(format, args...)
}

// SetTraceLogger enables Trace output.
func SetTraceLogger() {
	Log = Log.Level(zerolog.TraceLevel)
}
