// backend-go/pkg/logger/logger.go
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
)

// Log is the process-wide logger; Setup also installs it as zerolog/log's Logger.
var Log zerolog.Logger

// Options selects output format and verbosity.
type Options struct {
	// Level is a zerolog level name. Empty derives it from Mode.
	Level string
	// Mode is the gin server mode: debug, release or test.
	Mode string
	// Format is "json" for one JSON object per line, anything else for console output.
	Format  string
	Service string
}

func init() {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.TimeFieldFormat = time.RFC3339Nano
	Setup(Options{Mode: "debug"})
}

// Setup rebuilds Log from opts.
func Setup(opts Options) {
	level := resolveLevel(opts.Level, opts.Mode)
	zerolog.SetGlobalLevel(level)

	ctx := zerolog.New(writer(opts.Format, os.Stdout)).
		Level(level).
		With().
		Timestamp()
	if opts.Service != "" {
		ctx = ctx.Str("service", opts.Service)
	}
	if level <= zerolog.DebugLevel {
		ctx = ctx.Caller()
	}

	Log = ctx.Logger()
	log.Logger = Log
}

func writer(format string, out io.Writer) io.Writer {
	if strings.EqualFold(format, "json") {
		return out
	}
	return zerolog.ConsoleWriter{Out: out, TimeFormat: "2006-01-02 15:04:05"}
}

func resolveLevel(name, mode string) zerolog.Level {
	if name != "" {
		if level, err := zerolog.ParseLevel(strings.ToLower(name)); err == nil {
			return level
		}
	}
	switch mode {
	case "debug":
		return zerolog.DebugLevel
	case "test":
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}
