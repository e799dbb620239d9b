// Package logging configures the global zap logger used by the library and
// the CLI.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

// EncodingEnv selects the encoding when LogOpts.Encoding is empty.
const EncodingEnv = "LOG_ENCODING"

type LogOpts struct {
	Verbose bool
	// Encoding is "console" (default) or "json".
	Encoding string
	// Color is "auto" (default), "always" or "never".
	Color string
}

func (opts LogOpts) encoding() string {
	if opts.Encoding != "" {
		return opts.Encoding
	}
	return os.Getenv(EncodingEnv)
}

// Encoder returns the zap encoder for the options.
func (opts LogOpts) Encoder(w io.Writer) (zapcore.Encoder, error) {
	switch opts.encoding() {
	case "json":
		if opts.Verbose {
			return zapcore.NewJSONEncoder(zap.NewDevelopmentEncoderConfig()), nil
		}
		return zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), nil
	case "console", "":
		cfg := zap.NewDevelopmentEncoderConfig()
		color := opts.useColor(w)
		cfg.EncodeTime = TimeOffsetFormatter(time.Now(), color)
		if color {
			cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
		return zapcore.NewConsoleEncoder(cfg), nil
	default:
		return nil, fmt.Errorf("unknown log encoding %q", opts.Encoding)
	}
}

func (opts LogOpts) useColor(w io.Writer) bool {
	switch strings.ToLower(opts.Color) {
	case "always", "on":
		return true
	case "never", "off":
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// NewCore builds a core writing to w at debug level when verbose and info
// level otherwise.
func (opts LogOpts) NewCore(w zapcore.WriteSyncer) (zapcore.Core, error) {
	enc, err := opts.Encoder(w)
	if err != nil {
		return nil, err
	}
	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	if opts.Verbose {
		level.SetLevel(zap.DebugLevel)
	}
	return zapcore.NewCore(enc, w, level), nil
}

// NewLogger builds a logger writing to stderr.
func (opts LogOpts) NewLogger() (*zap.Logger, error) {
	core, err := opts.NewCore(os.Stderr)
	if err != nil {
		return nil, err
	}
	return zap.New(core), nil
}

// Setup replaces the global logger and returns a function restoring the
// previous one.
func Setup(opts LogOpts) (func(), error) {
	logger, err := opts.NewLogger()
	if err != nil {
		return nil, err
	}
	restore := zap.ReplaceGlobals(logger)
	return func() {
		_ = logger.Sync()
		restore()
	}, nil
}

// TimeOffsetFormatter formats entry times as the offset from start, which
// reads better than wall-clock time for short CLI runs.
func TimeOffsetFormatter(start time.Time, color bool) zapcore.TimeEncoder {
	colStart, colEnd := "\x1b[90m", "\x1b[0m"
	if !color {
		colStart, colEnd = "", ""
	}
	return func(t time.Time, e zapcore.PrimitiveArrayEncoder) {
		diff := t.Sub(start)
		switch {
		case diff < time.Second:
			e.AppendString(fmt.Sprintf(" %s%3dms%s", colStart, diff.Milliseconds(), colEnd))
		case diff < 5*time.Minute:
			e.AppendString(fmt.Sprintf("%s%5.1fs%s", colStart, diff.Seconds(), colEnd))
		default:
			e.AppendString(fmt.Sprintf("%s%5.1fm%s", colStart, diff.Minutes(), colEnd))
		}
	}
}
