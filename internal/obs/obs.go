// Package obs wraps the structured logger used for every non-fatal warning
// condition: dropped forecasts, invalid distributions, skipped ensemble
// groups, unreliable runs. The CLI's human-facing summary still goes
// through plain fmt.Fprintf/json.Encoder; this logger is for the "keep
// going, but tell someone" class of condition that a bare Fprintf
// sprinkled across nine packages would make impossible to grep or
// machine-parse in a pipeline.
package obs

import (
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a logger that writes newline-delimited JSON to w. Command
// invocations are short-lived, so callers should defer Sync() and tolerate
// its error on platforms where stderr sync is a no-op.
func New(w io.Writer, debug bool) *zap.Logger {
	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(cfg), zapcore.AddSync(w), level)
	return zap.New(core)
}

// Noop returns a logger that discards everything, used by tests and any
// caller that does not want warning noise on stderr.
func Noop() *zap.Logger {
	return zap.NewNop()
}
