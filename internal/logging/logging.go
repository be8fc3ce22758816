// Package logging builds the process-wide structured logger. It mirrors the
// teacher pack's Logger package: a thin wrapper around a zap.SugaredLogger
// with development/production encoder configs switched by a single debug
// flag, rather than hand-rolled log-level plumbing.
package logging

import "go.uber.org/zap"

// Logger wraps a zap.SugaredLogger so call sites can depend on a narrow,
// named type instead of the zap package directly.
type Logger struct {
	*zap.SugaredLogger
}

// Build constructs a Logger. jsonFormat selects the production JSON encoder;
// otherwise the human-readable development encoder is used.
func Build(jsonFormat bool, level string) (*Logger, error) {
	var cfg zap.Config
	if jsonFormat {
		cfg = zap.NewProductionConfig()
		cfg.Encoding = "json"
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.MessageKey = "msg"
	cfg.EncoderConfig.CallerKey = "caller"

	if lvl, err := zap.ParseAtomicLevel(level); err == nil {
		cfg.Level = lvl
	}

	logger, err := cfg.Build(zap.AddCaller())
	if err != nil {
		return nil, err
	}
	return &Logger{logger.Sugar()}, nil
}

// Nop returns a Logger that discards all output, for tests.
func Nop() *Logger {
	return &Logger{zap.NewNop().Sugar()}
}
