package cli

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newLogger builds the diagnostics logger. With a log file, JSON lines go to
// that file. Without one, console output goes to stderr, unless the dashboard
// owns the terminal, in which case diagnostics are discarded.
func newLogger(level, logFile string, verbose, quiet, dashboard bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	if verbose {
		lvl = zapcore.DebugLevel
	} else if quiet && lvl < zapcore.ErrorLevel {
		lvl = zapcore.ErrorLevel
	}

	if logFile == "" && dashboard {
		return zap.NewNop(), nil
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Sampling = nil
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.ErrorOutputPaths = []string{"stderr"}

	if logFile != "" {
		cfg.OutputPaths = []string{logFile}
	} else {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		cfg.DisableStacktrace = true
		cfg.DisableCaller = true
		cfg.OutputPaths = []string{"stderr"}
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to open log %s: %w", logFile, err)
	}
	return logger.Named("nginv"), nil
}
