package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggerConfig controls logger construction.
type LoggerConfig struct {
	// Debug enables debug-level output and development-friendly formatting.
	Debug bool

	// Outputs overrides the log destinations. Defaults to stderr so that
	// command output (root hashes, proof JSON) stays clean on stdout.
	Outputs []string
}

// NewLogger creates a zap logger. Production configuration by default;
// Debug switches to the development encoder with debug level enabled.
func NewLogger(cfg *LoggerConfig) (*zap.Logger, error) {
	if cfg == nil {
		cfg = &LoggerConfig{}
	}

	var zapCfg zap.Config
	if cfg.Debug {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
		zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	zapCfg.OutputPaths = []string{"stderr"}
	zapCfg.ErrorOutputPaths = []string{"stderr"}
	if len(cfg.Outputs) > 0 {
		zapCfg.OutputPaths = cfg.Outputs
	}

	return zapCfg.Build()
}

// NewNopLogger returns a logger that discards everything. Useful as a
// default in tests and library call sites that don't care about output.
func NewNopLogger() *zap.Logger {
	return zap.NewNop()
}
