package common

import (
	"github.com/berrythewa/clipbridge/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger creates a new logger instance. Verbose switches to zap's
// development config regardless of the configured level.
func NewLogger(cfg *config.Config, verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopmentConfig().Build()
	}

	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	encoding := cfg.Log.Format
	encoderConfig := zap.NewProductionEncoderConfig()
	switch encoding {
	case "console":
		encoderConfig = zap.NewDevelopmentEncoderConfig()
	case "json":
	default:
		encoding = "json"
	}
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	output := cfg.Log.Output
	if output == "" {
		output = "stderr"
	}

	config := zap.Config{
		Level:       zap.NewAtomicLevelAt(level),
		Development: false,
		Sampling: &zap.SamplingConfig{
			Initial:    100,
			Thereafter: 100,
		},
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{output},
		ErrorOutputPaths: []string{"stderr"},
	}

	return config.Build()
}
