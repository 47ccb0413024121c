// Package logging builds the structured logger shared by the viewer commands.
package logging

import (
	"fmt"

	"seg-viewer/internal/version"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates a logger writing to stderr. Format "json" selects the
// production encoder; anything else gets the colored console encoder.
// Unknown levels fall back to info.
func New(level, format string) (*zap.Logger, error) {
	return NewWithOutput(level, format)
}

// NewWithOutput is New writing to the given zap output paths instead of
// stderr. Console output to a file is not colored.
func NewWithOutput(level, format string, paths ...string) (*zap.Logger, error) {
	var zapCfg zap.Config

	if format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		if len(paths) > 0 {
			zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		}
	}
	if len(paths) > 0 {
		zapCfg.OutputPaths = paths
		zapCfg.ErrorOutputPaths = paths
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	zapCfg.Level = zap.NewAtomicLevelAt(lvl)

	zapCfg.InitialFields = map[string]interface{}{
		"version": version.Version,
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}

// WithCase adds the case being reviewed to logger.
func WithCase(logger *zap.Logger, index int, id string) *zap.Logger {
	return logger.With(
		zap.Int("case_index", index),
		zap.String("case", id),
	)
}
