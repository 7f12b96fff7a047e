// Package observability sets up logging, metrics and tracing for the
// Lambda entry points.
package observability

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"compact-connect-backend/internal/config"
)

// NewLogger builds the process logger. Production uses JSON output; every
// other environment uses the development encoder.
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	var zapConfig zap.Config
	if cfg.IsProduction() {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}

	zapConfig.Level = zap.NewAtomicLevelAt(parseLevel(cfg.Observability.LogLevel))
	zapConfig.InitialFields = map[string]any{
		"service":     cfg.ServiceName,
		"environment": string(cfg.Environment),
	}

	return zapConfig.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zap.DebugLevel
	case "warn":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}
