// Package obs builds the structured logger shared by all covtrail components.
package obs

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogConfig holds the logger settings.
type LogConfig struct {
	Level   string
	Pretty  bool
	App     string
	Version string
}

// NewLogger builds a zap logger writing to stderr.
// Unknown levels fall back to info.
func NewLogger(c LogConfig) (*zap.Logger, error) {
	var cfg zap.Config
	if c.Pretty {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	level := new(zapcore.Level)
	if err := level.Set(c.Level); err != nil {
		*level = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(*level)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	l, err := cfg.Build(
		zap.Fields(
			zap.String("service", c.App),
			zap.String("version", c.Version),
		),
	)
	if err != nil {
		return nil, err
	}
	return l, nil
}
