// Package logger provides the application zap logger.
package logger

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/winwai/raffled/internal/config"
)

func New(cfg config.Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = zapcore.InfoLevel
	}

	var zcfg zap.Config
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	log, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return log.Named("raffled"), nil
}

var Module = fx.Module("logger",
	fx.Provide(New),
	fx.Invoke(func(log *zap.Logger) {
		zap.ReplaceGlobals(log)
	}),
)
