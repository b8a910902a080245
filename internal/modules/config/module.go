package config

import (
	"github.com/sirupsen/logrus"
	"go.uber.org/fx"

	"github.com/rustyeddy/tradebook/config"
	"github.com/rustyeddy/tradebook/pkg/logger"
)

// Module supplies an already loaded configuration and the logger it
// describes.
func Module(cfg *config.Config) fx.Option {
	return fx.Module("config",
		fx.Supply(cfg),
		fx.Provide(
			NewLogger,
			func(l *logrus.Logger) logrus.FieldLogger { return l },
		),
	)
}

func NewLogger(cfg *config.Config) *logrus.Logger {
	return logger.New(cfg.Log)
}
