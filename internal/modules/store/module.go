package store

import (
	"context"

	"github.com/sirupsen/logrus"
	"go.uber.org/fx"

	"github.com/rustyeddy/tradebook/config"
	"github.com/rustyeddy/tradebook/journal"
)

// NewJournal opens the configured journal and closes it when the
// application stops.
func NewJournal(lc fx.Lifecycle, cfg *config.Config, log logrus.FieldLogger) (*journal.SQLite, error) {
	j, err := journal.NewSQLite(cfg.Store.Path)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := j.Ping(ctx); err != nil {
				return err
			}
			log.WithField("path", cfg.Store.Path).Info("journal opened")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return j.Close()
		},
	})
	return j, nil
}

func Module() fx.Option {
	return fx.Module("store",
		fx.Provide(NewJournal),
	)
}
