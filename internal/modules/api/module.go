package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/fx"

	"github.com/rustyeddy/tradebook/config"
	"github.com/rustyeddy/tradebook/httpapi"
	"github.com/rustyeddy/tradebook/internal/app"
)

func NewServer(cfg *config.Config, b *app.Books, log logrus.FieldLogger) *httpapi.Server {
	return httpapi.New(httpapi.Deps{
		Ledger:     b.Ledger,
		Aggregator: b.Aggregator,
		Positions:  b.Positions,
		Orders:     b.Orders,
	},
		httpapi.WithLogger(log),
		httpapi.WithUserHeader(cfg.Server.UserHeader),
	)
}

func RunHTTP(lc fx.Lifecycle, cfg *config.Config, s *httpapi.Server, log logrus.FieldLogger) {
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", cfg.Server.Addr)
			if err != nil {
				return err
			}
			log.WithField("addr", ln.Addr().String()).Info("http server listening")
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.WithError(err).Error("http server stopped")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

func Module() fx.Option {
	return fx.Module("api",
		fx.Provide(NewServer),
		fx.Invoke(RunHTTP),
	)
}
