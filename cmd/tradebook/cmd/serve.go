package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/rustyeddy/tradebook/internal/modules/api"
	"github.com/rustyeddy/tradebook/internal/modules/books"
	configmod "github.com/rustyeddy/tradebook/internal/modules/config"
	"github.com/rustyeddy/tradebook/internal/modules/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the ledger, positions and orders over HTTP",
	Long: `Start the HTTP API. Requests are scoped to the user named in the
configured header (server.user_header, default X-User-ID).

Example:
  tradebook serve -c tradebook.yaml`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var serveAddr string

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	// Validate up front so a bad config fails before fx starts anything.
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	app := fx.New(
		fx.NopLogger,
		configmod.Module(cfg),
		store.Module(),
		books.Module(),
		api.Module(),
	)

	startCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	<-app.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return app.Stop(stopCtx)
}
