package cmd

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradebook/config"
	"github.com/rustyeddy/tradebook/internal/app"
	"github.com/rustyeddy/tradebook/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:   "tradebook",
	Short: "Trading bookkeeping: cash ledger, positions and pending orders",
	Long: `Tradebook records a user's cash movements, positions and pending orders
in a SQLite journal and derives balances and profit/loss from them.

It provides tools for:
  - Recording deposits, withdrawals, dividends, fees and other cash entries
  - Per-currency balances and cash-flow summaries
  - Opening, marking and closing positions with gross and net P/L
  - Limit and stop orders with partial fills that open positions
  - Serving all of the above over HTTP

Settings come from a YAML or JSON file, TRADEBOOK_* environment variables
and a .env file in the working directory.`,
	SilenceUsage: true,
}

var (
	cfgFile string
	userID  string
	dbPath  string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML or JSON)")
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", "", "user the records belong to (default $TRADEBOOK_USER)")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "path to SQLite journal DB (overrides store.path)")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.Store.Path = dbPath
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *logrus.Logger {
	return logger.New(cfg.Log)
}

// openBooks loads the configuration and opens the journal it names.
func openBooks() (*app.Books, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	b, err := app.Open(cfg, newLogger(cfg))
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return b, nil
}

// currentUser is the --user flag or $TRADEBOOK_USER.
func currentUser() (string, error) {
	u := strings.TrimSpace(userID)
	if u == "" {
		u = strings.TrimSpace(envUser())
	}
	if u == "" {
		return "", fmt.Errorf("a user is required: pass --user or set %s_USER", config.EnvPrefix)
	}
	return u, nil
}
