// Package app assembles the managers over a journal the way every entry
// point needs them.
package app

import (
	"github.com/sirupsen/logrus"

	"github.com/rustyeddy/tradebook/config"
	"github.com/rustyeddy/tradebook/journal"
	"github.com/rustyeddy/tradebook/ledger"
	"github.com/rustyeddy/tradebook/order"
	"github.com/rustyeddy/tradebook/position"
)

// Books is the set of managers sharing one journal.
type Books struct {
	Journal    *journal.SQLite
	Ledger     *ledger.Book
	Aggregator *ledger.Aggregator
	Positions  *position.Manager
	Orders     *order.Manager
}

// NewBooks wires the managers to j using the id, retry and order settings
// from cfg.
func NewBooks(cfg *config.Config, j *journal.SQLite, log logrus.FieldLogger) *Books {
	ids := cfg.IDGenerator()

	positions := position.NewManager(j,
		position.WithIDs(ids),
		position.WithLogger(log),
		position.WithMaxIDAttempts(cfg.IDs.MaxAttempts),
		position.WithMaxStaleRetries(cfg.Orders.MaxStaleRetries),
	)

	return &Books{
		Journal: j,
		Ledger: ledger.NewBook(j,
			ledger.WithIDs(ids),
			ledger.WithLogger(log),
			ledger.WithMaxIDAttempts(cfg.IDs.MaxAttempts),
			ledger.WithMaxStaleRetries(cfg.Orders.MaxStaleRetries),
		),
		Aggregator: ledger.NewAggregator(j),
		Positions:  positions,
		Orders: order.NewManager(j, positions,
			order.WithIDs(ids),
			order.WithLogger(log),
			order.WithMaxIDAttempts(cfg.IDs.MaxAttempts),
			order.WithMaxStaleRetries(cfg.Orders.MaxStaleRetries),
			order.WithCreatePosition(cfg.Orders.CreatePositionDefault),
		),
	}
}

// Open opens the configured journal and wires the managers to it. Close
// releases the journal.
func Open(cfg *config.Config, log logrus.FieldLogger) (*Books, error) {
	j, err := journal.NewSQLite(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	return NewBooks(cfg, j, log), nil
}

func (b *Books) Close() error {
	return b.Journal.Close()
}
