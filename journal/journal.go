// Package journal is the SQLite record store behind the ledger, position
// and order managers. It also renders exports of what it holds.
package journal

import (
	"github.com/rustyeddy/tradebook/ledger"
	"github.com/rustyeddy/tradebook/order"
	"github.com/rustyeddy/tradebook/position"
)

var (
	_ ledger.Store   = (*SQLite)(nil)
	_ position.Store = (*SQLite)(nil)
	_ order.Store    = (*SQLite)(nil)
)
