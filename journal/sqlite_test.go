package journal

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradebook/errs"
	"github.com/rustyeddy/tradebook/ledger"
	"github.com/rustyeddy/tradebook/market"
	"github.com/rustyeddy/tradebook/order"
	"github.com/rustyeddy/tradebook/position"
)

func newTestSQLite(t *testing.T) (*SQLite, string) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	j, err := NewSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	return j, path
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

var t0 = time.Date(2024, 1, 2, 3, 4, 5, 600, time.UTC)

func TestSQLiteSchemaCreated(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)
	assert.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type='table'`)
	require.NoError(t, err)
	defer rows.Close()

	found := map[string]bool{}
	for rows.Next() {
		var name string
		assert.NoError(t, rows.Scan(&name))
		found[name] = true
	}
	assert.NoError(t, rows.Err())

	assert.True(t, found["ledger_entries"])
	assert.True(t, found["positions"])
	assert.True(t, found["orders"])
}

func TestSQLiteReopenKeepsData(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)
	ctx := context.Background()
	require.NoError(t, j.InsertEntry(ctx, &ledger.Entry{
		ID: "E1", UserID: "u1", Type: ledger.Deposit, Amount: d("5"), Currency: "USD",
		OccurredAt: t0, Status: ledger.StatusCompleted, CreatedAt: t0, UpdatedAt: t0,
	}))
	require.NoError(t, j.Close())

	j2, err := NewSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j2.Close() })
	require.NoError(t, j2.Ping(ctx))

	e, err := j2.GetEntry(ctx, "u1", "E1")
	require.NoError(t, err)
	assert.True(t, d("5").Equal(e.Amount))
}

func sampleEntry(id string, typ ledger.EntryType, amount, cur string, at time.Time) *ledger.Entry {
	return &ledger.Entry{
		ID:         id,
		UserID:     "u1",
		Type:       typ,
		Amount:     d(amount),
		Currency:   cur,
		OccurredAt: at,
		Status:     ledger.StatusCompleted,
		CreatedAt:  t0,
		UpdatedAt:  t0,
	}
}

func TestEntryRoundTrip(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	ctx := context.Background()

	in := sampleEntry("E1", ledger.Dividend, "12.345678901234567890", "USD", t0)
	in.Symbol = "KO"
	in.Comment = "quarterly"
	in.Tax = &ledger.Tax{Amount: d("1.85"), Rate: d("0.15"), Country: "US", Withheld: true}
	require.NoError(t, j.InsertEntry(ctx, in))

	got, err := j.GetEntry(ctx, "u1", "E1")
	require.NoError(t, err)
	assert.Equal(t, ledger.Dividend, got.Type)
	assert.True(t, in.Amount.Equal(got.Amount), "decimals survive without rounding: %s", got.Amount)
	assert.True(t, t0.Equal(got.OccurredAt), "nanosecond precision kept")
	assert.Equal(t, "KO", got.Symbol)
	assert.Equal(t, "quarterly", got.Comment)
	require.NotNil(t, got.Tax)
	assert.True(t, d("1.85").Equal(got.Tax.Amount))
	assert.True(t, d("0.15").Equal(got.Tax.Rate))
	assert.Equal(t, "US", got.Tax.Country)
	assert.True(t, got.Tax.Withheld)

	plain := sampleEntry("E2", ledger.Fee, "1", "USD", t0)
	require.NoError(t, j.InsertEntry(ctx, plain))
	got, err = j.GetEntry(ctx, "u1", "E2")
	require.NoError(t, err)
	assert.Nil(t, got.Tax)
}

func TestEntryDuplicateAndMissing(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	ctx := context.Background()
	require.NoError(t, j.InsertEntry(ctx, sampleEntry("E1", ledger.Deposit, "1", "USD", t0)))

	err := j.InsertEntry(ctx, sampleEntry("E1", ledger.Deposit, "2", "USD", t0))
	assert.ErrorIs(t, err, errs.ErrDuplicateID)
	assert.ErrorIs(t, err, errs.ErrConflict)

	_, err = j.GetEntry(ctx, "u2", "E1")
	assert.ErrorIs(t, err, errs.ErrNotFound, "other users cannot see the entry")

	e := sampleEntry("nope", ledger.Deposit, "1", "USD", t0)
	assert.ErrorIs(t, j.UpdateEntry(ctx, e), errs.ErrNotFound)
	assert.ErrorIs(t, j.DeleteEntry(ctx, "u1", "nope"), errs.ErrNotFound)
	assert.ErrorIs(t, j.DeleteEntry(ctx, "u2", "E1"), errs.ErrNotFound)

	require.NoError(t, j.DeleteEntry(ctx, "u1", "E1"))
	_, err = j.GetEntry(ctx, "u1", "E1")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestListEntriesFilter(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	ctx := context.Background()

	day := func(n int) time.Time { return t0.AddDate(0, 0, n) }
	pending := sampleEntry("E5", ledger.Deposit, "9", "USD", day(4))
	pending.Status = ledger.StatusPending
	withSymbol := sampleEntry("E3", ledger.Dividend, "3", "USD", day(2))
	withSymbol.Symbol = "KO"
	foreign := sampleEntry("X1", ledger.Deposit, "1", "USD", day(0))
	foreign.UserID = "u2"

	for _, e := range []*ledger.Entry{
		sampleEntry("E1", ledger.Deposit, "1", "USD", day(0)),
		sampleEntry("E2", ledger.Withdrawal, "2", "EUR", day(1)),
		withSymbol,
		sampleEntry("E4", ledger.Fee, "4", "USD", day(3)),
		pending,
		foreign,
	} {
		require.NoError(t, j.InsertEntry(ctx, e))
	}

	upTo, from := day(2), day(1)
	tests := []struct {
		name string
		f    ledger.Filter
		want []string
	}{
		{"all", ledger.Filter{}, []string{"E1", "E2", "E3", "E4", "E5"}},
		{"types", ledger.Filter{Types: []ledger.EntryType{ledger.Fee, ledger.Withdrawal}}, []string{"E2", "E4"}},
		{"status", ledger.Filter{Statuses: []ledger.EntryStatus{ledger.StatusPending}}, []string{"E5"}},
		{"currency", ledger.Filter{Currency: "EUR"}, []string{"E2"}},
		{"symbol", ledger.Filter{Symbol: "KO"}, []string{"E3"}},
		{"up_to_inclusive", ledger.Filter{UpTo: &upTo}, []string{"E1", "E2", "E3"}},
		{"window", ledger.Filter{From: &from, UpTo: &upTo}, []string{"E2", "E3"}},
		{"limit", ledger.Filter{Limit: 2}, []string{"E1", "E2"}},
		{"limit_offset", ledger.Filter{Limit: 2, Offset: 2}, []string{"E3", "E4"}},
		{"offset_only", ledger.Filter{Offset: 3}, []string{"E4", "E5"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := j.ListEntries(ctx, "u1", tt.f)
			require.NoError(t, err)
			var ids []string
			for _, e := range got {
				ids = append(ids, e.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestUpdateEntry(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	ctx := context.Background()
	e := sampleEntry("E1", ledger.Dividend, "1", "USD", t0)
	e.Tax = &ledger.Tax{Amount: d("0.1")}
	require.NoError(t, j.InsertEntry(ctx, e))

	e.Amount = d("1.5")
	e.Status = ledger.StatusCancelled
	e.Tax = nil
	e.UpdatedAt = t0.Add(time.Hour)
	require.NoError(t, j.UpdateEntry(ctx, e))

	got, err := j.GetEntry(ctx, "u1", "E1")
	require.NoError(t, err)
	assert.True(t, d("1.5").Equal(got.Amount))
	assert.Equal(t, ledger.StatusCancelled, got.Status)
	assert.Nil(t, got.Tax)
	assert.True(t, e.UpdatedAt.Equal(got.UpdatedAt))
	assert.Equal(t, int64(2), e.Version)
	assert.Equal(t, int64(2), got.Version)
}

func TestUpdateEntryVersionCheck(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	ctx := context.Background()
	require.NoError(t, j.InsertEntry(ctx, sampleEntry("E1", ledger.Deposit, "100", "USD", t0)))

	a, err := j.GetEntry(ctx, "u1", "E1")
	require.NoError(t, err)
	b, err := j.GetEntry(ctx, "u1", "E1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), a.Version)

	a.Amount = d("150")
	require.NoError(t, j.UpdateEntry(ctx, a))

	b.Comment = "late edit"
	err = j.UpdateEntry(ctx, b)
	assert.ErrorIs(t, err, errs.ErrStale)
	assert.Equal(t, int64(1), b.Version, "a stale write leaves the caller's version alone")

	got, err := j.GetEntry(ctx, "u1", "E1")
	require.NoError(t, err)
	assert.True(t, d("150").Equal(got.Amount), "first writer wins")
	assert.Empty(t, got.Comment)

	got.UserID = "u2"
	assert.ErrorIs(t, j.UpdateEntry(ctx, got), errs.ErrNotFound)
}

func samplePosition(id string) *position.Position {
	return &position.Position{
		ID:            id,
		UserID:        "u1",
		Symbol:        "AAPL",
		Side:          market.Buy,
		Volume:        d("10"),
		OpenTime:      t0,
		OpenPrice:     d("100"),
		CurrentPrice:  d("100"),
		PurchaseValue: d("1000"),
		Commission:    d("1"),
		Currency:      "USD",
		Status:        position.StatusOpen,
		CreatedAt:     t0,
		UpdatedAt:     t0,
	}
}

func TestPositionRoundTrip(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	ctx := context.Background()

	p := samplePosition("P1")
	p.StopLoss = dp("95")
	p.SourceOrderID = "O1"
	require.NoError(t, j.InsertPosition(ctx, p))
	assert.Equal(t, int64(1), p.Version)

	got, err := j.GetPosition(ctx, "u1", "P1")
	require.NoError(t, err)
	assert.Equal(t, market.Buy, got.Side)
	assert.Equal(t, position.StatusOpen, got.Status)
	assert.True(t, d("1000").Equal(got.PurchaseValue))
	require.NotNil(t, got.StopLoss)
	assert.True(t, d("95").Equal(*got.StopLoss))
	assert.Nil(t, got.TakeProfit)
	assert.Nil(t, got.ClosePrice)
	assert.Nil(t, got.CloseTime)
	assert.Nil(t, got.DeletedAt)
	assert.Equal(t, "O1", got.SourceOrderID)
	assert.True(t, t0.Equal(got.OpenTime))
	assert.Equal(t, int64(1), got.Version)

	closeAt := t0.Add(time.Hour)
	got.Status = position.StatusClosed
	got.ClosePrice = dp("110")
	got.CloseTime = &closeAt
	got.GrossPL = d("100")
	got.NetPL = d("99")
	got.StopLoss = nil
	require.NoError(t, j.UpdatePosition(ctx, got))
	assert.Equal(t, int64(2), got.Version)

	again, err := j.GetPosition(ctx, "u1", "P1")
	require.NoError(t, err)
	assert.Equal(t, position.StatusClosed, again.Status)
	assert.True(t, d("110").Equal(*again.ClosePrice))
	assert.True(t, closeAt.Equal(*again.CloseTime))
	assert.True(t, d("99").Equal(again.NetPL))
	assert.Nil(t, again.StopLoss)
	assert.Equal(t, int64(2), again.Version)
}

func TestUpdatePositionVersionCheck(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	ctx := context.Background()
	require.NoError(t, j.InsertPosition(ctx, samplePosition("P1")))

	a, err := j.GetPosition(ctx, "u1", "P1")
	require.NoError(t, err)
	b, err := j.GetPosition(ctx, "u1", "P1")
	require.NoError(t, err)

	a.CurrentPrice = d("101")
	require.NoError(t, j.UpdatePosition(ctx, a))

	b.CurrentPrice = d("99")
	err = j.UpdatePosition(ctx, b)
	assert.ErrorIs(t, err, errs.ErrStale)
	assert.Equal(t, int64(1), b.Version, "a stale write leaves the caller's version alone")

	got, err := j.GetPosition(ctx, "u1", "P1")
	require.NoError(t, err)
	assert.True(t, d("101").Equal(got.CurrentPrice), "first writer wins")

	ghost := samplePosition("P9")
	assert.ErrorIs(t, j.UpdatePosition(ctx, ghost), errs.ErrNotFound)
	got.UserID = "u2"
	assert.ErrorIs(t, j.UpdatePosition(ctx, got), errs.ErrNotFound)
}

func TestListPositions(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	ctx := context.Background()

	for i, id := range []string{"P1", "P2", "P3"} {
		p := samplePosition(id)
		p.OpenTime = t0.Add(time.Duration(i) * time.Minute)
		if id == "P2" {
			p.Status = position.StatusClosed
			p.Symbol = "MSFT"
			p.PortfolioID = "pf1"
		}
		require.NoError(t, j.InsertPosition(ctx, p))
	}
	require.ErrorIs(t, j.InsertPosition(ctx, samplePosition("P1")), errs.ErrDuplicateID)

	list, err := j.ListPositions(ctx, "u1", position.ListFilter{Statuses: []position.Status{position.StatusOpen}})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "P1", list[0].ID)
	assert.Equal(t, "P3", list[1].ID)

	list, err = j.ListPositions(ctx, "u1", position.ListFilter{Symbol: "MSFT"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "P2", list[0].ID)

	list, err = j.ListPositions(ctx, "u1", position.ListFilter{PortfolioID: "pf1"})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = j.ListPositions(ctx, "u2", position.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, j.DeletePosition(ctx, "u1", "P2"))
	assert.ErrorIs(t, j.DeletePosition(ctx, "u1", "P2"), errs.ErrNotFound)
}

func sampleOrder(id string) *order.Order {
	return &order.Order{
		ID:             id,
		UserID:         "u1",
		Symbol:         "MSFT",
		Kind:           order.Limit,
		Side:           market.Sell,
		Volume:         d("100"),
		OriginalVolume: d("100"),
		Price:          d("10"),
		PurchaseValue:  d("1000"),
		Currency:       "USD",
		Status:         order.StatusPending,
		CreatedAt:      t0,
		UpdatedAt:      t0,
	}
}

func TestOrderRoundTrip(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	ctx := context.Background()

	o := sampleOrder("O1")
	expiry := t0.Add(24 * time.Hour)
	o.ExpiryTime = &expiry
	require.NoError(t, j.InsertOrder(ctx, o))
	assert.ErrorIs(t, j.InsertOrder(ctx, sampleOrder("O1")), errs.ErrDuplicateID)

	got, err := j.GetOrder(ctx, "u1", "O1")
	require.NoError(t, err)
	assert.Equal(t, order.Limit, got.Kind)
	assert.Equal(t, market.Sell, got.Side)
	assert.Nil(t, got.Execution)
	assert.True(t, got.StopPrice.IsZero())
	require.NotNil(t, got.ExpiryTime)
	assert.True(t, expiry.Equal(*got.ExpiryTime))

	filled := t0.Add(time.Minute)
	got.Status = order.StatusPartial
	got.Volume = d("60")
	got.Execution = &order.Execution{
		ExecutedPrice:  d("10.05"),
		ExecutedVolume: d("40"),
		Commission:     d("0.4"),
		Fees:           d("0.01"),
		ExecutedTime:   filled,
	}
	require.NoError(t, j.UpdateOrder(ctx, got))

	again, err := j.GetOrder(ctx, "u1", "O1")
	require.NoError(t, err)
	assert.Equal(t, order.StatusPartial, again.Status)
	assert.True(t, d("60").Equal(again.Volume))
	assert.True(t, d("100").Equal(again.OriginalVolume))
	require.NotNil(t, again.Execution)
	assert.True(t, d("10.05").Equal(again.Execution.ExecutedPrice))
	assert.True(t, d("40").Equal(again.Execution.ExecutedVolume))
	assert.True(t, d("0.01").Equal(again.Execution.Fees))
	assert.True(t, filled.Equal(again.Execution.ExecutedTime))
	assert.Empty(t, again.Execution.ResultingPositionID)
	assert.Equal(t, int64(2), again.Version)

	_, err = j.GetOrder(ctx, "u2", "O1")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestUpdateOrderVersionCheck(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	ctx := context.Background()
	require.NoError(t, j.InsertOrder(ctx, sampleOrder("O1")))

	a, err := j.GetOrder(ctx, "u1", "O1")
	require.NoError(t, err)
	b, err := j.GetOrder(ctx, "u1", "O1")
	require.NoError(t, err)

	a.Volume = d("60")
	require.NoError(t, j.UpdateOrder(ctx, a))
	b.Volume = d("50")
	assert.ErrorIs(t, j.UpdateOrder(ctx, b), errs.ErrStale)

	got, err := j.GetOrder(ctx, "u1", "O1")
	require.NoError(t, err)
	assert.True(t, d("60").Equal(got.Volume))
}

func TestListExpirable(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	ctx := context.Background()
	now := t0.Add(10 * time.Hour)

	mk := func(id, user string, status order.Status, expiry *time.Time) {
		o := sampleOrder(id)
		o.UserID = user
		o.Status = status
		o.ExpiryTime = expiry
		require.NoError(t, j.InsertOrder(ctx, o))
	}
	past, future, exact := now.Add(-time.Hour), now.Add(time.Hour), now
	mk("O1", "u1", order.StatusPending, &past)
	mk("O2", "u2", order.StatusPartial, &past)
	mk("O3", "u1", order.StatusPending, &future)
	mk("O4", "u1", order.StatusPending, nil)
	mk("O5", "u1", order.StatusCancelled, &past)
	mk("O6", "u1", order.StatusPending, &exact)

	due, err := j.ListExpirable(ctx, now)
	require.NoError(t, err)
	var ids []string
	for _, o := range due {
		ids = append(ids, o.ID)
	}
	assert.ElementsMatch(t, []string{"O1", "O2"}, ids, "expiry must be strictly before now")

	list, err := j.ListOrders(ctx, "u1", order.ListFilter{Statuses: []order.Status{order.StatusPending}, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, list, 2)
}
