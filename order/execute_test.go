package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradebook/errs"
	"github.com/rustyeddy/tradebook/market"
)

func TestExecutePartialThenFull(t *testing.T) {
	t.Parallel()

	opener := &fakeOpener{}
	m, s := newTestManager(t, opener)
	ctx := context.Background()
	o, err := m.Create(ctx, "u1", limitBuy("100", "10"))
	require.NoError(t, err)

	res, err := m.Execute(ctx, "u1", o.ID, ExecuteSpec{Price: d("10"), Volume: dp("40"), Commission: d("1")})
	require.NoError(t, err)
	assert.Equal(t, StatusPartial, res.Order.Status)
	assert.True(t, d("60").Equal(res.Remaining))
	assert.True(t, d("60").Equal(res.Order.Volume))
	assert.True(t, d("100").Equal(res.Order.OriginalVolume))
	assert.Equal(t, PositionSkipped, res.PositionOutcome, "partial fills never open positions")
	assert.Nil(t, res.Position)
	assert.Empty(t, opener.specs)

	res, err = m.Execute(ctx, "u1", o.ID, ExecuteSpec{Price: d("11"), Volume: dp("60"), Commission: d("2")})
	require.NoError(t, err)
	assert.Equal(t, StatusExecuted, res.Order.Status)
	assert.True(t, res.Remaining.IsZero())
	assert.True(t, res.Order.Volume.IsZero())

	// The execution record and the position reflect the latest fill only.
	require.NotNil(t, res.Order.Execution)
	assert.True(t, d("11").Equal(res.Order.Execution.ExecutedPrice))
	assert.True(t, d("60").Equal(res.Order.Execution.ExecutedVolume))
	assert.True(t, d("2").Equal(res.Order.Execution.Commission))

	require.Equal(t, PositionSucceeded, res.PositionOutcome)
	require.NoError(t, res.PositionErr)
	require.NotNil(t, res.Position)
	require.Len(t, opener.specs, 1)
	spec := opener.specs[0]
	assert.Equal(t, market.Buy, spec.Side)
	assert.Equal(t, "MSFT", spec.Symbol)
	assert.Equal(t, "USD", spec.Currency)
	assert.True(t, d("60").Equal(spec.Volume))
	assert.True(t, d("11").Equal(spec.OpenPrice))
	assert.True(t, d("2").Equal(spec.Commission))
	assert.Equal(t, o.ID, spec.SourceOrderID)

	assert.Equal(t, res.Position.ID, res.Order.Execution.ResultingPositionID)
	stored := s.get(o.ID)
	assert.Equal(t, res.Position.ID, stored.Execution.ResultingPositionID)
	assert.Equal(t, StatusExecuted, stored.Status)
}

func TestExecuteFullInOneCall(t *testing.T) {
	t.Parallel()

	opener := &fakeOpener{}
	m, _ := newTestManager(t, opener)
	ctx := context.Background()
	o, err := m.Create(ctx, "u1", limitBuy("5", "20"))
	require.NoError(t, err)

	res, err := m.Execute(ctx, "u1", o.ID, ExecuteSpec{Price: d("19.5")})
	require.NoError(t, err)
	assert.Equal(t, StatusExecuted, res.Order.Status)
	assert.True(t, res.Remaining.IsZero())
	assert.True(t, d("5").Equal(res.Order.Execution.ExecutedVolume), "volume defaults to the remainder")
	assert.True(t, now.Equal(res.Order.Execution.ExecutedTime), "time defaults to now")
	assert.Equal(t, PositionSucceeded, res.PositionOutcome)
	assert.True(t, d("5").Equal(res.Position.Volume))
}

func TestExecuteVolumes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		volume    string
		status    Status
		remaining string
	}{
		{"all", "100", StatusExecuted, "0"},
		{"most", "99.999", StatusPartial, "0.001"},
		{"tiny", "0.001", StatusPartial, "99.999"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m, _ := newTestManager(t, nil)
			o, err := m.Create(context.Background(), "u1", limitBuy("100", "10"))
			require.NoError(t, err)

			res, err := m.Execute(context.Background(), "u1", o.ID, ExecuteSpec{Price: d("10"), Volume: dp(tt.volume)})
			require.NoError(t, err)
			assert.Equal(t, tt.status, res.Order.Status)
			assert.True(t, d(tt.remaining).Equal(res.Remaining), "remaining %s", res.Remaining)
			assert.True(t, res.Order.Filled().Add(res.Remaining).Equal(d("100")))
		})
	}
}

func TestExecuteRejectsOverfill(t *testing.T) {
	t.Parallel()

	m, s := newTestManager(t, &fakeOpener{})
	ctx := context.Background()
	o, err := m.Create(ctx, "u1", limitBuy("100", "10"))
	require.NoError(t, err)
	_, err = m.Execute(ctx, "u1", o.ID, ExecuteSpec{Price: d("10"), Volume: dp("40")})
	require.NoError(t, err)
	before := s.get(o.ID)

	_, err = m.Execute(ctx, "u1", o.ID, ExecuteSpec{Price: d("10"), Volume: dp("60.0001")})
	assert.True(t, errors.Is(err, errs.ErrInvariant), "got %v", err)
	assert.Equal(t, before, s.get(o.ID), "remaining is never negative")
}

func TestExecuteValidation(t *testing.T) {
	t.Parallel()

	m, s := newTestManager(t, nil)
	ctx := context.Background()
	o, err := m.Create(ctx, "u1", limitBuy("1", "10"))
	require.NoError(t, err)

	for _, spec := range []ExecuteSpec{
		{Price: decimal.Zero},
		{Price: d("10"), Volume: dp("0")},
		{Price: d("10"), Volume: dp("-1")},
		{Price: d("10"), Commission: d("-1")},
		{Price: d("10"), Fees: d("-0.5")},
	} {
		_, err := m.Execute(ctx, "u1", o.ID, spec)
		assert.True(t, errors.Is(err, errs.ErrValidation), "%+v: %v", spec, err)
	}
	assert.Equal(t, 0, s.updates)

	_, err = m.Execute(ctx, "u2", o.ID, ExecuteSpec{Price: d("10")})
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestExecuteTimeBounds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		at      time.Time
		wantErr bool
	}{
		{"default", time.Time{}, false},
		{"at creation", now, false},
		{"before creation", now.Add(-time.Nanosecond), true},
		{"a year early", now.AddDate(-1, 0, 0), true},
		{"in the future", now.Add(24 * time.Hour), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			opener := &fakeOpener{}
			m, s := newTestManager(t, opener)
			ctx := context.Background()
			o, err := m.Create(ctx, "u1", limitBuy("10", "50"))
			require.NoError(t, err)

			res, err := m.Execute(ctx, "u1", o.ID, ExecuteSpec{Price: d("50"), Time: tt.at})
			if tt.wantErr {
				assert.True(t, errors.Is(err, errs.ErrValidation), "%v", err)
				assert.Equal(t, 0, s.updates)
				assert.Empty(t, opener.specs)
				assert.Equal(t, StatusPending, s.get(o.ID).Status)
				return
			}
			require.NoError(t, err)
			assert.True(t, now.Equal(res.Order.Execution.ExecutedTime))
			require.Len(t, opener.specs, 1)
			assert.False(t, opener.specs[0].OpenTime.After(now))
		})
	}
}

func TestExecuteTerminalOrders(t *testing.T) {
	t.Parallel()

	opener := &fakeOpener{}
	m, s := newTestManager(t, opener)
	ctx := context.Background()

	done, err := m.Create(ctx, "u1", limitBuy("1", "10"))
	require.NoError(t, err)
	_, err = m.Execute(ctx, "u1", done.ID, ExecuteSpec{Price: d("10")})
	require.NoError(t, err)

	cancelled, err := m.Create(ctx, "u1", limitBuy("1", "10"))
	require.NoError(t, err)
	_, err = m.Cancel(ctx, "u1", cancelled.ID, "")
	require.NoError(t, err)

	for _, o := range []*Order{done, cancelled} {
		before := s.get(o.ID)
		_, err := m.Execute(ctx, "u1", o.ID, ExecuteSpec{Price: d("10")})
		assert.True(t, errors.Is(err, errs.ErrConflict), "got %v", err)
		assert.Equal(t, before, s.get(o.ID))
	}
	assert.Len(t, opener.specs, 1)
}

func TestExecutePositionFailureIsReported(t *testing.T) {
	t.Parallel()

	boom := errs.Validation("symbol delisted")
	opener := &fakeOpener{err: boom}
	m, s := newTestManager(t, opener)
	ctx := context.Background()
	o, err := m.Create(ctx, "u1", limitBuy("3", "10"))
	require.NoError(t, err)

	res, err := m.Execute(ctx, "u1", o.ID, ExecuteSpec{Price: d("10")})
	require.NoError(t, err, "the fill itself succeeded")
	assert.Equal(t, PositionFailed, res.PositionOutcome)
	assert.ErrorIs(t, res.PositionErr, boom)
	assert.Nil(t, res.Position)

	stored := s.get(o.ID)
	assert.Equal(t, StatusExecuted, stored.Status, "the order commit is not rolled back")
	assert.Empty(t, stored.Execution.ResultingPositionID)
}

func TestExecuteSkipsPosition(t *testing.T) {
	t.Parallel()

	no := false
	yes := true

	opener := &fakeOpener{}
	m, _ := newTestManager(t, opener)
	o, err := m.Create(context.Background(), "u1", limitBuy("3", "10"))
	require.NoError(t, err)
	res, err := m.Execute(context.Background(), "u1", o.ID, ExecuteSpec{Price: d("10"), CreatePosition: &no})
	require.NoError(t, err)
	assert.Equal(t, PositionSkipped, res.PositionOutcome)
	assert.Empty(t, opener.specs)

	// manager default off, caller asks for it
	m, _ = newTestManager(t, opener, WithCreatePosition(false))
	o, err = m.Create(context.Background(), "u1", limitBuy("3", "10"))
	require.NoError(t, err)
	res, err = m.Execute(context.Background(), "u1", o.ID, ExecuteSpec{Price: d("10")})
	require.NoError(t, err)
	assert.Equal(t, PositionSkipped, res.PositionOutcome)

	o, err = m.Create(context.Background(), "u1", limitBuy("3", "10"))
	require.NoError(t, err)
	res, err = m.Execute(context.Background(), "u1", o.ID, ExecuteSpec{Price: d("10"), CreatePosition: &yes})
	require.NoError(t, err)
	assert.Equal(t, PositionSucceeded, res.PositionOutcome)
	assert.Len(t, opener.specs, 1)
}

func TestExecuteRetriesStaleVersion(t *testing.T) {
	t.Parallel()

	m, s := newTestManager(t, nil)
	ctx := context.Background()
	o, err := m.Create(ctx, "u1", limitBuy("100", "10"))
	require.NoError(t, err)

	// Another fill of 30 commits between our read and our write.
	s.beforeUpdate = func(w *Order) {
		s.beforeUpdate = nil
		s.bump(w.ID, func(cur *Order) {
			cur.Status = StatusPartial
			cur.Volume = d("70")
		})
	}

	res, err := m.Execute(ctx, "u1", o.ID, ExecuteSpec{Price: d("10"), Volume: dp("50")})
	require.NoError(t, err)
	assert.Equal(t, 2, s.updates)
	assert.Equal(t, StatusPartial, res.Order.Status)
	assert.True(t, d("20").Equal(res.Remaining), "volume is not double spent")
}

func TestConcurrentFillCannotOverspend(t *testing.T) {
	t.Parallel()

	m, s := newTestManager(t, nil)
	ctx := context.Background()
	o, err := m.Create(ctx, "u1", limitBuy("100", "10"))
	require.NoError(t, err)

	s.beforeUpdate = func(w *Order) {
		s.beforeUpdate = nil
		s.bump(w.ID, func(cur *Order) {
			cur.Status = StatusPartial
			cur.Volume = d("30")
		})
	}

	_, err = m.Execute(ctx, "u1", o.ID, ExecuteSpec{Price: d("10"), Volume: dp("50")})
	assert.True(t, errors.Is(err, errs.ErrInvariant), "got %v", err)
	assert.True(t, d("30").Equal(s.get(o.ID).Volume))
}

func TestExecuteGivesUpOnContention(t *testing.T) {
	t.Parallel()

	m, s := newTestManager(t, nil, WithMaxStaleRetries(3))
	ctx := context.Background()
	o, err := m.Create(ctx, "u1", limitBuy("100", "10"))
	require.NoError(t, err)

	s.beforeUpdate = func(w *Order) { s.bump(w.ID, nil) }
	_, err = m.Execute(ctx, "u1", o.ID, ExecuteSpec{Price: d("10")})
	assert.True(t, errors.Is(err, errs.ErrConflict), "got %v", err)
	assert.Equal(t, 3, s.updates)
}
