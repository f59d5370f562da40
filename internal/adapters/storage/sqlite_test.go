package storage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alejandrodnm/polyedge/internal/adapters/storage"
	"github.com/alejandrodnm/polyedge/internal/application/ledger"
	"github.com/alejandrodnm/polyedge/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func newDB(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func position(id string) domain.Position {
	return domain.Position{
		ID:         id,
		OrderID:    "ord-" + id,
		MarketID:   "0x" + id,
		Question:   "Will X happen?",
		Kind:       domain.KindValueBet,
		Side:       domain.SideYes,
		EntryPrice: 0.61,
		Size:       decimal.RequireFromString("100.00"),
		OpenedAt:   t0,
		Status:     domain.PositionOpen,
	}
}

func TestLedgerEvents_AppendAndLoadInOrder(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()

	open := position("a")
	seq1, err := db.AppendLedgerEvent(ctx, domain.LedgerEvent{Type: domain.EventOpen, Position: open, At: t0})
	require.NoError(t, err)

	closed := open
	closed.Status = domain.PositionClosed
	closed.ClosedAt = t0.Add(time.Hour)
	closed.ExitPrice = 0.40
	closed.RealizedPnL = decimal.RequireFromString("-34.43")
	closed.ExitReason = "stop_loss"
	seq2, err := db.AppendLedgerEvent(ctx, domain.LedgerEvent{Type: domain.EventClose, Position: closed, At: closed.ClosedAt})
	require.NoError(t, err)
	assert.Greater(t, seq2, seq1)

	events, err := db.LoadLedgerEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, domain.EventOpen, events[0].Type)
	assert.Equal(t, seq1, events[0].Seq)
	assert.True(t, events[0].At.Equal(t0))
	assert.True(t, events[0].Position.ClosedAt.IsZero())

	got := events[1].Position
	assert.Equal(t, domain.EventClose, events[1].Type)
	assert.Equal(t, domain.KindValueBet, got.Kind)
	assert.Equal(t, domain.SideYes, got.Side)
	assert.Equal(t, domain.PositionClosed, got.Status)
	assert.Equal(t, "-34.43", got.RealizedPnL.StringFixed(2))
	assert.True(t, got.Size.Equal(decimal.NewFromInt(100)))
	assert.True(t, got.ClosedAt.Equal(t0.Add(time.Hour)))
	assert.Equal(t, "stop_loss", got.ExitReason)
}

func TestLedgerEvents_FeedTrackerReplay(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()

	tr := ledger.New(db, decimal.NewFromInt(1000))
	_, err := tr.RecordOpen(ctx, position("a"))
	require.NoError(t, err)
	_, err = tr.RecordOpen(ctx, position("b"))
	require.NoError(t, err)
	pnl, err := tr.RecordClose(ctx, "a", 0.40, t0.Add(time.Hour), "stop_loss")
	require.NoError(t, err)
	assert.Equal(t, "-34.43", pnl.StringFixed(2))

	replayed := ledger.New(db, decimal.NewFromInt(1000))
	n, err := replayed.Replay(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Len(t, replayed.OpenPositions(), 1)
	assert.Equal(t, tr.Equity().String(), replayed.Equity().String())
	assert.Equal(t, tr.MaxDrawdown().String(), replayed.MaxDrawdown().String())
}

func TestOrders_PendingLifecycle(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()

	for i, id := range []string{"o1", "o2"} {
		require.NoError(t, db.SaveOrder(ctx, domain.OrderRecord{
			Intent: domain.OrderIntent{
				OrderID:  id,
				MarketID: "0xarb",
				Kind:     domain.KindArbitrage,
				Side:     domain.SideBoth,
				Price:    0.98,
				Size:     decimal.NewFromInt(100),
			},
			Status:      domain.OrderPending,
			SubmittedAt: t0.Add(time.Duration(i) * time.Second),
		}))
	}

	pending, err := db.PendingOrders(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "o1", pending[0].Intent.OrderID)
	assert.Equal(t, domain.KindArbitrage, pending[0].Intent.Kind)
	assert.Equal(t, domain.SideBoth, pending[0].Intent.Side)
	assert.True(t, pending[0].Intent.Size.Equal(decimal.NewFromInt(100)))

	require.NoError(t, db.UpdateOrderStatus(ctx, "o1", domain.OrderFilled, t0.Add(time.Minute)))

	pending, err = db.PendingOrders(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "o2", pending[0].Intent.OrderID)

	filled, err := db.Orders(ctx, domain.OrderFilled)
	require.NoError(t, err)
	require.Len(t, filled, 1)
	assert.True(t, filled[0].UpdatedAt.Equal(t0.Add(time.Minute)))

	err = db.UpdateOrderStatus(ctx, "missing", domain.OrderFilled, t0)
	assert.Error(t, err)
}

func TestCycles_SaveAndRecent(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := range 3 {
		report := domain.CycleReport{
			CycleID:       string(rune('a' + i)),
			StartedAt:     now.Add(time.Duration(i) * time.Minute),
			Duration:      1500 * time.Millisecond,
			Snapshots:     40,
			Opportunities: map[domain.OpportunityKind]int{domain.KindArbitrage: 1},
			Decisions: []domain.Decision{
				{Outcome: domain.Rejected, Reason: domain.DuplicateMarket},
			},
			Risk:     domain.RiskState{Status: domain.GateOpen, DailyRealizedPnL: decimal.RequireFromString("2.04")},
			Bankroll: decimal.NewFromInt(1000),
		}
		if i == 2 {
			report.Err = errors.New("gamma down")
		}
		require.NoError(t, db.SaveCycle(ctx, report))
	}

	rows, err := db.RecentCycles(ctx, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "c", rows[0].ID)
	assert.Equal(t, "gamma down", rows[0].Err)
	assert.Equal(t, 1, rows[0].Rejected)
	assert.Equal(t, "OPEN", rows[0].Gate)
	assert.Equal(t, 1500*time.Millisecond, rows[0].Duration)
	assert.Equal(t, "2.04", rows[1].DailyPnL.StringFixed(2))
}

func TestLedgerEvents_AreAppendOnly(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()
	_, err := db.AppendLedgerEvent(ctx, domain.LedgerEvent{Type: domain.EventOpen, Position: position("a"), At: t0})
	require.NoError(t, err)

	assert.Error(t, db.Exec(ctx, `UPDATE ledger_events SET market_id = 'x'`))
	assert.Error(t, db.Exec(ctx, `DELETE FROM ledger_events`))
}

func TestPing(t *testing.T) {
	db := newDB(t)
	assert.NoError(t, db.Ping(context.Background()))
}
