package ledger_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/alejandrodnm/polyedge/internal/application/ledger"
	"github.com/alejandrodnm/polyedge/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore es un LedgerStore en memoria para tests.
type memStore struct {
	mu     sync.Mutex
	events []domain.LedgerEvent
	orders map[string]domain.OrderRecord
	cycles int
	fail   error
}

func newMemStore() *memStore {
	return &memStore{orders: make(map[string]domain.OrderRecord)}
}

func (m *memStore) AppendLedgerEvent(_ context.Context, ev domain.LedgerEvent) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return 0, m.fail
	}
	ev.Seq = int64(len(m.events) + 1)
	m.events = append(m.events, ev)
	return ev.Seq, nil
}

func (m *memStore) LoadLedgerEvents(context.Context) ([]domain.LedgerEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.LedgerEvent(nil), m.events...), nil
}

func (m *memStore) SaveOrder(_ context.Context, rec domain.OrderRecord) error {
	m.orders[rec.Intent.OrderID] = rec
	return nil
}

func (m *memStore) UpdateOrderStatus(_ context.Context, id string, status domain.OrderStatus, at time.Time) error {
	rec := m.orders[id]
	rec.Status, rec.UpdatedAt = status, at
	m.orders[id] = rec
	return nil
}

func (m *memStore) PendingOrders(context.Context) ([]domain.OrderRecord, error) {
	var out []domain.OrderRecord
	for _, r := range m.orders {
		if r.Status == domain.OrderPending {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) SaveCycle(context.Context, domain.CycleReport) error { m.cycles++; return nil }
func (m *memStore) Close() error                                        { return nil }

var day1 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func openPos(id string, kind domain.OpportunityKind) domain.Position {
	return domain.Position{
		ID:         id,
		MarketID:   "mkt-" + id,
		Kind:       kind,
		Side:       domain.SideYes,
		EntryPrice: 0.5,
		Size:       decimal.NewFromInt(100), // 200 shares
		OpenedAt:   day1,
	}
}

// closes abre y cierra una posición por cada exit, un minuto entre cada una.
func closes(t *testing.T, tr *ledger.Tracker, exits ...float64) {
	t.Helper()
	ctx := context.Background()
	for i, exit := range exits {
		id := string(rune('a' + i))
		_, err := tr.RecordOpen(ctx, openPos(id, domain.KindValueBet))
		require.NoError(t, err)
		_, err = tr.RecordClose(ctx, id, exit, day1.Add(time.Duration(i+1)*time.Minute), "test")
		require.NoError(t, err)
	}
}

func TestRecordClose_RealizedPnL(t *testing.T) {
	tr := ledger.New(nil, decimal.NewFromInt(1000))
	ctx := context.Background()

	pos, err := tr.RecordOpen(ctx, domain.Position{ID: "p1", EntryPrice: 0.40, Size: decimal.NewFromInt(40), OpenedAt: day1})
	require.NoError(t, err)
	assert.Equal(t, domain.PositionOpen, pos.Status)
	assert.Equal(t, "960", tr.Available().String())

	pnl, err := tr.RecordClose(ctx, "p1", 0.60, day1.Add(time.Hour), "take_profit")
	require.NoError(t, err)
	assert.Equal(t, "20", pnl.String())
	assert.Equal(t, "1020", tr.Equity().String())
	assert.Equal(t, "1020", tr.Available().String())
	assert.Empty(t, tr.OpenPositions())

	_, err = tr.RecordClose(ctx, "p1", 0.60, day1, "again")
	assert.Error(t, err)
}

func TestRecordClose_UnknownPosition(t *testing.T) {
	tr := ledger.New(nil, decimal.NewFromInt(1000))
	_, err := tr.RecordClose(context.Background(), "nope", 0.5, day1, "")
	assert.True(t, errors.Is(err, domain.ErrPositionNotFound))
}

func TestRecordOpen_Rejects(t *testing.T) {
	tr := ledger.New(nil, decimal.NewFromInt(1000))
	ctx := context.Background()

	_, err := tr.RecordOpen(ctx, openPos("a", domain.KindArbitrage))
	require.NoError(t, err)
	_, err = tr.RecordOpen(ctx, openPos("a", domain.KindArbitrage))
	assert.Error(t, err, "duplicate id")

	_, err = tr.RecordOpen(ctx, domain.Position{ID: "z", EntryPrice: 0.5})
	assert.Error(t, err, "zero size")
}

func TestRecordOpen_StoreFailureLeavesStateUntouched(t *testing.T) {
	store := newMemStore()
	store.fail = errors.New("disk full")
	tr := ledger.New(store, decimal.NewFromInt(1000))

	_, err := tr.RecordOpen(context.Background(), openPos("a", domain.KindArbitrage))
	require.Error(t, err)
	assert.Empty(t, tr.OpenPositions())
	assert.Equal(t, "1000", tr.Available().String())
}

func TestWinRateAndProfitFactor(t *testing.T) {
	tr := ledger.New(nil, decimal.NewFromInt(1000))
	assert.Equal(t, 0.0, tr.WinRate())
	assert.Equal(t, 0.0, tr.ProfitFactor())

	closes(t, tr, 0.75) // +50
	assert.Equal(t, 1.0, tr.WinRate())
	assert.True(t, math.IsInf(tr.ProfitFactor(), 1))

	mixed := ledger.New(nil, decimal.NewFromInt(1000))
	closes(t, mixed, 0.75, 0.35, 0.30) // +50 -30 -40
	assert.InDelta(t, 1.0/3.0, mixed.WinRate(), 1e-9)
	assert.InDelta(t, 50.0/70.0, mixed.ProfitFactor(), 1e-9)
}

func TestMaxDrawdown_RunningPeakToTrough(t *testing.T) {
	tr := ledger.New(nil, decimal.NewFromInt(1000))
	// +50 -30 -40 +100 -20 → equity 1050 1020 980 1080 1060
	closes(t, tr, 0.75, 0.35, 0.30, 1.0, 0.40)

	assert.Equal(t, "70", tr.MaxDrawdown().String())
	assert.InDelta(t, 70.0/1050.0, tr.MaxDrawdownPct(), 1e-9)
	assert.Equal(t, "1060", tr.Equity().String())
}

func TestDailyPnL(t *testing.T) {
	tr := ledger.New(nil, decimal.NewFromInt(1000))
	ctx := context.Background()

	_, err := tr.RecordOpen(ctx, openPos("a", domain.KindValueBet))
	require.NoError(t, err)
	_, err = tr.RecordOpen(ctx, openPos("b", domain.KindValueBet))
	require.NoError(t, err)

	_, err = tr.RecordClose(ctx, "a", 0.75, day1, "")
	require.NoError(t, err)
	_, err = tr.RecordClose(ctx, "b", 0.35, day1.Add(24*time.Hour), "")
	require.NoError(t, err)

	assert.Equal(t, "50", tr.DailyPnL(day1).String())
	assert.Equal(t, "-30", tr.DailyPnL(day1.Add(30*time.Hour)).String())
	assert.True(t, tr.DailyPnL(day1.Add(72*time.Hour)).IsZero())
}

func TestReplay_RebuildsState(t *testing.T) {
	store := newMemStore()
	tr := ledger.New(store, decimal.NewFromInt(1000))
	closes(t, tr, 0.75, 0.35, 0.30)
	_, err := tr.RecordOpen(context.Background(), openPos("open1", domain.KindArbitrage))
	require.NoError(t, err)

	rebuilt := ledger.New(store, decimal.NewFromInt(1000))
	n, err := rebuilt.Replay(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	assert.Equal(t, tr.WinRate(), rebuilt.WinRate())
	assert.Equal(t, tr.MaxDrawdown().String(), rebuilt.MaxDrawdown().String())
	assert.Equal(t, tr.Equity().String(), rebuilt.Equity().String())
	assert.Equal(t, tr.Available().String(), rebuilt.Available().String())
	require.Len(t, rebuilt.OpenPositions(), 1)
	assert.True(t, rebuilt.HasOpen("mkt-open1"))

	st := rebuilt.RiskStateFor(day1.Add(time.Hour))
	assert.Equal(t, "-20", st.DailyRealizedPnL.String())
	assert.Equal(t, "1000", st.DailyStartBankroll.String())
	assert.Equal(t, 1, st.OpenPositions)
	assert.Equal(t, domain.GateOpen, st.Status)
}

func TestSummary(t *testing.T) {
	tr := ledger.New(nil, decimal.NewFromInt(1000))
	ctx := context.Background()
	closes(t, tr, 0.75, 0.35) // value bets: +50 -30

	arb := openPos("arb", domain.KindArbitrage)
	arb.Side = domain.SideBoth
	arb.EntryPrice = 0.98
	arb.Size = decimal.NewFromFloat(49) // 50 shares
	_, err := tr.RecordOpen(ctx, arb)
	require.NoError(t, err)
	_, err = tr.RecordClose(ctx, "arb", 1.0, day1.Add(time.Hour), "resolved")
	require.NoError(t, err)

	s := tr.Summary(day1.Add(-time.Hour))
	assert.Equal(t, 3, s.TotalTrades)
	assert.Equal(t, 2, s.Wins)
	assert.Equal(t, 1, s.Losses)
	assert.Equal(t, "21", s.TotalPnL.String())
	assert.Equal(t, "50", s.BestTrade.String())
	assert.Equal(t, "-30", s.WorstTrade.String())
	assert.Equal(t, "25.5", s.AvgWin.String())
	assert.Equal(t, "-30", s.AvgLoss.String())
	assert.InDelta(t, 51.0/30.0, s.ProfitFactor, 1e-9)
	assert.InDelta(t, 0.021, s.ROI, 1e-9)

	vb := s.ByStrategy[domain.KindValueBet]
	assert.Equal(t, 2, vb.Trades)
	assert.Equal(t, "20", vb.PnL.String())
	assert.Equal(t, 0.5, vb.WinRate())
	assert.Equal(t, 1, s.ByStrategy[domain.KindArbitrage].Trades)

	empty := tr.Summary(day1.Add(48 * time.Hour))
	assert.Equal(t, 0, empty.TotalTrades)
	assert.Equal(t, 0.0, empty.ProfitFactor)
}
