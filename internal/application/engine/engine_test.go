package engine_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alejandrodnm/polyedge/internal/application/engine"
	"github.com/alejandrodnm/polyedge/internal/domain"
	"github.com/alejandrodnm/polyedge/internal/ports"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type memStore struct {
	mu     sync.Mutex
	events []domain.LedgerEvent
	orders map[string]domain.OrderRecord
	cycles []domain.CycleReport
}

func newMemStore() *memStore {
	return &memStore{orders: make(map[string]domain.OrderRecord)}
}

func (m *memStore) AppendLedgerEvent(_ context.Context, ev domain.LedgerEvent) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
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
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[rec.Intent.OrderID] = rec
	return nil
}

func (m *memStore) UpdateOrderStatus(_ context.Context, id string, status domain.OrderStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.orders[id]
	rec.Status, rec.UpdatedAt = status, at
	m.orders[id] = rec
	return nil
}

func (m *memStore) PendingOrders(context.Context) ([]domain.OrderRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.OrderRecord
	for _, r := range m.orders {
		if r.Status == domain.OrderPending {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) SaveCycle(_ context.Context, r domain.CycleReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cycles = append(m.cycles, r)
	return nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) statusOf(orderID string) domain.OrderStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[orderID].Status
}

type fakeSnapshots struct {
	snaps []domain.MarketSnapshot
	err   error
}

func (f *fakeSnapshots) FetchSnapshots(context.Context) ([]domain.MarketSnapshot, error) {
	return f.snaps, f.err
}

type fakeExecutor struct {
	mu           sync.Mutex
	fail         map[string]error // por market id
	pending      map[string]bool  // por market id
	reconciled   map[string]domain.Fill
	reconcileErr error
	closePrice   float64
	executed     []domain.OrderIntent
}

func newExecutor() *fakeExecutor {
	return &fakeExecutor{
		fail:       map[string]error{},
		pending:    map[string]bool{},
		reconciled: map[string]domain.Fill{},
	}
}

func (f *fakeExecutor) Execute(_ context.Context, in domain.OrderIntent) (domain.Fill, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.executed = append(f.executed, in)
	if err := f.fail[in.MarketID]; err != nil {
		return domain.Fill{}, err
	}
	if f.pending[in.MarketID] {
		return domain.Fill{}, domain.ErrOrderPending
	}
	return domain.Fill{OrderID: in.OrderID, Filled: true, Price: in.Price}, nil
}

func (f *fakeExecutor) Reconcile(_ context.Context, in domain.OrderIntent) (domain.Fill, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reconcileErr != nil {
		return domain.Fill{}, f.reconcileErr
	}
	if fill, ok := f.reconciled[in.OrderID]; ok {
		return fill, nil
	}
	return domain.Fill{}, domain.ErrOrderPending
}

func (f *fakeExecutor) Close(_ context.Context, pos domain.Position) (domain.Fill, error) {
	return domain.Fill{OrderID: pos.OrderID, Filled: true, Price: f.closePrice}, nil
}

func (f *fakeExecutor) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.executed)
}

type staticProbs struct{ table domain.ProbabilityTable }

func (s *staticProbs) Probabilities(context.Context, []string) (domain.ProbabilityTable, error) {
	return s.table, nil
}

type fakeNotifier struct{ reports []domain.CycleReport }

func (n *fakeNotifier) NotifyCycle(_ context.Context, r domain.CycleReport) error {
	n.reports = append(n.reports, r)
	return nil
}

// --- helpers ---

var day1 = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func tradingConfig() domain.TradingConfig {
	return domain.TradingConfig{
		MaxPositionSize:  decimal.NewFromInt(100),
		MaxOpenPositions: 5,
		MaxDailyLoss:     decimal.NewFromInt(25),
		MinEdge:          0.05,
		KellyFraction:    0.25,
		MinOrderSize:     decimal.NewFromInt(1),
		TakeProfitPct:    0.5,
		StopLossPct:      0.2,
		Arbitrage:        domain.ArbitrageConfig{Enabled: true, MinProfitPct: 0.8},
		ValueBet:         domain.ValueBetConfig{Enabled: true},
		Scoring:          domain.ScoringConfig{VolumeFloor: 10000, MinSpread: 0.01, LiquidityShare: 0.05},
	}
}

type harness struct {
	engine   *engine.Engine
	exec     *fakeExecutor
	store    *memStore
	provider *fakeSnapshots
	probs    *staticProbs
	clock    *clock
}

func newHarness(t *testing.T, trading domain.TradingConfig) *harness {
	t.Helper()
	h := &harness{
		exec:     newExecutor(),
		store:    newMemStore(),
		provider: &fakeSnapshots{},
		probs:    &staticProbs{},
		clock:    &clock{t: day1},
	}
	e, err := engine.New(
		engine.Config{Bankroll: decimal.NewFromInt(1000), Workers: 1},
		trading,
		engine.Deps{
			Snapshots:     h.provider,
			Probabilities: []ports.ProbabilitySource{h.probs},
			Executor:      h.exec,
			Store:         h.store,
		},
	)
	require.NoError(t, err)
	h.engine = e.WithClock(h.clock.now)
	return h
}

func (h *harness) snap(id string, yesBid, yesAsk, noBid, noAsk float64) domain.MarketSnapshot {
	return domain.MarketSnapshot{
		MarketID:  id,
		Question:  "Will " + id + " happen?",
		YesBid:    yesBid,
		YesAsk:    yesAsk,
		NoBid:     noBid,
		NoAsk:     noAsk,
		Volume:    20000,
		Timestamp: h.clock.t,
	}
}

func (h *harness) arb(id string) domain.MarketSnapshot {
	return h.snap(id, 0.46, 0.47, 0.50, 0.51)
}

func (h *harness) cycle(t *testing.T, probs domain.ProbabilityLookup, snaps ...domain.MarketSnapshot) []domain.Decision {
	t.Helper()
	ds, err := h.engine.EvaluateCycle(context.Background(), snaps, probs)
	require.NoError(t, err)
	return ds
}

// --- tests ---

func TestNew_InvalidConfig(t *testing.T) {
	cfg := tradingConfig()
	cfg.KellyFraction = 0

	_, err := engine.New(engine.Config{Bankroll: decimal.NewFromInt(1000)}, cfg,
		engine.Deps{Snapshots: &fakeSnapshots{}, Executor: newExecutor()})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)

	_, err = engine.New(engine.Config{Bankroll: decimal.NewFromInt(1000)}, tradingConfig(), engine.Deps{})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)

	_, err = engine.New(engine.Config{}, tradingConfig(),
		engine.Deps{Snapshots: &fakeSnapshots{}, Executor: newExecutor()})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestEvaluateCycle_ArbitrageOpensPosition(t *testing.T) {
	h := newHarness(t, tradingConfig())

	ds := h.cycle(t, nil, h.arb("0xarb"))

	require.Len(t, ds, 1)
	d := ds[0]
	assert.True(t, d.Executed())
	assert.Equal(t, domain.KindArbitrage, d.Order.Opportunity.Kind())
	assert.Equal(t, "100", d.Order.Stake.String())
	assert.Equal(t, domain.OrderFilled, h.store.statusOf(d.Order.ID))

	st := h.engine.Status()
	assert.Equal(t, 1, st.Risk.OpenPositions)
	assert.Zero(t, st.Risk.PendingOrders)
	require.Len(t, st.OpenPositions, 1)
	pos := st.OpenPositions[0]
	assert.Equal(t, domain.SideBoth, pos.Side)
	assert.InDelta(t, 0.98, pos.EntryPrice, 1e-9)
	assert.Equal(t, "Will 0xarb happen?", pos.Question)
	assert.Equal(t, "900", st.Available.String())
}

func TestEvaluateCycle_DuplicateMarketRejected(t *testing.T) {
	h := newHarness(t, tradingConfig())
	h.cycle(t, nil, h.arb("0xarb"))

	h.clock.t = h.clock.t.Add(time.Minute)
	ds := h.cycle(t, nil, h.arb("0xarb"))

	require.Len(t, ds, 1)
	assert.Equal(t, domain.Rejected, ds[0].Outcome)
	assert.Equal(t, domain.DuplicateMarket, ds[0].Reason)
	assert.Equal(t, 1, h.exec.calls())
}

func TestEvaluateCycle_PositionLimit(t *testing.T) {
	cfg := tradingConfig()
	cfg.MaxOpenPositions = 2
	h := newHarness(t, cfg)

	ds := h.cycle(t, nil, h.arb("0xa"), h.arb("0xb"), h.arb("0xc"))

	require.Len(t, ds, 3)
	assert.True(t, ds[0].Executed())
	assert.True(t, ds[1].Executed())
	assert.Equal(t, domain.PositionLimitReached, ds[2].Reason)
	assert.Equal(t, 2, h.engine.Status().Risk.OpenPositions)
}

func TestEvaluateCycle_ExecutionFailureIsIsolated(t *testing.T) {
	h := newHarness(t, tradingConfig())
	h.exec.fail["0xa"] = errors.New("venue down")

	ds := h.cycle(t, nil, h.arb("0xa"), h.arb("0xb"))

	require.Len(t, ds, 2)
	assert.Equal(t, domain.Approved, ds[0].Outcome)
	assert.ErrorIs(t, ds[0].Err, domain.ErrExecutionFailure)
	assert.False(t, ds[0].Executed())
	assert.Equal(t, domain.OrderFailed, h.store.statusOf(ds[0].Order.ID))
	assert.True(t, ds[1].Executed())

	st := h.engine.Status().Risk
	assert.Equal(t, 1, st.OpenPositions)
	assert.Zero(t, st.PendingOrders)
}

func TestEvaluateCycle_PendingOrderReconciledNextCycle(t *testing.T) {
	h := newHarness(t, tradingConfig())
	h.exec.pending["0xarb"] = true

	ds := h.cycle(t, nil, h.arb("0xarb"))
	require.Len(t, ds, 1)
	assert.True(t, ds[0].Pending)
	st := h.engine.Status()
	assert.Equal(t, 1, st.Risk.PendingOrders)
	assert.Len(t, st.PendingOrders, 1)
	assert.Equal(t, domain.OrderPending, h.store.statusOf(ds[0].Order.ID))

	// Sigue pendiente: el mercado no se vuelve a operar.
	h.clock.t = h.clock.t.Add(time.Minute)
	ds2 := h.cycle(t, nil, h.arb("0xarb"))
	require.Len(t, ds2, 1)
	assert.Equal(t, domain.DuplicateMarket, ds2[0].Reason)

	// Se confirma.
	h.exec.reconciled[ds[0].Order.ID] = domain.Fill{OrderID: ds[0].Order.ID, Filled: true, Price: 0.98}
	h.clock.t = h.clock.t.Add(time.Minute)
	h.cycle(t, nil)

	st = h.engine.Status()
	assert.Zero(t, st.Risk.PendingOrders)
	assert.Equal(t, 1, st.Risk.OpenPositions)
	assert.Empty(t, st.PendingOrders)
	assert.Equal(t, domain.OrderFilled, h.store.statusOf(ds[0].Order.ID))
}

func TestEvaluateCycle_PendingStakesReduceBankroll(t *testing.T) {
	exec := newExecutor()
	for _, id := range []string{"0xa", "0xb", "0xc"} {
		exec.pending[id] = true
	}
	e, err := engine.New(engine.Config{Bankroll: decimal.NewFromInt(150), Workers: 1}, tradingConfig(),
		engine.Deps{Snapshots: &fakeSnapshots{}, Executor: exec, Store: newMemStore()})
	require.NoError(t, err)
	h := &harness{engine: e, exec: exec, clock: &clock{t: day1}}
	e.WithClock(h.clock.now)

	ds := h.cycle(t, nil, h.arb("0xa"), h.arb("0xb"), h.arb("0xc"))
	require.Len(t, ds, 2, "no bankroll left for the third order")
	assert.Equal(t, "100", ds[0].Order.Stake.String())
	assert.Equal(t, "50", ds[1].Order.Stake.String())
	assert.True(t, e.Status().Available.IsZero())

	for _, d := range ds {
		exec.reconciled[d.Order.ID] = domain.Fill{OrderID: d.Order.ID, Filled: true, Price: 0.98}
	}
	h.clock.t = h.clock.t.Add(time.Minute)
	h.cycle(t, nil)

	st := e.Status()
	require.Len(t, st.OpenPositions, 2)
	committed := decimal.Zero
	for _, p := range st.OpenPositions {
		committed = committed.Add(p.Size)
	}
	assert.True(t, committed.LessThanOrEqual(decimal.NewFromInt(150)), "committed %s", committed)
	assert.True(t, st.Available.IsZero())
}

func TestEvaluateCycle_ReconcileErrorAbortsCycle(t *testing.T) {
	h := newHarness(t, tradingConfig())
	h.exec.pending["0xa"] = true
	h.cycle(t, nil, h.arb("0xa"))

	h.exec.reconcileErr = errors.New("timeout")
	ds, err := h.engine.EvaluateCycle(context.Background(), []domain.MarketSnapshot{h.arb("0xb")}, nil)

	require.Error(t, err)
	assert.Empty(t, ds)
	assert.Equal(t, 1, h.exec.calls(), "nothing submitted after a failed reconciliation")
}

func TestEvaluateCycle_CanceledContextDiscardsOrders(t *testing.T) {
	h := newHarness(t, tradingConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ds, err := h.engine.EvaluateCycle(ctx, []domain.MarketSnapshot{h.arb("0xa")}, nil)
	require.NoError(t, err)
	assert.Empty(t, ds)
	assert.Zero(t, h.exec.calls())
}

func TestEvaluateCycle_ResolutionSettlesArbitrage(t *testing.T) {
	h := newHarness(t, tradingConfig())
	h.cycle(t, nil, h.arb("0xarb"))

	h.clock.t = h.clock.t.Add(time.Hour)
	resolved := h.arb("0xarb")
	resolved.Resolved = domain.SideNo
	report, err := h.runWith(resolved)
	require.NoError(t, err)

	require.Len(t, report.Exits, 1)
	exit := report.Exits[0]
	assert.Equal(t, engine.ExitResolved, exit.ExitReason)
	assert.Equal(t, "2.04", exit.RealizedPnL.StringFixed(2))
	assert.Equal(t, 0, report.Risk.OpenPositions)
	assert.Equal(t, "2.04", report.Risk.DailyRealizedPnL.StringFixed(2))
	assert.Empty(t, report.Decisions, "resolved markets produce no new opportunities")
}

// Escenario: max_daily_loss=25 y un stop-loss que realiza -34.43.
func TestEvaluateCycle_StopLossHaltsUntilRollover(t *testing.T) {
	h := newHarness(t, tradingConfig())
	h.exec.closePrice = 0.40
	probs := domain.ProbabilityTable{"0xvb": 0.70}
	h.probs.table = probs

	ds := h.cycle(t, probs, h.snap("0xvb", 0.59, 0.61, 0.38, 0.40))
	require.Len(t, ds, 1)
	require.True(t, ds[0].Executed())
	assert.Equal(t, domain.SideYes, ds[0].Order.Side)
	assert.Equal(t, "100", ds[0].Order.Stake.String())

	// El YES cae: stop-loss, el día se para y la nueva oportunidad se rechaza.
	h.clock.t = h.clock.t.Add(time.Hour)
	report, err := h.runWith(h.snap("0xvb", 0.40, 0.42, 0.57, 0.59))
	require.NoError(t, err)
	require.Len(t, report.Exits, 1)
	assert.Equal(t, engine.ExitStopLoss, report.Exits[0].ExitReason)
	assert.Equal(t, "-34.43", report.Exits[0].RealizedPnL.StringFixed(2))
	assert.Equal(t, domain.GateHaltedLoss, report.Risk.Status)
	require.Len(t, report.Decisions, 1)
	assert.Equal(t, domain.DailyLimitReached, report.Decisions[0].Reason)

	// Mismo día: sigue parado.
	h.clock.t = h.clock.t.Add(time.Hour)
	ds = h.cycle(t, probs, h.snap("0xvb", 0.40, 0.42, 0.57, 0.59))
	require.Len(t, ds, 1)
	assert.Equal(t, domain.DailyLimitReached, ds[0].Reason)

	// Día siguiente: rollover reabre el gate.
	h.clock.t = day1.Add(24 * time.Hour)
	ds = h.cycle(t, probs, h.snap("0xvb", 0.40, 0.42, 0.57, 0.59))
	require.Len(t, ds, 1)
	assert.True(t, ds[0].Executed())
	assert.Equal(t, domain.GateOpen, h.engine.Status().Risk.Status)
}

func TestEvaluateCycle_TakeProfit(t *testing.T) {
	h := newHarness(t, tradingConfig())
	h.exec.closePrice = 0.95
	probs := domain.ProbabilityTable{"0xvb": 0.70}

	h.cycle(t, probs, h.snap("0xvb", 0.59, 0.61, 0.38, 0.40))

	h.clock.t = h.clock.t.Add(time.Hour)
	report, err := h.runWith(h.snap("0xvb", 0.95, 0.96, 0.03, 0.05))
	require.NoError(t, err)
	require.Len(t, report.Exits, 1)
	assert.Equal(t, engine.ExitTakeProfit, report.Exits[0].ExitReason)
	assert.True(t, report.Exits[0].RealizedPnL.IsPositive())
}

func TestRunOnce_PersistsAndNotifies(t *testing.T) {
	store := newMemStore()
	notifier := &fakeNotifier{}
	provider := &fakeSnapshots{}
	e, err := engine.New(engine.Config{Bankroll: decimal.NewFromInt(1000)}, tradingConfig(), engine.Deps{
		Snapshots: provider,
		Executor:  newExecutor(),
		Store:     store,
		Notifiers: []ports.Notifier{notifier},
	})
	require.NoError(t, err)
	e.WithClock(func() time.Time { return day1 })
	provider.snaps = []domain.MarketSnapshot{{
		MarketID: "0xarb", YesBid: 0.46, YesAsk: 0.47, NoBid: 0.50, NoAsk: 0.51, Volume: 20000, Timestamp: day1,
	}}

	report, err := e.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Snapshots)
	assert.Equal(t, 1, report.Opportunities[domain.KindArbitrage])
	assert.Len(t, store.cycles, 1)
	require.Len(t, notifier.reports, 1)
	assert.Equal(t, report.CycleID, notifier.reports[0].CycleID)

	provider.err = errors.New("gamma down")
	_, err = e.RunOnce(context.Background())
	require.Error(t, err)
	require.Len(t, notifier.reports, 2)
	assert.Error(t, notifier.reports[1].Err)
	assert.NotNil(t, e.Status().LastCycle)
}

func TestRestore_RebuildsPositionsAndPending(t *testing.T) {
	h := newHarness(t, tradingConfig())
	h.exec.pending["0xb"] = true
	h.cycle(t, nil, h.arb("0xa"), h.arb("0xb"))

	// Un proceso nuevo sobre el mismo store.
	e, err := engine.New(engine.Config{Bankroll: decimal.NewFromInt(1000)}, tradingConfig(),
		engine.Deps{Snapshots: &fakeSnapshots{}, Executor: h.exec, Store: h.store})
	require.NoError(t, err)
	e.WithClock(h.clock.now)
	require.NoError(t, e.Restore(context.Background()))

	st := e.Status()
	assert.Equal(t, 1, st.Risk.OpenPositions)
	assert.Equal(t, 1, st.Risk.PendingOrders)
	assert.Len(t, st.PendingOrders, 1)
	assert.Equal(t, "800", st.Available.String(), "pending stake is reserved")
}

// runWith ejecuta un ciclo completo vía RunOnce con el batch dado.
func (h *harness) runWith(snaps ...domain.MarketSnapshot) (domain.CycleReport, error) {
	h.provider.snaps = snaps
	return h.engine.RunOnce(context.Background())
}
