package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/polyedge/internal/application/ledger"
	"github.com/alejandrodnm/polyedge/internal/application/risk"
	"github.com/alejandrodnm/polyedge/internal/application/scanner"
	"github.com/alejandrodnm/polyedge/internal/application/sizing"
	"github.com/alejandrodnm/polyedge/internal/domain"
	"github.com/alejandrodnm/polyedge/internal/ports"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const defaultInterval = 60 * time.Second

// Config contiene los parámetros del loop que no pertenecen al core de trading.
type Config struct {
	Interval time.Duration
	Bankroll decimal.Decimal // bankroll inicial del ledger
	Workers  int             // workers del detector (0 = NumCPU*2)
}

// Deps agrupa los puertos que el orquestador consume.
// Store, Probabilities y Notifiers son opcionales.
type Deps struct {
	Snapshots     ports.SnapshotProvider
	Probabilities []ports.ProbabilitySource
	Executor      ports.OrderExecutor
	Store         ports.LedgerStore
	Notifiers     []ports.Notifier
}

// Engine es el orquestador del ciclo: snapshot → detect → size → gate →
// execute → ledger. El ciclo es secuencial; solo el scoring corre en paralelo.
type Engine struct {
	cfg     Config
	trading domain.TradingConfig
	deps    Deps

	detector *scanner.Detector
	sizer    *sizing.Sizer
	gate     *risk.Gate
	ledger   *ledger.Tracker
	now      func() time.Time

	// cycleMu serializa ciclos completos (Run y RunOnce manual).
	cycleMu sync.Mutex

	// mu protege el estado publicado que leen Status y la API.
	mu      sync.Mutex
	state   domain.RiskState
	pending map[string]domain.OrderRecord // por OrderID
	last    *domain.CycleReport
}

// New construye el orquestador. Devuelve domain.ErrInvalidConfig si la
// configuración de trading se contradice o falta un puerto obligatorio.
func New(cfg Config, trading domain.TradingConfig, deps Deps) (*Engine, error) {
	if err := trading.Validate(); err != nil {
		return nil, fmt.Errorf("engine.New: %w", err)
	}
	if deps.Snapshots == nil || deps.Executor == nil {
		return nil, fmt.Errorf("engine.New: %w: snapshot provider and executor are required", domain.ErrInvalidConfig)
	}
	if !cfg.Bankroll.IsPositive() {
		return nil, fmt.Errorf("engine.New: %w: bankroll must be positive, got %s", domain.ErrInvalidConfig, cfg.Bankroll)
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}

	e := &Engine{
		cfg:      cfg,
		trading:  trading,
		deps:     deps,
		detector: scanner.NewDetector(scanner.Config{Workers: cfg.Workers}, trading),
		sizer:    sizing.New(trading),
		gate:     risk.NewGate(trading),
		ledger:   ledger.New(deps.Store, cfg.Bankroll),
		now:      time.Now,
		pending:  make(map[string]domain.OrderRecord),
	}
	e.state = e.ledger.RiskStateFor(e.now())
	return e, nil
}

// WithClock sustituye el reloj del orquestador y del gate (tests).
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	e.gate.WithClock(now)
	e.mu.Lock()
	e.state = e.ledger.RiskStateFor(now())
	e.mu.Unlock()
	return e
}

// Ledger expone el tracker para informes.
func (e *Engine) Ledger() *ledger.Tracker {
	return e.ledger
}

// Restore reconstruye el ledger y las órdenes pendientes desde el store.
// Se llama una vez al arrancar, antes del primer ciclo.
func (e *Engine) Restore(ctx context.Context) error {
	if e.deps.Store == nil {
		return nil
	}
	n, err := e.ledger.Replay(ctx)
	if err != nil {
		return fmt.Errorf("engine.Restore: %w", err)
	}
	recs, err := e.deps.Store.PendingOrders(ctx)
	if err != nil {
		return fmt.Errorf("engine.Restore: pending orders: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range recs {
		e.pending[r.Intent.OrderID] = r
	}
	e.state = e.ledger.RiskStateFor(e.now())
	e.state.PendingOrders = len(e.pending)
	e.gate.Evaluate(&e.state)

	slog.Info("ledger restored",
		"events", n,
		"open_positions", e.state.OpenPositions,
		"pending_orders", e.state.PendingOrders,
		"daily_pnl", e.state.DailyRealizedPnL.StringFixed(2),
		"gate", e.state.Status.String(),
	)
	return nil
}

// Run ejecuta ciclos cada cfg.Interval hasta que el contexto se cancele.
// El primer ciclo arranca inmediatamente. Un ciclo fallido se loguea y el
// loop sigue.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("engine starting",
		"interval", e.cfg.Interval,
		"bankroll", e.cfg.Bankroll.StringFixed(2),
		"max_open_positions", e.trading.MaxOpenPositions,
	)

	if _, err := e.RunOnce(ctx); err != nil {
		slog.Error("cycle failed", "err", err)
	}

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("engine stopped")
			return nil
		case <-ticker.C:
			if _, err := e.RunOnce(ctx); err != nil {
				slog.Error("cycle failed", "err", err)
			}
		}
	}
}

// RunOnce ejecuta exactamente un ciclo: fetch de snapshots y probabilidades,
// evaluación, persistencia del resumen y notificación.
func (e *Engine) RunOnce(ctx context.Context) (domain.CycleReport, error) {
	start := e.now()

	snaps, err := e.deps.Snapshots.FetchSnapshots(ctx)
	if err != nil {
		err = fmt.Errorf("engine.RunOnce: fetch snapshots: %w", err)
		report := e.emptyReport(start)
		report.Err = err
		e.finish(ctx, &report)
		return report, err
	}

	probs := e.probabilities(ctx, snaps)

	report, err := e.evaluate(ctx, snaps, probs)
	if err != nil {
		err = fmt.Errorf("engine.RunOnce: %w", err)
		report.Err = err
	}
	e.finish(ctx, &report)
	return report, err
}

// EvaluateCycle evalúa un batch de snapshots ya obtenido y devuelve las
// decisiones del ciclo en orden de prioridad. Un error solo se devuelve si la
// reconciliación de órdenes pendientes falla; en ese caso no se envía nada.
func (e *Engine) EvaluateCycle(ctx context.Context, snaps []domain.MarketSnapshot, probs domain.ProbabilityLookup) ([]domain.Decision, error) {
	report, err := e.evaluate(ctx, snaps, probs)
	return report.Decisions, err
}

// probabilities combina todas las fuentes en orden; las posteriores pisan a
// las anteriores. Una fuente caída solo deja sin value bets a sus mercados.
func (e *Engine) probabilities(ctx context.Context, snaps []domain.MarketSnapshot) domain.ProbabilityTable {
	table := domain.ProbabilityTable{}
	if len(e.deps.Probabilities) == 0 {
		return table
	}
	ids := make([]string, 0, len(snaps))
	for _, s := range snaps {
		ids = append(ids, s.MarketID)
	}
	for _, src := range e.deps.Probabilities {
		t, err := src.Probabilities(ctx, ids)
		if err != nil {
			slog.Warn("probability source error", "err", err)
			continue
		}
		table = table.Merge(t)
	}
	return table
}

func (e *Engine) emptyReport(start time.Time) domain.CycleReport {
	e.mu.Lock()
	defer e.mu.Unlock()
	return domain.CycleReport{
		CycleID:       uuid.NewString(),
		StartedAt:     start,
		Opportunities: map[domain.OpportunityKind]int{},
		Risk:          e.state,
		Bankroll:      e.ledger.Equity(),
	}
}

// finish persiste y notifica el resumen del ciclo. Ningún fallo aquí
// invalida lo ya ejecutado.
func (e *Engine) finish(ctx context.Context, report *domain.CycleReport) {
	report.Duration = e.now().Sub(report.StartedAt)

	e.mu.Lock()
	last := *report
	e.last = &last
	e.mu.Unlock()

	if e.deps.Store != nil {
		if err := e.deps.Store.SaveCycle(ctx, *report); err != nil {
			slog.Warn("storage error", "err", err)
		}
	}
	for _, n := range e.deps.Notifiers {
		if err := n.NotifyCycle(ctx, *report); err != nil {
			slog.Warn("notifier error", "err", err)
		}
	}

	approved, rejected, failed := report.Counts()
	slog.Info("cycle complete",
		"cycle_id", report.CycleID,
		"snapshots", report.Snapshots,
		"invalid", report.Invalid,
		"opportunities", report.TotalOpportunities(),
		"approved", approved,
		"rejected", rejected,
		"failed", failed,
		"exits", len(report.Exits),
		"gate", report.Risk.Status.String(),
		"daily_pnl", report.Risk.DailyRealizedPnL.StringFixed(2),
		"duration", report.Duration.Round(time.Millisecond),
	)
}

// Status es la foto del orquestador que consume la API.
type Status struct {
	Risk          domain.RiskState
	Equity        decimal.Decimal
	Available     decimal.Decimal
	OpenPositions []domain.Position
	PendingOrders []domain.OrderRecord
	LastCycle     *domain.CycleReport
}

// Status devuelve una copia consistente del estado publicado.
func (e *Engine) Status() Status {
	e.mu.Lock()
	st := Status{
		Risk:          e.state,
		PendingOrders: make([]domain.OrderRecord, 0, len(e.pending)),
		LastCycle:     e.last,
	}
	for _, r := range e.pending {
		st.PendingOrders = append(st.PendingOrders, r)
	}
	e.mu.Unlock()

	st.Equity = e.ledger.Equity()
	st.Available = e.available()
	st.OpenPositions = e.ledger.OpenPositions()
	return st
}

// available es el bankroll libre menos el stake reservado por las órdenes
// pendientes de confirmación.
func (e *Engine) available() decimal.Decimal {
	reserved := decimal.Zero
	e.mu.Lock()
	for _, r := range e.pending {
		reserved = reserved.Add(r.Intent.Size)
	}
	e.mu.Unlock()
	return decimal.Max(decimal.Zero, e.ledger.Available().Sub(reserved))
}

// Performance devuelve el informe de rendimiento desde since.
func (e *Engine) Performance(since time.Time) domain.PerformanceSummary {
	return e.ledger.Summary(since)
}
