package ledger

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/alejandrodnm/polyedge/internal/domain"
	"github.com/alejandrodnm/polyedge/internal/ports"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Tracker es el ledger de posiciones y el tracker de rendimiento.
//
// Cada apertura y cierre se persiste primero como evento append-only en el
// LedgerStore y después se aplica en memoria. Los agregados (P&L diario,
// ganancias y pérdidas brutas, pico y drawdown) se actualizan por cierre en
// O(1) amortizado: nunca se recalculan desde el histórico completo.
type Tracker struct {
	mu    sync.Mutex
	store ports.LedgerStore
	now   func() time.Time

	initial   decimal.Decimal
	positions map[string]domain.Position
	open      map[string]struct{}
	closed    []string // IDs en orden de cierre

	realized    decimal.Decimal
	deployed    decimal.Decimal
	grossProfit decimal.Decimal
	grossLoss   decimal.Decimal // valor absoluto
	wins        int
	losses      int
	daily       map[time.Time]decimal.Decimal

	peak        decimal.Decimal
	maxDrawdown decimal.Decimal
	maxDDPct    float64
}

// New crea un Tracker. store puede ser nil para un ledger solo en memoria.
func New(store ports.LedgerStore, initialBankroll decimal.Decimal) *Tracker {
	return &Tracker{
		store:     store,
		now:       time.Now,
		initial:   initialBankroll,
		positions: make(map[string]domain.Position),
		open:      make(map[string]struct{}),
		daily:     make(map[time.Time]decimal.Decimal),
		peak:      initialBankroll,
	}
}

// Replay reconstruye el estado en memoria desde el store. Se llama una vez
// al arrancar, antes del primer ciclo.
func (t *Tracker) Replay(ctx context.Context) (int, error) {
	if t.store == nil {
		return 0, nil
	}
	events, err := t.store.LoadLedgerEvents(ctx)
	if err != nil {
		return 0, fmt.Errorf("ledger.Replay: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, ev := range events {
		switch ev.Type {
		case domain.EventOpen:
			t.applyOpen(ev.Position)
		case domain.EventClose:
			t.applyClose(ev.Position)
		default:
			return 0, fmt.Errorf("ledger.Replay: event %d: unknown type %q", ev.Seq, ev.Type)
		}
	}
	return len(events), nil
}

// RecordOpen registra una posición recién llenada.
func (t *Tracker) RecordOpen(ctx context.Context, pos domain.Position) (domain.Position, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if pos.ID == "" {
		pos.ID = uuid.NewString()
	}
	if _, exists := t.positions[pos.ID]; exists {
		return pos, fmt.Errorf("ledger.RecordOpen: position %s already recorded", pos.ID)
	}
	if !pos.Size.IsPositive() || pos.EntryPrice <= 0 {
		return pos, fmt.Errorf("ledger.RecordOpen: position %s: non-positive size or price", pos.ID)
	}
	if pos.OpenedAt.IsZero() {
		pos.OpenedAt = t.now()
	}
	pos.Status = domain.PositionOpen

	if err := t.append(ctx, domain.EventOpen, pos, pos.OpenedAt); err != nil {
		return pos, fmt.Errorf("ledger.RecordOpen: %w", err)
	}
	t.applyOpen(pos)
	return pos, nil
}

// RecordClose cierra una posición a exitPrice y devuelve el P&L realizado.
func (t *Tracker) RecordClose(ctx context.Context, positionID string, exitPrice float64, at time.Time, reason string) (decimal.Decimal, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	pos, ok := t.positions[positionID]
	if !ok {
		return decimal.Zero, fmt.Errorf("ledger.RecordClose: %w: %s", domain.ErrPositionNotFound, positionID)
	}
	if !pos.IsOpen() {
		return decimal.Zero, fmt.Errorf("ledger.RecordClose: position %s already closed", positionID)
	}
	if at.IsZero() {
		at = t.now()
	}

	pos.Status = domain.PositionClosed
	pos.ClosedAt = at
	pos.ExitPrice = exitPrice
	pos.ExitReason = reason
	pos.RealizedPnL = pos.PnLAt(exitPrice)

	if err := t.append(ctx, domain.EventClose, pos, at); err != nil {
		return decimal.Zero, fmt.Errorf("ledger.RecordClose: %w", err)
	}
	t.applyClose(pos)
	return pos.RealizedPnL, nil
}

func (t *Tracker) append(ctx context.Context, typ domain.LedgerEventType, pos domain.Position, at time.Time) error {
	if t.store == nil {
		return nil
	}
	_, err := t.store.AppendLedgerEvent(ctx, domain.LedgerEvent{Type: typ, Position: pos, At: at})
	return err
}

func (t *Tracker) applyOpen(pos domain.Position) {
	t.positions[pos.ID] = pos
	t.open[pos.ID] = struct{}{}
	t.deployed = t.deployed.Add(pos.Size)
}

// applyClose actualiza todos los agregados con un único cierre.
func (t *Tracker) applyClose(pos domain.Position) {
	if prev, ok := t.positions[pos.ID]; ok && prev.IsOpen() {
		t.deployed = t.deployed.Sub(prev.Size)
	}
	delete(t.open, pos.ID)
	t.positions[pos.ID] = pos
	t.closed = append(t.closed, pos.ID)

	pnl := pos.RealizedPnL
	t.realized = t.realized.Add(pnl)
	day := domain.TradingDay(pos.ClosedAt)
	t.daily[day] = t.daily[day].Add(pnl)

	switch {
	case pnl.IsPositive():
		t.wins++
		t.grossProfit = t.grossProfit.Add(pnl)
	case pnl.IsNegative():
		t.losses++
		t.grossLoss = t.grossLoss.Add(pnl.Abs())
	}

	equity := t.initial.Add(t.realized)
	if equity.GreaterThan(t.peak) {
		t.peak = equity
	}
	dd := t.peak.Sub(equity)
	if dd.GreaterThan(t.maxDrawdown) {
		t.maxDrawdown = dd
	}
	if t.peak.IsPositive() {
		pct, _ := dd.Div(t.peak).Float64()
		t.maxDDPct = math.Max(t.maxDDPct, pct)
	}
}

// WinRate es la fracción de cierres con P&L positivo. 0 sin cierres.
func (t *Tracker) WinRate() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.closed) == 0 {
		return 0
	}
	return float64(t.wins) / float64(len(t.closed))
}

// ProfitFactor es sum(ganancias) / |sum(pérdidas)|. Devuelve +Inf si no hay
// pérdidas pero sí ganancias, y 0 si aún no hay ninguna de las dos.
func (t *Tracker) ProfitFactor() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return profitFactor(t.grossProfit, t.grossLoss)
}

func profitFactor(profit, loss decimal.Decimal) float64 {
	if loss.IsZero() {
		if profit.IsPositive() {
			return math.Inf(1)
		}
		return 0
	}
	pf, _ := profit.Div(loss).Float64()
	return pf
}

// MaxDrawdown es la mayor caída pico-valle de la curva de equity, en USDC.
func (t *Tracker) MaxDrawdown() decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.maxDrawdown
}

// MaxDrawdownPct es MaxDrawdown como fracción del pico de equity.
func (t *Tracker) MaxDrawdownPct() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.maxDDPct
}

// DailyPnL devuelve el P&L realizado del día de date.
func (t *Tracker) DailyPnL(date time.Time) decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.daily[domain.TradingDay(date)]
}

// Equity es el bankroll inicial más todo el P&L realizado.
func (t *Tracker) Equity() decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.initial.Add(t.realized)
}

// Available es el bankroll libre: equity menos el capital en posiciones abiertas.
func (t *Tracker) Available() decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return decimal.Max(decimal.Zero, t.initial.Add(t.realized).Sub(t.deployed))
}

// OpenPositions devuelve las posiciones abiertas ordenadas por apertura.
func (t *Tracker) OpenPositions() []domain.Position {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.Position, 0, len(t.open))
	for id := range t.open {
		out = append(out, t.positions[id])
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OpenedAt.Equal(out[j].OpenedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].OpenedAt.Before(out[j].OpenedAt)
	})
	return out
}

// HasOpen indica si hay alguna posición abierta en el mercado.
func (t *Tracker) HasOpen(marketID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id := range t.open {
		if t.positions[id].MarketID == marketID {
			return true
		}
	}
	return false
}

// Position devuelve una posición por ID.
func (t *Tracker) Position(id string) (domain.Position, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.positions[id]
	return p, ok
}

// RiskStateFor reconstruye el RiskState del día de now a partir del ledger:
// P&L realizado de ese día y posiciones abiertas. El bankroll de inicio del
// día es la equity actual menos el P&L de hoy. El estado del gate se deja en
// Open; el gate reevalúa los halts antes de la primera admisión.
func (t *Tracker) RiskStateFor(now time.Time) domain.RiskState {
	t.mu.Lock()
	defer t.mu.Unlock()
	day := domain.TradingDay(now)
	today := t.daily[day]
	st := domain.NewRiskState(day, t.initial.Add(t.realized).Sub(today))
	st.DailyRealizedPnL = today
	st.OpenPositions = len(t.open)
	return st
}
