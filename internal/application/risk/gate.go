package risk

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/alejandrodnm/polyedge/internal/domain"
	"github.com/shopspring/decimal"
)

// Verdict es la respuesta del gate a una orden. Un rechazo no es un error:
// es el resultado esperado en régimen normal y lo loguea quien llama.
type Verdict struct {
	Approved bool
	Reason   domain.RejectReason
}

func approve() Verdict                     { return Verdict{Approved: true} }
func reject(r domain.RejectReason) Verdict { return Verdict{Reason: r} }

// Gate aplica los límites de cartera sobre el RiskState del día.
//
// Estados: Open → HaltedLoss cuando el P&L del día llega a -max_daily_loss;
// Open → HaltedProfit cuando el retorno del día alcanza target_daily_return.
// Solo Rollover devuelve el día a Open. Admisión y registro de cierres se
// serializan con un mutex: el contador de slots debe verse actualizado antes
// de aprobar la siguiente orden.
type Gate struct {
	mu  sync.Mutex
	cfg domain.TradingConfig
	now func() time.Time
}

// NewGate crea un Gate. cfg debe estar validada.
func NewGate(cfg domain.TradingConfig) *Gate {
	return &Gate{cfg: cfg, now: time.Now}
}

// WithClock sustituye el reloj (tests).
func (g *Gate) WithClock(now func() time.Time) *Gate {
	g.now = now
	return g
}

// Admit evalúa una orden. Si la aprueba, reserva un slot (PendingOrders++)
// hasta que Confirm o Release resuelvan el resultado de la ejecución.
func (g *Gate) Admit(order domain.SizedOrder, st *domain.RiskState) Verdict {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.evaluate(st)
	if st.Status.Halted() {
		return reject(domain.DailyLimitReached)
	}
	if st.Slots() >= g.cfg.MaxOpenPositions {
		return reject(domain.PositionLimitReached)
	}
	if v := g.recheck(order.Opportunity); !v.Approved {
		return v
	}
	if !order.Stake.IsPositive() || order.Stake.GreaterThan(g.cfg.MaxPositionSize) ||
		order.Stake.GreaterThan(order.Opportunity.Base().MaxSize) {
		return reject(domain.InvalidStake)
	}

	st.PendingOrders++
	return approve()
}

// Confirm convierte un slot reservado en posición abierta.
func (g *Gate) Confirm(st *domain.RiskState) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if st.PendingOrders > 0 {
		st.PendingOrders--
	}
	st.OpenPositions++
}

// Release libera un slot reservado cuya orden no se llenó.
func (g *Gate) Release(st *domain.RiskState) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if st.PendingOrders > 0 {
		st.PendingOrders--
	}
}

// RecordClose aplica el P&L realizado de un cierre y reevalúa los halts.
// Las posiciones abiertas nunca se cierran a la fuerza por un halt.
func (g *Gate) RecordClose(st *domain.RiskState, pnl decimal.Decimal) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if st.OpenPositions > 0 {
		st.OpenPositions--
	}
	st.DailyRealizedPnL = domain.Cents(st.DailyRealizedPnL.Add(pnl))
	g.evaluate(st)
}

// Evaluate aplica las transiciones de halt sin admitir nada.
func (g *Gate) Evaluate(st *domain.RiskState) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.evaluate(st)
}

// evaluate: un día parado no vuelve a Open salvo por Rollover.
func (g *Gate) evaluate(st *domain.RiskState) {
	if st.Status.Halted() {
		return
	}
	if st.DailyRealizedPnL.LessThanOrEqual(g.cfg.MaxDailyLoss.Neg()) {
		st.Status = domain.GateHaltedLoss
		st.HaltReason = fmt.Sprintf("daily loss %s reached limit -%s", st.DailyRealizedPnL, g.cfg.MaxDailyLoss)
		return
	}
	if g.cfg.TargetDailyReturn > 0 && st.DailyStartBankroll.IsPositive() {
		ret, _ := st.DailyRealizedPnL.Div(st.DailyStartBankroll).Float64()
		if ret >= g.cfg.TargetDailyReturn {
			st.Status = domain.GateHaltedProfit
			st.HaltReason = fmt.Sprintf("daily return %.2f%% reached target %.2f%%", ret*100, g.cfg.TargetDailyReturn*100)
		}
	}
}

// recheck defiende contra oportunidades que ya no cumplen su umbral en el
// momento de la admisión.
func (g *Gate) recheck(opp domain.Opportunity) Verdict {
	base := opp.Base()
	if g.cfg.MaxOpportunityAge > 0 && !base.DetectedAt.IsZero() &&
		g.now().Sub(base.DetectedAt) > g.cfg.MaxOpportunityAge {
		return reject(domain.StaleOpportunity)
	}

	switch o := opp.(type) {
	case domain.Arbitrage:
		if o.ExpectedEdge <= 0 || o.ExpectedEdge < g.cfg.Arbitrage.MinEdge() {
			return reject(domain.InsufficientEdge)
		}
	case domain.ValueBet:
		if math.Abs(o.ExpectedEdge) < g.cfg.MinEdge || o.ExpectedEdge == 0 {
			return reject(domain.InsufficientEdge)
		}
	case domain.QualityMarket:
		if o.Score < g.cfg.QualityMarket.MinQualityScore {
			return reject(domain.BelowQualityFloor)
		}
		if o.ExpectedEdge <= 0 {
			return reject(domain.InsufficientEdge)
		}
	default:
		return reject(domain.InsufficientEdge)
	}
	return approve()
}
