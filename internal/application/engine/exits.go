package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/polyedge/internal/domain"
)

// Motivos de cierre registrados en el ledger.
const (
	ExitResolved   = "resolved"
	ExitTakeProfit = "take_profit"
	ExitStopLoss   = "stop_loss"
)

// manageExits cierra las posiciones abiertas cuyo mercado resolvió o que
// tocaron take-profit / stop-loss. Un fallo en una posición no afecta a las
// demás. Devuelve las posiciones cerradas en este ciclo.
func (e *Engine) manageExits(ctx context.Context, snaps []domain.MarketSnapshot, st *domain.RiskState) []domain.Position {
	open := e.ledger.OpenPositions()
	if len(open) == 0 {
		return nil
	}
	bySnap := make(map[string]domain.MarketSnapshot, len(snaps))
	for _, s := range snaps {
		bySnap[s.MarketID] = s
	}

	var closed []domain.Position
	for _, pos := range open {
		if ctx.Err() != nil {
			break
		}
		snap, ok := bySnap[pos.MarketID]
		if !ok {
			continue
		}

		price, at, reason, ok := e.exitFor(ctx, pos, snap)
		if !ok {
			continue
		}

		pnl, err := e.ledger.RecordClose(ctx, pos.ID, price, at, reason)
		if err != nil {
			slog.Error("close not recorded in ledger", "position_id", pos.ID, "err", err)
			continue
		}
		e.gate.RecordClose(st, pnl)

		if p, ok := e.ledger.Position(pos.ID); ok {
			closed = append(closed, p)
		}
		slog.Info("position closed",
			"position_id", pos.ID,
			"market_id", pos.MarketID,
			"reason", reason,
			"exit", fmt.Sprintf("%.4f", price),
			"pnl", pnl.StringFixed(2),
			"gate", st.Status.String(),
		)
	}
	return closed
}

// exitFor decide si una posición se cierra y a qué precio. Los mercados
// resueltos liquidan a 1/0 sin pasar por el executor; los cierres por
// take-profit o stop-loss venden al bid del lado en cartera.
func (e *Engine) exitFor(ctx context.Context, pos domain.Position, snap domain.MarketSnapshot) (float64, time.Time, string, bool) {
	if snap.Resolved != "" {
		return pos.SettlementPrice(snap.Resolved), snap.Timestamp, ExitResolved, true
	}
	// Un arbitraje se mantiene hasta la resolución.
	if pos.Side == domain.SideBoth {
		return 0, time.Time{}, "", false
	}
	if err := snap.Validate(); err != nil {
		return 0, time.Time{}, "", false
	}

	ret := pos.ReturnAt(snap.Bid(pos.Side))
	var reason string
	switch {
	case e.trading.TakeProfitPct > 0 && ret >= e.trading.TakeProfitPct:
		reason = ExitTakeProfit
	case e.trading.StopLossPct > 0 && ret <= -e.trading.StopLossPct:
		reason = ExitStopLoss
	default:
		return 0, time.Time{}, "", false
	}

	fill, err := e.deps.Executor.Close(ctx, pos)
	if err != nil {
		slog.Warn("exit failed", "position_id", pos.ID, "reason", reason, "err", err)
		return 0, time.Time{}, "", false
	}
	if !fill.Filled {
		slog.Info("exit not filled", "position_id", pos.ID, "reason", reason)
		return 0, time.Time{}, "", false
	}
	return fill.Price, fill.FilledAt, reason, true
}
