package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/alejandrodnm/polyedge/internal/domain"
)

// reconcile resuelve las órdenes que quedaron pendientes en ciclos anteriores.
// Cualquier error distinto de ErrOrderPending aborta el ciclo: no se puede
// admitir nada nuevo sin saber cuántos slots están realmente ocupados.
func (e *Engine) reconcile(ctx context.Context, st *domain.RiskState) error {
	e.mu.Lock()
	recs := make([]domain.OrderRecord, 0, len(e.pending))
	for _, r := range e.pending {
		recs = append(recs, r)
	}
	e.mu.Unlock()
	if len(recs) == 0 {
		return nil
	}
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].SubmittedAt.Before(recs[j].SubmittedAt)
	})

	for _, rec := range recs {
		intent := rec.Intent
		fill, err := e.deps.Executor.Reconcile(ctx, intent)
		switch {
		case errors.Is(err, domain.ErrOrderPending):
			slog.Debug("order still pending", "order_id", intent.OrderID)
			continue
		case err != nil:
			return fmt.Errorf("reconcile order %s: %w", intent.OrderID, err)
		}

		e.mu.Lock()
		delete(e.pending, intent.OrderID)
		e.mu.Unlock()

		if !fill.Filled {
			e.gate.Release(st)
			e.setOrderStatus(ctx, intent.OrderID, domain.OrderCanceled)
			slog.Info("pending order resolved unfilled", "order_id", intent.OrderID, "market_id", intent.MarketID)
			continue
		}
		if err := e.openPosition(ctx, intent, "", fill, st); err != nil {
			slog.Warn("reconciled fill not recorded", "order_id", intent.OrderID, "err", err)
		}
	}
	return nil
}
