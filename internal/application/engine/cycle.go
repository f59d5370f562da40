package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/polyedge/internal/domain"
	"github.com/google/uuid"
)

// evaluate ejecuta las fases del ciclo sobre una copia local del RiskState
// y la publica al terminar. El orden de las fases es fijo:
// rollover → reconcile → exits → detect → size → admit → execute.
func (e *Engine) evaluate(ctx context.Context, snaps []domain.MarketSnapshot, probs domain.ProbabilityLookup) (domain.CycleReport, error) {
	e.cycleMu.Lock()
	defer e.cycleMu.Unlock()

	now := e.now()
	report := domain.CycleReport{
		CycleID:       uuid.NewString(),
		StartedAt:     now,
		Snapshots:     len(snaps),
		Opportunities: map[domain.OpportunityKind]int{},
	}

	e.mu.Lock()
	st := e.state
	e.mu.Unlock()

	if next := domain.Rollover(st, now, e.ledger.Equity()); !next.Date.Equal(st.Date) {
		slog.Info("trading day rollover",
			"from", st.Date.Format("2006-01-02"),
			"to", next.Date.Format("2006-01-02"),
			"previous_status", st.Status.String(),
			"start_bankroll", next.DailyStartBankroll.StringFixed(2),
		)
		st = next
	}
	publish := func() {
		e.mu.Lock()
		e.state = st
		e.mu.Unlock()
		report.Risk = st
		report.Bankroll = e.ledger.Equity()
	}

	if err := e.reconcile(ctx, &st); err != nil {
		publish()
		return report, err
	}

	report.Exits = e.manageExits(ctx, snaps, &st)
	e.gate.Evaluate(&st)

	res := e.detector.Scan(snaps, probs)
	report.Invalid = res.Invalid
	report.Opportunities = res.CountByKind()

	busy := e.busyMarkets()
	for _, opp := range res.Opportunities {
		if ctx.Err() != nil {
			slog.Warn("cycle interrupted, remaining opportunities discarded", "err", ctx.Err())
			break
		}
		d, ok := e.decide(ctx, opp, &st, busy)
		if !ok {
			continue
		}
		report.Decisions = append(report.Decisions, d)
	}

	publish()
	return report, nil
}

// busyMarkets devuelve los mercados con posición abierta u orden pendiente.
func (e *Engine) busyMarkets() map[string]bool {
	busy := make(map[string]bool)
	for _, p := range e.ledger.OpenPositions() {
		busy[p.MarketID] = true
	}
	e.mu.Lock()
	for _, r := range e.pending {
		busy[r.Intent.MarketID] = true
	}
	e.mu.Unlock()
	return busy
}

// decide lleva una oportunidad por size → admit → execute. Devuelve false si
// la oportunidad no sobrevive al sizing (no genera decisión).
func (e *Engine) decide(ctx context.Context, opp domain.Opportunity, st *domain.RiskState, busy map[string]bool) (domain.Decision, bool) {
	base := opp.Base()

	order, err := e.sizer.Size(opp, e.available())
	if err != nil {
		if !errors.Is(err, domain.ErrNoSize) {
			slog.Warn("sizing error", "market_id", base.MarketID, "kind", opp.Kind().String(), "err", err)
		} else {
			slog.Debug("opportunity dropped", "market_id", base.MarketID, "kind", opp.Kind().String(), "err", err)
		}
		return domain.Decision{}, false
	}

	if busy[base.MarketID] {
		e.logRejection(order, domain.DuplicateMarket)
		return domain.Decision{Order: order, Outcome: domain.Rejected, Reason: domain.DuplicateMarket}, true
	}
	if v := e.gate.Admit(order, st); !v.Approved {
		e.logRejection(order, v.Reason)
		return domain.Decision{Order: order, Outcome: domain.Rejected, Reason: v.Reason}, true
	}

	busy[base.MarketID] = true
	return e.execute(ctx, order, st), true
}

func (e *Engine) logRejection(order domain.SizedOrder, reason domain.RejectReason) {
	slog.Info("order rejected",
		"market_id", order.MarketID(),
		"kind", order.Opportunity.Kind().String(),
		"stake", order.Stake.StringFixed(2),
		"reason", string(reason),
	)
}

// execute envía una orden ya admitida. El slot reservado por el gate se
// confirma, se libera o se mantiene pendiente según la respuesta.
func (e *Engine) execute(ctx context.Context, order domain.SizedOrder, st *domain.RiskState) domain.Decision {
	d := domain.Decision{Order: order, Outcome: domain.Approved}
	intent := order.Intent()
	now := e.now()

	rec := domain.OrderRecord{Intent: intent, Status: domain.OrderPending, SubmittedAt: now, UpdatedAt: now}
	if e.deps.Store != nil {
		if err := e.deps.Store.SaveOrder(ctx, rec); err != nil {
			e.gate.Release(st)
			d.Err = fmt.Errorf("%w: persist order %s: %v", domain.ErrExecutionFailure, intent.OrderID, err)
			slog.Warn("order not sent", "order_id", intent.OrderID, "err", d.Err)
			return d
		}
	}

	fill, err := e.deps.Executor.Execute(ctx, intent)
	switch {
	case errors.Is(err, domain.ErrOrderPending):
		d.Pending = true
		e.mu.Lock()
		e.pending[intent.OrderID] = rec
		e.mu.Unlock()
		slog.Info("order pending confirmation", "order_id", intent.OrderID, "market_id", intent.MarketID)
		return d

	case err != nil:
		e.gate.Release(st)
		if !errors.Is(err, domain.ErrExecutionFailure) {
			err = fmt.Errorf("%w: %v", domain.ErrExecutionFailure, err)
		}
		d.Err = err
		e.setOrderStatus(ctx, intent.OrderID, domain.OrderFailed)
		slog.Warn("execution failed", "order_id", intent.OrderID, "market_id", intent.MarketID, "err", err)
		return d
	}

	d.Fill = &fill
	if !fill.Filled {
		e.gate.Release(st)
		e.setOrderStatus(ctx, intent.OrderID, domain.OrderCanceled)
		slog.Info("order not filled", "order_id", intent.OrderID, "market_id", intent.MarketID)
		return d
	}

	if err := e.openPosition(ctx, intent, order.Opportunity.Base().Question, fill, st); err != nil {
		d.Err = err
	}
	return d
}

// openPosition registra un fill en el ledger y confirma el slot en el gate.
// El slot se confirma aunque el ledger falle: la posición existe en la venue.
func (e *Engine) openPosition(ctx context.Context, intent domain.OrderIntent, question string, fill domain.Fill, st *domain.RiskState) error {
	price := fill.Price
	if price <= 0 {
		price = intent.Price
	}
	at := fill.FilledAt
	if at.IsZero() {
		at = e.now()
	}

	pos, err := e.ledger.RecordOpen(ctx, domain.Position{
		OrderID:    intent.OrderID,
		MarketID:   intent.MarketID,
		Question:   question,
		Kind:       intent.Kind,
		Side:       intent.Side,
		EntryPrice: price,
		Size:       intent.Size,
		OpenedAt:   at,
	})
	e.gate.Confirm(st)
	e.setOrderStatus(ctx, intent.OrderID, domain.OrderFilled)
	if err != nil {
		slog.Error("filled order not recorded in ledger", "order_id", intent.OrderID, "err", err)
		return err
	}

	slog.Info("position opened",
		"position_id", pos.ID,
		"market_id", pos.MarketID,
		"kind", pos.Kind.String(),
		"side", string(pos.Side),
		"entry", fmt.Sprintf("%.4f", pos.EntryPrice),
		"size", pos.Size.StringFixed(2),
	)
	return nil
}

func (e *Engine) setOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) {
	if e.deps.Store == nil {
		return
	}
	if err := e.deps.Store.UpdateOrderStatus(ctx, orderID, status, e.now()); err != nil {
		slog.Warn("storage error", "order_id", orderID, "status", string(status), "err", err)
	}
}
