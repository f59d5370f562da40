package ledger

import (
	"math"
	"sort"
	"time"

	"github.com/alejandrodnm/polyedge/internal/domain"
	"github.com/shopspring/decimal"
)

// Summary calcula el informe de rendimiento de los cierres desde since.
// El drawdown es el de toda la historia: es un agregado corriente.
func (t *Tracker) Summary(since time.Time) domain.PerformanceSummary {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := domain.PerformanceSummary{
		Since:          since,
		OpenPositions:  len(t.open),
		TotalPnL:       decimal.Zero,
		MaxDrawdown:    t.maxDrawdown,
		MaxDrawdownPct: t.maxDDPct,
		ByStrategy:     make(map[domain.OpportunityKind]domain.StrategyStats),
	}

	var profit, loss decimal.Decimal
	first := true
	for _, id := range t.closed {
		p := t.positions[id]
		if p.ClosedAt.Before(since) {
			continue
		}
		pnl := p.RealizedPnL
		s.TotalTrades++
		s.TotalPnL = s.TotalPnL.Add(pnl)

		st := s.ByStrategy[p.Kind]
		st.Trades++
		st.PnL = st.PnL.Add(pnl)

		switch {
		case pnl.IsPositive():
			s.Wins++
			st.Wins++
			profit = profit.Add(pnl)
		case pnl.IsNegative():
			s.Losses++
			loss = loss.Add(pnl.Abs())
		}
		s.ByStrategy[p.Kind] = st

		if first || pnl.GreaterThan(s.BestTrade) {
			s.BestTrade = pnl
		}
		if first || pnl.LessThan(s.WorstTrade) {
			s.WorstTrade = pnl
		}
		first = false
	}

	if s.TotalTrades > 0 {
		s.WinRate = float64(s.Wins) / float64(s.TotalTrades)
	}
	if s.Wins > 0 {
		s.AvgWin = domain.Cents(profit.Div(decimal.NewFromInt(int64(s.Wins))))
	}
	if s.Losses > 0 {
		s.AvgLoss = domain.Cents(loss.Div(decimal.NewFromInt(int64(s.Losses))).Neg())
	}
	s.ProfitFactor = profitFactor(profit, loss)
	if t.initial.IsPositive() {
		s.ROI, _ = s.TotalPnL.Div(t.initial).Float64()
	}
	s.Sharpe = t.sharpe(since)
	return s
}

// sharpe anualiza (365 días) la media/desviación de los retornos diarios
// sobre el bankroll inicial. Necesita al menos dos días con cierres.
func (t *Tracker) sharpe(since time.Time) float64 {
	if !t.initial.IsPositive() {
		return 0
	}
	from := domain.TradingDay(since)
	days := make([]time.Time, 0, len(t.daily))
	for d := range t.daily {
		if !d.Before(from) {
			days = append(days, d)
		}
	}
	if len(days) < 2 {
		return 0
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	returns := make([]float64, len(days))
	var mean float64
	for i, d := range days {
		r, _ := t.daily[d].Div(t.initial).Float64()
		returns[i] = r
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	std := math.Sqrt(variance / float64(len(returns)-1))
	if std == 0 {
		return 0
	}
	return mean / std * math.Sqrt(365)
}
