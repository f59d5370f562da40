package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerEventType distingue aperturas de cierres en el ledger append-only.
type LedgerEventType string

const (
	EventOpen  LedgerEventType = "OPEN"
	EventClose LedgerEventType = "CLOSE"
)

// LedgerEvent es una entrada inmutable del ledger. Reproducir los eventos en
// orden reconstruye posiciones, P&L diario y drawdown tras un reinicio.
type LedgerEvent struct {
	Seq      int64
	Type     LedgerEventType
	Position Position // estado de la posición tras el evento
	At       time.Time
}

// StrategyStats agrega el rendimiento de una variante de oportunidad.
type StrategyStats struct {
	Trades int
	Wins   int
	PnL    decimal.Decimal
}

// WinRate devuelve la fracción de trades ganadores.
func (s StrategyStats) WinRate() float64 {
	if s.Trades == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.Trades)
}

// PerformanceSummary es el informe de rendimiento sobre una ventana.
type PerformanceSummary struct {
	Since          time.Time
	TotalTrades    int
	Wins           int
	Losses         int
	OpenPositions  int
	WinRate        float64
	TotalPnL       decimal.Decimal
	AvgWin         decimal.Decimal
	AvgLoss        decimal.Decimal
	BestTrade      decimal.Decimal
	WorstTrade     decimal.Decimal
	ProfitFactor   float64 // +Inf si no hay pérdidas
	MaxDrawdown    decimal.Decimal
	MaxDrawdownPct float64
	ROI            float64
	Sharpe         float64
	ByStrategy     map[OpportunityKind]StrategyStats
}

// CycleReport resume un ciclo del orquestador. Lo consumen los notifiers.
type CycleReport struct {
	CycleID       string
	StartedAt     time.Time
	Duration      time.Duration
	Snapshots     int
	Invalid       int
	Opportunities map[OpportunityKind]int
	Decisions     []Decision
	Exits         []Position
	Risk          RiskState
	Bankroll      decimal.Decimal
	Err           error
}

// Counts devuelve aprobadas, rechazadas y fallidas.
func (r CycleReport) Counts() (approved, rejected, failed int) {
	for _, d := range r.Decisions {
		switch {
		case d.Outcome == Rejected:
			rejected++
		case d.Err != nil:
			failed++
		default:
			approved++
		}
	}
	return
}

// TotalOpportunities suma las oportunidades de todas las variantes.
func (r CycleReport) TotalOpportunities() int {
	var n int
	for _, c := range r.Opportunities {
		n += c
	}
	return n
}
