package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// GateStatus es el estado del día de trading.
type GateStatus int

const (
	GateOpen GateStatus = iota
	GateHaltedLoss
	GateHaltedProfit
)

// String implementa fmt.Stringer.
func (s GateStatus) String() string {
	switch s {
	case GateOpen:
		return "OPEN"
	case GateHaltedLoss:
		return "HALTED_LOSS"
	case GateHaltedProfit:
		return "HALTED_PROFIT"
	}
	return "UNKNOWN"
}

// Halted indica si el día está cerrado para nuevas órdenes.
func (s GateStatus) Halted() bool {
	return s != GateOpen
}

// RejectReason explica por qué el gate (o el orquestador) descartó una orden.
type RejectReason string

const (
	DailyLimitReached    RejectReason = "DailyLimitReached"
	PositionLimitReached RejectReason = "PositionLimitReached"
	InsufficientEdge     RejectReason = "InsufficientEdge"
	BelowQualityFloor    RejectReason = "BelowQualityFloor"
	StaleOpportunity     RejectReason = "StaleOpportunity"
	DuplicateMarket      RejectReason = "DuplicateMarket"
	InvalidStake         RejectReason = "InvalidStake"
)

// RiskState es el estado de riesgo de un día. Tiene un único dueño (el
// orquestador) que lo pasa explícitamente a gate y ledger en cada ciclo.
type RiskState struct {
	Date               time.Time // medianoche UTC del día de trading
	DailyRealizedPnL   decimal.Decimal
	DailyStartBankroll decimal.Decimal
	OpenPositions      int
	PendingOrders      int
	Status             GateStatus
	HaltReason         string
}

// TradingDay normaliza un instante a la medianoche UTC de su día.
func TradingDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NewRiskState crea el estado de un día recién abierto.
func NewRiskState(day time.Time, bankroll decimal.Decimal) RiskState {
	return RiskState{
		Date:               TradingDay(day),
		DailyRealizedPnL:   decimal.Zero,
		DailyStartBankroll: bankroll,
		Status:             GateOpen,
	}
}

// Rollover es la transición pura de cambio de día. Si now cae en el mismo
// día devuelve el estado sin cambios; si no, reabre el gate con P&L a cero y
// el bankroll actual como base, conservando posiciones abiertas y pendientes.
func Rollover(old RiskState, now time.Time, bankroll decimal.Decimal) RiskState {
	day := TradingDay(now)
	if old.Date.Equal(day) {
		return old
	}
	next := NewRiskState(day, bankroll)
	next.OpenPositions = old.OpenPositions
	next.PendingOrders = old.PendingOrders
	return next
}

// Slots es el número de posiciones que ocupan cupo (abiertas + pendientes).
func (s RiskState) Slots() int {
	return s.OpenPositions + s.PendingOrders
}

// Outcome es el resultado de la evaluación de una orden.
type Outcome string

const (
	Approved Outcome = "APPROVED"
	Rejected Outcome = "REJECTED"
)

// Decision empareja una orden dimensionada con su resultado en el ciclo.
type Decision struct {
	Order   SizedOrder
	Outcome Outcome
	Reason  RejectReason // solo si Rejected
	Fill    *Fill        // solo si Approved y el executor respondió
	Pending bool         // enviada, pendiente de confirmación
	Err     error        // ErrExecutionFailure envuelto
}

// Executed indica si la orden terminó en una posición abierta.
func (d Decision) Executed() bool {
	return d.Outcome == Approved && d.Fill != nil && d.Fill.Filled && d.Err == nil
}
