package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PositionStatus indica si una posición sigue abierta.
type PositionStatus string

const (
	PositionOpen   PositionStatus = "OPEN"
	PositionClosed PositionStatus = "CLOSED"
)

// Position se crea al confirmar un fill y pertenece en exclusiva al ledger.
// Para arbitraje Side es BOTH y EntryPrice el coste combinado YES+NO.
type Position struct {
	ID          string
	OrderID     string
	MarketID    string
	Question    string
	Kind        OpportunityKind
	Side        Side
	EntryPrice  float64
	Size        decimal.Decimal // USDC invertidos
	OpenedAt    time.Time
	Status      PositionStatus
	ClosedAt    time.Time
	ExitPrice   float64
	RealizedPnL decimal.Decimal
	ExitReason  string
}

// Shares devuelve el número de shares compradas (Size / EntryPrice).
func (p Position) Shares() decimal.Decimal {
	if p.EntryPrice <= 0 {
		return decimal.Zero
	}
	return p.Size.Div(decimal.NewFromFloat(p.EntryPrice))
}

// PnLAt calcula el P&L realizado si se cierra a exitPrice, redondeado a céntimos.
func (p Position) PnLAt(exitPrice float64) decimal.Decimal {
	diff := decimal.NewFromFloat(exitPrice).Sub(decimal.NewFromFloat(p.EntryPrice))
	return Cents(p.Shares().Mul(diff))
}

// ReturnAt es el retorno fraccional sobre el precio de entrada.
func (p Position) ReturnAt(price float64) float64 {
	if p.EntryPrice <= 0 {
		return 0
	}
	return (price - p.EntryPrice) / p.EntryPrice
}

// IsOpen indica si la posición sigue abierta.
func (p Position) IsOpen() bool {
	return p.Status == PositionOpen
}

// SettlementPrice devuelve el precio de cierre por resolución del mercado.
// Un arbitraje cobra $1 gane quien gane.
func (p Position) SettlementPrice(winner Side) float64 {
	switch {
	case p.Side == SideBoth:
		return 1
	case p.Side == winner:
		return 1
	}
	return 0
}
