package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SizedOrder es una oportunidad ya dimensionada por el sizer.
// Invariante: 0 < Stake <= max_position_size y Stake <= Opportunity.MaxSize.
type SizedOrder struct {
	ID          string
	Opportunity Opportunity
	Stake       decimal.Decimal // USDC
	Side        Side
	LimitPrice  float64
}

// MarketID es un atajo a la oportunidad de origen.
func (o SizedOrder) MarketID() string {
	return o.Opportunity.Base().MarketID
}

// Intent construye la orden que recibe el executor.
func (o SizedOrder) Intent() OrderIntent {
	return OrderIntent{
		OrderID:  o.ID,
		MarketID: o.MarketID(),
		Kind:     o.Opportunity.Kind(),
		Side:     o.Side,
		Price:    o.LimitPrice,
		Size:     o.Stake,
	}
}

// OrderIntent es lo único que el core entrega al executor por cada orden aprobada.
type OrderIntent struct {
	OrderID  string
	MarketID string
	Kind     OpportunityKind
	Side     Side
	Price    float64
	Size     decimal.Decimal
}

// Fill es la respuesta del executor.
type Fill struct {
	OrderID  string
	Filled   bool
	Price    float64
	FilledAt time.Time
}

// OrderStatus es el estado persistido de una orden enviada.
type OrderStatus string

const (
	OrderPending  OrderStatus = "PENDING"
	OrderFilled   OrderStatus = "FILLED"
	OrderFailed   OrderStatus = "FAILED"
	OrderCanceled OrderStatus = "CANCELED"
)

// OrderRecord es una orden enviada al executor, persistida para reconciliación.
type OrderRecord struct {
	Intent      OrderIntent
	Status      OrderStatus
	SubmittedAt time.Time
	UpdatedAt   time.Time
}
