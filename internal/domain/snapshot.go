package domain

import (
	"fmt"
	"time"
)

// Side identifica el outcome que se compra.
type Side string

const (
	SideYes  Side = "YES"
	SideNo   Side = "NO"
	SideBoth Side = "BOTH" // arbitraje: YES + NO a la vez
)

// Opposite devuelve el otro lado de un mercado binario.
func (s Side) Opposite() Side {
	switch s {
	case SideYes:
		return SideNo
	case SideNo:
		return SideYes
	}
	return s
}

// MarketSnapshot es la vista puntual de un mercado que consume el core.
// Es un valor inmutable: se produce una vez por ciclo y por mercado.
//
// Los tamaños del mejor nivel son opcionales (0 = desconocido). Resolved solo
// se rellena cuando la venue ya publicó el ganador.
type MarketSnapshot struct {
	MarketID string
	Question string

	YesAsk float64
	YesBid float64
	NoAsk  float64
	NoBid  float64

	YesAskSize float64
	YesBidSize float64
	NoAskSize  float64
	NoBidSize  float64

	Volume    float64
	Timestamp time.Time
	Resolved  Side
}

// NewSnapshot construye un snapshot a partir de un mercado y sus dos books.
func NewSnapshot(m Market, yes, no OrderBook, at time.Time) MarketSnapshot {
	return MarketSnapshot{
		MarketID:   m.ConditionID,
		Question:   m.Question,
		YesAsk:     yes.BestAsk(),
		YesBid:     yes.BestBid(),
		NoAsk:      no.BestAsk(),
		NoBid:      no.BestBid(),
		YesAskSize: yes.BestAskSize(),
		YesBidSize: yes.BestBidSize(),
		NoAskSize:  no.BestAskSize(),
		NoBidSize:  no.BestBidSize(),
		Volume:     m.Volume,
		Timestamp:  at,
		Resolved:   m.ResolvedSide(),
	}
}

// Validate comprueba que todos los precios estén en (0,1), que bid <= ask
// en cada lado y que volumen y tamaños no sean negativos.
func (s MarketSnapshot) Validate() error {
	if s.MarketID == "" {
		return fmt.Errorf("%w: empty market id", ErrInvalidSnapshot)
	}
	prices := []struct {
		name string
		v    float64
	}{
		{"yes_ask", s.YesAsk},
		{"yes_bid", s.YesBid},
		{"no_ask", s.NoAsk},
		{"no_bid", s.NoBid},
	}
	for _, p := range prices {
		if p.v <= 0 || p.v >= 1 {
			return fmt.Errorf("%w: %s: %s=%.4f outside (0,1)", ErrInvalidSnapshot, s.MarketID, p.name, p.v)
		}
	}
	if s.YesBid > s.YesAsk {
		return fmt.Errorf("%w: %s: yes bid %.4f above ask %.4f", ErrInvalidSnapshot, s.MarketID, s.YesBid, s.YesAsk)
	}
	if s.NoBid > s.NoAsk {
		return fmt.Errorf("%w: %s: no bid %.4f above ask %.4f", ErrInvalidSnapshot, s.MarketID, s.NoBid, s.NoAsk)
	}
	if s.Volume < 0 {
		return fmt.Errorf("%w: %s: negative volume", ErrInvalidSnapshot, s.MarketID)
	}
	if s.YesAskSize < 0 || s.YesBidSize < 0 || s.NoAskSize < 0 || s.NoBidSize < 0 {
		return fmt.Errorf("%w: %s: negative book size", ErrInvalidSnapshot, s.MarketID)
	}
	return nil
}

// Ask devuelve el mejor ask del lado dado. Para SideBoth es el coste combinado.
func (s MarketSnapshot) Ask(side Side) float64 {
	switch side {
	case SideYes:
		return s.YesAsk
	case SideNo:
		return s.NoAsk
	case SideBoth:
		return s.YesAsk + s.NoAsk
	}
	return 0
}

// Bid devuelve el mejor bid del lado dado. Para SideBoth es la suma de bids.
func (s MarketSnapshot) Bid(side Side) float64 {
	switch side {
	case SideYes:
		return s.YesBid
	case SideNo:
		return s.NoBid
	case SideBoth:
		return s.YesBid + s.NoBid
	}
	return 0
}

// YesMidpoint es el precio implícito del YES.
func (s MarketSnapshot) YesMidpoint() float64 {
	return (s.YesBid + s.YesAsk) / 2
}

// AskLiquidity estima cuántos USDC se pueden comprar en el lado dado.
// Usa el tamaño del mejor ask si se conoce; si no, una fracción del volumen.
func (s MarketSnapshot) AskLiquidity(side Side, volumeShare float64) float64 {
	var size float64
	switch side {
	case SideYes:
		size = s.YesAskSize
	case SideNo:
		size = s.NoAskSize
	case SideBoth:
		return min(s.AskLiquidity(SideYes, volumeShare), s.AskLiquidity(SideNo, volumeShare))
	}
	if size > 0 {
		return size * s.Ask(side)
	}
	return s.Volume * volumeShare
}
