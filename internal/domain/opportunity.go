package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OpportunityKind identifica la variante de una oportunidad. El orden de las
// constantes es también la prioridad de ejecución dentro de un ciclo.
type OpportunityKind int

const (
	KindArbitrage OpportunityKind = iota
	KindValueBet
	KindQualityMarket
)

// String implementa fmt.Stringer.
func (k OpportunityKind) String() string {
	switch k {
	case KindArbitrage:
		return "arbitrage"
	case KindValueBet:
		return "value_bet"
	case KindQualityMarket:
		return "quality_market"
	}
	return "unknown"
}

// ParseOpportunityKind es la inversa de String. Usado al leer el ledger.
func ParseOpportunityKind(s string) (OpportunityKind, bool) {
	for _, k := range OpportunityKinds() {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

// OpportunityKinds devuelve todas las variantes en orden de prioridad.
func OpportunityKinds() []OpportunityKind {
	return []OpportunityKind{KindArbitrage, KindValueBet, KindQualityMarket}
}

// Opportunity es el tipo suma cerrado de oportunidades detectadas en un ciclo.
// Solo Arbitrage, ValueBet y QualityMarket lo implementan: el método no
// exportado impide variantes fuera del paquete. Añadir una variante exige
// extender OpportunityKind y los switch exhaustivos del sizer y del gate.
type Opportunity interface {
	Kind() OpportunityKind
	Base() OpportunityBase
	// Side es el lado que se compra.
	Side() Side
	// EntryPrice es el precio al que se transacciona (límite de la orden).
	EntryPrice() float64
	opportunity()
}

// OpportunityBase son los campos comunes a todas las variantes.
// Una oportunidad es efímera: vive solo dentro de un ciclo y nunca se muta.
type OpportunityBase struct {
	MarketID     string
	Question     string
	ExpectedEdge float64         // fracción; con signo en ValueBet
	MaxSize      decimal.Decimal // USDC, acotado por liquidez
	DetectedAt   time.Time
}

// Arbitrage: comprar YES y NO cuando su coste combinado es menor que el pago de $1.
type Arbitrage struct {
	OpportunityBase
	YesAsk float64
	NoAsk  float64
}

// ValueBet: la probabilidad externa difiere del precio implícito en al menos min_edge.
type ValueBet struct {
	OpportunityBase
	Bet         Side
	Price       float64 // precio implícito del lado comprado
	Probability float64 // probabilidad externa del lado comprado
	LimitPrice  float64 // mejor ask del lado comprado
}

// QualityMarket: orden límite un tick por delante del mejor bid en un mercado de calidad.
type QualityMarket struct {
	OpportunityBase
	Bet        Side
	LimitPrice float64
	Score      float64
}

func (Arbitrage) Kind() OpportunityKind     { return KindArbitrage }
func (ValueBet) Kind() OpportunityKind      { return KindValueBet }
func (QualityMarket) Kind() OpportunityKind { return KindQualityMarket }

func (o Arbitrage) Base() OpportunityBase     { return o.OpportunityBase }
func (o ValueBet) Base() OpportunityBase      { return o.OpportunityBase }
func (o QualityMarket) Base() OpportunityBase { return o.OpportunityBase }

func (Arbitrage) Side() Side       { return SideBoth }
func (o ValueBet) Side() Side      { return o.Bet }
func (o QualityMarket) Side() Side { return o.Bet }

func (o Arbitrage) EntryPrice() float64     { return o.YesAsk + o.NoAsk }
func (o ValueBet) EntryPrice() float64      { return o.LimitPrice }
func (o QualityMarket) EntryPrice() float64 { return o.LimitPrice }

func (Arbitrage) opportunity()     {}
func (ValueBet) opportunity()      {}
func (QualityMarket) opportunity() {}
