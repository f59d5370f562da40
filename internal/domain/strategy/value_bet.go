package strategy

import (
	"math"

	"github.com/alejandrodnm/polyedge/internal/domain"
)

// ValueBet compara una probabilidad externa con el precio implícito del mercado.
// El precio implícito del YES es el midpoint; el del NO, su complemento.
type ValueBet struct {
	minEdge float64
	scoring domain.ScoringConfig
}

// NewValueBet crea la regla con el umbral min_edge (fracción).
func NewValueBet(minEdge float64, scoring domain.ScoringConfig) *ValueBet {
	return &ValueBet{minEdge: minEdge, scoring: scoring}
}

// Kind implementa Strategy.
func (v *ValueBet) Kind() domain.OpportunityKind { return domain.KindValueBet }

// Analyze necesita una probabilidad para el mercado. El edge se guarda con signo
// (p - implícito del YES): positivo compra YES, negativo compra NO.
func (v *ValueBet) Analyze(snap domain.MarketSnapshot, _ domain.QualityScore, probs domain.ProbabilityLookup) (domain.Opportunity, bool) {
	if probs == nil {
		return nil, false
	}
	p, ok := probs.Lookup(snap.MarketID)
	if !ok {
		return nil, false
	}

	implied := snap.YesMidpoint()
	edge := p - implied
	if math.Abs(edge) < v.minEdge || edge == 0 {
		return nil, false
	}

	opp := domain.ValueBet{
		OpportunityBase: domain.OpportunityBase{
			MarketID:     snap.MarketID,
			Question:     snap.Question,
			ExpectedEdge: edge,
			DetectedAt:   snap.Timestamp,
		},
	}
	if edge > 0 {
		opp.Bet = domain.SideYes
		opp.Price = implied
		opp.Probability = p
	} else {
		opp.Bet = domain.SideNo
		opp.Price = 1 - implied
		opp.Probability = 1 - p
	}
	opp.LimitPrice = snap.Ask(opp.Bet)
	opp.MaxSize = domain.USD(snap.AskLiquidity(opp.Bet, v.scoring.LiquidityShare))
	return opp, true
}
