package strategy

import (
	"github.com/alejandrodnm/polyedge/internal/domain"
)

// Arbitrage detecta mercados donde YES + NO cuesta menos que el pago garantizado de $1.
// No aplica suelo de calidad: el beneficio está garantizado y solo lo acota la liquidez.
type Arbitrage struct {
	minEdge float64
	scoring domain.ScoringConfig
}

// NewArbitrage crea la regla con el umbral min_profit_pct dado en porcentaje.
func NewArbitrage(cfg domain.ArbitrageConfig, scoring domain.ScoringConfig) *Arbitrage {
	return &Arbitrage{minEdge: cfg.MinEdge(), scoring: scoring}
}

// Kind implementa Strategy.
func (a *Arbitrage) Kind() domain.OpportunityKind { return domain.KindArbitrage }

// Analyze emite una oportunidad si yes_ask + no_ask < 1 - min_profit_pct/100,
// con edge = 1 - coste combinado y tamaño máximo igual a la liquidez del lado más fino.
func (a *Arbitrage) Analyze(snap domain.MarketSnapshot, _ domain.QualityScore, _ domain.ProbabilityLookup) (domain.Opportunity, bool) {
	combined := snap.YesAsk + snap.NoAsk
	if combined >= 1.0-a.minEdge {
		return nil, false
	}

	maxSize := min(
		snap.AskLiquidity(domain.SideYes, a.scoring.LiquidityShare),
		snap.AskLiquidity(domain.SideNo, a.scoring.LiquidityShare),
	)

	return domain.Arbitrage{
		OpportunityBase: domain.OpportunityBase{
			MarketID:     snap.MarketID,
			Question:     snap.Question,
			ExpectedEdge: 1.0 - combined,
			MaxSize:      domain.USD(maxSize),
			DetectedAt:   snap.Timestamp,
		},
		YesAsk: snap.YesAsk,
		NoAsk:  snap.NoAsk,
	}, true
}
