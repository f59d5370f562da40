package strategy

import (
	"math"

	"github.com/alejandrodnm/polyedge/internal/domain"
)

// QualityMarket coloca una orden límite un tick por delante del mejor bid
// en mercados líquidos y con spread ajustado. El edge es la captura de un tick.
type QualityMarket struct {
	cfg     domain.QualityMarketConfig
	scoring domain.ScoringConfig
}

// NewQualityMarket crea la regla.
func NewQualityMarket(cfg domain.QualityMarketConfig, scoring domain.ScoringConfig) *QualityMarket {
	return &QualityMarket{cfg: cfg, scoring: scoring}
}

// Kind implementa Strategy.
func (q *QualityMarket) Kind() domain.OpportunityKind { return domain.KindQualityMarket }

// Analyze exige score >= min_quality_score y volumen >= min_volume. Si el
// spread no deja sitio para mejorar el bid sin cruzar el ask, no emite nada.
func (q *QualityMarket) Analyze(snap domain.MarketSnapshot, score domain.QualityScore, _ domain.ProbabilityLookup) (domain.Opportunity, bool) {
	if !score.Tradeable(q.cfg.MinQualityScore) || snap.Volume < q.cfg.MinVolume {
		return nil, false
	}

	side := q.cfg.Side
	limit := roundToTick(snap.Bid(side)+q.cfg.Tick, q.cfg.Tick)
	if limit >= snap.Ask(side) || limit >= 1 {
		return nil, false
	}

	return domain.QualityMarket{
		OpportunityBase: domain.OpportunityBase{
			MarketID:     snap.MarketID,
			Question:     snap.Question,
			ExpectedEdge: q.cfg.Tick,
			MaxSize:      domain.USD(snap.AskLiquidity(side, q.scoring.LiquidityShare)),
			DetectedAt:   snap.Timestamp,
		},
		Bet:        side,
		LimitPrice: limit,
		Score:      score.Score,
	}, true
}

// roundToTick elimina el ruido de coma flotante de bid + tick.
func roundToTick(price, tick float64) float64 {
	if tick <= 0 {
		return price
	}
	ticks := math.Round(price / tick)
	return math.Round(ticks*tick*1e6) / 1e6
}
