package domain

import "math"

// Pesos fijos del quality score. Suman 1.
const (
	weightLiquidity = 0.35
	weightSpread    = 0.35
	weightDepth     = 0.30
)

// QualityScore es la puntuación 0–100 de tradeabilidad de un mercado.
// Se recalcula en cada ciclo y no se persiste.
type QualityScore struct {
	MarketID  string
	Score     float64
	Liquidity float64 // sub-score 0–100
	Spread    float64 // sub-score 0–100
	Depth     float64 // sub-score 0–100, 0 si no hay datos
	HasDepth  bool
}

// Score calcula el quality score de un snapshot. Es una función pura.
//
//   - liquidity: volumen relativo a VolumeFloor, satura en 100.
//   - spread: 100 si ask-bid <= MinSpread, si no 100 × MinSpread / spread. Media de YES y NO.
//   - depth: simetría bid/ask del mejor nivel. Si ningún lado tiene tamaños es
//     neutral y los pesos se renormalizan sobre liquidity y spread.
func Score(s MarketSnapshot, cfg ScoringConfig) (QualityScore, error) {
	if err := s.Validate(); err != nil {
		return QualityScore{}, err
	}

	q := QualityScore{MarketID: s.MarketID}
	q.Liquidity = liquidityScore(s.Volume, cfg.VolumeFloor)
	q.Spread = (spreadScore(s.YesAsk-s.YesBid, cfg.MinSpread) + spreadScore(s.NoAsk-s.NoBid, cfg.MinSpread)) / 2
	q.Depth, q.HasDepth = depthScore(s)

	var score float64
	if q.HasDepth {
		score = weightLiquidity*q.Liquidity + weightSpread*q.Spread + weightDepth*q.Depth
	} else {
		score = (weightLiquidity*q.Liquidity + weightSpread*q.Spread) / (weightLiquidity + weightSpread)
	}
	q.Score = clip(score, 0, 100)
	return q, nil
}

// Tradeable indica si el mercado alcanza el suelo de calidad.
func (q QualityScore) Tradeable(minScore float64) bool {
	return q.Score >= minScore
}

func liquidityScore(volume, floor float64) float64 {
	if floor <= 0 {
		return 100
	}
	return math.Min(100, 100*volume/floor)
}

func spreadScore(spread, minSpread float64) float64 {
	if spread <= minSpread || spread <= 0 {
		return 100
	}
	return clip(100*minSpread/spread, 0, 100)
}

// depthScore penaliza el desequilibrio entre el tamaño del mejor bid y el mejor ask.
func depthScore(s MarketSnapshot) (float64, bool) {
	var total float64
	var sides int
	for _, pair := range [][2]float64{
		{s.YesBidSize, s.YesAskSize},
		{s.NoBidSize, s.NoAskSize},
	} {
		bid, ask := pair[0], pair[1]
		if bid <= 0 || ask <= 0 {
			continue
		}
		total += 100 * (1 - math.Abs(bid-ask)/(bid+ask))
		sides++
	}
	if sides == 0 {
		return 0, false
	}
	return total / float64(sides), true
}

func clip(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
