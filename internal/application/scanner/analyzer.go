package scanner

import (
	"github.com/alejandrodnm/polyedge/internal/domain"
	"github.com/alejandrodnm/polyedge/internal/domain/strategy"
)

// Analyzer puntúa un snapshot y le aplica todas las estrategias habilitadas.
type Analyzer struct {
	strategies []strategy.Strategy
	scoring    domain.ScoringConfig
}

// NewAnalyzer crea un Analyzer con las estrategias dadas (ya filtradas por enabled).
func NewAnalyzer(strategies []strategy.Strategy, scoring domain.ScoringConfig) *Analyzer {
	return &Analyzer{strategies: strategies, scoring: scoring}
}

// Analyze valida y puntúa el snapshot y devuelve las oportunidades que emite
// cada estrategia. Un snapshot inválido devuelve domain.ErrInvalidSnapshot.
func (a *Analyzer) Analyze(snap domain.MarketSnapshot, probs domain.ProbabilityLookup) ([]domain.Opportunity, domain.QualityScore, error) {
	score, err := domain.Score(snap, a.scoring)
	if err != nil {
		return nil, domain.QualityScore{}, err
	}
	// Un mercado ya resuelto no tiene nada que comprar.
	if snap.Resolved != "" {
		return nil, score, nil
	}

	var opps []domain.Opportunity
	for _, s := range a.strategies {
		if opp, ok := s.Analyze(snap, score, probs); ok {
			opps = append(opps, opp)
		}
	}
	return opps, score, nil
}
