package strategy

import (
	"github.com/alejandrodnm/polyedge/internal/domain"
)

// Strategy define el contrato de una regla de detección.
// Cada estrategia produce como mucho una oportunidad por mercado y ciclo.
type Strategy interface {
	// Kind es la variante de oportunidad que emite la estrategia.
	Kind() domain.OpportunityKind

	// Analyze evalúa un snapshot ya validado y puntuado. Devuelve false si el
	// mercado no cumple el umbral de la regla.
	Analyze(snap domain.MarketSnapshot, score domain.QualityScore, probs domain.ProbabilityLookup) (domain.Opportunity, bool)
}

// FromConfig construye solo las estrategias habilitadas, en orden de prioridad.
// Una estrategia deshabilitada no se instancia y no consume tiempo de ciclo.
func FromConfig(cfg domain.TradingConfig) []Strategy {
	var out []Strategy
	if cfg.Arbitrage.Enabled {
		out = append(out, NewArbitrage(cfg.Arbitrage, cfg.Scoring))
	}
	if cfg.ValueBet.Enabled {
		out = append(out, NewValueBet(cfg.MinEdge, cfg.Scoring))
	}
	if cfg.QualityMarket.Enabled {
		out = append(out, NewQualityMarket(cfg.QualityMarket, cfg.Scoring))
	}
	return out
}
