package domain

// ProbabilityLookup es la fuente externa de probabilidades estimadas.
// Hoy es una tabla manual; un modelo automático puede sustituirla sin tocar el core.
type ProbabilityLookup interface {
	// Lookup devuelve la probabilidad estimada de que el mercado resuelva YES.
	Lookup(marketID string) (float64, bool)
}

// ProbabilityTable es la implementación en memoria: market_id → P(YES).
type ProbabilityTable map[string]float64

// Lookup implementa ProbabilityLookup. Ignora valores fuera de [0,1].
func (t ProbabilityTable) Lookup(marketID string) (float64, bool) {
	p, ok := t[marketID]
	if !ok || p < 0 || p > 1 {
		return 0, false
	}
	return p, true
}

// Merge devuelve una tabla nueva con las entradas de other sobre las de t.
func (t ProbabilityTable) Merge(other ProbabilityTable) ProbabilityTable {
	out := make(ProbabilityTable, len(t)+len(other))
	for k, v := range t {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}
