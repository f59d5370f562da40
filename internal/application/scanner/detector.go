package scanner

import (
	"iter"
	"log/slog"
	"math"
	"sort"

	"github.com/alejandrodnm/polyedge/internal/domain"
	"github.com/alejandrodnm/polyedge/internal/domain/strategy"
)

// Config contiene la configuración del detector.
type Config struct {
	Workers int // goroutines para análisis paralelo (0 = NumCPU*2)
}

// Detector convierte un batch de snapshots en oportunidades ordenadas por prioridad.
type Detector struct {
	cfg      Config
	analyzer *Analyzer
}

// NewDetector crea un Detector con las estrategias habilitadas en cfg.
func NewDetector(cfg Config, trading domain.TradingConfig) *Detector {
	return &Detector{
		cfg:      cfg,
		analyzer: NewAnalyzer(strategy.FromConfig(trading), trading.Scoring),
	}
}

// Result es el resultado de una pasada completa del detector.
type Result struct {
	Opportunities []domain.Opportunity // en orden de prioridad
	Scores        map[string]domain.QualityScore
	Scanned       int
	Invalid       int
}

// CountByKind cuenta oportunidades por variante.
func (r Result) CountByKind() map[domain.OpportunityKind]int {
	out := make(map[domain.OpportunityKind]int, 3)
	for _, o := range r.Opportunities {
		out[o.Kind()]++
	}
	return out
}

// Detect devuelve una secuencia perezosa, finita y reiniciable: no se hace
// ningún trabajo hasta que se recorre, y cada recorrido es una pasada completa
// e independiente. El Detector no guarda estado entre llamadas.
func (d *Detector) Detect(snapshots []domain.MarketSnapshot, probs domain.ProbabilityLookup) iter.Seq[domain.Opportunity] {
	return func(yield func(domain.Opportunity) bool) {
		for _, opp := range d.Scan(snapshots, probs).Opportunities {
			if !yield(opp) {
				return
			}
		}
	}
}

// Scan hace la pasada completa: valida, puntúa, aplica las estrategias y ordena.
// Los snapshots inválidos se saltan y se cuentan; nunca abortan la pasada.
func (d *Detector) Scan(snapshots []domain.MarketSnapshot, probs domain.ProbabilityLookup) Result {
	res := Result{
		Scores:  make(map[string]domain.QualityScore, len(snapshots)),
		Scanned: len(snapshots),
	}

	for i, a := range analyzeConcurrent(d.analyzer, snapshots, probs, d.cfg.Workers) {
		if a.err != nil {
			res.Invalid++
			slog.Debug("snapshot skipped", "market_id", snapshots[i].MarketID, "err", a.err)
			continue
		}
		res.Scores[a.score.MarketID] = a.score
		res.Opportunities = append(res.Opportunities, a.opps...)
	}

	Rank(res.Opportunities)
	return res
}

// Rank ordena in-place por prioridad: Arbitrage, ValueBet, QualityMarket;
// dentro de cada variante por |expected_edge| descendente y después por market id.
// Es el orden en que el orquestador ejecuta las órdenes de un ciclo.
func Rank(opps []domain.Opportunity) {
	sort.SliceStable(opps, func(i, j int) bool {
		a, b := opps[i], opps[j]
		if a.Kind() != b.Kind() {
			return a.Kind() < b.Kind()
		}
		ea, eb := math.Abs(a.Base().ExpectedEdge), math.Abs(b.Base().ExpectedEdge)
		if ea != eb {
			return ea > eb
		}
		return a.Base().MarketID < b.Base().MarketID
	})
}
