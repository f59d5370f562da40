package scanner

// concurrent.go: worker pool para puntuar y analizar mercados en paralelo.
//
// Los resultados se reordenan por índice de entrada, así que la salida es
// idéntica a la de una pasada secuencial.

import (
	"log/slog"
	"runtime"
	"sync"

	"github.com/alejandrodnm/polyedge/internal/domain"
)

// analysis es el resultado de analizar un snapshot.
type analysis struct {
	opps  []domain.Opportunity
	score domain.QualityScore
	err   error
}

// analyzeConcurrent analiza todos los snapshots usando un worker pool.
// Si workers <= 0 usa runtime.NumCPU() × 2. Con un solo snapshot o un solo
// worker no lanza goroutines.
func analyzeConcurrent(
	analyzer *Analyzer,
	snapshots []domain.MarketSnapshot,
	probs domain.ProbabilityLookup,
	workers int,
) []analysis {
	if workers <= 0 {
		workers = runtime.NumCPU() * 2
	}
	results := make([]analysis, len(snapshots))

	if workers == 1 || len(snapshots) <= 1 {
		for i, s := range snapshots {
			opps, score, err := analyzer.Analyze(s, probs)
			results[i] = analysis{opps: opps, score: score, err: err}
		}
		return results
	}

	workCh := make(chan int, len(snapshots))

	// Cada worker escribe solo en su propio índice: no hace falta mutex.
	var wg sync.WaitGroup
	for i := 0; i < min(workers, len(snapshots)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range workCh {
				opps, score, err := analyzer.Analyze(snapshots[idx], probs)
				results[idx] = analysis{opps: opps, score: score, err: err}
			}
		}()
	}

	for i := range snapshots {
		workCh <- i
	}
	close(workCh)
	wg.Wait()

	slog.Debug("concurrent analysis complete",
		"markets", len(snapshots),
		"workers", workers,
	)
	return results
}
