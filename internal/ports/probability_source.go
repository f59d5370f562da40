package ports

import (
	"context"

	"github.com/alejandrodnm/polyedge/internal/domain"
)

// ProbabilitySource suministra probabilidades externas estimadas por mercado.
type ProbabilitySource interface {
	// Probabilities devuelve P(YES) para los mercados conocidos entre marketIDs.
	// Los mercados sin estimación simplemente no aparecen en la tabla.
	Probabilities(ctx context.Context, marketIDs []string) (domain.ProbabilityTable, error)
}
