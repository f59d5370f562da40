package ports

import (
	"context"

	"github.com/alejandrodnm/polyedge/internal/domain"
)

// Notifier publica el resultado de cada ciclo (consola, alertas, métricas, streams).
type Notifier interface {
	NotifyCycle(ctx context.Context, report domain.CycleReport) error
}
