package ports

import (
	"context"

	"github.com/alejandrodnm/polyedge/internal/domain"
)

// SnapshotProvider entrega la foto de mercados de un ciclo ya normalizada.
// El core nunca hace fetch por su cuenta: recibe el batch completo.
type SnapshotProvider interface {
	// FetchSnapshots devuelve un snapshot por mercado abierto (o recién resuelto).
	FetchSnapshots(ctx context.Context) ([]domain.MarketSnapshot, error)
}
