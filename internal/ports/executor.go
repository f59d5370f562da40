package ports

import (
	"context"

	"github.com/alejandrodnm/polyedge/internal/domain"
)

// OrderExecutor coloca órdenes en la venue. Es opaco para el core más allá
// de este contrato: devuelve un fill (lleno o no) o un error.
type OrderExecutor interface {
	// Execute envía la orden. Devuelve domain.ErrOrderPending si la orden quedó
	// enviada sin confirmación; el orquestador la reconcilia en el siguiente ciclo.
	Execute(ctx context.Context, intent domain.OrderIntent) (domain.Fill, error)

	// Reconcile consulta el estado de una orden enviada en un ciclo anterior.
	// Devuelve domain.ErrOrderPending si sigue sin confirmar.
	Reconcile(ctx context.Context, intent domain.OrderIntent) (domain.Fill, error)

	// Close cierra (vende) una posición abierta al mejor precio disponible.
	Close(ctx context.Context, pos domain.Position) (domain.Fill, error)
}
