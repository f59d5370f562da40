package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/polyedge/internal/domain"
)

// LedgerStore persiste el ledger append-only y el estado mínimo para
// recuperarse de un crash (órdenes pendientes de confirmación).
type LedgerStore interface {
	// AppendLedgerEvent añade un evento y devuelve su número de secuencia.
	AppendLedgerEvent(ctx context.Context, ev domain.LedgerEvent) (int64, error)

	// LoadLedgerEvents devuelve todos los eventos en orden de secuencia.
	LoadLedgerEvents(ctx context.Context) ([]domain.LedgerEvent, error)

	// SaveOrder registra una orden enviada al executor.
	SaveOrder(ctx context.Context, rec domain.OrderRecord) error

	// UpdateOrderStatus cambia el estado de una orden ya registrada.
	UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus, at time.Time) error

	// PendingOrders devuelve las órdenes enviadas sin confirmación.
	PendingOrders(ctx context.Context) ([]domain.OrderRecord, error)

	// SaveCycle persiste el resumen de un ciclo.
	SaveCycle(ctx context.Context, report domain.CycleReport) error

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}
