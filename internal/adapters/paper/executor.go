// Package paper simula la ejecución de órdenes contra los últimos books
// observados. Nada sale a la venue.
package paper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/polyedge/internal/domain"
	"github.com/alejandrodnm/polyedge/internal/ports"
)

const defaultOrderTTL = time.Hour

// ErrNoBook: el executor no tiene un snapshot válido del mercado.
var ErrNoBook = errors.New("paper: no book for market")

// Config parametriza la simulación.
type Config struct {
	// OrderTTL cancela una orden límite que sigue sin cruzar pasado este tiempo.
	OrderTTL time.Duration
}

// Executor implementa ports.OrderExecutor sin dinero real.
//
// Una orden cuyo límite alcanza el mejor ask se llena al ask (o al coste
// combinado YES+NO en un arbitraje). Una orden por debajo del ask queda en
// reposo y devuelve domain.ErrOrderPending; se llena a su límite en cuanto
// un snapshot posterior muestra el ask en o por debajo de él. Los cierres
// venden al mejor bid.
type Executor struct {
	cfg Config
	now func() time.Time

	mu      sync.Mutex
	books   map[string]domain.MarketSnapshot
	resting map[string]restingOrder
}

type restingOrder struct {
	intent   domain.OrderIntent
	placedAt time.Time
}

// NewExecutor crea un executor vacío; necesita Observe (o Feed) para operar.
func NewExecutor(cfg Config) *Executor {
	if cfg.OrderTTL <= 0 {
		cfg.OrderTTL = defaultOrderTTL
	}
	return &Executor{
		cfg:     cfg,
		now:     time.Now,
		books:   make(map[string]domain.MarketSnapshot),
		resting: make(map[string]restingOrder),
	}
}

// WithClock sustituye el reloj (tests).
func (e *Executor) WithClock(now func() time.Time) *Executor {
	e.now = now
	return e
}

// Observe actualiza los books con el batch de un ciclo.
func (e *Executor) Observe(snaps []domain.MarketSnapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, s := range snaps {
		e.books[s.MarketID] = s
	}
}

// Feed envuelve un SnapshotProvider para que cada fetch alimente al executor.
func (e *Executor) Feed(p ports.SnapshotProvider) ports.SnapshotProvider {
	return feed{inner: p, exec: e}
}

type feed struct {
	inner ports.SnapshotProvider
	exec  *Executor
}

func (f feed) FetchSnapshots(ctx context.Context) ([]domain.MarketSnapshot, error) {
	snaps, err := f.inner.FetchSnapshots(ctx)
	if err != nil {
		return nil, err
	}
	f.exec.Observe(snaps)
	return snaps, nil
}

// Execute simula el envío de la orden.
func (e *Executor) Execute(ctx context.Context, intent domain.OrderIntent) (domain.Fill, error) {
	if err := ctx.Err(); err != nil {
		return domain.Fill{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	snap, err := e.book(intent.MarketID)
	if err != nil {
		return domain.Fill{}, err
	}
	if snap.Resolved != "" {
		return domain.Fill{}, fmt.Errorf("paper.Execute: market %s already resolved", intent.MarketID)
	}

	ask := snap.Ask(intent.Side)
	if ask <= 0 {
		return domain.Fill{}, fmt.Errorf("paper.Execute: %w: %s side %s", ErrNoBook, intent.MarketID, intent.Side)
	}
	if intent.Price >= ask {
		slog.Debug("paper: marketable order filled", "order_id", intent.OrderID, "price", ask)
		return domain.Fill{OrderID: intent.OrderID, Filled: true, Price: ask, FilledAt: e.now()}, nil
	}

	e.resting[intent.OrderID] = restingOrder{intent: intent, placedAt: e.now()}
	slog.Debug("paper: limit order resting",
		"order_id", intent.OrderID,
		"limit", fmt.Sprintf("%.4f", intent.Price),
		"ask", fmt.Sprintf("%.4f", ask),
	)
	return domain.Fill{OrderID: intent.OrderID}, domain.ErrOrderPending
}

// Reconcile comprueba una orden en reposo contra el último book. Una orden
// desconocida (p.ej. tras un reinicio) se adopta como si se acabara de colocar.
func (e *Executor) Reconcile(_ context.Context, intent domain.OrderIntent) (domain.Fill, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ro, ok := e.resting[intent.OrderID]
	if !ok {
		ro = restingOrder{intent: intent, placedAt: e.now()}
		e.resting[intent.OrderID] = ro
	}

	snap, known := e.books[intent.MarketID]
	switch {
	case known && snap.Resolved != "":
		delete(e.resting, intent.OrderID)
		return domain.Fill{OrderID: intent.OrderID}, nil
	case known && snap.Validate() == nil && snap.Ask(intent.Side) <= intent.Price:
		delete(e.resting, intent.OrderID)
		return domain.Fill{OrderID: intent.OrderID, Filled: true, Price: intent.Price, FilledAt: e.now()}, nil
	case e.now().Sub(ro.placedAt) >= e.cfg.OrderTTL:
		delete(e.resting, intent.OrderID)
		slog.Debug("paper: resting order expired", "order_id", intent.OrderID)
		return domain.Fill{OrderID: intent.OrderID}, nil
	}
	return domain.Fill{OrderID: intent.OrderID}, domain.ErrOrderPending
}

// Close vende la posición al mejor bid de su lado.
func (e *Executor) Close(_ context.Context, pos domain.Position) (domain.Fill, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap, err := e.book(pos.MarketID)
	if err != nil {
		return domain.Fill{}, err
	}
	bid := snap.Bid(pos.Side)
	if bid <= 0 {
		return domain.Fill{}, fmt.Errorf("paper.Close: %w: no bid on %s", ErrNoBook, pos.MarketID)
	}
	return domain.Fill{OrderID: pos.OrderID, Filled: true, Price: bid, FilledAt: e.now()}, nil
}

// Resting devuelve cuántas órdenes siguen en reposo.
func (e *Executor) Resting() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.resting)
}

func (e *Executor) book(marketID string) (domain.MarketSnapshot, error) {
	snap, ok := e.books[marketID]
	if !ok {
		return snap, fmt.Errorf("%w %s", ErrNoBook, marketID)
	}
	if snap.Resolved == "" {
		if err := snap.Validate(); err != nil {
			return snap, fmt.Errorf("%w %s: %v", ErrNoBook, marketID, err)
		}
	}
	return snap, nil
}
