package polymarket

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/alejandrodnm/polyedge/internal/domain"
)

// SnapshotProvider implementa ports.SnapshotProvider sobre el Client:
// listado → enriquecimiento Gamma → books batch → un snapshot por mercado.
//
// Los mercados con posición abierta que ya no aparecen en el listado se
// consultan uno a uno para detectar su resolución.
type SnapshotProvider struct {
	client *Client
	now    func() time.Time

	mu   sync.Mutex
	held func() []string
}

// NewSnapshotProvider crea el provider sobre un Client ya configurado.
func NewSnapshotProvider(client *Client) *SnapshotProvider {
	return &SnapshotProvider{client: client, now: time.Now}
}

// TrackHeld registra la función que devuelve los mercados con posición
// abierta. Se inyecta después de construir el engine.
func (p *SnapshotProvider) TrackHeld(fn func() []string) {
	p.mu.Lock()
	p.held = fn
	p.mu.Unlock()
}

// FetchSnapshots devuelve un snapshot por mercado abierto con books, más los
// mercados con posición abierta (resueltos o no).
func (p *SnapshotProvider) FetchSnapshots(ctx context.Context) ([]domain.MarketSnapshot, error) {
	listed, err := p.client.FetchMarkets(ctx)
	if err != nil {
		return nil, fmt.Errorf("polymarket.FetchSnapshots: %w", err)
	}

	markets := make([]domain.Market, 0, len(listed))
	for _, m := range listed {
		if m.Active && !m.Closed {
			markets = append(markets, m)
		}
	}
	markets = p.client.EnrichWithGamma(ctx, markets)
	markets = topByVolume(markets, p.client.cfg.MaxMarkets)
	markets = append(markets, p.heldMarkets(ctx, markets)...)

	var tokenIDs []string
	for _, m := range markets {
		if m.Closed {
			continue
		}
		tokenIDs = append(tokenIDs, m.YesToken().TokenID, m.NoToken().TokenID)
	}
	books, err := p.client.FetchOrderBooks(ctx, tokenIDs)
	if err != nil {
		return nil, fmt.Errorf("polymarket.FetchSnapshots: %w", err)
	}

	now := p.now().UTC()
	snaps := make([]domain.MarketSnapshot, 0, len(markets))
	skipped := 0
	for _, m := range markets {
		if m.Closed {
			snaps = append(snaps, closedSnapshot(m, now))
			continue
		}
		yes, okYes := books[m.YesToken().TokenID]
		no, okNo := books[m.NoToken().TokenID]
		if !okYes || !okNo {
			skipped++
			continue
		}
		snaps = append(snaps, domain.NewSnapshot(m, yes, no, now))
	}

	slog.Debug("snapshots built",
		"listed", len(listed),
		"snapshots", len(snaps),
		"without_books", skipped,
	)
	return snaps, nil
}

// heldMarkets consulta los mercados con posición que no están en markets.
// Un fallo individual se loguea y se reintenta en el siguiente ciclo.
func (p *SnapshotProvider) heldMarkets(ctx context.Context, markets []domain.Market) []domain.Market {
	p.mu.Lock()
	held := p.held
	p.mu.Unlock()
	if held == nil {
		return nil
	}

	listed := make(map[string]bool, len(markets))
	for _, m := range markets {
		listed[m.ConditionID] = true
	}

	var out []domain.Market
	for _, id := range held() {
		if listed[id] {
			continue
		}
		m, err := p.client.FetchMarket(ctx, id)
		if err != nil {
			slog.Warn("held market lookup failed", "market_id", id, "err", err)
			continue
		}
		listed[id] = true
		out = append(out, m)
	}
	return out
}

// closedSnapshot representa un mercado cerrado: solo interesa Resolved.
// Sin precios, el detector lo descarta como inválido.
func closedSnapshot(m domain.Market, at time.Time) domain.MarketSnapshot {
	return domain.MarketSnapshot{
		MarketID:  m.ConditionID,
		Question:  m.Question,
		Volume:    m.Volume,
		Timestamp: at,
		Resolved:  m.ResolvedSide(),
	}
}

// topByVolume se queda con los n mercados de mayor volumen (n <= 0 = todos).
func topByVolume(markets []domain.Market, n int) []domain.Market {
	if n <= 0 || len(markets) <= n {
		return markets
	}
	sort.SliceStable(markets, func(i, j int) bool {
		return markets[i].Volume > markets[j].Volume
	})
	return markets[:n]
}
