package polymarket

import (
	"sort"
	"time"

	"github.com/alejandrodnm/polyedge/internal/domain"
)

// mapMarkets convierte los DTOs del CLOB a domain.Market.
// Los mercados que no son binarios (dos tokens) se descartan.
func mapMarkets(raw []clobMarket) []domain.Market {
	markets := make([]domain.Market, 0, len(raw))
	for _, r := range raw {
		if len(r.Tokens) != 2 {
			continue
		}
		markets = append(markets, mapMarket(r))
	}
	return markets
}

// mapMarket convierte un clobMarket DTO a domain.Market.
func mapMarket(r clobMarket) domain.Market {
	m := domain.Market{
		ConditionID: r.ConditionID,
		Question:    r.Question,
		Slug:        r.MarketSlug,
		EndDate:     parseEndDate(r.EndDateISO),
		Active:      r.Active,
		Closed:      r.Closed,
	}
	for i, t := range r.Tokens {
		if i >= 2 {
			break
		}
		m.Tokens[i] = domain.Token{
			TokenID: t.TokenID,
			Outcome: t.Outcome,
			Price:   t.Price,
			Winner:  t.Winner,
		}
	}
	return m
}

// enrichFromGamma aplica la metadata de Gamma sobre un mercado existente.
// Gamma manda en question/slug/end date solo si el CLOB no los trajo.
func enrichFromGamma(m *domain.Market, gm gammaMarket) {
	if m.Question == "" {
		m.Question = gm.Question
	}
	if m.Slug == "" {
		m.Slug = gm.Slug
	}
	if v, err := gm.Volume.Float64(); err == nil && v > 0 {
		m.Volume = v
	} else if v, err := gm.Volume24h.Float64(); err == nil {
		m.Volume = v
	}
	if m.EndDate.IsZero() {
		m.EndDate = parseEndDate(gm.EndDateISO)
	}
}

// parseEndDate: Polymarket usa varios formatos; intentamos los más comunes.
func parseEndDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02T15:04:05.000Z",
		"2006-01-02T15:04:05Z",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// mapOrderBooks convierte la respuesta batch de /books a un map tokenID→OrderBook.
func mapOrderBooks(raw []orderBookResponse) map[string]domain.OrderBook {
	result := make(map[string]domain.OrderBook, len(raw))
	for _, r := range raw {
		result[r.AssetID] = domain.OrderBook{
			TokenID: r.AssetID,
			Bids:    mapBookEntries(r.Bids, false),
			Asks:    mapBookEntries(r.Asks, true),
		}
	}
	return result
}

// mapBookEntries convierte entries raw a domain.BookEntry y los ordena.
// ascending=true → menor a mayor (asks), ascending=false → mayor a menor (bids).
func mapBookEntries(raw []bookEntryRaw, ascending bool) []domain.BookEntry {
	entries := make([]domain.BookEntry, 0, len(raw))
	for _, r := range raw {
		price, size := domain.ParsePrice(r.Price), domain.ParsePrice(r.Size)
		if price <= 0 || size <= 0 {
			continue
		}
		entries = append(entries, domain.BookEntry{Price: price, Size: size})
	}

	sort.Slice(entries, func(i, j int) bool {
		if ascending {
			return entries[i].Price < entries[j].Price
		}
		return entries[i].Price > entries[j].Price
	})
	return entries
}
