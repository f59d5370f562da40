package polymarket

// clob.go: Polymarket CLOB API adapter.
//
// FetchOrderBooks usa goroutines concurrentes para disparar múltiples batch requests
// en paralelo. El rate limiter (token bucket) en doWithRetry controla el ritmo:
// las goroutines se autolimitan sin necesidad de semáforo explícito.

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/alejandrodnm/polyedge/internal/domain"
)

const (
	marketPath = "/markets/"
	booksPath  = "/books"
	pageSize   = 100
	batchSize  = 20 // máx token_ids por request a /books

	// "LTE=" es el cursor vacío codificado en base64 que indica última página.
	lastCursor = "LTE="
)

// FetchMarkets devuelve todos los mercados binarios del listado configurado
// (por defecto /sampling-markets). Pagina usando next_cursor hasta agotar los
// resultados o alcanzar maxPages.
func (c *Client) FetchMarkets(ctx context.Context) ([]domain.Market, error) {
	var all []domain.Market
	cursor := ""

	for page := 0; c.cfg.MaxPages <= 0 || page < c.cfg.MaxPages; page++ {
		u := fmt.Sprintf("%s%s?limit=%d", c.cfg.CLOBBase, c.cfg.MarketsPath, pageSize)
		if cursor != "" {
			u += "&next_cursor=" + url.QueryEscape(cursor)
		}

		var resp marketsPage
		if err := c.get(ctx, c.clobLimiter, u, &resp); err != nil {
			return nil, fmt.Errorf("clob.FetchMarkets: %w", err)
		}
		all = append(all, mapMarkets(resp.Data)...)

		slog.Debug("fetched markets page",
			"count", len(resp.Data),
			"total", len(all),
			"has_more", resp.NextCursor != "" && resp.NextCursor != lastCursor,
		)

		if resp.NextCursor == "" || resp.NextCursor == lastCursor {
			break
		}
		cursor = resp.NextCursor
	}

	slog.Debug("markets fetched", "total", len(all))
	return all, nil
}

// FetchMarket devuelve un mercado por condition_id, esté abierto o cerrado.
// Se usa para seguir mercados con posición que ya salieron del listado.
func (c *Client) FetchMarket(ctx context.Context, conditionID string) (domain.Market, error) {
	var resp clobMarket
	if err := c.get(ctx, c.clobLimiter, c.cfg.CLOBBase+marketPath+url.PathEscape(conditionID), &resp); err != nil {
		return domain.Market{}, fmt.Errorf("clob.FetchMarket %s: %w", conditionID, err)
	}
	if len(resp.Tokens) != 2 {
		return domain.Market{}, fmt.Errorf("clob.FetchMarket %s: %d tokens, want 2", conditionID, len(resp.Tokens))
	}
	return mapMarket(resp), nil
}

// FetchOrderBooks obtiene los orderbooks para los token_ids dados usando el endpoint batch.
// Lanza un goroutine por batch (máx batchSize tokens cada uno) y los ejecuta
// concurrentemente.
func (c *Client) FetchOrderBooks(ctx context.Context, tokenIDs []string) (map[string]domain.OrderBook, error) {
	if len(tokenIDs) == 0 {
		return map[string]domain.OrderBook{}, nil
	}

	batches := splitBatches(tokenIDs, batchSize)

	type batchResult struct {
		books map[string]domain.OrderBook
		err   error
		idx   int
	}

	resultCh := make(chan batchResult, len(batches))
	var wg sync.WaitGroup

	for i, batch := range batches {
		wg.Add(1)
		go func() {
			defer wg.Done()
			books, err := c.fetchBooksBatch(ctx, batch)
			resultCh <- batchResult{books: books, err: err, idx: i}
		}()
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	result := make(map[string]domain.OrderBook, len(tokenIDs))
	var firstErr error

	for r := range resultCh {
		if r.err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("clob.FetchOrderBooks batch %d: %w", r.idx, r.err)
			}
			continue
		}
		for k, v := range r.books {
			result[k] = v
		}
	}

	if firstErr != nil {
		return nil, firstErr
	}

	slog.Debug("order books fetched", "tokens", len(tokenIDs), "books", len(result))
	return result, nil
}

// splitBatches divide tokenIDs en slices de tamaño máximo size.
func splitBatches(tokenIDs []string, size int) [][]string {
	if size <= 0 {
		size = batchSize
	}
	batches := make([][]string, 0, (len(tokenIDs)+size-1)/size)
	for i := 0; i < len(tokenIDs); i += size {
		batches = append(batches, tokenIDs[i:min(i+size, len(tokenIDs))])
	}
	return batches
}

// fetchBooksBatch hace un POST /books para un batch de token_ids.
func (c *Client) fetchBooksBatch(ctx context.Context, tokenIDs []string) (map[string]domain.OrderBook, error) {
	body := make([]orderBookRequest, len(tokenIDs))
	for i, id := range tokenIDs {
		body[i] = orderBookRequest{TokenID: id}
	}

	var resp []orderBookResponse
	if err := c.post(ctx, c.booksLimiter, c.cfg.CLOBBase+booksPath, body, &resp); err != nil {
		return nil, fmt.Errorf("POST /books: %w", err)
	}
	return mapOrderBooks(resp), nil
}
