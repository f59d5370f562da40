package polymarket_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/alejandrodnm/polyedge/internal/adapters/polymarket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const marketsPage1 = `{
	"limit": 2, "count": 2, "next_cursor": "MTAw",
	"data": [
		{
			"condition_id": "0xabc123",
			"question": "Will BTC close above 100k?",
			"market_slug": "btc-100k",
			"end_date_iso": "2026-06-30T00:00:00Z",
			"active": true, "closed": false,
			"tokens": [
				{"token_id": "token_yes_001", "outcome": "Yes", "price": 0.72},
				{"token_id": "token_no_001",  "outcome": "No",  "price": 0.28}
			]
		},
		{
			"condition_id": "0xmulti",
			"active": true, "closed": false,
			"tokens": [
				{"token_id": "a", "outcome": "A", "price": 0.3},
				{"token_id": "b", "outcome": "B", "price": 0.3},
				{"token_id": "c", "outcome": "C", "price": 0.4}
			]
		}
	]
}`

const marketsPage2 = `{
	"limit": 2, "count": 1, "next_cursor": "LTE=",
	"data": [
		{
			"condition_id": "0xdef456",
			"question": "Will it rain in Madrid?",
			"active": true, "closed": false,
			"tokens": [
				{"token_id": "token_yes_002", "outcome": "Yes", "price": 0.40},
				{"token_id": "token_no_002",  "outcome": "No",  "price": 0.60}
			]
		}
	]
}`

const booksBatch = `[
	{
		"asset_id": "token_yes_001",
		"bids": [{"price": "0.69", "size": "300"}, {"price": "0.70", "size": "150"}],
		"asks": [{"price": "0.74", "size": "80"},  {"price": "0.72", "size": "200"}]
	},
	{
		"asset_id": "token_no_001",
		"bids": [{"price": "0.27", "size": "500"}, {"price": "0", "size": "10"}],
		"asks": [{"price": "0.29", "size": "400"}]
	}
]`

func newTestClient(clobURL, gammaURL string) *polymarket.Client {
	return polymarket.NewClient(polymarket.Config{CLOBBase: clobURL, GammaBase: gammaURL})
}

func TestFetchMarkets_PaginatesAndKeepsBinary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sampling-markets", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("next_cursor") == "MTAw" {
			w.Write([]byte(marketsPage2))
			return
		}
		w.Write([]byte(marketsPage1))
	}))
	defer srv.Close()

	markets, err := newTestClient(srv.URL, "").FetchMarkets(context.Background())
	require.NoError(t, err)
	require.Len(t, markets, 2, "three-outcome market is dropped")

	m := markets[0]
	assert.Equal(t, "0xabc123", m.ConditionID)
	assert.Equal(t, "Will BTC close above 100k?", m.Question)
	assert.Equal(t, "btc-100k", m.Slug)
	assert.Equal(t, 2026, m.EndDate.Year())
	assert.True(t, m.Active)
	assert.Equal(t, "token_yes_001", m.YesToken().TokenID)
	assert.Equal(t, "token_no_001", m.NoToken().TokenID)
	assert.InDelta(t, 0.72, m.YesToken().Price, 0.001)
	assert.Equal(t, "0xdef456", markets[1].ConditionID)
}

func TestFetchMarkets_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad cursor", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, "").FetchMarkets(context.Background())
	require.ErrorIs(t, err, polymarket.ErrClientStatus)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchMarkets_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, "").FetchMarkets(context.Background())
	assert.Error(t, err)
}

func TestFetchMarket_Resolved(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/markets/0xold", r.URL.Path)
		w.Write([]byte(`{
			"condition_id": "0xold", "active": false, "closed": true,
			"tokens": [
				{"token_id": "y", "outcome": "Yes", "price": 0, "winner": false},
				{"token_id": "n", "outcome": "No",  "price": 1, "winner": true}
			]
		}`))
	}))
	defer srv.Close()

	m, err := newTestClient(srv.URL, "").FetchMarket(context.Background(), "0xold")
	require.NoError(t, err)
	assert.True(t, m.Closed)
	assert.Equal(t, "NO", string(m.ResolvedSide()))
}

func TestFetchOrderBooks_SortedAndFiltered(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/books", r.URL.Path)
		var body []map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Len(t, body, 2)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(booksBatch))
	}))
	defer srv.Close()

	books, err := newTestClient(srv.URL, "").FetchOrderBooks(context.Background(), []string{"token_yes_001", "token_no_001"})
	require.NoError(t, err)
	require.Len(t, books, 2)

	yes := books["token_yes_001"]
	assert.InDelta(t, 0.70, yes.BestBid(), 0.001)
	assert.InDelta(t, 0.72, yes.BestAsk(), 0.001)
	assert.InDelta(t, 200, yes.BestAskSize(), 0.001)
	assert.Greater(t, yes.Bids[0].Price, yes.Bids[1].Price)
	assert.Less(t, yes.Asks[0].Price, yes.Asks[1].Price)

	no := books["token_no_001"]
	assert.Len(t, no.Bids, 1, "zero-price level is dropped")
	assert.InDelta(t, 0.29, no.BestAsk(), 0.001)
}

func TestFetchOrderBooks_BatchSplitting(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]any{})
	}))
	defer srv.Close()

	// 25 token_ids → 2 requests (batch de 20 + batch de 5)
	tokenIDs := make([]string, 25)
	for i := range tokenIDs {
		tokenIDs[i] = "token_" + string(rune('a'+i))
	}

	_, err := newTestClient(srv.URL, "").FetchOrderBooks(context.Background(), tokenIDs)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}
