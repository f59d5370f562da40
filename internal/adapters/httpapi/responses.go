package httpapi

import (
	"time"

	"github.com/alejandrodnm/polyedge/internal/application/engine"
	"github.com/alejandrodnm/polyedge/internal/domain"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

type statusResponse struct {
	Gate          string             `json:"gate"`
	HaltReason    string             `json:"halt_reason,omitempty"`
	TradingDay    string             `json:"trading_day"`
	DailyPnL      string             `json:"daily_pnl"`
	StartBankroll string             `json:"day_start_bankroll"`
	Equity        string             `json:"equity"`
	Available     string             `json:"available"`
	OpenPositions []positionResponse `json:"open_positions"`
	PendingOrders []orderResponse    `json:"pending_orders"`
	LastCycle     *lastCycleResponse `json:"last_cycle,omitempty"`
}

type positionResponse struct {
	ID         string    `json:"id"`
	MarketID   string    `json:"market_id"`
	Question   string    `json:"question,omitempty"`
	Kind       string    `json:"kind"`
	Side       string    `json:"side"`
	EntryPrice float64   `json:"entry_price"`
	Size       string    `json:"size"`
	OpenedAt   time.Time `json:"opened_at"`
}

type orderResponse struct {
	OrderID     string    `json:"order_id"`
	MarketID    string    `json:"market_id"`
	Kind        string    `json:"kind"`
	Side        string    `json:"side"`
	Price       float64   `json:"price"`
	Size        string    `json:"size"`
	SubmittedAt time.Time `json:"submitted_at"`
}

type lastCycleResponse struct {
	ID            string         `json:"id"`
	StartedAt     time.Time      `json:"started_at"`
	DurationMs    int64          `json:"duration_ms"`
	Snapshots     int            `json:"snapshots"`
	Invalid       int            `json:"invalid"`
	Opportunities map[string]int `json:"opportunities"`
	Approved      int            `json:"approved"`
	Rejected      int            `json:"rejected"`
	Failed        int            `json:"failed"`
	Exits         int            `json:"exits"`
	Error         string         `json:"error,omitempty"`
}

type performanceResponse struct {
	Since          time.Time                   `json:"since"`
	TotalTrades    int                         `json:"total_trades"`
	Wins           int                         `json:"wins"`
	Losses         int                         `json:"losses"`
	OpenPositions  int                         `json:"open_positions"`
	WinRate        float64                     `json:"win_rate"`
	TotalPnL       string                      `json:"total_pnl"`
	AvgWin         string                      `json:"avg_win"`
	AvgLoss        string                      `json:"avg_loss"`
	BestTrade      string                      `json:"best_trade"`
	WorstTrade     string                      `json:"worst_trade"`
	ProfitFactor   *float64                    `json:"profit_factor"` // null = sin pérdidas
	MaxDrawdown    string                      `json:"max_drawdown"`
	MaxDrawdownPct float64                     `json:"max_drawdown_pct"`
	ROI            float64                     `json:"roi"`
	Sharpe         float64                     `json:"sharpe"`
	ByStrategy     map[string]strategyResponse `json:"by_strategy"`
}

type strategyResponse struct {
	Trades  int     `json:"trades"`
	Wins    int     `json:"wins"`
	WinRate float64 `json:"win_rate"`
	PnL     string  `json:"pnl"`
}

type cycleResponse struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	DurationMs int64     `json:"duration_ms"`
	Snapshots  int       `json:"snapshots"`
	Approved   int       `json:"approved"`
	Rejected   int       `json:"rejected"`
	Failed     int       `json:"failed"`
	Exits      int       `json:"exits"`
	Gate       string    `json:"gate"`
	DailyPnL   string    `json:"daily_pnl"`
	Error      string    `json:"error,omitempty"`
}

func newStatusResponse(st engine.Status) statusResponse {
	out := statusResponse{
		Gate:          st.Risk.Status.String(),
		HaltReason:    st.Risk.HaltReason,
		TradingDay:    st.Risk.Date.Format("2006-01-02"),
		DailyPnL:      st.Risk.DailyRealizedPnL.StringFixed(2),
		StartBankroll: st.Risk.DailyStartBankroll.StringFixed(2),
		Equity:        st.Equity.StringFixed(2),
		Available:     st.Available.StringFixed(2),
		OpenPositions: make([]positionResponse, 0, len(st.OpenPositions)),
		PendingOrders: make([]orderResponse, 0, len(st.PendingOrders)),
	}
	for _, p := range st.OpenPositions {
		out.OpenPositions = append(out.OpenPositions, positionResponse{
			ID:         p.ID,
			MarketID:   p.MarketID,
			Question:   p.Question,
			Kind:       p.Kind.String(),
			Side:       string(p.Side),
			EntryPrice: p.EntryPrice,
			Size:       p.Size.StringFixed(2),
			OpenedAt:   p.OpenedAt,
		})
	}
	for _, o := range st.PendingOrders {
		out.PendingOrders = append(out.PendingOrders, orderResponse{
			OrderID:     o.Intent.OrderID,
			MarketID:    o.Intent.MarketID,
			Kind:        o.Intent.Kind.String(),
			Side:        string(o.Intent.Side),
			Price:       o.Intent.Price,
			Size:        o.Intent.Size.StringFixed(2),
			SubmittedAt: o.SubmittedAt,
		})
	}
	if c := st.LastCycle; c != nil {
		approved, rejected, failed := c.Counts()
		lc := &lastCycleResponse{
			ID:            c.CycleID,
			StartedAt:     c.StartedAt,
			DurationMs:    c.Duration.Milliseconds(),
			Snapshots:     c.Snapshots,
			Invalid:       c.Invalid,
			Opportunities: make(map[string]int, len(c.Opportunities)),
			Approved:      approved,
			Rejected:      rejected,
			Failed:        failed,
			Exits:         len(c.Exits),
		}
		for k, n := range c.Opportunities {
			lc.Opportunities[k.String()] = n
		}
		if c.Err != nil {
			lc.Error = c.Err.Error()
		}
		out.LastCycle = lc
	}
	return out
}

func newPerformanceResponse(s domain.PerformanceSummary) performanceResponse {
	out := performanceResponse{
		Since:          s.Since,
		TotalTrades:    s.TotalTrades,
		Wins:           s.Wins,
		Losses:         s.Losses,
		OpenPositions:  s.OpenPositions,
		WinRate:        s.WinRate,
		TotalPnL:       s.TotalPnL.StringFixed(2),
		AvgWin:         s.AvgWin.StringFixed(2),
		AvgLoss:        s.AvgLoss.StringFixed(2),
		BestTrade:      s.BestTrade.StringFixed(2),
		WorstTrade:     s.WorstTrade.StringFixed(2),
		ProfitFactor:   finite(s.ProfitFactor),
		MaxDrawdown:    s.MaxDrawdown.StringFixed(2),
		MaxDrawdownPct: s.MaxDrawdownPct,
		ROI:            s.ROI,
		Sharpe:         s.Sharpe,
		ByStrategy:     make(map[string]strategyResponse, len(s.ByStrategy)),
	}
	for k, st := range s.ByStrategy {
		out.ByStrategy[k.String()] = strategyResponse{
			Trades:  st.Trades,
			Wins:    st.Wins,
			WinRate: st.WinRate(),
			PnL:     st.PnL.StringFixed(2),
		}
	}
	return out
}
