package redisfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alejandrodnm/polyedge/internal/domain"
)

// Publisher implementa ports.Notifier añadiendo una entrada por ciclo al stream.
type Publisher struct {
	rdb    *redis.Client
	stream string
	maxLen int64
}

// NewPublisher crea el publisher sobre rdb.
func NewPublisher(rdb *redis.Client, cfg Config) *Publisher {
	cfg = cfg.withDefaults()
	return &Publisher{rdb: rdb, stream: cfg.Stream, maxLen: cfg.StreamMaxLen}
}

// CycleEvent es el payload JSON de cada entrada del stream.
type CycleEvent struct {
	CycleID       string          `json:"cycle_id"`
	StartedAt     time.Time       `json:"started_at"`
	DurationMs    int64           `json:"duration_ms"`
	Snapshots     int             `json:"snapshots"`
	Invalid       int             `json:"invalid"`
	Opportunities map[string]int  `json:"opportunities"`
	Decisions     []DecisionEvent `json:"decisions"`
	Exits         []ExitEvent     `json:"exits,omitempty"`
	GateStatus    string          `json:"gate_status"`
	DailyPnL      string          `json:"daily_pnl"`
	Bankroll      string          `json:"bankroll"`
	Error         string          `json:"error,omitempty"`
}

// DecisionEvent resume una decisión del ciclo.
type DecisionEvent struct {
	OrderID   string  `json:"order_id"`
	MarketID  string  `json:"market_id"`
	Kind      string  `json:"kind"`
	Side      string  `json:"side"`
	Edge      float64 `json:"edge"`
	Stake     string  `json:"stake"`
	Limit     float64 `json:"limit"`
	Outcome   string  `json:"outcome"`
	Reason    string  `json:"reason,omitempty"`
	Filled    bool    `json:"filled"`
	FillPrice float64 `json:"fill_price,omitempty"`
	Pending   bool    `json:"pending,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// ExitEvent resume un cierre.
type ExitEvent struct {
	PositionID string  `json:"position_id"`
	MarketID   string  `json:"market_id"`
	Reason     string  `json:"reason"`
	ExitPrice  float64 `json:"exit_price"`
	PnL        string  `json:"pnl"`
}

// NotifyCycle publica el ciclo con XADD, recortando el stream a maxLen aprox.
func (p *Publisher) NotifyCycle(ctx context.Context, r domain.CycleReport) error {
	data, err := json.Marshal(NewCycleEvent(r))
	if err != nil {
		return fmt.Errorf("redisfeed.NotifyCycle: marshal: %w", err)
	}
	err = p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data":        string(data),
			"cycle_id":    r.CycleID,
			"gate_status": r.Risk.Status.String(),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("redisfeed.NotifyCycle: XADD %s: %w", p.stream, err)
	}
	return nil
}

// NewCycleEvent convierte un CycleReport en su forma serializable.
func NewCycleEvent(r domain.CycleReport) CycleEvent {
	ev := CycleEvent{
		CycleID:       r.CycleID,
		StartedAt:     r.StartedAt.UTC(),
		DurationMs:    r.Duration.Milliseconds(),
		Snapshots:     r.Snapshots,
		Invalid:       r.Invalid,
		Opportunities: make(map[string]int, len(r.Opportunities)),
		Decisions:     make([]DecisionEvent, 0, len(r.Decisions)),
		GateStatus:    r.Risk.Status.String(),
		DailyPnL:      r.Risk.DailyRealizedPnL.StringFixed(2),
		Bankroll:      r.Bankroll.StringFixed(2),
	}
	for k, n := range r.Opportunities {
		ev.Opportunities[k.String()] = n
	}
	for _, d := range r.Decisions {
		base := d.Order.Opportunity.Base()
		de := DecisionEvent{
			OrderID:  d.Order.ID,
			MarketID: base.MarketID,
			Kind:     d.Order.Opportunity.Kind().String(),
			Side:     string(d.Order.Side),
			Edge:     base.ExpectedEdge,
			Stake:    d.Order.Stake.StringFixed(2),
			Limit:    d.Order.LimitPrice,
			Outcome:  string(d.Outcome),
			Reason:   string(d.Reason),
			Pending:  d.Pending,
		}
		if d.Fill != nil {
			de.Filled = d.Fill.Filled
			de.FillPrice = d.Fill.Price
		}
		if d.Err != nil {
			de.Error = d.Err.Error()
		}
		ev.Decisions = append(ev.Decisions, de)
	}
	for _, p := range r.Exits {
		ev.Exits = append(ev.Exits, ExitEvent{
			PositionID: p.ID,
			MarketID:   p.MarketID,
			Reason:     p.ExitReason,
			ExitPrice:  p.ExitPrice,
			PnL:        p.RealizedPnL.StringFixed(2),
		})
	}
	if r.Err != nil {
		ev.Error = r.Err.Error()
	}
	return ev
}
