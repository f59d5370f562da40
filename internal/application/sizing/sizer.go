package sizing

import (
	"fmt"
	"math"

	"github.com/alejandrodnm/polyedge/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// orderNamespace hace que el ID de una orden dependa solo de la oportunidad:
// dimensionar dos veces la misma oportunidad produce la misma orden.
var orderNamespace = uuid.MustParse("8f0b7a52-3c1e-4d8a-9a57-1c2f6d4e9b10")

// Sizer convierte oportunidades en órdenes dimensionadas.
//
//   - Arbitrage: min(max_position_size, max_size, bankroll). Sin Kelly.
//   - ValueBet: Kelly fraccional, f* = edge / (price × (1 - price)) acotado a [0,1];
//     primero el tope de liquidez, después el tope absoluto.
//   - QualityMarket: min(max_position_size, max_size). Sizing plano.
//
// Cualquier stake que quede por debajo de min_order_size devuelve domain.ErrNoSize.
type Sizer struct {
	cfg domain.TradingConfig
}

// New crea un Sizer. cfg debe estar validada.
func New(cfg domain.TradingConfig) *Sizer {
	return &Sizer{cfg: cfg}
}

// Size dimensiona una oportunidad contra el bankroll disponible.
func (s *Sizer) Size(opp domain.Opportunity, bankroll decimal.Decimal) (domain.SizedOrder, error) {
	if !bankroll.IsPositive() {
		return domain.SizedOrder{}, fmt.Errorf("sizing.Size: %w: bankroll %s", domain.ErrNoSize, bankroll)
	}

	base := opp.Base()
	var stake decimal.Decimal

	switch o := opp.(type) {
	case domain.Arbitrage:
		stake = decimal.Min(s.cfg.MaxPositionSize, base.MaxSize, bankroll)

	case domain.ValueBet:
		f := KellyFraction(math.Abs(o.ExpectedEdge), o.Price)
		if f <= 0 {
			return domain.SizedOrder{}, fmt.Errorf("sizing.Size: %w: kelly %.4f for %s", domain.ErrNoSize, f, base.MarketID)
		}
		stake = decimal.NewFromFloat(s.cfg.KellyFraction * f).Mul(bankroll)
		stake = decimal.Min(stake, base.MaxSize)
		stake = decimal.Min(stake, s.cfg.MaxPositionSize, bankroll)

	case domain.QualityMarket:
		stake = decimal.Min(s.cfg.MaxPositionSize, base.MaxSize, bankroll)

	default:
		return domain.SizedOrder{}, fmt.Errorf("sizing.Size: unknown opportunity kind %d", opp.Kind())
	}

	stake = domain.Cents(stake)
	if !stake.IsPositive() || stake.LessThan(s.cfg.MinOrderSize) {
		return domain.SizedOrder{}, fmt.Errorf("sizing.Size: %w: stake %s for %s", domain.ErrNoSize, stake, base.MarketID)
	}

	return domain.SizedOrder{
		ID:          OrderID(opp),
		Opportunity: opp,
		Stake:       stake,
		Side:        opp.Side(),
		LimitPrice:  opp.EntryPrice(),
	}, nil
}

// KellyFraction devuelve la fracción de Kelly binaria edge / (price × (1 - price)),
// acotada a [0,1]. Precios fuera de (0,1) devuelven 0.
func KellyFraction(edge, price float64) float64 {
	if price <= 0 || price >= 1 || math.IsNaN(edge) {
		return 0
	}
	f := edge / (price * (1 - price))
	return math.Max(0, math.Min(1, f))
}

// OrderID deriva un UUID v5 determinista de la oportunidad.
func OrderID(opp domain.Opportunity) string {
	b := opp.Base()
	key := fmt.Sprintf("%s|%s|%s|%d", b.MarketID, opp.Kind(), opp.Side(), b.DetectedAt.UnixNano())
	return uuid.NewSHA1(orderNamespace, []byte(key)).String()
}
