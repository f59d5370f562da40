package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TradingConfig es la superficie de configuración que consume el core.
// El loader externo valida rangos; Validate solo detecta contradicciones.
type TradingConfig struct {
	MaxPositionSize   decimal.Decimal
	MaxOpenPositions  int
	MaxDailyLoss      decimal.Decimal
	TargetDailyReturn float64 // 0 = desactivado
	MinEdge           float64
	KellyFraction     float64
	MinOrderSize      decimal.Decimal
	MaxOpportunityAge time.Duration // 0 = sin límite

	TakeProfitPct float64 // 0 = desactivado
	StopLossPct   float64 // 0 = desactivado

	Arbitrage     ArbitrageConfig
	ValueBet      ValueBetConfig
	QualityMarket QualityMarketConfig
	Scoring       ScoringConfig
}

// ArbitrageConfig: umbral del rule de arbitraje.
type ArbitrageConfig struct {
	Enabled      bool
	MinProfitPct float64 // en porcentaje: 0.8 = 0.8%
}

// MinEdge devuelve el umbral como fracción.
func (c ArbitrageConfig) MinEdge() float64 {
	return c.MinProfitPct / 100
}

// ValueBetConfig: el umbral es TradingConfig.MinEdge.
type ValueBetConfig struct {
	Enabled bool
}

// QualityMarketConfig: umbrales del rule de calidad.
type QualityMarketConfig struct {
	Enabled         bool
	MinQualityScore float64
	MinVolume       float64
	Side            Side
	Tick            float64
}

// ScoringConfig parametriza el quality scorer y la estimación de liquidez.
type ScoringConfig struct {
	VolumeFloor    float64 // volumen que satura el sub-score de liquidez
	MinSpread      float64 // spread que satura el sub-score de spread
	LiquidityShare float64 // fracción del volumen disponible si no hay tamaños de book
}

// Validate devuelve ErrInvalidConfig si los límites se contradicen.
func (c TradingConfig) Validate() error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}
	switch {
	case c.KellyFraction <= 0 || c.KellyFraction > 1:
		return fail("kelly_fraction %.4f outside (0,1]", c.KellyFraction)
	case c.MaxOpenPositions <= 0:
		return fail("max_open_positions must be positive, got %d", c.MaxOpenPositions)
	case !c.MaxPositionSize.IsPositive():
		return fail("max_position_size must be positive, got %s", c.MaxPositionSize)
	case !c.MaxDailyLoss.IsPositive():
		return fail("max_daily_loss must be positive, got %s", c.MaxDailyLoss)
	case c.MinOrderSize.IsNegative():
		return fail("min_order_size must not be negative")
	case c.MinOrderSize.GreaterThan(c.MaxPositionSize):
		return fail("min_order_size %s above max_position_size %s", c.MinOrderSize, c.MaxPositionSize)
	case c.MinEdge < 0 || c.MinEdge >= 1:
		return fail("min_edge %.4f outside [0,1)", c.MinEdge)
	case c.TargetDailyReturn < 0:
		return fail("target_daily_return must not be negative")
	case c.TakeProfitPct < 0 || c.StopLossPct < 0 || c.StopLossPct >= 1:
		return fail("take_profit/stop_loss out of range")
	case c.Scoring.LiquidityShare < 0 || c.Scoring.LiquidityShare > 1:
		return fail("liquidity_share %.4f outside [0,1]", c.Scoring.LiquidityShare)
	case !c.Arbitrage.Enabled && !c.ValueBet.Enabled && !c.QualityMarket.Enabled:
		return fail("no strategy enabled")
	}

	if c.Arbitrage.Enabled && (c.Arbitrage.MinProfitPct < 0 || c.Arbitrage.MinProfitPct >= 100) {
		return fail("arbitrage.min_profit_pct %.4f outside [0,100)", c.Arbitrage.MinProfitPct)
	}
	if q := c.QualityMarket; q.Enabled {
		switch {
		case q.MinQualityScore < 0 || q.MinQualityScore > 100:
			return fail("quality_market.min_quality_score %.2f outside [0,100]", q.MinQualityScore)
		case q.Tick <= 0 || q.Tick >= 1:
			return fail("quality_market.tick %.4f outside (0,1)", q.Tick)
		case q.Side != SideYes && q.Side != SideNo:
			return fail("quality_market.side %q must be YES or NO", q.Side)
		case q.MinVolume < 0:
			return fail("quality_market.min_volume must not be negative")
		}
	}
	return nil
}
