package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polyedge/config"
	"github.com/alejandrodnm/polyedge/internal/domain"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := config.Parse([]byte("{}"))
	require.NoError(t, err)

	assert.Equal(t, 60*time.Second, cfg.Interval())
	assert.Equal(t, "1000", cfg.Bankroll().String())
	assert.Equal(t, "polyedge.db", cfg.Storage.DSN)
	assert.Equal(t, "https://clob.polymarket.com", cfg.API.CLOBBase)
	assert.Equal(t, int64(10_000), cfg.Redis.StreamMaxLen)

	tc := cfg.Trading()
	require.NoError(t, tc.Validate())
	assert.Equal(t, "100", tc.MaxPositionSize.String())
	assert.Equal(t, 5, tc.MaxOpenPositions)
	assert.Equal(t, "50", tc.MaxDailyLoss.String())
	assert.InDelta(t, 0.02, tc.TargetDailyReturn, 1e-12)
	assert.InDelta(t, 0.05, tc.MinEdge, 1e-12)
	assert.InDelta(t, 0.25, tc.KellyFraction, 1e-12)
	assert.InDelta(t, 0.5, tc.TakeProfitPct, 1e-12)
	assert.InDelta(t, 0.2, tc.StopLossPct, 1e-12)
	assert.True(t, tc.Arbitrage.Enabled)
	assert.InDelta(t, 0.008, tc.Arbitrage.MinEdge(), 1e-12)
	assert.True(t, tc.ValueBet.Enabled)
	assert.False(t, tc.QualityMarket.Enabled)
	assert.Equal(t, domain.SideYes, tc.QualityMarket.Side)
}

func TestParse_FullDocument(t *testing.T) {
	doc := `
engine:
  interval_seconds: 15
  bankroll: 2500
  workers: 4
  min_order_size: 5
risk:
  max_position_size: 200
  max_open_positions: 3
  max_daily_loss: 80
  target_daily_return: 0
  min_edge: 0.07
  kelly_fraction: 0.5
  max_opportunity_age_seconds: 30
  take_profit_pct: 0
  stop_loss_pct: 0.3
strategies:
  arbitrage:
    enabled: false
  value_bet:
    enabled: true
  quality_market:
    enabled: true
    min_quality_score: 75
    min_volume: 5000
    side: no
    tick: 0.005
probabilities:
  table:
    "0xabc": 0.7
  file: probs.yaml
redis:
  addr: localhost:6379
  stream: bot:cycles
  stream_max_len: 500
http:
  addr: ":8080"
`
	cfg, err := config.Parse([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, 15*time.Second, cfg.Interval())
	assert.Equal(t, 4, cfg.Engine.Workers)
	assert.Equal(t, map[string]float64{"0xabc": 0.7}, cfg.Probabilities.Table)
	assert.Equal(t, "probs.yaml", cfg.Probabilities.File)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "bot:cycles", cfg.Redis.Stream)
	assert.Equal(t, int64(500), cfg.Redis.StreamMaxLen)

	tc := cfg.Trading()
	require.NoError(t, tc.Validate())
	assert.Zero(t, tc.TargetDailyReturn, "explicit zero disables the profit target")
	assert.Zero(t, tc.TakeProfitPct)
	assert.InDelta(t, 0.3, tc.StopLossPct, 1e-12)
	assert.Equal(t, 30*time.Second, tc.MaxOpportunityAge)
	assert.False(t, tc.Arbitrage.Enabled)
	assert.True(t, tc.QualityMarket.Enabled)
	assert.Equal(t, domain.SideNo, tc.QualityMarket.Side)
	assert.Equal(t, "5", tc.MinOrderSize.String())
}

func TestParse_ContradictoryLimitsFailValidation(t *testing.T) {
	cfg, err := config.Parse([]byte("risk:\n  kelly_fraction: 1.5\n"))
	require.NoError(t, err)

	err = cfg.Trading().Validate()
	assert.True(t, errors.Is(err, domain.ErrInvalidConfig))
}

func TestParse_NoStrategyEnabled(t *testing.T) {
	doc := "strategies:\n  arbitrage: {enabled: false}\n  value_bet: {enabled: false}\n"
	cfg, err := config.Parse([]byte(doc))
	require.NoError(t, err)
	assert.ErrorIs(t, cfg.Trading().Validate(), domain.ErrInvalidConfig)
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("POLYEDGE_DB", ":memory:")
	t.Setenv("REDIS_ADDR", "localhost:6390")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_CHAT_ID", "-100200")

	cfg, err := config.Parse([]byte("log:\n  level: warn\n"))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, ":memory:", cfg.Storage.DSN)
	assert.Equal(t, "localhost:6390", cfg.Redis.Addr)
	assert.Equal(t, "123:abc", cfg.Telegram.Token)
	assert.Equal(t, int64(-100200), cfg.Telegram.ChatID)
}

func TestParse_BadChatID(t *testing.T) {
	t.Setenv("TELEGRAM_CHAT_ID", "not-a-number")
	_, err := config.Parse([]byte("{}"))
	assert.Error(t, err)
}

func TestParse_MalformedYAML(t *testing.T) {
	_, err := config.Parse([]byte("engine: [1, 2"))
	assert.Error(t, err)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine:\n  bankroll: 300\n"), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "300", cfg.Bankroll().String())

	_, err = config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
