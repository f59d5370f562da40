package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/polyedge/internal/domain"
)

// Config es la configuración completa del bot.
type Config struct {
	Engine        EngineConfig        `yaml:"engine"`
	Risk          RiskConfig          `yaml:"risk"`
	Strategies    StrategiesConfig    `yaml:"strategies"`
	Scoring       ScoringConfig       `yaml:"scoring"`
	Probabilities ProbabilitiesConfig `yaml:"probabilities"`
	Paper         PaperConfig         `yaml:"paper"`
	API           APIConfig           `yaml:"api"`
	Storage       StorageConfig       `yaml:"storage"`
	Log           LogConfig           `yaml:"log"`
	Redis         RedisConfig         `yaml:"redis"`
	Telegram      TelegramConfig      `yaml:"telegram"`
	HTTP          HTTPConfig          `yaml:"http"`
}

// EngineConfig controla el ciclo del orquestador.
type EngineConfig struct {
	IntervalSeconds int     `yaml:"interval_seconds"`
	Bankroll        float64 `yaml:"bankroll"` // USDC iniciales
	Workers         int     `yaml:"workers"`  // scoring concurrente; 0 = NumCPU×2
	MinOrderSize    float64 `yaml:"min_order_size"`
}

// RiskConfig son los límites del gate y del sizer.
type RiskConfig struct {
	MaxPositionSize          float64  `yaml:"max_position_size"`
	MaxOpenPositions         int      `yaml:"max_open_positions"`
	MaxDailyLoss             float64  `yaml:"max_daily_loss"`
	TargetDailyReturn        *float64 `yaml:"target_daily_return"` // 0 = sin objetivo
	MinEdge                  float64  `yaml:"min_edge"`
	KellyFraction            float64  `yaml:"kelly_fraction"`
	MaxOpportunityAgeSeconds int      `yaml:"max_opportunity_age_seconds"`
	TakeProfitPct            *float64 `yaml:"take_profit_pct"` // 0 = desactivado
	StopLossPct              *float64 `yaml:"stop_loss_pct"`   // 0 = desactivado
}

// StrategiesConfig activa y parametriza cada variante.
type StrategiesConfig struct {
	Arbitrage     ArbitrageConfig     `yaml:"arbitrage"`
	ValueBet      ValueBetConfig      `yaml:"value_bet"`
	QualityMarket QualityMarketConfig `yaml:"quality_market"`
}

// ArbitrageConfig: activado por defecto.
type ArbitrageConfig struct {
	Enabled      *bool   `yaml:"enabled"`
	MinProfitPct float64 `yaml:"min_profit_pct"`
}

// ValueBetConfig: activado por defecto; el umbral es risk.min_edge.
type ValueBetConfig struct {
	Enabled *bool `yaml:"enabled"`
}

// QualityMarketConfig: desactivado por defecto.
type QualityMarketConfig struct {
	Enabled         *bool   `yaml:"enabled"`
	MinQualityScore float64 `yaml:"min_quality_score"`
	MinVolume       float64 `yaml:"min_volume"`
	Side            string  `yaml:"side"` // YES | NO
	Tick            float64 `yaml:"tick"`
}

// ScoringConfig parametriza el quality scorer.
type ScoringConfig struct {
	VolumeFloor    float64 `yaml:"volume_floor"`
	MinSpread      float64 `yaml:"min_spread"`
	LiquidityShare float64 `yaml:"liquidity_share"`
}

// ProbabilitiesConfig: tabla fija y/o fichero YAML releído cada ciclo.
type ProbabilitiesConfig struct {
	Table map[string]float64 `yaml:"table"`
	File  string             `yaml:"file"`
}

// PaperConfig controla el executor simulado.
type PaperConfig struct {
	OrderTTLMinutes int `yaml:"order_ttl_minutes"`
}

// APIConfig contiene los base URLs de las APIs.
type APIConfig struct {
	CLOBBase       string `yaml:"clob_base"`
	GammaBase      string `yaml:"gamma_base"`
	MarketsPath    string `yaml:"markets_path"`
	MaxPages       int    `yaml:"max_pages"`
	MaxMarkets     int    `yaml:"max_markets"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// RedisConfig: vacío Addr desactiva la fuente y el stream.
type RedisConfig struct {
	Addr             string `yaml:"addr"`
	DB               int    `yaml:"db"`
	Username         string `yaml:"username"`
	Password         string `yaml:"password"`
	ProbabilitiesKey string `yaml:"probabilities_key"`
	Stream           string `yaml:"stream"`
	StreamMaxLen     int64  `yaml:"stream_max_len"` // XADD MAXLEN aproximado
}

// TelegramConfig: sin token no hay alertas.
type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
}

// HTTPConfig: vacío Addr desactiva la API de estado.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del entorno sobreescriben los del YAML para las keys que correspondan.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}
	return Parse(data)
}

// Parse interpreta YAML ya leído y aplica entorno y defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	setDefaults(&cfg)
	return &cfg, nil
}

// Interval devuelve el intervalo entre ciclos.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.Engine.IntervalSeconds) * time.Second
}

// Bankroll devuelve el bankroll inicial en decimal.
func (c *Config) Bankroll() decimal.Decimal {
	return domain.USD(c.Engine.Bankroll)
}

// Trading traduce la configuración al TradingConfig del core. No valida:
// eso lo hace domain.TradingConfig.Validate al construir el engine.
func (c *Config) Trading() domain.TradingConfig {
	r := c.Risk
	s := c.Strategies
	return domain.TradingConfig{
		MaxPositionSize:   domain.USD(r.MaxPositionSize),
		MaxOpenPositions:  r.MaxOpenPositions,
		MaxDailyLoss:      domain.USD(r.MaxDailyLoss),
		TargetDailyReturn: orDefault(r.TargetDailyReturn, 0.02),
		MinEdge:           r.MinEdge,
		KellyFraction:     r.KellyFraction,
		MinOrderSize:      domain.USD(c.Engine.MinOrderSize),
		MaxOpportunityAge: time.Duration(r.MaxOpportunityAgeSeconds) * time.Second,
		TakeProfitPct:     orDefault(r.TakeProfitPct, 0.5),
		StopLossPct:       orDefault(r.StopLossPct, 0.2),
		Arbitrage: domain.ArbitrageConfig{
			Enabled:      enabled(s.Arbitrage.Enabled, true),
			MinProfitPct: s.Arbitrage.MinProfitPct,
		},
		ValueBet: domain.ValueBetConfig{
			Enabled: enabled(s.ValueBet.Enabled, true),
		},
		QualityMarket: domain.QualityMarketConfig{
			Enabled:         enabled(s.QualityMarket.Enabled, false),
			MinQualityScore: s.QualityMarket.MinQualityScore,
			MinVolume:       s.QualityMarket.MinVolume,
			Side:            domain.Side(strings.ToUpper(s.QualityMarket.Side)),
			Tick:            s.QualityMarket.Tick,
		},
		Scoring: domain.ScoringConfig{
			VolumeFloor:    c.Scoring.VolumeFloor,
			MinSpread:      c.Scoring.MinSpread,
			LiquidityShare: c.Scoring.LiquidityShare,
		},
	}
}

func enabled(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func orDefault(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("POLYEDGE_DB"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("config.Load: TELEGRAM_CHAT_ID %q: %w", v, err)
		}
		cfg.Telegram.ChatID = id
	}
	return nil
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
// Solo rellena ceros: los valores contradictorios los detecta Validate.
func setDefaults(cfg *Config) {
	e := &cfg.Engine
	if e.IntervalSeconds <= 0 {
		e.IntervalSeconds = 60
	}
	if e.Bankroll == 0 {
		e.Bankroll = 1000
	}
	if e.MinOrderSize == 0 {
		e.MinOrderSize = 1
	}

	r := &cfg.Risk
	if r.MaxPositionSize == 0 {
		r.MaxPositionSize = 100
	}
	if r.MaxOpenPositions == 0 {
		r.MaxOpenPositions = 5
	}
	if r.MaxDailyLoss == 0 {
		r.MaxDailyLoss = 50
	}
	if r.MinEdge == 0 {
		r.MinEdge = 0.05
	}
	if r.KellyFraction == 0 {
		r.KellyFraction = 0.25
	}

	if cfg.Strategies.Arbitrage.MinProfitPct == 0 {
		cfg.Strategies.Arbitrage.MinProfitPct = 0.8
	}
	q := &cfg.Strategies.QualityMarket
	if q.MinQualityScore == 0 {
		q.MinQualityScore = 60
	}
	if q.Side == "" {
		q.Side = string(domain.SideYes)
	}
	if q.Tick == 0 {
		q.Tick = 0.01
	}

	s := &cfg.Scoring
	if s.VolumeFloor == 0 {
		s.VolumeFloor = 10_000
	}
	if s.MinSpread == 0 {
		s.MinSpread = 0.01
	}
	if s.LiquidityShare == 0 {
		s.LiquidityShare = 0.05
	}

	if cfg.Paper.OrderTTLMinutes <= 0 {
		cfg.Paper.OrderTTLMinutes = 60
	}
	if cfg.API.CLOBBase == "" {
		cfg.API.CLOBBase = "https://clob.polymarket.com"
	}
	if cfg.API.GammaBase == "" {
		cfg.API.GammaBase = "https://gamma-api.polymarket.com"
	}
	if cfg.API.TimeoutSeconds <= 0 {
		cfg.API.TimeoutSeconds = 15
	}
	if cfg.Redis.StreamMaxLen <= 0 {
		cfg.Redis.StreamMaxLen = 10_000
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "polyedge.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
