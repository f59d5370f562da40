package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alejandrodnm/polyedge/config"
	"github.com/alejandrodnm/polyedge/internal/adapters/httpapi"
	"github.com/alejandrodnm/polyedge/internal/adapters/metrics"
	"github.com/alejandrodnm/polyedge/internal/adapters/notify"
	"github.com/alejandrodnm/polyedge/internal/adapters/paper"
	"github.com/alejandrodnm/polyedge/internal/adapters/polymarket"
	"github.com/alejandrodnm/polyedge/internal/adapters/probability"
	"github.com/alejandrodnm/polyedge/internal/adapters/redisfeed"
	"github.com/alejandrodnm/polyedge/internal/adapters/storage"
	"github.com/alejandrodnm/polyedge/internal/application/engine"
	"github.com/alejandrodnm/polyedge/internal/ports"
)

type app struct {
	engine  *engine.Engine
	http    *httpapi.Server
	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// wire construye el grafo completo: venue → paper executor → engine, con
// storage, fuentes de probabilidad y notifiers opcionales según la config.
func wire(ctx context.Context, cfg *config.Config, table bool) (*app, error) {
	a := &app{}

	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		return nil, fmt.Errorf("open storage %q: %w", cfg.Storage.DSN, err)
	}
	a.closers = append(a.closers, func() { _ = store.Close() })

	client := polymarket.NewClient(polymarket.Config{
		CLOBBase:    cfg.API.CLOBBase,
		GammaBase:   cfg.API.GammaBase,
		MarketsPath: cfg.API.MarketsPath,
		MaxPages:    cfg.API.MaxPages,
		MaxMarkets:  cfg.API.MaxMarkets,
		Timeout:     time.Duration(cfg.API.TimeoutSeconds) * time.Second,
	})
	provider := polymarket.NewSnapshotProvider(client)

	exec := paper.NewExecutor(paper.Config{
		OrderTTL: time.Duration(cfg.Paper.OrderTTLMinutes) * time.Minute,
	})

	probs := []ports.ProbabilitySource{probability.NewStatic(cfg.Probabilities.Table)}
	if cfg.Probabilities.File != "" {
		probs = append(probs, probability.NewFile(cfg.Probabilities.File))
	}

	m := metrics.New()
	notifiers := []ports.Notifier{notify.NewConsole(table), m}

	if cfg.Redis.Addr != "" {
		rcfg := redisfeed.Config{
			Addr:             cfg.Redis.Addr,
			DB:               cfg.Redis.DB,
			Username:         cfg.Redis.Username,
			Password:         cfg.Redis.Password,
			ProbabilitiesKey: cfg.Redis.ProbabilitiesKey,
			Stream:           cfg.Redis.Stream,
			StreamMaxLen:     cfg.Redis.StreamMaxLen,
		}
		rdb := redisfeed.NewClient(rcfg)
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		if err := pingRedis(ctx, rdb); err != nil {
			slog.Warn("redis unreachable at startup, will retry every cycle", "addr", cfg.Redis.Addr, "err", err)
		}
		probs = append(probs, redisfeed.NewProbabilitySource(rdb, rcfg))
		notifiers = append(notifiers, redisfeed.NewPublisher(rdb, rcfg))
	}

	if cfg.Telegram.Token != "" {
		tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID)
		if err != nil {
			slog.Warn("telegram disabled", "err", err)
		} else {
			a.closers = append(a.closers, tg.Close)
			notifiers = append(notifiers, tg)
		}
	}

	eng, err := engine.New(engine.Config{
		Interval: cfg.Interval(),
		Bankroll: cfg.Bankroll(),
		Workers:  cfg.Engine.Workers,
	}, cfg.Trading(), engine.Deps{
		Snapshots:     exec.Feed(provider),
		Probabilities: probs,
		Executor:      exec,
		Store:         store,
		Notifiers:     notifiers,
	})
	if err != nil {
		a.close()
		return nil, err
	}
	if err := eng.Restore(ctx); err != nil {
		a.close()
		return nil, fmt.Errorf("restore ledger: %w", err)
	}
	provider.TrackHeld(heldMarkets(eng))

	a.engine = eng
	a.http = httpapi.New(cfg.HTTP.Addr, httpapi.Deps{
		Engine:  eng,
		Store:   store,
		Metrics: m.Handler(),
	})
	return a, nil
}

// heldMarkets: mercados con posición abierta u orden pendiente, que el
// provider sigue aunque salgan del listado (para ver su resolución).
func heldMarkets(eng *engine.Engine) func() []string {
	return func() []string {
		st := eng.Status()
		seen := make(map[string]struct{})
		var ids []string
		add := func(id string) {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
		for _, p := range st.OpenPositions {
			add(p.MarketID)
		}
		for _, o := range st.PendingOrders {
			add(o.Intent.MarketID)
		}
		return ids
	}
}

func pingRedis(ctx context.Context, rdb *redis.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return rdb.Ping(ctx).Err()
}
