package main

import (
	"context"
	"fmt"
	"time"

	"github.com/alejandrodnm/polyedge/config"
	"github.com/alejandrodnm/polyedge/internal/adapters/notify"
	"github.com/alejandrodnm/polyedge/internal/adapters/storage"
	"github.com/alejandrodnm/polyedge/internal/application/ledger"
	"github.com/alejandrodnm/polyedge/internal/domain"
)

// runReport reproduce el ledger y imprime el rendimiento de los últimos days días.
func runReport(ctx context.Context, cfg *config.Config, days int, console *notify.Console) error {
	if days <= 0 {
		return fmt.Errorf("days must be positive, got %d", days)
	}
	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		return fmt.Errorf("open storage %q: %w", cfg.Storage.DSN, err)
	}
	defer store.Close()

	tracker := ledger.New(store, cfg.Bankroll())
	if _, err := tracker.Replay(ctx); err != nil {
		return err
	}
	since := domain.TradingDay(time.Now()).AddDate(0, 0, -(days - 1))
	console.PrintPerformance(tracker.Summary(since))
	return nil
}
