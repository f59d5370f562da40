package redisfeed

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/alejandrodnm/polyedge/internal/domain"
)

// ProbabilitySource implementa ports.ProbabilitySource sobre un HASH
// market_id → P(YES) que mantiene un proceso externo.
type ProbabilitySource struct {
	rdb *redis.Client
	key string
}

// NewProbabilitySource crea la fuente sobre rdb.
func NewProbabilitySource(rdb *redis.Client, cfg Config) *ProbabilitySource {
	cfg = cfg.withDefaults()
	return &ProbabilitySource{rdb: rdb, key: cfg.ProbabilitiesKey}
}

// Probabilities lee solo los campos pedidos. Valores que no son un número
// en [0,1] se descartan.
func (s *ProbabilitySource) Probabilities(ctx context.Context, marketIDs []string) (domain.ProbabilityTable, error) {
	out := make(domain.ProbabilityTable)
	if len(marketIDs) == 0 {
		return out, nil
	}

	vals, err := s.rdb.HMGet(ctx, s.key, marketIDs...).Result()
	if err != nil {
		return nil, fmt.Errorf("redisfeed.Probabilities: HMGET %s: %w", s.key, err)
	}

	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue // campo ausente
		}
		p, err := strconv.ParseFloat(raw, 64)
		if err != nil || p < 0 || p > 1 {
			slog.Debug("redis probability ignored", "market_id", marketIDs[i], "value", raw)
			continue
		}
		out[marketIDs[i]] = p
	}
	return out, nil
}
