package polymarket

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alejandrodnm/polyedge/internal/domain"
)

const (
	gammaMarketsPath  = "/markets"
	gammaConditionMax = 20
)

// EnrichWithGamma añade a los mercados el volumen de Gamma (y question, slug
// o end date si el CLOB no los trajo). Los mercados sin datos en Gamma se
// quedan con volumen 0: el scorer los puntúa como ilíquidos.
func (c *Client) EnrichWithGamma(ctx context.Context, markets []domain.Market) []domain.Market {
	conditionIDs := make([]string, len(markets))
	for i, m := range markets {
		conditionIDs[i] = m.ConditionID
	}

	metadata := c.fetchGammaMetadata(ctx, conditionIDs)

	enriched := 0
	for i, m := range markets {
		if gm, ok := metadata[m.ConditionID]; ok {
			enrichFromGamma(&markets[i], gm)
			enriched++
		}
	}

	slog.Debug("gamma enrichment complete",
		"markets", len(markets),
		"enriched", enriched,
	)
	return markets
}

// fetchGammaMetadata obtiene la metadata de Gamma para los condition_ids dados.
// Un batch fallido se salta: el enriquecimiento nunca tumba el ciclo.
func (c *Client) fetchGammaMetadata(ctx context.Context, conditionIDs []string) map[string]gammaMarket {
	result := make(map[string]gammaMarket, len(conditionIDs))

	for i := 0; i < len(conditionIDs); i += gammaConditionMax {
		end := min(i+gammaConditionMax, len(conditionIDs))
		batch := conditionIDs[i:end]

		u := fmt.Sprintf("%s%s?condition_ids=%s&limit=%d",
			c.cfg.GammaBase,
			gammaMarketsPath,
			strings.Join(batch, ","),
			gammaConditionMax,
		)

		var resp gammaMarketsResponse
		if err := c.get(ctx, c.gammaLimiter, u, &resp); err != nil {
			slog.Debug("gamma batch failed, skipping",
				"batch", fmt.Sprintf("%d-%d", i, end),
				"err", err,
			)
			continue
		}

		for _, gm := range resp {
			result[gm.ConditionID] = gm
		}
	}
	return result
}
