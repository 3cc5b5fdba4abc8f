package main

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/michaljagosz/omnimusle/internal/daily"
	"github.com/michaljagosz/omnimusle/internal/game"
	"github.com/michaljagosz/omnimusle/internal/session"
)

// prewarm resolves every kind's puzzle at startup and again right after each UTC
// midnight, so the first player of the day does not wait on the providers. Failures are
// only logged; players retry on their own requests.
func prewarm(ctx context.Context, src session.PuzzleSource) {
	for {
		now := time.Now()
		for _, k := range game.AllKinds {
			if _, err := src.Daily(ctx, k, now); err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Warn().Err(err).Str("kind", string(k)).Msg("prewarm puzzle")
			}
		}
		log.Info().Str("date", daily.DateKey(now)).Msg("puzzles prewarmed")

		select {
		case <-ctx.Done():
			return
		case <-time.After(daily.UntilReset(time.Now()) + time.Second):
		}
	}
}
