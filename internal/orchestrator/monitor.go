package orchestrator

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/bookletd/internal/metrics"
)

// RunHousekeeping publishes queue depth gauges and prunes stored blobs older
// than the retention window, every interval until ctx is done.
func (o *Orchestrator) RunHousekeeping(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = 30 * time.Second
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	log.Info().
		Dur("interval", every).
		Dur("retention", o.cfg.Retention).
		Msg("started housekeeping")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("housekeeping stopped")
			return
		case now := <-ticker.C:
			o.housekeep(ctx, now)
		}
	}
}

func (o *Orchestrator) housekeep(ctx context.Context, now time.Time) {
	if o.deps.Depths != nil {
		d, err := o.deps.Depths.Depths(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("failed to read queue depths")
		} else {
			metrics.SetQueueDepth("stream", d.Stream)
			metrics.SetQueueDepth("pending", d.Pending)
			metrics.SetQueueDepth("delayed", d.Delayed)
			metrics.SetQueueDepth("dlq", d.DLQ)
			log.Debug().
				Int64("stream", d.Stream).
				Int64("pending", d.Pending).
				Int64("delayed", d.Delayed).
				Int64("dlq", d.DLQ).
				Msg("housekeeping tick")
		}
	}

	if o.cfg.Retention > 0 && o.deps.Blobs != nil {
		n, err := o.deps.Blobs.Prune(ctx, now.Add(-o.cfg.Retention))
		if err != nil {
			log.Warn().Err(err).Msg("prune failed")
		} else if n > 0 {
			log.Info().Int("removed", n).Msg("pruned expired blobs")
		}
	}
}
