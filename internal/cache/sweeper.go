package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"hvac-cache/internal/common/errors"
	"hvac-cache/internal/common/logging"
)

// warmupRefreshInterval is how often hot data is re-fetched when the
// invalidation strategy is "time".
const warmupRefreshInterval = 15 * time.Minute

// sweeper owns the engine's background schedules: the periodic removal of
// expired L1 entries and, under the time-based invalidation strategy, the
// periodic warmup refresh.
type sweeper struct {
	engine *Engine
	cron   *cron.Cron
	logger logging.Logger
}

func newSweeper(engine *Engine) *sweeper {
	return &sweeper{
		engine: engine,
		cron:   cron.New(),
		logger: engine.logger.WithFields(logging.Field{Key: "component", Value: "cache-sweeper"}),
	}
}

func (s *sweeper) start() error {
	interval := s.engine.config.CleanupInterval
	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", interval), s.sweep); err != nil {
		return errors.InternalError("failed to schedule cleanup sweep", err)
	}

	if s.engine.config.InvalidationStrategy == "time" && s.engine.config.WarmupEnabled && s.engine.warmup.hasSource() {
		if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", warmupRefreshInterval), s.refresh); err != nil {
			return errors.InternalError("failed to schedule warmup refresh", err)
		}
	}

	s.cron.Start()
	s.logger.Debug("Cache sweeper started", logging.Field{Key: "interval", Value: interval.String()})
	return nil
}

func (s *sweeper) stop() {
	ctx := s.cron.Stop()
	// Wait for an in-flight sweep to finish before tearing down the engine
	<-ctx.Done()
}

// sweep removes expired L1 entries. Each removal counts toward the eviction
// metric the same way a capacity eviction does.
func (s *sweeper) sweep() {
	removed := s.engine.l1.sweep(s.engine.now())
	if removed > 0 {
		s.engine.metrics.recordEvictions(removed)
		s.logger.Debug("Swept expired entries", logging.Field{Key: "removed", Value: removed})
	}
}

func (s *sweeper) refresh() {
	s.engine.warmup.run(context.Background())
}
