package archive

import (
	"context"

	"go.uber.org/zap"
)

// Scheduler launches crawl sessions in the background, detached from
// the triggering HTTP request. Sessions run until their frontier drains
// or the base context (process lifetime) ends.
type Scheduler struct {
	base    context.Context
	store   Store
	fetcher Fetcher
	logger  *zap.Logger
}

// NewScheduler builds a Scheduler bound to the process-lifetime context.
func NewScheduler(base context.Context, store Store, fetcher Fetcher, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{base: base, store: store, fetcher: fetcher, logger: logger}
}

// Schedule validates the config, then starts the session asynchronously
// and returns immediately. The job id is created inside Session.Run and
// is not known to the caller.
func (s *Scheduler) Schedule(cfg SessionConfig) error {
	sess, err := NewSession(s.store, s.fetcher, cfg, s.logger)
	if err != nil {
		return err
	}
	go func() {
		if err := sess.Run(s.base); err != nil {
			s.logger.Error("crawl session failed",
				zap.String("seed", cfg.SeedURL),
				zap.Error(err),
			)
		}
	}()
	return nil
}
