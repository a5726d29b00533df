package archive

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mbaxter/webarc/internal/metrics"
)

// pacingDelay is the flat politeness throttle applied before every
// fetch. Not a tunable.
const pacingDelay = 100 * time.Millisecond

// SessionConfig carries the per-run crawl parameters.
type SessionConfig struct {
	SeedURL    string
	MaxPages   int
	NumWorkers int
}

// Session owns one Frontier and one worker pool for the duration of a
// crawl run. Sessions do not share state.
type Session struct {
	store    Store
	fetcher  Fetcher
	cfg      SessionConfig
	frontier *Frontier
	logger   *zap.Logger
}

// NewSession validates the config and builds a Session.
func NewSession(store Store, fetcher Fetcher, cfg SessionConfig, logger *zap.Logger) (*Session, error) {
	if cfg.NumWorkers <= 0 {
		return nil, fmt.Errorf("num workers must be > 0")
	}
	if cfg.MaxPages <= 0 {
		return nil, fmt.Errorf("max pages must be > 0")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	frontier, err := NewFrontier(cfg.SeedURL, cfg.MaxPages)
	if err != nil {
		return nil, err
	}
	return &Session{
		store:    store,
		fetcher:  fetcher,
		cfg:      cfg,
		frontier: frontier,
		logger:   logger,
	}, nil
}

// Run executes the crawl: create the job, seed the frontier, start the
// workers, wait for the frontier to drain, then stop the workers and
// wait for them to exit. Store unavailability at job creation is the
// only fatal error; everything past that point is contained per URL.
func (s *Session) Run(ctx context.Context) error {
	jobID, err := s.store.CreateJob(ctx)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	s.logger.Info("crawl session started",
		zap.Int64("job_id", jobID),
		zap.String("seed", s.cfg.SeedURL),
		zap.Int("max_pages", s.cfg.MaxPages),
		zap.Int("num_workers", s.cfg.NumWorkers),
	)

	if !s.frontier.EnqueueSeed(s.cfg.SeedURL) {
		s.logger.Warn("seed url not admitted", zap.String("seed", s.cfg.SeedURL))
	}

	// External termination unblocks workers at the dequeue point; an
	// in-flight fetch still runs to completion first.
	stopWatch := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			s.frontier.Stop()
		case <-stopWatch:
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.NumWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.worker(ctx, jobID)
		}()
	}

	s.frontier.Join()
	s.frontier.Stop()
	close(stopWatch)
	wg.Wait()

	s.logger.Info("crawl session finished",
		zap.Int64("job_id", jobID),
		zap.Int64("urls_enqueued", s.frontier.TotalEnqueued()),
	)
	return nil
}

func (s *Session) worker(ctx context.Context, jobID int64) {
	metrics.WorkerStarted()
	defer metrics.WorkerStopped()
	for {
		rawURL, ok := s.frontier.Dequeue()
		if !ok {
			return
		}
		res := s.crawl(ctx, jobID, rawURL)
		switch res.Outcome {
		case OutcomeFailed:
			s.logger.Warn("crawl task failed",
				zap.Int64("job_id", jobID),
				zap.String("url", res.URL),
				zap.Error(res.Err),
			)
		case OutcomeSkipped:
			s.logger.Debug("crawl task skipped",
				zap.Int64("job_id", jobID),
				zap.String("url", res.URL),
				zap.String("reason", res.Reason),
			)
		default:
			s.logger.Debug("crawl task archived",
				zap.Int64("job_id", jobID),
				zap.String("url", res.URL),
				zap.String("class", string(res.Class)),
			)
		}
		s.frontier.TaskDone()
	}
}

// crawl processes one URL end to end. All failures are contained here:
// the task is logged and counted done, never retried.
func (s *Session) crawl(ctx context.Context, jobID int64, rawURL string) Result {
	time.Sleep(pacingDelay)

	resp, err := s.fetcher.Get(ctx, rawURL)
	if err != nil {
		return Result{URL: rawURL, Outcome: OutcomeFailed, Err: fmt.Errorf("fetch: %w", err)}
	}

	if !SameHost(resp.FinalURL, s.frontier.Host()) {
		return Result{URL: rawURL, Outcome: OutcomeSkipped, Reason: "redirected off-host"}
	}

	contentType := resp.Headers.Get("Content-Type")
	class := Classify(contentType, resp.FinalURL)

	if class == ClassHTML && resp.StatusCode == http.StatusOK {
		if base, perr := url.Parse(resp.FinalURL); perr == nil {
			pages, assets := ExtractLinks(resp.Text, base)
			s.discover(pages, assets)
		}
	}

	res := Resource{
		JobID:         jobID,
		Link:          resp.FinalURL,
		Host:          HostOf(resp.FinalURL),
		StatusCode:    resp.StatusCode,
		ContentType:   contentType,
		Content:       resp.Body,
		ContentLength: len(resp.Body),
	}
	if _, err := s.store.StoreResource(ctx, res); err != nil {
		return Result{URL: rawURL, Outcome: OutcomeFailed, Class: class, Err: fmt.Errorf("store resource: %w", err)}
	}
	metrics.ObservePageArchived(res.Host, res.StatusCode, res.ContentLength)

	return Result{URL: rawURL, Outcome: OutcomeArchived, Class: class}
}

// discover merges the page and asset sets and runs frontier admission
// for each newly-seen URL. Both sets feed the same queue; the split
// only matters to the rewriter.
func (s *Session) discover(pages, assets map[string]struct{}) {
	merged := make([]string, 0, len(pages)+len(assets))
	for u := range pages {
		merged = append(merged, u)
	}
	for u := range assets {
		merged = append(merged, u)
	}
	for _, u := range s.frontier.FilterNew(merged) {
		s.frontier.Admit(u)
	}
}
