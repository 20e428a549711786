// Package jobs schedules the registry's background maintenance work:
// flushing batched download counters, purging expired tokens, and warming
// the discovery cache. Built on robfig/cron, with a run-once mode for
// one-shot invocations and a scheduled mode that runs until signaled to
// stop gracefully.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pkgforge/registry/pkg/catalog"
	"github.com/pkgforge/registry/pkg/discovery"
	"github.com/pkgforge/registry/pkg/observability"
)

// DownloadCounterFlusher is satisfied by *registryapi.Server; kept as an
// interface here so pkg/jobs doesn't import pkg/registryapi (which in turn
// would create an import cycle the day registryapi wants to schedule jobs
// itself).
type DownloadCounterFlusher interface {
	FlushDownloadCounts(ctx context.Context) error
}

// Scheduler owns a cron instance and the dependencies its jobs need.
type Scheduler struct {
	cron   *cron.Cron
	logger *observability.Logger

	tokens catalog.TokenStore
	disco  *discovery.Client
	flush  DownloadCounterFlusher

	tokenRetention time.Duration
}

// Config controls job cadence; empty fields fall back to sensible
// defaults for background maintenance.
type Config struct {
	// DownloadFlushSchedule defaults to every minute.
	DownloadFlushSchedule string
	// TokenCleanupSchedule defaults to once a day at 03:00 UTC.
	TokenCleanupSchedule string
	// DiscoveryWarmSchedule defaults to every 15 minutes.
	DiscoveryWarmSchedule string
	// TokenRetention is how long past expiry an expired token row is kept
	// before DeleteExpiredTokens purges it. Defaults to 30 days. Revoked
	// tokens are purged only once their expiry has passed; tokens with no
	// expiry are never purged.
	TokenRetention time.Duration
}

func (c Config) withDefaults() Config {
	if c.DownloadFlushSchedule == "" {
		c.DownloadFlushSchedule = "* * * * *"
	}
	if c.TokenCleanupSchedule == "" {
		c.TokenCleanupSchedule = "0 3 * * *"
	}
	if c.DiscoveryWarmSchedule == "" {
		c.DiscoveryWarmSchedule = "*/15 * * * *"
	}
	if c.TokenRetention <= 0 {
		c.TokenRetention = 30 * 24 * time.Hour
	}
	return c
}

// NewScheduler builds a Scheduler. disco may be nil (discovery-cache
// warming is then skipped); flush may be nil (download-counter flushing is
// then skipped) — both optional so tests and minimal deployments can wire
// only what they need.
func NewScheduler(cfg Config, tokens catalog.TokenStore, disco *discovery.Client, flush DownloadCounterFlusher, logger *observability.Logger) *Scheduler {
	cfg = cfg.withDefaults()
	s := &Scheduler{
		cron:           cron.New(cron.WithLocation(time.UTC)),
		logger:         logger,
		tokens:         tokens,
		disco:          disco,
		flush:          flush,
		tokenRetention: cfg.TokenRetention,
	}
	s.register(cfg)
	return s
}

func (s *Scheduler) register(cfg Config) {
	if s.flush != nil {
		s.mustAddFunc(cfg.DownloadFlushSchedule, s.runFlushDownloads)
	}
	if s.tokens != nil {
		s.mustAddFunc(cfg.TokenCleanupSchedule, s.runTokenCleanup)
	}
	if s.disco != nil {
		s.mustAddFunc(cfg.DiscoveryWarmSchedule, s.runDiscoveryWarm)
	}
}

func (s *Scheduler) mustAddFunc(schedule string, job func()) {
	if _, err := s.cron.AddFunc(schedule, job); err != nil {
		s.logger.WithError(err).Errorf("jobs: failed to schedule %q", schedule)
	}
}

// Start begins running scheduled jobs in the background. It does not block.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("job scheduler started")
}

// Stop asks the scheduler to stop and blocks until any in-flight job runs
// finish or ctx is done, whichever comes first.
func (s *Scheduler) Stop(ctx context.Context) {
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
	}
	s.logger.Info("job scheduler stopped")
}

func (s *Scheduler) runFlushDownloads() {
	if err := s.flush.FlushDownloadCounts(context.Background()); err != nil {
		s.logger.WithError(err).Warn("jobs: flush download counts failed")
	}
}

func (s *Scheduler) runTokenCleanup() {
	cutoff := time.Now().Add(-s.tokenRetention)
	n, err := s.tokens.DeleteExpiredTokens(context.Background(), cutoff)
	if err != nil {
		s.logger.WithError(err).Warn("jobs: token cleanup failed")
		return
	}
	if n > 0 {
		s.logger.WithField("deleted", n).Info("jobs: purged expired tokens")
	}
}

// warmCategories seeds the discovery cache for the registry's landing-page
// and browse-tab queries, so the first real user request after a cache
// eviction doesn't pay the upstream discovery provider's latency.
var warmCategories = []string{"", "cli", "library", "tool"}

func (s *Scheduler) runDiscoveryWarm() {
	ctx := context.Background()
	if _, err := s.disco.Trending(ctx, "", 20); err != nil {
		s.logger.WithError(err).Warn("jobs: discovery trending warm failed")
	}
	for _, category := range warmCategories {
		if _, err := s.disco.Browse(ctx, category, 20); err != nil {
			s.logger.WithError(err).Warnf("jobs: discovery browse warm failed for category %q", category)
		}
	}
}
