package jobs

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkgforge/registry/pkg/catalog"
	"github.com/pkgforge/registry/pkg/observability"
)

type fakeFlusher struct {
	calls int32
	err   error
}

func (f *fakeFlusher) FlushDownloadCounts(ctx context.Context) error {
	atomic.AddInt32(&f.calls, 1)
	return f.err
}

type fakeTokenStore struct {
	catalog.TokenStore
	deleteCalls int32
	deleted     int64
	err         error
	before      time.Time
}

func (f *fakeTokenStore) DeleteExpiredTokens(ctx context.Context, before time.Time) (int64, error) {
	atomic.AddInt32(&f.deleteCalls, 1)
	f.before = before
	return f.deleted, f.err
}

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, &bytes.Buffer{})
}

func TestSchedulerRunsDownloadFlushDirectly(t *testing.T) {
	flusher := &fakeFlusher{}
	s := NewScheduler(Config{}, nil, nil, flusher, testLogger())

	s.runFlushDownloads()

	if flusher.calls != 1 {
		t.Fatalf("expected 1 flush call, got %d", flusher.calls)
	}
}

func TestSchedulerRunsDownloadFlushLogsErrorWithoutPanicking(t *testing.T) {
	flusher := &fakeFlusher{err: errors.New("boom")}
	s := NewScheduler(Config{}, nil, nil, flusher, testLogger())

	s.runFlushDownloads()

	if flusher.calls != 1 {
		t.Fatalf("expected 1 flush call, got %d", flusher.calls)
	}
}

func TestSchedulerTokenCleanupUsesConfiguredRetention(t *testing.T) {
	tokens := &fakeTokenStore{deleted: 3}
	s := NewScheduler(Config{TokenRetention: time.Hour}, tokens, nil, nil, testLogger())

	s.runTokenCleanup()

	if tokens.deleteCalls != 1 {
		t.Fatalf("expected 1 cleanup call, got %d", tokens.deleteCalls)
	}
	want := time.Now().Add(-time.Hour)
	if d := want.Sub(tokens.before); d < 0 || d > 5*time.Second {
		t.Fatalf("expected cutoff about 1h ago (%v), got %v", want, tokens.before)
	}
}

func TestSchedulerSkipsUnconfiguredJobs(t *testing.T) {
	// No flusher, no token store, no discovery client: Start/Stop must not
	// panic even though nothing was registered.
	s := NewScheduler(Config{}, nil, nil, nil, testLogger())
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.Stop(ctx)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()

	if cfg.DownloadFlushSchedule == "" || cfg.TokenCleanupSchedule == "" || cfg.DiscoveryWarmSchedule == "" {
		t.Fatal("expected all schedules to have non-empty defaults")
	}
	if cfg.TokenRetention <= 0 {
		t.Fatal("expected a positive default token retention")
	}
}
