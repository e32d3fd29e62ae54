package jobs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Ananth-NQI/mechlocator-backend/internal/metrics"
)

// Expired OTPs are kept this long for the audit trail before deletion.
const otpRetention = 24 * time.Hour

type otpPurger interface {
	PurgeExpired(ctx context.Context, grace time.Duration) (int64, error)
}

type staleSessionCloser interface {
	CloseStale(ctx context.Context) (int64, error)
}

// CleanupJob periodically deletes old one-time codes and closes
// session rows whose cookie has long expired.
type CleanupJob struct {
	otps     otpPurger
	sessions staleSessionCloser
	interval time.Duration
	log      *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewCleanupJob(otps otpPurger, sessions staleSessionCloser, interval time.Duration, log *zap.Logger) *CleanupJob {
	return &CleanupJob{
		otps:     otps,
		sessions: sessions,
		interval: interval,
		log:      log.Named("cleanup"),
	}
}

// Start runs the job on a ticker until ctx is cancelled or Stop is called.
func (j *CleanupJob) Start(ctx context.Context) {
	if j.cancel != nil {
		j.log.Warn("cleanup job already running")
		return
	}
	ctx, j.cancel = context.WithCancel(ctx)

	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		j.log.Info("cleanup job started", zap.Duration("interval", j.interval))
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				j.RunOnce(ctx)
			}
		}
	}()
}

// Stop halts the ticker and waits for a running pass to finish.
func (j *CleanupJob) Stop() {
	if j.cancel == nil {
		return
	}
	j.cancel()
	j.wg.Wait()
	j.log.Info("cleanup job stopped")
}

// RunOnce performs a single cleanup pass.
func (j *CleanupJob) RunOnce(ctx context.Context) {
	if n, err := j.otps.PurgeExpired(ctx, otpRetention); err != nil {
		j.log.Error("failed to purge expired OTPs", zap.Error(err))
	} else if n > 0 {
		metrics.CleanupRemoved.WithLabelValues("otp").Add(float64(n))
		j.log.Info("purged expired OTPs", zap.Int64("count", n))
	}

	if n, err := j.sessions.CloseStale(ctx); err != nil {
		j.log.Error("failed to close stale sessions", zap.Error(err))
	} else if n > 0 {
		metrics.CleanupRemoved.WithLabelValues("session").Add(float64(n))
		j.log.Info("closed stale sessions", zap.Int64("count", n))
	}
}
