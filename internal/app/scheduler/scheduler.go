// Package scheduler runs the periodic maintenance jobs: notification
// dispatch, expiry sweep, expiry reminders, broadcast push retry and
// daily membership snapshots.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/alanwang5210/telegram-bot/pkg/config"
	"github.com/alanwang5210/telegram-bot/pkg/metrics"
)

// Job is one periodic task. Run must be safe to execute concurrently with
// itself; the lease only avoids wasted work.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

type Scheduler struct {
	jobs    []Job
	locker  Locker
	log     *zap.SugaredLogger
	metrics *metrics.Business

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func New(jobs []Job, locker Locker, log *zap.SugaredLogger, m *metrics.Business) *Scheduler {
	if locker == nil {
		locker = localLocker{}
	}
	return &Scheduler{jobs: jobs, locker: locker, log: log, metrics: m}
}

// Start launches one loop per job. Every job runs once immediately.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	for _, job := range s.jobs {
		if job.Interval <= 0 {
			s.log.Infow("job disabled", "job", job.Name)
			continue
		}
		s.log.Infow("starting job", "job", job.Name, "interval", job.Interval)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.loop(ctx, job)
		}()
	}
}

// Stop cancels running passes and waits for the loops to exit. Safe to
// call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		s.wg.Wait()
		s.log.Infow("scheduler stopped")
	})
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	s.RunOnce(ctx, job)

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx, job)
		}
	}
}

// RunOnce runs one pass of job under its lease. It reports whether the
// pass ran.
func (s *Scheduler) RunOnce(ctx context.Context, job Job) bool {
	log := s.log.With("job", job.Name)
	unlock, ok, err := s.locker.TryLock(ctx, job.Name, leaseTTL(job.Interval))
	if err != nil {
		// the lease is an optimisation; run anyway
		log.Warnw("job lease unavailable", "err", err)
		unlock, ok = func(context.Context) {}, true
	}
	if !ok {
		log.Debugw("job skipped, lease held elsewhere")
		s.metrics.JobRun(job.Name, "skipped", 0)
		return false
	}
	defer unlock(context.WithoutCancel(ctx))

	start := time.Now()
	err = job.Run(ctx)
	ms := metrics.MillisecondsSince(start)
	switch {
	case err == nil:
		s.metrics.JobRun(job.Name, "ok", ms)
	case errors.Is(err, context.Canceled):
		s.metrics.JobRun(job.Name, "canceled", ms)
	default:
		s.metrics.JobRun(job.Name, "error", ms)
		log.Errorw("job failed", "err", err, "duration_ms", ms)
	}
	return true
}

// leaseTTL keeps the lease shorter than the interval so a crashed holder
// does not block the next tick.
func leaseTTL(interval time.Duration) time.Duration {
	ttl := interval * 9 / 10
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}

func registerLifecycle(lc fx.Lifecycle, cfg *config.Config, s *Scheduler) {
	if !cfg.Scheduler.Enabled {
		s.log.Infow("scheduler disabled")
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			// fx cancels the start context once OnStart returns
			s.Start(context.Background())
			return nil
		},
		OnStop: func(context.Context) error {
			s.Stop()
			return nil
		},
	})
}
