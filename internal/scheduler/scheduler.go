package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/BatmanBruc/bat-bot-subscriptions/internal/logger"
	"github.com/BatmanBruc/bat-bot-subscriptions/types"
)

type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
	// RunOnStart fires the job once right after Start instead of waiting a
	// full interval.
	RunOnStart bool
}

type Config struct {
	// Locks makes a job run on one instance per interval. Nil runs every
	// job locally.
	Locks   types.LockStore
	Timeout time.Duration
}

type Scheduler struct {
	jobs    []Job
	locks   types.LockStore
	timeout time.Duration
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

func NewScheduler(jobs []Job, config Config) *Scheduler {
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		jobs:    jobs,
		locks:   config.Locks,
		timeout: config.Timeout,
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	logger.Jobs.Info("scheduler started", slog.String("event", "jobs.started"), slog.Int("jobs", len(s.jobs)))

	for _, job := range s.jobs {
		if job.Interval <= 0 || job.Run == nil {
			logger.Jobs.Warn("job disabled", slog.String("event", "jobs.disabled"), slog.String("job", job.Name))
			continue
		}
		s.wg.Add(1)
		go s.loop(job)
	}
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	logger.Jobs.Info("scheduler stopped", slog.String("event", "jobs.stopped"))
}

// Run starts the scheduler and blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	s.Start()
	<-ctx.Done()
	s.Stop()
	return nil
}

func (s *Scheduler) loop(job Job) {
	defer s.wg.Done()

	if job.RunOnStart {
		s.runOnce(job)
	}

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(job)
		}
	}
}

// runOnce executes one tick of job. The cluster lock is left to expire so
// that other instances skip the rest of this interval.
func (s *Scheduler) runOnce(job Job) {
	log := logger.Jobs.With(slog.String("job", job.Name))

	if s.locks != nil {
		ttl := job.Interval * 9 / 10
		_, ok, err := s.locks.AcquireLock(s.ctx, "job:"+job.Name, ttl)
		if err != nil {
			log.Error("acquire job lock failed", slog.String("event", "jobs.lock_failed"), slog.Any("err", err))
			return
		}
		if !ok {
			log.Debug("job already ran elsewhere", slog.String("event", "jobs.skipped"))
			return
		}
	}

	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Error("job panicked", slog.String("event", "jobs.panic"), slog.Any("panic", r))
		}
	}()
	if err := job.Run(ctx); err != nil {
		log.Error("job failed", slog.String("event", "jobs.failed"), slog.Any("err", err), slog.Duration("duration", time.Since(start)))
		return
	}
	log.Debug("job done", slog.String("event", "jobs.done"), slog.Duration("duration", time.Since(start)))
}
