// internal/monitor/poller.go
package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// intervalSchedule fires at Start and then every interval. cron.Every rounds
// to whole seconds, this one does not. Next is only called from the cron loop.
type intervalSchedule struct {
	interval time.Duration
	fired    bool
}

func (s *intervalSchedule) Next(t time.Time) time.Time {
	if !s.fired {
		s.fired = true
		return t
	}
	return t.Add(s.interval)
}

// cronLogger направляет логи cron в zap.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}

// Poller runs a job immediately and then on a fixed interval until stopped.
// A run still in progress when the next tick arrives causes that tick to be skipped.
type Poller struct {
	name     string
	interval time.Duration
	job      func(ctx context.Context)
	cron     *cron.Cron
	logger   *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	started bool
	stopped bool
}

// NewPoller создает периодическую задачу.
func NewPoller(name string, interval time.Duration, job func(ctx context.Context), logger *zap.Logger) (*Poller, error) {
	if interval <= 0 {
		return nil, errors.New("poll interval must be positive")
	}
	if job == nil {
		return nil, errors.New("poll job cannot be nil")
	}
	logger = logger.Named("poller").With(zap.String("job", name))
	cl := cronLogger{s: logger.Sugar()}
	return &Poller{
		name:     name,
		interval: interval,
		job:      job,
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger: logger,
	}, nil
}

// Start begins polling. Runs receive a context cancelled by Stop or by ctx.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return errors.New("poller is stopped")
	}
	if p.started {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.cron.Schedule(&intervalSchedule{interval: p.interval}, cron.FuncJob(func() {
		if runCtx.Err() != nil {
			return
		}
		p.job(runCtx)
	}))
	p.cron.Start()
	p.started = true
	p.logger.Debug("poller started", zap.Duration("interval", p.interval))
	return nil
}

// Stop cancels the schedule and waits for an in-flight run to return.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	cancel := p.cancel
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	<-p.cron.Stop().Done()
	p.logger.Debug("poller stopped")
}
