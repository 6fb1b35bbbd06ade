// Package workpool bounds concurrent calls to external services (OCR, PDF
// tools, the AI API) on an ants goroutine pool.
package workpool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
)

var (
	ErrPoolClosed   = errors.New("worker pool closed")
	ErrPoolOverload = errors.New("worker pool overloaded")
)

// Config sizes the pool.
type Config struct {
	Capacity         int
	ExpiryDuration   time.Duration
	Nonblocking      bool
	MaxBlockingTasks int
}

func DefaultConfig() Config {
	return Config{
		Capacity:       4,
		ExpiryDuration: 30 * time.Second,
	}
}

// Stats is a snapshot of pool counters.
type Stats struct {
	Submitted int64
	Completed int64
	Failed    int64
	Rejected  int64
	Panics    int64
	Running   int
	Capacity  int
}

type Pool struct {
	name   string
	pool   *ants.Pool
	logger *slog.Logger

	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	rejected  atomic.Int64
	panics    atomic.Int64
}

func New(name string, cfg Config, logger *slog.Logger) (*Pool, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultConfig().Capacity
	}
	if cfg.ExpiryDuration <= 0 {
		cfg.ExpiryDuration = DefaultConfig().ExpiryDuration
	}

	p := &Pool{name: name, logger: logger}
	ap, err := ants.NewPool(cfg.Capacity,
		ants.WithExpiryDuration(cfg.ExpiryDuration),
		ants.WithNonblocking(cfg.Nonblocking),
		ants.WithMaxBlockingTasks(cfg.MaxBlockingTasks),
		ants.WithPanicHandler(func(v any) {
			logger.Error("workpool.panic", "pool", name, "panic", v)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s pool: %w", name, err)
	}
	p.pool = ap
	logger.Info("workpool.created", "pool", name, "capacity", cfg.Capacity)
	return p, nil
}

// Do runs fn on a pool worker and waits for it. If ctx ends first Do returns
// ctx.Err(); fn keeps its slot until it returns, so fn should honor ctx too.
// A panic in fn is reported as an error.
func (p *Pool) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan error, 1)
	task := func() {
		defer func() {
			if r := recover(); r != nil {
				p.panics.Add(1)
				p.logger.Error("workpool.task.panic", "pool", p.name, "panic", r)
				done <- fmt.Errorf("task panicked: %v", r)
			}
		}()
		done <- fn(ctx)
	}

	if err := p.pool.Submit(task); err != nil {
		p.rejected.Add(1)
		switch {
		case errors.Is(err, ants.ErrPoolClosed):
			return ErrPoolClosed
		case errors.Is(err, ants.ErrPoolOverload):
			return ErrPoolOverload
		default:
			return fmt.Errorf("submit to %s pool: %w", p.name, err)
		}
	}
	p.submitted.Add(1)

	select {
	case err := <-done:
		if err != nil {
			p.failed.Add(1)
		} else {
			p.completed.Add(1)
		}
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) Stats() Stats {
	return Stats{
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Rejected:  p.rejected.Load(),
		Panics:    p.panics.Load(),
		Running:   p.pool.Running(),
		Capacity:  p.pool.Cap(),
	}
}

// Release stops the pool, waiting up to timeout for running tasks.
func (p *Pool) Release(timeout time.Duration) error {
	if timeout <= 0 {
		p.pool.Release()
		return nil
	}
	if err := p.pool.ReleaseTimeout(timeout); err != nil {
		return fmt.Errorf("release %s pool: %w", p.name, err)
	}
	return nil
}
