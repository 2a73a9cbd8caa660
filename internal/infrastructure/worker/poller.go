// Package worker runs the periodic background jobs of the engine.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var errAlreadyRunning = errors.New("worker already running")

// poller calls tick once on Start and then every interval.
// A tick is never interrupted mid-way by Stop; Stop waits for it.
type poller struct {
	name     string
	interval time.Duration
	tick     func(ctx context.Context)
	logger   *zap.Logger

	mu   sync.Mutex
	stop context.CancelFunc
	done chan struct{}
}

func (p *poller) Name() string { return p.name }

func (p *poller) Start(ctx context.Context) error {
	if p.interval <= 0 {
		return errors.New(p.name + ": poll interval must be positive")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done != nil {
		return errAlreadyRunning
	}

	runCtx, stop := context.WithCancel(ctx)
	p.stop, p.done = stop, make(chan struct{})
	go p.run(runCtx, p.done)
	return nil
}

func (p *poller) Stop() {
	p.mu.Lock()
	stop, done := p.stop, p.done
	p.stop, p.done = nil, nil
	p.mu.Unlock()

	if done == nil {
		return
	}
	stop()
	<-done
}

func (p *poller) run(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	t := time.NewTicker(p.interval)
	defer t.Stop()

	for {
		p.tick(ctx)
		select {
		case <-ctx.Done():
			p.logger.Debug("Poller exiting", zap.String("worker", p.name))
			return
		case <-t.C:
		}
	}
}
