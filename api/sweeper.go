/*
sweeper.go - Idle session sweeper

PURPOSE:
  Periodically closes form sessions nobody has touched for longer than the
  session TTL. A closed session drops any late submission result.

DESIGN:
  - Runs a background goroutine with a configurable check interval
  - Sweeps once immediately on start
  - Logs how many sessions were expired

CONFIGURATION:
  - TTL:           Idle time before a session is closed (default: 30m)
  - CheckInterval: How often to sweep (default: 1m)
  - Enabled:       Whether the sweeper runs (default: true)

USAGE:
  sweeper := NewSessionSweeper(registry, log)
  sweeper.Start()
  // ... later
  sweeper.Stop()

SEE ALSO:
  - registry.go: Expire
*/
package api

import (
	"sync"
	"time"

	"github.com/warp/workforce-hub/logger"
)

type SessionSweeper struct {
	Registry      *Registry
	TTL           time.Duration
	CheckInterval time.Duration
	Enabled       bool

	log    logger.Logger
	now    func() time.Time
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func NewSessionSweeper(registry *Registry, log logger.Logger) *SessionSweeper {
	if log == nil {
		log = logger.Nop()
	}
	return &SessionSweeper{
		Registry:      registry,
		TTL:           30 * time.Minute,
		CheckInterval: time.Minute,
		Enabled:       true,
		log:           log,
		now:           time.Now,
	}
}

// Start begins sweeping. Calling Start twice is a no-op.
func (ss *SessionSweeper) Start() {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if !ss.Enabled {
		ss.log.Infow("session sweeper disabled")
		return
	}
	if ss.ticker != nil {
		return
	}

	ss.ticker = time.NewTicker(ss.CheckInterval)
	ss.stop = make(chan struct{})
	ss.wg.Add(1)

	go ss.run(ss.ticker, ss.stop)

	ss.log.Infow("session sweeper started", "interval", ss.CheckInterval.String(), "ttl", ss.TTL.String())
}

// Stop stops the sweeper and waits for the current sweep to finish.
func (ss *SessionSweeper) Stop() {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if ss.ticker == nil {
		return
	}
	ss.ticker.Stop()
	close(ss.stop)
	ss.wg.Wait()
	ss.ticker = nil
	ss.log.Infow("session sweeper stopped")
}

func (ss *SessionSweeper) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer ss.wg.Done()

	ss.Sweep()

	for {
		select {
		case <-ticker.C:
			ss.Sweep()
		case <-stop:
			return
		}
	}
}

// Sweep closes idle sessions once and returns their ids.
func (ss *SessionSweeper) Sweep() []string {
	expired := ss.Registry.Expire(ss.now().Add(-ss.TTL))
	if len(expired) > 0 {
		ss.log.Infow("expired idle sessions", "count", len(expired), "remaining", ss.Registry.Len())
	}
	return expired
}
