/*
sweeper.go - Background cleanup of staged submissions

PURPOSE:
  Periodically deletes staged receipt data that is no longer needed:
  - Unclaimed records past their expiry
  - Claimed records older than the retention window

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Fires once immediately on start, then on every tick
  - Sweep failures are logged and retried on the next tick

USAGE:
  sweeper := NewSweeper(bridge, logger)
  sweeper.Start()
  // ... later
  sweeper.Stop()

SEE ALSO:
  - handlers.go: RunSweeps endpoint (manual trigger)
  - coin/bridge.go: BridgeService sweep operations
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/warp/coin-engine/coin"
)

// Sweeper handles automated cleanup of staged submissions.
type Sweeper struct {
	Bridge        *coin.BridgeService
	CheckInterval time.Duration
	Enabled       bool

	log    zerolog.Logger
	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewSweeper creates a new sweeper with a 1 hour check interval.
func NewSweeper(bridge *coin.BridgeService, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		Bridge:        bridge,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		log:           log.With().Str("component", "sweeper").Logger(),
		stop:          make(chan bool),
	}
}

// Start begins the sweeper.
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.log.Info().Msg("disabled, not starting")
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.wg.Add(1)

	go s.run()

	s.log.Info().Dur("interval", s.CheckInterval).Msg("started")
}

// Stop stops the sweeper.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
		close(s.stop)
		s.wg.Wait()
		s.log.Info().Msg("stopped")
	}
}

func (s *Sweeper) run() {
	defer s.wg.Done()

	// Run immediately on start
	s.sweep()

	for {
		select {
		case <-s.ticker.C:
			s.sweep()
		case <-s.stop:
			return
		}
	}
}

func (s *Sweeper) sweep() {
	ctx := context.Background()

	expired, err := s.Bridge.SweepExpired(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("expired sweep failed")
	}

	oldClaimed, err := s.Bridge.SweepOldClaimed(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("claimed sweep failed")
	}

	if expired > 0 || oldClaimed > 0 {
		s.log.Info().
			Int64("expired", expired).
			Int64("old_claimed", oldClaimed).
			Msg("swept staged submissions")
	}
}

// RunNow triggers an immediate sweep (for testing/admin).
func (s *Sweeper) RunNow() {
	s.sweep()
}
