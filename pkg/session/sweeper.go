package session

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultTTL           = 10 * time.Minute
	DefaultSweepInterval = time.Minute
)

// Sweeper periodically reclaims sessions older than the configured TTL.
type Sweeper struct {
	registry *Registry
	ttl      time.Duration
	interval time.Duration
	stopCh   chan struct{}
	running  bool
}

// NewSweeper creates a new expiry sweeper for the registry.
func NewSweeper(registry *Registry, ttl, interval time.Duration) *Sweeper {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	return &Sweeper{
		registry: registry,
		ttl:      ttl,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start starts the sweep loop
func (s *Sweeper) Start() error {
	if s.running {
		return fmt.Errorf("sweeper is already running")
	}

	s.running = true
	go s.run()

	log.Info().
		Dur("ttl", s.ttl).
		Dur("interval", s.interval).
		Msg("Session expiry sweeper started")

	return nil
}

// Stop stops the sweep loop
func (s *Sweeper) Stop() error {
	if !s.running {
		return fmt.Errorf("sweeper is not running")
	}

	close(s.stopCh)
	s.running = false

	log.Info().Msg("Session expiry sweeper stopped")

	return nil
}

// run is the main sweep loop
func (s *Sweeper) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			return
		}
	}
}

func (s *Sweeper) sweep() {
	expired := s.registry.ExpireOlderThan(s.ttl)
	if expired > 0 {
		log.Info().Int("expired", expired).Msg("Expiry sweep reclaimed sessions")
	}
}

// IsRunning returns whether the sweeper is running
func (s *Sweeper) IsRunning() bool {
	return s.running
}

// TTL returns the configured session time-to-live.
func (s *Sweeper) TTL() time.Duration {
	return s.ttl
}

// SweepNow immediately runs one sweep and returns how many sessions were reclaimed.
func (s *Sweeper) SweepNow() int {
	return s.registry.ExpireOlderThan(s.ttl)
}
