package revocation

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const defaultSweepInterval = time.Minute

// SweeperConfig controls a background Sweeper.
type SweeperConfig struct {
	Interval time.Duration
	// Timeout bounds a single Sweep call. Zero means Interval.
	Timeout time.Duration
	Now     func() time.Time
	Logger  *slog.Logger
	// OnSweep, when set, observes every completed pass.
	OnSweep func(removed int, err error)
}

// Sweeper runs Registry.Sweep on a ticker until Close is called.
type Sweeper struct {
	registry  Registry
	cfg       SweeperConfig
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewSweeper starts the background goroutine. Callers must Close it.
func NewSweeper(registry Registry, cfg SweeperConfig) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultSweepInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = cfg.Interval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	s := &Sweeper{
		registry: registry,
		cfg:      cfg,
		done:     make(chan struct{}),
	}

	s.wg.Add(1)
	go s.run()

	return s
}

func (s *Sweeper) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweepOnce()
		case <-s.done:
			return
		}
	}
}

func (s *Sweeper) sweepOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
	defer cancel()

	removed, err := s.registry.Sweep(ctx, s.cfg.Now())
	if err != nil {
		s.cfg.Logger.Warn("revocation sweep failed", "error", err)
	} else if removed > 0 {
		s.cfg.Logger.Debug("revocation sweep", "removed", removed)
	}
	if s.cfg.OnSweep != nil {
		s.cfg.OnSweep(removed, err)
	}
}

// Close stops the sweeper and waits for an in-flight pass to finish.
func (s *Sweeper) Close() {
	if s == nil {
		return
	}
	s.closeOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
}
