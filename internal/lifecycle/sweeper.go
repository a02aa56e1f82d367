package lifecycle

import (
	"context"
	"sync"
	"time"
)

const minSweepSleep = 50 * time.Millisecond

// Sweeper — единственная кооперативная задача, которая периодически
// гоняет misfire sweep. Спит misfireThreshold минус время, ушедшее на
// предыдущий проход, не меньше minSweepSleep, и не меньше dbRetryInterval
// после неудачного прохода.
type Sweeper struct {
	cfg Config

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSweeper(cfg Config) *Sweeper {
	return &Sweeper{cfg: cfg}
}

func (s *Sweeper) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop(ctx)
	}()
}

func (s *Sweeper) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Sweeper) loop(ctx context.Context) {
	logger := s.cfg.Logger
	for {
		if ctx.Err() != nil {
			return
		}

		started := time.Now()
		result, err := s.cfg.Fire.RunMisfireSweep(ctx, false)

		var sleep time.Duration
		switch {
		case err != nil:
			if logger != nil {
				logger.Error("misfire sweep failed", "error", err)
			}
			s.cfg.Metrics.IncSweeperErrors()
			sleep = s.cfg.DBRetryInterval
		case result.HasMore:
			s.cfg.Metrics.SetSweeperLastRun(time.Now())
			sleep = minSweepSleep
		default:
			s.cfg.Metrics.SetSweeperLastRun(time.Now())
			elapsed := time.Since(started)
			sleep = s.cfg.MisfireThreshold - elapsed
			if sleep < minSweepSleep {
				sleep = minSweepSleep
			}
		}

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
