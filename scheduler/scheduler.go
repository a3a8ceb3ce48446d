package scheduler

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// TaskFn is a unit of background work.
type TaskFn func()

// Scheduler drives the engine's background loops, above all the block
// clock that sweeps expired listings and offers. Tasks are keyed by name;
// registering a name twice replaces the earlier task.
type Scheduler struct {
	mu     sync.Mutex
	loops  map[string]*loop
	timers map[string]*time.Timer
	logger *zap.Logger
	done   chan struct{}
}

type loop struct {
	ticker *time.Ticker
	done   chan struct{}
}

// New creates an empty Scheduler.
func New(logger *zap.Logger) *Scheduler {
	return &Scheduler{
		loops:  make(map[string]*loop),
		timers: make(map[string]*time.Timer),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// AddTicker runs fn on a fixed interval until removed or the scheduler
// stops. A panicking task is logged and the loop keeps ticking.
func (s *Scheduler) AddTicker(name string, interval time.Duration, fn TaskFn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.loops[name]; ok {
		close(old.done)
		delete(s.loops, name)
	}

	lp := &loop{
		ticker: time.NewTicker(interval),
		done:   make(chan struct{}),
	}
	s.loops[name] = lp

	go func() {
		for {
			select {
			case <-lp.ticker.C:
				s.run(name, fn)
			case <-lp.done:
				lp.ticker.Stop()
				return
			case <-s.done:
				lp.ticker.Stop()
				return
			}
		}
	}()
	s.logger.Info("scheduler task registered",
		zap.String("name", name), zap.Duration("interval", interval))
}

// AddDelay runs fn once after the given delay. Registering the same name
// again cancels the earlier timer.
func (s *Scheduler) AddDelay(name string, delay time.Duration, fn TaskFn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.timers[name]; ok {
		old.Stop()
	}
	s.timers[name] = time.AfterFunc(delay, func() {
		defer func() {
			s.mu.Lock()
			delete(s.timers, name)
			s.mu.Unlock()
		}()
		s.run(name, fn)
	})
}

func (s *Scheduler) run(name string, fn TaskFn) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduler task panicked",
				zap.String("task", name), zap.Any("recover", r))
		}
	}()
	fn()
}

// Remove stops the named ticker or delay task.
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lp, ok := s.loops[name]; ok {
		close(lp.done)
		delete(s.loops, name)
	}
	if t, ok := s.timers[name]; ok {
		t.Stop()
		delete(s.timers, name)
	}
}

// Stop halts every loop. Safe to call more than once.
func (s *Scheduler) Stop() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

// ListTickers reports the names of the registered periodic tasks, for
// the admin metrics surface.
func (s *Scheduler) ListTickers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.loops))
	for name := range s.loops {
		names = append(names, name)
	}
	return names
}
