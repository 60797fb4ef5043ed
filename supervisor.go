package irc

import (
	"sync"
	"time"
)

// reconnectDelay is how long the supervisor waits before redialing after an
// abnormal close.
const reconnectDelay = 5 * time.Second

// DefaultSupervisor is the process-wide supervisor used by clients that were
// not given one explicitly.
var DefaultSupervisor = NewSupervisor()

// A Supervisor tracks the live connections of one or more clients and owns
// the shared reconnect scheduler. When a connection closes abnormally the
// supervisor schedules a redial; when the last connection closes voluntarily
// the scheduler is torn down. Starting a new connection recreates it.
type Supervisor struct {
	mu        sync.Mutex
	conns     map[*connection]struct{}
	scheduler *scheduler
}

// NewSupervisor creates an empty supervisor, for callers that want reconnect
// scheduling isolated from the process-wide default.
func NewSupervisor() *Supervisor {
	return &Supervisor{conns: make(map[*connection]struct{})}
}

// register adds a connection to the live set, creating the scheduler if this
// is the first connection since teardown.
func (s *Supervisor) register(x *connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scheduler == nil {
		s.scheduler = newScheduler()
	}
	s.conns[x] = struct{}{}
}

// closed handles a connection's teardown: dispatch ConnectionClosed, schedule
// the redial when wanted, and shut the scheduler down when the last
// connection has voluntarily gone away.
func (s *Supervisor) closed(c *Client, x *connection, reconnect bool) {
	s.mu.Lock()
	delete(s.conns, x)
	sched := s.scheduler
	if !reconnect && len(s.conns) == 0 && s.scheduler != nil {
		s.scheduler.shutdown()
		s.scheduler = nil
		sched = nil
	}
	s.mu.Unlock()

	c.bus.Dispatch(ConnectionClosed{Reconnect: reconnect})

	if reconnect && sched != nil {
		c.log.Infow("scheduling reconnect", "client", c.cfg.Name, "delay", reconnectDelay)
		sched.schedule(reconnectDelay, c.Connect)
	}
}

// scheduler is the supervisor's timer reactor: pending callbacks it owns are
// cancelled as a group on shutdown.
type scheduler struct {
	mu      sync.Mutex
	stopped bool
	timers  map[*time.Timer]struct{}
}

func newScheduler() *scheduler {
	return &scheduler{timers: make(map[*time.Timer]struct{})}
}

func (r *scheduler) schedule(d time.Duration, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		r.mu.Lock()
		delete(r.timers, t)
		stopped := r.stopped
		r.mu.Unlock()
		if !stopped {
			fn()
		}
	})
	r.timers[t] = struct{}{}
}

func (r *scheduler) shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	for t := range r.timers {
		t.Stop()
	}
	r.timers = nil
}
