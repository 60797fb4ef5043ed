package irc

import (
	"sync/atomic"
	"time"
)

const (
	// readerIdleTimeout closes the connection when nothing has been read
	// from the server for this long.
	readerIdleTimeout = 250 * time.Second

	// allIdleTimeout triggers a keepalive ping when the connection has been
	// silent in both directions for this long.
	allIdleTimeout = 60 * time.Second
)

// watchdog watches a connection for inactivity. Two independent windows are
// tracked: reader idle (no inbound bytes) and all idle (no traffic either
// way). Each callback fires once per idle cycle; I/O resuming re-arms it.
type watchdog struct {
	readerIdle time.Duration
	allIdle    time.Duration

	onReaderIdle func()
	onAllIdle    func()

	lastRead  atomic.Int64 // unix nanos
	lastWrite atomic.Int64

	// activity stamps at the moment each callback last fired, used to
	// suppress repeat firings until new I/O is observed.
	readerFiredAt atomic.Int64
	allFiredAt    atomic.Int64

	clk     clock
	stopC   chan struct{}
	stopped atomic.Bool
}

func newWatchdog(readerIdle, allIdle time.Duration, onReaderIdle, onAllIdle func(), clk clock) *watchdog {
	d := &watchdog{
		readerIdle:   readerIdle,
		allIdle:      allIdle,
		onReaderIdle: onReaderIdle,
		onAllIdle:    onAllIdle,
		clk:          clk,
		stopC:        make(chan struct{}),
	}
	now := clk.now().UnixNano()
	d.lastRead.Store(now)
	d.lastWrite.Store(now)
	d.readerFiredAt.Store(-1)
	d.allFiredAt.Store(-1)
	return d
}

func (d *watchdog) start() { go d.run() }

func (d *watchdog) stop() {
	if d.stopped.CompareAndSwap(false, true) {
		close(d.stopC)
	}
}

// touchRead records inbound traffic.
func (d *watchdog) touchRead() { d.lastRead.Store(d.clk.now().UnixNano()) }

// touchWrite records outbound traffic.
func (d *watchdog) touchWrite() { d.lastWrite.Store(d.clk.now().UnixNano()) }

func (d *watchdog) run() {
	// Poll at a fraction of the shortest window. Timer-per-event would be
	// marginally tighter, but sub-second precision is irrelevant against
	// windows measured in minutes.
	interval := d.allIdle / 4
	if ri := d.readerIdle / 4; ri < interval {
		interval = ri
	}
	if interval <= 0 {
		interval = time.Second
	}

	for {
		select {
		case <-d.stopC:
			return
		case <-d.clk.after(interval):
			d.check()
		}
	}
}

func (d *watchdog) check() {
	now := d.clk.now().UnixNano()

	lastRead := d.lastRead.Load()
	if now-lastRead >= int64(d.readerIdle) && d.readerFiredAt.Load() != lastRead {
		d.readerFiredAt.Store(lastRead)
		d.onReaderIdle()
	}

	lastAll := lastRead
	if w := d.lastWrite.Load(); w > lastAll {
		lastAll = w
	}
	if now-lastAll >= int64(d.allIdle) && d.allFiredAt.Load() != lastAll {
		d.allFiredAt.Store(lastAll)
		d.onAllIdle()
	}
}
