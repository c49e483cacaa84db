// Package looptest provides a manually advanced loop.Scheduler for tests.
package looptest

import (
	"sort"
	"time"

	"github.com/sebas/ringbridge/internal/telephony/loop"
)

// Manual runs scheduled callbacks only when Advance is called.
type Manual struct {
	now    time.Duration
	timers []*timer
}

var _ loop.Scheduler = (*Manual)(nil)

type timer struct {
	at      time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (t *timer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// AfterFunc implements loop.Scheduler.
func (m *Manual) AfterFunc(d time.Duration, fn func()) loop.Timer {
	t := &timer{at: m.now + d, fn: fn}
	m.timers = append(m.timers, t)
	return t
}

// Advance moves time forward by d, firing due callbacks in time order.
func (m *Manual) Advance(d time.Duration) {
	m.now += d
	for {
		due := m.due()
		if due == nil {
			return
		}
		due.fired = true
		due.fn()
	}
}

// Pending returns the number of timers that have neither fired nor stopped.
func (m *Manual) Pending() int {
	n := 0
	for _, t := range m.timers {
		if !t.fired && !t.stopped {
			n++
		}
	}
	return n
}

func (m *Manual) due() *timer {
	var ready []*timer
	for _, t := range m.timers {
		if !t.fired && !t.stopped && t.at <= m.now {
			ready = append(ready, t)
		}
	}
	if len(ready) == 0 {
		return nil
	}
	sort.SliceStable(ready, func(i, j int) bool { return ready[i].at < ready[j].at })
	return ready[0]
}
