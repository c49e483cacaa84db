// Package tonestest provides a tone notifier whose playbacks end only when
// the test says so.
package tonestest

import (
	"time"

	"github.com/sebas/ringbridge/internal/telephony/tones"
)

// Play is one recorded playback.
type Play struct {
	Handle   tones.Handle
	Event    tones.Event
	Volume   int
	Duration time.Duration
	Stopped  bool
	Done     bool

	waiters []func()
}

// Fake records playbacks. It has the method set of *tones.Notifier.
type Fake struct {
	Plays []*Play
	// Stops counts EventStop requests.
	Stops int

	next    tones.Handle
	current tones.Handle
}

func (f *Fake) Play(ev tones.Event, volume int, d time.Duration) tones.Handle {
	if ev == tones.EventNone {
		return 0
	}
	if f.current != 0 {
		f.Stop(f.current)
	}
	if ev == tones.EventStop {
		f.Stops++
		return 0
	}
	f.next++
	f.current = f.next
	f.Plays = append(f.Plays, &Play{Handle: f.next, Event: ev, Volume: volume, Duration: d})
	return f.next
}

// Stop stops playback h and runs its waiters.
func (f *Fake) Stop(h tones.Handle) {
	if p := f.find(h); p != nil && !p.Done {
		p.Stopped = true
		f.Finish(h)
	}
}

func (f *Fake) Playing(h tones.Handle) bool {
	p := f.find(h)
	return p != nil && !p.Done
}

func (f *Fake) OnStopped(h tones.Handle, fn func()) {
	p := f.find(h)
	if p == nil || p.Done {
		fn()
		return
	}
	p.waiters = append(p.waiters, fn)
}

// Finish ends playback h and runs its waiters.
func (f *Fake) Finish(h tones.Handle) {
	p := f.find(h)
	if p == nil || p.Done {
		return
	}
	p.Done = true
	if f.current == h {
		f.current = 0
	}
	for _, fn := range p.waiters {
		fn()
	}
	p.waiters = nil
}

// Last returns the most recent playback, or nil.
func (f *Fake) Last() *Play {
	if len(f.Plays) == 0 {
		return nil
	}
	return f.Plays[len(f.Plays)-1]
}

// Events returns the played events in order.
func (f *Fake) Events() []tones.Event {
	out := make([]tones.Event, 0, len(f.Plays))
	for _, p := range f.Plays {
		out = append(out, p.Event)
	}
	return out
}

func (f *Fake) find(h tones.Handle) *Play {
	for _, p := range f.Plays {
		if p.Handle == h {
			return p
		}
	}
	return nil
}
