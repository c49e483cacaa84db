package tones

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Player renders one tone. Play blocks until the tone has been played for
// its duration or ctx is canceled.
type Player interface {
	Play(ctx context.Context, ev Event, volume int) error
}

// Handle identifies one playback started by a Notifier. Zero means nothing
// was started.
type Handle uint64

type playback struct {
	event   Event
	cancel  context.CancelFunc
	waiters []func()
}

// Notifier plays one tone at a time. All methods run on the dispatch loop;
// players run on their own goroutines and report back through post.
type Notifier struct {
	player Player
	post   func(func())

	next    Handle
	current Handle
	active  map[Handle]*playback
}

// NewNotifier returns a notifier that renders tones with player and posts
// completions with post.
func NewNotifier(player Player, post func(func())) *Notifier {
	return &Notifier{
		player: player,
		post:   post,
		active: make(map[Handle]*playback),
	}
}

// Play starts ev for d at volume, stopping the tone that is playing.
// EventStop only stops; EventNone does nothing.
func (n *Notifier) Play(ev Event, volume int, d time.Duration) Handle {
	if ev == EventNone {
		return 0
	}
	if n.current != 0 {
		n.Stop(n.current)
	}
	if ev == EventStop {
		return 0
	}

	n.next++
	h := n.next
	ctx, cancel := context.WithTimeout(context.Background(), d)
	n.active[h] = &playback{event: ev, cancel: cancel}
	n.current = h

	slog.Debug("[Tones] Playing tone", "event", ev, "volume", volume, "duration", d, "handle", h)

	go func() {
		err := n.player.Play(ctx, ev, volume)
		cancel()
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			slog.Warn("[Tones] Tone playback failed", "event", ev, "error", err)
		}
		n.post(func() { n.finished(h) })
	}()
	return h
}

// Stop stops playback h. The waiters registered with OnStopped run once
// the player has returned.
func (n *Notifier) Stop(h Handle) {
	if p, ok := n.active[h]; ok {
		p.cancel()
	}
	if n.current == h {
		n.current = 0
	}
}

// Playing reports whether h is still playing.
func (n *Notifier) Playing(h Handle) bool {
	_, ok := n.active[h]
	return ok
}

// OnStopped runs fn once h has stopped, immediately if it already has.
func (n *Notifier) OnStopped(h Handle, fn func()) {
	p, ok := n.active[h]
	if !ok {
		fn()
		return
	}
	p.waiters = append(p.waiters, fn)
}

func (n *Notifier) finished(h Handle) {
	p, ok := n.active[h]
	if !ok {
		return
	}
	delete(n.active, h)
	if n.current == h {
		n.current = 0
	}
	for _, fn := range p.waiters {
		fn()
	}
}

// LoggingPlayer logs tones instead of rendering them. It holds each tone
// for its full duration so that waiters behave as with real audio.
type LoggingPlayer struct{}

func (LoggingPlayer) Play(ctx context.Context, ev Event, volume int) error {
	slog.Info("[Tones] Tone", "event", ev, "volume", volume)
	<-ctx.Done()
	return nil
}
