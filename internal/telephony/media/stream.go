// Package media derives the audio stream state of a channel and renders it
// as an SDP description.
//
// The voice path of a modem call never leaves the modem, so the stream is
// descriptive only: it tells protocol clients whether audio is flowing and
// in which direction.
package media

import (
	"github.com/sebas/ringbridge/internal/telephony/modem"
	"github.com/sebas/ringbridge/internal/telephony/protocol"
)

// StreamFor returns the stream of a call in the given call and hold state.
func StreamFor(state modem.State, hold protocol.HoldState) protocol.Stream {
	switch state {
	case modem.StateDialing, modem.StateIncoming, modem.StateWaiting:
		return protocol.Stream{State: protocol.StreamConnecting, Direction: protocol.DirectionNone}
	case modem.StateAlerting:
		// Ringback is heard while the remote side alerts.
		return protocol.Stream{State: protocol.StreamConnecting, Direction: protocol.DirectionReceive}
	case modem.StateActive:
		return protocol.Stream{State: protocol.StreamConnected, Direction: directionFor(hold)}
	case modem.StateHeld:
		return protocol.Stream{State: protocol.StreamConnected, Direction: protocol.DirectionNone}
	default:
		return protocol.Stream{State: protocol.StreamDisconnected, Direction: protocol.DirectionNone}
	}
}

func directionFor(hold protocol.HoldState) protocol.StreamDirection {
	switch hold {
	case protocol.Unheld:
		return protocol.DirectionBidirectional
	case protocol.PendingHold, protocol.PendingUnhold:
		return protocol.DirectionReceive
	default:
		return protocol.DirectionNone
	}
}

// Tracker remembers the last stream of a channel so that only changes are
// published.
type Tracker struct {
	id      string
	current protocol.Stream
	set     bool
}

// NewTracker returns a tracker for channel id.
func NewTracker(id string) *Tracker {
	return &Tracker{id: id}
}

// Update computes the stream for state and hold and reports it through emit
// if it differs from the previous one.
func (t *Tracker) Update(state modem.State, hold protocol.HoldState, emit protocol.Emitter) {
	s := StreamFor(state, hold)
	if t.set && s.State == t.current.State && s.Direction == t.current.Direction {
		return
	}
	t.set = true
	s.Description = Describe(t.id, s)
	t.current = s
	if emit != nil {
		emit.StreamChanged(t.id, s)
	}
}

// Current returns the last published stream.
func (t *Tracker) Current() protocol.Stream {
	return t.current
}
