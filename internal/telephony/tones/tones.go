// Package tones maps call events to audible feedback and plays it.
package tones

import (
	"errors"
	"fmt"
	"time"

	"github.com/sebas/ringbridge/internal/telephony/cause"
	"github.com/sebas/ringbridge/internal/telephony/modem"
)

// Event is a tone event. Values 0..15 are DTMF keys; the rest follow the
// telephone-event registry.
type Event int

const (
	// EventStop stops whatever is playing.
	EventStop Event = -2
	// EventNone plays nothing.
	EventNone Event = -1

	EventDTMF0 Event = 0
	EventDTMFD Event = 15

	EventDial               Event = 66
	EventRinging            Event = 70
	EventBusy               Event = 72
	EventCongestion         Event = 73
	EventSpecialInformation Event = 74
	EventCallWaiting        Event = 79
	EventRadioPathAck       Event = 256
	EventDropped            Event = 257
)

func (e Event) String() string {
	switch {
	case e == EventStop:
		return "stop"
	case e == EventNone:
		return "none"
	case e >= EventDTMF0 && e <= EventDTMFD:
		return fmt.Sprintf("dtmf-%c", "0123456789*#ABCD"[e])
	case e == EventDial:
		return "dial"
	case e == EventRinging:
		return "ringing"
	case e == EventBusy:
		return "busy"
	case e == EventCongestion:
		return "congestion"
	case e == EventSpecialInformation:
		return "special-information"
	case e == EventCallWaiting:
		return "call-waiting"
	case e == EventRadioPathAck:
		return "radio-path-ack"
	case e == EventDropped:
		return "dropped"
	default:
		return fmt.Sprintf("Unknown(%d)", int(e))
	}
}

// Audible reports whether e produces sound.
func (e Event) Audible() bool {
	return e != EventStop && e != EventNone
}

// Playback defaults.
const (
	DefaultVolume   = 0
	DefaultDuration = 5000 * time.Millisecond

	// HeldDropVolume and HeldDropDuration are used when a held call ends.
	HeldDropVolume   = -3
	HeldDropDuration = 1200 * time.Millisecond

	// DialFailureDuration is how long the error tone of a failed dial plays.
	DialFailureDuration = 4000 * time.Millisecond
)

// ForState returns the tone for a call entering state. The cause is only
// used for StateDisconnected.
func ForState(state modem.State, t cause.Type, code cause.Code) Event {
	switch state {
	case modem.StateDialing, modem.StateWaiting, modem.StateIncoming, modem.StateActive:
		return EventStop
	case modem.StateAlerting:
		return EventRinging
	case modem.StateDisconnected:
		return forDisconnect(t, code)
	default:
		return EventNone
	}
}

func forDisconnect(t cause.Type, code cause.Code) Event {
	switch t {
	case cause.Network:
		switch code {
		case cause.NormalClearing, cause.NormalUnspecified:
			return EventDropped
		case cause.UserBusy, cause.CallRejected:
			return EventBusy
		case cause.StatusEnquiryResponse:
			return EventNone
		case cause.NoChannel, cause.TemporaryFailure, cause.Congestion,
			cause.ChannelUnavailable, cause.QoSUnavailable, cause.BearerUnavailable:
			return EventCongestion
		default:
			return EventSpecialInformation
		}
	case cause.Local, cause.Remote:
		switch code {
		case cause.ReleaseByUser:
			if t == cause.Local {
				return EventNone
			}
			return EventDropped
		case cause.BlacklistBlocked, cause.BlacklistDelayed:
			return EventBusy
		case cause.ChannelLoss, cause.NoService, cause.NoCoverage:
			return EventCongestion
		case cause.BusyUserRequest:
			if t == cause.Local {
				return EventNone
			}
			return EventSpecialInformation
		default:
			return EventSpecialInformation
		}
	default:
		return EventNone
	}
}

// ForError returns the tone for a failed modem request.
func ForError(err error) Event {
	var ce *cause.Error
	if !errors.As(err, &ce) {
		return EventSpecialInformation
	}
	switch ce.Domain {
	case cause.DomainNetwork:
		return ForState(modem.StateDisconnected, cause.Network, ce.Code)
	case cause.DomainCall:
		return ForState(modem.StateDisconnected, cause.Remote, ce.Code)
	default:
		return EventSpecialInformation
	}
}
