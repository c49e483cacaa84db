package call

import (
	"log/slog"

	"github.com/sebas/ringbridge/internal/telephony/cause"
	"github.com/sebas/ringbridge/internal/telephony/ledger"
	"github.com/sebas/ringbridge/internal/telephony/modem"
	"github.com/sebas/ringbridge/internal/telephony/protocol"
	"github.com/sebas/ringbridge/internal/telephony/tones"
)

// HandleEvent applies a modem event for this session's call.
func (s *Session) HandleEvent(ev modem.Event) {
	if s.closed {
		return
	}

	switch e := ev.(type) {
	case modem.StateChanged:
		s.setState(e.State, e.CauseType, e.Cause)

	case modem.Waiting:
		s.setCallFlags(protocol.CallQueued, 0)

	case modem.OnHold:
		if e.OnHold {
			s.setCallFlags(protocol.CallHeld, 0)
		} else {
			s.setCallFlags(0, protocol.CallHeld)
		}

	case modem.Forwarded:
		s.setCallFlags(protocol.CallForwarded, 0)

	case modem.Multiparty:
		if e.Multiparty {
			s.setCallFlags(protocol.CallMultiparty, 0)
			return
		}
		s.setCallFlags(0, protocol.CallMultiparty)
		if s.conference != "" {
			slog.Info("[Call] Call left the modem multiparty call", "channel", s.id, "conference", s.conference)
			s.leaveConference(protocol.MembersChange{
				Removed: []protocol.Handle{s.peer},
				Actor:   s.peer,
				Reason:  protocol.ReasonSeparated,
				Message: "Conference call split",
			})
		}

	case modem.EmergencyChanged:
		s.emergency = e.Emergency
		if e.Emergency {
			s.setCallFlags(protocol.CallEmergency, 0)
		} else {
			s.setCallFlags(0, protocol.CallEmergency)
		}

	case modem.CallRemoved:
		s.DetachCall()

	default:
		slog.Debug("[Call] Ignoring event", "channel", s.id, "event", ev)
	}
}

// setState moves the session to the modem's call state.
func (s *Session) setState(state modem.State, t cause.Type, code cause.Code) {
	if s.released && state != modem.StateDisconnected {
		return
	}
	prev := s.state
	if prev == state && state != modem.StateDisconnected {
		return
	}
	if prev == modem.StateDisconnected {
		return
	}
	s.state = state

	slog.Debug("[Call] State changed", "channel", s.id, "from", prev, "to", state)

	switch state {
	case modem.StateDialing:
		s.changeMembers(protocol.MembersChange{
			RemotePending: []protocol.Handle{s.peer},
			Actor:         s.cfg.Self,
			Message:       "Call created",
		})

	case modem.StateAlerting:
		s.changeMembers(protocol.MembersChange{
			RemotePending: []protocol.Handle{s.peer},
			Actor:         s.cfg.Self,
			Message:       "Call created",
		})
		s.setCallFlags(protocol.CallRinging, 0)

	case modem.StateIncoming, modem.StateWaiting:
		if state == modem.StateWaiting {
			s.setCallFlags(protocol.CallQueued, 0)
		} else {
			s.setCallFlags(0, protocol.CallQueued)
		}
		if s.accepted && !s.ledger.Pending(ledger.KindAnswer) {
			slog.Info("[Call] Re-issuing accepted answer", "channel", s.id, "state", state)
			s.answer(nil)
		}

	case modem.StateActive:
		s.onActive()

	case modem.StateHeld:
		reason := protocol.HoldReasonNone
		if s.hold == protocol.PendingHold {
			reason = protocol.HoldReasonRequested
		}
		s.setHold(protocol.Held, reason)

	case modem.StateDisconnected:
		s.onDisconnected(t, code)
		return
	}

	s.playStateTone()
	s.updateStream()
}

func (s *Session) playStateTone() {
	ev := tones.ForState(s.state, cause.Unknown, 0)
	if ev == tones.EventNone || s.cfg.Tones == nil {
		return
	}
	if ev == tones.EventStop {
		if s.tone != 0 && s.cfg.Tones.Playing(s.tone) {
			s.cfg.Tones.Stop(s.tone)
		}
		return
	}
	s.tone = s.cfg.Tones.Play(ev, tones.DefaultVolume, tones.DefaultDuration)
}

func (s *Session) onActive() {
	if s.group.HasPending() {
		actor := s.peer
		message := "Call answered"
		if s.group.IsLocalPending(s.cfg.Self) {
			actor = s.cfg.Self
		}
		change, ok := s.group.Apply(protocol.MembersChange{
			Added:   []protocol.Handle{s.cfg.Self, s.peer},
			Actor:   actor,
			Message: message,
		})
		if ok {
			// Announce the whole membership once the call is answered.
			change.Added = s.group.Members()
			s.cfg.Emitter.MembersChanged(s.id, change)
		}
	}

	s.setCallFlags(0, protocol.CallRinging|protocol.CallQueued)
	s.changeGroupFlags(protocol.GroupCanRemove, protocol.GroupCanAdd|protocol.GroupCanRescind)

	switch s.hold {
	case protocol.Held:
		s.setHold(protocol.Unheld, protocol.HoldReasonNone)
	case protocol.PendingUnhold:
		s.setHold(protocol.Unheld, protocol.HoldReasonRequested)
	}

	if s.dialString != "" {
		digits := s.dialString
		s.dialString = ""
		s.sendDialString(digits)
	}
}

func (s *Session) onDisconnected(t cause.Type, code cause.Code) {
	wasHeld := s.hold == protocol.Held || s.flags.Has(protocol.CallHeld)

	if s.cfg.Tones != nil {
		if wasHeld {
			s.tone = s.cfg.Tones.Play(tones.EventDropped, tones.HeldDropVolume, tones.HeldDropDuration)
		} else {
			ev := tones.ForState(modem.StateDisconnected, t, code)
			switch {
			case ev.Audible():
				s.tone = s.cfg.Tones.Play(ev, tones.DefaultVolume, tones.DefaultDuration)
			case s.tone != 0:
				s.cfg.Tones.Stop(s.tone)
			}
		}
	}

	switch t {
	case cause.Local:
		s.releasedBy(s.cfg.Self, t, code)
	case cause.Remote:
		s.releasedBy(s.peer, t, code)
	default:
		if !s.released {
			s.releasedBy(protocol.NoHandle, t, code)
		}
	}
	s.updateStream()
}
