package call

import (
	"log/slog"

	"github.com/sebas/ringbridge/internal/telephony/address"
	"github.com/sebas/ringbridge/internal/telephony/cause"
	"github.com/sebas/ringbridge/internal/telephony/ledger"
	"github.com/sebas/ringbridge/internal/telephony/modem"
	"github.com/sebas/ringbridge/internal/telephony/protocol"
	"github.com/sebas/ringbridge/internal/telephony/tones"
)

func errPending() error {
	return protocol.Errorf(protocol.ErrNotAvailable, "Call control operation pending")
}

func errState() error {
	return protocol.Errorf(protocol.ErrNotAvailable, "Invalid call state")
}

func errNoCall() error {
	return protocol.Errorf(protocol.ErrNotAvailable, "Missing call instance")
}

// track makes teardown cancel the request and fail done.
func (s *Session) track(e *ledger.Entry, req modem.Request, done protocol.Completion) {
	e.Bind(req).OnCancel(func() {
		if req != nil {
			req.Cancel()
		}
		done.Done(protocol.Canceled())
	})
}

// Dial places the call to the session's peer. clir applies unless the
// destination carries its own *31# or #31# prefix.
func (s *Session) Dial(clir modem.CLIR, done protocol.Completion) error {
	if s.dir != Originating || s.call != nil || s.released || s.closing {
		return errState()
	}
	if s.ledger.Pending(ledger.KindDial) {
		return errPending()
	}

	dest := string(s.peer)
	if err := address.Validate(dest); err != nil {
		return protocol.Errorf(protocol.ErrInvalidArgument, "Invalid address %q: %v", dest, err)
	}
	if s.peer == s.cfg.Self {
		return protocol.Errorf(protocol.ErrInvalidArgument, "Cannot call self")
	}

	target := address.Split(dest)
	if address.IsEmergencyURN(dest) {
		target = address.Target{Number: s.cfg.Emergency.DialNumber()}
	}
	if target.CLIR == modem.CLIRDefault {
		target.CLIR = clir
	}
	s.dialString = target.DialString

	e := s.ledger.Enqueue(ledger.KindDial, target.Number)
	req := s.cfg.Modem.Dial(target.Number, target.CLIR, func(c modem.Call, err error) {
		s.dialed(e, c, err, done)
	})
	s.track(e, req, done)

	slog.Info("[Call] Dialing",
		"channel", s.id, "number", target.Number, "clir", target.CLIR, "emergency", s.emergency)
	return nil
}

func (s *Session) dialed(e *ledger.Entry, c modem.Call, err error, done protocol.Completion) {
	if !s.ledger.Complete(e) {
		if c != nil {
			slog.Info("[Call] Releasing call of a canceled dial", "channel", s.id, "path", c.Path())
			c.Hangup(func(err error) {
				if err != nil {
					slog.Warn("[Call] Hangup of abandoned call failed", "path", c.Path(), "error", err)
				}
			})
		}
		return
	}

	if err != nil {
		slog.Warn("[Call] Dial failed", "channel", s.id, "error", err)
		if s.cfg.Tones != nil {
			s.tone = s.cfg.Tones.Play(tones.ForError(err), tones.DefaultVolume, tones.DialFailureDuration)
		}
		reason := cause.ErrorReason(err)
		change := protocol.MembersChange{
			Removed: []protocol.Handle{s.cfg.Self, s.peer},
			Actor:   s.peer,
			Reason:  reason,
			Message: protocol.Message(err),
		}
		if reason != protocol.ReasonNone && reason != protocol.ReasonBusy {
			change.Error = cause.ErrorName(err)
			change.Debug = "Dial() failed: " + err.Error()
		}
		s.markReleased(change)
		done.Done(err)
		s.Close()
		return
	}

	s.call = c
	slog.Info("[Call] Call attached", "channel", s.id, "path", c.Path())
	done.Done(nil)

	if s.hangupOnAttach {
		s.hangupOnAttach = false
		slog.Info("[Call] Release was requested while dialing", "channel", s.id)
		s.hangup(nil, false)
	}
}

// Answer accepts an incoming or waiting call.
func (s *Session) Answer(done protocol.Completion) error {
	if s.call == nil {
		return errNoCall()
	}
	if s.state != modem.StateIncoming && s.state != modem.StateWaiting {
		return errState()
	}
	if s.ledger.Pending(ledger.KindAnswer) {
		return errPending()
	}
	s.accepted = true
	s.answer(done)
	return nil
}

func (s *Session) answer(done protocol.Completion) {
	e := s.ledger.Enqueue(ledger.KindAnswer, nil)
	cb := func(err error) {
		if !s.ledger.Complete(e) {
			return
		}
		if err != nil {
			slog.Warn("[Call] Answer failed", "channel", s.id, "error", err)
			s.accepted = false
		}
		done.Done(err)
	}

	var req modem.Request
	if s.state == modem.StateWaiting {
		req = s.cfg.Modem.HoldAndAnswer(cb)
	} else {
		req = s.call.Answer(cb)
	}
	s.track(e, req, done)
}

// Release ends the call, recording actor self with reason and message.
func (s *Session) Release(reason protocol.Reason, message string, done protocol.Completion) error {
	if s.released || s.closing {
		done.Done(nil)
		return nil
	}
	if s.release == nil {
		s.release = &releaseInfo{actor: s.cfg.Self, reason: reason, message: message}
	}

	switch {
	case s.call != nil:
		if s.ledger.Pending(ledger.KindHangup) {
			return errPending()
		}
		s.hangup(done, false)
	case s.ledger.Pending(ledger.KindDial):
		s.hangupOnAttach = true
		done.Done(nil)
	default:
		s.markReleased(protocol.MembersChange{
			Removed: []protocol.Handle{s.cfg.Self, s.peer},
			Actor:   s.cfg.Self,
			Reason:  reason,
			Message: message,
		})
		done.Done(nil)
		s.Close()
	}
	return nil
}

// RemoveMember handles a protocol request to remove h from the channel.
// Removing either party releases the call.
func (s *Session) RemoveMember(h protocol.Handle, reason protocol.Reason, message string, done protocol.Completion) error {
	if h != s.cfg.Self && h != s.peer {
		return protocol.Errorf(protocol.ErrPermissionDenied, "Cannot remove %s", h)
	}
	return s.Release(reason, message, done)
}

func (s *Session) hangup(done protocol.Completion, retried bool) {
	if s.call == nil {
		done.Done(nil)
		return
	}
	e := s.ledger.Enqueue(ledger.KindHangup, done)
	req := s.call.Hangup(func(err error) {
		if !s.ledger.Complete(e) {
			return
		}
		if err != nil && !retried && s.call != nil {
			slog.Warn("[Call] Hangup failed, retrying", "channel", s.id, "error", err)
			s.hangup(done, true)
			return
		}
		if err != nil {
			slog.Error("[Call] Hangup failed", "channel", s.id, "error", err)
		}
		done.Done(err)
	})
	s.track(e, req, done)
}

// RequestHold puts the call on hold or resumes it.
func (s *Session) RequestHold(hold bool, done protocol.Completion) error {
	if s.hold == protocol.PendingHold || s.hold == protocol.PendingUnhold || s.ledger.Pending(ledger.KindHold) {
		return errPending()
	}
	if (hold && s.hold == protocol.Held) || (!hold && s.hold == protocol.Unheld) {
		done.Done(nil)
		return nil
	}
	if s.call == nil {
		return errNoCall()
	}
	if (hold && s.state != modem.StateActive) || (!hold && s.state != modem.StateHeld) {
		return errState()
	}

	prev := s.hold
	if hold {
		s.setHold(protocol.PendingHold, protocol.HoldReasonRequested)
	} else {
		s.setHold(protocol.PendingUnhold, protocol.HoldReasonRequested)
	}

	e := s.ledger.Enqueue(ledger.KindHold, hold)
	req := s.cfg.Modem.SwapCalls(func(err error) {
		if !s.ledger.Complete(e) {
			return
		}
		if err != nil {
			slog.Warn("[Call] Hold request failed", "channel", s.id, "hold", hold, "error", err)
			s.setHold(prev, protocol.HoldReasonResourceNotAvailable)
		}
		done.Done(err)
	})
	s.track(e, req, done)
	return nil
}

// SendDTMF sends a DTMF string on the active call.
func (s *Session) SendDTMF(digits string, done protocol.Completion) error {
	norm, err := address.NormalizeDTMF(digits)
	if err != nil {
		return protocol.Errorf(protocol.ErrInvalidArgument, "Invalid DTMF string %q", digits)
	}
	if s.call == nil {
		return errNoCall()
	}
	if s.state != modem.StateActive {
		return errState()
	}
	if s.ledger.Pending(ledger.KindDTMF) {
		return errPending()
	}
	s.sendTones(norm, done)
	return nil
}

func (s *Session) sendDialString(digits string) {
	slog.Info("[Call] Sending dial string", "channel", s.id, "digits", digits)
	s.sendTones(digits, func(err error) {
		if err != nil {
			slog.Warn("[Call] Dial string failed", "channel", s.id, "error", err)
		}
	})
}

func (s *Session) sendTones(digits string, done protocol.Completion) {
	e := s.ledger.Enqueue(ledger.KindDTMF, digits)
	req := s.cfg.Modem.SendTones(digits, func(err error) {
		if !s.ledger.Complete(e) {
			return
		}
		done.Done(err)
	})
	s.track(e, req, done)
}

// StartTone starts DTMF event 0..15, stopping a digit still playing.
func (s *Session) StartTone(event int, done protocol.Completion) error {
	key, ok := address.DTMFKey(event)
	if !ok {
		return protocol.Errorf(protocol.ErrInvalidArgument, "Invalid DTMF event %d", event)
	}
	if s.call == nil {
		return errNoCall()
	}
	if s.state != modem.StateActive {
		return errState()
	}
	if s.ledger.Pending(ledger.KindTone) {
		return errPending()
	}

	if s.dtmfKey != 0 {
		s.stopDTMF(nil)
	}

	s.dtmfKey = key
	e := s.ledger.Enqueue(ledger.KindTone, key)
	req := s.cfg.Modem.StartDTMF(s.call, key, func(err error) {
		if !s.ledger.Complete(e) {
			return
		}
		if err != nil && s.dtmfKey == key {
			s.dtmfKey = 0
		}
		done.Done(err)
	})
	s.track(e, req, done)

	if s.cfg.Tones != nil {
		s.tone = s.cfg.Tones.Play(tones.Event(event), tones.DefaultVolume, tones.DefaultDuration)
	}
	return nil
}

// StopTone stops the DTMF digit started with StartTone.
func (s *Session) StopTone(done protocol.Completion) error {
	if s.dtmfKey == 0 {
		done.Done(nil)
		return nil
	}
	if s.call == nil {
		return errNoCall()
	}
	s.stopDTMF(done)
	return nil
}

func (s *Session) stopDTMF(done protocol.Completion) {
	s.dtmfKey = 0
	if s.cfg.Tones != nil && s.tone != 0 {
		s.cfg.Tones.Stop(s.tone)
	}
	e := s.ledger.Enqueue(ledger.KindTone, nil)
	req := s.cfg.Modem.StopDTMF(s.call, func(err error) {
		if !s.ledger.Complete(e) {
			return
		}
		done.Done(err)
	})
	s.track(e, req, done)
}

// CanBecomeMember reports why the call cannot join a conference, or nil.
func (s *Session) CanBecomeMember() error {
	switch {
	case s.peer == protocol.NoHandle:
		return protocol.Errorf(protocol.ErrNotAvailable, "Member channel has no target")
	case s.conference != "":
		return protocol.Errorf(protocol.ErrNotAvailable, "Member channel already in conference")
	case s.call == nil:
		return errNoCall()
	case s.state != modem.StateActive && s.state != modem.StateHeld:
		return protocol.Errorf(protocol.ErrNotAvailable, "Member channel in state %s", s.state)
	}
	return nil
}

// JoinedConference records that the call is a current member of conference id.
func (s *Session) JoinedConference(id string) {
	s.conference = id
	slog.Info("[Call] Joined new conference", "channel", s.id, "conference", id)
}

// LeftConference forgets the conference without notifying it.
func (s *Session) LeftConference() {
	if s.conference == "" {
		return
	}
	slog.Info("[Call] Left conference", "channel", s.id, "conference", s.conference)
	s.conference = ""
}

func (s *Session) leaveConference(change protocol.MembersChange) {
	conf, ok := s.currentConference()
	s.conference = ""
	if ok {
		conf.MemberLeft(s.id, change)
	}
}

// Split takes the call out of its conference into a private call. With at
// most one member left in the conference the call is resumed instead.
func (s *Session) Split(done protocol.Completion) error {
	conf, ok := s.currentConference()
	if !ok {
		return protocol.Errorf(protocol.ErrNotAvailable, "Not a member channel")
	}
	if conf.CurrentMembers() <= 1 {
		return s.RequestHold(false, done)
	}
	if s.call == nil {
		return errNoCall()
	}
	if s.ledger.Pending(ledger.KindSplit) {
		return errPending()
	}

	e := s.ledger.Enqueue(ledger.KindSplit, nil)
	req := s.cfg.Modem.PrivateChat(s.call, func(err error) {
		if !s.ledger.Complete(e) {
			return
		}
		if err != nil {
			slog.Warn("[Call] Split failed", "channel", s.id, "error", err)
			done.Done(err)
			return
		}
		s.leaveConference(protocol.MembersChange{
			Removed: []protocol.Handle{s.peer},
			Actor:   s.cfg.Self,
			Reason:  protocol.ReasonSeparated,
			Message: "Split to private call",
		})
		done.Done(nil)
	})
	s.track(e, req, done)
	return nil
}
