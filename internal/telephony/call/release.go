package call

import (
	"log/slog"

	"github.com/sebas/ringbridge/internal/telephony/cause"
	"github.com/sebas/ringbridge/internal/telephony/ledger"
	"github.com/sebas/ringbridge/internal/telephony/loop"
	"github.com/sebas/ringbridge/internal/telephony/protocol"
)

// releasedBy removes both parties after the modem reported the call gone
// with cause (t, code). A release recorded by Release takes precedence.
func (s *Session) releasedBy(actor protocol.Handle, t cause.Type, code cause.Code) {
	out := cause.Translate(t, code)
	change := protocol.MembersChange{
		Removed: []protocol.Handle{s.cfg.Self, s.peer},
		Actor:   actor,
		Reason:  out.Reason,
		Message: out.Message,
	}
	if out.Reason == protocol.ReasonNone {
		change.Message = "Call released"
	}
	if out.HasDetail {
		change.Error = out.ErrorName
		change.Debug = out.Message
	}
	if r := s.release; r != nil {
		change.Actor = r.actor
		change.Reason = r.reason
		if r.message != "" {
			change.Message = r.message
		}
	}
	s.markReleased(change)
}

// markReleased emits the final membership change. It runs at most once.
func (s *Session) markReleased(change protocol.MembersChange) {
	if s.released {
		return
	}
	s.released = true
	s.accepted = false
	s.hangupOnAttach = false

	slog.Info("[Call] Call released",
		"channel", s.id, "actor", change.Actor, "reason", change.Reason, "message", change.Message)

	s.changeMembers(change)
	s.setCallFlags(0, protocol.CallRinging|protocol.CallQueued|protocol.CallHeld)

	if s.conference != "" {
		left := change
		left.Removed = []protocol.Handle{s.peer}
		s.leaveConference(left)
	}
}

// DetachCall forgets the modem call after the modem removed it and closes
// the session.
func (s *Session) DetachCall() {
	if s.call == nil {
		return
	}
	slog.Debug("[Call] Call instance removed", "channel", s.id, "path", s.call.Path())
	s.call = nil

	// A hangup in flight has done its job.
	for e := s.ledger.Find(ledger.KindHangup); e != nil; e = s.ledger.Find(ledger.KindHangup) {
		s.ledger.Complete(e)
		if done, ok := e.Data.(protocol.Completion); ok {
			done.Done(nil)
		}
	}

	if !s.released {
		s.releasedBy(protocol.NoHandle, cause.Unknown, 0)
	}
	s.Close()
}

// Close tears the session down. Closed is emitted once any tone still
// playing has stopped, or after the close timeout. Close is idempotent.
func (s *Session) Close() {
	if s.closing {
		return
	}
	s.closing = true

	slog.Debug("[Call] Closing channel", "channel", s.id)
	s.ledger.CancelAll()

	if s.call != nil && !s.released {
		c := s.call
		c.Hangup(func(err error) {
			if err != nil {
				slog.Warn("[Call] Hangup on close failed", "path", c.Path(), "error", err)
			}
		})
	}
	if !s.released {
		s.markReleased(protocol.MembersChange{
			Removed: []protocol.Handle{s.cfg.Self, s.peer},
			Actor:   s.cfg.Self,
			Message: "Channel closed",
		})
	}
	s.dtmfKey = 0

	if s.tone == 0 || s.cfg.Tones == nil || !s.cfg.Tones.Playing(s.tone) {
		s.finishClose()
		return
	}

	slog.Debug("[Call] Waiting for tone before closing", "channel", s.id, "timeout", s.cfg.CloseTimeout)
	var (
		timer loop.Timer
		fired bool
	)
	finish := func() {
		if fired {
			return
		}
		fired = true
		if timer != nil {
			timer.Stop()
		}
		s.finishClose()
	}
	if s.cfg.Scheduler != nil {
		timer = s.cfg.Scheduler.AfterFunc(s.cfg.CloseTimeout, finish)
	}
	s.cfg.Tones.OnStopped(s.tone, finish)
}

func (s *Session) finishClose() {
	if s.closed {
		return
	}
	s.closed = true
	s.cfg.Emitter.Closed(s.id)
	slog.Info("[Call] Channel closed", "channel", s.id)
	if s.cfg.OnClosed != nil {
		s.cfg.OnClosed(s)
	}
}
