package conference

import (
	"errors"
	"log/slog"

	"github.com/sebas/ringbridge/internal/telephony/call"
	"github.com/sebas/ringbridge/internal/telephony/ledger"
	"github.com/sebas/ringbridge/internal/telephony/protocol"
)

func errPending() error {
	return protocol.Errorf(protocol.ErrNotAvailable, "Conference control operation pending")
}

func errState(st State) error {
	return protocol.Errorf(protocol.ErrNotAvailable, "Conference is %s", st)
}

// prefixed repeats err with prefix in front of its message.
func prefixed(prefix string, err error) error {
	kind := protocol.ErrNotAvailable
	var pe *protocol.Error
	if errors.As(err, &pe) {
		kind = pe.Kind
	}
	return protocol.Errorf(kind, "%s%s", prefix, protocol.Message(err))
}

// Create builds the conference from two calls. Nothing is announced until
// the modem has created the multiparty call; on failure the conference is
// dropped and the calls are left as they were.
func (s *Session) Create(a, b *call.Session, done protocol.Completion) error {
	if s.state != Forming || s.ledger.Pending(ledger.KindCreate) || s.closing {
		return errState(s.state)
	}
	if a == nil || b == nil {
		return protocol.Errorf(protocol.ErrInvalidArgument, "Conference needs two initial channels")
	}
	if a.ID() == b.ID() {
		return protocol.Errorf(protocol.ErrInvalidArgument, "Initial channels must be distinct")
	}
	if err := a.CanBecomeMember(); err != nil {
		return prefixed("First initial: ", err)
	}
	if err := b.CanBecomeMember(); err != nil {
		return prefixed("Second initial: ", err)
	}

	s.initial = []string{a.ID(), b.ID()}
	s.reserve(a.ID())
	s.reserve(b.ID())

	e := s.ledger.Enqueue(ledger.KindCreate, nil)
	req := s.cfg.Modem.CreateMultiparty(func(err error) {
		if !s.ledger.Complete(e) {
			return
		}
		if err != nil {
			slog.Warn("[Conference] Creating multiparty call failed", "conference", s.id, "error", err)
			done.Done(err)
			s.Close()
			return
		}
		s.created()
		done.Done(nil)
	})
	e.Bind(req).OnCancel(func() {
		req.Cancel()
		done.Done(protocol.Canceled())
	})

	slog.Info("[Conference] Creating conference", "conference", s.id, "members", s.initial)
	return nil
}

func (s *Session) created() {
	s.state = Created
	s.announced = true
	s.cfg.Emitter.NewChannel(s.Info())

	added := []protocol.Handle{s.cfg.Self}
	for i := range s.slots {
		sl := &s.slots[i]
		if !sl.occupied {
			continue
		}
		m, ok := s.member(sl.member)
		if !ok {
			s.free(i)
			continue
		}
		sl.current = true
		m.JoinedConference(s.id)
		s.cfg.Emitter.ChannelMerged(s.id, sl.member)
		added = append(added, m.Peer())
	}

	s.changeMembers(protocol.MembersChange{
		Added:   added,
		Actor:   s.cfg.Self,
		Message: "New conference members",
	})
	s.aggregateHold()

	slog.Info("[Conference] Conference created", "conference", s.id, "members", s.Members())

	// A member that vanished during creation leaves too few behind.
	if s.CurrentMembers() < 2 {
		s.dissolve()
	}
}

// Merge adds candidate to the live conference.
func (s *Session) Merge(candidate *call.Session, done protocol.Completion) error {
	if s.state != Created || s.closing {
		return errState(s.state)
	}
	if candidate == nil {
		return protocol.Errorf(protocol.ErrInvalidArgument, "Invalid channel path")
	}
	if err := candidate.CanBecomeMember(); err != nil {
		return err
	}
	if s.ledger.Pending(ledger.KindMerge) {
		return errPending()
	}
	if s.find(candidate.ID()) >= 0 {
		return protocol.Errorf(protocol.ErrNotAvailable, "Member channel already in conference")
	}
	i := s.reserve(candidate.ID())
	if i < 0 {
		return protocol.Errorf(protocol.ErrNotAvailable, "Conference is full")
	}

	id := candidate.ID()
	e := s.ledger.Enqueue(ledger.KindMerge, id)
	req := s.cfg.Modem.CreateMultiparty(func(err error) {
		if !s.ledger.Complete(e) {
			return
		}
		slot := s.find(id)
		if err != nil {
			slog.Warn("[Conference] Merge failed", "conference", s.id, "member", id, "error", err)
			if slot >= 0 {
				s.free(slot)
			}
			done.Done(err)
			return
		}
		m, ok := s.member(id)
		if slot < 0 || !ok {
			done.Done(protocol.Errorf(protocol.ErrNotAvailable, "Member channel closed"))
			return
		}
		s.slots[slot].current = true
		m.JoinedConference(s.id)
		s.cfg.Emitter.ChannelMerged(s.id, id)
		s.changeMembers(protocol.MembersChange{
			Added:   []protocol.Handle{m.Peer()},
			Actor:   s.cfg.Self,
			Message: "New conference members",
		})
		s.aggregateHold()
		done.Done(nil)
	})
	e.Bind(req).OnCancel(func() {
		req.Cancel()
		done.Done(protocol.Canceled())
	})

	slog.Info("[Conference] Merging channel", "conference", s.id, "member", id)
	return nil
}

// MemberLeft implements call.Conference. With two or fewer members before
// the removal the conference dissolves.
func (s *Session) MemberLeft(member string, change protocol.MembersChange) {
	if s.closing {
		return
	}
	i := s.find(member)
	if i < 0 {
		return
	}

	if s.state == Forming {
		slog.Info("[Conference] Initial member left during creation", "conference", s.id, "member", member)
		s.free(i)
		s.Close()
		return
	}

	wasCurrent := s.slots[i].current
	before := s.CurrentMembers()
	s.free(i)

	if wasCurrent {
		s.cfg.Emitter.ChannelRemoved(s.id, member, change)
		removed := change
		removed.Message = "Member channel removed"
		s.changeMembers(removed)
	}

	slog.Info("[Conference] Member left", "conference", s.id, "member", member, "remaining", s.CurrentMembers())

	if before > 2 {
		s.aggregateHold()
		return
	}
	s.dissolve()
}

// dissolve detaches the remaining members and closes the conference
// without touching their calls.
func (s *Session) dissolve() {
	slog.Info("[Conference] Deactivating conference", "conference", s.id)
	s.Close()
}

// MemberHoldChanged implements call.Conference.
func (s *Session) MemberHoldChanged(member string) {
	if s.closing || s.state != Created {
		return
	}
	if i := s.find(member); i < 0 || !s.slots[i].current {
		return
	}
	s.aggregateHold()
}

// aggregateHold derives the conference hold state from its members. The
// first member observed wins; disagreement is logged.
func (s *Session) aggregateHold() {
	var (
		first protocol.HoldState
		found bool
	)
	for _, sl := range s.slots {
		if !sl.occupied || !sl.current {
			continue
		}
		m, ok := s.member(sl.member)
		if !ok {
			continue
		}
		st := m.HoldState()
		if !found {
			first, found = st, true
			continue
		}
		if st != first {
			slog.Warn("[Conference] Members disagree on hold state",
				"conference", s.id, "first", first, "member", sl.member, "state", st)
		}
	}
	if !found {
		return
	}

	reason := protocol.HoldReasonNone
	if s.holdRequested {
		reason = protocol.HoldReasonRequested
	}

	switch s.hold {
	case protocol.PendingHold:
		if first == protocol.Held {
			s.holdRequested = false
			s.setHold(protocol.Held, reason)
		}
	case protocol.PendingUnhold:
		if first == protocol.Unheld {
			s.holdRequested = false
			s.setHold(protocol.Unheld, reason)
		}
	default:
		if first == protocol.Held || first == protocol.Unheld {
			s.setHold(first, s.holdReasonFor(first, reason))
		}
	}
}

func (s *Session) holdReasonFor(st protocol.HoldState, reason protocol.HoldReason) protocol.HoldReason {
	if st == s.hold {
		return s.holdReason
	}
	return reason
}

// RequestHold holds or resumes the whole conference.
func (s *Session) RequestHold(hold bool, done protocol.Completion) error {
	if s.state != Created || s.closing {
		return errState(s.state)
	}
	if s.hold == protocol.PendingHold || s.hold == protocol.PendingUnhold || s.ledger.Pending(ledger.KindHold) {
		return errPending()
	}
	if (hold && s.hold == protocol.Held) || (!hold && s.hold == protocol.Unheld) {
		done.Done(nil)
		return nil
	}

	prev := s.hold
	s.holdRequested = true
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
			slog.Warn("[Conference] Hold request failed", "conference", s.id, "hold", hold, "error", err)
			s.holdRequested = false
			s.setHold(prev, protocol.HoldReasonResourceNotAvailable)
		}
		done.Done(err)
	})
	e.Bind(req).OnCancel(func() {
		req.Cancel()
		done.Done(protocol.Canceled())
	})
	return nil
}

// RemoveMember handles a protocol request to remove h. Removing self
// hangs up every member; removing a member's peer releases that call.
func (s *Session) RemoveMember(h protocol.Handle, reason protocol.Reason, message string, done protocol.Completion) error {
	if h == s.cfg.Self {
		s.HangupAll(reason, message)
		done.Done(nil)
		return nil
	}
	for _, sl := range s.slots {
		if !sl.occupied || !sl.current {
			continue
		}
		m, ok := s.member(sl.member)
		if ok && m.Peer() == h {
			return m.Release(reason, message, done)
		}
	}
	return protocol.Errorf(protocol.ErrPermissionDenied, "Cannot remove %s", h)
}

// HangupAll releases the call of every member and tears the conference
// down.
func (s *Session) HangupAll(reason protocol.Reason, message string) {
	if s.closing {
		return
	}
	slog.Info("[Conference] Hanging up all members", "conference", s.id)
	s.closing = true
	for _, sl := range s.slots {
		if !sl.occupied {
			continue
		}
		m, ok := s.member(sl.member)
		if !ok {
			continue
		}
		id := sl.member
		if err := m.Release(reason, message, func(err error) {
			if err != nil {
				slog.Warn("[Conference] Member hangup failed", "conference", s.id, "member", id, "error", err)
			}
		}); err != nil {
			slog.Warn("[Conference] Member release rejected", "conference", s.id, "member", id, "error", err)
		}
	}
	s.close()
}

// Close detaches every member and closes the conference. It is idempotent.
func (s *Session) Close() {
	if s.closing {
		return
	}
	s.closing = true
	s.close()
}

func (s *Session) close() {
	if s.closed {
		return
	}
	s.ledger.CancelAll()

	for i, sl := range s.slots {
		if !sl.occupied {
			continue
		}
		if m, ok := s.member(sl.member); ok {
			m.LeftConference()
			if s.announced && sl.current {
				s.cfg.Emitter.ChannelRemoved(s.id, sl.member, protocol.MembersChange{
					Removed: []protocol.Handle{m.Peer()},
					Actor:   s.cfg.Self,
					Reason:  protocol.ReasonSeparated,
					Message: "Deactivating conference",
				})
			}
		}
		s.free(i)
	}

	s.state = Dissolved
	s.closed = true
	if s.announced {
		s.changeMembers(protocol.MembersChange{
			Removed: s.group.Members(),
			Actor:   s.cfg.Self,
			Reason:  protocol.ReasonSeparated,
			Message: "Deactivating conference",
		})
		s.cfg.Emitter.Closed(s.id)
	}
	slog.Info("[Conference] Conference closed", "conference", s.id)
	if s.cfg.OnClosed != nil {
		s.cfg.OnClosed(s)
	}
}
