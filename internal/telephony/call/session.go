// Package call implements the call session: one modem voice call mirrored
// into a protocol channel with membership, hold and stream state.
//
// A Session is only touched on the dispatch loop. It never points at its
// conference; it keeps the conference's registry id and resolves it through
// the Conferences directory when needed.
package call

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/sebas/ringbridge/internal/telephony/address"
	"github.com/sebas/ringbridge/internal/telephony/ledger"
	"github.com/sebas/ringbridge/internal/telephony/loop"
	"github.com/sebas/ringbridge/internal/telephony/media"
	"github.com/sebas/ringbridge/internal/telephony/modem"
	"github.com/sebas/ringbridge/internal/telephony/protocol"
	"github.com/sebas/ringbridge/internal/telephony/tones"
)

// DefaultCloseTimeout bounds how long Close waits for a tone to finish.
const DefaultCloseTimeout = 32 * time.Second

// Direction tells who placed the call.
type Direction int

const (
	Originating Direction = iota
	Terminating
)

func (d Direction) String() string {
	switch d {
	case Originating:
		return "originating"
	case Terminating:
		return "terminating"
	default:
		return fmt.Sprintf("Unknown(%d)", int(d))
	}
}

// Tones is the tone facade a session plays feedback through.
type Tones interface {
	Play(ev tones.Event, volume int, d time.Duration) tones.Handle
	Stop(h tones.Handle)
	Playing(h tones.Handle) bool
	OnStopped(h tones.Handle, fn func())
}

// Conference is what a member call needs from its conference.
type Conference interface {
	ID() string
	// CurrentMembers returns the number of current members.
	CurrentMembers() int
	// MemberHoldChanged tells the conference a member's hold state moved.
	MemberHoldChanged(member string)
	// MemberLeft removes a member that split, was released or closed.
	MemberLeft(member string, change protocol.MembersChange)
}

// Conferences resolves conference ids.
type Conferences interface {
	Conference(id string) (Conference, bool)
}

// Config holds the collaborators of a session.
type Config struct {
	ID          string
	Modem       modem.Service
	Emitter     protocol.Emitter
	Tones       Tones
	Scheduler   loop.Scheduler
	Conferences Conferences
	Emergency   *address.EmergencyNumbers
	// Self is the local party's handle.
	Self protocol.Handle
	// CloseTimeout bounds the wait for a tone before Closed is emitted.
	CloseTimeout time.Duration
	// OnClosed is invoked once, after Closed has been emitted.
	OnClosed func(s *Session)
}

// releaseInfo is the actor, reason and message of a release the local
// side asked for. It is recorded once and preferred over the modem cause.
type releaseInfo struct {
	actor   protocol.Handle
	reason  protocol.Reason
	message string
}

// Session is one call channel.
type Session struct {
	cfg Config
	id  string

	peer      protocol.Handle
	dir       Direction
	requested bool
	emergency bool

	call  modem.Call
	state modem.State

	hold       protocol.HoldState
	holdReason protocol.HoldReason
	flags      protocol.CallFlags

	group  *protocol.Group
	ledger *ledger.Ledger
	stream *media.Tracker

	conference string

	release        *releaseInfo
	hangupOnAttach bool
	released       bool

	accepted   bool
	dialString string
	dtmfKey    byte

	tone    tones.Handle
	closing bool
	closed  bool
}

const initialFlags = protocol.GroupMessageRemove | protocol.GroupMembersChangedDetailed |
	protocol.GroupProperties | protocol.GroupChannelSpecificHandles

func newSession(cfg Config, peer protocol.Handle, dir Direction) *Session {
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = DefaultCloseTimeout
	}
	if cfg.Emergency == nil {
		cfg.Emergency = address.NewEmergencyNumbers()
	}
	flags := initialFlags
	if dir == Originating {
		flags |= protocol.GroupCanAdd | protocol.GroupCanRescind
	} else {
		flags |= protocol.GroupCanRemove
	}
	s := &Session{
		cfg:    cfg,
		id:     cfg.ID,
		peer:   peer,
		dir:    dir,
		group:  protocol.NewGroup(flags),
		ledger: ledger.New(cfg.ID),
		stream: media.NewTracker(cfg.ID),
	}
	s.emergency = cfg.Emergency.Service(string(peer)) != ""
	return s
}

// NewOutgoing returns a session for a call the local side asked to place.
// The call itself is issued by Dial.
func NewOutgoing(cfg Config, peer protocol.Handle) *Session {
	s := newSession(cfg, peer, Originating)
	s.requested = true
	return s
}

// NewIncoming returns a session for a call that appeared from the network.
func NewIncoming(cfg Config, call modem.Call, peer protocol.Handle, state modem.State, emergency bool) *Session {
	s := newSession(cfg, peer, Terminating)
	s.call = call
	s.state = state
	s.emergency = s.emergency || emergency
	return s
}

// NewCreated returns a session for a call dialed outside the bridge.
func NewCreated(cfg Config, call modem.Call, peer protocol.Handle, emergency bool) *Session {
	s := newSession(cfg, peer, Originating)
	s.requested = true
	s.call = call
	s.emergency = s.emergency || emergency
	return s
}

// Announce emits the new channel and its initial membership.
func (s *Session) Announce() {
	s.cfg.Emitter.NewChannel(s.Info())

	switch {
	case s.dir == Terminating:
		s.changeMembers(protocol.MembersChange{
			Added:        []protocol.Handle{s.peer},
			LocalPending: []protocol.Handle{s.cfg.Self},
			Actor:        s.peer,
			Reason:       protocol.ReasonInvited,
			Message:      "Channel created for incoming call",
		})
		if s.state == modem.StateWaiting {
			s.setCallFlags(protocol.CallQueued, 0)
		}
		s.updateStream()
		s.playStateTone()
	case s.call != nil:
		s.changeMembers(protocol.MembersChange{
			Added: []protocol.Handle{s.cfg.Self},
			Actor: s.cfg.Self,
		})
		// A call dialed elsewhere starts out as Dialing.
		s.setState(modem.StateDialing, 0, 0)
	default:
		s.changeMembers(protocol.MembersChange{
			Added: []protocol.Handle{s.cfg.Self},
			Actor: s.cfg.Self,
		})
	}

	slog.Info("[Call] Channel created",
		"channel", s.id, "peer", s.peer, "direction", s.dir, "emergency", s.emergency)
}

// Info describes the channel for NewChannel.
func (s *Session) Info() protocol.ChannelInfo {
	initiator := s.cfg.Self
	if s.dir == Terminating {
		initiator = s.peer
	}
	return protocol.ChannelInfo{
		ID:        s.id,
		Kind:      protocol.KindCall,
		Peer:      s.peer,
		Initiator: initiator,
		Requested: s.requested,
		Emergency: s.emergency,
	}
}

func (s *Session) ID() string                    { return s.id }
func (s *Session) Peer() protocol.Handle         { return s.peer }
func (s *Session) Direction() Direction          { return s.dir }
func (s *Session) State() modem.State            { return s.state }
func (s *Session) HoldState() protocol.HoldState { return s.hold }
func (s *Session) CallFlags() protocol.CallFlags { return s.flags }
func (s *Session) Emergency() bool               { return s.emergency }
func (s *Session) Requested() bool               { return s.requested }
func (s *Session) Call() modem.Call              { return s.call }
func (s *Session) Released() bool                { return s.released }
func (s *Session) Closed() bool                  { return s.closed }
func (s *Session) Stream() protocol.Stream       { return s.stream.Current() }

// ConferenceID returns the id of the conference the call belongs to, or "".
func (s *Session) ConferenceID() string { return s.conference }

// Members returns the current members of the channel.
func (s *Session) Members() []protocol.Handle { return s.group.Members() }

// Group exposes the membership sets; callers must not modify it.
func (s *Session) Group() *protocol.Group { return s.group }

// PendingRequests returns the number of modem requests in flight.
func (s *Session) PendingRequests() int { return s.ledger.Len() }

// CallPath returns the modem object path of the call, or "".
func (s *Session) CallPath() string {
	if s.call == nil {
		return ""
	}
	return s.call.Path()
}

func (s *Session) changeMembers(c protocol.MembersChange) bool {
	eff, ok := s.group.Apply(c)
	if !ok {
		return false
	}
	s.cfg.Emitter.MembersChanged(s.id, eff)
	return true
}

func (s *Session) changeGroupFlags(add, remove protocol.GroupFlags) {
	added, removed := s.group.ChangeFlags(add, remove)
	if added != 0 || removed != 0 {
		s.cfg.Emitter.GroupFlagsChanged(s.id, added, removed)
	}
}

func (s *Session) setCallFlags(set, clear protocol.CallFlags) {
	next := (s.flags | set) &^ clear
	if next == s.flags {
		return
	}
	s.flags = next
	s.cfg.Emitter.CallStateChanged(s.id, next)
}

func (s *Session) setHold(state protocol.HoldState, reason protocol.HoldReason) {
	if s.hold == state && s.holdReason == reason {
		return
	}
	s.hold, s.holdReason = state, reason
	s.cfg.Emitter.HoldStateChanged(s.id, state, reason)
	s.updateStream()
	if conf, ok := s.currentConference(); ok {
		conf.MemberHoldChanged(s.id)
	}
}

func (s *Session) updateStream() {
	s.stream.Update(s.state, s.hold, s.cfg.Emitter)
}

func (s *Session) currentConference() (Conference, bool) {
	if s.conference == "" || s.cfg.Conferences == nil {
		return nil, false
	}
	return s.cfg.Conferences.Conference(s.conference)
}
