// Package conference implements the conference session: a modem
// multiparty call seen as one channel whose members are call channels.
//
// Members are kept in a fixed arena of slots and referenced by channel id
// only; the Calls directory resolves them. A conference that drops to a
// single member dissolves without hanging anybody up.
package conference

import (
	"fmt"
	"log/slog"

	"github.com/sebas/ringbridge/internal/telephony/call"
	"github.com/sebas/ringbridge/internal/telephony/ledger"
	"github.com/sebas/ringbridge/internal/telephony/modem"
	"github.com/sebas/ringbridge/internal/telephony/protocol"
)

// MaxMembers is the size of the modem's multiparty call.
const MaxMembers = 7

// State is the lifecycle state of a conference.
type State int

const (
	Forming State = iota
	Created
	Dissolved
)

func (s State) String() string {
	switch s {
	case Forming:
		return "forming"
	case Created:
		return "created"
	case Dissolved:
		return "dissolved"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// Calls resolves member channel ids.
type Calls interface {
	Call(id string) (*call.Session, bool)
}

// Config holds the collaborators of a conference.
type Config struct {
	ID      string
	Modem   modem.Service
	Emitter protocol.Emitter
	Calls   Calls
	Self    protocol.Handle
	// OnClosed is invoked once when the conference is gone, whether or not
	// it was ever announced.
	OnClosed func(s *Session)
}

type slot struct {
	occupied bool
	member   string
	// current is set once the modem has the member in the multiparty call.
	current bool
}

// Session is one conference channel.
type Session struct {
	cfg Config
	id  string

	state     State
	announced bool
	initial   []string
	slots     [MaxMembers]slot

	group  *protocol.Group
	ledger *ledger.Ledger

	hold          protocol.HoldState
	holdReason    protocol.HoldReason
	holdRequested bool

	closing bool
	closed  bool
}

var _ call.Conference = (*Session)(nil)

const groupFlags = protocol.GroupCanRemove | protocol.GroupMessageRemove |
	protocol.GroupMembersChangedDetailed | protocol.GroupProperties

// New returns a conference in the Forming state. Create turns it into a
// live conference.
func New(cfg Config) *Session {
	return &Session{
		cfg:    cfg,
		id:     cfg.ID,
		group:  protocol.NewGroup(groupFlags),
		ledger: ledger.New(cfg.ID),
	}
}

func (s *Session) ID() string                    { return s.id }
func (s *Session) State() State                  { return s.state }
func (s *Session) HoldState() protocol.HoldState { return s.hold }
func (s *Session) Closed() bool                  { return s.closed }

// Group exposes the membership sets; callers must not modify it.
func (s *Session) Group() *protocol.Group { return s.group }

// Info describes the channel for NewChannel.
func (s *Session) Info() protocol.ChannelInfo {
	return protocol.ChannelInfo{
		ID:              s.id,
		Kind:            protocol.KindConference,
		Initiator:       s.cfg.Self,
		Requested:       true,
		InitialChannels: append([]string(nil), s.initial...),
	}
}

// CurrentMembers returns the number of members in the multiparty call.
func (s *Session) CurrentMembers() int {
	n := 0
	for _, sl := range s.slots {
		if sl.occupied && sl.current {
			n++
		}
	}
	return n
}

// Members returns the ids of the current members in slot order.
func (s *Session) Members() []string {
	var out []string
	for _, sl := range s.slots {
		if sl.occupied && sl.current {
			out = append(out, sl.member)
		}
	}
	return out
}

// Has reports whether member occupies a slot.
func (s *Session) Has(member string) bool {
	return s.find(member) >= 0
}

func (s *Session) find(member string) int {
	for i, sl := range s.slots {
		if sl.occupied && sl.member == member {
			return i
		}
	}
	return -1
}

func (s *Session) reserve(member string) int {
	for i := range s.slots {
		if !s.slots[i].occupied {
			s.slots[i] = slot{occupied: true, member: member}
			return i
		}
	}
	return -1
}

func (s *Session) free(i int) {
	s.slots[i] = slot{}
}

func (s *Session) member(id string) (*call.Session, bool) {
	if s.cfg.Calls == nil {
		return nil, false
	}
	return s.cfg.Calls.Call(id)
}

func (s *Session) changeMembers(c protocol.MembersChange) {
	if !s.announced {
		s.group.Apply(c)
		return
	}
	if eff, ok := s.group.Apply(c); ok {
		s.cfg.Emitter.MembersChanged(s.id, eff)
	}
}

func (s *Session) setHold(state protocol.HoldState, reason protocol.HoldReason) {
	if s.hold == state && s.holdReason == reason {
		return
	}
	s.hold, s.holdReason = state, reason
	if s.announced {
		s.cfg.Emitter.HoldStateChanged(s.id, state, reason)
	}
}
