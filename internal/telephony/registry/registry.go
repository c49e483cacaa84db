// Package registry owns every call and conference session. It routes modem
// events to the session of the call they concern, creates sessions for new
// calls and protocol requests, and forgets sessions once they are closed.
//
// The registry is the directory the sessions use to reach each other: a
// call refers to its conference and a conference to its members by id
// only, and every lookup goes through here.
package registry

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/sebas/ringbridge/internal/telephony/address"
	"github.com/sebas/ringbridge/internal/telephony/call"
	"github.com/sebas/ringbridge/internal/telephony/conference"
	"github.com/sebas/ringbridge/internal/telephony/loop"
	"github.com/sebas/ringbridge/internal/telephony/modem"
	"github.com/sebas/ringbridge/internal/telephony/protocol"
)

// Config holds what the registry hands to the sessions it creates.
type Config struct {
	Modem     modem.Service
	Emitter   protocol.Emitter
	Tones     call.Tones
	Scheduler loop.Scheduler
	Self      protocol.Handle
	// ExtraEmergency lists configured emergency numbers on top of the
	// built-in and modem-provided ones.
	ExtraEmergency []string
	CloseTimeout   time.Duration
}

// Registry maps channel ids to sessions. It is only used on the dispatch
// loop.
type Registry struct {
	cfg Config

	calls      map[string]*call.Session
	order      []string
	conference *conference.Session
	emergency  *address.EmergencyNumbers

	next   int
	online bool
	closed bool
}

var (
	_ call.Conferences = (*Registry)(nil)
	_ conference.Calls = (*Registry)(nil)
)

// New returns an empty registry. The modem is considered offline until an
// Availability event says otherwise.
func New(cfg Config) *Registry {
	if cfg.CloseTimeout == 0 {
		cfg.CloseTimeout = call.DefaultCloseTimeout
	}
	return &Registry{
		cfg:       cfg,
		calls:     make(map[string]*call.Session),
		emergency: address.NewEmergencyNumbers(cfg.ExtraEmergency),
	}
}

// Online reports whether the modem voice call service is available.
func (r *Registry) Online() bool { return r.online }

// Emergency returns the emergency numbers currently in effect.
func (r *Registry) Emergency() *address.EmergencyNumbers { return r.emergency }

func (r *Registry) newID(kind string) string {
	r.next++
	return fmt.Sprintf("%s%d", kind, r.next)
}

func (r *Registry) callConfig(id string) call.Config {
	return call.Config{
		ID:           id,
		Modem:        r.cfg.Modem,
		Emitter:      r.cfg.Emitter,
		Tones:        r.cfg.Tones,
		Scheduler:    r.cfg.Scheduler,
		Conferences:  r,
		Emergency:    r.emergency,
		Self:         r.cfg.Self,
		CloseTimeout: r.cfg.CloseTimeout,
		OnClosed:     r.callClosed,
	}
}

func (r *Registry) add(s *call.Session) {
	r.calls[s.ID()] = s
	r.order = append(r.order, s.ID())
}

func (r *Registry) callClosed(s *call.Session) {
	if _, ok := r.calls[s.ID()]; !ok {
		return
	}
	delete(r.calls, s.ID())
	for i, id := range r.order {
		if id == s.ID() {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	slog.Debug("[Registry] Channel removed", "channel", s.ID(), "remaining", len(r.calls))

	// A conference still being created learns about its members only here.
	if conf := r.conference; conf != nil && conf.State() == conference.Forming && conf.Has(s.ID()) {
		conf.MemberLeft(s.ID(), protocol.MembersChange{
			Removed: []protocol.Handle{s.Peer()},
			Actor:   s.Peer(),
			Reason:  protocol.ReasonSeparated,
		})
	}
}

func (r *Registry) conferenceClosed(c *conference.Session) {
	if r.conference == c {
		r.conference = nil
	}
}

// Call implements conference.Calls.
func (r *Registry) Call(id string) (*call.Session, bool) {
	s, ok := r.calls[id]
	return s, ok
}

// Conference implements call.Conferences.
func (r *Registry) Conference(id string) (call.Conference, bool) {
	if r.conference == nil || r.conference.ID() != id {
		return nil, false
	}
	return r.conference, true
}

// Lookup returns the call session with the given id.
func (r *Registry) Lookup(id string) (*call.Session, bool) {
	return r.Call(id)
}

// LookupConference returns the conference with the given id.
func (r *Registry) LookupConference(id string) (*conference.Session, bool) {
	if r.conference == nil || r.conference.ID() != id {
		return nil, false
	}
	return r.conference, true
}

// ActiveConference returns the conference, if one exists.
func (r *Registry) ActiveConference() (*conference.Session, bool) {
	return r.conference, r.conference != nil
}

// LookupByPeer returns the live call session talking to peer.
func (r *Registry) LookupByPeer(peer protocol.Handle) (*call.Session, bool) {
	for _, id := range r.order {
		s := r.calls[id]
		if s.Peer() == peer && !s.Released() {
			return s, true
		}
	}
	return nil, false
}

// sessionFor returns the session bound to modem call c.
func (r *Registry) sessionFor(c modem.Call) (*call.Session, bool) {
	if c == nil {
		return nil, false
	}
	path := c.Path()
	for _, id := range r.order {
		s := r.calls[id]
		if s.CallPath() == path {
			return s, true
		}
	}
	return nil, false
}

// Calls returns the call sessions in creation order.
func (r *Registry) Calls() []*call.Session {
	out := make([]*call.Session, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.calls[id])
	}
	return out
}

// Summary is a point-in-time view of one channel.
type Summary struct {
	ID         string              `json:"id"`
	Kind       string              `json:"kind"`
	Peer       string              `json:"peer,omitempty"`
	Direction  string              `json:"direction,omitempty"`
	State      string              `json:"state"`
	Hold       string              `json:"hold"`
	Conference string              `json:"conference,omitempty"`
	Members    []string            `json:"members,omitempty"`
	Emergency  bool                `json:"emergency,omitempty"`
	Pending    int                 `json:"pending_requests,omitempty"`
	Stream     string              `json:"stream,omitempty"`
	Media      string              `json:"media,omitempty"`
	Flags      protocol.CallFlags  `json:"flags,omitempty"`
	Group      protocol.GroupFlags `json:"group_flags,omitempty"`
}

// Snapshot returns a summary of every channel, calls first, sorted by id
// within each kind.
func (r *Registry) Snapshot() []Summary {
	out := make([]Summary, 0, len(r.calls)+1)
	for _, s := range r.calls {
		st := s.Stream()
		out = append(out, Summary{
			ID:         s.ID(),
			Kind:       protocol.KindCall.String(),
			Peer:       string(s.Peer()),
			Direction:  s.Direction().String(),
			State:      s.State().String(),
			Hold:       s.HoldState().String(),
			Conference: s.ConferenceID(),
			Emergency:  s.Emergency(),
			Pending:    s.PendingRequests(),
			Stream:     st.State.String(),
			Media:      st.Direction.String(),
			Flags:      s.CallFlags(),
			Group:      s.Group().Flags(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	if c := r.conference; c != nil && c.State() == conference.Created {
		out = append(out, Summary{
			ID:      c.ID(),
			Kind:    protocol.KindConference.String(),
			State:   c.State().String(),
			Hold:    c.HoldState().String(),
			Members: c.Members(),
			Group:   c.Group().Flags(),
		})
	}
	return out
}

// Stats is a count of live channels.
type Stats struct {
	Online      bool `json:"online"`
	Calls       int  `json:"calls"`
	Active      int  `json:"active"`
	Held        int  `json:"held"`
	Ringing     int  `json:"ringing"`
	Conferences int  `json:"conferences"`
	Members     int  `json:"conference_members"`
}

// Stats counts the live channels by state.
func (r *Registry) Stats() Stats {
	st := Stats{Online: r.online, Calls: len(r.calls)}
	for _, s := range r.calls {
		switch s.State() {
		case modem.StateActive:
			st.Active++
		case modem.StateHeld:
			st.Held++
		case modem.StateIncoming, modem.StateWaiting, modem.StateAlerting:
			st.Ringing++
		}
	}
	if c := r.conference; c != nil && c.State() == conference.Created {
		st.Conferences = 1
		st.Members = c.CurrentMembers()
	}
	return st
}

// Close closes every session. The registry accepts no requests afterwards.
func (r *Registry) Close() {
	if r.closed {
		return
	}
	r.closed = true
	r.closeAll()
	slog.Info("[Registry] Closed")
}

func (r *Registry) closeAll() {
	if c := r.conference; c != nil {
		c.Close()
	}
	for _, s := range r.Calls() {
		s.Close()
	}
}
