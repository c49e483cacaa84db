package registry

import (
	"log/slog"
	"strings"

	"github.com/sebas/ringbridge/internal/telephony/address"
	"github.com/sebas/ringbridge/internal/telephony/call"
	"github.com/sebas/ringbridge/internal/telephony/conference"
	"github.com/sebas/ringbridge/internal/telephony/modem"
	"github.com/sebas/ringbridge/internal/telephony/protocol"
)

// CallRequest describes a protocol request for an outgoing call.
type CallRequest struct {
	Target string
	// Ensure returns an existing call with the same peer instead of
	// dialing again.
	Ensure bool
	Video  bool
	CLIR   modem.CLIR
}

// RequestCall creates an outgoing call session and dials. With Ensure set
// an existing call to the same peer is returned and existing is true.
// Completion reports the dial result.
func (r *Registry) RequestCall(req CallRequest, done protocol.Completion) (s *call.Session, existing bool, err error) {
	if r.closed || !r.online {
		return nil, false, protocol.Errorf(protocol.ErrNotAvailable, "Modem not available")
	}
	if req.Video {
		return nil, false, protocol.Errorf(protocol.ErrNotImplemented, "Video calls are not supported")
	}
	if err := address.Validate(req.Target); err != nil {
		return nil, false, protocol.Errorf(protocol.ErrInvalidArgument, "Invalid target %q: %v", req.Target, err)
	}
	if strings.ContainsAny(req.Target, "wW") && !address.IsEmergencyURN(req.Target) {
		return nil, false, protocol.Errorf(protocol.ErrNotImplemented, "Dial strings containing 'w' are not supported")
	}
	peer := protocol.Handle(req.Target)
	if peer == r.cfg.Self {
		return nil, false, protocol.Errorf(protocol.ErrInvalidArgument, "Cannot call self")
	}

	if req.Ensure {
		if s, ok := r.LookupByPeer(peer); ok {
			done.Done(nil)
			return s, true, nil
		}
	}

	id := r.newID("outgoing")
	s = call.NewOutgoing(r.callConfig(id), peer)
	r.add(s)
	s.Announce()

	if err := s.Dial(req.CLIR, done); err != nil {
		slog.Warn("[Registry] Dial rejected", "channel", id, "error", err)
		s.Close()
		return nil, false, err
	}
	slog.Info("[Registry] Outgoing call requested", "channel", id, "peer", peer)
	return s, false, nil
}

// CreateConference creates the conference from exactly two call channels.
// Only one conference may exist at a time.
func (r *Registry) CreateConference(initial []string, done protocol.Completion) (*conference.Session, error) {
	if r.closed || !r.online {
		return nil, protocol.Errorf(protocol.ErrNotAvailable, "Modem not available")
	}
	if r.conference != nil {
		return nil, protocol.Errorf(protocol.ErrNotAvailable, "Conference channel already exists")
	}
	if len(initial) != 2 {
		return nil, protocol.Errorf(protocol.ErrInvalidArgument, "Expecting exactly two initial members")
	}
	members := make([]*call.Session, 0, 2)
	for _, id := range initial {
		s, ok := r.calls[id]
		if !ok {
			return nil, protocol.Errorf(protocol.ErrInvalidArgument, "Invalid channel path %q", id)
		}
		members = append(members, s)
	}

	c := conference.New(conference.Config{
		ID:       r.newID("conference"),
		Modem:    r.cfg.Modem,
		Emitter:  r.cfg.Emitter,
		Calls:    r,
		Self:     r.cfg.Self,
		OnClosed: r.conferenceClosed,
	})
	r.conference = c
	if err := c.Create(members[0], members[1], done); err != nil {
		r.conference = nil
		return nil, err
	}
	return c, nil
}

// Merge adds call channel id to the conference confID.
func (r *Registry) Merge(confID, id string, done protocol.Completion) error {
	c, ok := r.LookupConference(confID)
	if !ok {
		return protocol.Errorf(protocol.ErrInvalidArgument, "Invalid channel path %q", confID)
	}
	s, ok := r.calls[id]
	if !ok {
		return protocol.Errorf(protocol.ErrInvalidArgument, "Invalid channel path %q", id)
	}
	return c.Merge(s, done)
}
