package registry

import (
	"log/slog"

	"github.com/sebas/ringbridge/internal/telephony/address"
	"github.com/sebas/ringbridge/internal/telephony/call"
	"github.com/sebas/ringbridge/internal/telephony/modem"
	"github.com/sebas/ringbridge/internal/telephony/protocol"
)

// HandleEvent routes a modem event. Call events go to the session bound to
// the call; calls nobody knows get a session of their own.
func (r *Registry) HandleEvent(ev modem.Event) {
	if r.closed {
		return
	}

	switch e := ev.(type) {
	case modem.Availability:
		r.setOnline(e.Online)

	case modem.CallAdded:
		if !r.online {
			slog.Warn("[Registry] Ignoring call while modem is offline", "path", pathOf(e.Call))
			return
		}
		if e.Incoming {
			r.incoming(e)
		} else {
			r.created(e)
		}

	case modem.CallRemoved:
		if s, ok := r.sessionFor(e.Call); ok {
			s.HandleEvent(e)
		}

	case modem.StateChanged:
		r.route(e.Call, ev)
	case modem.Waiting:
		r.route(e.Call, ev)
	case modem.OnHold:
		r.route(e.Call, ev)
	case modem.Forwarded:
		r.route(e.Call, ev)
	case modem.Multiparty:
		r.route(e.Call, ev)
	case modem.EmergencyChanged:
		r.route(e.Call, ev)

	default:
		slog.Debug("[Registry] Ignoring modem event", "event", ev)
	}
}

func pathOf(c modem.Call) string {
	if c == nil {
		return ""
	}
	return c.Path()
}

func (r *Registry) route(c modem.Call, ev modem.Event) {
	s, ok := r.sessionFor(c)
	if !ok {
		slog.Debug("[Registry] Event for unknown call", "path", pathOf(c), "event", ev)
		return
	}
	s.HandleEvent(ev)
}

func (r *Registry) setOnline(online bool) {
	if r.online == online {
		return
	}
	r.online = online
	if online {
		r.emergency = address.NewEmergencyNumbers(r.cfg.Modem.EmergencyNumbers(), r.cfg.ExtraEmergency)
		slog.Info("[Registry] Modem available", "emergency", r.emergency.Numbers())
		return
	}
	slog.Warn("[Registry] Modem unavailable, closing channels", "channels", len(r.calls))
	r.closeAll()
}

func (r *Registry) incoming(e modem.CallAdded) {
	if old, ok := r.sessionFor(e.Call); ok {
		slog.Error("[Registry] Call instance already associated with channel, closing old channel",
			"path", e.Call.Path(), "channel", old.ID())
		old.Close()
	}
	if e.Peer == "" {
		slog.Warn("[Registry] Incoming call without originator", "path", e.Call.Path())
		return
	}

	state := e.State
	if state != modem.StateWaiting {
		state = modem.StateIncoming
	}
	id := r.newID("incoming")
	s := call.NewIncoming(r.callConfig(id), e.Call, protocol.Handle(e.Peer), state, e.Emergency)
	r.add(s)
	slog.Info("[Registry] Incoming call", "channel", id, "peer", e.Peer, "path", e.Call.Path())
	s.Announce()
}

func (r *Registry) created(e modem.CallAdded) {
	if _, ok := r.sessionFor(e.Call); ok {
		return
	}
	if e.Peer == "" {
		slog.Warn("[Registry] Created call without destination", "path", e.Call.Path())
		return
	}

	id := r.newID("created")
	emergency := e.Emergency || r.emergency.Match(e.Peer)
	s := call.NewCreated(r.callConfig(id), e.Call, protocol.Handle(e.Peer), emergency)
	r.add(s)
	slog.Info("[Registry] Call created outside the bridge", "channel", id, "peer", e.Peer, "path", e.Call.Path())
	s.Announce()

	if e.State != modem.StateDialing && e.State != modem.StateInvalid {
		s.HandleEvent(modem.StateChanged{Call: e.Call, State: e.State})
	}
}
