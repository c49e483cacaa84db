package api

import (
	"net/http"

	types "github.com/sebas/ringbridge/api/types/v1"
	"github.com/sebas/ringbridge/internal/telephony/call"
	"github.com/sebas/ringbridge/internal/telephony/conference"
	"github.com/sebas/ringbridge/internal/telephony/protocol"
)

// operationFunc runs on the dispatch loop against channel id.
type operationFunc func(id string, done protocol.Completion) error

// operation decodes the body of a channel operation and returns the
// function that performs it. It writes the error response itself when the
// request is malformed.
func (s *Server) operation(w http.ResponseWriter, r *http.Request, name string) (operationFunc, bool) {
	switch name {
	case "answer":
		return s.onCall(func(c *call.Session, done protocol.Completion) error {
			return c.Answer(done)
		}), true

	case "hangup":
		var req types.HangupRequest
		if !s.readJSON(w, r, &req) {
			return nil, false
		}
		reason, err := parseReason(req.Reason)
		if err != nil {
			s.writeError(w, err)
			return nil, false
		}
		return s.onAny(
			func(c *call.Session, done protocol.Completion) error {
				return c.Release(reason, req.Message, done)
			},
			func(c *conference.Session, done protocol.Completion) error {
				c.HangupAll(reason, req.Message)
				done.Done(nil)
				return nil
			},
		), true

	case "remove":
		var req types.RemoveRequest
		if !s.readJSON(w, r, &req) {
			return nil, false
		}
		reason, err := parseReason(req.Reason)
		if err != nil {
			s.writeError(w, err)
			return nil, false
		}
		h := protocol.Handle(req.Handle)
		return s.onAny(
			func(c *call.Session, done protocol.Completion) error {
				return c.RemoveMember(h, reason, req.Message, done)
			},
			func(c *conference.Session, done protocol.Completion) error {
				return c.RemoveMember(h, reason, req.Message, done)
			},
		), true

	case "hold":
		req := types.HoldRequest{Hold: true}
		if !s.readJSON(w, r, &req) {
			return nil, false
		}
		return s.onAny(
			func(c *call.Session, done protocol.Completion) error {
				return c.RequestHold(req.Hold, done)
			},
			func(c *conference.Session, done protocol.Completion) error {
				return c.RequestHold(req.Hold, done)
			},
		), true

	case "dtmf":
		var req types.DTMFRequest
		if !s.readJSON(w, r, &req) {
			return nil, false
		}
		return s.onCall(func(c *call.Session, done protocol.Completion) error {
			switch {
			case req.Stop:
				return c.StopTone(done)
			case req.Event != nil:
				return c.StartTone(*req.Event, done)
			default:
				return c.SendDTMF(req.Digits, done)
			}
		}), true

	case "split":
		return s.onCall(func(c *call.Session, done protocol.Completion) error {
			return c.Split(done)
		}), true

	case "merge":
		var req types.MergeRequest
		if !s.readJSON(w, r, &req) {
			return nil, false
		}
		return func(id string, done protocol.Completion) error {
			return s.channels.Merge(id, req.Channel, done)
		}, true

	default:
		http.Error(w, "Unknown operation", http.StatusNotFound)
		return nil, false
	}
}

// onCall applies fn to call channel id.
func (s *Server) onCall(fn func(*call.Session, protocol.Completion) error) operationFunc {
	return func(id string, done protocol.Completion) error {
		c, ok := s.channels.Lookup(id)
		if !ok {
			if _, isConf := s.channels.LookupConference(id); isConf {
				return protocol.Errorf(protocol.ErrNotImplemented, "Not supported on conference channels")
			}
			return errNotFound
		}
		return fn(c, done)
	}
}

// onAny applies onCall or onConf depending on the kind of channel id.
func (s *Server) onAny(onCall func(*call.Session, protocol.Completion) error, onConf func(*conference.Session, protocol.Completion) error) operationFunc {
	return func(id string, done protocol.Completion) error {
		if c, ok := s.channels.Lookup(id); ok {
			return onCall(c, done)
		}
		if c, ok := s.channels.LookupConference(id); ok {
			return onConf(c, done)
		}
		return errNotFound
	}
}
