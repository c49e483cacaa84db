package ofono

import (
	"github.com/godbus/dbus/v5"

	"github.com/sebas/ringbridge/internal/telephony/cause"
	"github.com/sebas/ringbridge/internal/telephony/modem"
)

// Call is an org.ofono.VoiceCall object.
type Call struct {
	m    *Manager
	path dbus.ObjectPath
	obj  dbus.BusObject

	state      modem.State
	peer       string
	emergency  bool
	multiparty bool
	remoteHeld bool

	// Set by DisconnectReason, which oFono sends just before the state
	// turns disconnected.
	causeType cause.Type
	cause     cause.Code
}

var _ modem.Call = (*Call)(nil)

func (c *Call) Path() string { return string(c.path) }

// State returns the last state reported for the call.
func (c *Call) State() modem.State { return c.state }

func (c *Call) Answer(done func(error)) modem.Request {
	return c.m.simple(c.obj, ifaceCall+".Answer", done)
}

func (c *Call) Hangup(done func(error)) modem.Request {
	return c.m.simple(c.obj, ifaceCall+".Hangup", done)
}

// update applies the properties of a CallAdded signal or GetCalls entry.
func (c *Call) update(props map[string]dbus.Variant) {
	if v, ok := stringProp(props, "LineIdentification"); ok {
		c.peer = v
	}
	if v, ok := stringProp(props, "State"); ok {
		c.state = modem.ParseState(v)
	}
	if v, ok := boolProp(props, "Emergency"); ok {
		c.emergency = v
	}
	if v, ok := boolProp(props, "Multiparty"); ok {
		c.multiparty = v
	}
	if v, ok := boolProp(props, "RemoteHeld"); ok {
		c.remoteHeld = v
	}
}

// disconnectReason records why the call is about to end. oFono only tells
// the side; network releases get a generic network cause.
func (c *Call) disconnectReason(reason string) {
	c.causeType = cause.ParseType(reason)
	c.cause = cause.ReleaseByUser
	if c.causeType == cause.Network {
		c.cause = cause.NetworkOutOfOrder
	}
}

// propertyChanged maps one VoiceCall property change to a modem event.
func (c *Call) propertyChanged(name string, value dbus.Variant) modem.Event {
	switch name {
	case "State":
		s, ok := value.Value().(string)
		if !ok {
			return nil
		}
		c.state = modem.ParseState(s)
		ev := modem.StateChanged{Call: c, State: c.state}
		if c.state == modem.StateDisconnected {
			ev.CauseType, ev.Cause = c.causeType, c.cause
		}
		return ev

	case "RemoteHeld":
		held, ok := value.Value().(bool)
		if !ok || held == c.remoteHeld {
			return nil
		}
		c.remoteHeld = held
		return modem.OnHold{Call: c, OnHold: held}

	case "Multiparty":
		mpty, ok := value.Value().(bool)
		if !ok || mpty == c.multiparty {
			return nil
		}
		c.multiparty = mpty
		return modem.Multiparty{Call: c, Multiparty: mpty}

	case "Emergency":
		em, ok := value.Value().(bool)
		if !ok || em == c.emergency {
			return nil
		}
		c.emergency = em
		return modem.EmergencyChanged{Call: c, Emergency: em}

	case "LineIdentification":
		if s, ok := value.Value().(string); ok {
			c.peer = s
		}
	}
	return nil
}

func stringProp(props map[string]dbus.Variant, key string) (string, bool) {
	v, ok := props[key]
	if !ok {
		return "", false
	}
	s, ok := v.Value().(string)
	return s, ok
}

func boolProp(props map[string]dbus.Variant, key string) (bool, bool) {
	v, ok := props[key]
	if !ok {
		return false, false
	}
	b, ok := v.Value().(bool)
	return b, ok
}

func stringsProp(props map[string]dbus.Variant, key string) ([]string, bool) {
	v, ok := props[key]
	if !ok {
		return nil, false
	}
	s, ok := v.Value().([]string)
	return s, ok
}
