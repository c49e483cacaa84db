package modem

import "github.com/sebas/ringbridge/internal/telephony/cause"

// Event is a notification from the modem. The concrete types below are
// matched with a type switch by the registry.
type Event interface {
	event()
}

// CallAdded announces a call object. Incoming is false for calls created by
// a dial, whether issued by the bridge or by somebody else.
type CallAdded struct {
	Call      Call
	Incoming  bool
	Peer      string
	State     State
	Emergency bool
}

// CallRemoved announces that a call object is gone.
type CallRemoved struct {
	Call Call
}

// StateChanged reports a call state transition. The cause fields are only
// meaningful for StateDisconnected.
type StateChanged struct {
	Call      Call
	State     State
	CauseType cause.Type
	Cause     cause.Code
}

// Waiting reports that a call is waiting behind an active one.
type Waiting struct {
	Call Call
}

// OnHold reports that the remote party put the call on hold or resumed it.
type OnHold struct {
	Call   Call
	OnHold bool
}

// Forwarded reports that the call was forwarded by the network.
type Forwarded struct {
	Call Call
}

// Multiparty reports that the call joined or left the modem's multiparty call.
type Multiparty struct {
	Call       Call
	Multiparty bool
}

// EmergencyChanged reports the emergency flag of a call.
type EmergencyChanged struct {
	Call      Call
	Emergency bool
}

// Availability reports whether the modem's voice call service is reachable.
type Availability struct {
	Online bool
}

func (CallAdded) event()        {}
func (CallRemoved) event()      {}
func (StateChanged) event()     {}
func (Waiting) event()          {}
func (OnHold) event()           {}
func (Forwarded) event()        {}
func (Multiparty) event()       {}
func (EmergencyChanged) event() {}
func (Availability) event()     {}
