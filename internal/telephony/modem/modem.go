// Package modem is the narrow facade the bridge uses to drive a cellular
// modem's voice call service.
//
// Every request is asynchronous: it returns a cancelable Request at once and
// reports its result through a completion callback. Implementations must
// deliver completions and events on the dispatch loop, never from inside
// the call that issued the request.
package modem

import "fmt"

// State is the state of a modem call.
type State int

const (
	StateInvalid State = iota
	StateDialing
	StateAlerting
	StateIncoming
	StateWaiting
	StateActive
	StateHeld
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateInvalid:
		return "Invalid"
	case StateDialing:
		return "Dialing"
	case StateAlerting:
		return "Alerting"
	case StateIncoming:
		return "Incoming"
	case StateWaiting:
		return "Waiting"
	case StateActive:
		return "Active"
	case StateHeld:
		return "Held"
	case StateDisconnected:
		return "Disconnected"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// IsTerminal returns true if the call has ended.
func (s State) IsTerminal() bool {
	return s == StateDisconnected
}

// ParseState maps the modem service's state strings to a State.
func ParseState(s string) State {
	switch s {
	case "dialing":
		return StateDialing
	case "alerting":
		return StateAlerting
	case "incoming":
		return StateIncoming
	case "waiting":
		return StateWaiting
	case "active":
		return StateActive
	case "held":
		return StateHeld
	case "disconnected":
		return StateDisconnected
	default:
		return StateInvalid
	}
}

// CLIR is the calling line identification restriction override of a dial.
type CLIR int

const (
	CLIRDefault CLIR = iota
	// CLIREnabled hides the caller id.
	CLIREnabled
	// CLIRDisabled shows the caller id.
	CLIRDisabled
)

// HideCallerID returns the value the voice call manager expects for Dial.
func (c CLIR) HideCallerID() string {
	switch c {
	case CLIREnabled:
		return "enabled"
	case CLIRDisabled:
		return "disabled"
	default:
		return "default"
	}
}

func (c CLIR) String() string {
	return c.HideCallerID()
}

// Request is an outstanding modem request.
type Request interface {
	// Cancel abandons the request. Its completion may still be delivered.
	Cancel()
}

// Call is one modem call object.
type Call interface {
	// Path is the modem's object path of the call; it is unique while the call exists.
	Path() string
	Answer(done func(error)) Request
	Hangup(done func(error)) Request
}

// Service is the modem's voice call manager.
type Service interface {
	Dial(number string, clir CLIR, done func(Call, error)) Request
	HoldAndAnswer(done func(error)) Request
	SwapCalls(done func(error)) Request
	CreateMultiparty(done func(error)) Request
	PrivateChat(call Call, done func(error)) Request
	SendTones(tones string, done func(error)) Request
	StartDTMF(call Call, tone byte, done func(error)) Request
	StopDTMF(call Call, done func(error)) Request
	// EmergencyNumbers returns the emergency numbers known to the modem.
	EmergencyNumbers() []string
}
