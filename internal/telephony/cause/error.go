package cause

import (
	"errors"
	"fmt"
	"strings"
)

// Domain groups error codes the same way the modem service does.
type Domain int

const (
	// DomainModem holds errors reported by the modem service itself.
	DomainModem Domain = iota
	// DomainCall holds local and remote call errors.
	DomainCall
	// DomainNetwork holds network (Q.850) causes.
	DomainNetwork
)

func (d Domain) String() string {
	switch d {
	case DomainModem:
		return "modem"
	case DomainCall:
		return "call"
	case DomainNetwork:
		return "network"
	default:
		return fmt.Sprintf("Unknown(%d)", int(d))
	}
}

// Error name prefixes, one per domain.
const (
	ModemErrorPrefix   = "org.ofono.Error"
	CallErrorPrefix    = "ringbridge.Error.Call"
	NetworkErrorPrefix = "ringbridge.Error.Call.Network"
)

// Modem service error codes, in the order of their D-Bus error names.
const (
	ModemFailed Code = iota
	ModemInvalidArguments
	ModemInvalidFormat
	ModemNotImplemented
	ModemNotSupported
	ModemInProgress
	ModemNotFound
	ModemNotActive
	ModemTimedOut
	ModemSimNotReady
	ModemInUse
	ModemNotAttached
	ModemAttachInProgress
)

var modemNicks = []string{
	"Failed",
	"InvalidArguments",
	"InvalidFormat",
	"NotImplemented",
	"NotSupported",
	"InProgress",
	"NotFound",
	"NotActive",
	"Timedout",
	"SimNotReady",
	"InUse",
	"NotAttached",
	"AttachInProgress",
}

// Error is a failure in one of the modem error domains.
type Error struct {
	Domain  Domain
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Name returns the fully-qualified error name, e.g.
// "ringbridge.Error.Call.Network.UserBusy".
func (e *Error) Name() string {
	switch e.Domain {
	case DomainModem:
		if int(e.Code) < len(modemNicks) {
			return ModemErrorPrefix + "." + modemNicks[e.Code]
		}
		return fmt.Sprintf("%s.Code%d", ModemErrorPrefix, e.Code)
	case DomainNetwork:
		if info, ok := networkCodes[e.Code]; ok {
			return NetworkErrorPrefix + "." + info.nick
		}
		return fmt.Sprintf("%s.Code%d", NetworkErrorPrefix, e.Code)
	default:
		if info, ok := callCodes[e.Code]; ok {
			return CallErrorPrefix + "." + info.nick
		}
		return fmt.Sprintf("%s.Code%d", CallErrorPrefix, e.Code)
	}
}

// New builds the error describing a (type, code) cause. When prefix is not
// empty the message reads "prefix: message".
func New(t Type, code Code, prefix string) *Error {
	var (
		domain Domain
		info   codeInfo
		known  bool
		sent   = code
	)

	switch {
	case code == 0:
		domain, code = DomainCall, NoError
		info, known = callCodes[NoError]
	case t == Network:
		domain = DomainNetwork
		info, known = networkCodes[code]
		if !known {
			code = NetworkGeneric
		}
	case t == Local || t == Remote:
		domain = DomainCall
		info, known = callCodes[code]
		if !known || code == CallGeneric {
			known = false
			code = CallGeneric
		}
	default:
		domain, code = DomainCall, CallGeneric
	}

	var msg string
	if known {
		msg = info.msg
		if !info.plain {
			msg += " Error"
		}
	} else {
		msg = fmt.Sprintf("Error %d with type %d", sent, int(t))
	}
	if prefix != "" {
		msg = prefix + ": " + msg
	}
	return &Error{Domain: domain, Code: code, Message: msg}
}

// ModemError builds an error from a modem service error name such as
// "org.ofono.Error.InvalidFormat". Unknown names map to ModemFailed.
func ModemError(name, message string) *Error {
	nick := strings.TrimPrefix(name, ModemErrorPrefix+".")
	code := ModemFailed
	for i, n := range modemNicks {
		if n == nick {
			code = Code(i)
			break
		}
	}
	if message == "" {
		message = nick
	}
	return &Error{Domain: DomainModem, Code: code, Message: message}
}

// ErrorName returns the fully-qualified name of err, or "" if err is not a
// cause error.
func ErrorName(err error) string {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Name()
	}
	return ""
}

// ParseName reverses Name for call and network errors. Call errors come
// back as Local causes since the name does not say which side released.
func ParseName(name string) (Type, Code, bool) {
	lookup := func(nick string, codes map[Code]codeInfo) (Code, bool) {
		for code, info := range codes {
			if info.nick == nick {
				return code, true
			}
		}
		return 0, false
	}

	if nick, ok := strings.CutPrefix(name, NetworkErrorPrefix+"."); ok {
		code, found := lookup(nick, networkCodes)
		return Network, code, found
	}
	if nick, ok := strings.CutPrefix(name, CallErrorPrefix+"."); ok {
		code, found := lookup(nick, callCodes)
		return Local, code, found
	}
	return Unknown, 0, false
}
