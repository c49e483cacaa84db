package cause

import (
	"errors"

	"github.com/sebas/ringbridge/internal/telephony/protocol"
)

// Outcome is the protocol view of a cause.
type Outcome struct {
	Reason  protocol.Reason
	Message string
	// HasDetail is false for ordinary endings (no reason, busy); the error
	// name and debug text are only attached when it is true.
	HasDetail bool
	// ErrorName is the fully-qualified error name when HasDetail is set.
	ErrorName string
}

// Translate maps a modem cause to its protocol reason, message and detail
// flag. It is total: every (type, code) pair yields exactly one outcome.
func Translate(t Type, code Code) Outcome {
	err := New(t, code, "")
	out := Outcome{
		Reason:  ReleaseReason(t, code),
		Message: err.Message,
	}
	out.HasDetail = HasDetail(t, code, out.Reason)
	if out.HasDetail {
		out.ErrorName = err.Name()
	}
	return out
}

// HasDetail reports whether a removal with this cause should carry the error
// name and a debug message.
func HasDetail(t Type, code Code, reason protocol.Reason) bool {
	return t != Unknown && code != 0 &&
		reason != protocol.ReasonBusy && reason != protocol.ReasonNone
}

// ReleaseReason maps a call release cause to a group change reason.
func ReleaseReason(t Type, code Code) protocol.Reason {
	switch t {
	case Network:
		switch code {
		case NormalClearing, StatusEnquiryResponse, NormalUnspecified:
			return protocol.ReasonNone
		case UserBusy:
			return protocol.ReasonBusy
		case NumberChanged:
			return protocol.ReasonInvalidContact
		default:
			return protocol.ReasonError
		}
	case Local, Remote:
		switch code {
		case NoError, ReleaseByUser:
			return protocol.ReasonNone
		case BusyUserRequest:
			return protocol.ReasonBusy
		case BlacklistBlocked, BlacklistDelayed:
			return protocol.ReasonPermissionDenied
		case TooLongAddress, InvalidAddress:
			return protocol.ReasonInvalidContact
		default:
			return protocol.ReasonError
		}
	default:
		if code == 0 {
			return protocol.ReasonNone
		}
		return protocol.ReasonError
	}
}

// ErrorReason maps a failed modem request to a group change reason. Call
// errors are read as remote causes; modem service errors are plain errors.
func ErrorReason(err error) protocol.Reason {
	var ce *Error
	if !errors.As(err, &ce) {
		return protocol.ReasonError
	}
	switch ce.Domain {
	case DomainCall:
		return ReleaseReason(Remote, ce.Code)
	case DomainNetwork:
		return ReleaseReason(Network, ce.Code)
	default:
		return protocol.ReasonError
	}
}
