package cause

import (
	"github.com/emiago/sipgo/sip"
	"github.com/sebas/ringbridge/internal/telephony/protocol"
)

// SIP final response codes used by the Q.850 mapping of RFC 3398.
const (
	statusForbidden              sip.StatusCode = 403
	statusNotFound               sip.StatusCode = 404
	statusRequestTimeout         sip.StatusCode = 408
	statusGone                   sip.StatusCode = 410
	statusTemporarilyUnavailable sip.StatusCode = 480
	statusAddressIncomplete      sip.StatusCode = 484
	statusBusyHere               sip.StatusCode = 486
	statusNotAcceptableHere      sip.StatusCode = 488
	statusNotImplemented         sip.StatusCode = 501
	statusBadGateway             sip.StatusCode = 502
	statusServiceUnavailable     sip.StatusCode = 503
	statusServerTimeout          sip.StatusCode = 504
	statusDecline                sip.StatusCode = 603
)

// SIPStatus maps a cause to the SIP final response a SIP-facing consumer
// would see for it. Ordinary endings map to 200.
func SIPStatus(t Type, code Code) sip.StatusCode {
	if ReleaseReason(t, code) == protocol.ReasonNone {
		return sip.StatusOK
	}

	switch t {
	case Network:
		switch code {
		case UnassignedNumber, NoRoute, NonSelectedClearing:
			return statusNotFound
		case UserBusy:
			return statusBusyHere
		case NoUserResponse:
			return statusRequestTimeout
		case AlertNoAnswer, TemporaryFailure:
			return statusTemporarilyUnavailable
		case CallRejected, IncomingBarredInCUG, BearerNotAuthorized, NotInCUG, OperatorBarring:
			return statusForbidden
		case NumberChanged:
			return statusGone
		case DestinationOutOfOrder:
			return statusBadGateway
		case InvalidNumber:
			return statusAddressIncomplete
		case FacilityRejected, FacilityNotImplemented, ServiceNotImplemented:
			return statusNotImplemented
		case NoChannel, NetworkOutOfOrder, Congestion, ResourcesUnavailable,
			BearerUnavailable, ServiceUnavailable, IncompatibleDestination:
			return statusServiceUnavailable
		case BearerNotImplemented, RestrictedBearerOnly:
			return statusNotAcceptableHere
		case TimerExpiry:
			return statusServerTimeout
		default:
			return sip.StatusInternalServerError
		}
	case Local, Remote:
		switch code {
		case BusyUserRequest:
			return statusBusyHere
		case BlacklistBlocked, BlacklistDelayed:
			return statusDecline
		case TooLongAddress, InvalidAddress:
			return statusAddressIncomplete
		case NoService, NoCoverage, ChannelLoss, CSInactive, NotReady:
			return statusServiceUnavailable
		case NotAllowed, FDNNotOK:
			return statusForbidden
		case IncompatibleDest:
			return statusNotAcceptableHere
		default:
			return sip.StatusInternalServerError
		}
	default:
		return sip.StatusInternalServerError
	}
}
