// Package cause translates modem failure causes into session-protocol
// reasons and messages.
//
// A cause is a (type, code) pair reported by the modem when a call ends or a
// request fails. Network causes carry Q.850 codes; local and remote causes
// carry the modem's own call error codes. Everything here is a pure function
// of its arguments.
package cause

import "fmt"

// Type tells where a cause originated.
type Type int

const (
	Unknown Type = iota
	Network
	Local
	Remote
)

func (t Type) String() string {
	switch t {
	case Unknown:
		return "unknown"
	case Network:
		return "network"
	case Local:
		return "local"
	case Remote:
		return "remote"
	default:
		return fmt.Sprintf("Unknown(%d)", int(t))
	}
}

// ParseType maps the modem's disconnect reason strings to a cause type.
func ParseType(s string) Type {
	switch s {
	case "network":
		return Network
	case "local":
		return Local
	case "remote":
		return Remote
	default:
		return Unknown
	}
}

// Code is a numeric cause code. Its meaning depends on the Type.
type Code uint

// Network cause codes (Q.850).
const (
	UnassignedNumber         Code = 0x01
	NoRoute                  Code = 0x03
	ChannelUnacceptable      Code = 0x06
	OperatorBarring          Code = 0x08
	NormalClearing           Code = 0x10
	UserBusy                 Code = 0x11
	NoUserResponse           Code = 0x12
	AlertNoAnswer            Code = 0x13
	CallRejected             Code = 0x15
	NumberChanged            Code = 0x16
	NonSelectedClearing      Code = 0x1A
	DestinationOutOfOrder    Code = 0x1B
	InvalidNumber            Code = 0x1C
	FacilityRejected         Code = 0x1D
	StatusEnquiryResponse    Code = 0x1E
	NormalUnspecified        Code = 0x1F
	NoChannel                Code = 0x22
	NetworkOutOfOrder        Code = 0x26
	TemporaryFailure         Code = 0x29
	Congestion               Code = 0x2A
	AccessInfoDiscarded      Code = 0x2B
	ChannelUnavailable       Code = 0x2C
	ResourcesUnavailable     Code = 0x2F
	QoSUnavailable           Code = 0x31
	FacilityNotSubscribed    Code = 0x32
	IncomingBarredInCUG      Code = 0x37
	BearerNotAuthorized      Code = 0x39
	BearerUnavailable        Code = 0x3A
	ServiceUnavailable       Code = 0x3F
	BearerNotImplemented     Code = 0x41
	ACMExceeded              Code = 0x44
	FacilityNotImplemented   Code = 0x45
	RestrictedBearerOnly     Code = 0x46
	ServiceNotImplemented    Code = 0x4F
	InvalidTransactionID     Code = 0x51
	NotInCUG                 Code = 0x57
	IncompatibleDestination  Code = 0x58
	InvalidTransitNetwork    Code = 0x5B
	SemanticallyIncorrect    Code = 0x5F
	InvalidMandatoryInfo     Code = 0x60
	MessageTypeNonExistent   Code = 0x61
	MessageTypeIncompatible  Code = 0x62
	InfoElementNonExistent   Code = 0x63
	ConditionalInfoElement   Code = 0x64
	MessageIncompatible      Code = 0x65
	TimerExpiry              Code = 0x66
	ProtocolError            Code = 0x6F
	Interworking             Code = 0x7F
	NetworkGeneric           Code = Interworking
)

// Call error codes, used with Local and Remote cause types.
const (
	NoError Code = iota
	NoCall
	ReleaseByUser
	BusyUserRequest
	RequestError
	CallActive
	NoCallActive
	InvalidCallMode
	TooLongAddress
	InvalidAddress
	Emergency
	NoService
	NoCoverage
	CodeRequired
	NotAllowed
	DTMFError
	ChannelLoss
	FDNNotOK
	BlacklistBlocked
	BlacklistDelayed
	EmergencyFailure
	NoSIM
	DTMFSendOngoing
	CSInactive
	NotReady
	IncompatibleDest
	CallGeneric
)

type codeInfo struct {
	nick string
	msg  string
	// plain codes describe ordinary outcomes and get no " Error" suffix
	plain bool
}

var networkCodes = map[Code]codeInfo{
	UnassignedNumber:        {"UnassignedNumber", "Unassigned Number", false},
	NoRoute:                 {"NoRoute", "No Route To Destination", false},
	ChannelUnacceptable:     {"ChannelUnacceptable", "Channel Unacceptable", false},
	OperatorBarring:         {"OperatorBarring", "Operator Determined Barring", false},
	NormalClearing:          {"Normal", "Normal Call Clearing", true},
	UserBusy:                {"UserBusy", "User Busy", true},
	NoUserResponse:          {"NoUserResponse", "No User Response", false},
	AlertNoAnswer:           {"AlertNoAnswer", "Alert No Answer", false},
	CallRejected:            {"CallRejected", "Call Rejected", false},
	NumberChanged:           {"NumberChanged", "Number Changed", false},
	NonSelectedClearing:     {"NonSelectedClearing", "Non-Selected Clearing", false},
	DestinationOutOfOrder:   {"DestinationOutOfOrder", "Destination Out Of Order", false},
	InvalidNumber:           {"InvalidNumber", "Invalid Number", false},
	FacilityRejected:        {"FacilityRejected", "Facility Rejected", false},
	StatusEnquiryResponse:   {"ResponseToStatus", "Response To Status", true},
	NormalUnspecified:       {"NormalUnspecified", "Unspecified Normal", true},
	NoChannel:               {"NoChannel", "No Channel Available", false},
	NetworkOutOfOrder:       {"NetworkOutOfOrder", "Network Out Of Order", false},
	TemporaryFailure:        {"TemporaryFailure", "Temporary Failure", true},
	Congestion:              {"Congestion", "Congestion", false},
	AccessInfoDiscarded:     {"AccessInfoDiscarded", "Access Information Discarded", false},
	ChannelUnavailable:      {"ChannelNotAvailable", "Channel Not Available", false},
	ResourcesUnavailable:    {"ResourcesNotAvailable", "Resources Not Available", false},
	QoSUnavailable:          {"QosNotAvailable", "QoS Not Available", false},
	FacilityNotSubscribed:   {"FacilityNotSubscribed", "Requested Facility Not Subscribed", false},
	IncomingBarredInCUG:     {"IncomingBarredInCug", "Incoming Calls Barred Within CUG", false},
	BearerNotAuthorized:     {"BearerCapabilityUnauthorized", "Bearer Capability Unauthorized", false},
	BearerUnavailable:       {"BearerCapabilityNotAvailable", "Bearer Capability Not Available", false},
	ServiceUnavailable:      {"ServiceNotAvailable", "Service Not Available", false},
	BearerNotImplemented:    {"BearerNotImplemented", "Bearer Not Implemented", false},
	ACMExceeded:             {"AcmMax", "ACM Max", false},
	FacilityNotImplemented:  {"FacilityNotImplemented", "Facility Not Implemented", false},
	RestrictedBearerOnly:    {"OnlyRestrictedBearer", "Only Restricted DI Bearer Capability", false},
	ServiceNotImplemented:   {"ServiceNotImplemented", "Service Not Implemented", false},
	InvalidTransactionID:    {"InvalidTransactionId", "Invalid Transaction Identifier", false},
	NotInCUG:                {"NotInCug", "Not In CUG", false},
	IncompatibleDestination: {"IncompatibleDestination", "Incompatible Destination", false},
	InvalidTransitNetwork:   {"InvalidTransitNetwork", "Invalid Transit Net Selected", false},
	SemanticallyIncorrect:   {"SemanticallyIncorrect", "Semantical", false},
	InvalidMandatoryInfo:    {"InvalidMandatoryInformation", "Invalid Mandatory Information", false},
	MessageTypeNonExistent:  {"MessageTypeNonExistent", "Message Type Non-Existent", false},
	MessageTypeIncompatible: {"MessageTypeIncompatible", "Message Type Incompatible", false},
	InfoElementNonExistent:  {"InformationElementNonExistent", "Information Element Non-Existent", false},
	ConditionalInfoElement:  {"ConditionalInformationElement", "Conditional Information Element", false},
	MessageIncompatible:     {"IncompatibleMessage", "Incompatible Message", false},
	TimerExpiry:             {"TimerExpiry", "Timer Expiry", false},
	ProtocolError:           {"Protocol", "Protocol", false},
	Interworking:            {"Interworking", "Error Cause Not Known Because of Interworking", true},
}

var callCodes = map[Code]codeInfo{
	NoError:          {"NoError", "None", true},
	NoCall:           {"NoCall", "No Call", false},
	ReleaseByUser:    {"ReleaseByUser", "Release By User", true},
	BusyUserRequest:  {"BusyUserRequest", "Busy User Request", false},
	RequestError:     {"ErrorRequest", "Request", false},
	CallActive:       {"CallActive", "Call Active", false},
	NoCallActive:     {"NoCallActive", "No Call Active", false},
	InvalidCallMode:  {"InvalidCallMode", "Invalid Call Mode", false},
	TooLongAddress:   {"TooLongAddress", "Too Long Address", false},
	InvalidAddress:   {"InvalidAddress", "Invalid Address", false},
	Emergency:        {"Emergency", "Emergency", false},
	NoService:        {"NoService", "No Service", false},
	NoCoverage:       {"NoCoverage", "No Coverage", false},
	CodeRequired:     {"CodeRequired", "Code Required", false},
	NotAllowed:       {"NotAllowed", "Not Allowed", false},
	DTMFError:        {"DtmfError", "DTMF", false},
	ChannelLoss:      {"ChannelLoss", "Channel Loss", false},
	FDNNotOK:         {"FdnNotOk", "FDN Not Ok", false},
	BlacklistBlocked: {"BlacklistBlocked", "Blacklist Blocked", false},
	BlacklistDelayed: {"BlacklistDelayed", "Blacklist Delayed", false},
	EmergencyFailure: {"EmergencyFailure", "Emergency Failure", false},
	NoSIM:            {"NoSim", "No SIM", false},
	DTMFSendOngoing:  {"DtmfSendOngoing", "DTMF Send Ongoing", false},
	CSInactive:       {"CsInactive", "CS Inactive", false},
	NotReady:         {"NotReady", "Not Ready", false},
	IncompatibleDest: {"IncompatibleDest", "Incompatible Dest", false},
	CallGeneric:      {"Generic", "Generic", true},
}
