// Package protocol describes the session-protocol side of the bridge.
//
// A channel (one call or one conference) is seen by protocol clients as a
// group with members, pending members and capability flags, plus hold,
// call-state and media stream notifications. Sessions report every change
// through an Emitter; the concrete transport behind it is not part of this
// package.
package protocol

import "fmt"

// Handle identifies a party on the protocol side. Peers are identified by
// their normalized phone number or service URN.
type Handle string

// NoHandle is the zero handle, used as "no actor".
const NoHandle Handle = ""

// Reason is the group change reason attached to a membership change.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonOffline
	ReasonKicked
	ReasonBusy
	ReasonInvited
	ReasonBanned
	ReasonError
	ReasonInvalidContact
	ReasonNoAnswer
	ReasonRenamed
	ReasonPermissionDenied
	ReasonSeparated
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "None"
	case ReasonOffline:
		return "Offline"
	case ReasonKicked:
		return "Kicked"
	case ReasonBusy:
		return "Busy"
	case ReasonInvited:
		return "Invited"
	case ReasonBanned:
		return "Banned"
	case ReasonError:
		return "Error"
	case ReasonInvalidContact:
		return "InvalidContact"
	case ReasonNoAnswer:
		return "NoAnswer"
	case ReasonRenamed:
		return "Renamed"
	case ReasonPermissionDenied:
		return "PermissionDenied"
	case ReasonSeparated:
		return "Separated"
	default:
		return fmt.Sprintf("Unknown(%d)", int(r))
	}
}

// MembersChange is one membership transition of a channel group.
type MembersChange struct {
	Added         []Handle
	Removed       []Handle
	LocalPending  []Handle
	RemotePending []Handle
	Actor         Handle
	Reason        Reason
	Message       string
	// Error is the fully-qualified error name of the cause; it is only
	// set when the cause carries detail worth reporting.
	Error string
	Debug string
}

// Empty reports whether the change moves nobody.
func (c MembersChange) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 &&
		len(c.LocalPending) == 0 && len(c.RemotePending) == 0
}

// GroupFlags are the group capability flags of a channel.
type GroupFlags uint32

const (
	GroupCanAdd GroupFlags = 1 << iota
	GroupCanRemove
	GroupCanRescind
	GroupMessageAdd
	GroupMessageRemove
	GroupMessageAccept
	GroupMessageReject
	GroupMessageRescind
	GroupChannelSpecificHandles
	GroupOnlyOneGroup
	GroupHandleOwnersNotAvailable
	GroupProperties
	GroupMembersChangedDetailed
)

// HoldState is the local hold state of a channel.
type HoldState int

const (
	Unheld HoldState = iota
	Held
	PendingHold
	PendingUnhold
)

func (s HoldState) String() string {
	switch s {
	case Unheld:
		return "Unheld"
	case Held:
		return "Held"
	case PendingHold:
		return "PendingHold"
	case PendingUnhold:
		return "PendingUnhold"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// HoldReason tells why the hold state changed.
type HoldReason int

const (
	HoldReasonNone HoldReason = iota
	HoldReasonRequested
	HoldReasonResourceNotAvailable
)

func (r HoldReason) String() string {
	switch r {
	case HoldReasonNone:
		return "None"
	case HoldReasonRequested:
		return "Requested"
	case HoldReasonResourceNotAvailable:
		return "ResourceNotAvailable"
	default:
		return fmt.Sprintf("Unknown(%d)", int(r))
	}
}

// CallFlags is the auxiliary call-state bitmask reported per channel.
type CallFlags uint32

const (
	CallRinging CallFlags = 1 << iota
	CallQueued
	CallHeld
	CallForwarded
	CallMultiparty
	CallEmergency
)

// Has reports whether all bits of f are set.
func (c CallFlags) Has(f CallFlags) bool { return c&f == f }

// StreamState is the connection state of the channel's audio stream.
type StreamState int

const (
	StreamDisconnected StreamState = iota
	StreamConnecting
	StreamConnected
)

func (s StreamState) String() string {
	switch s {
	case StreamDisconnected:
		return "disconnected"
	case StreamConnecting:
		return "connecting"
	case StreamConnected:
		return "connected"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// StreamDirection is the media direction of the audio stream.
type StreamDirection int

const (
	DirectionNone StreamDirection = iota
	DirectionSend
	DirectionReceive
	DirectionBidirectional
)

func (d StreamDirection) String() string {
	switch d {
	case DirectionNone:
		return "none"
	case DirectionSend:
		return "send"
	case DirectionReceive:
		return "receive"
	case DirectionBidirectional:
		return "bidirectional"
	default:
		return fmt.Sprintf("Unknown(%d)", int(d))
	}
}

// Stream is a snapshot of the audio stream of a channel.
type Stream struct {
	State     StreamState
	Direction StreamDirection
	// Description is an SDP rendering of the stream, if available.
	Description []byte
}

// ChannelKind distinguishes call channels from conference channels.
type ChannelKind int

const (
	KindCall ChannelKind = iota
	KindConference
)

func (k ChannelKind) String() string {
	switch k {
	case KindCall:
		return "call"
	case KindConference:
		return "conference"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// ChannelInfo is announced once when a channel appears.
type ChannelInfo struct {
	ID        string
	Kind      ChannelKind
	Peer      Handle
	Initiator Handle
	// Requested is true for channels created on behalf of a protocol client.
	Requested bool
	// InitialChannels lists the member channel ids of a new conference.
	InitialChannels []string
	Emergency       bool
}

// Emitter receives every change a channel reports to protocol clients.
// All methods are invoked on the dispatch loop and must not block.
type Emitter interface {
	NewChannel(info ChannelInfo)
	MembersChanged(id string, change MembersChange)
	GroupFlagsChanged(id string, added, removed GroupFlags)
	HoldStateChanged(id string, state HoldState, reason HoldReason)
	CallStateChanged(id string, flags CallFlags)
	StreamChanged(id string, stream Stream)
	ChannelMerged(id, member string)
	ChannelRemoved(id, member string, change MembersChange)
	Closed(id string)
}

// Completion resolves a protocol request once the modem has answered.
// A nil error means success.
type Completion func(err error)

// Done invokes c if it is set.
func (c Completion) Done(err error) {
	if c != nil {
		c(err)
	}
}
