// Package events turns channel emissions into events that outside
// consumers can follow: every change a channel reports becomes one event
// with its own id and subject, handed to a Publisher.
package events

import (
	"time"
)

// EventType identifies the type of channel event
type EventType string

const (
	// ChannelCreated fires when a call or conference channel appears
	ChannelCreated EventType = "channel.created"
	// MembersChanged fires on every effective membership change
	MembersChanged EventType = "channel.members"
	// GroupFlagsChanged fires when group capabilities change
	GroupFlagsChanged EventType = "channel.flags"
	// HoldChanged fires on hold state transitions
	HoldChanged EventType = "channel.hold"
	// CallStateChanged fires when the auxiliary call-state flags change
	CallStateChanged EventType = "channel.call_state"
	// StreamChanged fires when the media stream state or direction changes
	StreamChanged EventType = "channel.stream"
	// MemberMerged fires when a call joins a conference
	MemberMerged EventType = "conference.merged"
	// MemberRemoved fires when a call leaves a conference
	MemberRemoved EventType = "conference.removed"
	// ChannelClosed fires once when a channel is gone
	ChannelClosed EventType = "channel.closed"
)

// Event is the base interface for all channel events
type Event interface {
	// Type returns the event type for routing/filtering
	Type() EventType
	// Subject returns the subject this event is published on
	Subject() string
	// Timestamp returns when the event occurred
	Timestamp() time.Time
	// ChannelID returns the channel the event concerns
	ChannelID() string
}

// BaseEvent contains fields common to all events
type BaseEvent struct {
	// EventID is a unique identifier for this event instance (for deduplication)
	EventID string `json:"event_id"`
	// EventType identifies the event
	EventType EventType `json:"event_type"`
	// EventTime is when the event occurred
	EventTime time.Time `json:"event_time"`
	// Channel is the channel id (object path suffix)
	Channel string `json:"channel"`
	// NodeID identifies the bridge instance
	NodeID string `json:"node_id,omitempty"`
}

func (e *BaseEvent) Type() EventType      { return e.EventType }
func (e *BaseEvent) Timestamp() time.Time { return e.EventTime }
func (e *BaseEvent) ChannelID() string    { return e.Channel }
func (e *BaseEvent) Subject() string {
	return ChannelSubject(e.Channel, SubjectForEventType(e.EventType))
}

// ChannelCreatedEvent announces a new channel.
type ChannelCreatedEvent struct {
	BaseEvent
	Kind            string   `json:"kind"`
	Peer            string   `json:"peer,omitempty"`
	Initiator       string   `json:"initiator,omitempty"`
	Requested       bool     `json:"requested"`
	Emergency       bool     `json:"emergency,omitempty"`
	InitialChannels []string `json:"initial_channels,omitempty"`
}

// MembersChangedEvent is one effective membership change.
type MembersChangedEvent struct {
	BaseEvent
	Added         []string `json:"added,omitempty"`
	Removed       []string `json:"removed,omitempty"`
	LocalPending  []string `json:"local_pending,omitempty"`
	RemotePending []string `json:"remote_pending,omitempty"`
	Actor         string   `json:"actor,omitempty"`
	Reason        string   `json:"reason"`
	Message       string   `json:"message,omitempty"`
	Error         string   `json:"error,omitempty"`
	Debug         string   `json:"debug,omitempty"`
	// SIPStatus is the SIP final response matching a removal, for
	// SIP-facing consumers. It is only set when somebody was removed.
	SIPStatus int `json:"sip_status,omitempty"`
}

// GroupFlagsEvent reports the group flags that were set and cleared.
type GroupFlagsEvent struct {
	BaseEvent
	Added   uint32 `json:"added"`
	Removed uint32 `json:"removed"`
}

// HoldEvent reports a hold state transition.
type HoldEvent struct {
	BaseEvent
	State  string `json:"state"`
	Reason string `json:"reason"`
}

// CallStateEvent reports the auxiliary call-state flags.
type CallStateEvent struct {
	BaseEvent
	Flags uint32 `json:"flags"`
}

// StreamEvent reports the media stream of a call.
type StreamEvent struct {
	BaseEvent
	State     string `json:"state"`
	Direction string `json:"direction"`
	SDP       string `json:"sdp,omitempty"`
}

// MemberEvent reports a conference membership change of a call channel.
type MemberEvent struct {
	BaseEvent
	Member string               `json:"member"`
	Change *MembersChangedEvent `json:"change,omitempty"`
}

// ClosedEvent reports that a channel is gone.
type ClosedEvent struct {
	BaseEvent
}
