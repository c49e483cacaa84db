package events

import "fmt"

// Subject naming conventions.
//
// Hierarchy:
//   ringbridge.channels.<channel_id>.<event_suffix>  - Per-channel events
//
// Wildcard subscriptions:
//   ringbridge.channels.>                            - All channel events
//   ringbridge.channels.*.closed                     - All closed channels
//   ringbridge.channels.<channel_id>.*               - All events for one channel

const (
	// SubjectPrefix is the root of all ringbridge subjects
	SubjectPrefix = "ringbridge"

	// Channel event subjects
	SubjectChannels      = SubjectPrefix + ".channels"
	SubjectCreated       = "created"
	SubjectMembers       = "members"
	SubjectFlags         = "flags"
	SubjectHold          = "hold"
	SubjectCallState     = "call_state"
	SubjectStream        = "stream"
	SubjectMerged        = "merged"
	SubjectMemberRemoved = "removed"
	SubjectClosed        = "closed"
)

// ChannelSubject builds a subject for a specific channel event.
// Example: ChannelSubject("incoming3", "hold") => "ringbridge.channels.incoming3.hold"
func ChannelSubject(channelID string, eventSuffix string) string {
	return fmt.Sprintf("%s.%s.%s", SubjectChannels, channelID, eventSuffix)
}

// Subject patterns for common consumer configurations
var (
	// PatternAllChannels matches all channel events
	PatternAllChannels = SubjectChannels + ".>"

	// PatternClosed matches all closed events
	PatternClosed = SubjectChannels + ".*." + SubjectClosed

	// PatternMembers matches all membership changes
	PatternMembers = SubjectChannels + ".*." + SubjectMembers
)

// SubjectForEventType returns the suffix used for a given event type.
func SubjectForEventType(t EventType) string {
	switch t {
	case ChannelCreated:
		return SubjectCreated
	case MembersChanged:
		return SubjectMembers
	case GroupFlagsChanged:
		return SubjectFlags
	case HoldChanged:
		return SubjectHold
	case CallStateChanged:
		return SubjectCallState
	case StreamChanged:
		return SubjectStream
	case MemberMerged:
		return SubjectMerged
	case MemberRemoved:
		return SubjectMemberRemoved
	case ChannelClosed:
		return SubjectClosed
	default:
		return "unknown"
	}
}
