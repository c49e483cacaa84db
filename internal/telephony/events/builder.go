package events

import (
	"time"

	"github.com/emiago/sipgo/sip"
	"github.com/google/uuid"

	"github.com/sebas/ringbridge/internal/telephony/cause"
	"github.com/sebas/ringbridge/internal/telephony/protocol"
)

// Builder provides construction of channel events with consistent defaults.
type Builder struct {
	nodeID string
	now    func() time.Time
}

// NewBuilder creates an event builder for the given node.
func NewBuilder(nodeID string) *Builder {
	return &Builder{nodeID: nodeID, now: time.Now}
}

// newBase creates a BaseEvent with common fields populated.
func (b *Builder) newBase(eventType EventType, channelID string) BaseEvent {
	return BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		EventTime: b.now().UTC(),
		Channel:   channelID,
		NodeID:    b.nodeID,
	}
}

func handles(hs []protocol.Handle) []string {
	if len(hs) == 0 {
		return nil
	}
	out := make([]string, len(hs))
	for i, h := range hs {
		out[i] = string(h)
	}
	return out
}

// ChannelCreated builds the event announcing info.
func (b *Builder) ChannelCreated(info protocol.ChannelInfo) *ChannelCreatedEvent {
	return &ChannelCreatedEvent{
		BaseEvent:       b.newBase(ChannelCreated, info.ID),
		Kind:            info.Kind.String(),
		Peer:            string(info.Peer),
		Initiator:       string(info.Initiator),
		Requested:       info.Requested,
		Emergency:       info.Emergency,
		InitialChannels: info.InitialChannels,
	}
}

// MembersChanged builds the event for one membership change.
func (b *Builder) MembersChanged(id string, c protocol.MembersChange) *MembersChangedEvent {
	ev := &MembersChangedEvent{
		BaseEvent:     b.newBase(MembersChanged, id),
		Added:         handles(c.Added),
		Removed:       handles(c.Removed),
		LocalPending:  handles(c.LocalPending),
		RemotePending: handles(c.RemotePending),
		Actor:         string(c.Actor),
		Reason:        c.Reason.String(),
		Message:       c.Message,
		Error:         c.Error,
		Debug:         c.Debug,
	}
	if len(c.Removed) > 0 {
		ev.SIPStatus = int(SIPStatus(c))
	}
	return ev
}

// GroupFlags builds the event for a group flags change.
func (b *Builder) GroupFlags(id string, added, removed protocol.GroupFlags) *GroupFlagsEvent {
	return &GroupFlagsEvent{
		BaseEvent: b.newBase(GroupFlagsChanged, id),
		Added:     uint32(added),
		Removed:   uint32(removed),
	}
}

// Hold builds the event for a hold transition.
func (b *Builder) Hold(id string, state protocol.HoldState, reason protocol.HoldReason) *HoldEvent {
	return &HoldEvent{
		BaseEvent: b.newBase(HoldChanged, id),
		State:     state.String(),
		Reason:    reason.String(),
	}
}

// CallState builds the event for call-state flags.
func (b *Builder) CallState(id string, flags protocol.CallFlags) *CallStateEvent {
	return &CallStateEvent{
		BaseEvent: b.newBase(CallStateChanged, id),
		Flags:     uint32(flags),
	}
}

// Stream builds the event for a media stream change.
func (b *Builder) Stream(id string, s protocol.Stream) *StreamEvent {
	return &StreamEvent{
		BaseEvent: b.newBase(StreamChanged, id),
		State:     s.State.String(),
		Direction: s.Direction.String(),
		SDP:       string(s.Description),
	}
}

// Merged builds the event for a call joining conference id.
func (b *Builder) Merged(id, member string) *MemberEvent {
	return &MemberEvent{
		BaseEvent: b.newBase(MemberMerged, id),
		Member:    member,
	}
}

// Removed builds the event for a call leaving conference id.
func (b *Builder) Removed(id, member string, c protocol.MembersChange) *MemberEvent {
	return &MemberEvent{
		BaseEvent: b.newBase(MemberRemoved, id),
		Member:    member,
		Change:    b.MembersChanged(id, c),
	}
}

// Closed builds the event for a closed channel.
func (b *Builder) Closed(id string) *ClosedEvent {
	return &ClosedEvent{BaseEvent: b.newBase(ChannelClosed, id)}
}

// SIPStatus maps a membership removal to a SIP final response. The error
// name is used when present; otherwise the reason decides.
func SIPStatus(c protocol.MembersChange) sip.StatusCode {
	if c.Error != "" {
		if t, code, ok := cause.ParseName(c.Error); ok {
			return cause.SIPStatus(t, code)
		}
	}
	switch c.Reason {
	case protocol.ReasonBusy:
		return sip.StatusBusyHere
	case protocol.ReasonInvalidContact:
		return 484
	case protocol.ReasonPermissionDenied:
		return sip.StatusForbidden
	case protocol.ReasonError:
		return sip.StatusInternalServerError
	default:
		return sip.StatusOK
	}
}
