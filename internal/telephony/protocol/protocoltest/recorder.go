// Package protocoltest provides a recording protocol.Emitter for tests.
package protocoltest

import (
	"github.com/sebas/ringbridge/internal/telephony/protocol"
)

type MembersEvent struct {
	ID     string
	Change protocol.MembersChange
}

type FlagsEvent struct {
	ID      string
	Added   protocol.GroupFlags
	Removed protocol.GroupFlags
}

type HoldEvent struct {
	ID     string
	State  protocol.HoldState
	Reason protocol.HoldReason
}

type CallStateEvent struct {
	ID    string
	Flags protocol.CallFlags
}

type StreamEvent struct {
	ID     string
	Stream protocol.Stream
}

type MergedEvent struct {
	ID     string
	Member string
}

type RemovedEvent struct {
	ID     string
	Member string
	Change protocol.MembersChange
}

// Recorder keeps every emission in order of arrival.
type Recorder struct {
	Channels   []protocol.ChannelInfo
	Members    []MembersEvent
	Flags      []FlagsEvent
	Holds      []HoldEvent
	CallStates []CallStateEvent
	Streams    []StreamEvent
	Merged     []MergedEvent
	Removed    []RemovedEvent
	ClosedIDs  []string
}

var _ protocol.Emitter = (*Recorder)(nil)

func (r *Recorder) NewChannel(info protocol.ChannelInfo) {
	r.Channels = append(r.Channels, info)
}

func (r *Recorder) MembersChanged(id string, change protocol.MembersChange) {
	r.Members = append(r.Members, MembersEvent{ID: id, Change: change})
}

func (r *Recorder) GroupFlagsChanged(id string, added, removed protocol.GroupFlags) {
	r.Flags = append(r.Flags, FlagsEvent{ID: id, Added: added, Removed: removed})
}

func (r *Recorder) HoldStateChanged(id string, state protocol.HoldState, reason protocol.HoldReason) {
	r.Holds = append(r.Holds, HoldEvent{ID: id, State: state, Reason: reason})
}

func (r *Recorder) CallStateChanged(id string, flags protocol.CallFlags) {
	r.CallStates = append(r.CallStates, CallStateEvent{ID: id, Flags: flags})
}

func (r *Recorder) StreamChanged(id string, stream protocol.Stream) {
	r.Streams = append(r.Streams, StreamEvent{ID: id, Stream: stream})
}

func (r *Recorder) ChannelMerged(id, member string) {
	r.Merged = append(r.Merged, MergedEvent{ID: id, Member: member})
}

func (r *Recorder) ChannelRemoved(id, member string, change protocol.MembersChange) {
	r.Removed = append(r.Removed, RemovedEvent{ID: id, Member: member, Change: change})
}

func (r *Recorder) Closed(id string) {
	r.ClosedIDs = append(r.ClosedIDs, id)
}

// MembersFor returns the membership changes emitted for id.
func (r *Recorder) MembersFor(id string) []protocol.MembersChange {
	var out []protocol.MembersChange
	for _, e := range r.Members {
		if e.ID == id {
			out = append(out, e.Change)
		}
	}
	return out
}

// LastMembers returns the most recent membership change of id.
func (r *Recorder) LastMembers(id string) (protocol.MembersChange, bool) {
	changes := r.MembersFor(id)
	if len(changes) == 0 {
		return protocol.MembersChange{}, false
	}
	return changes[len(changes)-1], true
}

// LastHold returns the most recent hold notification of id.
func (r *Recorder) LastHold(id string) (HoldEvent, bool) {
	for i := len(r.Holds) - 1; i >= 0; i-- {
		if r.Holds[i].ID == id {
			return r.Holds[i], true
		}
	}
	return HoldEvent{}, false
}

// LastCallState returns the most recent call-state flags of id.
func (r *Recorder) LastCallState(id string) (protocol.CallFlags, bool) {
	for i := len(r.CallStates) - 1; i >= 0; i-- {
		if r.CallStates[i].ID == id {
			return r.CallStates[i].Flags, true
		}
	}
	return 0, false
}

// LastStream returns the most recent stream snapshot of id.
func (r *Recorder) LastStream(id string) (protocol.Stream, bool) {
	for i := len(r.Streams) - 1; i >= 0; i-- {
		if r.Streams[i].ID == id {
			return r.Streams[i].Stream, true
		}
	}
	return protocol.Stream{}, false
}

// ClosedCount returns how many times id was reported closed.
func (r *Recorder) ClosedCount(id string) int {
	n := 0
	for _, c := range r.ClosedIDs {
		if c == id {
			n++
		}
	}
	return n
}

// RemovedFrom returns the ChannelRemoved emissions of conference id.
func (r *Recorder) RemovedFrom(id string) []RemovedEvent {
	var out []RemovedEvent
	for _, e := range r.Removed {
		if e.ID == id {
			out = append(out, e)
		}
	}
	return out
}
