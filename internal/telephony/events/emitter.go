package events

import (
	"github.com/sebas/ringbridge/internal/telephony/protocol"
)

// Emitter is a protocol.Emitter that publishes every emission as an
// event. Publishing never blocks the dispatch loop.
type Emitter struct {
	builder *Builder
	pub     Publisher
}

var _ protocol.Emitter = (*Emitter)(nil)

// NewEmitter returns an emitter publishing through pub.
func NewEmitter(builder *Builder, pub Publisher) *Emitter {
	if pub == nil {
		pub = NewNoopPublisher()
	}
	return &Emitter{builder: builder, pub: pub}
}

func (e *Emitter) NewChannel(info protocol.ChannelInfo) {
	e.pub.PublishAsync(e.builder.ChannelCreated(info))
}

func (e *Emitter) MembersChanged(id string, change protocol.MembersChange) {
	e.pub.PublishAsync(e.builder.MembersChanged(id, change))
}

func (e *Emitter) GroupFlagsChanged(id string, added, removed protocol.GroupFlags) {
	e.pub.PublishAsync(e.builder.GroupFlags(id, added, removed))
}

func (e *Emitter) HoldStateChanged(id string, state protocol.HoldState, reason protocol.HoldReason) {
	e.pub.PublishAsync(e.builder.Hold(id, state, reason))
}

func (e *Emitter) CallStateChanged(id string, flags protocol.CallFlags) {
	e.pub.PublishAsync(e.builder.CallState(id, flags))
}

func (e *Emitter) StreamChanged(id string, stream protocol.Stream) {
	e.pub.PublishAsync(e.builder.Stream(id, stream))
}

func (e *Emitter) ChannelMerged(id, member string) {
	e.pub.PublishAsync(e.builder.Merged(id, member))
}

func (e *Emitter) ChannelRemoved(id, member string, change protocol.MembersChange) {
	e.pub.PublishAsync(e.builder.Removed(id, member, change))
}

func (e *Emitter) Closed(id string) {
	e.pub.PublishAsync(e.builder.Closed(id))
}
