package events

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/sebas/ringbridge/internal/telephony/cause"
	"github.com/sebas/ringbridge/internal/telephony/protocol"
)

func TestEventSubjectNaming(t *testing.T) {
	builder := NewBuilder("test-node")

	event := builder.Closed("incoming3")

	expected := "ringbridge.channels.incoming3.closed"
	if got := event.Subject(); got != expected {
		t.Errorf("Subject() = %q, want %q", got, expected)
	}
	if _, err := uuid.Parse(event.EventID); err != nil {
		t.Errorf("EventID %q is not a uuid: %v", event.EventID, err)
	}
}

func TestSubjectForEventType(t *testing.T) {
	types := []EventType{
		ChannelCreated, MembersChanged, GroupFlagsChanged, HoldChanged,
		CallStateChanged, StreamChanged, MemberMerged, MemberRemoved, ChannelClosed,
	}
	seen := map[string]bool{}
	for _, typ := range types {
		s := SubjectForEventType(typ)
		if s == "unknown" || seen[s] {
			t.Errorf("%s: suffix %q", typ, s)
		}
		seen[s] = true
	}
	if SubjectForEventType("bogus") != "unknown" {
		t.Error("unknown types should map to unknown")
	}
}

func TestMembersChangedEventJSON(t *testing.T) {
	builder := NewBuilder("test-node")

	event := builder.MembersChanged("outgoing1", protocol.MembersChange{
		Removed: []protocol.Handle{"+15550000", "+15551234"},
		Actor:   "+15551234",
		Reason:  protocol.ReasonBusy,
		Message: "User Busy",
	})

	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}

	checks := map[string]string{
		"event_type": "channel.members",
		"channel":    "outgoing1",
		"node_id":    "test-node",
		"reason":     "Busy",
		"actor":      "+15551234",
	}
	for k, want := range checks {
		if got, ok := m[k].(string); !ok || got != want {
			t.Errorf("m[%q] = %v, want %q", k, m[k], want)
		}
	}
	if got := m["sip_status"].(float64); got != 486 {
		t.Errorf("sip_status = %v, want 486", got)
	}
	if _, ok := m["debug"]; ok {
		t.Error("debug should be omitted when empty")
	}
}

func TestSIPStatus(t *testing.T) {
	tests := []struct {
		name   string
		change protocol.MembersChange
		want   int
	}{
		{"normal", protocol.MembersChange{Reason: protocol.ReasonNone}, 200},
		{"busy", protocol.MembersChange{Reason: protocol.ReasonBusy}, 486},
		{"invalid contact", protocol.MembersChange{Reason: protocol.ReasonInvalidContact}, 484},
		{"error name wins", protocol.MembersChange{
			Reason: protocol.ReasonError,
			Error:  cause.New(cause.Network, cause.Congestion, "").Name(),
		}, 503},
		{"unparsable name", protocol.MembersChange{Reason: protocol.ReasonError, Error: "org.ofono.Error.Failed"}, 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := int(SIPStatus(tt.change)); got != tt.want {
				t.Errorf("SIPStatus = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNoopPublisher(t *testing.T) {
	pub := NewNoopPublisher()
	event := NewBuilder("test").Closed("incoming1")

	if err := pub.Publish(context.Background(), event); err != nil {
		t.Errorf("Publish failed: %v", err)
	}
	pub.PublishAsync(event)
	if err := pub.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestChannelPublisherDropsWhenFull(t *testing.T) {
	pub := NewChannelPublisher(1)
	builder := NewBuilder("test")

	pub.PublishAsync(builder.Closed("incoming1"))
	pub.PublishAsync(builder.Closed("incoming2"))

	if got := pub.DroppedCount(); got != 1 {
		t.Errorf("DroppedCount = %d, want 1", got)
	}
	ev := <-pub.Events()
	if ev.ChannelID() != "incoming1" {
		t.Errorf("got %s, want incoming1", ev.ChannelID())
	}

	pub.Close()
	pub.Close()
	pub.PublishAsync(builder.Closed("incoming3"))
	if _, ok := <-pub.Events(); ok {
		t.Error("channel should be closed")
	}
}

func TestEmitterPublishesEveryEmission(t *testing.T) {
	pub := NewChannelPublisher(16)
	em := NewEmitter(NewBuilder("test"), pub)

	em.NewChannel(protocol.ChannelInfo{ID: "incoming1", Kind: protocol.KindCall, Peer: "+15551234"})
	em.MembersChanged("incoming1", protocol.MembersChange{Added: []protocol.Handle{"+15551234"}})
	em.GroupFlagsChanged("incoming1", protocol.GroupCanRemove, 0)
	em.HoldStateChanged("incoming1", protocol.Held, protocol.HoldReasonRequested)
	em.CallStateChanged("incoming1", protocol.CallRinging)
	em.StreamChanged("incoming1", protocol.Stream{State: protocol.StreamConnected, Direction: protocol.DirectionBidirectional})
	em.ChannelMerged("conference2", "incoming1")
	em.ChannelRemoved("conference2", "incoming1", protocol.MembersChange{Removed: []protocol.Handle{"+15551234"}})
	em.Closed("incoming1")
	pub.Close()

	var got []EventType
	for ev := range pub.Events() {
		got = append(got, ev.Type())
	}
	want := []EventType{
		ChannelCreated, MembersChanged, GroupFlagsChanged, HoldChanged,
		CallStateChanged, StreamChanged, MemberMerged, MemberRemoved, ChannelClosed,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("event types mismatch (-want +got):\n%s", diff)
	}
}

func TestWriterPublisherWritesProtoJSONLines(t *testing.T) {
	var buf bytes.Buffer
	pub := NewWriterPublisher(&buf)
	builder := NewBuilder("test")

	pub.PublishAsync(builder.Hold("incoming1", protocol.Held, protocol.HoldReasonRequested))
	pub.PublishAsync(builder.Closed("incoming1"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2:\n%s", len(lines), buf.String())
	}

	var s structpb.Struct
	if err := protojson.Unmarshal([]byte(lines[0]), &s); err != nil {
		t.Fatalf("line is not protobuf JSON: %v", err)
	}
	fields := s.AsMap()
	if fields["subject"] != "ringbridge.channels.incoming1.hold" || fields["state"] != "Held" {
		t.Errorf("fields = %v", fields)
	}

	if err := pub.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	pub.PublishAsync(builder.Closed("incoming2"))
	if got := strings.Count(buf.String(), "\n"); got != 2 {
		t.Errorf("writes after close: %d lines", got)
	}
}

func TestMultiPublisherFansOut(t *testing.T) {
	a, b := NewChannelPublisher(4), NewChannelPublisher(4)
	pub := NewMultiPublisher(a, b, NewLoggingPublisher(nil))

	if err := pub.Publish(context.Background(), NewBuilder("test").Closed("incoming1")); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(a.Events()) != 1 || len(b.Events()) != 1 {
		t.Errorf("fan-out: a=%d b=%d", len(a.Events()), len(b.Events()))
	}
	if err := pub.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
