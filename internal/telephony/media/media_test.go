package media

import (
	"testing"

	"github.com/sebas/ringbridge/internal/telephony/modem"
	"github.com/sebas/ringbridge/internal/telephony/protocol"
	"github.com/sebas/ringbridge/internal/telephony/protocol/protocoltest"
)

func TestStreamFor(t *testing.T) {
	tests := []struct {
		state modem.State
		hold  protocol.HoldState
		want  protocol.Stream
	}{
		{modem.StateDialing, protocol.Unheld, protocol.Stream{State: protocol.StreamConnecting}},
		{modem.StateAlerting, protocol.Unheld, protocol.Stream{State: protocol.StreamConnecting, Direction: protocol.DirectionReceive}},
		{modem.StateActive, protocol.Unheld, protocol.Stream{State: protocol.StreamConnected, Direction: protocol.DirectionBidirectional}},
		{modem.StateActive, protocol.PendingHold, protocol.Stream{State: protocol.StreamConnected, Direction: protocol.DirectionReceive}},
		{modem.StateHeld, protocol.Held, protocol.Stream{State: protocol.StreamConnected}},
		{modem.StateDisconnected, protocol.Unheld, protocol.Stream{State: protocol.StreamDisconnected}},
	}

	for _, tt := range tests {
		got := StreamFor(tt.state, tt.hold)
		if got.State != tt.want.State || got.Direction != tt.want.Direction {
			t.Errorf("StreamFor(%v, %v) = %v/%v, want %v/%v",
				tt.state, tt.hold, got.State, got.Direction, tt.want.State, tt.want.Direction)
		}
	}
}

func TestDescribeRoundTripsDirection(t *testing.T) {
	for _, dir := range []protocol.StreamDirection{
		protocol.DirectionNone,
		protocol.DirectionSend,
		protocol.DirectionReceive,
		protocol.DirectionBidirectional,
	} {
		raw := Describe("outgoing1", protocol.Stream{State: protocol.StreamConnected, Direction: dir})
		if raw == nil {
			t.Fatalf("Describe(%v) returned nil", dir)
		}
		got, err := ParseMode(raw)
		if err != nil {
			t.Fatalf("ParseMode: %v", err)
		}
		if got != dir {
			t.Errorf("direction = %v, want %v", got, dir)
		}
	}
}

func TestDescribeDisconnected(t *testing.T) {
	if raw := Describe("x", protocol.Stream{State: protocol.StreamDisconnected}); raw != nil {
		t.Errorf("Describe(disconnected) = %q, want nil", raw)
	}
}

func TestTrackerPublishesChangesOnly(t *testing.T) {
	rec := &protocoltest.Recorder{}
	tr := NewTracker("incoming1")

	tr.Update(modem.StateIncoming, protocol.Unheld, rec)
	tr.Update(modem.StateIncoming, protocol.Unheld, rec)
	tr.Update(modem.StateActive, protocol.Unheld, rec)

	if len(rec.Streams) != 2 {
		t.Fatalf("published %d streams, want 2", len(rec.Streams))
	}
	last, _ := rec.LastStream("incoming1")
	if last.Direction != protocol.DirectionBidirectional {
		t.Errorf("last direction = %v", last.Direction)
	}
	if tr.Current().State != protocol.StreamConnected {
		t.Errorf("Current() = %v", tr.Current().State)
	}
}
