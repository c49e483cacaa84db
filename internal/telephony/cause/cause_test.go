package cause

import (
	"errors"
	"fmt"
	"testing"

	"github.com/emiago/sipgo/sip"
	"github.com/sebas/ringbridge/internal/telephony/protocol"
)

func TestTranslateReasons(t *testing.T) {
	tests := []struct {
		name      string
		typ       Type
		code      Code
		reason    protocol.Reason
		hasDetail bool
	}{
		{"network normal", Network, NormalClearing, protocol.ReasonNone, false},
		{"network unspecified normal", Network, NormalUnspecified, protocol.ReasonNone, false},
		{"network status response", Network, StatusEnquiryResponse, protocol.ReasonNone, false},
		{"network busy", Network, UserBusy, protocol.ReasonBusy, false},
		{"network number changed", Network, NumberChanged, protocol.ReasonInvalidContact, true},
		{"network congestion", Network, Congestion, protocol.ReasonError, true},
		{"network unknown code", Network, 0x70, protocol.ReasonError, true},
		{"local release by user", Local, ReleaseByUser, protocol.ReasonNone, false},
		{"remote release by user", Remote, ReleaseByUser, protocol.ReasonNone, false},
		{"remote busy request", Remote, BusyUserRequest, protocol.ReasonBusy, false},
		{"remote blacklist", Remote, BlacklistBlocked, protocol.ReasonPermissionDenied, true},
		{"local blacklist delayed", Local, BlacklistDelayed, protocol.ReasonPermissionDenied, true},
		{"local too long address", Local, TooLongAddress, protocol.ReasonInvalidContact, true},
		{"local invalid address", Local, InvalidAddress, protocol.ReasonInvalidContact, true},
		{"local no sim", Local, NoSIM, protocol.ReasonError, true},
		{"zero code", Remote, 0, protocol.ReasonNone, false},
		{"unknown type", Unknown, 12, protocol.ReasonError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Translate(tt.typ, tt.code)
			if got.Reason != tt.reason {
				t.Errorf("Reason = %v, want %v", got.Reason, tt.reason)
			}
			if got.HasDetail != tt.hasDetail {
				t.Errorf("HasDetail = %v, want %v", got.HasDetail, tt.hasDetail)
			}
			if got.HasDetail && got.ErrorName == "" {
				t.Error("ErrorName must be set when HasDetail is true")
			}
			if !got.HasDetail && got.ErrorName != "" {
				t.Errorf("ErrorName = %q, want empty", got.ErrorName)
			}
			if got.Message == "" {
				t.Error("Message must never be empty")
			}
		})
	}
}

func TestTranslateIsTotalOverNetworkCodes(t *testing.T) {
	for code := Code(0); code < 0x80; code++ {
		out := Translate(Network, code)
		if out.Message == "" {
			t.Fatalf("code %#x has no message", code)
		}
	}
}

func TestMessages(t *testing.T) {
	tests := []struct {
		typ    Type
		code   Code
		prefix string
		want   string
	}{
		{Network, UserBusy, "", "User Busy"},
		{Network, NormalClearing, "", "Normal Call Clearing"},
		{Network, UnassignedNumber, "", "Unassigned Number Error"},
		{Network, TemporaryFailure, "", "Temporary Failure"},
		{Network, 0x70, "", "Error 112 with type 1"},
		{Remote, ReleaseByUser, "", "Release By User"},
		{Remote, NoCoverage, "", "No Coverage Error"},
		{Local, 0, "", "None"},
		{Local, 200, "", "Error 200 with type 2"},
		{Unknown, 5, "", "Error 5 with type 0"},
		{Network, Congestion, "Dial", "Dial: Congestion Error"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%v/%d", tt.typ, tt.code), func(t *testing.T) {
			got := New(tt.typ, tt.code, tt.prefix).Message
			if got != tt.want {
				t.Errorf("message = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorNames(t *testing.T) {
	if got := New(Network, UserBusy, "").Name(); got != NetworkErrorPrefix+".UserBusy" {
		t.Errorf("network name = %q", got)
	}
	if got := New(Remote, BlacklistBlocked, "").Name(); got != CallErrorPrefix+".BlacklistBlocked" {
		t.Errorf("call name = %q", got)
	}
	if got := New(Network, 0x70, "").Name(); got != NetworkErrorPrefix+".Interworking" {
		t.Errorf("generic network name = %q", got)
	}
	if got := ModemError("org.ofono.Error.InvalidFormat", "").Name(); got != "org.ofono.Error.InvalidFormat" {
		t.Errorf("modem name = %q", got)
	}
	if got := ModemError("org.freedesktop.DBus.Error.NoReply", "timeout").Code; got != ModemFailed {
		t.Errorf("unknown modem error code = %d", got)
	}
}

func TestErrorReason(t *testing.T) {
	wrapped := fmt.Errorf("dial: %w", New(Remote, InvalidAddress, ""))
	if got := ErrorReason(wrapped); got != protocol.ReasonInvalidContact {
		t.Errorf("ErrorReason(call) = %v", got)
	}
	if got := ErrorReason(New(Network, UserBusy, "")); got != protocol.ReasonBusy {
		t.Errorf("ErrorReason(network) = %v", got)
	}
	if got := ErrorReason(ModemError("org.ofono.Error.InProgress", "")); got != protocol.ReasonError {
		t.Errorf("ErrorReason(modem) = %v", got)
	}
	if got := ErrorReason(errors.New("boom")); got != protocol.ReasonError {
		t.Errorf("ErrorReason(plain) = %v", got)
	}
	if got := ErrorName(wrapped); got != CallErrorPrefix+".InvalidAddress" {
		t.Errorf("ErrorName = %q", got)
	}
}

func TestSIPStatus(t *testing.T) {
	tests := []struct {
		typ  Type
		code Code
		want sip.StatusCode
	}{
		{Network, NormalClearing, sip.StatusOK},
		{Network, UserBusy, 486},
		{Network, UnassignedNumber, 404},
		{Network, Congestion, 503},
		{Network, NoUserResponse, 408},
		{Remote, ReleaseByUser, sip.StatusOK},
		{Remote, BlacklistBlocked, 603},
		{Local, InvalidAddress, 484},
		{Local, NoSIM, sip.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := SIPStatus(tt.typ, tt.code); got != tt.want {
			t.Errorf("SIPStatus(%v, %d) = %d, want %d", tt.typ, tt.code, got, tt.want)
		}
	}
}

func TestParseType(t *testing.T) {
	for s, want := range map[string]Type{
		"network": Network,
		"local":   Local,
		"remote":  Remote,
		"":        Unknown,
		"other":   Unknown,
	} {
		if got := ParseType(s); got != want {
			t.Errorf("ParseType(%q) = %v, want %v", s, got, want)
		}
	}
}

func TestParseName(t *testing.T) {
	typ, code, ok := ParseName(New(Network, Congestion, "").Name())
	if !ok || typ != Network || code != Congestion {
		t.Errorf("network: %v %d %v", typ, code, ok)
	}
	typ, code, ok = ParseName(New(Remote, BlacklistBlocked, "").Name())
	if !ok || typ != Local || code != BlacklistBlocked {
		t.Errorf("call: %v %d %v", typ, code, ok)
	}
	if _, _, ok := ParseName("org.ofono.Error.Failed"); ok {
		t.Error("modem errors carry no cause")
	}
}
