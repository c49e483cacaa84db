package address

import (
	"errors"
	"testing"

	"github.com/sebas/ringbridge/internal/telephony/modem"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		in   string
		want error
	}{
		{"", ErrNoDestination},
		{"urn:service:sos", nil},
		{"URN:Service:SOS.police", nil},
		{"urn:service:sosx", ErrInvalidServiceURN},
		{"+358401234567", nil},
		{"*31#5550100", nil},
		{"#31#+5550100", nil},
		{"5550100p1234", nil},
		{"5550100w12#", nil},
		{"+", ErrTooShort},
		{"hello", ErrNotPhoneNumber},
		{"123456789012345678901", ErrTooLong},
		{"*21#", ErrInvalidServiceCode},
		{"5550100x", ErrInvalidAddress},
		{"5550100p12x", ErrInvalidDialString},
		{"5550100p", ErrInvalidDialString},
		{"555abc", nil},
		{"555def", ErrInvalidAddress},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			err := Validate(tt.in)
			if !errors.Is(err, tt.want) {
				t.Errorf("Validate(%q) = %v, want %v", tt.in, err, tt.want)
			}
		})
	}
}

func TestSplit(t *testing.T) {
	tests := []struct {
		in   string
		want Target
	}{
		{"5550100", Target{Number: "5550100"}},
		{"+5550100p123w4", Target{Number: "+5550100", DialString: "p123w4"}},
		{"*31#5550100", Target{Number: "5550100", CLIR: modem.CLIRDisabled}},
		{"#31#5550100p9", Target{Number: "5550100", DialString: "p9", CLIR: modem.CLIREnabled}},
		{"urn:service:sos.fire", Target{Number: "urn:service:sos.fire"}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Split(tt.in); got != tt.want {
				t.Errorf("Split(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestEmergencyNumbers(t *testing.T) {
	e := NewEmergencyNumbers([]string{"112", " 1122 ", ""})

	if got := len(e.Numbers()); got != len(DefaultEmergencyNumbers)+1 {
		t.Fatalf("len(Numbers()) = %d", got)
	}

	for dest, want := range map[string]string{
		"112":             EmergencyURN,
		"911p1":           EmergencyURN,
		"1122":            EmergencyURN,
		"1123":            "",
		"5550100":         "",
		"urn:service:sos": "urn:service:sos",
	} {
		if got := e.Service(dest); got != want {
			t.Errorf("Service(%q) = %q, want %q", dest, got, want)
		}
	}

	if got := e.DialNumber(); got != "112" {
		t.Errorf("DialNumber() = %q", got)
	}
}

func TestNormalizeDTMF(t *testing.T) {
	got, err := NormalizeDTMF("12*#ABCDpw")
	if err != nil {
		t.Fatalf("NormalizeDTMF: %v", err)
	}
	if got != "12*#abcdpw" {
		t.Errorf("NormalizeDTMF = %q", got)
	}

	if _, err := NormalizeDTMF("12x"); !errors.Is(err, ErrInvalidDTMF) {
		t.Errorf("invalid digit error = %v", err)
	}

	long := make([]byte, MaxDTMFLength+1)
	for i := range long {
		long[i] = '1'
	}
	if _, err := NormalizeDTMF(string(long)); !errors.Is(err, ErrInvalidDTMF) {
		t.Errorf("too long error = %v", err)
	}
}

func TestDTMFKey(t *testing.T) {
	if k, ok := DTMFKey(10); !ok || k != '*' {
		t.Errorf("DTMFKey(10) = %c, %v", k, ok)
	}
	if k, ok := DTMFKey(15); !ok || k != 'D' {
		t.Errorf("DTMFKey(15) = %c, %v", k, ok)
	}
	if _, ok := DTMFKey(16); ok {
		t.Error("DTMFKey(16) should be invalid")
	}
}
