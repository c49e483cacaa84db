// Package address validates and splits dial targets.
//
// A target is either a phone number, optionally prefixed with a CLIR
// override (*31# or #31#) and followed by a second-stage dial string
// (digits sent as DTMF once the call connects, separated by p or w), or an
// emergency service URN (urn:service:sos[.sub]).
package address

import (
	"errors"
	"strings"

	"github.com/sebas/ringbridge/internal/telephony/modem"
)

// Validation errors.
var (
	ErrNoDestination      = errors.New("no destination")
	ErrInvalidServiceURN  = errors.New("invalid service urn")
	ErrNotPhoneNumber     = errors.New("not a phone number")
	ErrTooShort           = errors.New("too short")
	ErrTooLong            = errors.New("too long")
	ErrInvalidServiceCode = errors.New("invalid service code")
	ErrInvalidAddress     = errors.New("invalid address")
	ErrInvalidDialString  = errors.New("invalid dial string")
	ErrInvalidDTMF        = errors.New("invalid DTMF string")
)

const (
	// EmergencyURN is the service URN of the generic emergency service.
	EmergencyURN = "urn:service:sos"

	// MaxNumberLength is the longest number the network accepts.
	MaxNumberLength = 20

	// MaxDTMFLength is the longest DTMF string accepted at once.
	MaxDTMFLength = 255

	clirShowPrefix = "*31#"
	clirHidePrefix = "#31#"

	numberChars   = "0123456789abcABC*#"
	dialChars     = "0123456789abcABC*#pwPW"
	splitChars    = "+0123456789*#ABCabc"
	dtmfChars     = "0123456789#*pwabcd"
	dtmfEventKeys = "0123456789*#ABCD"
)

// IsEmergencyURN reports whether s is urn:service:sos or one of its
// sub-services, compared case-insensitively.
func IsEmergencyURN(s string) bool {
	if len(s) < len(EmergencyURN) || !strings.EqualFold(s[:len(EmergencyURN)], EmergencyURN) {
		return false
	}
	rest := s[len(EmergencyURN):]
	return rest == "" || rest[0] == '.'
}

// Validate checks that s can be dialed.
func Validate(s string) error {
	if s == "" {
		return ErrNoDestination
	}

	if len(s) >= len(EmergencyURN) && strings.EqualFold(s[:len(EmergencyURN)], EmergencyURN) {
		if IsEmergencyURN(s) {
			return nil
		}
		return ErrInvalidServiceURN
	}

	s = strings.TrimPrefix(strings.TrimPrefix(s, clirShowPrefix), clirHidePrefix)
	s = strings.TrimPrefix(s, "+")

	n := span(s, numberChars)
	if n == 0 {
		if len(s) > 0 {
			return ErrNotPhoneNumber
		}
		return ErrTooShort
	}
	if n > MaxNumberLength {
		return ErrTooLong
	}
	if s[n-1] == '#' {
		return ErrInvalidServiceCode
	}

	rest := s[n:]
	m := span(rest, dialChars)
	if m < len(rest) {
		if m == 0 {
			return ErrInvalidAddress
		}
		return ErrInvalidDialString
	}
	if m == 1 {
		return ErrInvalidDialString
	}
	return nil
}

// Target is a validated target split into its parts.
type Target struct {
	// Number is what is handed to the modem.
	Number string
	// DialString is sent as DTMF once the call is active.
	DialString string
	CLIR       modem.CLIR
}

// Split separates the CLIR prefix and the second-stage dial string from
// the number. Emergency URNs are returned unchanged.
func Split(s string) Target {
	if IsEmergencyURN(s) {
		return Target{Number: s}
	}

	t := Target{CLIR: modem.CLIRDefault}
	switch {
	case strings.HasPrefix(s, clirShowPrefix):
		t.CLIR = modem.CLIRDisabled
		s = s[len(clirShowPrefix):]
	case strings.HasPrefix(s, clirHidePrefix):
		t.CLIR = modem.CLIREnabled
		s = s[len(clirHidePrefix):]
	}

	n := span(s, splitChars)
	t.Number = s[:n]
	t.DialString = s[n:]
	return t
}

// NormalizeDTMF validates a DTMF string and folds it to lower case.
func NormalizeDTMF(digits string) (string, error) {
	if len(digits) > MaxDTMFLength {
		return "", ErrInvalidDTMF
	}
	lower := strings.ToLower(digits)
	if span(lower, dtmfChars) != len(lower) {
		return "", ErrInvalidDTMF
	}
	return lower, nil
}

// DTMFKey returns the key of a telephone event (0..15).
func DTMFKey(event int) (byte, bool) {
	if event < 0 || event >= len(dtmfEventKeys) {
		return 0, false
	}
	return dtmfEventKeys[event], true
}

// span returns the length of the prefix of s made only of chars in set.
func span(s, set string) int {
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(set, s[i]) < 0 {
			return i
		}
	}
	return len(s)
}
