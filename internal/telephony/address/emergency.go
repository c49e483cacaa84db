package address

import "strings"

// DefaultEmergencyNumbers are always treated as emergency numbers.
var DefaultEmergencyNumbers = []string{"112", "911", "118", "119", "000", "110", "08", "999"}

// EmergencyNumbers is the set of numbers that reach the emergency service.
type EmergencyNumbers struct {
	numbers []string
}

// NewEmergencyNumbers merges the defaults with the given lists, dropping
// duplicates and empty entries.
func NewEmergencyNumbers(lists ...[]string) *EmergencyNumbers {
	e := &EmergencyNumbers{}
	e.add(DefaultEmergencyNumbers)
	for _, l := range lists {
		e.add(l)
	}
	return e
}

func (e *EmergencyNumbers) add(list []string) {
	for _, n := range list {
		n = strings.TrimSpace(n)
		if n == "" || e.has(n) {
			continue
		}
		e.numbers = append(e.numbers, n)
	}
}

func (e *EmergencyNumbers) has(n string) bool {
	for _, x := range e.numbers {
		if x == n {
			return true
		}
	}
	return false
}

// Numbers returns the known emergency numbers.
func (e *EmergencyNumbers) Numbers() []string {
	return append([]string(nil), e.numbers...)
}

// Match reports whether dest starts with an emergency number followed by
// nothing or a pause/wait character.
func (e *EmergencyNumbers) Match(dest string) bool {
	for _, n := range e.numbers {
		if !strings.HasPrefix(dest, n) {
			continue
		}
		rest := dest[len(n):]
		if rest == "" || rest[0] == 'p' || rest[0] == 'w' {
			return true
		}
	}
	return false
}

// Service returns the emergency service URN dest reaches, or "".
func (e *EmergencyNumbers) Service(dest string) string {
	if IsEmergencyURN(dest) {
		return dest
	}
	if e.Match(dest) {
		return EmergencyURN
	}
	return ""
}

// DialNumber returns the number to hand the modem for an emergency URN.
func (e *EmergencyNumbers) DialNumber() string {
	if len(e.numbers) == 0 {
		return DefaultEmergencyNumbers[0]
	}
	return e.numbers[0]
}
