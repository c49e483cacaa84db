package tones

import (
	"encoding/binary"
	"math"
	"time"
)

// segment is a stretch of one or two sine frequencies, or silence when
// both are zero.
type segment struct {
	f1, f2 float64
	dur    time.Duration
}

// pattern is a cadence that repeats until playback stops.
type pattern []segment

const comfort = 425

var dtmfRows = [4]float64{697, 770, 852, 941}
var dtmfCols = [4]float64{1209, 1336, 1477, 1633}

// dtmfGrid maps keys "0123456789*#ABCD" to their (row, column).
var dtmfGrid = [16][2]int{
	{3, 1}, {0, 0}, {0, 1}, {0, 2}, {1, 0}, {1, 1}, {1, 2}, {2, 0},
	{2, 1}, {2, 2}, {3, 0}, {3, 2}, {0, 3}, {1, 3}, {2, 3}, {3, 3},
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func patternFor(ev Event) (pattern, bool) {
	if ev >= EventDTMF0 && ev <= EventDTMFD {
		rc := dtmfGrid[ev]
		return pattern{{dtmfRows[rc[0]], dtmfCols[rc[1]], ms(1000)}}, true
	}
	switch ev {
	case EventDial:
		return pattern{{comfort, 0, ms(1000)}}, true
	case EventRinging:
		return pattern{{comfort, 0, ms(1000)}, {0, 0, ms(4000)}}, true
	case EventBusy:
		return pattern{{comfort, 0, ms(500)}, {0, 0, ms(500)}}, true
	case EventCongestion:
		return pattern{{comfort, 0, ms(200)}, {0, 0, ms(200)}}, true
	case EventSpecialInformation:
		return pattern{{950, 0, ms(330)}, {1400, 0, ms(330)}, {1800, 0, ms(330)}, {0, 0, ms(1000)}}, true
	case EventCallWaiting:
		return pattern{{comfort, 0, ms(200)}, {0, 0, ms(600)}, {comfort, 0, ms(200)}, {0, 0, ms(3000)}}, true
	case EventRadioPathAck:
		return pattern{{comfort, 0, ms(200)}, {0, 0, ms(10000)}}, true
	case EventDropped:
		return pattern{{comfort, 0, ms(200)}, {0, 0, ms(200)}}, true
	default:
		return nil, false
	}
}

// generator produces 16-bit little-endian PCM for a pattern.
type generator struct {
	p         pattern
	amplitude float64
	seg       int
	left      int // samples left in the current segment
	n         int // sample index within the segment
}

func newGenerator(p pattern, volume int) *generator {
	// Volume is attenuation in dB relative to a comfortable level.
	amp := 8000 * math.Pow(10, float64(volume)/20)
	g := &generator{p: p, amplitude: amp}
	g.left = samplesOf(p[0].dur)
	return g
}

func samplesOf(d time.Duration) int {
	return int(d * sampleRate / time.Second)
}

func (g *generator) fill(buf []byte) {
	for i := 0; i+1 < len(buf); i += 2 {
		for g.left == 0 {
			g.seg = (g.seg + 1) % len(g.p)
			g.left = samplesOf(g.p[g.seg].dur)
			g.n = 0
		}
		s := g.p[g.seg]
		t := float64(g.n) / sampleRate
		var v float64
		if s.f1 > 0 {
			v += math.Sin(2 * math.Pi * s.f1 * t)
		}
		if s.f2 > 0 {
			v += math.Sin(2 * math.Pi * s.f2 * t)
			v /= 2
		}
		binary.LittleEndian.PutUint16(buf[i:], uint16(int16(v*g.amplitude)))
		g.n++
		g.left--
	}
}
