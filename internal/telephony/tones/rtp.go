package tones

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/pion/rtp"
	"github.com/zaf/g711"
)

// Frame timing of the rendered stream: 8 kHz, 20 ms per packet.
const (
	sampleRate    = 8000
	frameDuration = 20 * time.Millisecond
	frameSamples  = sampleRate * int(frameDuration) / int(time.Second)
)

// Codec is the G.711 variant a tone stream is encoded with. Its value is
// the static RTP payload type.
type Codec uint8

const (
	CodecPCMU Codec = 0
	CodecPCMA Codec = 8
)

func (c Codec) String() string {
	switch c {
	case CodecPCMU:
		return "PCMU"
	case CodecPCMA:
		return "PCMA"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

// ParseCodec accepts "PCMU"/"ulaw" and "PCMA"/"alaw", in any case.
func ParseCodec(s string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pcmu", "ulaw", "":
		return CodecPCMU, nil
	case "pcma", "alaw":
		return CodecPCMA, nil
	default:
		return 0, fmt.Errorf("unknown tone codec %q", s)
	}
}

func (c Codec) encode(pcm []byte) []byte {
	if c == CodecPCMA {
		return g711.EncodeAlaw(pcm)
	}
	return g711.EncodeUlaw(pcm)
}

// RTPPlayer renders tones as G.711 audio and streams them over RTP to a
// fixed sink, such as the audio bridge of a softphone.
type RTPPlayer struct {
	conn  net.PacketConn
	sink  net.Addr
	codec Codec

	mu     sync.Mutex
	ssrc   uint32
	seq    uint16
	ts     uint32
	closed bool
}

// NewRTPPlayer opens a UDP socket and streams tones to sink ("host:port").
func NewRTPPlayer(sink string, codec Codec) (*RTPPlayer, error) {
	addr, err := net.ResolveUDPAddr("udp", sink)
	if err != nil {
		return nil, fmt.Errorf("resolve tone sink %q: %w", sink, err)
	}
	conn, err := net.ListenPacket("udp", ":0")
	if err != nil {
		return nil, fmt.Errorf("open tone socket: %w", err)
	}
	slog.Info("[Tones] RTP tone player ready", "local", conn.LocalAddr(), "sink", addr, "codec", codec)
	return newRTPPlayer(conn, addr, codec), nil
}

func newRTPPlayer(conn net.PacketConn, sink net.Addr, codec Codec) *RTPPlayer {
	return &RTPPlayer{
		conn:  conn,
		sink:  sink,
		codec: codec,
		ssrc:  randomUint32(),
		seq:   uint16(randomUint32()),
		ts:    randomUint32(),
	}
}

// Play streams ev until ctx is done. Concurrent plays are serialized.
func (p *RTPPlayer) Play(ctx context.Context, ev Event, volume int) error {
	pattern, ok := patternFor(ev)
	if !ok {
		return fmt.Errorf("no pattern for tone %s", ev)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return net.ErrClosed
	}

	gen := newGenerator(pattern, volume)
	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()

	pcm := make([]byte, frameSamples*2)
	marker := true
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		gen.fill(pcm)
		if err := p.writeFrame(p.codec.encode(pcm), marker); err != nil {
			return err
		}
		marker = false
	}
}

func (p *RTPPlayer) writeFrame(payload []byte, marker bool) error {
	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			Marker:         marker,
			PayloadType:    uint8(p.codec),
			SequenceNumber: p.seq,
			Timestamp:      p.ts,
			SSRC:           p.ssrc,
		},
		Payload: payload,
	}
	data, err := pkt.Marshal()
	if err != nil {
		return err
	}
	if _, err := p.conn.WriteTo(data, p.sink); err != nil {
		return err
	}
	p.seq++
	p.ts += uint32(frameSamples)
	return nil
}

// Close releases the socket.
func (p *RTPPlayer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.conn.Close()
}

// randomUint32 returns a random RTP identifier (SSRC, initial sequence or
// timestamp).
func randomUint32() uint32 {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0x12345678
	}
	return binary.BigEndian.Uint32(b[:])
}
