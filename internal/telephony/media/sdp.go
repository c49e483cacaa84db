package media

import (
	"log/slog"

	"github.com/pion/sdp/v3"

	"github.com/sebas/ringbridge/internal/telephony/protocol"
)

const (
	// The modem owns the audio path; the description carries no reachable
	// transport address.
	nullAddress = "0.0.0.0"
	discardPort = 9
)

var rtpmaps = map[string]string{
	"0":   "PCMU/8000",
	"101": "telephone-event/8000",
}

// Describe renders the stream of channel id as SDP. It returns nil for a
// disconnected stream.
func Describe(id string, s protocol.Stream) []byte {
	if s.State == protocol.StreamDisconnected {
		return nil
	}

	formats := []string{"0", "101"}
	desc := &sdp.SessionDescription{
		Origin: sdp.Origin{
			Username:       "ringbridge",
			SessionID:      1,
			SessionVersion: uint64(s.State) + 1,
			NetworkType:    "IN",
			AddressType:    "IP4",
			UnicastAddress: nullAddress,
		},
		SessionName: sdp.SessionName(id),
		ConnectionInformation: &sdp.ConnectionInformation{
			NetworkType: "IN",
			AddressType: "IP4",
			Address:     &sdp.Address{Address: nullAddress},
		},
		TimeDescriptions: []sdp.TimeDescription{
			{Timing: sdp.Timing{StartTime: 0, StopTime: 0}},
		},
		MediaDescriptions: []*sdp.MediaDescription{
			{
				MediaName: sdp.MediaName{
					Media:   "audio",
					Port:    sdp.RangedPort{Value: discardPort},
					Protos:  []string{"RTP", "AVP"},
					Formats: formats,
				},
				Attributes: attributes(formats, s.Direction),
			},
		},
	}

	out, err := desc.Marshal()
	if err != nil {
		slog.Error("[Media] Failed to render stream description", "channel", id, "error", err)
		return nil
	}
	return out
}

func attributes(formats []string, dir protocol.StreamDirection) []sdp.Attribute {
	var attrs []sdp.Attribute
	for _, f := range formats {
		if m, ok := rtpmaps[f]; ok {
			attrs = append(attrs, sdp.Attribute{Key: "rtpmap", Value: f + " " + m})
		}
	}
	attrs = append(attrs,
		sdp.Attribute{Key: "fmtp", Value: "101 0-15"},
		sdp.Attribute{Key: "ptime", Value: "20"},
		sdp.Attribute{Key: Mode(dir)},
	)
	return attrs
}

// Mode returns the SDP direction attribute for dir.
func Mode(dir protocol.StreamDirection) string {
	switch dir {
	case protocol.DirectionBidirectional:
		return "sendrecv"
	case protocol.DirectionSend:
		return "sendonly"
	case protocol.DirectionReceive:
		return "recvonly"
	default:
		return "inactive"
	}
}

// ParseMode reads the direction attribute of the first audio section of raw.
func ParseMode(raw []byte) (protocol.StreamDirection, error) {
	var desc sdp.SessionDescription
	if err := desc.Unmarshal(raw); err != nil {
		return protocol.DirectionNone, err
	}
	for _, md := range desc.MediaDescriptions {
		if md.MediaName.Media != "audio" {
			continue
		}
		for _, a := range md.Attributes {
			switch a.Key {
			case "sendrecv":
				return protocol.DirectionBidirectional, nil
			case "sendonly":
				return protocol.DirectionSend, nil
			case "recvonly":
				return protocol.DirectionReceive, nil
			case "inactive":
				return protocol.DirectionNone, nil
			}
		}
	}
	return protocol.DirectionBidirectional, nil
}
