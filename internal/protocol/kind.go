package protocol

import "net/netip"

// MessageKind is the leading byte of every frame payload.
type MessageKind uint8

// Message kind constants.
const (
	KindKeepAlive MessageKind = 0x01 // Liveness refresh, no body
	KindMessage   MessageKind = 0x02 // Chat text
	KindAck       MessageKind = 0x03 // Reserved: ack-only frame
)

func (k MessageKind) String() string {
	switch k {
	case KindKeepAlive:
		return "keepalive"
	case KindMessage:
		return "message"
	case KindAck:
		return "ack"
	default:
		return "unknown"
	}
}

// IdentifiedPayload is a payload whose kind byte has been recognized
// and stripped.
type IdentifiedPayload struct {
	Origin netip.AddrPort
	Kind   MessageKind
	Body   []byte
}

// Classify strips the kind byte from payload.
// It reports false for an empty payload or an unknown kind;
// such payloads are dropped without complaint.
func Classify(origin netip.AddrPort, payload []byte) (IdentifiedPayload, bool) {
	if len(payload) == 0 {
		return IdentifiedPayload{}, false
	}

	kind := MessageKind(payload[0])
	switch kind {
	case KindKeepAlive, KindMessage, KindAck:
	default:
		return IdentifiedPayload{}, false
	}

	return IdentifiedPayload{
		Origin: origin,
		Kind:   kind,
		Body:   payload[1:],
	}, true
}

// Wrap prefixes body with the kind byte, clipping the body to MaxBody.
func Wrap(kind MessageKind, body []byte) []byte {
	if len(body) > MaxBody {
		body = body[:MaxBody]
	}
	out := make([]byte, 1+len(body))
	out[0] = byte(kind)
	copy(out[1:], body)
	return out
}
