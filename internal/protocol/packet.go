// Package protocol defines the on-wire frame format and the application
// message kinds carried inside frame payloads.
package protocol

// Marker prefixes every frame. Datagrams without it are not ours.
var Marker = [3]byte{'0', '1', '2'}

// Frame layout constants.
const (
	// HeaderSize is Marker(3) + Seq(2) + AckNum(2) + AckField(4).
	HeaderSize = 11

	// DatagramSize is the fixed per-datagram budget, header included.
	DatagramSize = 256

	// MaxPayload is the room left after the header.
	// One byte of it is the message kind, the rest is the body.
	MaxPayload = DatagramSize - HeaderSize

	// MaxBody is the largest application body that fits after the kind byte.
	MaxBody = MaxPayload - 1
)

// Frame is one protocol datagram.
type Frame struct {
	Seq      uint16 // Per-destination sequence number of this frame
	AckNum   uint16 // Latest sequence number received from the destination
	AckField uint32 // Bit i set means AckNum-(i+1) was also received
	Payload  []byte // Kind byte followed by the body
}
