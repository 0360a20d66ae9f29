package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrPayloadTooLarge is returned by Encode when a frame would not fit
// in a single datagram.
var ErrPayloadTooLarge = errors.New("payload exceeds datagram capacity")

// Encode serializes a Frame into a byte slice ready for the socket.
func Encode(f *Frame) ([]byte, error) {
	if len(f.Payload) > MaxPayload {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, len(f.Payload), MaxPayload)
	}

	buf := make([]byte, HeaderSize+len(f.Payload))
	copy(buf[0:3], Marker[:])
	binary.BigEndian.PutUint16(buf[3:5], f.Seq)
	binary.BigEndian.PutUint16(buf[5:7], f.AckNum)
	binary.BigEndian.PutUint32(buf[7:11], f.AckField)
	copy(buf[HeaderSize:], f.Payload)
	return buf, nil
}

// Decode deserializes a datagram into a Frame.
// It reports false for anything that is not a protocol frame:
// too short to hold the header, or missing the marker.
// That is ordinary background noise on a UDP port, not an error.
func Decode(data []byte) (*Frame, bool) {
	if len(data) < len(Marker) || [3]byte(data[0:3]) != Marker {
		return nil, false
	}
	if len(data) < HeaderSize {
		return nil, false
	}

	f := &Frame{
		Seq:      binary.BigEndian.Uint16(data[3:5]),
		AckNum:   binary.BigEndian.Uint16(data[5:7]),
		AckField: binary.BigEndian.Uint32(data[7:11]),
	}
	if len(data) > HeaderSize {
		f.Payload = make([]byte, len(data)-HeaderSize)
		copy(f.Payload, data[HeaderSize:])
	}
	return f, true
}

// Truncate clips a payload to the capacity left after the header.
func Truncate(payload []byte) []byte {
	if len(payload) > MaxPayload {
		return payload[:MaxPayload]
	}
	return payload
}
