package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrPacketTooShort is returned when a datagram cannot hold a header.
	ErrPacketTooShort = errors.New("packet too short")
	// ErrBadLength is returned when the length field disagrees with the datagram.
	ErrBadLength = errors.New("packet length field out of range")
	// ErrPayloadTooLarge is returned when a payload does not fit one datagram.
	ErrPayloadTooLarge = errors.New("payload too large")
)

// MarshalTo writes h into the first HeaderSize bytes of buf. It panics if buf
// is shorter than HeaderSize.
func (h *Header) MarshalTo(buf []byte) {
	_ = buf[HeaderSize-1]
	binary.BigEndian.PutUint16(buf[0:2], h.Checksum)
	binary.BigEndian.PutUint16(buf[2:4], h.Length)
	binary.BigEndian.PutUint16(buf[4:6], h.SeqNum)
	binary.BigEndian.PutUint16(buf[6:8], h.AckNum)
	buf[8] = uint8(h.Flags)
}

// ParseHeader reads a Header from the start of buf without validating it.
func ParseHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d bytes (need at least %d)", ErrPacketTooShort, len(buf), HeaderSize)
	}
	return Header{
		Checksum: binary.BigEndian.Uint16(buf[0:2]),
		Length:   binary.BigEndian.Uint16(buf[2:4]),
		SeqNum:   binary.BigEndian.Uint16(buf[4:6]),
		AckNum:   binary.BigEndian.Uint16(buf[6:8]),
		Flags:    Flags(buf[8]),
	}, nil
}

// Encode serializes pkt into a single datagram. Length and Checksum are
// derived from the payload and written back into pkt.Header; the checksum of
// a control packet is always 0.
func Encode(pkt *Packet) ([]byte, error) {
	if len(pkt.Payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, len(pkt.Payload), MaxPayloadSize)
	}

	pkt.Length = uint16(HeaderSize + len(pkt.Payload))
	pkt.Checksum = 0
	if len(pkt.Payload) > 0 {
		pkt.Checksum = Checksum(pkt.Payload)
	}

	buf := make([]byte, pkt.Length)
	pkt.Header.MarshalTo(buf)
	copy(buf[HeaderSize:], pkt.Payload)
	return buf, nil
}

// Decode deserializes a datagram into a Packet. Bytes beyond the length field
// are ignored. The checksum is not verified here; see Packet.Valid.
func Decode(data []byte) (*Packet, error) {
	h, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}
	if int(h.Length) < HeaderSize || int(h.Length) > len(data) {
		return nil, fmt.Errorf("%w: length=%d, datagram=%d bytes", ErrBadLength, h.Length, len(data))
	}

	pkt := &Packet{Header: h}
	if n := int(h.Length) - HeaderSize; n > 0 {
		pkt.Payload = make([]byte, n)
		copy(pkt.Payload, data[HeaderSize:h.Length])
	}
	return pkt, nil
}
