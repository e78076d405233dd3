// Package protocol defines the RUDP wire format: the fixed header, the flag
// bits and the checksum that protects data payloads.
package protocol

import (
	"fmt"
	"strings"
)

// Flags is the header flag bitmask.
type Flags uint8

// Flag bits and the composite values used on the wire.
const (
	FlagSYN  Flags = 0x01
	FlagACK  Flags = 0x02
	FlagFIN  Flags = 0x04
	FlagPUSH Flags = 0x10

	FlagSYNACK  = FlagSYN | FlagACK  // 0x03
	FlagFINACK  = FlagFIN | FlagACK  // 0x06
	FlagPUSHACK = FlagPUSH | FlagACK // 0x12
)

// Has reports whether every bit of f is set.
func (fl Flags) Has(f Flags) bool { return fl&f == f }

// String renders the flags as e.g. "PUSH|ACK".
func (fl Flags) String() string {
	if fl == 0 {
		return "NONE"
	}
	var parts []string
	for _, b := range []struct {
		bit  Flags
		name string
	}{
		{FlagSYN, "SYN"},
		{FlagFIN, "FIN"},
		{FlagPUSH, "PUSH"},
		{FlagACK, "ACK"},
	} {
		if fl&b.bit != 0 {
			parts = append(parts, b.name)
		}
	}
	if rest := fl &^ (FlagSYN | FlagACK | FlagFIN | FlagPUSH); rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%02x", uint8(rest)))
	}
	return strings.Join(parts, "|")
}

// HeaderSize is the fixed header size:
// Checksum(2) + Length(2) + SeqNum(2) + AckNum(2) + Flags(1).
const HeaderSize = 9

// MaxDatagramSize is the largest UDP payload deliverable over IPv4.
const MaxDatagramSize = 65507

// MaxPayloadSize is the largest payload a single packet may carry.
const MaxPayloadSize = MaxDatagramSize - HeaderSize

// Header is the fixed-size RUDP header. All multi-byte fields travel in
// network byte order.
type Header struct {
	Checksum uint16 // payload checksum, 0 for control packets
	Length   uint16 // HeaderSize + payload bytes used
	SeqNum   uint16 // chunk index within the current transfer
	AckNum   uint16 // chunk count on a transfer ACK, otherwise 0
	Flags    Flags
}

// Packet is a header plus the payload bytes that follow it.
type Packet struct {
	Header
	Payload []byte
}

// IsControl reports whether the packet carries no payload.
func (p *Packet) IsControl() bool { return len(p.Payload) == 0 }

// Valid reports whether the header checksum matches the payload. Control
// packets are valid only with a zero checksum.
func (p *Packet) Valid() bool {
	if len(p.Payload) == 0 {
		return p.Checksum == 0
	}
	return Checksum(p.Payload) == p.Checksum
}

// NewControl builds a payload-less packet carrying only flags.
func NewControl(flags Flags) *Packet {
	return &Packet{Header: Header{Flags: flags}}
}

// NewData builds a PUSH_ACK packet for chunk seq.
func NewData(seq uint16, payload []byte) *Packet {
	return &Packet{
		Header:  Header{SeqNum: seq, Flags: FlagPUSHACK},
		Payload: payload,
	}
}
