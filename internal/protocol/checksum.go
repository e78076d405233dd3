package protocol

import "encoding/binary"

// Checksum computes the 16-bit one's-complement Internet checksum (RFC 1071)
// of data. Words are read in network byte order; an odd trailing byte is
// padded with a zero low byte.
//
// It detects every single-bit error but is not an authenticator.
func Checksum(data []byte) uint16 {
	var sum uint64
	for len(data) > 1 {
		sum += uint64(binary.BigEndian.Uint16(data))
		data = data[2:]
	}
	if len(data) == 1 {
		sum += uint64(data[0]) << 8
	}
	for sum>>16 != 0 {
		sum = sum&0xffff + sum>>16
	}
	return ^uint16(sum)
}
