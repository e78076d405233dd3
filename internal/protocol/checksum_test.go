package protocol

import (
	"encoding/binary"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestChecksumKnownVector checks the worked example from RFC 1071 section 3.
func TestChecksumKnownVector(t *testing.T) {
	data := []byte{0x00, 0x01, 0xf2, 0x03, 0xf4, 0xf5, 0xf6, 0xf7}
	assert.Equal(t, uint16(0x220d), Checksum(data))
}

func TestChecksumEmpty(t *testing.T) {
	assert.Equal(t, uint16(0xffff), Checksum(nil))
	assert.Equal(t, uint16(0xffff), Checksum([]byte{}))
}

// TestChecksumOddLength verifies that a trailing byte is padded with zero.
func TestChecksumOddLength(t *testing.T) {
	testCases := [][]byte{
		{0xab},
		{0x01, 0x02, 0x03},
		{0xff, 0xff, 0xff, 0xff, 0x7f},
	}
	for _, data := range testCases {
		padded := append(append([]byte{}, data...), 0x00)
		assert.Equal(t, Checksum(padded), Checksum(data), "data=% x", data)
	}
}

// TestChecksumCarryFolding sums enough 0xffff words to overflow 16 bits
// several times over.
func TestChecksumCarryFolding(t *testing.T) {
	data := make([]byte, 4096)
	for i := range data {
		data[i] = 0xff
	}
	assert.Equal(t, uint16(0x0000), Checksum(data))

	data[len(data)-1] = 0xfe
	assert.Equal(t, uint16(0x0001), Checksum(data))
}

// TestChecksumSelfVerifying appends the checksum to the data it covers and
// expects the checksum over the whole to be zero.
func TestChecksumSelfVerifying(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 500; i++ {
		n := rng.IntN(2048) * 2
		data := make([]byte, n, n+2)
		for j := range data {
			data[j] = byte(rng.Uint32())
		}

		sum := Checksum(data)
		data = binary.BigEndian.AppendUint16(data, sum)
		require.Equal(t, uint16(0), Checksum(data), "length %d", n)
	}
}

func TestChecksumOrderSensitive(t *testing.T) {
	data := []byte("order matters here")
	swapped := append([]byte{}, data...)
	swapped[0], swapped[1] = swapped[1], swapped[0]

	assert.NotEqual(t, Checksum(data), Checksum(swapped))
}

// TestChecksumDetectsSingleBitFlip flips every bit of a random buffer in turn.
func TestChecksumDetectsSingleBitFlip(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	data := make([]byte, 257)
	for i := range data {
		data[i] = byte(rng.Uint32())
	}
	want := Checksum(data)

	for i := range data {
		for bit := 0; bit < 8; bit++ {
			data[i] ^= 1 << bit
			require.NotEqual(t, want, Checksum(data), "byte %d bit %d", i, bit)
			data[i] ^= 1 << bit
		}
	}
}
