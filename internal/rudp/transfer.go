package rudp

import (
	"errors"
	"fmt"
	"time"

	"github.com/1ureka/rudp/internal/protocol"
	"github.com/1ureka/rudp/internal/util"
)

// TransferStats describes the most recent Receive.
type TransferStats struct {
	Bytes      int
	Chunks     int
	OutOfOrder int
	Dropped    int
	Started    time.Time // arrival of the first accepted chunk
	Finished   time.Time // arrival of the last accepted chunk
}

// Duration is the time between the first and the last accepted chunk.
func (s TransferStats) Duration() time.Duration {
	return s.Finished.Sub(s.Started)
}

// LastTransfer returns the statistics of the most recent Receive.
func (c *Conn) LastTransfer() TransferStats { return c.last }

// split slices data into chunks of at most size bytes. Only the last chunk
// may be shorter; empty data yields no chunks.
func split(data []byte, size int) [][]byte {
	if len(data) == 0 {
		return nil
	}

	chunks := make([][]byte, 0, (len(data)+size-1)/size)
	for len(data) > 0 {
		n := min(size, len(data))
		chunks = append(chunks, data[:n])
		data = data[n:]
	}
	return chunks
}

// Send transmits data as ceil(len(data)/ChunkSize) PUSH_ACK packets with
// sequence numbers 0, 1, 2, … in order and returns the payload bytes handed
// to the socket. Chunks are not acknowledged individually; with
// AckTransfers, Send waits for one ACK covering the whole transfer.
func (c *Conn) Send(data []byte) (int, error) {
	if err := c.require("send", "", StateEstablished); err != nil {
		return 0, err
	}

	chunks := split(data, c.cfg.ChunkSize)
	sent := 0
	for i, chunk := range chunks {
		if err := c.writePacket(protocol.NewData(uint16(i), chunk)); err != nil {
			return sent, fmt.Errorf("send chunk %d/%d: %w", i+1, len(chunks), err)
		}
		sent += len(chunk)
	}
	util.LogDebug("[%08x] sent %d bytes in %d chunks", c.id, sent, len(chunks))

	if c.cfg.AckTransfers && len(chunks) > 0 {
		ack, err := c.expect(protocol.FlagACK)
		if err != nil {
			return sent, fmt.Errorf("await transfer ack: %w", err)
		}
		if ack.AckNum != uint16(len(chunks)) {
			util.LogWarning("[%08x] peer acknowledged %d chunks, sent %d", c.id, ack.AckNum, len(chunks))
		}
	}
	return sent, nil
}

// Receive reassembles one transfer of up to maxBytes bytes (capped at
// MaxTransferSize). It returns once maxBytes bytes have arrived or the peer sends
// any FIN-flagged packet. A FIN before any data yields ErrPeerClosed; after data it returns the
// data and every later call yields ErrPeerClosed.
//
// Packets without PUSH are ignored and packets failing the checksum are
// dropped. If the receive timeout then expires, the bytes gathered so far
// are returned with an error matching both ErrTimeout and
// ErrChecksumMismatch.
func (c *Conn) Receive(maxBytes int) ([]byte, error) {
	if c.peerClosed {
		return nil, ErrPeerClosed
	}
	if err := c.require("receive", "", StateEstablished); err != nil {
		return nil, err
	}

	if maxBytes > c.cfg.MaxTransferSize {
		util.LogWarning("[%08x] receive of %d bytes capped at %d", c.id, maxBytes, c.cfg.MaxTransferSize)
		maxBytes = c.cfg.MaxTransferSize
	}
	if maxBytes <= 0 {
		return []byte{}, nil
	}

	r := newReassembler(c.id, maxBytes)
	defer func() { c.last = r.stats() }()

	for !r.full() {
		pkt, _, err := c.readPacket()
		if err != nil {
			if r.dropped > 0 && errors.Is(err, ErrTimeout) {
				err = fmt.Errorf("%w (%d packets dropped): %w", ErrChecksumMismatch, r.dropped, err)
			}
			return r.bytes(), fmt.Errorf("receive: %w", err)
		}

		switch {
		case pkt.Flags.Has(protocol.FlagFIN):
			closeErr := c.passiveClose()
			if r.size() == 0 {
				if closeErr != nil {
					return nil, fmt.Errorf("%w: %w", ErrPeerClosed, closeErr)
				}
				return nil, ErrPeerClosed
			}
			return r.bytes(), closeErr

		case !pkt.Flags.Has(protocol.FlagPUSH):
			util.LogDebug("[%08x] ignoring %s while receiving", c.id, pkt.Flags)

		case !pkt.Valid():
			r.dropped++
			util.Stats.AddCorrupted()
			util.LogWarning("[%08x] dropping chunk seq=%d: %v (header %04x, payload %04x)",
				c.id, pkt.SeqNum, ErrChecksumMismatch, pkt.Checksum, protocol.Checksum(pkt.Payload))

		default:
			r.feed(pkt)
		}
	}

	util.LogDebug("[%08x] received %d bytes in %d chunks (%d out of order, %d dropped)",
		c.id, r.size(), r.chunks, r.outOfOrder, r.dropped)

	if c.cfg.AckTransfers {
		ack := protocol.NewControl(protocol.FlagACK)
		ack.AckNum = uint16(r.chunks)
		if err := c.writePacket(ack); err != nil {
			return r.bytes(), fmt.Errorf("acknowledge transfer: %w", err)
		}
	}
	return r.bytes(), nil
}
