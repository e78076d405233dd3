package rudp

import (
	"time"

	"github.com/1ureka/rudp/internal/protocol"
	"github.com/1ureka/rudp/internal/util"
)

// reassembler collects the payload of one transfer in arrival order.
// Sequence numbers are tracked for diagnostics only; an out-of-order chunk is
// counted and appended where it lands, never moved.
type reassembler struct {
	id    uint32
	buf   []byte
	limit int

	expectedSeq uint16
	chunks      int // data packets accepted
	outOfOrder  int // accepted packets whose seq was not the expected one
	dropped     int // data packets rejected on checksum mismatch

	started  time.Time // first accepted chunk
	finished time.Time // last accepted chunk
}

// newReassembler creates a reassembler for a transfer of limit bytes,
// expecting sequence numbers starting at 0.
func newReassembler(id uint32, limit int) *reassembler {
	return &reassembler{
		id:    id,
		buf:   make([]byte, 0, limit),
		limit: limit,
	}
}

// feed appends a validated data packet and returns the number of payload
// bytes kept. Bytes past the transfer limit are discarded.
func (r *reassembler) feed(pkt *protocol.Packet) int {
	now := time.Now()
	if r.chunks == 0 {
		r.started = now
	}
	r.finished = now

	if pkt.SeqNum != r.expectedSeq {
		r.outOfOrder++
		util.LogDebug("[%08x] chunk seq=%d arrived, expected %d; kept in arrival order",
			r.id, pkt.SeqNum, r.expectedSeq)
	}
	r.expectedSeq = pkt.SeqNum + 1

	n := min(len(pkt.Payload), r.limit-len(r.buf))
	if n < len(pkt.Payload) {
		util.LogWarning("[%08x] chunk seq=%d overruns the transfer by %d bytes, truncating",
			r.id, pkt.SeqNum, len(pkt.Payload)-n)
	}

	r.buf = append(r.buf, pkt.Payload[:n]...)
	r.chunks++
	return n
}

func (r *reassembler) size() int { return len(r.buf) }

func (r *reassembler) full() bool { return len(r.buf) >= r.limit }

func (r *reassembler) bytes() []byte { return r.buf }

func (r *reassembler) stats() TransferStats {
	return TransferStats{
		Bytes:      len(r.buf),
		Chunks:     r.chunks,
		OutOfOrder: r.outOfOrder,
		Dropped:    r.dropped,
		Started:    r.started,
		Finished:   r.finished,
	}
}
