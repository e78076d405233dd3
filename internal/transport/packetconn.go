package transport

import (
	"net"
	"os"
	"sync"
	"time"

	"github.com/1ureka/rudp/internal/util"
)

const (
	highWaterMark = 256 * 1024 // pause writes when the channel buffers more than this
	lowWaterMark  = 64 * 1024  // resume writes once it drains below this
	inboxSize     = 1024       // inbound messages queued before drops
)

// channel is the message pipe a PacketConn writes to. *webrtc.DataChannel
// satisfies it.
type channel interface {
	Send(data []byte) error
	BufferedAmount() uint64
}

// Addr is the synthetic address of a DataChannel endpoint.
type Addr struct {
	Label string
}

func (a Addr) Network() string { return "webrtc" }
func (a Addr) String() string  { return a.Label }

// PacketConn presents one DataChannel as a net.PacketConn so an RUDP
// connection can run over it. Every message is one datagram and the only
// reachable address is the remote end of the channel.
//
// Inbound messages are queued and dropped when the queue is full, like a
// UDP socket with a full receive buffer. Writes block while the channel's
// send buffer is above the high water mark.
type PacketConn struct {
	ch     channel
	local  Addr
	remote Addr

	inbox   chan []byte
	drained chan struct{}
	done    chan struct{}

	closeOnce sync.Once
	onClose   func() error

	mu            sync.Mutex
	readDeadline  time.Time
	writeDeadline time.Time
}

func newPacketConn(ch channel, local, remote Addr, onClose func() error) *PacketConn {
	return &PacketConn{
		ch:      ch,
		local:   local,
		remote:  remote,
		inbox:   make(chan []byte, inboxSize),
		drained: make(chan struct{}, 1),
		done:    make(chan struct{}),
		onClose: onClose,
	}
}

// deliver queues an inbound message. The caller must not reuse msg.
func (c *PacketConn) deliver(msg []byte) {
	select {
	case <-c.done:
		return
	default:
	}

	select {
	case c.inbox <- msg:
	default:
		util.LogDebug("dropping %d-byte message from %s: inbox full", len(msg), c.remote)
	}
}

// drain wakes a writer blocked on backpressure.
func (c *PacketConn) drain() {
	select {
	case c.drained <- struct{}{}:
	default:
	}
}

// ReadFrom blocks for the next message or until the read deadline set
// before the call expires.
func (c *PacketConn) ReadFrom(p []byte) (int, net.Addr, error) {
	c.mu.Lock()
	deadline := c.readDeadline
	c.mu.Unlock()

	timeout, stop := deadlineTimer(deadline)
	defer stop()

	select {
	case msg := <-c.inbox:
		return copy(p, msg), c.remote, nil
	case <-c.done:
		return 0, nil, c.opError("read", net.ErrClosed)
	case <-timeout:
		return 0, nil, c.opError("read", os.ErrDeadlineExceeded)
	}
}

// WriteTo sends p as one message. addr is ignored; the channel has a single
// remote end.
func (c *PacketConn) WriteTo(p []byte, _ net.Addr) (int, error) {
	select {
	case <-c.done:
		return 0, c.opError("write", net.ErrClosed)
	default:
	}

	if c.ch.BufferedAmount() > highWaterMark {
		c.mu.Lock()
		deadline := c.writeDeadline
		c.mu.Unlock()

		timeout, stop := deadlineTimer(deadline)
		defer stop()

		select {
		case <-c.drained:
		case <-c.done:
			return 0, c.opError("write", net.ErrClosed)
		case <-timeout:
			return 0, c.opError("write", os.ErrDeadlineExceeded)
		}
	}

	if err := c.ch.Send(p); err != nil {
		return 0, c.opError("write", err)
	}
	return len(p), nil
}

// Close unblocks pending reads and writes and runs the close hook once.
func (c *PacketConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		if c.onClose != nil {
			err = c.onClose()
		}
	})
	return err
}

func (c *PacketConn) LocalAddr() net.Addr  { return c.local }
func (c *PacketConn) RemoteAddr() net.Addr { return c.remote }

func (c *PacketConn) SetDeadline(t time.Time) error {
	c.mu.Lock()
	c.readDeadline, c.writeDeadline = t, t
	c.mu.Unlock()
	return nil
}

func (c *PacketConn) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	c.readDeadline = t
	c.mu.Unlock()
	return nil
}

func (c *PacketConn) SetWriteDeadline(t time.Time) error {
	c.mu.Lock()
	c.writeDeadline = t
	c.mu.Unlock()
	return nil
}

func (c *PacketConn) opError(op string, err error) error {
	return &net.OpError{Op: op, Net: c.local.Network(), Source: c.local, Addr: c.remote, Err: err}
}

// deadlineTimer returns a channel that fires at deadline, or nil (never
// fires) for the zero time.
func deadlineTimer(deadline time.Time) (<-chan time.Time, func()) {
	if deadline.IsZero() {
		return nil, func() {}
	}
	t := time.NewTimer(time.Until(deadline))
	return t.C, func() { t.Stop() }
}
