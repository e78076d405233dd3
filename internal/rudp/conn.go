// Package rudp implements a connection-oriented reliability layer over a
// datagram socket: a three-way handshake, checksum-protected chunked
// transfers and a FIN/FIN_ACK/ACK teardown.
//
// A Conn is driven synchronously by one goroutine. There is no
// retransmission: a lost or corrupted chunk surfaces as a receive timeout.
// The transport may reorder datagrams and the receiver does not restore the
// order; payload is reassembled in arrival order and sequence numbers are
// only used for diagnostics.
package rudp

import (
	"fmt"
	"net"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/1ureka/rudp/internal/config"
	"github.com/1ureka/rudp/internal/protocol"
	"github.com/1ureka/rudp/internal/util"
)

// Conn is one RUDP connection. It owns its datagram socket and talks to
// exactly one peer.
type Conn struct {
	// Identity
	id  uint32
	cfg config.Config

	// Transport
	pc   net.PacketConn
	peer net.Addr
	rbuf []byte // datagram read buffer, reused across reads
	last TransferStats

	// Lifecycle
	state       State
	peerClosed  bool
	released    atomic.Bool
	releaseOnce sync.Once
}

// Open allocates a UDP socket for cfg.Role. Responders bind to
// cfg.BindAddr:cfg.BindPort; initiators get an ephemeral local port.
func Open(cfg config.Config) (*Conn, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	laddr := ":0"
	if cfg.Role == config.RoleResponder {
		laddr = net.JoinHostPort(cfg.BindAddr, strconv.Itoa(cfg.BindPort))
	}

	pc, err := net.ListenPacket(cfg.Network, laddr)
	if err != nil {
		return nil, fmt.Errorf("%w: listen %s: %w", ErrSocket, laddr, err)
	}

	if uc, ok := pc.(*net.UDPConn); ok && cfg.ReadBufferSize > 0 {
		if err := uc.SetReadBuffer(cfg.ReadBufferSize); err != nil {
			util.LogWarning("failed to set read buffer to %d bytes: %v", cfg.ReadBufferSize, err)
		}
	}

	c, err := OpenWith(pc, cfg)
	if err != nil {
		pc.Close()
		return nil, err
	}
	return c, nil
}

// OpenWith wraps an existing datagram carrier. The Conn takes ownership of pc
// and closes it on Release.
func OpenWith(pc net.PacketConn, cfg config.Config) (*Conn, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Conn{
		id:    util.ConnID(pc.LocalAddr(), string(cfg.Role)),
		cfg:   cfg,
		pc:    pc,
		rbuf:  make([]byte, protocol.MaxDatagramSize),
		state: StateClosed,
	}
	if cfg.Role == config.RoleResponder {
		c.state = StateListen
	}

	util.LogDebug("[%08x] opened %s on %s (%s)", c.id, cfg.Role, pc.LocalAddr(), c.state)
	return c, nil
}

// ID returns the identifier used to tag this connection's log lines.
func (c *Conn) ID() uint32 { return c.id }

// Role returns the connection's role.
func (c *Conn) Role() config.Role { return c.cfg.Role }

// LocalAddr returns the local socket address.
func (c *Conn) LocalAddr() net.Addr { return c.pc.LocalAddr() }

// PeerAddr returns the peer address, or nil before the handshake.
func (c *Conn) PeerAddr() net.Addr { return c.peer }

// State returns the current lifecycle state. A released connection is
// always CLOSED.
func (c *Conn) State() State {
	if c.released.Load() {
		return StateClosed
	}
	return c.state
}

// Release closes the socket regardless of state. It is idempotent and may be
// called from another goroutine to unblock a pending read.
func (c *Conn) Release() {
	c.releaseOnce.Do(func() {
		c.released.Store(true)
		if err := c.pc.Close(); err != nil {
			util.LogDebug("[%08x] socket close: %v", c.id, err)
		}
		util.LogDebug("[%08x] released", c.id)
	})
}

// ---------------------------------------------------------------------------
// Internal helpers
// ---------------------------------------------------------------------------

// require fails with ErrInvalidState unless the connection is live, has the
// given role (empty matches any) and is in one of states.
func (c *Conn) require(op string, role config.Role, states ...State) error {
	if c.released.Load() {
		return fmt.Errorf("%w: %s on a released connection", ErrInvalidState, op)
	}
	if role != "" && c.cfg.Role != role {
		return fmt.Errorf("%w: %s requires the %s role, connection is %s", ErrInvalidState, op, role, c.cfg.Role)
	}
	if !slices.Contains(states, c.state) {
		return fmt.Errorf("%w: %s in state %s", ErrInvalidState, op, c.state)
	}
	return nil
}

func (c *Conn) setState(s State) {
	util.LogDebug("[%08x] %s -> %s", c.id, c.state, s)
	c.state = s
}

// writePacket encodes pkt and sends it to the peer.
func (c *Conn) writePacket(pkt *protocol.Packet) error {
	buf, err := protocol.Encode(pkt)
	if err != nil {
		return err
	}

	if _, err := c.pc.WriteTo(buf, c.peer); err != nil {
		return fmt.Errorf("%w: write to %s: %w", ErrSocket, c.peer, err)
	}

	util.Stats.AddSent(len(buf))
	util.LogDebug("[%08x] sent %s seq=%d ack=%d len=%d", c.id, pkt.Flags, pkt.SeqNum, pkt.AckNum, pkt.Length)
	return nil
}

func (c *Conn) writeControl(flags protocol.Flags) error {
	return c.writePacket(protocol.NewControl(flags))
}

// readPacket blocks for the next decodable datagram. Malformed datagrams,
// and once a peer is known datagrams from anyone else, are skipped. The
// receive timeout covers the whole call.
func (c *Conn) readPacket() (*protocol.Packet, net.Addr, error) {
	var deadline time.Time
	if c.cfg.ReceiveTimeout > 0 {
		deadline = time.Now().Add(c.cfg.ReceiveTimeout)
	}
	if err := c.pc.SetReadDeadline(deadline); err != nil {
		return nil, nil, fmt.Errorf("%w: set read deadline: %w", ErrSocket, err)
	}

	for {
		n, addr, err := c.pc.ReadFrom(c.rbuf)
		if err != nil {
			if isTimeout(err) {
				return nil, nil, fmt.Errorf("%w (%s)", ErrTimeout, c.cfg.ReceiveTimeout)
			}
			return nil, nil, fmt.Errorf("%w: read: %w", ErrSocket, err)
		}
		util.Stats.AddRecv(n)

		if c.peer != nil && !sameAddr(addr, c.peer) {
			util.LogDebug("[%08x] ignoring datagram from %s, peer is %s", c.id, addr, c.peer)
			continue
		}

		pkt, err := protocol.Decode(c.rbuf[:n])
		if err != nil {
			util.LogWarning("[%08x] dropping malformed datagram from %s: %v", c.id, addr, err)
			continue
		}

		util.LogDebug("[%08x] recv %s seq=%d ack=%d len=%d", c.id, pkt.Flags, pkt.SeqNum, pkt.AckNum, pkt.Length)
		return pkt, addr, nil
	}
}

// expect reads one packet and requires its flags to equal want.
func (c *Conn) expect(want protocol.Flags) (*protocol.Packet, error) {
	pkt, _, err := c.readPacket()
	if err != nil {
		return nil, err
	}
	if pkt.Flags != want {
		return nil, fmt.Errorf("%w: got %s, want %s", ErrUnexpectedPacket, pkt.Flags, want)
	}
	return pkt, nil
}

func sameAddr(a, b net.Addr) bool {
	return a.Network() == b.Network() && a.String() == b.String()
}
