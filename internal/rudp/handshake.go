package rudp

import (
	"fmt"
	"net"
	"strconv"

	"github.com/1ureka/rudp/internal/config"
	"github.com/1ureka/rudp/internal/protocol"
	"github.com/1ureka/rudp/internal/util"
)

// Connect runs the initiator handshake against ip:port:
// SYN → SYN_ACK → ACK. It never retries; a lost packet surfaces as
// ErrTimeout and a wrong reply as ErrUnexpectedPacket.
func (c *Conn) Connect(ip string, port int) error {
	if err := c.require("connect", config.RoleInitiator, StateClosed); err != nil {
		return err
	}

	addr, err := net.ResolveUDPAddr(c.cfg.Network, net.JoinHostPort(ip, strconv.Itoa(port)))
	if err != nil {
		return fmt.Errorf("%w: resolve %s:%d: %w", ErrSocket, ip, port, err)
	}
	return c.connect(addr)
}

// ConnectAddr is Connect for an already resolved address, e.g. the synthetic
// peer address of a non-UDP carrier.
func (c *Conn) ConnectAddr(addr net.Addr) error {
	if err := c.require("connect", config.RoleInitiator, StateClosed); err != nil {
		return err
	}
	if addr == nil {
		return fmt.Errorf("%w: connect: nil peer address", ErrSocket)
	}
	return c.connect(addr)
}

func (c *Conn) connect(addr net.Addr) error {
	c.peer = addr

	if err := c.writeControl(protocol.FlagSYN); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	c.setState(StateSynSent)

	if _, err := c.expect(protocol.FlagSYNACK); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	if err := c.writeControl(protocol.FlagACK); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	c.setState(StateEstablished)

	util.LogDebug("[%08x] connected to %s", c.id, addr)
	return nil
}

// Accept runs the responder handshake: it waits for a SYN, fixes the peer to
// the SYN's source address, replies SYN_ACK and waits for the final ACK.
func (c *Conn) Accept() error {
	if err := c.require("accept", config.RoleResponder, StateListen); err != nil {
		return err
	}

	pkt, addr, err := c.readPacket()
	if err != nil {
		return fmt.Errorf("accept: %w", err)
	}
	if pkt.Flags != protocol.FlagSYN {
		return fmt.Errorf("accept: %w: got %s from %s, want %s", ErrUnexpectedPacket, pkt.Flags, addr, protocol.FlagSYN)
	}

	c.peer = addr
	c.setState(StateSynReceived)

	if err := c.writeControl(protocol.FlagSYNACK); err != nil {
		return fmt.Errorf("accept: %w", err)
	}

	if _, err := c.expect(protocol.FlagACK); err != nil {
		return fmt.Errorf("accept: %w", err)
	}
	c.setState(StateEstablished)

	util.LogDebug("[%08x] accepted %s", c.id, addr)
	return nil
}

// Close runs the active teardown (FIN → FIN_ACK → ACK) and releases the
// socket. Closing a connection that is not ESTABLISHED, including a second
// Close, fails with ErrInvalidState without touching the socket. On any other
// failure the socket stays open; call Release.
func (c *Conn) Close() error {
	if err := c.require("close", "", StateEstablished); err != nil {
		return err
	}

	if err := c.writeControl(protocol.FlagFIN); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	c.setState(StateFinSent)

	if _, err := c.expect(protocol.FlagFINACK); err != nil {
		return fmt.Errorf("close: %w", err)
	}

	if err := c.writeControl(protocol.FlagACK); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	c.setState(StateClosed)

	c.Release()
	return nil
}

// passiveClose answers a FIN observed by Receive: FIN_ACK, then the final
// ACK, then release.
func (c *Conn) passiveClose() error {
	c.peerClosed = true
	c.setState(StateFinReceived)

	if err := c.writeControl(protocol.FlagFINACK); err != nil {
		return fmt.Errorf("teardown: %w", err)
	}

	if _, err := c.expect(protocol.FlagACK); err != nil {
		return fmt.Errorf("teardown: %w", err)
	}
	c.setState(StateClosed)

	c.Release()
	return nil
}
