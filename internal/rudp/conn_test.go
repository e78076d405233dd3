package rudp

import (
	"io"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/rudp/internal/config"
	"github.com/1ureka/rudp/internal/protocol"
	"github.com/1ureka/rudp/internal/util"
)

func TestMain(m *testing.M) {
	util.SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// tapConn wraps a PacketConn, recording every outgoing packet and optionally
// rewriting datagrams before they hit the wire.
type tapConn struct {
	net.PacketConn

	mu     sync.Mutex
	sent   []*protocol.Packet
	mutate func(pkt *protocol.Packet, datagram []byte)
}

func (t *tapConn) WriteTo(b []byte, addr net.Addr) (int, error) {
	pkt, err := protocol.Decode(b)
	if err == nil {
		t.mu.Lock()
		t.sent = append(t.sent, pkt)
		mutate := t.mutate
		t.mu.Unlock()

		if mutate != nil {
			b = append([]byte(nil), b...)
			mutate(pkt, b)
		}
	}
	return t.PacketConn.WriteTo(b, addr)
}

func (t *tapConn) packets() []*protocol.Packet {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*protocol.Packet(nil), t.sent...)
}

func (t *tapConn) flags() []protocol.Flags {
	var out []protocol.Flags
	for _, p := range t.packets() {
		out = append(out, p.Flags)
	}
	return out
}

func testConfig(role config.Role) config.Config {
	cfg := config.Default(role)
	cfg.ReceiveTimeout = 2 * time.Second
	cfg.ReadBufferSize = 0
	return cfg
}

// listenUDP opens a loopback UDP socket for use as a raw peer or carrier.
func listenUDP(t *testing.T) net.PacketConn {
	t.Helper()
	pc, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { pc.Close() })
	_ = pc.(*net.UDPConn).SetReadBuffer(1 << 20)
	return pc
}

// openTapped opens a Conn over a loopback socket wrapped in a tapConn.
func openTapped(t *testing.T, cfg config.Config) (*Conn, *tapConn) {
	t.Helper()
	tap := &tapConn{PacketConn: listenUDP(t)}
	c, err := OpenWith(tap, cfg)
	require.NoError(t, err)
	t.Cleanup(c.Release)
	return c, tap
}

func port(c *Conn) int {
	return c.LocalAddr().(*net.UDPAddr).Port
}

// connectPair runs Accept and Connect concurrently and returns both ends
// ESTABLISHED.
func connectPair(t *testing.T, icfg, rcfg config.Config) (ini, res *Conn, iniTap, resTap *tapConn) {
	t.Helper()
	res, resTap = openTapped(t, rcfg)
	ini, iniTap = openTapped(t, icfg)

	errCh := make(chan error, 1)
	go func() { errCh <- res.Accept() }()

	require.NoError(t, ini.Connect("127.0.0.1", port(res)))
	require.NoError(t, <-errCh)
	return ini, res, iniTap, resTap
}

// rawSend encodes pkt and writes it from pc to addr.
func rawSend(t *testing.T, pc net.PacketConn, addr net.Addr, pkt *protocol.Packet) {
	t.Helper()
	buf, err := protocol.Encode(pkt)
	require.NoError(t, err)
	_, err = pc.WriteTo(buf, addr)
	require.NoError(t, err)
}

// rawRecv reads and decodes one packet on pc.
func rawRecv(t *testing.T, pc net.PacketConn) (*protocol.Packet, net.Addr) {
	t.Helper()
	buf := make([]byte, protocol.MaxDatagramSize)
	require.NoError(t, pc.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, addr, err := pc.ReadFrom(buf)
	require.NoError(t, err)
	pkt, err := protocol.Decode(buf[:n])
	require.NoError(t, err)
	return pkt, addr
}

// ---------------------------------------------------------------------------
// Open
// ---------------------------------------------------------------------------

func TestOpen(t *testing.T) {
	t.Run("responder binds and listens", func(t *testing.T) {
		cfg := testConfig(config.RoleResponder)
		c, err := Open(cfg)
		require.NoError(t, err)
		defer c.Release()

		assert.Equal(t, StateListen, c.State())
		assert.Equal(t, config.RoleResponder, c.Role())
		assert.NotZero(t, port(c))
		assert.Nil(t, c.PeerAddr())
	})

	t.Run("initiator starts closed", func(t *testing.T) {
		c, err := Open(testConfig(config.RoleInitiator))
		require.NoError(t, err)
		defer c.Release()

		assert.Equal(t, StateClosed, c.State())
	})

	t.Run("invalid config", func(t *testing.T) {
		cfg := testConfig(config.RoleInitiator)
		cfg.ChunkSize = 0
		_, err := Open(cfg)
		assert.ErrorIs(t, err, config.ErrInvalidConfig)
	})

	t.Run("port in use", func(t *testing.T) {
		first, err := Open(testConfig(config.RoleResponder))
		require.NoError(t, err)
		defer first.Release()

		cfg := testConfig(config.RoleResponder)
		cfg.BindPort = port(first)
		_, err = Open(cfg)
		assert.ErrorIs(t, err, ErrSocket)
	})
}

// ---------------------------------------------------------------------------
// Handshake
// ---------------------------------------------------------------------------

func TestHandshake(t *testing.T) {
	ini, res, iniTap, resTap := connectPair(t, testConfig(config.RoleInitiator), testConfig(config.RoleResponder))

	assert.Equal(t, StateEstablished, ini.State())
	assert.Equal(t, StateEstablished, res.State())
	assert.Equal(t, port(ini), res.PeerAddr().(*net.UDPAddr).Port)
	assert.Equal(t, port(res), ini.PeerAddr().(*net.UDPAddr).Port)

	assert.Equal(t, []protocol.Flags{protocol.FlagSYN, protocol.FlagACK}, iniTap.flags())
	assert.Equal(t, []protocol.Flags{protocol.FlagSYNACK}, resTap.flags())

	for _, p := range append(iniTap.packets(), resTap.packets()...) {
		assert.Equal(t, uint16(0), p.Checksum, "control packet %s", p.Flags)
		assert.Equal(t, uint16(protocol.HeaderSize), p.Length, "control packet %s", p.Flags)
	}
}

// TestConnectUnexpectedReply substitutes ACK for SYN_ACK on the responder
// side.
func TestConnectUnexpectedReply(t *testing.T) {
	peer := listenUDP(t)
	ini, _ := openTapped(t, testConfig(config.RoleInitiator))

	go func() {
		pkt, addr := rawRecv(t, peer)
		if pkt.Flags == protocol.FlagSYN {
			rawSend(t, peer, addr, protocol.NewControl(protocol.FlagACK))
		}
	}()

	err := ini.Connect("127.0.0.1", peer.LocalAddr().(*net.UDPAddr).Port)
	assert.ErrorIs(t, err, ErrUnexpectedPacket)
	assert.Equal(t, StateSynSent, ini.State())

	// A failed handshake is terminal.
	err = ini.Connect("127.0.0.1", peer.LocalAddr().(*net.UDPAddr).Port)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestConnectTimeout(t *testing.T) {
	silent := listenUDP(t)
	cfg := testConfig(config.RoleInitiator)
	cfg.ReceiveTimeout = 100 * time.Millisecond
	ini, _ := openTapped(t, cfg)

	start := time.Now()
	err := ini.Connect("127.0.0.1", silent.LocalAddr().(*net.UDPAddr).Port)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestConnectResolveFailure(t *testing.T) {
	ini, tap := openTapped(t, testConfig(config.RoleInitiator))

	err := ini.Connect("127.0.0.1", -1)
	assert.ErrorIs(t, err, ErrSocket)
	assert.Empty(t, tap.packets())

	assert.ErrorIs(t, ini.ConnectAddr(nil), ErrSocket)
}

func TestAcceptUnexpectedPacket(t *testing.T) {
	testCases := []struct {
		name  string
		first protocol.Flags
		final protocol.Flags
	}{
		{"ACK instead of SYN", protocol.FlagACK, 0},
		{"FIN instead of SYN", protocol.FlagFIN, 0},
		{"SYN_ACK instead of final ACK", protocol.FlagSYN, protocol.FlagSYNACK},
		{"SYN instead of final ACK", protocol.FlagSYN, protocol.FlagSYN},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res, _ := openTapped(t, testConfig(config.RoleResponder))
			peer := listenUDP(t)

			errCh := make(chan error, 1)
			go func() { errCh <- res.Accept() }()

			rawSend(t, peer, res.LocalAddr(), protocol.NewControl(tc.first))
			if tc.final != 0 {
				reply, _ := rawRecv(t, peer)
				require.Equal(t, protocol.FlagSYNACK, reply.Flags)
				rawSend(t, peer, res.LocalAddr(), protocol.NewControl(tc.final))
			}

			assert.ErrorIs(t, <-errCh, ErrUnexpectedPacket)
			assert.NotEqual(t, StateEstablished, res.State())
		})
	}
}

func TestAcceptTimeout(t *testing.T) {
	cfg := testConfig(config.RoleResponder)
	cfg.ReceiveTimeout = 50 * time.Millisecond
	res, _ := openTapped(t, cfg)

	assert.ErrorIs(t, res.Accept(), ErrTimeout)
}

// TestInvalidState verifies that operations outside their legal state fail
// before any I/O.
func TestInvalidState(t *testing.T) {
	t.Run("connect on responder", func(t *testing.T) {
		res, tap := openTapped(t, testConfig(config.RoleResponder))
		assert.ErrorIs(t, res.Connect("127.0.0.1", 9), ErrInvalidState)
		assert.Empty(t, tap.packets())
	})

	t.Run("accept on initiator", func(t *testing.T) {
		ini, tap := openTapped(t, testConfig(config.RoleInitiator))
		assert.ErrorIs(t, ini.Accept(), ErrInvalidState)
		assert.Empty(t, tap.packets())
	})

	t.Run("before handshake", func(t *testing.T) {
		ini, tap := openTapped(t, testConfig(config.RoleInitiator))

		_, err := ini.Send([]byte("data"))
		assert.ErrorIs(t, err, ErrInvalidState)
		_, err = ini.Receive(10)
		assert.ErrorIs(t, err, ErrInvalidState)
		assert.ErrorIs(t, ini.Close(), ErrInvalidState)
		assert.Empty(t, tap.packets())
	})

	t.Run("after handshake", func(t *testing.T) {
		ini, res, iniTap, resTap := connectPair(t, testConfig(config.RoleInitiator), testConfig(config.RoleResponder))
		before := len(iniTap.packets()) + len(resTap.packets())

		assert.ErrorIs(t, res.Accept(), ErrInvalidState)
		assert.ErrorIs(t, ini.Connect("127.0.0.1", port(res)), ErrInvalidState)
		assert.Equal(t, before, len(iniTap.packets())+len(resTap.packets()))
	})

	t.Run("after release", func(t *testing.T) {
		ini, res, _, _ := connectPair(t, testConfig(config.RoleInitiator), testConfig(config.RoleResponder))
		ini.Release()
		res.Release()

		_, err := ini.Send([]byte("data"))
		assert.ErrorIs(t, err, ErrInvalidState)
		_, err = res.Receive(10)
		assert.ErrorIs(t, err, ErrInvalidState)
		assert.ErrorIs(t, ini.Close(), ErrInvalidState)
		assert.Equal(t, StateClosed, ini.State())
	})
}

// ---------------------------------------------------------------------------
// Teardown
// ---------------------------------------------------------------------------

// TestCloseTwice closes from the initiator while the responder is receiving,
// then closes again.
func TestCloseTwice(t *testing.T) {
	ini, res, iniTap, resTap := connectPair(t, testConfig(config.RoleInitiator), testConfig(config.RoleResponder))

	type result struct {
		data []byte
		err  error
	}
	resCh := make(chan result, 1)
	go func() {
		data, err := res.Receive(1024)
		resCh <- result{data, err}
	}()

	require.NoError(t, ini.Close())
	assert.Equal(t, StateClosed, ini.State())

	r := <-resCh
	assert.ErrorIs(t, r.err, ErrPeerClosed)
	assert.Empty(t, r.data)
	assert.Equal(t, StateClosed, res.State())

	sent := len(iniTap.packets())
	assert.ErrorIs(t, ini.Close(), ErrInvalidState)
	assert.Equal(t, sent, len(iniTap.packets()))

	_, err := res.Receive(1024)
	assert.ErrorIs(t, err, ErrPeerClosed)

	assert.Equal(t, []protocol.Flags{protocol.FlagSYN, protocol.FlagACK, protocol.FlagFIN, protocol.FlagACK}, iniTap.flags())
	assert.Equal(t, []protocol.Flags{protocol.FlagSYNACK, protocol.FlagFINACK}, resTap.flags())
}

// TestResponderCloses runs the teardown in the other direction.
func TestResponderCloses(t *testing.T) {
	ini, res, _, _ := connectPair(t, testConfig(config.RoleInitiator), testConfig(config.RoleResponder))

	errCh := make(chan error, 1)
	go func() {
		_, err := ini.Receive(1024)
		errCh <- err
	}()

	require.NoError(t, res.Close())
	assert.ErrorIs(t, <-errCh, ErrPeerClosed)
	assert.Equal(t, StateClosed, ini.State())
	assert.Equal(t, StateClosed, res.State())
}

func TestCloseUnexpectedReply(t *testing.T) {
	ini, res, _, _ := connectPair(t, testConfig(config.RoleInitiator), testConfig(config.RoleResponder))

	// The responder answers FIN with a bare ACK.
	go func() {
		if pkt, _, err := res.readPacket(); err == nil && pkt.Flags == protocol.FlagFIN {
			res.writeControl(protocol.FlagACK)
		}
	}()

	assert.ErrorIs(t, ini.Close(), ErrUnexpectedPacket)
	assert.Equal(t, StateFinSent, ini.State())
	ini.Release()
	assert.Equal(t, StateClosed, ini.State())
}

func TestReleaseIdempotent(t *testing.T) {
	ini, res, _, _ := connectPair(t, testConfig(config.RoleInitiator), testConfig(config.RoleResponder))

	assert.NotPanics(t, func() {
		ini.Release()
		ini.Release()
	})
	assert.Equal(t, StateClosed, ini.State())

	// Release from another goroutine unblocks a pending receive.
	cfg := testConfig(config.RoleResponder)
	cfg.ReceiveTimeout = 0
	res.cfg = cfg

	errCh := make(chan error, 1)
	go func() {
		_, err := res.Receive(1024)
		errCh <- err
	}()

	time.Sleep(50 * time.Millisecond)
	res.Release()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrSocket)
	case <-time.After(2 * time.Second):
		t.Fatal("Receive did not return after Release")
	}
}

// TestResponderIgnoresStrangers verifies that once accepted, datagrams from
// other addresses never reach the transfer.
func TestResponderIgnoresStrangers(t *testing.T) {
	ini, res, _, _ := connectPair(t, testConfig(config.RoleInitiator), testConfig(config.RoleResponder))

	stranger := listenUDP(t)
	rawSend(t, stranger, res.LocalAddr(), protocol.NewData(0, []byte("intruder")))

	want := []byte("from the real peer")
	_, err := ini.Send(want)
	require.NoError(t, err)

	got, err := res.Receive(len(want))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

// TestInitiatorIgnoresStrangers is the initiator side of the peer filter:
// neither stray data nor a stray FIN affects the connection.
func TestInitiatorIgnoresStrangers(t *testing.T) {
	ini, res, _, _ := connectPair(t, testConfig(config.RoleInitiator), testConfig(config.RoleResponder))

	stranger := listenUDP(t)
	rawSend(t, stranger, ini.LocalAddr(), protocol.NewData(0, []byte("intruder")))
	rawSend(t, stranger, ini.LocalAddr(), protocol.NewControl(protocol.FlagFIN))

	want := []byte("from the real peer")
	_, err := res.Send(want)
	require.NoError(t, err)

	got, err := ini.Receive(len(want))
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, StateEstablished, ini.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "ESTABLISHED", StateEstablished.String())
	assert.Equal(t, "FIN_RECEIVED", StateFinReceived.String())
	assert.Equal(t, "State(42)", State(42).String())
}
