package signaling

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"

	"github.com/1ureka/rudp/internal/util"
)

// PINLength is the number of digits in a generated PIN.
const PINLength = 6

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server is the responder-side WebSocket endpoint. It accepts exactly one
// client presenting the right PIN.
type Server struct {
	pin      string
	listener net.Listener
	httpSrv  *http.Server
	connCh   chan *websocket.Conn
}

// Listen starts a signaling server on listenAddr (":0" picks a port). An
// empty pin is replaced by a random one.
func Listen(listenAddr, pin string) (*Server, error) {
	if pin == "" {
		pin = generatePIN(PINLength)
	}

	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to start WS server: %w", err)
	}

	s := &Server{
		pin:      pin,
		listener: listener,
		connCh:   make(chan *websocket.Conn, 1),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	s.httpSrv = &http.Server{Handler: mux}

	go func() {
		if err := s.httpSrv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			util.LogDebug("WS server stopped: %v", err)
		}
	}()

	return s, nil
}

// Port returns the TCP port the server listens on.
func (s *Server) Port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

// PIN returns the PIN clients must present.
func (s *Server) PIN() string { return s.pin }

// URL returns the WebSocket URL for host, PIN included.
func (s *Server) URL(host string) string {
	u := url.URL{
		Scheme:   "ws",
		Host:     net.JoinHostPort(host, fmt.Sprint(s.Port())),
		Path:     "/ws",
		RawQuery: url.Values{"pin": {s.pin}}.Encode(),
	}
	return u.String()
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	pin := r.URL.Query().Get("pin")
	if pin != s.pin {
		util.LogWarning("rejected signaling client %s: invalid PIN", r.RemoteAddr)
		http.Error(w, "Invalid PIN", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	// Only accept the first client.
	select {
	case s.connCh <- conn:
		util.LogDebug("signaling client connected: %s", r.RemoteAddr)
	default:
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "already connected"))
		conn.Close()
	}
}

// waitForClient blocks until a client connects or ctx is cancelled.
func (s *Server) waitForClient(ctx context.Context) (*websocket.Conn, error) {
	select {
	case conn := <-s.connCh:
		return conn, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close shuts the listener down. Established WebSockets are not affected.
func (s *Server) Close() error {
	return s.httpSrv.Close()
}

// connect dials the given WebSocket URL and returns the connection.
func connect(ctx context.Context, wsURL string) (*websocket.Conn, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("%w: %s", ErrInvalidPIN, wsURL)
		}
		return nil, fmt.Errorf("failed to connect to WS server: %w", err)
	}
	return conn, nil
}

// generatePIN returns a random numeric PIN of the specified length.
func generatePIN(length int) string {
	digits := make([]byte, length)
	for i := range digits {
		n, _ := rand.Int(rand.Reader, big.NewInt(10))
		digits[i] = byte('0') + byte(n.Int64())
	}
	return string(digits)
}
