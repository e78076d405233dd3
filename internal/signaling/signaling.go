package signaling

import (
	"context"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/pterm/pterm"

	"github.com/1ureka/rudp/internal/transport"
	"github.com/1ureka/rudp/internal/util"
)

// ErrInvalidPIN means the signaling server refused the client's PIN.
var ErrInvalidPIN = errors.New("signaling server rejected the PIN")

// EstablishAsResponder executes the full responder-side signaling flow:
//  1. Start a WS server on listenAddr
//  2. Print the port and PIN
//  3. Wait for the initiator to connect
//  4. Create a Transport and send the Offer
//  5. Exchange answer and ICE candidates until the DataChannel opens
//  6. Close the WS server and connection
func EstablishAsResponder(ctx context.Context, listenAddr, pin string) (*transport.Transport, error) {
	srv, err := Listen(listenAddr, pin)
	if err != nil {
		return nil, err
	}
	defer srv.Close()

	pterm.DefaultBox.WithTitle("WebSocket Signaling").Println(
		fmt.Sprintf("Port : %d\nPIN  : %s\nURL  : %s", srv.Port(), srv.PIN(), srv.URL("<host>")))
	util.LogInfo("waiting for the initiator to connect")

	return srv.Establish(ctx)
}

// Establish waits for one client and runs the offering side of the
// exchange on it.
func (s *Server) Establish(ctx context.Context) (*transport.Transport, error) {
	wsConn, err := s.waitForClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to wait for client: %w", err)
	}
	defer wsConn.Close()
	util.LogInfo("signaling client connected")

	return exchange(ctx, wsConn, true)
}

// EstablishAsInitiator executes the full initiator-side signaling flow:
//  1. Connect to the responder's WS server
//  2. Create a Transport
//  3. Answer the Offer and exchange ICE candidates
//  4. Wait for the DataChannel to open, then close the WS connection
func EstablishAsInitiator(ctx context.Context, wsURL string) (*transport.Transport, error) {
	util.LogInfo("connecting to signaling server...")
	wsConn, err := connect(ctx, wsURL)
	if err != nil {
		return nil, err
	}
	defer wsConn.Close()
	util.LogDebug("WS connected: %s", wsURL)

	return exchange(ctx, wsConn, false)
}

// exchange creates a Transport and trades SDP/ICE over wsConn until the
// DataChannel opens. The offering side sends the Offer first.
func exchange(ctx context.Context, wsConn *websocket.Conn, offer bool) (*transport.Transport, error) {
	tr, err := transport.NewTransport(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Transport: %w", err)
	}

	sess := newSession(tr, wsConn)

	// Trickle ICE: forward every local candidate.
	tr.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		if err := sess.candidate(c.ToJSON()); err != nil {
			util.LogDebug("failed to send ICE candidate: %v", err)
		}
	})

	// Exits when wsConn is closed by the caller's defer.
	errCh := make(chan error, 1)
	go func() {
		errCh <- sess.run()
	}()

	if offer {
		if err := sess.offer(); err != nil {
			tr.Close()
			return nil, fmt.Errorf("failed to send Offer: %w", err)
		}
	}

	select {
	case <-tr.Ready():
		util.LogSuccess("WebRTC DataChannel established, closing WS")
		return tr, nil

	case err := <-errCh:
		// The peer may close the WS right after the channel opened.
		select {
		case <-tr.Ready():
			return tr, nil
		default:
		}
		tr.Close()
		return nil, fmt.Errorf("signaling failed: %w", err)

	case <-ctx.Done():
		tr.Close()
		return nil, ctx.Err()
	}
}
