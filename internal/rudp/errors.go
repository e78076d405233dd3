package rudp

import (
	"errors"
	"net"
	"os"
)

// Error kinds returned by Conn operations. Callers match them with errors.Is;
// the returned errors wrap them with step details.
var (
	// ErrSocket wraps failures of the underlying datagram socket.
	ErrSocket = errors.New("socket error")
	// ErrTimeout means no datagram arrived within the receive timeout.
	ErrTimeout = errors.New("timed out waiting for datagram")
	// ErrChecksumMismatch means corrupted data packets were dropped. It only
	// reaches the caller together with ErrTimeout.
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrUnexpectedPacket means the flags did not match the protocol step.
	ErrUnexpectedPacket = errors.New("unexpected packet")
	// ErrInvalidState means the operation is not legal in the current state;
	// no I/O was performed.
	ErrInvalidState = errors.New("invalid connection state")
	// ErrPeerClosed means the peer tore the connection down.
	ErrPeerClosed = errors.New("peer closed the connection")
)

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
