// Package app contains the top-level orchestration for the sender and
// receiver programs.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/1ureka/rudp/internal/config"
	"github.com/1ureka/rudp/internal/rudp"
	"github.com/1ureka/rudp/internal/signaling"
)

// Carrier selects the datagram socket a connection runs on.
type Carrier string

const (
	CarrierUDP    Carrier = "udp"
	CarrierWebRTC Carrier = "webrtc"
)

// ErrUnknownCarrier is returned by ParseCarrier.
var ErrUnknownCarrier = errors.New("unknown carrier")

// ParseCarrier maps a flag value onto a Carrier.
func ParseCarrier(s string) (Carrier, error) {
	switch c := Carrier(strings.ToLower(strings.TrimSpace(s))); c {
	case CarrierUDP, CarrierWebRTC:
		return c, nil
	case "":
		return CarrierUDP, nil
	default:
		return "", fmt.Errorf("%w: %q (want udp or webrtc)", ErrUnknownCarrier, s)
	}
}

// Target is where the sender connects: ip:port over UDP, or the
// responder's signaling URL over WebRTC.
type Target struct {
	IP    string
	Port  int
	WSURL string
}

// dial opens an initiator connection over the carrier and runs the
// handshake. Cancelling ctx releases the connection.
func dial(ctx context.Context, cfg config.Config, carrier Carrier, target Target) (*rudp.Conn, error) {
	cfg.Role = config.RoleInitiator

	switch carrier {
	case CarrierUDP:
		conn, err := rudp.Open(cfg)
		if err != nil {
			return nil, err
		}
		if err := withCancel(ctx, conn, func() error { return conn.Connect(target.IP, target.Port) }); err != nil {
			conn.Release()
			return nil, err
		}
		return conn, nil

	case CarrierWebRTC:
		tr, err := signaling.EstablishAsInitiator(ctx, target.WSURL)
		if err != nil {
			return nil, err
		}
		pc := tr.PacketConn()
		conn, err := rudp.OpenWith(pc, cfg)
		if err != nil {
			tr.Close()
			return nil, err
		}
		if err := withCancel(ctx, conn, func() error { return conn.ConnectAddr(pc.RemoteAddr()) }); err != nil {
			conn.Release()
			return nil, err
		}
		return conn, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCarrier, carrier)
	}
}

// listen opens a responder connection over the carrier. For UDP, onListen
// receives the bound address before the handshake starts.
func listen(ctx context.Context, cfg config.Config, carrier Carrier, wsListen, pin string, onListen func(net.Addr)) (*rudp.Conn, error) {
	cfg.Role = config.RoleResponder

	switch carrier {
	case CarrierUDP:
		conn, err := rudp.Open(cfg)
		if err != nil {
			return nil, err
		}
		if onListen != nil {
			onListen(conn.LocalAddr())
		}
		return conn, nil

	case CarrierWebRTC:
		tr, err := signaling.EstablishAsResponder(ctx, wsListen, pin)
		if err != nil {
			return nil, err
		}
		conn, err := rudp.OpenWith(tr.PacketConn(), cfg)
		if err != nil {
			tr.Close()
			return nil, err
		}
		return conn, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCarrier, carrier)
	}
}

// withCancel runs a blocking connection step, releasing conn if ctx is
// cancelled meanwhile. A step cut short that way reports ctx.Err().
func withCancel(ctx context.Context, conn *rudp.Conn, step func() error) error {
	stop := context.AfterFunc(ctx, conn.Release)
	defer stop()

	err := step()
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
