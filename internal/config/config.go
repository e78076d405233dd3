// Package config holds the connection configuration types.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/1ureka/rudp/internal/protocol"
)

// Role represents which side of the handshake a connection plays.
type Role string

const (
	RoleInitiator Role = "initiator"
	RoleResponder Role = "responder"
)

// Defaults applied by Default.
const (
	DefaultNetwork         = "udp"
	DefaultBindAddr        = "127.0.0.1"
	DefaultChunkSize       = 1024
	DefaultMaxTransferSize = 2 * 1024 * 1024
	DefaultReadBufferSize  = 4 * 1024 * 1024
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config stores every knob a connection accepts at open time.
type Config struct {
	Role Role

	Network  string // "udp", "udp4" or "udp6"
	BindAddr string // Responder: local address to bind
	BindPort int    // Responder: local port to bind, 0 picks one

	// ReceiveTimeout bounds every blocking read; 0 blocks indefinitely.
	ReceiveTimeout time.Duration
	// ChunkSize is the largest payload placed in one datagram.
	ChunkSize int
	// MaxTransferSize bounds the reassembly buffer of a single Receive.
	MaxTransferSize int
	// ReadBufferSize sets SO_RCVBUF on UDP sockets when positive.
	ReadBufferSize int
	// AckTransfers enables one ACK per completed transfer.
	AckTransfers bool
}

// Default returns the configuration used when no flags override it.
func Default(role Role) Config {
	return Config{
		Role:            role,
		Network:         DefaultNetwork,
		BindAddr:        DefaultBindAddr,
		ChunkSize:       DefaultChunkSize,
		MaxTransferSize: DefaultMaxTransferSize,
		ReadBufferSize:  DefaultReadBufferSize,
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch c.Role {
	case RoleInitiator, RoleResponder:
	default:
		return fmt.Errorf("%w: unknown role %q", ErrInvalidConfig, c.Role)
	}

	switch c.Network {
	case "udp", "udp4", "udp6":
	default:
		return fmt.Errorf("%w: unsupported network %q", ErrInvalidConfig, c.Network)
	}

	if c.BindPort < 0 || c.BindPort > 65535 {
		return fmt.Errorf("%w: bind port %d out of range (0~65535)", ErrInvalidConfig, c.BindPort)
	}
	if c.ReceiveTimeout < 0 {
		return fmt.Errorf("%w: negative receive timeout %s", ErrInvalidConfig, c.ReceiveTimeout)
	}
	if c.ChunkSize < 1 || c.ChunkSize > protocol.MaxPayloadSize {
		return fmt.Errorf("%w: chunk size %d out of range (1~%d)", ErrInvalidConfig, c.ChunkSize, protocol.MaxPayloadSize)
	}
	if c.MaxTransferSize < 1 {
		return fmt.Errorf("%w: max transfer size must be positive, got %d", ErrInvalidConfig, c.MaxTransferSize)
	}
	if c.ReadBufferSize < 0 {
		return fmt.Errorf("%w: negative read buffer size %d", ErrInvalidConfig, c.ReadBufferSize)
	}
	return nil
}
