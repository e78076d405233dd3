package app

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/1ureka/rudp/internal/config"
	"github.com/1ureka/rudp/internal/rudp"
	"github.com/1ureka/rudp/internal/util"
)

// ReceiverOptions configures RunReceiver.
type ReceiverOptions struct {
	Config  config.Config
	Carrier Carrier

	// WebRTC only: signaling listen address and PIN (empty generates one).
	WSListen string
	PIN      string

	// Expected is the size of one transfer in bytes.
	Expected int

	// OnListen is called with the bound UDP address before accepting.
	OnListen func(net.Addr)
}

// RunReceiver orchestrates the receiver lifecycle:
//  1. Bind (UDP) or run signaling (WebRTC)
//  2. Accept the sender
//  3. Receive transfers, timing each one, until the sender closes
//
// It returns the per-run measurements. Idle receive timeouts are tolerated;
// an incomplete transfer is logged and not recorded.
func RunReceiver(ctx context.Context, opts ReceiverOptions) (*util.RunStats, error) {
	// ── 1. Socket ──────────────────────────────────────────────────────
	conn, err := listen(ctx, opts.Config, opts.Carrier, opts.WSListen, opts.PIN, opts.OnListen)
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}
	defer conn.Release()

	// ── 2. Handshake ───────────────────────────────────────────────────
	if err := withCancel(ctx, conn, conn.Accept); err != nil {
		return nil, fmt.Errorf("failed to accept: %w", err)
	}
	util.LogSuccess("accepted sender %s", conn.PeerAddr())

	// ── 3. Transfers ───────────────────────────────────────────────────
	stats := &util.RunStats{}
	for {
		var data []byte
		err := withCancel(ctx, conn, func() error {
			var err error
			data, err = conn.Receive(opts.Expected)
			return err
		})

		switch {
		case err == nil:
			st := conn.LastTransfer()
			stats.Add(len(data), st.Duration())
			util.LogInfo("run %d: received %d bytes in %d chunks (%d out of order)",
				len(stats.Runs()), len(data), st.Chunks, st.OutOfOrder)

		case errors.Is(err, rudp.ErrPeerClosed):
			util.LogInfo("sender closed the connection")
			return stats, nil

		case errors.Is(err, rudp.ErrTimeout) && len(data) == 0:
			util.LogDebug("no data yet, still waiting")

		case errors.Is(err, rudp.ErrTimeout):
			util.LogWarning("incomplete transfer: %d of %d bytes: %v", len(data), opts.Expected, err)

		default:
			return stats, err
		}
	}
}
