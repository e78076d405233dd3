package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/1ureka/rudp/internal/config"
	"github.com/1ureka/rudp/internal/util"
)

// SenderOptions configures RunSender.
type SenderOptions struct {
	Config  config.Config
	Carrier Carrier
	Target  Target
	File    string

	// Runs is the number of transfers. When 0, Confirm is asked after each
	// run and sending stops on false (or when Confirm is nil).
	Runs    int
	Confirm func(run int) bool
}

// RunSender orchestrates the sender lifecycle:
//  1. Read the payload file
//  2. Connect over the chosen carrier
//  3. Send the payload once per run, waiting for the receiver's ACK
//  4. Close the connection
func RunSender(ctx context.Context, opts SenderOptions) error {
	// ── 1. Payload ─────────────────────────────────────────────────────
	data, err := os.ReadFile(opts.File)
	if err != nil {
		return fmt.Errorf("failed to read payload: %w", err)
	}
	if len(data) > opts.Config.MaxTransferSize {
		util.LogWarning("payload is %d bytes, receivers cap transfers at %d by default", len(data), opts.Config.MaxTransferSize)
	}
	util.LogInfo("loaded %s (%d bytes)", opts.File, len(data))

	// ── 2. Connect ─────────────────────────────────────────────────────
	conn, err := dial(ctx, opts.Config, opts.Carrier, opts.Target)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.Release()
	util.LogSuccess("connected to %s", conn.PeerAddr())

	// ── 3. Transfers ───────────────────────────────────────────────────
	for run := 1; ; run++ {
		start := time.Now()
		err := withCancel(ctx, conn, func() error {
			_, err := conn.Send(data)
			return err
		})
		if err != nil {
			return fmt.Errorf("run %d: %w", run, err)
		}
		util.LogInfo("run %d: sent %d bytes in %s", run, len(data), time.Since(start).Round(time.Microsecond))

		if !opts.more(run) {
			break
		}
	}

	// ── 4. Teardown ────────────────────────────────────────────────────
	if err := withCancel(ctx, conn, conn.Close); err != nil {
		return fmt.Errorf("failed to close: %w", err)
	}
	util.LogSuccess("connection closed")
	return nil
}

func (o SenderOptions) more(run int) bool {
	if o.Runs > 0 {
		return run < o.Runs
	}
	return o.Confirm != nil && o.Confirm(run)
}
