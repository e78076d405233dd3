package main

import (
	"fmt"
	"net"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/1ureka/rudp/internal/app"
	"github.com/1ureka/rudp/internal/config"
	"github.com/1ureka/rudp/internal/util"
)

var (
	recvPort     int
	recvBind     string
	recvSize     string
	recvWSListen string
	recvPIN      string
)

func init() {
	rootCmd.AddCommand(receiveCmd)

	receiveCmd.Flags().IntVarP(&recvPort, "port", "p", 0, "UDP port to listen on (0 picks one)")
	receiveCmd.Flags().StringVar(&recvBind, "bind", config.DefaultBindAddr, "local address to bind")
	receiveCmd.Flags().StringVarP(&recvSize, "size", "s", "2MiB", "expected size of one transfer")
	receiveCmd.Flags().StringVar(&recvWSListen, "ws-listen", "127.0.0.1:0", "signaling listen address (webrtc carrier)")
	receiveCmd.Flags().StringVar(&recvPIN, "pin", "", "signaling PIN (webrtc carrier, random when empty)")
}

var receiveCmd = &cobra.Command{
	Use:   "receive",
	Short: "Accept one sender and report the time and bandwidth of every transfer",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, carrier, err := baseConfig(cmd, config.RoleResponder)
		if err != nil {
			return err
		}

		expected, err := app.ParseSize(recvSize)
		if err != nil {
			return fmt.Errorf("--size: %w", err)
		}

		cfg.BindAddr = recvBind
		cfg.BindPort = recvPort
		if err := cfg.Validate(); err != nil {
			return err
		}

		return runReceiver(cmd, cfg, carrier, expected)
	},
}

func runReceiver(cmd *cobra.Command, cfg config.Config, carrier app.Carrier, expected int) error {
	stats, err := app.RunReceiver(cmd.Context(), app.ReceiverOptions{
		Config:   cfg,
		Carrier:  carrier,
		WSListen: recvWSListen,
		PIN:      recvPIN,
		Expected: expected,
		OnListen: func(addr net.Addr) {
			util.LogInfo("listening on %s, waiting for a sender...", addr)
		},
	})

	if stats != nil && len(stats.Runs()) > 0 {
		pterm.Println()
		pterm.DefaultSection.Println("File Statistics")
		if rerr := stats.Render(); rerr != nil {
			util.LogWarning("failed to render statistics: %v", rerr)
		}
	}

	if err != nil {
		return fmt.Errorf("receiver failed: %w", err)
	}
	util.LogInfo("receiver finished")
	return nil
}
