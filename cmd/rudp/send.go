package main

import (
	"errors"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/1ureka/rudp/internal/app"
	"github.com/1ureka/rudp/internal/config"
	"github.com/1ureka/rudp/internal/util"
)

var (
	sendIP    string
	sendPort  int
	sendFile  string
	sendRuns  int
	sendWSURL string
)

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().StringVar(&sendIP, "ip", "127.0.0.1", "receiver IP address")
	sendCmd.Flags().IntVarP(&sendPort, "port", "p", 0, "receiver UDP port (1~65535)")
	sendCmd.Flags().StringVarP(&sendFile, "file", "f", "data.bin", "payload file")
	sendCmd.Flags().IntVar(&sendRuns, "runs", 0, "number of transfers; 0 asks after each one")
	sendCmd.Flags().StringVar(&sendWSURL, "ws-url", "", "receiver signaling URL incl. PIN (webrtc carrier)")
}

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Connect to a receiver and send a file one or more times",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, carrier, err := baseConfig(cmd, config.RoleInitiator)
		if err != nil {
			return err
		}

		target := app.Target{IP: sendIP, Port: sendPort}
		switch carrier {
		case app.CarrierUDP:
			if sendPort < 1 || sendPort > 65535 {
				return errors.New("invalid or missing --port (must be 1~65535)")
			}
		case app.CarrierWebRTC:
			if target.WSURL, err = normalizeWSURL(sendWSURL); err != nil {
				return err
			}
		}

		return runSender(cmd, cfg, carrier, target, sendFile, sendRuns)
	},
}

func runSender(cmd *cobra.Command, cfg config.Config, carrier app.Carrier, target app.Target, file string, runs int) error {
	err := app.RunSender(cmd.Context(), app.SenderOptions{
		Config:  cfg,
		Carrier: carrier,
		Target:  target,
		File:    file,
		Runs:    runs,
		Confirm: confirmAnotherRun,
	})
	if err != nil {
		return fmt.Errorf("sender failed: %w", err)
	}
	util.LogInfo("sender finished")
	return nil
}

// confirmAnotherRun asks whether to send the file again.
func confirmAnotherRun(run int) bool {
	again, _ := pterm.DefaultInteractiveConfirm.
		WithDefaultText(fmt.Sprintf("Run %d done. Send the file again?", run)).
		WithDefaultValue(true).
		Show()
	pterm.Println()
	return again
}
