package main

import (
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/1ureka/rudp/internal/app"
	"github.com/1ureka/rudp/internal/config"
	"github.com/1ureka/rudp/internal/util"
)

var (
	debugMode    bool
	carrierFlag  string
	network      string
	chunkSize    int
	timeout      time.Duration
	maxTransfer  string
	statsEnabled bool
)

var rootCmd = &cobra.Command{
	Use:           "rudp",
	Short:         "Reliable file transfers over UDP",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if debugMode {
			util.EnableDebug()
		}
		pterm.Info.Println(fmt.Sprintf("rudp — v%s", version))
		pterm.Println()
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		// No subcommand → interactive mode.
		return runInteractive(cmd)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.BoolVar(&debugMode, "debug", false, "enable debug logging")
	pf.StringVar(&carrierFlag, "carrier", string(app.CarrierUDP), "datagram carrier: udp or webrtc")
	pf.StringVar(&network, "network", config.DefaultNetwork, "UDP network: udp, udp4 or udp6")
	pf.IntVar(&chunkSize, "chunk", config.DefaultChunkSize, "payload bytes per datagram")
	pf.DurationVar(&timeout, "timeout", 5*time.Second, "receive timeout for every blocking read (0 waits forever)")
	pf.StringVar(&maxTransfer, "max-transfer", "2MiB", "largest transfer a single receive accepts")
	pf.BoolVar(&statsEnabled, "stats", false, "log datagram throughput every second")
}

// baseConfig maps the shared flags onto a connection config.
func baseConfig(cmd *cobra.Command, role config.Role) (config.Config, app.Carrier, error) {
	carrier, err := app.ParseCarrier(carrierFlag)
	if err != nil {
		return config.Config{}, "", err
	}

	maxBytes, err := app.ParseSize(maxTransfer)
	if err != nil {
		return config.Config{}, "", fmt.Errorf("--max-transfer: %w", err)
	}

	cfg := config.Default(role)
	cfg.Network = network
	cfg.ChunkSize = chunkSize
	cfg.ReceiveTimeout = timeout
	cfg.MaxTransferSize = maxBytes
	cfg.AckTransfers = true

	if err := cfg.Validate(); err != nil {
		return config.Config{}, "", err
	}

	if statsEnabled {
		util.StartStatsReporter(cmd.Context(), time.Second)
	}
	return cfg, carrier, nil
}
