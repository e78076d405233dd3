// Command rudp sends and receives files over the RUDP reliability layer.
//
// This tool measures file transfers over RUDP, a reliability layer on top
// of UDP datagrams. One side runs "receive", the other "send"; the receiver
// prints the time and bandwidth of every transfer once the sender closes.
//
// It can be launched interactively (no subcommand) or non-interactively via
// the send, receive and gen subcommands.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/1ureka/rudp/internal/util"
)

var version = "dev"

func main() {
	// Root context, cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}
}
