package main

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/1ureka/rudp/internal/app"
	"github.com/1ureka/rudp/internal/config"
)

// runInteractive falls back to prompts when no subcommand is given. Shared
// flags (carrier, chunk size, timeout, ...) still apply.
func runInteractive(cmd *cobra.Command) error {
	role, _ := pterm.DefaultInteractiveSelect.
		WithOptions([]string{
			"Receiver — Accept a sender and measure transfers",
			"Sender   — Send a file to a receiver",
			"Generate — Create a random payload file",
		}).
		WithDefaultText("Select your role").
		Show()

	pterm.Println()

	switch {
	case strings.HasPrefix(role, "Receiver"):
		cfg, carrier, err := baseConfig(cmd, config.RoleResponder)
		if err != nil {
			return err
		}
		if carrier == app.CarrierUDP {
			cfg.BindPort = askPort("UDP port to listen on (1 ~ 65535)")
		}
		expected, err := app.ParseSize(recvSize)
		if err != nil {
			return err
		}
		return runReceiver(cmd, cfg, carrier, expected)

	case strings.HasPrefix(role, "Sender"):
		cfg, carrier, err := baseConfig(cmd, config.RoleInitiator)
		if err != nil {
			return err
		}
		var target app.Target
		if carrier == app.CarrierWebRTC {
			target.WSURL = askURL()
		} else {
			target.IP = askText("Receiver IP address", "127.0.0.1")
			target.Port = askPort("Receiver UDP port (1 ~ 65535)")
		}
		file := askText("Payload file", "data.bin")
		return runSender(cmd, cfg, carrier, target, file, 0)

	default:
		path := askText("Output file", "data.bin")
		size, err := app.ParseSize(askText("Size (e.g. 2MiB)", "2MiB"))
		if err != nil {
			return err
		}
		return generate(path, size)
	}
}

// ---------------------------------------------------------------------------
// Helper Functions
// ---------------------------------------------------------------------------

// normalizeWSURL validates a raw signaling URL and fills in the scheme and
// path. The query (carrying the PIN) is kept.
func normalizeWSURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid WebSocket URL: %q", raw)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		u.Scheme = "wss"
	}
	if u.Query().Get("pin") == "" {
		return "", fmt.Errorf("WebSocket URL is missing the pin parameter: %q", raw)
	}
	u.Path = "/ws"
	return u.String(), nil
}

// askPort prompts the user for a port number until a valid one is entered.
func askPort(prompt string) int {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText(prompt).
			Show()

		port, err := strconv.Atoi(strings.TrimSpace(raw))
		if err == nil && port >= 1 && port <= 65535 {
			pterm.Println()
			return port
		}

		pterm.Warning.Println("invalid port number: must be 1 ~ 65535")
		pterm.Println()
	}
}

// askURL prompts the user for a valid signaling URL until one is entered.
func askURL() string {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText("Signaling URL (e.g. ws://203.0.113.7:8080/ws?pin=123456)").
			Show()

		wsURL, err := normalizeWSURL(raw)
		if err == nil {
			pterm.Println()
			return wsURL
		}

		pterm.Println()
		pterm.Warning.Println(err.Error())
	}
}

// askText prompts for free text, returning def when left empty.
func askText(prompt, def string) string {
	raw, _ := pterm.DefaultInteractiveTextInput.
		WithDefaultText(fmt.Sprintf("%s [%s]", prompt, def)).
		Show()
	pterm.Println()

	if raw = strings.TrimSpace(raw); raw == "" {
		return def
	}
	return raw
}
