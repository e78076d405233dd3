package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeWSURL(t *testing.T) {
	testCases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"ws://127.0.0.1:8080/ws?pin=1234", "ws://127.0.0.1:8080/ws?pin=1234", false},
		{"wss://example.devtunnels.ms?pin=42", "wss://example.devtunnels.ms/ws?pin=42", false},
		{"http://example.com/anything?pin=7", "wss://example.com/ws?pin=7", false},
		{"  ws://host:1/ws?pin=1  ", "ws://host:1/ws?pin=1", false},
		{"ws://host:1/ws", "", true},
		{"not a url", "", true},
		{"", "", true},
	}

	for _, tc := range testCases {
		got, err := normalizeWSURL(tc.in)
		if tc.wantErr {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestSubcommandsRegistered(t *testing.T) {
	for _, name := range []string{"send", "receive", "gen"} {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}
