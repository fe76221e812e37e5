package proxy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClearVirtualHost(t *testing.T) {
	for _, tt := range []struct {
		name     string
		input    string
		expected string
	}{
		{"plain hostname", "lobby.example.com", "lobby.example.com"},
		{"forge suffix", "lobby.example.com\x00FML\x00", "lobby.example.com"},
		{"forge 2 suffix", "lobby.example.com\x00FML2\x00", "lobby.example.com"},
		{"floodgate data", "lobby.example.com\x00encrypted_data", "lobby.example.com"},
		{"empty", "", ""},
	} {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClearVirtualHost(tt.input))
		})
	}
}

func TestCleanVirtualHost(t *testing.T) {
	for _, tt := range []struct {
		name     string
		input    string
		expected string
	}{
		{"lower cases", "Lobby.Example.COM", "lobby.example.com"},
		{"strips port", "lobby.example.com:25565", "lobby.example.com"},
		{"strips trailing dot", "lobby.example.com.", "lobby.example.com"},
		{"strips forge suffix", "lobby.example.com\x00FML\x00", "lobby.example.com"},
		{"all at once", "Lobby.Example.com.:25565", "lobby.example.com"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, cleanVirtualHost(tt.input))
		})
	}
}
