package proxy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bifrostmc/bifrost/pkg/proto/packet"
)

func TestSettings(t *testing.T) {
	s := NewSettings(&packet.ClientSettings{
		Locale:         "de_DE",
		ViewDistance:   12,
		ChatVisibility: 1,
		ChatColors:     true,
		SkinParts:      0x7f,
		MainHand:       1,
		ClientListing:  true,
	})
	assert.Equal(t, "de_DE", s.Locale())
	assert.EqualValues(t, 12, s.ViewDistance())
	assert.Equal(t, CommandsOnlyChatVisibility, s.ChatVisibility())
	assert.True(t, s.ChatColors())
	assert.True(t, s.SkinParts().Hat())
	assert.Equal(t, RightMainHand, s.MainHand())
	assert.True(t, s.ClientListing())
}

func TestSettings_InvalidChatVisibilityFallsBack(t *testing.T) {
	s := NewSettings(&packet.ClientSettings{ChatVisibility: 99})
	assert.Equal(t, ShownChatVisibility, s.ChatVisibility())
}

func TestDefaultSettings(t *testing.T) {
	assert.Equal(t, "en_US", DefaultSettings.Locale())
	assert.Equal(t, ShownChatVisibility, DefaultSettings.ChatVisibility())
}

func TestSettings_LocaleStripsNullBytes(t *testing.T) {
	s := NewSettings(&packet.ClientSettings{Locale: "en_US\x00junk"})
	assert.Equal(t, "en_US", s.Locale())
}
