package proxy

import (
	"strings"

	"github.com/bifrostmc/bifrost/pkg/proto/packet"
)

// Settings are the client settings the player's client sent to the proxy.
type Settings interface {
	Locale() string // the locale of the client, e.g. "en_US"
	// ViewDistance returns the client's view distance in chunks.
	ViewDistance() uint8
	// ChatVisibility returns the chat visibility setting of the client.
	ChatVisibility() ChatVisibility
	// ChatColors returns whether the client has chat colors enabled.
	ChatColors() bool
	// SkinParts returns the displayed skin part settings.
	SkinParts() SkinParts
	// MainHand returns the client's primary hand.
	MainHand() MainHand
	// TextFiltering returns whether the client filters text on signs
	// and book titles (1.17+, carried through unchanged).
	TextFiltering() bool
	// ClientListing returns whether the client wants to be
	// listed on the server list ping (1.18+).
	ClientListing() bool
}

type (
	// ChatVisibility is the chat visibility setting of a client.
	ChatVisibility int
	// MainHand is the primary hand setting of a client.
	MainHand int
	// SkinParts are the displayed skin parts of a player.
	SkinParts byte
)

// Chat visibility settings.
const (
	// ShownChatVisibility shows all chat.
	ShownChatVisibility ChatVisibility = iota
	// CommandsOnlyChatVisibility only shows command output.
	CommandsOnlyChatVisibility
	// HiddenChatVisibility hides all chat.
	HiddenChatVisibility
)

// Main hand settings.
const (
	LeftMainHand MainHand = iota
	RightMainHand
)

func (s SkinParts) Cape() bool    { return s&1 != 0 }
func (s SkinParts) Jacket() bool  { return s>>1&1 != 0 }
func (s SkinParts) LeftSleeve() bool  { return s>>2&1 != 0 }
func (s SkinParts) RightSleeve() bool { return s>>3&1 != 0 }
func (s SkinParts) LeftPants() bool   { return s>>4&1 != 0 }
func (s SkinParts) RightPants() bool  { return s>>5&1 != 0 }
func (s SkinParts) Hat() bool         { return s>>6&1 != 0 }

// DefaultSettings are the settings used until the client sent its own.
var DefaultSettings = NewSettings(&packet.ClientSettings{
	Locale:         "en_US",
	ViewDistance:   10,
	ChatVisibility: int(ShownChatVisibility),
	ChatColors:     true,
	SkinParts:      0x7f,
	MainHand:       int(RightMainHand),
	ClientListing:  false,
})

// NewSettings wraps a ClientSettings packet as Settings.
func NewSettings(p *packet.ClientSettings) Settings {
	return &clientSettings{p: p}
}

type clientSettings struct{ p *packet.ClientSettings }

var _ Settings = (*clientSettings)(nil)

func (s *clientSettings) Locale() string {
	locale := s.p.Locale
	if i := strings.IndexByte(locale, 0); i != -1 {
		// Guard against null bytes some clients append.
		locale = locale[:i]
	}
	return locale
}

func (s *clientSettings) ViewDistance() uint8 { return s.p.ViewDistance }
func (s *clientSettings) ChatVisibility() ChatVisibility {
	v := ChatVisibility(s.p.ChatVisibility)
	if v < ShownChatVisibility || v > HiddenChatVisibility {
		v = ShownChatVisibility
	}
	return v
}
func (s *clientSettings) ChatColors() bool     { return s.p.ChatColors }
func (s *clientSettings) SkinParts() SkinParts { return SkinParts(s.p.SkinParts) }
func (s *clientSettings) MainHand() MainHand   { return MainHand(s.p.MainHand) }
func (s *clientSettings) TextFiltering() bool  { return s.p.TextFiltering }
func (s *clientSettings) ClientListing() bool  { return s.p.ClientListing }
