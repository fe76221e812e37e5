package plugin

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/bifrostmc/bifrost/pkg/proto"
	"github.com/bifrostmc/bifrost/pkg/proto/util"
	"github.com/bifrostmc/bifrost/pkg/proto/version"
)

const (
	BrandChannelLegacy      = "MC|Brand"
	BrandChannel            = "minecraft:brand"
	RegisterChannelLegacy   = "REGISTER"
	RegisterChannel         = "minecraft:register"
	UnregisterChannelLegacy = "UNREGISTER"
	UnregisterChannel       = "minecraft:unregister"
)

var invalidIdentifierRegex = regexp.MustCompile(`[^a-z0-9\-_]`)

// McBrand determines whether this is a brand plugin message.
// The brand is shown on the client's debug screen.
func McBrand(p *Message) bool {
	return p != nil &&
		(strings.EqualFold(p.Channel, BrandChannelLegacy) ||
			strings.EqualFold(p.Channel, BrandChannel))
}

// IsRegister determines whether this plugin
// message is being used to register plugin channels.
func IsRegister(p *Message) bool {
	return p != nil &&
		(strings.EqualFold(p.Channel, RegisterChannelLegacy) ||
			strings.EqualFold(p.Channel, RegisterChannel))
}

// IsUnregister determines whether this plugin
// message is being used to unregister plugin channels.
func IsUnregister(p *Message) bool {
	return p != nil &&
		(strings.EqualFold(p.Channel, UnregisterChannelLegacy) ||
			strings.EqualFold(p.Channel, UnregisterChannel))
}

// Channels fetches all the channels in a register or unregister plugin message.
func Channels(p *Message) []string {
	if p == nil || len(p.Data) == 0 || (!IsRegister(p) && !IsUnregister(p)) {
		return nil
	}
	return strings.Split(string(p.Data), "\000") // null-separated
}

// TransformLegacyToModernChannel transforms a plugin message
// channel from a "legacy" (<1.13) form to a modern one.
func TransformLegacyToModernChannel(name string) string {
	if strings.Contains(name, ":") {
		// Probably valid already. We go on faith here.
		return name
	}

	// Before falling into the fallback, explicitly rewrite certain channels.
	switch name {
	case RegisterChannelLegacy:
		return RegisterChannel
	case UnregisterChannelLegacy:
		return UnregisterChannel
	case BrandChannelLegacy:
		return BrandChannel
	case "BungeeCord":
		// This is a historical case we are compelled to support.
		return "bungeecord:main"
	default:
		// This is likely a legacy name, so transform it following the same
		// scheme BungeeCord uses, additionally dropping invalid characters.
		lower := strings.ToLower(name)
		return "legacy:" + invalidIdentifierRegex.ReplaceAllString(lower, "")
	}
}

// ConstructChannelsPacket constructs a channel register packet.
// channels must not be empty. The Message's Retained field remains nil.
func ConstructChannelsPacket(protocol proto.Protocol, channels ...string) *Message {
	if len(channels) == 0 {
		panic("channels must not be empty")
	}
	channelName := RegisterChannelLegacy
	if protocol.GreaterEqual(version.Minecraft_1_13) {
		channelName = RegisterChannel
	}
	return &Message{
		Channel: channelName,
		Data:    []byte(strings.Join(channels, "\000")),
	}
}

// RewriteMinecraftBrand rewrites the brand message to indicate the presence of the proxy.
func RewriteMinecraftBrand(message *Message, protocol proto.Protocol) *Message {
	if !McBrand(message) {
		return message
	}

	currentBrand := ReadBrandMessage(message.Data)
	rewrittenBrand := fmt.Sprintf("%s (Bifrost)", currentBrand)

	rewritten := new(bytes.Buffer)
	if protocol.GreaterEqual(version.Minecraft_1_8) {
		_ = util.WriteString(rewritten, rewrittenBrand)
	} else {
		rewritten.WriteString(rewrittenBrand)
	}

	return &Message{
		Channel: message.Channel,
		Data:    rewritten.Bytes(),
	}
}

// ReadBrandMessage reads the brand string of a brand plugin message.
//
// Some clients (mostly poorly-implemented bots) do not send validly-formed
// brand messages. To accommodate their broken behavior, first try to read in
// the 1.8 format and if that fails treat it as a 1.7 message which has no
// prefixed length.
func ReadBrandMessage(data []byte) string {
	s, err := util.ReadString(bytes.NewReader(data))
	if err != nil {
		s, _ = util.ReadStringWithoutLen(bytes.NewReader(data))
	}
	return s
}
