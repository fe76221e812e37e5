package proxy

import (
	"go.minekube.com/common/minecraft/color"
	"go.minekube.com/common/minecraft/component"

	"github.com/bifrostmc/bifrost/pkg/proto/packet/chat"
	protoutil "github.com/bifrostmc/bifrost/pkg/proto/util"
	"github.com/bifrostmc/bifrost/pkg/proto/state"
	"github.com/bifrostmc/bifrost/pkg/proto/version"
)

var (
	alreadyConnected = &component.Text{
		Content: "You are already connected to this server!",
	}
	alreadyInProgress = &component.Text{
		Content: "You are already connecting to a server!",
	}
	noAvailableServers = &component.Text{
		Content: "No available server.", S: component.Style{Color: color.Red},
	}
	internalServerConnectionError = &component.Text{
		Content: "Internal server connection error",
	}
	movedToNewServer = &component.Text{
		Content: "The server you were on kicked you: ",
		S:       component.Style{Color: color.Red},
	}
	onlineModeOnly = &component.Text{
		Content: `This server only accepts connections from online-mode clients.

Did you change your username?
Restart your game or sign out of Minecraft, sign back in, and try again.`,
		S: component.Style{Color: color.Red},
	}
	unableAuthWithMojang = &component.Text{
		Content: "Unable to authenticate you with Mojang.\nPlease try again!",
		S:       component.Style{Color: color.Red},
	}
	invalidPlayerName = &component.Text{
		Content: "Your username has an invalid format.",
		S:       component.Style{Color: color.Red},
	}
	loggingInTooFast = &component.Text{
		Content: "You are logging in too fast, please calm down and retry.",
		S:       component.Style{Color: color.Red},
	}
	outdatedClient = &component.Translation{
		Key: "multiplayer.disconnect.outdated_client",
	}
	velocityProtocolTooOld = &component.Text{
		Content: "This server is only compatible with versions 1.13 and above.",
	}
	velocityForwardingFailure = &component.Text{
		Content: "Your server did not send a forwarding request to the proxy. Is forwarding set up correctly?",
	}
)

// sendMessage shows a chat message to the player.
// It is a no-op while the player is not in the play state.
func (p *connectedPlayer) sendMessage(msg component.Component) error {
	if msg == nil || p.State() != state.Play {
		return nil
	}
	if p.Protocol().GreaterEqual(version.Minecraft_1_19) {
		return p.WritePacket(&chat.SystemChat{
			Component: chat.FromComponent(msg, p.Protocol()),
			Type:      chat.SystemMessageType,
		})
	}
	j, err := protoutil.Marshal(p.Protocol(), msg)
	if err != nil {
		return err
	}
	return p.WritePacket(&chat.LegacyChat{
		Message: string(j),
		Type:    chat.ChatMessageType,
		Sender:  p.ID(),
	})
}
