package proxy

import (
	"bytes"

	"github.com/go-logr/logr"

	"github.com/bifrostmc/bifrost/pkg/internal/future"
	"github.com/bifrostmc/bifrost/pkg/netmc"
	"github.com/bifrostmc/bifrost/pkg/proto"
	"github.com/bifrostmc/bifrost/pkg/proto/packet"
	cfgpacket "github.com/bifrostmc/bifrost/pkg/proto/packet/config"
	"github.com/bifrostmc/bifrost/pkg/proto/packet/plugin"
	"github.com/bifrostmc/bifrost/pkg/proto/state"
	protoutil "github.com/bifrostmc/bifrost/pkg/proto/util"
)

// clientConfigSessionHandler handles the client in the configuration
// state (1.20.2+), relaying configuration data between the in-flight
// backend and the client.
type clientConfigSessionHandler struct {
	player *connectedPlayer
	log    logr.Logger

	brandChannel string

	// configSwitchDone completes when the client finished
	// the configuration phase.
	configSwitchDone future.Future[any]

	netmc.NopSessionHandler
}

func newClientConfigSessionHandler(player *connectedPlayer) *clientConfigSessionHandler {
	return &clientConfigSessionHandler{
		player: player,
		log:    player.log.WithName("clientConfigSession"),
	}
}

var _ netmc.SessionHandler = (*clientConfigSessionHandler)(nil)

func (h *clientConfigSessionHandler) Disconnected() {
	h.player.teardown()
}

func (h *clientConfigSessionHandler) HandlePacket(pc *proto.PacketContext) {
	if !pc.KnownPacket() {
		h.forwardToServer(pc)
		return
	}
	switch p := pc.Packet.(type) {
	case *packet.KeepAlive:
		h.forwardToServer(pc)
	case *packet.ClientSettings:
		h.player.setSettings(p)
		h.forwardToServer(pc)
	case *cfgpacket.FinishedUpdate:
		h.handleFinishedUpdate()
	case *cfgpacket.KnownPacks:
		h.forwardToServer(pc)
	case *plugin.Message:
		h.handlePluginMessage(p)
	default:
		h.forwardToServer(pc)
	}
}

// handleBackendFinishUpdate is called by the backend config session handler
// when the backend finished its configuration phase. It relays the finish to
// the client and returns the future completing when the client acknowledged.
func (h *clientConfigSessionHandler) handleBackendFinishUpdate(serverConn *serverConnection) *future.Future[any] {
	smc, ok := serverConn.ensureConnected()
	if !ok {
		return nil
	}

	// Hand the backend the client brand if it was sent while the
	// backend was still logging in.
	brand := h.player.ClientBrand()
	if brand != "" && h.brandChannel != "" {
		buf := new(bytes.Buffer)
		_ = protoutil.WriteString(buf, brand)
		_ = smc.BufferPacket(&plugin.Message{
			Channel: h.brandChannel,
			Data:    buf.Bytes(),
		})
	}

	// Replay the cached client settings to the backend.
	if settingsPacket := h.player.settingsPacket_(); settingsPacket != nil {
		_ = smc.BufferPacket(settingsPacket)
	}
	if smc.Flush() != nil {
		return nil
	}

	if h.player.WritePacket(&cfgpacket.FinishedUpdate{}) != nil {
		return nil
	}

	return &h.configSwitchDone
}

// handleFinishedUpdate completes the client's configuration phase
// and moves the client into the play state.
func (h *clientConfigSessionHandler) handleFinishedUpdate() {
	player := h.player
	player.SetState(state.Play)
	player.SetSessionHandler(newClientPlaySessionHandler(player))
	h.configSwitchDone.Complete(nil)
}

func (h *clientConfigSessionHandler) handlePluginMessage(p *plugin.Message) {
	if plugin.McBrand(p) {
		h.player.setClientBrand(plugin.ReadBrandMessage(p.Data))
		h.brandChannel = p.Channel
		h.player.proxy.Event().Fire(&PlayerClientBrandEvent{
			player: h.player,
			brand:  h.player.ClientBrand(),
		})
		// The client sends its brand immediately after login success, but
		// the backend may not be ready yet; it is replayed on finish update.
		return
	}
	h.forwardToServerPacket(p)
}

// forwardToServer forwards a packet payload to the connection in flight,
// or the connected server while re-entering the config state.
func (h *clientConfigSessionHandler) forwardToServer(pc *proto.PacketContext) {
	if smc := h.serverConn(); smc != nil {
		_ = smc.Write(pc.Payload)
	}
}

func (h *clientConfigSessionHandler) forwardToServerPacket(p proto.Packet) {
	if smc := h.serverConn(); smc != nil {
		_ = smc.WritePacket(p)
	}
}

func (h *clientConfigSessionHandler) serverConn() netmc.MinecraftConn {
	if s := h.player.connectionInFlight(); s != nil {
		smc, ok := s.ensureConnected()
		if ok {
			return smc
		}
		return nil
	}
	if s := h.player.connectedServer(); s != nil {
		smc, ok := s.ensureConnected()
		if ok {
			return smc
		}
	}
	return nil
}
