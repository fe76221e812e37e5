package proxy

import (
	"encoding/json"

	"github.com/go-logr/logr"

	"github.com/bifrostmc/bifrost/pkg/netmc"
	"github.com/bifrostmc/bifrost/pkg/proto"
	"github.com/bifrostmc/bifrost/pkg/proto/packet"
)

type statusSessionHandler struct {
	conn    netmc.MinecraftConn
	inbound Inbound
	proxy   *Proxy
	log     logr.Logger

	receivedRequest bool

	netmc.NopSessionHandler
}

func newStatusSessionHandler(conn netmc.MinecraftConn, inbound Inbound, proxy *Proxy) netmc.SessionHandler {
	return &statusSessionHandler{
		conn:    conn,
		inbound: inbound,
		proxy:   proxy,
		log: logr.FromContextOrDiscard(conn.Context()).WithName("statusSession").WithValues(
			"protocol", conn.Protocol()),
	}
}

func (h *statusSessionHandler) Activated() {
	if h.proxy.cfg.Status.LogPingRequests || h.proxy.cfg.Debug {
		h.log.Info("got server list status request")
	} else {
		h.log.V(1).Info("got server list status request")
	}
}

func (h *statusSessionHandler) HandlePacket(pc *proto.PacketContext) {
	if !pc.KnownPacket() {
		// What even is going on?
		_ = h.conn.Close()
		return
	}

	switch pc.Packet.(type) {
	case *packet.StatusRequest:
		h.handleStatusRequest()
	case *packet.StatusPing:
		h.handleStatusPing(pc)
	default:
		// unexpected packet, simply close
		_ = h.conn.Close()
	}
}

func (h *statusSessionHandler) handleStatusRequest() {
	if h.receivedRequest {
		// Already sent a response.
		_ = h.conn.Close()
		return
	}
	h.receivedRequest = true

	e := &PingEvent{
		inbound: h.inbound,
		Ping:    h.proxy.statusResponse(h.conn.Protocol()),
	}
	h.proxy.Event().Fire(e)

	if e.Ping == nil {
		_ = h.conn.Close()
		h.log.V(1).Info("ping response was set to nil by an event handler, no response is sent")
		return
	}
	if !h.inbound.Active() {
		return
	}

	response, err := json.Marshal(e.Ping)
	if err != nil {
		_ = h.conn.Close()
		h.log.Error(err, "error marshaling ping response to json")
		return
	}
	_ = h.conn.WritePacket(&packet.StatusResponse{
		Status: string(response),
	})
}

func (h *statusSessionHandler) handleStatusPing(pc *proto.PacketContext) {
	// Echo the ping and close.
	defer func() { _ = h.conn.Close() }()
	if err := h.conn.Write(pc.Payload); err != nil {
		h.log.V(1).Info("error writing StatusPing response", "error", err)
	}
}
