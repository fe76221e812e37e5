package packet

import (
	"errors"
	"io"

	"go.minekube.com/common/minecraft/component"

	"github.com/bifrostmc/bifrost/pkg/proto"
	"github.com/bifrostmc/bifrost/pkg/proto/packet/chat"
	"github.com/bifrostmc/bifrost/pkg/proto/state/states"
	"github.com/bifrostmc/bifrost/pkg/proto/version"
)

type Disconnect struct {
	Reason *chat.ComponentHolder // nil-able

	// Not part of the packet data itself,
	// but used to determine the encoding of the reason.
	State states.State
}

func (d *Disconnect) Encode(c *proto.PacketContext, wr io.Writer) error {
	if d.Reason == nil {
		return errors.New("no reason specified")
	}
	return d.Reason.Write(wr, d.reasonProtocol(c.Protocol))
}

func (d *Disconnect) Decode(c *proto.PacketContext, rd io.Reader) (err error) {
	d.Reason, err = chat.ReadComponentHolder(rd, d.reasonProtocol(c.Protocol))
	return err
}

// The login state always encodes the reason as a JSON string,
// even for 1.20.3+ clients.
func (d *Disconnect) reasonProtocol(protocol proto.Protocol) proto.Protocol {
	if d.State == states.LoginState {
		return version.Minecraft_1_20_2.Protocol
	}
	return protocol
}

var _ proto.Packet = (*Disconnect)(nil)

// NewDisconnect creates a new Disconnect packet for the given state.
func NewDisconnect(reason component.Component, protocol proto.Protocol, state states.State) *Disconnect {
	if state == states.LoginState {
		protocol = version.Minecraft_1_20_2.Protocol
	}
	if reason == nil {
		reason = &component.Text{}
	}
	return &Disconnect{
		Reason: chat.FromComponent(reason, protocol),
		State:  state,
	}
}
