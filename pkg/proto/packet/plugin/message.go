// Package plugin provides the Minecraft plugin message packet and
// helpers for its well known channels.
package plugin

import (
	"bytes"
	"io"

	"github.com/bifrostmc/bifrost/pkg/proto"
	"github.com/bifrostmc/bifrost/pkg/proto/util"
	"github.com/bifrostmc/bifrost/pkg/proto/version"
)

// Message is a Minecraft plugin message packet.
type Message struct {
	Channel string
	Data    []byte

	// Not part of the packet!
	// Retained stores the decoded packet bytes as is
	// to forward them without encoding the packet again.
	Retained []byte
}

func (p *Message) Encode(c *proto.PacketContext, wr io.Writer) (err error) {
	if c.Protocol.GreaterEqual(version.Minecraft_1_13) {
		err = util.WriteString(wr, TransformLegacyToModernChannel(p.Channel))
	} else {
		err = util.WriteString(wr, p.Channel)
	}
	if err != nil {
		return err
	}
	if c.Protocol.GreaterEqual(version.Minecraft_1_8) {
		err = util.WriteRawBytes(wr, p.Data)
	} else {
		err = util.WriteBytes17(wr, p.Data, true) // true for Forge support
	}
	return
}

func (p *Message) Decode(c *proto.PacketContext, r io.Reader) (err error) {
	retained := new(bytes.Buffer)
	rd := io.TeeReader(r, retained)

	p.Channel, err = util.ReadStringMax(rd, 128)
	if err != nil {
		return err
	}
	if c.Protocol.GreaterEqual(version.Minecraft_1_13) {
		p.Channel = TransformLegacyToModernChannel(p.Channel)
	}
	if c.Protocol.GreaterEqual(version.Minecraft_1_8) {
		p.Data, err = io.ReadAll(rd)
	} else {
		p.Data, err = util.ReadBytes17(rd)
	}

	p.Retained = retained.Bytes()
	return
}

var _ proto.Packet = (*Message)(nil)
