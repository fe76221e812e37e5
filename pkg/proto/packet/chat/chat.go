package chat

import (
	"io"

	"github.com/bifrostmc/bifrost/pkg/proto"
	"github.com/bifrostmc/bifrost/pkg/proto/util"
	"github.com/bifrostmc/bifrost/pkg/proto/version"
	"github.com/bifrostmc/bifrost/pkg/util/uuid"
)

// MessageType is the position a chat message appears at on the client.
type MessageType byte

const (
	// ChatMessageType is a standard chat message appearing in the chat box.
	ChatMessageType MessageType = iota
	// SystemMessageType is a system message appearing in the chat box,
	// not filterable by client settings.
	SystemMessageType
	// GameInfoMessageType appears above the hotbar.
	GameInfoMessageType
)

// LegacyChat is the clientbound chat packet used up to 1.18.2.
type LegacyChat struct {
	Message string // JSON component
	Type    MessageType
	Sender  uuid.UUID // 1.16+
}

func (l *LegacyChat) Encode(c *proto.PacketContext, wr io.Writer) error {
	err := util.WriteString(wr, l.Message)
	if err != nil {
		return err
	}
	if c.Protocol.GreaterEqual(version.Minecraft_1_8) {
		err = util.WriteByte(wr, byte(l.Type))
		if err != nil {
			return err
		}
		if c.Protocol.GreaterEqual(version.Minecraft_1_16) {
			return util.WriteUUID(wr, l.Sender)
		}
	}
	return nil
}

func (l *LegacyChat) Decode(c *proto.PacketContext, rd io.Reader) (err error) {
	l.Message, err = util.ReadString(rd)
	if err != nil {
		return err
	}
	if c.Protocol.GreaterEqual(version.Minecraft_1_8) {
		var t byte
		t, err = util.ReadByte(rd)
		if err != nil {
			return err
		}
		l.Type = MessageType(t)
		if c.Protocol.GreaterEqual(version.Minecraft_1_16) {
			l.Sender, err = util.ReadUUID(rd)
		}
	}
	return err
}

// SystemChat is the clientbound system chat packet since 1.19.
type SystemChat struct {
	Component *ComponentHolder
	Type      MessageType
}

func (s *SystemChat) Encode(c *proto.PacketContext, wr io.Writer) error {
	err := s.Component.Write(wr, c.Protocol)
	if err != nil {
		return err
	}
	if c.Protocol.GreaterEqual(version.Minecraft_1_19_1) {
		return util.WriteBool(wr, s.Type == GameInfoMessageType)
	}
	return util.WriteVarInt(wr, int(s.Type))
}

func (s *SystemChat) Decode(c *proto.PacketContext, rd io.Reader) (err error) {
	s.Component, err = ReadComponentHolder(rd, c.Protocol)
	if err != nil {
		return err
	}
	if c.Protocol.GreaterEqual(version.Minecraft_1_19_1) {
		overlay, err := util.ReadBool(rd)
		if err != nil {
			return err
		}
		if overlay {
			s.Type = GameInfoMessageType
		} else {
			s.Type = SystemMessageType
		}
		return nil
	}
	var t int
	t, err = util.ReadVarInt(rd)
	s.Type = MessageType(t)
	return err
}

var (
	_ proto.Packet = (*LegacyChat)(nil)
	_ proto.Packet = (*SystemChat)(nil)
)
