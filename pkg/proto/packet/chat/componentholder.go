// Package chat carries chat components across the protocol versions
// that encode them as JSON strings and those that encode them as NBT.
package chat

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/Tnze/go-mc/nbt"
	"go.minekube.com/common/minecraft/component"
	"go.minekube.com/common/minecraft/component/codec/legacy"

	"github.com/bifrostmc/bifrost/pkg/proto"
	"github.com/bifrostmc/bifrost/pkg/proto/util"
	"github.com/bifrostmc/bifrost/pkg/proto/version"
)

// ComponentHolder holds a chat component in either its JSON form
// (pre-1.20.3) or its raw binary tag form (1.20.3+). The received
// form is retained so that forwarding is loss-free.
type ComponentHolder struct {
	Protocol  proto.Protocol
	JSON      string
	BinaryTag util.NBT
}

// ReadComponentHolder reads a component holder from the reader.
func ReadComponentHolder(rd io.Reader, protocol proto.Protocol) (*ComponentHolder, error) {
	h := &ComponentHolder{Protocol: protocol}
	if protocol.GreaterEqual(version.Minecraft_1_20_3) {
		var err error
		h.BinaryTag, err = util.ReadNBT(rd, protocol)
		return h, err
	}
	var err error
	h.JSON, err = util.ReadString(rd)
	return h, err
}

// Write writes the component holder in the form the protocol version expects.
func (h *ComponentHolder) Write(wr io.Writer, protocol proto.Protocol) error {
	if protocol.GreaterEqual(version.Minecraft_1_20_3) {
		if h.BinaryTag.Type != 0 {
			return util.WriteNBT(wr, protocol, h.BinaryTag)
		}
		// No binary form present, fall back to a string tag of the plain text.
		plain, err := util.MarshalPlain(h.AsComponentOrNil())
		if err != nil {
			return err
		}
		return util.WriteNBT(wr, protocol, stringBinaryTag(plain))
	}
	if h.JSON == "" && h.BinaryTag.Type != 0 {
		return errors.New("component holder has no JSON form for a pre-1.20.3 client")
	}
	return util.WriteString(wr, h.JSON)
}

// FromComponent wraps a component for the given protocol version.
func FromComponent(c component.Component, protocol proto.Protocol) *ComponentHolder {
	if c == nil {
		c = &component.Text{}
	}
	h := &ComponentHolder{Protocol: protocol}
	j, err := util.Marshal(protocol, c)
	if err == nil {
		h.JSON = string(j)
	}
	if protocol.GreaterEqual(version.Minecraft_1_20_3) {
		plain, err := util.MarshalPlain(c)
		if err == nil {
			h.BinaryTag = stringBinaryTag(plain)
		}
	}
	return h
}

// AsComponentOrNil decodes the held component, or nil if undecodable.
func (h *ComponentHolder) AsComponentOrNil() component.Component {
	if h == nil {
		return nil
	}
	if h.JSON != "" {
		c, err := util.JsonCodec(h.Protocol).Unmarshal([]byte(h.JSON))
		if err == nil {
			return c
		}
	}
	if h.BinaryTag.Type == nbt.TagString {
		var s string
		if err := h.BinaryTag.Unmarshal(&s); err == nil {
			c, err := (&legacy.Legacy{}).Unmarshal([]byte(s))
			if err == nil {
				return c
			}
			return &component.Text{Content: s}
		}
	}
	return nil
}

// stringBinaryTag builds a raw TAG_String binary tag.
func stringBinaryTag(s string) util.NBT {
	data := make([]byte, 2+len(s))
	binary.BigEndian.PutUint16(data, uint16(len(s)))
	copy(data[2:], s)
	return util.NBT{Type: nbt.TagString, Data: data}
}
