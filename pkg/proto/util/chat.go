package util

import (
	"bytes"
	"strings"

	"go.minekube.com/common/minecraft/component"
	"go.minekube.com/common/minecraft/component/codec"
	"go.minekube.com/common/minecraft/component/codec/legacy"

	"github.com/bifrostmc/bifrost/pkg/proto"
	"github.com/bifrostmc/bifrost/pkg/proto/version"
)

// JsonCodec returns the appropriate chat component codec for the
// given protocol version. This is used to constrain messages
// sent to older clients.
func JsonCodec(protocol proto.Protocol) codec.Codec {
	if protocol.GreaterEqual(version.Minecraft_1_16) {
		return jsonCodecModern
	}
	return jsonCodecLegacy
}

// Marshal marshals a component into JSON fit for the protocol version.
func Marshal(protocol proto.Protocol, c component.Component) ([]byte, error) {
	buf := new(bytes.Buffer)
	err := JsonCodec(protocol).Marshal(buf, c)
	return buf.Bytes(), err
}

// LatestJsonCodec returns the codec for the most recent protocol version.
func LatestJsonCodec() codec.Codec {
	return jsonCodecModern
}

var (
	// Chat component codec downsampling RGB colors for pre-1.16 clients.
	jsonCodecLegacy = &codec.Json{}
	// Chat component codec for 1.16+ clients.
	jsonCodecModern = &codec.Json{
		NoDownsampleColor: true,
		NoLegacyHover:     true,
	}
)

// MarshalPlain marshals a component into plain text,
// stripping any styling.
func MarshalPlain(c component.Component) (string, error) {
	b := new(strings.Builder)
	err := marshalPlain(c, b)
	return b.String(), err
}

func marshalPlain(c component.Component, b *strings.Builder) error {
	switch t := c.(type) {
	case *component.Text:
		b.WriteString(t.Content)
		for _, extra := range t.Extra {
			if err := marshalPlain(extra, b); err != nil {
				return err
			}
		}
	case *component.Translation:
		for _, with := range t.With {
			if err := marshalPlain(with, b); err != nil {
				return err
			}
		}
	}
	return nil
}

// ParseTextComponent parses a chat component from either its JSON
// form or a legacy paragraph-coded string.
func ParseTextComponent(s string) (t *component.Text, err error) {
	var c component.Component
	if strings.HasPrefix(s, "{") {
		c, err = LatestJsonCodec().Unmarshal([]byte(s))
	} else {
		c, err = (&legacy.Legacy{}).Unmarshal([]byte(s))
	}
	if err != nil {
		return nil, err
	}
	t, ok := c.(*component.Text)
	if !ok {
		t = &component.Text{Extra: []component.Component{c}}
	}
	return t, nil
}
