package util

import (
	"io"

	"github.com/Tnze/go-mc/nbt"

	"github.com/bifrostmc/bifrost/pkg/proto"
	"github.com/bifrostmc/bifrost/pkg/proto/version"
)

// NBT is an opaque binary tag as carried by packets like JoinGame.
// The raw form is retained so re-encoding is loss-free.
type NBT = nbt.RawMessage

// ReadNBT reads one binary tag from the reader.
// Since 1.20.2 the network format omits the root tag name.
func ReadNBT(rd io.Reader, protocol proto.Protocol) (NBT, error) {
	dec := nbt.NewDecoder(rd)
	dec.NetworkFormat(networkNBT(protocol))
	var m nbt.RawMessage
	_, err := dec.Decode(&m)
	return m, err
}

// WriteNBT writes one binary tag to the writer.
func WriteNBT(wr io.Writer, protocol proto.Protocol, tag NBT) error {
	enc := nbt.NewEncoder(wr)
	enc.NetworkFormat(networkNBT(protocol))
	return enc.Encode(tag, "")
}

func networkNBT(protocol proto.Protocol) bool {
	return protocol.GreaterEqual(version.Minecraft_1_20_2)
}

func (r *PReader) NBT(tag *NBT, protocol proto.Protocol) {
	v, err := ReadNBT(r.r, protocol)
	if err != nil {
		panic(err)
	}
	*tag = v
}

func (w *PWriter) NBT(tag NBT, protocol proto.Protocol) {
	if err := WriteNBT(w.w, protocol, tag); err != nil {
		panic(err)
	}
}
