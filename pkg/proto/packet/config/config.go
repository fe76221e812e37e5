// Package config contains the packets of the configuration
// state introduced in Minecraft 1.20.2.
package config

import (
	"io"

	"github.com/bifrostmc/bifrost/pkg/proto"
	"github.com/bifrostmc/bifrost/pkg/proto/util"
	"github.com/bifrostmc/bifrost/pkg/util/errs"
)

// StartUpdate is sent by the server in the play state to re-enter
// the configuration state.
type StartUpdate struct{}

func (StartUpdate) Encode(*proto.PacketContext, io.Writer) error { return nil }
func (StartUpdate) Decode(*proto.PacketContext, io.Reader) error { return nil }

// AckConfiguration is the client's acknowledgement of StartUpdate.
type AckConfiguration struct{}

func (AckConfiguration) Encode(*proto.PacketContext, io.Writer) error { return nil }
func (AckConfiguration) Decode(*proto.PacketContext, io.Reader) error { return nil }

// FinishedUpdate completes the configuration state on both sides.
type FinishedUpdate struct{}

func (FinishedUpdate) Encode(*proto.PacketContext, io.Writer) error { return nil }
func (FinishedUpdate) Decode(*proto.PacketContext, io.Reader) error { return nil }

// RegistrySync carries registry data the client needs before play.
// The NBT layout varies considerably across versions, so the payload
// is carried through opaquely.
type RegistrySync struct {
	Data []byte
}

func (p *RegistrySync) Encode(_ *proto.PacketContext, wr io.Writer) error {
	return util.WriteRawBytes(wr, p.Data)
}

func (p *RegistrySync) Decode(_ *proto.PacketContext, rd io.Reader) (err error) {
	p.Data, err = io.ReadAll(rd)
	return err
}

// TagsUpdate is an opaque carry-through of the tag registry.
type TagsUpdate struct {
	Data []byte
}

func (p *TagsUpdate) Encode(_ *proto.PacketContext, wr io.Writer) error {
	return util.WriteRawBytes(wr, p.Data)
}

func (p *TagsUpdate) Decode(_ *proto.PacketContext, rd io.Reader) (err error) {
	p.Data, err = io.ReadAll(rd)
	return err
}

// MaxLengthPacks caps the number of packs in a KnownPacks packet.
const MaxLengthPacks = 64

// ErrTooManyPacks is returned when a side sends too many packs.
var ErrTooManyPacks = errs.NewSilentErr("too many known packs")

// KnownPacks negotiates data packs between client and server (1.20.5+).
type KnownPacks struct {
	Packs []KnownPack
}

func (p *KnownPacks) Encode(_ *proto.PacketContext, wr io.Writer) error {
	util.PWriteVarInt(wr, len(p.Packs))
	for _, pack := range p.Packs {
		pack.write(wr)
	}
	return nil
}

func (p *KnownPacks) Decode(_ *proto.PacketContext, rd io.Reader) error {
	packCount := util.PReadVarIntVal(rd)
	if packCount < 0 || packCount > MaxLengthPacks {
		return ErrTooManyPacks
	}
	packs := make([]KnownPack, packCount)
	for i := 0; i < packCount; i++ {
		packs[i].read(rd)
	}
	p.Packs = packs
	return nil
}

// KnownPack identifies one data pack.
type KnownPack struct {
	Namespace string
	ID        string
	Version   string
}

func (p *KnownPack) write(wr io.Writer) {
	util.PWriteString(wr, p.Namespace)
	util.PWriteString(wr, p.ID)
	util.PWriteString(wr, p.Version)
}

func (p *KnownPack) read(rd io.Reader) {
	util.PReadString(rd, &p.Namespace)
	util.PReadString(rd, &p.ID)
	util.PReadString(rd, &p.Version)
}

var (
	_ proto.Packet = (*StartUpdate)(nil)
	_ proto.Packet = (*AckConfiguration)(nil)
	_ proto.Packet = (*FinishedUpdate)(nil)
	_ proto.Packet = (*RegistrySync)(nil)
	_ proto.Packet = (*TagsUpdate)(nil)
	_ proto.Packet = (*KnownPacks)(nil)
)
