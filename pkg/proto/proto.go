// Package proto provides the core packet abstractions of the proxy.
package proto

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"strconv"
)

// ErrDecoderLeftBytes indicates a packet was known and successfully decoded by
// its registered decoder, but the decoder has not read all of the packet's bytes.
//
// This may happen in cases where
//   - the decoder has a bug
//   - the decoder does not handle the field layout change of a new protocol version
//   - the sender appended trailing bytes after valid packet data
var ErrDecoderLeftBytes = errors.New("decoder did not read all bytes of packet")

// PacketDecoder decodes packets from an underlying
// source and returns them with additional context.
type PacketDecoder interface {
	Decode() (*PacketContext, error)
}

// PacketEncoder encodes packets to an underlying destination.
type PacketEncoder interface {
	Encode(*PacketContext) error
}

// Packet represents a Minecraft packet type.
//
// It is the data layer of a packet and shall support multiple protocol
// versions up- and/or downwards by testing the Protocol contained
// in the passed PacketContext.
//
// The passed PacketContext is read-only and must not be modified.
type Packet interface {
	// Encode encodes the packet data into the writer.
	Encode(c *PacketContext, wr io.Writer) error
	// Decode reads the expected data from the reader into the packet.
	Decode(c *PacketContext, rd io.Reader) (err error)
}

// PacketContext carries context information for a received packet
// or a packet that is about to be sent.
type PacketContext struct {
	Direction Direction // The direction the packet is bound to.
	Protocol  Protocol  // The protocol version of the packet.
	PacketID  PacketID  // The ID of the packet, always set.

	// The decoded type registered for PacketID in the connection's current
	// state registry, or nil if the PacketID is unknown in that registry.
	Packet Packet

	// The unencrypted and uncompressed form of packet id + data.
	// It contains the actual received payload and can be used to
	// forward a packet without encoding it again.
	Payload []byte // Empty when encoding.

	// BytesRead is the total number of bytes read off the wire,
	// before decompression.
	BytesRead int
}

// KnownPacket indicates whether the PacketID is known in the connection's
// current state registry. If false, Packet is nil and the payload is in most
// cases simply proxied through to the other side of the connection.
func (c *PacketContext) KnownPacket() bool {
	return c != nil && c.Packet != nil
}

// PacketID identifies a packet within a protocol version and state.
type PacketID int

// String implements fmt.Stringer.
func (id PacketID) String() string {
	return fmt.Sprintf("%#x", int(id))
}

// String implements fmt.Stringer.
func (c *PacketContext) String() string {
	return fmt.Sprintf("PacketContext:direction=%s,protocol=%s,"+
		"knownPacket=%t,packetID=%s,packetType=%s,payloadLen=%d",
		c.Direction, c.Protocol, c.KnownPacket(), c.PacketID,
		reflect.TypeOf(c.Packet), len(c.Payload))
}

// Direction is the direction a packet is bound to.
//   - Receiving a packet from a client is ServerBound.
//   - Receiving a packet from a server is ClientBound.
//   - Sending a packet to a client is ClientBound.
//   - Sending a packet to a server is ServerBound.
type Direction uint8

// Available packet bound directions.
const (
	ClientBound Direction = iota // A packet bound to a client.
	ServerBound                  // A packet bound to a server.
)

// String implements fmt.Stringer.
func (d Direction) String() string {
	switch d {
	case ServerBound:
		return "ServerBound"
	case ClientBound:
		return "ClientBound"
	}
	return "UnknownBound"
}

// Version is a named protocol version.
type Version struct {
	Protocol          // The protocol number of the version.
	Names    []string // The version names sharing this protocol (at least one).
}

// FirstName returns the user-friendly name of the
// version this protocol was introduced in.
func (v *Version) FirstName() string {
	if len(v.Names) == 0 {
		return ""
	}
	return v.Names[0]
}

// LastName returns the user-friendly name of the
// last version using this protocol.
func (v *Version) LastName() string {
	if len(v.Names) == 0 {
		return ""
	}
	return v.Names[len(v.Names)-1]
}

// String implements fmt.Stringer.
func (v Version) String() string {
	if len(v.Names) > 1 {
		return fmt.Sprintf("%s-%s", v.FirstName(), v.LastName())
	}
	return v.FirstName()
}

// Protocol is a protocol version number specified by Mojang.
type Protocol int

// String implements fmt.Stringer.
func (p Protocol) String() string {
	return strconv.Itoa(int(p))
}

// GreaterEqual is true when this Protocol is
// greater or equal than another Version's Protocol.
func (p Protocol) GreaterEqual(then *Version) bool {
	return p >= then.Protocol
}

// LowerEqual is true when this Protocol is
// lower or equal than another Version's Protocol.
func (p Protocol) LowerEqual(then *Version) bool {
	return p <= then.Protocol
}

// Lower is true when this Protocol is
// lower than another Version's Protocol.
func (p Protocol) Lower(then *Version) bool {
	return p < then.Protocol
}

// Greater is true when this Protocol is
// greater than another Version's Protocol.
func (p Protocol) Greater(then *Version) bool {
	return p > then.Protocol
}

// PacketType is the non-pointer reflect.Type of a packet.
// Use the TypeOf helper function for convenience.
type PacketType reflect.Type

// TypeOf returns the non-pointer type of p.
func TypeOf(p Packet) PacketType {
	t := reflect.TypeOf(p)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}
