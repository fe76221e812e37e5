package packet

import (
	"fmt"
	"io"

	"github.com/bifrostmc/bifrost/pkg/proto"
	"github.com/bifrostmc/bifrost/pkg/proto/util"
)

// HandshakeIntent is the next state the client wants
// to enter after the handshake.
type HandshakeIntent int

const (
	StatusHandshakeIntent   HandshakeIntent = 1
	LoginHandshakeIntent    HandshakeIntent = 2
	TransferHandshakeIntent HandshakeIntent = 3 // 1.20.5+
)

// String implements fmt.Stringer.
func (i HandshakeIntent) String() string {
	switch i {
	case StatusHandshakeIntent:
		return "Status"
	case LoginHandshakeIntent:
		return "Login"
	case TransferHandshakeIntent:
		return "Transfer"
	}
	return fmt.Sprintf("Unknown(%d)", int(i))
}

// Handshake is the first packet of every connection.
// See https://wiki.vg/Protocol#Handshaking for details.
type Handshake struct {
	ProtocolVersion int
	ServerAddress   string
	Port            int
	NextStatus      int
}

// Intent returns the handshake's intent.
func (h *Handshake) Intent() HandshakeIntent { return HandshakeIntent(h.NextStatus) }

func (h *Handshake) Encode(_ *proto.PacketContext, wr io.Writer) error {
	err := util.WriteVarInt(wr, h.ProtocolVersion)
	if err != nil {
		return err
	}
	err = util.WriteString(wr, h.ServerAddress)
	if err != nil {
		return err
	}
	err = util.WriteInt16(wr, int16(h.Port))
	if err != nil {
		return err
	}
	return util.WriteVarInt(wr, h.NextStatus)
}

func (h *Handshake) Decode(_ *proto.PacketContext, rd io.Reader) (err error) {
	h.ProtocolVersion, err = util.ReadVarInt(rd)
	if err != nil {
		return err
	}
	h.ServerAddress, err = util.ReadStringMax(rd, 255+maxForwardingAddressSlack)
	if err != nil {
		return err
	}
	port, err := util.ReadInt16(rd)
	if err != nil {
		return err
	}
	h.Port = int(uint16(port))
	h.NextStatus, err = util.ReadVarInt(rd)
	return err
}

// BungeeCord style forwarding splices identity data into the address
// field, so allow for more than the vanilla 255 character limit.
const maxForwardingAddressSlack = 5000

var _ proto.Packet = (*Handshake)(nil)
