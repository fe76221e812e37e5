package codec

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bifrostmc/bifrost/pkg/proto"
	"github.com/bifrostmc/bifrost/pkg/proto/packet"
	"github.com/bifrostmc/bifrost/pkg/proto/state"
	"github.com/bifrostmc/bifrost/pkg/proto/util"
	"github.com/bifrostmc/bifrost/pkg/proto/version"
)

func newTestPair(buf *bytes.Buffer) (*Encoder, *Decoder) {
	enc := NewEncoder(buf, proto.ClientBound, logr.Discard())
	dec := NewDecoder(buf, proto.ClientBound, logr.Discard())
	return enc, dec
}

func TestEncodeDecode_Handshake(t *testing.T) {
	buf := new(bytes.Buffer)
	enc := NewEncoder(buf, proto.ServerBound, logr.Discard())
	dec := NewDecoder(buf, proto.ServerBound, logr.Discard())

	sent := &packet.Handshake{
		ProtocolVersion: int(version.Minecraft_1_20_3.Protocol),
		ServerAddress:   "lobby.example.com",
		Port:            25565,
		NextStatus:      int(packet.LoginHandshakeIntent),
	}
	_, err := enc.WritePacket(sent)
	require.NoError(t, err)

	pc, err := dec.Decode()
	require.NoError(t, err)
	require.True(t, pc.KnownPacket())
	assert.Equal(t, sent, pc.Packet)
}

func TestEncodeDecode_WithCompression(t *testing.T) {
	buf := new(bytes.Buffer)
	enc, dec := newTestPair(buf)
	enc.SetState(state.Status)
	dec.SetState(state.Status)

	require.NoError(t, enc.SetCompression(256, -1))
	dec.SetCompressionThreshold(256)

	// Below the threshold: stays uncompressed on the wire.
	small := &packet.StatusResponse{Status: `{"description":{"text":"hi"}}`}
	_, err := enc.WritePacket(small)
	require.NoError(t, err)
	pc, err := dec.Decode()
	require.NoError(t, err)
	assert.Equal(t, small, pc.Packet)

	// Above the threshold: compressed on the wire.
	big := &packet.StatusResponse{Status: `{"description":{"text":"` +
		string(bytes.Repeat([]byte("a"), 1000)) + `"}}`}
	_, err = enc.WritePacket(big)
	require.NoError(t, err)
	pc, err = dec.Decode()
	require.NoError(t, err)
	assert.Equal(t, big, pc.Packet)
}

func TestDecode_FrameTooLarge(t *testing.T) {
	buf := new(bytes.Buffer)
	// Declare a frame of 2^25 bytes.
	require.NoError(t, util.WriteVarInt(buf, 1<<25))
	dec := NewDecoder(bufio.NewReader(buf), proto.ServerBound, logr.Discard())
	_, err := dec.Decode()
	require.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestDecode_BadlyCompressed(t *testing.T) {
	// An uncompressed frame declaring a data length of zero while carrying
	// at least threshold bytes is a protocol error.
	payload := new(bytes.Buffer)
	_ = util.WriteVarInt(payload, 0)           // claimed uncompressed size: not compressed
	payload.Write(bytes.Repeat([]byte{1}, 64)) // >= threshold bytes follow

	frame := new(bytes.Buffer)
	_ = util.WriteVarInt(frame, payload.Len())
	frame.Write(payload.Bytes())

	dec := NewDecoder(frame, proto.ServerBound, logr.Discard())
	dec.SetCompressionThreshold(8)
	_, err := dec.Decode()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "badly compressed")
}

func TestCipher_RoundTrip(t *testing.T) {
	secret := bytes.Repeat([]byte{0x42}, 16)

	wire := new(bytes.Buffer)
	encWriter, err := NewEncryptWriter(wire, secret)
	require.NoError(t, err)
	decReader, err := NewDecryptReader(wire, secret)
	require.NoError(t, err)

	msg := []byte("the quick brown fox jumps over the lazy dog")
	_, err = encWriter.Write(msg)
	require.NoError(t, err)
	require.NotEqual(t, msg, wire.Bytes(), "cipher must change the bytes")

	got := make([]byte, len(msg))
	_, err = decReader.Read(got)
	require.NoError(t, err)
	assert.Equal(t, msg, got)
}
