package util

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVarInt_RoundTrip(t *testing.T) {
	for _, val := range []int{
		0, 1, 2, 127, 128, 255, 256, 25565,
		2097151, 2147483647, -1, -2147483648,
	} {
		buf := new(bytes.Buffer)
		require.NoError(t, WriteVarInt(buf, val))
		got, n, err := ReadVarIntReturnN(buf)
		require.NoError(t, err)
		assert.Equal(t, val, got)
		assert.LessOrEqual(t, n, 5)
		assert.Zero(t, buf.Len(), "should have read all bytes")
	}
}

func TestVarInt_KnownEncodings(t *testing.T) {
	for _, tt := range []struct {
		val     int
		encoded []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{255, []byte{0xff, 0x01}},
		{2097151, []byte{0xff, 0xff, 0x7f}},
		{2147483647, []byte{0xff, 0xff, 0xff, 0xff, 0x07}},
		{-1, []byte{0xff, 0xff, 0xff, 0xff, 0x0f}},
	} {
		buf := new(bytes.Buffer)
		require.NoError(t, WriteVarInt(buf, tt.val))
		assert.Equal(t, tt.encoded, buf.Bytes(), "value %d", tt.val)
	}
}

func TestReadVarInt_RejectsOverlong(t *testing.T) {
	// 6 continuation bytes exceed the 5 byte maximum.
	overlong := bytes.NewReader([]byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x01})
	_, err := ReadVarInt(overlong)
	require.ErrorIs(t, err, ErrVarIntTooLong)
}

func TestWriteVarIntN_CountsBytes(t *testing.T) {
	buf := new(bytes.Buffer)
	n, err := WriteVarIntN(buf, 300)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, buf.Len())
}
