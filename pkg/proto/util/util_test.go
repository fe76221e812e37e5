package util

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bifrostmc/bifrost/pkg/profile"
	"github.com/bifrostmc/bifrost/pkg/util/uuid"
)

func TestString_RoundTrip(t *testing.T) {
	for _, s := range []string{"", "hello", "héllo wörld", strings.Repeat("a", 300)} {
		buf := new(bytes.Buffer)
		require.NoError(t, WriteString(buf, s))
		got, err := ReadString(buf)
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
}

func TestReadStringMax_TooLong(t *testing.T) {
	buf := new(bytes.Buffer)
	require.NoError(t, WriteString(buf, strings.Repeat("a", 200)))
	_, err := ReadStringMax(buf, 16)
	require.Error(t, err)
}

func TestUUID_RoundTrip(t *testing.T) {
	id := uuid.New()
	buf := new(bytes.Buffer)
	require.NoError(t, WriteUUID(buf, id))
	assert.Equal(t, 16, buf.Len())
	got, err := ReadUUID(buf)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestProperties_RoundTrip(t *testing.T) {
	props := []profile.Property{
		{Name: "textures", Value: "dGV4dHVyZXM=", Signature: "c2lnbmF0dXJl"},
		{Name: "unsigned", Value: "value"},
	}
	buf := new(bytes.Buffer)
	require.NoError(t, WriteProperties(buf, props))
	got, err := ReadProperties(buf)
	require.NoError(t, err)
	assert.Equal(t, props, got)
}

func TestUTF_RoundTrip(t *testing.T) {
	buf := new(bytes.Buffer)
	require.NoError(t, WriteUTF(buf, "legacy ping"))
	got, err := ReadUTF(buf)
	require.NoError(t, err)
	assert.Equal(t, "legacy ping", got)
}

func TestBytes17_RoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte{0xAB}, 1000)
	buf := new(bytes.Buffer)
	require.NoError(t, WriteBytes17(buf, data, true))
	got, err := ReadBytes17(buf)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}
