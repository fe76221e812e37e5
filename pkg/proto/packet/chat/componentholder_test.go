package chat

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.minekube.com/common/minecraft/component"

	"github.com/bifrostmc/bifrost/pkg/proto/version"
)

func TestComponentHolder_JSONRoundTrip(t *testing.T) {
	c := &component.Text{Content: "kicked from server"}
	h := FromComponent(c, version.Minecraft_1_19_4.Protocol)
	require.NotEmpty(t, h.JSON)

	buf := new(bytes.Buffer)
	require.NoError(t, h.Write(buf, version.Minecraft_1_19_4.Protocol))

	got, err := ReadComponentHolder(buf, version.Minecraft_1_19_4.Protocol)
	require.NoError(t, err)
	assert.Equal(t, h.JSON, got.JSON)

	decoded := got.AsComponentOrNil()
	require.NotNil(t, decoded)
	text, ok := decoded.(*component.Text)
	require.True(t, ok)
	assert.Equal(t, "kicked from server", text.Content)
}

func TestComponentHolder_BinaryTagRoundTrip(t *testing.T) {
	c := &component.Text{Content: "kicked from server"}
	h := FromComponent(c, version.Minecraft_1_20_3.Protocol)

	buf := new(bytes.Buffer)
	require.NoError(t, h.Write(buf, version.Minecraft_1_20_3.Protocol))
	require.NotZero(t, buf.Len())

	got, err := ReadComponentHolder(buf, version.Minecraft_1_20_3.Protocol)
	require.NoError(t, err)
	require.NotZero(t, got.BinaryTag.Type, "1.20.3+ must carry the binary tag form")

	decoded := got.AsComponentOrNil()
	require.NotNil(t, decoded)
}
