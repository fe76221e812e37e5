package uuid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOfflinePlayerUUID(t *testing.T) {
	// Known offline-mode UUIDs derived from md5("OfflinePlayer:<name>").
	for name, expected := range map[string]string{
		"Notch":      "b50ad385-829d-3141-a216-7e7d7539ba7f",
		"Dinnerbone": "4d258a81-2358-3084-8166-05b9faccad80",
	} {
		id := OfflinePlayerUUID(name)
		assert.Equal(t, expected, id.String(), "for username %q", name)
		// Version nibble must be 3, variant bits must be RFC 4122.
		assert.EqualValues(t, 3, id[6]>>4)
		assert.EqualValues(t, 2, id[8]>>6)
	}
}

func TestOfflinePlayerUUID_Deterministic(t *testing.T) {
	assert.Equal(t, OfflinePlayerUUID("Steve"), OfflinePlayerUUID("Steve"))
	assert.NotEqual(t, OfflinePlayerUUID("Steve"), OfflinePlayerUUID("steve"))
}

func TestParse_Undashed(t *testing.T) {
	id, err := Parse("069a79f444e94726a5befca90e38aaf5")
	require.NoError(t, err)
	assert.Equal(t, "069a79f4-44e9-4726-a5be-fca90e38aaf5", id.String())
	assert.Equal(t, "069a79f444e94726a5befca90e38aaf5", id.Undashed())
}

func TestUUID_JSON(t *testing.T) {
	id, err := Parse("069a79f4-44e9-4726-a5be-fca90e38aaf5")
	require.NoError(t, err)
	b, err := id.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"069a79f4-44e9-4726-a5be-fca90e38aaf5"`, string(b))

	var got UUID
	require.NoError(t, got.UnmarshalJSON(b))
	assert.Equal(t, id, got)
}
