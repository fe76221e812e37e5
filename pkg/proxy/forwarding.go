package proxy

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"strings"

	"github.com/bifrostmc/bifrost/pkg/crypto"
	"github.com/bifrostmc/bifrost/pkg/profile"
	"github.com/bifrostmc/bifrost/pkg/proto"
	protoutil "github.com/bifrostmc/bifrost/pkg/proto/util"
	"github.com/bifrostmc/bifrost/pkg/proto/version"
	"github.com/bifrostmc/bifrost/pkg/util/uuid"
)

const (
	velocityForwardingChannel = "velocity:player_info"

	velocityDefaultForwardingVersion     = 1
	velocityWithKeyForwardingVersion     = 2
	velocityWithKeyV2ForwardingVersion   = 3
	velocityLazySessionForwardingVersion = 4
	velocityForwardingMaxVersion         = velocityLazySessionForwardingVersion
)

// bungeeGuardTokenProperty is the profile property BungeeGuard
// backends verify against the shared secret.
const bungeeGuardTokenProperty = "bungeeguard-token"

// createLegacyForwardingAddress splices the player identity into the
// handshake address the BungeeCord way: the original address, the player
// IP, the undashed UUID and the profile properties as JSON, separated
// by null bytes.
func createLegacyForwardingAddress(
	serverAddr, playerIP string,
	gameProfile profile.GameProfile,
	extraProperties ...profile.Property,
) (string, error) {
	props := gameProfile.Properties
	if len(extraProperties) != 0 {
		props = append(append([]profile.Property{}, props...), extraProperties...)
	}
	propsJSON, err := json.Marshal(props)
	if err != nil {
		return "", err
	}
	b := new(strings.Builder)
	b.WriteString(serverAddr)
	b.WriteString("\000")
	b.WriteString(playerIP)
	b.WriteString("\000")
	b.WriteString(gameProfile.ID.Undashed())
	b.WriteString("\000")
	b.Write(propsJSON)
	return b.String(), nil
}

// createBungeeGuardForwardingAddress is the legacy format with the
// shared secret attached as a bungeeguard-token property.
func createBungeeGuardForwardingAddress(
	serverAddr, playerIP string,
	gameProfile profile.GameProfile,
	secret []byte,
) (string, error) {
	return createLegacyForwardingAddress(serverAddr, playerIP, gameProfile,
		profile.Property{Name: bungeeGuardTokenProperty, Value: string(secret)})
}

// velocityForwardingPlayer is the player data carried by the modern
// forwarding payload.
type velocityForwardingPlayer interface {
	ID() uuid.UUID
	Username() string
	GameProfile() profile.GameProfile
	Protocol() proto.Protocol
	IdentifiedKey() crypto.IdentifiedKey
}

// findForwardingVersion negotiates the effective modern forwarding version.
func findForwardingVersion(requested int, player velocityForwardingPlayer) int {
	// Ensure we are in range.
	requested = min(requested, velocityForwardingMaxVersion)
	if requested <= velocityDefaultForwardingVersion {
		return velocityDefaultForwardingVersion
	}
	if player.Protocol().GreaterEqual(version.Minecraft_1_19_3) {
		// 1.19.3+ sessions have no login-start key to forward.
		if requested >= velocityLazySessionForwardingVersion {
			return velocityLazySessionForwardingVersion
		}
		return velocityDefaultForwardingVersion
	}
	if key := player.IdentifiedKey(); key != nil {
		switch key.Revision() {
		case crypto.GenericV1:
			return velocityWithKeyForwardingVersion
		// V2 is not backwards compatible: fall back to v1 when the
		// backend requested less than v3.
		case crypto.LinkedV2:
			if requested >= velocityWithKeyV2ForwardingVersion {
				return velocityWithKeyV2ForwardingVersion
			}
			return velocityDefaultForwardingVersion
		}
	}
	return velocityDefaultForwardingVersion
}

// createVelocityForwardingData builds the modern forwarding payload:
// an HMAC-SHA256 of the payload keyed with the forwarding secret,
// followed by the payload itself.
func createVelocityForwardingData(
	hmacSecret []byte, address string,
	player velocityForwardingPlayer, requestedVersion int,
) ([]byte, error) {
	forwarded := bytes.NewBuffer(make([]byte, 0, 2048))

	actualVersion := findForwardingVersion(requestedVersion, player)

	err := protoutil.WriteVarInt(forwarded, actualVersion)
	if err != nil {
		return nil, err
	}
	err = protoutil.WriteString(forwarded, address)
	if err != nil {
		return nil, err
	}
	err = protoutil.WriteUUID(forwarded, player.ID())
	if err != nil {
		return nil, err
	}
	err = protoutil.WriteString(forwarded, player.Username())
	if err != nil {
		return nil, err
	}
	err = protoutil.WriteProperties(forwarded, player.GameProfile().Properties)
	if err != nil {
		return nil, err
	}

	// This serves as additional redundancy. The key normally is in the
	// login start to the server, but some setups require this.
	if actualVersion >= velocityWithKeyForwardingVersion &&
		actualVersion < velocityLazySessionForwardingVersion {
		playerKey := player.IdentifiedKey()
		if playerKey == nil {
			return nil, errors.New("player auth key missing")
		}
		err = crypto.WritePlayerKey(forwarded, playerKey)
		if err != nil {
			return nil, err
		}

		// Provide the signer UUID since it may differ from the assigned
		// UUID; the backend verifies the key independently.
		if actualVersion >= velocityWithKeyV2ForwardingVersion {
			if playerKey.SignatureHolder() != uuid.Nil {
				_ = protoutil.WriteBool(forwarded, true)
				_ = protoutil.WriteUUID(forwarded, playerKey.SignatureHolder())
			} else {
				// Only absent when the player connected offline-mode and
				// the signer UUID was not backfilled.
				_ = protoutil.WriteBool(forwarded, false)
			}
		}
	}

	mac := hmac.New(sha256.New, hmacSecret)
	_, err = mac.Write(forwarded.Bytes())
	if err != nil {
		return nil, err
	}

	data := bytes.NewBuffer(make([]byte, 0, mac.Size()+forwarded.Len()))
	_, err = data.Write(mac.Sum(nil))
	if err != nil {
		return nil, err
	}
	_, err = data.Write(forwarded.Bytes())
	if err != nil {
		return nil, err
	}
	return data.Bytes(), nil
}

// verifyVelocityForwardingData checks the MAC prefix of a modern
// forwarding payload against the secret and returns the payload.
func verifyVelocityForwardingData(data, hmacSecret []byte) ([]byte, bool) {
	if len(data) < sha256.Size {
		return nil, false
	}
	signature, payload := data[:sha256.Size], data[sha256.Size:]
	mac := hmac.New(sha256.New, hmacSecret)
	_, _ = mac.Write(payload)
	return payload, hmac.Equal(signature, mac.Sum(nil))
}
