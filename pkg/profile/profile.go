// Package profile holds the Mojang game profile of a player.
package profile

import (
	"github.com/bifrostmc/bifrost/pkg/util/uuid"
)

// GameProfile is a player's profile as returned by the
// Mojang session server or synthesized for offline players.
type GameProfile struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	Properties []Property `json:"properties"`
}

// Property is a player profile property such as "textures".
type Property struct {
	Name      string `json:"name"`
	Value     string `json:"value"`
	Signature string `json:"signature,omitempty"`
}

// NewOffline returns the offline-mode profile of a username.
func NewOffline(username string) *GameProfile {
	return &GameProfile{
		ID:   uuid.OfflinePlayerUUID(username),
		Name: username,
	}
}

// WithProperty returns a copy of the profile with the property
// appended, replacing an existing property of the same name.
func (g GameProfile) WithProperty(prop Property) GameProfile {
	props := make([]Property, 0, len(g.Properties)+1)
	for _, p := range g.Properties {
		if p.Name != prop.Name {
			props = append(props, p)
		}
	}
	g.Properties = append(props, prop)
	return g
}
