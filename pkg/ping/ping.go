// Package ping provides the JSON model of the server list ping response.
package ping

import (
	"encoding/json"
	"fmt"

	"go.minekube.com/common/minecraft/component"
	"go.minekube.com/common/minecraft/component/codec"

	"github.com/bifrostmc/bifrost/pkg/proto"
	"github.com/bifrostmc/bifrost/pkg/util/uuid"
)

// ServerPing is a server list ping response.
type ServerPing struct {
	Version     Version             `json:"version"`
	Players     *Players            `json:"players,omitempty"`
	Description component.Component `json:"description"`
	Favicon     string              `json:"favicon,omitempty"`
}

// Version carries the advertised server version.
type Version struct {
	Protocol proto.Protocol `json:"protocol"`
	Name     string         `json:"name"`
}

// Players carries the advertised player counts and sample.
type Players struct {
	Online int            `json:"online"`
	Max    int            `json:"max"`
	Sample []SamplePlayer `json:"sample,omitempty"`
}

// SamplePlayer is a player shown in the hover tooltip of the server entry.
type SamplePlayer struct {
	Name string    `json:"name"`
	ID   uuid.UUID `json:"id"`
}

// MarshalJSON implements json.Marshaler using the given component codec.
func (p *ServerPing) MarshalJSON() ([]byte, error) {
	type Alias ServerPing
	a := struct {
		*Alias
		Description json.RawMessage `json:"description"`
	}{Alias: (*Alias)(p)}
	if p.Description != nil {
		b, err := marshalComponent(p.Description)
		if err != nil {
			return nil, err
		}
		a.Description = b
	}
	return json.Marshal(a)
}

// UnmarshalJSON implements json.Unmarshaler, keeping the
// description as an opaque component.
func (p *ServerPing) UnmarshalJSON(data []byte) error {
	type Alias ServerPing
	a := struct {
		*Alias
		Description json.RawMessage `json:"description"`
	}{Alias: (*Alias)(p)}
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	if len(a.Description) != 0 {
		c, err := unmarshalComponent(a.Description)
		if err != nil {
			return fmt.Errorf("error unmarshaling description: %w", err)
		}
		p.Description = c
	}
	return nil
}

var jsonCodec = &codec.Json{NoDownsampleColor: true, NoLegacyHover: true}

func marshalComponent(c component.Component) ([]byte, error) {
	var buf jsonBuffer
	err := jsonCodec.Marshal(&buf, c)
	return buf.b, err
}

func unmarshalComponent(data []byte) (component.Component, error) {
	return jsonCodec.Unmarshal(data)
}

type jsonBuffer struct{ b []byte }

func (w *jsonBuffer) Write(p []byte) (int, error) {
	w.b = append(w.b, p...)
	return len(p), nil
}
