// Package state maps (state, direction, protocol version) to packet
// ids and typed packets, in both directions.
package state

import (
	"fmt"
	"reflect"

	"github.com/bifrostmc/bifrost/pkg/proto"
	"github.com/bifrostmc/bifrost/pkg/proto/state/states"
	"github.com/bifrostmc/bifrost/pkg/proto/version"
)

// Registry stores the server- and client-bound packet
// registries of one protocol state.
type Registry struct {
	states.State
	ServerBound *PacketRegistry
	ClientBound *PacketRegistry
}

func NewRegistry(state states.State) *Registry {
	return &Registry{
		State:       state,
		ServerBound: NewPacketRegistry(proto.ServerBound),
		ClientBound: NewPacketRegistry(proto.ClientBound),
	}
}

// PacketRegistry stores the packets of a direction per protocol version.
type PacketRegistry struct {
	Direction proto.Direction                      // The direction the registered packets are sent to.
	Protocols map[proto.Protocol]*ProtocolRegistry // The protocol versions.
	// Whether to fall back to the minimum protocol version
	// in case a protocol could not be found.
	Fallback bool
}

func NewPacketRegistry(direction proto.Direction) *PacketRegistry {
	r := &PacketRegistry{
		Direction: direction,
		Protocols: map[proto.Protocol]*ProtocolRegistry{},
		Fallback:  true, // fallback by default
	}
	for _, ver := range version.Versions {
		if version.Protocol(ver.Protocol).Supported() {
			r.Protocols[ver.Protocol] = &ProtocolRegistry{
				Protocol:    ver.Protocol,
				PacketIDs:   map[proto.PacketID]proto.PacketType{},
				PacketTypes: map[proto.PacketType]proto.PacketID{},
			}
		}
	}
	return r
}

// ProtocolRegistry gets the ProtocolRegistry for a protocol version.
func (p *PacketRegistry) ProtocolRegistry(protocol proto.Protocol) *ProtocolRegistry {
	r := p.Protocols[protocol]
	if r == nil && p.Fallback {
		return p.ProtocolRegistry(version.MinimumVersion.Protocol)
	}
	return r // nil if not found
}

// ProtocolRegistry stores the packets of one protocol version and direction.
type ProtocolRegistry struct {
	Protocol    proto.Protocol                      // The protocol version of the registered packets.
	PacketIDs   map[proto.PacketID]proto.PacketType // Gets packet type by packet id.
	PacketTypes map[proto.PacketType]proto.PacketID // Gets packet id by packet type.
}

// PacketID gets the packet id of the registered packet type.
func (r *ProtocolRegistry) PacketID(of proto.Packet) (id proto.PacketID, found bool) {
	id, found = r.PacketTypes[proto.TypeOf(of)]
	return
}

// HasPacketID reports whether the id maps to a known packet type.
func (r *ProtocolRegistry) HasPacketID(id proto.PacketID) bool {
	_, ok := r.PacketIDs[id]
	return ok
}

// CreatePacket returns a new zero valued instance of the type
// of the mapped packet id or nil if not found.
func (r *ProtocolRegistry) CreatePacket(id proto.PacketID) proto.Packet {
	packetType, ok := r.PacketIDs[id]
	if !ok {
		return nil
	}
	p, ok := reflect.New(packetType).Interface().(proto.Packet)
	if !ok {
		// Registration validates this, can not happen.
		return nil
	}
	return p
}

// Register registers a packet type with the id mappings of the protocol
// version ranges it exists in. Overlapping registrations are a startup
// configuration error and panic immediately.
func (p *PacketRegistry) Register(packetOf proto.Packet, mappings ...*PacketMapping) {
	packetType := proto.TypeOf(packetOf)

	var (
		next *PacketMapping
		from proto.Protocol
		to   proto.Protocol
	)
	for i, current := range mappings {
		from = current.Protocol
		if i < len(mappings)-1 {
			next = mappings[i+1]
			to = next.Protocol
		} else {
			next = current
			to = current.LastValidProtocol
			if to == 0 {
				to = version.MaximumVersion.Protocol
			}
		}

		if from >= to && from != version.MaximumVersion.Protocol {
			panic(fmt.Sprintf("next mapping version (%s) should be higher than current (%s) for packet %T",
				to, from, packetOf))
		}

		versionRange(version.Versions, from, to, func(protocol proto.Protocol) bool {
			if protocol == to && next != current {
				return false
			}
			registry, ok := p.Protocols[protocol]
			if !ok {
				panic(fmt.Sprintf("unknown protocol version %s registering packet %T", current.Protocol, packetOf))
			}

			if _, ok = registry.PacketIDs[current.ID]; ok {
				panic(fmt.Sprintf("cannot register packet type %T with id %#x for protocol %s "+
					"because another packet is already registered", packetOf, current.ID, registry.Protocol))
			}
			if _, ok = registry.PacketTypes[packetType]; ok {
				panic(fmt.Sprintf("%T is already registered for protocol %s", packetOf, registry.Protocol))
			}
			registry.PacketIDs[current.ID] = packetType
			registry.PacketTypes[packetType] = current.ID
			return true
		})
	}
}

// FromDirection returns the protocol registry of a state and direction.
func FromDirection(direction proto.Direction, state *Registry, protocol proto.Protocol) *ProtocolRegistry {
	if direction == proto.ServerBound {
		return state.ServerBound.ProtocolRegistry(protocol)
	}
	return state.ClientBound.ProtocolRegistry(protocol)
}

// PacketMapping maps a packet id to the protocol version it appears in.
type PacketMapping struct {
	ID       proto.PacketID
	Protocol proto.Protocol
	// LastValidProtocol optionally ends the range of the last
	// mapping, for packets removed in later versions.
	LastValidProtocol proto.Protocol
}

func m(id proto.PacketID, version *proto.Version) *PacketMapping {
	return &PacketMapping{ID: id, Protocol: version.Protocol}
}

// ml registers a mapping with a bounded validity range.
func ml(id proto.PacketID, version, lastValid *proto.Version) *PacketMapping {
	return &PacketMapping{ID: id, Protocol: version.Protocol, LastValidProtocol: lastValid.Protocol}
}

func versionRange(versions []*proto.Version, from, to proto.Protocol, fn func(p proto.Protocol) bool) {
	var inRange bool
	for _, ver := range versions {
		if !version.Protocol(ver.Protocol).Supported() {
			continue
		}
		if ver.Protocol == from {
			inRange = true
		} else if ver.Protocol == to {
			fn(ver.Protocol)
			return
		}
		if inRange {
			if !fn(ver.Protocol) {
				return
			}
		}
	}
}
