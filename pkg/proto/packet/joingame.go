package packet

import (
	"errors"
	"fmt"
	"io"

	"github.com/bifrostmc/bifrost/pkg/proto"
	"github.com/bifrostmc/bifrost/pkg/proto/util"
	"github.com/bifrostmc/bifrost/pkg/proto/version"
)

type JoinGame struct {
	EntityID             int
	Gamemode             int16
	Dimension            int
	PartialHashedSeed    int64 // 1.15+
	Difficulty           int16
	Hardcore             bool
	MaxPlayers           int
	LevelType            *string // nil-able: removed in 1.16+
	ViewDistance         int     // 1.14+
	ReducedDebugInfo     bool
	ShowRespawnScreen    bool
	DoLimitedCrafting    bool           // 1.20.2+
	LevelNames           []string       // 1.16+
	Registry             util.NBT       // 1.16-1.20.1
	DimensionInfo        *DimensionInfo // 1.16+
	CurrentDimensionData util.NBT       // 1.16.2-1.18.2
	PreviousGamemode     int16          // 1.16+
	SimulationDistance   int            // 1.18+
	LastDeathPosition    *DeathPosition // 1.19+
	PortalCooldown       int            // 1.20+
	EnforcesSecureChat   bool           // 1.20.5+
}

// DimensionInfo identifies the dimension a player spawns into.
type DimensionInfo struct {
	RegistryIdentifier string
	DimensionID        int     // 1.20.5+: registry id instead of identifier
	LevelName          *string // nil-able
	Flat               bool
	DebugType          bool
}

// DeathPosition is the last death position sent since 1.19.
type DeathPosition struct {
	Key   string
	Value int64
}

func (d *DeathPosition) encode(wr io.Writer) {
	w := util.PanicWriter(wr)
	w.Bool(d != nil)
	if d != nil {
		w.String(d.Key)
		w.Int64(d.Value)
	}
}

func decodeDeathPosition(rd io.Reader) *DeathPosition {
	r := util.PanicReader(rd)
	if !r.Ok() {
		return nil
	}
	dp := new(DeathPosition)
	r.String(&dp.Key)
	r.Int64(&dp.Value)
	return dp
}

func (d *DeathPosition) String() string {
	if d == nil {
		return ""
	}
	return fmt.Sprintf("%s %d", d.Key, d.Value)
}

func (j *JoinGame) Encode(c *proto.PacketContext, wr io.Writer) error {
	if c.Protocol.GreaterEqual(version.Minecraft_1_20_2) {
		return j.encode1202Up(c, wr)
	}
	if c.Protocol.GreaterEqual(version.Minecraft_1_16) {
		// 1.16 and above have significantly more complicated
		// logic for writing this packet, so separate it out.
		return j.encode116Up(c, wr)
	}
	return j.encodeLegacy(c, wr)
}

func (j *JoinGame) encodeLegacy(c *proto.PacketContext, wr io.Writer) error {
	w := util.PanicWriter(wr)
	w.Int(j.EntityID)
	b := byte(j.Gamemode)
	if j.Hardcore {
		b |= 0x8
	}
	w.Byte(b)
	if c.Protocol.GreaterEqual(version.Minecraft_1_9_1) {
		w.Int(j.Dimension)
	} else {
		w.Byte(byte(j.Dimension))
	}
	if c.Protocol.LowerEqual(version.Minecraft_1_13_2) {
		w.Byte(byte(j.Difficulty))
	}
	if c.Protocol.GreaterEqual(version.Minecraft_1_15) {
		w.Int64(j.PartialHashedSeed)
	}
	w.Byte(byte(j.MaxPlayers))
	if j.LevelType == nil {
		return errors.New("no level type specified")
	}
	w.String(*j.LevelType)
	if c.Protocol.GreaterEqual(version.Minecraft_1_14) {
		w.VarInt(j.ViewDistance)
	}
	if c.Protocol.GreaterEqual(version.Minecraft_1_8) {
		w.Bool(j.ReducedDebugInfo)
	}
	if c.Protocol.GreaterEqual(version.Minecraft_1_15) {
		w.Bool(j.ShowRespawnScreen)
	}
	return nil
}

func (j *JoinGame) encode116Up(c *proto.PacketContext, wr io.Writer) error {
	w := util.PanicWriter(wr)
	w.Int(j.EntityID)
	if c.Protocol.GreaterEqual(version.Minecraft_1_16_2) {
		w.Bool(j.Hardcore)
		w.Byte(byte(j.Gamemode))
	} else {
		b := byte(j.Gamemode)
		if j.Hardcore {
			b |= 0x8
		}
		w.Byte(b)
	}
	w.Byte(byte(j.PreviousGamemode))
	w.Strings(j.LevelNames)
	w.NBT(j.Registry, c.Protocol)
	if c.Protocol.GreaterEqual(version.Minecraft_1_16_2) && c.Protocol.Lower(version.Minecraft_1_19) {
		w.NBT(j.CurrentDimensionData, c.Protocol)
		w.String(j.DimensionInfo.RegistryIdentifier)
	} else {
		w.String(j.DimensionInfo.RegistryIdentifier)
		if j.DimensionInfo.LevelName == nil {
			return errors.New("dimension info level name must not be nil")
		}
		w.String(*j.DimensionInfo.LevelName)
	}
	w.Int64(j.PartialHashedSeed)
	if c.Protocol.GreaterEqual(version.Minecraft_1_16_2) {
		w.VarInt(j.MaxPlayers)
	} else {
		w.Byte(byte(j.MaxPlayers))
	}
	w.VarInt(j.ViewDistance)
	if c.Protocol.GreaterEqual(version.Minecraft_1_18) {
		w.VarInt(j.SimulationDistance)
	}
	w.Bool(j.ReducedDebugInfo)
	w.Bool(j.ShowRespawnScreen)
	w.Bool(j.DimensionInfo.DebugType)
	w.Bool(j.DimensionInfo.Flat)
	if c.Protocol.GreaterEqual(version.Minecraft_1_19) {
		j.LastDeathPosition.encode(wr)
	}
	if c.Protocol.GreaterEqual(version.Minecraft_1_20) {
		w.VarInt(j.PortalCooldown)
	}
	return nil
}

func (j *JoinGame) encode1202Up(c *proto.PacketContext, wr io.Writer) error {
	w := util.PanicWriter(wr)
	w.Int(j.EntityID)
	w.Bool(j.Hardcore)
	w.Strings(j.LevelNames)
	w.VarInt(j.MaxPlayers)
	w.VarInt(j.ViewDistance)
	w.VarInt(j.SimulationDistance)
	w.Bool(j.ReducedDebugInfo)
	w.Bool(j.ShowRespawnScreen)
	w.Bool(j.DoLimitedCrafting)
	if c.Protocol.GreaterEqual(version.Minecraft_1_20_5) {
		w.VarInt(j.DimensionInfo.DimensionID)
	} else {
		w.String(j.DimensionInfo.RegistryIdentifier)
	}
	if j.DimensionInfo.LevelName == nil {
		return errors.New("dimension info level name must not be nil")
	}
	w.String(*j.DimensionInfo.LevelName)
	w.Int64(j.PartialHashedSeed)
	w.Byte(byte(j.Gamemode))
	w.Byte(byte(j.PreviousGamemode))
	w.Bool(j.DimensionInfo.DebugType)
	w.Bool(j.DimensionInfo.Flat)
	j.LastDeathPosition.encode(wr)
	w.VarInt(j.PortalCooldown)
	if c.Protocol.GreaterEqual(version.Minecraft_1_20_5) {
		w.Bool(j.EnforcesSecureChat)
	}
	return nil
}

func (j *JoinGame) Decode(c *proto.PacketContext, rd io.Reader) (err error) {
	if c.Protocol.GreaterEqual(version.Minecraft_1_20_2) {
		return j.decode1202Up(c, rd)
	}
	if c.Protocol.GreaterEqual(version.Minecraft_1_16) {
		return j.decode116Up(c, rd)
	}
	return j.decodeLegacy(c, rd)
}

func (j *JoinGame) decodeLegacy(c *proto.PacketContext, rd io.Reader) (err error) {
	r := util.PanicReader(rd)
	r.Int(&j.EntityID)
	var gamemode byte
	r.Byte(&gamemode)
	j.Hardcore = gamemode&0x8 != 0
	j.Gamemode = int16(gamemode &^ 0x8)
	if c.Protocol.GreaterEqual(version.Minecraft_1_9_1) {
		r.Int(&j.Dimension)
	} else {
		var dim byte
		r.Byte(&dim)
		j.Dimension = int(int8(dim))
	}
	if c.Protocol.LowerEqual(version.Minecraft_1_13_2) {
		var difficulty byte
		r.Byte(&difficulty)
		j.Difficulty = int16(difficulty)
	}
	if c.Protocol.GreaterEqual(version.Minecraft_1_15) {
		r.Int64(&j.PartialHashedSeed)
	}
	var maxPlayers byte
	r.Byte(&maxPlayers)
	j.MaxPlayers = int(maxPlayers)
	var levelType string
	r.StringMax(&levelType, 16)
	j.LevelType = &levelType
	if c.Protocol.GreaterEqual(version.Minecraft_1_14) {
		r.VarInt(&j.ViewDistance)
	}
	if c.Protocol.GreaterEqual(version.Minecraft_1_8) {
		r.Bool(&j.ReducedDebugInfo)
	}
	if c.Protocol.GreaterEqual(version.Minecraft_1_15) {
		r.Bool(&j.ShowRespawnScreen)
	}
	return nil
}

func (j *JoinGame) decode116Up(c *proto.PacketContext, rd io.Reader) (err error) {
	r := util.PanicReader(rd)
	r.Int(&j.EntityID)
	if c.Protocol.GreaterEqual(version.Minecraft_1_16_2) {
		r.Bool(&j.Hardcore)
		var gamemode byte
		r.Byte(&gamemode)
		j.Gamemode = int16(gamemode)
	} else {
		var gamemode byte
		r.Byte(&gamemode)
		j.Hardcore = gamemode&0x8 != 0
		j.Gamemode = int16(gamemode &^ 0x8)
	}
	var previousGamemode byte
	r.Byte(&previousGamemode)
	j.PreviousGamemode = int16(int8(previousGamemode))
	r.Strings(&j.LevelNames)
	r.NBT(&j.Registry, c.Protocol)
	dimInfo := new(DimensionInfo)
	if c.Protocol.GreaterEqual(version.Minecraft_1_16_2) && c.Protocol.Lower(version.Minecraft_1_19) {
		r.NBT(&j.CurrentDimensionData, c.Protocol)
		r.String(&dimInfo.RegistryIdentifier)
	} else {
		r.String(&dimInfo.RegistryIdentifier)
		var levelName string
		r.String(&levelName)
		dimInfo.LevelName = &levelName
	}
	r.Int64(&j.PartialHashedSeed)
	if c.Protocol.GreaterEqual(version.Minecraft_1_16_2) {
		r.VarInt(&j.MaxPlayers)
	} else {
		var maxPlayers byte
		r.Byte(&maxPlayers)
		j.MaxPlayers = int(maxPlayers)
	}
	r.VarInt(&j.ViewDistance)
	if c.Protocol.GreaterEqual(version.Minecraft_1_18) {
		r.VarInt(&j.SimulationDistance)
	}
	r.Bool(&j.ReducedDebugInfo)
	r.Bool(&j.ShowRespawnScreen)
	r.Bool(&dimInfo.DebugType)
	r.Bool(&dimInfo.Flat)
	j.DimensionInfo = dimInfo
	if c.Protocol.GreaterEqual(version.Minecraft_1_19) {
		j.LastDeathPosition = decodeDeathPosition(rd)
	}
	if c.Protocol.GreaterEqual(version.Minecraft_1_20) {
		r.VarInt(&j.PortalCooldown)
	}
	return nil
}

func (j *JoinGame) decode1202Up(c *proto.PacketContext, rd io.Reader) (err error) {
	r := util.PanicReader(rd)
	r.Int(&j.EntityID)
	r.Bool(&j.Hardcore)
	r.Strings(&j.LevelNames)
	r.VarInt(&j.MaxPlayers)
	r.VarInt(&j.ViewDistance)
	r.VarInt(&j.SimulationDistance)
	r.Bool(&j.ReducedDebugInfo)
	r.Bool(&j.ShowRespawnScreen)
	r.Bool(&j.DoLimitedCrafting)
	dimInfo := new(DimensionInfo)
	if c.Protocol.GreaterEqual(version.Minecraft_1_20_5) {
		r.VarInt(&dimInfo.DimensionID)
	} else {
		r.String(&dimInfo.RegistryIdentifier)
	}
	var levelName string
	r.String(&levelName)
	dimInfo.LevelName = &levelName
	j.DimensionInfo = dimInfo
	r.Int64(&j.PartialHashedSeed)
	var gamemode, previousGamemode byte
	r.Byte(&gamemode)
	j.Gamemode = int16(gamemode)
	r.Byte(&previousGamemode)
	j.PreviousGamemode = int16(int8(previousGamemode))
	r.Bool(&dimInfo.DebugType)
	r.Bool(&dimInfo.Flat)
	j.LastDeathPosition = decodeDeathPosition(rd)
	r.VarInt(&j.PortalCooldown)
	if c.Protocol.GreaterEqual(version.Minecraft_1_20_5) {
		r.Bool(&j.EnforcesSecureChat)
	}
	return nil
}

var _ proto.Packet = (*JoinGame)(nil)
