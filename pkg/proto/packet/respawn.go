package packet

import (
	"io"

	"github.com/bifrostmc/bifrost/pkg/proto"
	"github.com/bifrostmc/bifrost/pkg/proto/util"
	"github.com/bifrostmc/bifrost/pkg/proto/version"
)

type Respawn struct {
	Dimension            int
	PartialHashedSeed    int64
	Difficulty           int16
	Gamemode             int16
	LevelType            string         // empty by default
	DataToKeep           byte           // 1.16+
	DimensionInfo        *DimensionInfo // 1.16+
	PreviousGamemode     int16          // 1.16+
	CurrentDimensionData util.NBT       // 1.16.2-1.18.2
	LastDeathPosition    *DeathPosition // 1.19+
	PortalCooldown       int            // 1.20+
}

func (r *Respawn) Encode(c *proto.PacketContext, wr io.Writer) (err error) {
	w := util.PanicWriter(wr)
	if c.Protocol.GreaterEqual(version.Minecraft_1_16) {
		if c.Protocol.GreaterEqual(version.Minecraft_1_16_2) && c.Protocol.Lower(version.Minecraft_1_19) {
			w.NBT(r.CurrentDimensionData, c.Protocol)
			w.String(r.DimensionInfo.RegistryIdentifier)
		} else {
			if c.Protocol.GreaterEqual(version.Minecraft_1_20_5) {
				w.VarInt(r.DimensionInfo.DimensionID)
			} else {
				w.String(r.DimensionInfo.RegistryIdentifier)
			}
			w.String(*r.DimensionInfo.LevelName)
		}
	} else {
		w.Int(r.Dimension)
	}
	if c.Protocol.LowerEqual(version.Minecraft_1_13_2) {
		w.Byte(byte(r.Difficulty))
	}
	if c.Protocol.GreaterEqual(version.Minecraft_1_15) {
		w.Int64(r.PartialHashedSeed)
	}
	w.Byte(byte(r.Gamemode))
	if c.Protocol.GreaterEqual(version.Minecraft_1_16) {
		w.Byte(byte(r.PreviousGamemode))
		w.Bool(r.DimensionInfo.DebugType)
		w.Bool(r.DimensionInfo.Flat)
		if c.Protocol.Lower(version.Minecraft_1_19_3) {
			w.Bool(r.DataToKeep != 0)
		} else if c.Protocol.Lower(version.Minecraft_1_20_2) {
			w.Byte(r.DataToKeep)
		}
	} else {
		w.String(r.LevelType)
	}
	if c.Protocol.GreaterEqual(version.Minecraft_1_19) {
		r.LastDeathPosition.encode(wr)
	}
	if c.Protocol.GreaterEqual(version.Minecraft_1_20) {
		w.VarInt(r.PortalCooldown)
	}
	if c.Protocol.GreaterEqual(version.Minecraft_1_20_2) {
		w.Byte(r.DataToKeep)
	}
	return nil
}

func (r *Respawn) Decode(c *proto.PacketContext, rd io.Reader) (err error) {
	pr := util.PanicReader(rd)
	var dimensionIdentifier, levelName string
	if c.Protocol.GreaterEqual(version.Minecraft_1_16) {
		r.DimensionInfo = &DimensionInfo{}
		if c.Protocol.GreaterEqual(version.Minecraft_1_16_2) && c.Protocol.Lower(version.Minecraft_1_19) {
			pr.NBT(&r.CurrentDimensionData, c.Protocol)
			pr.String(&dimensionIdentifier)
		} else {
			if c.Protocol.GreaterEqual(version.Minecraft_1_20_5) {
				pr.VarInt(&r.DimensionInfo.DimensionID)
			} else {
				pr.String(&dimensionIdentifier)
			}
			pr.String(&levelName)
		}
		r.DimensionInfo.RegistryIdentifier = dimensionIdentifier
		r.DimensionInfo.LevelName = &levelName
	} else {
		pr.Int(&r.Dimension)
	}
	if c.Protocol.LowerEqual(version.Minecraft_1_13_2) {
		var difficulty byte
		pr.Byte(&difficulty)
		r.Difficulty = int16(difficulty)
	}
	if c.Protocol.GreaterEqual(version.Minecraft_1_15) {
		pr.Int64(&r.PartialHashedSeed)
	}
	var gamemode byte
	pr.Byte(&gamemode)
	r.Gamemode = int16(gamemode)
	if c.Protocol.GreaterEqual(version.Minecraft_1_16) {
		var previousGamemode byte
		pr.Byte(&previousGamemode)
		r.PreviousGamemode = int16(int8(previousGamemode))
		pr.Bool(&r.DimensionInfo.DebugType)
		pr.Bool(&r.DimensionInfo.Flat)
		if c.Protocol.Lower(version.Minecraft_1_19_3) {
			if util.PReadBoolVal(rd) {
				r.DataToKeep = 1
			}
		} else if c.Protocol.Lower(version.Minecraft_1_20_2) {
			pr.Byte(&r.DataToKeep)
		}
	} else {
		pr.StringMax(&r.LevelType, 16)
	}
	if c.Protocol.GreaterEqual(version.Minecraft_1_19) {
		r.LastDeathPosition = decodeDeathPosition(rd)
	}
	if c.Protocol.GreaterEqual(version.Minecraft_1_20) {
		pr.VarInt(&r.PortalCooldown)
	}
	if c.Protocol.GreaterEqual(version.Minecraft_1_20_2) {
		pr.Byte(&r.DataToKeep)
	}
	return nil
}

var _ proto.Packet = (*Respawn)(nil)
