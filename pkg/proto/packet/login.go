package packet

import (
	"errors"
	"fmt"
	"io"

	"github.com/bifrostmc/bifrost/pkg/crypto"
	"github.com/bifrostmc/bifrost/pkg/profile"
	"github.com/bifrostmc/bifrost/pkg/proto"
	"github.com/bifrostmc/bifrost/pkg/proto/util"
	"github.com/bifrostmc/bifrost/pkg/proto/version"
	"github.com/bifrostmc/bifrost/pkg/util/errs"
	"github.com/bifrostmc/bifrost/pkg/util/uuid"
)

// ServerLogin is the login start packet sent by the client.
type ServerLogin struct {
	Username  string
	PlayerKey crypto.IdentifiedKey // 1.19-1.19.2
	HolderID  uuid.UUID            // 1.19.1+
}

var errEmptyUsername = errs.NewSilentErr("empty username")

const maxUsernameLen = 16

func (s *ServerLogin) Encode(c *proto.PacketContext, wr io.Writer) error {
	if s.Username == "" {
		return errors.New("username not specified")
	}
	err := util.WriteString(wr, s.Username)
	if err != nil {
		return err
	}
	if c.Protocol.GreaterEqual(version.Minecraft_1_19) {
		if c.Protocol.Lower(version.Minecraft_1_19_3) {
			err = util.WriteBool(wr, s.PlayerKey != nil)
			if err != nil {
				return err
			}
			if s.PlayerKey != nil {
				err = crypto.WritePlayerKey(wr, s.PlayerKey)
				if err != nil {
					return err
				}
			}
		}

		if c.Protocol.GreaterEqual(version.Minecraft_1_19_1) {
			if c.Protocol.GreaterEqual(version.Minecraft_1_20_2) {
				// UUID is mandatory since 1.20.2
				return util.WriteUUID(wr, s.HolderID)
			}
			ok := (s.PlayerKey != nil && s.PlayerKey.SignatureHolder() != uuid.Nil) || s.HolderID != uuid.Nil
			err = util.WriteBool(wr, ok)
			if err != nil {
				return err
			}
			if ok {
				id := s.HolderID
				if id == uuid.Nil {
					id = s.PlayerKey.SignatureHolder()
				}
				err = util.WriteUUID(wr, id)
				if err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (s *ServerLogin) Decode(c *proto.PacketContext, rd io.Reader) (err error) {
	s.Username, err = util.ReadStringMax(rd, maxUsernameLen)
	if err != nil {
		return err
	}
	if len(s.Username) == 0 {
		return errEmptyUsername
	}

	if c.Protocol.GreaterEqual(version.Minecraft_1_19) {
		if c.Protocol.Lower(version.Minecraft_1_19_3) {
			ok, err := util.ReadBool(rd)
			if err != nil {
				return err
			}
			if ok {
				s.PlayerKey, err = crypto.ReadPlayerKey(c.Protocol, rd)
				if err != nil {
					return err
				}
			}
		}

		if c.Protocol.GreaterEqual(version.Minecraft_1_19_1) {
			if c.Protocol.GreaterEqual(version.Minecraft_1_20_2) {
				s.HolderID, err = util.ReadUUID(rd)
				return err
			}
			ok, err := util.ReadBool(rd)
			if err != nil {
				return err
			}
			if ok {
				s.HolderID, err = util.ReadUUID(rd)
				if err != nil {
					return err
				}
			}
		}
	}
	return nil
}

type EncryptionRequest struct {
	ServerID    string
	PublicKey   []byte
	VerifyToken []byte
	ShouldAuthenticate bool // 1.20.5+
}

func (e *EncryptionRequest) Encode(c *proto.PacketContext, wr io.Writer) error {
	err := util.WriteString(wr, e.ServerID)
	if err != nil {
		return err
	}
	err = util.WriteBytes(wr, e.PublicKey)
	if err != nil {
		return err
	}
	err = util.WriteBytes(wr, e.VerifyToken)
	if err != nil {
		return err
	}
	if c.Protocol.GreaterEqual(version.Minecraft_1_20_5) {
		return util.WriteBool(wr, e.ShouldAuthenticate)
	}
	return nil
}

func (e *EncryptionRequest) Decode(c *proto.PacketContext, rd io.Reader) (err error) {
	e.ServerID, err = util.ReadStringMax(rd, 20)
	if err != nil {
		return err
	}
	e.PublicKey, err = util.ReadBytesLen(rd, 256)
	if err != nil {
		return err
	}
	e.VerifyToken, err = util.ReadBytesLen(rd, 16)
	if err != nil {
		return err
	}
	if c.Protocol.GreaterEqual(version.Minecraft_1_20_5) {
		e.ShouldAuthenticate, err = util.ReadBool(rd)
	}
	return err
}

type EncryptionResponse struct {
	SharedSecret []byte
	VerifyToken  []byte
	Salt         *int64 // 1.19-1.19.2
}

func (e *EncryptionResponse) Encode(c *proto.PacketContext, wr io.Writer) error {
	if c.Protocol.GreaterEqual(version.Minecraft_1_8) {
		err := util.WriteBytes(wr, e.SharedSecret)
		if err != nil {
			return err
		}
		if c.Protocol.GreaterEqual(version.Minecraft_1_19) && c.Protocol.Lower(version.Minecraft_1_19_3) {
			err = util.WriteBool(wr, e.Salt == nil) // true means verify token follows
			if err != nil {
				return err
			}
			if e.Salt != nil {
				err = util.WriteInt64(wr, *e.Salt)
				if err != nil {
					return err
				}
			}
		}
		return util.WriteBytes(wr, e.VerifyToken)
	}
	err := util.WriteBytes17(wr, e.SharedSecret, false)
	if err != nil {
		return err
	}
	return util.WriteBytes17(wr, e.VerifyToken, false)
}

func (e *EncryptionResponse) Decode(c *proto.PacketContext, rd io.Reader) (err error) {
	if c.Protocol.GreaterEqual(version.Minecraft_1_8) {
		e.SharedSecret, err = util.ReadBytesLen(rd, 128)
		if err != nil {
			return
		}
		if c.Protocol.GreaterEqual(version.Minecraft_1_19) && c.Protocol.Lower(version.Minecraft_1_19_3) {
			ok, err := util.ReadBool(rd)
			if err != nil {
				return err
			}
			if !ok { // salted signature instead of verify token
				salt, err := util.ReadInt64(rd)
				if err != nil {
					return err
				}
				e.Salt = &salt
			}
		}
		limit := 128
		if c.Protocol.GreaterEqual(version.Minecraft_1_19) {
			limit = 256
		}
		e.VerifyToken, err = util.ReadBytesLen(rd, limit)
		return err
	}
	e.SharedSecret, err = util.ReadBytes17(rd)
	if err != nil {
		return
	}
	e.VerifyToken, err = util.ReadBytes17(rd)
	return
}

type ServerLoginSuccess struct {
	UUID       uuid.UUID
	Username   string
	Properties []profile.Property // 1.19+
}

func (s *ServerLoginSuccess) Encode(c *proto.PacketContext, wr io.Writer) (err error) {
	if s.Username == "" {
		return fmt.Errorf("no username specified")
	}
	if c.Protocol.GreaterEqual(version.Minecraft_1_16) {
		err = util.WriteUUID(wr, s.UUID)
	} else if c.Protocol.GreaterEqual(version.Minecraft_1_7_6) {
		err = util.WriteString(wr, s.UUID.String())
	} else {
		err = util.WriteString(wr, s.UUID.Undashed())
	}
	if err != nil {
		return err
	}
	err = util.WriteString(wr, s.Username)
	if err != nil {
		return err
	}
	if c.Protocol.GreaterEqual(version.Minecraft_1_19) {
		return util.WriteProperties(wr, s.Properties)
	}
	return nil
}

func (s *ServerLoginSuccess) Decode(c *proto.PacketContext, rd io.Reader) (err error) {
	if c.Protocol.GreaterEqual(version.Minecraft_1_16) {
		s.UUID, err = util.ReadUUID(rd)
	} else {
		var uuidString string
		if c.Protocol.GreaterEqual(version.Minecraft_1_7_6) {
			uuidString, err = util.ReadStringMax(rd, 36)
		} else {
			uuidString, err = util.ReadStringMax(rd, 32)
		}
		if err != nil {
			return
		}
		s.UUID, err = uuid.Parse(uuidString)
		if err != nil {
			return fmt.Errorf("error parsing uuid: %w", err)
		}
	}
	if err != nil {
		return
	}
	s.Username, err = util.ReadStringMax(rd, maxUsernameLen)
	if err != nil {
		return
	}
	if c.Protocol.GreaterEqual(version.Minecraft_1_19) {
		s.Properties, err = util.ReadProperties(rd)
	}
	return
}

type SetCompression struct {
	Threshold int
}

func (s *SetCompression) Encode(_ *proto.PacketContext, wr io.Writer) error {
	return util.WriteVarInt(wr, s.Threshold)
}

func (s *SetCompression) Decode(_ *proto.PacketContext, rd io.Reader) (err error) {
	s.Threshold, err = util.ReadVarInt(rd)
	return
}

// LoginAcknowledged confirms the login success and moves a
// 1.20.2+ connection into the configuration state.
type LoginAcknowledged struct{}

func (LoginAcknowledged) Encode(_ *proto.PacketContext, _ io.Writer) error { return nil }
func (LoginAcknowledged) Decode(_ *proto.PacketContext, _ io.Reader) error { return nil }

type LoginPluginMessage struct {
	ID      int
	Channel string
	Data    []byte
}

func (l *LoginPluginMessage) Encode(_ *proto.PacketContext, wr io.Writer) error {
	err := util.WriteVarInt(wr, l.ID)
	if err != nil {
		return err
	}
	err = util.WriteString(wr, l.Channel)
	if err != nil {
		return err
	}
	return util.WriteRawBytes(wr, l.Data)
}

func (l *LoginPluginMessage) Decode(_ *proto.PacketContext, rd io.Reader) (err error) {
	l.ID, err = util.ReadVarInt(rd)
	if err != nil {
		return err
	}
	l.Channel, err = util.ReadString(rd)
	if err != nil {
		return err
	}
	l.Data, err = util.ReadRawBytes(rd)
	return
}

type LoginPluginResponse struct {
	ID      int
	Success bool
	Data    []byte
}

func (l *LoginPluginResponse) Encode(_ *proto.PacketContext, wr io.Writer) error {
	err := util.WriteVarInt(wr, l.ID)
	if err != nil {
		return err
	}
	err = util.WriteBool(wr, l.Success)
	if err != nil {
		return err
	}
	return util.WriteRawBytes(wr, l.Data)
}

func (l *LoginPluginResponse) Decode(_ *proto.PacketContext, rd io.Reader) (err error) {
	l.ID, err = util.ReadVarInt(rd)
	if err != nil {
		return err
	}
	l.Success, err = util.ReadBool(rd)
	if err != nil {
		return err
	}
	l.Data, err = util.ReadRawBytes(rd)
	return
}

var (
	_ proto.Packet = (*ServerLogin)(nil)
	_ proto.Packet = (*ServerLoginSuccess)(nil)
	_ proto.Packet = (*LoginAcknowledged)(nil)
	_ proto.Packet = (*LoginPluginMessage)(nil)
	_ proto.Packet = (*LoginPluginResponse)(nil)
	_ proto.Packet = (*EncryptionRequest)(nil)
	_ proto.Packet = (*EncryptionResponse)(nil)
	_ proto.Packet = (*SetCompression)(nil)
)
