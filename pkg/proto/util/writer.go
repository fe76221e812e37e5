package util

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/bifrostmc/bifrost/pkg/profile"
	"github.com/bifrostmc/bifrost/pkg/util/uuid"
)

func WriteString(wr io.Writer, val string) error {
	return WriteBytes(wr, []byte(val))
}

func WriteVarInt(wr io.Writer, val int) error {
	_, err := WriteVarIntN(wr, val)
	return err
}

// WriteVarIntN writes a varint and returns the number of bytes written.
func WriteVarIntN(wr io.Writer, val int) (n int, err error) {
	uval := uint32(val)
	for uval >= 0x80 {
		if err = WriteUint8(wr, byte(uval)|0x80); err != nil {
			return n, err
		}
		n++
		uval >>= 7
	}
	if err = WriteUint8(wr, byte(uval)); err != nil {
		return n, err
	}
	return n + 1, nil
}

func WriteBool(wr io.Writer, val bool) error {
	if val {
		return WriteUint8(wr, 1)
	}
	return WriteUint8(wr, 0)
}

func WriteInt8(wr io.Writer, val int8) error {
	return WriteUint8(wr, uint8(val))
}

func WriteUint8(wr io.Writer, val uint8) (err error) {
	if bw, ok := wr.(io.ByteWriter); ok {
		return bw.WriteByte(val)
	}
	var b [1]byte
	b[0] = val
	_, err = wr.Write(b[:1])
	return
}

func WriteByte(wr io.Writer, val byte) error {
	return WriteUint8(wr, val)
}

func WriteInt16(wr io.Writer, val int16) error {
	return WriteUint16(wr, uint16(val))
}

func WriteUint16(wr io.Writer, val uint16) (err error) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:2], val)
	_, err = wr.Write(b[:2])
	return
}

func WriteInt32(wr io.Writer, val int32) error {
	return WriteUint32(wr, uint32(val))
}

func WriteInt(wr io.Writer, val int) error {
	return WriteInt32(wr, int32(val))
}

func WriteUint32(wr io.Writer, val uint32) (err error) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:4], val)
	_, err = wr.Write(b[:4])
	return
}

func WriteInt64(wr io.Writer, val int64) error {
	return WriteUint64(wr, uint64(val))
}

func WriteUint64(wr io.Writer, val uint64) (err error) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:8], val)
	_, err = wr.Write(b[:8])
	return
}

func WriteFloat32(wr io.Writer, val float32) error {
	return WriteUint32(wr, math.Float32bits(val))
}

func WriteFloat64(wr io.Writer, val float64) error {
	return WriteUint64(wr, math.Float64bits(val))
}

func WriteBytes(wr io.Writer, b []byte) error {
	err := WriteVarInt(wr, len(b))
	if err != nil {
		return err
	}
	_, err = wr.Write(b)
	return err
}

// WriteRawBytes writes a raw stream of bytes with no length prefix.
// Needed for the non-standard login plugin response payload format.
func WriteRawBytes(wr io.Writer, b []byte) error {
	_, err := wr.Write(b)
	return err
}

func WriteStrings(wr io.Writer, a []string) error {
	err := WriteVarInt(wr, len(a))
	if err != nil {
		return err
	}
	for _, s := range a {
		if err = WriteString(wr, s); err != nil {
			return err
		}
	}
	return nil
}

// WriteUUID encodes a UUID as an unsigned 128-bit integer:
// the most significant and then the least significant 64 bits.
func WriteUUID(wr io.Writer, id uuid.UUID) error {
	err := WriteUint64(wr, binary.BigEndian.Uint64(id[:8]))
	if err != nil {
		return err
	}
	return WriteUint64(wr, binary.BigEndian.Uint64(id[8:]))
}

func WriteProperties(wr io.Writer, properties []profile.Property) error {
	err := WriteVarInt(wr, len(properties))
	if err != nil {
		return err
	}
	for _, p := range properties {
		if err = WriteString(wr, p.Name); err != nil {
			return err
		}
		if err = WriteString(wr, p.Value); err != nil {
			return err
		}
		hasSignature := len(p.Signature) != 0
		if err = WriteBool(wr, hasSignature); err != nil {
			return err
		}
		if hasSignature {
			if err = WriteString(wr, p.Signature); err != nil {
				return err
			}
		}
	}
	return nil
}

func WriteBytes17(wr io.Writer, b []byte, allowExtended bool) error {
	if allowExtended {
		if len(b) > ForgeMaxArrayLength {
			return fmt.Errorf("cannot write byte array longer than %d (got %d bytes)",
				ForgeMaxArrayLength, len(b))
		}
	} else {
		if len(b) > math.MaxInt16 {
			return fmt.Errorf("cannot write byte array longer than %d (got %d bytes)",
				math.MaxInt16, len(b))
		}
	}
	err := WriteExtendedForgeShort(wr, len(b))
	if err != nil {
		return err
	}
	_, err = wr.Write(b)
	return err
}

func WriteExtendedForgeShort(wr io.Writer, toWrite int) (err error) {
	low := toWrite & 0x7FFF
	high := (toWrite & 0x7F8000) >> 15
	if high != 0 {
		low = low | 0x8000
	}
	if err = WriteUint16(wr, uint16(low)); err != nil {
		return err
	}
	if high != 0 {
		_, err = wr.Write([]byte{byte(high)})
	}
	return
}

// WriteUTF writes a length-prefixed modified UTF-8 string as
// Java's DataOutput.writeUTF does. Used by the legacy ping.
func WriteUTF(wr io.Writer, s string) error {
	err := WriteUint16(wr, uint16(len(s)))
	if err != nil {
		return err
	}
	_, err = wr.Write([]byte(s))
	return err
}
