package util

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/bifrostmc/bifrost/pkg/profile"
	"github.com/bifrostmc/bifrost/pkg/util/uuid"
)

// ErrVarIntTooLong is returned when a varint uses more than 5 bytes.
var ErrVarIntTooLong = errors.New("decode: VarInt is too big")

func ReadString(rd io.Reader) (string, error) {
	return ReadStringMax(rd, bufio.MaxScanTokenSize)
}

func ReadStringMax(rd io.Reader, max int) (string, error) {
	length, err := ReadVarInt(rd)
	if err != nil {
		return "", err
	}
	return readStringMax(rd, max, length)
}

func readStringMax(rd io.Reader, max, length int) (string, error) {
	if length < 0 {
		return "", errors.New("length of string must not be negative")
	}
	if length > max*4 { // *4 since an UTF-8 character has up to 4 bytes
		return "", fmt.Errorf("bad string length (got %d, max. %d)", length, max)
	}
	str := make([]byte, length)
	_, err := io.ReadFull(rd, str)
	if err != nil {
		return "", err
	}
	return string(str), nil
}

func ReadStringArray(rd io.Reader) ([]string, error) {
	length, err := ReadVarInt(rd)
	if err != nil {
		return nil, err
	}
	if length < 0 {
		return nil, fmt.Errorf("got negative-length string array (%d)", length)
	}
	a := make([]string, 0, length)
	for i := 0; i < length; i++ {
		s, err := ReadString(rd)
		if err != nil {
			return nil, err
		}
		a = append(a, s)
	}
	return a, nil
}

func ReadBytes(rd io.Reader) ([]byte, error) {
	return ReadBytesLen(rd, bufio.MaxScanTokenSize)
}

func ReadBytesLen(rd io.Reader, maxLength int) (bytes []byte, err error) {
	length, err := ReadVarInt(rd)
	if err != nil {
		return
	}
	if length < 0 {
		err = fmt.Errorf("decode: bytes length is < 0: %d", length)
		return
	}
	if length > maxLength {
		err = fmt.Errorf("decode: bytes length %d is above given maximum: %d", length, maxLength)
		return
	}
	bytes = make([]byte, length)
	_, err = io.ReadFull(rd, bytes)
	return
}

// ReadRawBytes reads all remaining bytes from the reader without a length prefix.
func ReadRawBytes(rd io.Reader) ([]byte, error) {
	return io.ReadAll(rd)
}

// ReadStringWithoutLen reads a non length-prefixed string from the reader.
// Needed for the legacy 1.7 version being inconsistent
// when sending the plugin message channel brand.
func ReadStringWithoutLen(rd io.Reader) (string, error) {
	b, err := io.ReadAll(rd)
	return string(b), err
}

func ReadVarInt(r io.Reader) (result int, err error) {
	result, _, err = ReadVarIntReturnN(r)
	return result, err
}

// ReadVarIntReturnN reads a varint and additionally
// returns the number of bytes it occupied.
func ReadVarIntReturnN(r io.Reader) (result, n int, err error) {
	br, ok := r.(io.ByteReader)
	if !ok {
		br = &singleByteReader{r: r}
	}
	var uresult uint32
	for i := 0; ; i++ {
		b, err := br.ReadByte()
		if err != nil {
			return 0, n, err
		}
		n++
		uresult |= uint32(b&0x7F) << uint32(7*i)
		if i >= 5 {
			return 0, n, ErrVarIntTooLong
		}
		if b&0x80 == 0 {
			break
		}
	}
	return int(int32(uresult)), n, nil
}

type singleByteReader struct {
	r   io.Reader
	buf [1]byte
}

func (s *singleByteReader) ReadByte() (byte, error) {
	_, err := io.ReadFull(s.r, s.buf[:1])
	return s.buf[0], err
}

func ReadBool(rd io.Reader) (val bool, err error) {
	uval, err := ReadUint8(rd)
	if err != nil {
		return
	}
	val = uval != 0
	return
}

func ReadInt8(rd io.Reader) (val int8, err error) {
	uval, err := ReadUint8(rd)
	val = int8(uval)
	return
}

func ReadUint8(rd io.Reader) (val uint8, err error) {
	if br, ok := rd.(io.ByteReader); ok {
		return br.ReadByte()
	}
	var b [1]byte
	_, err = io.ReadFull(rd, b[:1])
	val = b[0]
	return
}

func ReadByte(rd io.Reader) (val byte, err error) {
	return ReadUint8(rd)
}

func ReadInt16(rd io.Reader) (val int16, err error) {
	uval, err := ReadUint16(rd)
	val = int16(uval)
	return
}

func ReadUint16(rd io.Reader) (val uint16, err error) {
	var b [2]byte
	_, err = io.ReadFull(rd, b[:2])
	val = binary.BigEndian.Uint16(b[:2])
	return
}

func ReadInt32(rd io.Reader) (val int32, err error) {
	uval, err := ReadUint32(rd)
	val = int32(uval)
	return
}

func ReadInt(rd io.Reader) (int, error) {
	i, err := ReadInt32(rd)
	return int(i), err
}

func ReadUint32(rd io.Reader) (val uint32, err error) {
	var b [4]byte
	_, err = io.ReadFull(rd, b[:4])
	val = binary.BigEndian.Uint32(b[:4])
	return
}

func ReadInt64(rd io.Reader) (val int64, err error) {
	uval, err := ReadUint64(rd)
	val = int64(uval)
	return
}

func ReadUint64(rd io.Reader) (val uint64, err error) {
	var b [8]byte
	_, err = io.ReadFull(rd, b[:8])
	val = binary.BigEndian.Uint64(b[:8])
	return
}

func ReadFloat32(rd io.Reader) (val float32, err error) {
	ival, err := ReadUint32(rd)
	val = math.Float32frombits(ival)
	return
}

func ReadFloat64(rd io.Reader) (val float64, err error) {
	ival, err := ReadUint64(rd)
	val = math.Float64frombits(ival)
	return
}

// ReadExtendedForgeShort reads a Minecraft-style extended short.
func ReadExtendedForgeShort(rd io.Reader) (int, error) {
	ulow, err := ReadUint16(rd)
	if err != nil {
		return 0, err
	}
	low := int(ulow)
	var high int
	if low&0x8000 != 0 {
		low = low & 0x7FFF
		uhigh, err := ReadUint8(rd)
		if err != nil {
			return 0, err
		}
		high = int(uhigh)
	}
	return ((high & 0xFF) << 15) | low, nil
}

const ForgeMaxArrayLength = math.MaxInt32 & 0x1FFF9A

// ReadBytes17 reads a byte array with the Minecraft 1.7 style length.
func ReadBytes17(rd io.Reader) ([]byte, error) {
	// Read in a 2 or 3 byte number that represents the length of the packet.
	// (3 byte "shorts" for Forge only)
	// No vanilla packet should give a 3 byte packet.
	length, err := ReadExtendedForgeShort(rd)
	if err != nil {
		return nil, err
	}
	if length > ForgeMaxArrayLength {
		return nil, fmt.Errorf("cannot receive array > %d (got %d)", ForgeMaxArrayLength, length)
	}
	b := make([]byte, length)
	_, err = io.ReadFull(rd, b)
	return b, err
}

func ReadUUID(rd io.Reader) (id uuid.UUID, err error) {
	b := make([]byte, 16)
	_, err = io.ReadFull(rd, b)
	if err != nil {
		return
	}
	return uuid.FromBytes(b)
}

func ReadProperties(rd io.Reader) (props []profile.Property, err error) {
	size, err := ReadVarInt(rd)
	if err != nil {
		return
	}
	if size < 0 {
		return nil, fmt.Errorf("got negative-length properties (%d)", size)
	}
	props = make([]profile.Property, 0, size)
	var name, value, signature string
	for i := 0; i < size; i++ {
		name, err = ReadString(rd)
		if err != nil {
			return nil, err
		}
		value, err = ReadString(rd)
		if err != nil {
			return nil, err
		}
		signature = ""
		hasSignature, err := ReadBool(rd)
		if err != nil {
			return nil, err
		}
		if hasSignature {
			signature, err = ReadString(rd)
			if err != nil {
				return nil, err
			}
		}
		props = append(props, profile.Property{
			Name:      name,
			Value:     value,
			Signature: signature,
		})
	}
	return
}

// ReadUTF reads a length-prefixed modified UTF-8 string as
// Java's DataInput.readUTF does. Used by the legacy ping.
func ReadUTF(rd io.Reader) (string, error) {
	length, err := ReadUint16(rd)
	if err != nil {
		return "", err
	}
	p := make([]byte, length)
	_, err = io.ReadFull(rd, p)
	return string(p), err
}
