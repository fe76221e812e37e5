package util

import (
	"io"
)

// PReader wraps a reader with panic-on-error read methods.
// Use only inside packet codecs guarded by RecoverFunc.
type PReader struct {
	r io.Reader
}

func PanicReader(r io.Reader) *PReader {
	return &PReader{r}
}

func (r *PReader) VarInt(i *int)                 { PReadVarInt(r.r, i) }
func (r *PReader) String(s *string)              { PReadString(r.r, s) }
func (r *PReader) StringMax(s *string, max int)  { PReadStringMax(r.r, s, max) }
func (r *PReader) Uint8(i *uint8)                { PReadUint8(r.r, i) }
func (r *PReader) Byte(b *byte)                  { PReadUint8(r.r, b) }
func (r *PReader) Bytes(b *[]byte)               { PReadBytes(r.r, b) }
func (r *PReader) Bool(b *bool)                  { PReadBool(r.r, b) }
func (r *PReader) Int64(i *int64)                { PReadInt64(r.r, i) }
func (r *PReader) Int(i *int)                    { PReadInt(r.r, i) }
func (r *PReader) Strings(s *[]string)           { PReadStrings(r.r, s) }
func (r *PReader) Float32(f *float32)            { PReadFloat32(r.r, f) }

// Ok reads a bool, useful for optional fields.
func (r *PReader) Ok() bool {
	var ok bool
	PReadBool(r.r, &ok)
	return ok
}

func PReadVarInt(rd io.Reader, i *int) {
	v, err := ReadVarInt(rd)
	if err != nil {
		panic(err)
	}
	*i = v
}

func PReadString(rd io.Reader, s *string) {
	v, err := ReadString(rd)
	if err != nil {
		panic(err)
	}
	*s = v
}

func PReadStringMax(rd io.Reader, s *string, max int) {
	v, err := ReadStringMax(rd, max)
	if err != nil {
		panic(err)
	}
	*s = v
}

func PReadUint8(rd io.Reader, i *uint8) {
	v, err := ReadUint8(rd)
	if err != nil {
		panic(err)
	}
	*i = v
}

func PReadBytes(rd io.Reader, b *[]byte) {
	v, err := ReadBytes(rd)
	if err != nil {
		panic(err)
	}
	*b = v
}

func PReadBool(rd io.Reader, b *bool) {
	v, err := ReadBool(rd)
	if err != nil {
		panic(err)
	}
	*b = v
}

func PReadInt64(rd io.Reader, i *int64) {
	v, err := ReadInt64(rd)
	if err != nil {
		panic(err)
	}
	*i = v
}

func PReadInt(rd io.Reader, i *int) {
	v, err := ReadInt(rd)
	if err != nil {
		panic(err)
	}
	*i = v
}

func PReadStrings(rd io.Reader, s *[]string) {
	v, err := ReadStringArray(rd)
	if err != nil {
		panic(err)
	}
	*s = v
}

func PReadFloat32(rd io.Reader, f *float32) {
	v, err := ReadFloat32(rd)
	if err != nil {
		panic(err)
	}
	*f = v
}

func PReadVarIntVal(rd io.Reader) int {
	var i int
	PReadVarInt(rd, &i)
	return i
}

func PReadStringVal(rd io.Reader) string {
	var s string
	PReadString(rd, &s)
	return s
}

func PReadBoolVal(rd io.Reader) bool {
	var b bool
	PReadBool(rd, &b)
	return b
}
