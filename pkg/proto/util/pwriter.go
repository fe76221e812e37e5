package util

import (
	"io"
)

// Recover recovers a panicked error into the error pointer.
// Non-error panics are re-raised.
//
// Usage:
//
//	func fn() (err error) {
//		defer Recover(&err)
//		// code that may panic(err)
//	}
func Recover(err *error) {
	if r := recover(); r != nil {
		if e, ok := r.(error); ok {
			*err = e
		} else {
			panic(r)
		}
	}
}

// RecoverFunc runs fn and recovers a panicked error as its return value.
func RecoverFunc(fn func() error) (err error) {
	defer Recover(&err)
	return fn()
}

// PWriter wraps a writer with panic-on-error write methods.
// Use only inside packet codecs guarded by RecoverFunc.
type PWriter struct {
	w io.Writer
}

func PanicWriter(w io.Writer) *PWriter {
	return &PWriter{w}
}

func (w *PWriter) VarInt(i int)       { PWriteVarInt(w.w, i) }
func (w *PWriter) String(s string)    { PWriteString(w.w, s) }
func (w *PWriter) Bytes(b []byte)     { PWriteBytes(w.w, b) }
func (w *PWriter) Int64(i int64)      { PWriteInt64(w.w, i) }
func (w *PWriter) Int(i int)          { PWriteInt(w.w, i) }
func (w *PWriter) Byte(b byte)        { PWriteByte(w.w, b) }
func (w *PWriter) Strings(s []string) { PWriteStrings(w.w, s) }
func (w *PWriter) Float32(f float32)  { PWriteFloat32(w.w, f) }

// Bool writes and returns b, useful for optional fields.
func (w *PWriter) Bool(b bool) bool {
	PWriteBool(w.w, b)
	return b
}

func PWriteVarInt(wr io.Writer, i int) {
	if err := WriteVarInt(wr, i); err != nil {
		panic(err)
	}
}

func PWriteString(wr io.Writer, s string) {
	if err := WriteString(wr, s); err != nil {
		panic(err)
	}
}

func PWriteBytes(wr io.Writer, b []byte) {
	if err := WriteBytes(wr, b); err != nil {
		panic(err)
	}
}

func PWriteBool(wr io.Writer, b bool) {
	if err := WriteBool(wr, b); err != nil {
		panic(err)
	}
}

func PWriteInt64(wr io.Writer, i int64) {
	if err := WriteInt64(wr, i); err != nil {
		panic(err)
	}
}

func PWriteInt(wr io.Writer, i int) {
	if err := WriteInt(wr, i); err != nil {
		panic(err)
	}
}

func PWriteByte(wr io.Writer, b byte) {
	if err := WriteByte(wr, b); err != nil {
		panic(err)
	}
}

func PWriteStrings(wr io.Writer, s []string) {
	if err := WriteStrings(wr, s); err != nil {
		panic(err)
	}
}

func PWriteFloat32(wr io.Writer, f float32) {
	if err := WriteFloat32(wr, f); err != nil {
		panic(err)
	}
}
