package proto

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
)

// StringFraming is how an Encoder delimits strings on the wire.
type StringFraming uint8

const (
	// NullTerminated writes the bytes of a string followed by a zero byte.
	NullTerminated StringFraming = iota

	// Uint8Prefixed writes a one byte length followed by the bytes.
	Uint8Prefixed

	// Uint32Prefixed writes a four byte length in the encoder byte order
	// followed by the bytes.
	Uint32Prefixed
)

// ErrStringTooLong is returned when a string does not fit its length prefix.
var ErrStringTooLong = errors.New("string too long for its length prefix")

// Encoder implements WireEncoder for a byte order and string framing.
type Encoder struct {
	Order   binary.ByteOrder
	Strings StringFraming
}

// WriteString writes s to resp with the framing of e.
func (e Encoder) WriteString(resp *bytes.Buffer, s string) error {
	switch e.Strings {
	case Uint8Prefixed:
		if len(s) > math.MaxUint8 {
			return ErrStringTooLong
		}

		resp.WriteByte(byte(len(s)))

	case Uint32Prefixed:
		if uint64(len(s)) > math.MaxUint32 {
			return ErrStringTooLong
		}

		if err := binary.Write(resp, e.Order, uint32(len(s))); err != nil {
			return err
		}
	}

	resp.WriteString(s)

	if e.Strings == NullTerminated {
		resp.WriteByte(0)
	}

	return nil
}

// Write writes arbitrary fixed-size data to resp in the byte order of e.
func (e Encoder) Write(resp *bytes.Buffer, v interface{}) error {
	return binary.Write(resp, e.Order, v)
}
