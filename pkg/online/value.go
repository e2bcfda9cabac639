package online

import (
	"bytes"
	"encoding/hex"
	"strconv"
)

type (
	// ValueKind identifies which variant a Value holds.
	ValueKind uint8

	// Value is a typed session setting payload. It is a closed set: the only
	// implementations are the types declared in this file, so a type switch
	// over them is exhaustive.
	Value interface {
		// Kind returns the variant tag.
		Kind() ValueKind

		// String returns the canonical string form of the value.
		String() string

		isValue()
	}

	// Empty is a setting with no payload.
	Empty struct{}

	// Int32 is a 32-bit signed integer setting.
	Int32 int32

	// Int64 is a 64-bit signed integer setting.
	Int64 int64

	// Double is a 64-bit floating point setting.
	Double float64

	// Float is a 32-bit floating point setting.
	Float float32

	// String is a string setting.
	String string

	// Bool is a boolean setting.
	Bool bool

	// Blob is an opaque byte payload. It cannot be carried by the key/value
	// codec.
	Blob []byte
)

const (
	KindEmpty ValueKind = iota
	KindInt32
	KindInt64
	KindDouble
	KindString
	KindFloat
	KindBool
	KindBlob
)

func (Empty) Kind() ValueKind  { return KindEmpty }
func (Int32) Kind() ValueKind  { return KindInt32 }
func (Int64) Kind() ValueKind  { return KindInt64 }
func (Double) Kind() ValueKind { return KindDouble }
func (Float) Kind() ValueKind  { return KindFloat }
func (String) Kind() ValueKind { return KindString }
func (Bool) Kind() ValueKind   { return KindBool }
func (Blob) Kind() ValueKind   { return KindBlob }

func (Empty) String() string    { return "" }
func (v Int32) String() string  { return strconv.FormatInt(int64(v), 10) }
func (v Int64) String() string  { return strconv.FormatInt(int64(v), 10) }
func (v Double) String() string { return strconv.FormatFloat(float64(v), 'g', -1, 64) }
func (v Float) String() string  { return strconv.FormatFloat(float64(v), 'g', -1, 32) }
func (v String) String() string { return string(v) }
func (v Bool) String() string   { return strconv.FormatBool(bool(v)) }
func (v Blob) String() string   { return hex.EncodeToString(v) }

func (Empty) isValue()  {}
func (Int32) isValue()  {}
func (Int64) isValue()  {}
func (Double) isValue() {}
func (Float) isValue()  {}
func (String) isValue() {}
func (Bool) isValue()   {}
func (Blob) isValue()   {}

// EqualValues reports whether a and b hold the same variant and payload.
// A nil Value equals only another nil Value.
func EqualValues(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	if a.Kind() != b.Kind() {
		return false
	}

	if ab, ok := a.(Blob); ok {
		return bytes.Equal(ab, b.(Blob))
	}

	return a == b
}

// Numeric returns the value as a float64 for ordered comparisons.
func Numeric(v Value) (float64, bool) {
	switch n := v.(type) {
	case Int32:
		return float64(n), true
	case Int64:
		return float64(n), true
	case Double:
		return float64(n), true
	case Float:
		return float64(n), true
	case Bool:
		if n {
			return 1, true
		}

		return 0, true
	default:
		return 0, false
	}
}

// CloneValue returns a copy of v that shares no memory with it.
func CloneValue(v Value) Value {
	if b, ok := v.(Blob); ok {
		return append(Blob(nil), b...)
	}

	return v
}
