// Package kv maps typed session settings onto the flat string key/value
// stores used for lobby metadata and game server rules.
//
// A setting named NAME holding a value of kind K is stored under the key
// NAME_<suffix>, where the suffix is one of i, l, d, s, f or b for Int32,
// Int64, Double, String, Float and Bool. The value is stored in its
// canonical string form.
package kv

import (
	"strconv"
	"strings"

	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/online"
)

const (
	suffixInt32  = "i"
	suffixInt64  = "l"
	suffixDouble = "d"
	suffixString = "s"
	suffixFloat  = "f"
	suffixBool   = "b"

	separator = "_"
)

// Suffix returns the type suffix for v, or false if v cannot be stored.
func Suffix(v online.Value) (string, bool) {
	switch v.(type) {
	case online.Int32:
		return suffixInt32, true
	case online.Int64:
		return suffixInt64, true
	case online.Double:
		return suffixDouble, true
	case online.String:
		return suffixString, true
	case online.Float:
		return suffixFloat, true
	case online.Bool:
		return suffixBool, true
	case online.Empty, online.Blob, nil:
		return "", false
	default:
		return "", false
	}
}

// Key returns the store key for a setting name and value.
func Key(name string, v online.Value) (string, bool) {
	suffix, ok := Suffix(v)
	if !ok {
		return "", false
	}

	return name + separator + suffix, true
}

// Encode returns the store key and value for a setting. It returns false for
// values the store cannot carry; callers skip those settings.
func Encode(name string, v online.Value) (key, value string, ok bool) {
	key, ok = Key(name, v)
	if !ok {
		return "", "", false
	}

	return key, v.String(), true
}

// Decode parses a store key and value back into a setting name and value.
// It returns false, and zero outputs, when the key has no suffix, the suffix
// is unknown or the value does not parse as the suffix's type.
func Decode(key, value string) (string, online.Value, bool) {
	i := strings.LastIndex(key, separator)
	if i <= 0 {
		return "", nil, false
	}

	name, suffix := key[:i], key[i+1:]

	v, err := parse(suffix, value)
	if err != nil {
		return "", nil, false
	}

	return name, v, true
}

func parse(suffix, value string) (online.Value, error) {
	switch suffix {
	case suffixInt32:
		n, err := strconv.ParseInt(value, 10, 32)
		return online.Int32(n), err
	case suffixInt64:
		n, err := strconv.ParseInt(value, 10, 64)
		return online.Int64(n), err
	case suffixDouble:
		f, err := strconv.ParseFloat(value, 64)
		return online.Double(f), err
	case suffixString:
		return online.String(value), nil
	case suffixFloat:
		f, err := strconv.ParseFloat(value, 32)
		return online.Float(f), err
	case suffixBool:
		b, err := strconv.ParseBool(value)
		return online.Bool(b), err
	default:
		return nil, UnknownSuffixError(suffix)
	}
}
