package kv

import "fmt"

// UnknownSuffixError is returned when a store key carries a type suffix the
// codec does not recognise.
type UnknownSuffixError string

func (e UnknownSuffixError) Error() string {
	return fmt.Sprintf("unknown type suffix: %q", string(e))
}

// MissingKeyError is returned when session metadata lacks a required
// well-known key.
type MissingKeyError string

func (e MissingKeyError) Error() string {
	return fmt.Sprintf("missing required key: %q", string(e))
}

// InvalidKeyError is returned when a well-known key holds a value that does
// not parse.
type InvalidKeyError struct {
	Key   string
	Value string
	Err   error
}

func (e *InvalidKeyError) Error() string {
	return fmt.Sprintf("invalid value %q for key %q: %s", e.Value, e.Key, e.Err)
}

func (e *InvalidKeyError) Unwrap() error {
	return e.Err
}
