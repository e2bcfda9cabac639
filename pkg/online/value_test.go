package online

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEqualValues(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{name: "same int32", a: Int32(4), b: Int32(4), want: true},
		{name: "different kinds same number", a: Int32(4), b: Int64(4), want: false},
		{name: "strings", a: String("dm"), b: String("dm"), want: true},
		{name: "blobs", a: Blob{1, 2}, b: Blob{1, 2}, want: true},
		{name: "different blobs", a: Blob{1, 2}, b: Blob{1}, want: false},
		{name: "nil and nil", want: true},
		{name: "nil and empty", a: Empty{}, want: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, EqualValues(tt.a, tt.b))
		})
	}
}

func TestValue_String(t *testing.T) {
	t.Parallel()
	require.Equal(t, "-3", Int32(-3).String())
	require.Equal(t, "9000000000", Int64(9000000000).String())
	require.Equal(t, "0.25", Double(0.25).String())
	require.Equal(t, "1.5", Float(1.5).String())
	require.Equal(t, "true", Bool(true).String())
	require.Equal(t, "0a0b", Blob{0x0a, 0x0b}.String())
	require.Equal(t, "Int32", KindInt32.String())
}

func TestNumeric(t *testing.T) {
	t.Parallel()
	n, ok := Numeric(Float(2.5))
	require.True(t, ok)
	require.Equal(t, 2.5, n)

	n, ok = Numeric(Bool(true))
	require.True(t, ok)
	require.Equal(t, 1.0, n)

	_, ok = Numeric(String("x"))
	require.False(t, ok)
}

func TestCloneValue(t *testing.T) {
	t.Parallel()
	b := Blob{1, 2, 3}
	c := CloneValue(b).(Blob)
	c[0] = 9
	require.Equal(t, byte(1), b[0])
}
