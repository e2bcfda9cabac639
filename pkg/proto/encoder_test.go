package proto

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncoder_WriteString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		enc     Encoder
		s       string
		want    []byte
		wantErr error
	}{
		{
			name: "null terminated",
			enc:  Encoder{Order: binary.LittleEndian, Strings: NullTerminated},
			s:    "ab",
			want: []byte{'a', 'b', 0},
		},
		{
			name: "uint8 prefixed",
			enc:  Encoder{Order: binary.BigEndian, Strings: Uint8Prefixed},
			s:    "ab",
			want: []byte{2, 'a', 'b'},
		},
		{
			name: "uint32 prefixed",
			enc:  Encoder{Order: binary.BigEndian, Strings: Uint32Prefixed},
			s:    "ab",
			want: []byte{0, 0, 0, 2, 'a', 'b'},
		},
		{
			name:    "uint8 prefix overflow",
			enc:     Encoder{Order: binary.BigEndian, Strings: Uint8Prefixed},
			s:       strings.Repeat("x", 256),
			wantErr: ErrStringTooLong,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			buf := bytes.NewBuffer(nil)

			err := tt.enc.WriteString(buf, tt.s)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.want, buf.Bytes())
		})
	}
}

func TestEncoder_Write(t *testing.T) {
	t.Parallel()
	buf := bytes.NewBuffer(nil)

	require.NoError(t, Encoder{Order: binary.LittleEndian}.Write(buf, uint16(0x0102)))
	require.NoError(t, Encoder{Order: binary.BigEndian}.Write(buf, uint16(0x0102)))
	require.Equal(t, []byte{2, 1, 1, 2}, buf.Bytes())
}
