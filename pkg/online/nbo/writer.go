// Package nbo serializes sessions into a fixed network byte order layout for
// the LAN discovery protocol.
//
// The append order of every record is the wire contract between builds.
// Only the advertised settings tail varies in length; it is written sorted by
// setting name.
package nbo

import (
	"encoding/binary"
	"math"
	"net/netip"

	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/online"
)

// AddrLen is the size of a serialized address: 16 address bytes and a port.
const AddrLen = 16 + 2

// Writer appends big-endian records to a growing buffer.
type Writer struct {
	buf []byte
}

// NewWriter returns a writer with the given initial capacity.
func NewWriter(capacity int) *Writer {
	return &Writer{buf: make([]byte, 0, capacity)}
}

// Bytes returns the written bytes.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len returns the number of bytes written.
func (w *Writer) Len() int {
	return len(w.buf)
}

// WriteUint8 appends one byte.
func (w *Writer) WriteUint8(v uint8) {
	w.buf = append(w.buf, v)
}

// WriteUint16 appends v in network byte order.
func (w *Writer) WriteUint16(v uint16) {
	w.buf = binary.BigEndian.AppendUint16(w.buf, v)
}

// WriteUint32 appends v in network byte order.
func (w *Writer) WriteUint32(v uint32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
}

// WriteUint64 appends v in network byte order.
func (w *Writer) WriteUint64(v uint64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, v)
}

// WriteInt32 appends the two's complement bits of v.
func (w *Writer) WriteInt32(v int32) {
	w.WriteUint32(uint32(v))
}

// WriteInt64 appends the two's complement bits of v.
func (w *Writer) WriteInt64(v int64) {
	w.WriteUint64(uint64(v))
}

// WriteFloat32 appends the IEEE 754 bits of v.
func (w *Writer) WriteFloat32(v float32) {
	w.WriteUint32(math.Float32bits(v))
}

// WriteFloat64 appends the IEEE 754 bits of v.
func (w *Writer) WriteFloat64(v float64) {
	w.WriteUint64(math.Float64bits(v))
}

// WriteBool appends v as a single 0 or 1 byte.
func (w *Writer) WriteBool(v bool) {
	if v {
		w.WriteUint8(1)
		return
	}

	w.WriteUint8(0)
}

// WriteBytes writes a uint32 length followed by b.
func (w *Writer) WriteBytes(b []byte) {
	w.WriteUint32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}

// WriteString writes a uint32 length followed by the bytes of s.
func (w *Writer) WriteString(s string) {
	w.WriteUint32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

// WriteID writes the 8 raw bytes of id.
func (w *Writer) WriteID(id online.ID) {
	w.WriteUint64(uint64(id))
}

// WriteAddrPort writes addr as 16 bytes followed by its port. IPv4
// addresses are written in their IPv4-mapped form; an invalid address is
// written as zeroes.
func (w *Writer) WriteAddrPort(addr netip.AddrPort) {
	var a [16]byte
	if addr.IsValid() {
		a = addr.Addr().As16()
	}

	w.buf = append(w.buf, a[:]...)
	w.WriteUint16(addr.Port())
}

// WriteSessionInfo writes the host address followed by the session id.
func (w *Writer) WriteSessionInfo(info online.SessionInfo) {
	w.WriteAddrPort(info.HostAddr)
	w.WriteID(info.SessionID)
}

// WriteValue writes the kind tag of v followed by its payload.
func (w *Writer) WriteValue(v online.Value) {
	if v == nil {
		v = online.Empty{}
	}

	w.WriteUint8(uint8(v.Kind()))

	switch v := v.(type) {
	case online.Empty:
	case online.Int32:
		w.WriteInt32(int32(v))
	case online.Int64:
		w.WriteInt64(int64(v))
	case online.Double:
		w.WriteFloat64(float64(v))
	case online.Float:
		w.WriteFloat32(float32(v))
	case online.String:
		w.WriteString(string(v))
	case online.Bool:
		w.WriteBool(bool(v))
	case online.Blob:
		w.WriteBytes(v)
	}
}

// WriteSettings writes the fixed scalar fields of s followed by the count
// and contents of every advertised setting.
func (w *Writer) WriteSettings(s *online.SessionSettings) {
	w.WriteInt32(s.NumPublicConnections)
	w.WriteInt32(s.NumPrivateConnections)
	w.WriteBool(s.ShouldAdvertise)
	w.WriteBool(s.AllowJoinInProgress)
	w.WriteBool(s.IsLANMatch)
	w.WriteBool(s.IsDedicated)
	w.WriteBool(s.UsesStats)
	w.WriteBool(s.AllowInvites)
	w.WriteBool(s.UsesPresence)
	w.WriteBool(s.AllowJoinViaPresence)
	w.WriteBool(s.AllowJoinViaPresenceFriendsOnly)
	w.WriteBool(s.AntiCheatProtected)
	w.WriteInt32(s.BuildUniqueID)

	names := s.AdvertisedNames()
	w.WriteUint32(uint32(len(names)))

	for _, name := range names {
		st := s.Settings[name]
		w.WriteString(name)
		w.WriteValue(st.Data)
		w.WriteUint8(uint8(st.AdvertisementType))
	}
}

// WriteSession writes the session info, owner, open slot counts and settings
// of s.
func (w *Writer) WriteSession(s *online.Session) {
	w.WriteSessionInfo(s.Info)
	w.WriteID(s.OwningUserID)
	w.WriteString(s.OwningUserName)
	w.WriteInt32(s.NumOpenPrivateConnections)
	w.WriteInt32(s.NumOpenPublicConnections)
	w.WriteSettings(&s.Settings)
}
