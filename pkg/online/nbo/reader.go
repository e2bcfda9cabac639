package nbo

import (
	"encoding/binary"
	"math"
	"net/netip"

	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/online"
)

// Reader consumes records written by Writer. Reading past the end of the
// buffer sets the overflow flag and yields zero values from then on.
type Reader struct {
	buf      []byte
	off      int
	overflow bool
}

// NewReader returns a reader over buf.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// HasOverflow reports whether any read ran past the end of the buffer.
func (r *Reader) HasOverflow() bool {
	return r.overflow
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	if r.overflow {
		return 0
	}

	return len(r.buf) - r.off
}

// next returns the next n bytes, or nil on overflow.
func (r *Reader) next(n int) []byte {
	if r.overflow || n < 0 || n > len(r.buf)-r.off {
		r.overflow = true
		return nil
	}

	b := r.buf[r.off : r.off+n]
	r.off += n

	return b
}

// ReadUint8 reads one byte.
func (r *Reader) ReadUint8() uint8 {
	b := r.next(1)
	if b == nil {
		return 0
	}

	return b[0]
}

// ReadUint16 reads a value in network byte order.
func (r *Reader) ReadUint16() uint16 {
	b := r.next(2)
	if b == nil {
		return 0
	}

	return binary.BigEndian.Uint16(b)
}

// ReadUint32 reads a value in network byte order.
func (r *Reader) ReadUint32() uint32 {
	b := r.next(4)
	if b == nil {
		return 0
	}

	return binary.BigEndian.Uint32(b)
}

// ReadUint64 reads a value in network byte order.
func (r *Reader) ReadUint64() uint64 {
	b := r.next(8)
	if b == nil {
		return 0
	}

	return binary.BigEndian.Uint64(b)
}

// ReadInt32 reads the counterpart of Writer.WriteInt32.
func (r *Reader) ReadInt32() int32 {
	return int32(r.ReadUint32())
}

// ReadInt64 reads the counterpart of Writer.WriteInt64.
func (r *Reader) ReadInt64() int64 {
	return int64(r.ReadUint64())
}

// ReadFloat32 reads an IEEE 754 single precision value.
func (r *Reader) ReadFloat32() float32 {
	return math.Float32frombits(r.ReadUint32())
}

// ReadFloat64 reads an IEEE 754 double precision value.
func (r *Reader) ReadFloat64() float64 {
	return math.Float64frombits(r.ReadUint64())
}

// ReadBool reads a byte and reports whether it is non-zero.
func (r *Reader) ReadBool() bool {
	return r.ReadUint8() != 0
}

// ReadBytes reads a length-prefixed byte slice. The result is a copy.
func (r *Reader) ReadBytes() []byte {
	n := r.ReadUint32()
	if uint64(n) > uint64(r.Remaining()) {
		r.overflow = true
		return nil
	}

	return append([]byte(nil), r.next(int(n))...)
}

// ReadString reads a length-prefixed string.
func (r *Reader) ReadString() string {
	n := r.ReadUint32()
	if uint64(n) > uint64(r.Remaining()) {
		r.overflow = true
		return ""
	}

	return string(r.next(int(n)))
}

func (r *Reader) ReadID() online.ID {
	return online.ID(r.ReadUint64())
}

// ReadAddrPort reads an address written by WriteAddrPort. All-zero address
// bytes yield the invalid address.
func (r *Reader) ReadAddrPort() netip.AddrPort {
	b := r.next(16)
	port := r.ReadUint16()
	if b == nil {
		return netip.AddrPort{}
	}

	var a [16]byte
	copy(a[:], b)

	if a == [16]byte{} {
		return netip.AddrPort{}
	}

	return netip.AddrPortFrom(netip.AddrFrom16(a).Unmap(), port)
}

// ReadSessionInfo reads a record written by WriteSessionInfo.
func (r *Reader) ReadSessionInfo() online.SessionInfo {
	return online.SessionInfo{
		HostAddr:  r.ReadAddrPort(),
		SessionID: r.ReadID(),
	}
}

// ReadValue reads a kind tag and payload. An unknown kind sets the overflow
// flag, since the rest of the buffer can no longer be framed.
func (r *Reader) ReadValue() online.Value {
	switch online.ValueKind(r.ReadUint8()) {
	case online.KindEmpty:
		return online.Empty{}
	case online.KindInt32:
		return online.Int32(r.ReadInt32())
	case online.KindInt64:
		return online.Int64(r.ReadInt64())
	case online.KindDouble:
		return online.Double(r.ReadFloat64())
	case online.KindFloat:
		return online.Float(r.ReadFloat32())
	case online.KindString:
		return online.String(r.ReadString())
	case online.KindBool:
		return online.Bool(r.ReadBool())
	case online.KindBlob:
		return online.Blob(r.ReadBytes())
	default:
		r.overflow = true
		return nil
	}
}

// ReadSettings reads a record written by WriteSettings into s. On overflow s
// is reset to empty settings and false is returned.
func (r *Reader) ReadSettings(s *online.SessionSettings) bool {
	var out online.SessionSettings

	out.NumPublicConnections = r.ReadInt32()
	out.NumPrivateConnections = r.ReadInt32()
	out.ShouldAdvertise = r.ReadBool()
	out.AllowJoinInProgress = r.ReadBool()
	out.IsLANMatch = r.ReadBool()
	out.IsDedicated = r.ReadBool()
	out.UsesStats = r.ReadBool()
	out.AllowInvites = r.ReadBool()
	out.UsesPresence = r.ReadBool()
	out.AllowJoinViaPresence = r.ReadBool()
	out.AllowJoinViaPresenceFriendsOnly = r.ReadBool()
	out.AntiCheatProtected = r.ReadBool()
	out.BuildUniqueID = r.ReadInt32()

	count := r.ReadUint32()
	for i := uint32(0); i < count && !r.overflow; i++ {
		name := r.ReadString()
		v := r.ReadValue()
		adv := online.AdvertisementType(r.ReadUint8())

		if !r.overflow {
			out.Set(name, v, adv)
		}
	}

	if r.overflow {
		*s = online.SessionSettings{}
		return false
	}

	*s = out

	return true
}

// ReadSession reads a record written by WriteSession into s. On overflow s
// is left as the zero session and false is returned.
func (r *Reader) ReadSession(s *online.Session) bool {
	var out online.Session

	out.Info = r.ReadSessionInfo()
	out.OwningUserID = r.ReadID()
	out.OwningUserName = r.ReadString()
	out.NumOpenPrivateConnections = r.ReadInt32()
	out.NumOpenPublicConnections = r.ReadInt32()

	if !r.ReadSettings(&out.Settings) || r.overflow {
		*s = online.Session{}
		return false
	}

	*s = out

	return true
}
