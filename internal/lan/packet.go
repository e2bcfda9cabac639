package lan

import (
	"bytes"
	"encoding/binary"

	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/online"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/online/nbo"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/proto"
)

type (
	// Header prefixes every beacon packet. Compatibility between builds is
	// checked on the build id inside the advertised settings, not here.
	Header struct {
		Platform   uint8
		GameID     int32
		PacketType [2]byte
		Nonce      uint64
	}
)

// HeaderSize is the encoded size of Header.
const HeaderSize = 1 + 4 + 2 + 8

// MaxPacketSize caps a response so it fits a single unfragmented datagram.
const MaxPacketSize = 1400

// PlatformDesktop is the only platform bit this build answers for.
const PlatformDesktop uint8 = 1 << 0

var (
	// QueryPacket is broadcast by searching clients.
	QueryPacket = [2]byte{'S', 'Q'}

	// ResponsePacket is unicast back by hosts.
	ResponsePacket = [2]byte{'S', 'R'}
)

// Marshal encodes the header in network byte order.
func (h Header) Marshal() ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, HeaderSize))
	if err := proto.WireWrite(buf, nbo.Encoder, h); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// ParseHeader decodes the header at the start of buf and returns the rest.
func ParseHeader(buf []byte) (Header, []byte, error) {
	var h Header
	if len(buf) < HeaderSize {
		return h, nil, &MalformedPacketError{Len: len(buf), Reason: "short header"}
	}

	if err := binary.Read(bytes.NewReader(buf[:HeaderSize]), binary.BigEndian, &h); err != nil {
		return h, nil, &MalformedPacketError{Len: len(buf), Reason: err.Error()}
	}

	switch h.PacketType {
	case QueryPacket, ResponsePacket:
	default:
		return h, nil, &MalformedPacketError{Len: len(buf), Reason: "unknown packet type"}
	}

	return h, buf[HeaderSize:], nil
}

// EncodeResponse builds the response to the query with header h.
func EncodeResponse(h Header, s *online.Session) ([]byte, error) {
	h.PacketType = ResponsePacket

	head, err := h.Marshal()
	if err != nil {
		return nil, err
	}

	w := nbo.NewWriter(MaxPacketSize - HeaderSize)
	w.WriteSession(s)

	out := append(head, w.Bytes()...)
	if len(out) > MaxPacketSize {
		return nil, &MalformedPacketError{Len: len(out), Reason: "response too large"}
	}

	return out, nil
}

// DecodeResponse reads the session carried by a response payload.
func DecodeResponse(payload []byte) (online.Session, error) {
	var s online.Session

	r := nbo.NewReader(payload)
	if !r.ReadSession(&s) {
		return s, &MalformedPacketError{Len: len(payload), Reason: "truncated session"}
	}

	s.Info.Type = online.SessionTypeLAN

	return s, nil
}
