package a2s

import (
	"bytes"
	"context"
	"encoding/binary"
	"net"
	"time"
)

type (
	// Info is the decoded subset of an A2S_INFO response the session search
	// uses.
	Info struct {
		ServerName  string
		Map         string
		GameFolder  string
		GameName    string
		AppID       int16
		Players     uint8
		MaxPlayers  uint8
		Bots        uint8
		ServerType  byte
		Environment byte
		Private     bool
		Ping        time.Duration
	}

	// Client queries A2S endpoints.
	Client struct {
		// Timeout bounds a single query when the context has no deadline.
		Timeout time.Duration
	}

	// reader decodes little-endian fields from a response.
	reader struct {
		buf []byte
		err error
	}
)

const (
	defaultTimeout = time.Second
	maxChallenges  = 3
)

// QueryInfo sends an A2S_INFO request to addr and measures the round trip.
func (c *Client) QueryInfo(ctx context.Context, addr string) (*Info, error) {
	conn, err := c.dial(ctx, addr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	start := time.Now()
	if _, err := conn.Write(a2sInfoRequest); err != nil {
		return nil, err
	}

	buf := make([]byte, MaxPacketSize)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, err
	}

	ping := time.Since(start)

	if n < 5 || !bytes.Equal(buf[0:5], a2sInfoResponse) {
		return nil, responseError(buf[:n])
	}

	r := &reader{buf: buf[5:n]}
	_ = r.readByte() // protocol
	info := &Info{
		ServerName: r.readString(),
		Map:        r.readString(),
		GameFolder: r.readString(),
		GameName:   r.readString(),
		AppID:      r.readInt16(),
		Players:    r.readByte(),
		MaxPlayers: r.readByte(),
		Bots:       r.readByte(),
		ServerType: r.readByte(),
	}
	info.Environment = r.readByte()
	info.Private = r.readByte() != 0
	info.Ping = ping

	if r.err != nil {
		return nil, r.err
	}

	return info, nil
}

// QueryRules sends an A2S_RULES request to addr, answering challenges as
// needed, and returns the rules.
func (c *Client) QueryRules(ctx context.Context, addr string) (map[string]string, error) {
	conn, err := c.dial(ctx, addr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	challenge := noChallenge
	buf := make([]byte, MaxPacketSize)

	for i := 0; i < maxChallenges; i++ {
		req := make([]byte, 0, 9)
		req = append(req, a2sRulesRequest...)
		req = binary.LittleEndian.AppendUint32(req, uint32(challenge))

		if _, err := conn.Write(req); err != nil {
			return nil, err
		}

		n, err := conn.Read(buf)
		if err != nil {
			return nil, err
		}

		switch {
		case n >= 9 && bytes.Equal(buf[0:5], a2sChallengeHeader):
			challenge = int32(binary.LittleEndian.Uint32(buf[5:9]))

		case n >= 7 && bytes.Equal(buf[0:5], a2sRulesResponse):
			return parseRules(buf[5:n])

		default:
			return nil, responseError(buf[:n])
		}
	}

	return nil, ErrTooManyChallenges
}

func (c *Client) dial(ctx context.Context, addr string) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", addr)
	if err != nil {
		return nil, err
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		timeout := c.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		deadline = time.Now().Add(timeout)
	}

	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return nil, err
	}

	return conn, nil
}

func parseRules(buf []byte) (map[string]string, error) {
	r := &reader{buf: buf}
	count := r.readInt16()
	if count < 0 {
		return nil, ErrMalformedResponse
	}

	rules := make(map[string]string, count)
	for i := int16(0); i < count; i++ {
		name := r.readString()
		value := r.readString()
		if r.err != nil {
			return nil, r.err
		}

		rules[name] = value
	}

	if r.err != nil {
		return nil, r.err
	}

	return rules, nil
}

func responseError(buf []byte) error {
	if len(buf) < 5 {
		return ErrInvalidPacketLength
	}

	return UnexpectedResponseError(buf[4])
}

func (r *reader) readByte() byte {
	if r.err != nil || len(r.buf) < 1 {
		r.err = ErrMalformedResponse
		return 0
	}

	b := r.buf[0]
	r.buf = r.buf[1:]

	return b
}

func (r *reader) readInt16() int16 {
	if r.err != nil || len(r.buf) < 2 {
		r.err = ErrMalformedResponse
		return 0
	}

	v := int16(binary.LittleEndian.Uint16(r.buf))
	r.buf = r.buf[2:]

	return v
}

func (r *reader) readString() string {
	if r.err != nil {
		return ""
	}

	i := bytes.IndexByte(r.buf, 0)
	if i < 0 {
		r.err = ErrMalformedResponse
		return ""
	}

	s := string(r.buf[:i])
	r.buf = r.buf[i+1:]

	return s
}
