package kv

import (
	"net/netip"
	"strconv"

	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/online"
)

// Well-known keys. They are read before the settings they describe exist,
// so they bypass the suffix codec.
const (
	KeyOwningID       = "OWNINGID"
	KeyOwningName     = "OWNINGNAME"
	KeyNumPublic      = "NUMPUBCONN"
	KeyNumPrivate     = "NUMPRIVCONN"
	KeyNumOpenPublic  = "NUMOPENPUBCONN"
	KeyNumOpenPrivate = "NUMOPENPRIVCONN"
	KeySessionFlags   = "SESSIONFLAGS"
	KeyBuildUniqueID  = "BUILDID"
	KeyHostIP         = "HOSTIP"
	KeyHostPort       = "HOSTPORT"
	KeyP2PAddr        = "P2PADDR"
	KeyP2PPort        = "P2PPORT"
)

var wellKnown = map[string]struct{}{
	KeyOwningID:       {},
	KeyOwningName:     {},
	KeyNumPublic:      {},
	KeyNumPrivate:     {},
	KeyNumOpenPublic:  {},
	KeyNumOpenPrivate: {},
	KeySessionFlags:   {},
	KeyBuildUniqueID:  {},
	KeyHostIP:         {},
	KeyHostPort:       {},
	KeyP2PAddr:        {},
	KeyP2PPort:        {},
}

// IsWellKnown reports whether key is one of the fixed literal keys.
func IsWellKnown(key string) bool {
	_, ok := wellKnown[key]
	return ok
}

// SessionData returns the metadata published for s: the well-known keys
// followed by every advertised setting the codec can carry.
func SessionData(s *online.Session) map[string]string {
	data := map[string]string{
		KeyNumPublic:      strconv.FormatInt(int64(s.Settings.NumPublicConnections), 10),
		KeyNumPrivate:     strconv.FormatInt(int64(s.Settings.NumPrivateConnections), 10),
		KeyNumOpenPublic:  strconv.FormatInt(int64(s.NumOpenPublicConnections), 10),
		KeyNumOpenPrivate: strconv.FormatInt(int64(s.NumOpenPrivateConnections), 10),
		KeySessionFlags:   strconv.FormatUint(uint64(PackFlags(s.Settings)), 10),
		KeyBuildUniqueID:  strconv.FormatInt(int64(s.Settings.BuildUniqueID), 10),
	}

	if s.OwningUserID.IsValid() {
		data[KeyOwningID] = s.OwningUserID.String()
	}

	if s.OwningUserName != "" {
		data[KeyOwningName] = s.OwningUserName
	}

	if s.Info.HostAddr.IsValid() {
		data[KeyHostIP] = s.Info.HostAddr.Addr().String()
		data[KeyHostPort] = strconv.FormatUint(uint64(s.Info.HostAddr.Port()), 10)
	}

	if s.Info.PeerAddr.IsValid() {
		data[KeyP2PAddr] = s.Info.PeerAddr.ID.String()
		data[KeyP2PPort] = strconv.FormatUint(uint64(s.Info.PeerAddr.Port), 10)
	}

	for name, st := range s.Settings.Settings {
		if !st.AdvertisementType.IsAdvertised() {
			continue
		}

		if k, v, ok := Encode(name, st.Data); ok {
			data[k] = v
		}
	}

	return data
}

// ReadSession rebuilds a session from published metadata. Missing or
// malformed well-known keys fail the whole session. Generic keys that do not
// decode are left out and returned in skipped so the caller can log them.
//
// Session info is filled with whatever addresses the metadata carries; the
// caller sets the type and session id.
func ReadSession(data map[string]string) (s online.Session, skipped []string, err error) {
	if s.Settings.NumPublicConnections, err = requiredInt32(data, KeyNumPublic); err != nil {
		return online.Session{}, nil, err
	}

	if s.Settings.NumPrivateConnections, err = requiredInt32(data, KeyNumPrivate); err != nil {
		return online.Session{}, nil, err
	}

	if s.Settings.BuildUniqueID, err = requiredInt32(data, KeyBuildUniqueID); err != nil {
		return online.Session{}, nil, err
	}

	flags, ok := data[KeySessionFlags]
	if !ok {
		return online.Session{}, nil, MissingKeyError(KeySessionFlags)
	}

	bits, perr := strconv.ParseUint(flags, 10, 32)
	if perr != nil {
		return online.Session{}, nil, &InvalidKeyError{Key: KeySessionFlags, Value: flags, Err: perr}
	}

	UnpackFlags(uint32(bits), &s.Settings)

	s.NumOpenPublicConnections = optionalInt32(data, KeyNumOpenPublic, s.Settings.NumPublicConnections)
	s.NumOpenPrivateConnections = optionalInt32(data, KeyNumOpenPrivate, s.Settings.NumPrivateConnections)

	if v, ok := data[KeyOwningID]; ok {
		if s.OwningUserID, err = online.ParseID(v); err != nil {
			return online.Session{}, nil, &InvalidKeyError{Key: KeyOwningID, Value: v, Err: err}
		}
	}

	s.OwningUserName = data[KeyOwningName]

	if s.Info.HostAddr, err = readHostAddr(data); err != nil {
		return online.Session{}, nil, err
	}

	if s.Info.PeerAddr, err = readPeerAddr(data); err != nil {
		return online.Session{}, nil, err
	}

	for key, value := range data {
		if IsWellKnown(key) {
			continue
		}

		name, v, ok := Decode(key, value)
		if !ok {
			skipped = append(skipped, key)
			continue
		}

		s.Settings.Set(name, v, online.ViaOnlineService)
	}

	return s, skipped, nil
}

func requiredInt32(data map[string]string, key string) (int32, error) {
	v, ok := data[key]
	if !ok {
		return 0, MissingKeyError(key)
	}

	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil {
		return 0, &InvalidKeyError{Key: key, Value: v, Err: err}
	}

	return int32(n), nil
}

func optionalInt32(data map[string]string, key string, def int32) int32 {
	v, ok := data[key]
	if !ok {
		return def
	}

	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil {
		return def
	}

	return int32(n)
}

func readHostAddr(data map[string]string) (netip.AddrPort, error) {
	ip, ok := data[KeyHostIP]
	if !ok {
		return netip.AddrPort{}, nil
	}

	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return netip.AddrPort{}, &InvalidKeyError{Key: KeyHostIP, Value: ip, Err: err}
	}

	port, err := readPort(data, KeyHostPort)
	if err != nil {
		return netip.AddrPort{}, err
	}

	return netip.AddrPortFrom(addr, port), nil
}

func readPeerAddr(data map[string]string) (online.PeerAddress, error) {
	v, ok := data[KeyP2PAddr]
	if !ok {
		return online.PeerAddress{}, nil
	}

	id, err := online.ParseID(v)
	if err != nil {
		return online.PeerAddress{}, &InvalidKeyError{Key: KeyP2PAddr, Value: v, Err: err}
	}

	port, err := readPort(data, KeyP2PPort)
	if err != nil {
		return online.PeerAddress{}, err
	}

	return online.PeerAddress{ID: id, Port: port}, nil
}

func readPort(data map[string]string, key string) (uint16, error) {
	v, ok := data[key]
	if !ok {
		return 0, MissingKeyError(key)
	}

	n, err := strconv.ParseUint(v, 10, 16)
	if err != nil {
		return 0, &InvalidKeyError{Key: key, Value: v, Err: err}
	}

	return uint16(n), nil
}
