package sessions

import (
	"net/netip"
	"sort"
	"strings"

	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/internal/backend"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/online"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/online/kv"
	"github.com/sirupsen/logrus"
)

// serverDetails returns the directory listing of a hosted session.
func (m *Manager) serverDetails(s *online.Session) backend.ServerDetails {
	total := s.Settings.NumPublicConnections + s.Settings.NumPrivateConnections
	open := s.NumOpenPublicConnections + s.NumOpenPrivateConnections

	d := backend.ServerDetails{
		ServerID:   s.Info.SessionID,
		AppID:      m.cfg.AppID,
		Name:       settingString(s.Settings, online.SettingServerName, s.OwningUserName),
		Map:        settingString(s.Settings, online.SettingMapName, ""),
		GameMode:   settingString(s.Settings, online.SettingGameMode, ""),
		Keywords:   settingString(s.Settings, online.SettingKeywords, ""),
		Players:    total - open,
		MaxPlayers: total,
		Dedicated:  s.Settings.IsDedicated,
		Secure:     s.Settings.AntiCheatProtected,
	}

	if m.cfg.PublicIP.IsValid() {
		d.Addr = netip.AddrPortFrom(m.cfg.PublicIP, m.cfg.GamePort)
		d.QueryAddr = netip.AddrPortFrom(m.cfg.PublicIP, m.cfg.QueryPort)
	}

	return d
}

func settingString(s online.SessionSettings, name, def string) string {
	if v, ok := s.Get(name); ok {
		return v.String()
	}

	return def
}

// sortedQueryNames returns the query setting names in a stable order.
func sortedQueryNames(search *online.SearchSettings) []string {
	names := make([]string, 0, len(search.QuerySettings))
	for name := range search.QuerySettings {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// lobbyFilter translates search into a lobby list request. Reserved keys
// are handled by dedicated filters; every other key is matched against the
// metadata key the codec stores it under.
func lobbyFilter(search *online.SearchSettings) backend.LobbyFilter {
	f := backend.LobbyFilter{
		MaxResults: search.MaxSearchResults,
		Distance:   backend.DistanceDefault,
	}

	for _, name := range sortedQueryNames(search) {
		p := search.QuerySettings[name]

		if online.IsReservedSearchKey(name) {
			if name == online.SearchMinSlotsAvailable {
				if n, ok := online.Numeric(p.Data); ok {
					f.MinSlots = int(n)
				}
			}

			continue
		}

		key, ok := kv.Key(name, p.Data)
		if !ok {
			continue
		}

		n, integer := integerValue(p.Data)

		switch {
		case integer && p.Op == online.OpNear:
			f.Near = append(f.Near, backend.NearFilter{Key: key, Value: n})

		case integer:
			f.Numeric = append(f.Numeric, backend.NumericFilter{Key: key, Value: n, Op: p.Op})

		default:
			f.Strings = append(f.Strings, backend.StringFilter{Key: key, Value: p.Data.String(), Op: p.Op})
		}
	}

	return f
}

// integerValue returns the value of an integer setting without a round
// trip through float64.
func integerValue(v online.Value) (int64, bool) {
	switch v := v.(type) {
	case online.Int32:
		return int64(v), true
	case online.Int64:
		return int64(v), true
	default:
		return 0, false
	}
}

// serverFilter translates search into a server list request.
func serverFilter(appID int16, search *online.SearchSettings) backend.ServerFilter {
	f := backend.ServerFilter{AppID: appID}

	for _, name := range sortedQueryNames(search) {
		p := search.QuerySettings[name]

		switch name {
		case online.SearchDedicatedOnly:
			f.DedicatedOnly = isTrue(p.Data)
		case online.SearchSecureServersOnly:
			f.SecureOnly = isTrue(p.Data)
		case online.SearchEmptyServersOnly:
			f.EmptyOnly = isTrue(p.Data)
		case online.SearchNonEmptyServersOnly:
			f.NonEmptyOnly = isTrue(p.Data)
		case online.SearchMinSlotsAvailable:
			if n, ok := online.Numeric(p.Data); ok {
				f.MinSlots = int(n)
			}
		case online.SearchKeywords:
			for _, k := range strings.Split(p.Data.String(), ",") {
				if k = strings.TrimSpace(k); k != "" {
					f.Keywords = append(f.Keywords, k)
				}
			}
		case online.SettingMapName:
			f.Map = p.Data.String()
		}
	}

	return f
}

func isTrue(v online.Value) bool {
	b, ok := v.(online.Bool)
	return ok && bool(b)
}

// readSession rebuilds a search candidate from published metadata. Invalid
// metadata and other builds are dropped.
func (m *Manager) readSession(data map[string]string, logger *logrus.Entry) (online.Session, bool) {
	s, skipped, err := kv.ReadSession(data)
	if err != nil {
		logger.
			WithField("error", err.Error()).
			Debug("dropping search candidate with invalid metadata")

		return online.Session{}, false
	}

	if len(skipped) > 0 {
		sort.Strings(skipped)
		logger.
			WithField("keys", strings.Join(skipped, ",")).
			Debug("skipping undecodable settings")
	}

	if s.Settings.BuildUniqueID != m.cfg.BuildUniqueID {
		logger.
			WithFields(logrus.Fields{
				"build_id": s.Settings.BuildUniqueID,
				"want":     m.cfg.BuildUniqueID,
			}).
			Debug("dropping search candidate of another build")

		return online.Session{}, false
	}

	return s, true
}

// lobbyResult materializes a search result from the cached metadata of a
// lobby.
func (m *Manager) lobbyResult(lobby online.ID, logger *logrus.Entry) (online.SearchResult, bool) {
	if !lobby.IsValid() || !lobby.IsLobby() {
		return online.SearchResult{}, false
	}

	logger = logger.WithField("lobby", lobby.String())

	data, ok := m.svc.Lobbies.LobbyData(lobby)
	if !ok {
		logger.Debug("dropping lobby without metadata")
		return online.SearchResult{}, false
	}

	s, ok := m.readSession(data, logger)
	if !ok {
		return online.SearchResult{}, false
	}

	if !s.OwningUserID.IsValid() {
		s.OwningUserID = m.svc.Lobbies.LobbyOwner(lobby)
	}

	s.Info.Type = online.SessionTypeLobby
	s.Info.SessionID = lobby

	if !s.Info.PeerAddr.IsValid() {
		s.Info.PeerAddr = online.PeerAddress{ID: s.OwningUserID, Port: m.cfg.P2PPort}
	}

	return online.SearchResult{Session: s, PingMs: online.MaxQueryPing}, true
}

// serverResult materializes a search result from a server listing and its
// rules.
func (m *Manager) serverResult(d backend.ServerDetails, rules map[string]string, logger *logrus.Entry) (online.SearchResult, bool) {
	logger = logger.WithField("server", d.QueryAddr.String())

	s, ok := m.readSession(rules, logger)
	if !ok {
		return online.SearchResult{}, false
	}

	s.Info.Type = online.SessionTypeAdvertisedClient

	if d.ServerID.IsValid() {
		s.Info.SessionID = d.ServerID
	} else {
		s.Info.SessionID = s.Info.PeerAddr.ID
	}

	if d.Addr.IsValid() {
		s.Info.HostAddr = d.Addr
	}

	if !s.Info.PeerAddr.IsValid() {
		s.Info.PeerAddr = online.PeerAddress{ID: s.Info.SessionID, Port: d.Addr.Port()}
	}

	if !s.OwningUserID.IsValid() {
		s.OwningUserID = s.Info.SessionID
	}

	if s.OwningUserName == "" {
		s.OwningUserName = d.Name
	}

	r := online.SearchResult{Session: s, PingMs: online.MaxQueryPing}
	if ms := d.Ping.Milliseconds(); d.Ping > 0 && ms < int64(online.MaxQueryPing) {
		r.PingMs = int32(ms)
	}

	if !r.IsValid() {
		logger.Debug("dropping server without a usable address")
		return online.SearchResult{}, false
	}

	return r, true
}
