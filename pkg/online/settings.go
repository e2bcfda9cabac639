package online

import "sort"

type (
	// AdvertisementType controls where a setting is published.
	AdvertisementType uint8

	// Setting is one named entry in SessionSettings.
	Setting struct {
		Data              Value
		AdvertisementType AdvertisementType
	}

	// SessionSettings describes a session. It is replaced wholesale on update,
	// never merged.
	SessionSettings struct {
		NumPublicConnections  int32
		NumPrivateConnections int32

		ShouldAdvertise                 bool
		AllowJoinInProgress             bool
		IsLANMatch                      bool
		IsDedicated                     bool
		UsesStats                       bool
		AllowInvites                    bool
		UsesPresence                    bool
		AllowJoinViaPresence            bool
		AllowJoinViaPresenceFriendsOnly bool
		AntiCheatProtected              bool

		// BuildUniqueID rejects peers running incompatible builds.
		BuildUniqueID int32

		Settings map[string]Setting
	}
)

const (
	// DontAdvertise keeps the setting local.
	DontAdvertise AdvertisementType = iota

	// ViaPingOnly publishes the setting in ping replies only.
	ViaPingOnly

	// ViaOnlineService publishes the setting to the matchmaking backend.
	ViaOnlineService

	// ViaOnlineServiceAndPing publishes the setting everywhere.
	ViaOnlineServiceAndPing
)

// Well-known setting names.
const (
	SettingMapName    = "MAPNAME"
	SettingGameMode   = "GAMEMODE"
	SettingServerName = "SERVERNAME"
	SettingKeywords   = "SEARCHKEYWORDS"
)

// IsAdvertised reports whether the setting is published to the backend.
func (a AdvertisementType) IsAdvertised() bool {
	return a >= ViaOnlineService
}

// Set stores a setting, replacing any previous value of the same name.
func (s *SessionSettings) Set(name string, v Value, adv AdvertisementType) {
	if s.Settings == nil {
		s.Settings = make(map[string]Setting)
	}

	s.Settings[name] = Setting{Data: v, AdvertisementType: adv}
}

// Get returns the value of the named setting.
func (s *SessionSettings) Get(name string) (Value, bool) {
	st, ok := s.Settings[name]
	if !ok {
		return nil, false
	}

	return st.Data, true
}

// Remove deletes the named setting and reports whether it existed.
func (s *SessionSettings) Remove(name string) bool {
	if _, ok := s.Settings[name]; !ok {
		return false
	}

	delete(s.Settings, name)

	return true
}

// AdvertisedNames returns the sorted names of every setting published to the
// backend.
func (s *SessionSettings) AdvertisedNames() []string {
	names := make([]string, 0, len(s.Settings))
	for name, st := range s.Settings {
		if st.AdvertisementType.IsAdvertised() {
			names = append(names, name)
		}
	}

	sort.Strings(names)

	return names
}

// Clone returns a deep copy.
func (s SessionSettings) Clone() SessionSettings {
	c := s
	if s.Settings != nil {
		c.Settings = make(map[string]Setting, len(s.Settings))
		for name, st := range s.Settings {
			c.Settings[name] = Setting{
				Data:              CloneValue(st.Data),
				AdvertisementType: st.AdvertisementType,
			}
		}
	}

	return c
}
