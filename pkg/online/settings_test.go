package online

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSessionSettings(t *testing.T) {
	t.Parallel()
	var s SessionSettings
	s.Set(SettingMapName, String("dust"), ViaOnlineService)
	s.Set(SettingGameMode, String("ctf"), ViaOnlineServiceAndPing)
	s.Set("SECRET", Int32(1), DontAdvertise)
	s.Set("PINGONLY", Int32(2), ViaPingOnly)

	v, ok := s.Get(SettingMapName)
	require.True(t, ok)
	require.Equal(t, String("dust"), v)

	require.Equal(t, []string{SettingGameMode, SettingMapName}, s.AdvertisedNames())

	require.True(t, s.Remove("SECRET"))
	require.False(t, s.Remove("SECRET"))
	_, ok = s.Get("SECRET")
	require.False(t, ok)
}

func TestSessionSettings_Clone(t *testing.T) {
	t.Parallel()
	s := SessionSettings{NumPublicConnections: 4}
	s.Set("DATA", Blob{1}, ViaOnlineService)

	c := s.Clone()
	c.Set(SettingMapName, String("other"), ViaOnlineService)
	c.Settings["DATA"].Data.(Blob)[0] = 7

	_, ok := s.Get(SettingMapName)
	require.False(t, ok)
	v, _ := s.Get("DATA")
	require.Equal(t, Blob{1}, v)
	require.Equal(t, int32(4), c.NumPublicConnections)
}
