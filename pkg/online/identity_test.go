package online

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestID_Fields(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name         string
		id           ID
		wantType     AccountType
		wantInstance uint32
		wantAccount  uint32
		wantValid    bool
		wantLobby    bool
		wantServer   bool
	}{
		{
			name:         "user",
			id:           NewUserID(42),
			wantType:     AccountIndividual,
			wantInstance: InstanceDesktop,
			wantAccount:  42,
			wantValid:    true,
		},
		{
			name:         "lobby",
			id:           NewLobbyID(7),
			wantType:     AccountChat,
			wantInstance: InstanceFlagLobby,
			wantAccount:  7,
			wantValid:    true,
			wantLobby:    true,
		},
		{
			name:        "game server",
			id:          NewGameServerID(9),
			wantType:    AccountGameServer,
			wantAccount: 9,
			wantValid:   true,
			wantServer:  true,
		},
		{
			name:        "plain chat room is not a lobby",
			id:          NewID(UniversePublic, AccountChat, 0, 3),
			wantType:    AccountChat,
			wantAccount: 3,
			wantValid:   true,
		},
		{
			name:         "user with zero account",
			id:           NewUserID(0),
			wantType:     AccountIndividual,
			wantInstance: InstanceDesktop,
		},
		{
			name: "zero",
			id:   InvalidID,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.wantType, tt.id.AccountType())
			require.Equal(t, tt.wantInstance, tt.id.Instance())
			require.Equal(t, tt.wantAccount, tt.id.Account())
			require.Equal(t, tt.wantValid, tt.id.IsValid())
			require.Equal(t, tt.wantLobby, tt.id.IsLobby())
			require.Equal(t, tt.wantServer, tt.id.IsGameServer())
		})
	}
}

func TestID_ParseRoundTrip(t *testing.T) {
	t.Parallel()
	id := NewLobbyID(123456)
	got, err := ParseID(id.String())
	require.NoError(t, err)
	require.Equal(t, id, got)

	_, err = ParseID("lobby")
	require.Error(t, err)
}

func TestRandomID(t *testing.T) {
	t.Parallel()
	a, err := RandomID(AccountIndividual)
	require.NoError(t, err)
	require.True(t, a.IsValid())
	require.Equal(t, AccountIndividual, a.AccountType())

	b, err := RandomID(AccountIndividual)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}
