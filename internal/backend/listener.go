package backend

import "github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/online"

// BaseListener ignores every notification. Embed it to implement part of
// Listener.
type BaseListener struct{}

func (BaseListener) LobbyDataUpdated(_, _ online.ID, _ bool)           {}
func (BaseListener) LobbyMemberChanged(_, _ online.ID, _ MemberChange) {}
func (BaseListener) LobbyInviteReceived(_, _ online.ID)                {}
func (BaseListener) JoinRequested(_ online.ID, _ string)               {}
func (BaseListener) ConnectionStatusChanged(_ online.ConnectionStatus) {}
func (BaseListener) ShutdownRequested()                                {}

var _ Listener = BaseListener{}
