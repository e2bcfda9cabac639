package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/internal/async"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/internal/backend/memory"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/internal/query"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/internal/sessions"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/config"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/online"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/proto"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/proto/a2s"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.DebugLevel)

	return logrus.NewEntry(l)
}

// hostLobby hosts a presence lobby for a new user of net.
func hostLobby(t *testing.T, net *memory.Network, cfg sessions.Config) {
	t.Helper()

	logger := testLogger().WithField("user", "host")
	m, err := sessions.New(cfg, net.NewClient(1, "host").Services(), async.NewRunner(logger), logger)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	go func() {
		_ = m.RunWorker(ctx)
	}()

	settings := online.SessionSettings{
		NumPublicConnections: 4,
		ShouldAdvertise:      true,
		UsesPresence:         true,
		AllowJoinViaPresence: true,
	}
	settings.Set(online.SettingMapName, online.String("dm-arena"), online.ViaOnlineService)
	require.NoError(t, m.CreateSession(0, "game", settings))

	require.Eventually(t, func() bool {
		m.Tick(tickInterval)
		s, ok := m.Session("game")

		return ok && s.State == online.Pending
	}, 5*time.Second, tickInterval)
}

func Test_runSearch(t *testing.T) {
	t.Parallel()
	net := memory.NewNetwork()
	cfg := searchConfig(config.Default())
	hostLobby(t, net, cfg)

	search := online.NewSearchSettings(10)
	search.Set(online.SearchPresence, online.Bool(true), online.OpEquals)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	results, err := runSearch(ctx, net.NewClient(2, "searcher").Services(), cfg, search, testLogger())
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "host", results[0].Session.OwningUserName)

	out := new(bytes.Buffer)
	printResults(out, append(results, online.SearchResult{}))
	require.Contains(t, out.String(), "dm-arena")
	require.Equal(t, 2, bytes.Count(out.Bytes(), []byte("\n")), "invalid results are skipped")
}

func Test_runSearchCancelled(t *testing.T) {
	t.Parallel()
	net := memory.NewNetwork()
	client := net.NewClient(2, "searcher")
	client.StallLobbyData(true)
	hostLobby(t, net, searchConfig(config.Default()))

	search := online.NewSearchSettings(10)
	search.Set(online.SearchPresence, online.Bool(true), online.OpEquals)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := runSearch(ctx, client.Services(), searchConfig(config.Default()), search, testLogger())
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, online.SearchFailed, search.State)
}

func Test_queryCmd(t *testing.T) {
	t.Parallel()
	state := proto.NewStateHolder(&proto.QueryState{
		MaxPlayers: 8,
		ServerName: "gopher",
		Map:        "ctf-docks",
		Rules:      map[string]string{"MAPNAME": "ctf-docks"},
	})

	responder, err := a2s.NewQueryResponder(state, 480)
	require.NoError(t, err)

	srv, err := query.Listen("127.0.0.1:0", responder, testLogger())
	require.NoError(t, err)

	defer srv.Close()

	out := new(bytes.Buffer)
	cmd := rootCmd()
	cmd.SetOut(out)
	cmd.SetArgs([]string{"query", srv.LocalAddr().String()})
	require.NoError(t, cmd.Execute())

	require.Contains(t, out.String(), "gopher")
	require.Contains(t, out.String(), "0/8")
	require.Contains(t, out.String(), "rule MAPNAME")
}

func Test_queryCmdArgs(t *testing.T) {
	t.Parallel()
	cmd := rootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetArgs([]string{"query"})
	require.Error(t, cmd.Execute())
}

func Test_versionCmd(t *testing.T) {
	t.Parallel()
	out := new(bytes.Buffer)
	cmd := rootCmd()
	cmd.SetOut(out)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	require.Equal(t, version+"\n", out.String())
}
