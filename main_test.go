package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strconv"
	"testing"
	"time"

	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/internal/query"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/config"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/online"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/proto/a2s"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.DebugLevel)

	return logrus.NewEntry(l)
}

func testDaemonConfig() *config.Config {
	c := config.Default()
	c.QueryPort = 0
	c.TickInterval = config.Duration(5 * time.Millisecond)
	c.Host = config.HostConfig{
		SessionName:          "Game1",
		ServerName:           "gopher",
		MapName:              "ctf-docks",
		NumPublicConnections: 8,
		Dedicated:            true,
	}

	return c
}

func Test_parseFlags(t *testing.T) {
	t.Parallel()
	configFile, log, logLevel, err := parseFlags([]string{
		"-config", "sessiond.toml",
		"-log", "/tmp/",
		"-loglevel", "debug",
	})

	require.NoError(t, err)
	require.Equal(t, "sessiond.toml", configFile)
	require.Equal(t, "/tmp/", log)
	require.Equal(t, "debug", logLevel)

	_, _, _, err = parseFlags([]string{"-port", "9000"})
	require.Error(t, err)
}

func Test_managerConfig(t *testing.T) {
	t.Parallel()
	c := config.Default()
	c.PublicIP = "203.0.113.7"
	c.AsyncTimeout = config.Duration(30 * time.Second)

	mc := managerConfig(c)
	require.Equal(t, netip.MustParseAddr("203.0.113.7"), mc.PublicIP)
	require.Equal(t, 30*time.Second, mc.AsyncTimeout)
	require.Equal(t, 14001, mc.LAN.Port)
	require.Equal(t, time.Second, mc.LAN.Timeout)

	c.PublicIP = ""
	require.False(t, managerConfig(c).PublicIP.IsValid())
}

func Test_hostSettings(t *testing.T) {
	t.Parallel()
	s := hostSettings(config.HostConfig{
		NumPublicConnections: 4,
		UsesPresence:         true,
		MapName:              "dm-arena",
	})

	require.True(t, s.ShouldAdvertise)
	require.True(t, s.UsesPresence)
	require.True(t, s.AllowJoinViaPresence)
	require.Equal(t, int32(4), s.NumPublicConnections)

	v, ok := s.Get(online.SettingMapName)
	require.True(t, ok)
	require.Equal(t, "dm-arena", v.String())

	_, ok = s.Get(online.SettingGameMode)
	require.False(t, ok)
}

func Test_newDaemonUnknownProtocol(t *testing.T) {
	t.Parallel()
	c := testDaemonConfig()
	c.QueryProtocol = "gopher"

	_, err := newDaemon(c, "", testLogger())
	require.ErrorIs(t, err, query.ErrUnknownProtocol)
}

func Test_daemonHostsAndTearsDown(t *testing.T) {
	t.Parallel()
	d, err := newDaemon(testDaemonConfig(), "", testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- d.run(ctx)
	}()

	require.Eventually(t, func() bool {
		s := d.manager.Sessions()

		return len(s) == 1 && s[0].State == online.Pending
	}, 5*time.Second, 10*time.Millisecond)

	// The query endpoint answers with the hosted session.
	addr := "127.0.0.1:" + strconv.Itoa(int(d.query.LocalAddr().Port()))
	qctx, qcancel := context.WithTimeout(ctx, 2*time.Second)
	defer qcancel()

	info, err := (&a2s.Client{}).QueryInfo(qctx, addr)
	require.NoError(t, err)
	require.Equal(t, "gopher", info.ServerName)
	require.Equal(t, "ctf-docks", info.Map)
	require.Equal(t, uint8(8), info.MaxPlayers)

	rules, err := (&a2s.Client{}).QueryRules(qctx, addr)
	require.NoError(t, err)
	require.NotEmpty(t, rules)

	srv := httptest.NewServer(d.router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/sessions")
	require.NoError(t, err)

	var views []sessionView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&views))
	require.NoError(t, resp.Body.Close())
	require.Len(t, views, 1)
	require.Equal(t, "Game1", views[0].Name)
	require.Equal(t, online.Pending.String(), views[0].State)
	require.Equal(t, online.SessionTypeAdvertisedHost.String(), views[0].Type)
	require.True(t, views[0].Hosting)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Contains(t, string(body), "sessiond_tasks_completed_total")

	cancel()

	select {
	case err = <-done:
		require.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("daemon did not stop")
	}

	require.Empty(t, d.manager.Sessions())
	require.Nil(t, d.state.Load(), "the query state is withdrawn on log off")
}

func Test_daemonShutdownRequested(t *testing.T) {
	t.Parallel()
	c := testDaemonConfig()
	c.Host = config.HostConfig{}

	d, err := newDaemon(c, "", testLogger())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- d.run(context.Background())
	}()

	d.manager.OnShutdownRequested.Broadcast(struct{}{})
	d.manager.OnShutdownRequested.Broadcast(struct{}{})

	select {
	case err = <-done:
		require.ErrorIs(t, err, errShutdownRequested)
	case <-time.After(15 * time.Second):
		t.Fatal("daemon did not stop")
	}
}

func Test_routerUnknownRoute(t *testing.T) {
	t.Parallel()
	c := testDaemonConfig()
	c.Host = config.HostConfig{}

	d, err := newDaemon(c, "", testLogger())
	require.NoError(t, err)

	defer d.close()

	rec := httptest.NewRecorder()
	d.router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	d.router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sessions", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[]`, rec.Body.String())
}
