package rpc

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MixinNetwork/rworld/config"
	"github.com/MixinNetwork/rworld/network"
	"github.com/MixinNetwork/rworld/session"
	"github.com/MixinNetwork/rworld/storage"
	"github.com/MixinNetwork/rworld/world"
	"github.com/stretchr/testify/require"
)

func testWorldServer(t *testing.T) (*world.World, string) {
	store, err := storage.NewBadgerStore("")
	require.Nil(t, err)
	w, err := world.New(config.Default(), nil, store)
	require.Nil(t, err)
	server := httptest.NewServer(NewHandler(w))
	t.Cleanup(func() {
		server.Close()
		w.Close()
	})
	return w, server.URL
}

func TestRPC(t *testing.T) {
	require := require.New(t)

	_, hostURL := testWorldServer(t)
	_, joinerURL := testWorldServer(t)
	host, joiner := NewClient(hostURL), NewClient(joinerURL)

	info, err := host.GetInfo()
	require.Nil(err)
	require.Equal("idle", info.Session.Role)
	require.NotEmpty(info.Session.Id)

	info, err = host.StartWorld(0)
	require.Nil(err)
	require.Equal("hosting", info.Session.Role)
	port := int(info.Session.Port)
	require.NotZero(port)

	_, err = host.StartWorld(0)
	require.ErrorIs(err, session.ErrInvalidStateTransition)
	require.Contains(err.Error(), "invalid state transition")
	var rerr *Error
	require.True(errors.As(err, &rerr))
	require.Equal("invalid-state", rerr.Code)
	err = host.Call("startworld", []any{"http"}, nil)
	require.NotNil(err)
	require.True(errors.As(err, &rerr))
	require.Equal(codeBadRequest, rerr.Code)

	err = joiner.Call("joinworld", []any{"127.0.0.1"}, nil)
	require.NotNil(err)
	require.Contains(err.Error(), "invalid params count")
	_, err = joiner.JoinWorld("unreachable-host.invalid", 7001)
	require.ErrorIs(err, network.ErrResolution)
	require.Contains(err.Error(), "resolution error")

	info, err = joiner.JoinWorld("127.0.0.1", port)
	require.Nil(err)
	require.Equal("joined", info.Session.Role)
	require.Equal(1, info.Session.Peers)

	require.Eventually(func() bool {
		peers, err := host.ListPeers()
		return err == nil && len(peers) == 1
	}, 5*time.Second, 10*time.Millisecond)

	err = joiner.SendMessage("", "hello world")
	require.Nil(err)
	require.Eventually(func() bool {
		info, err := host.GetInfo()
		return err == nil && info.Received == 1
	}, 5*time.Second, 10*time.Millisecond)
	err = host.SendMessage("missing", "nobody")
	require.ErrorIs(err, session.ErrPeerNotFound)
	require.Contains(err.Error(), "peer not found")

	events, err := host.ListEvents(0, 10)
	require.Nil(err)
	require.Len(events, 3)
	require.Equal("role", events[0].Type)
	require.Equal("error", events[1].Type)
	require.Equal("peer-added", events[2].Type)
	err = host.Call("listevents", []any{0}, nil)
	require.NotNil(err)

	resp, err := http.Get(hostURL + "/metrics")
	require.Nil(err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Nil(err)
	metrics := string(body)
	require.Contains(metrics, `rworld_role{role="hosting"} 1`)
	require.Contains(metrics, "rworld_peers 1")
	require.Contains(metrics, `rworld_messages_total{direction="received",type="data"} 1`)

	info, err = host.StopWorld()
	require.Nil(err)
	require.Equal("idle", info.Session.Role)
	require.Eventually(func() bool {
		info, err := joiner.GetInfo()
		return err == nil && info.Session.Role == "idle"
	}, 5*time.Second, 10*time.Millisecond)

	err = host.Call("unknown", nil, nil)
	require.NotNil(err)
	require.Contains(err.Error(), "invalid method unknown")
}

func TestRPCError(t *testing.T) {
	require := require.New(t)

	err := newError(fmt.Errorf("join: %w", network.ErrConnect))
	require.Equal("connect", err.Code)
	require.ErrorIs(err, network.ErrConnect)
	require.False(errors.Is(err, network.ErrBind))

	err = newError(errors.New("invalid params count"))
	require.Equal(codeBadRequest, err.Code)
	require.False(errors.Is(err, session.ErrPeerNotFound))
}

func TestRPCBadRequest(t *testing.T) {
	require := require.New(t)

	_, host := testWorldServer(t)

	resp, err := http.Post(host, "application/json", strings.NewReader("{"))
	require.Nil(err)
	defer resp.Body.Close()
	require.Equal(http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(host + "/unknown")
	require.Nil(err)
	defer resp.Body.Close()
	require.Equal(http.StatusNotFound, resp.StatusCode)

	req, err := http.NewRequest("OPTIONS", host, nil)
	require.Nil(err)
	req.Header.Set("Origin", "http://localhost")
	resp, err = http.DefaultClient.Do(req)
	require.Nil(err)
	defer resp.Body.Close()
	require.Equal(http.StatusOK, resp.StatusCode)
	require.Equal("http://localhost", resp.Header.Get("Access-Control-Allow-Origin"))
}
