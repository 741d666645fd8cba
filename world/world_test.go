package world

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MixinNetwork/rworld/config"
	"github.com/MixinNetwork/rworld/logger"
	"github.com/MixinNetwork/rworld/session"
	"github.com/MixinNetwork/rworld/storage"
	"github.com/stretchr/testify/require"
)

type captureSink struct {
	sync.Mutex
	lines []string
}

func (c *captureSink) sink(msg string) {
	c.Lock()
	defer c.Unlock()
	c.lines = append(c.lines, msg)
}

func (c *captureSink) contains(sub string) bool {
	c.Lock()
	defer c.Unlock()
	for _, l := range c.lines {
		if strings.Contains(l, sub) {
			return true
		}
	}
	return false
}

func testWorld(t *testing.T, sink *captureSink, store storage.Store) *World {
	custom := config.Default()
	custom.Log.Level = logger.VERBOSE
	w, err := New(custom, sink.sink, store)
	require.Nil(t, err)
	return w
}

func waitFor(t *testing.T, cond func() bool) {
	require.Eventually(t, cond, 5*time.Second, 10*time.Millisecond)
}

func TestWorldLifecycle(t *testing.T) {
	require := require.New(t)

	hs, js := &captureSink{}, &captureSink{}
	hstore, err := storage.NewBadgerStore("")
	require.Nil(err)
	host := testWorld(t, hs, hstore)
	defer host.Close()
	joiner := testWorld(t, js, nil)
	defer joiner.Close()

	host.StartWorld(0)
	require.Equal(session.Hosting, host.Role())
	port := int(host.Info().Session.Port)
	require.NotZero(port)
	require.True(hs.contains("hosting rworld on port"))

	host.StartWorld(0)
	require.Equal(session.Hosting, host.Role())
	require.True(hs.contains("invalid state transition"))

	joiner.JoinWorld("127.0.0.1", port)
	require.Equal(session.Joined, joiner.Role())
	waitFor(t, func() bool {
		return len(host.Peers()) == 1
	})
	require.Len(joiner.Peers(), 1)

	err = joiner.SendMessage("", []byte("hello world"))
	require.Nil(err)
	waitFor(t, func() bool {
		return host.Info().Received == 1
	})
	require.True(hs.contains("OnMessage("))

	err = host.SendMessage(host.Peers()[0].Id, []byte("welcome"))
	require.Nil(err)
	waitFor(t, func() bool {
		return joiner.Info().Received == 1
	})
	err = host.SendMessage("missing", []byte("nobody"))
	require.ErrorIs(err, session.ErrPeerNotFound)

	host.StopWorld()
	require.Equal(session.Idle, host.Role())
	waitFor(t, func() bool {
		return joiner.Role() == session.Idle
	})
	host.StopWorld()
	require.Equal(session.Idle, host.Role())

	events, err := host.Events(0, 100)
	require.Nil(err)
	types := make([]string, len(events))
	for i, e := range events {
		types[i] = e.Type
	}
	require.Equal([]string{
		session.EventRoleChanged,
		EventError,
		session.EventPeerAdded,
		session.EventPeerRemoved,
		session.EventRoleChanged,
	}, types)
	require.Equal("hosting", events[0].Role)
	require.Equal(uint64(5), host.Info().Events)

	events, err = joiner.Events(0, 100)
	require.Nil(err)
	require.Len(events, 0)
	require.Nil(joiner.LastWorld())
}

func TestWorldFailures(t *testing.T) {
	require := require.New(t)

	sink := &captureSink{}
	store, err := storage.NewBadgerStore("")
	require.Nil(err)
	w := testWorld(t, sink, store)

	w.JoinWorld("unreachable-host.invalid", 7001)
	require.Equal(session.Idle, w.Role())
	require.True(sink.contains("resolution error"))

	w.JoinWorld("127.0.0.1", 0)
	require.True(sink.contains("JoinWorld(127.0.0.1, 0) => connect error"))
	w.JoinWorld("127.0.0.1", 70000)
	require.True(sink.contains("invalid port 70000"))
	w.StartWorld(-1)
	require.True(sink.contains("StartWorld(-1) => bind error"))
	require.Equal(session.Idle, w.Role())

	other := testWorld(t, &captureSink{}, nil)
	defer other.Close()
	other.StartWorld(0)
	w.StartWorld(int(other.Info().Session.Port))
	require.Equal(session.Idle, w.Role())
	require.True(sink.contains("bind error"))

	events, err := w.Events(0, 100)
	require.Nil(err)
	require.Len(events, 5)
	for _, e := range events {
		require.Equal(EventError, e.Type)
		require.Equal("idle", e.Role)
	}

	require.Nil(w.Close())
	require.Nil(w.Close())
	require.True(sink.contains("Close() => <nil>"))
}

func TestWorldResume(t *testing.T) {
	require := require.New(t)

	store, err := storage.NewBadgerStore("")
	require.Nil(err)
	defer store.Close()

	first := testWorld(t, &captureSink{}, store)
	require.False(first.Resume())
	first.StartWorld(0)
	port := int(first.Info().Session.Port)
	first.StopWorld()

	last := first.LastWorld()
	require.NotNil(last)
	require.Equal("hosting", last.Role)
	require.Equal(port, last.Port)

	second := testWorld(t, &captureSink{}, store)
	require.True(second.Resume())
	require.Equal(session.Hosting, second.Role())
	require.Equal(port, int(second.Info().Session.Port))

	joiner := testWorld(t, &captureSink{}, store)
	joiner.JoinWorld("127.0.0.1", port)
	require.Equal(session.Joined, joiner.Role())
	joiner.StopWorld()
	require.Equal("joined", joiner.LastWorld().Role)

	second.StopWorld()
	require.False(joiner.Resume())
	require.Equal(session.Idle, joiner.Role())
}
