package storage

import (
	"os"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func TestBadger(t *testing.T) {
	require := require.New(t)

	root, err := os.MkdirTemp("", "rworld-badger-test")
	require.Nil(err)
	defer os.RemoveAll(root)

	store, err := NewBadgerStore(root)
	require.Nil(err)
	require.NotNil(store)
	require.Equal(uint64(0), store.EventsSequence())

	err = store.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte("key-not-found"))
	})
	require.Nil(err)

	seq, err := store.WriteEvent(&Event{Type: "role", Role: "hosting", Message: "idle => hosting"})
	require.Nil(err)
	require.Equal(uint64(1), seq)
	require.Nil(store.Close())
	require.Nil(store.Close())

	store, err = NewBadgerStore(root)
	require.Nil(err)
	defer store.Close()
	require.Equal(uint64(1), store.EventsSequence())
	events, err := store.ReadEvents(0, 10)
	require.Nil(err)
	require.Len(events, 1)
	require.Equal("idle => hosting", events[0].Message)
	require.NotZero(events[0].Timestamp)
}

func TestBadgerEvents(t *testing.T) {
	require := require.New(t)

	store, err := NewBadgerStore("")
	require.Nil(err)
	defer store.Close()

	events, err := store.ReadEvents(0, 10)
	require.Nil(err)
	require.Len(events, 0)

	for i := 0; i < 20; i++ {
		e := &Event{Type: "peer-added", Role: "hosting", PeerId: "peer", Address: "127.0.0.1:7001", Timestamp: int64(i + 1)}
		seq, err := store.WriteEvent(e)
		require.Nil(err)
		require.Equal(uint64(i+1), seq)
		require.Equal(seq, e.Sequence)
	}
	require.Equal(uint64(20), store.EventsSequence())

	events, err = store.ReadEvents(0, 5)
	require.Nil(err)
	require.Len(events, 5)
	require.Equal(uint64(1), events[0].Sequence)
	require.Equal(uint64(5), events[4].Sequence)
	require.Equal(int64(5), events[4].Timestamp)

	events, err = store.ReadEvents(18, 10)
	require.Nil(err)
	require.Len(events, 3)
	require.Equal(uint64(18), events[0].Sequence)
	require.Equal(uint64(20), events[2].Sequence)

	events, err = store.ReadEvents(21, 10)
	require.Nil(err)
	require.Len(events, 0)

	events, err = store.ReadEvents(0, 0)
	require.Nil(err)
	require.Len(events, 20)
}

func TestBadgerState(t *testing.T) {
	require := require.New(t)

	store, err := NewBadgerStore("")
	require.Nil(err)
	defer store.Close()

	type lastWorld struct {
		Role    string
		Address string
		Port    int
	}

	var last lastWorld
	found, err := store.StateGet("last", &last)
	require.Nil(err)
	require.False(found)

	err = store.StateSet("last", &lastWorld{Role: "joined", Address: "127.0.0.1", Port: 7001})
	require.Nil(err)
	found, err = store.StateGet("last", &last)
	require.Nil(err)
	require.True(found)
	require.Equal("joined", last.Role)
	require.Equal(7001, last.Port)

	events, err := store.ReadEvents(0, 10)
	require.Nil(err)
	require.Len(events, 0)
}
