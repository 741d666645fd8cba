package network

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MixinNetwork/rworld/config"
	"github.com/stretchr/testify/require"
)

func TestQuicRoundTrip(t *testing.T) {
	testTransportRoundTrip(t, NewQuicTransport(testOptions()))
}

func TestQuicDialErrors(t *testing.T) {
	require := require.New(t)

	trans := NewQuicTransport(testOptions())
	_, err := trans.Dial(context.Background(), "unreachable-host.invalid", 7000)
	require.True(errors.Is(err, ErrResolution))

	_, err = trans.Dial(context.Background(), "127.0.0.1", 0)
	require.True(errors.Is(err, ErrConnect))
}

func TestTransportDefaults(t *testing.T) {
	require := require.New(t)

	for _, kind := range []string{"tcp", "quic"} {
		trans, err := NewTransport(kind, Options{})
		require.Nil(err)
		var opts Options
		switch tt := trans.(type) {
		case *TcpTransport:
			opts = tt.opts
		case *QuicTransport:
			opts = tt.opts
		}
		require.Equal(config.DefaultDialTimeout, opts.DialTimeout, kind)
		require.Equal(config.DefaultReadTimeout, opts.ReadTimeout, kind)
		require.Equal(config.DefaultWriteTimeout, opts.WriteTimeout, kind)
		require.Equal(config.DefaultMaxMessageSize, opts.MaxMessageSize, kind)
	}
	_, err := NewTransport("udp", Options{})
	require.NotNil(err)
}

func TestQuicAcceptedStreamOutlivesHandshake(t *testing.T) {
	require := require.New(t)

	trans := NewQuicTransport(Options{})
	l, err := trans.Listen(0)
	require.Nil(err)
	defer l.Close()

	accepted := make(chan Client, 1)
	go func() {
		c, err := l.Accept(context.Background())
		if err == nil {
			accepted <- c
		}
	}()
	client, err := trans.Dial(context.Background(), "127.0.0.1", listenerPort(l))
	require.Nil(err)
	defer client.Close()
	var server Client
	select {
	case server = <-accepted:
	case <-time.After(5 * time.Second):
		t.Fatal("accept timeout")
	}
	defer server.Close()

	time.Sleep(HandshakeTimeout + 500*time.Millisecond)
	require.Nil(client.Send([]byte("late")))
	m, err := server.Receive()
	require.Nil(err)
	require.Equal("late", string(m.Data))
}
