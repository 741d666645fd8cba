package network

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrame(t *testing.T) {
	require := require.New(t)

	var buf bytes.Buffer
	err := writeFrame(&buf, []byte("hello world"), 0)
	require.Nil(err)
	require.Equal(TransportMessageHeaderSize+11, buf.Len())
	require.Equal(byte(TransportMessageVersion), buf.Bytes()[0])
	require.Equal(byte(0), buf.Bytes()[1])

	m, err := readFrame(&buf, 1024)
	require.Nil(err)
	require.Equal(uint32(11), m.Size)
	require.Equal("hello world", string(m.Data))

	big := bytes.Repeat([]byte("world state "), 200)
	err = writeFrame(&buf, big, 512)
	require.Nil(err)
	require.Less(buf.Len(), len(big))
	require.Equal(byte(TransportMessageFlagCompressed), buf.Bytes()[1])
	m, err = readFrame(&buf, 4096)
	require.Nil(err)
	require.Equal(big, m.Data)

	random := []byte{0x91, 0x07, 0xfe, 0x33}
	err = writeFrame(&buf, random, 1)
	require.Nil(err)
	require.Equal(byte(0), buf.Bytes()[1])
	m, err = readFrame(&buf, 16)
	require.Nil(err)
	require.Equal(random, m.Data)
}

func TestFrameDesync(t *testing.T) {
	require := require.New(t)

	_, err := readFrame(bytes.NewReader([]byte{TransportMessageVersion, 0, 0}), 1024)
	require.True(errors.Is(err, ErrConnectionLost))

	_, err = readFrame(bytes.NewReader([]byte{9, 0, 0, 0, 0, 1, 'a'}), 1024)
	require.True(errors.Is(err, ErrConnectionLost))

	_, err = readFrame(bytes.NewReader([]byte{TransportMessageVersion, 0, 0, 0, 0, 0}), 1024)
	require.True(errors.Is(err, ErrConnectionLost))

	_, err = readFrame(bytes.NewReader([]byte{TransportMessageVersion, 0, 0, 0, 8, 1}), 1024)
	require.True(errors.Is(err, ErrConnectionLost))

	_, err = readFrame(bytes.NewReader([]byte{TransportMessageVersion, 0, 0, 0, 0, 4, 'a', 'b'}), 1024)
	require.True(errors.Is(err, ErrConnectionLost))

	_, err = readFrame(bytes.NewReader([]byte{TransportMessageVersion, TransportMessageFlagCompressed, 0, 0, 0, 2, 'a', 'b'}), 1024)
	require.True(errors.Is(err, ErrConnectionLost))

	var buf bytes.Buffer
	err = writeFrame(&buf, bytes.Repeat([]byte{'x'}, 4096), 64)
	require.Nil(err)
	_, err = readFrame(&buf, 1024)
	require.True(errors.Is(err, ErrConnectionLost))
}

func TestCheckMessageSize(t *testing.T) {
	require := require.New(t)

	require.NotNil(checkMessageSize(nil, 8))
	require.NotNil(checkMessageSize(make([]byte, 9), 8))
	require.Nil(checkMessageSize(make([]byte, 8), 8))
}
