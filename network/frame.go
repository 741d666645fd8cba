package network

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/MixinNetwork/rworld/common"
)

var (
	zstdEncoder = common.NewZstdEncoder()
	zstdDecoder = common.NewZstdDecoder(64 << 20)
)

func checkMessageSize(data []byte, maxSize int) error {
	if l := len(data); l < 1 || l > maxSize {
		return fmt.Errorf("invalid message size %d", l)
	}
	return nil
}

// writeFrame writes header and payload with a single Write call.
func writeFrame(w io.Writer, data []byte, compressThreshold int) error {
	var flags byte
	if compressThreshold > 0 && len(data) >= compressThreshold {
		compressed := zstdEncoder.EncodeAll(data, nil)
		if len(compressed) < len(data) {
			data, flags = compressed, TransportMessageFlagCompressed
		}
	}
	buf := make([]byte, TransportMessageHeaderSize, TransportMessageHeaderSize+len(data))
	buf[0] = TransportMessageVersion
	buf[1] = flags
	binary.BigEndian.PutUint32(buf[2:], uint32(len(data)))
	buf = append(buf, data...)
	_, err := w.Write(buf)
	return err
}

// readFrame fails with ErrConnectionLost on any read or framing error since
// the stream cannot be resynchronized afterwards.
func readFrame(r io.Reader, maxSize int) (*TransportMessage, error) {
	header := make([]byte, TransportMessageHeaderSize)
	_, err := io.ReadFull(r, header)
	if err != nil {
		return nil, fmt.Errorf("%w: read header %v", ErrConnectionLost, err)
	}
	m := &TransportMessage{
		Version: header[0],
		Flags:   header[1],
		Size:    binary.BigEndian.Uint32(header[2:]),
	}
	if m.Version != TransportMessageVersion {
		return nil, fmt.Errorf("%w: invalid message version %d", ErrConnectionLost, m.Version)
	}
	if m.Size < 1 || m.Size > uint32(maxSize) {
		return nil, fmt.Errorf("%w: invalid message size %d", ErrConnectionLost, m.Size)
	}
	data := make([]byte, m.Size)
	_, err = io.ReadFull(r, data)
	if err != nil {
		return nil, fmt.Errorf("%w: read data %v", ErrConnectionLost, err)
	}
	if m.Flags&TransportMessageFlagCompressed != 0 {
		data, err = zstdDecoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: decompress %v", ErrConnectionLost, err)
		}
		if len(data) > maxSize {
			return nil, fmt.Errorf("%w: invalid message size %d", ErrConnectionLost, len(data))
		}
	}
	m.Data = data
	return m, nil
}
