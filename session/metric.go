package session

import (
	"encoding/json"
	"sync/atomic"
)

type MetricPool struct {
	MessageTypePing  uint32 `json:"ping"`
	MessageTypeHello uint32 `json:"hello"`
	MessageTypeData  uint32 `json:"data"`
	MessageTypeRelay uint32 `json:"relay"`
	MessageUnknown   uint32 `json:"unknown"`

	Bytes uint64 `json:"bytes"`
}

func (mp *MetricPool) handle(msg uint8, size int) {
	atomic.AddUint64(&mp.Bytes, uint64(size))

	switch msg {
	case MessageTypePing:
		atomic.AddUint32(&mp.MessageTypePing, 1)
	case MessageTypeHello:
		atomic.AddUint32(&mp.MessageTypeHello, 1)
	case MessageTypeData:
		atomic.AddUint32(&mp.MessageTypeData, 1)
	case MessageTypeRelay:
		atomic.AddUint32(&mp.MessageTypeRelay, 1)
	default:
		atomic.AddUint32(&mp.MessageUnknown, 1)
	}
}

// Snapshot copies the counters with atomic loads.
func (mp *MetricPool) Snapshot() MetricPool {
	return MetricPool{
		MessageTypePing:  atomic.LoadUint32(&mp.MessageTypePing),
		MessageTypeHello: atomic.LoadUint32(&mp.MessageTypeHello),
		MessageTypeData:  atomic.LoadUint32(&mp.MessageTypeData),
		MessageTypeRelay: atomic.LoadUint32(&mp.MessageTypeRelay),
		MessageUnknown:   atomic.LoadUint32(&mp.MessageUnknown),
		Bytes:            atomic.LoadUint64(&mp.Bytes),
	}
}

func (mp *MetricPool) String() string {
	snap := mp.Snapshot()
	b, err := json.Marshal(&snap)
	if err != nil {
		panic(err)
	}
	return string(b)
}
