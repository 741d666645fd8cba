package storage

type Event struct {
	Sequence  uint64 `msgpack:"s" json:"sequence"`
	Type      string `msgpack:"t" json:"type"`
	Role      string `msgpack:"r" json:"role"`
	PeerId    string `msgpack:"p" json:"peer,omitempty"`
	Address   string `msgpack:"a" json:"address,omitempty"`
	Message   string `msgpack:"m" json:"message,omitempty"`
	Timestamp int64  `msgpack:"ts" json:"timestamp"`
}

type Store interface {
	Close() error

	StateGet(key string, val any) (bool, error)
	StateSet(key string, val any) error

	WriteEvent(e *Event) (uint64, error)
	ReadEvents(offset, count uint64) ([]*Event, error)
	EventsSequence() uint64
}
