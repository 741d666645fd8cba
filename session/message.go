package session

import (
	"fmt"

	"github.com/MixinNetwork/rworld/common"
)

const (
	MessageTypePing  = 1
	MessageTypeHello = 3
	MessageTypeData  = 8
	MessageTypeRelay = 200
)

// Hello ids are bounded so a relay envelope never grows past RelayOverhead.
const (
	MaxHelloIdSize = 64
	RelayOverhead  = 128
)

type Hello struct {
	Id      string `msgpack:"i"`
	Name    string `msgpack:"n"`
	Version int    `msgpack:"v"`
}

type Relay struct {
	Origin string `msgpack:"o"`
	Data   []byte `msgpack:"d"`
}

type Message struct {
	Type   uint8
	Hello  *Hello
	Origin string
	Data   []byte
}

func buildPingMessage() []byte {
	return []byte{MessageTypePing}
}

func buildHelloMessage(h *Hello) []byte {
	data := common.MsgpackMarshalPanic(h)
	return append([]byte{MessageTypeHello}, data...)
}

func buildDataMessage(data []byte) []byte {
	return append([]byte{MessageTypeData}, data...)
}

func buildRelayMessage(origin string, data []byte) []byte {
	r := &Relay{Origin: origin, Data: data}
	return append([]byte{MessageTypeRelay}, common.MsgpackMarshalPanic(r)...)
}

// parseMessage decodes a frame payload. Unknown types are returned with
// no payload so newer peers can add messages without breaking old ones.
func parseMessage(data []byte) (*Message, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("invalid message data %d", len(data))
	}
	msg := &Message{Type: data[0]}
	switch msg.Type {
	case MessageTypePing:
	case MessageTypeHello:
		var h Hello
		err := common.MsgpackUnmarshal(data[1:], &h)
		if err != nil {
			return nil, err
		}
		if h.Id == "" || len(h.Id) > MaxHelloIdSize {
			return nil, fmt.Errorf("invalid hello id size %d", len(h.Id))
		}
		msg.Hello = &h
	case MessageTypeData:
		msg.Data = data[1:]
	case MessageTypeRelay:
		var r Relay
		err := common.MsgpackUnmarshal(data[1:], &r)
		if err != nil {
			return nil, err
		}
		msg.Origin = r.Origin
		msg.Data = r.Data
	}
	return msg, nil
}
