package rpc

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/MixinNetwork/rworld/storage"
	"github.com/MixinNetwork/rworld/world"
)

func startWorld(w *world.World, params []any) (*world.Info, error) {
	port := 0
	if len(params) > 1 {
		return nil, errors.New("invalid params count")
	}
	if len(params) == 1 {
		p, err := strconv.ParseUint(fmt.Sprint(params[0]), 10, 16)
		if err != nil {
			return nil, err
		}
		port = int(p)
	}
	_, err := w.Start(port)
	if err != nil {
		return nil, err
	}
	return w.Info(), nil
}

func stopWorld(w *world.World, params []any) (*world.Info, error) {
	if len(params) != 0 {
		return nil, errors.New("invalid params count")
	}
	w.StopWorld()
	return w.Info(), nil
}

func joinWorld(w *world.World, params []any) (*world.Info, error) {
	if len(params) != 2 {
		return nil, errors.New("invalid params count")
	}
	address := fmt.Sprint(params[0])
	port, err := strconv.ParseUint(fmt.Sprint(params[1]), 10, 16)
	if err != nil {
		return nil, err
	}
	err = w.Join(address, int(port))
	if err != nil {
		return nil, err
	}
	return w.Info(), nil
}

func sendMessage(w *world.World, params []any) error {
	if len(params) != 2 {
		return errors.New("invalid params count")
	}
	peer := fmt.Sprint(params[0])
	data := fmt.Sprint(params[1])
	return w.SendMessage(peer, []byte(data))
}

func listEvents(w *world.World, params []any) ([]*storage.Event, error) {
	if len(params) != 2 {
		return nil, errors.New("invalid params count")
	}
	offset, err := strconv.ParseUint(fmt.Sprint(params[0]), 10, 64)
	if err != nil {
		return nil, err
	}
	count, err := strconv.ParseUint(fmt.Sprint(params[1]), 10, 64)
	if err != nil {
		return nil, err
	}
	return w.Events(offset, count)
}
