package world

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MixinNetwork/rworld/config"
	"github.com/MixinNetwork/rworld/logger"
	"github.com/MixinNetwork/rworld/network"
	"github.com/MixinNetwork/rworld/session"
	"github.com/MixinNetwork/rworld/storage"
)

const (
	EventError = "error"

	stateKeyLastWorld = "last-world"
)

// LastWorld is the most recent world this process hosted or joined.
type LastWorld struct {
	Role    string `msgpack:"r" json:"role"`
	Address string `msgpack:"a" json:"address,omitempty"`
	Port    int    `msgpack:"p" json:"port"`
}

type Info struct {
	Version  string        `json:"version"`
	Session  *session.Info `json:"session"`
	Received uint64        `json:"received"`
	Events   uint64        `json:"events"`
	Last     *LastWorld    `json:"last,omitempty"`
	Uptime   string        `json:"uptime"`
}

// World owns exactly one session. StartWorld, StopWorld and JoinWorld never
// return errors, failures go to the logger sink and the event journal.
type World struct {
	custom  *config.Custom
	logger  *logger.Logger
	session *session.Session
	store   storage.Store

	startAt  time.Time
	received atomic.Uint64
	closing  sync.Once
}

// New builds a world whose log output goes to sink. store may be nil, in
// which case events are only logged.
func New(custom *config.Custom, sink logger.Sink, store storage.Store) (*World, error) {
	log := logger.New(sink, custom.Log.Level)
	log.SetLimiter(custom.Log.Limiter)
	err := log.SetFilter(custom.Log.Filter)
	if err != nil {
		return nil, err
	}

	trans, err := network.NewTransport(custom.Network.Transport, network.OptionsFromConfig(custom))
	if err != nil {
		return nil, err
	}
	w := &World{
		custom:  custom,
		logger:  log,
		store:   store,
		startAt: time.Now(),
	}
	w.session = session.NewSession(trans, w, log, session.OptionsFromConfig(custom))
	return w, nil
}

func (w *World) StartWorld(port int) {
	w.Start(port)
}

// Start hosts a world like StartWorld and also returns the bound port or
// the error that was reported to the sink.
func (w *World) Start(port int) (uint16, error) {
	op := fmt.Sprintf("StartWorld(%d)", port)
	if port < 0 || port > 65535 {
		return 0, w.fail(op, fmt.Errorf("%w: invalid port %d", network.ErrBind, port))
	}
	bound, err := w.session.Start(uint16(port))
	if err != nil {
		return 0, w.fail(op, err)
	}
	w.logger.Printf("%s => hosting %s on port %d", op, w.custom.World.Name, bound)
	w.saveLastWorld(&LastWorld{Role: session.Hosting.String(), Port: int(bound)})
	return bound, nil
}

func (w *World) StopWorld() {
	w.session.Stop()
	w.logger.Printf("StopWorld() => %s", w.session.Role())
}

func (w *World) JoinWorld(address string, port int) {
	w.Join(address, port)
}

// Join is JoinWorld returning the error that was reported to the sink.
func (w *World) Join(address string, port int) error {
	op := fmt.Sprintf("JoinWorld(%s, %d)", address, port)
	if port < 1 || port > 65535 {
		return w.fail(op, fmt.Errorf("%w: invalid port %d", network.ErrConnect, port))
	}
	err := w.session.Join(context.Background(), address, uint16(port))
	if err != nil {
		return w.fail(op, err)
	}
	w.logger.Printf("%s => joined", op)
	w.saveLastWorld(&LastWorld{Role: session.Joined.String(), Address: address, Port: port})
	return nil
}

// Resume hosts or joins the last world recorded in the store, if any.
func (w *World) Resume() bool {
	last := w.LastWorld()
	if last == nil {
		return false
	}
	w.logger.Printf("Resume() => %s %s %d", last.Role, last.Address, last.Port)
	switch last.Role {
	case session.Hosting.String():
		w.StartWorld(last.Port)
	case session.Joined.String():
		w.JoinWorld(last.Address, last.Port)
	default:
		return false
	}
	return w.session.Role() != session.Idle
}

func (w *World) Close() error {
	var err error
	w.closing.Do(func() {
		w.session.Stop()
		if w.store != nil {
			err = w.store.Close()
		}
		w.logger.Printf("Close() => %v", err)
	})
	return err
}

func (w *World) Role() session.Role {
	return w.session.Role()
}

func (w *World) Info() *Info {
	info := &Info{
		Version:  config.BuildVersion,
		Session:  w.session.Info(),
		Received: w.received.Load(),
		Last:     w.LastWorld(),
		Uptime:   time.Since(w.startAt).Round(time.Second).String(),
	}
	if w.store != nil {
		info.Events = w.store.EventsSequence()
	}
	return info
}

func (w *World) Peers() []*session.PeerInfo {
	return w.session.Peers()
}

func (w *World) Metric() map[string]*session.MetricPool {
	return w.session.Metric()
}

// SendMessage queues data for peer, or for every peer when peer is empty.
func (w *World) SendMessage(peer string, data []byte) error {
	var err error
	if peer == "" {
		err = w.session.Broadcast(data)
	} else {
		err = w.session.Send(peer, data)
	}
	w.logger.Verbosef("SendMessage(%s, %d) => %v", peer, len(data), err)
	return err
}

func (w *World) Events(offset, count uint64) ([]*storage.Event, error) {
	if w.store == nil {
		return []*storage.Event{}, nil
	}
	return w.store.ReadEvents(offset, count)
}

func (w *World) LastWorld() *LastWorld {
	if w.store == nil {
		return nil
	}
	var last LastWorld
	found, err := w.store.StateGet(stateKeyLastWorld, &last)
	if err != nil {
		w.logger.Errorf("StateGet(%s) => %v", stateKeyLastWorld, err)
		return nil
	}
	if !found {
		return nil
	}
	return &last
}

func (w *World) OnMessage(peer *session.PeerInfo, origin string, data []byte) {
	w.received.Add(1)
	w.logger.Verbosef("OnMessage(%s, %s) => %d", peer.Id, origin, len(data))
}

func (w *World) OnEvent(e *session.Event) {
	w.logger.Verbosef("OnEvent(%s, %s, %s) => %s", e.Type, e.Role, e.PeerId, e.Message)
	w.writeEvent(&storage.Event{
		Type:      e.Type,
		Role:      e.Role.String(),
		PeerId:    e.PeerId,
		Address:   e.Address,
		Message:   e.Message,
		Timestamp: e.Time.UnixNano(),
	})
}

func (w *World) fail(op string, err error) error {
	w.logger.Errorf("%s => %v", op, err)
	w.writeEvent(&storage.Event{
		Type:    EventError,
		Role:    w.session.Role().String(),
		Message: fmt.Sprintf("%s => %v", op, err),
	})
	return err
}

func (w *World) writeEvent(e *storage.Event) {
	if w.store == nil {
		return
	}
	_, err := w.store.WriteEvent(e)
	if err != nil {
		w.logger.Errorf("WriteEvent(%s) => %v", e.Type, err)
	}
}

func (w *World) saveLastWorld(last *LastWorld) {
	if w.store == nil {
		return
	}
	err := w.store.StateSet(stateKeyLastWorld, last)
	if err != nil {
		w.logger.Errorf("StateSet(%s) => %v", stateKeyLastWorld, err)
	}
}
