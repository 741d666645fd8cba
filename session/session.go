package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/MixinNetwork/rworld/config"
	"github.com/MixinNetwork/rworld/logger"
	"github.com/MixinNetwork/rworld/network"
	"github.com/MixinNetwork/rworld/util"
	"github.com/gofrs/uuid"
	"go.uber.org/multierr"
)

var (
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrPeerNotFound           = errors.New("peer not found")
	ErrPeerBusy               = errors.New("peer busy")
	ErrMessageTooLarge        = errors.New("message too large")
)

type Role int

const (
	Idle Role = iota
	Hosting
	Joined
)

func (r Role) String() string {
	switch r {
	case Idle:
		return "idle"
	case Hosting:
		return "hosting"
	case Joined:
		return "joined"
	}
	return fmt.Sprintf("role(%d)", int(r))
}

const (
	EventRoleChanged = "role"
	EventPeerAdded   = "peer-added"
	EventPeerRemoved = "peer-removed"
)

type Event struct {
	Type    string
	Role    Role
	PeerId  string
	Address string
	Message string
	Time    time.Time
}

// Handle receives application data and lifecycle events. OnEvent runs with
// the session lock held and OnMessage runs on a peer receive loop, so
// neither may call back into Stop.
type Handle interface {
	OnMessage(peer *PeerInfo, origin string, data []byte)
	OnEvent(e *Event)
}

type Options struct {
	Name           string
	KeepAlive      time.Duration
	QueueSize      int
	MaxMessageSize int
}

func OptionsFromConfig(custom *config.Custom) Options {
	return Options{
		Name:           custom.World.Name,
		KeepAlive:      custom.KeepAlive(),
		QueueSize:      custom.Network.QueueSize,
		MaxMessageSize: custom.Network.MaxMessageSize,
	}
}

type Info struct {
	Id       string     `json:"id"`
	Name     string     `json:"name"`
	Role     string     `json:"role"`
	Port     uint16     `json:"port"`
	Epoch    uint64     `json:"epoch"`
	Peers    int        `json:"peers"`
	Sent     MetricPool `json:"sent"`
	Received MetricPool `json:"received"`
}

type Session struct {
	Id string

	opts      Options
	transport network.Transport
	handle    Handle
	logger    *logger.Logger

	mutex    sync.Mutex
	role     Role
	epoch    uint64
	port     uint16
	listener network.Listener
	peers    *peerMap
	cancel   context.CancelFunc
	loops    *sync.WaitGroup
	joining  context.CancelFunc

	sentMetric     *MetricPool
	receivedMetric *MetricPool
}

func NewSession(transport network.Transport, handle Handle, log *logger.Logger, opts Options) *Session {
	if opts.Name == "" {
		opts.Name = config.DefaultWorldName
	}
	if opts.KeepAlive <= 0 {
		opts.KeepAlive = config.DefaultKeepAlive
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = config.DefaultQueueSize
	}
	if opts.MaxMessageSize <= RelayOverhead {
		opts.MaxMessageSize = config.DefaultMaxMessageSize
	}
	if handle == nil {
		handle = noopHandle{}
	}
	if log == nil {
		log = logger.New(nil, logger.INFO)
	}
	return &Session{
		Id:             uuid.Must(uuid.NewV4()).String(),
		opts:           opts,
		transport:      transport,
		handle:         handle,
		logger:         log,
		peers:          &peerMap{m: make(map[string]*Peer)},
		sentMetric:     &MetricPool{},
		receivedMetric: &MetricPool{},
	}
}

// Start listens on port, 0 for an ephemeral one, and returns the bound port.
func (s *Session) Start(port uint16) (uint16, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.role != Idle || s.joining != nil {
		return 0, fmt.Errorf("%w: start while %s", ErrInvalidStateTransition, s.stateName())
	}
	l, err := s.transport.Listen(port)
	s.logger.Verbosef("transport.Listen(%d) => %v", port, err)
	if err != nil {
		return 0, err
	}

	ctx := s.begin()
	s.listener = l
	s.port = addrPort(l.Addr())
	s.setRole(Hosting)

	wg := s.loops
	wg.Add(1)
	go s.loopAccept(ctx, l, s.epoch, wg)
	return s.port, nil
}

// Stop returns the session to Idle. It cancels a pending Join and waits
// for every loop of the stopped session to exit.
func (s *Session) Stop() {
	s.mutex.Lock()
	if s.joining != nil {
		s.joining()
	}
	wg := s.loops
	err := s.teardown()
	s.mutex.Unlock()

	if wg != nil {
		wg.Wait()
	}
	if err != nil {
		s.logger.Verbosef("session.Stop(%s) => %v", s.Id, err)
	}
}

func (s *Session) Join(ctx context.Context, address string, port uint16) error {
	s.mutex.Lock()
	if s.role != Idle || s.joining != nil {
		state := s.stateName()
		s.mutex.Unlock()
		return fmt.Errorf("%w: join while %s", ErrInvalidStateTransition, state)
	}
	dctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.joining = cancel
	s.mutex.Unlock()

	client, err := s.transport.Dial(dctx, address, port)
	s.logger.Verbosef("transport.Dial(%s, %d) => %v", address, port, err)

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.joining = nil
	if err != nil {
		return err
	}
	if dctx.Err() != nil {
		client.Close()
		return fmt.Errorf("%w: join %s:%d cancelled", network.ErrConnect, address, port)
	}

	ectx := s.begin()
	s.setRole(Joined)
	s.addPeer(ectx, client, true)
	return nil
}

func (s *Session) Role() Role {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.role
}

func (s *Session) Port() uint16 {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.port
}

func (s *Session) Peers() []*PeerInfo {
	s.mutex.Lock()
	peers := s.peers.Slice()
	s.mutex.Unlock()

	infos := make([]*PeerInfo, len(peers))
	for i, p := range peers {
		infos[i] = p.Info()
	}
	return infos
}

func (s *Session) Peer(id string) (*PeerInfo, error) {
	s.mutex.Lock()
	p := s.peers.Get(id)
	s.mutex.Unlock()

	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrPeerNotFound, id)
	}
	return p.Info(), nil
}

func (s *Session) Info() *Info {
	s.mutex.Lock()
	info := &Info{
		Id:    s.Id,
		Name:  s.opts.Name,
		Role:  s.role.String(),
		Port:  s.port,
		Epoch: s.epoch,
		Peers: s.peers.Len(),
	}
	s.mutex.Unlock()

	info.Sent = s.sentMetric.Snapshot()
	info.Received = s.receivedMetric.Snapshot()
	return info
}

func (s *Session) Metric() map[string]*MetricPool {
	return map[string]*MetricPool{
		"sent":     s.sentMetric,
		"received": s.receivedMetric,
	}
}

// Send queues data for one peer and never blocks.
func (s *Session) Send(peerId string, data []byte) error {
	s.mutex.Lock()
	p := s.peers.Get(peerId)
	s.mutex.Unlock()

	if p == nil {
		return fmt.Errorf("%w: %s", ErrPeerNotFound, peerId)
	}
	err := s.checkDataSize(data)
	if err != nil {
		return err
	}
	return s.offerTo(p, buildDataMessage(data))
}

// Broadcast queues data for every peer, which is only the host when Joined.
func (s *Session) Broadcast(data []byte) error {
	s.mutex.Lock()
	role := s.role
	peers := s.peers.Slice()
	s.mutex.Unlock()

	if role == Idle {
		return fmt.Errorf("%w: broadcast while %s", ErrInvalidStateTransition, role)
	}
	err := s.checkDataSize(data)
	if err != nil {
		return err
	}
	msg := buildDataMessage(data)
	for _, p := range peers {
		err = multierr.Append(err, s.offerTo(p, msg))
	}
	return err
}

// checkDataSize reserves the relay envelope since the host may forward data
// to the other joiners.
func (s *Session) checkDataSize(data []byte) error {
	if limit := s.opts.MaxMessageSize - RelayOverhead; len(data) > limit {
		return fmt.Errorf("%w: data %d > %d", ErrMessageTooLarge, len(data), limit)
	}
	return nil
}

func (s *Session) offerTo(p *Peer, msg []byte) error {
	if len(msg) > s.opts.MaxMessageSize {
		return fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, len(msg), s.opts.MaxMessageSize)
	}
	return p.offer(msg)
}

func (s *Session) loopAccept(ctx context.Context, l network.Listener, epoch uint64, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		client, err := l.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, network.ErrListenerClosed) {
				return
			}
			s.logger.Verbosef("listener.Accept(%s) => %v", l.Addr(), err)
			continue
		}

		s.mutex.Lock()
		if s.epoch != epoch || ctx.Err() != nil {
			s.mutex.Unlock()
			client.Close()
			return
		}
		p := s.addPeer(ctx, client, false)
		s.mutex.Unlock()
		s.logger.Printf("session.loopAccept(%s) => %s %s", l.Addr(), p.Id, p.Address)
	}
}

func (s *Session) loopReceiveMessage(ctx context.Context, p *Peer, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		tm, err := p.client.Receive()
		if err != nil {
			s.dropPeer(ctx, p, err)
			return
		}
		p.touch()
		p.received.Add(1)

		msg, err := parseMessage(tm.Data)
		if err != nil {
			s.dropPeer(ctx, p, fmt.Errorf("%w: %v", network.ErrConnectionLost, err))
			return
		}
		s.receivedMetric.handle(msg.Type, len(tm.Data))

		err = s.handleMessage(p, msg)
		if err != nil {
			s.dropPeer(ctx, p, err)
			return
		}
	}
}

func (s *Session) loopSendingStream(ctx context.Context, p *Peer, wg *sync.WaitGroup) {
	defer wg.Done()

	timer := util.NewTimer(s.opts.KeepAlive)
	defer timer.Stop()

	for {
		item, err := p.ring.Poll(false)
		if err != nil {
			return
		}
		if item != nil {
			msg := item.([]byte)
			if !s.sendToClient(ctx, p, msg) {
				return
			}
			timer.Reset(s.opts.KeepAlive)
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-p.ring.Signal():
		case <-timer.C():
			timer.Fired()
			if !s.sendToClient(ctx, p, buildPingMessage()) {
				return
			}
			timer.Reset(s.opts.KeepAlive)
		}
	}
}

func (s *Session) sendToClient(ctx context.Context, p *Peer, msg []byte) bool {
	err := p.client.Send(msg)
	if err != nil {
		s.dropPeer(ctx, p, err)
		return false
	}
	s.sentMetric.handle(msg[0], len(msg))
	p.sent.Add(1)
	return true
}

func (s *Session) handleMessage(p *Peer, msg *Message) error {
	switch msg.Type {
	case MessageTypePing:
	case MessageTypeHello:
		if msg.Hello.Version != config.ProtocolVersion {
			return fmt.Errorf("%w: peer %s protocol version %d", network.ErrConnectionLost, p.Address, msg.Hello.Version)
		}
		if msg.Hello.Id == s.Id {
			return fmt.Errorf("%w: peer %s is this session", network.ErrConnectionLost, p.Address)
		}
		p.hello.Store(msg.Hello)
		p.state.CompareAndSwap(int32(PeerConnecting), int32(PeerConnected))
		s.logger.Verbosef("session.handleHello(%s, %s) => %s %d", p.Id, p.Address, msg.Hello.Name, msg.Hello.Version)
	case MessageTypeData:
		s.handle.OnMessage(p.Info(), p.RemoteId(), msg.Data)
		if !p.IsHost {
			s.relay(p, msg.Data)
		}
	case MessageTypeRelay:
		if !p.IsHost {
			s.logger.Debugf("session.handleMessage(%s) relay from non host ignored", p.Id)
			return nil
		}
		s.handle.OnMessage(p.Info(), msg.Origin, msg.Data)
	default:
		s.logger.Debugf("session.handleMessage(%s) unknown type %d", p.Id, msg.Type)
	}
	return nil
}

// relay forwards data from one joiner to every other joiner of the world.
func (s *Session) relay(from *Peer, data []byte) {
	s.mutex.Lock()
	if s.role != Hosting || s.peers.Get(from.Id) != from {
		s.mutex.Unlock()
		return
	}
	peers := s.peers.Slice()
	s.mutex.Unlock()

	msg := buildRelayMessage(from.RemoteId(), data)
	for _, p := range peers {
		if p == from {
			continue
		}
		err := s.offerTo(p, msg)
		if err != nil {
			s.logger.Printf("session.relay(%s, %s) => %v", from.Id, p.Id, err)
		}
	}
}

// addPeer must be called with the mutex held.
func (s *Session) addPeer(ctx context.Context, client network.Client, isHost bool) *Peer {
	p := newPeer(client, isHost, s.opts.QueueSize)
	if !s.peers.Put(p.Id, p) {
		panic(fmt.Errorf("duplicated peer id %s", p.Id))
	}
	s.emit(EventPeerAdded, p, "")

	hello := &Hello{Id: s.Id, Name: s.opts.Name, Version: config.ProtocolVersion}
	err := p.offer(buildHelloMessage(hello))
	if err != nil {
		panic(err)
	}

	wg := s.loops
	wg.Add(2)
	go s.loopReceiveMessage(ctx, p, wg)
	go s.loopSendingStream(ctx, p, wg)
	return p
}

func (s *Session) dropPeer(ctx context.Context, p *Peer, cause error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if ctx.Err() != nil || s.peers.Get(p.Id) != p {
		p.disconnect()
		return
	}
	s.peers.Delete(p.Id)
	err := p.disconnect()
	s.logger.Printf("session.dropPeer(%s, %s) => %v %v", p.Id, p.Address, cause, err)
	s.emit(EventPeerRemoved, p, cause.Error())

	if s.role == Joined && p.IsHost {
		err = s.teardown()
		s.logger.Printf("session.teardown(%s) host lost => %v", s.Id, err)
	}
}

// begin starts a new epoch and must be called with the mutex held.
func (s *Session) begin() context.Context {
	s.epoch++
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.loops = &sync.WaitGroup{}
	return ctx
}

// teardown must be called with the mutex held.
func (s *Session) teardown() error {
	if s.role == Idle {
		return nil
	}
	s.cancel()

	var err error
	if s.listener != nil {
		err = multierr.Append(err, s.listener.Close())
		s.listener = nil
	}
	for _, p := range s.peers.Slice() {
		err = multierr.Append(err, p.disconnect())
		s.emit(EventPeerRemoved, p, "session stopped")
	}
	s.peers.Clear()
	s.port = 0
	s.setRole(Idle)
	return err
}

func (s *Session) setRole(role Role) {
	if s.role == role {
		return
	}
	old := s.role
	s.role = role
	s.emit(EventRoleChanged, nil, fmt.Sprintf("%s => %s", old, role))
}

func (s *Session) emit(typ string, p *Peer, message string) {
	e := &Event{
		Type:    typ,
		Role:    s.role,
		Message: message,
		Time:    time.Now(),
	}
	if p != nil {
		e.PeerId = p.Id
		e.Address = p.Address
	}
	s.handle.OnEvent(e)
}

func (s *Session) stateName() string {
	if s.joining != nil {
		return "joining"
	}
	return s.role.String()
}

func addrPort(addr net.Addr) uint16 {
	switch a := addr.(type) {
	case *net.TCPAddr:
		return uint16(a.Port)
	case *net.UDPAddr:
		return uint16(a.Port)
	}
	_, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return 0
	}
	p, _ := strconv.ParseUint(port, 10, 16)
	return uint16(p)
}

type noopHandle struct{}

func (noopHandle) OnMessage(*PeerInfo, string, []byte) {}

func (noopHandle) OnEvent(*Event) {}
