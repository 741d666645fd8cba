package session

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MixinNetwork/rworld/network"
	"github.com/MixinNetwork/rworld/util"
	"github.com/gofrs/uuid"
)

type PeerState int32

const (
	PeerConnecting PeerState = iota
	PeerConnected
	PeerDisconnecting
	PeerClosed
)

func (s PeerState) String() string {
	switch s {
	case PeerConnecting:
		return "connecting"
	case PeerConnected:
		return "connected"
	case PeerDisconnecting:
		return "disconnecting"
	case PeerClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

type Peer struct {
	Id      string
	Address string
	IsHost  bool

	client   network.Client
	ring     *util.RingBuffer
	state    atomic.Int32
	activeAt atomic.Int64
	hello    atomic.Pointer[Hello]
	closing  sync.Once

	sent     atomic.Uint64
	received atomic.Uint64
}

type PeerInfo struct {
	Id       string    `json:"id"`
	RemoteId string    `json:"remote_id"`
	Name     string    `json:"name"`
	Version  int       `json:"version"`
	Address  string    `json:"address"`
	Host     bool      `json:"host"`
	State    string    `json:"state"`
	ActiveAt time.Time `json:"active_at"`
	Sent     uint64    `json:"sent"`
	Received uint64    `json:"received"`
}

func newPeer(client network.Client, isHost bool, queueSize int) *Peer {
	p := &Peer{
		Id:      uuid.Must(uuid.NewV4()).String(),
		Address: client.RemoteAddr().String(),
		IsHost:  isHost,
		client:  client,
		ring:    util.NewRingBuffer(queueSize),
	}
	p.state.Store(int32(PeerConnecting))
	p.touch()
	return p
}

func (p *Peer) State() PeerState {
	return PeerState(p.state.Load())
}

func (p *Peer) ActiveAt() time.Time {
	return time.Unix(0, p.activeAt.Load())
}

func (p *Peer) touch() {
	p.activeAt.Store(time.Now().UnixNano())
}

// RemoteId is the id the remote session announced in its hello, or the
// local peer id until the hello arrives.
func (p *Peer) RemoteId() string {
	if h := p.hello.Load(); h != nil {
		return h.Id
	}
	return p.Id
}

func (p *Peer) Info() *PeerInfo {
	info := &PeerInfo{
		Id:       p.Id,
		RemoteId: p.RemoteId(),
		Address:  p.Address,
		Host:     p.IsHost,
		State:    p.State().String(),
		ActiveAt: p.ActiveAt(),
		Sent:     p.sent.Load(),
		Received: p.received.Load(),
	}
	if h := p.hello.Load(); h != nil {
		info.Name = h.Name
		info.Version = h.Version
	}
	return info
}

func (p *Peer) offer(msg []byte) error {
	success, err := p.ring.Offer(msg)
	if err != nil {
		return fmt.Errorf("%w: peer %s closed", ErrPeerNotFound, p.Id)
	}
	if !success {
		return fmt.Errorf("%w: peer %s queue full", ErrPeerBusy, p.Id)
	}
	return nil
}

func (p *Peer) disconnect() error {
	var err error
	p.closing.Do(func() {
		p.state.Store(int32(PeerDisconnecting))
		p.ring.Dispose()
		err = p.client.Close()
		p.state.Store(int32(PeerClosed))
	})
	return err
}

// peerMap is guarded by the owning Session mutex.
type peerMap struct {
	m map[string]*Peer
}

func (pm *peerMap) Get(key string) *Peer {
	return pm.m[key]
}

func (pm *peerMap) Put(key string, v *Peer) bool {
	if pm.m[key] != nil {
		return false
	}
	pm.m[key] = v
	return true
}

func (pm *peerMap) Delete(key string) {
	delete(pm.m, key)
}

func (pm *peerMap) Len() int {
	return len(pm.m)
}

func (pm *peerMap) Slice() []*Peer {
	peers := make([]*Peer, 0, len(pm.m))
	for _, p := range pm.m {
		peers = append(peers, p)
	}
	sort.Slice(peers, func(i, j int) bool {
		return peers[i].Id < peers[j].Id
	})
	return peers
}

func (pm *peerMap) Clear() {
	pm.m = make(map[string]*Peer)
}
