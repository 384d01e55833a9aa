package p2p

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/wire"

	"github.com/yuvprotocol/yuvd/txcheck"
)

// pver is the protocol version stamped on every framed message. The YUV
// message set has a single revision so far.
const pver = 1

// outgoingMsgQueueLen bounds how many messages may queue for a single peer
// before senders block.
const outgoingMsgQueueLen = 50

// reconnectDelay is how long the manager waits before redialing a
// configured peer whose connection dropped.
const reconnectDelay = 5 * time.Second

// MessageHandler receives every YUV message read from a negotiated peer,
// along with the peer's address.
type MessageHandler func(msg wire.Message, sender string)

// peer is one connection. A peer only carries Inv/GetData/YuvTx traffic
// after negotiated is set by the ytxidrelay/ytxidack exchange.
type peer struct {
	conn net.Conn
	addr string

	negotiated int32
	sentRelay  int32

	outgoingQueue chan wire.Message

	quit chan struct{}
	once sync.Once
}

func (p *peer) isNegotiated() bool {
	return atomic.LoadInt32(&p.negotiated) == 1
}

func (p *peer) disconnect() {
	p.once.Do(func() {
		close(p.quit)
		p.conn.Close()
	})
}

// PeerManager owns the node's YUV peer connections: it listens for inbound
// peers, dials configured outbound ones, runs the capability handshake, and
// routes traffic between connections and the controller. It is the node's
// concrete ClientHandle.
type PeerManager struct {
	started int32
	stopped int32

	listenAddr   string
	connectAddrs []string

	handler MessageHandler

	mu     sync.RWMutex
	peers  map[string]*peer
	banned map[string]struct{}

	listener net.Listener

	quit chan struct{}
	wg   sync.WaitGroup
}

var _ ClientHandle = (*PeerManager)(nil)

// NewPeerManager builds a manager that will listen on listenAddr (empty
// disables inbound) and maintain outbound connections to connectAddrs.
func NewPeerManager(listenAddr string, connectAddrs []string) *PeerManager {
	return &PeerManager{
		listenAddr:   listenAddr,
		connectAddrs: connectAddrs,
		peers:        make(map[string]*peer),
		banned:       make(map[string]struct{}),
		quit:         make(chan struct{}),
	}
}

// SetMessageHandler wires inbound traffic to handler. Must be called before
// Start.
func (pm *PeerManager) SetMessageHandler(handler MessageHandler) {
	pm.handler = handler
}

// Start begins listening and dialing.
func (pm *PeerManager) Start() error {
	if !atomic.CompareAndSwapInt32(&pm.started, 0, 1) {
		return nil
	}

	if pm.listenAddr != "" {
		listener, err := net.Listen("tcp", pm.listenAddr)
		if err != nil {
			return err
		}
		pm.listener = listener

		pm.wg.Add(1)
		go pm.acceptLoop()
	}

	for _, addr := range pm.connectAddrs {
		pm.wg.Add(1)
		go pm.connectLoop(addr)
	}

	return nil
}

// Stop disconnects every peer and waits for all handler goroutines.
func (pm *PeerManager) Stop() error {
	if !atomic.CompareAndSwapInt32(&pm.stopped, 0, 1) {
		return nil
	}

	close(pm.quit)
	if pm.listener != nil {
		pm.listener.Close()
	}

	pm.mu.Lock()
	for _, p := range pm.peers {
		p.disconnect()
	}
	pm.mu.Unlock()

	pm.wg.Wait()
	return nil
}

func (pm *PeerManager) acceptLoop() {
	defer pm.wg.Done()

	for {
		conn, err := pm.listener.Accept()
		if err != nil {
			select {
			case <-pm.quit:
				return
			default:
				log.Errorf("accept failed: %v", err)
				continue
			}
		}

		pm.addPeer(conn, false)
	}
}

// connectLoop keeps one configured outbound address connected, redialing
// with a delay whenever the connection drops.
func (pm *PeerManager) connectLoop(addr string) {
	defer pm.wg.Done()

	for {
		if pm.isBanned(addr) {
			return
		}

		conn, err := net.Dial("tcp", addr)
		if err != nil {
			log.Debugf("dial %s failed: %v", addr, err)
		} else {
			p := pm.addPeer(conn, true)
			if p != nil {
				<-p.quit
			}
		}

		select {
		case <-time.After(reconnectDelay):
		case <-pm.quit:
			return
		}
	}
}

// addPeer registers conn and launches its read/write handlers. The
// initiator side opens the handshake by queueing ytxidrelay.
func (pm *PeerManager) addPeer(conn net.Conn, initiator bool) *peer {
	addr := conn.RemoteAddr().String()

	if pm.isBanned(addr) {
		conn.Close()
		return nil
	}

	p := &peer{
		conn:          conn,
		addr:          addr,
		outgoingQueue: make(chan wire.Message, outgoingMsgQueueLen),
		quit:          make(chan struct{}),
	}

	pm.mu.Lock()
	if old, ok := pm.peers[addr]; ok {
		old.disconnect()
	}
	pm.peers[addr] = p
	pm.mu.Unlock()

	pm.wg.Add(2)
	go pm.readHandler(p)
	go pm.writeHandler(p)

	if initiator {
		atomic.StoreInt32(&p.sentRelay, 1)
		p.queueMsg(&YtxidRelay{})
	}

	log.Infof("New peer %s (inbound=%v)", addr, !initiator)
	return p
}

func (pm *PeerManager) removePeer(p *peer) {
	p.disconnect()

	pm.mu.Lock()
	if pm.peers[p.addr] == p {
		delete(pm.peers, p.addr)
	}
	pm.mu.Unlock()
}

// queueMsg enqueues msg for delivery, dropping it if the peer is gone.
func (p *peer) queueMsg(msg wire.Message) {
	select {
	case p.outgoingQueue <- msg:
	case <-p.quit:
	}
}

// readHandler decodes messages off the wire. The handshake messages are
// handled here; everything else is passed to the manager's handler once the
// peer has negotiated.
func (pm *PeerManager) readHandler(p *peer) {
	defer pm.wg.Done()
	defer pm.removePeer(p)

	for {
		msg, err := ReadMessage(p.conn, pver)
		if err != nil {
			select {
			case <-p.quit:
			default:
				log.Debugf("read from %s failed: %v", p.addr, err)
			}
			return
		}

		switch msg.(type) {
		case *YtxidRelay:
			// Answer the capability advertisement, advertising our
			// own support if we haven't yet.
			if atomic.CompareAndSwapInt32(&p.sentRelay, 0, 1) {
				p.queueMsg(&YtxidRelay{})
			}
			p.queueMsg(&YtxidAck{})

		case *YtxidAck:
			atomic.StoreInt32(&p.negotiated, 1)
			log.Debugf("Peer %s negotiated yuv relay", p.addr)

		default:
			if !p.isNegotiated() {
				log.Debugf("Dropping %s from %s before handshake",
					msg.Command(), p.addr)
				continue
			}
			if pm.handler != nil {
				pm.handler(msg, p.addr)
			}
		}
	}
}

// writeHandler drains the peer's outgoing queue onto the wire.
func (pm *PeerManager) writeHandler(p *peer) {
	defer pm.wg.Done()

	for {
		select {
		case msg := <-p.outgoingQueue:
			if _, err := WriteMessage(p.conn, msg, pver); err != nil {
				log.Debugf("write to %s failed: %v", p.addr, err)
				p.disconnect()
				return
			}

		case <-p.quit:
			return
		}
	}
}

func (pm *PeerManager) isBanned(addr string) bool {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	_, ok := pm.banned[addr]
	return ok
}

// negotiatedPeers snapshots every peer that completed the handshake.
func (pm *PeerManager) negotiatedPeers() []*peer {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	var out []*peer
	for _, p := range pm.peers {
		if p.isNegotiated() {
			out = append(out, p)
		}
	}
	return out
}

func (pm *PeerManager) peerByAddr(addr string) (*peer, bool) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	p, ok := pm.peers[addr]
	return p, ok
}

// SendInv announces inv to every negotiated peer.
func (pm *PeerManager) SendInv(_ context.Context, inv []Inventory) error {
	msg := &Inv{Items: inv}
	for _, p := range pm.negotiatedPeers() {
		p.queueMsg(msg)
	}
	return nil
}

// SendGetData requests inv from a single peer.
func (pm *PeerManager) SendGetData(_ context.Context, inv []Inventory, addr string) error {
	p, ok := pm.peerByAddr(addr)
	if !ok {
		return ErrPeerNotFound
	}
	p.queueMsg(&GetData{Items: inv})
	return nil
}

// SendYuvTxs sends txs to a single peer.
func (pm *PeerManager) SendYuvTxs(_ context.Context, txs []*txcheck.YuvTransaction, addr string) error {
	p, ok := pm.peerByAddr(addr)
	if !ok {
		return ErrPeerNotFound
	}
	p.queueMsg(&YuvTxMsg{Txs: txs})
	return nil
}

// BanPeer disconnects addr and refuses future connections from it.
func (pm *PeerManager) BanPeer(_ context.Context, addr string) error {
	pm.mu.Lock()
	pm.banned[addr] = struct{}{}
	p, ok := pm.peers[addr]
	pm.mu.Unlock()

	if ok {
		log.Warnf("Banning peer %s", addr)
		p.disconnect()
	}
	return nil
}
