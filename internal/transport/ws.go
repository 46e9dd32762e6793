package transport

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/pfperroni/treasure-hunt-framework/internal/errors"
)

// wsFrame is the wire representation of one routed packet.
type wsFrame struct {
	From   int    `json:"from"`
	To     int    `json:"to"`
	Tag    Tag    `json:"tag"`
	Packet Packet `json:"packet"`
}

// Hub relays frames between the websocket endpoints of a multi-process tree.
// One hub serves one optimization run.
type Hub struct {
	size     int
	session  string
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[int]*hubConn
}

type hubConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// NewHub creates a hub expecting size nodes.
func NewHub(size int) (*Hub, error) {
	if size <= 0 {
		return nil, errors.InvalidArgument("the hub size must be greater than zero")
	}
	return &Hub{
		size:    size,
		session: uuid.NewString(),
		conns:   make(map[int]*hubConn),
	}, nil
}

// Session returns the run identifier assigned to this hub.
func (h *Hub) Session() string { return h.session }

// Size returns the number of expected nodes.
func (h *Hub) Size() int { return h.size }

// ServeHTTP upgrades a node connection (`?id=N`) and relays its frames.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.URL.Query().Get("id"))
	if err != nil || id < 0 || id >= h.size {
		http.Error(w, "invalid node id", http.StatusBadRequest)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	hc := &hubConn{conn: conn}
	h.mu.Lock()
	h.conns[id] = hc
	h.mu.Unlock()

	for {
		var frame wsFrame
		if err := conn.ReadJSON(&frame); err != nil {
			break
		}
		frame.From = id
		h.route(frame)
	}

	h.mu.Lock()
	delete(h.conns, id)
	h.mu.Unlock()
	conn.Close()
}

func (h *Hub) route(frame wsFrame) {
	h.mu.Lock()
	dst := h.conns[frame.To]
	h.mu.Unlock()
	if dst == nil {
		// The destination has not connected yet or already left; the engine
		// treats missing data as "nothing completed".
		return
	}
	dst.writeMu.Lock()
	defer dst.writeMu.Unlock()
	_ = dst.conn.WriteJSON(frame)
}

// WSBus is the websocket endpoint of one node, connected to a Hub.
type WSBus struct {
	id   int
	size int

	conn    *websocket.Conn
	writeMu sync.Mutex

	mu       sync.Mutex
	channels map[linkKey]*wsChannel
	closed   atomic.Bool
}

// DialWS connects node id to the hub at url (e.g. ws://host:port/ws).
func DialWS(url string, id, size int) (*WSBus, error) {
	if id < 0 || id >= size {
		return nil, errors.InvalidArgument("invalid bus id [%d] for size %d", id, size)
	}
	conn, _, err := websocket.DefaultDialer.Dial(fmt.Sprintf("%s?id=%d", url, id), nil)
	if err != nil {
		return nil, errors.TransportFailure(err, "dialing hub")
	}
	b := &WSBus{
		id:       id,
		size:     size,
		conn:     conn,
		channels: make(map[linkKey]*wsChannel),
	}
	go b.readPump()
	return b, nil
}

func (b *WSBus) readPump() {
	for {
		var frame wsFrame
		if err := b.conn.ReadJSON(&frame); err != nil {
			b.closed.Store(true)
			b.mu.Lock()
			for _, ch := range b.channels {
				ch.closeOnce.Do(func() { close(ch.done) })
			}
			b.mu.Unlock()
			return
		}
		ch := b.channel(frame.From, frame.Tag)
		ch.push(frame.Packet)
	}
}

func (b *WSBus) channel(peer int, tag Tag) *wsChannel {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := linkKey{from: b.id, to: peer, tag: tag}
	ch, ok := b.channels[key]
	if !ok {
		ch = &wsChannel{
			bus:  b,
			peer: peer,
			tag:  tag,
			in:   make(chan Packet, 16),
			done: make(chan struct{}),
		}
		b.channels[key] = ch
	}
	return ch
}

// ID returns the node identifier on the bus.
func (b *WSBus) ID() int { return b.id }

// Size returns the number of nodes on the bus.
func (b *WSBus) Size() int { return b.size }

// Channel returns the typed channel to a peer.
func (b *WSBus) Channel(peer int, tag Tag) (PeerChannel, error) {
	if peer < 0 || peer >= b.size || peer == b.id {
		return nil, errors.InvalidArgument("invalid peer [%d] for bus %d", peer, b.id)
	}
	return b.channel(peer, tag), nil
}

// Finalize closes the websocket connection.
func (b *WSBus) Finalize() error {
	b.closed.Store(true)
	return b.conn.Close()
}

func (b *WSBus) write(frame wsFrame) error {
	if b.closed.Load() {
		return errors.TransportFailure(nil, "bus already finalized")
	}
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	if err := b.conn.WriteJSON(frame); err != nil {
		return errors.TransportFailure(err, "writing frame")
	}
	return nil
}

type wsChannel struct {
	bus  *WSBus
	peer int
	tag  Tag
	seq  atomic.Uint64

	in        chan Packet
	done      chan struct{}
	closeOnce sync.Once
}

// push coalesces inbound packets: when the buffer is full the oldest one is
// dropped in favour of the newcomer.
func (c *wsChannel) push(p Packet) {
	for {
		select {
		case c.in <- p:
			return
		default:
			select {
			case <-c.in:
			default:
			}
		}
	}
}

func (c *wsChannel) TrySend(p Packet) (bool, error) {
	// A websocket write completes as soon as the frame is flushed, so the
	// previous send is always complete here.
	return true, c.Send(p)
}

func (c *wsChannel) Send(p Packet) error {
	p.Seq = c.seq.Add(1)
	return c.bus.write(wsFrame{From: c.bus.id, To: c.peer, Tag: c.tag, Packet: p})
}

func (c *wsChannel) TryRecvLatest() (Packet, bool, error) {
	var latest Packet
	read := false
	for {
		select {
		case p := <-c.in:
			latest = p
			read = true
		default:
			return latest, read, nil
		}
	}
}

func (c *wsChannel) Recv() (Packet, error) {
	select {
	case p := <-c.in:
		return p, nil
	case <-c.done:
		return Packet{}, errors.TransportFailure(nil, "connection closed while receiving")
	}
}

// WaitDrain returns at once: a websocket send is complete when its frame is
// written, and this does not wait for the peer to read the packet.
func (c *wsChannel) WaitDrain() error { return nil }
