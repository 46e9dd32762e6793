// Package transport is the abstract tagged message bus connecting TH
// instances. For every (peer, tag, direction) the engine keeps one channel
// with one in-flight slot; the coalesce-to-newest behaviour lives inside the
// channel.
package transport

// Tag identifies the four typed sub-channels between two peers.
type Tag uint8

const (
	// TagStartup carries the startup barrier signals.
	TagStartup Tag = iota
	// TagChild2Parent carries best candidates and liveness statuses upward.
	TagChild2Parent
	// TagParent2Child carries best-list selections downward.
	TagParent2Child
	// TagFinalize carries the shutdown handshake signals.
	TagFinalize
)

func (t Tag) String() string {
	switch t {
	case TagStartup:
		return "startup"
	case TagChild2Parent:
		return "child2parent"
	case TagParent2Child:
		return "parent2child"
	case TagFinalize:
		return "finalize"
	}
	return "unknown"
}

// Packet is one message on a peer channel. Positions and Fitness are the
// flattened vectors of one candidate; Status is the sender's liveness (or a
// bare signal value on the startup/finalize tags). Seq is the per-channel
// send index stamped by the sending side.
type Packet struct {
	Positions []float64 `json:"positions,omitempty"`
	Fitness   []float64 `json:"fitness,omitempty"`
	Status    int       `json:"status"`
	Seq       uint64    `json:"seq"`
}

// PeerChannel is one bidirectional typed link to a peer.
type PeerChannel interface {
	// TrySend posts the packet without blocking. It returns false when the
	// previous send has not completed yet; the caller skips and retries with
	// fresher data later.
	TrySend(p Packet) (bool, error)

	// Send posts the packet without waiting for the peer to read it. On the
	// in-process bus a packet still unread by the peer is replaced by the new
	// one. Used by the startup barrier and the finalize handshake.
	Send(p Packet) error

	// TryRecvLatest drains every completed inbound message and returns only
	// the newest one. The second result is false when nothing had completed.
	TryRecvLatest() (Packet, bool, error)

	// Recv blocks until one inbound message arrives.
	Recv() (Packet, error)

	// WaitDrain blocks until every posted send has been consumed by the
	// peer.
	WaitDrain() error
}

// Bus connects one TH instance to its peers.
type Bus interface {
	// ID is this instance's identifier on the bus.
	ID() int

	// Size is the number of instances on the bus.
	Size() int

	// Channel returns the typed channel to a peer. Repeated calls return the
	// same channel.
	Channel(peer int, tag Tag) (PeerChannel, error)

	// Finalize releases the bus. Called last during teardown.
	Finalize() error
}
