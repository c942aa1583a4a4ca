// Package voice holds the per-room signaling state of the audio conference:
// peers and the transports, producers and consumers they own.
//
// Ownership is a tree. A transport owns the producers and consumers created
// on it, and a producer additionally tracks every consumer reading from it.
// Closing any node closes its subtree, so a consumer never outlives either
// its transport or its source producer. Every entity is also indexed at the
// room level for cross-peer lookups.
package voice

import (
	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
)

type TransportState int

const (
	TransportCreated TransportState = iota
	TransportConnected
	TransportClosed
)

func (s TransportState) String() string {
	switch s {
	case TransportCreated:
		return "created"
	case TransportConnected:
		return "connected"
	default:
		return "closed"
	}
}

type ProducerState int

const (
	ProducerActive ProducerState = iota
	ProducerPaused
	ProducerClosed
)

type ConsumerState int

const (
	ConsumerPaused ConsumerState = iota
	ConsumerActive
	ConsumerClosed
)

type set[K comparable] map[K]struct{}

func (s set[K]) add(k K) { s[k] = struct{}{} }

type transport struct {
	id        domain.TransportID
	dir       domain.Direction
	state     TransportState
	conn      core.ConnID
	producers set[domain.ProducerID]
	consumers set[domain.ConsumerID]
}

type producer struct {
	id        domain.ProducerID
	kind      domain.MediaKind
	owner     domain.UserID
	state     ProducerState
	conn      core.ConnID
	transport domain.TransportID
	consumers set[domain.ConsumerID]
}

type consumer struct {
	id        domain.ConsumerID
	producer  domain.ProducerID
	kind      domain.MediaKind
	state     ConsumerState
	conn      core.ConnID
	transport domain.TransportID
}

type peer struct {
	conn       core.ConnID
	user       domain.UserID
	transports set[domain.TransportID]
	producers  set[domain.ProducerID]
	consumers  set[domain.ConsumerID]
}

func newPeer(conn core.ConnID, user domain.UserID) *peer {
	return &peer{
		conn:       conn,
		user:       user,
		transports: make(set[domain.TransportID]),
		producers:  make(set[domain.ProducerID]),
		consumers:  make(set[domain.ConsumerID]),
	}
}

type room struct {
	id         domain.RoomID
	peers      map[core.ConnID]*peer
	transports map[domain.TransportID]*transport
	producers  map[domain.ProducerID]*producer
	consumers  map[domain.ConsumerID]*consumer
}

func newRoom(id domain.RoomID) *room {
	return &room{
		id:         id,
		peers:      make(map[core.ConnID]*peer),
		transports: make(map[domain.TransportID]*transport),
		producers:  make(map[domain.ProducerID]*producer),
		consumers:  make(map[domain.ConsumerID]*consumer),
	}
}

// TransportInfo is a read-only copy of a transport.
type TransportInfo struct {
	ID        domain.TransportID
	Direction domain.Direction
	State     TransportState
	Room      domain.RoomID
}

// ProducerInfo is the listing entry for a live producer.
type ProducerInfo struct {
	ProducerID domain.ProducerID `json:"producerId"`
	UserID     domain.UserID     `json:"userId"`
	Kind       domain.MediaKind  `json:"-"`
	Paused     bool              `json:"-"`
}

// PeerInfo identifies the caller of a voice operation.
type PeerInfo struct {
	Conn core.ConnID
	User domain.UserID
	Room domain.RoomID
}

// ClosedConsumer records a consumer released by a cascade. Notify is set
// when the source producer closed, which is the only case the owning
// connection is told about.
type ClosedConsumer struct {
	ID       domain.ConsumerID
	Producer domain.ProducerID
	Conn     core.ConnID
	Notify   bool
}

// Released lists what a cascade closed, in the order the media engine
// should release it: consumers, then producers, then transports.
type Released struct {
	Consumers  []ClosedConsumer
	Producers  []domain.ProducerID
	Transports []domain.TransportID
}

func (r *Released) Empty() bool {
	return r == nil || len(r.Consumers)+len(r.Producers)+len(r.Transports) == 0
}

// Departure describes a peer that left its voice room.
type Departure struct {
	Room        domain.RoomID
	User        domain.UserID
	Others      []core.ConnID
	RoomDeleted bool
	Released    Released
}

// Stats counts live entities across all rooms.
type Stats struct {
	Rooms      int
	Peers      int
	Transports int
	Producers  int
	Consumers  int
}
