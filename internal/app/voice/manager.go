package voice

import (
	"sort"
	"sync"

	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
	"github.com/rs/zerolog/log"
)

// Manager owns every voice room. All mutations happen under one lock and
// never call out to the media engine; callers suspend on the engine between
// Manager calls and must treat a NotFound on the way back as staleness.
type Manager struct {
	mu            sync.Mutex
	rooms         map[domain.RoomID]*room
	peerRoom      map[core.ConnID]domain.RoomID
	transportRoom map[domain.TransportID]domain.RoomID
}

func NewManager() *Manager {
	return &Manager{
		rooms:         make(map[domain.RoomID]*room),
		peerRoom:      make(map[core.ConnID]domain.RoomID),
		transportRoom: make(map[domain.TransportID]domain.RoomID),
	}
}

// Join creates the room if needed and adds conn as a peer. A connection that
// was already a peer somewhere is torn down first and that departure is
// returned so the caller can release it.
func (m *Manager) Join(roomID domain.RoomID, conn core.ConnID, user domain.UserID) (created bool, prior *Departure) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.peerRoom[conn]; ok {
		prior = m.leaveLocked(conn)
	}

	r, ok := m.rooms[roomID]
	if !ok {
		r = newRoom(roomID)
		m.rooms[roomID] = r
		created = true
		log.Info().Str("module", "voice").Str("room", string(roomID)).Msg("voice room created")
	}
	r.peers[conn] = newPeer(conn, user)
	m.peerRoom[conn] = roomID
	log.Info().Str("module", "voice").Str("room", string(roomID)).Str("conn", string(conn)).Str("user", string(user)).Msg("peer joined")
	return created, prior
}

func (m *Manager) peerLocked(conn core.ConnID) (*room, *peer, error) {
	roomID, ok := m.peerRoom[conn]
	if !ok {
		return nil, nil, domain.ErrNotInRoom
	}
	r, ok := m.rooms[roomID]
	if !ok {
		return nil, nil, domain.ErrNotInRoom
	}
	p, ok := r.peers[conn]
	if !ok {
		return nil, nil, domain.ErrNotInRoom
	}
	return r, p, nil
}

func (m *Manager) Peer(conn core.ConnID) (PeerInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, p, err := m.peerLocked(conn)
	if err != nil {
		return PeerInfo{}, err
	}
	return PeerInfo{Conn: conn, User: p.user, Room: r.id}, nil
}

// AddTransport records a transport the engine created for conn.
func (m *Manager) AddTransport(conn core.ConnID, id domain.TransportID, dir domain.Direction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, p, err := m.peerLocked(conn)
	if err != nil {
		return err
	}
	r.transports[id] = &transport{
		id:        id,
		dir:       dir,
		conn:      conn,
		producers: make(set[domain.ProducerID]),
		consumers: make(set[domain.ConsumerID]),
	}
	p.transports.add(id)
	m.transportRoom[id] = r.id
	return nil
}

func (m *Manager) transportLocked(conn core.ConnID, id domain.TransportID, want domain.Direction) (*room, *peer, *transport, error) {
	r, p, err := m.peerLocked(conn)
	if err != nil {
		return nil, nil, nil, err
	}
	if _, ok := p.transports[id]; !ok {
		return nil, nil, nil, domain.ErrTransportNotFound
	}
	t, ok := r.transports[id]
	if !ok || t.state == TransportClosed {
		return nil, nil, nil, domain.ErrTransportNotFound
	}
	if want != "" && t.dir != want {
		return nil, nil, nil, domain.ErrWrongDirection
	}
	return r, p, t, nil
}

// Transport resolves a transport owned by conn. An empty want skips the
// direction check.
func (m *Manager) Transport(conn core.ConnID, id domain.TransportID, want domain.Direction) (TransportInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, _, t, err := m.transportLocked(conn, id, want)
	if err != nil {
		return TransportInfo{}, err
	}
	return TransportInfo{ID: t.id, Direction: t.dir, State: t.state, Room: r.id}, nil
}

func (m *Manager) MarkConnected(conn core.ConnID, id domain.TransportID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, _, t, err := m.transportLocked(conn, id, "")
	if err != nil {
		return err
	}
	t.state = TransportConnected
	return nil
}

// AddProducer records a producer created on a producer-direction transport
// and returns the other connections of the room to notify.
func (m *Manager) AddProducer(conn core.ConnID, transportID domain.TransportID, id domain.ProducerID, kind domain.MediaKind) ([]core.ConnID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, p, t, err := m.transportLocked(conn, transportID, domain.DirectionProducer)
	if err != nil {
		return nil, err
	}
	r.producers[id] = &producer{
		id:        id,
		kind:      kind,
		owner:     p.user,
		conn:      conn,
		transport: t.id,
		consumers: make(set[domain.ConsumerID]),
	}
	p.producers.add(id)
	t.producers.add(id)
	log.Info().Str("module", "voice").Str("room", string(r.id)).Str("user", string(p.user)).Str("producer", string(id)).Msg("producer added")
	return othersLocked(r, conn), nil
}

// Producer resolves a live producer in conn's room.
func (m *Manager) Producer(conn core.ConnID, id domain.ProducerID) (ProducerInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, _, err := m.peerLocked(conn)
	if err != nil {
		return ProducerInfo{}, err
	}
	pr, ok := r.producers[id]
	if !ok || pr.state == ProducerClosed {
		return ProducerInfo{}, domain.ErrProducerNotFound
	}
	return ProducerInfo{ProducerID: pr.id, UserID: pr.owner, Kind: pr.kind, Paused: pr.state == ProducerPaused}, nil
}

// SetProducerPaused flips a producer owned by conn between Active and Paused.
func (m *Manager) SetProducerPaused(conn core.ConnID, id domain.ProducerID, paused bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, p, err := m.peerLocked(conn)
	if err != nil {
		return err
	}
	if _, ok := p.producers[id]; !ok {
		return domain.ErrProducerNotFound
	}
	pr, ok := r.producers[id]
	if !ok || pr.state == ProducerClosed {
		return domain.ErrProducerNotFound
	}
	if paused {
		pr.state = ProducerPaused
	} else {
		pr.state = ProducerActive
	}
	return nil
}

// AddConsumer records a paused consumer. Both the consumer transport and the
// source producer are re-validated, so a consumer is never indexed against a
// producer that closed while the engine call was outstanding.
func (m *Manager) AddConsumer(conn core.ConnID, transportID domain.TransportID, params domain.ConsumerParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, p, t, err := m.transportLocked(conn, transportID, domain.DirectionConsumer)
	if err != nil {
		return err
	}
	pr, ok := r.producers[params.ProducerID]
	if !ok || pr.state == ProducerClosed {
		return domain.ErrProducerNotFound
	}
	r.consumers[params.ID] = &consumer{
		id:        params.ID,
		producer:  pr.id,
		kind:      params.Kind,
		state:     ConsumerPaused,
		conn:      conn,
		transport: t.id,
	}
	p.consumers.add(params.ID)
	t.consumers.add(params.ID)
	pr.consumers.add(params.ID)
	return nil
}

// Consumer checks that id is a live consumer owned by conn.
func (m *Manager) Consumer(conn core.ConnID, id domain.ConsumerID) (ConsumerState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.consumerLocked(conn, id)
	if err != nil {
		return ConsumerClosed, err
	}
	return c.state, nil
}

func (m *Manager) consumerLocked(conn core.ConnID, id domain.ConsumerID) (*consumer, error) {
	r, p, err := m.peerLocked(conn)
	if err != nil {
		return nil, err
	}
	if _, ok := p.consumers[id]; !ok {
		return nil, domain.ErrConsumerNotFound
	}
	c, ok := r.consumers[id]
	if !ok || c.state == ConsumerClosed {
		return nil, domain.ErrConsumerNotFound
	}
	return c, nil
}

func (m *Manager) MarkConsumerActive(conn core.ConnID, id domain.ConsumerID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.consumerLocked(conn, id)
	if err != nil {
		return err
	}
	c.state = ConsumerActive
	return nil
}

// Producers lists every live producer in conn's room, ordered by id.
func (m *Manager) Producers(conn core.ConnID) ([]ProducerInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, _, err := m.peerLocked(conn)
	if err != nil {
		return nil, err
	}
	out := make([]ProducerInfo, 0, len(r.producers))
	for _, pr := range r.producers {
		out = append(out, ProducerInfo{ProducerID: pr.id, UserID: pr.owner, Kind: pr.kind, Paused: pr.state == ProducerPaused})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProducerID < out[j].ProducerID })
	return out, nil
}

// Others returns every connection in conn's voice room except conn.
func (m *Manager) Others(conn core.ConnID) ([]core.ConnID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, _, err := m.peerLocked(conn)
	if err != nil {
		return nil, err
	}
	return othersLocked(r, conn), nil
}

// Conns returns every peer connection of a room.
func (m *Manager) Conns(roomID domain.RoomID) []core.ConnID {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[roomID]
	if !ok {
		return nil
	}
	return othersLocked(r, "")
}

func othersLocked(r *room, except core.ConnID) []core.ConnID {
	out := make([]core.ConnID, 0, len(r.peers))
	for c := range r.peers {
		if c != except {
			out = append(out, c)
		}
	}
	return out
}

// CloseTransport closes a transport by id with its full cascade. It is used
// when the engine reports a transport gone on its own.
func (m *Manager) CloseTransport(id domain.TransportID) Released {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out Released
	roomID, ok := m.transportRoom[id]
	if !ok {
		return out
	}
	r, ok := m.rooms[roomID]
	if !ok {
		delete(m.transportRoom, id)
		return out
	}
	if t, ok := r.transports[id]; ok {
		m.closeTransportLocked(r, t, &out)
	}
	return out
}

// Leave removes conn's peer, closing everything it owns, and deletes the
// room when it was the last peer.
func (m *Manager) Leave(conn core.ConnID) (*Departure, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.peerRoom[conn]; !ok {
		return nil, false
	}
	return m.leaveLocked(conn), true
}

func (m *Manager) leaveLocked(conn core.ConnID) *Departure {
	roomID := m.peerRoom[conn]
	delete(m.peerRoom, conn)
	d := &Departure{Room: roomID}
	r, ok := m.rooms[roomID]
	if !ok {
		return d
	}
	p, ok := r.peers[conn]
	if !ok {
		return d
	}
	d.User = p.user

	for id := range p.transports {
		if t, ok := r.transports[id]; ok {
			m.closeTransportLocked(r, t, &d.Released)
		}
	}
	// Anything left was not reachable through a transport.
	for id := range p.producers {
		if pr, ok := r.producers[id]; ok {
			closeProducerLocked(r, pr, &d.Released)
		}
	}
	for id := range p.consumers {
		if c, ok := r.consumers[id]; ok {
			closeConsumerLocked(r, c, false, &d.Released)
		}
	}

	delete(r.peers, conn)
	d.Others = othersLocked(r, conn)
	if len(r.peers) == 0 {
		delete(m.rooms, roomID)
		d.RoomDeleted = true
		log.Info().Str("module", "voice").Str("room", string(roomID)).Msg("voice room empty, deleted")
	}
	log.Info().Str("module", "voice").Str("room", string(roomID)).Str("conn", string(conn)).Str("user", string(p.user)).Msg("peer left")
	return d
}

func (m *Manager) closeTransportLocked(r *room, t *transport, out *Released) {
	if t.state == TransportClosed {
		return
	}
	t.state = TransportClosed
	for id := range t.producers {
		if pr, ok := r.producers[id]; ok {
			closeProducerLocked(r, pr, out)
		}
	}
	for id := range t.consumers {
		if c, ok := r.consumers[id]; ok {
			closeConsumerLocked(r, c, false, out)
		}
	}
	delete(r.transports, t.id)
	delete(m.transportRoom, t.id)
	if p, ok := r.peers[t.conn]; ok {
		delete(p.transports, t.id)
	}
	out.Transports = append(out.Transports, t.id)
}

func closeProducerLocked(r *room, pr *producer, out *Released) {
	if pr.state == ProducerClosed {
		return
	}
	pr.state = ProducerClosed
	for id := range pr.consumers {
		if c, ok := r.consumers[id]; ok {
			closeConsumerLocked(r, c, true, out)
		}
	}
	delete(r.producers, pr.id)
	if p, ok := r.peers[pr.conn]; ok {
		delete(p.producers, pr.id)
	}
	if t, ok := r.transports[pr.transport]; ok {
		delete(t.producers, pr.id)
	}
	out.Producers = append(out.Producers, pr.id)
}

func closeConsumerLocked(r *room, c *consumer, byProducer bool, out *Released) {
	if c.state == ConsumerClosed {
		return
	}
	c.state = ConsumerClosed
	delete(r.consumers, c.id)
	if p, ok := r.peers[c.conn]; ok {
		delete(p.consumers, c.id)
	}
	if t, ok := r.transports[c.transport]; ok {
		delete(t.consumers, c.id)
	}
	if pr, ok := r.producers[c.producer]; ok {
		delete(pr.consumers, c.id)
	}
	out.Consumers = append(out.Consumers, ClosedConsumer{
		ID:       c.id,
		Producer: c.producer,
		Conn:     c.conn,
		Notify:   byProducer,
	})
}

func (m *Manager) HasRoom(id domain.RoomID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rooms[id]
	return ok
}

func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Stats{Rooms: len(m.rooms)}
	for _, r := range m.rooms {
		s.Peers += len(r.peers)
		s.Transports += len(r.transports)
		s.Producers += len(r.producers)
		s.Consumers += len(r.consumers)
	}
	return s
}

// Dangling returns consumers whose source producer is no longer indexed in
// their room. It is empty whenever the cascades are intact.
func (m *Manager) Dangling() []domain.ConsumerID {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ConsumerID
	for _, r := range m.rooms {
		for id, c := range r.consumers {
			if _, ok := r.producers[c.producer]; !ok {
				out = append(out, id)
			}
		}
	}
	return out
}
