package app

import (
	"context"
	"sort"
	"sync"

	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
	"github.com/rs/zerolog/log"
)

type sessionEntry struct {
	RoomID domain.RoomID
	Signal core.SignalConnection
	Cancel context.CancelFunc
}

type participantEntry struct {
	Participant domain.Participant
	Conn        core.ConnID
}

// Registry is the presence plane: which connections are bound, which room
// each one broadcasts to, and the one live Participant per user id.
type Registry struct {
	mu           sync.RWMutex
	sessions     map[core.ConnID]*sessionEntry
	participants map[domain.UserID]*participantEntry
	byConn       map[core.ConnID]domain.UserID
}

func NewRegistry() *Registry {
	return &Registry{
		sessions:     make(map[core.ConnID]*sessionEntry),
		participants: make(map[domain.UserID]*participantEntry),
		byConn:       make(map[core.ConnID]domain.UserID),
	}
}

func (r *Registry) BindSignal(conn core.ConnID, sig core.SignalConnection, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[conn] = &sessionEntry{Signal: sig, Cancel: cancel}
	log.Info().Str("module", "app.registry").Str("conn", string(conn)).Msg("bound signal")
}

func (r *Registry) Unbind(conn core.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, conn)
	log.Info().Str("module", "app.registry").Str("conn", string(conn)).Msg("unbind session")
}

func (r *Registry) Signal(conn core.ConnID) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[conn]; ok {
		return e.Signal, true
	}
	return nil, false
}

// Announce records p as the live participant for its user id, overwriting
// any earlier entry, and joins conn to the room's broadcast group. A conn
// owns at most one participant: if it previously announced a different
// user, that participant is removed and returned.
func (r *Registry) Announce(conn core.ConnID, p domain.Participant) (displaced domain.Participant, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, found := r.participants[p.UserID]; found && prev.Conn != conn {
		if r.byConn[prev.Conn] == p.UserID {
			delete(r.byConn, prev.Conn)
		}
	}
	if old, found := r.byConn[conn]; found && old != p.UserID {
		if e, found := r.participants[old]; found && e.Conn == conn {
			delete(r.participants, old)
			displaced, ok = e.Participant, true
		}
	}
	r.participants[p.UserID] = &participantEntry{Participant: p, Conn: conn}
	r.byConn[conn] = p.UserID
	if e, ok := r.sessions[conn]; ok {
		e.RoomID = p.RoomID
	}
	log.Info().Str("module", "app.registry").Str("conn", string(conn)).Str("user", string(p.UserID)).Str("room", string(p.RoomID)).Msg("participant announced")
	return displaced, ok
}

// UpdatePosition moves a registered participant. Unknown users are ignored.
func (r *Registry) UpdatePosition(user domain.UserID, pos domain.Position) (domain.RoomID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.participants[user]
	if !ok {
		return "", false
	}
	e.Participant.Position = pos
	return e.Participant.RoomID, true
}

// Remove deletes the participant and detaches its connection from the room.
func (r *Registry) Remove(user domain.UserID) (domain.Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.participants[user]
	if !ok {
		return domain.Participant{}, false
	}
	r.removeLocked(user, e)
	log.Info().Str("module", "app.registry").Str("user", string(user)).Str("room", string(e.Participant.RoomID)).Msg("participant removed")
	return e.Participant, true
}

func (r *Registry) removeLocked(user domain.UserID, e *participantEntry) {
	delete(r.participants, user)
	if r.byConn[e.Conn] == user {
		delete(r.byConn, e.Conn)
		if s, ok := r.sessions[e.Conn]; ok && s.RoomID == e.Participant.RoomID {
			s.RoomID = ""
		}
	}
}

// UserOf resolves the participant currently owned by conn.
func (r *Registry) UserOf(conn core.ConnID) (domain.UserID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byConn[conn]
	return u, ok
}

func (r *Registry) Participant(user domain.UserID) (domain.Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.participants[user]
	if !ok {
		return domain.Participant{}, false
	}
	return e.Participant, true
}

func (r *Registry) RoomOf(conn core.ConnID) (domain.RoomID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[conn]
	if !ok || e.RoomID == "" {
		return "", false
	}
	return e.RoomID, true
}

// Snapshot lists every participant of room ordered by user id.
func (r *Registry) Snapshot(room domain.RoomID) []domain.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Participant, 0)
	for _, e := range r.participants {
		if e.Participant.RoomID == room {
			out = append(out, e.Participant)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// PurgeRoom drops every participant still registered for room and detaches
// their connections from it.
func (r *Registry) PurgeRoom(room domain.RoomID) []domain.UserID {
	r.mu.Lock()
	defer r.mu.Unlock()
	var purged []domain.UserID
	for user, e := range r.participants {
		if e.Participant.RoomID != room {
			continue
		}
		r.removeLocked(user, e)
		purged = append(purged, user)
	}
	for _, s := range r.sessions {
		if s.RoomID == room {
			s.RoomID = ""
		}
	}
	log.Info().Str("module", "app.registry").Str("room", string(room)).Int("purged", len(purged)).Msg("room purged")
	return purged
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.participants)
}

func (r *Registry) CountIn(room domain.RoomID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, e := range r.participants {
		if e.Participant.RoomID == room {
			n++
		}
	}
	return n
}

type RegSnap struct {
	Conn   core.ConnID
	Signal core.SignalConnection
}

// MembersOfRoom returns the room's broadcast group.
func (r *Registry) MembersOfRoom(room domain.RoomID) []RegSnap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RegSnap, 0, len(r.sessions))
	for conn, e := range r.sessions {
		if e.RoomID == room {
			out = append(out, RegSnap{Conn: conn, Signal: e.Signal})
		}
	}
	return out
}

func (r *Registry) Cancel(conn core.ConnID) bool {
	r.mu.RLock()
	e, ok := r.sessions[conn]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("conn", string(conn)).Msg("canceled session")
	return true
}
