package orch

import (
	"context"
	"time"

	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
	"github.com/rs/zerolog/log"
)

type userJoined struct {
	RoomID    domain.RoomID `json:"roomId"`
	UserID    domain.UserID `json:"userId"`
	AvatarRef string        `json:"avatarRef"`
}

type userRef struct {
	UserID domain.UserID `json:"userId"`
}

type roomRef struct {
	RoomID domain.RoomID `json:"roomId"`
}

// AnnouncePresence registers (or overwrites) the participant for user at the
// origin and fans the room snapshot out to everyone in it.
func (o *Orchestrator) AnnouncePresence(conn core.ConnID, room domain.RoomID, user domain.UserID, avatarRef string, role domain.Role) {
	p := domain.NewParticipant(room, user, avatarRef, role)
	prev, displaced := o.Registry.Announce(conn, *p)
	log.Info().Str("module", "orch").Str("conn", string(conn)).Str("room", string(room)).Str("user", string(user)).Str("role", string(role)).Msg("presence announced")
	if displaced {
		log.Info().Str("module", "orch").Str("conn", string(conn)).Str("user", string(prev.UserID)).Msg("connection re-announced as another user")
		o.departed(prev)
	}

	o.broadcastRoom(room, core.EventUserJoinedSession, userJoined{RoomID: room, UserID: user, AvatarRef: avatarRef})
	o.broadcastSnapshot(room, core.EventUpdateParticipants)
	o.observe()
}

// UpdatePosition moves a registered participant; unknown users are ignored.
func (o *Orchestrator) UpdatePosition(user domain.UserID, pos domain.Position) bool {
	room, ok := o.Registry.UpdatePosition(user, pos)
	if !ok {
		log.Debug().Str("module", "orch").Str("user", string(user)).Msg("position for unknown user ignored")
		return false
	}
	o.broadcastSnapshot(room, core.EventUpdatePositions)
	return true
}

func (o *Orchestrator) broadcastSnapshot(room domain.RoomID, typ string) {
	o.broadcastRoom(room, typ, o.Registry.Snapshot(room))
}

// Leave removes user from the presence plane of its room. The room id the
// client sent is only used for logging; the registry knows the real one.
func (o *Orchestrator) Leave(user domain.UserID, room domain.RoomID) {
	p, ok := o.Registry.Remove(user)
	if !ok {
		log.Debug().Str("module", "orch").Str("user", string(user)).Str("room", string(room)).Msg("leave for unknown user ignored")
		return
	}
	if room != "" && room != p.RoomID {
		log.Warn().Str("module", "orch").Str("user", string(user)).Str("claimed_room", string(room)).Str("room", string(p.RoomID)).Msg("leave room mismatch")
	}
	o.departed(p)
	o.observe()
}

// Disconnect tears down everything a lost connection owned: its voice peer
// first, then its presence entry.
func (o *Orchestrator) Disconnect(conn core.ConnID) {
	notified := o.TeardownPeer(conn)

	if user, ok := o.Registry.UserOf(conn); ok {
		if p, ok := o.Registry.Remove(user); ok {
			seen := make(map[core.ConnID]struct{}, len(notified))
			for _, c := range notified {
				seen[c] = struct{}{}
			}
			var rest []core.ConnID
			for _, m := range o.Registry.MembersOfRoom(p.RoomID) {
				if _, ok := seen[m.Conn]; !ok && m.Conn != conn {
					rest = append(rest, m.Conn)
				}
			}
			o.sendAll(rest, core.EventVoiceUserDisconnect, userRef{UserID: user})
			o.departed(p)
		}
	}

	o.Registry.Unbind(conn)
	o.observe()
	log.Info().Str("module", "orch").Str("conn", string(conn)).Msg("disconnected")
}

// departed runs after a participant is gone from the registry.
func (o *Orchestrator) departed(p domain.Participant) {
	if p.Role.IsTeacher() {
		o.teacherDeparted(p.RoomID)
		return
	}
	if o.Registry.CountIn(p.RoomID) == 0 {
		o.cancelGrace(p.RoomID)
	}
	o.broadcastSnapshot(p.RoomID, core.EventUpdateParticipants)
}

// teacherDeparted notifies the room once, clears durable attendance, and
// arms the grace purge for whoever is still registered.
func (o *Orchestrator) teacherDeparted(room domain.RoomID) {
	log.Info().Str("module", "orch").Str("room", string(room)).Dur("grace", o.GraceWindow).Msg("teacher left")
	o.Metrics.TeacherDeparted()
	o.broadcastRoom(room, core.EventTeacherLeft, nil)

	if o.Store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), o.StoreTimeout)
		if err := o.Store.ClearSessionParticipants(ctx, room); err != nil {
			log.Error().Err(err).Str("module", "orch").Str("room", string(room)).Msg("clear session participants")
		}
		cancel()
	}

	o.armGrace(room)
}

func (o *Orchestrator) armGrace(room domain.RoomID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if g, ok := o.grace[room]; ok {
		g.timer.Stop()
	}
	g := &graceTimer{}
	o.grace[room] = g
	g.timer = time.AfterFunc(o.GraceWindow, func() { o.gracePurge(room, g) })
}

func (o *Orchestrator) gracePurge(room domain.RoomID, g *graceTimer) {
	o.mu.Lock()
	if o.grace[room] != g {
		o.mu.Unlock()
		return
	}
	delete(o.grace, room)
	o.mu.Unlock()

	purged := o.Registry.PurgeRoom(room)
	o.Metrics.GracePurged()
	o.observe()
	log.Info().Str("module", "orch").Str("room", string(room)).Int("purged", len(purged)).Msg("grace window elapsed")
}

func (o *Orchestrator) cancelGrace(room domain.RoomID) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	g, ok := o.grace[room]
	if !ok {
		return false
	}
	g.timer.Stop()
	delete(o.grace, room)
	log.Info().Str("module", "orch").Str("room", string(room)).Msg("grace cancelled, room empty")
	return true
}

// Phase reports where room is in its presence lifecycle.
func (o *Orchestrator) Phase(room domain.RoomID) domain.RoomPhase {
	o.mu.Lock()
	_, grace := o.grace[room]
	o.mu.Unlock()
	switch {
	case grace:
		return domain.RoomGrace
	case o.Registry.CountIn(room) > 0:
		return domain.RoomActive
	default:
		return domain.RoomEmpty
	}
}

// DeactivateRoom mirrors an external deactivation into memory: voice peers
// are torn down before presence is purged.
func (o *Orchestrator) DeactivateRoom(room domain.RoomID) int {
	o.cancelGrace(room)

	for _, conn := range o.Voice.Conns(room) {
		o.TeardownPeer(conn)
	}

	o.broadcastRoom(room, core.EventRoomDeactivated, roomRef{RoomID: room})
	purged := o.Registry.PurgeRoom(room)
	o.observe()
	log.Info().Str("module", "orch").Str("room", string(room)).Int("purged", len(purged)).Msg("room deactivated")
	return len(purged)
}
