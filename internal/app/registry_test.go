package app

import (
	"testing"

	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopConn struct{}

func (nopConn) TrySend(core.Frame) error { return nil }
func (nopConn) Close() {}

func announce(r *Registry, conn core.ConnID, room domain.RoomID, user domain.UserID, role domain.Role) {
	r.Announce(conn, *domain.NewParticipant(room, user, "", role))
}

func TestRegistryAnnounceAndRemove(t *testing.T) {
	r := NewRegistry()
	r.BindSignal("c1", nopConn{}, nil)
	r.BindSignal("c2", nopConn{}, nil)

	announce(r, "c1", "R1", "u1", domain.RoleTeacher)
	announce(r, "c2", "R1", "u2", domain.RoleStudent)

	assert.Equal(t, 2, r.Count())
	assert.Equal(t, 2, r.CountIn("R1"))
	assert.Len(t, r.MembersOfRoom("R1"), 2)
	room, ok := r.RoomOf("c1")
	require.True(t, ok)
	assert.Equal(t, domain.RoomID("R1"), room)

	snap := r.Snapshot("R1")
	require.Len(t, snap, 2)
	assert.Equal(t, domain.UserID("u1"), snap[0].UserID)
	assert.Equal(t, domain.UserID("u2"), snap[1].UserID)

	p, ok := r.Remove("u1")
	require.True(t, ok)
	assert.Equal(t, domain.RoleTeacher, p.Role)
	_, ok = r.UserOf("c1")
	assert.False(t, ok)
	_, ok = r.RoomOf("c1")
	assert.False(t, ok)
	assert.Len(t, r.MembersOfRoom("R1"), 1)

	_, ok = r.Remove("u1")
	assert.False(t, ok)
}

func TestRegistryReannounceMovesRoom(t *testing.T) {
	r := NewRegistry()
	r.BindSignal("c1", nopConn{}, nil)
	announce(r, "c1", "R1", "u1", domain.RoleStudent)
	announce(r, "c1", "R2", "u1", domain.RoleStudent)

	assert.Equal(t, 1, r.Count())
	assert.Equal(t, 0, r.CountIn("R1"))
	assert.Empty(t, r.MembersOfRoom("R1"))
	assert.Len(t, r.MembersOfRoom("R2"), 1)
}

func TestRegistryUpdatePosition(t *testing.T) {
	r := NewRegistry()
	_, ok := r.UpdatePosition("ghost", domain.Position{X: 1})
	assert.False(t, ok)
	assert.Equal(t, 0, r.Count())

	announce(r, "c1", "R1", "u1", domain.RoleStudent)
	room, ok := r.UpdatePosition("u1", domain.Position{X: 1, Y: 2})
	require.True(t, ok)
	assert.Equal(t, domain.RoomID("R1"), room)
	p, _ := r.Participant("u1")
	assert.Equal(t, domain.Position{X: 1, Y: 2}, p.Position)
}

func TestRegistryPurgeRoom(t *testing.T) {
	r := NewRegistry()
	for _, c := range []core.ConnID{"c1", "c2", "c3"} {
		r.BindSignal(c, nopConn{}, nil)
	}
	announce(r, "c1", "R1", "u1", domain.RoleStudent)
	announce(r, "c2", "R1", "u2", domain.RoleStudent)
	announce(r, "c3", "R2", "u3", domain.RoleStudent)

	purged := r.PurgeRoom("R1")

	assert.ElementsMatch(t, []domain.UserID{"u1", "u2"}, purged)
	assert.Equal(t, 1, r.Count())
	assert.Empty(t, r.MembersOfRoom("R1"))
	assert.Len(t, r.MembersOfRoom("R2"), 1)
}

func TestRegistryCancel(t *testing.T) {
	r := NewRegistry()
	called := 0
	r.BindSignal("c1", nopConn{}, func() { called++ })

	assert.True(t, r.Cancel("c1"))
	assert.Equal(t, 1, called)
	r.Unbind("c1")
	assert.False(t, r.Cancel("c1"))
	_, ok := r.Signal("c1")
	assert.False(t, ok)
}

func TestSimplePolicyKicks(t *testing.T) {
	assert.Equal(t, KickMember, SimplePolicy{}.OnBackPressure("c1"))
}

func TestRegistryAnnounceAsOtherUserDisplacesPrevious(t *testing.T) {
	r := NewRegistry()
	r.BindSignal("c1", nopConn{}, nil)

	_, displaced := r.Announce("c1", *domain.NewParticipant("R1", "u1", "", domain.RoleTeacher))
	assert.False(t, displaced)

	prev, displaced := r.Announce("c1", *domain.NewParticipant("R2", "u2", "", domain.RoleStudent))
	require.True(t, displaced)
	assert.Equal(t, domain.UserID("u1"), prev.UserID)
	assert.Equal(t, domain.RoomID("R1"), prev.RoomID)

	assert.Equal(t, 1, r.Count())
	assert.Empty(t, r.Snapshot("R1"))
	user, ok := r.UserOf("c1")
	require.True(t, ok)
	assert.Equal(t, domain.UserID("u2"), user)

	_, displaced = r.Announce("c1", *domain.NewParticipant("R2", "u2", "x.png", domain.RoleStudent))
	assert.False(t, displaced)
	assert.Equal(t, 1, r.Count())
}
