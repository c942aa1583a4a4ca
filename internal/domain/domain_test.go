package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want Role
	}{
		{"Teacher", RoleTeacher},
		{" teacher ", RoleTeacher},
		{"TEACHER", RoleTeacher},
		{"Student", RoleStudent},
		{"", RoleStudent},
		{"admin", RoleStudent},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseRole(tt.in))
		})
	}
	assert.True(t, RoleTeacher.IsTeacher())
	assert.False(t, RoleStudent.IsTeacher())
}

func TestValidateIDs(t *testing.T) {
	assert.NoError(t, ValidateUserID("u1"))
	assert.ErrorIs(t, ValidateUserID(""), ErrUserIDEmpty)
	assert.ErrorIs(t, ValidateUserID(UserID(strings.Repeat("u", MaxUserIDLen+1))), ErrUserIDTooLong)

	assert.NoError(t, ValidateRoomID(RoomID(strings.Repeat("r", MaxRoomIDLen))))
	assert.ErrorIs(t, ValidateRoomID(""), ErrRoomIDEmpty)
	assert.ErrorIs(t, ValidateRoomID(RoomID(strings.Repeat("r", MaxRoomIDLen+1))), ErrRoomIDTooLong)
}

func TestNewParticipantStartsAtOrigin(t *testing.T) {
	p := NewParticipant("R1", "u1", "a.png", RoleTeacher)
	assert.Equal(t, Position{}, p.Position)
	assert.Equal(t, RoomID("R1"), p.RoomID)
	assert.Equal(t, RoleTeacher, p.Role)
}

func TestErrorKinds(t *testing.T) {
	wrapped := fmt.Errorf("consume: %w", ErrProducerNotFound)
	assert.ErrorIs(t, wrapped, ErrProducerNotFound)
	assert.NotErrorIs(t, wrapped, ErrConsumerNotFound)

	// A fresh error of the same kind matches the sentinel.
	assert.ErrorIs(t, Errorf(KindTransportNotFound, "transport %s", "t1"), ErrTransportNotFound)

	cause := errors.New("ice failed")
	ef := EngineFailure("connect transport", cause)
	assert.ErrorIs(t, ef, cause)
	assert.Equal(t, "EngineFailure: connect transport: ice failed", ef.Error())

	require.Nil(t, AsError(nil))
	assert.Equal(t, KindProducerNotFound, AsError(wrapped).Kind)
	plain := AsError(errors.New("boom"))
	assert.Equal(t, KindEngineFailure, plain.Kind)
	assert.Equal(t, "boom", plain.Message)
}
