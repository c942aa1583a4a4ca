package core

import (
	"context"

	"github.com/dkeye/Classroom/internal/domain"
)

// ParticipantStore is the durable side of session attendance. The core only
// ever asks it to forget everyone attached to a room.
type ParticipantStore interface {
	ClearSessionParticipants(ctx context.Context, room domain.RoomID) error
}
