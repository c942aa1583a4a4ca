package domain

type RoomID string

func ValidateRoomID(id RoomID) error {
	if len(id) == 0 {
		return ErrRoomIDEmpty
	}
	if len(id) > MaxRoomIDLen {
		return ErrRoomIDTooLong
	}
	return nil
}

// RoomPhase is the presence-plane lifecycle of a room.
type RoomPhase string

const (
	RoomEmpty  RoomPhase = "empty"
	RoomActive RoomPhase = "active"
	// RoomGrace is entered when the teacher departs and lasts until the
	// grace purge runs or every remaining participant has left.
	RoomGrace RoomPhase = "grace"
)
