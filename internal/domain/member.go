package domain

// Position is a participant's last reported location in the shared space.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Participant is the presence-plane view of one user in a room.
// No transport or lifecycle logic here.
type Participant struct {
	UserID    UserID   `json:"userId"`
	RoomID    RoomID   `json:"roomId"`
	AvatarRef string   `json:"avatarRef"`
	Role      Role     `json:"role"`
	Position  Position `json:"position"`
}

// NewParticipant places a freshly announced participant at the origin.
func NewParticipant(room RoomID, user UserID, avatarRef string, role Role) *Participant {
	return &Participant{
		UserID:    user,
		RoomID:    room,
		AvatarRef: avatarRef,
		Role:      role,
	}
}
