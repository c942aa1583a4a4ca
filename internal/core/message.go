package core

import (
	"encoding/json"

	"github.com/dkeye/Classroom/internal/domain"
)

// Envelope is the signaling wire frame. Requests carry an optional ID that
// is echoed on the response; server pushes have none.
type Envelope struct {
	Type  string          `json:"type"`
	ID    json.RawMessage `json:"id,omitempty"`
	Data  any             `json:"data,omitempty"`
	Error *domain.Error   `json:"error,omitempty"`
}

// Server push event names.
const (
	EventUserJoinedSession   = "user-joined-session"
	EventUpdateParticipants  = "update_participants"
	EventUpdatePositions     = "update_positions"
	EventTeacherLeft         = "teacher_left"
	EventVoiceUserDisconnect = "voice-user-disconnected"
	EventNewProducer         = "new-producer"
	EventProducerClosed      = "producer-closed"
	EventProducerPaused      = "producer-paused"
	EventProducerResumed     = "producer-resumed"
	EventUserAudioToggle     = "user-audio-toggle"
	EventRoomDeactivated     = "room_deactivated"
	EventAudioTestResult     = "audio-test-result"
)

func EncodeEvent(typ string, data any) (Frame, error) {
	return json.Marshal(Envelope{Type: typ, Data: data})
}
