package signal

import "github.com/dkeye/Classroom/internal/domain"

type announcePayload struct {
	RoomID    domain.RoomID `json:"roomId"`
	UserID    domain.UserID `json:"userId"`
	AvatarRef string        `json:"avatarRef"`
	Role      string        `json:"role"`
}

type positionPayload struct {
	UserID   domain.UserID   `json:"userId"`
	RoomID   domain.RoomID   `json:"roomId"`
	Position domain.Position `json:"position"`
}

type leavePayload struct {
	UserID domain.UserID `json:"userId"`
	RoomID domain.RoomID `json:"roomId"`
}

type voiceJoinPayload struct {
	RoomID domain.RoomID `json:"roomId"`
	UserID domain.UserID `json:"userId"`
}

type voiceJoinResult struct {
	RTPCapabilities domain.RTPCapabilities `json:"rtpCapabilities"`
}

type connectPayload struct {
	TransportID    domain.TransportID    `json:"transportId"`
	DTLSParameters domain.DTLSParameters `json:"dtlsParameters"`
	ICEParameters  *domain.ICEParameters `json:"iceParameters,omitempty"`
	ICECandidates  []domain.ICECandidate `json:"iceCandidates,omitempty"`
}

type producePayload struct {
	TransportID   domain.TransportID   `json:"transportId"`
	Kind          domain.MediaKind     `json:"kind"`
	RTPParameters domain.RTPParameters `json:"rtpParameters"`
}

type produceResult struct {
	ID domain.ProducerID `json:"id"`
}

type consumePayload struct {
	TransportID     domain.TransportID     `json:"transportId"`
	ProducerID      domain.ProducerID      `json:"producerId"`
	RTPCapabilities domain.RTPCapabilities `json:"rtpCapabilities"`
}

type consumerPayload struct {
	ConsumerID domain.ConsumerID `json:"consumerId"`
}

type producerPayload struct {
	ProducerID domain.ProducerID `json:"producerId"`
}

type togglePayload struct {
	Muted bool `json:"muted"`
}

type testAudioPayload struct {
	Success bool `json:"success"`
}

type successResult struct {
	Success bool `json:"success"`
}
