package domain

type (
	TransportID string
	ProducerID  string
	ConsumerID  string
)

// Direction tags a transport with the only media flow it may carry.
type Direction string

const (
	DirectionProducer Direction = "producer"
	DirectionConsumer Direction = "consumer"
)

// MediaKind is the RTP media kind of a producer or consumer.
type MediaKind string

const (
	KindAudio MediaKind = "audio"
	KindVideo MediaKind = "video"
)

// ICEParameters, ICECandidate and DTLSParameters are the wire shapes of the
// connectivity descriptor handed to clients. They are opaque to the
// coordinator and only interpreted by the media engine.
type ICEParameters struct {
	UsernameFragment string `json:"usernameFragment"`
	Password         string `json:"password"`
	ICELite          bool   `json:"iceLite"`
}

type ICECandidate struct {
	Foundation string `json:"foundation"`
	Priority   uint32 `json:"priority"`
	IP         string `json:"ip"`
	Protocol   string `json:"protocol"`
	Port       uint16 `json:"port"`
	Type       string `json:"type"`
}

type DTLSFingerprint struct {
	Algorithm string `json:"algorithm"`
	Value     string `json:"value"`
}

type DTLSParameters struct {
	Role         string            `json:"role,omitempty"`
	Fingerprints []DTLSFingerprint `json:"fingerprints"`
}

// TransportParams is returned to the client after a transport is created.
type TransportParams struct {
	ID             TransportID    `json:"id"`
	ICEParameters  ICEParameters  `json:"iceParameters"`
	ICECandidates  []ICECandidate `json:"iceCandidates"`
	DTLSParameters DTLSParameters `json:"dtlsParameters"`
}

// RTPCodecCapability describes one codec the engine or a client can handle.
type RTPCodecCapability struct {
	Kind                 MediaKind `json:"kind"`
	MimeType             string    `json:"mimeType"`
	PreferredPayloadType uint8     `json:"preferredPayloadType"`
	ClockRate            uint32    `json:"clockRate"`
	Channels             uint16    `json:"channels,omitempty"`
}

type RTPCapabilities struct {
	Codecs []RTPCodecCapability `json:"codecs"`
}

type RTPCodecParameters struct {
	MimeType    string `json:"mimeType"`
	PayloadType uint8  `json:"payloadType"`
	ClockRate   uint32 `json:"clockRate"`
	Channels    uint16 `json:"channels,omitempty"`
}

type RTPEncoding struct {
	SSRC uint32 `json:"ssrc"`
}

// RTPParameters is what a producer sends or a consumer receives.
type RTPParameters struct {
	Codecs    []RTPCodecParameters `json:"codecs"`
	Encodings []RTPEncoding        `json:"encodings"`
}

// ConsumerParams is the engine's answer to a consume request.
type ConsumerParams struct {
	ID            ConsumerID    `json:"id"`
	ProducerID    ProducerID    `json:"producerId"`
	Kind          MediaKind     `json:"kind"`
	RTPParameters RTPParameters `json:"rtpParameters"`
}
