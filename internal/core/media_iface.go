package core

import (
	"context"

	"github.com/dkeye/Classroom/internal/domain"
)

// MediaEngine is the process-wide media router. Every method that talks to
// the media plane takes a context and may block; those calls are the only
// points where a signaling handler suspends.
type MediaEngine interface {
	// RTPCapabilities returns the router codec set handed out on voice join.
	RTPCapabilities() domain.RTPCapabilities
	// CreateTransport allocates ICE/DTLS state bound to the announced address.
	CreateTransport(ctx context.Context, dir domain.Direction) (domain.TransportParams, error)
	// ConnectTransport hands the remote DTLS (and, when known, ICE) parameters to the transport.
	ConnectTransport(ctx context.Context, id domain.TransportID, dtls domain.DTLSParameters, ice *domain.ICEParameters) error
	Produce(ctx context.Context, transport domain.TransportID, kind domain.MediaKind, params domain.RTPParameters) (domain.ProducerID, error)
	// CanConsume reports whether caps can receive the producer's codec.
	CanConsume(producer domain.ProducerID, caps domain.RTPCapabilities) bool
	// Consume creates a paused consumer of producer on transport.
	Consume(ctx context.Context, transport domain.TransportID, producer domain.ProducerID, caps domain.RTPCapabilities) (domain.ConsumerParams, error)
	ResumeConsumer(ctx context.Context, id domain.ConsumerID) error
	PauseProducer(ctx context.Context, id domain.ProducerID) error
	ResumeProducer(ctx context.Context, id domain.ProducerID) error

	CloseTransport(id domain.TransportID)
	CloseProducer(id domain.ProducerID)
	CloseConsumer(id domain.ConsumerID)

	// OnTransportClosed sets a callback for transports the engine closed on its own
	// (DTLS failure or remote close).
	OnTransportClosed(func(domain.TransportID))
	// Died delivers the fatal error once the engine can no longer route media.
	Died() <-chan error
	Close() error
}
