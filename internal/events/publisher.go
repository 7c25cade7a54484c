package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Publisher fans committed state changes out to every connected client of a
// room. Services call it only after their transaction has committed.
type Publisher interface {
	Publish(ctx context.Context, roomID uuid.UUID, event string, payload any) error
}

// NoopPublisher is the default when no realtime transport is wired.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, uuid.UUID, string, any) error {
	return nil
}

// Broker carries raw envelopes to a named channel. The redis pub/sub client
// satisfies it.
type Broker interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// BrokerPublisher wraps payloads in an envelope and hands them to the broker
// on the room's channel.
type BrokerPublisher struct {
	broker Broker
}

func NewBrokerPublisher(broker Broker) *BrokerPublisher {
	return &BrokerPublisher{broker: broker}
}

func (p *BrokerPublisher) Publish(ctx context.Context, roomID uuid.UUID, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	env := Envelope{
		Event:      event,
		RoomID:     roomID.String(),
		OccurredAt: time.Now().UTC(),
		Payload:    data,
	}
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return p.broker.Publish(ctx, RoomChannel(roomID), body)
}
